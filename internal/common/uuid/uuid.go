package uuid

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

//go:generate mockgen -package=mocks -destination=mocks/mock_uuid.go github.com/KirkDiggler/vipsync/internal/common/uuid UUID

type UUID interface {
	NewUUID() string
}

// DefaultUUID implements the UUID interface using the uuid package

type DefaultUUID struct{}

func New() *DefaultUUID {
	return &DefaultUUID{}
}

// NewUUID returns a new UUID
func (d *DefaultUUID) NewUUID() string {
	return uuid.New().String()
}

// PrefixedID builds a record ID of the form <prefix>_<unix millis>_<suffix>.
// The suffix is the first 8 characters of a generated UUID with dashes removed,
// so two records created in the same millisecond still get distinct IDs.
func PrefixedID(gen UUID, prefix string, at time.Time) string {
	suffix := strings.ReplaceAll(gen.NewUUID(), "-", "")
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}
	return fmt.Sprintf("%s_%d_%s", prefix, at.UnixMilli(), suffix)
}
