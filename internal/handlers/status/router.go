package status

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/KirkDiggler/vipsync/internal/common/logging"
	"github.com/KirkDiggler/vipsync/internal/models"
)

// Source is the read side of the shared storage service
type Source interface {
	GetSettings(ctx context.Context) *models.Settings
	GetUnreadBroadcasts(ctx context.Context) []*models.Broadcast
	GetActiveUsers(ctx context.Context) []*models.User
}

// Config holds configuration for the status router
type Config struct {
	// Source is the shared storage service
	Source Source

	// Gatherer serves /metrics
	Gatherer prometheus.Gatherer

	// Health reports whether the backing store is reachable. Optional.
	Health func(ctx context.Context) error

	// Logger is optional
	Logger *zap.Logger
}

// Summary is the body of GET /status
type Summary struct {
	SettingsVersion  string    `json:"settingsVersion"`
	LastUpdated      time.Time `json:"lastUpdated"`
	Games            int       `json:"games"`
	UnreadBroadcasts int       `json:"unreadBroadcasts"`
	ActiveUsers      int       `json:"activeUsers"`
}

type handler struct {
	source Source
	health func(ctx context.Context) error
	logger *zap.Logger
}

// NewRouter builds the status HTTP router
func NewRouter(cfg *Config) (http.Handler, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}

	if cfg.Source == nil {
		return nil, errors.New("source cannot be nil")
	}

	if cfg.Gatherer == nil {
		return nil, errors.New("gatherer cannot be nil")
	}

	h := &handler{
		source: cfg.Source,
		health: cfg.Health,
		logger: logging.OrNop(cfg.Logger),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.handleHealth)
	r.Get("/status", h.handleStatus)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))

	return r, nil
}

func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health(r.Context()); err != nil {
			h.logger.Warn("health check failed", zap.Error(err))
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	settings := h.source.GetSettings(ctx)

	summary := &Summary{
		SettingsVersion:  settings.Version,
		LastUpdated:      settings.LastUpdated,
		Games:            len(settings.Games),
		UnreadBroadcasts: len(h.source.GetUnreadBroadcasts(ctx)),
		ActiveUsers:      len(h.source.GetActiveUsers(ctx)),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(summary); err != nil {
		h.logger.Error("failed to write status", zap.Error(err))
	}
}
