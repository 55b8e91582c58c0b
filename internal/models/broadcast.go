package models

import (
	"time"
)

// BroadcastType classifies a broadcast for display
type BroadcastType string

const (
	// BroadcastTypeInfo is a plain announcement
	BroadcastTypeInfo BroadcastType = "info"

	// BroadcastTypeWarning is something users should act on
	BroadcastTypeWarning BroadcastType = "warning"

	// BroadcastTypePromo advertises a bonus or promotion
	BroadcastTypePromo BroadcastType = "promo"
)

// Broadcast is a message sent by an admin to every connected user
type Broadcast struct {
	// ID is derived from the creation time plus a random suffix
	ID string `json:"id"`

	// Timestamp is when the broadcast was sent
	Timestamp time.Time `json:"timestamp"`

	// Read is flipped to true once a user acknowledges the broadcast
	Read bool `json:"read"`

	// Title is an optional headline
	Title string `json:"title,omitempty"`

	// Message is the broadcast body
	Message string `json:"message"`

	// Type is the display category
	Type BroadcastType `json:"type,omitempty"`

	// Sender names the admin who sent it
	Sender string `json:"sender,omitempty"`

	// Meta carries any extra caller-supplied fields
	Meta map[string]string `json:"meta,omitempty"`
}
