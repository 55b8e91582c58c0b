package models

// Change describes one write to the shared key-value store
type Change struct {
	// Key is the storage key that was written
	Key string `json:"key"`

	// NewValue is the raw value after the write
	NewValue string `json:"newValue"`

	// OldValue is the raw value before the write, empty if the key was absent
	OldValue string `json:"oldValue,omitempty"`

	// Origin identifies the writer so it can ignore its own notifications
	Origin string `json:"origin"`
}
