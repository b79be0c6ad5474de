package uuidx

import "github.com/google/uuid"

// New returns a version 7 UUID. Run identifiers use v7 so they sort by
// creation time in logs and event streams. Panics if generation fails,
// which only happens when the system entropy source is broken.
func New() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}

// NewString returns a version 7 UUID in string form.
func NewString() string {
	return New().String()
}
