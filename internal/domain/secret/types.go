// Package secret defines the encrypted-at-rest secret vault: named
// blobs (API keys, tokens) sealed by a local cipher before they reach
// the database. Plaintext never leaves the service layer.
package secret

import (
	"context"
	"time"
)

// Meta describes one stored secret without exposing its value.
type Meta struct {
	Name      string
	UpdatedAt time.Time
}

// Store persists sealed blobs.
// Interface owned by the domain; implemented by the sqlite adapter.
type Store interface {
	// Put upserts the sealed blob under name.
	Put(ctx context.Context, name, blob string) error
	// Get returns the sealed blob for name.
	Get(ctx context.Context, name string) (string, error)
	Delete(ctx context.Context, name string) error
	List(ctx context.Context) ([]Meta, error)
}

// Cipher seals and opens secret values. The blob format is owned by the
// implementation and opaque to callers.
type Cipher interface {
	Seal(plaintext []byte) (string, error)
	Open(blob string) ([]byte, error)
}
