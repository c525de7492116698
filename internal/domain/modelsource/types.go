// Package modelsource manages the registry of OpenAI-compatible model
// endpoints the assistant may talk to. API keys are never stored here;
// they live in the secret store under a per-source reference.
package modelsource

import (
	"context"
	"time"
)

// Source is one registered model endpoint.
type Source struct {
	ID      string
	Name    string
	BaseURL string
	// APIKeyRef is the secret-store key holding the endpoint's API key;
	// empty when the endpoint needs none.
	APIKeyRef string
	Enabled   bool
	CreatedAt time.Time
}

// Store persists model sources.
// Interface owned by the domain; implemented by the sqlite adapter.
type Store interface {
	Create(ctx context.Context, s Source) error
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*Source, error)
	List(ctx context.Context) ([]Source, error)
	SetEnabled(ctx context.Context, id string, enabled bool) error
}
