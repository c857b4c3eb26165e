package domain

import (
	"context"
	"time"
)

// ProjectRepository persists projects and their API keys.
type ProjectRepository interface {
	// Create stores a project together with its first key.
	Create(ctx context.Context, project *Project, key *APIKey) error
	GetByID(ctx context.Context, id string) (*Project, error)
	List(ctx context.Context) ([]Project, error)
	AddKey(ctx context.Context, key *APIKey) error
	// FindActiveKeyByPrefix returns ErrInvalidAPIKey when no active key
	// carries prefix.
	FindActiveKeyByPrefix(ctx context.Context, prefix string) (*APIKey, error)
	RevokeKey(ctx context.Context, projectID, prefix string) error
	TouchKey(ctx context.Context, keyID string, at time.Time) error
}
