package domain

import (
	"errors"
	"time"
)

// Project is the tenant boundary: every template belongs to exactly one
// project and every lookup is scoped by it.
type Project struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// APIKey is a stored caller credential. Only the bcrypt hash of the full key
// is persisted; the prefix is stored in clear for lookup and display.
type APIKey struct {
	ID         string     `json:"id"`
	ProjectID  string     `json:"project_id"`
	KeyPrefix  string     `json:"key_prefix"`
	KeyHash    string     `json:"-"`
	IsActive   bool       `json:"is_active"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}

var (
	ErrProjectNotFound = errors.New("project not found")
	ErrInvalidAPIKey   = errors.New("invalid API key")
	ErrKeyPrefixTaken  = errors.New("api key prefix already exists")
)
