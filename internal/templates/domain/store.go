package domain

import (
	"context"
	"time"
)

// TemplateStore is the persistence contract of the registry. Implementations
// must enforce (project_id, alias) uniqueness themselves and report a
// collision as ErrConstraintViolation.
type TemplateStore interface {
	FindByID(ctx context.Context, projectID, id string) (*Template, error)
	FindByProjectAndAlias(ctx context.Context, projectID, alias string) (*Template, error)
	ExistsByProjectAndAlias(ctx context.Context, projectID, alias, excludeID string) (bool, error)
	ListByProject(ctx context.Context, projectID string, limit, offset int) ([]Template, int64, error)
	ListStale(ctx context.Context, before time.Time, limit int) ([]Template, error)
	Insert(ctx context.Context, t *Template) error
	Update(ctx context.Context, t *Template) error
	UpdateStatus(ctx context.Context, projectID, id string, status BuildStatus, buildErr string) error
	Delete(ctx context.Context, projectID, id string) (bool, error)
}

// TemplateRepository is a TemplateStore that can run a unit of work in a
// single transaction. fn receives a store bound to that transaction; a
// non-nil return (or a panic) rolls everything back.
type TemplateRepository interface {
	TemplateStore
	InTx(ctx context.Context, fn func(store TemplateStore) error) error
}

// BuildBackend starts an asynchronous build. It must not wait for the build
// to finish.
type BuildBackend interface {
	StartBuild(ctx context.Context, t *Template) error
}

// EventPublisher fans out template lifecycle events. Publishing is best
// effort.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}
