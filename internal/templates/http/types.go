package http

import (
	"context"
	"time"

	"github.com/GoSim-25-26J-441/template-registry/internal/templates/domain"
	"github.com/GoSim-25-26J-441/template-registry/internal/templates/service"
)

// Subscriber streams the events of one template. Implemented by
// events.RedisPublisher.
type Subscriber interface {
	Subscribe(ctx context.Context, projectID, templateID string) (<-chan domain.Event, error)
}

// Handler handles HTTP requests for templates
type Handler struct {
	svc            *service.TemplateService
	subscriber     Subscriber
	callbackSecret string // Secret for authenticating callbacks from the build backend
	pollInterval   time.Duration
	keepAlive      time.Duration
}

// New creates a new Handler. subscriber may be nil, in which case event
// streams poll the store.
func New(svc *service.TemplateService, subscriber Subscriber, callbackSecret string) *Handler {
	return &Handler{
		svc:            svc,
		subscriber:     subscriber,
		callbackSecret: callbackSecret,
		pollInterval:   1 * time.Second,
		keepAlive:      15 * time.Second,
	}
}

type buildRequest struct {
	Alias        string                 `json:"alias"`
	Config       map[string]interface{} `json:"config"`
	BuildFile    *string                `json:"build_file_content"`
	ForceRebuild bool                   `json:"force_rebuild"`
}

type createRequest struct {
	Alias     string                 `json:"alias"`
	Config    map[string]interface{} `json:"config"`
	BuildFile *string                `json:"build_file_content"`
}

type updateRequest struct {
	Alias  *string                `json:"alias"`
	Config map[string]interface{} `json:"config"`
}

// BuildResponse is returned by POST /templates/build.
type BuildResponse struct {
	TemplateID string             `json:"template_id"`
	Alias      string             `json:"alias"`
	Status     domain.BuildStatus `json:"status"`
	Message    string             `json:"message"`
	Warning    string             `json:"warning,omitempty"`
}

// StatusResponse is returned by GET /templates/:id/status.
type StatusResponse struct {
	TemplateID string             `json:"template_id"`
	Alias      string             `json:"alias"`
	Status     domain.BuildStatus `json:"status"`
	BuildError string             `json:"build_error,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
	UpdatedAt  time.Time          `json:"updated_at"`
}
