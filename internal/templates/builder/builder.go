// Package builder dispatches template builds to the configured build
// backend. Dispatch is asynchronous: a backend only has to accept the job.
package builder

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/GoSim-25-26J-441/template-registry/config"
	"github.com/GoSim-25-26J-441/template-registry/internal/logging"
	"github.com/GoSim-25-26J-441/template-registry/internal/templates/domain"
)

// Job is the payload handed to a build backend.
type Job struct {
	TemplateID     string                 `json:"template_id"`
	ProjectID      string                 `json:"project_id"`
	Alias          string                 `json:"alias"`
	Config         map[string]interface{} `json:"config"`
	BuildFile      string                 `json:"build_file_content,omitempty"`
	CallbackURL    string                 `json:"callback_url,omitempty"`
	CallbackSecret string                 `json:"callback_secret,omitempty"`
	RequestedAt    time.Time              `json:"requested_at"`
}

// NewJob builds the job for t.
func NewJob(t *domain.Template, callbackURL, callbackSecret string) Job {
	job := Job{
		TemplateID:     t.ID,
		ProjectID:      t.ProjectID,
		Alias:          t.Alias,
		Config:         t.Config,
		CallbackURL:    callbackURL,
		CallbackSecret: callbackSecret,
		RequestedAt:    time.Now().UTC(),
	}
	if t.BuildFile != nil {
		job.BuildFile = *t.BuildFile
	}
	return job
}

// New returns the backend selected by cfg.Backend, wrapped in a dispatch rate
// limiter. rdb is only used by the redis backend.
func New(cfg config.BuildConfig, rdb *redis.Client) (domain.BuildBackend, error) {
	var backend domain.BuildBackend
	switch cfg.Backend {
	case config.BuildBackendHTTP:
		backend = NewHTTPBackend(cfg.URL, cfg.CallbackURL, cfg.CallbackSecret)
	case config.BuildBackendRedis:
		if rdb == nil {
			return nil, fmt.Errorf("redis build backend requires a redis client")
		}
		backend = NewRedisQueue(rdb, cfg.Queue, cfg.CallbackURL, cfg.CallbackSecret)
	case "":
		return Disabled{}, nil
	default:
		return nil, fmt.Errorf("unsupported build backend %q", cfg.Backend)
	}

	burst := cfg.DispatchBurst
	if burst < 1 {
		burst = 1
	}
	return NewRateLimited(backend, rate.NewLimiter(rate.Limit(cfg.DispatchRate), burst)), nil
}

// RateLimited throttles StartBuild calls to protect the backend.
type RateLimited struct {
	next    domain.BuildBackend
	limiter *rate.Limiter
}

func NewRateLimited(next domain.BuildBackend, limiter *rate.Limiter) *RateLimited {
	return &RateLimited{next: next, limiter: limiter}
}

func (r *RateLimited) StartBuild(ctx context.Context, t *domain.Template) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("build dispatch throttled: %w", err)
	}
	return r.next.StartBuild(ctx, t)
}

// Disabled accepts every build without sending it anywhere. Templates stay
// in building until a status callback arrives or the reconciler times them
// out.
type Disabled struct{}

func (Disabled) StartBuild(ctx context.Context, t *domain.Template) error {
	logging.Op(ctx, "dispatch_build").
		WithField("template_id", t.ID).
		Warn("no build backend configured; build not dispatched")
	return nil
}
