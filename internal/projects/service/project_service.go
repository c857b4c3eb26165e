package service

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"golang.org/x/crypto/bcrypt"

	"github.com/GoSim-25-26J-441/template-registry/internal/logging"
	"github.com/GoSim-25-26J-441/template-registry/internal/projects/domain"
)

const keyAttempts = 5

type cachedKey struct {
	digest  [sha256.Size]byte
	project domain.Project
}

// ProjectService manages projects and resolves API keys to them.
type ProjectService struct {
	repo     domain.ProjectRepository
	keys     *cache.Cache
	hashCost int
	now      func() time.Time
}

// NewProjectService creates a ProjectService. Resolved keys are cached for
// cacheTTL; a zero TTL disables the cache.
func NewProjectService(repo domain.ProjectRepository, cacheTTL time.Duration) *ProjectService {
	var keys *cache.Cache
	if cacheTTL > 0 {
		keys = cache.New(cacheTTL, 2*cacheTTL)
	}
	return &ProjectService{
		repo:     repo,
		keys:     keys,
		hashCost: bcrypt.DefaultCost,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateProject creates a project and its first API key. The plaintext key
// is returned once and never stored.
func (s *ProjectService) CreateProject(ctx context.Context, name string) (*domain.Project, string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, "", fmt.Errorf("project name required")
	}

	p := &domain.Project{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: s.now(),
	}

	for i := 0; i < keyAttempts; i++ {
		plaintext, key, err := s.newKey(p.ID)
		if err != nil {
			return nil, "", err
		}

		err = s.repo.Create(ctx, p, key)
		if err == nil {
			logging.Op(ctx, "create_project").WithField("project_id", p.ID).Info("project created")
			return p, plaintext, nil
		}
		// prefix collision → retry
		if errors.Is(err, domain.ErrKeyPrefixTaken) {
			continue
		}
		return nil, "", err
	}

	return nil, "", fmt.Errorf("failed to generate unique api key")
}

// IssueKey adds a new API key to an existing project.
func (s *ProjectService) IssueKey(ctx context.Context, projectID string) (string, error) {
	if _, err := s.repo.GetByID(ctx, projectID); err != nil {
		return "", err
	}

	for i := 0; i < keyAttempts; i++ {
		plaintext, key, err := s.newKey(projectID)
		if err != nil {
			return "", err
		}
		err = s.repo.AddKey(ctx, key)
		if err == nil {
			return plaintext, nil
		}
		if errors.Is(err, domain.ErrKeyPrefixTaken) {
			continue
		}
		return "", err
	}
	return "", fmt.Errorf("failed to generate unique api key")
}

// RevokeKey deactivates the key with prefix and drops it from the cache.
func (s *ProjectService) RevokeKey(ctx context.Context, projectID, prefix string) error {
	if err := s.repo.RevokeKey(ctx, projectID, prefix); err != nil {
		return err
	}
	if s.keys != nil {
		s.keys.Delete(prefix)
	}
	return nil
}

// ResolveAPIKey maps a plaintext key to its project. Every failure mode
// reports domain.ErrInvalidAPIKey except storage errors.
func (s *ProjectService) ResolveAPIKey(ctx context.Context, key string) (*domain.Project, error) {
	prefix, ok := domain.KeyPrefix(key)
	if !ok {
		return nil, domain.ErrInvalidAPIKey
	}
	digest := sha256.Sum256([]byte(key))

	if s.keys != nil {
		if v, found := s.keys.Get(prefix); found {
			entry := v.(cachedKey)
			if subtle.ConstantTimeCompare(entry.digest[:], digest[:]) == 1 {
				p := entry.project
				return &p, nil
			}
			return nil, domain.ErrInvalidAPIKey
		}
	}

	stored, err := s.repo.FindActiveKeyByPrefix(ctx, prefix)
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(stored.KeyHash), []byte(key)); err != nil {
		return nil, domain.ErrInvalidAPIKey
	}

	p, err := s.repo.GetByID(ctx, stored.ProjectID)
	if err != nil {
		if errors.Is(err, domain.ErrProjectNotFound) {
			return nil, domain.ErrInvalidAPIKey
		}
		return nil, err
	}

	if err := s.repo.TouchKey(ctx, stored.ID, s.now()); err != nil {
		logging.Op(ctx, "resolve_api_key").WithError(err).Warn("failed to record key usage")
	}
	if s.keys != nil {
		s.keys.SetDefault(prefix, cachedKey{digest: digest, project: *p})
	}
	return p, nil
}

func (s *ProjectService) GetProject(ctx context.Context, id string) (*domain.Project, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *ProjectService) ListProjects(ctx context.Context) ([]domain.Project, error) {
	return s.repo.List(ctx)
}

func (s *ProjectService) newKey(projectID string) (string, *domain.APIKey, error) {
	plaintext, prefix, err := domain.NewAPIKey()
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate api key: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), s.hashCost)
	if err != nil {
		return "", nil, fmt.Errorf("failed to hash api key: %w", err)
	}
	return plaintext, &domain.APIKey{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		KeyPrefix: prefix,
		KeyHash:   string(hash),
		IsActive:  true,
		CreatedAt: s.now(),
	}, nil
}
