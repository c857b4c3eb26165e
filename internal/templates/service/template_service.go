package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/GoSim-25-26J-441/template-registry/internal/logging"
	projectdomain "github.com/GoSim-25-26J-441/template-registry/internal/projects/domain"
	"github.com/GoSim-25-26J-441/template-registry/internal/templates/domain"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100

	timedOutMessage = "build timed out"
)

// TemplateService handles business logic for templates. Every call is
// scoped by an explicit, already-authenticated project.
type TemplateService struct {
	repo    domain.TemplateRepository
	backend domain.BuildBackend
	events  domain.EventPublisher
	now     func() time.Time
}

// NewTemplateService creates a new TemplateService. events may be nil.
func NewTemplateService(repo domain.TemplateRepository, backend domain.BuildBackend, events domain.EventPublisher) *TemplateService {
	return &TemplateService{
		repo:    repo,
		backend: backend,
		events:  events,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// CreateTemplate stores a new template and dispatches its build. When the
// backend refuses the build the template is still returned, with status
// failed, alongside a *domain.BackendDispatchError.
func (s *TemplateService) CreateTemplate(ctx context.Context, project projectdomain.Project, req domain.CreateTemplateRequest) (*domain.Template, error) {
	log := logging.Op(ctx, "create_template")

	alias, err := normalizeAlias(req.Alias)
	if err != nil {
		return nil, err
	}
	t := s.newTemplate(project.ID, alias, req)

	err = s.repo.InTx(ctx, func(store domain.TemplateStore) error {
		taken, err := store.ExistsByProjectAndAlias(ctx, project.ID, alias, "")
		if err != nil {
			return err
		}
		if taken {
			return domain.ErrConstraintViolation
		}
		return store.Insert(ctx, t)
	})
	if err != nil {
		return nil, s.translate(err, project, alias)
	}

	recordCreated()
	log.WithFields(logrus.Fields{
		"project_id":  project.ID,
		"template_id": t.ID,
		"alias":       alias,
	}).Info("template created")
	s.publish(ctx, domain.NewEvent(domain.EventCreated, t))

	return s.dispatch(ctx, t)
}

// RequestBuild creates a template, or with ForceRebuild replaces the one
// currently holding the alias. The replacement gets a new id; the delete and
// the insert commit together.
func (s *TemplateService) RequestBuild(ctx context.Context, project projectdomain.Project, req domain.BuildRequest) (*domain.Template, error) {
	log := logging.Op(ctx, "request_build")

	alias, err := normalizeAlias(req.Alias)
	if err != nil {
		return nil, err
	}
	t := s.newTemplate(project.ID, alias, req.CreateTemplateRequest)

	var replaced *domain.Template
	err = s.repo.InTx(ctx, func(store domain.TemplateStore) error {
		existing, err := store.FindByProjectAndAlias(ctx, project.ID, alias)
		switch {
		case errors.Is(err, domain.ErrTemplateNotFound):
		case err != nil:
			return err
		case !req.ForceRebuild:
			return domain.ErrConstraintViolation
		default:
			if _, err := store.Delete(ctx, project.ID, existing.ID); err != nil {
				return err
			}
			replaced = existing
		}
		return store.Insert(ctx, t)
	})
	if err != nil {
		return nil, s.translate(err, project, alias)
	}

	recordCreated()
	if replaced != nil {
		recordForcedRebuild()
		log.WithFields(logrus.Fields{
			"project_id":  project.ID,
			"alias":       alias,
			"replaced_id": replaced.ID,
			"template_id": t.ID,
		}).Info("force rebuilding template")
		s.publish(ctx, domain.NewEvent(domain.EventDeleted, replaced))
	}
	s.publish(ctx, domain.NewEvent(domain.EventCreated, t))

	return s.dispatch(ctx, t)
}

// UpdateTemplate renames a template and/or replaces its config. Renaming to
// the current alias is a no-op.
func (s *TemplateService) UpdateTemplate(ctx context.Context, project projectdomain.Project, id string, req domain.UpdateTemplateRequest) (*domain.Template, error) {
	if !validID(id) {
		return nil, domain.ErrTemplateNotFound
	}

	var newAlias string
	if req.Alias != nil {
		alias, err := normalizeAlias(*req.Alias)
		if err != nil {
			return nil, err
		}
		newAlias = alias
	}

	var (
		updated *domain.Template
		changed bool
	)
	err := s.repo.InTx(ctx, func(store domain.TemplateStore) error {
		t, err := store.FindByID(ctx, project.ID, id)
		if err != nil {
			return err
		}

		if req.Alias != nil && newAlias != t.Alias {
			taken, err := store.ExistsByProjectAndAlias(ctx, project.ID, newAlias, t.ID)
			if err != nil {
				return err
			}
			if taken {
				return domain.ErrConstraintViolation
			}
			t.Alias = newAlias
			changed = true
		}
		if req.Config != nil {
			t.Config = req.Config
			changed = true
		}

		updated = t
		if !changed {
			return nil
		}
		t.UpdatedAt = s.now()
		return store.Update(ctx, t)
	})
	if err != nil {
		return nil, s.translate(err, project, newAlias)
	}

	if changed {
		logging.Op(ctx, "update_template").WithField("template_id", id).Info("template updated")
		s.publish(ctx, domain.NewEvent(domain.EventUpdated, updated))
	}
	return updated, nil
}

// DeleteTemplate removes a template. false means there was nothing to delete
// in this project and is not an error.
func (s *TemplateService) DeleteTemplate(ctx context.Context, project projectdomain.Project, id string) (bool, error) {
	if !validID(id) {
		return false, nil
	}

	var removed *domain.Template
	err := s.repo.InTx(ctx, func(store domain.TemplateStore) error {
		t, err := store.FindByID(ctx, project.ID, id)
		if err != nil {
			if errors.Is(err, domain.ErrTemplateNotFound) {
				return nil
			}
			return err
		}
		ok, err := store.Delete(ctx, project.ID, id)
		if err != nil {
			return err
		}
		if ok {
			removed = t
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	if removed == nil {
		return false, nil
	}

	recordDeleted()
	logging.Op(ctx, "delete_template").WithField("template_id", id).Info("template deleted")
	s.publish(ctx, domain.NewEvent(domain.EventDeleted, removed))
	return true, nil
}

// GetTemplate returns domain.ErrTemplateNotFound when id does not exist in
// the project, including when it exists in another one.
func (s *TemplateService) GetTemplate(ctx context.Context, project projectdomain.Project, id string) (*domain.Template, error) {
	if !validID(id) {
		return nil, domain.ErrTemplateNotFound
	}
	return s.repo.FindByID(ctx, project.ID, id)
}

// GetByAlias looks a template up by its alias within the project.
func (s *TemplateService) GetByAlias(ctx context.Context, project projectdomain.Project, alias string) (*domain.Template, error) {
	alias = strings.TrimSpace(alias)
	if alias == "" {
		return nil, domain.ErrTemplateNotFound
	}
	return s.repo.FindByProjectAndAlias(ctx, project.ID, alias)
}

// ListTemplates returns one page of the project's templates, newest first.
func (s *TemplateService) ListTemplates(ctx context.Context, project projectdomain.Project, page, pageSize int) (*domain.TemplatePage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	templates, total, err := s.repo.ListByProject(ctx, project.ID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, err
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return &domain.TemplatePage{
		Templates:  templates,
		TotalCount: total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}, nil
}

// ApplyBuildStatus records a status reported by the build backend. Repeating
// the current status is accepted; any other move out of the state machine
// fails with domain.ErrInvalidTransition.
func (s *TemplateService) ApplyBuildStatus(ctx context.Context, projectID, templateID string, status domain.BuildStatus, message string) (*domain.Template, error) {
	if !status.Valid() {
		return nil, domain.ErrInvalidStatus
	}
	if !validID(projectID) || !validID(templateID) {
		return nil, domain.ErrTemplateNotFound
	}

	var (
		updated *domain.Template
		changed bool
	)
	err := s.repo.InTx(ctx, func(store domain.TemplateStore) error {
		t, err := store.FindByID(ctx, projectID, templateID)
		if err != nil {
			return err
		}
		if t.BuildStatus == status {
			updated = t
			return nil
		}
		if !t.BuildStatus.CanTransitionTo(status) {
			return domain.ErrInvalidTransition
		}

		buildErr := ""
		if status == domain.StatusFailed {
			buildErr = message
		}
		if err := store.UpdateStatus(ctx, projectID, templateID, status, buildErr); err != nil {
			return err
		}
		updated, err = store.FindByID(ctx, projectID, templateID)
		changed = err == nil
		return err
	})
	if err != nil {
		return nil, err
	}

	if changed {
		logging.Op(ctx, "apply_build_status").WithFields(logrus.Fields{
			"template_id": templateID,
			"status":      status,
		}).Info("build status changed")
		s.publish(ctx, domain.NewEvent(domain.EventStatusChanged, updated))
	}
	return updated, nil
}

// ReconcileStale fails unfinished builds that have not moved for longer than
// timeout, at most limit per call. It returns how many were marked failed.
func (s *TemplateService) ReconcileStale(ctx context.Context, timeout time.Duration, limit int) (int, error) {
	log := logging.Op(ctx, "reconcile_stale")

	stale, err := s.repo.ListStale(ctx, s.now().Add(-timeout), limit)
	if err != nil {
		return 0, err
	}

	marked := 0
	for _, t := range stale {
		_, err := s.ApplyBuildStatus(ctx, t.ProjectID, t.ID, domain.StatusFailed, timedOutMessage)
		switch {
		case err == nil:
			marked++
		case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrTemplateNotFound):
			// finished or deleted since ListStale
		default:
			return marked, err
		}
	}

	if marked > 0 {
		recordTimedOut(marked)
		log.WithField("count", marked).Warn("marked stale builds as failed")
	}
	return marked, nil
}

// dispatch hands t to the build backend after the row has been committed.
func (s *TemplateService) dispatch(ctx context.Context, t *domain.Template) (*domain.Template, error) {
	log := logging.Op(ctx, "dispatch_build").WithField("template_id", t.ID)

	if err := s.backend.StartBuild(ctx, t); err != nil {
		recordDispatchFailure()
		log.WithError(err).Error("build backend rejected build")

		if uerr := s.repo.UpdateStatus(ctx, t.ProjectID, t.ID, domain.StatusFailed, err.Error()); uerr != nil {
			log.WithError(uerr).Error("failed to mark template as failed")
		}
		t.BuildStatus = domain.StatusFailed
		t.BuildError = err.Error()
		s.publish(ctx, domain.NewEvent(domain.EventStatusChanged, t))
		return t, &domain.BackendDispatchError{TemplateID: t.ID, Err: err}
	}

	// The backend may already have reported a later status.
	err := s.repo.InTx(ctx, func(store domain.TemplateStore) error {
		current, err := store.FindByID(ctx, t.ProjectID, t.ID)
		if err != nil {
			return err
		}
		if !current.BuildStatus.CanTransitionTo(domain.StatusBuilding) {
			t.BuildStatus = current.BuildStatus
			t.BuildError = current.BuildError
			return nil
		}
		if err := store.UpdateStatus(ctx, t.ProjectID, t.ID, domain.StatusBuilding, ""); err != nil {
			return err
		}
		t.BuildStatus = domain.StatusBuilding
		return nil
	})
	if err != nil {
		log.WithError(err).Warn("build dispatched but status not updated")
		return t, nil
	}

	if t.BuildStatus == domain.StatusBuilding {
		s.publish(ctx, domain.NewEvent(domain.EventStatusChanged, t))
	}
	return t, nil
}

// translate turns store-internal errors into caller-facing ones.
func (s *TemplateService) translate(err error, project projectdomain.Project, alias string) error {
	if errors.Is(err, domain.ErrConstraintViolation) {
		recordConflict()
		return &domain.AliasConflictError{
			Alias:       alias,
			ProjectID:   project.ID,
			ProjectName: project.Name,
		}
	}
	return err
}

func (s *TemplateService) publish(ctx context.Context, event domain.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		logging.Op(ctx, "publish_event").WithError(err).WithField("template_id", event.TemplateID).Warn("failed to publish template event")
	}
}

func (s *TemplateService) newTemplate(projectID, alias string, req domain.CreateTemplateRequest) *domain.Template {
	config := req.Config
	if config == nil {
		config = make(map[string]interface{})
	}
	now := s.now()
	return &domain.Template{
		ID:          uuid.NewString(),
		Alias:       alias,
		ProjectID:   projectID,
		Config:      config,
		BuildFile:   req.BuildFile,
		BuildStatus: domain.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func normalizeAlias(alias string) (string, error) {
	alias = strings.TrimSpace(alias)
	if alias == "" {
		return "", &domain.ValidationError{Field: "alias", Message: "must not be empty"}
	}
	if len(alias) > domain.MaxAliasLength {
		return "", &domain.ValidationError{Field: "alias", Message: "must be at most 255 characters"}
	}
	return alias, nil
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
