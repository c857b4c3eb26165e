package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	projectdomain "github.com/GoSim-25-26J-441/template-registry/internal/projects/domain"
	"github.com/GoSim-25-26J-441/template-registry/internal/templates/domain"
	"github.com/GoSim-25-26J-441/template-registry/internal/templates/repository"
)

type fakeBackend struct {
	mu     sync.Mutex
	err    error
	builds []string
}

func (b *fakeBackend) StartBuild(_ context.Context, t *domain.Template) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.builds = append(b.builds, t.ID)
	return b.err
}

type fakePublisher struct {
	mu     sync.Mutex
	events []domain.Event
}

func (p *fakePublisher) Publish(_ context.Context, e domain.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *fakePublisher) types() []domain.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

// blindRepo hides existing aliases from the pre-check so that only the
// store's uniqueness constraint can catch a duplicate.
type blindRepo struct {
	*repository.MemoryRepository
}

type blindStore struct {
	domain.TemplateStore
}

func (blindStore) ExistsByProjectAndAlias(context.Context, string, string, string) (bool, error) {
	return false, nil
}

func (blindStore) FindByProjectAndAlias(context.Context, string, string) (*domain.Template, error) {
	return nil, domain.ErrTemplateNotFound
}

func (r blindRepo) InTx(ctx context.Context, fn func(domain.TemplateStore) error) error {
	return r.MemoryRepository.InTx(ctx, func(s domain.TemplateStore) error {
		return fn(blindStore{s})
	})
}

var (
	project1 = projectdomain.Project{ID: "11111111-1111-1111-1111-111111111111", Name: "Test Project 1"}
	project2 = projectdomain.Project{ID: "22222222-2222-2222-2222-222222222222", Name: "Test Project 2"}
)

func newTestService() (*TemplateService, *fakeBackend, *fakePublisher) {
	backend := &fakeBackend{}
	events := &fakePublisher{}
	return NewTemplateService(repository.NewMemoryRepository(), backend, events), backend, events
}

func create(t *testing.T, svc *TemplateService, p projectdomain.Project, alias string) *domain.Template {
	t.Helper()
	tpl, err := svc.CreateTemplate(context.Background(), p, domain.CreateTemplateRequest{Alias: alias})
	require.NoError(t, err)
	return tpl
}

func TestCreateTemplate(t *testing.T) {
	ResetMetrics()
	svc, backend, events := newTestService()
	ctx := context.Background()

	t.Run("success dispatches build", func(t *testing.T) {
		bf := "FROM alpine:3.20"
		tpl, err := svc.CreateTemplate(ctx, project1, domain.CreateTemplateRequest{
			Alias:     "  web  ",
			Config:    map[string]interface{}{"cpu": 2},
			BuildFile: &bf,
		})
		require.NoError(t, err)

		assert.Equal(t, "web", tpl.Alias)
		assert.Equal(t, project1.ID, tpl.ProjectID)
		assert.Equal(t, domain.StatusBuilding, tpl.BuildStatus)
		assert.Equal(t, []string{tpl.ID}, backend.builds)

		stored, err := svc.GetTemplate(ctx, project1, tpl.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusBuilding, stored.BuildStatus)
		assert.Equal(t, "FROM alpine:3.20", *stored.BuildFile)
		assert.Equal(t, []domain.EventType{domain.EventCreated, domain.EventStatusChanged}, events.types())
	})

	t.Run("nil config stored as empty", func(t *testing.T) {
		tpl := create(t, svc, project1, "empty-config")
		assert.NotNil(t, tpl.Config)
		assert.Empty(t, tpl.Config)
	})

	t.Run("empty alias is a validation error", func(t *testing.T) {
		_, err := svc.CreateTemplate(ctx, project1, domain.CreateTemplateRequest{Alias: "   "})
		var verr *domain.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "alias", verr.Field)
	})

	t.Run("overlong alias is a validation error", func(t *testing.T) {
		long := make([]byte, domain.MaxAliasLength+1)
		for i := range long {
			long[i] = 'a'
		}
		_, err := svc.CreateTemplate(ctx, project1, domain.CreateTemplateRequest{Alias: string(long)})
		var verr *domain.ValidationError
		assert.ErrorAs(t, err, &verr)
	})

	t.Run("duplicate alias in same project conflicts", func(t *testing.T) {
		before, _, err := svc.repo.ListByProject(ctx, project1.ID, 100, 0)
		require.NoError(t, err)

		_, err = svc.CreateTemplate(ctx, project1, domain.CreateTemplateRequest{Alias: "web"})
		var conflict *domain.AliasConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, "web", conflict.Alias)
		assert.Contains(t, err.Error(), "Test Project 1")

		after, _, err := svc.repo.ListByProject(ctx, project1.ID, 100, 0)
		require.NoError(t, err)
		assert.Len(t, after, len(before), "no row added on conflict")
	})

	t.Run("same alias in another project succeeds", func(t *testing.T) {
		a, err := svc.GetByAlias(ctx, project1, "web")
		require.NoError(t, err)
		b := create(t, svc, project2, "web")
		assert.NotEqual(t, a.ID, b.ID)
	})

	m := GetMetrics()
	assert.Equal(t, int64(3), m.TemplatesCreated)
	assert.Equal(t, int64(1), m.AliasConflicts)
}

func TestCreateTemplate_DispatchFailureKeepsTemplate(t *testing.T) {
	ResetMetrics()
	svc, backend, _ := newTestService()
	backend.err = errors.New("builder unavailable")
	ctx := context.Background()

	tpl, err := svc.CreateTemplate(ctx, project1, domain.CreateTemplateRequest{Alias: "api"})
	require.Error(t, err)
	require.NotNil(t, tpl)

	var derr *domain.BackendDispatchError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, tpl.ID, derr.TemplateID)
	assert.Equal(t, domain.StatusFailed, tpl.BuildStatus)

	stored, err := svc.GetTemplate(ctx, project1, tpl.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, stored.BuildStatus)
	assert.Equal(t, "builder unavailable", stored.BuildError)
	assert.Equal(t, int64(1), GetMetrics().DispatchFailures)
}

func TestCreateTemplate_StoreConstraintBecomesAliasConflict(t *testing.T) {
	repo := blindRepo{repository.NewMemoryRepository()}
	svc := NewTemplateService(repo, &fakeBackend{}, nil)
	ctx := context.Background()

	_, err := svc.CreateTemplate(ctx, project1, domain.CreateTemplateRequest{Alias: "web"})
	require.NoError(t, err)

	_, err = svc.CreateTemplate(ctx, project1, domain.CreateTemplateRequest{Alias: "web"})
	var conflict *domain.AliasConflictError
	require.ErrorAs(t, err, &conflict)
	assert.False(t, errors.Is(err, domain.ErrConstraintViolation))
}

func TestCreateTemplate_ConcurrentSameAlias(t *testing.T) {
	for name, repo := range map[string]domain.TemplateRepository{
		"pre-check":  repository.NewMemoryRepository(),
		"constraint": blindRepo{repository.NewMemoryRepository()},
	} {
		t.Run(name, func(t *testing.T) {
			svc := NewTemplateService(repo, &fakeBackend{}, nil)
			const callers = 8

			var (
				wg        sync.WaitGroup
				mu        sync.Mutex
				successes int
				conflicts int
				others    []error
			)
			start := make(chan struct{})
			for i := 0; i < callers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					<-start
					_, err := svc.CreateTemplate(context.Background(), project1, domain.CreateTemplateRequest{Alias: "race"})
					mu.Lock()
					defer mu.Unlock()
					var conflict *domain.AliasConflictError
					switch {
					case err == nil:
						successes++
					case errors.As(err, &conflict):
						conflicts++
					default:
						others = append(others, err)
					}
				}()
			}
			close(start)
			wg.Wait()

			assert.Equal(t, 1, successes)
			assert.Equal(t, callers-1, conflicts)
			assert.Empty(t, others)
		})
	}
}

func TestRequestBuild(t *testing.T) {
	ctx := context.Background()

	t.Run("existing alias without force conflicts", func(t *testing.T) {
		svc, _, _ := newTestService()
		create(t, svc, project1, "web")

		_, err := svc.RequestBuild(ctx, project1, domain.BuildRequest{
			CreateTemplateRequest: domain.CreateTemplateRequest{Alias: "web"},
		})
		var conflict *domain.AliasConflictError
		assert.ErrorAs(t, err, &conflict)
	})

	t.Run("force rebuild replaces template", func(t *testing.T) {
		ResetMetrics()
		svc, backend, events := newTestService()
		old := create(t, svc, project1, "web")

		replacement, err := svc.RequestBuild(ctx, project1, domain.BuildRequest{
			CreateTemplateRequest: domain.CreateTemplateRequest{
				Alias:  "web",
				Config: map[string]interface{}{"memory_mb": 512},
			},
			ForceRebuild: true,
		})
		require.NoError(t, err)
		assert.NotEqual(t, old.ID, replacement.ID)

		_, err = svc.GetTemplate(ctx, project1, old.ID)
		assert.ErrorIs(t, err, domain.ErrTemplateNotFound)

		byAlias, err := svc.GetByAlias(ctx, project1, "web")
		require.NoError(t, err)
		assert.Equal(t, replacement.ID, byAlias.ID)

		page, err := svc.ListTemplates(ctx, project1, 1, 10)
		require.NoError(t, err)
		assert.Equal(t, int64(1), page.TotalCount)

		assert.Len(t, backend.builds, 2)
		assert.Contains(t, events.types(), domain.EventDeleted)
		assert.Equal(t, int64(1), GetMetrics().ForcedRebuilds)
	})

	t.Run("force rebuild without existing template creates", func(t *testing.T) {
		svc, _, _ := newTestService()
		tpl, err := svc.RequestBuild(ctx, project1, domain.BuildRequest{
			CreateTemplateRequest: domain.CreateTemplateRequest{Alias: "fresh"},
			ForceRebuild:          true,
		})
		require.NoError(t, err)
		assert.Equal(t, "fresh", tpl.Alias)
	})

	t.Run("failed insert keeps the prior template", func(t *testing.T) {
		repo := &failingInsertRepo{MemoryRepository: repository.NewMemoryRepository()}
		svc := NewTemplateService(repo, &fakeBackend{}, nil)
		old := create(t, svc, project1, "web")

		repo.failInsert = true
		_, err := svc.RequestBuild(ctx, project1, domain.BuildRequest{
			CreateTemplateRequest: domain.CreateTemplateRequest{Alias: "web"},
			ForceRebuild:          true,
		})
		require.Error(t, err)

		still, err := svc.GetTemplate(ctx, project1, old.ID)
		require.NoError(t, err)
		assert.Equal(t, "web", still.Alias)
	})
}

type failingInsertRepo struct {
	*repository.MemoryRepository
	failInsert bool
}

type failingInsertStore struct {
	domain.TemplateStore
}

func (failingInsertStore) Insert(context.Context, *domain.Template) error {
	return errors.New("disk full")
}

func (r *failingInsertRepo) InTx(ctx context.Context, fn func(domain.TemplateStore) error) error {
	return r.MemoryRepository.InTx(ctx, func(s domain.TemplateStore) error {
		if r.failInsert {
			return fn(failingInsertStore{s})
		}
		return fn(s)
	})
}

func TestUpdateTemplate(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()
	web := create(t, svc, project1, "web")
	create(t, svc, project1, "api")
	other := create(t, svc, project2, "db")

	t.Run("rename to free alias", func(t *testing.T) {
		alias := "frontend"
		tpl, err := svc.UpdateTemplate(ctx, project1, web.ID, domain.UpdateTemplateRequest{Alias: &alias})
		require.NoError(t, err)
		assert.Equal(t, "frontend", tpl.Alias)

		_, err = svc.GetByAlias(ctx, project1, "web")
		assert.ErrorIs(t, err, domain.ErrTemplateNotFound)
	})

	t.Run("rename to own alias is a no-op", func(t *testing.T) {
		alias := "frontend"
		tpl, err := svc.UpdateTemplate(ctx, project1, web.ID, domain.UpdateTemplateRequest{Alias: &alias})
		require.NoError(t, err)
		assert.Equal(t, "frontend", tpl.Alias)
	})

	t.Run("rename to taken alias conflicts", func(t *testing.T) {
		alias := "api"
		_, err := svc.UpdateTemplate(ctx, project1, web.ID, domain.UpdateTemplateRequest{Alias: &alias})
		var conflict *domain.AliasConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, "api", conflict.Alias)
	})

	t.Run("rename to alias used only in another project", func(t *testing.T) {
		alias := "db"
		_, err := svc.UpdateTemplate(ctx, project1, web.ID, domain.UpdateTemplateRequest{Alias: &alias})
		require.NoError(t, err)
	})

	t.Run("config update", func(t *testing.T) {
		tpl, err := svc.UpdateTemplate(ctx, project1, web.ID, domain.UpdateTemplateRequest{
			Config: map[string]interface{}{"cpu": 4},
		})
		require.NoError(t, err)
		assert.Equal(t, 4, tpl.Config["cpu"])
	})

	t.Run("other project's template is not found", func(t *testing.T) {
		alias := "stolen"
		_, err := svc.UpdateTemplate(ctx, project1, other.ID, domain.UpdateTemplateRequest{Alias: &alias})
		assert.ErrorIs(t, err, domain.ErrTemplateNotFound)
	})

	t.Run("malformed id is not found", func(t *testing.T) {
		_, err := svc.UpdateTemplate(ctx, project1, "not-a-uuid", domain.UpdateTemplateRequest{})
		assert.ErrorIs(t, err, domain.ErrTemplateNotFound)
	})

	t.Run("empty alias is rejected before lookup", func(t *testing.T) {
		alias := ""
		_, err := svc.UpdateTemplate(ctx, project1, uuid.NewString(), domain.UpdateTemplateRequest{Alias: &alias})
		var verr *domain.ValidationError
		assert.ErrorAs(t, err, &verr)
	})
}

func TestDeleteTemplate(t *testing.T) {
	ctx := context.Background()
	svc, _, events := newTestService()
	tpl := create(t, svc, project1, "web")
	other := create(t, svc, project2, "web")

	ok, err := svc.DeleteTemplate(ctx, project2, tpl.ID)
	require.NoError(t, err)
	assert.False(t, ok, "cannot delete another project's template")

	ok, err = svc.DeleteTemplate(ctx, project1, tpl.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.DeleteTemplate(ctx, project1, tpl.ID)
	require.NoError(t, err)
	assert.False(t, ok, "second delete reports nothing deleted")

	ok, err = svc.DeleteTemplate(ctx, project1, uuid.NewString())
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = svc.DeleteTemplate(ctx, project1, "garbage")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = svc.GetTemplate(ctx, project2, other.ID)
	assert.NoError(t, err)
	assert.Contains(t, events.types(), domain.EventDeleted)
}

func TestListTemplates_Paging(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	svc.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	for _, alias := range []string{"a", "b", "c", "d", "e"} {
		create(t, svc, project1, alias)
	}
	create(t, svc, project2, "x")

	page, err := svc.ListTemplates(ctx, project1, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), page.TotalCount)
	assert.Equal(t, 3, page.TotalPages)
	require.Len(t, page.Templates, 2)
	assert.Equal(t, "e", page.Templates[0].Alias)

	last, err := svc.ListTemplates(ctx, project1, 3, 2)
	require.NoError(t, err)
	require.Len(t, last.Templates, 1)
	assert.Equal(t, "a", last.Templates[0].Alias)

	defaults, err := svc.ListTemplates(ctx, project1, 0, 1000)
	require.NoError(t, err)
	assert.Equal(t, 1, defaults.Page)
	assert.Equal(t, MaxPageSize, defaults.PageSize)
}

func TestApplyBuildStatus(t *testing.T) {
	ctx := context.Background()
	svc, _, events := newTestService()
	tpl := create(t, svc, project1, "web")

	_, err := svc.ApplyBuildStatus(ctx, project1.ID, tpl.ID, "exploded", "")
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)

	_, err = svc.ApplyBuildStatus(ctx, project2.ID, tpl.ID, domain.StatusReady, "")
	assert.ErrorIs(t, err, domain.ErrTemplateNotFound)

	same, err := svc.ApplyBuildStatus(ctx, project1.ID, tpl.ID, domain.StatusBuilding, "")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusBuilding, same.BuildStatus)

	ready, err := svc.ApplyBuildStatus(ctx, project1.ID, tpl.ID, domain.StatusReady, "")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReady, ready.BuildStatus)
	assert.Equal(t, domain.EventStatusChanged, events.types()[len(events.types())-1])

	_, err = svc.ApplyBuildStatus(ctx, project1.ID, tpl.ID, domain.StatusFailed, "too late")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

// uuidColumnRepo fails like a uuid-typed column does when handed a
// malformed id.
type uuidColumnRepo struct {
	*repository.MemoryRepository
}

func (uuidColumnRepo) InTx(context.Context, func(domain.TemplateStore) error) error {
	return errors.New(`pq: invalid input syntax for type uuid: "not-a-uuid"`)
}

func TestApplyBuildStatus_MalformedIDsAreNotFound(t *testing.T) {
	ctx := context.Background()
	svc := NewTemplateService(uuidColumnRepo{repository.NewMemoryRepository()}, &fakeBackend{}, nil)

	_, err := svc.ApplyBuildStatus(ctx, "not-a-uuid", "5a8e7f0c-1111-4222-8333-944455556666", domain.StatusReady, "")
	assert.ErrorIs(t, err, domain.ErrTemplateNotFound)

	_, err = svc.ApplyBuildStatus(ctx, project1.ID, "not-a-uuid", domain.StatusReady, "")
	assert.ErrorIs(t, err, domain.ErrTemplateNotFound)
}

func TestReconcileStale(t *testing.T) {
	ResetMetrics()
	ctx := context.Background()
	svc, _, _ := newTestService()

	stale := create(t, svc, project1, "stale")
	done := create(t, svc, project1, "done")
	_, err := svc.ApplyBuildStatus(ctx, project1.ID, done.ID, domain.StatusReady, "")
	require.NoError(t, err)

	n, err := svc.ReconcileStale(ctx, time.Hour, 10)
	require.NoError(t, err)
	assert.Zero(t, n, "nothing older than the timeout yet")

	svc.now = func() time.Time { return time.Now().UTC().Add(2 * time.Hour) }
	n, err = svc.ReconcileStale(ctx, time.Hour, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := svc.GetTemplate(ctx, project1, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, got.BuildStatus)
	assert.Equal(t, "build timed out", got.BuildError)

	finished, err := svc.GetTemplate(ctx, project1, done.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReady, finished.BuildStatus)
	assert.Equal(t, int64(1), GetMetrics().BuildsTimedOut)
}

// TestAliasScoping_Property checks that alias uniqueness is per project:
// the same alias is accepted once in every project and rejected on repeat.
func TestAliasScoping_Property(t *testing.T) {
	rapid.Check(t, func(r *rapid.T) {
		svc, _, _ := newTestService()
		ctx := context.Background()

		numProjects := rapid.IntRange(2, 4).Draw(r, "numProjects")
		projects := make([]projectdomain.Project, numProjects)
		for i := range projects {
			projects[i] = projectdomain.Project{ID: uuid.NewString(), Name: rapid.StringMatching(`project-[a-z]{3,8}`).Draw(r, "name")}
		}
		aliases := rapid.SliceOfNDistinct(rapid.StringMatching(`[a-z][a-z0-9-]{0,15}`), 1, 6, rapid.ID[string]).Draw(r, "aliases")

		ids := make(map[string]bool)
		for _, p := range projects {
			for _, alias := range aliases {
				tpl, err := svc.CreateTemplate(ctx, p, domain.CreateTemplateRequest{Alias: alias})
				if err != nil {
					r.Fatalf("create %q in %s: %v", alias, p.Name, err)
				}
				if ids[tpl.ID] {
					r.Fatalf("duplicate id %s", tpl.ID)
				}
				ids[tpl.ID] = true
			}
		}

		p := projects[rapid.IntRange(0, numProjects-1).Draw(r, "project")]
		alias := rapid.SampledFrom(aliases).Draw(r, "alias")
		_, err := svc.CreateTemplate(ctx, p, domain.CreateTemplateRequest{Alias: alias})
		var conflict *domain.AliasConflictError
		if !errors.As(err, &conflict) {
			r.Fatalf("expected alias conflict for %q in %s, got %v", alias, p.Name, err)
		}

		for _, q := range projects {
			tpl, err := svc.GetByAlias(ctx, q, alias)
			if err != nil {
				r.Fatalf("lookup %q in %s: %v", alias, q.Name, err)
			}
			if tpl.ProjectID != q.ID {
				r.Fatalf("lookup in %s returned template of %s", q.ID, tpl.ProjectID)
			}
		}
	})
}
