package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/GoSim-25-26J-441/template-registry/internal/templates/domain"
)

// MemoryRepository is an in-process TemplateRepository used for the
// "memory" database driver and in tests. It enforces the same
// (project_id, alias) uniqueness as the SQL schema. Transactions are
// serialized and work on a private copy that is swapped in on commit.
type MemoryRepository struct {
	mu   sync.RWMutex
	rows map[string]domain.Template
}

var _ domain.TemplateRepository = (*MemoryRepository)(nil)

// NewMemoryRepository creates an empty MemoryRepository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{rows: make(map[string]domain.Template)}
}

func (m *MemoryRepository) InTx(ctx context.Context, fn func(store domain.TemplateStore) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	staged := make(map[string]domain.Template, len(m.rows))
	for id, t := range m.rows {
		staged[id] = t
	}

	if err := fn(memView{rows: staged}); err != nil {
		return err
	}
	m.rows = staged
	return nil
}

func (m *MemoryRepository) FindByID(ctx context.Context, projectID, id string) (*domain.Template, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return memView{rows: m.rows}.FindByID(ctx, projectID, id)
}

func (m *MemoryRepository) FindByProjectAndAlias(ctx context.Context, projectID, alias string) (*domain.Template, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return memView{rows: m.rows}.FindByProjectAndAlias(ctx, projectID, alias)
}

func (m *MemoryRepository) ExistsByProjectAndAlias(ctx context.Context, projectID, alias, excludeID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return memView{rows: m.rows}.ExistsByProjectAndAlias(ctx, projectID, alias, excludeID)
}

func (m *MemoryRepository) ListByProject(ctx context.Context, projectID string, limit, offset int) ([]domain.Template, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return memView{rows: m.rows}.ListByProject(ctx, projectID, limit, offset)
}

func (m *MemoryRepository) ListStale(ctx context.Context, before time.Time, limit int) ([]domain.Template, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return memView{rows: m.rows}.ListStale(ctx, before, limit)
}

func (m *MemoryRepository) Insert(ctx context.Context, t *domain.Template) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return memView{rows: m.rows}.Insert(ctx, t)
}

func (m *MemoryRepository) Update(ctx context.Context, t *domain.Template) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return memView{rows: m.rows}.Update(ctx, t)
}

func (m *MemoryRepository) UpdateStatus(ctx context.Context, projectID, id string, status domain.BuildStatus, buildErr string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return memView{rows: m.rows}.UpdateStatus(ctx, projectID, id, status, buildErr)
}

func (m *MemoryRepository) Delete(ctx context.Context, projectID, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return memView{rows: m.rows}.Delete(ctx, projectID, id)
}

// memView implements TemplateStore over a map; callers hold the lock.
type memView struct {
	rows map[string]domain.Template
}

func (v memView) FindByID(_ context.Context, projectID, id string) (*domain.Template, error) {
	t, ok := v.rows[id]
	if !ok || t.ProjectID != projectID {
		return nil, domain.ErrTemplateNotFound
	}
	c := t.Clone()
	return &c, nil
}

func (v memView) FindByProjectAndAlias(_ context.Context, projectID, alias string) (*domain.Template, error) {
	for _, t := range v.rows {
		if t.ProjectID == projectID && t.Alias == alias {
			c := t.Clone()
			return &c, nil
		}
	}
	return nil, domain.ErrTemplateNotFound
}

func (v memView) ExistsByProjectAndAlias(_ context.Context, projectID, alias, excludeID string) (bool, error) {
	for id, t := range v.rows {
		if t.ProjectID == projectID && t.Alias == alias && (excludeID == "" || id != excludeID) {
			return true, nil
		}
	}
	return false, nil
}

func (v memView) ListByProject(_ context.Context, projectID string, limit, offset int) ([]domain.Template, int64, error) {
	all := make([]domain.Template, 0)
	for _, t := range v.rows {
		if t.ProjectID == projectID {
			all = append(all, t.Clone())
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	total := int64(len(all))
	if offset >= len(all) {
		return []domain.Template{}, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (v memView) ListStale(_ context.Context, before time.Time, limit int) ([]domain.Template, error) {
	out := make([]domain.Template, 0)
	for _, t := range v.rows {
		if (t.BuildStatus == domain.StatusPending || t.BuildStatus == domain.StatusBuilding) && t.UpdatedAt.Before(before) {
			out = append(out, t.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (v memView) Insert(ctx context.Context, t *domain.Template) error {
	if taken, _ := v.ExistsByProjectAndAlias(ctx, t.ProjectID, t.Alias, ""); taken {
		return domain.ErrConstraintViolation
	}
	v.rows[t.ID] = t.Clone()
	return nil
}

func (v memView) Update(ctx context.Context, t *domain.Template) error {
	existing, ok := v.rows[t.ID]
	if !ok || existing.ProjectID != t.ProjectID {
		return domain.ErrTemplateNotFound
	}
	if taken, _ := v.ExistsByProjectAndAlias(ctx, t.ProjectID, t.Alias, t.ID); taken {
		return domain.ErrConstraintViolation
	}
	existing.Alias = t.Alias
	updated := t.Clone()
	existing.Config = updated.Config
	existing.BuildFile = updated.BuildFile
	existing.UpdatedAt = t.UpdatedAt
	v.rows[t.ID] = existing
	return nil
}

func (v memView) UpdateStatus(_ context.Context, projectID, id string, status domain.BuildStatus, buildErr string) error {
	existing, ok := v.rows[id]
	if !ok || existing.ProjectID != projectID {
		return domain.ErrTemplateNotFound
	}
	existing.BuildStatus = status
	existing.BuildError = buildErr
	existing.UpdatedAt = time.Now()
	v.rows[id] = existing
	return nil
}

func (v memView) Delete(_ context.Context, projectID, id string) (bool, error) {
	existing, ok := v.rows[id]
	if !ok || existing.ProjectID != projectID {
		return false, nil
	}
	delete(v.rows, id)
	return true, nil
}
