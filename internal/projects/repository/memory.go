package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/GoSim-25-26J-441/template-registry/internal/projects/domain"
)

// MemoryRepository keeps projects and keys in process memory.
type MemoryRepository struct {
	mu       sync.RWMutex
	projects map[string]domain.Project
	keys     map[string]domain.APIKey // by prefix
}

var _ domain.ProjectRepository = (*MemoryRepository)(nil)

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		projects: make(map[string]domain.Project),
		keys:     make(map[string]domain.APIKey),
	}
}

func (m *MemoryRepository) Create(_ context.Context, p *domain.Project, key *domain.APIKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, taken := m.keys[key.KeyPrefix]; taken {
		return domain.ErrKeyPrefixTaken
	}
	m.projects[p.ID] = *p
	m.keys[key.KeyPrefix] = *key
	return nil
}

func (m *MemoryRepository) GetByID(_ context.Context, id string) (*domain.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.projects[id]
	if !ok {
		return nil, domain.ErrProjectNotFound
	}
	return &p, nil
}

func (m *MemoryRepository) List(_ context.Context) ([]domain.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.Project, 0, len(m.projects))
	for _, p := range m.projects {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryRepository) AddKey(_ context.Context, key *domain.APIKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.projects[key.ProjectID]; !ok {
		return domain.ErrProjectNotFound
	}
	if _, taken := m.keys[key.KeyPrefix]; taken {
		return domain.ErrKeyPrefixTaken
	}
	m.keys[key.KeyPrefix] = *key
	return nil
}

func (m *MemoryRepository) FindActiveKeyByPrefix(_ context.Context, prefix string) (*domain.APIKey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	k, ok := m.keys[prefix]
	if !ok || !k.IsActive {
		return nil, domain.ErrInvalidAPIKey
	}
	return &k, nil
}

func (m *MemoryRepository) RevokeKey(_ context.Context, projectID, prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k, ok := m.keys[prefix]
	if !ok || !k.IsActive || k.ProjectID != projectID {
		return domain.ErrInvalidAPIKey
	}
	k.IsActive = false
	m.keys[prefix] = k
	return nil
}

func (m *MemoryRepository) TouchKey(_ context.Context, keyID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for prefix, k := range m.keys {
		if k.ID == keyID {
			t := at
			k.LastUsedAt = &t
			m.keys[prefix] = k
			return nil
		}
	}
	return nil
}
