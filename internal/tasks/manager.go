package tasks

import (
	"context"
	"strings"
	"sync"
)

// Manager runs one user action against a repository: load the list, apply
// a single Service operation, save the result. Actions inside one process are
// serialised; separate processes sharing a backend still race.
type Manager struct {
	mu   sync.Mutex
	repo Repository
	svc  *Service
}

func NewManager(repo Repository, svc *Service) *Manager {
	if svc == nil {
		svc = NewService()
	}
	return &Manager{repo: repo, svc: svc}
}

func (m *Manager) Repository() Repository { return m.repo }

func (m *Manager) List(ctx context.Context) ([]Task, error) {
	items, err := m.repo.Load(ctx)
	if err != nil {
		return nil, err
	}
	return m.svc.ListAll(items), nil
}

func (m *Manager) Get(ctx context.Context, id int64) (Task, error) {
	items, err := m.repo.Load(ctx)
	if err != nil {
		return Task{}, err
	}
	t, ok := Find(items, id)
	if !ok {
		return Task{}, ErrNotFound
	}
	return t, nil
}

// Create stores a new item and returns it with its repository id.
func (m *Manager) Create(ctx context.Context, description string) (Task, error) {
	if strings.TrimSpace(description) == "" {
		return Task{}, ErrDescriptionRequired
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.repo.CreateItem(ctx, description)
}

func (m *Manager) Update(ctx context.Context, id int64, description string) (Task, error) {
	if strings.TrimSpace(description) == "" {
		return Task{}, ErrDescriptionRequired
	}
	return m.mutateOne(ctx, id, func(items []Task) ([]Task, error) {
		return m.svc.Update(items, id, description)
	})
}

func (m *Manager) SetComplete(ctx context.Context, id int64, isComplete bool) (Task, error) {
	return m.mutateOne(ctx, id, func(items []Task) ([]Task, error) {
		return m.svc.MarkComplete(items, id, isComplete)
	})
}

func (m *Manager) Delete(ctx context.Context, id int64) error {
	_, err := m.mutate(ctx, func(items []Task) ([]Task, error) {
		return m.svc.Delete(items, id)
	})
	return err
}

func (m *Manager) mutateOne(ctx context.Context, id int64, fn func([]Task) ([]Task, error)) (Task, error) {
	saved, err := m.mutate(ctx, fn)
	if err != nil {
		return Task{}, err
	}
	t, _ := Find(saved, id)
	return t, nil
}

// mutate saves only when fn succeeded; a not-found outcome leaves the
// repository untouched.
func (m *Manager) mutate(ctx context.Context, fn func([]Task) ([]Task, error)) ([]Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	items, err := m.repo.Load(ctx)
	if err != nil {
		return nil, err
	}
	items, err = fn(items)
	if err != nil {
		return nil, err
	}
	return m.repo.Save(ctx, items)
}
