package console

import (
	"context"
	"slices"

	"github.com/s1natex/todo-api-GO/internal/tasks"
)

// Session is the direct backend: the collection is loaded once, changed
// with the collection service, and saved after every change. The
// reconciled collection Save returns replaces the session copy so new
// items carry their stored ids.
type Session struct {
	repo  tasks.Repository
	svc   *tasks.Service
	items []tasks.Task
}

func OpenSession(ctx context.Context, repo tasks.Repository, svc *tasks.Service) (*Session, error) {
	if svc == nil {
		svc = tasks.NewService()
	}
	items, err := repo.Load(ctx)
	if err != nil {
		return nil, err
	}
	return &Session{repo: repo, svc: svc, items: items}, nil
}

func (s *Session) List(context.Context) ([]tasks.Task, error) {
	return slices.Clone(s.svc.ListAll(s.items)), nil
}

func (s *Session) Get(_ context.Context, id int64) (tasks.Task, error) {
	t, ok := tasks.Find(s.items, id)
	if !ok {
		return tasks.Task{}, tasks.ErrNotFound
	}
	return t, nil
}

func (s *Session) Create(ctx context.Context, description string) (tasks.Task, error) {
	saved, err := s.commit(ctx, s.svc.Create(slices.Clone(s.items), description))
	if err != nil {
		return tasks.Task{}, err
	}
	return saved[len(saved)-1], nil
}

func (s *Session) Update(ctx context.Context, id int64, description string) error {
	return s.apply(ctx, func(items []tasks.Task) ([]tasks.Task, error) {
		return s.svc.Update(items, id, description)
	})
}

func (s *Session) SetComplete(ctx context.Context, id int64, isComplete bool) error {
	return s.apply(ctx, func(items []tasks.Task) ([]tasks.Task, error) {
		return s.svc.MarkComplete(items, id, isComplete)
	})
}

func (s *Session) Delete(ctx context.Context, id int64) error {
	return s.apply(ctx, func(items []tasks.Task) ([]tasks.Task, error) {
		return s.svc.Delete(items, id)
	})
}

// apply works on a copy so a failed change or save leaves the session as it was.
func (s *Session) apply(ctx context.Context, fn func([]tasks.Task) ([]tasks.Task, error)) error {
	next, err := fn(slices.Clone(s.items))
	if err != nil {
		return err
	}
	_, err = s.commit(ctx, next)
	return err
}

func (s *Session) commit(ctx context.Context, next []tasks.Task) ([]tasks.Task, error) {
	saved, err := s.repo.Save(ctx, next)
	if err != nil {
		return nil, err
	}
	s.items = saved
	return saved, nil
}
