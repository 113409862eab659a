package tasks

import (
	"slices"
	"time"
)

// Service performs create/update/delete/mark operations on a caller-owned
// collection. It never touches storage.
type Service struct {
	now func() time.Time
}

func NewService() *Service {
	return &Service{now: func() time.Time { return time.Now().UTC() }}
}

// NewServiceWithClock is NewService with a fixed time source.
func NewServiceWithClock(now func() time.Time) *Service {
	return &Service{now: now}
}

// Create appends a new, not yet persisted item with a placeholder id.
func (s *Service) Create(items []Task, description string) []Task {
	return append(items, Task{
		ID:          placeholderID(items),
		Description: description,
		CreatedAt:   s.now(),
	})
}

// Update replaces the description of the item with id and stamps ModifiedAt.
// CreatedAt is left untouched.
func (s *Service) Update(items []Task, id int64, description string) ([]Task, error) {
	i := indexOf(items, id)
	if i < 0 {
		return items, ErrNotFound
	}
	items[i].Description = description
	items[i].ModifiedAt = s.now()
	return items, nil
}

func (s *Service) Delete(items []Task, id int64) ([]Task, error) {
	i := indexOf(items, id)
	if i < 0 {
		return items, ErrNotFound
	}
	return slices.Delete(items, i, i+1), nil
}

func (s *Service) MarkComplete(items []Task, id int64, isComplete bool) ([]Task, error) {
	i := indexOf(items, id)
	if i < 0 {
		return items, ErrNotFound
	}
	items[i].IsComplete = isComplete
	items[i].ModifiedAt = s.now()
	return items, nil
}

func (s *Service) ListAll(items []Task) []Task { return items }

// Find returns the first item with id.
func Find(items []Task, id int64) (Task, bool) {
	i := indexOf(items, id)
	if i < 0 {
		return Task{}, false
	}
	return items[i], true
}

func indexOf(items []Task, id int64) int {
	return slices.IndexFunc(items, func(t Task) bool { return t.ID == id })
}
