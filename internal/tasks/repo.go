package tasks

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"
)

// Repository is the durable copy of the todo list.
//
// Save replaces the stored list with items and returns the collection as it
// was persisted: placeholder ids (<= 0) are swapped for repository-issued
// ids, everything else is returned unchanged and in the same order.
type Repository interface {
	Load(ctx context.Context) ([]Task, error)
	Save(ctx context.Context, items []Task) ([]Task, error)
	CreateItem(ctx context.Context, description string) (Task, error)
	Close() error
}

// Pinger is implemented by repositories that can report readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Reporter is implemented by repositories that skip unreadable records on
// Load. LoadReport returns the readable items and the skipped records.
type Reporter interface {
	LoadReport(ctx context.Context) ([]Task, []*MalformedRecordError, error)
}

type InMemoryRepo struct {
	mu    sync.Mutex
	seq   Sequence
	store map[int64]Task
}

func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{
		store: make(map[int64]Task),
	}
}

func (r *InMemoryRepo) CreateItem(_ context.Context, description string) (Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t := Task{
		ID:          r.seq.Next(),
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}
	r.store[t.ID] = t
	return t, nil
}

func (r *InMemoryRepo) Load(_ context.Context) ([]Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Task, 0, len(r.store))
	for _, t := range r.store {
		out = append(out, t)
	}
	sortByID(out)
	return out, nil
}

func (r *InMemoryRepo) Save(_ context.Context, items []Task) ([]Task, error) {
	if err := checkUnique(items); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	out := assignIDs(items, &r.seq)
	next := make(map[int64]Task, len(out))
	for _, t := range out {
		next[t.ID] = t
	}
	r.store = next
	return out, nil
}

func (r *InMemoryRepo) Close() error { return nil }

// assignIDs copies items, replacing placeholder ids with ids from seq.
func assignIDs(items []Task, seq *Sequence) []Task {
	out := slices.Clone(items)
	for _, t := range out {
		seq.Observe(t.ID)
	}
	for i := range out {
		if !out[i].Persisted() {
			out[i].ID = seq.Next()
		}
	}
	return out
}

func sortByID(items []Task) {
	slices.SortFunc(items, func(a, b Task) int { return cmp.Compare(a.ID, b.ID) })
}
