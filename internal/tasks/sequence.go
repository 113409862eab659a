package tasks

import (
	"fmt"
	"sync"
)

// Sequence hands out positive ids. A repository owns one and feeds it every
// id it sees so that issued ids never collide with stored ones.
type Sequence struct {
	mu   sync.Mutex
	last int64
}

func (s *Sequence) Next() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last++
	return s.last
}

// Observe raises the high-water mark to id.
func (s *Sequence) Observe(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id > s.last {
		s.last = id
	}
}

// checkUnique returns ErrDuplicateID if any id appears twice in items.
func checkUnique(items []Task) error {
	seen := make(map[int64]struct{}, len(items))
	for _, t := range items {
		if _, ok := seen[t.ID]; ok {
			return fmt.Errorf("%w: %d", ErrDuplicateID, t.ID)
		}
		seen[t.ID] = struct{}{}
	}
	return nil
}
