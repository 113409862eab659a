package tasks

import "time"

// Task is one todo item. An ID <= 0 is a placeholder for an item that has
// never been persisted; repositories replace it on Save.
type Task struct {
	ID          int64     `json:"id"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	ModifiedAt  time.Time `json:"modified_at,omitzero"`
	IsComplete  bool      `json:"is_complete"`
}

// Persisted reports whether the ID was issued by a repository.
func (t Task) Persisted() bool { return t.ID > 0 }

// placeholderID returns an unused negative id for items.
func placeholderID(items []Task) int64 {
	var lowest int64
	for _, t := range items {
		if t.ID < lowest {
			lowest = t.ID
		}
	}
	return lowest - 1
}
