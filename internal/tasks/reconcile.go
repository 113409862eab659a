package tasks

import "slices"

// reconcilePlan is the set of row operations that turns the stored id set
// into the incoming collection.
type reconcilePlan struct {
	updates []Task  // stored and incoming
	inserts []Task  // incoming with an explicit id the store has never seen
	creates []int   // indexes of incoming placeholders; the store assigns ids
	deletes []int64 // stored but no longer incoming
}

func planReconcile(existing []int64, incoming []Task) reconcilePlan {
	stored := make(map[int64]struct{}, len(existing))
	for _, id := range existing {
		stored[id] = struct{}{}
	}

	var p reconcilePlan
	kept := make(map[int64]struct{}, len(incoming))
	for i, t := range incoming {
		if !t.Persisted() {
			p.creates = append(p.creates, i)
			continue
		}
		kept[t.ID] = struct{}{}
		if _, ok := stored[t.ID]; ok {
			p.updates = append(p.updates, t)
		} else {
			p.inserts = append(p.inserts, t)
		}
	}
	for _, id := range existing {
		if _, ok := kept[id]; !ok {
			p.deletes = append(p.deletes, id)
		}
	}
	slices.Sort(p.deletes)
	return p
}

func (p reconcilePlan) empty() bool {
	return len(p.updates) == 0 && len(p.inserts) == 0 && len(p.creates) == 0 && len(p.deletes) == 0
}
