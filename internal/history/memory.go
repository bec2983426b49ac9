package history

import (
	"fmt"
	"sort"
	"sync"

	"blogback/internal/blog"
	"blogback/internal/model"
)

// MemoryHistory is an in-memory History implementation, useful for
// testing and for running without persistence. Safe for concurrent use.
type MemoryHistory struct {
	clock blog.Clock

	mu     sync.Mutex
	nextID int64
	ops    map[int64]*model.Operation
}

// NewMemoryHistory creates an empty in-memory history.
func NewMemoryHistory(clock blog.Clock) *MemoryHistory {
	return &MemoryHistory{
		clock:  clock,
		nextID: 1,
		ops:    make(map[int64]*model.Operation),
	}
}

// Begin records the start of an operation and returns its id.
func (h *MemoryHistory) Begin(operation, archive string) (int64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	h.ops[id] = &model.Operation{
		ID:        id,
		Operation: operation,
		Archive:   archive,
		Status:    "running",
		StartedAt: h.clock.Now().UTC(),
	}
	return id, nil
}

// Finish marks an operation finished with the given status and message.
func (h *MemoryHistory) Finish(id int64, status, message string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	op, ok := h.ops[id]
	if !ok {
		return fmt.Errorf("%w: operation %d", blog.ErrNotFound, id)
	}
	now := h.clock.Now().UTC()
	op.Status = status
	op.Message = message
	op.FinishedAt = &now
	return nil
}

// List returns the most recent operations, newest first.
func (h *MemoryHistory) List(limit int) ([]*model.Operation, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ops := make([]*model.Operation, 0, len(h.ops))
	for _, op := range h.ops {
		copied := *op
		ops = append(ops, &copied)
	}
	sort.Slice(ops, func(i, j int) bool {
		if ops[i].StartedAt.Equal(ops[j].StartedAt) {
			return ops[i].ID > ops[j].ID
		}
		return ops[i].StartedAt.After(ops[j].StartedAt)
	})
	if limit > 0 && len(ops) > limit {
		ops = ops[:limit]
	}
	return ops, nil
}

// Close is a no-op for the in-memory history.
func (h *MemoryHistory) Close() error {
	return nil
}

// Compile-time check that MemoryHistory implements blog.History
var _ blog.History = (*MemoryHistory)(nil)
