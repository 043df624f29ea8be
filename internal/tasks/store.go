package tasks

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrStoreUnavailable wraps every failure to read or write the backing
	// collection, so callers can tell "empty" apart from "unreadable".
	ErrStoreUnavailable = errors.New("task store unavailable")
	ErrNotFound         = errors.New("task not found")
)

// Store persists the whole task collection at once. Implementations must
// return a slice the caller may mutate freely.
type Store interface {
	LoadAll(ctx context.Context) ([]Task, error)
	SaveAll(ctx context.Context, tasks []Task) error
}

type MemoryStore struct {
	mu    sync.Mutex
	tasks []Task
}

func NewMemoryStore(seed ...Task) *MemoryStore {
	return &MemoryStore{tasks: append([]Task(nil), seed...)}
}

func (s *MemoryStore) LoadAll(ctx context.Context) ([]Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Task, len(s.tasks))
	copy(out, s.tasks)
	return out, nil
}

func (s *MemoryStore) SaveAll(ctx context.Context, tasks []Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tasks = append(s.tasks[:0:0], tasks...)
	return nil
}
