package tasks

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Service implements the task operations as read-modify-write cycles over a
// Store. Cycles are serialized so concurrent requests in one process do not
// overwrite each other's changes.
type Service struct {
	store Store
	newID func() string

	mu sync.Mutex
}

type Option func(*Service)

// WithIDGenerator replaces the default random UUID generator.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) { s.newID = fn }
}

func NewService(store Store, opts ...Option) *Service {
	s := &Service{store: store, newID: uuid.NewString}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) List(ctx context.Context) ([]Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.store.LoadAll(ctx)
}

func (s *Service) Get(ctx context.Context, id string) (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.store.LoadAll(ctx)
	if err != nil {
		return Task{}, err
	}
	i := indexOf(list, id)
	if i < 0 {
		return Task{}, ErrNotFound
	}
	return list[i], nil
}

func (s *Service) Create(ctx context.Context, in Input) (Task, error) {
	if err := validate(in, true); err != nil {
		return Task{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.store.LoadAll(ctx)
	if err != nil {
		return Task{}, err
	}

	t := Task{ID: s.newID(), Descricao: *in.Descricao}
	if in.Completa != nil {
		t.Completa = *in.Completa
	}
	list = append(list, t)

	if err := s.store.SaveAll(ctx, list); err != nil {
		return Task{}, err
	}
	return t, nil
}

// Update applies only the fields present in in. A missing task is reported
// before any field validation.
func (s *Service) Update(ctx context.Context, id string, in Input) (Task, error) {
	return s.mutate(ctx, id, func(t *Task) error {
		if err := validate(in, false); err != nil {
			return err
		}
		if in.Descricao != nil {
			t.Descricao = *in.Descricao
		}
		if in.Completa != nil {
			t.Completa = *in.Completa
		}
		return nil
	})
}

func (s *Service) SetCompleta(ctx context.Context, id string, completa bool) (Task, error) {
	return s.mutate(ctx, id, func(t *Task) error {
		t.Completa = completa
		return nil
	})
}

func (s *Service) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.store.LoadAll(ctx)
	if err != nil {
		return err
	}
	i := indexOf(list, id)
	if i < 0 {
		return ErrNotFound
	}
	list = append(list[:i], list[i+1:]...)
	return s.store.SaveAll(ctx, list)
}

func (s *Service) mutate(ctx context.Context, id string, apply func(*Task) error) (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.store.LoadAll(ctx)
	if err != nil {
		return Task{}, err
	}
	i := indexOf(list, id)
	if i < 0 {
		return Task{}, ErrNotFound
	}
	if err := apply(&list[i]); err != nil {
		return Task{}, err
	}
	if err := s.store.SaveAll(ctx, list); err != nil {
		return Task{}, err
	}
	return list[i], nil
}
