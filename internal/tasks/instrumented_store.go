package tasks

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// InstrumentedStore records a span and a latency observation for every
// call to the wrapped Store.
type InstrumentedStore struct {
	next     Store
	duration *prometheus.HistogramVec
}

func NewInstrumentedStore(next Store, reg prometheus.Registerer) (*InstrumentedStore, error) {
	duration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tarefas_store_duration_seconds",
			Help:    "Latency of task store operations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op", "result"},
	)
	if reg != nil {
		if err := reg.Register(duration); err != nil {
			return nil, err
		}
	}
	return &InstrumentedStore{next: next, duration: duration}, nil
}

func (s *InstrumentedStore) LoadAll(ctx context.Context) ([]Task, error) {
	var out []Task
	err := s.observe(ctx, "load", func(ctx context.Context) error {
		var err error
		out, err = s.next.LoadAll(ctx)
		return err
	})
	return out, err
}

func (s *InstrumentedStore) SaveAll(ctx context.Context, tasks []Task) error {
	return s.observe(ctx, "save", func(ctx context.Context) error {
		return s.next.SaveAll(ctx, tasks)
	}, attribute.Int("tarefas.count", len(tasks)))
}

func (s *InstrumentedStore) observe(ctx context.Context, op string, fn func(context.Context) error, attrs ...attribute.KeyValue) error {
	ctx, span := otel.Tracer("tarefas/store").Start(ctx, "tasks.store."+op)
	defer span.End()
	span.SetAttributes(attrs...)

	start := time.Now()
	err := fn(ctx)

	result := "ok"
	if err != nil {
		result = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	s.duration.WithLabelValues(op, result).Observe(time.Since(start).Seconds())
	return err
}
