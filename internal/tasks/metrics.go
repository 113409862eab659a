package tasks

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	repoOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "todo_repository_operations_total",
			Help: "Repository operations by backend, operation and outcome",
		},
		[]string{"backend", "op", "outcome"},
	)

	repoOpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "todo_repository_operation_duration_seconds",
			Help:    "Histogram of repository operation durations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "op"},
	)

	reconcileRows = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "todo_reconcile_rows_total",
			Help: "Rows touched by save reconciliation",
		},
		[]string{"backend", "action"},
	)

	malformedRecords = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "todo_malformed_records_total",
			Help: "Stored lines skipped because they could not be parsed",
		},
	)
)

func init() {
	prometheus.MustRegister(repoOpsTotal, repoOpDuration, reconcileRows, malformedRecords)
}

// Instrument wraps repo so every call is timed, counted and traced.
func Instrument(repo Repository, backend string) Repository {
	return &instrumentedRepo{
		next:    repo,
		backend: backend,
		tracer:  otel.Tracer("github.com/s1natex/todo-api-GO/internal/tasks"),
	}
}

type instrumentedRepo struct {
	next    Repository
	backend string
	tracer  trace.Tracer
}

func (r *instrumentedRepo) Load(ctx context.Context) ([]Task, error) {
	ctx, done := r.start(ctx, "load")
	items, err := r.next.Load(ctx)
	done(err, attribute.Int("todo.items", len(items)))
	return items, err
}

func (r *instrumentedRepo) Save(ctx context.Context, items []Task) ([]Task, error) {
	ctx, done := r.start(ctx, "save")
	out, err := r.next.Save(ctx, items)
	done(err, attribute.Int("todo.items", len(items)))
	return out, err
}

func (r *instrumentedRepo) CreateItem(ctx context.Context, description string) (Task, error) {
	ctx, done := r.start(ctx, "create")
	t, err := r.next.CreateItem(ctx, description)
	done(err, attribute.Int64("todo.id", t.ID))
	return t, err
}

func (r *instrumentedRepo) Close() error { return r.next.Close() }

func (r *instrumentedRepo) Ping(ctx context.Context) error {
	if p, ok := r.next.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// LoadReport forwards to the wrapped repository. Backends that cannot hold
// malformed records report none.
func (r *instrumentedRepo) LoadReport(ctx context.Context) ([]Task, []*MalformedRecordError, error) {
	rep, ok := r.next.(Reporter)
	if !ok {
		items, err := r.Load(ctx)
		return items, nil, err
	}
	ctx, done := r.start(ctx, "load")
	items, bad, err := rep.LoadReport(ctx)
	done(err, attribute.Int("todo.items", len(items)), attribute.Int("todo.malformed", len(bad)))
	return items, bad, err
}

func (r *instrumentedRepo) start(ctx context.Context, op string) (context.Context, func(error, ...attribute.KeyValue)) {
	begin := time.Now()
	ctx, span := r.tracer.Start(ctx, "repository."+op, trace.WithAttributes(
		attribute.String("todo.backend", r.backend),
	))
	return ctx, func(err error, attrs ...attribute.KeyValue) {
		outcome := "ok"
		if err != nil {
			outcome = "error"
			if errors.Is(err, ErrDuplicateID) || errors.Is(err, ErrLineBreak) {
				outcome = "rejected"
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.SetAttributes(attrs...)
		span.End()

		repoOpsTotal.WithLabelValues(r.backend, op, outcome).Inc()
		repoOpDuration.WithLabelValues(r.backend, op).Observe(time.Since(begin).Seconds())
	}
}
