package sim

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/san-kum/chembox/internal/dynamo"
)

const tracerName = "github.com/san-kum/chembox/internal/sim"

// Simulator drives a solver over the horizon in fixed batches, committing
// the state at every batch boundary.
type Simulator struct {
	sys       dynamo.System
	solver    dynamo.Solver
	cfg       Config
	metrics   []dynamo.Metric
	observers []Observer
	species   []string
	logger    *slog.Logger
	tracer    trace.Tracer
	phase     atomic.Int32
}

type Option func(*Simulator)

func WithLogger(l *slog.Logger) Option {
	return func(s *Simulator) { s.logger = l }
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Simulator) { s.tracer = t }
}

func WithObserver(o Observer) Option {
	return func(s *Simulator) { s.observers = append(s.observers, o) }
}

func WithMetrics(m ...dynamo.Metric) Option {
	return func(s *Simulator) { s.metrics = append(s.metrics, m...) }
}

// WithSpecies labels the columns of the produced series.
func WithSpecies(names []string) Option {
	return func(s *Simulator) { s.species = append([]string(nil), names...) }
}

// New validates the run configuration against the system. All
// configuration errors surface here, before any integration.
func New(sys dynamo.System, solver dynamo.Solver, cfg Config, opts ...Option) (*Simulator, error) {
	if sys == nil || solver == nil {
		return nil, fmt.Errorf("%w: simulator needs a system and a solver", dynamo.ErrConfiguration)
	}
	if err := cfg.Validate(sys.Dim()); err != nil {
		return nil, err
	}
	s := &Simulator{
		sys:    sys,
		solver: solver,
		cfg:    cfg,
		logger: slog.Default().With(slog.String("component", "sim")),
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.species != nil && len(s.species) != sys.Dim() {
		return nil, fmt.Errorf("%w: %d species labels for %d species", dynamo.ErrDimensionMismatch, len(s.species), sys.Dim())
	}
	return s, nil
}

func (s *Simulator) AddObserver(o Observer) { s.observers = append(s.observers, o) }
func (s *Simulator) Config() Config         { return s.cfg }
func (s *Simulator) Phase() Phase           { return Phase(s.phase.Load()) }
func (s *Simulator) setPhase(p Phase)       { s.phase.Store(int32(p)) }

// Run integrates from x0 until the horizon is covered. On failure it
// returns no series and a *dynamo.BatchError carrying the last committed
// state.
func (s *Simulator) Run(ctx context.Context, x0 dynamo.State) (*Series, error) {
	n := s.sys.Dim()
	if len(x0) != n {
		return nil, fmt.Errorf("%w: initial state has %d entries for %d species", dynamo.ErrDimensionMismatch, len(x0), n)
	}
	if !x0.IsValid() {
		return nil, dynamo.ErrInvalidState
	}

	ctx, runSpan := s.tracer.Start(ctx, "sim.Run",
		trace.WithAttributes(
			attribute.String("name", s.cfg.Name),
			attribute.String("solver", s.solver.Name()),
			attribute.Float64("horizon", s.cfg.Horizon),
			attribute.Float64("batch_step", s.cfg.BatchStep),
		),
	)
	defer runSpan.End()

	for _, m := range s.metrics {
		m.Reset()
	}

	rows := s.cfg.Rows()
	series := newSeries(s.cfg.Name, rows)
	series.Species = s.species
	x := x0.Clone()
	start := time.Now()

	s.logger.Info("run started",
		slog.String("name", s.cfg.Name),
		slog.String("solver", s.solver.Name()),
		slog.Int("species", n),
		slog.Int("batches", rows),
	)

	for batch := 0; batch < rows; batch++ {
		elapsed := float64(batch) * s.cfg.BatchStep
		s.setPhase(BatchRunning)

		xEnd, stats, err := s.runBatch(ctx, batch, elapsed, x)
		if err != nil {
			s.setPhase(Finished)
			runSpan.RecordError(err)
			runSpan.SetStatus(codes.Error, "batch failed")
			s.logger.Error("batch failed",
				slog.Int("batch", batch),
				slog.Float64("elapsed", elapsed),
				slog.Any("error", err),
			)
			return nil, &dynamo.BatchError{Batch: batch, Elapsed: elapsed, State: x.Clone(), Wrapped: err}
		}

		x = xEnd
		row := Row{Batch: batch, Elapsed: float64(batch+1) * s.cfg.BatchStep, State: x}
		series.append(row)
		accumulate(&series.Stats, stats)
		s.setPhase(BatchComplete)

		for _, m := range s.metrics {
			m.Observe(x, row.Elapsed)
		}
		for _, obs := range s.observers {
			obs.OnBatch(series.Row(series.Len() - 1))
		}
	}

	for _, m := range s.metrics {
		series.Metrics[m.Name()] = m.Value()
	}
	s.setPhase(Finished)
	runSpan.SetAttributes(attribute.Int("rows", series.Len()), attribute.Int("steps", series.Stats.Steps))
	s.logger.Info("run finished",
		slog.Int("rows", series.Len()),
		slog.Int("steps", series.Stats.Steps),
		slog.Int("rejected", series.Stats.Rejected),
		slog.Duration("duration", time.Since(start)),
	)
	return series, nil
}

// runBatch advances x by one batch step starting at elapsed seconds.
func (s *Simulator) runBatch(ctx context.Context, batch int, elapsed float64, x dynamo.State) (dynamo.State, dynamo.Statistics, error) {
	if err := ctx.Err(); err != nil {
		return nil, dynamo.Statistics{}, err
	}

	ctx, span := s.tracer.Start(ctx, "sim.batch",
		trace.WithAttributes(
			attribute.Int("batch", batch),
			attribute.Float64("elapsed", elapsed),
		),
	)
	defer span.End()

	p := dynamo.NewProblem(s.cfg.Name, s.sys, elapsed, x)
	tr, err := s.solver.Solve(ctx, p, s.cfg.BatchStep, s.cfg.Solver)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "solve failed")
		return nil, dynamo.Statistics{}, err
	}
	_, xEnd := tr.Last()
	if len(xEnd) != len(x) {
		err := fmt.Errorf("%w: solver returned %d values for %d species", dynamo.ErrDimensionMismatch, len(xEnd), len(x))
		span.RecordError(err)
		span.SetStatus(codes.Error, "bad trajectory")
		return nil, dynamo.Statistics{}, err
	}
	if !xEnd.IsValid() {
		span.SetStatus(codes.Error, "invalid state")
		return nil, dynamo.Statistics{}, dynamo.ErrInvalidState
	}

	span.SetAttributes(
		attribute.Int("steps", tr.Stats.Steps),
		attribute.Int("rejected", tr.Stats.Rejected),
	)
	s.logger.Debug("batch complete",
		slog.Int("batch", batch),
		slog.Float64("elapsed", elapsed+s.cfg.BatchStep),
		slog.Int("steps", tr.Stats.Steps),
		slog.Int("rejected", tr.Stats.Rejected),
		slog.Float64("last_step", tr.Stats.LastStep),
	)
	return xEnd.Clone(), tr.Stats, nil
}

func accumulate(total *dynamo.Statistics, s dynamo.Statistics) {
	total.Steps += s.Steps
	total.Rejected += s.Rejected
	total.ConvFailures += s.ConvFailures
	total.RHSEvals += s.RHSEvals
	total.JacEvals += s.JacEvals
	total.Decomps += s.Decomps
	total.LastStep = s.LastStep
}
