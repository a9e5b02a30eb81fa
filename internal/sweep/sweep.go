// Package sweep runs one box-model configuration across a range of
// ambient conditions, or a scripted sequence of configurations.
package sweep

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/san-kum/chembox/internal/config"
	"github.com/san-kum/chembox/internal/dynamo"
	"github.com/san-kum/chembox/internal/experiment"
	"github.com/san-kum/chembox/internal/sim"
)

// Params that Apply understands.
const (
	Temperature = "temperature"
	RH          = "rh"
	StartTime   = "start_time"
	H2O         = "h2o"
	Horizon     = "horizon"
	BatchStep   = "batch_step"
	Latitude    = "latitude"
)

// Params lists the names Apply accepts.
func Params() []string {
	return []string{Temperature, RH, StartTime, H2O, Horizon, BatchStep, Latitude}
}

// Apply sets one named scalar on cfg.
func Apply(cfg *config.Config, param string, value float64) error {
	switch param {
	case Temperature:
		cfg.Temperature = value
	case RH:
		cfg.RH = value
	case StartTime:
		cfg.StartTime = value
	case H2O:
		cfg.H2O = value
	case Horizon:
		cfg.Horizon = value
	case BatchStep:
		cfg.BatchStep = value
	case Latitude:
		cfg.Latitude = value
	default:
		return fmt.Errorf("%w: unknown sweep parameter %q (available: %v)", dynamo.ErrConfiguration, param, Params())
	}
	return nil
}

// Sweep varies Param linearly from Min to Max over Steps runs.
type Sweep struct {
	Param       string
	Min         float64
	Max         float64
	Steps       int
	Concurrency int
}

// Values returns the parameter value of every run.
func (s Sweep) Values() []float64 {
	if s.Steps == 1 {
		return []float64{s.Min}
	}
	vals := make([]float64, s.Steps)
	step := (s.Max - s.Min) / float64(s.Steps-1)
	for i := range vals {
		vals[i] = s.Min + float64(i)*step
	}
	vals[len(vals)-1] = s.Max
	return vals
}

func (s Sweep) validate() error {
	if s.Steps < 1 {
		return fmt.Errorf("%w: sweep needs at least one step, got %d", dynamo.ErrConfiguration, s.Steps)
	}
	return Apply(config.DefaultConfig(), s.Param, s.Min)
}

// Result is the outcome of one run of a sweep.
type Result struct {
	Param   string
	Value   float64
	Final   dynamo.State
	Metrics map[string]float64
	Series  *sim.Series
}

// Run executes the sweep with at most Concurrency runs in flight. Results
// come back in parameter order. The first failing run cancels the rest.
func Run(ctx context.Context, base *config.Config, sw Sweep, reg *experiment.Registry, opts ...sim.Option) ([]Result, error) {
	if err := sw.validate(); err != nil {
		return nil, err
	}

	limit := sw.Concurrency
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}

	values := sw.Values()
	results := make([]Result, len(values))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, v := range values {
		i, v := i, v
		g.Go(func() error {
			cfg := base.Clone()
			if err := Apply(cfg, sw.Param, v); err != nil {
				return err
			}
			series, err := runOne(gctx, cfg, reg, opts)
			if err != nil {
				return fmt.Errorf("%s=%g: %w", sw.Param, v, err)
			}
			results[i] = newResult(sw.Param, v, series)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func runOne(ctx context.Context, cfg *config.Config, reg *experiment.Registry, opts []sim.Option) (*sim.Series, error) {
	exp := experiment.New(cfg)
	if err := exp.Setup(reg, opts...); err != nil {
		return nil, err
	}
	return exp.Run(ctx)
}

func newResult(param string, value float64, series *sim.Series) Result {
	r := Result{Param: param, Value: value, Series: series, Metrics: make(map[string]float64)}
	if last, ok := series.Last(); ok {
		r.Final = last.State
	}
	for k, v := range series.Metrics {
		r.Metrics[k] = v
	}
	return r
}

// Collector gathers rows from concurrent runs for progress reporting.
type Collector struct {
	mu    sync.Mutex
	count int
}

// Observer returns a batch observer that counts committed rows.
func (c *Collector) Observer() sim.Observer {
	return sim.ObserverFunc(func(sim.Row) {
		c.mu.Lock()
		c.count++
		c.mu.Unlock()
	})
}

func (c *Collector) Rows() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}
