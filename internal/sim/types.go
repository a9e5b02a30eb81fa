package sim

import (
	"fmt"
	"math"

	"github.com/san-kum/chembox/internal/dynamo"
)

// Phase is the controller's position in a run.
type Phase int

const (
	NotStarted Phase = iota
	BatchRunning
	BatchComplete
	Finished
)

func (p Phase) String() string {
	switch p {
	case NotStarted:
		return "not-started"
	case BatchRunning:
		return "batch-running"
	case BatchComplete:
		return "batch-complete"
	case Finished:
		return "finished"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Config describes one batched run. Horizon and BatchStep are in seconds.
type Config struct {
	Name      string
	Horizon   float64
	BatchStep float64
	Solver    dynamo.SolverConfig
}

func (c Config) Validate(n int) error {
	if c.BatchStep <= 0 || math.IsNaN(c.BatchStep) || math.IsInf(c.BatchStep, 0) {
		return fmt.Errorf("%w: batch step must be positive, got %g", dynamo.ErrConfiguration, c.BatchStep)
	}
	if c.Horizon <= 0 || math.IsNaN(c.Horizon) || math.IsInf(c.Horizon, 0) {
		return fmt.Errorf("%w: horizon must be positive, got %g", dynamo.ErrConfiguration, c.Horizon)
	}
	if c.Horizon < c.BatchStep {
		return fmt.Errorf("%w: horizon %g is shorter than batch step %g", dynamo.ErrConfiguration, c.Horizon, c.BatchStep)
	}
	return c.Solver.Validate(n)
}

// Rows is the number of batches a run of this configuration commits: one
// per started batch, so a trailing partial batch gets its own row. A horizon
// less than 1e-9 batch steps past a whole number of batches counts as that
// number, so 0.3/0.1 yields 3 rows rather than 4 and 100.00000001/100
// yields 1.
func (c Config) Rows() int {
	return int(math.Ceil(c.Horizon/c.BatchStep - 1e-9))
}

// Row is one committed batch: the state at Elapsed seconds after start.
type Row struct {
	Batch   int
	Elapsed float64
	State   dynamo.State
}

// Observer is notified after every committed batch, in order.
type Observer interface {
	OnBatch(row Row)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(row Row)

func (f ObserverFunc) OnBatch(row Row) { f(row) }

// Series is the append-only output of a run. It holds one row per
// committed batch and never contains the initial condition.
type Series struct {
	Name    string
	Species []string
	rows    []Row
	Metrics map[string]float64
	Stats   dynamo.Statistics
}

func newSeries(name string, capacity int) *Series {
	return &Series{
		Name:    name,
		rows:    make([]Row, 0, capacity),
		Metrics: make(map[string]float64),
	}
}

// NewSeries builds a series from stored rows, for example when loading a
// saved run.
func NewSeries(name string, species []string, rows []Row) *Series {
	s := newSeries(name, len(rows))
	s.Species = append([]string(nil), species...)
	for _, r := range rows {
		s.append(r)
	}
	return s
}

func (s *Series) append(r Row) {
	s.rows = append(s.rows, Row{Batch: r.Batch, Elapsed: r.Elapsed, State: r.State.Clone()})
}

func (s *Series) Len() int { return len(s.rows) }

// Row returns a copy of row i.
func (s *Series) Row(i int) Row {
	r := s.rows[i]
	return Row{Batch: r.Batch, Elapsed: r.Elapsed, State: r.State.Clone()}
}

func (s *Series) Rows() []Row {
	out := make([]Row, len(s.rows))
	for i := range s.rows {
		out[i] = s.Row(i)
	}
	return out
}

func (s *Series) Times() []float64 {
	out := make([]float64, len(s.rows))
	for i, r := range s.rows {
		out[i] = r.Elapsed
	}
	return out
}

// Matrix returns the concentrations as a rows x species matrix.
func (s *Series) Matrix() [][]float64 {
	out := make([][]float64, len(s.rows))
	for i, r := range s.rows {
		out[i] = r.State.Clone()
	}
	return out
}

// Column returns the history of species j.
func (s *Series) Column(j int) []float64 {
	out := make([]float64, len(s.rows))
	for i, r := range s.rows {
		out[i] = r.State[j]
	}
	return out
}

// Last returns a copy of the final committed row.
func (s *Series) Last() (Row, bool) {
	if len(s.rows) == 0 {
		return Row{}, false
	}
	return s.Row(len(s.rows) - 1), true
}
