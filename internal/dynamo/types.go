package dynamo

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (s State) Sum() float64 {
	sum := 0.0
	for _, v := range s {
		sum += v
	}
	return sum
}

func (s State) Min() float64 {
	if len(s) == 0 {
		return 0
	}
	m := s[0]
	for _, v := range s[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

// System is an ODE right-hand side dx/dt = f(t, x) with its Jacobian.
type System interface {
	Dim() int
	Derive(t float64, x State) State
	Jacobian(t float64, x State) *mat.Dense
}

type RHSFunc func(t float64, x State) State

type JacobianFunc func(t float64, x State) *mat.Dense

// Problem is the descriptor for a single solver invocation. It lives for
// one batch and is discarded afterwards.
type Problem struct {
	Name string
	T0   float64
	X0   State
	RHS  RHSFunc
	Jac  JacobianFunc
}

// NewProblem binds a system to an initial state and time origin.
func NewProblem(name string, sys System, t0 float64, x0 State) Problem {
	return Problem{
		Name: name,
		T0:   t0,
		X0:   x0.Clone(),
		RHS:  sys.Derive,
		Jac:  sys.Jacobian,
	}
}

// Solver advances a Problem by duration. Implementations block until the
// whole interval is integrated or a fatal failure occurs.
type Solver interface {
	Name() string
	Solve(ctx context.Context, p Problem, duration float64, cfg SolverConfig) (*Trajectory, error)
}

// Metric observes committed batch states.
type Metric interface {
	Name() string
	Observe(x State, t float64)
	Value() float64
	Reset()
}

// SolverConfig holds solver tuning. It is constructed once per run and
// passed by value to every batch.
type SolverConfig struct {
	AbsTol             []float64
	RelTol             float64
	InitialStep        float64
	MaxStep            float64
	MinStep            float64
	UseJacobian        bool
	MaxConvFailures    int
	MaxSteps           int
	ReportContinuously bool
}

// DefaultSolverConfig returns the tuning used for gas-phase runs.
func DefaultSolverConfig(n int) SolverConfig {
	return SolverConfig{
		AbsTol:             UniformTolerance(n, 1e-3),
		RelTol:             1e-6,
		InitialStep:        1e-6,
		MaxStep:            100.0,
		MinStep:            1e-14,
		UseJacobian:        true,
		MaxConvFailures:    1000,
		MaxSteps:           500000,
		ReportContinuously: true,
	}
}

func UniformTolerance(n int, tol float64) []float64 {
	atol := make([]float64, n)
	for i := range atol {
		atol[i] = tol
	}
	return atol
}

// Validate checks the configuration against the system dimension.
func (c SolverConfig) Validate(n int) error {
	if len(c.AbsTol) != n {
		return fmt.Errorf("%w: %d absolute tolerances for %d species", ErrDimensionMismatch, len(c.AbsTol), n)
	}
	for i, a := range c.AbsTol {
		if a <= 0 || math.IsNaN(a) {
			return fmt.Errorf("%w: absolute tolerance %d must be positive, got %g", ErrConfiguration, i, a)
		}
	}
	if c.RelTol <= 0 {
		return fmt.Errorf("%w: relative tolerance must be positive, got %g", ErrConfiguration, c.RelTol)
	}
	if c.InitialStep < 0 || c.MaxStep < 0 || c.MinStep < 0 {
		return fmt.Errorf("%w: step sizes must not be negative", ErrConfiguration)
	}
	if c.MaxStep > 0 && c.InitialStep > c.MaxStep {
		return fmt.Errorf("%w: initial step %g exceeds max step %g", ErrConfiguration, c.InitialStep, c.MaxStep)
	}
	if c.MaxConvFailures < 1 {
		return fmt.Errorf("%w: max convergence failures must be at least 1", ErrConfiguration)
	}
	return nil
}

// Statistics are the solver diagnostics for one solve.
type Statistics struct {
	Steps        int
	Rejected     int
	ConvFailures int
	RHSEvals     int
	JacEvals     int
	Decomps      int
	LastStep     float64
}

// Trajectory holds the samples produced by a solve. The first sample is
// the initial condition, the last is the state at T0+duration.
type Trajectory struct {
	Times  []float64
	States []State
	Stats  Statistics
}

func (tr *Trajectory) Append(t float64, x State) {
	tr.Times = append(tr.Times, t)
	tr.States = append(tr.States, x.Clone())
}

func (tr *Trajectory) Len() int { return len(tr.Times) }

func (tr *Trajectory) Last() (float64, State) {
	if len(tr.Times) == 0 {
		return 0, nil
	}
	i := len(tr.Times) - 1
	return tr.Times[i], tr.States[i]
}
