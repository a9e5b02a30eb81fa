package integrators

import (
	"context"
	"fmt"
	"math"

	"github.com/san-kum/chembox/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

// Exponential is the exponential Rosenbrock-Euler method,
//
//	x(t+h) = x + h*phi1(h*J)*f(x),
//
// with phi1 taken from the exponential of the augmented matrix
// [h*J h*f/c; 0 0]. The block is linear in its last column, so f is scaled
// by c = max|h*f_i| before the exponential and the result scaled back;
// concentrations near 1e12 would otherwise dominate the matrix norm and
// cost the scaling-and-squaring several digits. The method is exact when
// the right-hand side is linear, so first-order kinetics are reproduced
// regardless of step size. The interval is split into uniform substeps no
// longer than MaxStep.
type Exponential struct{}

func NewExponential() *Exponential {
	return &Exponential{}
}

func (e *Exponential) Name() string { return "exponential" }

func (e *Exponential) Solve(ctx context.Context, p dynamo.Problem, duration float64, cfg dynamo.SolverConfig) (*dynamo.Trajectory, error) {
	if err := validate(p, duration, cfg); err != nil {
		return nil, err
	}

	n := len(p.X0)
	stats := dynamo.Statistics{}
	tr := &dynamo.Trajectory{}
	x := p.X0.Clone()
	t := p.T0
	tr.Append(t, x)
	if duration == 0 {
		return tr, nil
	}

	steps := 1
	if cfg.MaxStep > 0 {
		steps = int(math.Ceil(duration / cfg.MaxStep))
	}
	if cfg.MaxSteps > 0 && steps > cfg.MaxSteps {
		return nil, &dynamo.StepError{Time: t, H: cfg.MaxStep,
			Wrapped: fmt.Errorf("%w: %d substeps exceed the limit of %d", dynamo.ErrConvergence, steps, cfg.MaxSteps)}
	}
	h := duration / float64(steps)

	aug := mat.NewDense(n+1, n+1, nil)
	var expm mat.Dense
	for s := 0; s < steps; s++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		f := p.RHS(t, x)
		stats.RHSEvals++
		var jac *mat.Dense
		if cfg.UseJacobian && p.Jac != nil {
			jac = p.Jac(t, x)
		} else {
			jac = NumericJacobian(p.RHS, t, x)
			stats.RHSEvals += 2 * n
		}
		stats.JacEvals++
		if !f.IsValid() {
			return nil, &dynamo.StepError{Step: s, Time: t, H: h,
				Wrapped: fmt.Errorf("%w: %w", dynamo.ErrConvergence, dynamo.ErrInvalidState)}
		}

		c := columnScale(f, h)
		aug.Zero()
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				aug.Set(i, j, h*jac.At(i, j))
			}
			aug.Set(i, n, h*f[i]/c)
		}
		expm.Reset()
		expm.Exp(aug)
		stats.Decomps++

		xNew := make(dynamo.State, n)
		for i := 0; i < n; i++ {
			xNew[i] = x[i] + c*expm.At(i, n)
		}
		if !xNew.IsValid() {
			return nil, &dynamo.StepError{Step: s, Time: t, H: h,
				Wrapped: fmt.Errorf("%w: %w", dynamo.ErrConvergence, dynamo.ErrInvalidState)}
		}

		x = xNew
		if s == steps-1 {
			t = p.T0 + duration
		} else {
			t += h
		}
		stats.Steps++
		stats.LastStep = h
		if cfg.ReportContinuously || s == steps-1 {
			tr.Append(t, x)
		}
	}

	tr.Stats = stats
	return tr, nil
}

// columnScale returns max|h*f_i|, or 1 when the tendency vanishes.
func columnScale(f dynamo.State, h float64) float64 {
	c := 0.0
	for _, v := range f {
		c = math.Max(c, math.Abs(h*v))
	}
	if c == 0 {
		return 1
	}
	return c
}
