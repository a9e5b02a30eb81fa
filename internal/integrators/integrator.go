// Package integrators implements the solver adapters that advance a
// dynamo.Problem over one batch interval.
package integrators

import (
	"context"
	"fmt"
	"math"

	"github.com/san-kum/chembox/internal/dynamo"
)

// Step size controller factors.
const (
	facMin  = 0.2
	facMax  = 6.0
	facRej  = 0.1
	facSafe = 0.9
	// facFail shrinks the step after a non-finite stage or a singular
	// iteration matrix.
	facFail = 0.25
)

// method is one adaptive one-step scheme. begin is called once for every
// accepted state; attempt may then be called repeatedly with shrinking h.
type method interface {
	order() float64
	begin(t float64, x dynamo.State) error
	attempt(h float64) (dynamo.State, float64, error)
}

// validate checks a problem against the solver configuration.
func validate(p dynamo.Problem, duration float64, cfg dynamo.SolverConfig) error {
	n := len(p.X0)
	if n == 0 {
		return fmt.Errorf("%w: empty initial state", dynamo.ErrDimensionMismatch)
	}
	if p.RHS == nil {
		return fmt.Errorf("%w: problem %q has no right-hand side", dynamo.ErrConfiguration, p.Name)
	}
	if duration < 0 || math.IsNaN(duration) || math.IsInf(duration, 0) {
		return fmt.Errorf("%w: duration must be finite and non-negative, got %g", dynamo.ErrConfiguration, duration)
	}
	if err := cfg.Validate(n); err != nil {
		return err
	}
	if !p.X0.IsValid() {
		return dynamo.ErrInvalidState
	}
	return nil
}

// drive runs the shared accept/reject loop for an adaptive method.
func drive(ctx context.Context, p dynamo.Problem, duration float64, cfg dynamo.SolverConfig, m method, stats *dynamo.Statistics) (*dynamo.Trajectory, error) {
	tr := &dynamo.Trajectory{}
	t := p.T0
	tEnd := p.T0 + duration
	x := p.X0.Clone()
	tr.Append(t, x)
	if duration == 0 {
		return tr, nil
	}

	h := cfg.InitialStep
	if h == 0 {
		h = estimateStep(p, t, x, cfg, stats)
	}
	maxStep := cfg.MaxStep
	if maxStep <= 0 {
		maxStep = duration
	}
	h = math.Min(h, maxStep)

	fresh := true
	rejected := false
	failures := 0
	eps := 1e-12 * math.Max(1, math.Abs(tEnd))

	fail := func(err error) (*dynamo.Trajectory, error) {
		stats.LastStep = h
		return nil, &dynamo.StepError{Step: stats.Steps, Time: t, H: h, Wrapped: err}
	}

	for tEnd-t > eps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if cfg.MaxSteps > 0 && stats.Steps+stats.Rejected >= cfg.MaxSteps {
			return fail(fmt.Errorf("%w: exceeded %d steps", dynamo.ErrConvergence, cfg.MaxSteps))
		}
		if h < cfg.MinStep {
			return fail(dynamo.ErrStepTooSmall)
		}

		last := false
		if t+h >= tEnd-eps {
			h = tEnd - t
			last = true
		}

		if fresh {
			if err := m.begin(t, x); err != nil {
				return fail(fmt.Errorf("%w: %w", dynamo.ErrConvergence, err))
			}
			fresh = false
		}

		xNew, errNorm, err := m.attempt(h)
		if err != nil || math.IsNaN(errNorm) || math.IsInf(errNorm, 0) || !xNew.IsValid() {
			failures++
			stats.ConvFailures++
			stats.Rejected++
			if failures > cfg.MaxConvFailures {
				if err == nil {
					err = dynamo.ErrInvalidState
				}
				return fail(fmt.Errorf("%w after %d consecutive failures: %w", dynamo.ErrConvergence, failures, err))
			}
			h *= facFail
			rejected = true
			continue
		}

		fac := facMax
		if errNorm > 0 {
			fac = facSafe / math.Pow(errNorm, 1/m.order())
		}
		fac = math.Min(facMax, math.Max(facMin, fac))
		hNew := h * fac

		if errNorm > 1 {
			stats.Rejected++
			if stats.Steps == 0 && !rejected {
				hNew = h * facRej
			}
			rejected = true
			h = hNew
			continue
		}

		stats.Steps++
		stats.LastStep = h
		failures = 0
		if last {
			t = tEnd
		} else {
			t += h
		}
		x = xNew
		fresh = true
		if rejected {
			hNew = math.Min(hNew, h)
		}
		rejected = false
		if cfg.ReportContinuously || tEnd-t <= eps {
			tr.Append(t, x)
		}
		h = math.Min(hNew, maxStep)
	}

	if tr.Times[len(tr.Times)-1] != t {
		tr.Append(t, x)
	}
	tr.Stats = *stats
	return tr, nil
}

// estimateStep picks a starting step from the size of the derivative and
// a one-step estimate of the second derivative.
func estimateStep(p dynamo.Problem, t float64, x dynamo.State, cfg dynamo.SolverConfig, stats *dynamo.Statistics) float64 {
	n := len(x)
	f0 := p.RHS(t, x)
	stats.RHSEvals++

	dnf, dny := 0.0, 0.0
	for i := 0; i < n; i++ {
		sc := cfg.AbsTol[i] + cfg.RelTol*math.Abs(x[i])
		dnf += (f0[i] / sc) * (f0[i] / sc)
		dny += (x[i] / sc) * (x[i] / sc)
	}
	h := 1e-6
	if math.Min(dnf, dny) >= 1e-10 {
		h = 1e-2 * math.Sqrt(dny/dnf)
	}
	if cfg.MaxStep > 0 {
		h = math.Min(h, cfg.MaxStep)
	}

	x1 := make(dynamo.State, n)
	for i := range x1 {
		x1[i] = x[i] + h*f0[i]
	}
	f1 := p.RHS(t+h, x1)
	stats.RHSEvals++

	der2 := 0.0
	for i := 0; i < n; i++ {
		sc := cfg.AbsTol[i] + cfg.RelTol*math.Abs(x[i])
		d := (f1[i] - f0[i]) / sc
		der2 += d * d
	}
	der12 := math.Max(math.Sqrt(der2)/h, math.Sqrt(dnf))
	h1 := math.Max(1e-6, h*1e-3)
	if der12 > 1e-15 && !math.IsNaN(der12) {
		h1 = math.Pow(0.01/der12, 1.0/3.0)
	}
	h = math.Min(100*h, h1)
	if math.IsNaN(h) || h <= 0 {
		h = 1e-6
	}
	return math.Max(h, cfg.MinStep)
}

// errorNorm is the weighted RMS norm of a local error estimate.
func errorNorm(errEst, y0, y1 dynamo.State, cfg dynamo.SolverConfig) float64 {
	sum := 0.0
	for i, e := range errEst {
		sc := cfg.AbsTol[i] + cfg.RelTol*math.Max(math.Abs(y0[i]), math.Abs(y1[i]))
		q := e / sc
		sum += q * q
	}
	return math.Sqrt(sum / float64(len(errEst)))
}
