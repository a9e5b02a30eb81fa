package integrators

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/san-kum/chembox/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

// ROS3: three stages, order 3, embedded order 2, L-stable.
var (
	rosGamma = [3]float64{
		0.43586652150845899941601945119356,
		0.24291996454816804366592249683314,
		2.1851380027664058511513169485832,
	}
	rosAlpha = [3]float64{
		0,
		0.43586652150845899941601945119356,
		0.43586652150845899941601945119356,
	}
	// rosA and rosC are stored row-wise below the diagonal:
	// (2,1), (3,1), (3,2).
	rosA = [3]float64{1, 1, 0}
	rosC = [3]float64{
		-1.0156171083877702091975600115545,
		4.0759956452537699824805835358067,
		9.2076794298330791242156818474003,
	}
	rosNewF = [3]bool{true, true, false}
	rosM    = [3]float64{
		1,
		6.1697947043828245592553615689730,
		-0.42772256543218573326238373806514,
	}
	rosE = [3]float64{
		0.5,
		-2.9079558716805469821718236208017,
		0.22354069897811569627360909276199,
	}
)

const rosOrder = 3

var errSingular = errors.New("singular iteration matrix")

// Rosenbrock is a linearly implicit stiff solver. Each step factors
// I/(h*gamma) - J once and reuses it for all stages.
type Rosenbrock struct{}

func NewRosenbrock() *Rosenbrock {
	return &Rosenbrock{}
}

func (r *Rosenbrock) Name() string { return "rosenbrock" }

func (r *Rosenbrock) Solve(ctx context.Context, p dynamo.Problem, duration float64, cfg dynamo.SolverConfig) (*dynamo.Trajectory, error) {
	if err := validate(p, duration, cfg); err != nil {
		return nil, err
	}
	stats := &dynamo.Statistics{}
	return drive(ctx, p, duration, cfg, &rosenbrockStep{p: p, cfg: cfg, stats: stats, n: len(p.X0)}, stats)
}

type rosenbrockStep struct {
	p     dynamo.Problem
	cfg   dynamo.SolverConfig
	stats *dynamo.Statistics
	n     int

	t    float64
	x    dynamo.State
	f0   dynamo.State
	dfdt []float64
	jac  *mat.Dense
}

func (s *rosenbrockStep) order() float64 { return rosOrder }

func (s *rosenbrockStep) begin(t float64, x dynamo.State) error {
	s.t, s.x = t, x
	s.f0 = s.p.RHS(t, x)
	s.stats.RHSEvals++
	if len(s.f0) != s.n {
		return fmt.Errorf("%w: right-hand side returned %d values for %d species", dynamo.ErrDimensionMismatch, len(s.f0), s.n)
	}
	if !s.f0.IsValid() {
		return fmt.Errorf("%w: right-hand side at t=%g", dynamo.ErrInvalidState, t)
	}

	if s.cfg.UseJacobian && s.p.Jac != nil {
		s.jac = s.p.Jac(t, x)
	} else {
		s.jac = NumericJacobian(s.p.RHS, t, x)
		s.stats.RHSEvals += 2 * s.n
	}
	s.stats.JacEvals++
	if r, c := s.jac.Dims(); r != s.n || c != s.n {
		return fmt.Errorf("%w: Jacobian is %dx%d for %d species", dynamo.ErrDimensionMismatch, r, c, s.n)
	}

	delta := math.Sqrt(epsilon) * math.Max(1e-5, math.Abs(t))
	f1 := s.p.RHS(t+delta, x)
	s.stats.RHSEvals++
	if !f1.IsValid() {
		return fmt.Errorf("%w: right-hand side at t=%g", dynamo.ErrInvalidState, t+delta)
	}
	s.dfdt = make([]float64, s.n)
	for i := range s.dfdt {
		s.dfdt[i] = (f1[i] - s.f0[i]) / delta
	}
	return nil
}

func (s *rosenbrockStep) attempt(h float64) (dynamo.State, float64, error) {
	n := s.n
	ghinv := 1 / (rosGamma[0] * h)
	m := mat.NewDense(n, n, nil)
	m.Scale(-1, s.jac)
	for i := 0; i < n; i++ {
		m.Set(i, i, m.At(i, i)+ghinv)
	}
	var lu mat.LU
	lu.Factorize(m)
	s.stats.Decomps++

	var k [3]*mat.VecDense
	f := s.f0
	ystage := make(dynamo.State, n)
	rhs := make([]float64, n)
	ac := 0
	for stage := 0; stage < 3; stage++ {
		if stage > 0 && rosNewF[stage] {
			copy(ystage, s.x)
			for j := 0; j < stage; j++ {
				a := rosA[ac+j]
				if a == 0 {
					continue
				}
				kj := k[j].RawVector().Data
				for i := range ystage {
					ystage[i] += a * kj[i]
				}
			}
			f = s.p.RHS(s.t+rosAlpha[stage]*h, ystage)
			s.stats.RHSEvals++
			if !f.IsValid() {
				return nil, math.NaN(), dynamo.ErrInvalidState
			}
		}

		copy(rhs, f)
		for j := 0; j < stage; j++ {
			hc := rosC[ac+j] / h
			kj := k[j].RawVector().Data
			for i := range rhs {
				rhs[i] += hc * kj[i]
			}
		}
		hg := h * rosGamma[stage]
		for i := range rhs {
			rhs[i] += hg * s.dfdt[i]
		}

		k[stage] = mat.NewVecDense(n, nil)
		if err := lu.SolveVecTo(k[stage], false, mat.NewVecDense(n, rhs)); err != nil {
			var cond mat.Condition
			if !errors.As(err, &cond) || math.IsInf(float64(cond), 1) {
				return nil, math.NaN(), errSingular
			}
		}
		if stage > 0 {
			ac += stage
		}
	}

	xNew := s.x.Clone()
	errEst := make(dynamo.State, n)
	for j := 0; j < 3; j++ {
		kj := k[j].RawVector().Data
		for i := 0; i < n; i++ {
			xNew[i] += rosM[j] * kj[i]
			errEst[i] += rosE[j] * kj[i]
		}
	}
	return xNew, errorNorm(errEst, s.x, xNew, s.cfg), nil
}
