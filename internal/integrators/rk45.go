package integrators

import (
	"context"

	"github.com/san-kum/chembox/internal/dynamo"
)

// Dormand-Prince coefficients (RK45)
var (
	a2 = 1.0 / 5.0
	a3 = 3.0 / 10.0
	a4 = 4.0 / 5.0
	a5 = 8.0 / 9.0

	b21 = 1.0 / 5.0
	b31 = 3.0 / 40.0
	b32 = 9.0 / 40.0
	b41 = 44.0 / 45.0
	b42 = -56.0 / 15.0
	b43 = 32.0 / 9.0
	b51 = 19372.0 / 6561.0
	b52 = -25360.0 / 2187.0
	b53 = 64448.0 / 6561.0
	b54 = -212.0 / 729.0
	b61 = 9017.0 / 3168.0
	b62 = -355.0 / 33.0
	b63 = 46732.0 / 5247.0
	b64 = 49.0 / 176.0
	b65 = -5103.0 / 18656.0

	c1 = 35.0 / 384.0
	c3 = 500.0 / 1113.0
	c4 = 125.0 / 192.0
	c5 = -2187.0 / 6784.0
	c6 = 11.0 / 84.0

	dc1 = c1 - 5179.0/57600.0
	dc3 = c3 - 7571.0/16695.0
	dc4 = c4 - 393.0/640.0
	dc5 = c5 - -92097.0/339200.0
	dc6 = c6 - 187.0/2100.0
	dc7 = -1.0 / 40.0
)

// DormandPrince is the explicit adaptive RK45 pair. It is only efficient
// on non-stiff mechanisms and serves as a cross-check for the stiff
// solvers.
type DormandPrince struct{}

func NewDormandPrince() *DormandPrince {
	return &DormandPrince{}
}

func (d *DormandPrince) Name() string { return "dopri" }

func (d *DormandPrince) Solve(ctx context.Context, p dynamo.Problem, duration float64, cfg dynamo.SolverConfig) (*dynamo.Trajectory, error) {
	if err := validate(p, duration, cfg); err != nil {
		return nil, err
	}
	stats := &dynamo.Statistics{}
	return drive(ctx, p, duration, cfg, &dopriStep{p: p, cfg: cfg, stats: stats}, stats)
}

type dopriStep struct {
	p     dynamo.Problem
	cfg   dynamo.SolverConfig
	stats *dynamo.Statistics

	t  float64
	x  dynamo.State
	k1 dynamo.State
}

func (s *dopriStep) order() float64 { return 5 }

func (s *dopriStep) begin(t float64, x dynamo.State) error {
	s.t, s.x = t, x
	s.k1 = s.p.RHS(t, x)
	s.stats.RHSEvals++
	if !s.k1.IsValid() {
		return dynamo.ErrInvalidState
	}
	return nil
}

func (s *dopriStep) attempt(dt float64) (dynamo.State, float64, error) {
	x, t, k1 := s.x, s.t, s.k1
	n := len(x)
	rhs := s.p.RHS

	x2 := make(dynamo.State, n)
	for i := 0; i < n; i++ {
		x2[i] = x[i] + dt*b21*k1[i]
	}
	k2 := rhs(t+a2*dt, x2)

	x3 := make(dynamo.State, n)
	for i := 0; i < n; i++ {
		x3[i] = x[i] + dt*(b31*k1[i]+b32*k2[i])
	}
	k3 := rhs(t+a3*dt, x3)

	x4 := make(dynamo.State, n)
	for i := 0; i < n; i++ {
		x4[i] = x[i] + dt*(b41*k1[i]+b42*k2[i]+b43*k3[i])
	}
	k4 := rhs(t+a4*dt, x4)

	x5 := make(dynamo.State, n)
	for i := 0; i < n; i++ {
		x5[i] = x[i] + dt*(b51*k1[i]+b52*k2[i]+b53*k3[i]+b54*k4[i])
	}
	k5 := rhs(t+a5*dt, x5)

	x6 := make(dynamo.State, n)
	for i := 0; i < n; i++ {
		x6[i] = x[i] + dt*(b61*k1[i]+b62*k2[i]+b63*k3[i]+b64*k4[i]+b65*k5[i])
	}
	k6 := rhs(t+dt, x6)

	xNew := make(dynamo.State, n)
	for i := 0; i < n; i++ {
		xNew[i] = x[i] + dt*(c1*k1[i]+c3*k3[i]+c4*k4[i]+c5*k5[i]+c6*k6[i])
	}
	k7 := rhs(t+dt, xNew)
	s.stats.RHSEvals += 6

	errEst := make(dynamo.State, n)
	for i := 0; i < n; i++ {
		errEst[i] = dt * (dc1*k1[i] + dc3*k3[i] + dc4*k4[i] + dc5*k5[i] + dc6*k6[i] + dc7*k7[i])
	}
	if !errEst.IsValid() {
		return nil, 0, dynamo.ErrInvalidState
	}
	return xNew, errorNorm(errEst, x, xNew, s.cfg), nil
}
