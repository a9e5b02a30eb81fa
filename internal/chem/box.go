package chem

import (
	"fmt"

	"github.com/san-kum/chembox/internal/dynamo"
	"github.com/san-kum/chembox/internal/kinetics"
	"gonum.org/v1/gonum/mat"
)

// Box is the well-mixed box model. It implements dynamo.System and holds
// no mutable state: every evaluation is a pure function of (t, x).
type Box struct {
	ctx     *Context
	kernels kinetics.Kernels
	peroxy  []int
}

func NewBox(ctx *Context, k kinetics.Kernels) (*Box, error) {
	if ctx == nil || k == nil {
		return nil, fmt.Errorf("%w: box needs a context and kernels", dynamo.ErrConfiguration)
	}
	if k.NumSpecies() != ctx.NumSpecies() {
		return nil, fmt.Errorf("%w: kernels expect %d species, context has %d",
			dynamo.ErrDimensionMismatch, k.NumSpecies(), ctx.NumSpecies())
	}
	return &Box{ctx: ctx, kernels: k, peroxy: ctx.PeroxyIndices()}, nil
}

func (b *Box) Dim() int          { return b.ctx.NumSpecies() }
func (b *Box) Context() *Context { return b.ctx }

// Derive returns dx/dt at solver time t.
func (b *Box) Derive(t float64, x dynamo.State) dynamo.State {
	ro2 := PeroxySum(x, b.peroxy)
	rates := b.kernels.Rates(ro2, b.ctx.h2o, b.ctx.temperature, b.ctx.TimeOfDay(t))
	reactions := b.kernels.ReactantProducts(x)
	for r := range reactions {
		reactions[r] *= rates[r]
	}
	return b.kernels.LossGain(reactions)
}

// Jacobian returns d(Derive)/dx at solver time t. Rate coefficients that
// scale with the peroxy sum contribute an extra term to every peroxy
// column when the kernels can report that sensitivity.
func (b *Box) Jacobian(t float64, x dynamo.State) *mat.Dense {
	ro2 := PeroxySum(x, b.peroxy)
	tod := b.ctx.TimeOfDay(t)
	rates := b.kernels.Rates(ro2, b.ctx.h2o, b.ctx.temperature, tod)
	jac := b.kernels.Jacobian(rates, x)

	ps, ok := b.kernels.(kinetics.PeroxySensitive)
	if !ok || len(b.peroxy) == 0 {
		return jac
	}

	dk := ps.RatesPeroxyDerivative(ro2, b.ctx.h2o, b.ctx.temperature, tod)
	reactions := b.kernels.ReactantProducts(x)
	for r := range reactions {
		reactions[r] *= dk[r]
	}
	dro2 := b.kernels.LossGain(reactions)
	for i, v := range dro2 {
		if v == 0 {
			continue
		}
		for _, j := range b.peroxy {
			jac.Set(i, j, jac.At(i, j)+v)
		}
	}
	return jac
}
