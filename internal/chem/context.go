// Package chem evaluates the box-model ODE: the right-hand side and the
// Jacobian of the species concentrations, composed from injected kinetic
// kernels and an immutable run context.
package chem

import (
	"fmt"
	"math"

	"github.com/san-kum/chembox/internal/dynamo"
)

// PPBToMolecules converts a mixing ratio in ppb to molecules/cc.
const PPBToMolecules = 2.55e10

const boltzmann = 1.380649e-23

type ContextParams struct {
	Species    []string
	InitialPPB map[string]float64
	// Peroxy names the species summed into the RO2 pool. PeroxyIndices
	// may add positions directly.
	Peroxy        []string
	PeroxyIndices []int
	Temperature   float64
	// RH is relative humidity in percent. It is used to derive H2O when
	// H2O is zero.
	RH        float64
	H2O       float64
	StartTime float64
}

// Context is the read-only run configuration shared by every RHS and
// Jacobian evaluation. Accessors return copies.
type Context struct {
	species     []string
	index       map[string]int
	initial     dynamo.State
	peroxy      []int
	temperature float64
	h2o         float64
	startTime   float64
}

// NewContext validates the parameters once, before any integration.
func NewContext(p ContextParams) (*Context, error) {
	n := len(p.Species)
	if n == 0 {
		return nil, fmt.Errorf("%w: no species", dynamo.ErrConfiguration)
	}
	index := make(map[string]int, n)
	for i, s := range p.Species {
		if _, dup := index[s]; dup {
			return nil, fmt.Errorf("%w: duplicate species %q", dynamo.ErrConfiguration, s)
		}
		index[s] = i
	}

	initial := make(dynamo.State, n)
	for name, ppb := range p.InitialPPB {
		i, ok := index[name]
		if !ok {
			return nil, fmt.Errorf("%w: initial concentration for unknown species %q", dynamo.ErrConfiguration, name)
		}
		if ppb < 0 || math.IsNaN(ppb) || math.IsInf(ppb, 0) {
			return nil, fmt.Errorf("%w: initial concentration of %s must be finite and non-negative, got %g", dynamo.ErrConfiguration, name, ppb)
		}
		initial[i] = ppb * PPBToMolecules
	}

	peroxy := make([]int, 0, len(p.Peroxy)+len(p.PeroxyIndices))
	for _, name := range p.Peroxy {
		i, ok := index[name]
		if !ok {
			return nil, fmt.Errorf("%w: unknown peroxy species %q", dynamo.ErrConfiguration, name)
		}
		peroxy = append(peroxy, i)
	}
	for _, i := range p.PeroxyIndices {
		if i < 0 || i >= n {
			return nil, fmt.Errorf("%w: peroxy index %d out of range [0, %d)", dynamo.ErrConfiguration, i, n)
		}
		peroxy = append(peroxy, i)
	}

	if p.Temperature <= 0 || math.IsNaN(p.Temperature) {
		return nil, fmt.Errorf("%w: temperature must be positive, got %g K", dynamo.ErrConfiguration, p.Temperature)
	}
	if p.RH < 0 || p.RH > 100 {
		return nil, fmt.Errorf("%w: relative humidity must be within [0, 100], got %g", dynamo.ErrConfiguration, p.RH)
	}
	if p.H2O < 0 {
		return nil, fmt.Errorf("%w: water concentration must not be negative", dynamo.ErrConfiguration)
	}
	h2o := p.H2O
	if h2o == 0 {
		h2o = WaterConcentration(p.RH, p.Temperature)
	}

	species := make([]string, n)
	copy(species, p.Species)

	return &Context{
		species:     species,
		index:       index,
		initial:     initial,
		peroxy:      peroxy,
		temperature: p.Temperature,
		h2o:         h2o,
		startTime:   p.StartTime,
	}, nil
}

// WaterConcentration converts relative humidity (percent) at temperature
// T (K) to molecules/cc using the Magnus saturation vapour pressure.
func WaterConcentration(rh, temp float64) float64 {
	tc := temp - 273.15
	esat := 610.94 * math.Exp(17.625*tc/(tc+243.04))
	return rh / 100 * esat / (boltzmann * temp) * 1e-6
}

func (c *Context) NumSpecies() int { return len(c.species) }

func (c *Context) Species() []string {
	out := make([]string, len(c.species))
	copy(out, c.species)
	return out
}

func (c *Context) Index(name string) (int, bool) {
	i, ok := c.index[name]
	return i, ok
}

// Initial returns the starting concentrations in molecules/cc.
func (c *Context) Initial() dynamo.State { return c.initial.Clone() }

func (c *Context) PeroxyIndices() []int {
	out := make([]int, len(c.peroxy))
	copy(out, c.peroxy)
	return out
}

func (c *Context) Temperature() float64 { return c.temperature }
func (c *Context) H2O() float64         { return c.h2o }

// TimeOfDay is the simulated clock for solver time t.
func (c *Context) TimeOfDay(t float64) float64 { return c.startTime + t }

// PeroxySum adds the entries of x at the given indices.
func PeroxySum(x []float64, indices []int) float64 {
	sum := 0.0
	for _, i := range indices {
		sum += x[i]
	}
	return sum
}
