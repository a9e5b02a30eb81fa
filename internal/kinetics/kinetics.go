// Package kinetics provides the numerical kernels behind the chemistry
// right-hand side: rate coefficients, reactant mass-action products, the
// stoichiometric loss-gain map and the Jacobian assembly.
//
// Kernels are pure. Their outputs are freshly allocated on every call and
// are ordered by the mechanism's reaction and species order. Large
// mechanisms evaluate reactions and species in parallel chunks via
// [dynamo.ParallelFor]; chunks write disjoint entries, so results do not
// depend on scheduling.
package kinetics

import "gonum.org/v1/gonum/mat"

// Kernels is the set of pure functions the evaluators compose.
type Kernels interface {
	NumSpecies() int
	NumReactions() int

	// Rates returns one rate coefficient per reaction.
	Rates(ro2, h2o, temp, timeOfDay float64) []float64
	// ReactantProducts returns prod(x[s]^nu) per reaction.
	ReactantProducts(x []float64) []float64
	// LossGain maps per-reaction rates onto per-species derivatives.
	LossGain(reactionRates []float64) []float64
	// Jacobian assembles d(LossGain(rates*ReactantProducts(x)))/dx for
	// fixed rate coefficients.
	Jacobian(rates []float64, x []float64) *mat.Dense
}

// PeroxySensitive is implemented by kernels whose rate coefficients
// depend linearly on the peroxy sum. RatesPeroxyDerivative returns
// dk/dRO2 per reaction.
type PeroxySensitive interface {
	RatesPeroxyDerivative(ro2, h2o, temp, timeOfDay float64) []float64
}
