package metrics

import (
	"github.com/san-kum/chembox/internal/dynamo"
)

// Negativity is the fraction of batches whose state stayed above
// -threshold in every species. Stiff solvers may undershoot zero by a
// round-off amount, which threshold absorbs.
type Negativity struct {
	name       string
	threshold  float64
	violations int
	samples    int
	minimum    float64
}

func NewNegativity(threshold float64) *Negativity {
	return &Negativity{
		name:      "nonnegative_fraction",
		threshold: threshold,
	}
}

func (n *Negativity) Name() string {
	return n.name
}

func (n *Negativity) Observe(x dynamo.State, t float64) {
	lo := x.Min()
	if n.samples == 0 || lo < n.minimum {
		n.minimum = lo
	}
	n.samples++
	if lo < -n.threshold {
		n.violations++
	}
}

func (n *Negativity) Value() float64 {
	if n.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(n.violations)/float64(n.samples)
}

// Minimum is the most negative concentration seen so far.
func (n *Negativity) Minimum() float64 { return n.minimum }

func (n *Negativity) Reset() {
	n.violations = 0
	n.samples = 0
	n.minimum = 0
}
