package metrics

import (
	"math"

	"github.com/san-kum/chembox/internal/dynamo"
)

// MassDrift tracks the largest relative change in weighted total
// concentration against the first observed batch. With nil weights every
// species counts once.
type MassDrift struct {
	name     string
	weights  []float64
	initial  float64
	maxDrift float64
	samples  int
}

func NewMassDrift(weights []float64) *MassDrift {
	return &MassDrift{
		name:    "mass_drift",
		weights: weights,
	}
}

func (m *MassDrift) Name() string { return m.name }

func (m *MassDrift) Observe(x dynamo.State, t float64) {
	total := m.total(x)
	if m.samples == 0 {
		m.initial = total
	}
	m.samples++

	if m.initial != 0 {
		drift := math.Abs(total-m.initial) / math.Abs(m.initial)
		m.maxDrift = math.Max(m.maxDrift, drift)
	}
}

func (m *MassDrift) total(x dynamo.State) float64 {
	if m.weights == nil {
		return x.Sum()
	}
	sum := 0.0
	for i, v := range x {
		if i < len(m.weights) {
			sum += m.weights[i] * v
		}
	}
	return sum
}

func (m *MassDrift) Value() float64 {
	return m.maxDrift
}

func (m *MassDrift) Reset() {
	m.initial = 0
	m.maxDrift = 0
	m.samples = 0
}
