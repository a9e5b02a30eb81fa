package metrics

import (
	"math"

	"github.com/san-kum/chembox/internal/dynamo"
)

// Peak records the largest concentration of one species and when it
// occurred.
type Peak struct {
	name    string
	index   int
	peak    float64
	at      float64
	samples int
}

func NewPeak(species string, index int) *Peak {
	return &Peak{
		name:  "peak_" + species,
		index: index,
		peak:  math.Inf(-1),
	}
}

func (p *Peak) Name() string {
	return p.name
}

func (p *Peak) Observe(x dynamo.State, t float64) {
	if p.index < 0 || p.index >= len(x) {
		return
	}
	p.samples++
	if x[p.index] > p.peak {
		p.peak = x[p.index]
		p.at = t
	}
}

func (p *Peak) Value() float64 {
	if p.samples == 0 {
		return 0
	}
	return p.peak
}

// At is the elapsed time of the peak.
func (p *Peak) At() float64 { return p.at }

func (p *Peak) Reset() {
	p.peak = math.Inf(-1)
	p.at = 0
	p.samples = 0
}
