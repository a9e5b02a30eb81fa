package kinetics

import (
	"math"

	"github.com/san-kum/chembox/internal/dynamo"
	"github.com/san-kum/chembox/internal/mechanism"
	"gonum.org/v1/gonum/mat"
)

// DefaultParallelThreshold is the reaction/species count above which the
// kernels split work across goroutines.
const DefaultParallelThreshold = 2048

type Options struct {
	Latitude          float64
	Declination       float64
	ParallelThreshold int
}

func DefaultOptions() Options {
	return Options{
		Latitude:          DefaultLatitude,
		Declination:       DefaultDeclination,
		ParallelThreshold: DefaultParallelThreshold,
	}
}

type term struct {
	species int
	coeff   float64
}

// MassAction implements Kernels for elementary mass-action chemistry.
// The loss-gain structure is stored sparsely: per species, the list of
// reactions with a non-zero net stoichiometric coefficient.
type MassAction struct {
	nSpecies  int
	rates     []mechanism.Rate
	reactants [][]term
	// net stoichiometry per reaction, indexed by reaction
	net [][]term
	// net stoichiometry per species, term.species holds the reaction index
	lossGain [][]term
	opts     Options
}

// NewMassAction compiles a mechanism into kernels.
func NewMassAction(m *mechanism.Mechanism, opts Options) (*MassAction, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if opts.ParallelThreshold <= 0 {
		opts.ParallelThreshold = DefaultParallelThreshold
	}

	index := m.Index()
	k := &MassAction{
		nSpecies:  len(m.Species),
		rates:     make([]mechanism.Rate, len(m.Reactions)),
		reactants: make([][]term, len(m.Reactions)),
		net:       make([][]term, len(m.Reactions)),
		lossGain:  make([][]term, len(m.Species)),
		opts:      opts,
	}

	for r, rx := range m.Reactions {
		k.rates[r] = rx.Rate
		k.reactants[r] = mergeTerms(rx.Reactants, index)

		stoich := make(map[int]float64)
		order := make([]int, 0)
		add := func(s int, c float64) {
			if _, seen := stoich[s]; !seen {
				order = append(order, s)
			}
			stoich[s] += c
		}
		for _, t := range k.reactants[r] {
			add(t.species, -t.coeff)
		}
		for _, t := range mergeTerms(rx.Products, index) {
			add(t.species, t.coeff)
		}
		for _, s := range order {
			c := stoich[s]
			if c == 0 {
				continue
			}
			k.net[r] = append(k.net[r], term{species: s, coeff: c})
			k.lossGain[s] = append(k.lossGain[s], term{species: r, coeff: c})
		}
	}

	return k, nil
}

func mergeTerms(terms []mechanism.Term, index map[string]int) []term {
	out := make([]term, 0, len(terms))
	pos := make(map[int]int, len(terms))
	for _, t := range terms {
		s := index[t.Species]
		if i, ok := pos[s]; ok {
			out[i].coeff += t.Coeff
			continue
		}
		pos[s] = len(out)
		out = append(out, term{species: s, coeff: t.Coeff})
	}
	return out
}

func (k *MassAction) NumSpecies() int   { return k.nSpecies }
func (k *MassAction) NumReactions() int { return len(k.rates) }

func (k *MassAction) Rates(ro2, h2o, temp, timeOfDay float64) []float64 {
	out := make([]float64, len(k.rates))
	cosChi := CosZenith(timeOfDay, k.opts.Latitude, k.opts.Declination)
	dynamo.ParallelFor(len(out), k.opts.ParallelThreshold, func(start, end int) {
		for r := start; r < end; r++ {
			out[r] = Coefficient(k.rates[r], temp, cosChi) * multiplier(k.rates[r], ro2, h2o)
		}
	})
	return out
}

func (k *MassAction) RatesPeroxyDerivative(ro2, h2o, temp, timeOfDay float64) []float64 {
	out := make([]float64, len(k.rates))
	cosChi := CosZenith(timeOfDay, k.opts.Latitude, k.opts.Declination)
	for r, rate := range k.rates {
		if rate.Multiplier == mechanism.MultiplyRO2 {
			out[r] = Coefficient(rate, temp, cosChi)
		}
	}
	return out
}

func (k *MassAction) ReactantProducts(x []float64) []float64 {
	out := make([]float64, len(k.reactants))
	dynamo.ParallelFor(len(out), k.opts.ParallelThreshold, func(start, end int) {
		for r := start; r < end; r++ {
			p := 1.0
			for _, t := range k.reactants[r] {
				p *= pow(x[t.species], t.coeff)
			}
			out[r] = p
		}
	})
	return out
}

func (k *MassAction) LossGain(reactionRates []float64) []float64 {
	out := make([]float64, k.nSpecies)
	dynamo.ParallelFor(len(out), k.opts.ParallelThreshold, func(start, end int) {
		for s := start; s < end; s++ {
			sum := 0.0
			for _, t := range k.lossGain[s] {
				sum += t.coeff * reactionRates[t.species]
			}
			out[s] = sum
		}
	})
	return out
}

func (k *MassAction) Jacobian(rates []float64, x []float64) *mat.Dense {
	n := k.nSpecies
	data := make([]float64, n*n)
	for r, reactants := range k.reactants {
		if rates[r] == 0 || len(k.net[r]) == 0 {
			continue
		}
		for j, tj := range reactants {
			d := rates[r] * tj.coeff * pow(x[tj.species], tj.coeff-1)
			for l, tl := range reactants {
				if l != j {
					d *= pow(x[tl.species], tl.coeff)
				}
			}
			col := tj.species
			for _, ti := range k.net[r] {
				data[ti.species*n+col] += ti.coeff * d
			}
		}
	}
	return mat.NewDense(n, n, data)
}

func pow(x, c float64) float64 {
	switch c {
	case 0:
		return 1
	case 1:
		return x
	case 2:
		return x * x
	case 3:
		return x * x * x
	}
	return math.Pow(x, c)
}
