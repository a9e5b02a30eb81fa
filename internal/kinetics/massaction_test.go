package kinetics_test

import (
	"fmt"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/chembox/internal/kinetics"
	"github.com/san-kum/chembox/internal/mechanism"
)

func massAction(m *mechanism.Mechanism) *kinetics.MassAction {
	k, err := kinetics.NewMassAction(m, kinetics.DefaultOptions())
	Expect(err).NotTo(HaveOccurred())
	return k
}

// finiteDifference estimates column j of d(LossGain(k*P(x)))/dx with a
// central difference of relative step rel.
func finiteDifference(k *kinetics.MassAction, rates, x []float64, j int, rel float64) []float64 {
	f := func(y []float64) []float64 {
		p := k.ReactantProducts(y)
		for r := range p {
			p[r] *= rates[r]
		}
		return k.LossGain(p)
	}
	h := rel * math.Max(math.Abs(x[j]), 1)
	xp := append([]float64(nil), x...)
	xm := append([]float64(nil), x...)
	xp[j] += h
	xm[j] -= h
	fp, fm := f(xp), f(xm)
	col := make([]float64, len(x))
	for i := range col {
		col[i] = (fp[i] - fm[i]) / (2 * h)
	}
	return col
}

var _ = Describe("MassAction", func() {
	Context("with the decay mechanism", func() {
		var k *kinetics.MassAction

		BeforeEach(func() {
			k = massAction(mechanism.Decay())
		})

		It("reports its dimensions", func() {
			Expect(k.NumSpecies()).To(Equal(2))
			Expect(k.NumReactions()).To(Equal(1))
		})

		It("evaluates a constant rate regardless of conditions", func() {
			Expect(k.Rates(0, 0, 298, 0)).To(Equal([]float64{1e-3}))
			Expect(k.Rates(5, 1e17, 250, 43200)).To(Equal([]float64{1e-3}))
		})

		It("maps the reaction rate onto loss and gain", func() {
			Expect(k.ReactantProducts([]float64{4, 7})).To(Equal([]float64{4}))
			Expect(k.LossGain([]float64{2.5})).To(Equal([]float64{-2.5, 2.5}))
		})

		It("assembles the Jacobian", func() {
			J := k.Jacobian([]float64{0.1}, []float64{3, 0})
			Expect(J.At(0, 0)).To(Equal(-0.1))
			Expect(J.At(1, 0)).To(Equal(0.1))
			Expect(J.At(0, 1)).To(Equal(0.0))
			Expect(J.At(1, 1)).To(Equal(0.0))
		})
	})

	Context("with higher-order and repeated reactants", func() {
		var m *mechanism.Mechanism

		BeforeEach(func() {
			m = &mechanism.Mechanism{
				Name:    "orders",
				Species: []string{"A", "B", "C"},
				Reactions: []mechanism.Reaction{
					{
						Reactants: []mechanism.Term{{Species: "A", Coeff: 1}, {Species: "A", Coeff: 1}, {Species: "B", Coeff: 1}},
						Products:  []mechanism.Term{{Species: "C", Coeff: 1}, {Species: "A", Coeff: 1}},
						Rate:      mechanism.Rate{Kind: mechanism.Constant, A: 2},
					},
					{
						Reactants: []mechanism.Term{{Species: "C", Coeff: 1.5}},
						Products:  []mechanism.Term{{Species: "B", Coeff: 0.5}},
						Rate:      mechanism.Rate{Kind: mechanism.Constant, A: 0.3},
					},
				},
			}
		})

		It("merges repeated reactants into one power", func() {
			k := massAction(m)
			p := k.ReactantProducts([]float64{3, 2, 4})
			Expect(p[0]).To(Equal(18.0))
			Expect(p[1]).To(BeNumerically("~", 8.0, 1e-12))
		})

		It("cancels species that are both consumed and produced", func() {
			k := massAction(m)
			d := k.LossGain([]float64{1, 0})
			Expect(d).To(Equal([]float64{-1, -1, 1}))
		})

		It("matches a finite-difference Jacobian", func() {
			k := massAction(m)
			x := []float64{3, 2, 4}
			rates := k.Rates(0, 0, 298, 0)
			J := k.Jacobian(rates, x)
			for j := range x {
				col := finiteDifference(k, rates, x, j, 1e-6)
				for i := range col {
					Expect(J.At(i, j)).To(BeNumerically("~", col[i], 1e-6*math.Max(1, math.Abs(col[i]))),
						fmt.Sprintf("J[%d][%d]", i, j))
				}
			}
		})
	})

	Context("with the alpha-pinene mechanism", func() {
		var (
			k *kinetics.MassAction
			x []float64
		)

		BeforeEach(func() {
			k = massAction(mechanism.APinene())
			x = make([]float64, k.NumSpecies())
			for i := range x {
				x[i] = 1e9 * float64(i+1)
			}
			// O1D at zero keeps the fast quench term from swamping the
			// difference quotients.
			x[4] = 0
		})

		It("switches photolysis off at night", func() {
			night := k.Rates(0, 4e17, 298, 0)
			noon := k.Rates(0, 4e17, 298, 43200)
			Expect(night[0]).To(Equal(0.0))
			Expect(noon[0]).To(BeNumerically(">", 1e-3))
		})

		It("scales peroxy reactions with the peroxy sum", func() {
			r1 := k.Rates(1e8, 4e17, 298, 43200)
			r2 := k.Rates(2e8, 4e17, 298, 43200)
			d := k.RatesPeroxyDerivative(1e8, 4e17, 298, 43200)
			for r := range r1 {
				if d[r] != 0 {
					Expect(r2[r]).To(BeNumerically("~", 2*r1[r], 1e-20))
					Expect(r1[r]).To(BeNumerically("~", d[r]*1e8, 1e-20))
				} else {
					Expect(r2[r]).To(Equal(r1[r]))
				}
			}
		})

		It("matches a finite-difference Jacobian", func() {
			rates := k.Rates(3e9, 4e17, 298, 43200)
			J := k.Jacobian(rates, x)
			p := k.ReactantProducts(x)
			for r := range p {
				p[r] *= rates[r]
			}
			f := k.LossGain(p)
			for j := range x {
				// All reactants are first order, so the central difference is
				// exact up to round-off and a wide step is safe.
				const rel = 1e-2
				h := rel * math.Max(math.Abs(x[j]), 1)
				col := finiteDifference(k, rates, x, j, rel)
				for i := range col {
					tol := 1e-4*math.Abs(col[i]) + 1e-13*math.Abs(f[i])/h + 1e-20
					Expect(J.At(i, j)).To(BeNumerically("~", col[i], tol),
						fmt.Sprintf("J[%d][%d]", i, j))
				}
			}
		})

		It("resolves small entries in rows with large tendencies", func() {
			m := mechanism.APinene()
			idx := m.Index()
			r := -1
			for i, rx := range m.Reactions {
				if rx.Name == "APINENE_O3" {
					r = i
				}
			}
			Expect(r).To(BeNumerically(">=", 0))

			rates := k.Rates(3e9, 4e17, 298, 43200)
			J := k.Jacobian(rates, x)
			want := 0.2 * rates[r] * x[idx["O3"]]
			Expect(J.At(idx["PINONIC"], idx["APINENE"])).To(BeNumerically("~", want, 1e-12*want))
		})

		It("is deterministic across calls", func() {
			a := k.LossGain(k.ReactantProducts(x))
			b := k.LossGain(k.ReactantProducts(x))
			Expect(a).To(Equal(b))
		})
	})

	It("evaluates large mechanisms in parallel with identical results", func() {
		const n = 5000
		m := &mechanism.Mechanism{Name: "chain"}
		for i := 0; i < n; i++ {
			m.Species = append(m.Species, fmt.Sprintf("S%d", i))
		}
		for i := 0; i+1 < n; i++ {
			m.Reactions = append(m.Reactions, mechanism.Reaction{
				Reactants: []mechanism.Term{{Species: m.Species[i], Coeff: 1}},
				Products:  []mechanism.Term{{Species: m.Species[i+1], Coeff: 1}},
				Rate:      mechanism.Rate{Kind: mechanism.Arrhenius, A: 1e-3 * float64(i%7+1), C: -100},
			})
		}

		serialOpts := kinetics.DefaultOptions()
		serialOpts.ParallelThreshold = 1 << 30
		serial, err := kinetics.NewMassAction(m, serialOpts)
		Expect(err).NotTo(HaveOccurred())

		parallelOpts := kinetics.DefaultOptions()
		parallelOpts.ParallelThreshold = 64
		parallel, err := kinetics.NewMassAction(m, parallelOpts)
		Expect(err).NotTo(HaveOccurred())

		x := make([]float64, n)
		for i := range x {
			x[i] = float64(i%13) + 0.5
		}

		rs := serial.Rates(0, 0, 280, 0)
		rp := parallel.Rates(0, 0, 280, 0)
		Expect(rp).To(Equal(rs))

		ps := serial.ReactantProducts(x)
		pp := parallel.ReactantProducts(x)
		Expect(pp).To(Equal(ps))

		for r := range ps {
			ps[r] *= rs[r]
		}
		Expect(parallel.LossGain(ps)).To(Equal(serial.LossGain(ps)))
	})

	It("rejects invalid mechanisms", func() {
		m := mechanism.Decay()
		m.Reactions[0].Products[0].Species = "missing"
		_, err := kinetics.NewMassAction(m, kinetics.DefaultOptions())
		Expect(err).To(HaveOccurred())
	})
})
