package kinetics_test

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/chembox/internal/kinetics"
	"github.com/san-kum/chembox/internal/mechanism"
)

var _ = Describe("Rate laws", func() {
	DescribeTable("Coefficient",
		func(r mechanism.Rate, temp, cosChi, expected float64) {
			Expect(kinetics.Coefficient(r, temp, cosChi)).To(BeNumerically("~", expected, math.Abs(expected)*1e-12))
		},
		Entry("constant", mechanism.Rate{Kind: mechanism.Constant, A: 2.5e-11}, 298.0, 0.5, 2.5e-11),
		Entry("plain arrhenius", mechanism.Rate{Kind: mechanism.Arrhenius, A: 1.4e-12, C: -1310}, 298.0, 0.5,
			1.4e-12*math.Exp(-1310/298.0)),
		Entry("arrhenius with temperature exponent", mechanism.Rate{Kind: mechanism.Arrhenius, A: 2.03e-16, B: 4.57, C: 693}, 250.0, 0.5,
			2.03e-16*math.Pow(250.0/300, 4.57)*math.Exp(693/250.0)),
		Entry("photolysis in daylight", mechanism.Rate{Kind: mechanism.Photolysis, L: 1e-2, M: 0.5, N: 0.25}, 298.0, 0.81,
			1e-2*0.9*math.Exp(-0.25/0.81)),
		Entry("photolysis at night", mechanism.Rate{Kind: mechanism.Photolysis, L: 1e-2, M: 0.5, N: 0.25}, 298.0, -0.2, 0.0),
	)

	Describe("CosZenith", func() {
		It("peaks at local noon", func() {
			noon := kinetics.CosZenith(43200, 50, 23.79)
			Expect(noon).To(BeNumerically("~", math.Cos((50-23.79)*math.Pi/180), 1e-12))
			Expect(kinetics.CosZenith(43200-3600, 50, 23.79)).To(BeNumerically("<", noon))
			Expect(kinetics.CosZenith(43200+3600, 50, 23.79)).To(BeNumerically("<", noon))
		})

		It("is below the horizon at midnight", func() {
			Expect(kinetics.CosZenith(0, 50, 23.79)).To(BeNumerically("<", 0))
		})

		It("repeats every day", func() {
			Expect(kinetics.CosZenith(36000+86400, 50, 23.79)).To(BeNumerically("~", kinetics.CosZenith(36000, 50, 23.79), 1e-12))
		})
	})
})
