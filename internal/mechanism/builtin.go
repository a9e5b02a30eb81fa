package mechanism

import (
	"fmt"
	"sort"
)

var builtins = map[string]func() *Mechanism{
	"decay":     Decay,
	"robertson": Robertson,
	"apinene":   APinene,
}

// Builtin returns a fresh copy of a built-in mechanism.
func Builtin(name string) (*Mechanism, error) {
	fn, ok := builtins[name]
	if !ok {
		return nil, fmt.Errorf("unknown mechanism: %s (available: %v)", name, BuiltinNames())
	}
	m := fn()
	m.normalize()
	return m, nil
}

func BuiltinNames() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Decay is the single first-order reaction A -> B.
func Decay() *Mechanism {
	return &Mechanism{
		Name:    "decay",
		Species: []string{"A", "B"},
		Reactions: []Reaction{
			{
				Name:      "decay",
				Reactants: []Term{{Species: "A", Coeff: 1}},
				Products:  []Term{{Species: "B", Coeff: 1}},
				Rate:      Rate{Kind: Constant, A: 1e-3},
			},
		},
	}
}

// Robertson is the classic stiff three-species autocatalytic system.
func Robertson() *Mechanism {
	return &Mechanism{
		Name:    "robertson",
		Species: []string{"A", "B", "C"},
		Reactions: []Reaction{
			{
				Reactants: []Term{{Species: "A", Coeff: 1}},
				Products:  []Term{{Species: "B", Coeff: 1}},
				Rate:      Rate{Kind: Constant, A: 0.04},
			},
			{
				Reactants: []Term{{Species: "B", Coeff: 2}},
				Products:  []Term{{Species: "B", Coeff: 1}, {Species: "C", Coeff: 1}},
				Rate:      Rate{Kind: Constant, A: 3e7},
			},
			{
				Reactants: []Term{{Species: "B", Coeff: 1}, {Species: "C", Coeff: 1}},
				Products:  []Term{{Species: "A", Coeff: 1}, {Species: "C", Coeff: 1}},
				Rate:      Rate{Kind: Constant, A: 1e4},
			},
		},
	}
}

// APinene is a condensed alpha-pinene oxidation scheme with NOx/HOx
// cycling, O3 and NO2 photolysis and two peroxy radicals.
func APinene() *Mechanism {
	t := func(s string, c float64) Term { return Term{Species: s, Coeff: c} }
	return &Mechanism{
		Name: "apinene",
		Species: []string{
			"APINENE", "O3", "NO", "NO2", "O1D", "OH", "HO2", "H2O2",
			"HNO3", "APINAO2", "APINBO2", "PINAL", "PINONIC",
		},
		Peroxy: []string{"APINAO2", "APINBO2"},
		Reactions: []Reaction{
			{
				Name:      "J_NO2",
				Reactants: []Term{t("NO2", 1)},
				Products:  []Term{t("NO", 1), t("O3", 1)},
				Rate:      Rate{Kind: Photolysis, L: 1.165e-2, M: 0.244, N: 0.267},
			},
			{
				Name:      "J_O3",
				Reactants: []Term{t("O3", 1)},
				Products:  []Term{t("O1D", 1)},
				Rate:      Rate{Kind: Photolysis, L: 6.073e-5, M: 1.743, N: 0.474},
			},
			{
				Name:      "O1D_H2O",
				Reactants: []Term{t("O1D", 1)},
				Products:  []Term{t("OH", 2)},
				Rate:      Rate{Kind: Constant, A: 2.14e-10, Multiplier: MultiplyH2O},
			},
			{
				Name:      "O1D_quench",
				Reactants: []Term{t("O1D", 1)},
				Products:  []Term{t("O3", 1)},
				Rate:      Rate{Kind: Constant, A: 8.0e8},
			},
			{
				Name:      "NO_O3",
				Reactants: []Term{t("NO", 1), t("O3", 1)},
				Products:  []Term{t("NO2", 1)},
				Rate:      Rate{Kind: Arrhenius, A: 1.4e-12, C: -1310},
			},
			{
				Name:      "HO2_NO",
				Reactants: []Term{t("HO2", 1), t("NO", 1)},
				Products:  []Term{t("OH", 1), t("NO2", 1)},
				Rate:      Rate{Kind: Arrhenius, A: 3.45e-12, C: 270},
			},
			{
				Name:      "OH_NO2",
				Reactants: []Term{t("OH", 1), t("NO2", 1)},
				Products:  []Term{t("HNO3", 1)},
				Rate:      Rate{Kind: Constant, A: 1.1e-11},
			},
			{
				Name:      "HO2_HO2",
				Reactants: []Term{t("HO2", 2)},
				Products:  []Term{t("H2O2", 1)},
				Rate:      Rate{Kind: Arrhenius, A: 2.2e-13, C: 600},
			},
			{
				Name:      "HO2_O3",
				Reactants: []Term{t("HO2", 1), t("O3", 1)},
				Products:  []Term{t("OH", 1)},
				Rate:      Rate{Kind: Arrhenius, A: 2.03e-16, B: 4.57, C: 693},
			},
			{
				Name:      "OH_O3",
				Reactants: []Term{t("OH", 1), t("O3", 1)},
				Products:  []Term{t("HO2", 1)},
				Rate:      Rate{Kind: Arrhenius, A: 1.7e-12, C: -940},
			},
			{
				Name:      "APINENE_O3",
				Reactants: []Term{t("APINENE", 1), t("O3", 1)},
				Products:  []Term{t("OH", 0.8), t("APINBO2", 0.8), t("PINONIC", 0.2)},
				Rate:      Rate{Kind: Arrhenius, A: 8.05e-16, C: -640},
			},
			{
				Name:      "APINENE_OH",
				Reactants: []Term{t("APINENE", 1), t("OH", 1)},
				Products:  []Term{t("APINAO2", 1)},
				Rate:      Rate{Kind: Arrhenius, A: 1.2e-11, C: 440},
			},
			{
				Name:      "APINAO2_NO",
				Reactants: []Term{t("APINAO2", 1), t("NO", 1)},
				Products:  []Term{t("NO2", 1), t("HO2", 1), t("PINAL", 1)},
				Rate:      Rate{Kind: Arrhenius, A: 2.7e-12, C: 360},
			},
			{
				Name:      "APINBO2_NO",
				Reactants: []Term{t("APINBO2", 1), t("NO", 1)},
				Products:  []Term{t("NO2", 1), t("HO2", 1), t("PINAL", 1)},
				Rate:      Rate{Kind: Arrhenius, A: 2.7e-12, C: 360},
			},
			{
				Name:      "APINAO2_RO2",
				Reactants: []Term{t("APINAO2", 1)},
				Products:  []Term{t("PINAL", 1)},
				Rate:      Rate{Kind: Constant, A: 6.4e-14, Multiplier: MultiplyRO2},
			},
			{
				Name:      "APINBO2_RO2",
				Reactants: []Term{t("APINBO2", 1)},
				Products:  []Term{t("PINONIC", 1)},
				Rate:      Rate{Kind: Constant, A: 9.2e-14, Multiplier: MultiplyRO2},
			},
			{
				Name:      "PINAL_OH",
				Reactants: []Term{t("PINAL", 1), t("OH", 1)},
				Products:  []Term{t("PINONIC", 1)},
				Rate:      Rate{Kind: Arrhenius, A: 5.2e-12, C: 600},
			},
		},
	}
}
