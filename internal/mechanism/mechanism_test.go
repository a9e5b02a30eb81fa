package mechanism

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/san-kum/chembox/internal/dynamo"
)

const ozoneYAML = `
name: ozone
species: [NO, NO2, O3, RO2X]
peroxy: [RO2X]
reactions:
  - name: photolysis
    reactants: [{species: NO2}]
    products: [{species: NO}, {species: O3}]
    rate: {kind: photolysis, l: 1.165e-2, m: 0.244, n: 0.267}
  - reactants: [{species: NO}, {species: O3}]
    products: [{species: NO2}]
    rate: {kind: arrhenius, a: 1.4e-12, c: -1310}
  - reactants: [{species: RO2X, coeff: 2}]
    products: [{species: NO2, coeff: 0.5}]
    rate: {a: 1e-13, multiplier: RO2}
`

func TestParse(t *testing.T) {
	m, err := Parse([]byte(ozoneYAML))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	if m.NumSpecies() != 4 || m.NumReactions() != 3 {
		t.Fatalf("expected 4 species and 3 reactions, got %d and %d", m.NumSpecies(), m.NumReactions())
	}
	if m.Reactions[0].Reactants[0].Coeff != 1 {
		t.Error("missing coefficient should default to 1")
	}
	if m.Reactions[2].Rate.Kind != Constant {
		t.Errorf("missing rate kind should default to constant, got %q", m.Reactions[2].Rate.Kind)
	}
	if idx := m.Index(); idx["O3"] != 2 {
		t.Errorf("expected O3 at index 2, got %d", idx["O3"])
	}
	if got := m.Reactions[2].Equation(); got != "2 RO2X -> 0.5 NO2" {
		t.Errorf("unexpected equation %q", got)
	}
	if got := m.Reactions[1].Label(1); got != "R2" {
		t.Errorf("unexpected label %q", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Mechanism)
		message string
	}{
		{"no species", func(m *Mechanism) { m.Species = nil }, "no species"},
		{"duplicate species", func(m *Mechanism) { m.Species = append(m.Species, "A") }, "duplicate"},
		{"unknown peroxy", func(m *Mechanism) { m.Peroxy = []string{"X"} }, "peroxy"},
		{"unknown reactant", func(m *Mechanism) { m.Reactions[0].Reactants[0].Species = "X" }, "unknown reactant"},
		{"unknown product", func(m *Mechanism) { m.Reactions[0].Products[0].Species = "X" }, "unknown product"},
		{"no reactants", func(m *Mechanism) { m.Reactions[0].Reactants = nil }, "no reactants"},
		{"bad kind", func(m *Mechanism) { m.Reactions[0].Rate.Kind = "troe" }, "rate kind"},
		{"bad multiplier", func(m *Mechanism) { m.Reactions[0].Rate.Multiplier = "M" }, "multiplier"},
		{"negative A", func(m *Mechanism) { m.Reactions[0].Rate.A = -1 }, "pre-exponential"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Decay()
			tt.mutate(m)
			err := m.Validate()
			if !errors.Is(err, dynamo.ErrConfiguration) {
				t.Fatalf("expected configuration error, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.message) {
				t.Errorf("error %q does not mention %q", err, tt.message)
			}
		})
	}
}

func TestBuiltins(t *testing.T) {
	for _, name := range BuiltinNames() {
		m, err := Builtin(name)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if err := m.Validate(); err != nil {
			t.Errorf("%s: invalid built-in: %v", name, err)
		}
	}

	if _, err := Builtin("nonexistent"); err == nil {
		t.Error("expected error for unknown mechanism")
	}

	a, _ := Builtin("decay")
	a.Species[0] = "Z"
	b, _ := Builtin("decay")
	if b.Species[0] != "A" {
		t.Error("Builtin should return independent copies")
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "apinene.yaml")
	if err := Save(path, APinene()); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	m, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if m.NumReactions() != APinene().NumReactions() {
		t.Errorf("round trip lost reactions: %d", m.NumReactions())
	}
	if len(m.Peroxy) != 2 {
		t.Errorf("expected 2 peroxy species, got %v", m.Peroxy)
	}
}
