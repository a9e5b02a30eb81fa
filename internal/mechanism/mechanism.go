// Package mechanism describes gas-phase chemical mechanisms: the species,
// the peroxy-radical subset and the reactions with their rate laws.
//
// Mechanisms are read from YAML or taken from the built-in set. They are
// plain data; package kinetics compiles them into evaluation kernels.
package mechanism

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/san-kum/chembox/internal/dynamo"
	"gopkg.in/yaml.v3"
)

type RateKind string

const (
	Constant   RateKind = "constant"
	Arrhenius  RateKind = "arrhenius"
	Photolysis RateKind = "photolysis"
)

// Multipliers applied on top of a rate law.
const (
	MultiplyRO2 = "RO2"
	MultiplyH2O = "H2O"
)

// Rate is a rate coefficient law.
//
//	constant:   k = A
//	arrhenius:  k = A * (T/300)^B * exp(C/T)
//	photolysis: k = L * cos(chi)^M * exp(-N / cos(chi)), zero when the sun is down
//
// If Multiplier is RO2 or H2O, k is further multiplied by the peroxy sum
// or the water concentration.
type Rate struct {
	Kind       RateKind `yaml:"kind"`
	A          float64  `yaml:"a,omitempty"`
	B          float64  `yaml:"b,omitempty"`
	C          float64  `yaml:"c,omitempty"`
	L          float64  `yaml:"l,omitempty"`
	M          float64  `yaml:"m,omitempty"`
	N          float64  `yaml:"n,omitempty"`
	Multiplier string   `yaml:"multiplier,omitempty"`
}

type Term struct {
	Species string  `yaml:"species"`
	Coeff   float64 `yaml:"coeff,omitempty"`
}

type Reaction struct {
	Name      string `yaml:"name,omitempty"`
	Reactants []Term `yaml:"reactants"`
	Products  []Term `yaml:"products"`
	Rate      Rate   `yaml:"rate"`
}

type Mechanism struct {
	Name      string     `yaml:"name"`
	Species   []string   `yaml:"species"`
	Peroxy    []string   `yaml:"peroxy,omitempty"`
	Reactions []Reaction `yaml:"reactions"`
}

func Load(path string) (*Mechanism, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes a YAML mechanism, fills in unit coefficients and
// validates it.
func Parse(data []byte) (*Mechanism, error) {
	var m Mechanism
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("mechanism: %w", err)
	}
	m.normalize()
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func Save(path string, m *Mechanism) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (m *Mechanism) normalize() {
	for i := range m.Reactions {
		r := &m.Reactions[i]
		for j := range r.Reactants {
			if r.Reactants[j].Coeff == 0 {
				r.Reactants[j].Coeff = 1
			}
		}
		for j := range r.Products {
			if r.Products[j].Coeff == 0 {
				r.Products[j].Coeff = 1
			}
		}
		if r.Rate.Kind == "" {
			r.Rate.Kind = Constant
		}
	}
}

// Validate reports the first structural inconsistency in the mechanism.
func (m *Mechanism) Validate() error {
	if len(m.Species) == 0 {
		return fmt.Errorf("%w: mechanism %q has no species", dynamo.ErrConfiguration, m.Name)
	}
	index := make(map[string]int, len(m.Species))
	for i, s := range m.Species {
		if s == "" {
			return fmt.Errorf("%w: species %d has no name", dynamo.ErrConfiguration, i)
		}
		if _, dup := index[s]; dup {
			return fmt.Errorf("%w: duplicate species %q", dynamo.ErrConfiguration, s)
		}
		index[s] = i
	}
	for _, p := range m.Peroxy {
		if _, ok := index[p]; !ok {
			return fmt.Errorf("%w: peroxy species %q is not in the mechanism", dynamo.ErrConfiguration, p)
		}
	}
	for i, r := range m.Reactions {
		if err := r.validate(index); err != nil {
			return fmt.Errorf("%w: reaction %d (%s): %v", dynamo.ErrConfiguration, i, r.Label(i), err)
		}
	}
	return nil
}

func (r Reaction) validate(index map[string]int) error {
	if len(r.Reactants) == 0 {
		return fmt.Errorf("no reactants")
	}
	for _, t := range r.Reactants {
		if _, ok := index[t.Species]; !ok {
			return fmt.Errorf("unknown reactant %q", t.Species)
		}
		if t.Coeff <= 0 {
			return fmt.Errorf("reactant %q coefficient must be positive", t.Species)
		}
	}
	for _, t := range r.Products {
		if _, ok := index[t.Species]; !ok {
			return fmt.Errorf("unknown product %q", t.Species)
		}
		if t.Coeff <= 0 {
			return fmt.Errorf("product %q coefficient must be positive", t.Species)
		}
	}
	switch r.Rate.Kind {
	case Constant, Arrhenius:
		if r.Rate.A < 0 {
			return fmt.Errorf("negative pre-exponential factor")
		}
	case Photolysis:
		if r.Rate.L < 0 {
			return fmt.Errorf("negative photolysis scale")
		}
	default:
		return fmt.Errorf("unknown rate kind %q", r.Rate.Kind)
	}
	switch r.Rate.Multiplier {
	case "", MultiplyRO2, MultiplyH2O:
	default:
		return fmt.Errorf("unknown rate multiplier %q", r.Rate.Multiplier)
	}
	return nil
}

// Index maps each species name to its position in the state vector.
func (m *Mechanism) Index() map[string]int {
	index := make(map[string]int, len(m.Species))
	for i, s := range m.Species {
		index[s] = i
	}
	return index
}

func (m *Mechanism) NumSpecies() int   { return len(m.Species) }
func (m *Mechanism) NumReactions() int { return len(m.Reactions) }

// Label returns the reaction name, or R<i+1> when unnamed.
func (r Reaction) Label(i int) string {
	if r.Name != "" {
		return r.Name
	}
	return fmt.Sprintf("R%d", i+1)
}

// Equation renders the reaction as "A + 2 B -> C".
func (r Reaction) Equation() string {
	return joinTerms(r.Reactants) + " -> " + joinTerms(r.Products)
}

func joinTerms(terms []Term) string {
	if len(terms) == 0 {
		return "(nothing)"
	}
	parts := make([]string, len(terms))
	for i, t := range terms {
		if t.Coeff == 1 {
			parts[i] = t.Species
		} else {
			parts[i] = strconv.FormatFloat(t.Coeff, 'g', -1, 64) + " " + t.Species
		}
	}
	return strings.Join(parts, " + ")
}
