package experiment

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"path/filepath"
	"testing"

	"github.com/san-kum/chembox/internal/chem"
	"github.com/san-kum/chembox/internal/config"
	"github.com/san-kum/chembox/internal/dynamo"
	"github.com/san-kum/chembox/internal/mechanism"
	"github.com/san-kum/chembox/internal/sim"
)

var quiet = sim.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))

func TestDecayPreset(t *testing.T) {
	cfg := config.GetPreset("decay")
	exp := New(cfg)
	if err := exp.Setup(NewRegistry(), quiet); err != nil {
		t.Fatalf("setup: %v", err)
	}
	series, err := exp.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if series.Len() != 36 {
		t.Fatalf("expected 36 rows, got %d", series.Len())
	}
	a0 := 100 * chem.PPBToMolecules
	for _, row := range series.Rows() {
		want := a0 * math.Exp(-1e-3*row.Elapsed)
		if math.Abs(row.State[0]-want) > 1e-9*want {
			t.Errorf("t=%g: A = %g, want %g", row.Elapsed, row.State[0], want)
		}
	}
	if drift := series.Metrics["mass_drift"]; drift > 1e-12 {
		t.Errorf("mass drift %g", drift)
	}
	if _, ok := series.Metrics["peak_B"]; !ok {
		t.Errorf("expected a peak metric for B, got %v", series.Metrics)
	}
	if got := series.Species; len(got) != 2 || got[0] != "A" || got[1] != "B" {
		t.Errorf("unexpected species %v", got)
	}
}

func TestAPineneShortRun(t *testing.T) {
	cfg := config.GetPreset("apinene_day")
	cfg.Horizon = 600
	exp := New(cfg)
	if err := exp.Setup(NewRegistry(), quiet); err != nil {
		t.Fatalf("setup: %v", err)
	}
	series, err := exp.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if series.Len() != 6 {
		t.Fatalf("expected 6 rows, got %d", series.Len())
	}

	idx, _ := exp.Context().Index("APINENE")
	prev := exp.Context().Initial()[idx]
	for _, row := range series.Rows() {
		if !row.State.IsValid() {
			t.Fatalf("t=%g: invalid state", row.Elapsed)
		}
		if row.State[idx] > prev {
			t.Errorf("t=%g: APINENE should only be consumed", row.Elapsed)
		}
		prev = row.State[idx]
	}
	pinonic, _ := exp.Context().Index("PINONIC")
	if last, _ := series.Last(); last.State[pinonic] <= 0 {
		t.Error("expected PINONIC to be produced")
	}
}

func TestSetupErrors(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*config.Config)
	}{
		{"unknown solver", func(c *config.Config) { c.Solver = "euler" }},
		{"unknown kernels", func(c *config.Config) { c.Kernels = "gpu" }},
		{"unknown mechanism", func(c *config.Config) { c.Mechanism = "mcm" }},
		{"unknown species", func(c *config.Config) { c.InitialPPB = map[string]float64{"XYZ": 1} }},
		{"unknown peroxy species", func(c *config.Config) { c.Peroxy = []string{"XYZ"} }},
		{"horizon shorter than batch", func(c *config.Config) { c.Horizon = 10 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			tt.modify(cfg)
			err := New(cfg).Setup(NewRegistry(), quiet)
			if !errors.Is(err, dynamo.ErrConfiguration) {
				t.Errorf("expected ErrConfiguration, got %v", err)
			}
		})
	}
}

func TestRunBeforeSetup(t *testing.T) {
	if _, err := New(config.DefaultConfig()).Run(context.Background()); err == nil {
		t.Error("expected an error when running without setup")
	}
}

func TestMechanismFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "decay.yaml")
	m := mechanism.Decay()
	m.Name = "custom"
	if err := mechanism.Save(path, m); err != nil {
		t.Fatal(err)
	}

	reg := NewRegistry()
	loaded, err := reg.GetMechanism(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Name != "custom" || loaded.NumSpecies() != 2 {
		t.Errorf("unexpected mechanism %+v", loaded)
	}
}

func TestRegistryListings(t *testing.T) {
	reg := NewRegistry()
	solvers := reg.ListSolvers()
	if len(solvers) != 3 || solvers[0] != "dopri" || solvers[2] != "rosenbrock" {
		t.Errorf("unexpected solvers %v", solvers)
	}
	if k := reg.ListKernels(); len(k) != 1 || k[0] != "massaction" {
		t.Errorf("unexpected kernels %v", k)
	}
	if len(reg.ListMechanisms()) == 0 {
		t.Error("expected built-in mechanisms")
	}

	reg.RegisterSolver("alias", reg.solvers["rosenbrock"])
	s, err := reg.GetSolver("alias")
	if err != nil || s.Name() != "rosenbrock" {
		t.Errorf("registered solver not found: %v, %v", s, err)
	}
}
