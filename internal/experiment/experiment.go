package experiment

import (
	"context"
	"fmt"

	"github.com/san-kum/chembox/internal/chem"
	"github.com/san-kum/chembox/internal/config"
	"github.com/san-kum/chembox/internal/kinetics"
	"github.com/san-kum/chembox/internal/mechanism"
	"github.com/san-kum/chembox/internal/sim"
)

// Experiment wires a run configuration into a ready simulator.
type Experiment struct {
	cfg       *config.Config
	mech      *mechanism.Mechanism
	context   *chem.Context
	box       *chem.Box
	simulator *sim.Simulator
}

func New(cfg *config.Config) *Experiment {
	return &Experiment{cfg: cfg.Clone()}
}

// Setup resolves names through the registry and validates the whole run.
// Every configuration error surfaces here.
func (e *Experiment) Setup(reg *Registry, opts ...sim.Option) error {
	if err := e.cfg.Validate(); err != nil {
		return err
	}

	mech, err := reg.GetMechanism(e.cfg.Mechanism)
	if err != nil {
		return err
	}

	kopts := kinetics.DefaultOptions()
	kopts.Latitude = e.cfg.Latitude
	kopts.Declination = e.cfg.Declination
	kernels, err := reg.GetKernels(e.cfg.Kernels, mech, kopts)
	if err != nil {
		return fmt.Errorf("kernels: %w", err)
	}

	peroxy := e.cfg.Peroxy
	if len(peroxy) == 0 {
		peroxy = mech.Peroxy
	}
	cctx, err := chem.NewContext(chem.ContextParams{
		Species:     mech.Species,
		InitialPPB:  e.cfg.InitialPPB,
		Peroxy:      peroxy,
		Temperature: e.cfg.Temperature,
		RH:          e.cfg.RH,
		H2O:         e.cfg.H2O,
		StartTime:   e.cfg.StartTime,
	})
	if err != nil {
		return fmt.Errorf("context: %w", err)
	}

	box, err := chem.NewBox(cctx, kernels)
	if err != nil {
		return err
	}

	solver, err := reg.GetSolver(e.cfg.Solver)
	if err != nil {
		return err
	}

	simCfg := sim.Config{
		Name:      mech.Name,
		Horizon:   e.cfg.Horizon,
		BatchStep: e.cfg.BatchStep,
		Solver:    e.cfg.Tuning.SolverConfig(box.Dim()),
	}
	base := []sim.Option{
		sim.WithSpecies(mech.Species),
		sim.WithMetrics(reg.DefaultMetrics(mech, e.cfg.PlotSpecies)...),
	}
	simulator, err := sim.New(box, solver, simCfg, append(base, opts...)...)
	if err != nil {
		return err
	}

	e.mech = mech
	e.context = cctx
	e.box = box
	e.simulator = simulator
	return nil
}

func (e *Experiment) Run(ctx context.Context) (*sim.Series, error) {
	if e.simulator == nil {
		return nil, fmt.Errorf("experiment not setup")
	}
	return e.simulator.Run(ctx, e.context.Initial())
}

func (e *Experiment) Config() *config.Config          { return e.cfg }
func (e *Experiment) Mechanism() *mechanism.Mechanism { return e.mech }
func (e *Experiment) Context() *chem.Context          { return e.context }

// GetSimulator returns the underlying simulator for adding observers
func (e *Experiment) GetSimulator() *sim.Simulator {
	return e.simulator
}
