package config

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/chembox/internal/dynamo"
)

const (
	DefaultTemperature = 298.15
	DefaultRH          = 50.0
	DefaultHorizon     = 3600.0
	DefaultBatchStep   = 100.0
	DefaultStartTime   = 12 * 3600.0
	DefaultLatitude    = 50.0
	DefaultDeclination = 23.79
)

// Config is one box-model run as read from YAML.
type Config struct {
	Mechanism   string             `yaml:"mechanism"`
	Kernels     string             `yaml:"kernels"`
	Solver      string             `yaml:"solver"`
	InitialPPB  map[string]float64 `yaml:"initial_ppb"`
	Peroxy      []string           `yaml:"peroxy,omitempty"`
	Temperature float64            `yaml:"temperature"`
	RH          float64            `yaml:"rh"`
	H2O         float64            `yaml:"h2o,omitempty"`
	StartTime   float64            `yaml:"start_time"`
	Latitude    float64            `yaml:"latitude"`
	Declination float64            `yaml:"declination"`
	Horizon     float64            `yaml:"horizon"`
	BatchStep   float64            `yaml:"batch_step"`
	Tuning      SolverTuning       `yaml:"tuning"`
	SaveOutput  bool               `yaml:"save_output"`
	PlotSpecies []string           `yaml:"plot_species,omitempty"`
}

// SolverTuning mirrors dynamo.SolverConfig with a single absolute
// tolerance applied to every species.
type SolverTuning struct {
	AbsTol             float64 `yaml:"atol"`
	RelTol             float64 `yaml:"rtol"`
	InitialStep        float64 `yaml:"initial_step"`
	MaxStep            float64 `yaml:"max_step"`
	MinStep            float64 `yaml:"min_step"`
	UseJacobian        bool    `yaml:"use_jacobian"`
	MaxConvFailures    int     `yaml:"max_conv_failures"`
	MaxSteps           int     `yaml:"max_steps"`
	ReportContinuously bool    `yaml:"report_continuously"`
}

func DefaultTuning() SolverTuning {
	d := dynamo.DefaultSolverConfig(1)
	return SolverTuning{
		AbsTol:             d.AbsTol[0],
		RelTol:             d.RelTol,
		InitialStep:        d.InitialStep,
		MaxStep:            d.MaxStep,
		MinStep:            d.MinStep,
		UseJacobian:        d.UseJacobian,
		MaxConvFailures:    d.MaxConvFailures,
		MaxSteps:           d.MaxSteps,
		ReportContinuously: d.ReportContinuously,
	}
}

// SolverConfig expands the tuning for an n-species system.
func (t SolverTuning) SolverConfig(n int) dynamo.SolverConfig {
	return dynamo.SolverConfig{
		AbsTol:             dynamo.UniformTolerance(n, t.AbsTol),
		RelTol:             t.RelTol,
		InitialStep:        t.InitialStep,
		MaxStep:            t.MaxStep,
		MinStep:            t.MinStep,
		UseJacobian:        t.UseJacobian,
		MaxConvFailures:    t.MaxConvFailures,
		MaxSteps:           t.MaxSteps,
		ReportContinuously: t.ReportContinuously,
	}
}

func DefaultConfig() *Config {
	return &Config{
		Mechanism:   "apinene",
		Kernels:     "massaction",
		Solver:      "rosenbrock",
		InitialPPB:  map[string]float64{"APINENE": 18, "O3": 30, "NO": 0.1, "NO2": 1},
		Temperature: DefaultTemperature,
		RH:          DefaultRH,
		StartTime:   DefaultStartTime,
		Latitude:    DefaultLatitude,
		Declination: DefaultDeclination,
		Horizon:     DefaultHorizon,
		BatchStep:   DefaultBatchStep,
		Tuning:      DefaultTuning(),
		SaveOutput:  true,
		PlotSpecies: []string{"APINENE", "PINONIC"},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults, so a file only needs the fields
// it changes. An initial_ppb map replaces the default one.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	cfg.InitialPPB = nil
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.InitialPPB == nil {
		cfg.InitialPPB = DefaultConfig().InitialPPB
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks the values that do not depend on the mechanism.
// Species names are checked when the run context is built.
func (c *Config) Validate() error {
	if c.Mechanism == "" {
		return fmt.Errorf("%w: no mechanism", dynamo.ErrConfiguration)
	}
	if c.Temperature <= 0 {
		return fmt.Errorf("%w: temperature must be positive, got %g K", dynamo.ErrConfiguration, c.Temperature)
	}
	if c.RH < 0 || c.RH > 100 {
		return fmt.Errorf("%w: rh must be within [0, 100], got %g", dynamo.ErrConfiguration, c.RH)
	}
	if c.H2O < 0 {
		return fmt.Errorf("%w: h2o must not be negative", dynamo.ErrConfiguration)
	}
	if c.BatchStep <= 0 {
		return fmt.Errorf("%w: batch_step must be positive, got %g", dynamo.ErrConfiguration, c.BatchStep)
	}
	if c.Horizon < c.BatchStep {
		return fmt.Errorf("%w: horizon %g is shorter than batch_step %g", dynamo.ErrConfiguration, c.Horizon, c.BatchStep)
	}
	if c.Latitude < -90 || c.Latitude > 90 {
		return fmt.Errorf("%w: latitude must be within [-90, 90], got %g", dynamo.ErrConfiguration, c.Latitude)
	}
	for name, ppb := range c.InitialPPB {
		if ppb < 0 || math.IsNaN(ppb) {
			return fmt.Errorf("%w: initial_ppb[%s] must not be negative", dynamo.ErrConfiguration, name)
		}
	}
	if c.Tuning.AbsTol <= 0 || c.Tuning.RelTol <= 0 {
		return fmt.Errorf("%w: tolerances must be positive", dynamo.ErrConfiguration)
	}
	return nil
}

// Clone returns a deep copy so presets and sweep points never share maps.
func (c *Config) Clone() *Config {
	out := *c
	out.InitialPPB = make(map[string]float64, len(c.InitialPPB))
	for k, v := range c.InitialPPB {
		out.InitialPPB[k] = v
	}
	out.Peroxy = append([]string(nil), c.Peroxy...)
	out.PlotSpecies = append([]string(nil), c.PlotSpecies...)
	return &out
}
