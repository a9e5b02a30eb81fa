package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/chembox/internal/config"
	"github.com/san-kum/chembox/internal/experiment"
	"github.com/san-kum/chembox/internal/sim"
)

// Scenario defines a scripted sequence of runs.
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Steps       []ScenarioStep `yaml:"steps"`
}

// ScenarioStep is a preset or config file with scalar overrides.
type ScenarioStep struct {
	Name   string             `yaml:"name"`
	Preset string             `yaml:"preset"`
	Config string             `yaml:"config"`
	Params map[string]float64 `yaml:"params"`
}

// LoadScenario loads a scenario from a YAML file
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	return &scenario, nil
}

func (st ScenarioStep) build() (*config.Config, error) {
	var cfg *config.Config
	switch {
	case st.Config != "":
		loaded, err := config.Load(st.Config)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	case st.Preset != "":
		cfg = config.GetPreset(st.Preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset %q", st.Preset)
		}
	default:
		cfg = config.DefaultConfig()
	}
	for k, v := range st.Params {
		if err := Apply(cfg, k, v); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// RunScenario executes the steps in order. It stops at the first failure
// and returns the series completed so far.
func RunScenario(ctx context.Context, scenario *Scenario, reg *experiment.Registry, logger *slog.Logger, opts ...sim.Option) ([]*sim.Series, error) {
	if logger == nil {
		logger = slog.Default()
	}
	results := make([]*sim.Series, 0, len(scenario.Steps))

	for i, step := range scenario.Steps {
		logger.Info("scenario step", slog.Int("step", i+1), slog.Int("of", len(scenario.Steps)), slog.String("name", step.Name))

		cfg, err := step.build()
		if err != nil {
			return results, fmt.Errorf("step %d: %w", i+1, err)
		}
		series, err := runOne(ctx, cfg, reg, opts)
		if err != nil {
			return results, fmt.Errorf("step %d: %w", i+1, err)
		}
		if step.Name != "" {
			series.Name = step.Name
		}
		results = append(results, series)
	}

	return results, nil
}
