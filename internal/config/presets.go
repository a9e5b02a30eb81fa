package config

import "sort"

var Presets = map[string]*Config{
	"decay": {
		Mechanism: "decay", Kernels: "massaction", Solver: "exponential",
		InitialPPB: map[string]float64{"A": 100},
		Temperature: DefaultTemperature, RH: DefaultRH, StartTime: 0,
		Latitude: DefaultLatitude, Declination: DefaultDeclination,
		Horizon: 3600, BatchStep: 100,
		SaveOutput: true, PlotSpecies: []string{"A", "B"},
	},
	"apinene_day": {
		Mechanism: "apinene", Kernels: "massaction", Solver: "rosenbrock",
		InitialPPB: map[string]float64{"APINENE": 18, "O3": 30, "NO": 0.1, "NO2": 1},
		Temperature: DefaultTemperature, RH: DefaultRH, StartTime: 12 * 3600,
		Latitude: DefaultLatitude, Declination: DefaultDeclination,
		Horizon: 3600, BatchStep: 100,
		SaveOutput: true, PlotSpecies: []string{"APINENE", "PINONIC"},
	},
	"apinene_night": {
		Mechanism: "apinene", Kernels: "massaction", Solver: "rosenbrock",
		InitialPPB: map[string]float64{"APINENE": 18, "O3": 40, "NO2": 2},
		Temperature: 285, RH: 80, StartTime: 0,
		Latitude: DefaultLatitude, Declination: DefaultDeclination,
		Horizon: 3 * 3600, BatchStep: 300,
		SaveOutput: true, PlotSpecies: []string{"APINENE", "PINONIC"},
	},
}

// GetPreset returns a copy of the named preset with default solver
// tuning, or nil.
func GetPreset(name string) *Config {
	p, ok := Presets[name]
	if !ok {
		return nil
	}
	cfg := p.Clone()
	if cfg.Tuning == (SolverTuning{}) {
		cfg.Tuning = DefaultTuning()
	}
	return cfg
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
