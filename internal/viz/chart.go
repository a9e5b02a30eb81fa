package viz

import (
	"fmt"
	"math"

	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/chembox/internal/dynamo"
	"github.com/san-kum/chembox/internal/sim"
)

// Log10Floor is the smallest concentration charted, in molecules/cm3.
const Log10Floor = 1.0

// Log10 maps concentrations to log10, clamping values below Log10Floor.
func Log10(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = math.Log10(math.Max(v, Log10Floor))
	}
	return out
}

var chartColors = []asciigraph.AnsiColor{
	asciigraph.DodgerBlue, asciigraph.Orange, asciigraph.Green,
	asciigraph.Magenta, asciigraph.Yellow, asciigraph.Red,
}

// PlotSpecies keeps the names in want that the series carries. When none
// remain it falls back to the first two species of the series.
func PlotSpecies(series *sim.Series, want []string) []string {
	have := make(map[string]bool, len(series.Species))
	for _, name := range series.Species {
		have[name] = true
	}
	out := make([]string, 0, len(want))
	for _, name := range want {
		if have[name] {
			out = append(out, name)
		}
	}
	if len(out) == 0 {
		out = append(out, series.Species[:min(2, len(series.Species))]...)
	}
	return out
}

// Chart plots log10 concentration against batch for the named species.
func Chart(series *sim.Series, species []string, width, height int) (string, error) {
	if series.Len() == 0 {
		return "", fmt.Errorf("series %q has no rows", series.Name)
	}

	index := make(map[string]int, len(series.Species))
	for i, name := range series.Species {
		index[name] = i
	}

	data := make([][]float64, 0, len(species))
	colors := make([]asciigraph.AnsiColor, 0, len(species))
	for i, name := range species {
		j, ok := index[name]
		if !ok {
			return "", fmt.Errorf("%w: species %q not in series", dynamo.ErrConfiguration, name)
		}
		data = append(data, Log10(series.Column(j)))
		colors = append(colors, chartColors[i%len(chartColors)])
	}

	times := series.Times()
	caption := fmt.Sprintf("log10 molecules/cm3, t = %.0f..%.0f s", times[0], times[len(times)-1])
	return asciigraph.PlotMany(data,
		asciigraph.Width(width),
		asciigraph.Height(height),
		asciigraph.Precision(2),
		asciigraph.SeriesColors(colors...),
		asciigraph.SeriesLegends(species...),
		asciigraph.Caption(caption),
	), nil
}
