package storage

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"os"

	"github.com/san-kum/chembox/internal/dynamo"
	"github.com/san-kum/chembox/internal/sim"
)

type ExportData struct {
	Name    string             `json:"name"`
	Species []string           `json:"species"`
	Batches int                `json:"batches"`
	Times   []float64          `json:"times"`
	States  [][]float64        `json:"states"`
	Metrics map[string]float64 `json:"metrics"`
	Stats   dynamo.Statistics  `json:"stats"`
}

func newExportData(series *sim.Series) ExportData {
	return ExportData{
		Name:    series.Name,
		Species: series.Species,
		Batches: series.Len(),
		Times:   series.Times(),
		States:  series.Matrix(),
		Metrics: series.Metrics,
		Stats:   series.Stats,
	}
}

func WriteJSON(w io.Writer, series *sim.Series) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(newExportData(series))
}

// WriteCSV writes a header of elapsed and species names followed by one
// line per batch.
func WriteCSV(w io.Writer, series *sim.Series) error {
	cw := csv.NewWriter(w)
	header := append([]string{"elapsed"}, series.Species...)
	if err := cw.Write(header); err != nil {
		return err
	}
	return writeMatrix(cw, series)
}

func ExportJSON(path string, series *sim.Series) error {
	return exportTo(path, series, WriteJSON)
}

func ExportCSV(path string, series *sim.Series) error {
	return exportTo(path, series, WriteCSV)
}

func exportTo(path string, series *sim.Series, fn func(io.Writer, *sim.Series) error) error {
	if path == "" || path == "-" {
		return fn(os.Stdout, series)
	}
	return writeFile(path, func(f *os.File) error { return fn(f, series) })
}
