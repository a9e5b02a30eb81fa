package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/san-kum/chembox/internal/config"
	"github.com/san-kum/chembox/internal/dynamo"
	"github.com/san-kum/chembox/internal/sim"
)

const (
	metadataFile = "metadata.json"
	matrixFile   = "output_matrix.csv"
	namesFile    = "output_names.csv"
)

// Store keeps one directory per saved run under baseDir.
type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID          string             `json:"id"`
	Mechanism   string             `json:"mechanism"`
	Timestamp   time.Time          `json:"timestamp"`
	Solver      string             `json:"solver"`
	Kernels     string             `json:"kernels"`
	Horizon     float64            `json:"horizon"`
	BatchStep   float64            `json:"batch_step"`
	Temperature float64            `json:"temperature"`
	RH          float64            `json:"rh"`
	StartTime   float64            `json:"start_time"`
	Rows        int                `json:"rows"`
	Metrics     map[string]float64 `json:"metrics"`
	Stats       dynamo.Statistics  `json:"stats"`
}

func newMetadata(id string, cfg *config.Config, series *sim.Series) RunMetadata {
	return RunMetadata{
		ID:          id,
		Mechanism:   series.Name,
		Timestamp:   time.Now(),
		Solver:      cfg.Solver,
		Kernels:     cfg.Kernels,
		Horizon:     cfg.Horizon,
		BatchStep:   cfg.BatchStep,
		Temperature: cfg.Temperature,
		RH:          cfg.RH,
		StartTime:   cfg.StartTime,
		Rows:        series.Len(),
		Metrics:     series.Metrics,
		Stats:       series.Stats,
	}
}

// Save writes the run metadata, the concentration matrix and the species
// index under a fresh run directory and returns the run ID.
func (s *Store) Save(cfg *config.Config, series *sim.Series) (string, error) {
	runID, runDir, err := s.newRunDir(series.Name)
	if err != nil {
		return "", err
	}

	meta := newMetadata(runID, cfg, series)
	if err := writeFile(filepath.Join(runDir, metadataFile), func(f *os.File) error {
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		return enc.Encode(meta)
	}); err != nil {
		return "", err
	}

	if err := writeFile(filepath.Join(runDir, matrixFile), func(f *os.File) error {
		return writeMatrix(csv.NewWriter(f), series)
	}); err != nil {
		return "", err
	}

	if err := writeFile(filepath.Join(runDir, namesFile), func(f *os.File) error {
		w := csv.NewWriter(f)
		for i, name := range series.Species {
			if err := w.Write([]string{name, strconv.Itoa(i)}); err != nil {
				return err
			}
		}
		w.Flush()
		return w.Error()
	}); err != nil {
		return "", err
	}

	return runID, nil
}

func (s *Store) newRunDir(name string) (string, string, error) {
	if name == "" {
		name = "run"
	}
	base := fmt.Sprintf("%s_%d", name, time.Now().Unix())
	runID := base
	for i := 1; ; i++ {
		runDir := filepath.Join(s.baseDir, runID)
		err := os.Mkdir(runDir, 0755)
		if err == nil {
			return runID, runDir, nil
		}
		if errors.Is(err, os.ErrNotExist) {
			if err := s.Init(); err != nil {
				return "", "", err
			}
			continue
		}
		if !errors.Is(err, os.ErrExist) {
			return "", "", err
		}
		runID = fmt.Sprintf("%s_%d", base, i)
	}
}

func writeFile(path string, fn func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// writeMatrix writes one line per batch: elapsed seconds followed by the
// concentrations in species index order.
func writeMatrix(w *csv.Writer, series *sim.Series) error {
	for _, row := range series.Rows() {
		if err := w.Write(formatRow(row)); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func formatRow(row sim.Row) []string {
	rec := make([]string, 0, len(row.State)+1)
	rec = append(rec, strconv.FormatFloat(row.Elapsed, 'g', -1, 64))
	for _, v := range row.State {
		rec = append(rec, strconv.FormatFloat(v, 'g', -1, 64))
	}
	return rec
}

// List returns the saved runs, newest first. Directories without readable
// metadata are skipped.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].Timestamp.After(runs[j].Timestamp)
	})
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}
	return &meta, nil
}

// LoadSeries rebuilds the saved series, including its metrics.
func (s *Store) LoadSeries(runID string) (*sim.Series, error) {
	meta, err := s.Load(runID)
	if err != nil {
		return nil, err
	}

	species, err := s.loadNames(runID)
	if err != nil {
		return nil, err
	}

	records, err := readCSV(filepath.Join(s.baseDir, runID, matrixFile))
	if err != nil {
		return nil, err
	}

	rows := make([]sim.Row, 0, len(records))
	for i, rec := range records {
		if len(rec) != len(species)+1 {
			return nil, fmt.Errorf("run %s line %d: %w: %d columns for %d species",
				runID, i+1, dynamo.ErrDimensionMismatch, len(rec), len(species))
		}
		vals := make([]float64, len(rec))
		for j, field := range rec {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("run %s line %d: %w", runID, i+1, err)
			}
			vals[j] = v
		}
		rows = append(rows, sim.Row{Batch: i, Elapsed: vals[0], State: dynamo.State(vals[1:])})
	}

	series := sim.NewSeries(meta.Mechanism, species, rows)
	for k, v := range meta.Metrics {
		series.Metrics[k] = v
	}
	series.Stats = meta.Stats
	return series, nil
}

func (s *Store) loadNames(runID string) ([]string, error) {
	records, err := readCSV(filepath.Join(s.baseDir, runID, namesFile))
	if err != nil {
		return nil, err
	}
	species := make([]string, len(records))
	for _, rec := range records {
		if len(rec) != 2 {
			return nil, fmt.Errorf("run %s: malformed species index %v", runID, rec)
		}
		idx, err := strconv.Atoi(rec[1])
		if err != nil || idx < 0 || idx >= len(species) {
			return nil, fmt.Errorf("run %s: bad index for species %s", runID, rec[0])
		}
		species[idx] = rec[0]
	}
	return species, nil
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	return r.ReadAll()
}

// Delete removes a saved run.
func (s *Store) Delete(runID string) error {
	dir := filepath.Join(s.baseDir, runID)
	if _, err := os.Stat(filepath.Join(dir, metadataFile)); err != nil {
		return err
	}
	return os.RemoveAll(dir)
}
