package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/san-kum/chembox/internal/chem"
	"github.com/san-kum/chembox/internal/config"
	"github.com/san-kum/chembox/internal/dynamo"
	"github.com/san-kum/chembox/internal/experiment"
	"github.com/san-kum/chembox/internal/sim"
	"github.com/san-kum/chembox/internal/storage"
	"github.com/san-kum/chembox/internal/sweep"
	"github.com/san-kum/chembox/internal/viz"
)

var (
	dataDir string
	verbose bool

	configFile  string
	preset      string
	mechName    string
	solverName  string
	kernelsName string
	horizon     float64
	batchStep   float64
	temperature float64
	rh          float64
	h2o         float64
	startTime   float64
	atol        float64
	rtol        float64
	noJacobian  bool
	initial     map[string]string
	save        bool
	plot        bool

	plotSpecies []string
	outPath     string

	sweepParam string
	sweepMin   float64
	sweepMax   float64
	sweepSteps int
	sweepJobs  int
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	errStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "chembox",
		Short:         "batched stiff box-model chemistry",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelWarn
			if verbose {
				level = slog.LevelInfo
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".chembox", "data directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log every batch")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run a box model",
		Args:  cobra.NoArgs,
		RunE:  runSimulation,
	}
	addRunFlags(runCmd)
	runCmd.Flags().BoolVar(&save, "save", true, "save the run under the data directory")
	runCmd.Flags().BoolVar(&plot, "plot", false, "plot the plotted species after the run")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	showCmd := &cobra.Command{
		Use:   "show [run_id]",
		Short: "show run metadata",
		Args:  cobra.ExactArgs(1),
		RunE:  showRun,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot log10 concentrations of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringSliceVar(&plotSpecies, "species", nil, "species to plot (default: first two)")

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export run data to CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return exportRun(args[0], storage.ExportCSV)
		},
	}
	exportCSVCmd.Flags().StringVarP(&outPath, "out", "o", "-", "output file")

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export run data to JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return exportRun(args[0], storage.ExportJSON)
		},
	}
	exportJSONCmd.Flags().StringVarP(&outPath, "out", "o", "-", "output file")

	deleteCmd := &cobra.Command{
		Use:   "delete [run_id]",
		Short: "delete a saved run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return storage.New(dataDir).Delete(args[0])
		},
	}

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		Args:  cobra.NoArgs,
		RunE:  listPresets,
	}

	mechanismsCmd := &cobra.Command{
		Use:   "mechanisms",
		Short: "list built-in mechanisms, kernels and solvers",
		Args:  cobra.NoArgs,
		RunE:  listComponents,
	}

	speciesCmd := &cobra.Command{
		Use:   "species [mechanism]",
		Short: "list the species and reactions of a mechanism",
		Args:  cobra.ExactArgs(1),
		RunE:  showMechanism,
	}

	initCmd := &cobra.Command{
		Use:   "init-config [path]",
		Short: "write the default configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.DefaultConfig()
			if preset != "" {
				if cfg = config.GetPreset(preset); cfg == nil {
					return fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
				}
			}
			return config.Save(args[0], cfg)
		},
	}
	initCmd.Flags().StringVar(&preset, "preset", "", "start from a preset")

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "run with a live terminal view",
		Args:  cobra.NoArgs,
		RunE:  runLive,
	}
	addRunFlags(liveCmd)

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "run one configuration across a parameter range",
		Args:  cobra.NoArgs,
		RunE:  runSweep,
	}
	addRunFlags(sweepCmd)
	sweepCmd.Flags().StringVar(&sweepParam, "param", sweep.Temperature, fmt.Sprintf("parameter to vary %v", sweep.Params()))
	sweepCmd.Flags().Float64Var(&sweepMin, "min", 280, "first value")
	sweepCmd.Flags().Float64Var(&sweepMax, "max", 310, "last value")
	sweepCmd.Flags().IntVar(&sweepSteps, "steps", 4, "number of runs")
	sweepCmd.Flags().IntVar(&sweepJobs, "jobs", 0, "concurrent runs (default: GOMAXPROCS)")

	scenarioCmd := &cobra.Command{
		Use:   "scenario [file]",
		Short: "run a scripted sequence of configurations",
		Args:  cobra.ExactArgs(1),
		RunE:  runScenario,
	}

	rootCmd.AddCommand(runCmd, listCmd, showCmd, plotCmd, exportCSVCmd, exportJSONCmd, deleteCmd,
		presetsCmd, mechanismsCmd, speciesCmd, initCmd, liveCmd, sweepCmd, scenarioCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errStyle.Render("error: ")+err.Error())
		os.Exit(1)
	}
}

func addRunFlags(cmd *cobra.Command) {
	d := config.DefaultConfig()
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	cmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
	cmd.Flags().StringVar(&mechName, "mechanism", d.Mechanism, "built-in mechanism or yaml file")
	cmd.Flags().StringVar(&solverName, "solver", d.Solver, "solver")
	cmd.Flags().StringVar(&kernelsName, "kernels", d.Kernels, "kinetic kernels")
	cmd.Flags().Float64Var(&horizon, "horizon", d.Horizon, "total simulated seconds")
	cmd.Flags().Float64Var(&batchStep, "batch", d.BatchStep, "seconds per batch")
	cmd.Flags().Float64Var(&temperature, "temp", d.Temperature, "temperature (K)")
	cmd.Flags().Float64Var(&rh, "rh", d.RH, "relative humidity (%)")
	cmd.Flags().Float64Var(&h2o, "h2o", 0, "water concentration (molecules/cm3), overrides rh")
	cmd.Flags().Float64Var(&startTime, "start", d.StartTime, "start time of day (s)")
	cmd.Flags().Float64Var(&atol, "atol", d.Tuning.AbsTol, "absolute tolerance")
	cmd.Flags().Float64Var(&rtol, "rtol", d.Tuning.RelTol, "relative tolerance")
	cmd.Flags().BoolVar(&noJacobian, "no-jacobian", false, "use a finite-difference Jacobian")
	cmd.Flags().StringToStringVar(&initial, "ppb", nil, "initial mixing ratios, e.g. APINENE=18,O3=30")
}

// loadConfig resolves preset, config file and flags, in that order. Flags
// only override when set explicitly.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if preset != "" {
		if cfg = config.GetPreset(preset); cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	}
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("mechanism") {
		cfg.Mechanism = mechName
	}
	if flags.Changed("solver") {
		cfg.Solver = solverName
	}
	if flags.Changed("kernels") {
		cfg.Kernels = kernelsName
	}
	if flags.Changed("horizon") {
		cfg.Horizon = horizon
	}
	if flags.Changed("batch") {
		cfg.BatchStep = batchStep
	}
	if flags.Changed("temp") {
		cfg.Temperature = temperature
	}
	if flags.Changed("rh") {
		cfg.RH = rh
	}
	if flags.Changed("h2o") {
		cfg.H2O = h2o
	}
	if flags.Changed("start") {
		cfg.StartTime = startTime
	}
	if flags.Changed("atol") {
		cfg.Tuning.AbsTol = atol
	}
	if flags.Changed("rtol") {
		cfg.Tuning.RelTol = rtol
	}
	if flags.Changed("no-jacobian") {
		cfg.Tuning.UseJacobian = !noJacobian
	}
	if flags.Changed("ppb") {
		cfg.InitialPPB = make(map[string]float64, len(initial))
		for name, raw := range initial {
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: --ppb %s=%s: %v", dynamo.ErrConfiguration, name, raw, err)
			}
			cfg.InitialPPB[name] = v
		}
	}
	if flags.Lookup("save") != nil && flags.Changed("save") {
		cfg.SaveOutput = save
	}

	return cfg, cfg.Validate()
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	exp := experiment.New(cfg)
	if err := exp.Setup(experiment.NewRegistry()); err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	fmt.Printf("running %s with %s (%d batches of %gs)...\n",
		exp.Mechanism().Name, cfg.Solver, exp.GetSimulator().Config().Rows(), cfg.BatchStep)
	start := time.Now()

	series, err := exp.Run(ctx)
	if err != nil {
		var be *dynamo.BatchError
		if errors.As(err, &be) {
			fmt.Fprintf(os.Stderr, "%s batch %d failed at t=%.0fs\n", errStyle.Render("stopped:"), be.Batch, be.Elapsed)
		}
		return err
	}
	elapsed := time.Since(start)

	fmt.Printf("%s in %v\n", okStyle.Render("completed"), elapsed.Round(time.Millisecond))
	if cfg.SaveOutput {
		st := storage.New(dataDir)
		if err := st.Init(); err != nil {
			return err
		}
		runID, err := st.Save(cfg, series)
		if err != nil {
			return err
		}
		fmt.Printf("run id: %s\n", runID)
	}

	printSummary(series)

	if plot {
		chart, err := viz.Chart(series, viz.PlotSpecies(series, cfg.PlotSpecies), 80, 12)
		if err != nil {
			return err
		}
		fmt.Println()
		fmt.Println(chart)
	}
	return nil
}

func printSummary(series *sim.Series) {
	st := series.Stats
	fmt.Printf("batches: %d\n", series.Len())
	fmt.Println(dimStyle.Render(fmt.Sprintf("steps %d  rejected %d  rhs %d  jacobians %d  decompositions %d",
		st.Steps, st.Rejected, st.RHSEvals, st.JacEvals, st.Decomps)))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\nMETRIC\tVALUE")
	for _, name := range sortedNames(series.Metrics) {
		fmt.Fprintf(w, "%s\t%.6g\n", name, series.Metrics[name])
	}
	w.Flush()
}

func sortedNames(m map[string]float64) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tMECHANISM\tTIME\tHORIZON\tBATCH\tSOLVER\tT\tRH")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.0fs\t%.0fs\t%s\t%.1fK\t%.0f%%\n",
			run.ID,
			run.Mechanism,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Horizon,
			run.BatchStep,
			run.Solver,
			run.Temperature,
			run.RH,
		)
	}
	return w.Flush()
}

func showRun(cmd *cobra.Command, args []string) error {
	meta, err := storage.New(dataDir).Load(args[0])
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "id\t%s\n", meta.ID)
	fmt.Fprintf(w, "mechanism\t%s\n", meta.Mechanism)
	fmt.Fprintf(w, "solver\t%s (%s kernels)\n", meta.Solver, meta.Kernels)
	fmt.Fprintf(w, "saved\t%s\n", meta.Timestamp.Format(time.RFC3339))
	fmt.Fprintf(w, "horizon\t%.0fs in %d batches of %.0fs\n", meta.Horizon, meta.Rows, meta.BatchStep)
	fmt.Fprintf(w, "conditions\t%.2fK, %.0f%% RH, start %.0fs\n", meta.Temperature, meta.RH, meta.StartTime)
	for _, name := range sortedNames(meta.Metrics) {
		fmt.Fprintf(w, "%s\t%.6g\n", name, meta.Metrics[name])
	}
	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	series, err := storage.New(dataDir).LoadSeries(args[0])
	if err != nil {
		return err
	}

	species := plotSpecies
	if len(species) == 0 {
		species = viz.PlotSpecies(series, nil)
	}

	fmt.Println(titleStyle.Render(fmt.Sprintf("run: %s (%s)", args[0], series.Name)))
	fmt.Printf("batches: %d\n\n", series.Len())

	chart, err := viz.Chart(series, species, 80, 12)
	if err != nil {
		return err
	}
	fmt.Println(chart)
	return nil
}

func exportRun(runID string, export func(string, *sim.Series) error) error {
	series, err := storage.New(dataDir).LoadSeries(runID)
	if err != nil {
		return err
	}
	return export(outPath, series)
}

func listPresets(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PRESET\tMECHANISM\tSOLVER\tHORIZON\tT\tRH\tSTART")
	for _, name := range config.ListPresets() {
		p := config.GetPreset(name)
		fmt.Fprintf(w, "%s\t%s\t%s\t%.0fs\t%.2fK\t%.0f%%\t%.0fs\n",
			name, p.Mechanism, p.Solver, p.Horizon, p.Temperature, p.RH, p.StartTime)
	}
	return w.Flush()
}

func listComponents(cmd *cobra.Command, args []string) error {
	reg := experiment.NewRegistry()
	fmt.Println(titleStyle.Render("mechanisms"))
	for _, name := range reg.ListMechanisms() {
		fmt.Printf("  %s\n", name)
	}
	fmt.Println(titleStyle.Render("kernels"))
	for _, name := range reg.ListKernels() {
		fmt.Printf("  %s\n", name)
	}
	fmt.Println(titleStyle.Render("solvers"))
	for _, name := range reg.ListSolvers() {
		fmt.Printf("  %s\n", name)
	}
	return nil
}

func showMechanism(cmd *cobra.Command, args []string) error {
	m, err := experiment.NewRegistry().GetMechanism(args[0])
	if err != nil {
		return err
	}

	peroxy := make(map[string]bool, len(m.Peroxy))
	for _, p := range m.Peroxy {
		peroxy[p] = true
	}

	fmt.Println(titleStyle.Render(fmt.Sprintf("%s: %d species, %d reactions", m.Name, m.NumSpecies(), m.NumReactions())))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "INDEX\tSPECIES\tPEROXY")
	for i, s := range m.Species {
		mark := ""
		if peroxy[s] {
			mark = "yes"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\n", i, s, mark)
	}
	fmt.Fprintln(w, "\nREACTION\tEQUATION\tRATE")
	for i, r := range m.Reactions {
		rate := string(r.Rate.Kind)
		if r.Rate.Multiplier != "" {
			rate += " * " + r.Rate.Multiplier
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", r.Label(i), r.Equation(), rate)
	}
	return w.Flush()
}

func runLive(cmd *cobra.Command, args []string) error {
	if preset == "" && configFile == "" {
		choices := make([]viz.Choice, 0, len(config.Presets))
		for _, name := range config.ListPresets() {
			p := config.GetPreset(name)
			choices = append(choices, viz.Choice{
				Name:        name,
				Description: fmt.Sprintf("%s, %.0fs at %.0fK", p.Mechanism, p.Horizon, p.Temperature),
			})
		}
		final, err := tea.NewProgram(viz.NewPicker("chembox presets", choices)).Run()
		if err != nil {
			return err
		}
		if preset = final.(viz.Picker).Selected(); preset == "" {
			return nil
		}
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	exp := experiment.New(cfg)
	quiet := sim.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err := exp.Setup(experiment.NewRegistry(), quiet); err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	simulator := exp.GetSimulator()
	m := viz.NewModel(ctx, exp.Mechanism().Name, exp.Mechanism().Species, cfg.PlotSpecies,
		simulator.Config().Rows(), exp.Run)
	simulator.AddObserver(m.Observer())

	final, err := tea.NewProgram(m).Run()
	if err != nil {
		return err
	}
	series, runErr := final.(viz.Model).Result()
	if runErr != nil {
		return runErr
	}
	if series != nil && cfg.SaveOutput {
		st := storage.New(dataDir)
		if err := st.Init(); err != nil {
			return err
		}
		runID, err := st.Save(cfg, series)
		if err != nil {
			return err
		}
		fmt.Printf("run id: %s\n", runID)
	}
	return nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	sw := sweep.Sweep{Param: sweepParam, Min: sweepMin, Max: sweepMax, Steps: sweepSteps, Concurrency: sweepJobs}
	var progress sweep.Collector
	start := time.Now()
	results, err := sweep.Run(ctx, cfg, sw, experiment.NewRegistry(), sim.WithObserver(progress.Observer()))
	if err != nil {
		return err
	}
	fmt.Printf("%s %d runs (%d batches) in %v\n", okStyle.Render("completed"),
		len(results), progress.Rows(), time.Since(start).Round(time.Millisecond))

	species := cfg.PlotSpecies
	if len(results) > 0 {
		species = viz.PlotSpecies(results[0].Series, species)
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	header := []string{strings.ToUpper(sweepParam)}
	for _, s := range species {
		header = append(header, s+" (ppb)")
	}
	header = append(header, "MASS_DRIFT")
	fmt.Fprintln(w, strings.Join(header, "\t"))
	for _, r := range results {
		cols := []string{strconv.FormatFloat(r.Value, 'g', 6, 64)}
		for _, s := range species {
			cols = append(cols, finalPPB(r, s))
		}
		cols = append(cols, strconv.FormatFloat(r.Metrics["mass_drift"], 'e', 2, 64))
		fmt.Fprintln(w, strings.Join(cols, "\t"))
	}
	return w.Flush()
}

func finalPPB(r sweep.Result, species string) string {
	for i, s := range r.Series.Species {
		if s == species && i < len(r.Final) {
			return strconv.FormatFloat(r.Final[i]/chem.PPBToMolecules, 'g', 5, 64)
		}
	}
	return "-"
}

func runScenario(cmd *cobra.Command, args []string) error {
	scenario, err := sweep.LoadScenario(args[0])
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	fmt.Println(titleStyle.Render(scenario.Name))
	if scenario.Description != "" {
		fmt.Println(dimStyle.Render(scenario.Description))
	}
	results, err := sweep.RunScenario(ctx, scenario, experiment.NewRegistry(), slog.Default())
	for i, series := range results {
		fmt.Printf("\n%s %d: %s\n", okStyle.Render("step"), i+1, series.Name)
		printSummary(series)
	}
	return err
}
