package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/sugiyama/internal/analysis"
	"github.com/san-kum/sugiyama/internal/automation"
	"github.com/san-kum/sugiyama/internal/config"
	"github.com/san-kum/sugiyama/internal/experiment"
	"github.com/san-kum/sugiyama/internal/export"
	"github.com/san-kum/sugiyama/internal/logging"
	"github.com/san-kum/sugiyama/internal/metrics"
	"github.com/san-kum/sugiyama/internal/params"
	"github.com/san-kum/sugiyama/internal/ring"
	"github.com/san-kum/sugiyama/internal/storage"
	"github.com/san-kum/sugiyama/internal/viz"
	"github.com/spf13/cobra"
)

var (
	dataDir    string
	logLevel   string
	configFile string
	preset     string
	render     bool
	rollouts   int
	steps      int
	seed       int64
	parallel   int
	simulator  string
	metricList []string
	laneChange string
	// SUMO tooling
	sumoBinary string
	guiBinary  string
	netconvert string
	workDir    string
	// Stored run selection
	rollout  int
	theme    string
	outFile  string
	svgDir   string
	svgFrame int
	// Sweeps
	sweepParam  string
	sweepMin    float64
	sweepMax    float64
	sweepPoints int
)

var registry = experiment.NewRegistry()

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// newRootCmd registers every command. Registering resets the flag
// variables to their defaults.
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "sugiyama",
		Short:        "ring road stop-and-go wave experiments on SUMO",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", config.DefaultDataDir, "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", config.DefaultLogLevel, "log level (debug, info, warn, error)")

	runCmd := &cobra.Command{
		Use:   "run [variant]",
		Short: "run a ring experiment",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runExperiment,
	}
	runCmd.Flags().StringVarP(&configFile, "config", "c", "", "config file (yaml)")
	runCmd.Flags().StringVarP(&preset, "preset", "p", "", "use a preset configuration")
	runCmd.Flags().BoolVar(&render, "render", false, "run with the sumo-gui visualizer")
	runCmd.Flags().IntVar(&rollouts, "rollouts", config.DefaultRollouts, "number of rollouts")
	runCmd.Flags().IntVar(&steps, "steps", config.DefaultSteps, "steps per rollout")
	runCmd.Flags().Int64Var(&seed, "seed", 0, "seed of the first rollout")
	runCmd.Flags().IntVar(&parallel, "parallel", config.DefaultParallel, "rollouts run at once")
	runCmd.Flags().StringSliceVar(&metricList, "metrics", nil, "metrics to record (default all)")
	runCmd.Flags().StringVar(&laneChange, "lane-change", "", "lane change mode ("+strings.Join(params.LaneChangeModes(), ", ")+")")
	addSumoFlags(runCmd)

	variantsCmd := &cobra.Command{
		Use:   "variants",
		Short: "list ring variants",
		RunE:  listVariants,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets [variant]",
		Short: "list available presets for a variant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			presets := config.ListPresets(args[0])
			if len(presets) == 0 {
				fmt.Printf("no presets for variant: %s\n", args[0])
				return nil
			}
			fmt.Printf("presets for %s:\n", args[0])
			for _, p := range presets {
				fmt.Printf("  %s\n", p)
			}
			return nil
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot speeds of a run (latest by default)",
		Args:  cobra.MaximumNArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().IntVar(&rollout, "rollout", 0, "rollout to plot")

	analyzeCmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "wave period and metric summary of a run",
		Args:  cobra.MaximumNArgs(1),
		RunE:  analyzeRun,
	}

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export run data to JSON and SVG",
		Args:  cobra.MaximumNArgs(1),
		RunE:  exportRun,
	}
	exportCmd.Flags().StringVarP(&outFile, "out", "o", "", "write JSON to a file instead of stdout")
	exportCmd.Flags().StringVar(&svgDir, "svg", "", "also write SVG plots to this directory")
	exportCmd.Flags().IntVar(&rollout, "rollout", 0, "rollout to draw")
	exportCmd.Flags().IntVar(&svgFrame, "frame", -1, "trace frame of the ring drawing (-1 for last)")

	replayCmd := &cobra.Command{
		Use:   "replay [run_id]",
		Short: "replay a stored run in the terminal",
		Args:  cobra.MaximumNArgs(1),
		RunE:  replayRun,
	}
	replayCmd.Flags().IntVar(&rollout, "rollout", 0, "rollout to replay")
	replayCmd.Flags().StringVar(&theme, "theme", "cyberpunk", "color theme ("+strings.Join(viz.ThemeNames(), ", ")+")")

	batchCmd := &cobra.Command{
		Use:   "batch [file]",
		Short: "run the experiments of a batch file",
		Args:  cobra.ExactArgs(1),
		RunE:  runBatch,
	}
	addSumoFlags(batchCmd)

	sweepCmd := &cobra.Command{
		Use:   "sweep [variant]",
		Short: "sweep one ring parameter",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSweep,
	}
	sweepCmd.Flags().StringVar(&sweepParam, "param", "num_vehicles", "parameter ("+strings.Join(automation.SweepParams, ", ")+")")
	sweepCmd.Flags().Float64Var(&sweepMin, "min", 20, "first value")
	sweepCmd.Flags().Float64Var(&sweepMax, "max", 50, "last value")
	sweepCmd.Flags().IntVar(&sweepPoints, "points", 4, "number of values")
	sweepCmd.Flags().IntVar(&rollouts, "rollouts", config.DefaultRollouts, "rollouts per value")
	sweepCmd.Flags().IntVar(&steps, "steps", config.DefaultSteps, "steps per rollout")
	sweepCmd.Flags().Int64Var(&seed, "seed", 0, "seed of the first rollout")
	addSumoFlags(sweepCmd)

	rootCmd.AddCommand(runCmd, variantsCmd, presetsCmd, listCmd, plotCmd, analyzeCmd, exportCmd, replayCmd, batchCmd, sweepCmd)
	return rootCmd
}

func addSumoFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&simulator, "simulator", config.DefaultSimulator, "simulator backend ("+strings.Join(registry.ListSimulators(), ", ")+")")
	cmd.Flags().StringVar(&sumoBinary, "sumo-binary", "", "sumo executable")
	cmd.Flags().StringVar(&guiBinary, "sumo-gui-binary", "", "sumo-gui executable")
	cmd.Flags().StringVar(&netconvert, "netconvert-binary", "", "netconvert executable")
	cmd.Flags().StringVar(&workDir, "work-dir", config.DefaultWorkDir, "directory for simulator inputs and traces")
}

func newLogger() *slog.Logger {
	return logging.NewLogger(logLevel, os.Stderr)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// loadConfig layers the config file, the preset and the flags the user set.
func loadConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}
	if len(args) > 0 {
		cfg.Variant = args[0]
	}

	if preset != "" {
		p := config.GetPreset(cfg.Variant, preset)
		if p == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets(cfg.Variant))
		}
		cfg.Rollouts = p.Rollouts
		cfg.Steps = p.Steps
		cfg.Parallel = p.Parallel
		cfg.Overrides = p.Overrides
	}

	flags := cmd.Flags()
	if flags.Changed("render") {
		cfg.Render = &render
	}
	if flags.Changed("rollouts") {
		cfg.Rollouts = rollouts
	}
	if flags.Changed("steps") {
		cfg.Steps = steps
	}
	if flags.Changed("seed") {
		cfg.Seed = seed
	}
	if flags.Changed("parallel") {
		cfg.Parallel = parallel
	}
	if flags.Changed("simulator") {
		cfg.Simulator = simulator
	}
	if flags.Changed("metrics") {
		cfg.Metrics = metricList
	}
	if flags.Changed("lane-change") {
		cfg.Overrides.LaneChangeMode = &laneChange
	}
	if flags.Changed("data") {
		cfg.DataDir = dataDir
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	applySumoFlags(cmd, &cfg.Sumo)
	return cfg, nil
}

func applySumoFlags(cmd *cobra.Command, sc *config.SumoConfig) {
	flags := cmd.Flags()
	if flags.Changed("sumo-binary") {
		sc.Binary = sumoBinary
	}
	if flags.Changed("sumo-gui-binary") {
		sc.GUIBinary = guiBinary
	}
	if flags.Changed("netconvert-binary") {
		sc.Netconvert = netconvert
	}
	if flags.Changed("work-dir") || sc.WorkDir == "" {
		sc.WorkDir = workDir
	}
}

func runExperiment(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	log := logging.NewLogger(cfg.LogLevel, os.Stderr)

	v, err := ring.Lookup(cfg.Variant)
	if err != nil {
		return fmt.Errorf("%w (available: %v)", err, ring.Names())
	}
	v = v.With(cfg.Overrides).WithSumo(cfg.Sumo)
	v.Seed = cfg.Seed

	sim, err := registry.GetSimulator(cfg.Simulator, experiment.Backend{
		WorkDir:    cfg.Sumo.WorkDir,
		Netconvert: cfg.Sumo.Netconvert,
		Log:        log,
	})
	if err != nil {
		return err
	}
	factory, err := metrics.Factory(cfg.Metrics...)
	if err != nil {
		return fmt.Errorf("%w (available: %v)", err, metrics.Names())
	}

	st := storage.New(cfg.DataDir)
	run, err := st.Create(v.Name)
	if err != nil {
		return err
	}

	x, err := ring.Build(v, cfg.Render,
		experiment.WithSimulator(sim),
		experiment.WithMetrics(factory),
		experiment.WithObserver(run.Trace()),
		experiment.WithParallel(cfg.Parallel),
		experiment.WithLogger(log),
	)
	if err != nil {
		os.RemoveAll(run.Dir)
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	fmt.Printf("running %s: %d vehicles, %d rollouts x %d steps\n", v.Name, v.NumVehicles, cfg.Rollouts, cfg.Steps)
	res, err := x.Run(ctx, cfg.Rollouts, cfg.Steps)
	if err != nil {
		run.Trace().Close()
		os.RemoveAll(run.Dir)
		return err
	}

	sc := x.Env().Scenario()
	if err := run.Finish(res, storage.RunInfo{
		Seed:       v.Seed,
		Vehicles:   v.NumVehicles,
		Lanes:      sc.Lanes(),
		Length:     sc.Length(),
		SpeedLimit: sc.SpeedLimit(),
	}); err != nil {
		return fmt.Errorf("save run: %w", err)
	}

	fmt.Printf("saved run: %s\n", run.ID)
	fmt.Printf("elapsed: %s\n\n", res.Finished.Sub(res.Started).Round(time.Millisecond))

	meta, err := st.Load(run.ID)
	if err != nil {
		return err
	}
	return printSummary(meta)
}

func printSummary(meta *storage.RunMetadata) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "METRIC\tMEAN\tSTD\tMIN\tMAX")
	for _, name := range metrics.Names() {
		s, ok := meta.Summary[name]
		if !ok {
			continue
		}
		fmt.Fprintf(w, "%s\t%.3f\t%.3f\t%.3f\t%.3f\n", name, s.Mean, s.Std, s.Min, s.Max)
	}
	return w.Flush()
}

func listVariants(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tVEHICLES\tLANES\tLENGTH\tSPEED\tSPACING\tLANE_CHANGE")
	for _, name := range ring.Names() {
		v, _ := ring.Lookup(name)
		fmt.Fprintf(w, "%s\t%d\t%d\t%.0fm\t%.0fm/s\t%s\t%s\n",
			v.Name, v.NumVehicles, v.Lanes, v.Length, v.SpeedLimit, v.Spacing, v.LaneChangeMode)
	}
	return w.Flush()
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
	fmt.Fprintln(w, "ID\tSCENARIO\tTIME\tROLLOUTS\tSTEPS\tVEHICLES\tMEAN_SPEED")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%.2f\n",
			run.ID,
			run.Scenario,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Rollouts,
			run.Steps,
			run.Vehicles,
			run.Summary["mean_speed"].Mean,
		)
	}

	return w.Flush()
}

// resolveRun picks the run named in args, or the latest one.
func resolveRun(st *storage.Store, args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	id, err := st.Latest()
	if err != nil {
		return "", fmt.Errorf("no run given and none stored: %w", err)
	}
	return id, nil
}

func plotRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runID, err := resolveRun(st, args)
	if err != nil {
		return err
	}
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}

	samples, err := st.LoadSeries(runID, rollout)
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("scenario: %s (%d vehicles, %d lanes, %.0fm)\n", meta.Scenario, meta.Vehicles, meta.Lanes, meta.Length)
	fmt.Printf("rollout: %d, samples: %d\n\n", rollout, len(samples))

	mean := make([]float64, len(samples))
	minSpeed := make([]float64, len(samples))
	stopped := make([]float64, len(samples))
	for i, s := range samples {
		mean[i] = s.MeanSpeed
		minSpeed[i] = s.MinSpeed
		stopped[i] = float64(s.Stopped)
	}

	for _, p := range []struct {
		data    []float64
		caption string
	}{
		{mean, "mean speed (m/s)"},
		{minSpeed, "min speed (m/s)"},
		{stopped, "stopped vehicles"},
	} {
		graph := asciigraph.Plot(p.data,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(p.caption),
		)
		fmt.Println(graph)
		fmt.Println()
	}

	return nil
}

func analyzeRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runID, err := resolveRun(st, args)
	if err != nil {
		return err
	}
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}

	fmt.Printf("wave analysis: %s\n", meta.ID)
	fmt.Printf("scenario: %s\n\n", meta.Scenario)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ROLLOUT\tSAMPLES\tPERIOD\tSTRENGTH\tMEAN_SPEED\tSTD")
	for i := 0; i < meta.Rollouts; i++ {
		samples, err := st.LoadSeries(runID, i)
		if err != nil {
			return err
		}
		var data []float64
		for _, s := range samples {
			if s.Time >= metrics.DefaultWarmup {
				data = append(data, s.MeanSpeed)
			}
		}
		if len(data) < 2 {
			fmt.Fprintf(w, "%d\t%d\t-\t-\t-\t-\n", i, len(data))
			continue
		}
		period, strength := analysis.DominantPeriod(data, meta.SimStep)
		sum := analysis.Summarize(data)
		fmt.Fprintf(w, "%d\t%d\t%.1fs\t%.3f\t%.2f\t%.2f\n", i, sum.N, period, strength, sum.Mean, sum.Std)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Println()
	return printSummary(meta)
}

func exportRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runID, err := resolveRun(st, args)
	if err != nil {
		return err
	}
	data, err := st.Export(runID)
	if err != nil {
		return err
	}

	if outFile != "" {
		if err := storage.ExportJSONFile(outFile, data); err != nil {
			return err
		}
		fmt.Printf("exported %s to %s\n", runID, outFile)
	} else if err := storage.ExportJSON(os.Stdout, data); err != nil {
		return err
	}

	if svgDir == "" {
		return nil
	}
	return exportSVG(st, runID, data)
}

func exportSVG(st *storage.Store, runID string, data *storage.ExportData) error {
	if err := os.MkdirAll(svgDir, 0755); err != nil {
		return err
	}
	var series *storage.ExportRollout
	for i := range data.Rollouts {
		if data.Rollouts[i].Index == rollout {
			series = &data.Rollouts[i]
		}
	}
	if series == nil {
		return fmt.Errorf("run %s has no rollout %d", runID, rollout)
	}

	speedPath := filepath.Join(svgDir, fmt.Sprintf("%s_rollout_%d_speed.svg", runID, rollout))
	svg := export.SeriesToSVG(series.Times, series.MeanSpeed, 800, 300, "#00ccff")
	if err := os.WriteFile(speedPath, []byte(svg), 0644); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "wrote %s\n", speedPath)

	frames, err := st.LoadTrace(runID, rollout)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if len(frames) == 0 {
		return nil
	}
	idx := svgFrame
	if idx < 0 || idx >= len(frames) {
		idx = len(frames) - 1
	}
	ringPath := filepath.Join(svgDir, fmt.Sprintf("%s_rollout_%d_ring_%d.svg", runID, rollout, frames[idx].Step))
	svg = export.RingToSVG(frames[idx], data.Run.Length, data.Run.MaxSpeed, 500)
	if err := os.WriteFile(ringPath, []byte(svg), 0644); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "wrote %s\n", ringPath)
	return nil
}

func replayRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runID, err := resolveRun(st, args)
	if err != nil {
		return err
	}
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	frames, err := st.LoadTrace(runID, rollout)
	if err != nil {
		return fmt.Errorf("load trace: %w", err)
	}

	title := fmt.Sprintf("%s rollout %d", meta.ID, rollout)
	m := viz.NewModel(title, meta.Length, meta.MaxSpeed, frames).WithTheme(theme)
	return viz.Run(m)
}

// newRunner builds an automation runner that stores every result.
func newRunner(cmd *cobra.Command, log *slog.Logger) (*automation.Runner, error) {
	sc := config.DefaultConfig().Sumo
	applySumoFlags(cmd, &sc)

	sim, err := registry.GetSimulator(simulator, experiment.Backend{
		WorkDir:    sc.WorkDir,
		Netconvert: sc.Netconvert,
		Log:        log,
	})
	if err != nil {
		return nil, err
	}

	return &automation.Runner{
		Options: []experiment.Option{
			experiment.WithSimulator(sim),
			experiment.WithLogger(log),
		},
		Sumo:  sc,
		Store: storage.New(dataDir),
		Log:   log,
		OnResult: func(v ring.Variant, runID string, res *experiment.Result) error {
			fmt.Printf("saved run: %s\n", runID)
			return nil
		},
	}, nil
}

func runBatch(cmd *cobra.Command, args []string) error {
	batch, err := automation.LoadBatch(args[0])
	if err != nil {
		return fmt.Errorf("load batch: %w", err)
	}
	log := newLogger()
	runner, err := newRunner(cmd, log)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	fmt.Printf("batch %s: %d steps\n", batch.Name, len(batch.Steps))
	results, err := runner.RunBatch(ctx, batch)
	fmt.Printf("completed %d of %d steps\n", len(results), len(batch.Steps))
	return err
}

func runSweep(cmd *cobra.Command, args []string) error {
	variant := ring.DefaultVariant
	if len(args) > 0 {
		variant = args[0]
	}
	log := newLogger()
	runner, err := newRunner(cmd, log)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	results, err := runner.RunSweep(ctx, &automation.Sweep{
		Variant:   variant,
		ParamName: sweepParam,
		ParamMin:  sweepMin,
		ParamMax:  sweepMax,
		NumSteps:  sweepPoints,
		Rollouts:  rollouts,
		Steps:     steps,
		Seed:      seed,
	})

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\tMEAN_SPEED\tSPEED_SPREAD\tJAM_FRACTION\n", strings.ToUpper(sweepParam))
	for _, r := range results {
		fmt.Fprintf(w, "%g\t%.3f\t%.3f\t%.3f\n", r.ParamValue, r.MeanSpeed, r.SpeedSpread, r.JamFraction)
	}
	if ferr := w.Flush(); ferr != nil && err == nil {
		err = ferr
	}
	return err
}
