package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/san-kum/motionlab/internal/config"
	"github.com/san-kum/motionlab/internal/export"
	"github.com/san-kum/motionlab/internal/logging"
	"github.com/san-kum/motionlab/internal/motion"
	"github.com/san-kum/motionlab/internal/optim"
	"github.com/san-kum/motionlab/internal/scenario"
	"github.com/san-kum/motionlab/internal/storage"
	"github.com/san-kum/motionlab/internal/tui"
)

var (
	dataDir    string
	configFile string
	logLevel   string
	logFile    string
	seed       int64
	repeat     int
	workers    int
	noSave     bool
	format     string
	output     string
	gains      []string
	metric     string
	top        int
)

var logger = zap.NewNop()

func main() {
	rootCmd := &cobra.Command{
		Use:           "motionlab",
		Short:         "motion control lab for a simulated differential-drive robot",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var paths []string
			if logFile != "" {
				paths = append(paths, logFile)
			}
			l, err := logging.New(logLevel, paths...)
			if err != nil {
				return err
			}
			logger = l
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logger.Sync()
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".motionlab", "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	runCmd := &cobra.Command{
		Use:   "run [preset]",
		Short: "run a scenario",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runScenario,
	}
	runCmd.Flags().StringVar(&configFile, "config", "", "scenario file (yaml or toml)")
	runCmd.Flags().Int64Var(&seed, "seed", 0, "sensor noise seed (overrides the scenario)")
	runCmd.Flags().IntVar(&repeat, "repeat", 1, "number of runs with consecutive seeds")
	runCmd.Flags().IntVar(&workers, "workers", 4, "parallel runs when repeating")
	runCmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the run")

	liveCmd := &cobra.Command{
		Use:   "live [preset]",
		Short: "run a scenario with a live view",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runLive,
	}
	liveCmd.Flags().StringVar(&configFile, "config", "", "scenario file (yaml or toml)")
	liveCmd.Flags().Int64Var(&seed, "seed", 0, "sensor noise seed (overrides the scenario)")
	liveCmd.Flags().StringVar(&logFile, "log-file", "motionlab.log", "log destination while the view is open")
	liveCmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the run")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot run errors in the terminal",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export a run as json, csv, svg, html or png",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}
	exportCmd.Flags().StringVarP(&format, "format", "f", "json", "json, csv, svg, html or png")
	exportCmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list built-in scenarios",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			for _, name := range config.ListPresets() {
				cfg := config.GetPreset(name)
				fmt.Fprintf(w, "%s\t%d steps\t%s\n", name, len(cfg.Steps), cfg.Description)
			}
			return w.Flush()
		},
	}

	validateCmd := &cobra.Command{
		Use:   "validate [config]",
		Short: "check a scenario file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(args[0])
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			fmt.Printf("%s: ok (%d steps)\n", args[0], len(cfg.Steps))
			return nil
		},
	}

	tuneCmd := &cobra.Command{
		Use:     "tune [preset]",
		Short:   "grid-search controller gains",
		Long:    "Runs the scenario for every combination of gain values and ranks them by the sum of a per-motion metric. Motions that time out are penalized.",
		Example: "  motionlab tune square --gain linear.kp=0.05:0.3:6 --gain angular.kp=0.4:1.2:5",
		Args:    cobra.MaximumNArgs(1),
		RunE:    tuneGains,
	}
	tuneCmd.Flags().StringVar(&configFile, "config", "", "scenario file (yaml or toml)")
	tuneCmd.Flags().Int64Var(&seed, "seed", 0, "sensor noise seed (overrides the scenario)")
	tuneCmd.Flags().StringArrayVar(&gains, "gain", nil, "gain range as <loop>.<gain>=lo:hi:n")
	tuneCmd.Flags().StringVar(&metric, "metric", "ticks", "metric to minimize")
	tuneCmd.Flags().IntVar(&workers, "workers", 4, "parallel runs")
	tuneCmd.Flags().IntVar(&top, "top", 5, "candidates to show")
	_ = tuneCmd.MarkFlagRequired("gain")

	rootCmd.AddCommand(runCmd, liveCmd, listCmd, plotCmd, exportCmd, presetsCmd, validateCmd, tuneCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// loadScenario resolves the scenario from --config, a preset name or the
// default straight-line preset.
func loadScenario(cmd *cobra.Command, args []string) (*config.Config, error) {
	var cfg *config.Config
	switch {
	case configFile != "":
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	case len(args) > 0:
		cfg = config.GetPreset(args[0])
		if cfg == nil {
			return nil, errors.Errorf("unknown preset: %s (available: %s)",
				args[0], strings.Join(config.ListPresets(), ", "))
		}
	default:
		cfg = config.GetPreset("straight")
	}
	if cmd.Flags().Changed("seed") {
		cfg.Plant.Seed = seed
	}
	return cfg, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func openStore() (*storage.Store, error) {
	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return nil, err
	}
	return st, nil
}

func saveResult(st *storage.Store, cfg *config.Config, result *scenario.Result) (string, error) {
	return st.Save(result.Metadata(), cfg, result.Trace)
}

func runScenario(cmd *cobra.Command, args []string) error {
	cfg, err := loadScenario(cmd, args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	ctx, stop := signalContext()
	defer stop()

	if repeat > 1 {
		return runEnsemble(ctx, cfg)
	}

	robot, err := scenario.Build(cfg, logger)
	if err != nil {
		return err
	}
	fmt.Printf("running %s...\n", cfg.Name)
	result, err := robot.Run(ctx)
	if result != nil {
		printResult(result)
	}
	if err != nil {
		return err
	}
	if noSave {
		return nil
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()
	runID, err := saveResult(st, cfg, result)
	if err != nil {
		return err
	}
	fmt.Printf("run id: %s\n", runID)
	return nil
}

func runEnsemble(ctx context.Context, cfg *config.Config) error {
	fmt.Printf("running %s x%d (seeds %d..%d, %d workers)...\n",
		cfg.Name, repeat, cfg.Plant.Seed, cfg.Plant.Seed+int64(repeat-1), workers)
	results, err := scenario.NewEnsemble(cfg, repeat, cfg.Plant.Seed, workers, logger).Run(ctx)
	if err != nil {
		return err
	}

	var st *storage.Store
	if !noSave {
		if st, err = openStore(); err != nil {
			return err
		}
		defer st.Close()
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SEED\tTICKS\tDRIFT\tELAPSED\tRUN")
	for _, r := range results {
		runID := "-"
		if st != nil {
			if runID, err = saveResult(st, cfg, r); err != nil {
				return err
			}
		}
		fmt.Fprintf(w, "%d\t%d\t%.4f\t%s\t%s\n", r.Seed, len(r.Trace), r.Drift(), r.Elapsed.Round(time.Millisecond), runID)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	mean, std := scenario.DriftStats(results)
	fmt.Printf("\ndrift: mean %.4f  stddev %.4f\n", mean, std)
	return nil
}

func printResult(r *scenario.Result) {
	fmt.Printf("completed in %v\n", r.Elapsed.Round(time.Millisecond))
	fmt.Printf("ticks: %d\n", len(r.Trace))
	fmt.Printf("estimate: %s\n", r.Estimate)
	fmt.Printf("truth:    %s\n", r.Truth)
	fmt.Printf("drift:    %.4f\n", r.Drift())
	if len(r.Motions) == 0 {
		return
	}
	fmt.Println("\nmotions:")
	for _, m := range r.Motions {
		fmt.Printf("  #%d %s\n", m.Seq, m.Reason)
		for _, name := range slices.Sorted(maps.Keys(m.Values)) {
			fmt.Printf("    %s: %.4f\n", name, m.Values[name])
		}
	}
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := loadScenario(cmd, args)
	if err != nil {
		return err
	}
	robot, err := scenario.Build(cfg, logger)
	if err != nil {
		return err
	}
	ctx, stop := signalContext()
	defer stop()

	result, err := tui.Run(ctx, robot)
	if result != nil {
		printResult(result)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	if result == nil || noSave {
		return nil
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()
	runID, err := saveResult(st, cfg, result)
	if err != nil {
		return err
	}
	fmt.Printf("run id: %s\n", runID)
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	runs, err := st.List()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTIME\tSEED\tTICKS\tDRIFT")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%.4f\n",
			run.ID,
			run.Name,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Seed,
			run.Ticks,
			run.Drift,
		)
	}
	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]
	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	trace, err := st.LoadTrace(runID)
	if err != nil {
		return err
	}
	if len(trace) < 2 {
		return errors.New("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("name: %s\n", meta.Name)
	fmt.Printf("ticks: %d\n\n", len(trace))

	series := []struct {
		caption string
		value   func(motion.Tick) float64
	}{
		{"linear error", func(t motion.Tick) float64 { return t.LinearError }},
		{"angular error (rad)", func(t motion.Tick) float64 { return t.AngularError }},
		{"left / right output", func(t motion.Tick) float64 { return t.Left }},
	}
	for _, s := range series {
		data := make([]float64, len(trace))
		for i, tick := range trace {
			data[i] = s.value(tick)
		}
		opts := []asciigraph.Option{
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(s.caption),
		}
		if s.caption == "left / right output" {
			right := make([]float64, len(trace))
			for i, tick := range trace {
				right[i] = tick.Right
			}
			fmt.Println(asciigraph.PlotMany([][]float64{data, right},
				append(opts, asciigraph.SeriesColors(asciigraph.Cyan, asciigraph.Magenta))...))
		} else {
			fmt.Println(asciigraph.Plot(data, opts...))
		}
		fmt.Println()
	}
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	runID := args[0]
	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}

	var w io.Writer = os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
		if !cmd.Flags().Changed("format") {
			if ext := strings.TrimPrefix(filepath.Ext(output), "."); ext != "" {
				format = ext
			}
		}
	}

	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(meta)
	case "csv":
		f, err := os.Open(st.TracePath(runID))
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(w, f)
		return err
	}

	trace, err := st.LoadTrace(runID)
	if err != nil {
		return err
	}
	switch format {
	case "svg":
		svg := export.TraceToSVG(trace, 800, 800)
		if svg == "" {
			return errors.New("not enough data to draw")
		}
		_, err = io.WriteString(w, svg)
		return err
	case "html":
		return export.HTML(w, meta.ID, trace)
	case "png":
		return export.PNG(w, meta.ID, trace, 8, 8)
	default:
		return errors.Errorf("unknown format %q", format)
	}
}

// parseGain parses "<loop>.<gain>=lo:hi:n".
func parseGain(arg string) (string, []float64, error) {
	name, rng, ok := strings.Cut(arg, "=")
	if !ok {
		return "", nil, errors.Errorf("gain %q: want name=lo:hi:n", arg)
	}
	parts := strings.Split(rng, ":")
	if len(parts) != 3 {
		return "", nil, errors.Errorf("gain %q: want name=lo:hi:n", arg)
	}
	lo, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return "", nil, errors.Wrapf(err, "gain %q", arg)
	}
	hi, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return "", nil, errors.Wrapf(err, "gain %q", arg)
	}
	n, err := strconv.Atoi(parts[2])
	if err != nil || n < 1 {
		return "", nil, errors.Errorf("gain %q: bad count %q", arg, parts[2])
	}
	if err := config.DefaultConfig().SetGain(name, lo); err != nil {
		return "", nil, err
	}
	return name, optim.Range(lo, hi, n), nil
}

func tuneGains(cmd *cobra.Command, args []string) error {
	cfg, err := loadScenario(cmd, args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	names := make([]string, 0, len(gains))
	ranges := make([][]float64, 0, len(gains))
	for _, g := range gains {
		name, values, err := parseGain(g)
		if err != nil {
			return err
		}
		names = append(names, name)
		ranges = append(ranges, values)
	}

	ctx, stop := signalContext()
	defer stop()

	search := optim.NewGridSearch(names, ranges, workers)
	fmt.Printf("tuning %s: %d candidates, minimizing %s...\n", cfg.Name, search.Size(), metric)
	start := time.Now()
	candidates, err := search.Search(ctx, optim.ScenarioObjective(cfg, metric, logger))
	if err != nil {
		return err
	}
	fmt.Printf("done in %v\n\n", time.Since(start).Round(time.Millisecond))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tSCORE\t"+strings.ToUpper(strings.Join(names, "\t")))
	for i, c := range candidates {
		if i >= top {
			break
		}
		row := []string{strconv.Itoa(i + 1), strconv.FormatFloat(c.Score, 'f', 3, 64)}
		for _, name := range names {
			row = append(row, strconv.FormatFloat(c.Params[name], 'g', 4, 64))
		}
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	return w.Flush()
}
