package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/avele/reactode/internal/compile"
	"github.com/avele/reactode/internal/config"
	"github.com/avele/reactode/internal/network"
	"github.com/avele/reactode/internal/sim"
)

var (
	configFile string
	preset     string
	finalTime  float64
	order      int
	solver     string
	relTol     float64
	points     int
	format     string
	outFile    string
	withSens   bool
	verbose    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "reactode",
		Short: "reaction network ODE compiler and simulator",
	}

	simulateCmd := &cobra.Command{
		Use:   "simulate [network.yaml]",
		Short: "integrate a reaction network and report trajectories",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSimulate,
	}
	simulateCmd.Flags().StringVar(&configFile, "config", "", "run config file (yaml)")
	simulateCmd.Flags().StringVar(&preset, "preset", "", "use a built-in network")
	simulateCmd.Flags().Float64Var(&finalTime, "time", config.DefaultFinalTime, "final time")
	simulateCmd.Flags().IntVar(&order, "order", 0, "augmentation order (0 states, 1 sensitivities, 2 curvatures)")
	simulateCmd.Flags().StringVar(&solver, "solver", config.DefaultSolver, "solver (rosenbrock23, rk45)")
	simulateCmd.Flags().Float64Var(&relTol, "reltol", config.DefaultRelTol, "relative tolerance")
	simulateCmd.Flags().IntVar(&points, "points", config.DefaultPoints, "number of report points")
	simulateCmd.Flags().StringVar(&format, "format", "table", "output format (table, csv, json)")
	simulateCmd.Flags().StringVar(&outFile, "out", "", "output file (default stdout)")
	simulateCmd.Flags().BoolVar(&withSens, "sens", false, "include sensitivity columns")
	simulateCmd.Flags().BoolVar(&verbose, "verbose", false, "log solver progress")

	compileCmd := &cobra.Command{
		Use:   "compile [network.yaml]",
		Short: "compile a network and print the canonical model",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runCompile,
	}
	compileCmd.Flags().StringVar(&preset, "preset", "", "use a built-in network")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list built-in networks",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range config.ListPresets() {
				fmt.Println(name)
			}
			return nil
		},
	}

	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "write a default run config",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.DefaultConfig()
			cfg.Conditions = []sim.Condition{{Name: "base", FinalTime: config.DefaultFinalTime}}
			if err := config.Save(args[0], cfg); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", args[0])
			return nil
		},
	}

	rootCmd.AddCommand(simulateCmd, compileCmd, presetsCmd, initCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadNetwork resolves the network from the preset flag, a positional path
// or the config file, in that order.
func loadNetwork(cfg *config.Config, args []string) (*network.Model, error) {
	if preset != "" {
		net := config.GetPreset(preset)
		if net == nil {
			return nil, fmt.Errorf("unknown preset %q (available: %v)", preset, config.ListPresets())
		}
		return net, nil
	}
	path := cfg.Network
	if len(args) > 0 {
		path = args[0]
	}
	if path == "" {
		return nil, fmt.Errorf("no network given: pass a path, --preset or a config with a network entry")
	}
	return network.Load(path)
}

func runSimulate(cmd *cobra.Command, args []string) error {
	cfg := config.DefaultConfig()
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	// CLI flags override the config file.
	if cmd.Flags().Changed("order") || configFile == "" {
		cfg.Options.Order = order
	}
	if cmd.Flags().Changed("solver") || cfg.Options.Solver == "" {
		cfg.Options.Solver = solver
	}
	if cmd.Flags().Changed("reltol") || cfg.Options.RelTol == 0 {
		cfg.Options.RelTol = relTol
	}
	if cmd.Flags().Changed("points") {
		cfg.Points = points
	}
	if verbose {
		cfg.Options.Verbose = true
	}
	if len(cfg.Conditions) == 0 {
		cfg.Conditions = []sim.Condition{{Name: "base", FinalTime: finalTime}}
	}

	net, err := loadNetwork(cfg, args)
	if err != nil {
		return err
	}
	m, err := compile.Compile(net)
	if err != nil {
		return err
	}

	var log *zap.Logger
	if cfg.Options.Verbose {
		if log, err = zap.NewDevelopment(); err != nil {
			return err
		}
		defer log.Sync()
	}

	fmt.Printf("simulating %s (%d states, %d reactions, %d conditions)...\n",
		m.Name, m.NX, m.NR, len(cfg.Conditions))
	start := time.Now()

	results, err := sim.NewSimulator(m, log).Run(context.Background(), cfg.Conditions, cfg.Options)
	if err != nil {
		return err
	}
	fmt.Printf("completed in %v\n", time.Since(start))

	out := os.Stdout
	if outFile != "" {
		f, err := os.Create(outFile)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "condition %s failed: %v\n", r.Condition.Name, r.Err)
			continue
		}
		if err := report(out, m, cfg, r); err != nil {
			return err
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d conditions failed", failed, len(results))
	}
	return nil
}

// report writes one condition's sampled trajectory in the chosen format.
func report(out *os.File, m *compile.Model, cfg *config.Config, r sim.ConditionResult) error {
	times := cfg.QueryTimes(r.Condition.FinalTime)

	stateIdx, err := columnIndices(cfg.Species, m.NX, m.StateIndex, "species")
	if err != nil {
		return err
	}
	outIdx, err := columnIndices(cfg.Outputs, m.NY, m.OutputIndex, "output")
	if err != nil {
		return err
	}

	header := []string{"t"}
	for _, i := range stateIdx {
		header = append(header, m.XNames[i])
	}
	for _, i := range outIdx {
		header = append(header, m.YNames[i])
	}

	states := r.Result.States(times, stateIdx)
	outputs := r.Result.Outputs(times, outIdx)

	var sens [][]float64
	if withSens && cfg.Options.Order >= 1 {
		if sens, err = r.Result.StateSensitivities(times, stateIdx); err != nil {
			return err
		}
		for _, tn := range activeLabels(m, cfg.Options) {
			for _, i := range stateIdx {
				header = append(header, "d"+m.XNames[i]+"/d"+tn)
			}
		}
	}

	rows := make([][]string, len(times))
	for ti, t := range times {
		row := []string{formatFloat(t)}
		for _, v := range states[ti] {
			row = append(row, formatFloat(v))
		}
		for _, v := range outputs[ti] {
			row = append(row, formatFloat(v))
		}
		if sens != nil {
			for _, v := range sens[ti] {
				row = append(row, formatFloat(v))
			}
		}
		rows[ti] = row
	}

	switch format {
	case "table":
		fmt.Fprintf(out, "\ncondition: %s (steps=%d rejected=%d evals=%d)\n",
			r.Condition.Name, r.Stats.Steps, r.Stats.Rejected, r.Stats.Evals)
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		printRow(w, header)
		for _, row := range rows {
			printRow(w, row)
		}
		return w.Flush()
	case "csv":
		w := csv.NewWriter(out)
		if err := w.Write(header); err != nil {
			return err
		}
		if err := w.WriteAll(rows); err != nil {
			return err
		}
		w.Flush()
		return w.Error()
	case "json":
		doc := map[string]any{
			"condition": r.Condition.Name,
			"columns":   header,
			"rows":      rows,
			"stats": map[string]int{
				"steps":    r.Stats.Steps,
				"rejected": r.Stats.Rejected,
				"evals":    r.Stats.Evals,
			},
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

// columnIndices resolves the configured column names, defaulting to all.
func columnIndices(names []string, n int, lookup func(string) int, kind string) ([]int, error) {
	if len(names) == 0 {
		all := make([]int, n)
		for i := range all {
			all[i] = i
		}
		return all, nil
	}
	out := make([]int, 0, len(names))
	for _, name := range names {
		i := lookup(name)
		if i < 0 {
			return nil, fmt.Errorf("unknown %s %q", kind, name)
		}
		out = append(out, i)
	}
	return out, nil
}

// activeLabels names the T columns in their joint order: parameters, then
// seeds, then controls.
func activeLabels(m *compile.Model, opts sim.Options) []string {
	labels := []string{}
	params := opts.ActiveParams
	if params == nil {
		params = m.KNames
	}
	labels = append(labels, params...)
	seeds := opts.ActiveSeeds
	if seeds == nil {
		seeds = m.XNames
	}
	for _, s := range seeds {
		labels = append(labels, s+"(0)")
	}
	controls := opts.ActiveControls
	if controls == nil {
		controls = m.UNames
	}
	labels = append(labels, controls...)
	return labels
}

func printRow(w *tabwriter.Writer, cells []string) {
	for i, c := range cells {
		if i > 0 {
			fmt.Fprint(w, "\t")
		}
		fmt.Fprint(w, c)
	}
	fmt.Fprintln(w)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', 8, 64)
}

func runCompile(cmd *cobra.Command, args []string) error {
	cfg := config.DefaultConfig()
	net, err := loadNetwork(cfg, args)
	if err != nil {
		return err
	}
	m, err := compile.Compile(net)
	if err != nil {
		return err
	}

	fmt.Printf("model: %s\n", m.Name)
	fmt.Printf("states: %d  inputs: %d  parameters: %d  reactions: %d  outputs: %d\n",
		m.NX, m.NU, m.NK, m.NR, m.NY)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KIND\tSYMBOL\tNAME\tVALUE")
	for i, s := range m.XSyms {
		fmt.Fprintf(w, "state\t%s\t%s\t%g\n", s, m.XNames[i], m.Seeds[i])
	}
	for i, s := range m.USyms {
		fmt.Fprintf(w, "input\t%s\t%s\t%g\n", s, m.UNames[i], m.U[i])
	}
	for i, s := range m.KSyms {
		fmt.Fprintf(w, "param\t%s\t%s\t%g\n", s, m.KNames[i], m.K[i])
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Println("\nrate laws:")
	for i, rate := range m.Rates {
		fmt.Printf("  r%d = %s\n", i+1, rate.String())
	}
	return nil
}
