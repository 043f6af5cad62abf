package main

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/dcmotor/internal/analysis"
	"github.com/san-kum/dcmotor/internal/config"
	"github.com/san-kum/dcmotor/internal/experiment"
	"github.com/san-kum/dcmotor/internal/export"
	"github.com/san-kum/dcmotor/internal/loop"
	"github.com/san-kum/dcmotor/internal/sim"
	"github.com/san-kum/dcmotor/internal/storage"
	"github.com/san-kum/dcmotor/internal/tui"
)

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	exp := experiment.New(cfg)
	if err := exp.Setup(metricList...); err != nil {
		return err
	}
	var live *tui.LiveRenderer
	if watch {
		live = tui.NewLiveRenderer(os.Stdout, frameRate, cfg.Command.MaxRPM)
		exp.Simulator().AddObserver(live)
	}

	fmt.Printf("simulating %.1fs at %.0f rpm (kp=%g ki=%g kd=%g dt=%gs, %s)...\n",
		exp.Config().Sim.Duration, cfg.Sim.Setpoint, cfg.Control.Kp, cfg.Control.Ki, cfg.Control.Kd,
		cfg.Control.Dt, cfg.Sim.Integrator)
	start := time.Now()
	result, err := exp.Run(cmd.Context())
	if live != nil {
		live.Stop()
	}
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	runID, err := st.Save(label, exp.Config(), result)
	if err != nil {
		return err
	}

	fmt.Printf("completed in %v\n", elapsed)
	fmt.Printf("run id: %s\n", runID)
	fmt.Printf("cycles: %d (overruns %d)\n", result.Stats.Cycles, result.Stats.Overruns)
	if pl := exp.Player(); pl != nil {
		fmt.Printf("scenario events: %d applied, %d ignored\n", pl.Applied(), pl.Ignored())
	}
	printMetrics(result.Metrics)

	if showPlot {
		fmt.Println()
		fmt.Println(speedPlot(result))
	}
	return nil
}

func printMetrics(m map[string]float64) {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Println("\nmetrics:")
	for _, name := range names {
		fmt.Printf("  %-20s %.6f\n", name, m[name])
	}
}

func speedPlot(result *sim.Result) string {
	sp := result.Series(func(s loop.Sample) float64 { return s.Setpoint })
	pv := result.Series(func(s loop.Sample) float64 { return s.ProcessVariable })
	return asciigraph.PlotMany([][]float64{sp, pv},
		asciigraph.Height(12),
		asciigraph.Width(80),
		asciigraph.SeriesColors(asciigraph.Yellow, asciigraph.Green),
		asciigraph.Caption("setpoint (yellow) / measured rpm (green)"),
	)
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
	fmt.Fprintln(w, "ID\tTIME\tDURATION\tDT\tKP\tKI\tKD\tSETPOINT\tINTEG")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%.1fs\t%.3fs\t%g\t%g\t%g\t%.0f\t%s\n",
			run.ID,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Duration,
			run.Dt,
			run.Kp, run.Ki, run.Kd,
			run.Setpoint,
			run.Integrator,
		)
	}
	return w.Flush()
}

func loadRun(runID string) (*storage.RunMetadata, *sim.Result, error) {
	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return nil, nil, err
	}
	result, err := st.LoadSamples(runID)
	if err != nil {
		return nil, nil, err
	}
	if len(result.Samples) == 0 {
		return nil, nil, fmt.Errorf("run %s has no samples", runID)
	}
	return meta, result, nil
}

func plotRun(cmd *cobra.Command, args []string) error {
	meta, result, err := loadRun(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("samples: %d\n\n", len(result.Samples))
	fmt.Println(speedPlot(result))

	duty := result.Series(func(s loop.Sample) float64 { return s.Duty })
	fmt.Println()
	fmt.Println(asciigraph.Plot(duty,
		asciigraph.Height(8),
		asciigraph.Width(80),
		asciigraph.Caption("duty cycle"),
	))
	if len(result.Current) > 0 {
		fmt.Println()
		fmt.Println(asciigraph.Plot(result.Current,
			asciigraph.Height(8),
			asciigraph.Width(80),
			asciigraph.Caption("armature current (A)"),
		))
	}
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	meta, result, err := loadRun(args[0])
	if err != nil {
		return err
	}
	w := os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	return storage.ExportJSON(w, *meta, result)
}

func exportSVG(cmd *cobra.Command, args []string) error {
	_, result, err := loadRun(args[0])
	if err != nil {
		return err
	}
	path := output
	if path == "" {
		path = args[0] + ".svg"
	}
	if err := os.WriteFile(path, []byte(export.RunToSVG(result, svgWidth, svgHeight)), 0644); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", path)
	return nil
}

func analyzeRun(cmd *cobra.Command, args []string) error {
	meta, result, err := loadRun(args[0])
	if err != nil {
		return err
	}

	times := result.Times()
	pv := result.Series(func(s loop.Sample) float64 { return s.ProcessVariable })
	target := result.Samples[0].Setpoint

	fmt.Printf("analysis: %s\n\n", meta.ID)
	step := analysis.Step(times, pv, 0, target)
	fmt.Printf("step 0 -> %.1f rpm\n", target)
	fmt.Printf("  rise time:  %.3f s\n", step.RiseTime)
	fmt.Printf("  peak:       %.2f rpm at %.3f s\n", step.Peak, step.PeakTime)
	fmt.Printf("  overshoot:  %.2f%%\n", step.Overshoot)

	// ripple lives in the settled half of the run
	tail := pv[len(pv)/2:]
	bins := analysis.Spectrum(tail, meta.Dt)
	if len(bins) == 0 {
		fmt.Println("\nnot enough samples for a spectrum")
		return nil
	}
	amps := make([]float64, len(bins))
	for i, b := range bins {
		amps[i] = b.Amplitude
	}
	fmt.Println()
	fmt.Println(asciigraph.Plot(amps,
		asciigraph.Height(8),
		asciigraph.Width(60),
		asciigraph.Caption(fmt.Sprintf("ripple spectrum, 0 to %.2f hz", bins[len(bins)-1].Freq)),
	))
	dom := analysis.Dominant(bins)
	fmt.Printf("\ndominant ripple: %.3f hz, %.3f rpm\n", dom.Freq, dom.Amplitude)
	return nil
}

func comparePresets(cmd *cobra.Command, args []string) error {
	names := args
	if len(names) == 0 {
		names = config.ListPresets()
	}

	base, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	jobs := make([]sim.Job, len(names))
	for i, name := range names {
		apply, ok := config.Presets[name]
		if !ok {
			return fmt.Errorf("unknown preset: %s (available: %v)", name, config.ListPresets())
		}
		cfg := base.Clone()
		apply(cfg)
		exp := experiment.New(cfg)
		if err := exp.Setup(); err != nil {
			return fmt.Errorf("preset %s: %w", name, err)
		}
		jobs[i] = exp.Job(name)
	}

	start := time.Now()
	results, err := sim.RunAll(cmd.Context(), jobs)
	if err != nil {
		return err
	}

	fmt.Printf("compared %d presets in %v\n\n", len(names), time.Since(start))
	return metricTable("PRESET", names, results)
}

func metricTable(first string, rows []string, results []*sim.Result) error {
	var cols []string
	for name := range results[0].Metrics {
		cols = append(cols, name)
	}
	sort.Strings(cols)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\tFINAL_PV\t%s\n", first, strings.ToUpper(strings.Join(cols, "\t")))
	for i, r := range results {
		fmt.Fprintf(w, "%s\t%.1f", rows[i], r.Samples[len(r.Samples)-1].ProcessVariable)
		for _, c := range cols {
			fmt.Fprintf(w, "\t%.4f", r.Metrics[c])
		}
		fmt.Fprintln(w)
	}
	return w.Flush()
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	sw := experiment.Sweep{Param: param, Min: sweepMin, Max: sweepMax, Steps: sweepSteps}
	out, err := sw.Run(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\tFINAL_PV\tIAE\tOVERSHOOT\tSETTLING\tRIPPLE\n", strings.ToUpper(param))
	for _, r := range out {
		fmt.Fprintf(w, "%g\t%.1f\t%.2f\t%.2f\t%.2f\t%.3f\n", r.Value, r.FinalPV,
			r.Metrics["iae"], r.Metrics["overshoot_pct"], r.Metrics["settling_time"], r.Metrics["ripple"])
	}
	return w.Flush()
}

func runMonteCarlo(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	mc := experiment.MonteCarlo{Trials: trials, Perturbation: perturb, Seed: seed, Tolerance: tolerance}
	out, err := mc.Run(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	settled := 0
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TRIAL\tR\tL\tKT\tJ\tSSE\tOVERSHOOT\tSETTLED")
	for _, t := range out {
		if t.Settled {
			settled++
		}
		fmt.Fprintf(w, "%d\t%.3f\t%.5f\t%.4f\t%.2e\t%.3f\t%.2f\t%v\n", t.ID,
			t.Motor.Resistance, t.Motor.Inductance, t.Motor.TorqueConst, t.Motor.Inertia,
			t.Metrics["steady_state_error"], t.Metrics["overshoot_pct"], t.Settled)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\n%d/%d trials settled within %.1f rpm\n", settled, len(out), tolerance)
	return nil
}
