package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"github.com/san-kum/dcmotor/internal/config"
)

var (
	dataDir    string
	configFile string
	preset     string
	integrator string
	scenarioF  string
	duration   float64
	setpoint   float64
	kp         float64
	ki         float64
	kd         float64
	dt         float64
	reverse    bool
	automatic  bool
	metricList []string
	showPlot   bool
	watch      bool
	frameRate  int
	label      string
	svgWidth   int
	svgHeight  int
	output     string
	port       string
	baud       int
	param      string
	sweepMin   float64
	sweepMax   float64
	sweepSteps int
	trials     int
	perturb    float64
	seed       int64
	tolerance  float64
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "dcmotor",
		Short:         "closed-loop dc motor speed control bench",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			glog.Flush()
		},
	}
	rootCmd.PersistentFlags().AddGoFlagSet(flag.CommandLine)
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".dcmotor", "data directory")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (yaml)")
	rootCmd.PersistentFlags().StringVar(&preset, "preset", "", "apply a named preset over the config")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "simulate the control loop and save the run",
		Args:  cobra.NoArgs,
		RunE:  runSimulation,
	}
	simFlags(runCmd)
	runCmd.Flags().StringSliceVar(&metricList, "metrics", nil, "metrics to compute (default all)")
	runCmd.Flags().StringVar(&label, "label", "run", "run label")
	runCmd.Flags().BoolVar(&showPlot, "plot", false, "plot the speed trace when done")
	runCmd.Flags().BoolVar(&watch, "watch", false, "print a live status line while running")
	runCmd.Flags().IntVar(&frameRate, "fps", 10, "status line frame rate")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot run results",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export run data to JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}
	exportCmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")

	exportSVGCmd := &cobra.Command{
		Use:   "export-svg [run_id]",
		Short: "export the speed trace as SVG",
		Args:  cobra.ExactArgs(1),
		RunE:  exportSVG,
	}
	exportSVGCmd.Flags().StringVarP(&output, "output", "o", "", "output file (default <run_id>.svg)")
	exportSVGCmd.Flags().IntVar(&svgWidth, "width", 800, "image width")
	exportSVGCmd.Flags().IntVar(&svgHeight, "height", 400, "image height")

	analyzeCmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "step response and speed ripple spectrum",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeRun,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, p := range config.ListPresets() {
				cfg := config.GetPreset(p)
				fmt.Printf("  %-12s kp=%g ki=%g kd=%g dt=%gs setpoint=%g\n",
					p, cfg.Control.Kp, cfg.Control.Ki, cfg.Control.Kd, cfg.Control.Dt, cfg.Sim.Setpoint)
			}
		},
	}

	compareCmd := &cobra.Command{
		Use:   "compare [preset...]",
		Short: "run presets side by side (default all)",
		RunE:  comparePresets,
	}

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "sweep one parameter across a range",
		Args:  cobra.NoArgs,
		RunE:  runSweep,
	}
	sweepCmd.Flags().StringVar(&param, "param", "kp", "parameter to sweep")
	sweepCmd.Flags().Float64Var(&sweepMin, "min", 0.001, "first value")
	sweepCmd.Flags().Float64Var(&sweepMax, "max", 0.01, "last value")
	sweepCmd.Flags().IntVar(&sweepSteps, "steps", 10, "number of values")

	mcCmd := &cobra.Command{
		Use:   "montecarlo",
		Short: "check a tuning against perturbed motors",
		Args:  cobra.NoArgs,
		RunE:  runMonteCarlo,
	}
	mcCmd.Flags().IntVar(&trials, "trials", 20, "number of trials")
	mcCmd.Flags().Float64Var(&perturb, "perturb", 0.1, "relative parameter perturbation")
	mcCmd.Flags().Int64Var(&seed, "seed", 0, "random seed (0 for time based)")
	mcCmd.Flags().Float64Var(&tolerance, "tolerance", 2, "steady-state error that counts as settled, rpm")

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "drive a simulated motor from the keyboard",
		Args:  cobra.NoArgs,
		RunE:  runLive,
	}
	simFlags(liveCmd)

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "run the simulated motor in real time behind a serial command terminal",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	simFlags(serveCmd)
	serveCmd.Flags().StringVar(&port, "port", "", "serial port (default from config, stdin/stdout if empty)")
	serveCmd.Flags().IntVar(&baud, "baud", 0, "baud rate (default from config)")

	rootCmd.AddCommand(runCmd, listCmd, plotCmd, exportCmd, exportSVGCmd, analyzeCmd,
		presetsCmd, compareCmd, sweepCmd, mcCmd, liveCmd, serveCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		glog.Flush()
		stop()
		os.Exit(1)
	}
}

func simFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&integrator, "integrator", "rk4", "integrator (euler, rk4, rk45)")
	cmd.Flags().StringVar(&scenarioF, "scenario", "", "operator scenario file (yaml)")
	cmd.Flags().Float64Var(&duration, "time", config.DefaultDuration, "simulated seconds")
	cmd.Flags().Float64Var(&setpoint, "setpoint", config.DefaultSetpoint, "initial setpoint, rpm")
	cmd.Flags().Float64Var(&kp, "kp", config.DefaultKp, "proportional gain")
	cmd.Flags().Float64Var(&ki, "ki", config.DefaultKi, "integral gain")
	cmd.Flags().Float64Var(&kd, "kd", config.DefaultKd, "derivative gain")
	cmd.Flags().Float64Var(&dt, "dt", config.DefaultDt, "control interval, seconds")
	cmd.Flags().BoolVar(&reverse, "reverse", false, "start in reverse")
	cmd.Flags().BoolVar(&automatic, "auto", false, "start in automatic mode")
}

// loadConfig layers defaults, the config file, a preset and then any flag
// the user set explicitly.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if configFile != "" {
		var err error
		if cfg, err = config.Load(configFile); err != nil {
			return nil, err
		}
	}
	if preset != "" {
		apply, ok := config.Presets[preset]
		if !ok {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
		apply(cfg)
	}

	f := cmd.Flags()
	if f.Lookup("integrator") == nil {
		return cfg, cfg.Validate()
	}
	if f.Changed("integrator") {
		cfg.Sim.Integrator = integrator
	}
	if f.Changed("scenario") {
		cfg.Sim.Scenario = scenarioF
	}
	if f.Changed("time") {
		cfg.Sim.Duration = duration
	}
	if f.Changed("setpoint") {
		cfg.Sim.Setpoint = setpoint
	}
	if f.Changed("kp") {
		cfg.Control.Kp = kp
	}
	if f.Changed("ki") {
		cfg.Control.Ki = ki
	}
	if f.Changed("kd") {
		cfg.Control.Kd = kd
	}
	if f.Changed("dt") {
		cfg.Control.Dt = dt
	}
	if f.Changed("reverse") && reverse {
		cfg.Sim.Direction = "reverse"
	}
	if f.Changed("auto") && automatic {
		cfg.Sim.Mode = "automatic"
	}
	return cfg, cfg.Validate()
}
