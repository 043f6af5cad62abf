package main

import (
	"context"
	"io"
	"os"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/tarm/serial"

	"github.com/san-kum/dcmotor/internal/config"
	"github.com/san-kum/dcmotor/internal/experiment"
	"github.com/san-kum/dcmotor/internal/integrators"
	"github.com/san-kum/dcmotor/internal/loop"
	"github.com/san-kum/dcmotor/internal/sim"
	"github.com/san-kum/dcmotor/internal/term"
	"github.com/san-kum/dcmotor/internal/tui"
)

func newBench(cfg *config.Config) (*sim.Bench, sim.Config, error) {
	integ, err := integrators.New(cfg.Sim.Integrator)
	if err != nil {
		return nil, sim.Config{}, err
	}
	sc := experiment.SimConfig(cfg)
	return sim.NewBench(experiment.Motor(cfg), integ, sc), sc, nil
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	bench, sc, err := newBench(cfg)
	if err != nil {
		return err
	}
	return tui.Run(bench, sc)
}

type stdio struct {
	io.Reader
	io.Writer
}

func (stdio) Close() error { return os.Stdin.Close() }

// runServe runs the simulated motor on the wall clock and answers
// terminal commands on a serial port, like the board's UART console.
func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("port") {
		cfg.Serial.Port = port
	}
	if cmd.Flags().Changed("baud") {
		cfg.Serial.Baud = baud
	}

	bench, _, err := newBench(cfg)
	if err != nil {
		return err
	}

	var conn io.ReadWriteCloser = stdio{os.Stdin, os.Stdout}
	if cfg.Serial.Port != "" {
		p, err := serial.OpenPort(&serial.Config{Name: cfg.Serial.Port, Baud: cfg.Serial.Baud})
		if err != nil {
			return errors.Wrapf(err, "open %s", cfg.Serial.Port)
		}
		defer p.Close()
		conn = p
		glog.Infof("serve: console on %s at %d baud", cfg.Serial.Port, cfg.Serial.Baud)
	}
	return serveBench(cmd.Context(), bench, conn)
}

// serveBench drives bench in real time and serves the console on conn
// until the console reaches EOF, ctx is done or the plant diverges. conn
// is closed on the way out of the last two so a blocked read returns.
func serveBench(ctx context.Context, bench *sim.Bench, conn io.ReadWriteCloser) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	bench.Loop.AddObserver(loop.ObserverFunc(func(loop.Sample) {
		if err := bench.Rig.Err(); err != nil {
			glog.Errorf("serve: %v", err)
			cancel()
		}
	}))

	done := make(chan error, 1)
	go func() { done <- bench.Loop.Run(ctx) }()

	served := make(chan error, 1)
	go func() { served <- term.New(bench.Panel, bench.Loop).Serve(ctx, conn, conn) }()

	var serveErr error
	select {
	case serveErr = <-served:
	case <-ctx.Done():
		if err := conn.Close(); err != nil {
			glog.Warningf("serve: close console: %v", err)
		}
	}
	cancel()
	loopErr := <-done

	if err := bench.Rig.Err(); err != nil {
		return err
	}
	if serveErr != nil && !errors.Is(serveErr, context.Canceled) {
		return serveErr
	}
	if loopErr != nil && !errors.Is(loopErr, context.Canceled) {
		return loopErr
	}
	return nil
}
