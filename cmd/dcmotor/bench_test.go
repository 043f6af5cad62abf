package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/san-kum/dcmotor/internal/config"
	"github.com/san-kum/dcmotor/internal/experiment"
	"github.com/san-kum/dcmotor/internal/integrators"
	"github.com/san-kum/dcmotor/internal/plant"
	"github.com/san-kum/dcmotor/internal/sim"
)

// console is a line that never sends anything until it is closed.
type console struct {
	r      *io.PipeReader
	w      *io.PipeWriter
	out    bytes.Buffer
	closed atomic.Bool
}

func newConsole() *console {
	r, w := io.Pipe()
	return &console{r: r, w: w}
}

func (c *console) Read(p []byte) (int, error)  { return c.r.Read(p) }
func (c *console) Write(p []byte) (int, error) { return c.out.Write(p) }
func (c *console) Close() error {
	c.closed.Store(true)
	return c.r.Close()
}

// scripted replays fixed input and records the replies.
type scripted struct {
	io.Reader
	bytes.Buffer
}

func (s *scripted) Read(p []byte) (int, error)  { return s.Reader.Read(p) }
func (s *scripted) Write(p []byte) (int, error) { return s.Buffer.Write(p) }
func (*scripted) Close() error                  { return nil }

type diverging struct{ *plant.Motor }

func (diverging) Derivative(x sim.State, u sim.Control, t float64) sim.State {
	return sim.State{math.NaN(), 0, 0}
}

func fastBench(t *testing.T, p sim.Plant) *sim.Bench {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Control.Dt = 0.01
	cfg.Sim.Substeps = 5
	integ, err := integrators.New("rk4")
	if err != nil {
		t.Fatal(err)
	}
	return sim.NewBench(p, integ, experiment.SimConfig(cfg))
}

func serveAsync(ctx context.Context, b *sim.Bench, conn io.ReadWriteCloser) <-chan error {
	errc := make(chan error, 1)
	go func() { errc <- serveBench(ctx, b, conn) }()
	return errc
}

func TestServeStopsOnDivergedPlantWithIdleConsole(t *testing.T) {
	conn := newConsole()
	errc := serveAsync(context.Background(), fastBench(t, diverging{plant.NewMotor()}), conn)

	select {
	case err := <-errc:
		if !errors.Is(err, sim.ErrInvalidState) {
			t.Errorf("err = %v, want sim.ErrInvalidState", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("serve still waiting on the console after the plant diverged")
	}
	if !conn.closed.Load() {
		t.Error("console not closed")
	}
}

func TestServeStopsOnCancelWithIdleConsole(t *testing.T) {
	conn := newConsole()
	ctx, cancel := context.WithCancel(context.Background())
	errc := serveAsync(ctx, fastBench(t, plant.NewMotor()), conn)

	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case err := <-errc:
		if err != nil {
			t.Errorf("err = %v, want nil on cancel", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
	if !conn.closed.Load() {
		t.Error("console not closed")
	}
}

func TestServeAnswersUntilEOF(t *testing.T) {
	b := fastBench(t, plant.NewMotor())
	conn := &scripted{Reader: strings.NewReader("sp 50\nstatus\n")}

	select {
	case err := <-serveAsync(context.Background(), b, conn):
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("serve did not return at EOF")
	}

	lines := strings.Split(strings.TrimSpace(conn.String()), "\r\n")
	if len(lines) != 2 || lines[0] != "ok" || !strings.Contains(lines[1], "sp=50") {
		t.Errorf("replies = %q", lines)
	}
	if got := b.Loop.Setpoint(); got != 50 {
		t.Errorf("setpoint = %v, want 50", got)
	}
}
