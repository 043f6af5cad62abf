// Package term interprets line-oriented operator commands, typically read
// from a serial terminal.
//
//	sp <rpm>            set speed (manual mode)
//	up [ms] / down [ms] step speed as if the button was held for ms
//	dir fwd|rev         set direction
//	mode manual|auto    switch mode (resets the regulator)
//	ain <volts>         feed an analog reading (automatic mode)
//	reset               clear regulator history
//	status              print setpoint, speed, duty, direction, mode
package term

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"periph.io/x/conn/v3/physic"

	"github.com/san-kum/dcmotor/internal/command"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrBadArgument    = errors.New("bad argument")
	ErrRejected       = errors.New("rejected in current mode")
)

// Reporter supplies live values for the status line.
type Reporter interface {
	ProcessVariable() float64
	DutyCycle() float64
}

type Terminal struct {
	panel    *command.Panel
	reporter Reporter
}

func New(panel *command.Panel, reporter Reporter) *Terminal {
	return &Terminal{panel: panel, reporter: reporter}
}

// Serve reads commands from r until EOF or ctx is done, writing one reply
// line per command to w.
func (t *Terminal) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		reply, err := t.Execute(line)
		if err != nil {
			glog.V(1).Infof("term: %q: %v", line, err)
			reply = "err: " + err.Error()
		}
		if _, err := fmt.Fprintf(w, "%s\r\n", reply); err != nil {
			return errors.Wrap(err, "term: write reply")
		}
	}
	return errors.Wrap(sc.Err(), "term: read")
}

// Execute runs one command line and returns the reply text.
func (t *Terminal) Execute(line string) (string, error) {
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) == 0 {
		return "", ErrUnknownCommand
	}
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "sp", "speed":
		v, err := floatArg(args)
		if err != nil {
			return "", err
		}
		return ack(t.panel.Set(v))
	case "up", "down":
		held, err := heldArg(args)
		if err != nil {
			return "", err
		}
		if cmd == "up" {
			return ack(t.panel.Increase(held))
		}
		return ack(t.panel.Decrease(held))
	case "dir":
		if len(args) != 1 {
			return "", errors.Wrap(ErrBadArgument, "dir needs fwd or rev")
		}
		switch args[0] {
		case "fwd", "forward", "cw":
			t.panel.Forward()
		case "rev", "reverse", "ccw":
			t.panel.Reverse()
		default:
			return "", errors.Wrapf(ErrBadArgument, "direction %q", args[0])
		}
		return "ok", nil
	case "mode":
		if len(args) != 1 {
			return "", errors.Wrap(ErrBadArgument, "mode needs manual or auto")
		}
		m, ok := command.ParseMode(args[0])
		if !ok {
			return "", errors.Wrapf(ErrBadArgument, "mode %q", args[0])
		}
		t.panel.SetMode(m)
		return "ok", nil
	case "ain":
		v, err := floatArg(args)
		if err != nil {
			return "", err
		}
		return ack(t.panel.Analog(physic.ElectricPotential(math.Round(v * float64(physic.Volt)))))
	case "reset":
		t.panel.Reset()
		return "ok", nil
	case "status", "?":
		return t.Status(), nil
	case "help":
		return "sp <rpm> | up [ms] | down [ms] | dir fwd|rev | mode manual|auto | ain <volts> | reset | status", nil
	}
	return "", errors.Wrapf(ErrUnknownCommand, "%q", cmd)
}

// Status formats the live state on one line.
func (t *Terminal) Status() string {
	dir := "fwd"
	if !t.panel.Direction() {
		dir = "rev"
	}
	pv, duty := 0.0, 0.0
	if t.reporter != nil {
		pv, duty = t.reporter.ProcessVariable(), t.reporter.DutyCycle()
	}
	return fmt.Sprintf("sp=%.1f pv=%.1f duty=%.3f dir=%s mode=%s",
		t.panel.Setpoint(), pv, duty, dir, t.panel.Mode())
}

func ack(accepted bool) (string, error) {
	if !accepted {
		return "", ErrRejected
	}
	return "ok", nil
}

func floatArg(args []string) (float64, error) {
	if len(args) != 1 {
		return 0, errors.Wrap(ErrBadArgument, "expected one number")
	}
	v, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return 0, errors.Wrapf(ErrBadArgument, "%q", args[0])
	}
	return v, nil
}

func heldArg(args []string) (time.Duration, error) {
	if len(args) == 0 {
		return 0, nil
	}
	ms, err := strconv.Atoi(args[0])
	if err != nil || ms < 0 {
		return 0, errors.Wrapf(ErrBadArgument, "hold time %q", args[0])
	}
	return time.Duration(ms) * time.Millisecond, nil
}
