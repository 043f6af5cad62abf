// Package tui renders the motor bench in the terminal: a bubbletea model
// for driving it interactively and a plain renderer for batch progress.
package tui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/san-kum/dcmotor/internal/loop"
)

// LiveRenderer prints a one-line status per frame while a batch run goes.
// It is a loop.Observer.
type LiveRenderer struct {
	out       io.Writer
	frameRate int
	lastFrame time.Time
	barWidth  int
	maxRPM    float64
}

func NewLiveRenderer(out io.Writer, frameRate int, maxRPM float64) *LiveRenderer {
	if frameRate <= 0 {
		frameRate = 10
	}
	return &LiveRenderer{out: out, frameRate: frameRate, barWidth: 30, maxRPM: maxRPM}
}

func (r *LiveRenderer) OnCycle(s loop.Sample) {
	if time.Since(r.lastFrame) < time.Second/time.Duration(r.frameRate) {
		return
	}
	r.lastFrame = time.Now()
	fmt.Fprintf(r.out, "\r%s", r.line(s))
}

func (r *LiveRenderer) line(s loop.Sample) string {
	flag := " "
	if s.Limited() {
		flag = "!"
	}
	return fmt.Sprintf("t=%7.2fs sp=%6.1f pv=%6.1f %s duty=%5.3f%s",
		s.Time, s.Setpoint, s.ProcessVariable, r.bar(s.ProcessVariable, s.Setpoint), s.Duty, flag)
}

// bar draws pv as '=' with the setpoint marked '|'.
func (r *LiveRenderer) bar(pv, sp float64) string {
	if r.maxRPM <= 0 {
		return ""
	}
	cell := func(v float64) int {
		n := int(v / r.maxRPM * float64(r.barWidth))
		return max(0, min(n, r.barWidth-1))
	}
	b := []byte(strings.Repeat(" ", r.barWidth))
	for i := 0; i < cell(pv); i++ {
		b[i] = '='
	}
	b[cell(sp)] = '|'
	return "[" + string(b) + "]"
}

// Stop ends the status line.
func (r *LiveRenderer) Stop() { fmt.Fprintln(r.out) }
