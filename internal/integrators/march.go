// Package integrators advances the motor plant across a control interval.
// Every method holds the bridge voltage for the whole interval and checks
// the state after each step, so a diverging plant is caught at the step
// where it left the finite range.
package integrators

import (
	"github.com/pkg/errors"

	"github.com/san-kum/dcmotor/internal/sim"
)

// stepFunc overwrites next with the state h seconds after x.
type stepFunc func(next, x sim.State, t, h float64)

// march runs n equal steps across span, ping-ponging between two buffers.
func march(x sim.State, t, span float64, n int, step stepFunc) (sim.State, error) {
	if n < 1 {
		n = 1
	}
	h := span / float64(n)

	cur := x.Clone()
	next := make(sim.State, len(x))
	for i := 0; i < n; i++ {
		step(next, cur, t+float64(i)*h, h)
		if !next.IsValid() {
			return cur, errors.Wrapf(sim.ErrInvalidState, "step %d/%d at t=%.6f", i+1, n, t+float64(i+1)*h)
		}
		cur, next = next, cur
	}
	return cur, nil
}

// axpy writes x + h·k into dst.
func axpy(dst, x sim.State, h float64, k sim.State) {
	for i := range x {
		dst[i] = x[i] + h*k[i]
	}
}
