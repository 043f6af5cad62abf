package integrators

import (
	"math"

	"github.com/pkg/errors"

	"github.com/san-kum/dcmotor/internal/sim"
)

// DefaultTolerance is the relative local error RK45 aims for.
const DefaultTolerance = 1e-6

// Dormand-Prince tableau.
var (
	dpC = [7]float64{0, 1.0 / 5, 3.0 / 10, 4.0 / 5, 8.0 / 9, 1, 1}
	dpA = [7][6]float64{
		{},
		{1.0 / 5},
		{3.0 / 40, 9.0 / 40},
		{44.0 / 45, -56.0 / 15, 32.0 / 9},
		{19372.0 / 6561, -25360.0 / 2187, 64448.0 / 6561, -212.0 / 729},
		{9017.0 / 3168, -355.0 / 33, 46732.0 / 5247, 49.0 / 176, -5103.0 / 18656},
		{35.0 / 384, 0, 500.0 / 1113, 125.0 / 192, -2187.0 / 6784, 11.0 / 84},
	}
	// fifth-order weights minus the embedded fourth-order ones
	dpE = [7]float64{
		35.0/384 - 5179.0/57600,
		0,
		500.0/1113 - 7571.0/16695,
		125.0/192 - 393.0/640,
		-2187.0/6784 + 92097.0/339200,
		11.0/84 - 187.0/2100,
		-1.0 / 40,
	}
)

// RK45 is the Dormand-Prince 5(4) pair with step-size control. It starts
// each interval at span/substeps and adapts from there, always landing
// exactly on the end of the interval so the next control tick sees the
// shaft where the hardware would.
type RK45 struct {
	Tol      float64
	Safety   float64
	MinScale float64
	MaxScale float64

	k     [7]sim.State
	stage sim.State
}

func NewRK45() *RK45 {
	return &RK45{Tol: DefaultTolerance, Safety: 0.9, MinScale: 0.2, MaxScale: 10}
}

func (r *RK45) Advance(dyn sim.Dynamics, x sim.State, u sim.Control, t, span float64, substeps int) (sim.State, error) {
	if substeps < 1 {
		substeps = 1
	}
	h := span / float64(substeps)
	minStep := h * 1e-6

	x = x.Clone()
	next := make(sim.State, len(x))
	done := 0.0
	for steps := 1; span-done > minStep; steps++ {
		h = math.Min(h, span-done)
		errRatio := r.trial(dyn, next, x, u, t+done, h)
		if !next.IsValid() {
			return x, errors.Wrapf(sim.ErrInvalidState, "adaptive step %d at t=%.6f", steps, t+done+h)
		}

		// a rejected step is retried smaller unless it is already minimal
		if errRatio > 1 && h > minStep {
			h = math.Max(h*math.Max(r.MinScale, r.Safety*math.Pow(errRatio, -0.25)), minStep)
			continue
		}
		x, next = next, x
		done += h

		scale := r.MaxScale
		if errRatio > 0 {
			scale = math.Min(r.MaxScale, r.Safety*math.Pow(errRatio, -0.2))
		}
		h = math.Max(h*scale, minStep)
	}
	return x, nil
}

// trial writes the fifth-order solution h ahead of x into next and returns
// the error estimate relative to Tol.
func (r *RK45) trial(dyn sim.Dynamics, next, x sim.State, u sim.Control, t, h float64) float64 {
	n := len(x)
	if len(r.stage) != n {
		r.stage = make(sim.State, n)
	}

	r.k[0] = dyn.Derivative(x, u, t)
	for s := 1; s < 7; s++ {
		for i := 0; i < n; i++ {
			acc := 0.0
			for j := 0; j < s; j++ {
				acc += dpA[s][j] * r.k[j][i]
			}
			r.stage[i] = x[i] + h*acc
		}
		if s == 6 {
			// FSAL: the last stage is the fifth-order solution itself
			copy(next, r.stage)
		}
		r.k[s] = dyn.Derivative(r.stage, u, t+dpC[s]*h)
	}

	errMax := 0.0
	for i := 0; i < n; i++ {
		est := 0.0
		for s := 0; s < 7; s++ {
			est += dpE[s] * r.k[s][i]
		}
		scale := math.Abs(x[i]) + math.Abs(h*r.k[0][i]) + 1e-10
		errMax = math.Max(errMax, math.Abs(h*est)/scale)
	}
	return errMax / r.Tol
}
