package integrators

import "github.com/san-kum/dcmotor/internal/sim"

// RK4 is the classical fourth-order Runge-Kutta method. It keeps its stage
// buffers between calls, so one RK4 serves one rig.
type RK4 struct {
	mid sim.State
}

func NewRK4() *RK4 { return &RK4{} }

func (r *RK4) Advance(dyn sim.Dynamics, x sim.State, u sim.Control, t, span float64, substeps int) (sim.State, error) {
	if len(r.mid) != len(x) {
		r.mid = make(sim.State, len(x))
	}
	return march(x, t, span, substeps, func(next, x sim.State, t, h float64) {
		k1 := dyn.Derivative(x, u, t)
		axpy(r.mid, x, h/2, k1)
		k2 := dyn.Derivative(r.mid, u, t+h/2)
		axpy(r.mid, x, h/2, k2)
		k3 := dyn.Derivative(r.mid, u, t+h/2)
		axpy(r.mid, x, h, k3)
		k4 := dyn.Derivative(r.mid, u, t+h)

		for i := range x {
			next[i] = x[i] + h/6*(k1[i]+2*k2[i]+2*k3[i]+k4[i])
		}
	})
}
