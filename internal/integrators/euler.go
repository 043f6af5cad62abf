package integrators

import "github.com/san-kum/dcmotor/internal/sim"

// Euler is forward Euler. The winding's electrical time constant is a few
// milliseconds, so it needs hundreds of substeps per control interval to
// stay accurate; it is kept as the reference the others are checked
// against.
type Euler struct{}

func NewEuler() *Euler { return &Euler{} }

func (e *Euler) Advance(dyn sim.Dynamics, x sim.State, u sim.Control, t, span float64, substeps int) (sim.State, error) {
	return march(x, t, span, substeps, func(next, x sim.State, t, h float64) {
		axpy(next, x, h, dyn.Derivative(x, u, t))
	})
}
