package integrators

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/san-kum/dcmotor/internal/sim"
)

var ErrUnknown = errors.New("integrators: unknown integrator")

var registry = map[string]func() sim.Integrator{
	"euler": func() sim.Integrator { return NewEuler() },
	"rk4":   func() sim.Integrator { return NewRK4() },
	"rk45":  func() sim.Integrator { return NewRK45() },
}

// New returns a fresh integrator. RK4 keeps scratch buffers, so integrators
// are not shared between simulations.
func New(name string) (sim.Integrator, error) {
	fn, ok := registry[name]
	if !ok {
		return nil, errors.Wrapf(ErrUnknown, "%q", name)
	}
	return fn(), nil
}

func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
