// Package metrics scores closed-loop runs from the per-cycle samples.
package metrics

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/san-kum/dcmotor/internal/sim"
)

var ErrUnknown = errors.New("metrics: unknown metric")

var registry = map[string]func() sim.Metric{
	"iae":                func() sim.Metric { return NewIAE() },
	"overshoot_pct":      func() sim.Metric { return NewOvershoot() },
	"settling_time":      func() sim.Metric { return NewSettlingTime(DefaultBand) },
	"control_effort":     func() sim.Metric { return NewControlEffort() },
	"saturation":         func() sim.Metric { return NewSaturation() },
	"ripple":             func() sim.Metric { return NewRipple() },
	"steady_state_error": func() sim.Metric { return NewSteadyStateError() },
}

// Names lists every metric, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New builds the named metrics. No names means all of them.
func New(names ...string) ([]sim.Metric, error) {
	if len(names) == 0 {
		names = Names()
	}
	out := make([]sim.Metric, 0, len(names))
	for _, name := range names {
		fn, ok := registry[name]
		if !ok {
			return nil, errors.Wrapf(ErrUnknown, "%q", name)
		}
		out = append(out, fn())
	}
	return out, nil
}
