package metrics

import (
	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/dcmotor/internal/loop"
)

// tail keeps the series needed for statistics over the final half of a
// run, whose length is only known at the end.
type tail struct {
	pv  []float64
	err []float64
}

func (t *tail) observe(s loop.Sample) {
	t.pv = append(t.pv, s.ProcessVariable)
	t.err = append(t.err, s.Setpoint-s.ProcessVariable)
}

func (t *tail) half(xs []float64) []float64 { return xs[len(xs)/2:] }

func (t *tail) reset() {
	t.pv = t.pv[:0]
	t.err = t.err[:0]
}

// Ripple is the standard deviation of the speed over the final half of
// the run.
type Ripple struct{ tail }

func NewRipple() *Ripple { return &Ripple{} }

func (m *Ripple) Name() string          { return "ripple" }
func (m *Ripple) Observe(s loop.Sample) { m.observe(s) }
func (m *Ripple) Reset()                { m.reset() }

func (m *Ripple) Value() float64 {
	xs := m.half(m.pv)
	if len(xs) < 2 {
		return 0
	}
	return stat.StdDev(xs, nil)
}

// SteadyStateError is the mean tracking error over the final half of the
// run.
type SteadyStateError struct{ tail }

func NewSteadyStateError() *SteadyStateError { return &SteadyStateError{} }

func (m *SteadyStateError) Name() string          { return "steady_state_error" }
func (m *SteadyStateError) Observe(s loop.Sample) { m.observe(s) }
func (m *SteadyStateError) Reset()                { m.reset() }

func (m *SteadyStateError) Value() float64 {
	xs := m.half(m.err)
	if len(xs) == 0 {
		return 0
	}
	return stat.Mean(xs, nil)
}
