package sim

import (
	"math"

	"github.com/san-kum/dcmotor/internal/command"
	"github.com/san-kum/dcmotor/internal/loop"
)

type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

type Control []float64

// Dynamics is a plant dX/dt = f(X, u, t).
type Dynamics interface {
	Derivative(x State, u Control, t float64) State
	StateDim() int
	ControlDim() int
}

// Plant is a motor model the simulator can couple to the control loop.
type Plant interface {
	Dynamics
	Initial() State
	// OutputRPM is the signed output shaft speed.
	OutputRPM(x State) float64
	// ShaftAngle is the motor shaft angle in radians.
	ShaftAngle(x State) float64
}

// Integrator carries the plant across one control interval of length span
// with the bridge voltage u held, the way the H-bridge holds its output
// between ticks. substeps is the step count for fixed-step methods and the
// first guess for adaptive ones. A non-finite state fails with
// ErrInvalidState.
type Integrator interface {
	Advance(dyn Dynamics, x State, u Control, t, span float64, substeps int) (State, error)
}

type Metric interface {
	Name() string
	Observe(s loop.Sample)
	Value() float64
	Reset()
}

// Hook runs before each control interval and may drive the operator panel.
type Hook interface {
	Before(t float64, p *command.Panel)
}

type Config struct {
	Control   loop.Config
	Command   command.Config
	Period    uint16  // PWM period register, counts
	Supply    float64 // bridge supply, volts
	Duration  float64 // seconds
	Substeps  int     // plant integration steps per control interval
	Setpoint  float64 // initial setpoint, RPM
	Forward   bool
	Automatic bool
}

type Result struct {
	Samples    []loop.Sample
	TrueRPM    []float64 // plant output speed at the end of each interval
	Current    []float64 // armature current, amps
	Metrics    map[string]float64
	StepsTaken int
	Stats      loop.Stats
}

// Times returns the sample times.
func (r *Result) Times() []float64 {
	ts := make([]float64, len(r.Samples))
	for i, s := range r.Samples {
		ts[i] = s.Time
	}
	return ts
}

// Series extracts one value per sample.
func (r *Result) Series(f func(loop.Sample) float64) []float64 {
	out := make([]float64, len(r.Samples))
	for i, s := range r.Samples {
		out[i] = f(s)
	}
	return out
}
