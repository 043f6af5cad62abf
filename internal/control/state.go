package control

import (
	"math"
	"sync/atomic"
)

// Gains are the fixed PID tuning constants.
type Gains struct {
	Kp float64
	Ki float64
	Kd float64
}

// State is the motor control context. Gains and Dt never change after
// construction.
type State struct {
	gains Gains
	dt    float64

	setpoint  atomic.Uint64 // float64 bits, RPM
	pv        atomic.Uint64 // float64 bits, RPM
	direction atomic.Bool   // true = forward

	integral float64
	prevErr  float64
}

func NewState(gains Gains, dt float64) *State {
	s := &State{gains: gains, dt: dt}
	s.direction.Store(true)
	return s
}

func (s *State) Gains() Gains { return s.gains }

// Dt returns the control interval in seconds.
func (s *State) Dt() float64 { return s.dt }

// Enabled reports whether the control interval allows regulation.
func (s *State) Enabled() bool { return s.dt > 0 }

func (s *State) Setpoint() float64 {
	return math.Float64frombits(s.setpoint.Load())
}

func (s *State) SetSetpoint(rpm float64) {
	s.setpoint.Store(math.Float64bits(rpm))
}

func (s *State) ProcessVariable() float64 {
	return math.Float64frombits(s.pv.Load())
}

func (s *State) SetProcessVariable(rpm float64) {
	s.pv.Store(math.Float64bits(rpm))
}

// Forward reports the commanded direction.
func (s *State) Forward() bool { return s.direction.Load() }

func (s *State) SetForward(forward bool) { s.direction.Store(forward) }

// Integral returns the accumulated error·dt.
func (s *State) Integral() float64 { return s.integral }

func (s *State) PreviousError() float64 { return s.prevErr }

// Reset clears integral and derivative history.
func (s *State) Reset() {
	s.integral = 0
	s.prevErr = 0
}

// Params returns a snapshot of tunables for display.
func (s *State) Params() map[string]float64 {
	return map[string]float64{
		"Kp":       s.gains.Kp,
		"Ki":       s.gains.Ki,
		"Kd":       s.gains.Kd,
		"dt":       s.dt,
		"Setpoint": s.Setpoint(),
	}
}
