// Package pwm turns a normalized duty cycle and a direction into generator
// register writes, keeping the high-side bootstrap margin.
package pwm

import (
	"math"

	"github.com/san-kum/dcmotor/internal/hal"
	"github.com/san-kum/dcmotor/internal/mathx"
)

// DefaultDeadTime is the compare-count margin left before the period so the
// bootstrap capacitor recharges every cycle.
const DefaultDeadTime = 50

// Result describes one actuation.
type Result struct {
	Requested       float64 // duty before clamping
	Duty            float64 // duty after clamping to [0, 1]
	Pulse           uint16  // compare count written
	Forward         bool
	Saturated       bool // Requested was outside [0, 1]
	DeadTimeLimited bool // Pulse was pulled down to Period - DeadTime
}

type Actuator struct {
	gen      hal.Generator
	DeadTime uint16
}

func NewActuator(gen hal.Generator, deadTime uint16) *Actuator {
	return &Actuator{gen: gen, DeadTime: deadTime}
}

// DutyCycle reads the duty back from the generator registers.
func (a *Actuator) DutyCycle() float64 {
	period := a.gen.Period()
	if period == 0 {
		return 0
	}
	return float64(a.gen.Pulse()) / float64(period)
}

// MaxPulse returns the largest compare count the actuator will write.
func (a *Actuator) MaxPulse() uint16 {
	period := a.gen.Period()
	if a.DeadTime >= period {
		return 0
	}
	return period - a.DeadTime
}

// Apply adds adjustment to current, clamps the duty, converts it to a pulse
// within the dead-time margin and commits it together with the output
// actions for dir.
func (a *Actuator) Apply(current, adjustment float64, forward bool) Result {
	requested := current + adjustment
	duty := requested
	if math.IsNaN(duty) {
		duty = 0
	}
	duty = mathx.Clamp(duty, 0.0, 1.0)

	res := Result{
		Requested: requested,
		Duty:      duty,
		Forward:   forward,
		Saturated: duty != requested,
	}

	period := a.gen.Period()
	pulse := uint16(mathx.RoundHalfUp(float64(period) * duty))
	if limit := a.MaxPulse(); pulse > limit {
		pulse = limit
		res.DeadTimeLimited = true
	}
	res.Pulse = pulse

	a.gen.Commit(outputFor(forward, pulse))
	return res
}

// Set drives the generator to an absolute duty.
func (a *Actuator) Set(duty float64, forward bool) Result {
	return a.Apply(0, duty, forward)
}

func outputFor(forward bool, pulse uint16) hal.Output {
	if forward {
		return hal.Output{GenA: hal.ActionPWM, GenB: hal.ActionInactive, Pulse: pulse}
	}
	return hal.Output{GenA: hal.ActionInactive, GenB: hal.ActionPWM, Pulse: pulse}
}
