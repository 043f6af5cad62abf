// Package hal describes the motor-control hardware the control core talks to.
//
// The core never touches registers directly. It drives a PWM [Generator]
// whose period, pulse and output actions are committed together, and it
// reads a [QuadratureCounter] that accumulates encoder edges over one
// control interval. [SimPWM] and [SimQEI] are register-level stand-ins used
// by the simulator and tests.
package hal

// Action is the generator output action pair written for one PWM output.
// Values mirror the generator control register encodings.
type Action uint8

const (
	// ActionPWM drives the output high on load and low on compare match.
	ActionPWM Action = 0x83
	// ActionInactive holds the output so its half-bridge pair carries no PWM.
	ActionInactive Action = 0xC3
)

func (a Action) String() string {
	switch a {
	case ActionPWM:
		return "pwm"
	case ActionInactive:
		return "inactive"
	default:
		return "unknown"
	}
}

// Output is one complete generator configuration. It is committed as a unit
// so polarity and pulse width can never be observed half-applied.
type Output struct {
	GenA  Action
	GenB  Action
	Pulse uint16
}

// Driving reports how many of the two generator outputs carry PWM.
func (o Output) Driving() int {
	n := 0
	if o.GenA == ActionPWM {
		n++
	}
	if o.GenB == ActionPWM {
		n++
	}
	return n
}

// Generator is a PWM generator with a fixed period register.
type Generator interface {
	// Period returns the load (period) register in counts.
	Period() uint16
	// Pulse returns the live compare (pulse width) register in counts.
	Pulse() uint16
	// Commit applies actions and pulse width together at the next reload.
	Commit(out Output)
}

// QuadratureCounter reports encoder counts for the last completed interval.
type QuadratureCounter interface {
	// Velocity returns the unsigned edge count of the last interval. ok is
	// false until the counter has completed its first interval.
	Velocity() (count uint32, ok bool)
}

// Masker is implemented by tick sources that can be masked while a control
// cycle runs.
type Masker interface {
	Mask()
	Unmask()
}
