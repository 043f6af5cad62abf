// Package plant models an armature-controlled DC motor driving a gearbox.
package plant

import (
	"math"

	"github.com/san-kum/dcmotor/internal/sim"
)

// Defaults approximate a small 12 V gearmotor with a 20:1 reduction.
const (
	DefaultResistance  = 2.0   // ohms
	DefaultInductance  = 0.005 // henries
	DefaultTorqueConst = 0.027 // N·m/A
	DefaultBackEMF     = 0.027 // V·s/rad
	DefaultInertia     = 2e-5  // kg·m²
	DefaultDamping     = 1e-6  // N·m·s/rad
	DefaultGearRatio   = 20.0
)

// Motor state is [ω rad/s, i A, θ rad] at the motor shaft; the control
// input is [v] in volts.
type Motor struct {
	R, L      float64
	Kt, Ke    float64
	J, B      float64
	Load      float64 // Coulomb load torque at the motor shaft, N·m
	GearRatio float64
}

func NewMotor() *Motor {
	return &Motor{
		R:         DefaultResistance,
		L:         DefaultInductance,
		Kt:        DefaultTorqueConst,
		Ke:        DefaultBackEMF,
		J:         DefaultInertia,
		B:         DefaultDamping,
		GearRatio: DefaultGearRatio,
	}
}

func (m *Motor) StateDim() int   { return 3 }
func (m *Motor) ControlDim() int { return 1 }

func (m *Motor) Initial() sim.State { return sim.State{0, 0, 0} }

func (m *Motor) Derivative(x sim.State, u sim.Control, t float64) sim.State {
	omega, i := x[0], x[1]

	v := 0.0
	if len(u) > 0 {
		v = u[0]
	}

	di := (v - m.R*i - m.Ke*omega) / m.L
	// tanh keeps the friction term smooth through zero speed
	load := m.Load * math.Tanh(omega)
	domega := (m.Kt*i - m.B*omega - load) / m.J

	return sim.State{domega, di, omega}
}

func (m *Motor) OutputRPM(x sim.State) float64 {
	if m.GearRatio <= 0 {
		return 0
	}
	return x[0] * 60 / (2 * math.Pi) / m.GearRatio
}

func (m *Motor) ShaftAngle(x sim.State) float64 { return x[2] }

func (m *Motor) Current(x sim.State) float64 { return x[1] }

// SteadyStateRPM is the output speed the motor settles at under a constant
// voltage, ignoring the load torque.
func (m *Motor) SteadyStateRPM(v float64) float64 {
	den := m.R*m.B + m.Kt*m.Ke
	if den == 0 || m.GearRatio <= 0 {
		return 0
	}
	omega := m.Kt * v / den
	return omega * 60 / (2 * math.Pi) / m.GearRatio
}

// TimeConstants returns the electrical and mechanical time constants.
func (m *Motor) TimeConstants() (electrical, mechanical float64) {
	electrical = m.L / m.R
	mechanical = m.J * m.R / (m.Kt*m.Ke + m.R*m.B)
	return electrical, mechanical
}
