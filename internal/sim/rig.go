package sim

import (
	"math"
	"sync"

	"github.com/san-kum/dcmotor/internal/command"
	"github.com/san-kum/dcmotor/internal/encoder"
	"github.com/san-kum/dcmotor/internal/hal"
	"github.com/san-kum/dcmotor/internal/loop"
)

// Rig is a simulated motor on the bench. It reads the bridge output from
// the PWM generator and serves as the loop's quadrature counter: every
// Velocity read integrates the plant across one control interval and
// returns the encoder edges the shaft produced.
type Rig struct {
	mu       sync.Mutex
	plant    Plant
	integ    Integrator
	gen      *hal.SimPWM
	supply   float64
	dt       float64
	substeps int
	cpr      float64

	x       State
	t       float64
	travel  float64 // total shaft travel, radians
	latched uint64  // edges reported so far
	err     error
}

func NewRig(plant Plant, integ Integrator, gen *hal.SimPWM, est *encoder.Estimator, cfg Config) *Rig {
	return &Rig{
		plant:    plant,
		integ:    integ,
		gen:      gen,
		supply:   cfg.Supply,
		dt:       cfg.Control.Dt,
		substeps: cfg.Substeps,
		cpr:      est.CountsPerRev(),
		x:        plant.Initial(),
	}
}

// Velocity advances the plant one interval. After an integration failure
// it keeps reporting the counter as unprimed; see Err.
func (r *Rig) Velocity() (uint32, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return 0, false
	}

	u := Control{r.gen.Duty() * r.supply}
	theta := r.plant.ShaftAngle(r.x)
	next, err := r.integ.Advance(r.plant, r.x, u, r.t, r.dt, r.substeps)
	if err != nil {
		r.err = &SimError{Step: int(math.Round(r.t / r.dt)), Time: r.t, Wrapped: err}
		return 0, false
	}
	r.x = next
	r.t += r.dt

	// the counter sees edges in either direction; fractional edges carry
	// into the next interval
	r.travel += math.Abs(r.plant.ShaftAngle(r.x) - theta)
	edges := uint64(r.travel / (2 * math.Pi) * r.cpr)
	count := uint32(edges - r.latched)
	r.latched = edges
	return count, true
}

// OutputRPM is the plant's true signed output speed.
func (r *Rig) OutputRPM() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.plant.OutputRPM(r.x)
}

// Current is the armature current, or 0 for plants that do not model it.
func (r *Rig) Current() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.plant.(interface{ Current(State) float64 }); ok {
		return c.Current(r.x)
	}
	return 0
}

// Time is the simulated time.
func (r *Rig) Time() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.t
}

func (r *Rig) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Bench wires a rig to a control loop and an operator panel the same way
// the firmware wires the motor, the timer interrupt and the buttons.
type Bench struct {
	PWM   *hal.SimPWM
	Rig   *Rig
	Loop  *loop.Loop
	Panel *command.Panel
}

func NewBench(plant Plant, integ Integrator, cfg Config) *Bench {
	est := cfg.Control.Estimator
	if est == nil {
		est = encoder.Default()
		cfg.Control.Estimator = est
	}

	gen := hal.NewSimPWM(cfg.Period)
	rig := NewRig(plant, integ, gen, est, cfg)
	l := loop.New(cfg.Control, gen, rig)

	panel := command.NewPanel(cfg.Command, l)
	if cfg.Automatic {
		panel.SetMode(command.Automatic)
	}
	l.SetDirection(cfg.Forward)
	l.SetSetpoint(cfg.Setpoint)

	return &Bench{PWM: gen, Rig: rig, Loop: l, Panel: panel}
}
