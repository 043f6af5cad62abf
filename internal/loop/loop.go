// Package loop runs the fixed-period speed control cycle: read the encoder,
// estimate speed, regulate, actuate.
//
// A Loop owns one motor's control state. Collaborators talk to it only
// through SetSetpoint, SetDirection, ProcessVariable and ResetControlState;
// the timing source calls OnTimerTick once per control interval.
package loop

import (
	"context"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/san-kum/dcmotor/internal/control"
	"github.com/san-kum/dcmotor/internal/encoder"
	"github.com/san-kum/dcmotor/internal/hal"
	"github.com/san-kum/dcmotor/internal/mathx"
	"github.com/san-kum/dcmotor/internal/pwm"
)

// ErrDisabled is returned by Run when the control interval is not positive.
var ErrDisabled = errors.New("loop: control interval must be positive")

type Phase int32

const (
	Idle Phase = iota
	Running
	resetting
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case resetting:
		return "resetting"
	default:
		return "unknown"
	}
}

type Config struct {
	Gains     control.Gains
	Dt        float64 // seconds between cycles
	DeadTime  uint16  // compare counts kept free before the period
	Estimator *encoder.Estimator
}

// Stats counts completed cycles and ticks dropped because a cycle (or a
// reset) was still in progress.
type Stats struct {
	Cycles   uint64
	Overruns uint64
}

type Loop struct {
	state     *control.State
	est       *encoder.Estimator
	act       *pwm.Actuator
	qei       hal.QuadratureCounter
	masker    hal.Masker
	observers []Observer

	phase    atomic.Int32
	cycles   atomic.Uint64
	overruns atomic.Uint64
}

type Option func(*Loop)

// WithMasker masks m for the duration of each cycle. By default the counter
// is used when it implements hal.Masker.
func WithMasker(m hal.Masker) Option {
	return func(l *Loop) { l.masker = m }
}

func WithObserver(o Observer) Option {
	return func(l *Loop) { l.observers = append(l.observers, o) }
}

// New builds a loop and drives the generator to zero duty, forward.
func New(cfg Config, gen hal.Generator, qei hal.QuadratureCounter, opts ...Option) *Loop {
	est := cfg.Estimator
	if est == nil {
		est = encoder.Default()
	}

	l := &Loop{
		state: control.NewState(cfg.Gains, cfg.Dt),
		est:   est,
		act:   pwm.NewActuator(gen, cfg.DeadTime),
		qei:   qei,
	}
	if m, ok := qei.(hal.Masker); ok {
		l.masker = m
	}
	for _, opt := range opts {
		opt(l)
	}

	if cfg.Dt <= 0 {
		glog.Warningf("loop: control interval %v s is not positive, regulation disabled", cfg.Dt)
	}

	l.act.Set(0, l.state.Forward())
	return l
}

// AddObserver registers o. Not safe to call while the loop is running.
func (l *Loop) AddObserver(o Observer) { l.observers = append(l.observers, o) }

// OnTimerTick runs one control cycle. A tick that arrives while a cycle is
// still running is dropped.
func (l *Loop) OnTimerTick() {
	if !l.phase.CompareAndSwap(int32(Idle), int32(Running)) {
		l.overruns.Add(1)
		return
	}
	defer l.phase.Store(int32(Idle))

	if l.masker != nil {
		l.masker.Mask()
		defer l.masker.Unmask()
	}

	l.cycle()
}

func (l *Loop) cycle() {
	n := l.cycles.Add(1)
	dt := l.state.Dt()

	pv := l.est.Estimate(l.qei, dt)
	l.state.SetProcessVariable(pv)

	forward := l.state.Forward()
	terms, enabled := control.Step(l.state)

	s := Sample{
		Cycle:           n,
		Time:            float64(n) * dt,
		Setpoint:        terms.Setpoint,
		ProcessVariable: pv,
		Forward:         forward,
		Enabled:         enabled,
	}

	if enabled {
		current := l.act.DutyCycle()
		res := l.act.Apply(current, terms.Sum(), forward)

		s.Error = terms.Error
		s.Adjustment = terms.Sum()
		s.Requested = res.Requested
		s.Duty = res.Duty
		s.Pulse = res.Pulse
		s.Saturated = res.Saturated
		s.DeadTimeLimited = res.DeadTimeLimited

		if res.Saturated || res.DeadTimeLimited {
			glog.V(2).Infof("loop: cycle %d duty %.4f clamped to %.4f (pulse %d)", n, res.Requested, res.Duty, res.Pulse)
		}
	} else {
		s.Setpoint = l.state.Setpoint()
		s.Duty = l.act.DutyCycle()
	}

	for _, o := range l.observers {
		o.OnCycle(s)
	}
}

// SetSetpoint publishes a new target speed in RPM. Non-finite values are
// ignored.
func (l *Loop) SetSetpoint(rpm float64) {
	if !mathx.Finite(rpm) {
		glog.Warningf("loop: ignoring non-finite setpoint %v", rpm)
		return
	}
	l.state.SetSetpoint(rpm)
}

func (l *Loop) Setpoint() float64 { return l.state.Setpoint() }

// SetDirection takes effect at the next generator commit.
func (l *Loop) SetDirection(forward bool) { l.state.SetForward(forward) }

func (l *Loop) Direction() bool { return l.state.Forward() }

// ProcessVariable returns the last measured speed in RPM.
func (l *Loop) ProcessVariable() float64 { return l.state.ProcessVariable() }

// DutyCycle reads the applied duty back from the generator.
func (l *Loop) DutyCycle() float64 { return l.act.DutyCycle() }

// ResetControlState zeroes the integral and previous error. It waits for a
// running cycle to finish and holds off ticks while it runs.
func (l *Loop) ResetControlState() {
	for !l.phase.CompareAndSwap(int32(Idle), int32(resetting)) {
		runtime.Gosched()
	}
	l.state.Reset()
	l.phase.Store(int32(Idle))
}

// State exposes the control state for inspection.
func (l *Loop) State() *control.State { return l.state }

func (l *Loop) Phase() Phase { return Phase(l.phase.Load()) }

func (l *Loop) Stats() Stats {
	return Stats{Cycles: l.cycles.Load(), Overruns: l.overruns.Load()}
}

// Run calls OnTimerTick every control interval until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	dt := l.state.Dt()
	if dt <= 0 {
		return ErrDisabled
	}

	period := time.Duration(dt * float64(time.Second))
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	glog.Infof("loop: running every %v", period)
	for {
		select {
		case <-ctx.Done():
			glog.Infof("loop: stopped after %d cycles", l.cycles.Load())
			return ctx.Err()
		case <-ticker.C:
			l.OnTimerTick()
		}
	}
}
