// Package command maps operator input to setpoint changes: push-button
// stepping in manual mode and analog-input scaling in automatic mode.
package command

import (
	"sync"
	"time"

	"github.com/golang/glog"
	"periph.io/x/conn/v3/physic"

	"github.com/san-kum/dcmotor/internal/mathx"
)

type Mode int

const (
	Manual Mode = iota
	Automatic
)

func (m Mode) String() string {
	if m == Automatic {
		return "auto"
	}
	return "manual"
}

// ParseMode accepts "manual"/"man" and "auto"/"automatic".
func ParseMode(s string) (Mode, bool) {
	switch s {
	case "manual", "man":
		return Manual, true
	case "auto", "automatic":
		return Automatic, true
	}
	return Manual, false
}

// Target is the part of the control loop the panel drives.
type Target interface {
	SetSetpoint(rpm float64)
	Setpoint() float64
	SetDirection(forward bool)
	Direction() bool
	ResetControlState()
}

type Config struct {
	MaxRPM    float64
	SmallStep float64
	LargeStep float64
	LongPress time.Duration
	FullScale physic.ElectricPotential // analog input that maps to MaxRPM
}

func DefaultConfig() Config {
	return Config{
		MaxRPM:    180,
		SmallStep: 1,
		LargeStep: 20,
		LongPress: time.Second,
		FullScale: 3307 * physic.MilliVolt,
	}
}

// Panel serialises operator commands onto a Target.
type Panel struct {
	mu     sync.Mutex
	cfg    Config
	target Target
	mode   Mode
}

func NewPanel(cfg Config, target Target) *Panel {
	return &Panel{cfg: cfg, target: target, mode: Manual}
}

func (p *Panel) Mode() Mode {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mode
}

// SetMode switches mode and clears the regulator history on every change.
func (p *Panel) SetMode(m Mode) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.mode == m {
		return
	}
	p.mode = m
	p.target.ResetControlState()
	glog.Infof("command: mode %s", m)
}

// Increase steps the setpoint up. Presses held at least LongPress use the
// large step. Ignored in automatic mode.
func (p *Panel) Increase(held time.Duration) bool {
	return p.step(held, 1)
}

// Decrease steps the setpoint down. Ignored in automatic mode.
func (p *Panel) Decrease(held time.Duration) bool {
	return p.step(held, -1)
}

func (p *Panel) step(held time.Duration, sign float64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.mode != Manual {
		return false
	}
	delta := p.cfg.SmallStep
	if held >= p.cfg.LongPress {
		delta = p.cfg.LargeStep
	}
	sp := mathx.Clamp(p.target.Setpoint()+sign*delta, 0, p.cfg.MaxRPM)
	p.target.SetSetpoint(sp)
	return true
}

// Set writes an absolute setpoint, clamped to [0, MaxRPM]. Ignored in
// automatic mode.
func (p *Panel) Set(rpm float64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.mode != Manual || !mathx.Finite(rpm) {
		return false
	}
	p.target.SetSetpoint(mathx.Clamp(rpm, 0, p.cfg.MaxRPM))
	return true
}

// Analog maps an analog input reading onto [0, MaxRPM]. Ignored in manual
// mode.
func (p *Panel) Analog(v physic.ElectricPotential) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.mode != Automatic {
		return false
	}
	p.target.SetSetpoint(p.scale(v))
	return true
}

func (p *Panel) scale(v physic.ElectricPotential) float64 {
	if p.cfg.FullScale <= 0 {
		return 0
	}
	rpm := p.cfg.MaxRPM * float64(v) / float64(p.cfg.FullScale)
	return mathx.Clamp(rpm, 0, p.cfg.MaxRPM)
}

func (p *Panel) Forward() { p.target.SetDirection(true) }

func (p *Panel) Reverse() { p.target.SetDirection(false) }

// Reset clears the regulator history without changing mode.
func (p *Panel) Reset() { p.target.ResetControlState() }

func (p *Panel) Setpoint() float64 { return p.target.Setpoint() }

func (p *Panel) Direction() bool { return p.target.Direction() }
