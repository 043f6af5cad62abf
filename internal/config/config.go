package config

import (
	"math"
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
	"periph.io/x/conn/v3/physic"
)

const (
	DefaultKp       = 0.005
	DefaultKi       = 0.0
	DefaultKd       = 0.0
	DefaultDt       = 0.15
	DefaultDeadTime = 50
	DefaultDuration = 15.0
	DefaultSubsteps = 50
	DefaultSetpoint = 100.0
	DefaultSupply   = 12.0
	DefaultBaud     = 115200
)

var (
	ErrInvalidInterval = errors.New("config: control interval must be positive")
	ErrInvalidPWM      = errors.New("config: invalid PWM timing")
	ErrInvalidEncoder  = errors.New("config: invalid encoder calibration")
	ErrInvalidGains    = errors.New("config: gains must be finite")
	ErrInvalidSim      = errors.New("config: invalid simulation settings")
)

type Config struct {
	Control ControlConfig `yaml:"control"`
	Encoder EncoderConfig `yaml:"encoder"`
	PWM     PWMConfig     `yaml:"pwm"`
	Motor   MotorConfig   `yaml:"motor"`
	Command CommandConfig `yaml:"command"`
	Sim     SimConfig     `yaml:"sim"`
	Serial  SerialConfig  `yaml:"serial"`
}

type ControlConfig struct {
	Kp float64 `yaml:"kp"`
	Ki float64 `yaml:"ki"`
	Kd float64 `yaml:"kd"`
	Dt float64 `yaml:"dt"`
}

type EncoderConfig struct {
	PulsesPerRev   uint32  `yaml:"pulses_per_rev"`
	CountsPerPulse uint32  `yaml:"counts_per_pulse"`
	GearRatio      float64 `yaml:"gear_ratio"`
}

// PWMConfig derives the period register from the module clock and the
// switching frequency.
type PWMConfig struct {
	Clock     Frequency `yaml:"clock"`
	Frequency Frequency `yaml:"frequency"`
	DeadTime  uint16    `yaml:"dead_time"`
}

// Period returns the counts per PWM period, or 0 when the frequencies do
// not give a period that fits the 16-bit register.
func (p PWMConfig) Period() uint16 {
	if p.Frequency.Frequency <= 0 || p.Clock.Frequency <= 0 {
		return 0
	}
	n := int64(p.Clock.Frequency / p.Frequency.Frequency)
	if n <= 0 || n > math.MaxUint16 {
		return 0
	}
	return uint16(n)
}

type MotorConfig struct {
	Resistance  float64 `yaml:"resistance"`
	Inductance  float64 `yaml:"inductance"`
	TorqueConst float64 `yaml:"torque_const"`
	BackEMF     float64 `yaml:"back_emf"`
	Inertia     float64 `yaml:"inertia"`
	Damping     float64 `yaml:"damping"`
	Load        float64 `yaml:"load"`
	GearRatio   float64 `yaml:"gear_ratio"`
	Supply      float64 `yaml:"supply"`
}

type CommandConfig struct {
	MaxRPM    float64       `yaml:"max_rpm"`
	SmallStep float64       `yaml:"small_step"`
	LargeStep float64       `yaml:"large_step"`
	LongPress time.Duration `yaml:"long_press"`
	FullScale Potential     `yaml:"full_scale"`
}

type SimConfig struct {
	Integrator string  `yaml:"integrator"`
	Duration   float64 `yaml:"duration"`
	Substeps   int     `yaml:"substeps"`
	Setpoint   float64 `yaml:"setpoint"`
	Direction  string  `yaml:"direction"`
	Mode       string  `yaml:"mode"`
	Scenario   string  `yaml:"scenario,omitempty"`
}

type SerialConfig struct {
	Port string `yaml:"port"`
	Baud int    `yaml:"baud"`
}

func DefaultConfig() *Config {
	return &Config{
		Control: ControlConfig{
			Kp: DefaultKp,
			Ki: DefaultKi,
			Kd: DefaultKd,
			Dt: DefaultDt,
		},
		Encoder: EncoderConfig{
			PulsesPerRev:   7,
			CountsPerPulse: 4,
			GearRatio:      20,
		},
		PWM: PWMConfig{
			Clock:     Frequency{40 * physic.MegaHertz},
			Frequency: Frequency{20 * physic.KiloHertz},
			DeadTime:  DefaultDeadTime,
		},
		Motor: MotorConfig{
			Resistance:  2.0,
			Inductance:  0.005,
			TorqueConst: 0.027,
			BackEMF:     0.027,
			Inertia:     2e-5,
			Damping:     1e-6,
			GearRatio:   20,
			Supply:      DefaultSupply,
		},
		Command: CommandConfig{
			MaxRPM:    180,
			SmallStep: 1,
			LargeStep: 20,
			LongPress: time.Second,
			FullScale: Potential{3307 * physic.MilliVolt},
		},
		Sim: SimConfig{
			Integrator: "rk4",
			Duration:   DefaultDuration,
			Substeps:   DefaultSubsteps,
			Setpoint:   DefaultSetpoint,
			Direction:  "forward",
			Mode:       "manual",
		},
		Serial: SerialConfig{
			Baud: DefaultBaud,
		},
	}
}

// Load reads path over the defaults, so a file only needs the values it
// changes.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "decode config %s", path)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "encode config")
	}
	return errors.Wrap(os.WriteFile(path, data, 0644), "write config")
}

// Clone returns an independent copy; Config holds no references.
func (c *Config) Clone() *Config {
	cp := *c
	return &cp
}

func (c *Config) Validate() error {
	for _, g := range []float64{c.Control.Kp, c.Control.Ki, c.Control.Kd} {
		if math.IsNaN(g) || math.IsInf(g, 0) {
			return errors.Wrapf(ErrInvalidGains, "kp=%v ki=%v kd=%v", c.Control.Kp, c.Control.Ki, c.Control.Kd)
		}
	}
	if !(c.Control.Dt > 0) || math.IsInf(c.Control.Dt, 0) {
		return errors.Wrapf(ErrInvalidInterval, "dt=%v", c.Control.Dt)
	}

	period := c.PWM.Period()
	if period == 0 {
		return errors.Wrapf(ErrInvalidPWM, "clock %s / frequency %s does not fit the period register", c.PWM.Clock, c.PWM.Frequency)
	}
	if c.PWM.DeadTime >= period {
		return errors.Wrapf(ErrInvalidPWM, "dead time %d must be below the period %d", c.PWM.DeadTime, period)
	}

	if c.Encoder.PulsesPerRev == 0 || c.Encoder.CountsPerPulse == 0 || !(c.Encoder.GearRatio > 0) {
		return errors.Wrapf(ErrInvalidEncoder, "%d pulses x %d counts, gear %v",
			c.Encoder.PulsesPerRev, c.Encoder.CountsPerPulse, c.Encoder.GearRatio)
	}

	m := c.Motor
	if !(m.Resistance > 0 && m.Inductance > 0 && m.Inertia > 0 && m.TorqueConst > 0 && m.GearRatio > 0 && m.Supply > 0) {
		return errors.Wrap(ErrInvalidSim, "motor resistance, inductance, inertia, torque constant, gear ratio and supply must be positive")
	}
	if !(c.Sim.Duration > 0) {
		return errors.Wrapf(ErrInvalidSim, "duration=%v", c.Sim.Duration)
	}
	if c.Sim.Substeps < 1 {
		return errors.Wrapf(ErrInvalidSim, "substeps=%d", c.Sim.Substeps)
	}
	switch c.Sim.Direction {
	case "forward", "reverse":
	default:
		return errors.Wrapf(ErrInvalidSim, "direction %q", c.Sim.Direction)
	}
	switch c.Sim.Mode {
	case "manual", "man", "auto", "automatic":
	default:
		return errors.Wrapf(ErrInvalidSim, "mode %q", c.Sim.Mode)
	}
	return nil
}
