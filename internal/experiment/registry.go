package experiment

import (
	"github.com/san-kum/dcmotor/internal/command"
	"github.com/san-kum/dcmotor/internal/config"
	"github.com/san-kum/dcmotor/internal/control"
	"github.com/san-kum/dcmotor/internal/encoder"
	"github.com/san-kum/dcmotor/internal/loop"
	"github.com/san-kum/dcmotor/internal/plant"
	"github.com/san-kum/dcmotor/internal/sim"
)

// LoopConfig maps the control, encoder and PWM sections onto the loop.
func LoopConfig(cfg *config.Config) loop.Config {
	return loop.Config{
		Gains: control.Gains{
			Kp: cfg.Control.Kp,
			Ki: cfg.Control.Ki,
			Kd: cfg.Control.Kd,
		},
		Dt:       cfg.Control.Dt,
		DeadTime: cfg.PWM.DeadTime,
		Estimator: encoder.NewEstimator(
			cfg.Encoder.PulsesPerRev,
			cfg.Encoder.CountsPerPulse,
			cfg.Encoder.GearRatio,
		),
	}
}

func CommandConfig(cfg *config.Config) command.Config {
	return command.Config{
		MaxRPM:    cfg.Command.MaxRPM,
		SmallStep: cfg.Command.SmallStep,
		LargeStep: cfg.Command.LargeStep,
		LongPress: cfg.Command.LongPress,
		FullScale: cfg.Command.FullScale.ElectricPotential,
	}
}

func Motor(cfg *config.Config) *plant.Motor {
	m := cfg.Motor
	return &plant.Motor{
		R:         m.Resistance,
		L:         m.Inductance,
		Kt:        m.TorqueConst,
		Ke:        m.BackEMF,
		J:         m.Inertia,
		B:         m.Damping,
		Load:      m.Load,
		GearRatio: m.GearRatio,
	}
}

func SimConfig(cfg *config.Config) sim.Config {
	mode, _ := command.ParseMode(cfg.Sim.Mode)
	return sim.Config{
		Control:   LoopConfig(cfg),
		Command:   CommandConfig(cfg),
		Period:    cfg.PWM.Period(),
		Supply:    cfg.Motor.Supply,
		Duration:  cfg.Sim.Duration,
		Substeps:  cfg.Sim.Substeps,
		Setpoint:  cfg.Sim.Setpoint,
		Forward:   cfg.Sim.Direction != "reverse",
		Automatic: mode == command.Automatic,
	}
}
