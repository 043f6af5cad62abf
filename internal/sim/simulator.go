package sim

import (
	"context"
	"math"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/san-kum/dcmotor/internal/encoder"
	"github.com/san-kum/dcmotor/internal/loop"
)

// Simulator runs a bench for a fixed duration as fast as it can, firing
// hooks before each interval and recording every cycle.
type Simulator struct {
	plant      Plant
	integrator Integrator
	metrics    []Metric
	observers  []loop.Observer
	hooks      []Hook
}

func New(plant Plant, integrator Integrator) *Simulator {
	return &Simulator{
		plant:      plant,
		integrator: integrator,
		metrics:    make([]Metric, 0),
		observers:  make([]loop.Observer, 0),
		hooks:      make([]Hook, 0),
	}
}

func (s *Simulator) AddMetric(m Metric)          { s.metrics = append(s.metrics, m) }
func (s *Simulator) AddObserver(o loop.Observer) { s.observers = append(s.observers, o) }
func (s *Simulator) AddHook(h Hook)              { s.hooks = append(s.hooks, h) }

func (s *Simulator) Run(ctx context.Context, cfg Config) (*Result, error) {
	if cfg.Control.Estimator == nil {
		cfg.Control.Estimator = encoder.Default()
	}
	if err := s.validateConfig(cfg); err != nil {
		return nil, err
	}

	dt := cfg.Control.Dt
	steps := int(math.Round(cfg.Duration / dt))
	result := &Result{
		Samples: make([]loop.Sample, 0, steps),
		TrueRPM: make([]float64, 0, steps),
		Current: make([]float64, 0, steps),
		Metrics: make(map[string]float64),
	}

	for _, m := range s.metrics {
		m.Reset()
	}

	bench := NewBench(s.plant, s.integrator, cfg)
	l := bench.Loop

	l.AddObserver(loop.ObserverFunc(func(smp loop.Sample) {
		result.Samples = append(result.Samples, smp)
		result.TrueRPM = append(result.TrueRPM, bench.Rig.OutputRPM())
		result.Current = append(result.Current, bench.Rig.Current())
		for _, m := range s.metrics {
			m.Observe(smp)
		}
	}))
	for _, o := range s.observers {
		l.AddObserver(o)
	}

	for i := 0; i < steps; i++ {
		select {
		case <-ctx.Done():
			result.Stats = l.Stats()
			return result, ctx.Err()
		default:
		}

		t := float64(i) * dt
		for _, h := range s.hooks {
			h.Before(t, bench.Panel)
		}

		l.OnTimerTick()
		if err := bench.Rig.Err(); err != nil {
			result.Stats = l.Stats()
			return result, err
		}
		result.StepsTaken++
	}

	result.Stats = l.Stats()
	for _, m := range s.metrics {
		result.Metrics[m.Name()] = m.Value()
	}
	glog.V(1).Infof("sim: %d intervals, final pv=%.1f rpm, duty=%.3f", result.StepsTaken, l.ProcessVariable(), l.DutyCycle())

	return result, nil
}

func (s *Simulator) validateConfig(cfg Config) error {
	if !(cfg.Control.Dt > 0) {
		return errors.Wrapf(ErrInvalidConfig, "control interval must be positive, got %v", cfg.Control.Dt)
	}
	if !(cfg.Duration > 0) {
		return errors.Wrapf(ErrInvalidConfig, "duration must be positive, got %v", cfg.Duration)
	}
	if cfg.Period == 0 {
		return errors.Wrap(ErrInvalidConfig, "PWM period must be nonzero")
	}
	if !(cfg.Supply > 0) {
		return errors.Wrapf(ErrInvalidConfig, "supply must be positive, got %v", cfg.Supply)
	}
	if cfg.Control.Estimator.CountsPerRev() == 0 || !(cfg.Control.Estimator.GearRatio > 0) {
		return errors.Wrap(ErrInvalidConfig, "encoder calibration must be positive")
	}
	if s.plant == nil || s.integrator == nil {
		return errors.Wrap(ErrInvalidConfig, "plant and integrator are required")
	}
	return nil
}
