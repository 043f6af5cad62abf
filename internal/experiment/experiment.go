// Package experiment assembles simulated runs from a config: plant,
// integrator, metrics and an optional operator scenario.
package experiment

import (
	"context"

	"github.com/pkg/errors"

	"github.com/san-kum/dcmotor/internal/config"
	"github.com/san-kum/dcmotor/internal/integrators"
	"github.com/san-kum/dcmotor/internal/metrics"
	"github.com/san-kum/dcmotor/internal/scenario"
	"github.com/san-kum/dcmotor/internal/sim"
)

type Experiment struct {
	cfg       *config.Config
	scenario  *scenario.Scenario
	player    *scenario.Player
	simulator *sim.Simulator
}

func New(cfg *config.Config) *Experiment {
	return &Experiment{cfg: cfg.Clone()}
}

// SetScenario replaces any scenario named in the config. A scenario with
// its own duration overrides the configured one.
func (e *Experiment) SetScenario(s *scenario.Scenario) {
	e.scenario = s
}

// Setup validates the config and builds the simulator. With no metric
// names every metric is attached.
func (e *Experiment) Setup(metricNames ...string) error {
	if err := e.cfg.Validate(); err != nil {
		return err
	}

	integ, err := integrators.New(e.cfg.Sim.Integrator)
	if err != nil {
		return err
	}
	ms, err := metrics.New(metricNames...)
	if err != nil {
		return err
	}

	if e.scenario == nil && e.cfg.Sim.Scenario != "" {
		s, err := scenario.Load(e.cfg.Sim.Scenario)
		if err != nil {
			return err
		}
		e.scenario = s
	}

	e.simulator = sim.New(Motor(e.cfg), integ)
	for _, m := range ms {
		e.simulator.AddMetric(m)
	}
	if e.scenario != nil {
		if e.scenario.Duration > 0 {
			e.cfg.Sim.Duration = e.scenario.Duration
		}
		e.player = scenario.NewPlayer(e.scenario)
		e.simulator.AddHook(e.player)
	}
	return nil
}

func (e *Experiment) Run(ctx context.Context) (*sim.Result, error) {
	if e.simulator == nil {
		return nil, errors.New("experiment not setup")
	}
	return e.simulator.Run(ctx, SimConfig(e.cfg))
}

// Job packages the experiment for sim.RunAll.
func (e *Experiment) Job(name string) sim.Job {
	return sim.Job{Name: name, Simulator: e.simulator, Config: SimConfig(e.cfg)}
}

// Config returns the effective config, after any scenario override.
func (e *Experiment) Config() *config.Config { return e.cfg }

// Simulator returns the underlying simulator for adding observers.
func (e *Experiment) Simulator() *sim.Simulator {
	return e.simulator
}

// Player returns the scenario player, or nil without a scenario.
func (e *Experiment) Player() *scenario.Player { return e.player }
