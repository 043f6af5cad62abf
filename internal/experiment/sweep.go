package experiment

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/san-kum/dcmotor/internal/config"
	"github.com/san-kum/dcmotor/internal/sim"
)

var ErrUnknownParam = errors.New("experiment: unknown parameter")

var params = map[string]func(*config.Config, float64){
	"kp":     func(c *config.Config, v float64) { c.Control.Kp = v },
	"ki":     func(c *config.Config, v float64) { c.Control.Ki = v },
	"kd":     func(c *config.Config, v float64) { c.Control.Kd = v },
	"dt":     func(c *config.Config, v float64) { c.Control.Dt = v },
	"load":   func(c *config.Config, v float64) { c.Motor.Load = v },
	"supply": func(c *config.Config, v float64) { c.Motor.Supply = v },
}

// Params lists the sweepable parameters.
func Params() []string {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SetParam writes one named parameter.
func SetParam(cfg *config.Config, name string, value float64) error {
	set, ok := params[name]
	if !ok {
		return errors.Wrapf(ErrUnknownParam, "%q", name)
	}
	set(cfg, value)
	return nil
}

// Sweep runs the base config across evenly spaced values of one parameter.
type Sweep struct {
	Param string
	Min   float64
	Max   float64
	Steps int
}

type SweepResult struct {
	Value   float64
	FinalPV float64
	Metrics map[string]float64
}

func (s *Sweep) Run(ctx context.Context, base *config.Config) ([]SweepResult, error) {
	if s.Steps < 1 {
		return nil, errors.Errorf("sweep needs at least one step, got %d", s.Steps)
	}
	step := 0.0
	if s.Steps > 1 {
		step = (s.Max - s.Min) / float64(s.Steps-1)
	}

	values := make([]float64, s.Steps)
	jobs := make([]sim.Job, s.Steps)
	for i := range values {
		values[i] = s.Min + float64(i)*step
		cfg := base.Clone()
		if err := SetParam(cfg, s.Param, values[i]); err != nil {
			return nil, err
		}
		exp := New(cfg)
		if err := exp.Setup(); err != nil {
			return nil, errors.Wrapf(err, "%s=%g", s.Param, values[i])
		}
		jobs[i] = exp.Job(fmt.Sprintf("%s=%g", s.Param, values[i]))
	}

	results, err := sim.RunAll(ctx, jobs)
	if err != nil {
		return nil, err
	}

	out := make([]SweepResult, len(results))
	for i, r := range results {
		out[i] = SweepResult{Value: values[i], FinalPV: finalPV(r), Metrics: r.Metrics}
	}
	glog.Infof("experiment: swept %s over %d values", s.Param, s.Steps)
	return out, nil
}

// MonteCarlo perturbs the motor parameters of the base config to check
// that a tuning holds up across units.
type MonteCarlo struct {
	Trials       int
	Perturbation float64 // relative, e.g. 0.1 for ±10%
	Seed         int64
	// Tolerance is the largest steady-state error, in RPM, that still
	// counts as settled.
	Tolerance float64
}

type Trial struct {
	ID      int
	Motor   config.MotorConfig
	Settled bool
	Metrics map[string]float64
}

func (mc *MonteCarlo) Run(ctx context.Context, base *config.Config) ([]Trial, error) {
	rng := rand.New(rand.NewSource(mc.Seed))
	if mc.Seed == 0 {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	perturb := func(v float64) float64 {
		return v * (1 + (rng.Float64()-0.5)*2*mc.Perturbation)
	}

	trials := make([]Trial, mc.Trials)
	jobs := make([]sim.Job, mc.Trials)
	for i := range trials {
		cfg := base.Clone()
		m := &cfg.Motor
		m.Resistance = perturb(m.Resistance)
		m.Inductance = perturb(m.Inductance)
		m.TorqueConst = perturb(m.TorqueConst)
		m.BackEMF = perturb(m.BackEMF)
		m.Inertia = perturb(m.Inertia)
		m.Damping = perturb(m.Damping)

		exp := New(cfg)
		if err := exp.Setup(); err != nil {
			return nil, errors.Wrapf(err, "trial %d", i)
		}
		trials[i] = Trial{ID: i, Motor: cfg.Motor}
		jobs[i] = exp.Job(fmt.Sprintf("trial-%d", i))
	}

	results, err := sim.RunAll(ctx, jobs)
	if err != nil {
		return nil, err
	}
	for i, r := range results {
		trials[i].Metrics = r.Metrics
		sse := r.Metrics["steady_state_error"]
		trials[i].Settled = sse <= mc.Tolerance && sse >= -mc.Tolerance
	}
	return trials, nil
}

func finalPV(r *sim.Result) float64 {
	if len(r.Samples) == 0 {
		return 0
	}
	return r.Samples[len(r.Samples)-1].ProcessVariable
}
