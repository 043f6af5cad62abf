package sim_test

import (
	"context"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/dcmotor/internal/command"
	"github.com/san-kum/dcmotor/internal/control"
	"github.com/san-kum/dcmotor/internal/encoder"
	"github.com/san-kum/dcmotor/internal/integrators"
	"github.com/san-kum/dcmotor/internal/loop"
	"github.com/san-kum/dcmotor/internal/plant"
	"github.com/san-kum/dcmotor/internal/sim"
)

type hookFunc func(t float64, p *command.Panel)

func (f hookFunc) Before(t float64, p *command.Panel) { f(t, p) }

type countMetric struct{ n int }

func (c *countMetric) Name() string          { return "count" }
func (c *countMetric) Observe(s loop.Sample) { c.n++ }
func (c *countMetric) Value() float64        { return float64(c.n) }
func (c *countMetric) Reset()                { c.n = 0 }

func baseConfig() sim.Config {
	return sim.Config{
		Control: loop.Config{
			Gains:     control.Gains{Kp: 0.005},
			Dt:        0.15,
			DeadTime:  50,
			Estimator: encoder.Default(),
		},
		Command:  command.DefaultConfig(),
		Period:   2000,
		Supply:   12,
		Duration: 15,
		Substeps: 50,
		Setpoint: 100,
		Forward:  true,
	}
}

func newSim(name string) *sim.Simulator {
	integ, err := integrators.New(name)
	Expect(err).NotTo(HaveOccurred())
	return sim.New(plant.NewMotor(), integ)
}

func last(xs []float64) float64 { return xs[len(xs)-1] }

var _ = Describe("Simulator", func() {
	var cfg sim.Config

	BeforeEach(func() {
		cfg = baseConfig()
	})

	DescribeTable("regulates to the setpoint",
		func(integrator string) {
			res, err := newSim(integrator).Run(context.Background(), cfg)
			Expect(err).NotTo(HaveOccurred())

			final := res.Samples[len(res.Samples)-1]
			Expect(final.ProcessVariable).To(BeNumerically("~", 100, 3))
			Expect(last(res.TrueRPM)).To(BeNumerically("~", 100, 3))
			Expect(final.Duty).To(BeNumerically(">", 0))
			Expect(final.Duty).To(BeNumerically("<", 0.975))
		},
		Entry("euler", "euler"),
		Entry("rk4", "rk4"),
		Entry("rk45", "rk45"),
	)

	It("takes one sample per control interval", func() {
		cfg.Duration = 1.5
		res, err := newSim("rk4").Run(context.Background(), cfg)
		Expect(err).NotTo(HaveOccurred())

		Expect(res.StepsTaken).To(Equal(10))
		Expect(res.Samples).To(HaveLen(10))
		Expect(res.TrueRPM).To(HaveLen(10))
		Expect(res.Current).To(HaveLen(10))
		Expect(res.Stats).To(Equal(loop.Stats{Cycles: 10}))
		Expect(res.Samples[0].Time).To(BeNumerically("~", 0.15, 1e-12))
		Expect(res.Samples[9].Time).To(BeNumerically("~", 1.5, 1e-12))
	})

	It("reports speed magnitude while the shaft turns backwards", func() {
		cfg.Forward = false
		res, err := newSim("rk4").Run(context.Background(), cfg)
		Expect(err).NotTo(HaveOccurred())

		final := res.Samples[len(res.Samples)-1]
		Expect(final.Forward).To(BeFalse())
		Expect(final.ProcessVariable).To(BeNumerically("~", 100, 3))
		Expect(last(res.TrueRPM)).To(BeNumerically("~", -100, 3))
	})

	It("pins the duty at the dead-time ceiling when the supply is too weak", func() {
		cfg.Supply = 6
		cfg.Setpoint = 180
		res, err := newSim("rk4").Run(context.Background(), cfg)
		Expect(err).NotTo(HaveOccurred())

		final := res.Samples[len(res.Samples)-1]
		Expect(final.Pulse).To(Equal(uint16(1950)))
		Expect(final.Duty).To(Equal(1.0))
		Expect(final.Requested).To(BeNumerically(">", 1))
		Expect(final.DeadTimeLimited).To(BeTrue())
		// the generator holds the ceiling, 1950 of 2000 counts
		Expect(float64(final.Pulse) / float64(cfg.Period)).To(BeNumerically("~", 0.975, 1e-9))
		Expect(final.Limited()).To(BeTrue())
		Expect(final.ProcessVariable).To(BeNumerically("<", 180))
	})

	It("applies hooks through the operator panel", func() {
		s := newSim("rk4")
		s.AddHook(hookFunc(func(t float64, p *command.Panel) {
			if math.Abs(t-6) < 1e-9 {
				p.Set(50)
			}
		}))
		res, err := s.Run(context.Background(), cfg)
		Expect(err).NotTo(HaveOccurred())

		mid := res.Samples[int(5.5/cfg.Control.Dt)]
		Expect(mid.Setpoint).To(Equal(100.0))
		final := res.Samples[len(res.Samples)-1]
		Expect(final.Setpoint).To(Equal(50.0))
		Expect(final.ProcessVariable).To(BeNumerically("~", 50, 3))
	})

	It("scales the analog input in automatic mode", func() {
		cfg.Automatic = true
		cfg.Setpoint = 0
		s := newSim("rk4")
		s.AddHook(hookFunc(func(t float64, p *command.Panel) {
			if t == 0 {
				Expect(p.Analog(cfg.Command.FullScale / 2)).To(BeTrue())
			}
		}))
		res, err := s.Run(context.Background(), cfg)
		Expect(err).NotTo(HaveOccurred())

		final := res.Samples[len(res.Samples)-1]
		Expect(final.Setpoint).To(BeNumerically("~", 90, 1e-6))
		Expect(final.ProcessVariable).To(BeNumerically("~", 90, 3))
	})

	It("feeds every sample to metrics and observers", func() {
		m := &countMetric{}
		var seen int
		s := newSim("euler")
		s.AddMetric(m)
		s.AddObserver(loop.ObserverFunc(func(loop.Sample) { seen++ }))

		cfg.Duration = 3
		res, err := s.Run(context.Background(), cfg)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Metrics).To(HaveKeyWithValue("count", 20.0))
		Expect(seen).To(Equal(20))
	})

	DescribeTable("rejects invalid configs",
		func(mutate func(*sim.Config)) {
			mutate(&cfg)
			res, err := newSim("rk4").Run(context.Background(), cfg)
			Expect(err).To(MatchError(sim.ErrInvalidConfig))
			Expect(res).To(BeNil())
		},
		Entry("zero interval", func(c *sim.Config) { c.Control.Dt = 0 }),
		Entry("negative duration", func(c *sim.Config) { c.Duration = -1 }),
		Entry("zero period", func(c *sim.Config) { c.Period = 0 }),
		Entry("no supply", func(c *sim.Config) { c.Supply = 0 }),
		Entry("no gear ratio", func(c *sim.Config) { c.Control.Estimator = encoder.NewEstimator(7, 4, 0) }),
	)

	It("returns the partial result when cancelled", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		res, err := newSim("rk4").Run(ctx, cfg)
		Expect(err).To(MatchError(context.Canceled))
		Expect(res).NotTo(BeNil())
		Expect(res.Samples).To(BeEmpty())
	})

	It("runs independent jobs concurrently", func() {
		slow := baseConfig()
		slow.Setpoint = 60
		jobs := []sim.Job{
			{Name: "fast", Simulator: newSim("rk4"), Config: cfg},
			{Name: "slow", Simulator: newSim("rk4"), Config: slow},
		}

		results, err := sim.RunAll(context.Background(), jobs)
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(2))
		Expect(last(results[0].TrueRPM)).To(BeNumerically("~", 100, 3))
		Expect(last(results[1].TrueRPM)).To(BeNumerically("~", 60, 3))
	})

	It("names the failing job", func() {
		bad := baseConfig()
		bad.Period = 0
		jobs := []sim.Job{
			{Name: "ok", Simulator: newSim("rk4"), Config: cfg},
			{Name: "bad", Simulator: newSim("rk4"), Config: bad},
		}
		_, err := sim.RunAll(context.Background(), jobs)
		Expect(err).To(MatchError(sim.ErrInvalidConfig))
		Expect(err.Error()).To(ContainSubstring(`"bad"`))
	})
})
