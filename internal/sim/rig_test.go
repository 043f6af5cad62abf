package sim_test

import (
	"context"
	"errors"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/dcmotor/internal/encoder"
	"github.com/san-kum/dcmotor/internal/hal"
	"github.com/san-kum/dcmotor/internal/integrators"
	"github.com/san-kum/dcmotor/internal/sim"
)

// spinner turns its shaft at a fixed rate regardless of drive.
type spinner struct{ omega float64 }

func (s *spinner) Derivative(x sim.State, u sim.Control, t float64) sim.State {
	return sim.State{s.omega}
}
func (s *spinner) StateDim() int                  { return 1 }
func (s *spinner) ControlDim() int                { return 1 }
func (s *spinner) Initial() sim.State             { return sim.State{0} }
func (s *spinner) OutputRPM(x sim.State) float64  { return s.omega * 60 / (2 * math.Pi) / 20 }
func (s *spinner) ShaftAngle(x sim.State) float64 { return x[0] }

type broken struct{ spinner }

func (b *broken) Derivative(x sim.State, u sim.Control, t float64) sim.State {
	return sim.State{math.NaN()}
}

var _ = Describe("Rig", func() {
	var cfg sim.Config

	BeforeEach(func() {
		cfg = baseConfig()
	})

	newRig := func(p sim.Plant) *sim.Rig {
		return sim.NewRig(p, integrators.NewEuler(), hal.NewSimPWM(2000), encoder.Default(), cfg)
	}

	DescribeTable("counts edges in either direction, carrying fractions",
		func(omega float64) {
			// 1.1 rev/s at 28 counts/rev is 4.62 edges per 0.15 s
			rig := newRig(&spinner{omega: omega})
			var total uint32
			for i := 0; i < 5; i++ {
				n, ok := rig.Velocity()
				Expect(ok).To(BeTrue())
				Expect(n).To(BeNumerically(">=", 4))
				Expect(n).To(BeNumerically("<=", 5))
				total += n
			}
			Expect(total).To(Equal(uint32(23)))
			Expect(rig.Time()).To(BeNumerically("~", 0.75, 1e-12))
		},
		Entry("forward", 2*math.Pi*1.1),
		Entry("reverse", -2*math.Pi*1.1),
	)

	It("stops counting after the plant diverges", func() {
		rig := newRig(&broken{})
		_, ok := rig.Velocity()
		Expect(ok).To(BeFalse())
		Expect(errors.Is(rig.Err(), sim.ErrInvalidState)).To(BeTrue())

		_, ok = rig.Velocity()
		Expect(ok).To(BeFalse())
		Expect(rig.Time()).To(BeZero())
	})

	It("surfaces plant failures from Run", func() {
		res, err := sim.New(&broken{}, integrators.NewEuler()).Run(context.Background(), cfg)
		Expect(err).To(MatchError(sim.ErrInvalidState))
		Expect(res.StepsTaken).To(BeZero())
	})

	It("starts a bench at rest with the configured command state", func() {
		cfg.Forward = false
		cfg.Automatic = true
		b := sim.NewBench(&spinner{}, integrators.NewRK4(), cfg)

		Expect(b.Loop.Direction()).To(BeFalse())
		Expect(b.Loop.Setpoint()).To(Equal(100.0))
		Expect(b.PWM.Duty()).To(BeZero())
		Expect(b.Rig.OutputRPM()).To(BeZero())
		Expect(b.Rig.Current()).To(BeZero())
	})
})
