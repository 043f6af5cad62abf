package loop_test

import (
	"context"
	"math"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/dcmotor/internal/control"
	"github.com/san-kum/dcmotor/internal/encoder"
	"github.com/san-kum/dcmotor/internal/hal"
	"github.com/san-kum/dcmotor/internal/loop"
)

const dt = 0.15

var _ = Describe("Loop", func() {
	var (
		gen     *hal.SimPWM
		qei     *hal.SimQEI
		est     *encoder.Estimator
		l       *loop.Loop
		samples []loop.Sample
	)

	record := loop.ObserverFunc(func(s loop.Sample) { samples = append(samples, s) })

	newLoop := func(gains control.Gains, interval float64) *loop.Loop {
		return loop.New(loop.Config{
			Gains:     gains,
			Dt:        interval,
			DeadTime:  50,
			Estimator: est,
		}, gen, qei, loop.WithObserver(record))
	}

	BeforeEach(func() {
		gen = hal.NewSimPWM(2000)
		qei = hal.NewSimQEI()
		est = encoder.Default()
		samples = nil
	})

	Describe("construction", func() {
		It("starts idle with the motor off and forward", func() {
			l = newLoop(control.Gains{Kp: 0.005}, dt)

			Expect(l.Phase()).To(Equal(loop.Idle))
			Expect(l.DutyCycle()).To(BeZero())
			Expect(l.Direction()).To(BeTrue())
			Expect(gen.Output().GenA).To(Equal(hal.ActionPWM))
			Expect(gen.Output().GenB).To(Equal(hal.ActionInactive))
		})
	})

	Describe("one control cycle", func() {
		BeforeEach(func() {
			l = newLoop(control.Gains{Kp: 0.005}, dt)
		})

		It("raises duty from 0.40 to 0.50 for a 20 rpm shortfall", func() {
			gen.Commit(hal.Output{GenA: hal.ActionPWM, GenB: hal.ActionInactive, Pulse: 800})
			qei.Latch(est.Counts(80, dt))
			l.SetSetpoint(100)

			l.OnTimerTick()

			Expect(l.ProcessVariable()).To(BeNumerically("~", 80, 1e-9))
			Expect(samples).To(HaveLen(1))
			Expect(samples[0].Adjustment).To(BeNumerically("~", 0.1, 1e-9))
			Expect(samples[0].Duty).To(BeNumerically("~", 0.5, 1e-9))
			Expect(gen.Pulse()).To(Equal(uint16(1000)))
			Expect(l.DutyCycle()).To(BeNumerically("~", 0.5, 1e-9))
		})

		It("substitutes zero speed while the encoder is not primed", func() {
			l.SetSetpoint(40)

			l.OnTimerTick()

			Expect(l.ProcessVariable()).To(BeZero())
			Expect(samples).To(HaveLen(1))
			Expect(samples[0].Enabled).To(BeTrue())
			Expect(math.IsNaN(samples[0].ProcessVariable)).To(BeFalse())
			Expect(samples[0].Duty).To(BeNumerically("~", 0.2, 1e-9))
		})

		It("holds the duty at the dead-time boundary when saturated", func() {
			l.SetSetpoint(10000)
			qei.Latch(0)

			for i := 0; i < 3; i++ {
				l.OnTimerTick()
			}

			Expect(gen.Pulse()).To(Equal(uint16(1950)))
			Expect(samples[2].Saturated).To(BeTrue())
			Expect(samples[2].DeadTimeLimited).To(BeTrue())
			Expect(l.DutyCycle()).To(BeNumerically("~", 0.975, 1e-9))
		})

		It("applies a direction change with the next commit", func() {
			l.SetSetpoint(50)
			l.SetDirection(false)
			Expect(gen.Output().GenA).To(Equal(hal.ActionPWM))

			l.OnTimerTick()

			out := gen.Output()
			Expect(out.GenA).To(Equal(hal.ActionInactive))
			Expect(out.GenB).To(Equal(hal.ActionPWM))
			Expect(out.Driving()).To(Equal(1))
			Expect(samples[0].Forward).To(BeFalse())
		})

		It("adjusts relative to the duty read back from hardware", func() {
			l.SetSetpoint(0)
			qei.Latch(0)
			l.OnTimerTick()
			Expect(l.DutyCycle()).To(BeZero())

			gen.SetPulse(600)
			l.OnTimerTick()
			Expect(samples[1].Duty).To(BeNumerically("~", 0.3, 1e-9))
		})

		It("ignores non-finite setpoints", func() {
			l.SetSetpoint(75)
			l.SetSetpoint(math.NaN())
			l.SetSetpoint(math.Inf(1))

			Expect(l.Setpoint()).To(Equal(75.0))
		})
	})

	Describe("re-entry", func() {
		It("drops a tick raised from inside a running cycle", func() {
			var phases []loop.Phase
			var masked bool

			l = loop.New(loop.Config{Gains: control.Gains{Kp: 0.005}, Dt: dt, DeadTime: 50}, gen, qei,
				loop.WithObserver(loop.ObserverFunc(func(loop.Sample) {
					phases = append(phases, l.Phase())
					masked = qei.Masked()
					l.OnTimerTick()
				})))

			l.OnTimerTick()

			Expect(phases).To(Equal([]loop.Phase{loop.Running}))
			Expect(masked).To(BeTrue())
			Expect(qei.Masked()).To(BeFalse())
			Expect(l.Phase()).To(Equal(loop.Idle))
			Expect(l.Stats()).To(Equal(loop.Stats{Cycles: 1, Overruns: 1}))
		})
	})

	Describe("disabled interval", func() {
		It("passes through without touching the generator", func() {
			l = newLoop(control.Gains{Kp: 1, Ki: 1, Kd: 1}, 0)
			commits := gen.Commits()
			l.SetSetpoint(100)
			qei.Latch(500)

			l.OnTimerTick()
			l.OnTimerTick()

			Expect(gen.Commits()).To(Equal(commits))
			Expect(samples).To(HaveLen(2))
			Expect(samples[1].Enabled).To(BeFalse())
			Expect(samples[1].Setpoint).To(Equal(100.0))
			Expect(l.ProcessVariable()).To(BeZero())
			Expect(l.State().Integral()).To(BeZero())
		})

		It("refuses to run a timer", func() {
			l = newLoop(control.Gains{}, -1)
			Expect(l.Run(context.Background())).To(MatchError(loop.ErrDisabled))
		})
	})

	Describe("ResetControlState", func() {
		It("is idempotent", func() {
			l = newLoop(control.Gains{Kp: 0.005, Ki: 0.01}, dt)
			l.SetSetpoint(60)
			l.OnTimerTick()
			Expect(l.State().Integral()).NotTo(BeZero())

			l.ResetControlState()
			Expect(l.State().Integral()).To(BeZero())
			Expect(l.State().PreviousError()).To(BeZero())

			l.ResetControlState()
			Expect(l.State().Integral()).To(BeZero())
			Expect(l.State().PreviousError()).To(BeZero())
			Expect(l.Phase()).To(Equal(loop.Idle))
		})
	})

	Describe("concurrent collaborators", func() {
		It("keeps cycles whole while setpoint, direction and resets arrive from another goroutine", func() {
			const ticks = 2000
			l = newLoop(control.Gains{Kp: 0.005, Ki: 0.001, Kd: 0.0001}, dt)
			l.SetSetpoint(100)
			qei.Latch(300)

			var outsideCycle atomic.Int64
			l.AddObserver(loop.ObserverFunc(func(loop.Sample) {
				if l.Phase() != loop.Running {
					outsideCycle.Add(1)
				}
			}))

			stop := make(chan struct{})
			var resets atomic.Uint64
			var wg sync.WaitGroup
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; ; i++ {
					select {
					case <-stop:
						return
					default:
					}
					if i%2 == 0 {
						l.SetSetpoint(40)
					} else {
						l.SetSetpoint(140)
					}
					l.SetDirection(i%3 != 0)
					if i%5 == 0 {
						l.ResetControlState()
						resets.Add(1)
					}
					runtime.Gosched()
				}
			}()

			for i := 0; i < ticks; i++ {
				l.OnTimerTick()
			}
			close(stop)
			wg.Wait()

			st := l.Stats()
			Expect(st.Cycles + st.Overruns).To(Equal(uint64(ticks)))
			Expect(st.Overruns).To(BeNumerically("<=", resets.Load()))
			Expect(outsideCycle.Load()).To(BeZero())
			Expect(l.Phase()).To(Equal(loop.Idle))

			Expect(samples).To(HaveLen(int(st.Cycles)))
			for _, s := range samples {
				Expect(s.Setpoint).To(BeElementOf(100.0, 40.0, 140.0))
				Expect(math.IsNaN(s.Duty)).To(BeFalse())
				Expect(s.Duty).To(BeNumerically(">=", 0))
				Expect(s.Duty).To(BeNumerically("<=", 1))
			}
		})
	})

	Describe("Phase", func() {
		It("names each phase", func() {
			Expect(loop.Idle.String()).To(Equal("idle"))
			Expect(loop.Running.String()).To(Equal("running"))
			Expect(loop.Phase(42).String()).To(Equal("unknown"))
		})
	})

	Describe("Run", func() {
		It("ticks until the context is cancelled", func() {
			gen = hal.NewSimPWM(2000)
			l = loop.New(loop.Config{Gains: control.Gains{Kp: 0.005}, Dt: 0.005, DeadTime: 50}, gen, hal.NewSimQEI())
			ctx, cancel := context.WithCancel(context.Background())

			done := make(chan error, 1)
			go func() { done <- l.Run(ctx) }()

			Eventually(func() uint64 { return l.Stats().Cycles }, time.Second, 5*time.Millisecond).
				Should(BeNumerically(">=", 3))
			cancel()
			Eventually(done, time.Second).Should(Receive(MatchError(context.Canceled)))
		})
	})
})
