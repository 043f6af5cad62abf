package loop

// Sample is what one control cycle saw and did.
type Sample struct {
	Cycle           uint64
	Time            float64 // seconds since start, cycle × dt
	Setpoint        float64
	ProcessVariable float64
	Error           float64
	Adjustment      float64
	Requested       float64 // duty before clamping
	Duty            float64 // duty after clamping
	Pulse           uint16
	Forward         bool
	Enabled         bool
	Saturated       bool
	DeadTimeLimited bool
}

// Limited reports whether the actuator had to clamp this cycle.
func (s Sample) Limited() bool { return s.Saturated || s.DeadTimeLimited }

// Observer is notified at the end of every cycle, from the cycle itself.
type Observer interface {
	OnCycle(s Sample)
}

type ObserverFunc func(Sample)

func (f ObserverFunc) OnCycle(s Sample) { f(s) }
