package hal

import (
	"sync"
	"sync/atomic"
)

// SimPWM is an in-memory PWM generator. Commit swaps the whole register
// snapshot under a lock, so readers always see a consistent Output.
type SimPWM struct {
	mu      sync.RWMutex
	period  uint16
	out     Output
	commits int
}

// NewSimPWM returns a generator with the given period register and both
// outputs inactive.
func NewSimPWM(period uint16) *SimPWM {
	return &SimPWM{
		period: period,
		out:    Output{GenA: ActionInactive, GenB: ActionInactive},
	}
}

func (p *SimPWM) Period() uint16 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.period
}

func (p *SimPWM) Pulse() uint16 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.out.Pulse
}

func (p *SimPWM) Commit(out Output) {
	p.mu.Lock()
	p.out = out
	p.commits++
	p.mu.Unlock()
}

// SetPulse overwrites the compare register without touching the actions,
// the way other firmware code may poke the register directly.
func (p *SimPWM) SetPulse(pulse uint16) {
	p.mu.Lock()
	p.out.Pulse = pulse
	p.mu.Unlock()
}

// Output returns the committed register snapshot.
func (p *SimPWM) Output() Output {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.out
}

// Commits returns how many times the generator has been reconfigured.
func (p *SimPWM) Commits() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.commits
}

// Duty returns the signed effective duty: positive when output A carries the
// waveform, negative when output B does.
func (p *SimPWM) Duty() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.period == 0 {
		return 0
	}
	d := float64(p.out.Pulse) / float64(p.period)
	switch {
	case p.out.GenA == ActionPWM && p.out.GenB != ActionPWM:
		return d
	case p.out.GenB == ActionPWM && p.out.GenA != ActionPWM:
		return -d
	default:
		return 0
	}
}

// SimQEI is an in-memory quadrature encoder interface. The velocity register
// is unprimed until the first Latch.
type SimQEI struct {
	count  atomic.Uint32
	primed atomic.Bool
	masked atomic.Bool
}

func NewSimQEI() *SimQEI {
	return &SimQEI{}
}

// Latch publishes the edge count of a completed interval.
func (q *SimQEI) Latch(count uint32) {
	q.count.Store(count)
	q.primed.Store(true)
}

func (q *SimQEI) Velocity() (uint32, bool) {
	if !q.primed.Load() {
		return 0, false
	}
	return q.count.Load(), true
}

// Mask disables the interval interrupt.
func (q *SimQEI) Mask() { q.masked.Store(true) }

// Unmask re-enables the interval interrupt.
func (q *SimQEI) Unmask() { q.masked.Store(false) }

// Masked reports whether the interval interrupt is disabled.
func (q *SimQEI) Masked() bool { return q.masked.Load() }
