package metrics

import (
	"math"

	"github.com/san-kum/dcmotor/internal/loop"
)

// IAE integrates |setpoint - pv| over time.
type IAE struct {
	sum  float64
	last float64
}

func NewIAE() *IAE { return &IAE{} }

func (m *IAE) Name() string { return "iae" }

func (m *IAE) Observe(s loop.Sample) {
	dt := s.Time - m.last
	m.last = s.Time
	if dt <= 0 {
		return
	}
	m.sum += math.Abs(s.Setpoint-s.ProcessVariable) * dt
}

func (m *IAE) Value() float64 { return m.sum }

func (m *IAE) Reset() {
	m.sum = 0
	m.last = 0
}

// Overshoot is the worst excursion past the setpoint, in percent of the
// setpoint. Each setpoint change starts a new segment; a segment only
// counts once the speed has crossed its target.
type Overshoot struct {
	setpoint float64
	side     float64 // +1 approaching from below, -1 from above
	crossed  bool
	peak     float64
	started  bool
}

func NewOvershoot() *Overshoot { return &Overshoot{} }

func (m *Overshoot) Name() string { return "overshoot_pct" }

func (m *Overshoot) Observe(s loop.Sample) {
	if !m.started || s.Setpoint != m.setpoint {
		m.started = true
		m.setpoint = s.Setpoint
		m.crossed = false
		m.side = 1
		if s.ProcessVariable > s.Setpoint {
			m.side = -1
		}
	}
	if m.setpoint <= 0 {
		return
	}

	past := (s.ProcessVariable - m.setpoint) * m.side
	if past >= 0 {
		m.crossed = true
	}
	if m.crossed {
		m.peak = math.Max(m.peak, past/m.setpoint*100)
	}
}

func (m *Overshoot) Value() float64 { return m.peak }

func (m *Overshoot) Reset() { *m = Overshoot{} }

// DefaultBand is the settling band as a fraction of the setpoint.
const DefaultBand = 0.02

// MinBand keeps the band wider than the encoder resolution at low speed.
const MinBand = 1.0

// SettlingTime is the time from the last setpoint change until the speed
// last left the settling band. It is 0 when the speed never left it.
type SettlingTime struct {
	band       float64
	setpoint   float64
	changedAt  float64
	lastOutside float64
	started    bool
}

func NewSettlingTime(band float64) *SettlingTime {
	return &SettlingTime{band: band}
}

func (m *SettlingTime) Name() string { return "settling_time" }

func (m *SettlingTime) Observe(s loop.Sample) {
	if !m.started || s.Setpoint != m.setpoint {
		m.started = true
		m.setpoint = s.Setpoint
		m.changedAt = s.Time
		m.lastOutside = s.Time
	}

	width := math.Max(m.band*math.Abs(m.setpoint), MinBand)
	if math.Abs(s.ProcessVariable-m.setpoint) > width {
		m.lastOutside = s.Time
	}
}

func (m *SettlingTime) Value() float64 {
	if !m.started {
		return 0
	}
	return m.lastOutside - m.changedAt
}

func (m *SettlingTime) Reset() {
	*m = SettlingTime{band: m.band}
}
