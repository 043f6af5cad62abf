package metrics

import (
	"math"

	"github.com/san-kum/dcmotor/internal/loop"
)

// ControlEffort is the mean applied duty magnitude.
type ControlEffort struct {
	name    string
	sum     float64
	samples int
}

func NewControlEffort() *ControlEffort {
	return &ControlEffort{
		name: "control_effort",
	}
}

func (c *ControlEffort) Name() string {
	return c.name
}

func (c *ControlEffort) Observe(s loop.Sample) {
	c.sum += math.Abs(s.Duty)
	c.samples++
}

func (c *ControlEffort) Value() float64 {
	if c.samples == 0 {
		return 0
	}
	return c.sum / float64(c.samples)
}

func (c *ControlEffort) Reset() {
	c.sum = 0
	c.samples = 0
}

// Saturation is the fraction of cycles where the actuator clamped the
// requested duty.
type Saturation struct {
	limited int
	samples int
}

func NewSaturation() *Saturation { return &Saturation{} }

func (s *Saturation) Name() string { return "saturation" }

func (s *Saturation) Observe(smp loop.Sample) {
	s.samples++
	if smp.Limited() {
		s.limited++
	}
}

func (s *Saturation) Value() float64 {
	if s.samples == 0 {
		return 0
	}
	return float64(s.limited) / float64(s.samples)
}

func (s *Saturation) Reset() {
	s.limited = 0
	s.samples = 0
}
