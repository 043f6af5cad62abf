// Package encoder converts quadrature encoder interval counts to output
// shaft speed.
package encoder

import (
	"math"

	"github.com/san-kum/dcmotor/internal/hal"
	"github.com/san-kum/dcmotor/internal/mathx"
)

const (
	DefaultPulsesPerRev   = 7
	DefaultCountsPerPulse = 4 // rising and falling edges of both phases
	DefaultGearRatio      = 20.0
)

// Estimator maps counts accumulated over one interval to output shaft RPM.
type Estimator struct {
	PulsesPerRev   uint32
	CountsPerPulse uint32
	GearRatio      float64
}

func NewEstimator(pulsesPerRev, countsPerPulse uint32, gearRatio float64) *Estimator {
	return &Estimator{
		PulsesPerRev:   pulsesPerRev,
		CountsPerPulse: countsPerPulse,
		GearRatio:      gearRatio,
	}
}

func Default() *Estimator {
	return NewEstimator(DefaultPulsesPerRev, DefaultCountsPerPulse, DefaultGearRatio)
}

// CountsPerRev returns counts per motor shaft revolution.
func (e *Estimator) CountsPerRev() float64 {
	return float64(e.PulsesPerRev) * float64(e.CountsPerPulse)
}

// RPM returns the output shaft speed for count edges seen over dt seconds.
// A non-positive dt or a degenerate calibration yields 0.
func (e *Estimator) RPM(count uint32, dt float64) float64 {
	cpr := e.CountsPerRev()
	if dt <= 0 || cpr == 0 || e.GearRatio <= 0 {
		return 0
	}
	rpm := (float64(count) / dt) / cpr * 60.0 / e.GearRatio
	if !mathx.Finite(rpm) {
		return 0
	}
	return rpm
}

// Estimate reads the counter and returns output shaft RPM, or 0 while the
// counter is not primed.
func (e *Estimator) Estimate(q hal.QuadratureCounter, dt float64) float64 {
	if q == nil {
		return 0
	}
	count, ok := q.Velocity()
	if !ok {
		return 0
	}
	return e.RPM(count, dt)
}

// Counts is the inverse of RPM: the edge count a shaft turning at rpm
// produces over dt seconds. Direction is not encoded.
func (e *Estimator) Counts(rpm, dt float64) uint32 {
	if dt <= 0 || !mathx.Finite(rpm) {
		return 0
	}
	c := mathx.RoundHalfUp(math.Abs(rpm) * e.GearRatio / 60.0 * e.CountsPerRev() * dt)
	if c >= math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(c)
}
