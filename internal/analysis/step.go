package analysis

import "math"

// StepResponse describes how a trace moved from one level to another.
type StepResponse struct {
	RiseTime  float64 // 10% to 90% of the step, seconds; NaN if never reached
	PeakTime  float64 // seconds from the first sample
	Peak      float64
	Overshoot float64 // percent of the step size
}

// Step analyses values against a step from `from` to `to`. Times and
// values must be the same length.
func Step(times, values []float64, from, to float64) StepResponse {
	res := StepResponse{RiseTime: math.NaN()}
	if len(times) == 0 || len(times) != len(values) || from == to {
		return res
	}

	size := to - from
	sign := 1.0
	if size < 0 {
		sign = -1
	}
	lo := from + 0.1*size
	hi := from + 0.9*size

	t10, t90 := math.NaN(), math.NaN()
	res.Peak = values[0]
	res.PeakTime = 0
	for i, v := range values {
		if math.IsNaN(t10) && (v-lo)*sign >= 0 {
			t10 = times[i]
		}
		if math.IsNaN(t90) && (v-hi)*sign >= 0 {
			t90 = times[i]
		}
		if (v-res.Peak)*sign > 0 {
			res.Peak = v
			res.PeakTime = times[i] - times[0]
		}
	}
	if !math.IsNaN(t10) && !math.IsNaN(t90) {
		res.RiseTime = t90 - t10
	}
	res.Overshoot = math.Max(0, (res.Peak-to)*sign/math.Abs(size)*100)
	return res
}
