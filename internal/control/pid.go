package control

// Terms breaks an adjustment into its contributions.
type Terms struct {
	Setpoint     float64 // setpoint the step regulated against
	Error        float64
	Proportional float64
	Integral     float64
	Derivative   float64
}

// Sum returns the control adjustment.
func (t Terms) Sum() float64 {
	return t.Proportional + t.Integral + t.Derivative
}

// Adjust runs one PID step against the current setpoint and process
// variable. It returns false and leaves the state untouched when the control
// interval is not positive. The result is not clamped; the integral is
// unbounded.
func Adjust(s *State) (float64, bool) {
	terms, ok := Step(s)
	return terms.Sum(), ok
}

// Step is Adjust with the individual terms exposed.
func Step(s *State) (Terms, bool) {
	if s.dt <= 0 {
		return Terms{}, false
	}

	sp := s.Setpoint()
	err := sp - s.ProcessVariable()

	s.integral += err * s.dt
	derivative := (err - s.prevErr) / s.dt
	s.prevErr = err

	return Terms{
		Setpoint:     sp,
		Error:        err,
		Proportional: s.gains.Kp * err,
		Integral:     s.gains.Ki * s.integral,
		Derivative:   s.gains.Kd * derivative,
	}, true
}
