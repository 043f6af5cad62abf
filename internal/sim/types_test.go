package sim

import (
	"errors"
	"math"
	"testing"

	"github.com/san-kum/dcmotor/internal/loop"
)

func TestState_IsValid(t *testing.T) {
	tests := []struct {
		name  string
		state State
		valid bool
	}{
		{"empty", State{}, true},
		{"normal", State{1.0, 2.0, 3.0}, true},
		{"zeros", State{0.0, 0.0}, true},
		{"with NaN", State{1.0, math.NaN()}, false},
		{"with +Inf", State{1.0, math.Inf(1)}, false},
		{"with -Inf", State{1.0, math.Inf(-1)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.IsValid(); got != tt.valid {
				t.Errorf("IsValid() = %v, want %v", got, tt.valid)
			}
		})
	}
}

func TestState_Clone(t *testing.T) {
	src := State{1, 2, 3}
	c := src.Clone()
	c[0] = 99
	if src[0] != 1 {
		t.Error("Clone did not create an independent copy")
	}
}

func TestResultSeries(t *testing.T) {
	r := &Result{Samples: []loop.Sample{
		{Time: 0.15, ProcessVariable: 10, Duty: 0.1},
		{Time: 0.30, ProcessVariable: 20, Duty: 0.2},
	}}

	ts := r.Times()
	if len(ts) != 2 || ts[1] != 0.30 {
		t.Errorf("Times() = %v", ts)
	}
	pv := r.Series(func(s loop.Sample) float64 { return s.ProcessVariable })
	if pv[0] != 10 || pv[1] != 20 {
		t.Errorf("Series(pv) = %v", pv)
	}
}

func TestSimError(t *testing.T) {
	err := &SimError{Time: 1.5, Step: 10, Wrapped: ErrInvalidState}
	expected := "step 10 (t=1.5000): sim: invalid state (NaN or Inf detected)"
	if err.Error() != expected {
		t.Errorf("SimError.Error() = %q, want %q", err.Error(), expected)
	}
	if !errors.Is(err, ErrInvalidState) {
		t.Error("SimError should unwrap to ErrInvalidState")
	}
}
