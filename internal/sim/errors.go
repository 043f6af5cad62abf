package sim

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrInvalidConfig rejects a run before any interval is simulated.
	ErrInvalidConfig = errors.New("sim: invalid config")

	// ErrInvalidState indicates the plant state went NaN or Inf.
	ErrInvalidState = errors.New("sim: invalid state (NaN or Inf detected)")
)

// SimError wraps an error with the interval it happened in.
type SimError struct {
	Step    int
	Time    float64
	Wrapped error
}

func (e *SimError) Error() string {
	return fmt.Sprintf("step %d (t=%.4f): %v", e.Step, e.Time, e.Wrapped)
}

func (e *SimError) Unwrap() error { return e.Wrapped }
