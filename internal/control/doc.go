// Package control holds the motor control state and the PID regulator that
// turns speed error into a duty-cycle adjustment.
//
//   - [State]: the single control context for one motor
//   - [Adjust]: one PID step over a [State]
//
// # Usage
//
//	st := control.NewState(control.Gains{Kp: 0.005}, 0.15)
//	st.SetSetpoint(100)
//	st.SetProcessVariable(80)
//	adj, ok := control.Adjust(st) // 0.1, true
//
// Setpoint, direction and process variable are published atomically and may
// be read or written from any goroutine. Everything else belongs to the
// control cycle.
package control
