// Package control provides the feedback primitives used by the motion loops.
//
// Controllers implement [FeedbackController], mapping an error signal to a
// correction each tick:
//
//   - [PID]: Proportional-Integral-Derivative controller with wind-up range
//     and optional integral reset on error sign flips
//   - [None]: always zero, for disabling a loop
//
// [ToleranceGroup] decides when an error signal has settled inside a band
// long enough to end a motion early.
//
// # Usage
//
//	pid := control.NewPID(0.1, 0, 0.5, 0, true) // Kp, Ki, Kd, windup range, reset on sign flip
//	out := pid.Update(err)                     // called once per control tick
//
// Controllers implementing [Configurable] support live tuning.
package control
