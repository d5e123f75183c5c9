// Package motion drives a differential chassis to field targets.
//
// A [Chassis] runs one motion at a time. Each motion first takes the motion
// slot owned by the chassis' [Handler]; the slot is the right to write wheel
// commands. [Chassis.MoveToPoint] either runs its control loop on the calling
// goroutine (Blocking) or hands the slot to a new goroutine and returns once
// that goroutine owns it, so two motions never write to the drivetrain at the
// same time. A second request waits for the slot rather than failing.
//
// Every control tick reads the tracked pose, runs the linear and angular
// feedback controllers, limits and slews their outputs, mixes them into
// left/right fractions and sleeps for the drivetrain's write interval. The
// loop polls its exit conditions once per tick, so [Chassis.Cancel] takes
// effect within one write interval.
package motion
