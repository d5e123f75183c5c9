// Package physics simulates a differential-drive robot and the sensors the
// tracker fuses.
//
// [DiffDrive] integrates the chassis with [RK4] over the state
// [x, y, heading, left velocity, right velocity, path length]. It accepts the
// same velocity fractions a real drivetrain does, so a motion.Chassis can run
// against it unchanged. [SimIMU] and [SimWheel] derive their readings from the
// plant's true state and add drift, noise and dropouts.
package physics
