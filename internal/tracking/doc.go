// Package tracking estimates the robot pose from redundant inertial sensors and
// unpowered tracking wheels.
//
// A [Tracker] fuses three heading estimates every tick: the weighted mean of
// the IMU deltas, the mean of per-pair estimates from horizontal wheels and the
// same from vertical wheels. Each family is weighted by its [SensorSet] weight,
// normalized over the families that produced an estimate. Wheel deltas are then
// arc-corrected for their offset from the tracking center and rotated into the
// field frame using the mid-tick heading.
//
// # Conventions
//
// Vertical wheels measure forward travel and horizontal wheels measure travel
// to the right. A wheel's offset is the signed distance for which a pure
// counter-clockwise rotation by θ moves the wheel by θ·offset along its axis:
// vertical wheels right of center and horizontal wheels behind center have
// positive offsets.
//
// Sensor failures never stop tracking. A failed read holds the last value, so
// the sensor contributes a zero delta for that tick.
package tracking
