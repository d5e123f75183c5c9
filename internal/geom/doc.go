// Package geom provides the planar geometry shared by tracking and motion:
//
//   - [Pose]: position plus a continuous (unwrapped) heading in radians
//   - [Rotate]: rotate an [r2.Point] about the origin
//   - [DeltaClamp]: slew-rate limiting of a commanded output
//   - [ArcadeDesaturate]: linear/angular intent to left/right wheel fractions
//
// Headings are counter-clockwise positive with 0 along +X. [HeadingDegrees]
// converts a compass-style heading (0 = +Y, clockwise positive) into that
// convention.
package geom
