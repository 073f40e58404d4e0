// Package l3lanes estimates the lane centerline from extracted line
// segments, one frame at a time.
//
// The estimator owns the only cross-frame lane state in the engine: the
// last-known centerline (and the side fits that produced it). When a frame
// yields nothing usable the previous centerline is carried forward
// unchanged, so downstream offset math keeps a stable reference through
// dropouts.
package l3lanes
