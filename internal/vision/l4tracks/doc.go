// Package l4tracks maintains the set of tracked road agents across frames.
//
// Association is deliberately greedy first-match rather than a globally
// optimal assignment: detections are matched, in arrival order, to the
// first same-class track whose last center lies within the pixel gate.
// The policy is injected as a strategy function so a cost-matrix solver
// can replace it without touching store internals.
//
// Tracks are never removed: an agent that leaves the frame keeps its track
// for the remainder of the run. A staleness eviction policy is a known
// follow-up, not implemented here.
package l4tracks
