// Package pipeline orchestrates one frame's pass through the vision
// layers: input validation (l1frames), lane estimation (l3lanes), track
// association and update (l4tracks), and behavioral analysis (l5behavior).
//
// One Engine instance owns all cross-frame state — the lane memory and the
// track store — and processes frames strictly in arrival order, single
// threaded. Persistence and diagnostics attach through the PersistenceSink
// and LaneRecorder interfaces so storage stays an adapter.
package pipeline
