// Package l5behavior converts a track's motion history into behavioral
// signals: an explicit drift state machine (Stable → Reversing → Latched),
// a direction classification from bounding-box growth, and the alarm set
// raised for agents inside the region of interest.
//
// The machine is level-triggered: alarms are re-derived from current state
// on every frame rather than latched on edges.
package l5behavior
