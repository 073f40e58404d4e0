// Package l1frames defines the per-frame input model for the vision
// pipeline: line segments from the external edge extractor, detections from
// the external object detector, and the region-of-interest polygon.
//
// Everything in this package is ephemeral — one frame's inputs are consumed
// by the layers above it and never retained across frames.
package l1frames
