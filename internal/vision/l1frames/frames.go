package l1frames

import (
	"errors"
	"fmt"
	"math"
)

// Detector class identifiers, by the detector's numbering convention.
const (
	ClassPerson    = 0
	ClassBicycle   = 1
	ClassCar       = 2
	ClassMotorbike = 3
	ClassTruck     = 7
)

// ErrInvalidInput marks a single malformed segment or detection. Callers
// skip the offending item and continue with the frame; the error is never
// fatal to frame processing.
var ErrInvalidInput = errors.New("invalid input")

// Point is a position in frame (pixel) coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// LineSegment is one line segment from the external extractor.
type LineSegment struct {
	P1 Point `json:"p1"`
	P2 Point `json:"p2"`
}

// BBox is an axis-aligned bounding box: top-left corner plus dimensions,
// in frame coordinates.
type BBox struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Center returns the box's center point.
func (b BBox) Center() Point {
	return Point{X: b.X + b.W/2, Y: b.Y + b.H/2}
}

// Area returns the box's area in square pixels.
func (b BBox) Area() float64 {
	return b.W * b.H
}

// Detection is one object detection from the external detector.
type Detection struct {
	ClassID int  `json:"class_id"`
	Box     BBox `json:"box"`
}

// Frame carries one frame's worth of externally supplied inputs.
type Frame struct {
	Index      int64         `json:"index"`
	Width      float64       `json:"width"`
	Height     float64       `json:"height"`
	Segments   []LineSegment `json:"segments"`
	Detections []Detection   `json:"detections"`
	ROI        Polygon       `json:"roi"`
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// ValidateSegment checks a segment for NaN/Inf coordinates.
func ValidateSegment(s LineSegment) error {
	if !finite(s.P1.X, s.P1.Y, s.P2.X, s.P2.Y) {
		return fmt.Errorf("%w: segment has non-finite coordinates", ErrInvalidInput)
	}
	return nil
}

// ValidateDetection checks a detection for NaN/Inf coordinates and a
// degenerate (zero or negative area) bounding box.
func ValidateDetection(d Detection) error {
	if !finite(d.Box.X, d.Box.Y, d.Box.W, d.Box.H) {
		return fmt.Errorf("%w: detection has non-finite coordinates", ErrInvalidInput)
	}
	if d.Box.W <= 0 || d.Box.H <= 0 {
		return fmt.Errorf("%w: detection box is %gx%g", ErrInvalidInput, d.Box.W, d.Box.H)
	}
	return nil
}
