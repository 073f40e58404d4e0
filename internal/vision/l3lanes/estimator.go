package l3lanes

import (
	"math"

	"github.com/roadguard-data/roadguard/internal/config"
	"github.com/roadguard-data/roadguard/internal/vision/l1frames"
	"github.com/roadguard-data/roadguard/internal/vision/l2fit"
)

// slopeEpsilon guards the slope denominator against vertical segments.
const slopeEpsilon = 1e-6

// EstimatorConfig holds configuration parameters for the lane estimator.
type EstimatorConfig struct {
	SlopeMin       float64 // Segments with |slope| at or below this are discarded as non-lane
	PreviousWeight float64 // Weight of the previous centerline in temporal smoothing
}

// DefaultEstimatorConfig returns estimator configuration loaded from the
// canonical tuning defaults file. Panics if the file cannot be found —
// intended for tests and binaries that have already validated config
// availability.
func DefaultEstimatorConfig() EstimatorConfig {
	cfg := config.MustLoadDefaultConfig()
	return EstimatorConfigFromTuning(cfg)
}

// EstimatorConfigFromTuning builds an EstimatorConfig from a loaded TuningConfig.
func EstimatorConfigFromTuning(cfg *config.TuningConfig) EstimatorConfig {
	return EstimatorConfig{
		SlopeMin:       cfg.GetSlopeMin(),
		PreviousWeight: cfg.GetSmoothingPreviousWeight(),
	}
}

// LaneState is the lane estimator's cross-frame memory: the last-known
// centerline and the side fits observed with it. Nil pointers mean
// "never seen". The state lives as long as the engine; there is no expiry.
type LaneState struct {
	Center *l2fit.PolynomialFit
	Left   *l2fit.PolynomialFit
	Right  *l2fit.PolynomialFit
}

// Estimator classifies segments into lane boundary candidates, fits both
// sides, and derives a smoothed centerline with fallback policy.
type Estimator struct {
	Config EstimatorConfig

	fitter *l2fit.Fitter
	state  LaneState
}

// NewEstimator creates an estimator using the given fitter for both sides.
func NewEstimator(cfg EstimatorConfig, fitter *l2fit.Fitter) *Estimator {
	return &Estimator{Config: cfg, fitter: fitter}
}

// State returns a snapshot of the lane state. The returned fits are copies;
// mutating them does not affect the estimator.
func (e *Estimator) State() LaneState {
	return LaneState{
		Center: copyFit(e.state.Center),
		Left:   copyFit(e.state.Left),
		Right:  copyFit(e.state.Right),
	}
}

// Reset clears the lane state, as at the start of a new stream.
func (e *Estimator) Reset() {
	e.state = LaneState{}
}

// Estimate derives this frame's centerline from the segment set.
// frameWidth feeds the single-sided fallback offsets. Returns nil when no
// centerline can be derived and none was ever known.
//
// Priority when deriving the fresh centerline:
//  1. both sides fit: mean of the two, then blended with the previous
//     centerline (PreviousWeight·prev + (1−PreviousWeight)·new);
//  2. neither side but a previous centerline exists: previous, unchanged;
//  3. right only: right shifted left by width/4;
//  4. left only: left shifted right by width/3;
//  5. nothing: no centerline this frame.
func (e *Estimator) Estimate(segments []l1frames.LineSegment, frameWidth float64) *l2fit.PolynomialFit {
	leftPoints, rightPoints := e.classify(segments)

	left, leftErr := e.fitter.Fit(leftPoints)
	right, rightErr := e.fitter.Fit(rightPoints)
	haveLeft := leftErr == nil
	haveRight := rightErr == nil

	if haveLeft {
		e.state.Left = &left
	}
	if haveRight {
		e.state.Right = &right
	}

	var center l2fit.PolynomialFit
	switch {
	case haveLeft && haveRight:
		center = l2fit.Mean(left, right)
		// Smoothing applies only to a both-sided derivation; single-sided
		// and carried-over centerlines pass through unblended.
		if e.state.Center != nil {
			center = l2fit.Blend(*e.state.Center, center, e.Config.PreviousWeight)
		}
	case !haveLeft && !haveRight:
		if e.state.Center == nil {
			return nil
		}
		center = *e.state.Center
	case haveRight:
		center = right.ShiftConstant(-frameWidth / 4)
	default: // left only
		center = left.ShiftConstant(frameWidth / 3)
	}

	e.state.Center = &center
	return copyFit(&center)
}

// classify routes segment endpoints into left/right candidate point sets by
// slope sign. In image coordinates the left boundary descends left-to-right
// (negative slope) and the right boundary ascends; near-horizontal segments
// are discarded as non-lane clutter.
func (e *Estimator) classify(segments []l1frames.LineSegment) (left, right []l1frames.Point) {
	for _, seg := range segments {
		dx := seg.P2.X - seg.P1.X
		if math.Abs(dx) < slopeEpsilon {
			dx = math.Copysign(slopeEpsilon, dx)
		}
		slope := (seg.P2.Y - seg.P1.Y) / dx
		if math.Abs(slope) <= e.Config.SlopeMin {
			continue
		}
		if slope < 0 {
			left = append(left, seg.P1, seg.P2)
		} else {
			right = append(right, seg.P1, seg.P2)
		}
	}
	return left, right
}

func copyFit(f *l2fit.PolynomialFit) *l2fit.PolynomialFit {
	if f == nil {
		return nil
	}
	c := *f
	return &c
}
