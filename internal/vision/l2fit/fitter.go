package l2fit

import (
	"errors"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/roadguard-data/roadguard/internal/config"
	"github.com/roadguard-data/roadguard/internal/vision/l1frames"
)

// ErrInsufficientPoints is returned when a point set is too small for a
// robust fit. The lane estimator treats it as "this side is absent on this
// frame", never as a fatal condition.
var ErrInsufficientPoints = errors.New("insufficient points for robust fit")

// FitterConfig holds configuration parameters for the curve fitter.
type FitterConfig struct {
	MinPoints   int     // Minimum point count for a fit attempt
	Iterations  int     // Consensus sampling iterations
	ThresholdPx float64 // Inlier residual threshold (pixels)
	Seed        int64   // Seed for the sampling random source
}

// DefaultFitterConfig returns fitter configuration loaded from the
// canonical tuning defaults file (config/tuning.defaults.json).
// Panics if the file cannot be found — intended for tests and binaries
// that have already validated config availability.
func DefaultFitterConfig() FitterConfig {
	cfg := config.MustLoadDefaultConfig()
	return FitterConfigFromTuning(cfg)
}

// FitterConfigFromTuning builds a FitterConfig from a loaded TuningConfig.
// Use this in production code where the TuningConfig is already loaded.
func FitterConfigFromTuning(cfg *config.TuningConfig) FitterConfig {
	return FitterConfig{
		MinPoints:   cfg.GetMinFitPoints(),
		Iterations:  cfg.GetConsensusIterations(),
		ThresholdPx: cfg.GetConsensusThresholdPx(),
		Seed:        cfg.GetConsensusSeed(),
	}
}

// Fitter fits degree-2 polynomials to noisy lane boundary points.
// The consensus sampling step draws from an owned random source, so a
// Fitter is not safe for concurrent use; the frame-sequential pipeline
// never shares one across goroutines.
type Fitter struct {
	Config FitterConfig
	rng    *rand.Rand
}

// NewFitter creates a fitter whose random source is seeded from the config,
// making fits reproducible for a given seed.
func NewFitter(cfg FitterConfig) *Fitter {
	return &Fitter{
		Config: cfg,
		rng:    rand.New(rand.NewSource(cfg.Seed)),
	}
}

// NewFitterWithSource creates a fitter drawing consensus samples from the
// supplied source. Used by tests that need full control over sampling.
func NewFitterWithSource(cfg FitterConfig, src rand.Source) *Fitter {
	return &Fitter{
		Config: cfg,
		rng:    rand.New(src),
	}
}

// Fit fits a degree-2 polynomial of x as a function of y to the points,
// robust to a minority of outliers. Returns ErrInsufficientPoints when the
// set is smaller than the configured minimum.
//
// Two stages: consensus sampling selects the model with the largest inlier
// support, then the final polynomial is solved by least squares against
// that model's per-y predictions rather than the raw points, suppressing
// whatever influence the outliers had.
func (f *Fitter) Fit(points []l1frames.Point) (PolynomialFit, error) {
	if len(points) < f.Config.MinPoints {
		return PolynomialFit{}, ErrInsufficientPoints
	}

	best, ok := f.consensusModel(points)
	if !ok {
		// Degenerate geometry (e.g. all points on one scanline): no sample
		// produced a solvable model. Fall back to a plain least-squares fit.
		return polyfit(points)
	}

	// Stage 2: refit against the consensus model's predictions.
	predicted := make([]l1frames.Point, len(points))
	for i, p := range points {
		predicted[i] = l1frames.Point{X: best.Eval(p.Y), Y: p.Y}
	}
	return polyfit(predicted)
}

// consensusModel runs the sampling loop: each iteration draws three points,
// solves the quadratic through them, and counts inliers within the residual
// threshold. Returns the model with the most inliers and whether any
// solvable sample was found.
func (f *Fitter) consensusModel(points []l1frames.Point) (PolynomialFit, bool) {
	var best PolynomialFit
	bestInliers := -1

	for iter := 0; iter < f.Config.Iterations; iter++ {
		idx := f.rng.Perm(len(points))[:Degree+1]
		sample := []l1frames.Point{points[idx[0]], points[idx[1]], points[idx[2]]}

		model, err := polyfit(sample)
		if err != nil {
			continue
		}

		inliers := 0
		for _, p := range points {
			if math.Abs(p.X-model.Eval(p.Y)) <= f.Config.ThresholdPx {
				inliers++
			}
		}
		if inliers > bestInliers {
			bestInliers = inliers
			best = model
		}
	}

	return best, bestInliers >= 0
}

// polyfit solves the least-squares degree-2 fit of x against y over the
// Vandermonde system. Fails when the system is singular (fewer than three
// distinct y values).
func polyfit(points []l1frames.Point) (PolynomialFit, error) {
	n := len(points)
	a := mat.NewDense(n, Degree+1, nil)
	b := mat.NewVecDense(n, nil)
	for i, p := range points {
		a.Set(i, 0, 1)
		a.Set(i, 1, p.Y)
		a.Set(i, 2, p.Y*p.Y)
		b.SetVec(i, p.X)
	}

	var qr mat.QR
	qr.Factorize(a)

	var sol mat.VecDense
	if err := qr.SolveVecTo(&sol, false, b); err != nil {
		return PolynomialFit{}, err
	}

	var fit PolynomialFit
	for i := range fit {
		v := sol.AtVec(i)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return PolynomialFit{}, errors.New("singular fit system")
		}
		fit[i] = v
	}
	return fit, nil
}
