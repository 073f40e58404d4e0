// Package monitor provides offline diagnostics for the vision pipeline:
// a lane-fit plotter that records per-frame polynomial fits during a run
// and renders PNG time series afterwards.
package monitor

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"sync"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/roadguard-data/roadguard/internal/vision/l2fit"
	"github.com/roadguard-data/roadguard/internal/vision/l3lanes"
)

// LaneSample is one frame's recorded lane state.
type LaneSample struct {
	FrameIdx int64
	Center   *l2fit.PolynomialFit
	Left     *l2fit.PolynomialFit
	Right    *l2fit.PolynomialFit
}

// LanePlotter records lane fits over a run for visualization. It satisfies
// the pipeline's LaneRecorder interface; attach it via EngineConfig and
// call GeneratePlots after the run.
type LanePlotter struct {
	mu        sync.Mutex
	enabled   bool
	outputDir string

	// frameHeight bounds the y sweep of the profile plot.
	frameHeight float64

	samples []LaneSample
}

// NewLanePlotter creates a plotter for frames of the given pixel height.
func NewLanePlotter(frameHeight float64) *LanePlotter {
	return &LanePlotter{frameHeight: frameHeight}
}

// Start initializes the plotter for a new run.
func (lp *LanePlotter) Start(outputDir string) error {
	lp.mu.Lock()
	defer lp.mu.Unlock()

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}

	lp.outputDir = outputDir
	lp.enabled = true
	lp.samples = nil
	return nil
}

// Stop disables sampling. Call GeneratePlots to produce output files.
func (lp *LanePlotter) Stop() {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	lp.enabled = false
}

// IsEnabled returns true if the plotter is currently recording.
func (lp *LanePlotter) IsEnabled() bool {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	return lp.enabled
}

// SampleCount returns the number of frames recorded so far.
func (lp *LanePlotter) SampleCount() int {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	return len(lp.samples)
}

// RecordLaneFit captures one frame's lane state. Fits are copied; callers
// may mutate theirs afterwards.
func (lp *LanePlotter) RecordLaneFit(frameIndex int64, state l3lanes.LaneState) {
	lp.mu.Lock()
	defer lp.mu.Unlock()

	if !lp.enabled {
		return
	}

	lp.samples = append(lp.samples, LaneSample{
		FrameIdx: frameIndex,
		Center:   copyFit(state.Center),
		Left:     copyFit(state.Left),
		Right:    copyFit(state.Right),
	})
}

// GeneratePlots renders the recorded run: a per-coefficient time series for
// the centerline and both sides, and a centerline profile plot sampled at a
// few frames across the run. Returns the number of PNG files written.
func (lp *LanePlotter) GeneratePlots() (int, error) {
	lp.mu.Lock()
	defer lp.mu.Unlock()

	if lp.outputDir == "" {
		return 0, fmt.Errorf("no output directory configured")
	}
	if len(lp.samples) == 0 {
		return 0, nil
	}

	written := 0
	for coeff := 0; coeff <= l2fit.Degree; coeff++ {
		if err := lp.generateCoeffPlot(coeff); err != nil {
			return written, fmt.Errorf("coefficient %d: %w", coeff, err)
		}
		written++
	}

	if err := lp.generateProfilePlot(); err != nil {
		return written, fmt.Errorf("profile: %w", err)
	}
	written++

	return written, nil
}

// generateCoeffPlot renders one coefficient's time series for all three fits.
func (lp *LanePlotter) generateCoeffPlot(coeff int) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Lane Fit Coefficient c%d", coeff)
	p.X.Label.Text = "Frame"
	p.Y.Label.Text = fmt.Sprintf("c%d", coeff)

	series := []struct {
		name string
		pick func(LaneSample) *l2fit.PolynomialFit
	}{
		{"center", func(s LaneSample) *l2fit.PolynomialFit { return s.Center }},
		{"left", func(s LaneSample) *l2fit.PolynomialFit { return s.Left }},
		{"right", func(s LaneSample) *l2fit.PolynomialFit { return s.Right }},
	}
	colors := generateColors(len(series))

	for i, sc := range series {
		pts := make(plotter.XYs, 0, len(lp.samples))
		for _, s := range lp.samples {
			fit := sc.pick(s)
			if fit == nil {
				continue
			}
			pts = append(pts, plotter.XY{X: float64(s.FrameIdx), Y: fit[coeff]})
		}
		if len(pts) == 0 {
			continue
		}

		line, err := plotter.NewLine(pts)
		if err != nil {
			return err
		}
		line.Color = colors[i]
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(sc.name, line)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	file := filepath.Join(lp.outputDir, fmt.Sprintf("lane_coeff_c%d.png", coeff))
	if err := p.Save(14*vg.Inch, 6*vg.Inch, file); err != nil {
		return fmt.Errorf("save coefficient plot: %w", err)
	}

	return nil
}

// generateProfilePlot draws the centerline curve x = f(y) at a handful of
// frames spread across the run, so drift of the estimate is visible.
func (lp *LanePlotter) generateProfilePlot() error {
	p := plot.New()
	p.Title.Text = "Centerline Profile"
	p.X.Label.Text = "x (px)"
	p.Y.Label.Text = "y (px)"
	// Image coordinates grow downward.
	p.Y.Scale = plot.InvertedScale{Normalizer: plot.LinearScale{}}

	picks := profileIndices(len(lp.samples), 5)
	colors := generateColors(len(picks))

	height := lp.frameHeight
	if height <= 0 {
		height = 720
	}

	plotted := 0
	for i, idx := range picks {
		s := lp.samples[idx]
		if s.Center == nil {
			continue
		}

		pts := make(plotter.XYs, 0, 37)
		for y := 0.0; y <= height; y += height / 36 {
			pts = append(pts, plotter.XY{X: s.Center.Eval(y), Y: y})
		}

		line, err := plotter.NewLine(pts)
		if err != nil {
			return err
		}
		line.Color = colors[i]
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("frame %d", s.FrameIdx), line)
		plotted++
	}

	if plotted == 0 {
		return nil
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	file := filepath.Join(lp.outputDir, "lane_profile.png")
	if err := p.Save(8*vg.Inch, 6*vg.Inch, file); err != nil {
		return fmt.Errorf("save profile plot: %w", err)
	}

	return nil
}

// profileIndices picks up to n sample indices spread evenly across the run.
func profileIndices(total, n int) []int {
	if total == 0 {
		return nil
	}
	if total <= n {
		out := make([]int, total)
		for i := range out {
			out[i] = i
		}
		return out
	}
	out := make([]int, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, i*(total-1)/(n-1))
	}
	return out
}

func copyFit(f *l2fit.PolynomialFit) *l2fit.PolynomialFit {
	if f == nil {
		return nil
	}
	c := *f
	return &c
}

// generateColors creates a palette of distinct colors for plot lines.
func generateColors(n int) []color.Color {
	if n <= 0 {
		return nil
	}

	colors := make([]color.Color, n)
	for i := 0; i < n; i++ {
		hue := float64(i) / float64(n)
		r, g, b := hslToRGB(hue, 0.7, 0.5)
		colors[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return colors
}

// hslToRGB converts HSL to RGB (0-255 range).
func hslToRGB(h, s, l float64) (r, g, b uint8) {
	var rf, gf, bf float64

	if s == 0 {
		rf, gf, bf = l, l, l
	} else {
		var q float64
		if l < 0.5 {
			q = l * (1 + s)
		} else {
			q = l + s - l*s
		}
		p := 2*l - q
		rf = hueToRGB(p, q, h+1.0/3.0)
		gf = hueToRGB(p, q, h)
		bf = hueToRGB(p, q, h-1.0/3.0)
	}

	return uint8(rf * 255), uint8(gf * 255), uint8(bf * 255)
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t += 1
	}
	if t > 1 {
		t -= 1
	}
	if t < 1.0/6.0 {
		return p + (q-p)*6*t
	}
	if t < 1.0/2.0 {
		return q
	}
	if t < 2.0/3.0 {
		return p + (q-p)*(2.0/3.0-t)*6
	}
	return p
}
