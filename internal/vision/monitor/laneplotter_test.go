package monitor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/roadguard-data/roadguard/internal/testutil"
	"github.com/roadguard-data/roadguard/internal/vision/l2fit"
	"github.com/roadguard-data/roadguard/internal/vision/l3lanes"
)

func laneState(c0 float64) l3lanes.LaneState {
	center := l2fit.PolynomialFit{c0, 0, 0}
	left := l2fit.PolynomialFit{c0 + 120, -0.5, 0}
	right := l2fit.PolynomialFit{c0 - 120, 0.5, 0}
	return l3lanes.LaneState{Center: &center, Left: &left, Right: &right}
}

func TestLanePlotter_StartStop(t *testing.T) {
	lp := NewLanePlotter(720)
	outputDir := t.TempDir()

	if lp.IsEnabled() {
		t.Error("expected plotter to be disabled initially")
	}

	testutil.AssertNoError(t, lp.Start(outputDir))
	if !lp.IsEnabled() {
		t.Error("expected plotter to be enabled after Start")
	}

	lp.Stop()
	if lp.IsEnabled() {
		t.Error("expected plotter to be disabled after Stop")
	}
}

func TestLanePlotter_StartCreatesDirectory(t *testing.T) {
	lp := NewLanePlotter(720)
	nestedDir := filepath.Join(t.TempDir(), "nested", "plots")

	testutil.AssertNoError(t, lp.Start(nestedDir))

	info, err := os.Stat(nestedDir)
	if err != nil {
		t.Fatalf("output directory was not created: %v", err)
	}
	if !info.IsDir() {
		t.Error("output path is not a directory")
	}
}

func TestLanePlotter_RecordOnlyWhenEnabled(t *testing.T) {
	lp := NewLanePlotter(720)

	lp.RecordLaneFit(1, laneState(480))
	if lp.SampleCount() != 0 {
		t.Errorf("expected no samples before Start, got %d", lp.SampleCount())
	}

	testutil.AssertNoError(t, lp.Start(t.TempDir()))
	lp.RecordLaneFit(1, laneState(480))
	lp.RecordLaneFit(2, laneState(482))
	if lp.SampleCount() != 2 {
		t.Errorf("expected 2 samples, got %d", lp.SampleCount())
	}

	lp.Stop()
	lp.RecordLaneFit(3, laneState(484))
	if lp.SampleCount() != 2 {
		t.Errorf("expected sampling to stop after Stop, got %d samples", lp.SampleCount())
	}
}

func TestLanePlotter_RecordCopiesFits(t *testing.T) {
	lp := NewLanePlotter(720)
	testutil.AssertNoError(t, lp.Start(t.TempDir()))

	state := laneState(480)
	lp.RecordLaneFit(1, state)
	state.Center[0] = 999

	testutil.AssertInDelta(t, lp.samples[0].Center[0], 480, 0)
}

func TestLanePlotter_GeneratePlots(t *testing.T) {
	lp := NewLanePlotter(720)
	outputDir := t.TempDir()
	testutil.AssertNoError(t, lp.Start(outputDir))

	for i := int64(1); i <= 10; i++ {
		lp.RecordLaneFit(i, laneState(480+float64(i)))
	}
	lp.Stop()

	count, err := lp.GeneratePlots()
	testutil.AssertNoError(t, err)
	// One plot per coefficient plus the profile plot.
	if count != 4 {
		t.Errorf("expected 4 plots, got %d", count)
	}

	for _, name := range []string{"lane_coeff_c0.png", "lane_coeff_c1.png", "lane_coeff_c2.png", "lane_profile.png"} {
		if _, err := os.Stat(filepath.Join(outputDir, name)); err != nil {
			t.Errorf("expected %s to exist: %v", name, err)
		}
	}
}

func TestLanePlotter_GeneratePlotsEmpty(t *testing.T) {
	lp := NewLanePlotter(720)
	testutil.AssertNoError(t, lp.Start(t.TempDir()))

	count, err := lp.GeneratePlots()
	testutil.AssertNoError(t, err)
	if count != 0 {
		t.Errorf("expected no plots for empty run, got %d", count)
	}
}

func TestLanePlotter_GeneratePlotsWithoutStart(t *testing.T) {
	lp := NewLanePlotter(720)

	_, err := lp.GeneratePlots()
	testutil.AssertError(t, err)
}

func TestProfileIndices(t *testing.T) {
	cases := []struct {
		total, n int
		want     []int
	}{
		{0, 5, nil},
		{3, 5, []int{0, 1, 2}},
		{9, 5, []int{0, 2, 4, 6, 8}},
	}
	for _, tc := range cases {
		got := profileIndices(tc.total, tc.n)
		if len(got) != len(tc.want) {
			t.Errorf("profileIndices(%d, %d) = %v, want %v", tc.total, tc.n, got, tc.want)
			continue
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Errorf("profileIndices(%d, %d) = %v, want %v", tc.total, tc.n, got, tc.want)
				break
			}
		}
	}
}
