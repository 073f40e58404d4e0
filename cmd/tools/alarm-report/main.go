// Command alarm-report renders an HTML report for a recorded analysis run:
// per-track drift (rolling lateral average) and lane-offset time series,
// plus alarm totals. Reads the sqlite database written by cmd/roadguard.
package main

import (
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/roadguard-data/roadguard/internal/db"
	"github.com/roadguard-data/roadguard/internal/vision/storage/sqlite"
)

// maxTrackSeries caps how many tracks are charted so busy runs stay legible.
const maxTrackSeries = 12

func main() {
	dbPath := flag.String("db", "roadguard.db", "Path to sqlite database")
	runID := flag.String("run", "", "Run ID (defaults to the most recent run)")
	outPath := flag.String("out", "alarm-report.html", "Output HTML file")
	flag.Parse()

	if err := run(*dbPath, *runID, *outPath); err != nil {
		fmt.Fprintf(os.Stderr, "alarm-report: %v\n", err)
		os.Exit(1)
	}
}

func run(dbPath, runID, outPath string) error {
	database, err := db.NewDB(dbPath)
	if err != nil {
		return err
	}
	defer database.Close()

	store := sqlite.NewAnalysisRunStore(database.DB)
	if runID == "" {
		runID, err = store.LatestRunID()
		if err != nil {
			return err
		}
	}

	runRow, stats, err := store.GetRun(runID)
	if err != nil {
		return err
	}

	tracks, err := sqlite.GetTracks(database.DB, runID)
	if err != nil {
		return err
	}

	counts, err := sqlite.GetAlarmCounts(database.DB, runID)
	if err != nil {
		return err
	}

	page := components.NewPage()
	page.PageTitle = fmt.Sprintf("roadguard run %s", runID)

	driftChart, offsetChart, err := buildTrackCharts(database, runID, tracks)
	if err != nil {
		return err
	}
	page.AddCharts(driftChart, offsetChart, buildAlarmChart(counts))

	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := page.Render(f); err != nil {
		return fmt.Errorf("render report: %w", err)
	}

	fmt.Printf("Run %s (%s): %d frames, %d tracks, %d alarms\n",
		runID, runRow.SourcePath, stats.TotalFrames, stats.TotalTracks, stats.TotalAlarms)
	fmt.Printf("Wrote %s\n", outPath)
	return nil
}

// buildTrackCharts renders two line charts over the shared frame axis: the
// rolling lateral average (drift) and the lane offset, one series per track.
func buildTrackCharts(database *db.DB, runID string, tracks []*sqlite.TrackRecord) (*charts.Line, *charts.Line, error) {
	if len(tracks) > maxTrackSeries {
		tracks = tracks[:maxTrackSeries]
	}

	type series struct {
		name         string
		observations map[int64]*sqlite.TrackObservation
	}

	frameSet := make(map[int64]bool)
	all := make([]series, 0, len(tracks))
	for _, track := range tracks {
		observations, err := sqlite.GetTrackObservations(database.DB, runID, track.TrackID, 0)
		if err != nil {
			return nil, nil, err
		}
		byFrame := make(map[int64]*sqlite.TrackObservation, len(observations))
		for _, obs := range observations {
			byFrame[obs.FrameIndex] = obs
			frameSet[obs.FrameIndex] = true
		}
		all = append(all, series{
			name:         fmt.Sprintf("track %d (class %d)", track.TrackID, track.ClassID),
			observations: byFrame,
		})
	}

	frames := make([]int64, 0, len(frameSet))
	for f := range frameSet {
		frames = append(frames, f)
	}
	sort.Slice(frames, func(i, j int) bool { return frames[i] < frames[j] })

	xAxis := make([]string, len(frames))
	for i, f := range frames {
		xAxis[i] = fmt.Sprintf("%d", f)
	}

	drift := charts.NewLine()
	drift.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Rolling Lateral Average", Subtitle: "positive = drifting left"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "frame"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "px/frame"}),
	)
	drift.SetXAxis(xAxis)

	offset := charts.NewLine()
	offset.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Lane Offset", Subtitle: "distance from estimated centerline"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "frame"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "px"}),
	)
	offset.SetXAxis(xAxis)

	for _, s := range all {
		driftData := make([]opts.LineData, len(frames))
		offsetData := make([]opts.LineData, len(frames))
		for i, f := range frames {
			if obs, ok := s.observations[f]; ok {
				driftData[i] = opts.LineData{Value: obs.RollingAverage}
				offsetData[i] = opts.LineData{Value: obs.LaneOffset}
			} else {
				driftData[i] = opts.LineData{Value: nil}
				offsetData[i] = opts.LineData{Value: nil}
			}
		}
		drift.AddSeries(s.name, driftData)
		offset.AddSeries(s.name, offsetData)
	}

	return drift, offset, nil
}

func buildAlarmChart(counts map[string]int) *charts.Bar {
	labels := make([]string, 0, len(counts))
	for label := range counts {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	data := make([]opts.BarData, len(labels))
	for i, label := range labels {
		data[i] = opts.BarData{Value: counts[label]}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Alarm Totals"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(labels)
	bar.AddSeries("alarms", data)

	return bar
}
