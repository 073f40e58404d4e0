package pipeline

import (
	"database/sql"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/roadguard-data/roadguard/internal/config"
	"github.com/roadguard-data/roadguard/internal/vision/l1frames"
	"github.com/roadguard-data/roadguard/internal/vision/l5behavior"
	"github.com/roadguard-data/roadguard/internal/vision/storage/sqlite"
)

const testFrameWidth = 960.0

// boundarySegments emits chained segments along x = c0 + c1*y so both lane
// sides fit exactly. With left (600, -0.5) and right (360, +0.5) the
// centerline is the vertical line x = 480.
func boundarySegments(c0, c1 float64) []l1frames.LineSegment {
	segments := make([]l1frames.LineSegment, 0, 5)
	for i := 0; i < 5; i++ {
		y1 := 300.0 + float64(i)*80
		y2 := y1 + 80
		segments = append(segments, l1frames.LineSegment{
			P1: l1frames.Point{X: c0 + c1*y1, Y: y1},
			P2: l1frames.Point{X: c0 + c1*y2, Y: y2},
		})
	}
	return segments
}

func laneSegments() []l1frames.LineSegment {
	return append(boundarySegments(600, -0.5), boundarySegments(360, 0.5)...)
}

func fullROI() l1frames.Polygon {
	return l1frames.Polygon{
		{X: 0, Y: 0}, {X: testFrameWidth, Y: 0},
		{X: testFrameWidth, Y: 720}, {X: 0, Y: 720},
	}
}

func carAt(x, y float64) l1frames.Detection {
	return l1frames.Detection{
		ClassID: l1frames.ClassCar,
		Box:     l1frames.BBox{X: x - 20, Y: y - 15, W: 40, H: 30},
	}
}

func testEngine(cfg EngineConfig) *Engine {
	if cfg.Tuning == nil {
		cfg.Tuning = config.EmptyTuningConfig()
	}
	return NewEngine(cfg)
}

// captureSink records everything persisted through it.
type captureSink struct {
	tracks       []*sqlite.TrackRecord
	observations []*sqlite.TrackObservation
	alarms       []*sqlite.AlarmRecord
}

func (s *captureSink) PersistTrack(t *sqlite.TrackRecord) error {
	s.tracks = append(s.tracks, t)
	return nil
}

func (s *captureSink) PersistObservation(o *sqlite.TrackObservation) error {
	s.observations = append(s.observations, o)
	return nil
}

func (s *captureSink) PersistAlarm(a *sqlite.AlarmRecord) error {
	s.alarms = append(s.alarms, a)
	return nil
}

// --- frame processing ---

func TestProcessFrameEstimatesLaneAndTracks(t *testing.T) {
	engine := testEngine(EngineConfig{})

	frame := &l1frames.Frame{
		Index:      1,
		Width:      testFrameWidth,
		Height:     720,
		Segments:   laneSegments(),
		Detections: []l1frames.Detection{carAt(480, 400)},
		ROI:        fullROI(),
	}
	result := engine.ProcessFrame(frame)

	assert.Equal(t, int64(1), result.FrameIndex)
	require.NotNil(t, result.Center)
	assert.InDelta(t, 480.0, result.Center[0], 1e-6)
	assert.InDelta(t, 0.0, result.Center[1], 1e-6)
	require.NotNil(t, result.Left)
	require.NotNil(t, result.Right)

	require.Len(t, result.Tracks, 1)
	track := result.Tracks[0]
	assert.Equal(t, int64(1), track.TrackID)
	assert.Equal(t, l1frames.ClassCar, track.ClassID)
	assert.True(t, track.InROI)
	assert.Equal(t, l5behavior.StateStable, track.State)
	assert.Empty(t, track.Alarms)

	counters := engine.Counters()
	assert.Equal(t, uint64(1), counters.FramesProcessed)
	assert.Zero(t, counters.SegmentsDropped)
	assert.Zero(t, counters.DetectionsDropped)
}

func TestProcessFrameSkipsInvalidItems(t *testing.T) {
	engine := testEngine(EngineConfig{})

	frame := &l1frames.Frame{
		Index: 1,
		Width: testFrameWidth,
		Segments: append(laneSegments(), l1frames.LineSegment{
			P1: l1frames.Point{X: math.NaN(), Y: 0},
			P2: l1frames.Point{X: 10, Y: 10},
		}),
		Detections: []l1frames.Detection{
			{ClassID: l1frames.ClassCar, Box: l1frames.BBox{X: 100, Y: 100, W: 0, H: 30}},
			carAt(480, 400),
		},
		ROI: fullROI(),
	}
	result := engine.ProcessFrame(frame)

	// The bad segment and degenerate detection drop; the rest survives.
	require.NotNil(t, result.Center)
	require.Len(t, result.Tracks, 1)

	counters := engine.Counters()
	assert.Equal(t, uint64(1), counters.SegmentsDropped)
	assert.Equal(t, uint64(1), counters.DetectionsDropped)
}

func TestProcessFrameIgnoresUnwatchedClasses(t *testing.T) {
	engine := testEngine(EngineConfig{})

	frame := &l1frames.Frame{
		Index: 1,
		Width: testFrameWidth,
		Detections: []l1frames.Detection{
			{ClassID: 5, Box: l1frames.BBox{X: 100, Y: 100, W: 40, H: 30}}, // bus: not watched
			carAt(480, 400),
		},
		ROI: fullROI(),
	}
	result := engine.ProcessFrame(frame)

	require.Len(t, result.Tracks, 1)
	assert.Equal(t, l1frames.ClassCar, result.Tracks[0].ClassID)
	assert.Equal(t, uint64(1), engine.Counters().DetectionsIgnored)
}

func TestProcessFrameTrackContinuity(t *testing.T) {
	engine := testEngine(EngineConfig{})

	// Same car drifting a few pixels per frame keeps its identity.
	for i, x := range []float64{480, 477, 474, 471} {
		frame := &l1frames.Frame{
			Index:      int64(i + 1),
			Width:      testFrameWidth,
			Detections: []l1frames.Detection{carAt(x, 400)},
			ROI:        fullROI(),
		}
		result := engine.ProcessFrame(frame)
		require.Len(t, result.Tracks, 1)
		assert.Equal(t, int64(1), result.Tracks[0].TrackID)
	}

	assert.Equal(t, 1, engine.Store().Len())
	track := engine.Store().Get(1)
	require.NotNil(t, track)
	// Three +3px leftward moves after the zero-displacement first frame.
	assert.InDelta(t, 9.0/4.0, track.RollingAverage, 1e-9)
}

func TestProcessFrameTrackOutputShape(t *testing.T) {
	engine := testEngine(EngineConfig{})

	result := engine.ProcessFrame(&l1frames.Frame{
		Index:      7,
		Width:      testFrameWidth,
		Height:     720,
		Segments:   laneSegments(),
		Detections: []l1frames.Detection{carAt(480, 400)},
		ROI:        fullROI(),
	})

	want := []TrackOutput{{
		TrackID:   1,
		ClassID:   l1frames.ClassCar,
		Center:    l1frames.Point{X: 480, Y: 400},
		InROI:     true,
		State:     l5behavior.StateStable,
		Direction: l5behavior.DirectionSteady,
	}}
	if diff := cmp.Diff(want, result.Tracks, cmpopts.EquateApprox(0, 1e-6)); diff != "" {
		t.Errorf("track output mismatch (-want +got):\n%s", diff)
	}
}

// --- alarms through the full stack ---

func TestProcessFrameRaisesDistractedAlarm(t *testing.T) {
	engine := testEngine(EngineConfig{})

	// A car far left of the x=480 centerline, drifting leftward every frame.
	xs := []float64{360, 358, 356, 354}
	var last FrameResult
	for i, x := range xs {
		last = engine.ProcessFrame(&l1frames.Frame{
			Index:      int64(i + 1),
			Width:      testFrameWidth,
			Segments:   laneSegments(),
			Detections: []l1frames.Detection{carAt(x, 400)},
			ROI:        fullROI(),
		})
	}

	require.Len(t, last.Tracks, 1)
	track := last.Tracks[0]
	assert.Greater(t, track.RollingAverage, 0.3)
	assert.Greater(t, track.LaneOffset, 40.0)
	assert.Contains(t, track.Alarms, l5behavior.AlarmDistracted)
	assert.Greater(t, engine.Counters().AlarmsRaised, uint64(0))
}

func TestProcessFrameSuppressesAlarmsOutsideROI(t *testing.T) {
	engine := testEngine(EngineConfig{})

	// ROI covers only the right half; the drifting car is on the left.
	roi := l1frames.Polygon{
		{X: 600, Y: 0}, {X: testFrameWidth, Y: 0},
		{X: testFrameWidth, Y: 720}, {X: 600, Y: 720},
	}

	var last FrameResult
	for i, x := range []float64{360, 358, 356, 354} {
		last = engine.ProcessFrame(&l1frames.Frame{
			Index:      int64(i + 1),
			Width:      testFrameWidth,
			Segments:   laneSegments(),
			Detections: []l1frames.Detection{carAt(x, 400)},
			ROI:        roi,
		})
	}

	require.Len(t, last.Tracks, 1)
	assert.False(t, last.Tracks[0].InROI)
	assert.Empty(t, last.Tracks[0].Alarms)
	assert.Zero(t, engine.Counters().AlarmsRaised)
}

func TestProcessFrameRaisesImpairedAlarm(t *testing.T) {
	engine := testEngine(EngineConfig{})

	// Lateral pattern whose rolling mean flips sign three times:
	// drift left, swing right, swing back, swing right again.
	xs := []float64{400, 390, 380, 370, 400, 430, 460, 430, 400, 370, 400, 430}
	var last FrameResult
	for i, x := range xs {
		last = engine.ProcessFrame(&l1frames.Frame{
			Index:      int64(i + 1),
			Width:      testFrameWidth,
			Detections: []l1frames.Detection{carAt(x, 400)},
			ROI:        fullROI(),
		})
	}

	require.Len(t, last.Tracks, 1)
	track := last.Tracks[0]
	assert.Equal(t, int64(1), track.TrackID, "oscillating car must keep its track")
	assert.GreaterOrEqual(t, track.SignChanges, 3)
	assert.Equal(t, l5behavior.StateLatched, track.State)
	assert.Contains(t, track.Alarms, l5behavior.AlarmImpaired)
}

// --- persistence ---

func TestProcessFramePersistsThroughSink(t *testing.T) {
	sink := &captureSink{}
	engine := testEngine(EngineConfig{Sink: sink})

	for i, x := range []float64{480, 477} {
		engine.ProcessFrame(&l1frames.Frame{
			Index:      int64(i + 1),
			Width:      testFrameWidth,
			Segments:   laneSegments(),
			Detections: []l1frames.Detection{carAt(x, 400)},
			ROI:        fullROI(),
		})
	}

	// One track record and one observation per touched frame.
	require.Len(t, sink.tracks, 2)
	require.Len(t, sink.observations, 2)

	assert.Equal(t, int64(1), sink.tracks[0].TrackID)
	assert.Equal(t, int64(1), sink.tracks[0].FirstFrame)
	assert.Equal(t, int64(2), sink.tracks[1].LastFrame)
	assert.Equal(t, 2, sink.tracks[1].ObservationCount)

	assert.Equal(t, int64(1), sink.observations[0].FrameIndex)
	assert.InDelta(t, 477.0, sink.observations[1].CenterX, 1e-9)
	assert.InDelta(t, 3.0, sink.observations[1].Lateral, 1e-9)
	assert.True(t, sink.observations[1].InROI)
}

func TestProcessFrameWithDatabaseSink(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	schemaPath := filepath.Join("..", "..", "db", "migrations", "0001_initial_schema.up.sql")
	schemaSQL, err := os.ReadFile(schemaPath)
	require.NoError(t, err)
	_, err = db.Exec(string(schemaSQL))
	require.NoError(t, err)

	manager := sqlite.NewAnalysisRunManager(db)
	runID, err := manager.StartRun("test.jsonl", nil)
	require.NoError(t, err)

	engine := testEngine(EngineConfig{
		Sink:       NewDBSink(db),
		RunManager: manager,
	})

	for i, x := range []float64{480, 477, 474} {
		engine.ProcessFrame(&l1frames.Frame{
			Index:      int64(i + 1),
			Width:      testFrameWidth,
			Segments:   laneSegments(),
			Detections: []l1frames.Detection{carAt(x, 400)},
			ROI:        fullROI(),
		})
	}
	require.NoError(t, manager.CompleteRun())

	tracks, err := sqlite.GetTracks(db, runID)
	require.NoError(t, err)
	require.Len(t, tracks, 1)
	assert.Equal(t, 3, tracks[0].ObservationCount)

	observations, err := sqlite.GetTrackObservations(db, runID, tracks[0].TrackID, 0)
	require.NoError(t, err)
	assert.Len(t, observations, 3)

	_, stats, err := sqlite.NewAnalysisRunStore(db).GetRun(runID)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalFrames)
	assert.Equal(t, 3, stats.TotalDetections)
	assert.Equal(t, 1, stats.TotalTracks)
}
