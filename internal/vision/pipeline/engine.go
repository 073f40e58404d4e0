package pipeline

import (
	"reflect"
	"sync/atomic"

	"github.com/roadguard-data/roadguard/internal/config"
	"github.com/roadguard-data/roadguard/internal/vision/l1frames"
	"github.com/roadguard-data/roadguard/internal/vision/l2fit"
	"github.com/roadguard-data/roadguard/internal/vision/l3lanes"
	"github.com/roadguard-data/roadguard/internal/vision/l4tracks"
	"github.com/roadguard-data/roadguard/internal/vision/l5behavior"
	"github.com/roadguard-data/roadguard/internal/vision/storage/sqlite"
)

// PersistenceSink writes engine outputs (tracks, observations, alarms) to
// storage. It is an adapter — implementations live outside the vision
// layers (e.g. internal/vision/storage/sqlite).
type PersistenceSink interface {
	PersistTrack(track *sqlite.TrackRecord) error
	PersistObservation(obs *sqlite.TrackObservation) error
	PersistAlarm(alarm *sqlite.AlarmRecord) error
}

// LaneRecorder receives each frame's lane fits for offline diagnostics
// (e.g. the monitor plotter). Optional.
type LaneRecorder interface {
	RecordLaneFit(frameIndex int64, state l3lanes.LaneState)
}

// isNilInterface checks if an interface value is nil or contains a nil
// pointer. This handles the Go interface nil pitfall where interface{} !=
// nil but the underlying value is nil.
func isNilInterface(i interface{}) bool {
	if i == nil {
		return true
	}
	v := reflect.ValueOf(i)
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.Interface:
		return v.IsNil()
	}
	return false
}

// TrackOutput is one touched track's per-frame result.
type TrackOutput struct {
	TrackID        int64
	ClassID        int
	Center         l1frames.Point
	Lateral        float64
	RollingAverage float64
	LaneOffset     float64
	InROI          bool
	SignChanges    int
	State          l5behavior.State
	Direction      l5behavior.Direction
	Alarms         []string
}

// FrameResult is the output of one frame's pass through the engine.
type FrameResult struct {
	FrameIndex int64
	Center     *l2fit.PolynomialFit
	Left       *l2fit.PolynomialFit
	Right      *l2fit.PolynomialFit
	Tracks     []TrackOutput
}

// Counters is a snapshot of the engine's accumulated statistics.
type Counters struct {
	FramesProcessed   uint64
	SegmentsDropped   uint64
	DetectionsDropped uint64
	DetectionsIgnored uint64
	AlarmsRaised      uint64
}

// EngineConfig holds the engine's dependencies. Only Tuning is required.
type EngineConfig struct {
	Tuning     *config.TuningConfig
	Sink       PersistenceSink             // Optional: persistence adapter
	RunManager *sqlite.AnalysisRunManager  // Optional: analysis-run statistics
	Recorder   LaneRecorder                // Optional: lane-fit diagnostics
	Strategy   l4tracks.AssociationStrategy // Optional: overrides greedy first-match
}

// Engine owns all cross-frame state and processes frames in arrival order.
// Not safe for concurrent ProcessFrame calls; one goroutine drives it.
type Engine struct {
	cfg EngineConfig

	estimator *l3lanes.Estimator
	store     *l4tracks.Store
	machine   *l5behavior.Machine
	watch     map[int]bool

	// Per-track bookkeeping the layers don't carry themselves.
	meta map[int64]*trackMeta

	framesProcessed   atomic.Uint64
	segmentsDropped   atomic.Uint64
	detectionsDropped atomic.Uint64
	detectionsIgnored atomic.Uint64
	alarmsRaised      atomic.Uint64
}

type trackMeta struct {
	firstFrame   int64
	observations int
}

// NewEngine assembles the layer stack from one tuning config.
func NewEngine(cfg EngineConfig) *Engine {
	tuning := cfg.Tuning
	if tuning == nil {
		tuning = config.MustLoadDefaultConfig()
	}

	fitter := l2fit.NewFitter(l2fit.FitterConfigFromTuning(tuning))
	estimator := l3lanes.NewEstimator(l3lanes.EstimatorConfigFromTuning(tuning), fitter)

	storeCfg := l4tracks.StoreConfigFromTuning(tuning)
	var store *l4tracks.Store
	if cfg.Strategy != nil {
		store = l4tracks.NewStoreWithStrategy(storeCfg, cfg.Strategy)
	} else {
		store = l4tracks.NewStore(storeCfg)
	}

	watch := make(map[int]bool)
	for _, class := range tuning.GetWatchClasses() {
		watch[class] = true
	}

	return &Engine{
		cfg:       cfg,
		estimator: estimator,
		store:     store,
		machine:   l5behavior.NewMachine(l5behavior.MachineConfigFromTuning(tuning)),
		watch:     watch,
		meta:      make(map[int64]*trackMeta),
	}
}

// Store exposes the track store for inspection (reports, tests).
func (e *Engine) Store() *l4tracks.Store {
	return e.store
}

// Reset clears all cross-frame state, as at the start of a new stream.
func (e *Engine) Reset() {
	e.estimator.Reset()
	e.store = l4tracks.NewStore(e.store.Config)
	e.meta = make(map[int64]*trackMeta)
}

// Counters returns a snapshot of the engine's accumulated statistics.
func (e *Engine) Counters() Counters {
	return Counters{
		FramesProcessed:   e.framesProcessed.Load(),
		SegmentsDropped:   e.segmentsDropped.Load(),
		DetectionsDropped: e.detectionsDropped.Load(),
		DetectionsIgnored: e.detectionsIgnored.Load(),
		AlarmsRaised:      e.alarmsRaised.Load(),
	}
}

// ProcessFrame runs one frame through the full stack: validation, lane
// estimation, association, behavioral analysis, and persistence. Malformed
// items are skipped individually; the frame always completes.
func (e *Engine) ProcessFrame(frame *l1frames.Frame) FrameResult {
	e.framesProcessed.Add(1)
	if e.cfg.RunManager != nil {
		e.cfg.RunManager.RecordFrame()
	}

	result := FrameResult{FrameIndex: frame.Index}

	// Stage 1: validate segments. A bad segment drops, the rest proceed.
	segments := make([]l1frames.LineSegment, 0, len(frame.Segments))
	for i, seg := range frame.Segments {
		if err := l1frames.ValidateSegment(seg); err != nil {
			e.segmentsDropped.Add(1)
			opsf("[Engine] Frame %d: dropping segment %d: %v", frame.Index, i, err)
			continue
		}
		segments = append(segments, seg)
	}

	// Stage 2: lane estimate.
	result.Center = e.estimator.Estimate(segments, frame.Width)
	laneState := e.estimator.State()
	result.Left = laneState.Left
	result.Right = laneState.Right
	if result.Center == nil {
		diagf("[Engine] Frame %d: no centerline available", frame.Index)
	}
	if !isNilInterface(e.cfg.Recorder) {
		e.cfg.Recorder.RecordLaneFit(frame.Index, laneState)
	}

	runID := ""
	if e.cfg.RunManager != nil {
		runID = e.cfg.RunManager.CurrentRunID()
	}

	// Stage 3: associate, update, and analyse each detection in arrival
	// order. Order matters: greedy association makes results depend on it.
	watched := 0
	for i, det := range frame.Detections {
		if err := l1frames.ValidateDetection(det); err != nil {
			e.detectionsDropped.Add(1)
			opsf("[Engine] Frame %d: dropping detection %d: %v", frame.Index, i, err)
			continue
		}
		if !e.watch[det.ClassID] {
			e.detectionsIgnored.Add(1)
			tracef("[Engine] Frame %d: ignoring class %d detection", frame.Index, det.ClassID)
			continue
		}
		watched++

		track := e.store.Associate(det)
		e.store.Update(track, det)
		e.machine.Step(track)

		meta := e.meta[track.ID]
		if meta == nil {
			meta = &trackMeta{firstFrame: frame.Index}
			e.meta[track.ID] = meta
			if e.cfg.RunManager != nil {
				e.cfg.RunManager.RecordTrack(track.ID)
			}
		}
		meta.observations++

		center := det.Box.Center()
		laneOffset := l5behavior.LaneOffset(result.Center, center)
		inROI := frame.ROI.Contains(center)
		alarms := e.machine.Alarms(track, laneOffset, inROI)

		output := TrackOutput{
			TrackID:        track.ID,
			ClassID:        track.ClassID,
			Center:         center,
			Lateral:        lastOrZero(track.LateralHistory),
			RollingAverage: track.RollingAverage,
			LaneOffset:     laneOffset,
			InROI:          inROI,
			SignChanges:    track.SignChanges,
			State:          e.machine.StateOf(track),
			Direction:      e.machine.DirectionOf(track),
			Alarms:         alarms,
		}
		result.Tracks = append(result.Tracks, output)

		if len(alarms) > 0 {
			e.alarmsRaised.Add(uint64(len(alarms)))
			if e.cfg.RunManager != nil {
				e.cfg.RunManager.RecordAlarms(len(alarms))
			}
			for _, alarm := range alarms {
				diagf("[Engine] Frame %d: track %d: %s", frame.Index, track.ID, alarm)
			}
		}

		e.persist(runID, frame.Index, track, meta, output)
	}

	if e.cfg.RunManager != nil {
		e.cfg.RunManager.RecordDetections(watched)
	}
	tracef("[Engine] Frame %d: %d segments, %d watched detections, %d tracks touched",
		frame.Index, len(segments), watched, len(result.Tracks))

	return result
}

func (e *Engine) persist(runID string, frameIndex int64, track *l4tracks.Track, meta *trackMeta, output TrackOutput) {
	if isNilInterface(e.cfg.Sink) {
		return
	}

	record := &sqlite.TrackRecord{
		RunID:            runID,
		TrackID:          track.ID,
		ClassID:          track.ClassID,
		FirstFrame:       meta.firstFrame,
		LastFrame:        frameIndex,
		ObservationCount: meta.observations,
		RollingAverage:   track.RollingAverage,
		SignChanges:      track.SignChanges,
		DriftState:       string(output.State),
		Direction:        string(output.Direction),
	}
	if err := e.cfg.Sink.PersistTrack(record); err != nil {
		opsf("[Engine] Failed to persist track %d: %v", track.ID, err)
	}

	obs := &sqlite.TrackObservation{
		RunID:          runID,
		TrackID:        track.ID,
		FrameIndex:     frameIndex,
		CenterX:        output.Center.X,
		CenterY:        output.Center.Y,
		Lateral:        output.Lateral,
		RollingAverage: output.RollingAverage,
		BBoxArea:       lastOrZero(track.AreaHistory),
		LaneOffset:     output.LaneOffset,
		InROI:          output.InROI,
	}
	if err := e.cfg.Sink.PersistObservation(obs); err != nil {
		opsf("[Engine] Failed to persist observation for track %d: %v", track.ID, err)
	}

	for _, alarm := range output.Alarms {
		record := &sqlite.AlarmRecord{
			RunID:      runID,
			TrackID:    track.ID,
			FrameIndex: frameIndex,
			Alarm:      alarm,
		}
		if err := e.cfg.Sink.PersistAlarm(record); err != nil {
			opsf("[Engine] Failed to persist alarm for track %d: %v", track.ID, err)
		}
	}
}

func lastOrZero(vs []float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	return vs[len(vs)-1]
}
