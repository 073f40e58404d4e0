package sqlite

import (
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/roadguard-data/roadguard/internal/monitoring"
)

// AnalysisRunManager coordinates run lifecycle and per-run statistics.
// It is safe for concurrent use and provides hooks for the engine.
type AnalysisRunManager struct {
	mu         sync.RWMutex
	store      *AnalysisRunStore
	currentRun *AnalysisRun
	startTime  time.Time

	totalFrames     int
	totalDetections int
	totalAlarms     int
	tracksSeen      map[int64]bool
}

// NewAnalysisRunManager creates a new manager for tracking analysis runs.
func NewAnalysisRunManager(db *sql.DB) *AnalysisRunManager {
	return &AnalysisRunManager{
		store:      NewAnalysisRunStore(db),
		tracksSeen: make(map[int64]bool),
	}
}

// StartRun begins a new analysis run over the given frame source. params is
// serialised to JSON on the run row for later comparison between runs.
// Returns the generated run ID.
func (m *AnalysisRunManager) StartRun(sourcePath string, params interface{}) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	runID := uuid.New().String()

	var paramsJSON []byte
	if params != nil {
		var err error
		paramsJSON, err = json.Marshal(params)
		if err != nil {
			return "", err
		}
	}

	m.currentRun = &AnalysisRun{
		RunID:      runID,
		CreatedAt:  time.Now(),
		SourcePath: sourcePath,
		ParamsJSON: paramsJSON,
		Status:     "running",
	}

	if err := m.store.InsertRun(m.currentRun); err != nil {
		m.currentRun = nil
		return "", err
	}

	m.startTime = time.Now()
	m.totalFrames = 0
	m.totalDetections = 0
	m.totalAlarms = 0
	m.tracksSeen = make(map[int64]bool)

	monitoring.Logf("[AnalysisRunManager] Started run %s for %s", runID, sourcePath)
	return runID, nil
}

// RecordFrame increments the frame count for the current run.
func (m *AnalysisRunManager) RecordFrame() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalFrames++
}

// RecordDetections adds to the detection count for the current run.
func (m *AnalysisRunManager) RecordDetections(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalDetections += count
}

// RecordTrack marks a track as touched by this run. Returns true the first
// time a track ID is seen.
func (m *AnalysisRunManager) RecordTrack(trackID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.currentRun == nil {
		return false
	}
	if m.tracksSeen[trackID] {
		return false
	}
	m.tracksSeen[trackID] = true
	return true
}

// RecordAlarms adds to the alarm count for the current run.
func (m *AnalysisRunManager) RecordAlarms(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalAlarms += count
}

// CompleteRun finalizes the current analysis run with statistics.
func (m *AnalysisRunManager) CompleteRun() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.currentRun == nil {
		return nil
	}

	processingTime := time.Since(m.startTime)

	stats := &AnalysisStats{
		DurationSecs:    processingTime.Seconds(),
		TotalFrames:     m.totalFrames,
		TotalDetections: m.totalDetections,
		TotalTracks:     len(m.tracksSeen),
		TotalAlarms:     m.totalAlarms,
	}

	if err := m.store.CompleteRun(m.currentRun.RunID, stats); err != nil {
		return err
	}

	monitoring.Logf("[AnalysisRunManager] Completed run %s: %d frames, %d detections, %d tracks, %d alarms in %.2fs",
		m.currentRun.RunID, stats.TotalFrames, stats.TotalDetections, stats.TotalTracks, stats.TotalAlarms, stats.DurationSecs)

	m.currentRun = nil
	return nil
}

// FailRun marks the current run as failed with an error message.
func (m *AnalysisRunManager) FailRun(errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.currentRun == nil {
		return nil
	}

	if err := m.store.UpdateRunStatus(m.currentRun.RunID, "failed", errMsg); err != nil {
		return err
	}

	monitoring.Logf("[AnalysisRunManager] Failed run %s: %s", m.currentRun.RunID, errMsg)
	m.currentRun = nil
	return nil
}

// IsRunActive returns true if there's an active analysis run.
func (m *AnalysisRunManager) IsRunActive() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.currentRun != nil
}

// CurrentRunID returns the current run ID, or empty string if no run is active.
func (m *AnalysisRunManager) CurrentRunID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.currentRun == nil {
		return ""
	}
	return m.currentRun.RunID
}
