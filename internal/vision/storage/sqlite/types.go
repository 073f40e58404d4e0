package sqlite

import "time"

// TrackRecord is the persisted summary row for a track, upserted as the
// track accumulates observations.
type TrackRecord struct {
	RunID            string
	TrackID          int64
	ClassID          int
	FirstFrame       int64
	LastFrame        int64
	ObservationCount int
	RollingAverage   float64
	SignChanges      int
	DriftState       string
	Direction        string
}

// TrackObservation is one track's per-frame measurement row.
type TrackObservation struct {
	RunID          string
	TrackID        int64
	FrameIndex     int64
	CenterX        float64
	CenterY        float64
	Lateral        float64
	RollingAverage float64
	BBoxArea       float64
	LaneOffset     float64
	InROI          bool
}

// AlarmRecord is one raised alarm. Alarms are level-triggered, so the same
// label can recur for a track on consecutive frames; each firing gets a row.
type AlarmRecord struct {
	RunID      string
	TrackID    int64
	FrameIndex int64
	Alarm      string
}

// AnalysisRun represents a single replay session over a frame log.
type AnalysisRun struct {
	RunID      string
	CreatedAt  time.Time
	SourcePath string
	ParamsJSON []byte
	Status     string
}

// AnalysisStats summarises a completed run.
type AnalysisStats struct {
	DurationSecs    float64
	TotalFrames     int
	TotalDetections int
	TotalTracks     int
	TotalAlarms     int
}
