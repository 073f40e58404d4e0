package sqlite

import (
	"database/sql"
	"fmt"
	"time"
)

// AnalysisRunStore persists analysis runs.
type AnalysisRunStore struct {
	db *sql.DB
}

// NewAnalysisRunStore creates an AnalysisRunStore backed by the given database.
func NewAnalysisRunStore(db *sql.DB) *AnalysisRunStore {
	return &AnalysisRunStore{db: db}
}

// InsertRun inserts a new run row in "running" status.
func (s *AnalysisRunStore) InsertRun(run *AnalysisRun) error {
	query := `
		INSERT INTO roadguard_runs (run_id, created_at, source_path, params_json, status)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := s.db.Exec(query,
		run.RunID,
		run.CreatedAt.UTC().Format(time.RFC3339Nano),
		run.SourcePath,
		string(run.ParamsJSON),
		run.Status,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	return nil
}

// CompleteRun marks the run complete and writes its final statistics.
func (s *AnalysisRunStore) CompleteRun(runID string, stats *AnalysisStats) error {
	query := `
		UPDATE roadguard_runs SET
			status = 'complete',
			total_frames = ?,
			total_detections = ?,
			total_tracks = ?,
			total_alarms = ?,
			duration_secs = ?
		WHERE run_id = ?
	`

	_, err := s.db.Exec(query,
		stats.TotalFrames,
		stats.TotalDetections,
		stats.TotalTracks,
		stats.TotalAlarms,
		stats.DurationSecs,
		runID,
	)
	if err != nil {
		return fmt.Errorf("complete run: %w", err)
	}

	return nil
}

// UpdateRunStatus sets the run's status and optional error message.
func (s *AnalysisRunStore) UpdateRunStatus(runID, status, errMsg string) error {
	query := `UPDATE roadguard_runs SET status = ?, error_message = ? WHERE run_id = ?`

	_, err := s.db.Exec(query, status, nullString(errMsg), runID)
	if err != nil {
		return fmt.Errorf("update run status: %w", err)
	}

	return nil
}

// GetRun fetches a single run row.
func (s *AnalysisRunStore) GetRun(runID string) (*AnalysisRun, *AnalysisStats, error) {
	query := `
		SELECT run_id, created_at, source_path, params_json, status,
			total_frames, total_detections, total_tracks, total_alarms,
			COALESCE(duration_secs, 0)
		FROM roadguard_runs
		WHERE run_id = ?
	`

	run := &AnalysisRun{}
	stats := &AnalysisStats{}
	var createdAt string
	var paramsJSON sql.NullString

	err := s.db.QueryRow(query, runID).Scan(
		&run.RunID,
		&createdAt,
		&run.SourcePath,
		&paramsJSON,
		&run.Status,
		&stats.TotalFrames,
		&stats.TotalDetections,
		&stats.TotalTracks,
		&stats.TotalAlarms,
		&stats.DurationSecs,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("query run %s: %w", runID, err)
	}

	if t, perr := time.Parse(time.RFC3339Nano, createdAt); perr == nil {
		run.CreatedAt = t
	}
	if paramsJSON.Valid {
		run.ParamsJSON = []byte(paramsJSON.String)
	}

	return run, stats, nil
}

// LatestRunID returns the most recently created run, or an error if the
// table is empty.
func (s *AnalysisRunStore) LatestRunID() (string, error) {
	var runID string
	err := s.db.QueryRow(
		`SELECT run_id FROM roadguard_runs ORDER BY created_at DESC LIMIT 1`,
	).Scan(&runID)
	if err != nil {
		return "", fmt.Errorf("query latest run: %w", err)
	}
	return runID, nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
