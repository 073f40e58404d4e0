package sqlite

import (
	"database/sql"
	"fmt"
)

// InsertTrack inserts or updates a track summary row.
//
// Uses ON CONFLICT DO UPDATE rather than INSERT OR REPLACE: REPLACE deletes
// the row first, which would cascade-delete the track's observations.
func InsertTrack(db *sql.DB, track *TrackRecord) error {
	query := `
		INSERT INTO roadguard_tracks (
			run_id, track_id, class_id,
			first_frame, last_frame, observation_count,
			rolling_average, sign_changes, drift_state, direction
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, track_id) DO UPDATE SET
			last_frame = excluded.last_frame,
			observation_count = excluded.observation_count,
			rolling_average = excluded.rolling_average,
			sign_changes = excluded.sign_changes,
			drift_state = excluded.drift_state,
			direction = excluded.direction
	`

	_, err := db.Exec(query,
		track.RunID,
		track.TrackID,
		track.ClassID,
		track.FirstFrame,
		track.LastFrame,
		track.ObservationCount,
		track.RollingAverage,
		track.SignChanges,
		track.DriftState,
		track.Direction,
	)
	if err != nil {
		return fmt.Errorf("insert track: %w", err)
	}

	return nil
}

// InsertTrackObservation inserts a per-frame observation row.
func InsertTrackObservation(db *sql.DB, obs *TrackObservation) error {
	query := `
		INSERT OR REPLACE INTO roadguard_track_obs (
			run_id, track_id, frame_index,
			center_x, center_y, lateral, rolling_average,
			bbox_area, lane_offset, in_roi
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := db.Exec(query,
		obs.RunID,
		obs.TrackID,
		obs.FrameIndex,
		obs.CenterX, obs.CenterY,
		obs.Lateral, obs.RollingAverage,
		obs.BBoxArea, obs.LaneOffset,
		boolToInt(obs.InROI),
	)
	if err != nil {
		return fmt.Errorf("insert track observation: %w", err)
	}

	return nil
}

// InsertAlarm records one alarm firing.
func InsertAlarm(db *sql.DB, alarm *AlarmRecord) error {
	query := `
		INSERT INTO roadguard_alarms (run_id, track_id, frame_index, alarm)
		VALUES (?, ?, ?, ?)
	`

	_, err := db.Exec(query, alarm.RunID, alarm.TrackID, alarm.FrameIndex, alarm.Alarm)
	if err != nil {
		return fmt.Errorf("insert alarm: %w", err)
	}

	return nil
}

// GetTracks returns all track summaries for a run ordered by track ID.
func GetTracks(db *sql.DB, runID string) ([]*TrackRecord, error) {
	query := `
		SELECT run_id, track_id, class_id,
			first_frame, last_frame, observation_count,
			rolling_average, sign_changes, drift_state, direction
		FROM roadguard_tracks
		WHERE run_id = ?
		ORDER BY track_id ASC
	`

	rows, err := db.Query(query, runID)
	if err != nil {
		return nil, fmt.Errorf("query tracks: %w", err)
	}
	defer rows.Close()

	var tracks []*TrackRecord
	for rows.Next() {
		track := &TrackRecord{}
		if err := rows.Scan(
			&track.RunID,
			&track.TrackID,
			&track.ClassID,
			&track.FirstFrame,
			&track.LastFrame,
			&track.ObservationCount,
			&track.RollingAverage,
			&track.SignChanges,
			&track.DriftState,
			&track.Direction,
		); err != nil {
			return nil, fmt.Errorf("scan track: %w", err)
		}
		tracks = append(tracks, track)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tracks: %w", err)
	}

	return tracks, nil
}

// GetTrackObservations returns a track's observations in frame order.
func GetTrackObservations(db *sql.DB, runID string, trackID int64, limit int) ([]*TrackObservation, error) {
	if limit <= 0 {
		limit = 1000
	}

	query := `
		SELECT run_id, track_id, frame_index,
			center_x, center_y, lateral, rolling_average,
			bbox_area, lane_offset, in_roi
		FROM roadguard_track_obs
		WHERE run_id = ? AND track_id = ?
		ORDER BY frame_index ASC
		LIMIT ?
	`

	rows, err := db.Query(query, runID, trackID, limit)
	if err != nil {
		return nil, fmt.Errorf("query track observations: %w", err)
	}
	defer rows.Close()

	var observations []*TrackObservation
	for rows.Next() {
		obs := &TrackObservation{}
		var inROI int
		if err := rows.Scan(
			&obs.RunID,
			&obs.TrackID,
			&obs.FrameIndex,
			&obs.CenterX, &obs.CenterY,
			&obs.Lateral, &obs.RollingAverage,
			&obs.BBoxArea, &obs.LaneOffset,
			&inROI,
		); err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		obs.InROI = inROI != 0
		observations = append(observations, obs)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate observations: %w", err)
	}

	return observations, nil
}

// GetAlarms returns a run's alarms in firing order.
func GetAlarms(db *sql.DB, runID string) ([]*AlarmRecord, error) {
	query := `
		SELECT run_id, track_id, frame_index, alarm
		FROM roadguard_alarms
		WHERE run_id = ?
		ORDER BY frame_index ASC, alarm_id ASC
	`

	rows, err := db.Query(query, runID)
	if err != nil {
		return nil, fmt.Errorf("query alarms: %w", err)
	}
	defer rows.Close()

	var alarms []*AlarmRecord
	for rows.Next() {
		alarm := &AlarmRecord{}
		if err := rows.Scan(&alarm.RunID, &alarm.TrackID, &alarm.FrameIndex, &alarm.Alarm); err != nil {
			return nil, fmt.Errorf("scan alarm: %w", err)
		}
		alarms = append(alarms, alarm)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alarms: %w", err)
	}

	return alarms, nil
}

// GetAlarmCounts returns per-label alarm totals for a run.
func GetAlarmCounts(db *sql.DB, runID string) (map[string]int, error) {
	query := `
		SELECT alarm, COUNT(*)
		FROM roadguard_alarms
		WHERE run_id = ?
		GROUP BY alarm
	`

	rows, err := db.Query(query, runID)
	if err != nil {
		return nil, fmt.Errorf("query alarm counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var alarm string
		var n int
		if err := rows.Scan(&alarm, &n); err != nil {
			return nil, fmt.Errorf("scan alarm count: %w", err)
		}
		counts[alarm] = n
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alarm counts: %w", err)
	}

	return counts, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
