package pipeline

import (
	"database/sql"

	"github.com/roadguard-data/roadguard/internal/vision/storage/sqlite"
)

// dbSink is the sqlite-backed PersistenceSink.
type dbSink struct {
	db *sql.DB
}

// NewDBSink returns a PersistenceSink writing directly to the given
// database. The schema must already be migrated (internal/db.MigrateUp).
func NewDBSink(db *sql.DB) PersistenceSink {
	return &dbSink{db: db}
}

func (s *dbSink) PersistTrack(track *sqlite.TrackRecord) error {
	return sqlite.InsertTrack(s.db, track)
}

func (s *dbSink) PersistObservation(obs *sqlite.TrackObservation) error {
	return sqlite.InsertTrackObservation(s.db, obs)
}

func (s *dbSink) PersistAlarm(alarm *sqlite.AlarmRecord) error {
	return sqlite.InsertAlarm(s.db, alarm)
}
