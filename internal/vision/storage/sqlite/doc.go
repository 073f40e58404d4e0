// Package sqlite persists engine outputs: track summaries, per-frame
// observations, raised alarms, and analysis runs. It is an adapter behind
// the pipeline's PersistenceSink, not a domain layer; the schema lives in
// internal/db/migrations.
package sqlite
