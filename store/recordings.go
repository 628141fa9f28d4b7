package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/loopsmith/loopsync/session"
)

// SaveRecording persists one finalized recording. Saving an id twice
// replaces the earlier row, so replaying a listener backlog is safe.
func (s *Store) SaveRecording(rec session.FinalizedRecording) error {
	if rec.ID == "" {
		return fmt.Errorf("store: recording has no id")
	}
	snap, err := json.Marshal(rec.Snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	var loopStart, loopEnd any
	if rec.Loop.StartS != nil {
		loopStart = *rec.Loop.StartS
	}
	if rec.Loop.EndS != nil {
		loopEnd = *rec.Loop.EndS
	}

	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO recordings
			(id, project, startedAt, stoppedAt, durationS, zeroDuration,
			 snapshot, loopStartS, loopEndS, takesRecorded, multipleTakes, createdAt)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.Project, timeToUnix(rec.StartedAt), timeToUnix(rec.StoppedAt),
		rec.DurationS, rec.ZeroDuration, string(snap), loopStart, loopEnd,
		rec.Loop.TakesRecorded, rec.Loop.MultipleTakes, timeToUnix(time.Now()))
	if err != nil {
		return fmt.Errorf("insert recording: %w", err)
	}
	return nil
}

// Recordings returns a project's recordings, newest first. limit <= 0
// means no limit; an empty project matches every project.
func (s *Store) Recordings(project string, limit int) ([]session.FinalizedRecording, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(`
		SELECT id, project, startedAt, stoppedAt, durationS, zeroDuration,
		       snapshot, loopStartS, loopEndS, takesRecorded, multipleTakes
		FROM recordings
		WHERE (? = '' OR project = ?)
		ORDER BY startedAt DESC
		LIMIT ?
	`, project, project, limit)
	if err != nil {
		return nil, fmt.Errorf("query recordings: %w", err)
	}
	defer rows.Close()

	var recs []session.FinalizedRecording
	for rows.Next() {
		rec, err := scanRecording(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// RecordingByID returns one recording, or nil when the id is unknown.
func (s *Store) RecordingByID(id string) (*session.FinalizedRecording, error) {
	row := s.db.QueryRow(`
		SELECT id, project, startedAt, stoppedAt, durationS, zeroDuration,
		       snapshot, loopStartS, loopEndS, takesRecorded, multipleTakes
		FROM recordings
		WHERE id = ?
	`, id)

	rec, err := scanRecording(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// LatestRecording returns a project's most recent recording, or nil
// when the project has none. An empty project matches every project.
func (s *Store) LatestRecording(project string) (*session.FinalizedRecording, error) {
	row := s.db.QueryRow(`
		SELECT id, project, startedAt, stoppedAt, durationS, zeroDuration,
		       snapshot, loopStartS, loopEndS, takesRecorded, multipleTakes
		FROM recordings
		WHERE (? = '' OR project = ?)
		ORDER BY startedAt DESC
		LIMIT 1
	`, project, project)

	rec, err := scanRecording(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecording(row rowScanner) (session.FinalizedRecording, error) {
	var (
		rec                  session.FinalizedRecording
		startedAt, stoppedAt float64
		snap                 string
		loopStart, loopEnd   sql.NullFloat64
	)
	err := row.Scan(&rec.ID, &rec.Project, &startedAt, &stoppedAt,
		&rec.DurationS, &rec.ZeroDuration, &snap,
		&loopStart, &loopEnd, &rec.Loop.TakesRecorded, &rec.Loop.MultipleTakes)
	if err == sql.ErrNoRows {
		return rec, err
	}
	if err != nil {
		return rec, fmt.Errorf("scan recording: %w", err)
	}

	rec.StartedAt = timeFromUnix(startedAt)
	rec.StoppedAt = timeFromUnix(stoppedAt)
	if err := json.Unmarshal([]byte(snap), &rec.Snapshot); err != nil {
		return rec, fmt.Errorf("decode snapshot for %s: %w", rec.ID, err)
	}
	if loopStart.Valid {
		v := loopStart.Float64
		rec.Loop.StartS = &v
	}
	if loopEnd.Valid {
		v := loopEnd.Float64
		rec.Loop.EndS = &v
	}
	return rec, nil
}
