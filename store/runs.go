package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/loopsmith/loopsync/detect"
	"github.com/loopsmith/loopsync/segment"
)

// RunFile pairs one file's detection result with the segments built
// from its hits.
type RunFile struct {
	Result   detect.FileResult `json:"result"`
	Segments []segment.Segment `json:"segments,omitempty"`
}

// Run is one stored detection run across a set of files.
type Run struct {
	ID        int64     `json:"id"`
	Project   string    `json:"project,omitempty"`
	StartedAt time.Time `json:"started_at"`
	Files     []RunFile `json:"files"`
}

// SaveRun persists a whole detection run atomically and returns its id.
func (s *Store) SaveRun(project string, startedAt time.Time, files []RunFile) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin run transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		INSERT INTO detection_runs (project, startedAt) VALUES (?, ?)
	`, project, timeToUnix(startedAt))
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("run id: %w", err)
	}

	for _, f := range files {
		fres, err := tx.Exec(`
			INSERT INTO file_results (runId, path, durationS, error, elapsedS)
			VALUES (?, ?, ?, ?, ?)
		`, runID, f.Result.Path, f.Result.DurationS, f.Result.Err, f.Result.ElapsedS)
		if err != nil {
			return 0, fmt.Errorf("insert file result %s: %w", f.Result.Path, err)
		}
		fileID, err := fres.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("file result id: %w", err)
		}

		if err := insertHits(tx, fileID, "start", f.Result.StartHits); err != nil {
			return 0, err
		}
		if err := insertHits(tx, fileID, "end", f.Result.EndHits); err != nil {
			return 0, err
		}

		for _, seg := range f.Segments {
			var endS, durS any
			if seg.EndTimeS != nil {
				endS = *seg.EndTimeS
			}
			if seg.DurationS != nil {
				durS = *seg.DurationS
			}
			_, err := tx.Exec(`
				INSERT INTO segments (fileId, idx, startTimeS, endTimeS, durationS, edgeCase)
				VALUES (?, ?, ?, ?, ?, ?)
			`, fileID, seg.Index, seg.StartTimeS, endS, durS, seg.EdgeCase)
			if err != nil {
				return 0, fmt.Errorf("insert segment %d of %s: %w", seg.Index, f.Result.Path, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit run: %w", err)
	}
	return runID, nil
}

func insertHits(tx *sql.Tx, fileID int64, kind string, hits []detect.Hit) error {
	for _, h := range hits {
		_, err := tx.Exec(`
			INSERT INTO hits (fileId, kind, timeS, score, refId)
			VALUES (?, ?, ?, ?, ?)
		`, fileID, kind, h.TimeS, h.Score, h.RefID)
		if err != nil {
			return fmt.Errorf("insert %s hit: %w", kind, err)
		}
	}
	return nil
}

// RunByID loads one run with all its files, hits and segments, or nil
// when the id is unknown.
func (s *Store) RunByID(id int64) (*Run, error) {
	row := s.db.QueryRow(`
		SELECT id, project, startedAt FROM detection_runs WHERE id = ?
	`, id)
	return s.loadRun(row)
}

// LatestRun returns a project's most recent run, or nil when the
// project has none. An empty project matches every project.
func (s *Store) LatestRun(project string) (*Run, error) {
	row := s.db.QueryRow(`
		SELECT id, project, startedAt
		FROM detection_runs
		WHERE (? = '' OR project = ?)
		ORDER BY startedAt DESC, id DESC
		LIMIT 1
	`, project, project)
	return s.loadRun(row)
}

func (s *Store) loadRun(row rowScanner) (*Run, error) {
	var run Run
	var startedAt float64
	err := row.Scan(&run.ID, &run.Project, &startedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}
	run.StartedAt = timeFromUnix(startedAt)

	rows, err := s.db.Query(`
		SELECT id, path, durationS, error, elapsedS
		FROM file_results
		WHERE runId = ?
		ORDER BY id ASC
	`, run.ID)
	if err != nil {
		return nil, fmt.Errorf("query file results: %w", err)
	}
	defer rows.Close()

	var fileIDs []int64
	for rows.Next() {
		var (
			fileID int64
			rf     RunFile
		)
		if err := rows.Scan(&fileID, &rf.Result.Path, &rf.Result.DurationS,
			&rf.Result.Err, &rf.Result.ElapsedS); err != nil {
			return nil, fmt.Errorf("scan file result: %w", err)
		}
		run.Files = append(run.Files, rf)
		fileIDs = append(fileIDs, fileID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, fileID := range fileIDs {
		f := &run.Files[i]
		if f.Result.StartHits, err = s.hitsFor(fileID, "start"); err != nil {
			return nil, err
		}
		if f.Result.EndHits, err = s.hitsFor(fileID, "end"); err != nil {
			return nil, err
		}
		if f.Segments, err = s.segmentsFor(fileID); err != nil {
			return nil, err
		}
	}
	return &run, nil
}

func (s *Store) hitsFor(fileID int64, kind string) ([]detect.Hit, error) {
	rows, err := s.db.Query(`
		SELECT timeS, score, refId
		FROM hits
		WHERE fileId = ? AND kind = ?
		ORDER BY timeS ASC
	`, fileID, kind)
	if err != nil {
		return nil, fmt.Errorf("query %s hits: %w", kind, err)
	}
	defer rows.Close()

	var hits []detect.Hit
	for rows.Next() {
		var h detect.Hit
		if err := rows.Scan(&h.TimeS, &h.Score, &h.RefID); err != nil {
			return nil, fmt.Errorf("scan hit: %w", err)
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

func (s *Store) segmentsFor(fileID int64) ([]segment.Segment, error) {
	rows, err := s.db.Query(`
		SELECT idx, startTimeS, endTimeS, durationS, edgeCase
		FROM segments
		WHERE fileId = ?
		ORDER BY idx ASC
	`, fileID)
	if err != nil {
		return nil, fmt.Errorf("query segments: %w", err)
	}
	defer rows.Close()

	var segs []segment.Segment
	for rows.Next() {
		var (
			seg        segment.Segment
			endS, durS sql.NullFloat64
		)
		if err := rows.Scan(&seg.Index, &seg.StartTimeS, &endS, &durS, &seg.EdgeCase); err != nil {
			return nil, fmt.Errorf("scan segment: %w", err)
		}
		if endS.Valid {
			v := endS.Float64
			seg.EndTimeS = &v
		}
		if durS.Valid {
			v := durS.Float64
			seg.DurationS = &v
		}
		segs = append(segs, seg)
	}
	return segs, rows.Err()
}
