package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/loopsmith/loopsync/detect"
	"github.com/loopsmith/loopsync/segment"
	"github.com/loopsmith/loopsync/session"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "loopsync.sqlite"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func fp(v float64) *float64 { return &v }

func sampleRecording(id string, startedAt time.Time) session.FinalizedRecording {
	return session.FinalizedRecording{
		ID:        id,
		Project:   "garage",
		StartedAt: startedAt,
		StoppedAt: startedAt.Add(10500 * time.Millisecond),
		DurationS: 10.5,
		Snapshot: session.TransportSnapshot{
			RecordMode:      true,
			BPM:             120,
			TSNum:           4,
			TSDen:           4,
			LoopLengthBeats: 8,
			ArmedTracks:     []string{"Guitar", "Vox"},
			At:              startedAt,
		},
		Loop: session.LoopTakeBounds{
			StartS:        fp(4.0),
			EndS:          fp(8.0),
			TakesRecorded: true,
			MultipleTakes: true,
		},
	}
}

func TestStore_RecordingRoundTrip(t *testing.T) {
	s := newTestStore(t)
	start := time.Date(2026, time.March, 14, 10, 0, 0, 0, time.UTC)

	want := sampleRecording("rec-1", start)
	if err := s.SaveRecording(want); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := s.RecordingByID("rec-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got == nil {
		t.Fatal("recording not found after save")
	}

	if got.Project != "garage" || got.DurationS != 10.5 || got.ZeroDuration {
		t.Errorf("fields = %+v", got)
	}
	if d := got.StartedAt.Sub(want.StartedAt); d < -time.Millisecond || d > time.Millisecond {
		t.Errorf("startedAt drifted by %v", d)
	}
	if got.Snapshot.BPM != 120 || len(got.Snapshot.ArmedTracks) != 2 {
		t.Errorf("snapshot = %+v", got.Snapshot)
	}
	if got.Loop.StartS == nil || *got.Loop.StartS != 4.0 || !got.Loop.MultipleTakes {
		t.Errorf("loop = %+v", got.Loop)
	}
}

func TestStore_SaveSameIDReplaces(t *testing.T) {
	s := newTestStore(t)
	start := time.Now()

	rec := sampleRecording("rec-1", start)
	if err := s.SaveRecording(rec); err != nil {
		t.Fatal(err)
	}
	rec.DurationS = 99
	if err := s.SaveRecording(rec); err != nil {
		t.Fatal(err)
	}

	recs, err := s.Recordings("garage", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || recs[0].DurationS != 99 {
		t.Errorf("recordings = %+v, want one replaced row", recs)
	}
}

func TestStore_SaveRejectsMissingID(t *testing.T) {
	s := newTestStore(t)
	if err := s.SaveRecording(session.FinalizedRecording{}); err == nil {
		t.Error("recording without id accepted")
	}
}

func TestStore_RecordingsNewestFirst(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2026, time.March, 14, 10, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		rec := sampleRecording(id, base.Add(time.Duration(i)*time.Hour))
		if err := s.SaveRecording(rec); err != nil {
			t.Fatal(err)
		}
	}

	recs, err := s.Recordings("garage", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 3 || recs[0].ID != "c" || recs[2].ID != "a" {
		t.Errorf("order = %v", ids(recs))
	}

	limited, err := s.Recordings("garage", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 2 || limited[0].ID != "c" {
		t.Errorf("limited = %v", ids(limited))
	}

	latest, err := s.LatestRecording("garage")
	if err != nil {
		t.Fatal(err)
	}
	if latest == nil || latest.ID != "c" {
		t.Errorf("latest = %+v", latest)
	}
}

func ids(recs []session.FinalizedRecording) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.ID
	}
	return out
}

func TestStore_EmptyProjectMatchesAll(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2026, time.March, 14, 10, 0, 0, 0, time.UTC)

	first := sampleRecording("a", base)
	second := sampleRecording("b", base.Add(time.Hour))
	second.Project = "attic"
	if err := s.SaveRecording(first); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveRecording(second); err != nil {
		t.Fatal(err)
	}

	recs, err := s.Recordings("", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 {
		t.Errorf("all projects = %v", ids(recs))
	}

	latest, err := s.LatestRecording("")
	if err != nil {
		t.Fatal(err)
	}
	if latest == nil || latest.ID != "b" {
		t.Errorf("latest across projects = %+v", latest)
	}

	scoped, err := s.Recordings("garage", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(scoped) != 1 || scoped[0].ID != "a" {
		t.Errorf("scoped = %v", ids(scoped))
	}
}

func TestStore_MissingRowsComeBackNil(t *testing.T) {
	s := newTestStore(t)

	if rec, err := s.RecordingByID("ghost"); err != nil || rec != nil {
		t.Errorf("byID = %+v, %v", rec, err)
	}
	if rec, err := s.LatestRecording("ghost"); err != nil || rec != nil {
		t.Errorf("latest = %+v, %v", rec, err)
	}
	if run, err := s.RunByID(99); err != nil || run != nil {
		t.Errorf("run = %+v, %v", run, err)
	}
	if run, err := s.LatestRun("ghost"); err != nil || run != nil {
		t.Errorf("latest run = %+v, %v", run, err)
	}
}

func TestStore_RunRoundTrip(t *testing.T) {
	s := newTestStore(t)
	started := time.Date(2026, time.March, 14, 12, 0, 0, 0, time.UTC)

	files := []RunFile{
		{
			Result: detect.FileResult{
				Path:      "cam_a.mp4",
				DurationS: 93.4,
				StartHits: []detect.Hit{{TimeS: 1.25, Score: 0.91, RefID: "start"}},
				EndHits:   []detect.Hit{{TimeS: 60.5, Score: 0.88, RefID: "end_0002"}},
				ElapsedS:  0.8,
			},
			Segments: []segment.Segment{
				{Index: 0, StartTimeS: 1.25, EndTimeS: fp(60.5), DurationS: fp(59.25)},
				{Index: 1, StartTimeS: 80.0, EdgeCase: segment.EdgeMissingEnd},
			},
		},
		{
			Result: detect.FileResult{Path: "broken.mov", Err: "decode failed"},
		},
	}

	runID, err := s.SaveRun("garage", started, files)
	if err != nil {
		t.Fatalf("save run: %v", err)
	}

	run, err := s.RunByID(runID)
	if err != nil {
		t.Fatalf("load run: %v", err)
	}
	if run == nil {
		t.Fatal("run not found after save")
	}
	if run.Project != "garage" || len(run.Files) != 2 {
		t.Fatalf("run = %+v", run)
	}

	ok := run.Files[0]
	if ok.Result.Path != "cam_a.mp4" || len(ok.Result.StartHits) != 1 || len(ok.Result.EndHits) != 1 {
		t.Errorf("file 0 = %+v", ok.Result)
	}
	if h := ok.Result.StartHits[0]; h.TimeS != 1.25 || h.Score != 0.91 || h.RefID != "start" {
		t.Errorf("start hit = %+v", h)
	}
	if len(ok.Segments) != 2 {
		t.Fatalf("segments = %+v", ok.Segments)
	}
	if seg := ok.Segments[0]; seg.EndTimeS == nil || *seg.EndTimeS != 60.5 || *seg.DurationS != 59.25 {
		t.Errorf("segment 0 = %+v", seg)
	}
	if seg := ok.Segments[1]; seg.EndTimeS != nil || seg.EdgeCase != segment.EdgeMissingEnd {
		t.Errorf("segment 1 = %+v", seg)
	}

	bad := run.Files[1]
	if !bad.Result.Failed() || bad.Result.Err != "decode failed" {
		t.Errorf("file 1 = %+v", bad.Result)
	}
	if len(bad.Segments) != 0 {
		t.Errorf("failed file has segments: %+v", bad.Segments)
	}
}

func TestStore_LatestRunPicksNewest(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2026, time.March, 14, 12, 0, 0, 0, time.UTC)

	first, err := s.SaveRun("garage", base, nil)
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.SaveRun("garage", base.Add(time.Hour), nil)
	if err != nil {
		t.Fatal(err)
	}
	if first == second {
		t.Fatal("run ids collided")
	}

	run, err := s.LatestRun("garage")
	if err != nil {
		t.Fatal(err)
	}
	if run == nil || run.ID != second {
		t.Errorf("latest = %+v, want run %d", run, second)
	}
}

func TestStore_InMemory(t *testing.T) {
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	if err := s.SaveRecording(sampleRecording("rec-1", time.Now())); err != nil {
		t.Fatal(err)
	}
}
