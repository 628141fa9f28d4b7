package detect

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/loopsmith/loopsync/cue"
)

// fakeDecode serves canned signals per path and fails on demand.
func fakeDecode(signals map[string][]float64) DecodeFunc {
	return func(_ context.Context, path string) ([]float64, int, error) {
		s, ok := signals[path]
		if !ok {
			return nil, 0, errors.New("decode: no such file")
		}
		return s, testRate, nil
	}
}

func TestBatch_Run_PerFileFailureDoesNotBlockBatch(t *testing.T) {
	det := newTestDetector(t, nil)
	ref := testRef("start")
	lib := cue.Library{Starts: []cue.Waveform{ref}}

	good := embed(ref, 5, map[float64]float64{1.0: 1.0})
	decode := fakeDecode(map[string][]float64{
		"a.mov": good,
		"c.mov": good,
	})

	batch, err := NewBatch(det, lib, decode, 2)
	if err != nil {
		t.Fatalf("NewBatch failed: %v", err)
	}

	results := batch.Run(context.Background(), []string{"a.mov", "b.mov", "c.mov"})
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}

	if results[0].Path != "a.mov" || results[1].Path != "b.mov" || results[2].Path != "c.mov" {
		t.Errorf("result order does not match input order: %+v", results)
	}
	if results[0].Failed() || len(results[0].StartHits) != 1 {
		t.Errorf("a.mov: %+v, want one start hit", results[0])
	}
	if !results[1].Failed() {
		t.Errorf("b.mov succeeded unexpectedly: %+v", results[1])
	}
	if results[2].Failed() || len(results[2].StartHits) != 1 {
		t.Errorf("c.mov: %+v, want one start hit", results[2])
	}
}

func TestBatch_Run_CanceledBeforeStart(t *testing.T) {
	det := newTestDetector(t, nil)
	ref := testRef("start")
	lib := cue.Library{Starts: []cue.Waveform{ref}}
	batch, err := NewBatch(det, lib, fakeDecode(nil), 1)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := batch.Run(ctx, []string{"a.mov", "b.mov"})
	for _, r := range results {
		if !strings.HasPrefix(r.Err, "canceled") {
			t.Errorf("%s: err = %q, want canceled", r.Path, r.Err)
		}
	}
}

func TestBatch_Run_CancelAbandonsRemainingFiles(t *testing.T) {
	det := newTestDetector(t, nil)
	ref := testRef("start")
	lib := cue.Library{Starts: []cue.Waveform{ref}}

	ctx, cancel := context.WithCancel(context.Background())
	good := embed(ref, 3, map[float64]float64{1.0: 1.0})
	decode := func(_ context.Context, path string) ([]float64, int, error) {
		// First decode pulls the plug; the in-flight file still finishes.
		cancel()
		return good, testRate, nil
	}

	batch, err := NewBatch(det, lib, decode, 1)
	if err != nil {
		t.Fatal(err)
	}

	results := batch.Run(ctx, []string{"a.mov", "b.mov", "c.mov"})
	if results[0].Failed() {
		t.Errorf("in-flight file should finish: %+v", results[0])
	}
	for _, r := range results[1:] {
		if !strings.HasPrefix(r.Err, "canceled") {
			t.Errorf("%s: err = %q, want canceled after cancellation", r.Path, r.Err)
		}
	}
}

func TestNewBatch_Validation(t *testing.T) {
	det := newTestDetector(t, nil)
	lib := cue.Library{Starts: []cue.Waveform{testRef("start")}}
	decode := fakeDecode(nil)

	if _, err := NewBatch(nil, lib, decode, 1); err == nil {
		t.Error("nil detector accepted")
	}
	if _, err := NewBatch(det, cue.Library{}, decode, 1); err == nil {
		t.Error("empty library accepted")
	}
	if _, err := NewBatch(det, lib, nil, 1); err == nil {
		t.Error("nil decode accepted")
	}
	if b, err := NewBatch(det, lib, decode, 0); err != nil || b.workers < 1 {
		t.Errorf("default workers: b=%+v err=%v", b, err)
	}
}
