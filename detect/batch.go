package detect

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/loopsmith/loopsync/cue"
)

// DecodeFunc supplies mono samples plus sample rate for a media file.
// The detector never touches containers itself; decoding is the
// caller's collaborator (typically the media package).
type DecodeFunc func(ctx context.Context, path string) ([]float64, int, error)

// FileResult is the outcome of detection on one file. A failed file
// carries Err and empty hit lists; the batch keeps going regardless.
type FileResult struct {
	Path      string  `json:"path"`
	DurationS float64 `json:"duration_s,omitempty"`
	StartHits []Hit   `json:"start_hits,omitempty"`
	EndHits   []Hit   `json:"end_hits,omitempty"`
	Err       string  `json:"error,omitempty"`
	ElapsedS  float64 `json:"elapsed_s,omitempty"`
}

// Failed reports whether this file produced no usable result.
func (r FileResult) Failed() bool { return r.Err != "" }

// Batch runs start and end detection across many files on a bounded
// worker pool. Each file is independent CPU-bound work, so the pool is
// sized to the core count by default.
type Batch struct {
	det     *Detector
	lib     cue.Library
	decode  DecodeFunc
	workers int
}

// NewBatch wires a batch runner. workers <= 0 selects runtime.NumCPU().
func NewBatch(det *Detector, lib cue.Library, decode DecodeFunc, workers int) (*Batch, error) {
	if det == nil {
		return nil, fmt.Errorf("detect: batch needs a detector")
	}
	if decode == nil {
		return nil, fmt.Errorf("detect: batch needs a decode func")
	}
	if len(lib.Starts) == 0 && len(lib.Ends) == 0 {
		return nil, fmt.Errorf("detect: batch needs a non-empty reference library")
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Batch{det: det, lib: lib, decode: decode, workers: workers}, nil
}

// Run detects cues in every file and returns one FileResult per input
// path, in input order. Cancellation is cooperative between files: work
// already started finishes, files not yet started are marked canceled.
// Per-file failures are recorded in the result, never returned.
func (b *Batch) Run(ctx context.Context, paths []string) []FileResult {
	results := make([]FileResult, len(paths))

	g := new(errgroup.Group)
	g.SetLimit(b.workers)
	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			// Abandon the rest; already-running files complete below.
			for j := i; j < len(paths); j++ {
				results[j] = FileResult{Path: paths[j], Err: "canceled: " + err.Error()}
			}
			break
		}
		i, path := i, path
		g.Go(func() error {
			results[i] = b.runOne(ctx, path)
			return nil
		})
	}
	g.Wait()

	return results
}

func (b *Batch) runOne(ctx context.Context, path string) FileResult {
	began := time.Now()
	result := FileResult{Path: path}

	if err := ctx.Err(); err != nil {
		result.Err = "canceled: " + err.Error()
		return result
	}

	samples, rate, err := b.decode(ctx, path)
	if err != nil {
		result.Err = err.Error()
		slog.Warn("detect: file failed, batch continues", "path", path, "error", err)
		return result
	}
	if rate > 0 {
		result.DurationS = float64(len(samples)) / float64(rate)
	}

	result.StartHits = b.det.Detect(samples, rate, b.lib.Starts)
	result.EndHits = b.det.Detect(samples, rate, b.lib.Ends)
	result.ElapsedS = time.Since(began).Seconds()

	slog.Debug("detect: file done",
		"path", path,
		"start_hits", len(result.StartHits),
		"end_hits", len(result.EndHits),
		"elapsed_s", result.ElapsedS,
	)
	return result
}
