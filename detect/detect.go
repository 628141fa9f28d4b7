package detect

import (
	"fmt"
	"math"
	"sort"

	"github.com/loopsmith/loopsync/cue"
	"github.com/loopsmith/loopsync/detect/internal/xcorr"
)

const (
	// absentFloor abandons a reference whose best correlation never
	// reaches it: the cue is simply not in this recording.
	absentFloor = 0.01

	// userAnchor scales the configured threshold before it competes
	// with the per-take peak anchor.
	userAnchor = 0.9

	// peakAnchor scales the strongest correlation of this take into a
	// floor for further picks, so a loud clean take does not admit its
	// own noise floor as hits.
	peakAnchor = 0.55
)

// Hit is one detected cue occurrence. TimeS is the offset at which the
// reference begins inside the recording.
type Hit struct {
	TimeS float64 `json:"time_s"`
	Score float64 `json:"score"`
	RefID string  `json:"ref_id"`
}

// Config tunes the detector.
type Config struct {
	// Threshold is the user correlation threshold in (0, 1]. The
	// effective pick threshold is max(Threshold*0.9, maxCorr*0.55).
	Threshold float64

	// MinGapS is the minimum spacing between two hits of the same kind,
	// in seconds.
	MinGapS float64

	// DedupTolS merges near-simultaneous hits from different references
	// of the same kind, keeping the earliest.
	DedupTolS float64

	// BandPass enables the band-pass pre-filter.
	BandPass bool

	// BandLowHz/BandHighHz bound the pass band.
	BandLowHz  float64
	BandHighHz float64
}

// DefaultConfig returns the standard detector tuning.
func DefaultConfig() Config {
	return Config{
		Threshold:  0.20,
		MinGapS:    1.0,
		DedupTolS:  0.1,
		BandPass:   true,
		BandLowHz:  800,
		BandHighHz: 3500,
	}
}

// Validate checks the configuration, returning the first problem found.
func (c Config) Validate() error {
	if c.Threshold <= 0 || c.Threshold > 1 {
		return fmt.Errorf("detect: threshold %f outside (0, 1]", c.Threshold)
	}
	if c.MinGapS <= 0 {
		return fmt.Errorf("detect: min gap %f must be positive", c.MinGapS)
	}
	if c.DedupTolS < 0 {
		return fmt.Errorf("detect: dedup tolerance %f must not be negative", c.DedupTolS)
	}
	if c.BandPass {
		if c.BandLowHz <= 0 || c.BandHighHz <= c.BandLowHz {
			return fmt.Errorf("detect: band-pass %f..%f Hz is not a band",
				c.BandLowHz, c.BandHighHz)
		}
	}
	return nil
}

// Detector runs the correlation pipeline. Stateless and safe for
// concurrent use.
type Detector struct {
	cfg Config
}

// New returns a Detector, rejecting invalid configuration up front.
func New(cfg Config) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Detector{cfg: cfg}, nil
}

// Detect returns every plausible occurrence of the given references in
// the recording, time-ordered and deduplicated. The references must all
// be of one kind and match the recording sample rate; mismatched
// references are skipped. An empty result means "no cue found" and is
// not an error.
func (d *Detector) Detect(signal []float64, rate int, refs []cue.Waveform) []Hit {
	if len(signal) == 0 || len(refs) == 0 || rate <= 0 {
		return nil
	}
	if d.cfg.BandPass && d.cfg.BandHighHz >= float64(rate)/2 {
		// Pass band collapses against the Nyquist limit; correlate raw.
		return d.detectAll(xcorr.Normalize(signal), rate, refs, false)
	}

	prepared := signal
	if d.cfg.BandPass {
		prepared = xcorr.BandPass(signal, rate, d.cfg.BandLowHz, d.cfg.BandHighHz)
	}
	return d.detectAll(xcorr.Normalize(prepared), rate, refs, d.cfg.BandPass)
}

func (d *Detector) detectAll(normalized []float64, rate int, refs []cue.Waveform, filtered bool) []Hit {
	var all []Hit
	for _, ref := range refs {
		if ref.Rate != rate || len(ref.Samples) == 0 {
			continue
		}
		all = append(all, d.detectOne(normalized, rate, ref, filtered)...)
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].TimeS < all[j].TimeS })
	deduped := dedupe(all, d.cfg.DedupTolS)
	return enforceGap(deduped, d.cfg.MinGapS)
}

// detectOne runs steps 2-5 of the pipeline for a single reference.
func (d *Detector) detectOne(normalized []float64, rate int, ref cue.Waveform, filtered bool) []Hit {
	refSamples := ref.Samples
	if filtered {
		refSamples = xcorr.BandPass(refSamples, rate, d.cfg.BandLowHz, d.cfg.BandHighHz)
	}
	corr := xcorr.ValidCrossCorrelation(normalized, xcorr.Normalize(refSamples))
	if len(corr) == 0 {
		return nil
	}

	maxCorr := corr[0]
	for _, v := range corr {
		if v > maxCorr {
			maxCorr = v
		}
	}
	if maxCorr < absentFloor {
		// Reference absent from this recording.
		return nil
	}

	threshold := math.Max(d.cfg.Threshold*userAnchor, maxCorr*peakAnchor)
	gap := int(d.cfg.MinGapS * float64(rate))
	if gap < 1 {
		gap = 1
	}

	var hits []Hit
	for i := 0; i < len(corr); {
		if corr[i] < threshold {
			i++
			continue
		}
		// Local maximum within the gap window following the trigger.
		end := i + gap
		if end > len(corr) {
			end = len(corr)
		}
		best := i
		for j := i + 1; j < end; j++ {
			if corr[j] > corr[best] {
				best = j
			}
		}
		hits = append(hits, Hit{
			TimeS: float64(best) / float64(rate),
			Score: clampScore(corr[best]),
			RefID: ref.ID,
		})
		i = best + gap
	}
	return hits
}

// dedupe collapses clusters of hits closer than tol, keeping the
// earliest of each cluster. Input must be time-ordered.
func dedupe(hits []Hit, tol float64) []Hit {
	if len(hits) == 0 {
		return nil
	}
	out := hits[:1]
	for _, h := range hits[1:] {
		if h.TimeS-out[len(out)-1].TimeS <= tol {
			continue
		}
		out = append(out, h)
	}
	return out
}

// enforceGap drops any hit closer than minGap to the previously kept
// one, so the spacing guarantee holds across references too.
func enforceGap(hits []Hit, minGap float64) []Hit {
	if len(hits) == 0 {
		return nil
	}
	out := hits[:1]
	for _, h := range hits[1:] {
		if h.TimeS-out[len(out)-1].TimeS < minGap {
			continue
		}
		out = append(out, h)
	}
	return out
}

// clampScore pins tiny numeric overshoot back into [-1, 1].
func clampScore(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
