package cue

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	"github.com/loopsmith/loopsync/internal/wavio"
)

const (
	// burstDurS is the length of one chirp burst. Three bursts plus two
	// gaps keep the whole cue under half a second, so even a short take
	// contains the complete shape.
	burstDurS = 0.12

	// gapDurS separates consecutive bursts.
	gapDurS = 0.04

	// fadeDurS is the raised-cosine fade applied to each burst edge,
	// long enough to avoid clicks, short enough to keep the envelope
	// sharp for correlation.
	fadeDurS = 0.012

	// chirpRatio is the upward frequency sweep within one burst.
	// A flat tone autocorrelates broadly; a slight chirp sharpens the
	// correlation peak.
	chirpRatio = 1.12

	// peakTarget is the normalization peak. Below full scale so the
	// stereo render survives any later resampling without clipping.
	peakTarget = 0.9
)

// burstHz are the base frequencies of the three ascending bursts.
// All sit inside the detector band-pass (800 Hz - 3.5 kHz).
var burstHz = [3]float64{880, 1245, 1760}

// SynthesizeStart renders the canonical start cue at PrimaryRate:
// three ascending chirp bursts with faded edges, peak-normalized.
// Deterministic: repeated calls return identical samples.
func SynthesizeStart() []float64 {
	rate := float64(PrimaryRate)
	burstLen := int(burstDurS * rate)
	gapLen := int(gapDurS * rate)
	fadeLen := int(fadeDurS * rate)

	total := 3*burstLen + 2*gapLen
	out := make([]float64, total)

	pos := 0
	for b, f0 := range burstHz {
		f1 := f0 * chirpRatio
		phase := 0.0
		for i := 0; i < burstLen; i++ {
			// Linear sweep f0->f1 across the burst, integrated so the
			// phase stays continuous.
			frac := float64(i) / float64(burstLen)
			freq := f0 + (f1-f0)*frac
			phase += 2 * math.Pi * freq / rate
			out[pos+i] = math.Sin(phase) * fadeGain(i, burstLen, fadeLen)
		}
		pos += burstLen
		if b < 2 {
			pos += gapLen
		}
	}

	normalizePeak(out, peakTarget)
	return out
}

// SynthesizeEnd renders the canonical end cue: the exact time-reversal
// of the start cue, so the two are acoustically distinct but equally
// detectable.
func SynthesizeEnd() []float64 {
	start := SynthesizeStart()
	out := make([]float64, len(start))
	for i, s := range start {
		out[len(start)-1-i] = s
	}
	return out
}

// fadeGain returns the raised-cosine envelope for sample i of a burst.
func fadeGain(i, burstLen, fadeLen int) float64 {
	if fadeLen <= 0 {
		return 1
	}
	switch {
	case i < fadeLen:
		return 0.5 * (1 - math.Cos(math.Pi*float64(i)/float64(fadeLen)))
	case i >= burstLen-fadeLen:
		j := burstLen - 1 - i
		return 0.5 * (1 - math.Cos(math.Pi*float64(j)/float64(fadeLen)))
	}
	return 1
}

// normalizePeak scales samples in place so the absolute peak hits target.
func normalizePeak(samples []float64, target float64) {
	peak := 0.0
	for _, s := range samples {
		if a := math.Abs(s); a > peak {
			peak = a
		}
	}
	if peak == 0 {
		return
	}
	gain := target / peak
	for i := range samples {
		samples[i] *= gain
	}
}

// EnsurePrimaryReferences synthesizes start.wav and end.wav in dir if
// absent. Idempotent: existing files are never rewritten, so variants
// recorded against them stay aligned. Files are written as stereo
// (mono rendered to two identical channels) 16-bit PCM at PrimaryRate.
func EnsurePrimaryReferences(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cue: create reference dir: %w", err)
	}

	wrote := 0
	for _, kind := range []Kind{KindStart, KindEnd} {
		path := filepath.Join(dir, canonicalName(kind))
		if _, err := os.Stat(path); err == nil {
			continue
		} else if !os.IsNotExist(err) {
			return fmt.Errorf("cue: stat %s: %w", path, err)
		}

		var samples []float64
		if kind == KindStart {
			samples = SynthesizeStart()
		} else {
			samples = SynthesizeEnd()
		}
		if err := wavio.WriteFile(path, samples, PrimaryRate, true); err != nil {
			return fmt.Errorf("cue: write canonical %s: %w", kind, err)
		}
		wrote++
	}

	if wrote > 0 {
		slog.Info("cue: primary references synthesized", "dir", dir, "written", wrote)
	}
	return nil
}

// WriteTakeVariant stores a per-take cue capture next to the canonical
// reference and returns the written path. When sharePrefix is set the
// canonical waveform is prepended, so a clipped capture still carries
// the full canonical shape.
func WriteTakeVariant(dir string, kind Kind, takeID string, samples []float64, sharePrefix bool) (string, error) {
	if !kind.valid() {
		return "", fmt.Errorf("cue: write variant %q: %w", kind, ErrBadKind)
	}
	if takeID == "" {
		return "", fmt.Errorf("cue: write variant: empty take id")
	}
	if len(samples) == 0 {
		return "", fmt.Errorf("cue: write variant %s: no samples", takeID)
	}

	out := samples
	if sharePrefix {
		var canonical []float64
		if kind == KindStart {
			canonical = SynthesizeStart()
		} else {
			canonical = SynthesizeEnd()
		}
		out = make([]float64, 0, len(canonical)+len(samples))
		out = append(out, canonical...)
		out = append(out, samples...)
	}

	path := filepath.Join(dir, variantName(kind, takeID))
	if err := wavio.WriteFile(path, out, PrimaryRate, true); err != nil {
		return "", fmt.Errorf("cue: write variant %s: %w", takeID, err)
	}
	return path, nil
}
