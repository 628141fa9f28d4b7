package cue

import (
	"errors"
	"fmt"
)

// Kind discriminates the two cue roles.
type Kind string

const (
	// KindStart marks the beginning of a take.
	KindStart Kind = "start"
	// KindEnd marks the end of a take.
	KindEnd Kind = "end"
)

// PrimaryRate is the sample rate every reference waveform is written at.
const PrimaryRate = 48000

var (
	// ErrNoCanonical is returned when a library directory lacks its
	// canonical start.wav/end.wav pair. The directory is considered
	// corrupt; run EnsurePrimaryReferences first.
	ErrNoCanonical = errors.New("cue: canonical reference missing")

	// ErrBadKind is returned for a Kind other than KindStart/KindEnd.
	ErrBadKind = errors.New("cue: unknown cue kind")
)

// Waveform is one reference cue: mono samples at a fixed rate.
// Immutable once built; callers must not modify Samples.
type Waveform struct {
	ID      string
	Kind    Kind
	Samples []float64
	Rate    int
}

// Duration returns the waveform length in seconds.
func (w Waveform) Duration() float64 {
	if w.Rate <= 0 {
		return 0
	}
	return float64(len(w.Samples)) / float64(w.Rate)
}

// Library holds the loaded references per kind, canonical first.
type Library struct {
	Starts []Waveform
	Ends   []Waveform
}

// ByKind returns the reference list for one kind.
func (l Library) ByKind(kind Kind) []Waveform {
	switch kind {
	case KindStart:
		return l.Starts
	case KindEnd:
		return l.Ends
	}
	return nil
}

// LibraryConfig bounds library loading.
type LibraryConfig struct {
	// MaxPerKind caps how many waveforms (canonical included) are loaded
	// per kind, most recently modified first. Zero means the default;
	// values are clamped into [minPerKind, maxPerKind].
	MaxPerKind int

	// SharePrefix prepends the canonical waveform to every stored take
	// variant so short captures correlate well against the full shape.
	SharePrefix bool
}

const (
	defaultPerKind = 16
	minPerKind     = 8
	maxPerKind     = 40
)

// DefaultLibraryConfig returns the standard loading bounds.
func DefaultLibraryConfig() LibraryConfig {
	return LibraryConfig{
		MaxPerKind:  defaultPerKind,
		SharePrefix: true,
	}
}

// normalize applies defaults and clamps MaxPerKind into its legal range.
func (c LibraryConfig) normalize() LibraryConfig {
	if c.MaxPerKind == 0 {
		c.MaxPerKind = defaultPerKind
	}
	if c.MaxPerKind < minPerKind {
		c.MaxPerKind = minPerKind
	}
	if c.MaxPerKind > maxPerKind {
		c.MaxPerKind = maxPerKind
	}
	return c
}

func (k Kind) valid() bool {
	return k == KindStart || k == KindEnd
}

// canonicalName returns the on-disk name of the canonical reference.
func canonicalName(kind Kind) string {
	return string(kind) + ".wav"
}

// variantName returns the on-disk name of a per-take variant.
func variantName(kind Kind, takeID string) string {
	return fmt.Sprintf("%s_%s.wav", kind, takeID)
}
