// Package xcorr implements the numeric kernel of cue detection:
// zero-mean/unit-variance normalization, a Butterworth band-pass, and
// FFT-based valid-mode cross-correlation.
package xcorr

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Normalize returns a zero-mean, unit-variance copy of samples.
// A constant signal (zero variance) normalizes to all zeros, which
// correlates to zero everywhere and reads as "no cue present".
func Normalize(samples []float64) []float64 {
	n := len(samples)
	if n == 0 {
		return nil
	}

	var sum float64
	for _, s := range samples {
		sum += s
	}
	mean := sum / float64(n)

	var sumSquares float64
	for _, s := range samples {
		d := s - mean
		sumSquares += d * d
	}
	std := math.Sqrt(sumSquares / float64(n))

	out := make([]float64, n)
	if std == 0 {
		return out
	}
	for i, s := range samples {
		out[i] = (s - mean) / std
	}
	return out
}

// ValidCrossCorrelation computes the valid-mode cross-correlation of
// signal against ref via FFT, divided by the reference length:
//
//	out[i] = (1/len(ref)) * sum_j signal[i+j] * ref[j]
//
// for i in [0, len(signal)-len(ref)]. With both inputs normalized to
// zero mean and unit variance the output approximates a correlation
// coefficient per lag.
//
// Returns nil when the signal is shorter than the reference (no valid
// lag exists).
func ValidCrossCorrelation(signal, ref []float64) []float64 {
	ns, nr := len(signal), len(ref)
	if nr == 0 || ns < nr {
		return nil
	}

	// Correlation as convolution with the time-reversed reference.
	// The full linear convolution needs ns+nr-1 points; round up to a
	// power of two for the FFT.
	n := nextPow2(ns + nr - 1)
	fft := fourier.NewFFT(n)

	a := make([]float64, n)
	copy(a, signal)
	b := make([]float64, n)
	for j, v := range ref {
		b[nr-1-j] = v
	}

	ca := fft.Coefficients(nil, a)
	cb := fft.Coefficients(nil, b)
	for i := range ca {
		ca[i] *= cb[i]
	}
	conv := fft.Sequence(nil, ca)

	// Coefficients+Sequence scales by n; fold that into the reference
	// length division from the correlation definition.
	scale := 1 / (float64(n) * float64(nr))
	out := make([]float64, ns-nr+1)
	for i := range out {
		out[i] = conv[nr-1+i] * scale
	}
	return out
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
