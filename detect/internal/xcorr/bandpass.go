package xcorr

import "math"

// butterworthQ is the biquad Q for a maximally flat (Butterworth)
// second-order section.
const butterworthQ = 0.7071067811865476

// biquad is a direct-form-I second-order IIR section.
type biquad struct {
	b0, b1, b2 float64
	a1, a2     float64
}

// newLowPass returns a Butterworth low-pass section at cutoff fc.
// Coefficients follow the RBJ audio EQ cookbook.
func newLowPass(fc float64, rate int) biquad {
	w0 := 2 * math.Pi * fc / float64(rate)
	alpha := math.Sin(w0) / (2 * butterworthQ)
	cosw := math.Cos(w0)

	a0 := 1 + alpha
	return biquad{
		b0: (1 - cosw) / 2 / a0,
		b1: (1 - cosw) / a0,
		b2: (1 - cosw) / 2 / a0,
		a1: -2 * cosw / a0,
		a2: (1 - alpha) / a0,
	}
}

// newHighPass returns a Butterworth high-pass section at cutoff fc.
func newHighPass(fc float64, rate int) biquad {
	w0 := 2 * math.Pi * fc / float64(rate)
	alpha := math.Sin(w0) / (2 * butterworthQ)
	cosw := math.Cos(w0)

	a0 := 1 + alpha
	return biquad{
		b0: (1 + cosw) / 2 / a0,
		b1: -(1 + cosw) / a0,
		b2: (1 + cosw) / 2 / a0,
		a1: -2 * cosw / a0,
		a2: (1 - alpha) / a0,
	}
}

// process filters samples through the section, returning a new slice.
func (q biquad) process(samples []float64) []float64 {
	out := make([]float64, len(samples))
	var x1, x2, y1, y2 float64
	for i, x := range samples {
		y := q.b0*x + q.b1*x1 + q.b2*x2 - q.a1*y1 - q.a2*y2
		out[i] = y
		x2, x1 = x1, x
		y2, y1 = y1, y
	}
	return out
}

// BandPass passes [lowHz, highHz] by cascading a high-pass and a
// low-pass Butterworth section. Both the recording and the reference
// must pass through the same cascade so the group delay cancels in the
// correlation.
func BandPass(samples []float64, rate int, lowHz, highHz float64) []float64 {
	if len(samples) == 0 {
		return nil
	}
	hp := newHighPass(lowHz, rate)
	lp := newLowPass(highHz, rate)
	return lp.process(hp.process(samples))
}
