package session

import "math"

// LoopTakeBounds locates the last fully completed loop cycle inside a
// recording window, in seconds relative to the window start. Both
// bounds are nil when no full cycle elapsed.
type LoopTakeBounds struct {
	StartS        *float64 `json:"start_s"`
	EndS          *float64 `json:"end_s"`
	TakesRecorded bool     `json:"takes_recorded"`
	MultipleTakes bool     `json:"multiple_takes"`
}

// ComputeLoopTakeBounds derives the bounds for a window of windowS
// seconds that started at startBeats on the musical timeline, with the
// loop region and tempo fixed at record start.
//
// Steps:
//  1. loop duration (s) = loopLengthBeats * 60 / bpm
//  2. phase (beats) = (startBeats - loopStartBeats) mod loopLengthBeats
//  3. the first loop boundary after the window start sits
//     (loopLengthBeats - phase) mod loopLengthBeats beats ahead
//  4. a window ending at or before the first full cycle's end reports
//     no take; a window exactly one loop long therefore reports none,
//     which is deliberate
//  5. otherwise count full cycles and take the last one
//
// Degenerate loop configuration (bpm or loop length not positive, or a
// non-positive window) reports no takes instead of failing.
func ComputeLoopTakeBounds(windowS, startBeats, bpm, loopStartBeats, loopLengthBeats float64) LoopTakeBounds {
	if bpm <= 0 || loopLengthBeats <= 0 || windowS <= 0 {
		return LoopTakeBounds{}
	}

	secPerBeat := 60.0 / bpm
	loopDurS := loopLengthBeats * secPerBeat

	phaseBeats := positiveMod(startBeats-loopStartBeats, loopLengthBeats)
	deltaBeats := positiveMod(loopLengthBeats-phaseBeats, loopLengthBeats)

	firstStartS := deltaBeats * secPerBeat
	firstEndS := firstStartS + loopDurS

	if windowS <= firstEndS {
		return LoopTakeBounds{}
	}

	nFull := math.Floor((windowS - firstStartS) / loopDurS)
	lastEndS := firstStartS + nFull*loopDurS
	lastStartS := lastEndS - loopDurS

	if lastStartS < 0 {
		lastStartS = 0
	}

	return LoopTakeBounds{
		StartS:        &lastStartS,
		EndS:          &lastEndS,
		TakesRecorded: nFull >= 1,
		MultipleTakes: nFull >= 2,
	}
}

// positiveMod wraps math.Mod into [0, m).
func positiveMod(v, m float64) float64 {
	r := math.Mod(v, m)
	if r < 0 {
		r += m
	}
	return r
}
