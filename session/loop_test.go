package session

import (
	"math"
	"math/rand"
	"reflect"
	"testing"
	"testing/quick"
)

func TestComputeLoopTakeBounds_TwoFullLoops(t *testing.T) {
	// 120 bpm, 8-beat loop from beat 0, window 10.5 s: loop duration 4 s,
	// first loop [0, 4], two full cycles fit, last is [4, 8].
	b := ComputeLoopTakeBounds(10.5, 0, 120, 0, 8)

	if !b.TakesRecorded || !b.MultipleTakes {
		t.Fatalf("flags = %+v, want takes_recorded and multiple_takes", b)
	}
	if b.StartS == nil || b.EndS == nil {
		t.Fatal("bounds are nil, want values")
	}
	if *b.StartS != 4.0 || *b.EndS != 8.0 {
		t.Errorf("bounds = [%f, %f], want [4.0, 8.0]", *b.StartS, *b.EndS)
	}
}

func TestComputeLoopTakeBounds_ShorterThanOneLoop(t *testing.T) {
	b := ComputeLoopTakeBounds(3.0, 0, 120, 0, 8)

	if b.TakesRecorded || b.MultipleTakes {
		t.Errorf("flags = %+v, want none", b)
	}
	if b.StartS != nil || b.EndS != nil {
		t.Errorf("bounds = %+v, want both nil", b)
	}
}

func TestComputeLoopTakeBounds_ExactOneLoopBoundary(t *testing.T) {
	// A window exactly one loop long reports no take. The boundary
	// comparison is deliberately conservative; this pins it.
	b := ComputeLoopTakeBounds(4.0, 0, 120, 0, 8)

	if b.TakesRecorded || b.StartS != nil || b.EndS != nil {
		t.Errorf("bounds = %+v, want no take for a boundary-exact window", b)
	}

	// A hair past the boundary flips it.
	past := ComputeLoopTakeBounds(4.001, 0, 120, 0, 8)
	if !past.TakesRecorded || past.MultipleTakes {
		t.Errorf("bounds = %+v, want exactly one take just past the boundary", past)
	}
	if past.StartS == nil || *past.StartS != 0.0 || *past.EndS != 4.0 {
		t.Errorf("bounds = %+v, want [0.0, 4.0]", past)
	}
}

func TestComputeLoopTakeBounds_MidLoopStart(t *testing.T) {
	// Recording starts at beat 2 of an 8-beat loop: 6 beats (3 s at
	// 120 bpm) remain until the first boundary, so the first full cycle
	// is [3, 7]. A 10.5 s window holds only that one.
	b := ComputeLoopTakeBounds(10.5, 2, 120, 0, 8)

	if !b.TakesRecorded || b.MultipleTakes {
		t.Fatalf("flags = %+v, want exactly one take", b)
	}
	if *b.StartS != 3.0 || *b.EndS != 7.0 {
		t.Errorf("bounds = [%f, %f], want [3.0, 7.0]", *b.StartS, *b.EndS)
	}
}

func TestComputeLoopTakeBounds_StartBeforeLoopRegion(t *testing.T) {
	// Starting 2 beats before the loop region wraps the phase: the
	// first boundary is 2 beats (1 s) in, cycles are [1, 5] and [5, 9].
	b := ComputeLoopTakeBounds(10.0, -2, 120, 0, 8)

	if !b.TakesRecorded || !b.MultipleTakes {
		t.Fatalf("flags = %+v, want two takes", b)
	}
	if *b.StartS != 5.0 || *b.EndS != 9.0 {
		t.Errorf("bounds = [%f, %f], want [5.0, 9.0]", *b.StartS, *b.EndS)
	}
}

func TestComputeLoopTakeBounds_DegenerateInputs(t *testing.T) {
	cases := []struct {
		name                        string
		windowS, start, bpm, ls, ll float64
	}{
		{"zero bpm", 10, 0, 0, 0, 8},
		{"negative bpm", 10, 0, -120, 0, 8},
		{"zero loop length", 10, 0, 120, 0, 0},
		{"zero window", 0, 0, 120, 0, 8},
		{"negative window", -1, 0, 120, 0, 8},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := ComputeLoopTakeBounds(tc.windowS, tc.start, tc.bpm, tc.ls, tc.ll)
			if !reflect.DeepEqual(b, LoopTakeBounds{}) {
				t.Errorf("bounds = %+v, want empty", b)
			}
		})
	}
}

func TestComputeLoopTakeBounds_BoundsStayInWindow(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	invariants := func(windowS, start, bpm, ls, ll float64) bool {
		b := ComputeLoopTakeBounds(windowS, start, bpm, ls, ll)
		if b.StartS == nil {
			return b.EndS == nil && !b.TakesRecorded && !b.MultipleTakes
		}
		loopDur := ll * 60 / bpm
		return *b.StartS >= 0 &&
			*b.EndS <= windowS+1e-9 &&
			math.Abs((*b.EndS-*b.StartS)-loopDur) < 1e-6 &&
			b.TakesRecorded
	}

	cfg := &quick.Config{
		MaxCount: 2000,
		Values: func(values []reflect.Value, _ *rand.Rand) {
			values[0] = reflect.ValueOf(rng.Float64() * 120)       // window
			values[1] = reflect.ValueOf(rng.Float64()*128 - 64)    // start beats
			values[2] = reflect.ValueOf(60 + rng.Float64()*140)    // bpm
			values[3] = reflect.ValueOf(rng.Float64()*64 - 32)     // loop start
			values[4] = reflect.ValueOf(1 + rng.Float64()*31)      // loop length
		},
	}
	if err := quick.Check(invariants, cfg); err != nil {
		t.Error(err)
	}
}

func TestComputeLoopTakeBounds_ShortWindowNeverReportsTake(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for trial := 0; trial < 500; trial++ {
		bpm := 60 + rng.Float64()*140
		ll := 1 + rng.Float64()*31
		loopDur := ll * 60 / bpm
		windowS := rng.Float64() * loopDur // strictly shorter than one loop

		b := ComputeLoopTakeBounds(windowS, rng.Float64()*64-32, bpm, rng.Float64()*32, ll)
		if b.TakesRecorded || b.StartS != nil {
			t.Fatalf("trial %d: window %f < loop %f reported %+v", trial, windowS, loopDur, b)
		}
	}
}
