package segment

import (
	"encoding/json"
	"math/rand"
	"sort"
	"strings"
	"testing"

	"github.com/loopsmith/loopsync/detect"
)

func hitsAt(times ...float64) []detect.Hit {
	out := make([]detect.Hit, len(times))
	for i, t := range times {
		out[i] = detect.Hit{TimeS: t, Score: 0.9, RefID: "ref"}
	}
	return out
}

func TestBuild_StaleEndDiscarded(t *testing.T) {
	// Starts [1.0, 9.0] against ends [0.5, 5.0, 9.5]: the 0.5 end
	// precedes the first start and must be discarded.
	segs := Build(hitsAt(1.0, 9.0), hitsAt(0.5, 5.0, 9.5))

	if len(segs) != 2 {
		t.Fatalf("got %d segments, want 2", len(segs))
	}
	if segs[0].StartTimeS != 1.0 || segs[0].EndTimeS == nil || *segs[0].EndTimeS != 5.0 {
		t.Errorf("segment 0 = %+v, want [1.0, 5.0]", segs[0])
	}
	if *segs[0].DurationS != 4.0 {
		t.Errorf("segment 0 duration = %f, want 4.0", *segs[0].DurationS)
	}
	if segs[1].StartTimeS != 9.0 || segs[1].EndTimeS == nil || *segs[1].EndTimeS != 9.5 {
		t.Errorf("segment 1 = %+v, want [9.0, 9.5]", segs[1])
	}
}

func TestBuild_TrailingStartGetsMissingEnd(t *testing.T) {
	segs := Build(hitsAt(1.0, 6.0), hitsAt(3.0))

	if len(segs) != 2 {
		t.Fatalf("got %d segments, want 2", len(segs))
	}
	if !segs[0].Closed() {
		t.Errorf("segment 0 = %+v, want closed", segs[0])
	}
	last := segs[1]
	if last.Closed() || last.EdgeCase != EdgeMissingEnd {
		t.Errorf("segment 1 = %+v, want missing_end with nil bounds", last)
	}
	if last.DurationS != nil {
		t.Errorf("segment 1 duration = %v, want nil", *last.DurationS)
	}
}

func TestBuild_ZeroEndHits_AllMissing(t *testing.T) {
	segs := Build(hitsAt(1.0, 2.0, 3.0), nil)

	if len(segs) != 3 {
		t.Fatalf("got %d segments, want 3", len(segs))
	}
	for _, s := range segs {
		if s.Closed() || s.EdgeCase != EdgeMissingEnd {
			t.Errorf("segment %d = %+v, want missing_end", s.Index, s)
		}
	}
}

func TestBuild_EndEqualToStartIsStale(t *testing.T) {
	// An end exactly at the start time cannot close it: a present end
	// strictly exceeds its start.
	segs := Build(hitsAt(2.0), hitsAt(2.0, 4.0))
	if segs[0].EndTimeS == nil || *segs[0].EndTimeS != 4.0 {
		t.Errorf("segment = %+v, want closed at 4.0", segs[0])
	}
}

func TestBuild_CountAndOrdering(t *testing.T) {
	// Random ordered streams: segment count always equals start count,
	// starts strictly increase, any present end exceeds its start.
	rng := rand.New(rand.NewSource(42))

	for trial := 0; trial < 200; trial++ {
		starts := randTimes(rng, rng.Intn(8))
		ends := randTimes(rng, rng.Intn(8))

		segs := Build(starts, ends)
		if len(segs) != len(starts) {
			t.Fatalf("trial %d: %d segments for %d starts", trial, len(segs), len(starts))
		}
		for i, s := range segs {
			if s.Index != i {
				t.Fatalf("trial %d: segment %d has index %d", trial, i, s.Index)
			}
			if i > 0 && segs[i-1].StartTimeS >= s.StartTimeS {
				t.Fatalf("trial %d: starts not strictly increasing", trial)
			}
			if s.Closed() {
				if *s.EndTimeS <= s.StartTimeS {
					t.Fatalf("trial %d: end %f <= start %f", trial, *s.EndTimeS, s.StartTimeS)
				}
				if *s.DurationS != *s.EndTimeS-s.StartTimeS {
					t.Fatalf("trial %d: duration mismatch", trial)
				}
			} else if s.EdgeCase != EdgeMissingEnd {
				t.Fatalf("trial %d: open segment without missing_end", trial)
			}
		}
	}
}

// randTimes yields n strictly increasing times.
func randTimes(rng *rand.Rand, n int) []detect.Hit {
	times := make([]float64, n)
	t := 0.0
	for i := range times {
		t += 0.5 + rng.Float64()*5
		times[i] = t
	}
	sort.Float64s(times)
	return hitsAt(times...)
}

func TestSegment_JSONContract(t *testing.T) {
	segs := Build(hitsAt(1.0, 9.0), hitsAt(5.0))

	raw, err := json.Marshal(segs)
	if err != nil {
		t.Fatal(err)
	}
	got := string(raw)

	for _, want := range []string{
		`"index":0`, `"start_time_s":1`, `"end_time_s":5`, `"duration_s":4`,
		`"edge_case":"missing_end"`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("JSON %s missing %s", got, want)
		}
	}
	// The open segment carries explicit nulls for its bounds.
	if !strings.Contains(got, `"end_time_s":null`) {
		t.Errorf("JSON %s: open segment should encode end_time_s as null", got)
	}
}
