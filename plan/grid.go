package plan

// BarDurationS is the length of one bar in seconds.
//
//	(60/bpm) * (4/ts_den) * ts_num
//
// 120 bpm in 4/4 gives 2.0 s; 90 bpm in 3/4 gives 2.0 s as well.
func BarDurationS(bpm float64, tsNum, tsDen int) float64 {
	return (60.0 / bpm) * (4.0 / float64(tsDen)) * float64(tsNum)
}

// Slot is one grid cell on the master audio timeline.
type Slot struct {
	Index     int
	StartS    float64
	DurationS float64
}

// EndS is the exclusive slot end.
func (s Slot) EndS() float64 {
	return s.StartS + s.DurationS
}

// BuildGrid tiles [0, audioDurationS) with slots of slotS seconds. The
// final slot is truncated to whatever remains, so the union of slots
// covers the timeline exactly, with no gaps and no overlap. Degenerate
// inputs yield an empty grid.
func BuildGrid(audioDurationS, slotS float64) []Slot {
	if audioDurationS <= 0 || slotS <= 0 {
		return nil
	}

	var slots []Slot
	for i := 0; ; i++ {
		// Slot starts are multiples of slotS, not running sums, so
		// float error does not accumulate across a long timeline.
		start := float64(i) * slotS
		if start >= audioDurationS {
			break
		}
		dur := slotS
		if start+dur > audioDurationS {
			dur = audioDurationS - start
		}
		slots = append(slots, Slot{Index: i, StartS: start, DurationS: dur})
	}
	return slots
}
