// Package segment pairs ordered start/end cue hits into take intervals.
//
// The builder walks start hits in order; for each one it discards end
// hits at or before that start (stale ends from earlier takes or false
// fires) and closes the segment with the first later end. A start with
// no later end still yields a segment, flagged missing_end, so a take
// whose end cue was clipped or never captured is reported rather than
// dropped.
package segment

import (
	"github.com/loopsmith/loopsync/detect"
)

// EdgeMissingEnd marks a segment whose closing cue was never found.
const EdgeMissingEnd = "missing_end"

// Segment is one paired take interval inside a single file.
// EndTimeS and DurationS are nil for a missing_end segment.
type Segment struct {
	Index      int      `json:"index"`
	StartTimeS float64  `json:"start_time_s"`
	EndTimeS   *float64 `json:"end_time_s"`
	DurationS  *float64 `json:"duration_s"`
	EdgeCase   string   `json:"edge_case,omitempty"`
}

// Closed reports whether the segment has both bounds.
func (s Segment) Closed() bool { return s.EndTimeS != nil }

// Build pairs time-ordered start and end hits into segments.
//
// Guarantees:
//   - one segment per start hit, in start order
//   - a present end strictly exceeds its start
//   - ends are consumed in order; each closes at most one segment
func Build(startHits, endHits []detect.Hit) []Segment {
	segments := make([]Segment, 0, len(startHits))

	endIdx := 0
	for i, start := range startHits {
		// Skip ends at or before this start: stale closes from an
		// earlier take, or fires preceding the first start.
		for endIdx < len(endHits) && endHits[endIdx].TimeS <= start.TimeS {
			endIdx++
		}

		seg := Segment{Index: i, StartTimeS: start.TimeS}
		if endIdx < len(endHits) {
			end := endHits[endIdx].TimeS
			dur := end - start.TimeS
			seg.EndTimeS = &end
			seg.DurationS = &dur
			endIdx++
		} else {
			seg.EdgeCase = EdgeMissingEnd
		}
		segments = append(segments, seg)
	}
	return segments
}
