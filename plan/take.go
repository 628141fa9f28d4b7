package plan

import (
	"fmt"

	"github.com/loopsmith/loopsync/segment"
)

// CameraTake is one camera file's contribution to the plan: the usable
// footage window and the start-cue instant that aligns it to the master
// audio. All times are seconds within the camera file.
type CameraTake struct {
	File string `json:"file"`

	// StartS and EndS bound the usable window.
	StartS float64 `json:"start_s"`
	EndS   float64 `json:"end_s"`

	// AnchorS is the start-cue instant, the alignment reference.
	AnchorS float64 `json:"anchor_s"`

	// EndAnchorS is the end-cue instant when one was detected.
	EndAnchorS *float64 `json:"end_anchor_s,omitempty"`

	Tracks []string `json:"tracks,omitempty"`
}

// DurationS is the usable window length.
func (t CameraTake) DurationS() float64 {
	return t.EndS - t.StartS
}

// TakeFromSegment derives a take from one detected segment of a camera
// file. The segment's start time doubles as the alignment anchor. An
// unclosed segment extends the usable window to the end of the file;
// fileDurationS caps the window either way.
func TakeFromSegment(file string, seg segment.Segment, fileDurationS float64, tracks []string) (CameraTake, error) {
	if fileDurationS <= 0 {
		return CameraTake{}, fmt.Errorf("plan: %s: non-positive file duration %f", file, fileDurationS)
	}

	endS := fileDurationS
	var endAnchor *float64
	if seg.Closed() {
		e := *seg.EndTimeS
		endAnchor = &e
		if e < endS {
			endS = e
		}
	}
	if seg.StartTimeS >= endS {
		return CameraTake{}, fmt.Errorf("plan: %s: segment at %.3fs leaves no usable window", file, seg.StartTimeS)
	}

	return CameraTake{
		File:       file,
		StartS:     seg.StartTimeS,
		EndS:       endS,
		AnchorS:    seg.StartTimeS,
		EndAnchorS: endAnchor,
		Tracks:     tracks,
	}, nil
}
