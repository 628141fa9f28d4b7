package plan

import (
	"testing"

	"github.com/loopsmith/loopsync/segment"
)

func fp(v float64) *float64 { return &v }

func TestTakeFromSegment_Closed(t *testing.T) {
	seg := segment.Segment{Index: 0, StartTimeS: 2.0, EndTimeS: fp(8.0), DurationS: fp(6.0)}

	take, err := TakeFromSegment("cam_a.mp4", seg, 10.0, []string{"Guitar"})
	if err != nil {
		t.Fatal(err)
	}
	if take.StartS != 2.0 || take.EndS != 8.0 || take.AnchorS != 2.0 {
		t.Errorf("take = %+v, want window [2, 8] anchored at 2", take)
	}
	if take.EndAnchorS == nil || *take.EndAnchorS != 8.0 {
		t.Errorf("end anchor = %v, want 8.0", take.EndAnchorS)
	}
	if take.DurationS() != 6.0 {
		t.Errorf("duration = %f", take.DurationS())
	}
	if len(take.Tracks) != 1 || take.Tracks[0] != "Guitar" {
		t.Errorf("tracks = %v", take.Tracks)
	}
}

func TestTakeFromSegment_MissingEndRunsToFileEnd(t *testing.T) {
	seg := segment.Segment{Index: 0, StartTimeS: 2.0, EdgeCase: segment.EdgeMissingEnd}

	take, err := TakeFromSegment("cam_a.mp4", seg, 10.0, nil)
	if err != nil {
		t.Fatal(err)
	}
	if take.EndS != 10.0 {
		t.Errorf("end = %f, want file duration", take.EndS)
	}
	if take.EndAnchorS != nil {
		t.Errorf("end anchor = %v, want nil", take.EndAnchorS)
	}
}

func TestTakeFromSegment_CapsWindowAtFileDuration(t *testing.T) {
	seg := segment.Segment{Index: 0, StartTimeS: 2.0, EndTimeS: fp(12.0)}

	take, err := TakeFromSegment("cam_a.mp4", seg, 10.0, nil)
	if err != nil {
		t.Fatal(err)
	}
	if take.EndS != 10.0 {
		t.Errorf("end = %f, want capped at 10.0", take.EndS)
	}
}

func TestTakeFromSegment_Errors(t *testing.T) {
	seg := segment.Segment{Index: 0, StartTimeS: 2.0}

	if _, err := TakeFromSegment("cam.mp4", seg, 0, nil); err == nil {
		t.Error("zero file duration accepted")
	}
	if _, err := TakeFromSegment("cam.mp4", seg, -3, nil); err == nil {
		t.Error("negative file duration accepted")
	}

	late := segment.Segment{Index: 0, StartTimeS: 10.0}
	if _, err := TakeFromSegment("cam.mp4", late, 10.0, nil); err == nil {
		t.Error("start at file end accepted")
	}

	collapsed := segment.Segment{Index: 0, StartTimeS: 5.0, EndTimeS: fp(5.0)}
	if _, err := TakeFromSegment("cam.mp4", collapsed, 10.0, nil); err == nil {
		t.Error("collapsed window accepted")
	}
}
