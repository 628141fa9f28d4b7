package plan

import (
	"fmt"
	"log/slog"
	"math"
)

// FillerFile marks a clip with no footage behind it. Renderers treat it
// as black video for the clip's duration.
const FillerFile = "__BLACK__"

const (
	// clampPenalty is subtracted from a candidate's solo weight when
	// the slot had to be shifted to fit the usable window.
	clampPenalty = 0.3

	minSoloWeight = 1.0
	maxSoloWeight = 6.0

	// scoreTol separates a real score win from float noise; anything
	// closer counts as a tie.
	scoreTol = 1e-9
)

// Mapping kinds reported in the trace.
const (
	MapIdeal        = "ideal"
	MapClamped      = "clamped"
	MapDisqualified = "disqualified"
	MapFiller       = "filler"
)

// Config fixes the grid and the master audio timeline for one plan.
type Config struct {
	BPM   float64
	TSNum int
	TSDen int

	// BarsPerCut is the slot length in bars; zero selects 1.
	BarsPerCut int

	// SlotOverrideS, when positive, replaces the bar math as the slot
	// length.
	SlotOverrideS float64

	// AudioAnchorS is the start-cue instant inside the master audio.
	AudioAnchorS float64

	// AudioDurationS is the master audio length being covered.
	AudioDurationS float64
}

func (c Config) barsPerCut() int {
	if c.BarsPerCut < 1 {
		return 1
	}
	return c.BarsPerCut
}

// slotS resolves the slot length in seconds.
func (c Config) slotS() float64 {
	if c.SlotOverrideS > 0 {
		return c.SlotOverrideS
	}
	return BarDurationS(c.BPM, c.TSNum, c.TSDen) * float64(c.barsPerCut())
}

// Validate rejects configurations no plan can be built from.
func (c Config) Validate() error {
	if c.AudioDurationS <= 0 {
		return fmt.Errorf("plan: non-positive audio duration %f", c.AudioDurationS)
	}
	if c.AudioAnchorS < 0 {
		return fmt.Errorf("plan: negative audio anchor %f", c.AudioAnchorS)
	}
	if c.SlotOverrideS > 0 {
		return nil
	}
	if c.BPM <= 0 {
		return fmt.Errorf("plan: non-positive bpm %f", c.BPM)
	}
	if c.TSNum < 1 {
		return fmt.Errorf("plan: time signature numerator %d", c.TSNum)
	}
	switch c.TSDen {
	case 1, 2, 4, 8, 16, 32:
	default:
		return fmt.Errorf("plan: time signature denominator %d", c.TSDen)
	}
	return nil
}

// CutClip is one final output unit: camera footage, or filler, covering
// one grid slot. TimeGlobal and Duration are on the master audio
// timeline; InPoint and OutPoint are within the camera file.
type CutClip struct {
	TimeGlobal float64 `json:"time_global"`
	Duration   float64 `json:"duration"`
	CameraFile string  `json:"camera_file"`
	InPoint    float64 `json:"inpoint"`
	OutPoint   float64 `json:"outpoint"`
}

// IsFiller reports whether the clip has no footage behind it.
func (c CutClip) IsFiller() bool {
	return c.CameraFile == FillerFile
}

// Candidate is one take's scored bid for a slot, kept for the trace.
type Candidate struct {
	File    string  `json:"file"`
	Mapping string  `json:"mapping"`
	Score   float64 `json:"score,omitempty"`
}

// SlotTrace explains one slot's decision after the fact.
type SlotTrace struct {
	Slot       int         `json:"slot"`
	StartS     float64     `json:"start_s"`
	DurationS  float64     `json:"duration_s"`
	Candidates []Candidate `json:"candidates,omitempty"`
	Chosen     string      `json:"chosen"`
	Mapping    string      `json:"mapping"`
	Score      float64     `json:"score,omitempty"`
}

// Result pairs the clip sequence with its per-slot trace. Clips and
// Trace always have equal length.
type Result struct {
	Clips []CutClip   `json:"clips"`
	Trace []SlotTrace `json:"trace"`
}

// scored carries a candidate together with the clip it would emit.
type scored struct {
	cand Candidate
	clip CutClip
}

// Build runs the planner: one deterministic pass over the grid. Slots
// no take qualifies for become filler clips; an error is returned only
// for an unusable configuration, never for missing footage.
func Build(cfg Config, takes []CameraTake) (Result, error) {
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}

	valid := make([]CameraTake, 0, len(takes))
	for _, t := range takes {
		if t.DurationS() <= 0 {
			slog.Warn("plan: skipping take with empty usable window", "file", t.File)
			continue
		}
		valid = append(valid, t)
	}

	// Solo weight favors short, deliberate takes over catch-all ones.
	weights := make([]float64, len(valid))
	for i, t := range valid {
		weights[i] = clampWeight(cfg.AudioDurationS / t.DurationS())
	}

	slots := BuildGrid(cfg.AudioDurationS, cfg.slotS())
	res := Result{
		Clips: make([]CutClip, 0, len(slots)),
		Trace: make([]SlotTrace, 0, len(slots)),
	}

	preferSwitch := cfg.barsPerCut() == 1
	prevFile := ""

	for _, slot := range slots {
		tr := SlotTrace{Slot: slot.Index, StartS: slot.StartS, DurationS: slot.DurationS}

		cands := make([]scored, 0, len(valid))
		for i, t := range valid {
			cand, clip, overlaps := evaluate(slot, t, cfg.AudioAnchorS, weights[i])
			if !overlaps {
				continue
			}
			tr.Candidates = append(tr.Candidates, cand)
			cands = append(cands, scored{cand: cand, clip: clip})
		}

		if pick, ok := choose(cands, preferSwitch, prevFile); ok {
			res.Clips = append(res.Clips, pick.clip)
			tr.Chosen = pick.cand.File
			tr.Mapping = pick.cand.Mapping
			tr.Score = pick.cand.Score
			prevFile = pick.cand.File
		} else {
			res.Clips = append(res.Clips, CutClip{
				TimeGlobal: slot.StartS,
				Duration:   slot.DurationS,
				CameraFile: FillerFile,
			})
			tr.Chosen = FillerFile
			tr.Mapping = MapFiller
			prevFile = FillerFile
		}
		res.Trace = append(res.Trace, tr)
	}

	return res, nil
}

// evaluate maps one slot into a take's camera time and scores the fit.
// The third return is false when the take does not overlap the slot at
// all, in which case it is not a candidate.
func evaluate(slot Slot, t CameraTake, audioAnchorS, weight float64) (Candidate, CutClip, bool) {
	camStart := slot.StartS - audioAnchorS + t.AnchorS
	camEnd := camStart + slot.DurationS

	if camEnd <= t.StartS || camStart >= t.EndS {
		return Candidate{}, CutClip{}, false
	}

	cand := Candidate{File: t.File}

	if camStart >= t.StartS && camEnd <= t.EndS {
		cand.Mapping = MapIdeal
		cand.Score = weight
		return cand, clipFor(slot, t.File, camStart), true
	}

	// Shift the interval inside the usable window, keeping the full
	// slot duration.
	in := math.Max(camStart, t.StartS)
	if in+slot.DurationS > t.EndS {
		in = t.EndS - slot.DurationS
	}
	if in < t.StartS {
		// Window shorter than the slot: nothing to clamp into.
		cand.Mapping = MapDisqualified
		return cand, CutClip{}, true
	}

	cand.Mapping = MapClamped
	cand.Score = weight - clampPenalty
	return cand, clipFor(slot, t.File, in), true
}

func clipFor(slot Slot, file string, inPoint float64) CutClip {
	return CutClip{
		TimeGlobal: slot.StartS,
		Duration:   slot.DurationS,
		CameraFile: file,
		InPoint:    inPoint,
		OutPoint:   inPoint + slot.DurationS,
	}
}

// choose picks the highest-scoring qualified candidate. On a one-bar
// grid a tie prefers a take different from the previous slot's pick, so
// back-to-back slots alternate cameras instead of lingering.
func choose(cands []scored, preferSwitch bool, prevFile string) (scored, bool) {
	bestIdx := -1
	for i, c := range cands {
		if c.cand.Mapping == MapDisqualified {
			continue
		}
		if bestIdx == -1 {
			bestIdx = i
			continue
		}
		best := cands[bestIdx]
		switch {
		case c.cand.Score > best.cand.Score+scoreTol:
			bestIdx = i
		case preferSwitch &&
			math.Abs(c.cand.Score-best.cand.Score) <= scoreTol &&
			best.cand.File == prevFile && c.cand.File != prevFile:
			bestIdx = i
		}
	}
	if bestIdx == -1 {
		return scored{}, false
	}
	return cands[bestIdx], true
}

func clampWeight(w float64) float64 {
	return math.Min(math.Max(w, minSoloWeight), maxSoloWeight)
}
