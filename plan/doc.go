// Package plan schedules camera cuts onto a bar-aligned grid.
//
// # Overview
//
// The planner answers one question: for every bar-sized slice of a
// master audio track, which camera take should be on screen? Inputs are
// plain data produced upstream:
//
//   - a master audio timeline: its duration and the instant of the
//     start cue inside it (the audio anchor)
//   - camera takes: per file, the usable window located by cue
//     detection and the start-cue instant inside that file
//
// Timelines are aligned cue-to-cue:
//
//	camera_time = audio_time - audio_anchor + camera_anchor
//
// # Scoring
//
// Slots tile [0, audio_duration) in order, each one bar long times the
// configured bars-per-cut, with the final slot truncated. For every
// slot each overlapping take becomes a scored candidate:
//
//   - the slot maps entirely inside the usable window: "ideal", scored
//     at the take's solo weight
//   - the slot can be shifted to fit inside the window: "clamped",
//     solo weight minus a fixed penalty
//   - the window cannot hold the slot at all: disqualified
//
// The solo weight is audio_duration/take_duration clamped to [1, 6], so
// short takes, which exist because someone deliberately captured a
// moment, outrank long catch-all takes. The best candidate wins; with
// one-bar cuts a tie prefers switching cameras over lingering. Slots no
// take covers become filler clips rather than failing the plan.
//
// Every call also returns a per-slot trace naming the candidates, their
// scores and how each mapped, so a surprising cut can be explained
// after the fact.
//
// The planner is a deterministic single pass over its inputs and holds
// no state between calls.
package plan
