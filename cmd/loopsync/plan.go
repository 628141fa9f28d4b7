package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/loopsmith/loopsync/internal/wavio"
	"github.com/loopsmith/loopsync/media"
	"github.com/loopsmith/loopsync/plan"
	"github.com/loopsmith/loopsync/store"
)

func handlePlanCommand(args []string) {
	planCmd := flag.NewFlagSet("plan", flag.ExitOnError)
	dbPath := planCmd.String("db", "", "SQLite database holding recordings and runs")
	runJSON := planCmd.String("in", "", "Detection run JSON from 'detect -out' (alternative to -db)")
	project := planCmd.String("project", "", "Project to load the latest recording and run for")
	audio := planCmd.String("audio", "", "Session audio file; its duration sizes the timeline")
	durationFlag := planCmd.Float64("duration", 0, "Timeline duration in seconds (overrides -audio)")
	anchor := planCmd.Float64("anchor", 0, "Audio anchor on the shared timeline, seconds")
	bars := planCmd.Int("bars", 1, "Bars per cut")
	slotOverride := planCmd.Float64("slot", 0, "Fixed slot length in seconds (overrides bar math)")
	bpmFlag := planCmd.Float64("bpm", 0, "Tempo; taken from the latest recording when omitted")
	tsNum := planCmd.Int("ts-num", 0, "Time signature numerator; from the latest recording when omitted")
	tsDen := planCmd.Int("ts-den", 0, "Time signature denominator; from the latest recording when omitted")
	out := planCmd.String("o", "cutlist.json", "Cut list output path")
	tracePath := planCmd.String("trace", "", "Write the per-slot decision trace to this file")
	planCmd.Parse(args)

	if *runJSON == "" && *dbPath == "" {
		fmt.Println("Usage: loopsync plan (-db <file> | -in run.json) -audio <file> [options]")
		fmt.Println("Example: loopsync plan -db loopsync.sqlite -project garage -audio mix.wav -o cutlist.json")
		os.Exit(1)
	}

	var st *store.Store
	if *dbPath != "" {
		var err error
		st, err = store.Open(*dbPath)
		if err != nil {
			fmt.Printf("Error opening database: %v\n", err)
			os.Exit(1)
		}
		defer st.Close()
	}

	runFiles := loadRunFiles(st, *runJSON, *project)

	cfg := plan.Config{
		BPM:           *bpmFlag,
		TSNum:         *tsNum,
		TSDen:         *tsDen,
		BarsPerCut:    *bars,
		SlotOverrideS: *slotOverride,
		AudioAnchorS:  *anchor,
	}
	if cfg.SlotOverrideS <= 0 && cfg.BPM <= 0 {
		fillGridFromRecording(st, *project, &cfg)
	}
	if cfg.TSNum <= 0 {
		cfg.TSNum = 4
	}
	if cfg.TSDen <= 0 {
		cfg.TSDen = 4
	}

	cfg.AudioDurationS = *durationFlag
	if cfg.AudioDurationS <= 0 {
		if *audio == "" {
			fmt.Println("Error: timeline length unknown; pass -audio <file> or -duration <seconds>")
			os.Exit(1)
		}
		cfg.AudioDurationS = audioDuration(*audio)
	}

	takes := buildTakes(runFiles)
	if len(takes) == 0 {
		fmt.Println("Warning: no usable take segments; the cut list will be all filler")
	}

	result, err := plan.Build(cfg, takes)
	if err != nil {
		fmt.Printf("Error planning cuts: %v\n", err)
		os.Exit(1)
	}

	if err := writeJSONAtomic(*out, result.Clips); err != nil {
		fmt.Printf("Error writing %s: %v\n", *out, err)
		os.Exit(1)
	}
	if *tracePath != "" {
		if err := writeJSONAtomic(*tracePath, result.Trace); err != nil {
			fmt.Printf("Error writing %s: %v\n", *tracePath, err)
			os.Exit(1)
		}
	}

	filler := 0
	for _, c := range result.Clips {
		if c.IsFiller() {
			filler++
		}
	}
	fmt.Printf("Planned %d clip(s) over %.1fs from %d take(s), %d filler\n",
		len(result.Clips), cfg.AudioDurationS, len(takes), filler)
	fmt.Printf("Cut list written to %s\n", *out)
}

// loadRunFiles reads the detection run from JSON when given, otherwise
// from the newest stored run for the project.
func loadRunFiles(st *store.Store, runJSON, project string) []store.RunFile {
	if runJSON != "" {
		raw, err := os.ReadFile(runJSON)
		if err != nil {
			fmt.Printf("Error reading %s: %v\n", runJSON, err)
			os.Exit(1)
		}
		var export runExport
		if err := json.Unmarshal(raw, &export); err != nil {
			fmt.Printf("Error parsing %s: %v\n", runJSON, err)
			os.Exit(1)
		}
		return export.Files
	}

	run, err := st.LatestRun(project)
	if err != nil {
		fmt.Printf("Error loading latest run: %v\n", err)
		os.Exit(1)
	}
	if run == nil {
		fmt.Println("Error: no detection run found; run 'loopsync detect -db' first")
		os.Exit(1)
	}
	fmt.Printf("Using run %d from %s\n", run.ID, run.StartedAt.Format("2006-01-02 15:04:05"))
	return run.Files
}

// fillGridFromRecording copies tempo and time signature from the
// newest finalized recording for the project.
func fillGridFromRecording(st *store.Store, project string, cfg *plan.Config) {
	if st == nil {
		fmt.Println("Error: tempo unknown; pass -bpm, -slot, or -db with a recording")
		os.Exit(1)
	}
	rec, err := st.LatestRecording(project)
	if err != nil {
		fmt.Printf("Error loading latest recording: %v\n", err)
		os.Exit(1)
	}
	if rec == nil {
		fmt.Println("Error: no recording found for the project; pass -bpm or -slot instead")
		os.Exit(1)
	}
	cfg.BPM = rec.Snapshot.BPM
	if cfg.TSNum <= 0 {
		cfg.TSNum = rec.Snapshot.TSNum
	}
	if cfg.TSDen <= 0 {
		cfg.TSDen = rec.Snapshot.TSDen
	}
	fmt.Printf("Using recording %s: %.1f BPM, %d/%d\n",
		rec.ID, cfg.BPM, cfg.TSNum, cfg.TSDen)
}

// audioDuration probes the session audio length, preferring ffprobe
// and falling back to the WAV reader when the tooling is missing.
func audioDuration(path string) float64 {
	decoder, err := media.NewDecoder()
	if err == nil {
		info, probeErr := decoder.Probe(context.Background(), path)
		if probeErr != nil {
			fmt.Printf("Error probing %s: %v\n", path, probeErr)
			os.Exit(1)
		}
		return info.DurationS
	}
	if strings.EqualFold(filepath.Ext(path), ".wav") {
		clip, readErr := wavio.ReadFile(path)
		if readErr != nil {
			fmt.Printf("Error reading %s: %v\n", path, readErr)
			os.Exit(1)
		}
		return clip.Duration()
	}
	fmt.Printf("Error: %v\n", err)
	os.Exit(1)
	return 0
}

// buildTakes converts run segments into aligned camera takes. Failed
// files and degenerate segments are skipped with a note.
func buildTakes(files []store.RunFile) []plan.CameraTake {
	var takes []plan.CameraTake
	for _, rf := range files {
		if rf.Result.Failed() {
			fmt.Printf("Skipping %s: %s\n", rf.Result.Path, rf.Result.Err)
			continue
		}
		for _, seg := range rf.Segments {
			take, err := plan.TakeFromSegment(rf.Result.Path, seg, rf.Result.DurationS, nil)
			if err != nil {
				fmt.Printf("Skipping segment %d of %s: %v\n", seg.Index, rf.Result.Path, err)
				continue
			}
			takes = append(takes, take)
		}
	}
	return takes
}
