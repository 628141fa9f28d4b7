package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/loopsmith/loopsync/cue"
	"github.com/loopsmith/loopsync/detect"
	"github.com/loopsmith/loopsync/media"
	"github.com/loopsmith/loopsync/segment"
	"github.com/loopsmith/loopsync/store"
)

// runExport is the on-disk shape of a detection run, shared between
// `detect -out` and `plan -in`.
type runExport struct {
	Project   string          `json:"project,omitempty"`
	StartedAt time.Time       `json:"started_at"`
	Files     []store.RunFile `json:"files"`
}

func handleDetectCommand(args []string) {
	detectCmd := flag.NewFlagSet("detect", flag.ExitOnError)
	refsDir := detectCmd.String("refs", "./references", "Reference library directory")
	out := detectCmd.String("out", "", "Write the full run as JSON to this file")
	dbPath := detectCmd.String("db", "", "Persist the run into this SQLite database")
	project := detectCmd.String("project", "", "Project name recorded with the run")
	threshold := detectCmd.Float64("threshold", 0.20, "Correlation threshold in (0, 1]")
	minGap := detectCmd.Float64("gap", 1.0, "Minimum seconds between hits of one kind")
	workers := detectCmd.Int("workers", 0, "Worker pool size (0 = all cores)")
	detectCmd.Parse(args)

	files := detectCmd.Args()
	if len(files) == 0 {
		fmt.Println("Usage: loopsync detect [options] <file>...")
		fmt.Println("Example: loopsync detect -refs ./references -out run.json cam_a.mp4 cam_b.mp4")
		os.Exit(1)
	}

	decoder, err := media.NewDecoder()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	loader, err := cue.NewLoader(cue.DefaultLibraryConfig())
	if err != nil {
		fmt.Printf("Error creating loader: %v\n", err)
		os.Exit(1)
	}
	lib, err := loader.Load(*refsDir)
	if err != nil {
		fmt.Printf("Error loading references from %s: %v\n", *refsDir, err)
		fmt.Println("Run 'loopsync refs' to generate the reference library.")
		os.Exit(1)
	}

	cfg := detect.DefaultConfig()
	cfg.Threshold = *threshold
	cfg.MinGapS = *minGap
	det, err := detect.New(cfg)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	decode := func(ctx context.Context, path string) ([]float64, int, error) {
		return decoder.DecodeMono(ctx, path, cue.PrimaryRate)
	}
	batch, err := detect.NewBatch(det, lib, decode, *workers)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	started := time.Now()
	results := batch.Run(context.Background(), files)

	runFiles := make([]store.RunFile, 0, len(results))
	failed := 0
	fmt.Printf("%-42s %-8s %-6s %-6s %-8s %s\n", "File", "Dur", "Starts", "Ends", "Segments", "Status")
	for _, res := range results {
		segs := segment.Build(res.StartHits, res.EndHits)
		runFiles = append(runFiles, store.RunFile{Result: res, Segments: segs})

		status := "ok"
		if res.Failed() {
			status = res.Err
			failed++
		}
		fmt.Printf("%-42s %-8s %-6d %-6d %-8d %s\n",
			truncatePath(res.Path, 42),
			fmtSeconds(res.DurationS),
			len(res.StartHits),
			len(res.EndHits),
			len(segs),
			status,
		)
	}
	fmt.Printf("\n%d file(s), %d failed, in %s\n",
		len(results), failed, time.Since(started).Round(time.Millisecond))

	if *out != "" {
		export := runExport{Project: *project, StartedAt: started, Files: runFiles}
		if err := writeJSONAtomic(*out, export); err != nil {
			fmt.Printf("Error writing %s: %v\n", *out, err)
			os.Exit(1)
		}
		fmt.Printf("Run written to %s\n", *out)
	}

	if *dbPath != "" {
		st, err := store.Open(*dbPath)
		if err != nil {
			fmt.Printf("Error opening database: %v\n", err)
			os.Exit(1)
		}
		defer st.Close()
		id, err := st.SaveRun(*project, started, runFiles)
		if err != nil {
			fmt.Printf("Error saving run: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Saved run %d to %s\n", id, *dbPath)
	}
}
