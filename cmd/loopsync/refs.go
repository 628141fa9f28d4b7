package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/loopsmith/loopsync/cue"
)

func handleRefsCommand(args []string) {
	refsCmd := flag.NewFlagSet("refs", flag.ExitOnError)
	dir := refsCmd.String("dir", "./references", "Reference library directory")
	refsCmd.Parse(args)

	if err := cue.EnsurePrimaryReferences(*dir); err != nil {
		fmt.Printf("Error generating references: %v\n", err)
		os.Exit(1)
	}

	loader, err := cue.NewLoader(cue.DefaultLibraryConfig())
	if err != nil {
		fmt.Printf("Error creating loader: %v\n", err)
		os.Exit(1)
	}
	lib, err := loader.Load(*dir)
	if err != nil {
		fmt.Printf("Error loading library from %s: %v\n", *dir, err)
		os.Exit(1)
	}

	fmt.Printf("Reference library: %s\n\n", *dir)
	fmt.Printf("%-6s %-28s %s\n", "Kind", "ID", "Duration")
	fmt.Printf("%-6s %-28s %s\n", "----", "--", "--------")
	for _, w := range lib.Starts {
		fmt.Printf("%-6s %-28s %.2fs\n", w.Kind, w.ID, w.Duration())
	}
	for _, w := range lib.Ends {
		fmt.Printf("%-6s %-28s %.2fs\n", w.Kind, w.ID, w.Duration())
	}

	entries, err := os.ReadDir(*dir)
	if err != nil {
		fmt.Printf("Error reading %s: %v\n", *dir, err)
		os.Exit(1)
	}
	fmt.Printf("\nFiles:\n")
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".wav") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		fmt.Printf("  %-30s %10s   %s\n",
			e.Name(),
			humanize.Bytes(uint64(info.Size())),
			humanize.Time(info.ModTime()),
		)
	}
	fmt.Printf("\nLoaded %d start and %d end reference(s)\n", len(lib.Starts), len(lib.Ends))
}
