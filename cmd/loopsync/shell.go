package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/dustin/go-humanize"

	"github.com/loopsmith/loopsync/session"
	"github.com/loopsmith/loopsync/store"
)

type browseShell struct {
	db      *store.Store
	dbPath  string
	project string
}

func handleShellCommand(args []string) {
	shellCmd := flag.NewFlagSet("shell", flag.ExitOnError)
	dbPath := shellCmd.String("db", "./loopsync.sqlite", "SQLite database to browse")
	project := shellCmd.String("project", "", "Initial project filter")
	shellCmd.Parse(args)

	st, err := store.Open(*dbPath)
	if err != nil {
		fmt.Printf("Error opening database: %v\n", err)
		os.Exit(1)
	}

	sh := &browseShell{db: st, dbPath: *dbPath, project: *project}
	sh.run()
}

func (sh *browseShell) run() {
	defer sh.db.Close()

	fmt.Printf("=== Loopsync Shell ===\n")
	fmt.Printf("Database: %s\n", sh.dbPath)
	if sh.project != "" {
		fmt.Printf("Project: %s\n", sh.project)
	}
	fmt.Printf("\nCommands:\n")
	fmt.Printf("  use <project>        Filter by project\n")
	fmt.Printf("  recordings [n]       List the newest recordings\n")
	fmt.Printf("  latest               Show the newest recording in detail\n")
	fmt.Printf("  run                  Show the newest detection run\n")
	fmt.Printf("  status               Show database and filter state\n")
	fmt.Printf("  help                 Show this help\n")
	fmt.Printf("  exit                 Leave the shell\n")
	fmt.Printf("\n")

	homeDir, err := os.UserHomeDir()
	if err != nil {
		fmt.Printf("Warning: Could not get home directory: %v\n", err)
		homeDir = "."
	}
	historyFile := filepath.Join(homeDir, ".loopsync_history")

	config := &readline.Config{
		Prompt:       "loopsync> ",
		HistoryFile:  historyFile,
		AutoComplete: sh.completer(),
	}

	rl, err := readline.NewEx(config)
	if err != nil {
		fmt.Printf("Error initializing readline: %v\n", err)
		return
	}
	defer rl.Close()

	for {
		input, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				fmt.Println("\nExiting...")
				break
			}
			fmt.Printf("Error reading input: %v\n", err)
			break
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if !sh.handleCommand(input) {
			break
		}
	}
}

func (sh *browseShell) completer() readline.AutoCompleter {
	return readline.NewPrefixCompleter(
		readline.PcItem("use"),
		readline.PcItem("recordings"),
		readline.PcItem("latest"),
		readline.PcItem("run"),
		readline.PcItem("status"),
		readline.PcItem("help"),
		readline.PcItem("exit"),
	)
}

func (sh *browseShell) handleCommand(input string) bool {
	fields := strings.Fields(input)
	switch fields[0] {
	case "use":
		if len(fields) < 2 {
			fmt.Println("Usage: use <project>")
			return true
		}
		sh.project = fields[1]
		fmt.Printf("Filtering by project %q\n", sh.project)
	case "recordings":
		limit := 10
		if len(fields) > 1 {
			n, err := strconv.Atoi(fields[1])
			if err != nil || n < 1 {
				fmt.Printf("Bad count: %s\n", fields[1])
				return true
			}
			limit = n
		}
		sh.showRecordings(limit)
	case "latest":
		sh.showLatestRecording()
	case "run":
		sh.showLatestRun()
	case "status":
		sh.showStatus()
	case "help":
		fmt.Println("Commands: use <project>, recordings [n], latest, run, status, help, exit")
	case "exit", "quit":
		fmt.Println("Bye")
		return false
	default:
		fmt.Printf("Unknown command: %s (try 'help')\n", fields[0])
	}
	return true
}

func (sh *browseShell) showRecordings(limit int) {
	recs, err := sh.db.Recordings(sh.project, limit)
	if err != nil {
		fmt.Printf("Error listing recordings: %v\n", err)
		return
	}
	if len(recs) == 0 {
		fmt.Println("No recordings found")
		return
	}
	fmt.Printf("%-10s %-14s %-20s %-9s %-6s %s\n", "ID", "Project", "Started", "Duration", "Takes", "Loop")
	for _, rec := range recs {
		fmt.Printf("%-10s %-14s %-20s %-9s %-6s %s\n",
			shortID(rec.ID),
			rec.Project,
			humanize.Time(rec.StartedAt),
			fmtSeconds(rec.DurationS),
			takeDesc(rec.Loop),
			loopDesc(rec.Loop),
		)
	}
}

func (sh *browseShell) showLatestRecording() {
	rec, err := sh.db.LatestRecording(sh.project)
	if err != nil {
		fmt.Printf("Error loading recording: %v\n", err)
		return
	}
	if rec == nil {
		fmt.Println("No recordings found")
		return
	}
	fmt.Printf("Recording %s\n", rec.ID)
	fmt.Printf("  Project:   %s\n", rec.Project)
	fmt.Printf("  Started:   %s (%s)\n", rec.StartedAt.Format("2006-01-02 15:04:05"), humanize.Time(rec.StartedAt))
	fmt.Printf("  Duration:  %s\n", fmtSeconds(rec.DurationS))
	fmt.Printf("  Tempo:     %.1f BPM, %d/%d\n", rec.Snapshot.BPM, rec.Snapshot.TSNum, rec.Snapshot.TSDen)
	fmt.Printf("  Takes:     %s (%s)\n", takeDesc(rec.Loop), loopDesc(rec.Loop))
	if rec.ZeroDuration {
		fmt.Printf("  Note:      zero-duration window (desynchronized stop)\n")
	}
	if len(rec.Snapshot.ArmedTracks) > 0 {
		fmt.Printf("  Tracks:    %s\n", strings.Join(rec.Snapshot.ArmedTracks, ", "))
	}
}

func (sh *browseShell) showLatestRun() {
	run, err := sh.db.LatestRun(sh.project)
	if err != nil {
		fmt.Printf("Error loading run: %v\n", err)
		return
	}
	if run == nil {
		fmt.Println("No detection runs found")
		return
	}
	fmt.Printf("Run %d, started %s\n", run.ID, humanize.Time(run.StartedAt))
	fmt.Printf("%-42s %-8s %-6s %-6s %-8s %s\n", "File", "Dur", "Starts", "Ends", "Segments", "Status")
	for _, rf := range run.Files {
		status := "ok"
		if rf.Result.Failed() {
			status = rf.Result.Err
		}
		fmt.Printf("%-42s %-8s %-6d %-6d %-8d %s\n",
			truncatePath(rf.Result.Path, 42),
			fmtSeconds(rf.Result.DurationS),
			len(rf.Result.StartHits),
			len(rf.Result.EndHits),
			len(rf.Segments),
			status,
		)
	}
}

func (sh *browseShell) showStatus() {
	fmt.Printf("Database: %s\n", sh.dbPath)
	if sh.project == "" {
		fmt.Printf("Project:  (all)\n")
	} else {
		fmt.Printf("Project:  %s\n", sh.project)
	}
	recs, err := sh.db.Recordings(sh.project, 0)
	if err != nil {
		fmt.Printf("Error counting recordings: %v\n", err)
		return
	}
	fmt.Printf("Recordings: %d\n", len(recs))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func takeDesc(loop session.LoopTakeBounds) string {
	switch {
	case !loop.TakesRecorded:
		return "none"
	case loop.MultipleTakes:
		return "2+"
	default:
		return "1"
	}
}

func loopDesc(loop session.LoopTakeBounds) string {
	if loop.StartS == nil || loop.EndS == nil {
		return "no takes"
	}
	return fmt.Sprintf("[%.1fs, %.1fs]", *loop.StartS, *loop.EndS)
}
