package main

import (
	"fmt"
	"log/slog"
	"os"
)

// initLogger configures the shared slog logger and calls slog.SetDefault
// so library packages route through the same handler. User-facing output
// stays on fmt.Printf; slog carries the diagnostics.
func initLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level:     level,
		AddSource: debug,
	})
	slog.SetDefault(slog.New(h))
}

func main() {
	args := os.Args[1:]
	debug := false
	if len(args) > 0 && (args[0] == "-debug" || args[0] == "--debug") {
		debug = true
		args = args[1:]
	}
	initLogger(debug)

	if len(args) < 1 {
		printUsage()
		os.Exit(1)
	}

	switch args[0] {
	case "refs":
		handleRefsCommand(args[1:])
	case "detect":
		handleDetectCommand(args[1:])
	case "plan":
		handlePlanCommand(args[1:])
	case "shell":
		handleShellCommand(args[1:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: loopsync [-debug] <command> [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  refs      Generate and list the cue reference library")
	fmt.Println("  detect    Find cue hits and take segments in camera files")
	fmt.Println("  plan      Build a bar-quantized cut list from a detection run")
	fmt.Println("  shell     Browse stored recordings and runs interactively")
	fmt.Println("  help      Show this help")
	fmt.Println()
	fmt.Println("Run 'loopsync <command> -h' for command options.")
}
