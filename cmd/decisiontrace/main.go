// Command decisiontrace is an append-only, tamper-evident audit log for AI
// decisions. Every record is hash-chained to its predecessor; any later
// alteration of history is detectable by `decisiontrace verify`.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/decisiontrace/core/pkg/config"
	"github.com/decisiontrace/core/pkg/store"
)

const version = "0.1.0"

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the entrypoint, split from main for testing.
//
// Exit codes:
//
//	0 = success
//	1 = verification/integrity failure, or record not found
//	2 = usage or runtime error
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		printUsage(stderr)
		return 2
	}

	switch args[1] {
	case "log":
		return runLogCmd(args[2:], stdout, stderr)
	case "verify":
		return runVerifyCmd(args[2:], stdout, stderr)
	case "replay":
		return runReplayCmd(args[2:], stdout, stderr)
	case "head":
		return runHeadCmd(args[2:], stdout, stderr)
	case "export":
		return runExportCmd(args[2:], stdout, stderr)
	case "doctor":
		return runDoctorCmd(args[2:], stdout, stderr)
	case "version", "--version":
		_, _ = fmt.Fprintf(stdout, "decisiontrace %s\n", version)
		return 0
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		_, _ = fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		printUsage(stderr)
		return 2
	}
}

// ANSI Colors
const (
	ColorReset  = "\033[0m"
	ColorBold   = "\033[1m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorBlue   = "\033[34m"
	ColorCyan   = "\033[36m"
	ColorGray   = "\033[37m"
)

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "%sDecisionTrace %s%s\n", ColorBold+ColorBlue, "v"+version, ColorReset)
	fmt.Fprintf(w, "%sAn append-only audit log for AI decisions.%s\n", ColorGray, ColorReset)
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "%sUSAGE:%s\n", ColorBold, ColorReset)
	fmt.Fprintln(w, "  decisiontrace <command> [flags]")
	fmt.Fprintln(w, "")

	printSection(w, "RECORDING")
	printCommand(w, "log", "Append a decision from a JSON file (--input)")

	printSection(w, "AUDITING")
	printCommand(w, "verify", "Verify the whole log's hash chain (--json)")
	printCommand(w, "replay", "Replay one decision by its ID")
	printCommand(w, "head", "Print the current chain head hash")
	printCommand(w, "export", "Export or verify an evidence bundle (--out, --verify)")

	printSection(w, "UTILITIES")
	printCommand(w, "doctor", "Check log path, permissions, and parseability")
	printCommand(w, "version", "Show version information")
	printCommand(w, "help", "Show this help")
	fmt.Fprintln(w, "")
}

func printSection(w io.Writer, title string) {
	fmt.Fprintf(w, "%s%s:%s\n", ColorBold+ColorCyan, title, ColorReset)
}

func printCommand(w io.Writer, name, desc string) {
	fmt.Fprintf(w, "  %s%-10s%s %s\n", ColorGreen, name, ColorReset, desc)
}

// storeFlags are the flags shared by every subcommand that touches the log.
type storeFlags struct {
	logPath    string
	backend    string
	jsonOutput bool
}

func (f *storeFlags) register(cmd *flag.FlagSet) {
	cmd.StringVar(&f.logPath, "log", "", "Path to the decision log (default from config)")
	cmd.StringVar(&f.backend, "store", "", "Log store backend: file or sqlite")
	cmd.BoolVar(&f.jsonOutput, "json", false, "Output result as JSON")
}

// open resolves configuration and opens the selected store.
func (f *storeFlags) open() (store.Store, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if f.logPath != "" {
		cfg.LogFile = f.logPath
	}
	if f.backend != "" {
		cfg.Backend = f.backend
	}

	switch cfg.Backend {
	case "sqlite":
		s, err := store.OpenSQLite(cfg.LogFile)
		return s, cfg, err
	case "file":
		s, err := store.NewFileStore(cfg.LogFile)
		return s, cfg, err
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// paint wraps s in an ANSI color unless color output is disabled.
func paint(cfg *config.Config, color, s string) string {
	if cfg != nil && cfg.NoColor {
		return s
	}
	return color + s + ColorReset
}
