package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/decisiontrace/core/pkg/config"
	"github.com/decisiontrace/core/pkg/record"
	"github.com/decisiontrace/core/pkg/store"
)

// runDoctorCmd checks the local setup: configuration, log path, permissions,
// and whether the log parses end to end.
func runDoctorCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("doctor", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var flags storeFlags
	flags.register(cmd)

	if err := cmd.Parse(args); err != nil {
		return 2
	}

	failed := 0
	check := func(name string, err error) {
		if err != nil {
			failed++
			_, _ = fmt.Fprintf(stdout, "  ❌ %-14s %v\n", name+":", err)
			return
		}
		_, _ = fmt.Fprintf(stdout, "  ✅ %-14s ok\n", name+":")
	}

	_, _ = fmt.Fprintln(stdout, "decisiontrace doctor")

	cfg, err := config.Load()
	check("config", err)
	if err != nil {
		return 1
	}
	if flags.logPath != "" {
		cfg.LogFile = flags.logPath
	}
	_, _ = fmt.Fprintf(stdout, "  log file:      %s (backend %s)\n", cfg.LogFile, cfg.Backend)

	if info, statErr := os.Stat(cfg.LogFile); statErr == nil {
		check("log present", nil)
		_, _ = fmt.Fprintf(stdout, "  log size:      %d bytes\n", info.Size())
	} else if os.IsNotExist(statErr) {
		_, _ = fmt.Fprintln(stdout, "  ℹ️  log not created yet; first append will create it")
	} else {
		check("log present", statErr)
	}

	s, err := store.NewFileStore(cfg.LogFile)
	check("log path", err)
	if err != nil {
		return 1
	}

	count := 0
	scanErr := s.Scan(context.Background(), func(_ int, _ *record.DecisionRecord) (bool, error) {
		count++
		return true, nil
	})
	check("log parse", scanErr)
	_, _ = fmt.Fprintf(stdout, "  records:       %d\n", count)

	if _, lockErr := os.Stat(cfg.LogFile + ".lock"); lockErr == nil {
		_, _ = fmt.Fprintln(stdout, "  ⚠️  stale or active append lock present")
	}

	if failed > 0 {
		return 1
	}
	return 0
}
