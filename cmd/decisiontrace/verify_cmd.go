package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"

	"github.com/decisiontrace/core/pkg/verify"
)

// runVerifyCmd implements `decisiontrace verify`.
//
// Re-derives every record's hash and checks chain linkage across the whole
// log, stopping at the first break.
//
// Exit codes:
//
//	0 = log intact
//	1 = tampering or chain break detected
//	2 = runtime error
func runVerifyCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("verify", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var flags storeFlags
	flags.register(cmd)

	if err := cmd.Parse(args); err != nil {
		return 2
	}

	s, cfg, err := flags.open()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	defer s.Close()

	report, err := verify.Verify(context.Background(), s)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: verification aborted: %v\n", err)
		return 2
	}

	if flags.jsonOutput {
		data, _ := json.MarshalIndent(report, "", "  ")
		_, _ = fmt.Fprintln(stdout, string(data))
		if !report.OK {
			return 1
		}
		return 0
	}

	if report.OK {
		_, _ = fmt.Fprintln(stdout, paint(cfg, ColorGreen, "✅ Decision log verified."))
		_, _ = fmt.Fprintf(stdout, "  Records intact: %d\n", report.Count)
		return 0
	}

	_, _ = fmt.Fprintln(stdout, paint(cfg, ColorRed, "❌ Decision log integrity FAILED."))
	_, _ = fmt.Fprintf(stdout, "  Check:       %s\n", report.Kind)
	_, _ = fmt.Fprintf(stdout, "  Position:    %d\n", report.Position)
	_, _ = fmt.Fprintf(stdout, "  Decision ID: %s\n", report.DecisionID)
	_, _ = fmt.Fprintf(stdout, "  Detail:      %s\n", report.Detail)
	_, _ = fmt.Fprintf(stdout, "  Records before the break verified: %d\n", report.Count)
	return 1
}
