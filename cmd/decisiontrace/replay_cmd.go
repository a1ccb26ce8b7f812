package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/decisiontrace/core/pkg/config"
	"github.com/decisiontrace/core/pkg/replay"
)

// runReplayCmd implements `decisiontrace replay <decision_id>`.
//
// Reconstructs one record in full for inspection. The integrity note is
// advisory: a tampered record is still shown, with the failure called out.
func runReplayCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("replay", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var flags storeFlags
	flags.register(cmd)

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if cmd.NArg() != 1 {
		_, _ = fmt.Fprintln(stderr, "Usage: decisiontrace replay [flags] <decision_id>")
		return 2
	}
	decisionID := cmd.Arg(0)

	s, cfg, err := flags.open()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	defer s.Close()

	res, err := replay.Replay(context.Background(), s, decisionID)
	if err != nil {
		var nf *replay.NotFoundError
		if errors.As(err, &nf) {
			_, _ = fmt.Fprintln(stdout, paint(cfg, ColorRed, fmt.Sprintf("Decision ID %q not found.", decisionID)))
			return 1
		}
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	if flags.jsonOutput {
		data, _ := json.MarshalIndent(res, "", "  ")
		_, _ = fmt.Fprintln(stdout, string(data))
		return 0
	}

	printReplay(stdout, cfg, res)
	return 0
}

func printReplay(w io.Writer, cfg *config.Config, res *replay.Result) {
	rec := res.Record

	_, _ = fmt.Fprintln(w, paint(cfg, ColorBold+ColorCyan, "Decision Replay: "+rec.DecisionID))
	_, _ = fmt.Fprintf(w, "  Position:  %d\n", res.Position)
	_, _ = fmt.Fprintf(w, "  Timestamp: %s\n", rec.Timestamp)
	_, _ = fmt.Fprintf(w, "  Model:     %s\n", rec.Model)

	_, _ = fmt.Fprintln(w, paint(cfg, ColorBold, "Config:"))
	if len(rec.Config) == 0 {
		_, _ = fmt.Fprintln(w, "  (none)")
	} else {
		data, _ := json.MarshalIndent(rec.Config, "  ", "  ")
		_, _ = fmt.Fprintf(w, "  %s\n", string(data))
	}

	_, _ = fmt.Fprintln(w, paint(cfg, ColorBold+ColorYellow, "Prompt:"))
	printBlock(w, rec.Prompt)
	_, _ = fmt.Fprintln(w, paint(cfg, ColorBold+ColorGreen, "Output:"))
	printBlock(w, rec.Output)

	_, _ = fmt.Fprintln(w, paint(cfg, ColorBold, "Metadata:"))
	_, _ = fmt.Fprintf(w, "  Context Sources: %s\n", orNone(strings.Join(rec.ContextSources, ", ")))
	if rec.Confidence != nil {
		_, _ = fmt.Fprintf(w, "  Confidence:      %g\n", *rec.Confidence)
	} else {
		_, _ = fmt.Fprintln(w, "  Confidence:      N/A")
	}
	_, _ = fmt.Fprintf(w, "  Risk Flags:      %s\n", orNone(strings.Join(rec.RiskFlags, ", ")))

	_, _ = fmt.Fprintln(w, paint(cfg, ColorBold, "Integrity Chain:"))
	_, _ = fmt.Fprintf(w, "  Previous Hash: %s\n", rec.PrevHash)
	_, _ = fmt.Fprintf(w, "  Record Hash:   %s\n", rec.Hash)
	if res.Integrity.HashOK && res.Integrity.LinkOK {
		_, _ = fmt.Fprintln(w, paint(cfg, ColorGreen, "  Record hash and linkage intact."))
	} else {
		_, _ = fmt.Fprintln(w, paint(cfg, ColorRed, "  ⚠ Integrity check failed: "+res.Integrity.Detail))
	}
}

func printBlock(w io.Writer, text string) {
	for _, line := range strings.Split(text, "\n") {
		_, _ = fmt.Fprintf(w, "  %s\n", line)
	}
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
