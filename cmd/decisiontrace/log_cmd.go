package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/decisiontrace/core/pkg/chain"
	"github.com/decisiontrace/core/pkg/record"
)

// runLogCmd implements `decisiontrace log`.
//
// Reads a candidate decision document (model, config, prompt,
// context_sources, output, confidence, risk_flags), validates it, chains it
// to the current tail, and appends it durably.
func runLogCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("log", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var flags storeFlags
	flags.register(cmd)
	var input string
	cmd.StringVar(&input, "input", "", "Candidate decision JSON file, or - for stdin (REQUIRED)")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if input == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --input is required")
		cmd.Usage()
		return 2
	}

	data, err := readInput(input)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	cand, err := record.ParseCandidate(data)
	if err != nil {
		var ve *record.ValidationError
		if errors.As(err, &ve) {
			_, _ = fmt.Fprintln(stderr, "Error: candidate rejected:")
			for _, f := range ve.Fields {
				_, _ = fmt.Fprintf(stderr, "  - %s\n", f)
			}
			return 2
		}
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	s, cfg, err := flags.open()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	defer s.Close()

	rec, err := chain.New(s).Append(context.Background(), cand)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	if flags.jsonOutput {
		out, _ := json.MarshalIndent(rec, "", "  ")
		_, _ = fmt.Fprintln(stdout, string(out))
		return 0
	}

	_, _ = fmt.Fprintln(stdout, paint(cfg, ColorGreen, "Decision successfully logged."))
	_, _ = fmt.Fprintf(stdout, "  Decision ID: %s\n", rec.DecisionID)
	_, _ = fmt.Fprintf(stdout, "  Record Hash: %s\n", rec.Hash)
	return 0
}

func readInput(input string) ([]byte, error) {
	if input == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(input)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", input, err)
	}
	return data, nil
}
