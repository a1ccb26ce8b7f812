package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"

	"github.com/decisiontrace/core/pkg/chain"
)

// runHeadCmd prints the current chain head: the hash of the last record, or
// the genesis sentinel for an empty log.
func runHeadCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("head", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var flags storeFlags
	flags.register(cmd)

	if err := cmd.Parse(args); err != nil {
		return 2
	}

	s, _, err := flags.open()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	defer s.Close()

	head, err := chain.New(s).Head(context.Background())
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	if flags.jsonOutput {
		data, _ := json.Marshal(map[string]string{"chain_head": head})
		_, _ = fmt.Fprintln(stdout, string(data))
		return 0
	}
	_, _ = fmt.Fprintln(stdout, head)
	return 0
}
