package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/decisiontrace/core/pkg/bundle"
)

// runExportCmd implements `decisiontrace export`.
//
// With --out, exports the whole log as a self-contained evidence bundle.
// With --verify, re-checks a previously exported bundle offline.
func runExportCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("export", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var flags storeFlags
	flags.register(cmd)
	var (
		outPath    string
		verifyPath string
	)
	cmd.StringVar(&outPath, "out", "", "Write an evidence bundle to this path")
	cmd.StringVar(&verifyPath, "verify", "", "Verify a previously exported bundle")

	if err := cmd.Parse(args); err != nil {
		return 2
	}

	switch {
	case verifyPath != "":
		return exportVerify(verifyPath, flags, stdout, stderr)
	case outPath != "":
		return exportCreate(outPath, flags, stdout, stderr)
	default:
		_, _ = fmt.Fprintln(stderr, "Error: one of --out or --verify is required")
		cmd.Usage()
		return 2
	}
}

func exportCreate(outPath string, flags storeFlags, stdout, stderr io.Writer) int {
	s, cfg, err := flags.open()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	defer s.Close()

	b, err := bundle.Export(context.Background(), s)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: export failed: %v\n", err)
		return 2
	}

	f, err := os.Create(outPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	if err := b.Write(f); err != nil {
		f.Close()
		_, _ = fmt.Fprintf(stderr, "Error: write bundle: %v\n", err)
		return 2
	}
	if err := f.Close(); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	_, _ = fmt.Fprintln(stdout, paint(cfg, ColorGreen, "✅ Evidence bundle created: "+outPath))
	_, _ = fmt.Fprintf(stdout, "  Bundle ID:  %s\n", b.Manifest.BundleID)
	_, _ = fmt.Fprintf(stdout, "  Records:    %d\n", b.Manifest.RecordCount)
	_, _ = fmt.Fprintf(stdout, "  Chain Head: %s\n", b.Manifest.ChainHead)
	return 0
}

func exportVerify(path string, flags storeFlags, stdout, stderr io.Writer) int {
	f, err := os.Open(path)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	defer f.Close()

	b, err := bundle.Read(f)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	if err := b.Verify(); err != nil {
		_, _ = fmt.Fprintf(stdout, "❌ Bundle verification FAILED: %v\n", err)
		return 1
	}

	_, _ = fmt.Fprintf(stdout, "✅ Bundle verified: %s\n", path)
	_, _ = fmt.Fprintf(stdout, "  Bundle ID:  %s\n", b.Manifest.BundleID)
	_, _ = fmt.Fprintf(stdout, "  Records:    %d\n", b.Manifest.RecordCount)
	_, _ = fmt.Fprintf(stdout, "  Chain Head: %s\n", b.Manifest.ChainHead)
	return 0
}
