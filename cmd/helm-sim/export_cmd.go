package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
)

// runExportCmd implements `helm-sim export`: runs the reference scenario
// and writes the session's audit evidence pack.
func runExportCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("export", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		flags   commonFlags
		outPath string
	)
	flags.register(cmd)
	cmd.StringVar(&outPath, "out", "", "Output path for the zip pack (REQUIRED)")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if outPath == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --out is required")
		return 2
	}

	ctx := context.Background()
	e, err := setup(ctx, flags, stderr)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	defer e.close(ctx)

	ctx, end := e.track(ctx, "export")
	defer end(nil)

	c, err := e.newSession(ctx)
	if err != nil {
		return fail(stderr, end, err)
	}
	if _, err := runScenario(ctx, c); err != nil {
		return fail(stderr, end, err)
	}

	pack, checksum, err := c.ExportPack(ctx)
	if err != nil {
		return fail(stderr, end, fmt.Errorf("export failed: %w", err))
	}
	if err := os.WriteFile(outPath, pack, 0644); err != nil {
		return fail(stderr, end, fmt.Errorf("cannot write pack: %w", err))
	}

	if flags.jsonOutput {
		if err := writeJSON(stdout, map[string]interface{}{
			"sessionId": c.ID(),
			"path":      outPath,
			"bytes":     len(pack),
			"sha256":    checksum,
		}); err != nil {
			return fail(stderr, end, err)
		}
		return 0
	}
	_, _ = fmt.Fprintf(stdout, "Evidence pack written to %s (%d bytes)\n", outPath, len(pack))
	_, _ = fmt.Fprintf(stdout, "sha256: %s\n", checksum)
	return 0
}
