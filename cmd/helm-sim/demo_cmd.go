package main

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/packet"
	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/store"
)

// runDemoCmd implements `helm-sim demo`: a session is generated from the
// seed, the travel packet is approved and both chains are verified.
func runDemoCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("demo", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		flags  commonFlags
		saveID string
	)
	flags.register(cmd)
	cmd.StringVar(&saveID, "save", "", "Save the final snapshot to the configured store under this id")

	if err := cmd.Parse(args); err != nil {
		return 2
	}

	ctx := context.Background()
	e, err := setup(ctx, flags, stderr)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	defer e.close(ctx)

	ctx, end := e.track(ctx, "demo")
	defer end(nil)

	c, err := e.newSession(ctx)
	if err != nil {
		return fail(stderr, end, err)
	}
	out, err := runScenario(ctx, c)
	if err != nil {
		return fail(stderr, end, err)
	}
	v, err := c.Verify(ctx)
	if err != nil {
		return fail(stderr, end, err)
	}

	if saveID != "" {
		s, err := store.Open(ctx, e.cfg.Store)
		if err != nil {
			return fail(stderr, end, err)
		}
		defer func() { _ = s.Close() }()
		if err := s.Save(ctx, saveID, c.Snapshot()); err != nil {
			return fail(stderr, end, err)
		}
		e.logger.Info("snapshot saved", "id", saveID, "driver", e.cfg.Store.Driver)
	}

	report := newSessionReport(c, v, []packet.Outcome{out})
	if flags.jsonOutput {
		if err := writeJSON(stdout, report); err != nil {
			return fail(stderr, end, err)
		}
	} else {
		report.print(stdout)
	}
	return report.exitCode()
}
