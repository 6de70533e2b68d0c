package main

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/session"
	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/store"
)

// runResumeCmd implements `helm-sim resume`: a saved snapshot is loaded
// from the configured store, restored and re-verified.
func runResumeCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("resume", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		flags commonFlags
		id    string
		list  bool
	)
	flags.register(cmd)
	cmd.StringVar(&id, "id", "", "Snapshot id to restore")
	cmd.BoolVar(&list, "list", false, "List stored snapshot ids")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if id == "" && !list {
		_, _ = fmt.Fprintln(stderr, "Error: --id or --list is required")
		return 2
	}

	ctx := context.Background()
	e, err := setup(ctx, flags, stderr)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	defer e.close(ctx)

	ctx, end := e.track(ctx, "resume")
	defer end(nil)

	s, err := store.Open(ctx, e.cfg.Store)
	if err != nil {
		return fail(stderr, end, err)
	}
	defer func() { _ = s.Close() }()

	if list {
		ids, err := s.List(ctx)
		if err != nil {
			return fail(stderr, end, err)
		}
		if flags.jsonOutput {
			if err := writeJSON(stdout, ids); err != nil {
				return fail(stderr, end, err)
			}
			return 0
		}
		for _, id := range ids {
			_, _ = fmt.Fprintln(stdout, id)
		}
		return 0
	}

	snap, err := s.Load(ctx, id)
	if err != nil {
		return fail(stderr, end, err)
	}
	c, err := session.Restore(ctx, snap, e.sessionOptions())
	if err != nil {
		return fail(stderr, end, err)
	}
	v, err := c.Verify(ctx)
	if err != nil {
		return fail(stderr, end, err)
	}

	report := newSessionReport(c, v, nil)
	if flags.jsonOutput {
		if err := writeJSON(stdout, report); err != nil {
			return fail(stderr, end, err)
		}
	} else {
		report.print(stdout)
	}
	return report.exitCode()
}
