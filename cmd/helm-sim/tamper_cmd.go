package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"

	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/audit"
	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/packet"
	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/policy"
	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/receipts"
)

// runTamperCmd implements `helm-sim tamper`: after the reference scenario
// one stored entry is edited in place without resealing. The next intent
// re-verifies the chains and freezes the session.
func runTamperCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("tamper", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		flags   commonFlags
		index   int
		receipt bool
	)
	flags.register(cmd)
	cmd.IntVar(&index, "index", 1, "Index of the entry to tamper with (the scenario leaves one receipt, at 0)")
	cmd.BoolVar(&receipt, "receipt", false, "Tamper with the receipt chain instead of the audit ledger")

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

	ctx, end := e.track(ctx, "tamper")
	defer end(nil)

	c, err := e.newSession(ctx)
	if err != nil {
		return fail(stderr, end, err)
	}
	first, err := runScenario(ctx, c)
	if err != nil {
		return fail(stderr, end, err)
	}

	if receipt {
		err = c.TamperReceipt(index, func(r *receipts.Receipt) {
			r.Summary += " (edited)"
		})
	} else {
		err = c.TamperEvent(index, func(ev *audit.Event) {
			ev.Data = json.RawMessage(`{"tampered":true}`)
		})
	}
	if err != nil {
		return fail(stderr, end, err)
	}

	second, err := c.Apply(ctx, packet.DrillDown{Category: policy.CategoryGifts})
	if err != nil {
		return fail(stderr, end, err)
	}
	v, err := c.Verify(ctx)
	if err != nil {
		return fail(stderr, end, err)
	}

	report := newSessionReport(c, v, []packet.Outcome{first, second})
	if flags.jsonOutput {
		if err := writeJSON(stdout, report); err != nil {
			return fail(stderr, end, err)
		}
	} else {
		report.print(stdout)
	}
	return report.exitCode()
}
