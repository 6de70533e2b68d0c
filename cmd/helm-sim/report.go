package main

import (
	"fmt"
	"io"

	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/budget"
	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/chain"
	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/packet"
	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/receipts"
	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/session"
)

// sessionReport is the output of the session commands.
type sessionReport struct {
	SessionID    string             `json:"sessionId"`
	Seed         uint32             `json:"seed"`
	Frozen       bool               `json:"frozen"`
	BudgetSpent  budget.Amount      `json:"budgetSpent"`
	Packets      []packet.Packet    `json:"packets"`
	Receipts     []receipts.Receipt `json:"receipts"`
	Outcomes     []packet.Outcome   `json:"outcomes,omitempty"`
	LedgerLength int                `json:"ledgerLength"`
	LedgerHead   string             `json:"ledgerHead"`
	Verification chain.Verification `json:"verification"`
}

func newSessionReport(c *session.Controller, v chain.Verification, outcomes []packet.Outcome) sessionReport {
	snap := c.Snapshot()
	r := sessionReport{
		SessionID:    snap.SessionID,
		Seed:         snap.Seed,
		Frozen:       snap.Frozen,
		BudgetSpent:  snap.BudgetSpent,
		Packets:      snap.Packets,
		Receipts:     snap.Receipts,
		Outcomes:     outcomes,
		LedgerLength: len(snap.Ledger),
		Verification: v,
	}
	if n := len(snap.Ledger); n > 0 {
		r.LedgerHead = snap.Ledger[n-1].Hash
	}
	return r
}

// exitCode is 1 when the session did not verify.
func (r sessionReport) exitCode() int {
	if r.Frozen || !r.Verification.Valid {
		return 1
	}
	return 0
}

func (r sessionReport) print(w io.Writer) {
	_, _ = fmt.Fprintf(w, "%sSession %s%s (seed %d)\n", ColorBold, r.SessionID, ColorReset, r.Seed)
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintf(w, "%sPACKETS:%s\n", ColorBold+ColorCyan, ColorReset)
	for i := range r.Packets {
		p := &r.Packets[i]
		_, _ = fmt.Fprintf(w, "  %-10s %-20s %8s  %s\n", p.Category, p.Status, p.Cost(), p.Title)
	}
	if len(r.Outcomes) > 0 {
		_, _ = fmt.Fprintf(w, "%sINTENTS:%s\n", ColorBold+ColorCyan, ColorReset)
		for _, o := range r.Outcomes {
			line := fmt.Sprintf("  %-16s %s", o.Intent, o.Status)
			if o.Reason != "" {
				line += " (" + o.Reason + ")"
			}
			_, _ = fmt.Fprintln(w, line)
		}
	}
	_, _ = fmt.Fprintf(w, "%sRECEIPTS:%s\n", ColorBold+ColorCyan, ColorReset)
	for _, rc := range r.Receipts {
		_, _ = fmt.Fprintf(w, "  #%d %-10s %s  %s\n", rc.ChainIndex, rc.Category, shortHash(rc.Hash), rc.Summary)
	}
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintf(w, "Budget spent: %s\n", r.BudgetSpent)
	_, _ = fmt.Fprintf(w, "Ledger:       %d events, head %s\n", r.LedgerLength, shortHash(r.LedgerHead))
	printVerdict(w, r.Verification.Valid, r.Verification.BrokenAt, r.Verification.Reason)
	if r.Frozen {
		_, _ = fmt.Fprintf(w, "%sSession frozen%s\n", ColorBold+ColorRed, ColorReset)
	}
}

func printVerdict(w io.Writer, valid bool, brokenAt *int, reason string) {
	if valid {
		_, _ = fmt.Fprintf(w, "Verification: %sVALID%s\n", ColorGreen, ColorReset)
		return
	}
	at := "?"
	if brokenAt != nil {
		at = fmt.Sprint(*brokenAt)
	}
	_, _ = fmt.Fprintf(w, "Verification: %sBROKEN at %s%s: %s\n", ColorRed, at, ColorReset, reason)
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
