package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/audit"
	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/budget"
	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/digest"
	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/packet"
	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/policy"
	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/receipts"
)

// Snapshot is the serialisable session state. It is made of plain records
// and round-trips through JSON exactly.
type Snapshot struct {
	SessionID      string             `json:"sessionId"`
	Seed           uint32             `json:"seed"`
	Hasher         string             `json:"hasher"`
	Settings       policy.Settings    `json:"settings"`
	Packets        []packet.Packet    `json:"packets"`
	Receipts       []receipts.Receipt `json:"receipts"`
	BudgetSpent    budget.Amount      `json:"budgetSpent"`
	ActiveCategory policy.Category    `json:"activeCategory"`
	Frozen         bool               `json:"frozen"`
	BrokenAt       *int               `json:"brokenAt,omitempty"`
	Ledger         []audit.Event      `json:"ledger"`
}

// Snapshot exports the session.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	state := c.engine.State()
	snap := Snapshot{
		SessionID:      c.id,
		Seed:           c.seed,
		Hasher:         c.hasher.Name(),
		Settings:       state.Settings,
		Packets:        state.Packets,
		Receipts:       state.Receipts,
		BudgetSpent:    state.Spent,
		ActiveCategory: state.ActiveCategory,
		Frozen:         c.frozen,
		Ledger:         c.ledger.Events(),
	}
	if c.brokenAt != nil {
		at := *c.brokenAt
		snap.BrokenAt = &at
	}
	return snap
}

// Restore rebuilds a controller from a snapshot. The loaded chains are
// verified immediately; a snapshot that does not verify restores frozen.
// opts supplies the logger, metrics and clock; its seed and settings are
// ignored.
func Restore(ctx context.Context, snap Snapshot, opts Options) (*Controller, error) {
	opts.SessionID = snap.SessionID
	h, err := digest.ByName(snap.Hasher)
	if err != nil {
		return nil, fmt.Errorf("session: restore: %w", err)
	}
	opts.Hasher = h
	opts.defaults()

	book := receipts.NewBook(h).WithClock(opts.Clock)
	engine, err := packet.Restore(packet.State{
		Settings:       snap.Settings,
		Packets:        snap.Packets,
		Receipts:       snap.Receipts,
		Spent:          snap.BudgetSpent,
		ActiveCategory: snap.ActiveCategory,
	}, packet.WithBook(book), packet.WithLogger(opts.Logger))
	if err != nil {
		return nil, fmt.Errorf("session: restore packets: %w", err)
	}

	ledger := audit.NewLedger(h).WithClock(opts.Clock)
	ledger.Load(snap.Ledger)

	c := &Controller{
		id:      snap.SessionID,
		seed:    snap.Seed,
		hasher:  h,
		engine:  engine,
		ledger:  ledger,
		logger:  opts.Logger,
		metrics: opts.Metrics,
		frozen:  snap.Frozen,
	}
	if snap.BrokenAt != nil {
		at := *snap.BrokenAt
		c.brokenAt = &at
	}
	if !c.frozen {
		if _, err := c.Verify(ctx); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Encode serialises the snapshot as JSON without HTML escaping, so the
// canonical payloads it embeds keep their exact bytes.
func (s Snapshot) Encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return nil, fmt.Errorf("session: encode snapshot: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// DecodeSnapshot parses a snapshot produced by Encode.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, fmt.Errorf("session: decode snapshot: %w", err)
	}
	return s, nil
}
