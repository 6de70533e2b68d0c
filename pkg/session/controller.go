// Package session wraps the packet engine and the audit ledger. Every
// intent is recorded before it is applied, the chain is re-verified after,
// and a failed verification freezes the session for good.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/audit"
	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/budget"
	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/chain"
	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/digest"
	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/observability"
	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/packet"
	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/policy"
	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/prng"
	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/receipts"
	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/world"
)

// ReasonFrozen is the ignored-outcome reason for intents sent to a frozen
// session.
const ReasonFrozen = "session frozen after failed verification"

var ErrNilIntent = errors.New("session: nil intent")

// Options configures a Controller. Zero values select defaults.
type Options struct {
	SessionID string
	Seed      uint32
	Settings  policy.Settings
	Hasher    digest.Hasher

	// Text supplies option text for catalog generation.
	Text    *world.TextCatalog
	Clock   func() time.Time
	Logger  *slog.Logger
	Metrics *observability.Metrics
}

func (o *Options) defaults() {
	if o.SessionID == "" {
		o.SessionID = uuid.NewString()
	}
	if o.Hasher == nil {
		o.Hasher = digest.SHA256()
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	o.Logger = o.Logger.With("component", "session", "session_id", o.SessionID)
}

// Controller is one governed session. Its methods are safe for concurrent
// use; intents are applied one at a time.
type Controller struct {
	mu       sync.Mutex
	id       string
	seed     uint32
	hasher   digest.Hasher
	engine   *packet.Engine
	ledger   *audit.Ledger
	logger   *slog.Logger
	metrics  *observability.Metrics
	frozen   bool
	brokenAt *int
}

// New generates the session's catalog from the seed, constructs its
// packets and records session.started.
func New(ctx context.Context, opts Options) (*Controller, error) {
	opts.defaults()
	text := world.DefaultText()
	if opts.Text != nil {
		text = *opts.Text
	}
	if err := text.Validate(); err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	catalog := world.Generate(prng.New(opts.Seed), text)

	book := receipts.NewBook(opts.Hasher).WithClock(opts.Clock)
	engine, err := packet.Construct(catalog, opts.Settings,
		packet.WithBook(book),
		packet.WithLogger(opts.Logger),
	)
	if err != nil {
		return nil, fmt.Errorf("session: construct packets: %w", err)
	}

	c := &Controller{
		id:      opts.SessionID,
		seed:    opts.Seed,
		hasher:  opts.Hasher,
		engine:  engine,
		ledger:  audit.NewLedger(opts.Hasher).WithClock(opts.Clock),
		logger:  opts.Logger,
		metrics: opts.Metrics,
	}
	if err := c.append(ctx, audit.EventSessionStarted, map[string]interface{}{
		"seed":     opts.Seed,
		"settings": opts.Settings,
		"hasher":   opts.Hasher.Name(),
	}); err != nil {
		return nil, err
	}
	c.logger.InfoContext(ctx, "session started", "seed", opts.Seed, "persona", opts.Settings.Persona)
	return c, nil
}

func (c *Controller) append(ctx context.Context, eventType audit.EventType, data interface{}) error {
	if _, err := c.ledger.Append(ctx, c.id, eventType, data); err != nil {
		return fmt.Errorf("session: %w", err)
	}
	c.metrics.RecordAppend(ctx, "session")
	return nil
}

// Apply records the intent, applies it, and re-verifies the ledger.
// Intents sent to a frozen session are ignored without being recorded.
func (c *Controller) Apply(ctx context.Context, in packet.Intent) (packet.Outcome, error) {
	if in == nil {
		return packet.Outcome{}, ErrNilIntent
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.frozen {
		c.metrics.RecordIntent(ctx, string(in.Kind()), string(packet.OutcomeIgnored))
		return packet.Outcome{Status: packet.OutcomeIgnored, Intent: in.Kind(), Reason: ReasonFrozen}, nil
	}

	if err := c.append(ctx, in.Kind().EventType(), in); err != nil {
		return packet.Outcome{}, err
	}

	out, err := c.engine.Apply(ctx, in)
	if err != nil {
		return packet.Outcome{}, fmt.Errorf("session: apply %s: %w", in.Kind(), err)
	}
	if out.Status == packet.OutcomeIgnored {
		c.logger.WarnContext(ctx, "intent ignored", "intent", in.Kind(), "packet_id", out.PacketID, "reason", out.Reason)
	}
	for _, effect := range out.Effects {
		if err := c.append(ctx, effect.Type, effect.Data); err != nil {
			return packet.Outcome{}, err
		}
	}
	c.metrics.RecordIntent(ctx, string(in.Kind()), string(out.Status))

	if _, err := c.verifyLocked(ctx); err != nil {
		return packet.Outcome{}, err
	}
	return out, nil
}

// Verify re-walks the session ledger and the receipt chain. A failure
// freezes the session.
func (c *Controller) Verify(ctx context.Context) (chain.Verification, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.verifyLocked(ctx)
}

func (c *Controller) verifyLocked(ctx context.Context) (chain.Verification, error) {
	v, err := c.ledger.Verify(ctx)
	if err != nil {
		return v, fmt.Errorf("session: verify ledger: %w", err)
	}
	c.metrics.RecordVerification(ctx, "session", v.Valid)

	rv, err := c.engine.Book().Verify(ctx)
	if err != nil {
		return v, fmt.Errorf("session: verify receipts: %w", err)
	}
	c.metrics.RecordVerification(ctx, "receipts", rv.Valid)

	switch {
	case !v.Valid:
		c.freeze(ctx, v, "audit")
	case !rv.Valid:
		c.freeze(ctx, rv, "receipts")
		v = rv
	}
	if c.frozen && v.Valid {
		// Already frozen by an earlier failure; report where.
		v = chain.Verification{Valid: false, BrokenAt: c.brokenAt, Length: c.ledger.Len(), Reason: ReasonFrozen}
	}
	return v, nil
}

func (c *Controller) freeze(ctx context.Context, v chain.Verification, which string) {
	if c.frozen {
		return
	}
	c.frozen = true
	c.brokenAt = v.BrokenAt
	c.metrics.RecordFreeze(ctx)
	c.logger.ErrorContext(ctx, "chain integrity failure, session frozen",
		"chain", which, "broken_at", *v.BrokenAt, "reason", v.Reason)
	// Recorded for the trail; the chain stays broken at the original index.
	if err := c.append(ctx, audit.EventSessionFrozen, map[string]interface{}{
		"chain":    which,
		"brokenAt": *v.BrokenAt,
		"reason":   v.Reason,
	}); err != nil {
		c.logger.ErrorContext(ctx, "failed to record freeze", "error", err)
	}
}

func (c *Controller) ID() string {
	return c.id
}

// Frozen reports whether the session has halted.
func (c *Controller) Frozen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frozen
}

// Ledger returns a copy of the audit chain.
func (c *Controller) Ledger() []audit.Event {
	return c.ledger.Events()
}

func (c *Controller) Packets() []packet.Packet {
	return c.engine.Packets()
}

func (c *Controller) Receipts() []receipts.Receipt {
	return c.engine.Book().Receipts()
}

func (c *Controller) Spent() budget.Amount {
	return c.engine.Spent()
}

// PacketFor returns the id of the category's packet.
func (c *Controller) PacketFor(category policy.Category) (string, bool) {
	return c.engine.PacketFor(category)
}

// TamperEvent mutates a stored ledger event without resealing it, to
// demonstrate that the next intent or Verify freezes the session.
func (c *Controller) TamperEvent(i int, mutate func(*audit.Event)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logger.Warn("tampering with audit event", "index", i)
	return c.ledger.Tamper(i, mutate)
}

// TamperReceipt mutates a stored receipt without resealing it.
func (c *Controller) TamperReceipt(i int, mutate func(*receipts.Receipt)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logger.Warn("tampering with receipt", "index", i)
	return c.engine.Book().Tamper(i, mutate)
}

// ExportPack bundles the audit ledger into a zip evidence pack.
func (c *Controller) ExportPack(ctx context.Context) ([]byte, string, error) {
	return audit.NewExporter(c.ledger).GeneratePack(ctx, c.id)
}
