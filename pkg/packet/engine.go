package packet

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/audit"
	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/budget"
	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/digest"
	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/policy"
	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/receipts"
	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/world"
)

// State is the engine's serialisable state.
type State struct {
	Settings       policy.Settings    `json:"settings"`
	Packets        []Packet           `json:"packets"`
	Receipts       []receipts.Receipt `json:"receipts"`
	Spent          budget.Amount      `json:"budgetSpent"`
	ActiveCategory policy.Category    `json:"activeCategory"`
}

// Engine owns the packets of one session and applies intents to them.
type Engine struct {
	mu        sync.Mutex
	evaluator *policy.Evaluator
	book      *receipts.Book
	logger    *slog.Logger

	settings policy.Settings
	packets  []*Packet
	spent    budget.Amount
	active   policy.Category
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

func WithEvaluator(ev *policy.Evaluator) EngineOption {
	return func(e *Engine) { e.evaluator = ev }
}

func WithBook(b *receipts.Book) EngineOption {
	return func(e *Engine) { e.book = b }
}

func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

func newEngine(settings policy.Settings, opts []EngineOption) (*Engine, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{settings: settings}
	for _, opt := range opts {
		opt(e)
	}
	if e.evaluator == nil {
		ev, err := policy.NewEvaluator()
		if err != nil {
			return nil, err
		}
		e.evaluator = ev
	}
	if e.book == nil {
		e.book = receipts.NewBook(digest.SHA256())
	}
	if e.logger == nil {
		e.logger = slog.Default().With("component", "packet")
	}
	return e, nil
}

// Construct builds one packet per category from the catalog and computes
// every initial policy check.
func Construct(catalog world.Catalog, settings policy.Settings, opts ...EngineOption) (*Engine, error) {
	e, err := newEngine(settings, opts)
	if err != nil {
		return nil, err
	}
	for _, category := range policy.Categories {
		p, err := builders[category](catalog)
		if err != nil {
			return nil, err
		}
		e.packets = append(e.packets, p)
	}
	e.recheck()
	return e, nil
}

// Restore rebuilds an engine from exported state. The receipt book is
// reloaded as-is.
func Restore(state State, opts ...EngineOption) (*Engine, error) {
	e, err := newEngine(state.Settings, opts)
	if err != nil {
		return nil, err
	}
	for i := range state.Packets {
		p := state.Packets[i].clone()
		e.packets = append(e.packets, &p)
	}
	e.book.Load(state.Receipts)
	e.spent = state.Spent
	e.active = state.ActiveCategory
	return e, nil
}

// recheck recomputes every packet's checks against current settings and
// spend. Callers hold mu.
func (e *Engine) recheck() {
	for _, p := range e.packets {
		p.Checks = e.evaluator.EvaluateAll(p.Steps, e.settings, e.spent)
	}
}

// Apply applies one intent. Invalid intents are reported as ignored
// outcomes; the error return is reserved for receipt minting failures.
func (e *Engine) Apply(ctx context.Context, in Intent) (Outcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var (
		out Outcome
		err error
	)
	switch v := in.(type) {
	case DrillDown:
		out = e.drillDown(v)
	case Approve:
		out, err = e.approve(ctx, v)
	case Deny:
		out = e.deny(v)
	case ChangeSettings:
		out = e.changeSettings(v)
	case nil:
		return Outcome{Status: OutcomeIgnored, Reason: "nil intent"}, nil
	default:
		out = ignored(in, "", "unsupported intent %T", in)
	}
	if err != nil {
		return Outcome{}, err
	}
	if out.Status == OutcomeIgnored {
		e.logger.Debug("intent ignored", "intent", out.Intent, "packet_id", out.PacketID, "reason", out.Reason)
	}
	return out, nil
}

func (e *Engine) find(id string) *Packet {
	for _, p := range e.packets {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (e *Engine) drillDown(in DrillDown) Outcome {
	if !in.Category.Valid() {
		return ignored(in, "", "unknown category %q", in.Category)
	}
	e.active = in.Category
	return Outcome{Status: OutcomeApplied, Intent: in.Kind()}
}

func (e *Engine) approve(ctx context.Context, in Approve) (Outcome, error) {
	p := e.find(in.PacketID)
	if p == nil {
		return ignored(in, in.PacketID, "unknown packet %q", in.PacketID), nil
	}
	awaiting := p.Status == StatusAwaitingApproval ||
		(p.Status == StatusPending && len(p.Approvals) > 0)
	if !awaiting {
		return ignored(in, p.ID, "packet is %s", p.Status), nil
	}
	opt, ok := p.option(in.OptionID)
	if !ok {
		return ignored(in, p.ID, "unknown option %q", in.OptionID), nil
	}

	blocked := []string{}
	for _, c := range p.Checks {
		if !c.Allowed {
			blocked = append(blocked, c.StepID)
		}
	}
	withinBudget := len(blocked) == 0

	p.Status = StatusApproved
	p.Narrative = append(p.Narrative, fmt.Sprintf("Approved: %s.", opt.Label))

	results := make([]ExecutionResult, len(p.Steps))
	for i, step := range p.Steps {
		results[i] = ExecutionResult{
			StepID:   step.ID,
			Action:   "execute",
			Summary:  fmt.Sprintf("%s (%s)", step.Description, opt.Label),
			Cost:     step.Cost,
			OptionID: opt.ID,
		}
	}
	cost := p.Cost()

	r, err := e.book.Mint(ctx, p.Category, string(p.Category)+".execute",
		fmt.Sprintf("%s: %s", p.Title, opt.Label),
		map[string]interface{}{
			"packetId":     p.ID,
			"optionId":     opt.ID,
			"option":       opt.Label,
			"priceDelta":   opt.PriceDelta,
			"cost":         cost,
			"withinBudget": withinBudget,
			"blockedSteps": blocked,
		})
	if err != nil {
		p.Status = StatusAwaitingApproval
		p.Narrative = p.Narrative[:len(p.Narrative)-1]
		return Outcome{}, err
	}

	p.Results = append(p.Results, results...)
	p.Receipts = append(p.Receipts, r)
	p.Status = StatusExecuted
	p.Narrative = append(p.Narrative, fmt.Sprintf("Executed for %s.", dollars(cost)))
	e.spent += cost
	e.recheck()

	if !withinBudget {
		e.logger.Warn("approved packet exceeds budget", "packet_id", p.ID, "cost", cost.String(), "spent", e.spent.String())
	}

	receipt := r
	return Outcome{
		Status:   OutcomeApplied,
		Intent:   in.Kind(),
		PacketID: p.ID,
		Receipt:  &receipt,
		Effects: []Effect{
			{Type: audit.EventPacketExecuted, Data: map[string]interface{}{
				"packetId": p.ID,
				"category": p.Category,
				"optionId": opt.ID,
				"cost":     cost,
				"spent":    e.spent,
			}},
			{Type: audit.EventReceiptIssued, Data: map[string]interface{}{
				"packetId":   p.ID,
				"chainIndex": r.ChainIndex,
				"hash":       r.Hash,
			}},
		},
	}, nil
}

func (e *Engine) deny(in Deny) Outcome {
	p := e.find(in.PacketID)
	if p == nil {
		return ignored(in, in.PacketID, "unknown packet %q", in.PacketID)
	}
	if p.Status != StatusAwaitingApproval {
		return ignored(in, p.ID, "packet is %s", p.Status)
	}
	p.Status = StatusDenied
	p.Narrative = append(p.Narrative, "Denied by user.")
	return Outcome{
		Status:   OutcomeApplied,
		Intent:   in.Kind(),
		PacketID: p.ID,
		Effects: []Effect{
			{Type: audit.EventPacketDenied, Data: map[string]interface{}{
				"packetId": p.ID,
				"category": p.Category,
			}},
		},
	}
}

func (e *Engine) changeSettings(in ChangeSettings) Outcome {
	next := in.Patch.Apply(e.settings)
	if err := next.Validate(); err != nil {
		return ignored(in, "", "%v", err)
	}
	e.settings = next
	e.recheck()
	return Outcome{Status: OutcomeApplied, Intent: in.Kind()}
}

// Packets returns copies of every packet in category order.
func (e *Engine) Packets() []Packet {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Packet, len(e.packets))
	for i, p := range e.packets {
		out[i] = p.clone()
	}
	return out
}

// PacketFor returns the id of the packet for a category.
func (e *Engine) PacketFor(category policy.Category) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, p := range e.packets {
		if p.Category == category {
			return p.ID, true
		}
	}
	return "", false
}

func (e *Engine) Spent() budget.Amount {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.spent
}

func (e *Engine) Settings() policy.Settings {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.settings
}

func (e *Engine) ActiveCategory() policy.Category {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// Book returns the engine's receipt book.
func (e *Engine) Book() *receipts.Book {
	return e.book
}

// State exports everything needed to Restore the engine.
func (e *Engine) State() State {
	return State{
		Settings:       e.Settings(),
		Packets:        e.Packets(),
		Receipts:       e.book.Receipts(),
		Spent:          e.Spent(),
		ActiveCategory: e.ActiveCategory(),
	}
}
