// Package audit is the session-scoped, hash-chained event ledger. Every
// user intent and every execution it causes is appended here, and the whole
// chain can be re-verified at any time.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/canonicalize"
	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/chain"
	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/digest"
)

// EventType tags a ledger entry.
type EventType string

const (
	EventSessionStarted       EventType = "session.started"
	EventIntentDrillDown      EventType = "intent.drill_down"
	EventIntentApprove        EventType = "intent.approve"
	EventIntentDeny           EventType = "intent.deny"
	EventIntentChangeSettings EventType = "intent.change_settings"
	EventPacketExecuted       EventType = "packet.executed"
	EventPacketDenied         EventType = "packet.denied"
	EventReceiptIssued        EventType = "receipt.issued"
	EventSessionFrozen        EventType = "session.frozen"
)

// Event is one ledger entry. Its hash covers every other field:
// hash = H(previousHash ‖ canonical(event without hash)).
type Event struct {
	ID           string          `json:"id"`
	SessionID    string          `json:"sessionId"`
	Timestamp    time.Time       `json:"timestamp"`
	Type         EventType       `json:"type"`
	Data         json.RawMessage `json:"data"`
	ChainIndex   int             `json:"chainIndex"`
	PreviousHash string          `json:"previousHash"`
	Hash         string          `json:"hash"`
}

func (e *Event) ChainLink() chain.Link {
	return chain.Link{Index: e.ChainIndex, PrevHash: e.PreviousHash, Hash: e.Hash}
}

func (e *Event) SetChainLink(l chain.Link) {
	e.ChainIndex, e.PreviousHash, e.Hash = l.Index, l.PrevHash, l.Hash
}

func (e *Event) SealBytes() ([]byte, error) {
	return canonicalize.JCS(sealedEvent{
		ID:           e.ID,
		SessionID:    e.SessionID,
		Timestamp:    e.Timestamp,
		Type:         e.Type,
		Data:         e.Data,
		ChainIndex:   e.ChainIndex,
		PreviousHash: e.PreviousHash,
	})
}

// sealedEvent is Event without its own hash.
type sealedEvent struct {
	ID           string          `json:"id"`
	SessionID    string          `json:"sessionId"`
	Timestamp    time.Time       `json:"timestamp"`
	Type         EventType       `json:"type"`
	Data         json.RawMessage `json:"data"`
	ChainIndex   int             `json:"chainIndex"`
	PreviousHash string          `json:"previousHash"`
}

func (e *Event) Clone() *Event {
	c := *e
	c.Data = append(json.RawMessage(nil), e.Data...)
	return &c
}

// Decode unmarshals the event's data into v.
func (e Event) Decode(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// Ledger is the session audit chain. Appends are strictly sequential.
type Ledger struct {
	log   *chain.Log[*Event]
	clock func() time.Time
	newID func() string
}

// NewLedger creates an empty ledger.
func NewLedger(h digest.Hasher) *Ledger {
	return &Ledger{
		log:   chain.New[*Event](h),
		clock: time.Now,
		newID: uuid.NewString,
	}
}

// WithClock overrides clock for testing.
func (l *Ledger) WithClock(clock func() time.Time) *Ledger {
	l.clock = clock
	return l
}

// WithIDGenerator overrides event id generation for testing.
func (l *Ledger) WithIDGenerator(newID func() string) *Ledger {
	l.newID = newID
	return l
}

// Append records an event. data is stored in canonical form.
func (l *Ledger) Append(ctx context.Context, sessionID string, eventType EventType, data interface{}) (Event, error) {
	raw, err := canonicalize.JCS(data)
	if err != nil {
		return Event{}, fmt.Errorf("audit: canonicalize %s data: %w", eventType, err)
	}
	stored, err := l.log.Append(ctx, &Event{
		ID:        l.newID(),
		SessionID: sessionID,
		Timestamp: l.clock().UTC(),
		Type:      eventType,
		Data:      raw,
	})
	if err != nil {
		return Event{}, fmt.Errorf("audit: append %s: %w", eventType, err)
	}
	return *stored, nil
}

// Verify re-derives every hash from genesis.
func (l *Ledger) Verify(ctx context.Context) (chain.Verification, error) {
	return l.log.Verify(ctx)
}

// Events returns a copy of the chain.
func (l *Ledger) Events() []Event {
	entries := l.log.Entries()
	out := make([]Event, len(entries))
	for i, e := range entries {
		out[i] = *e
	}
	return out
}

// Len returns the number of events.
func (l *Ledger) Len() int {
	return l.log.Len()
}

// Head returns the latest hash, or the genesis sentinel.
func (l *Ledger) Head() string {
	return l.log.Head()
}

// Tamper mutates a stored event without resealing it.
func (l *Ledger) Tamper(i int, mutate func(*Event)) error {
	return l.log.Tamper(i, mutate)
}

// Load replaces the chain with exported events, as stored.
func (l *Ledger) Load(events []Event) {
	records := make([]*Event, len(events))
	for i := range events {
		records[i] = &events[i]
	}
	l.log.Load(records)
}
