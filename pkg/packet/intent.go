package packet

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/audit"
	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/policy"
	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/receipts"
)

// Kind names an intent.
type Kind string

const (
	KindDrillDown      Kind = "drill_down"
	KindApprove        Kind = "approve"
	KindDeny           Kind = "deny"
	KindChangeSettings Kind = "change_settings"
)

// EventType is the ledger event recorded when an intent of this kind is
// received.
func (k Kind) EventType() audit.EventType {
	return audit.EventType("intent." + string(k))
}

// Intent is a user action directed at the engine.
type Intent interface {
	Kind() Kind
}

type DrillDown struct {
	Category policy.Category `json:"category"`
}

type Approve struct {
	PacketID string `json:"packetId"`
	OptionID string `json:"optionId,omitempty"`
}

type Deny struct {
	PacketID string `json:"packetId"`
}

type ChangeSettings struct {
	Patch policy.SettingsPatch `json:"patch"`
}

func (DrillDown) Kind() Kind      { return KindDrillDown }
func (Approve) Kind() Kind        { return KindApprove }
func (Deny) Kind() Kind           { return KindDeny }
func (ChangeSettings) Kind() Kind { return KindChangeSettings }

// ErrUnknownIntent is returned when decoding an unrecognised intent type.
var ErrUnknownIntent = errors.New("packet: unknown intent type")

// Envelope is the wire form of an intent. Approve and Deny may name the
// packet by category instead of id; Resolve fills in the id.
type Envelope struct {
	Type     Kind                  `json:"type"`
	Category policy.Category       `json:"category,omitempty"`
	PacketID string                `json:"packetId,omitempty"`
	OptionID string                `json:"optionId,omitempty"`
	Patch    *policy.SettingsPatch `json:"patch,omitempty"`
}

// Intent converts the envelope. lookup maps a category to its packet id
// and may be nil.
func (e Envelope) Intent(lookup func(policy.Category) (string, bool)) (Intent, error) {
	packetID := e.PacketID
	if packetID == "" && e.Category != "" && lookup != nil {
		packetID, _ = lookup(e.Category)
	}
	switch e.Type {
	case KindDrillDown:
		return DrillDown{Category: e.Category}, nil
	case KindApprove:
		return Approve{PacketID: packetID, OptionID: e.OptionID}, nil
	case KindDeny:
		return Deny{PacketID: packetID}, nil
	case KindChangeSettings:
		var patch policy.SettingsPatch
		if e.Patch != nil {
			patch = *e.Patch
		}
		return ChangeSettings{Patch: patch}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownIntent, e.Type)
}

// DecodeIntent parses one wire-form intent.
func DecodeIntent(data []byte, lookup func(policy.Category) (string, bool)) (Intent, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("packet: decode intent: %w", err)
	}
	return env.Intent(lookup)
}

// OutcomeStatus says whether an intent changed anything.
type OutcomeStatus string

const (
	OutcomeApplied OutcomeStatus = "applied"
	OutcomeIgnored OutcomeStatus = "ignored"
)

// Effect is a ledger event the caller must record after an applied intent.
type Effect struct {
	Type audit.EventType
	Data interface{}
}

// Outcome reports what an intent did.
type Outcome struct {
	Status   OutcomeStatus     `json:"status"`
	Intent   Kind              `json:"intent"`
	PacketID string            `json:"packetId,omitempty"`
	Reason   string            `json:"reason,omitempty"`
	Receipt  *receipts.Receipt `json:"receipt,omitempty"`
	Effects  []Effect          `json:"-"`
}

func ignored(in Intent, packetID, format string, args ...interface{}) Outcome {
	return Outcome{
		Status:   OutcomeIgnored,
		Intent:   in.Kind(),
		PacketID: packetID,
		Reason:   fmt.Sprintf(format, args...),
	}
}
