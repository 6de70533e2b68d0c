package simulator

import (
	"context"
	"fmt"
	"sort"

	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/blockledger"
)

// AttackKind names an attack archetype.
type AttackKind string

const (
	AttackPromptInjection      AttackKind = "prompt_injection"
	AttackReplay               AttackKind = "replay"
	AttackTamper               AttackKind = "tamper"
	AttackSanctionsHit         AttackKind = "sanctions_hit"
	AttackBudgetExceeded       AttackKind = "budget_exceeded"
	AttackConnectorUnreachable AttackKind = "connector_unreachable"
	AttackInsiderBypass        AttackKind = "insider_bypass"
)

// Attack verdicts.
const (
	VerdictRefused = "REFUSED"
	VerdictFailed  = "FAILED"
	VerdictBlocked = "BLOCKED"
)

// AttackAttempt is the result of SimulateAttack.
type AttackAttempt struct {
	Kind      AttackKind         `json:"kind"`
	Verdict   string             `json:"verdict"`
	Severity  string             `json:"severity"`
	Reason    string             `json:"reason"`
	Gate      string             `json:"gate"`
	LatencyMs int                `json:"latencyMs"`
	Block     *blockledger.Block `json:"block,omitempty"`
}

var attacks = map[AttackKind]AttackAttempt{
	AttackPromptInjection: {
		Verdict:   VerdictRefused,
		Severity:  "critical",
		Gate:      "intent",
		Reason:    "instruction override detected in tool output; request refused",
		LatencyMs: 9,
	},
	AttackReplay: {
		Verdict:   VerdictBlocked,
		Severity:  "high",
		Gate:      "ticket",
		Reason:    "idempotency key already consumed; duplicate execution blocked",
		LatencyMs: 4,
	},
	AttackTamper: {
		Verdict:   VerdictBlocked,
		Severity:  "critical",
		Gate:      "ledger_block",
		Reason:    "receipt hash does not match ledger; chain verification failed",
		LatencyMs: 7,
	},
	AttackSanctionsHit: {
		Verdict:   VerdictRefused,
		Severity:  "high",
		Gate:      "policy_gate",
		Reason:    "counterparty matches a sanctions list entry",
		LatencyMs: 15,
	},
	AttackBudgetExceeded: {
		Verdict:   VerdictBlocked,
		Severity:  "medium",
		Gate:      "policy_gate",
		Reason:    "estimated cost exceeds remaining budget",
		LatencyMs: 3,
	},
	AttackConnectorUnreachable: {
		Verdict:   VerdictFailed,
		Severity:  "medium",
		Gate:      "execution",
		Reason:    "connector did not respond before the deadline; no side effects committed",
		LatencyMs: 5000,
	},
	AttackInsiderBypass: {
		Verdict:   VerdictRefused,
		Severity:  "critical",
		Gate:      "preflight",
		Reason:    "approval signature missing for an operator-initiated change",
		LatencyMs: 11,
	},
}

// AttackKinds lists every archetype in a stable order.
func AttackKinds() []AttackKind {
	kinds := make([]AttackKind, 0, len(attacks))
	for k := range attacks {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// SimulateAttack looks up one archetype and records an attack_<kind>
// block. Unknown kinds record nothing.
func (s *Simulator) SimulateAttack(ctx context.Context, kind AttackKind) (AttackAttempt, error) {
	attempt, ok := attacks[kind]
	if !ok {
		return AttackAttempt{}, fmt.Errorf("%w: %q", ErrUnknownAttack, kind)
	}
	attempt.Kind = kind

	b, err := s.record(ctx, eventAttack+string(kind), attempt)
	if err != nil {
		return AttackAttempt{}, err
	}
	attempt.Block = b
	return attempt, nil
}
