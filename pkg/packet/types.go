// Package packet is the decision-packet state machine. One packet per
// category is built from the world catalog; user intents move packets
// through pending, awaiting_approval, approved, denied and executed.
package packet

import (
	"encoding/json"

	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/budget"
	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/policy"
	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/receipts"
)

// Status is a packet's lifecycle position.
type Status string

const (
	StatusPending          Status = "pending"
	StatusAwaitingApproval Status = "awaiting_approval"
	StatusApproved         Status = "approved"
	StatusDenied           Status = "denied"
	StatusExecuted         Status = "executed"
)

// Terminal reports whether no intent can move the packet any further.
func (s Status) Terminal() bool {
	return s == StatusDenied || s == StatusExecuted
}

// Option is one choice offered by an approval request.
type Option struct {
	ID         string        `json:"id"`
	Label      string        `json:"label"`
	PriceDelta budget.Amount `json:"priceDelta"`
}

// ApprovalRequest asks the user to pick between options.
type ApprovalRequest struct {
	ID      string   `json:"id"`
	Prompt  string   `json:"prompt"`
	Options []Option `json:"options"`
}

// ExecutionResult is the simulated outcome of one executed step.
type ExecutionResult struct {
	StepID   string        `json:"stepId"`
	Action   string        `json:"action"`
	Summary  string        `json:"summary"`
	Cost     budget.Amount `json:"cost"`
	OptionID string        `json:"optionId,omitempty"`
}

// Packet is a proposed action and everything known about it.
type Packet struct {
	ID        string               `json:"id"`
	Category  policy.Category      `json:"category"`
	Title     string               `json:"title"`
	Summary   string               `json:"summary"`
	Steps     []policy.PlanStep    `json:"steps"`
	Checks    []policy.PolicyCheck `json:"policyChecks"`
	Approvals []ApprovalRequest    `json:"approvalRequests"`
	Results   []ExecutionResult    `json:"executionResults"`
	Receipts  []receipts.Receipt   `json:"receipts"`
	Narrative []string             `json:"narrative"`
	Data      json.RawMessage      `json:"data"`
	Status    Status               `json:"status"`
}

// Cost is the sum of the packet's estimated step costs.
func (p *Packet) Cost() budget.Amount {
	var total budget.Amount
	for _, s := range p.Steps {
		total += s.Cost
	}
	return total
}

// option finds an offered option. The empty id selects the first option
// of the first request.
func (p *Packet) option(id string) (Option, bool) {
	for _, req := range p.Approvals {
		for _, o := range req.Options {
			if id == "" || o.ID == id {
				return o, true
			}
		}
	}
	return Option{}, false
}

func (p *Packet) clone() Packet {
	c := *p
	c.Steps = append([]policy.PlanStep(nil), p.Steps...)
	c.Checks = append([]policy.PolicyCheck(nil), p.Checks...)
	c.Approvals = make([]ApprovalRequest, len(p.Approvals))
	for i, req := range p.Approvals {
		req.Options = append([]Option(nil), req.Options...)
		c.Approvals[i] = req
	}
	c.Results = append([]ExecutionResult(nil), p.Results...)
	c.Receipts = make([]receipts.Receipt, len(p.Receipts))
	for i, r := range p.Receipts {
		r.Details = append(json.RawMessage(nil), r.Details...)
		c.Receipts[i] = r
	}
	c.Narrative = append([]string(nil), p.Narrative...)
	c.Data = append(json.RawMessage(nil), p.Data...)
	return c
}
