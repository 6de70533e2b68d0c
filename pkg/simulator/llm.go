package simulator

import (
	"context"
	"fmt"

	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/blockledger"
	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/budget"
	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/policy"
)

// LLMCallReport is a canned, metered model call made while planning a
// category.
type LLMCallReport struct {
	Category         policy.Category    `json:"category"`
	Model            string             `json:"model"`
	PromptTokens     int                `json:"promptTokens"`
	CompletionTokens int                `json:"completionTokens"`
	Cost             budget.Amount      `json:"cost"`
	LatencyMs        int                `json:"latencyMs"`
	Redactions       []string           `json:"redactions"`
	Verdict          string             `json:"verdict"`
	Block            *blockledger.Block `json:"block,omitempty"`
}

const simulatedModel = "planner-small"

// Prices per thousand tokens.
const (
	promptPricePerK     budget.Amount = 150_000
	completionPricePerK budget.Amount = 600_000
)

var llmProfiles = map[policy.Category]struct {
	prompt, completion, latency int
	redactions                  []string
}{
	policy.CategoryTravel:    {1840, 412, 930, []string{"passport_number"}},
	policy.CategoryGifts:     {960, 238, 610, []string{"home_address"}},
	policy.CategoryLeads:     {2710, 655, 1240, []string{"email", "phone"}},
	policy.CategoryInsurance: {2230, 508, 1080, []string{"date_of_birth", "policy_number"}},
	policy.CategoryInvesting: {3120, 731, 1420, []string{"account_number"}},
}

// RunLLMCall reports a canned model call and records one llm_call block.
func (s *Simulator) RunLLMCall(ctx context.Context, category policy.Category) (LLMCallReport, error) {
	p, ok := llmProfiles[category]
	if !ok {
		return LLMCallReport{}, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
	report := LLMCallReport{
		Category:         category,
		Model:            simulatedModel,
		PromptTokens:     p.prompt,
		CompletionTokens: p.completion,
		Cost:             tokenCost(p.prompt, promptPricePerK) + tokenCost(p.completion, completionPricePerK),
		LatencyMs:        p.latency,
		Redactions:       append([]string(nil), p.redactions...),
		Verdict:          VerdictPass,
	}
	b, err := s.record(ctx, EventLLMCall, report)
	if err != nil {
		return LLMCallReport{}, err
	}
	report.Block = b
	return report, nil
}

func tokenCost(tokens int, perK budget.Amount) budget.Amount {
	return budget.Amount(tokens) * perK / 1000
}
