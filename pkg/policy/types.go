// Package policy decides whether a proposed plan step may run on its own,
// needs a human approval, or is blocked by the budget.
package policy

import (
	"fmt"

	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/budget"
)

// Category is the life/business domain a step acts in.
type Category string

const (
	CategoryTravel    Category = "travel"
	CategoryGifts     Category = "gifts"
	CategoryLeads     Category = "leads"
	CategoryInsurance Category = "insurance"
	CategoryInvesting Category = "investing"
)

// Categories lists every category in presentation order.
var Categories = []Category{
	CategoryTravel,
	CategoryGifts,
	CategoryLeads,
	CategoryInsurance,
	CategoryInvesting,
}

func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// RiskTier is a coarse severity classification.
type RiskTier string

const (
	RiskLow      RiskTier = "low"
	RiskMedium   RiskTier = "medium"
	RiskHigh     RiskTier = "high"
	RiskCritical RiskTier = "critical"
)

// riskWeights maps tiers to the ordinal the approval rules compare against.
var riskWeights = map[RiskTier]int{
	RiskLow:      1,
	RiskMedium:   2,
	RiskHigh:     3,
	RiskCritical: 4,
}

// Weight returns 1..4, or 4 for an unknown tier so that it is treated as
// the most dangerous.
func (r RiskTier) Weight() int {
	if w, ok := riskWeights[r]; ok {
		return w
	}
	return riskWeights[RiskCritical]
}

// Autonomy is the declared scope of unattended authority.
type Autonomy string

const (
	AutonomyObserve             Autonomy = "observe"
	AutonomyRecommend           Autonomy = "recommend"
	AutonomyExecuteWithApproval Autonomy = "execute_with_approval"
	AutonomyDelegated           Autonomy = "delegated"
)

func (a Autonomy) Valid() bool {
	switch a {
	case AutonomyObserve, AutonomyRecommend, AutonomyExecuteWithApproval, AutonomyDelegated:
		return true
	}
	return false
}

// Stress is the user's declared stress level.
type Stress string

const (
	StressCalm        Stress = "calm"
	StressBusy        Stress = "busy"
	StressOverwhelmed Stress = "overwhelmed"
)

func (s Stress) Valid() bool {
	switch s {
	case StressCalm, StressBusy, StressOverwhelmed:
		return true
	}
	return false
}

// Settings is the user's governance configuration.
type Settings struct {
	Persona   string        `json:"persona" yaml:"persona"`
	Stress    Stress        `json:"stressLevel" yaml:"stress_level"`
	Autonomy  Autonomy      `json:"autonomyScope" yaml:"autonomy_scope"`
	BudgetCap budget.Amount `json:"budgetCap" yaml:"budget_cap"`
}

// Validate rejects unknown enum values and negative caps.
func (s Settings) Validate() error {
	if !s.Stress.Valid() {
		return fmt.Errorf("policy: unknown stress level %q", s.Stress)
	}
	if !s.Autonomy.Valid() {
		return fmt.Errorf("policy: unknown autonomy scope %q", s.Autonomy)
	}
	if s.BudgetCap < 0 {
		return fmt.Errorf("policy: negative budget cap %s", s.BudgetCap)
	}
	return nil
}

// SettingsPatch carries a partial settings change. Nil fields are kept.
type SettingsPatch struct {
	Persona   *string        `json:"persona,omitempty"`
	Stress    *Stress        `json:"stressLevel,omitempty"`
	Autonomy  *Autonomy      `json:"autonomyScope,omitempty"`
	BudgetCap *budget.Amount `json:"budgetCap,omitempty"`
}

// Apply returns s with the patch's non-nil fields replaced.
func (p SettingsPatch) Apply(s Settings) Settings {
	if p.Persona != nil {
		s.Persona = *p.Persona
	}
	if p.Stress != nil {
		s.Stress = *p.Stress
	}
	if p.Autonomy != nil {
		s.Autonomy = *p.Autonomy
	}
	if p.BudgetCap != nil {
		s.BudgetCap = *p.BudgetCap
	}
	return s
}

// PlanStep is one atomic unit of a proposed action. Steps are immutable
// once built.
type PlanStep struct {
	ID          string        `json:"id"`
	Category    Category      `json:"category"`
	Description string        `json:"description"`
	Risk        RiskTier      `json:"risk"`
	Cost        budget.Amount `json:"estimatedCost"`
	Reversible  bool          `json:"reversible"`
}

// PolicyCheck is the derived authorization for one step. It is recomputed
// whenever settings or spend change and is never ledger truth on its own.
type PolicyCheck struct {
	StepID           string        `json:"stepId"`
	Allowed          bool          `json:"allowed"`
	RequiresApproval bool          `json:"requiresApproval"`
	Reason           string        `json:"reason"`
	Remaining        budget.Amount `json:"remainingBudget"`
	Autonomy         Autonomy      `json:"autonomyLevel"`
}
