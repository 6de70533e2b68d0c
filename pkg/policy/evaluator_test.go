package policy

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/budget"
)

func step(risk RiskTier, cost string) PlanStep {
	return PlanStep{ID: "s1", Category: CategoryTravel, Description: "book", Risk: risk, Cost: budget.MustParse(cost)}
}

func settings(a Autonomy, s Stress, capAmount string) Settings {
	return Settings{Persona: "founder", Stress: s, Autonomy: a, BudgetCap: budget.MustParse(capAmount)}
}

func TestEvaluate_AutonomyTable(t *testing.T) {
	e := MustNewEvaluator()

	tests := []struct {
		name     string
		risk     RiskTier
		autonomy Autonomy
		stress   Stress
		want     bool
	}{
		{"observe low", RiskLow, AutonomyObserve, StressCalm, true},
		{"recommend low", RiskLow, AutonomyRecommend, StressCalm, true},
		{"ewa low", RiskLow, AutonomyExecuteWithApproval, StressCalm, false},
		{"ewa medium", RiskMedium, AutonomyExecuteWithApproval, StressCalm, true},
		{"ewa high", RiskHigh, AutonomyExecuteWithApproval, StressCalm, true},
		{"delegated low calm", RiskLow, AutonomyDelegated, StressCalm, false},
		{"delegated high calm", RiskHigh, AutonomyDelegated, StressCalm, false},
		{"delegated critical calm", RiskCritical, AutonomyDelegated, StressCalm, true},
		{"delegated medium overwhelmed", RiskMedium, AutonomyDelegated, StressOverwhelmed, false},
		{"delegated high overwhelmed", RiskHigh, AutonomyDelegated, StressOverwhelmed, true},
		{"delegated high busy", RiskHigh, AutonomyDelegated, StressBusy, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check := e.Evaluate(step(tt.risk, "0.50"), settings(tt.autonomy, tt.stress, "5.00"), 0)
			assert.True(t, check.Allowed)
			assert.Equal(t, tt.want, check.RequiresApproval)
			assert.Equal(t, tt.autonomy, check.Autonomy)
			assert.NotEmpty(t, check.Reason)
		})
	}
}

func TestEvaluate_BudgetBlocks(t *testing.T) {
	e := MustNewEvaluator()
	check := e.Evaluate(step(RiskLow, "0.01"), settings(AutonomyDelegated, StressCalm, "0.10"), budget.MustParse("0.10"))

	assert.False(t, check.Allowed)
	assert.False(t, check.RequiresApproval)
	assert.Equal(t, budget.Amount(0), check.Remaining)
	assert.Contains(t, check.Reason, "budget exceeded")
	assert.Contains(t, check.Reason, "0.01")
}

func TestEvaluate_OverspentClampsRemaining(t *testing.T) {
	e := MustNewEvaluator()
	check := e.Evaluate(step(RiskLow, "0.00"), settings(AutonomyExecuteWithApproval, StressCalm, "1.00"), budget.MustParse("3.00"))
	assert.True(t, check.Allowed, "a free step fits in a zero remaining budget")
	assert.Equal(t, budget.Amount(0), check.Remaining)
}

func TestEvaluate_UnknownAutonomyFailsClosed(t *testing.T) {
	e := MustNewEvaluator()
	check := e.Evaluate(step(RiskLow, "0.10"), settings("yolo", StressCalm, "5.00"), 0)
	assert.True(t, check.Allowed)
	assert.True(t, check.RequiresApproval)
}

func TestEvaluate_UnknownRiskIsCritical(t *testing.T) {
	assert.Equal(t, 4, RiskTier("galactic").Weight())
	e := MustNewEvaluator()
	check := e.Evaluate(step("galactic", "0.10"), settings(AutonomyDelegated, StressCalm, "5.00"), 0)
	assert.True(t, check.RequiresApproval)
}

func TestEvaluateAll_AccumulatesSpend(t *testing.T) {
	e := MustNewEvaluator()
	steps := []PlanStep{
		{ID: "a", Risk: RiskLow, Cost: budget.MustParse("0.60")},
		{ID: "b", Risk: RiskLow, Cost: budget.MustParse("0.60")},
	}
	checks := e.EvaluateAll(steps, settings(AutonomyDelegated, StressCalm, "1.00"), 0)
	require.Len(t, checks, 2)
	assert.True(t, checks[0].Allowed)
	assert.False(t, checks[1].Allowed)
	assert.Equal(t, budget.MustParse("0.40"), checks[1].Remaining)
	assert.Equal(t, "b", checks[1].StepID)
}

func TestSettingsPatch(t *testing.T) {
	base := settings(AutonomyObserve, StressCalm, "5.00")
	autonomy := AutonomyDelegated
	newCap := budget.MustParse("9.00")
	got := SettingsPatch{Autonomy: &autonomy, BudgetCap: &newCap}.Apply(base)

	assert.Equal(t, AutonomyDelegated, got.Autonomy)
	assert.Equal(t, newCap, got.BudgetCap)
	assert.Equal(t, StressCalm, got.Stress)
	assert.Equal(t, "founder", got.Persona)
	assert.Equal(t, AutonomyObserve, base.Autonomy)
}

func TestSettingsValidate(t *testing.T) {
	assert.NoError(t, settings(AutonomyDelegated, StressBusy, "1.00").Validate())
	assert.Error(t, settings("sometimes", StressBusy, "1.00").Validate())
	assert.Error(t, settings(AutonomyDelegated, "zen", "1.00").Validate())
	assert.Error(t, settings(AutonomyDelegated, StressBusy, "-1.00").Validate())
}

func TestCategories(t *testing.T) {
	assert.Len(t, Categories, 5)
	assert.True(t, CategoryLeads.Valid())
	assert.False(t, Category("pets").Valid())
}

func TestEvaluate_Idempotent(t *testing.T) {
	e := MustNewEvaluator()
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	risks := []interface{}{RiskLow, RiskMedium, RiskHigh, RiskCritical}
	scopes := []interface{}{AutonomyObserve, AutonomyRecommend, AutonomyExecuteWithApproval, AutonomyDelegated}
	stresses := []interface{}{StressCalm, StressBusy, StressOverwhelmed}

	properties.Property("identical inputs give identical checks", prop.ForAll(
		func(risk, scope, stress interface{}, cost, capAmount, spent int64) bool {
			s := PlanStep{ID: "p", Risk: risk.(RiskTier), Cost: budget.Amount(cost)}
			st := Settings{Autonomy: scope.(Autonomy), Stress: stress.(Stress), BudgetCap: budget.Amount(capAmount)}
			a := e.Evaluate(s, st, budget.Amount(spent))
			b := e.Evaluate(s, st, budget.Amount(spent))
			return a == b && (!a.RequiresApproval || a.Allowed)
		},
		gen.OneConstOf(risks...),
		gen.OneConstOf(scopes...),
		gen.OneConstOf(stresses...),
		gen.Int64Range(0, 10_000_000),
		gen.Int64Range(0, 10_000_000),
		gen.Int64Range(0, 10_000_000),
	))

	properties.TestingRun(t)
}
