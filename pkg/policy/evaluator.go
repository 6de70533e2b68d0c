package policy

import (
	"fmt"
	"log/slog"

	"github.com/google/cel-go/cel"

	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/budget"
)

// approvalRules holds, per autonomy scope, the CEL expression that is true
// when a step needs a human approval.
var approvalRules = map[Autonomy]string{
	AutonomyObserve:             `true`,
	AutonomyRecommend:           `true`,
	AutonomyExecuteWithApproval: `risk_weight >= 2`,
	AutonomyDelegated:           `stress == "overwhelmed" ? risk_weight >= 3 : risk_weight >= 4`,
}

// Evaluator is the policy decision function. Rules are compiled once; the
// evaluator holds no mutable state, so Evaluate is pure and safe to call
// from any goroutine.
type Evaluator struct {
	programs map[Autonomy]cel.Program
	logger   *slog.Logger
}

// NewEvaluator compiles the approval table.
func NewEvaluator() (*Evaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("risk_weight", cel.IntType),
		cel.Variable("stress", cel.StringType),
		cel.Variable("reversible", cel.BoolType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	programs := make(map[Autonomy]cel.Program, len(approvalRules))
	for scope, expr := range approvalRules {
		ast, issues := env.Compile(expr)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("compile rule for %s: %w", scope, issues.Err())
		}
		if !ast.OutputType().IsExactType(cel.BoolType) {
			return nil, fmt.Errorf("rule for %s must be boolean, got %v", scope, ast.OutputType())
		}
		prg, err := env.Program(ast, cel.CostLimit(1000))
		if err != nil {
			return nil, fmt.Errorf("program for %s: %w", scope, err)
		}
		programs[scope] = prg
	}

	return &Evaluator{
		programs: programs,
		logger:   slog.Default().With("component", "policy"),
	}, nil
}

// MustNewEvaluator panics if the built-in rules fail to compile.
func MustNewEvaluator() *Evaluator {
	e, err := NewEvaluator()
	if err != nil {
		panic(err)
	}
	return e
}

// Evaluate authorizes one step given the settings and the spend so far.
//
// A step that does not fit in the remaining budget is blocked regardless of
// autonomy. Otherwise the autonomy scope decides whether a human must
// approve. Unknown scopes and rule failures fail closed to "requires approval".
func (e *Evaluator) Evaluate(step PlanStep, settings Settings, spent budget.Amount) PolicyCheck {
	remaining := budget.Remaining(settings.BudgetCap, spent)
	check := PolicyCheck{
		StepID:    step.ID,
		Remaining: remaining,
		Autonomy:  settings.Autonomy,
	}

	if step.Cost > remaining {
		check.Allowed = false
		check.RequiresApproval = false
		check.Reason = fmt.Sprintf("budget exceeded: cost %s > remaining %s (cap %s, spent %s)",
			step.Cost, remaining, settings.BudgetCap, spent)
		return check
	}
	check.Allowed = true

	needs, err := e.approvalNeeded(step, settings)
	if err != nil {
		e.logger.Warn("approval rule failed, requiring approval", "step", step.ID, "error", err)
		check.RequiresApproval = true
		check.Reason = fmt.Sprintf("approval required: %v", err)
		return check
	}
	check.RequiresApproval = needs
	check.Reason = reason(step, settings, needs)
	return check
}

// EvaluateAll evaluates a plan in order. Each step sees the spend of the
// steps before it, so a plan cannot overrun the cap one affordable step at
// a time.
func (e *Evaluator) EvaluateAll(steps []PlanStep, settings Settings, spent budget.Amount) []PolicyCheck {
	checks := make([]PolicyCheck, len(steps))
	running := spent
	for i, step := range steps {
		checks[i] = e.Evaluate(step, settings, running)
		running += step.Cost
	}
	return checks
}

func (e *Evaluator) approvalNeeded(step PlanStep, settings Settings) (bool, error) {
	prg, ok := e.programs[settings.Autonomy]
	if !ok {
		return true, fmt.Errorf("unknown autonomy scope %q", settings.Autonomy)
	}
	out, _, err := prg.Eval(map[string]interface{}{
		"risk_weight": int64(step.Risk.Weight()),
		"stress":      string(settings.Stress),
		"reversible":  step.Reversible,
	})
	if err != nil {
		return true, fmt.Errorf("eval: %w", err)
	}
	val, ok := out.Value().(bool)
	if !ok {
		return true, fmt.Errorf("result not bool")
	}
	return val, nil
}

func reason(step PlanStep, settings Settings, needs bool) string {
	switch settings.Autonomy {
	case AutonomyObserve, AutonomyRecommend:
		return fmt.Sprintf("autonomy %q never executes unattended; approval required for %s-risk step", settings.Autonomy, step.Risk)
	case AutonomyExecuteWithApproval:
		if needs {
			return fmt.Sprintf("%s risk requires approval under execute_with_approval", step.Risk)
		}
		return fmt.Sprintf("auto-approved: %s risk within execute_with_approval threshold", step.Risk)
	case AutonomyDelegated:
		if needs {
			if settings.Stress == StressOverwhelmed {
				return fmt.Sprintf("%s risk requires approval while user is overwhelmed", step.Risk)
			}
			return fmt.Sprintf("%s risk always requires approval under delegated autonomy", step.Risk)
		}
		return fmt.Sprintf("auto-approved: %s risk delegated (stress %s)", step.Risk, settings.Stress)
	}
	return "approval required"
}
