// Package flow decides whether a login must pass the OTP step, based on how
// the step is wired into the realm's authentication flow.
package flow

import (
	"github.com/samber/lo"

	"github.com/jacem/otpgate/internal/otp/entity"
)

// Evaluate reports whether the user must complete the OTP step.
//
// Executions marked CONDITIONAL or DISABLED never force the step on their
// own; they only matter through the role conditions attached to them. With
// REQUIRED executions present, the step is demanded only when every one of
// them is satisfied for the user. Otherwise ALTERNATIVE executions demand it
// when any one is satisfied. A flow with no executions at all defaults to
// requiring the step, so a misconfigured realm fails closed.
func Evaluate(execs []entity.FlowExecution, user *entity.User) bool {
	required := lo.Filter(execs, func(e entity.FlowExecution, _ int) bool {
		return e.Requirement == entity.RequirementRequired
	})
	if len(required) > 0 {
		return lo.EveryBy(required, func(e entity.FlowExecution) bool {
			return stepConfiguredFor(e, user)
		})
	}

	alternative := lo.Filter(execs, func(e entity.FlowExecution, _ int) bool {
		return e.Requirement == entity.RequirementAlternative
	})
	if len(alternative) > 0 {
		return lo.SomeBy(alternative, func(e entity.FlowExecution) bool {
			return stepConfiguredFor(e, user)
		})
	}

	return true
}

// stepConfiguredFor checks the execution's role condition against the user.
// No role configured means the step applies to everyone.
func stepConfiguredFor(exec entity.FlowExecution, user *entity.User) bool {
	if exec.ConditionRole == "" {
		return true
	}

	has := user.HasRole(exec.ConditionRole)
	if exec.ConditionNegate {
		return !has
	}
	return has
}
