package authorizer

import (
	"context"

	"github.com/oarkflow/authorizer/logger"
)

// ABACResolver selects the policies applicable to a request and evaluates
// their conditions against the resolved attribute context.
type ABACResolver struct {
	policies PolicyStore
	eval     *ConditionEvaluator
	log      logger.Logger
}

func NewABACResolver(policies PolicyStore, eval *ConditionEvaluator, log logger.Logger) *ABACResolver {
	if log == nil {
		log = logger.NewNullLogger()
	}
	return &ABACResolver{policies: policies, eval: eval, log: log}
}

// Resolve returns one PolicyResult per applicable policy. A policy with a
// malformed condition is excluded (logged, never a deny); a policy whose
// conditions simply do not hold is silently non-applicable. Conditions AND
// together with short-circuit; zero conditions means always applicable
// within scope.
func (a *ABACResolver) Resolve(ctx context.Context, actx *AuthorizationContext, attrs AttributeContext) ([]PolicyResult, error) {
	policies, err := a.policies.GetApplicablePolicies(ctx, actx.ResourceType, actx.Action, actx.OrganizationID)
	if err != nil {
		return nil, &RepositoryError{Op: "applicable policies", Err: err}
	}

	var out []PolicyResult
	for _, p := range policies {
		if p == nil || !p.IsActive {
			continue
		}
		// Stores may over-select; re-verify scope here so every backend
		// behaves identically.
		if !matchScope(p.ResourceType, actx.ResourceType) || !matchScope(p.Action, actx.Action) {
			continue
		}
		if p.OrganizationID != "" && p.OrganizationID != actx.OrganizationID {
			continue
		}

		applicable := true
		for _, cond := range p.Conditions {
			if err := a.eval.Validate(cond); err != nil {
				a.log.Debug("policy excluded, malformed condition", "policy_id", p.ID, "condition", a.eval.describe(cond), "error", err.Error())
				applicable = false
				break
			}
			if !a.eval.Evaluate(cond, attrs) {
				applicable = false
				break
			}
		}
		if !applicable {
			continue
		}

		out = append(out, PolicyResult{
			PolicyID: p.ID,
			Effect:   p.Effect,
			Priority: p.Priority,
			Exact:    p.ResourceType == actx.ResourceType && p.Action == actx.Action,
		})
	}
	return out, nil
}
