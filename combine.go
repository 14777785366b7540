package authorizer

import (
	"sort"
	"time"
)

// Source tells which engine produced a candidate.
type Source string

const (
	SourceRBAC Source = "rbac"
	SourceABAC Source = "abac"
)

// Candidate is one matched rule feeding the combinator.
type Candidate struct {
	Source   Source
	Effect   Effect
	Priority int
	Exact    bool
	RuleID   string
	RoleID   string
}

// Reason renders the candidate as a decision reason.
func (c Candidate) Reason() Reason {
	kind := ReasonRBACAllow
	switch {
	case c.Source == SourceRBAC && c.Effect == EffectDeny:
		kind = ReasonRBACDeny
	case c.Source == SourceABAC && c.Effect == EffectAllow:
		kind = ReasonABACAllow
	case c.Source == SourceABAC && c.Effect == EffectDeny:
		kind = ReasonABACDeny
	}
	return Reason{Kind: kind, RuleID: c.RuleID, RoleID: c.RoleID, Priority: c.Priority}
}

// Combine merges RBAC and ABAC candidates into one decision.
//
// Ranking is priority descending; at equal priority an exact-scope match
// outranks a wildcard one, and remaining ties keep insertion order (RBAC
// candidates precede ABAC, each in resolver order), so the outcome is
// deterministic. Deny overrides: any deny wins over every allow regardless
// of priority. No candidates at all is the default deny.
func Combine(rbac, abac []Candidate) *Decision {
	candidates := make([]Candidate, 0, len(rbac)+len(abac))
	candidates = append(candidates, rbac...)
	candidates = append(candidates, abac...)

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Priority != candidates[j].Priority {
			return candidates[i].Priority > candidates[j].Priority
		}
		return candidates[i].Exact && !candidates[j].Exact
	})

	d := &Decision{EvaluatedAt: time.Now()}

	winner := -1
	for i, c := range candidates {
		if c.Effect == EffectDeny {
			winner = i
			break
		}
	}
	if winner < 0 {
		for i, c := range candidates {
			if c.Effect == EffectAllow {
				winner = i
				break
			}
		}
		d.Allowed = winner >= 0
	}

	if winner < 0 {
		d.Reasons = []Reason{{Kind: ReasonDefaultDeny, Message: "no applicable rule"}}
		return d
	}

	d.Reasons = make([]Reason, 0, len(candidates))
	d.Reasons = append(d.Reasons, candidates[winner].Reason())
	for i, c := range candidates {
		if i == winner {
			continue
		}
		d.Reasons = append(d.Reasons, c.Reason())
	}
	return d
}

// candidatesFromPolicies adapts ABAC results for the combinator.
func candidatesFromPolicies(results []PolicyResult) []Candidate {
	out := make([]Candidate, 0, len(results))
	for _, r := range results {
		out = append(out, Candidate{
			Source:   SourceABAC,
			Effect:   r.Effect,
			Priority: r.Priority,
			Exact:    r.Exact,
			RuleID:   r.PolicyID,
		})
	}
	return out
}
