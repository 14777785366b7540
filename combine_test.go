package authorizer_test

import (
	"testing"

	"github.com/oarkflow/authorizer"
)

func TestCombineDenyOverrides(t *testing.T) {
	allows := make([]authorizer.Candidate, 0, 1000)
	for i := 0; i < 1000; i++ {
		allows = append(allows, authorizer.Candidate{Source: authorizer.SourceRBAC, Effect: authorizer.EffectAllow, Priority: 500, RuleID: "allow"})
	}
	deny := []authorizer.Candidate{{Source: authorizer.SourceABAC, Effect: authorizer.EffectDeny, Priority: 0, RuleID: "the-deny"}}

	d := authorizer.Combine(allows, deny)
	if d.Allowed {
		t.Fatalf("single deny must override any number of allows")
	}
	if w, _ := d.Winner(); w.RuleID != "the-deny" || w.Kind != authorizer.ReasonABACDeny {
		t.Fatalf("winner = %+v", w)
	}
}

func TestCombineWildcardAllowNeverBeatsDeny(t *testing.T) {
	rbac := []authorizer.Candidate{{Source: authorizer.SourceRBAC, Effect: authorizer.EffectAllow, Priority: 0, Exact: false, RuleID: "wild-allow"}}
	abac := []authorizer.Candidate{{Source: authorizer.SourceABAC, Effect: authorizer.EffectDeny, Priority: 100, Exact: true, RuleID: "narrow-deny"}}
	if authorizer.Combine(rbac, abac).Allowed {
		t.Fatalf("deny must win regardless of ordering inputs")
	}
	// and with priorities flipped
	rbac[0].Priority = 100
	abac[0].Priority = 0
	if authorizer.Combine(rbac, abac).Allowed {
		t.Fatalf("low-priority deny still wins over high-priority allow")
	}
}

func TestCombineDefaultDeny(t *testing.T) {
	d := authorizer.Combine(nil, nil)
	if d.Allowed {
		t.Fatalf("no candidates must default to deny")
	}
	w, ok := d.Winner()
	if !ok || w.Kind != authorizer.ReasonDefaultDeny {
		t.Fatalf("expected default deny reason, got %+v", w)
	}
}

func TestCombinePriorityRanking(t *testing.T) {
	rbac := []authorizer.Candidate{{Source: authorizer.SourceRBAC, Effect: authorizer.EffectAllow, Priority: 10, RuleID: "low"}}
	abac := []authorizer.Candidate{{Source: authorizer.SourceABAC, Effect: authorizer.EffectAllow, Priority: 90, RuleID: "high"}}
	d := authorizer.Combine(rbac, abac)
	if !d.Allowed {
		t.Fatalf("expected allow")
	}
	if w, _ := d.Winner(); w.RuleID != "high" {
		t.Fatalf("highest priority should rank first, got %s", w.RuleID)
	}
	if len(d.Reasons) != 2 {
		t.Fatalf("all matches must appear in reasons, got %d", len(d.Reasons))
	}
}

func TestCombineExactBeatsWildcardAtEqualPriority(t *testing.T) {
	wild := authorizer.Candidate{Source: authorizer.SourceABAC, Effect: authorizer.EffectAllow, Priority: 50, Exact: false, RuleID: "wild"}
	exact := authorizer.Candidate{Source: authorizer.SourceABAC, Effect: authorizer.EffectAllow, Priority: 50, Exact: true, RuleID: "exact"}
	d := authorizer.Combine(nil, []authorizer.Candidate{wild, exact})
	if w, _ := d.Winner(); w.RuleID != "exact" {
		t.Fatalf("exact match should outrank wildcard at equal priority, got %s", w.RuleID)
	}
}

func TestCombineTieDeterminism(t *testing.T) {
	a := authorizer.Candidate{Source: authorizer.SourceRBAC, Effect: authorizer.EffectAllow, Priority: 50, RuleID: "a"}
	b := authorizer.Candidate{Source: authorizer.SourceABAC, Effect: authorizer.EffectAllow, Priority: 50, RuleID: "b"}
	for i := 0; i < 20; i++ {
		d := authorizer.Combine([]authorizer.Candidate{a}, []authorizer.Candidate{b})
		if w, _ := d.Winner(); w.RuleID != "a" {
			t.Fatalf("tie must keep insertion order (rbac first), got %s", w.RuleID)
		}
	}
}

func TestCandidatesFromPolicies(t *testing.T) {
	results := []authorizer.PolicyResult{
		{PolicyID: "p1", Effect: authorizer.EffectAllow, Priority: 90, Exact: true},
		{PolicyID: "p2", Effect: authorizer.EffectDeny, Priority: 10},
	}
	cands := authorizer.CandidatesFromPolicies(results)
	if len(cands) != 2 {
		t.Fatalf("expected 2 candidates")
	}
	if cands[0].Source != authorizer.SourceABAC || cands[0].RuleID != "p1" || !cands[0].Exact {
		t.Fatalf("unexpected candidate: %+v", cands[0])
	}
}
