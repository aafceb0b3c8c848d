package policy

import (
	"reflect"
	"sort"

	"github.com/agentgate/agentgate/internal/apperrors"
	"github.com/agentgate/agentgate/internal/db"
)

// Decision "ask" means no rule matched and the request stays pending.
const DecisionAsk = "ask"

// Outcome is the result of evaluating a request against the policy set
type Outcome struct {
	Decision string
	PolicyID string
}

// Evaluate runs the request through the enabled policies in ascending
// priority order, ties broken by original list order, and returns the
// decision of the first matching rule. It never fails; an empty or
// non-matching policy set yields the ask decision.
func Evaluate(req *db.ApprovalRequest, policies []db.Policy) Outcome {
	ordered := make([]db.Policy, len(policies))
	copy(ordered, policies)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority < ordered[j].Priority
	})

	for _, p := range ordered {
		if !p.Enabled {
			continue
		}
		for _, rule := range p.Rules {
			if Matches(rule.Match, req) {
				return Outcome{Decision: rule.Decision, PolicyID: p.ID}
			}
		}
	}
	return Outcome{Decision: DecisionAsk}
}

// Matches reports whether every field present in the predicate holds
// against the request. Absent fields match anything.
func Matches(match db.MatchPredicate, req *db.ApprovalRequest) bool {
	if match.Action != nil && *match.Action != req.Action {
		return false
	}
	if match.Urgency != nil && *match.Urgency != req.Urgency {
		return false
	}
	if match.Params != nil && !mapContains(req.Params, match.Params) {
		return false
	}
	if match.Context != nil && !mapContains(req.Context, match.Context) {
		return false
	}
	return true
}

// mapContains reports whether every key in want appears in have with an
// equal value, descending into nested maps. Extra keys in have are ignored.
func mapContains(have, want map[string]interface{}) bool {
	for key, wantVal := range want {
		haveVal, ok := have[key]
		if !ok {
			return false
		}
		wantMap, wantIsMap := wantVal.(map[string]interface{})
		haveMap, haveIsMap := haveVal.(map[string]interface{})
		if wantIsMap && haveIsMap {
			if !mapContains(haveMap, wantMap) {
				return false
			}
			continue
		}
		if !scalarEqual(haveVal, wantVal) {
			return false
		}
	}
	return true
}

// scalarEqual compares leaf values. Numbers compare by value regardless of
// decoded Go type: YAML documents carry int where JSON carries float64.
func scalarEqual(have, want interface{}) bool {
	haveNum, haveOK := toFloat(have)
	wantNum, wantOK := toFloat(want)
	if haveOK && wantOK {
		return haveNum == wantNum
	}
	return reflect.DeepEqual(have, want)
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// ValidateRules rejects malformed rules at write time so evaluation never
// has to.
func ValidateRules(rules []db.PolicyRule) error {
	if len(rules) == 0 {
		return apperrors.Validation("policy must contain at least one rule")
	}
	for i, rule := range rules {
		if !db.ValidRuleDecision(rule.Decision) {
			return apperrors.Validation("rule %d: unknown decision %q", i, rule.Decision)
		}
		if rule.Match.Urgency != nil && !db.ValidUrgency(*rule.Match.Urgency) {
			return apperrors.Validation("rule %d: unknown urgency %q", i, *rule.Match.Urgency)
		}
	}
	return nil
}
