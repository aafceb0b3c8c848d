package policy

import (
	"encoding/json"
	"testing"

	"github.com/agentgate/agentgate/internal/db"
)

func strPtr(s string) *string {
	return &s
}

func request(action, urgency string, params, ctx map[string]interface{}) *db.ApprovalRequest {
	if params == nil {
		params = map[string]interface{}{}
	}
	if ctx == nil {
		ctx = map[string]interface{}{}
	}
	return &db.ApprovalRequest{
		Action:  action,
		Urgency: urgency,
		Params:  params,
		Context: ctx,
		Status:  db.StatusPending,
	}
}

func TestEvaluate_FirstMatchWins(t *testing.T) {
	policies := []db.Policy{
		{
			ID:       "deny-deletes",
			Enabled:  true,
			Priority: 10,
			Rules: []db.PolicyRule{
				{Match: db.MatchPredicate{Action: strPtr("delete_table")}, Decision: db.DecisionAutoDeny},
			},
		},
		{
			ID:       "allow-everything",
			Enabled:  true,
			Priority: 20,
			Rules: []db.PolicyRule{
				{Match: db.MatchPredicate{}, Decision: db.DecisionAutoApprove},
			},
		},
	}

	tests := []struct {
		name         string
		req          *db.ApprovalRequest
		wantDecision string
		wantPolicyID string
	}{
		{
			name:         "lower priority evaluates first",
			req:          request("delete_table", db.UrgencyNormal, nil, nil),
			wantDecision: db.DecisionAutoDeny,
			wantPolicyID: "deny-deletes",
		},
		{
			name:         "falls through to catch-all",
			req:          request("read_table", db.UrgencyNormal, nil, nil),
			wantDecision: db.DecisionAutoApprove,
			wantPolicyID: "allow-everything",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome := Evaluate(tt.req, policies)
			if outcome.Decision != tt.wantDecision {
				t.Errorf("decision = %q, want %q", outcome.Decision, tt.wantDecision)
			}
			if outcome.PolicyID != tt.wantPolicyID {
				t.Errorf("policyID = %q, want %q", outcome.PolicyID, tt.wantPolicyID)
			}
		})
	}
}

func TestEvaluate_PriorityTieBreaksOnOrder(t *testing.T) {
	policies := []db.Policy{
		{
			ID:       "first",
			Enabled:  true,
			Priority: 5,
			Rules:    []db.PolicyRule{{Match: db.MatchPredicate{}, Decision: db.DecisionAutoApprove}},
		},
		{
			ID:       "second",
			Enabled:  true,
			Priority: 5,
			Rules:    []db.PolicyRule{{Match: db.MatchPredicate{}, Decision: db.DecisionAutoDeny}},
		},
	}

	outcome := Evaluate(request("anything", db.UrgencyLow, nil, nil), policies)
	if outcome.PolicyID != "first" {
		t.Errorf("policyID = %q, want %q", outcome.PolicyID, "first")
	}
}

func TestEvaluate_SkipsDisabledPolicies(t *testing.T) {
	policies := []db.Policy{
		{
			ID:       "disabled",
			Enabled:  false,
			Priority: 1,
			Rules:    []db.PolicyRule{{Match: db.MatchPredicate{}, Decision: db.DecisionAutoDeny}},
		},
	}

	outcome := Evaluate(request("anything", db.UrgencyLow, nil, nil), policies)
	if outcome.Decision != DecisionAsk {
		t.Errorf("decision = %q, want %q", outcome.Decision, DecisionAsk)
	}
	if outcome.PolicyID != "" {
		t.Errorf("policyID = %q, want empty", outcome.PolicyID)
	}
}

func TestEvaluate_NoPoliciesYieldsAsk(t *testing.T) {
	outcome := Evaluate(request("anything", db.UrgencyLow, nil, nil), nil)
	if outcome.Decision != DecisionAsk {
		t.Errorf("decision = %q, want %q", outcome.Decision, DecisionAsk)
	}
}

func TestEvaluate_RuleOrderWithinPolicy(t *testing.T) {
	policies := []db.Policy{
		{
			ID:       "ordered",
			Enabled:  true,
			Priority: 1,
			Rules: []db.PolicyRule{
				{Match: db.MatchPredicate{Urgency: strPtr(db.UrgencyCritical)}, Decision: db.DecisionRouteToHuman},
				{Match: db.MatchPredicate{}, Decision: db.DecisionAutoApprove},
			},
		},
	}

	outcome := Evaluate(request("deploy", db.UrgencyCritical, nil, nil), policies)
	if outcome.Decision != db.DecisionRouteToHuman {
		t.Errorf("decision = %q, want %q", outcome.Decision, db.DecisionRouteToHuman)
	}
}

func TestMatches(t *testing.T) {
	tests := []struct {
		name  string
		match db.MatchPredicate
		req   *db.ApprovalRequest
		want  bool
	}{
		{
			name:  "empty predicate matches anything",
			match: db.MatchPredicate{},
			req:   request("deploy", db.UrgencyHigh, nil, nil),
			want:  true,
		},
		{
			name:  "action mismatch",
			match: db.MatchPredicate{Action: strPtr("deploy")},
			req:   request("rollback", db.UrgencyNormal, nil, nil),
			want:  false,
		},
		{
			name:  "urgency match",
			match: db.MatchPredicate{Urgency: strPtr(db.UrgencyHigh)},
			req:   request("deploy", db.UrgencyHigh, nil, nil),
			want:  true,
		},
		{
			name:  "params partial match with extra keys",
			match: db.MatchPredicate{Params: map[string]interface{}{"env": "prod"}},
			req:   request("deploy", db.UrgencyNormal, map[string]interface{}{"env": "prod", "region": "us-east-1"}, nil),
			want:  true,
		},
		{
			name:  "params missing key",
			match: db.MatchPredicate{Params: map[string]interface{}{"env": "prod"}},
			req:   request("deploy", db.UrgencyNormal, map[string]interface{}{"region": "us-east-1"}, nil),
			want:  false,
		},
		{
			name: "nested map partial match",
			match: db.MatchPredicate{Params: map[string]interface{}{
				"target": map[string]interface{}{"cluster": "primary"},
			}},
			req: request("deploy", db.UrgencyNormal, map[string]interface{}{
				"target": map[string]interface{}{"cluster": "primary", "namespace": "default"},
			}, nil),
			want: true,
		},
		{
			name: "nested map value mismatch",
			match: db.MatchPredicate{Params: map[string]interface{}{
				"target": map[string]interface{}{"cluster": "primary"},
			}},
			req: request("deploy", db.UrgencyNormal, map[string]interface{}{
				"target": map[string]interface{}{"cluster": "staging"},
			}, nil),
			want: false,
		},
		{
			name:  "context match",
			match: db.MatchPredicate{Context: map[string]interface{}{"agent": "ci-bot"}},
			req:   request("deploy", db.UrgencyNormal, nil, map[string]interface{}{"agent": "ci-bot"}),
			want:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Matches(tt.match, tt.req); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMatches_NumericValuesAcrossDecoders(t *testing.T) {
	// YAML-imported rules carry int values while request params decode from
	// JSON as float64; the comparison must be numeric, not type-strict.
	doc := `
policies:
  - name: cap batch size
    priority: 1
    enabled: true
    rules:
      - match:
          params:
            count: 3
        decision: auto_deny
`
	policies, err := ParseDocument([]byte(doc))
	if err != nil {
		t.Fatalf("ParseDocument() error = %v", err)
	}

	var params map[string]interface{}
	if err := json.Unmarshal([]byte(`{"count": 3}`), &params); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}

	outcome := Evaluate(request("batch_delete", db.UrgencyNormal, params, nil), policies)
	if outcome.Decision != db.DecisionAutoDeny {
		t.Errorf("decision = %q, want auto_deny for numerically equal values", outcome.Decision)
	}

	outcome = Evaluate(request("batch_delete", db.UrgencyNormal,
		map[string]interface{}{"count": float64(4)}, nil), policies)
	if outcome.Decision != DecisionAsk {
		t.Errorf("decision = %q, want ask for unequal values", outcome.Decision)
	}
}

func TestValidateRules(t *testing.T) {
	tests := []struct {
		name    string
		rules   []db.PolicyRule
		wantErr bool
	}{
		{
			name:    "empty rule list",
			rules:   nil,
			wantErr: true,
		},
		{
			name: "valid rule",
			rules: []db.PolicyRule{
				{Match: db.MatchPredicate{}, Decision: db.DecisionAutoApprove},
			},
			wantErr: false,
		},
		{
			name: "unknown decision",
			rules: []db.PolicyRule{
				{Match: db.MatchPredicate{}, Decision: "maybe"},
			},
			wantErr: true,
		},
		{
			name: "unknown urgency in predicate",
			rules: []db.PolicyRule{
				{Match: db.MatchPredicate{Urgency: strPtr("panic")}, Decision: db.DecisionAutoDeny},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRules(tt.rules)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateRules() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
