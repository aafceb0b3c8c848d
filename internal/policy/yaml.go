package policy

import (
	"github.com/agentgate/agentgate/internal/apperrors"
	"github.com/agentgate/agentgate/internal/db"
	"gopkg.in/yaml.v3"
)

/* Document is the on-disk YAML shape for policy import and export */
type Document struct {
	Policies []db.Policy `yaml:"policies"`
}

// ParseDocument parses and validates a YAML policy document
func ParseDocument(data []byte) ([]db.Policy, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, apperrors.Validation("invalid policy document: %v", err)
	}
	if len(doc.Policies) == 0 {
		return nil, apperrors.Validation("policy document contains no policies")
	}
	for i := range doc.Policies {
		p := &doc.Policies[i]
		if p.Name == "" {
			return nil, apperrors.Validation("policy %d: name is required", i)
		}
		if err := ValidateRules(p.Rules); err != nil {
			return nil, err
		}
	}
	return doc.Policies, nil
}

// MarshalDocument renders policies as a YAML document
func MarshalDocument(policies []db.Policy) ([]byte, error) {
	return yaml.Marshal(Document{Policies: policies})
}
