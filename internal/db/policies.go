package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/agentgate/agentgate/internal/apperrors"
	"github.com/google/uuid"
)

// Policy operations

// CreatePolicy creates a new policy
func (q *Queries) CreatePolicy(ctx context.Context, policy *Policy) error {
	if policy.ID == "" {
		policy.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	policy.CreatedAt = now
	policy.UpdatedAt = now

	rulesJSON, _ := json.Marshal(policy.Rules)

	query := `
		INSERT INTO policies (id, name, description, priority, enabled, rules, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := q.db.ExecContext(ctx, query,
		policy.ID, policy.Name, policy.Description, policy.Priority,
		policy.Enabled, rulesJSON, policy.CreatedAt, policy.UpdatedAt)
	return err
}

// GetPolicy gets a policy by ID
func (q *Queries) GetPolicy(ctx context.Context, id string) (*Policy, error) {
	query := `
		SELECT id, name, description, priority, enabled, rules, created_at, updated_at
		FROM policies
		WHERE id = $1
	`
	policy, err := scanPolicy(q.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("policy %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return policy, nil
}

// ListPolicies lists policies ordered by priority. Equal priorities keep
// creation order so evaluation stays deterministic.
func (q *Queries) ListPolicies(ctx context.Context, enabledOnly bool) ([]Policy, error) {
	query := `
		SELECT id, name, description, priority, enabled, rules, created_at, updated_at
		FROM policies
		WHERE $1 = false OR enabled = true
		ORDER BY priority ASC, created_at ASC
	`
	rows, err := q.db.QueryContext(ctx, query, enabledOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var policies []Policy
	for rows.Next() {
		policy, err := scanPolicy(rows)
		if err != nil {
			return nil, err
		}
		policies = append(policies, *policy)
	}
	return policies, rows.Err()
}

// UpdatePolicy updates a policy
func (q *Queries) UpdatePolicy(ctx context.Context, policy *Policy) error {
	policy.UpdatedAt = time.Now().UTC()

	rulesJSON, _ := json.Marshal(policy.Rules)

	query := `
		UPDATE policies
		SET name = $2, description = $3, priority = $4, enabled = $5, rules = $6, updated_at = $7
		WHERE id = $1
	`
	result, err := q.db.ExecContext(ctx, query,
		policy.ID, policy.Name, policy.Description, policy.Priority,
		policy.Enabled, rulesJSON, policy.UpdatedAt)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperrors.NotFound("policy %s not found", policy.ID)
	}
	return nil
}

// ReplacePolicies swaps the full policy set for the given one in a single
// transaction. Inserted rows get staggered created_at values so document
// order survives the priority tie-break in ListPolicies.
func (q *Queries) ReplacePolicies(ctx context.Context, policies []Policy) error {
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM policies`); err != nil {
		return err
	}

	query := `
		INSERT INTO policies (id, name, description, priority, enabled, rules, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	now := time.Now().UTC()
	for i := range policies {
		policy := &policies[i]
		if policy.ID == "" {
			policy.ID = uuid.New().String()
		}
		policy.CreatedAt = now.Add(time.Duration(i) * time.Microsecond)
		policy.UpdatedAt = policy.CreatedAt

		rulesJSON, _ := json.Marshal(policy.Rules)
		if _, err := tx.ExecContext(ctx, query,
			policy.ID, policy.Name, policy.Description, policy.Priority,
			policy.Enabled, rulesJSON, policy.CreatedAt, policy.UpdatedAt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// DeletePolicy deletes a policy
func (q *Queries) DeletePolicy(ctx context.Context, id string) error {
	result, err := q.db.ExecContext(ctx, `DELETE FROM policies WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperrors.NotFound("policy %s not found", id)
	}
	return nil
}

func scanPolicy(row rowScanner) (*Policy, error) {
	var policy Policy
	var description sql.NullString
	var rulesJSON []byte

	err := row.Scan(
		&policy.ID, &policy.Name, &description, &policy.Priority,
		&policy.Enabled, &rulesJSON, &policy.CreatedAt, &policy.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if description.Valid {
		policy.Description = &description.String
	}
	if len(rulesJSON) > 0 {
		json.Unmarshal(rulesJSON, &policy.Rules)
	}

	return &policy, nil
}
