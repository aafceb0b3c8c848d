package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/agentgate/agentgate/internal/apperrors"
	"github.com/google/uuid"
)

// User operations

// UpsertUserBySubject inserts a user or refreshes profile fields on
// conflict. The external subject claim is the stable identity.
func (q *Queries) UpsertUserBySubject(ctx context.Context, user *User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	query := `
		INSERT INTO users (id, subject, email, display_name, role, tenant_id, disabled_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (subject) DO UPDATE
		SET email = EXCLUDED.email, display_name = EXCLUDED.display_name, updated_at = EXCLUDED.updated_at
		RETURNING id, role, tenant_id, disabled_at, created_at
	`
	var tenantID sql.NullString
	var disabledAt sql.NullTime
	err := q.db.QueryRowContext(ctx, query,
		user.ID, user.Subject, user.Email, user.DisplayName, user.Role,
		user.TenantID, user.DisabledAt, user.CreatedAt, user.UpdatedAt).
		Scan(&user.ID, &user.Role, &tenantID, &disabledAt, &user.CreatedAt)
	if err != nil {
		return err
	}
	user.TenantID = tenantID.String
	if disabledAt.Valid {
		user.DisabledAt = &disabledAt.Time
	}
	return nil
}

// GetUserByID gets a user by ID
func (q *Queries) GetUserByID(ctx context.Context, id string) (*User, error) {
	query := `
		SELECT id, subject, email, display_name, role, tenant_id, disabled_at, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	user, err := scanUser(q.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("user %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// GetUserBySubject gets a user by external subject
func (q *Queries) GetUserBySubject(ctx context.Context, subject string) (*User, error) {
	query := `
		SELECT id, subject, email, display_name, role, tenant_id, disabled_at, created_at, updated_at
		FROM users
		WHERE subject = $1
	`
	user, err := scanUser(q.db.QueryRowContext(ctx, query, subject))
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("user not found")
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

func scanUser(row rowScanner) (*User, error) {
	var user User
	var tenantID sql.NullString
	var disabledAt sql.NullTime

	err := row.Scan(
		&user.ID, &user.Subject, &user.Email, &user.DisplayName, &user.Role,
		&tenantID, &disabledAt, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, err
	}

	user.TenantID = tenantID.String
	if disabledAt.Valid {
		user.DisabledAt = &disabledAt.Time
	}

	return &user, nil
}
