package db

import "context"

/* Schema statements are idempotent so startup can apply them on every boot */
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS approval_requests (
		id UUID PRIMARY KEY,
		action TEXT NOT NULL,
		params JSONB NOT NULL DEFAULT '{}',
		context JSONB NOT NULL DEFAULT '{}',
		status TEXT NOT NULL DEFAULT 'pending',
		urgency TEXT NOT NULL DEFAULT 'normal',
		decided_by TEXT,
		decided_at TIMESTAMPTZ,
		decision_reason TEXT,
		expires_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_approval_requests_status ON approval_requests(status)`,
	`CREATE INDEX IF NOT EXISTS idx_approval_requests_expires ON approval_requests(expires_at) WHERE status = 'pending'`,

	`CREATE TABLE IF NOT EXISTS policies (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT,
		priority INTEGER NOT NULL DEFAULT 100,
		enabled BOOLEAN NOT NULL DEFAULT true,
		rules JSONB NOT NULL DEFAULT '[]',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS api_keys (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		key_hash TEXT NOT NULL,
		key_prefix TEXT NOT NULL UNIQUE,
		scopes TEXT[] NOT NULL DEFAULT '{}',
		rate_limit INTEGER,
		expires_at TIMESTAMPTZ,
		revoked_at TIMESTAMPTZ,
		last_used_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		subject TEXT NOT NULL UNIQUE,
		email TEXT NOT NULL DEFAULT '',
		display_name TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL DEFAULT 'viewer',
		tenant_id TEXT,
		disabled_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS decision_tokens (
		id UUID PRIMARY KEY,
		request_id UUID NOT NULL REFERENCES approval_requests(id),
		action TEXT NOT NULL,
		secret_hash TEXT NOT NULL UNIQUE,
		expires_at TIMESTAMPTZ NOT NULL,
		used_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_decision_tokens_request ON decision_tokens(request_id)`,

	`CREATE TABLE IF NOT EXISTS webhooks (
		id UUID PRIMARY KEY,
		url TEXT NOT NULL,
		secret TEXT NOT NULL,
		events TEXT[] NOT NULL DEFAULT '{}',
		enabled BOOLEAN NOT NULL DEFAULT true,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS webhook_deliveries (
		id UUID PRIMARY KEY,
		webhook_id UUID NOT NULL REFERENCES webhooks(id),
		event TEXT NOT NULL,
		payload JSONB NOT NULL DEFAULT '{}',
		status TEXT NOT NULL,
		attempts INTEGER NOT NULL DEFAULT 0,
		response_code INTEGER,
		response_body TEXT,
		last_attempt_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_webhook_deliveries_webhook ON webhook_deliveries(webhook_id, created_at DESC)`,

	`CREATE TABLE IF NOT EXISTS audit_log (
		id UUID PRIMARY KEY,
		request_id UUID NOT NULL,
		event_type TEXT NOT NULL,
		actor TEXT NOT NULL,
		details JSONB NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_log_request ON audit_log(request_id, created_at ASC)`,

	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL REFERENCES users(id),
		token_hash TEXT NOT NULL UNIQUE,
		expires_at TIMESTAMPTZ NOT NULL,
		revoked_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// Migrate applies the schema
func (q *Queries) Migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := q.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
