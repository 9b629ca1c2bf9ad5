package postgres

import (
	"fmt"

	"gorm.io/gorm"
)

var migrationStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS "pgcrypto";`,
	`DO $$
	BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'plan_status') THEN
			CREATE TYPE plan_status AS ENUM ('OPEN', 'ACTIVE', 'COMPLETED');
		END IF;
	END
	$$;`,
	`DO $$
	BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'payout_status') THEN
			CREATE TYPE payout_status AS ENUM ('SCHEDULED', 'COMPLETED', 'FAILED');
		END IF;
	END
	$$;`,
	`DO $$
	BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'tx_status') THEN
			CREATE TYPE tx_status AS ENUM ('pending', 'confirmed', 'failed');
		END IF;
	END
	$$;`,
	`CREATE TABLE IF NOT EXISTS plans (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		name VARCHAR(50) NOT NULL,
		description VARCHAR(500) NOT NULL,
		initiator VARCHAR(128) NOT NULL,
		max_members INT NOT NULL,
		contribution_amount BIGINT NOT NULL,
		frequency VARCHAR(16) NOT NULL,
		duration_months INT NOT NULL,
		trust_score_required INT NOT NULL,
		allow_partial BOOLEAN NOT NULL DEFAULT FALSE,
		status plan_status NOT NULL DEFAULT 'OPEN',
		current_round INT NOT NULL DEFAULT 0,
		payout_index INT NOT NULL DEFAULT 0,
		chain_plan_id BIGINT NOT NULL DEFAULT 0,
		contract_address VARCHAR(128),
		contract_tx_hash VARCHAR(128),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_plans_initiator ON plans (initiator);`,
	`CREATE TABLE IF NOT EXISTS plan_participants (
		plan_id UUID NOT NULL REFERENCES plans(id) ON DELETE CASCADE,
		address VARCHAR(128) NOT NULL,
		position INT NOT NULL,
		PRIMARY KEY (plan_id, address)
	);`,
	`CREATE TABLE IF NOT EXISTS join_requests (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		plan_id UUID NOT NULL REFERENCES plans(id) ON DELETE CASCADE,
		requester VARCHAR(128) NOT NULL,
		approvals JSONB NOT NULL DEFAULT '[]',
		denials JSONB NOT NULL DEFAULT '[]',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (plan_id, requester)
	);`,
	`CREATE TABLE IF NOT EXISTS contributions (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		plan_id UUID NOT NULL REFERENCES plans(id) ON DELETE CASCADE,
		participant VARCHAR(128) NOT NULL,
		round_number INT NOT NULL,
		amount BIGINT NOT NULL,
		partial BOOLEAN NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_contributions_plan_round ON contributions (plan_id, round_number);`,
	`CREATE TABLE IF NOT EXISTS payouts (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		plan_id UUID NOT NULL REFERENCES plans(id) ON DELETE CASCADE,
		recipient VARCHAR(128) NOT NULL,
		round_number INT NOT NULL,
		amount BIGINT NOT NULL,
		scheduled_date TIMESTAMPTZ NOT NULL,
		status payout_status NOT NULL DEFAULT 'SCHEDULED',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE TABLE IF NOT EXISTS transactions (
		id UUID PRIMARY KEY,
		subject VARCHAR(128) NOT NULL,
		amount BIGINT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		kind VARCHAR(16) NOT NULL,
		plan_id UUID,
		round_number INT,
		status tx_status NOT NULL DEFAULT 'pending',
		external_ref VARCHAR(128) NOT NULL DEFAULT '',
		failure_reason TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		settled_at TIMESTAMPTZ
	);`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_subject ON transactions (subject, created_at DESC);`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_plan ON transactions (plan_id, created_at DESC);`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_pending ON transactions (created_at) WHERE status = 'pending';`,
}

func migrate(db *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i, err)
		}
	}
	return nil
}
