package db

import (
	"fmt"

	"gorm.io/gorm"
)

var migrationStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,
	`CREATE EXTENSION IF NOT EXISTS "pgcrypto";`,
	`DO $$
	BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'job_status') THEN
			CREATE TYPE job_status AS ENUM ('OPEN', 'IN_PROGRESS', 'COMPLETED', 'CANCELLED');
		END IF;
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'bid_status') THEN
			CREATE TYPE bid_status AS ENUM ('PENDING', 'ACCEPTED', 'REJECTED');
		END IF;
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'membership_tier') THEN
			CREATE TYPE membership_tier AS ENUM ('BASIC', 'STANDARD', 'PREMIUM');
		END IF;
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'obligation_type') THEN
			CREATE TYPE obligation_type AS ENUM ('DEPOSIT', 'COMPLETION');
		END IF;
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'obligation_status') THEN
			CREATE TYPE obligation_status AS ENUM ('UNPAID', 'PAID');
		END IF;
	END
	$$;`,
	`CREATE TABLE IF NOT EXISTS jobs (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		customer_id UUID NOT NULL,
		category VARCHAR(64) NOT NULL,
		description TEXT NOT NULL,
		estimate_amount NUMERIC(18,2) NOT NULL,
		timeline_days INT NOT NULL,
		status job_status NOT NULL DEFAULT 'OPEN',
		lat DOUBLE PRECISION NOT NULL,
		lon DOUBLE PRECISION NOT NULL,
		accepted_bid_id UUID,
		version INT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT chk_accepted_bid_status CHECK (
			accepted_bid_id IS NULL OR status IN ('IN_PROGRESS', 'COMPLETED')
		)
	);`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_status_created ON jobs (status, created_at DESC, id DESC);`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_customer_id ON jobs (customer_id);`,
	`CREATE TABLE IF NOT EXISTS bids (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		job_id UUID NOT NULL REFERENCES jobs(id),
		contractor_id UUID NOT NULL,
		amount NUMERIC(18,2) NOT NULL,
		timeline_start DATE NOT NULL,
		timeline_end DATE NOT NULL,
		materials TEXT,
		warranty TEXT,
		status bid_status NOT NULL DEFAULT 'PENDING',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	// One accepted bid per job, enforced by the database itself.
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_bids_one_accepted_per_job
		ON bids (job_id) WHERE status = 'ACCEPTED';`,
	// One live bid per contractor per job.
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_bids_pending_per_contractor
		ON bids (job_id, contractor_id) WHERE status = 'PENDING';`,
	`CREATE INDEX IF NOT EXISTS idx_bids_job_id ON bids (job_id);`,
	`CREATE INDEX IF NOT EXISTS idx_bids_contractor_id ON bids (contractor_id);`,
	`CREATE TABLE IF NOT EXISTS memberships (
		contractor_id UUID PRIMARY KEY,
		tier membership_tier NOT NULL,
		cycle_anchor DATE NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		home_lat DOUBLE PRECISION NOT NULL,
		home_lon DOUBLE PRECISION NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS lead_usage (
		contractor_id UUID NOT NULL,
		cycle_start DATE NOT NULL,
		leads_used INT NOT NULL DEFAULT 0,
		leads_limit INT NOT NULL,
		PRIMARY KEY (contractor_id, cycle_start)
	);`,
	`CREATE TABLE IF NOT EXISTS lead_charges (
		contractor_id UUID NOT NULL,
		cycle_start DATE NOT NULL,
		job_id UUID NOT NULL REFERENCES jobs(id),
		charged_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (contractor_id, cycle_start, job_id)
	);`,
	`CREATE TABLE IF NOT EXISTS payment_obligations (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		bid_id UUID NOT NULL REFERENCES bids(id),
		job_id UUID NOT NULL REFERENCES jobs(id),
		obligation_type obligation_type NOT NULL,
		amount NUMERIC(18,2) NOT NULL,
		status obligation_status NOT NULL DEFAULT 'UNPAID',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_obligations_bid_type
		ON payment_obligations (bid_id, obligation_type);`,
	`CREATE INDEX IF NOT EXISTS idx_obligations_job_id ON payment_obligations (job_id);`,
}

func runMigrations(db *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
