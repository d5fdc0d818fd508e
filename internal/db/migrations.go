package db

import (
	"fmt"

	"gorm.io/gorm"
)

var migrationStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,
	`CREATE TABLE IF NOT EXISTS catalog_entries (
		service_name VARCHAR(255) PRIMARY KEY,
		price_service NUMERIC(12,2) NOT NULL DEFAULT 0,
		price_travel NUMERIC(12,2) NOT NULL DEFAULT 0,
		active BOOLEAN NOT NULL DEFAULT TRUE
	);`,
	`CREATE TABLE IF NOT EXISTS professionals (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		name VARCHAR(255) NOT NULL,
		contact VARCHAR(64) NOT NULL DEFAULT '',
		online BOOLEAN NOT NULL DEFAULT FALSE
	);`,
	`CREATE TABLE IF NOT EXISTS service_requests (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		status VARCHAR(16) NOT NULL DEFAULT 'SEARCHING'
			CHECK (status IN ('SEARCHING', 'CLAIMED', 'IN_PROGRESS', 'COMPLETED', 'CANCELED')),
		service_name VARCHAR(255) NOT NULL,
		customer_name VARCHAR(255) NOT NULL,
		customer_contact VARCHAR(64) NOT NULL,
		address TEXT NOT NULL,
		notes TEXT,
		price_service NUMERIC(12,2) NOT NULL,
		price_travel NUMERIC(12,2) NOT NULL,
		price_total NUMERIC(12,2) NOT NULL,
		professional_id UUID REFERENCES professionals(id),
		professional_name VARCHAR(255),
		claimed_at TIMESTAMPTZ,
		CONSTRAINT chk_service_requests_total CHECK (price_total = price_service + price_travel)
	);`,
	`CREATE INDEX IF NOT EXISTS idx_service_requests_status_created ON service_requests (status, created_at DESC);`,
	`CREATE INDEX IF NOT EXISTS idx_service_requests_professional ON service_requests (professional_id) WHERE professional_id IS NOT NULL;`,
	// The price snapshot is written once by intake.
	`CREATE OR REPLACE FUNCTION service_requests_freeze_price() RETURNS trigger AS $$
	BEGIN
		IF NEW.price_service <> OLD.price_service
			OR NEW.price_travel <> OLD.price_travel
			OR NEW.price_total <> OLD.price_total THEN
			RAISE EXCEPTION 'price snapshot of request % is immutable', OLD.id;
		END IF;
		RETURN NEW;
	END
	$$ LANGUAGE plpgsql;`,
	`DO $$
	BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_trigger WHERE tgname = 'trg_service_requests_freeze_price') THEN
			CREATE TRIGGER trg_service_requests_freeze_price
				BEFORE UPDATE ON service_requests
				FOR EACH ROW EXECUTE FUNCTION service_requests_freeze_price();
		END IF;
	END
	$$;`,
}

func runMigrations(db *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
