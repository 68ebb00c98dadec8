package database

import (
	"context"
	"fmt"
)

// CreateSchema creates the database schema for the coordination core
func (db *DB) CreateSchema(ctx context.Context) error {
	db.logger.Info("Creating database schema...")

	tables := []string{
		createAccountsTable,
		createProviderProfilesTable,
		createAffiliationsTable,
		createAppointmentsTable,
		createNotificationsTable,
		createMessagesTable,
	}

	for _, table := range tables {
		if _, err := db.ExecContext(ctx, table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	indexes := []string{
		createAppointmentsIndexes,
		createNotificationsIndexes,
		createMessagesIndexes,
	}

	for _, index := range indexes {
		if _, err := db.ExecContext(ctx, index); err != nil {
			return fmt.Errorf("failed to create indexes: %w", err)
		}
	}

	db.logger.Info("Database schema created successfully")
	return nil
}

const createAccountsTable = `
CREATE TABLE IF NOT EXISTS accounts (
	id VARCHAR(64) PRIMARY KEY,
	name VARCHAR(255) NOT NULL,
	email VARCHAR(255) NOT NULL UNIQUE,
	mobile VARCHAR(32),
	roles TEXT[] NOT NULL DEFAULT '{patient}',
	active_role VARCHAR(32) NOT NULL DEFAULT 'patient',
	profile_image TEXT,
	created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
);`

const createProviderProfilesTable = `
CREATE TABLE IF NOT EXISTS provider_profiles (
	id VARCHAR(64) PRIMARY KEY,
	account_id VARCHAR(64) NOT NULL REFERENCES accounts(id),
	specialty VARCHAR(128),
	verified BOOLEAN NOT NULL DEFAULT FALSE,
	active BOOLEAN NOT NULL DEFAULT FALSE,
	affiliation_id VARCHAR(64),
	created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
);`

const createAffiliationsTable = `
CREATE TABLE IF NOT EXISTS affiliations (
	id VARCHAR(64) PRIMARY KEY,
	name VARCHAR(255) NOT NULL,
	is_default BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
);`

const createAppointmentsTable = `
CREATE TABLE IF NOT EXISTS appointments (
	id VARCHAR(64) PRIMARY KEY,
	patient_account_id VARCHAR(64) NOT NULL,
	provider_account_id VARCHAR(64) NOT NULL,
	affiliation_id VARCHAR(64),
	scheduled_at TIMESTAMP WITH TIME ZONE NOT NULL,
	status VARCHAR(32) NOT NULL DEFAULT 'pending',
	notes TEXT,
	cancelled_by VARCHAR(32),
	cancel_reason TEXT,
	short_notice BOOLEAN NOT NULL DEFAULT FALSE,
	rescheduled_from_id VARCHAR(64),
	rescheduled_to_id VARCHAR(64),
	missed_at TIMESTAMP WITH TIME ZONE,
	rescheduled_at TIMESTAMP WITH TIME ZONE,
	created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
);`

const createNotificationsTable = `
CREATE TABLE IF NOT EXISTS notifications (
	id VARCHAR(64) PRIMARY KEY,
	account_id VARCHAR(64) NOT NULL,
	role VARCHAR(32) NOT NULL,
	kind VARCHAR(32) NOT NULL DEFAULT 'general',
	title VARCHAR(255) NOT NULL,
	body TEXT NOT NULL,
	appointment_id VARCHAR(64),
	read BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
);`

const createMessagesTable = `
CREATE TABLE IF NOT EXISTS messages (
	id VARCHAR(64) PRIMARY KEY,
	conversation_id VARCHAR(160),
	appointment_id VARCHAR(64),
	sender_account_id VARCHAR(64) NOT NULL,
	sender_role VARCHAR(32),
	body TEXT NOT NULL,
	kind VARCHAR(16) NOT NULL DEFAULT 'text',
	file_url TEXT,
	read_by TEXT[] NOT NULL DEFAULT '{}',
	created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
);`

const createAppointmentsIndexes = `
CREATE INDEX IF NOT EXISTS idx_appointments_patient ON appointments(patient_account_id);
CREATE INDEX IF NOT EXISTS idx_appointments_provider ON appointments(provider_account_id);
CREATE INDEX IF NOT EXISTS idx_appointments_status_scheduled ON appointments(status, scheduled_at);`

const createNotificationsIndexes = `
CREATE INDEX IF NOT EXISTS idx_notifications_account_role ON notifications(account_id, role, created_at DESC);`

const createMessagesIndexes = `
CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, created_at);
CREATE INDEX IF NOT EXISTS idx_messages_appointment ON messages(appointment_id);`
