/*
 * Copyright 2026 JegHealth, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jeghealth/devicescan/pkg/logger"
)

const migrationsTable = "devicescan_schema_migrations"

type migration struct {
	name string
	sql  string
}

var migrations = []migration{
	{
		name: "0001_scan_sessions",
		sql: `
CREATE TABLE IF NOT EXISTS scan_sessions (
	id UUID PRIMARY KEY,
	owner_id TEXT NOT NULL,
	scan_kind TEXT NOT NULL,
	duration_seconds INT NOT NULL,
	status TEXT NOT NULL,
	devices_found INT NOT NULL DEFAULT 0,
	target_devices_found INT NOT NULL DEFAULT 0,
	started_at TIMESTAMPTZ NOT NULL,
	completed_at TIMESTAMPTZ,
	error_message TEXT NOT NULL DEFAULT '',
	summary_json JSONB
);
CREATE UNIQUE INDEX IF NOT EXISTS scan_sessions_active_owner
	ON scan_sessions (owner_id)
	WHERE status IN ('INITIATED', 'SCANNING');
CREATE INDEX IF NOT EXISTS scan_sessions_owner_started
	ON scan_sessions (owner_id, started_at DESC);`,
	},
	{
		name: "0002_detected_devices",
		sql: `
CREATE TABLE IF NOT EXISTS detected_devices (
	id UUID PRIMARY KEY,
	session_id UUID NOT NULL REFERENCES scan_sessions(id),
	display_name TEXT NOT NULL DEFAULT '',
	mac_address TEXT NOT NULL DEFAULT '',
	bluetooth_address TEXT NOT NULL DEFAULT '',
	signal_strength_dbm INT,
	connection_kind TEXT NOT NULL,
	manufacturer TEXT NOT NULL DEFAULT '',
	is_target_vendor BOOLEAN NOT NULL,
	confidence DOUBLE PRECISION NOT NULL,
	is_paired BOOLEAN NOT NULL DEFAULT FALSE,
	first_seen TIMESTAMPTZ NOT NULL,
	last_seen TIMESTAMPTZ NOT NULL,
	extra_json JSONB NOT NULL DEFAULT '{}'::jsonb,
	UNIQUE (session_id, mac_address, bluetooth_address)
);
CREATE INDEX IF NOT EXISTS detected_devices_session
	ON detected_devices (session_id, is_target_vendor);`,
	},
	{
		name: "0003_device_profiles",
		sql: `
CREATE TABLE IF NOT EXISTS device_profiles (
	id UUID PRIMARY KEY,
	owner_id TEXT NOT NULL,
	source_detected_device_id UUID,
	display_name TEXT NOT NULL,
	stable_identifier TEXT NOT NULL UNIQUE,
	mac_address TEXT NOT NULL DEFAULT '',
	bluetooth_address TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	sync_frequency_minutes INT NOT NULL,
	last_sync_at TIMESTAMPTZ,
	granted_capabilities TEXT[] NOT NULL DEFAULT '{}',
	is_primary BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS device_profiles_source_device
	ON device_profiles (source_detected_device_id)
	WHERE source_detected_device_id IS NOT NULL;
CREATE UNIQUE INDEX IF NOT EXISTS device_profiles_primary_owner
	ON device_profiles (owner_id)
	WHERE is_primary;
CREATE INDEX IF NOT EXISTS device_profiles_owner
	ON device_profiles (owner_id, status);`,
	},
}

// RunMigrations applies pending schema migrations in order, tracking the
// applied set in a migrations table.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool, log logger.Logger) error {
	_, err := pool.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			name TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, migrationsTable))
	if err != nil {
		return fmt.Errorf("%w: migrations table: %w", ErrFailedToInit, err)
	}

	for _, m := range migrations {
		var applied bool

		err = pool.QueryRow(ctx, fmt.Sprintf(
			"SELECT EXISTS (SELECT 1 FROM %s WHERE name = $1)", migrationsTable), m.name).Scan(&applied)
		if err != nil {
			return fmt.Errorf("%w: migration lookup: %w", ErrFailedToInit, err)
		}

		if applied {
			continue
		}

		if _, err = pool.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("%w: migration %s: %w", ErrFailedToInit, m.name, err)
		}

		if _, err = pool.Exec(ctx, fmt.Sprintf(
			"INSERT INTO %s (name) VALUES ($1)", migrationsTable), m.name); err != nil {
			return fmt.Errorf("%w: migration record %s: %w", ErrFailedToInit, m.name, err)
		}

		log.Info().Str("migration", m.name).Msg("applied schema migration")
	}

	return nil
}
