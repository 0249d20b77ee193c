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

	"github.com/jackc/pgx/v5"

	"github.com/jeghealth/devicescan/pkg/models"
)

const profileColumns = `
	id,
	owner_id,
	source_detected_device_id,
	display_name,
	stable_identifier,
	mac_address,
	bluetooth_address,
	status,
	sync_frequency_minutes,
	last_sync_at,
	granted_capabilities,
	is_primary,
	created_at,
	updated_at`

// CreateProfile inserts a new device profile. When the profile is primary the
// owner's previous primary is demoted in the same transaction, so the
// one-primary-per-owner index never fires for a legitimate handoff.
func (db *DB) CreateProfile(ctx context.Context, profile *models.DeviceProfile) error {
	if profile == nil {
		return ErrProfileNil
	}

	if profile.StableIdentifier == "" {
		return ErrStableIdentifierNeeded
	}

	tx, err := db.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("%w device profile: %w", ErrFailedToInsert, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if profile.IsPrimary {
		if err = demoteOtherPrimaries(ctx, tx, profile.Owner, profile.ID, profile.UpdatedAt); err != nil {
			return err
		}
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO device_profiles (`+profileColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		profile.ID,
		profile.Owner,
		nullableString(profile.SourceDetectedDeviceID),
		profile.DisplayName,
		profile.StableIdentifier,
		profile.MACAddress,
		profile.BluetoothAddress,
		string(profile.Status),
		profile.SyncFrequencyMinutes,
		profile.LastSyncAt,
		capabilityStrings(profile.GrantedCapabilities),
		profile.IsPrimary,
		profile.CreatedAt,
		profile.UpdatedAt,
	)
	if err != nil {
		if conflict := db.profileConflict(ctx, err, profile); conflict != nil {
			return conflict
		}

		return fmt.Errorf("%w device profile: %w", ErrFailedToInsert, err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w device profile: %w", ErrFailedToInsert, err)
	}

	return nil
}

// profileConflict maps unique violations on the stable identifier or source
// device indexes to a ConflictError carrying the existing profile id.
func (db *DB) profileConflict(ctx context.Context, err error, profile *models.DeviceProfile) error {
	switch {
	case uniqueViolation(err, "device_profiles_stable_identifier_key"):
		existing, lookupErr := db.GetProfileByStableIdentifier(ctx, profile.StableIdentifier)
		if lookupErr != nil {
			return lookupErr
		}

		return &models.ConflictError{
			Message:           fmt.Sprintf("a profile with identifier %s already exists", profile.StableIdentifier),
			ExistingProfileID: existing.ID,
		}
	case uniqueViolation(err, "device_profiles_source_device"):
		existing, lookupErr := db.GetProfileBySourceDevice(ctx, profile.SourceDetectedDeviceID)
		if lookupErr != nil {
			return lookupErr
		}

		return &models.ConflictError{
			Message:           fmt.Sprintf("detected device %s is already onboarded", profile.SourceDetectedDeviceID),
			ExistingProfileID: existing.ID,
		}
	default:
		return nil
	}
}

func (db *DB) GetProfile(ctx context.Context, id string) (*models.DeviceProfile, error) {
	return db.getProfile(ctx, "id = $1", id)
}

func (db *DB) GetProfileBySourceDevice(ctx context.Context, detectedDeviceID string) (*models.DeviceProfile, error) {
	return db.getProfile(ctx, "source_detected_device_id = $1", detectedDeviceID)
}

func (db *DB) GetProfileByStableIdentifier(ctx context.Context, stableIdentifier string) (*models.DeviceProfile, error) {
	return db.getProfile(ctx, "stable_identifier = $1", stableIdentifier)
}

func (db *DB) getProfile(ctx context.Context, where string, arg interface{}) (*models.DeviceProfile, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT `+profileColumns+`
		FROM device_profiles
		WHERE `+where, arg)
	if err != nil {
		return nil, fmt.Errorf("%w device profile: %w", ErrFailedToQuery, err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, ErrProfileNotFound
	}

	return scanProfile(rows)
}

// UpdateProfile rewrites the mutable profile columns. A promotion to primary
// demotes the owner's other primary in the same transaction.
func (db *DB) UpdateProfile(ctx context.Context, profile *models.DeviceProfile) error {
	if profile == nil {
		return ErrProfileNil
	}

	tx, err := db.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("%w device profile: %w", ErrFailedToUpdate, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if profile.IsPrimary {
		if err = demoteOtherPrimaries(ctx, tx, profile.Owner, profile.ID, profile.UpdatedAt); err != nil {
			return err
		}
	}

	tag, err := tx.Exec(ctx, `
		UPDATE device_profiles SET
			display_name = $2,
			status = $3,
			sync_frequency_minutes = $4,
			last_sync_at = $5,
			granted_capabilities = $6,
			is_primary = $7,
			updated_at = $8
		WHERE id = $1`,
		profile.ID,
		profile.DisplayName,
		string(profile.Status),
		profile.SyncFrequencyMinutes,
		profile.LastSyncAt,
		capabilityStrings(profile.GrantedCapabilities),
		profile.IsPrimary,
		profile.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("%w device profile: %w", ErrFailedToUpdate, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrProfileNotFound, profile.ID)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w device profile: %w", ErrFailedToUpdate, err)
	}

	return nil
}

func (db *DB) ListProfiles(ctx context.Context, owner string, status models.ProfileStatus) ([]*models.DeviceProfile, error) {
	query := `
		SELECT ` + profileColumns + `
		FROM device_profiles
		WHERE owner_id = $1`

	args := []interface{}{owner}

	if status != "" {
		query += " AND status = $2"
		args = append(args, string(status))
	}

	query += "\nORDER BY created_at"

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w device profiles: %w", ErrFailedToQuery, err)
	}
	defer rows.Close()

	var profiles []*models.DeviceProfile

	for rows.Next() {
		profile, scanErr := scanProfile(rows)
		if scanErr != nil {
			return nil, scanErr
		}

		profiles = append(profiles, profile)
	}

	return profiles, rows.Err()
}

func demoteOtherPrimaries(ctx context.Context, tx pgx.Tx, owner, keepID string, at interface{}) error {
	_, err := tx.Exec(ctx, `
		UPDATE device_profiles SET is_primary = FALSE, updated_at = $3
		WHERE owner_id = $1 AND is_primary AND id <> $2`,
		owner, keepID, at)
	if err != nil {
		return fmt.Errorf("%w primary device profile: %w", ErrFailedToUpdate, err)
	}

	return nil
}

func scanProfile(rows pgx.Rows) (*models.DeviceProfile, error) {
	var (
		profile      models.DeviceProfile
		sourceDevice *string
		status       string
		capabilities []string
	)

	err := rows.Scan(
		&profile.ID,
		&profile.Owner,
		&sourceDevice,
		&profile.DisplayName,
		&profile.StableIdentifier,
		&profile.MACAddress,
		&profile.BluetoothAddress,
		&status,
		&profile.SyncFrequencyMinutes,
		&profile.LastSyncAt,
		&capabilities,
		&profile.IsPrimary,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("%w device profile row: %w", ErrFailedToScan, err)
	}

	if sourceDevice != nil {
		profile.SourceDetectedDeviceID = *sourceDevice
	}

	profile.Status = models.ProfileStatus(status)

	for _, c := range capabilities {
		profile.GrantedCapabilities = append(profile.GrantedCapabilities, models.DataCapability(c))
	}

	return &profile, nil
}

func capabilityStrings(capabilities []models.DataCapability) []string {
	out := make([]string, 0, len(capabilities))
	for _, c := range capabilities {
		out = append(out, string(c))
	}

	return out
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}

	return &s
}
