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
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/jeghealth/devicescan/pkg/models"
)

const deviceColumns = `
	id,
	session_id,
	display_name,
	mac_address,
	bluetooth_address,
	signal_strength_dbm,
	connection_kind,
	manufacturer,
	is_target_vendor,
	confidence,
	is_paired,
	first_seen,
	last_seen,
	extra_json`

// UpsertDetectedDevice inserts or replaces the device row keyed by
// (session, mac, bluetooth). The merge rules (confidence, extra, lastSeen)
// are applied by the registry before this write.
func (db *DB) UpsertDetectedDevice(ctx context.Context, device *models.DetectedDevice) error {
	if device == nil {
		return ErrDeviceNil
	}

	if device.MACAddress == "" && device.BluetoothAddress == "" {
		return ErrDeviceAddressRequired
	}

	extraJSON, err := json.Marshal(device.Extra)
	if err != nil {
		return fmt.Errorf("%w detected device extra: %w", ErrFailedToInsert, err)
	}

	_, err = db.pool.Exec(ctx, `
		INSERT INTO detected_devices (`+deviceColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (session_id, mac_address, bluetooth_address) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			signal_strength_dbm = EXCLUDED.signal_strength_dbm,
			connection_kind = EXCLUDED.connection_kind,
			manufacturer = EXCLUDED.manufacturer,
			is_target_vendor = EXCLUDED.is_target_vendor,
			confidence = EXCLUDED.confidence,
			is_paired = EXCLUDED.is_paired,
			last_seen = EXCLUDED.last_seen,
			extra_json = EXCLUDED.extra_json`,
		device.ID,
		device.SessionID,
		device.Name,
		device.MACAddress,
		device.BluetoothAddress,
		device.SignalStrengthDBm,
		string(device.ConnectionKind),
		device.Manufacturer,
		device.IsTargetVendor,
		device.Confidence,
		device.IsPaired,
		device.FirstSeen,
		device.LastSeen,
		extraJSON,
	)
	if err != nil {
		return fmt.Errorf("%w detected device: %w", ErrFailedToInsert, err)
	}

	return nil
}

func (db *DB) GetDetectedDevice(ctx context.Context, id string) (*models.DetectedDevice, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT `+deviceColumns+`
		FROM detected_devices
		WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("%w detected device: %w", ErrFailedToQuery, err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}

	return scanDetectedDevice(rows)
}

func (db *DB) GetDetectedDeviceByKey(ctx context.Context, sessionID, macAddress, bluetoothAddress string) (*models.DetectedDevice, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT `+deviceColumns+`
		FROM detected_devices
		WHERE session_id = $1 AND mac_address = $2 AND bluetooth_address = $3`,
		sessionID, macAddress, bluetoothAddress)
	if err != nil {
		return nil, fmt.Errorf("%w detected device: %w", ErrFailedToQuery, err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, ErrDeviceNotFound
	}

	return scanDetectedDevice(rows)
}

func (db *DB) ListDetectedDevices(ctx context.Context, sessionID string, filter *models.DetectedDeviceFilter) ([]*models.DetectedDevice, error) {
	query := `
		SELECT ` + deviceColumns + `
		FROM detected_devices`

	args := []interface{}{sessionID}
	conditions := []string{"session_id = $1"}

	param := func(value interface{}) string {
		args = append(args, value)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter != nil {
		if filter.TargetVendorOnly {
			conditions = append(conditions, "is_target_vendor")
		}

		if filter.DeviceType != "" {
			conditions = append(conditions,
				fmt.Sprintf("extra_json->>'device_type' = %s", param(string(filter.DeviceType))))
		}

		if filter.ConnectionKind != "" {
			conditions = append(conditions,
				fmt.Sprintf("connection_kind = %s", param(string(filter.ConnectionKind))))
		}
	}

	query += "\nWHERE " + strings.Join(conditions, " AND ")
	query += "\nORDER BY first_seen"

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w detected devices: %w", ErrFailedToQuery, err)
	}
	defer rows.Close()

	var devices []*models.DetectedDevice

	for rows.Next() {
		device, scanErr := scanDetectedDevice(rows)
		if scanErr != nil {
			return nil, scanErr
		}

		devices = append(devices, device)
	}

	return devices, rows.Err()
}

func (db *DB) CountDetectedDevices(ctx context.Context, sessionID string) (total, targetVendor int, err error) {
	err = db.pool.QueryRow(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE is_target_vendor)
		FROM detected_devices
		WHERE session_id = $1`, sessionID).Scan(&total, &targetVendor)
	if err != nil {
		return 0, 0, fmt.Errorf("%w detected device counts: %w", ErrFailedToQuery, err)
	}

	return total, targetVendor, nil
}

func scanDetectedDevice(rows pgx.Rows) (*models.DetectedDevice, error) {
	var (
		device    models.DetectedDevice
		kind      string
		extraJSON []byte
	)

	err := rows.Scan(
		&device.ID,
		&device.SessionID,
		&device.Name,
		&device.MACAddress,
		&device.BluetoothAddress,
		&device.SignalStrengthDBm,
		&kind,
		&device.Manufacturer,
		&device.IsTargetVendor,
		&device.Confidence,
		&device.IsPaired,
		&device.FirstSeen,
		&device.LastSeen,
		&extraJSON,
	)
	if err != nil {
		return nil, fmt.Errorf("%w detected device row: %w", ErrFailedToScan, err)
	}

	device.ConnectionKind = models.ConnectionKind(kind)

	if len(extraJSON) > 0 {
		if err := json.Unmarshal(extraJSON, &device.Extra); err != nil {
			return nil, fmt.Errorf("%w detected device extra: %w", ErrFailedToScan, err)
		}
	}

	return &device, nil
}
