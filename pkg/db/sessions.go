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

	"github.com/jackc/pgx/v5"

	"github.com/jeghealth/devicescan/pkg/models"
)

const sessionColumns = `
	id,
	owner_id,
	scan_kind,
	duration_seconds,
	status,
	devices_found,
	target_devices_found,
	started_at,
	completed_at,
	error_message,
	summary_json`

// CreateSession inserts a new session. The partial unique index on
// non-terminal sessions makes the single-active-session check atomic: a
// concurrent insert for the same owner loses with a unique violation, which
// is surfaced as a ConflictError carrying the existing session id.
func (db *DB) CreateSession(ctx context.Context, session *models.ScanSession) error {
	if session == nil {
		return ErrSessionNil
	}

	summaryJSON, err := marshalSummary(session.Summary)
	if err != nil {
		return err
	}

	_, err = db.pool.Exec(ctx, `
		INSERT INTO scan_sessions (`+sessionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		session.ID,
		session.Owner,
		string(session.Kind),
		session.DurationSeconds,
		string(session.Status),
		session.DevicesFound,
		session.TargetDevicesFound,
		session.StartedAt,
		session.CompletedAt,
		session.ErrorMessage,
		summaryJSON,
	)
	if err != nil {
		if uniqueViolation(err, "scan_sessions_active_owner") {
			return db.activeSessionConflict(ctx, session.Owner)
		}

		return fmt.Errorf("%w scan session: %w", ErrFailedToInsert, err)
	}

	return nil
}

func (db *DB) activeSessionConflict(ctx context.Context, owner string) error {
	var existingID string

	err := db.pool.QueryRow(ctx, `
		SELECT id FROM scan_sessions
		WHERE owner_id = $1 AND status IN ('INITIATED', 'SCANNING')
		LIMIT 1`, owner).Scan(&existingID)
	if err != nil {
		return fmt.Errorf("%w active scan session: %w", ErrFailedToQuery, err)
	}

	return &models.ConflictError{
		Message:           fmt.Sprintf("owner %s already has an active scan session", owner),
		ExistingSessionID: existingID,
	}
}

func (db *DB) GetSession(ctx context.Context, id string) (*models.ScanSession, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT `+sessionColumns+`
		FROM scan_sessions
		WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("%w scan session: %w", ErrFailedToQuery, err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	return scanSession(rows)
}

// UpdateSession writes the full session row in a single statement so that
// readers never observe a transition partially applied.
func (db *DB) UpdateSession(ctx context.Context, session *models.ScanSession) error {
	if session == nil {
		return ErrSessionNil
	}

	summaryJSON, err := marshalSummary(session.Summary)
	if err != nil {
		return err
	}

	tag, err := db.pool.Exec(ctx, `
		UPDATE scan_sessions SET
			status = $2,
			devices_found = $3,
			target_devices_found = $4,
			completed_at = $5,
			error_message = $6,
			summary_json = $7
		WHERE id = $1`,
		session.ID,
		string(session.Status),
		session.DevicesFound,
		session.TargetDevicesFound,
		session.CompletedAt,
		session.ErrorMessage,
		summaryJSON,
	)
	if err != nil {
		return fmt.Errorf("%w scan session: %w", ErrFailedToUpdate, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, session.ID)
	}

	return nil
}

func (db *DB) ListUnfinishedSessions(ctx context.Context) ([]*models.ScanSession, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT `+sessionColumns+`
		FROM scan_sessions
		WHERE status IN ('INITIATED', 'SCANNING')
		ORDER BY started_at`)
	if err != nil {
		return nil, fmt.Errorf("%w unfinished scan sessions: %w", ErrFailedToQuery, err)
	}
	defer rows.Close()

	var sessions []*models.ScanSession

	for rows.Next() {
		session, scanErr := scanSession(rows)
		if scanErr != nil {
			return nil, scanErr
		}

		sessions = append(sessions, session)
	}

	return sessions, rows.Err()
}

func scanSession(rows pgx.Rows) (*models.ScanSession, error) {
	var (
		session     models.ScanSession
		kind        string
		status      string
		summaryJSON []byte
	)

	err := rows.Scan(
		&session.ID,
		&session.Owner,
		&kind,
		&session.DurationSeconds,
		&status,
		&session.DevicesFound,
		&session.TargetDevicesFound,
		&session.StartedAt,
		&session.CompletedAt,
		&session.ErrorMessage,
		&summaryJSON,
	)
	if err != nil {
		return nil, fmt.Errorf("%w scan session row: %w", ErrFailedToScan, err)
	}

	session.Kind = models.ScanKind(kind)
	session.Status = models.SessionStatus(status)

	if len(summaryJSON) > 0 {
		var summary models.SessionSummary
		if err := json.Unmarshal(summaryJSON, &summary); err != nil {
			return nil, fmt.Errorf("%w scan session summary: %w", ErrFailedToScan, err)
		}

		session.Summary = &summary
	}

	return &session, nil
}

func marshalSummary(summary *models.SessionSummary) ([]byte, error) {
	if summary == nil {
		return nil, nil
	}

	data, err := json.Marshal(summary)
	if err != nil {
		return nil, fmt.Errorf("%w scan session summary: %w", ErrFailedToInsert, err)
	}

	return data, nil
}
