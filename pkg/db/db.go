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
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jeghealth/devicescan/pkg/logger"
	"github.com/jeghealth/devicescan/pkg/models"
)

const uniqueViolationCode = "23505"

// DB is the PostgreSQL-backed implementation of Service.
type DB struct {
	pool   *pgxpool.Pool
	logger logger.Logger
}

var _ Service = (*DB)(nil)

// New connects, runs migrations, and returns a ready store.
func New(ctx context.Context, cfg *models.Database, log logger.Logger) (*DB, error) {
	pool, err := NewPool(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	if err := RunMigrations(ctx, pool, log); err != nil {
		pool.Close()
		return nil, err
	}

	return &DB{pool: pool, logger: log.WithComponent("db")}, nil
}

func (db *DB) Close() error {
	db.pool.Close()
	return nil
}

// uniqueViolation reports whether err is a violation of the named constraint
// (or of any unique constraint when name is empty).
func uniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError

	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolationCode {
		return false
	}

	return constraint == "" || pgErr.ConstraintName == constraint
}
