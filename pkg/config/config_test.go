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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeghealth/devicescan/pkg/models"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8090", cfg.ListenAddr)
	assert.Equal(t, 10, cfg.Discovery.MinDurationSeconds)
	assert.Equal(t, 300, cfg.Discovery.MaxDurationSeconds)
	assert.Equal(t, 5, cfg.Discovery.MaxConcurrentSessions)
	assert.Nil(t, cfg.Database)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devicescan.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"listen_addr": ":9000",
		"api_key": "sekrit",
		"database": {"host": "db.internal", "database": "devicescan", "username": "svc"},
		"discovery": {"min_duration_seconds": 5, "max_duration_seconds": 120}
	}`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.ListenAddr)
	assert.Equal(t, "sekrit", cfg.APIKey)
	require.NotNil(t, cfg.Database)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 5, cfg.Discovery.MinDurationSeconds)
	assert.Equal(t, 120, cfg.Discovery.MaxDurationSeconds)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("DEVICESCAN_LISTEN_ADDR", ":7070")
	t.Setenv("DEVICESCAN_DB_HOST", "pg.internal")
	t.Setenv("DEVICESCAN_DB_NAME", "devicescan")
	t.Setenv("DEVICESCAN_DB_PORT", "5433")
	t.Setenv("DEVICESCAN_NATS_URL", "nats://mq:4222")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.ListenAddr)
	require.NotNil(t, cfg.Database)
	assert.Equal(t, "pg.internal", cfg.Database.Host)
	assert.Equal(t, 5433, cfg.Database.Port)
	require.NotNil(t, cfg.NATS)
	assert.Equal(t, "nats://mq:4222", cfg.NATS.URL)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.ListenAddr = ""
	require.Error(t, Validate(cfg))

	cfg = Default()
	cfg.Discovery.MinDurationSeconds = 500
	require.Error(t, Validate(cfg))

	cfg = Default()
	cfg.Database = &models.Database{Host: "db"}
	require.Error(t, Validate(cfg), "database name is required")

	cfg = Default()
	cfg.NATS = &models.NATSConfig{}
	require.Error(t, Validate(cfg))
}

func TestLoadRejectsBadFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o600))

	_, err = Load(path)
	require.Error(t, err)
}
