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

// Package config loads the devicescan service configuration from a JSON file
// with environment variable overrides for deployment-specific settings.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/jeghealth/devicescan/pkg/models"
)

var errListenAddrRequired = errors.New("config: listen_addr is required")

// Load reads the configuration file, applies environment overrides, and
// validates the result. An empty path starts from defaults.
func Load(path string) (*models.ServiceConfig, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
		}

		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns the built-in configuration.
func Default() *models.ServiceConfig {
	return &models.ServiceConfig{
		ListenAddr: ":8090",
		Discovery: models.DiscoveryConfig{
			MinDurationSeconds:    10,
			MaxDurationSeconds:    300,
			MaxConcurrentSessions: 5,
			GraceSeconds:          5,
		},
		LogLevel: "info",
	}
}

// Validate checks cross-field constraints that JSON decoding cannot.
func Validate(cfg *models.ServiceConfig) error {
	if cfg.ListenAddr == "" {
		return errListenAddrRequired
	}

	d := cfg.Discovery
	if d.MinDurationSeconds > 0 && d.MaxDurationSeconds > 0 &&
		d.MinDurationSeconds > d.MaxDurationSeconds {
		return fmt.Errorf("config: min_duration_seconds %d exceeds max_duration_seconds %d",
			d.MinDurationSeconds, d.MaxDurationSeconds)
	}

	if cfg.Database != nil {
		if cfg.Database.Host == "" || cfg.Database.Database == "" {
			return errors.New("config: database.host and database.database are required when database is set")
		}
	}

	if cfg.NATS != nil && cfg.NATS.URL == "" {
		return errors.New("config: nats.url is required when nats is set")
	}

	return nil
}

func applyEnvOverrides(cfg *models.ServiceConfig) {
	setString(&cfg.ListenAddr, "DEVICESCAN_LISTEN_ADDR")
	setString(&cfg.APIKey, "API_KEY")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.RulesetFile, "DEVICESCAN_RULESET_FILE")

	if v := os.Getenv("DEBUG"); v != "" {
		cfg.Debug, _ = strconv.ParseBool(v)
	}

	if v := os.Getenv("DEVICESCAN_DB_HOST"); v != "" {
		if cfg.Database == nil {
			cfg.Database = &models.Database{}
		}

		cfg.Database.Host = v
	}

	if cfg.Database != nil {
		setString(&cfg.Database.Database, "DEVICESCAN_DB_NAME")
		setString(&cfg.Database.Username, "DEVICESCAN_DB_USER")
		setString(&cfg.Database.Password, "DEVICESCAN_DB_PASSWORD")
		setInt(&cfg.Database.Port, "DEVICESCAN_DB_PORT")
	}

	if v := os.Getenv("DEVICESCAN_NATS_URL"); v != "" {
		if cfg.NATS == nil {
			cfg.NATS = &models.NATSConfig{}
		}

		cfg.NATS.URL = v
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
