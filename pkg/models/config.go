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

package models

// Database holds PostgreSQL connection settings.
type Database struct {
	Host               string            `json:"host"`
	Port               int               `json:"port"`
	Database           string            `json:"database"`
	Username           string            `json:"username"`
	Password           string            `json:"password"`
	SSLMode            string            `json:"ssl_mode,omitempty"`
	ApplicationName    string            `json:"application_name,omitempty"`
	MaxConnections     int32             `json:"max_connections,omitempty"`
	MinConnections     int32             `json:"min_connections,omitempty"`
	ExtraRuntimeParams map[string]string `json:"extra_runtime_params,omitempty"`
}

// NATSConfig holds the optional JetStream event publishing settings.
type NATSConfig struct {
	URL     string `json:"url"`
	Stream  string `json:"stream,omitempty"`
	Subject string `json:"subject_prefix,omitempty"`
}

// DiscoveryConfig bounds scan execution.
type DiscoveryConfig struct {
	MinDurationSeconds    int `json:"min_duration_seconds,omitempty"`
	MaxDurationSeconds    int `json:"max_duration_seconds,omitempty"`
	MaxConcurrentSessions int `json:"max_concurrent_sessions,omitempty"`
	GraceSeconds          int `json:"grace_seconds,omitempty"`
}

// ServiceConfig is the top-level devicescan service configuration.
type ServiceConfig struct {
	ListenAddr  string          `json:"listen_addr"`
	APIKey      string          `json:"api_key,omitempty"`
	Database    *Database       `json:"database,omitempty"`
	NATS        *NATSConfig     `json:"nats,omitempty"`
	Discovery   DiscoveryConfig `json:"discovery"`
	RulesetFile string          `json:"ruleset_file,omitempty"`
	LogLevel    string          `json:"log_level,omitempty"`
	Debug       bool            `json:"debug,omitempty"`
}
