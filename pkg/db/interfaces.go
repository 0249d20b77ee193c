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

// Package db provides the persistence contract for scan sessions, detected
// devices, and device profiles, with PostgreSQL and in-memory backends.
package db

import (
	"context"

	"github.com/jeghealth/devicescan/pkg/models"
)

// Service is the storage contract consumed by the discovery and onboarding
// services.
//
// Invariants the implementations enforce:
//   - at most one session per owner in a non-terminal status
//     (CreateSession fails with models.ConflictError carrying the id);
//   - detected devices unique per (session, mac, bluetooth) address pair;
//   - profile stable identifiers globally unique;
//   - at most one profile per source detected device;
//   - at most one primary profile per owner: CreateProfile/UpdateProfile
//     with IsPrimary set clear any other primary in the same transaction.
type Service interface {
	CreateSession(ctx context.Context, session *models.ScanSession) error
	GetSession(ctx context.Context, id string) (*models.ScanSession, error)
	UpdateSession(ctx context.Context, session *models.ScanSession) error
	ListUnfinishedSessions(ctx context.Context) ([]*models.ScanSession, error)

	GetDetectedDevice(ctx context.Context, id string) (*models.DetectedDevice, error)
	GetDetectedDeviceByKey(ctx context.Context, sessionID, macAddress, bluetoothAddress string) (*models.DetectedDevice, error)
	UpsertDetectedDevice(ctx context.Context, device *models.DetectedDevice) error
	ListDetectedDevices(ctx context.Context, sessionID string, filter *models.DetectedDeviceFilter) ([]*models.DetectedDevice, error)
	CountDetectedDevices(ctx context.Context, sessionID string) (total, targetVendor int, err error)

	CreateProfile(ctx context.Context, profile *models.DeviceProfile) error
	GetProfile(ctx context.Context, id string) (*models.DeviceProfile, error)
	GetProfileBySourceDevice(ctx context.Context, detectedDeviceID string) (*models.DeviceProfile, error)
	GetProfileByStableIdentifier(ctx context.Context, stableIdentifier string) (*models.DeviceProfile, error)
	UpdateProfile(ctx context.Context, profile *models.DeviceProfile) error
	ListProfiles(ctx context.Context, owner string, status models.ProfileStatus) ([]*models.DeviceProfile, error)

	Close() error
}
