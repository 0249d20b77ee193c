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

// Package onboarding promotes classified detected devices into durable,
// continuously-synced device profiles.
package onboarding

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jeghealth/devicescan/pkg/db"
	"github.com/jeghealth/devicescan/pkg/events"
	"github.com/jeghealth/devicescan/pkg/logger"
	"github.com/jeghealth/devicescan/pkg/models"
)

const defaultSyncFrequencyMinutes = 60

// Service owns all DeviceProfile writes.
type Service struct {
	store     db.Service
	publisher events.Publisher
	logger    logger.Logger
	now       func() time.Time
}

// New wires the onboarding service. A nil publisher disables event emission.
func New(store db.Service, publisher events.Publisher, log logger.Logger) *Service {
	if publisher == nil {
		publisher = events.Noop{}
	}

	return &Service{
		store:     store,
		publisher: publisher,
		logger:    log.WithComponent("onboarding"),
		now:       time.Now,
	}
}

// CreateProfileRequest carries the optional onboarding parameters.
type CreateProfileRequest struct {
	DetectedDeviceID     string                  `json:"detected_device_id"`
	DisplayName          string                  `json:"display_name,omitempty"`
	SyncFrequencyMinutes int                     `json:"sync_frequency_minutes,omitempty"`
	GrantedCapabilities  []models.DataCapability `json:"granted_capabilities,omitempty"`
	IsPrimary            bool                    `json:"is_primary"`
}

// CreateProfile promotes a target-vendor detected device into a profile.
// The device must exist and be classified as the target vendor's; a device
// already referenced by a profile yields a ConflictError with the existing
// profile id. Primary exclusivity is enforced atomically by the store.
func (s *Service) CreateProfile(ctx context.Context, owner string, req CreateProfileRequest) (*models.DeviceProfile, error) {
	if owner == "" {
		return nil, models.NewValidationError("owner is required")
	}

	if req.DetectedDeviceID == "" {
		return nil, models.NewValidationError("detected_device_id is required")
	}

	device, err := s.store.GetDetectedDevice(ctx, req.DetectedDeviceID)
	if err != nil {
		if errors.Is(err, db.ErrDeviceNotFound) {
			return nil, models.NewValidationError("detected device %s does not exist", req.DetectedDeviceID)
		}

		return nil, err
	}

	if !device.IsTargetVendor {
		return nil, models.NewValidationError("detected device %s is not a target-vendor device", req.DetectedDeviceID)
	}

	displayName := req.DisplayName
	if displayName == "" {
		displayName = device.Name
	}

	if displayName == "" {
		displayName = "Unnamed device"
	}

	syncFrequency := req.SyncFrequencyMinutes
	if syncFrequency <= 0 {
		syncFrequency = defaultSyncFrequencyMinutes
	}

	now := s.now()
	profile := &models.DeviceProfile{
		ID:                     uuid.NewString(),
		Owner:                  owner,
		SourceDetectedDeviceID: device.ID,
		DisplayName:            displayName,
		StableIdentifier:       StableIdentifier(device.MACAddress, device.BluetoothAddress),
		MACAddress:             device.MACAddress,
		BluetoothAddress:       device.BluetoothAddress,
		Status:                 models.ProfileDiscovered,
		SyncFrequencyMinutes:   syncFrequency,
		GrantedCapabilities:    req.GrantedCapabilities,
		IsPrimary:              req.IsPrimary,
		CreatedAt:              now,
		UpdatedAt:              now,
	}

	if err := s.store.CreateProfile(ctx, profile); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("profile_id", profile.ID).
		Str("owner", owner).
		Str("stable_identifier", profile.StableIdentifier).
		Bool("is_primary", profile.IsPrimary).
		Msg("device profile onboarded")

	if err := s.publisher.PublishProfileOnboarded(ctx, models.ProfileOnboardedEventData{
		ProfileID:              profile.ID,
		Owner:                  owner,
		StableIdentifier:       profile.StableIdentifier,
		SourceDetectedDeviceID: device.ID,
		IsPrimary:              profile.IsPrimary,
		Timestamp:              now,
	}); err != nil {
		s.logger.Warn().Err(err).Str("profile_id", profile.ID).Msg("failed to publish profile event")
	}

	return profile, nil
}

// RegisterProfileRequest describes a manually registered device that never
// went through a scan session.
type RegisterProfileRequest struct {
	DisplayName          string                  `json:"display_name"`
	MACAddress           string                  `json:"mac_address,omitempty"`
	BluetoothAddress     string                  `json:"bluetooth_address,omitempty"`
	SyncFrequencyMinutes int                     `json:"sync_frequency_minutes,omitempty"`
	GrantedCapabilities  []models.DataCapability `json:"granted_capabilities,omitempty"`
	IsPrimary            bool                    `json:"is_primary"`
}

// RegisterProfile creates a bare profile without a source detected device.
func (s *Service) RegisterProfile(ctx context.Context, owner string, req RegisterProfileRequest) (*models.DeviceProfile, error) {
	if owner == "" {
		return nil, models.NewValidationError("owner is required")
	}

	if req.DisplayName == "" {
		return nil, models.NewValidationError("display_name is required")
	}

	if req.MACAddress == "" && req.BluetoothAddress == "" {
		return nil, models.NewValidationError("a mac_address or bluetooth_address is required")
	}

	syncFrequency := req.SyncFrequencyMinutes
	if syncFrequency <= 0 {
		syncFrequency = defaultSyncFrequencyMinutes
	}

	now := s.now()
	profile := &models.DeviceProfile{
		ID:                   uuid.NewString(),
		Owner:                owner,
		DisplayName:          req.DisplayName,
		StableIdentifier:     StableIdentifier(req.MACAddress, req.BluetoothAddress),
		MACAddress:           req.MACAddress,
		BluetoothAddress:     req.BluetoothAddress,
		Status:               models.ProfileDiscovered,
		SyncFrequencyMinutes: syncFrequency,
		GrantedCapabilities:  req.GrantedCapabilities,
		IsPrimary:            req.IsPrimary,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	if err := s.store.CreateProfile(ctx, profile); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("profile_id", profile.ID).
		Str("owner", owner).
		Msg("device profile registered manually")

	return profile, nil
}

// GetProfile returns one of the owner's profiles. Another owner's profile is
// indistinguishable from a missing one.
func (s *Service) GetProfile(ctx context.Context, owner, profileID string) (*models.DeviceProfile, error) {
	profile, err := s.store.GetProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}

	if profile.Owner != owner {
		return nil, db.ErrProfileNotFound
	}

	return profile, nil
}

// ListProfiles lists the owner's profiles, optionally filtered by status.
func (s *Service) ListProfiles(ctx context.Context, owner string, status models.ProfileStatus) ([]*models.DeviceProfile, error) {
	if status != "" && !status.Valid() {
		return nil, models.NewValidationError("unknown profile status %q", status)
	}

	return s.store.ListProfiles(ctx, owner, status)
}

// UpdateProfile applies a partial update to the owner's profile.
func (s *Service) UpdateProfile(ctx context.Context, owner, profileID string, patch models.ProfilePatch) (*models.DeviceProfile, error) {
	profile, err := s.GetProfile(ctx, owner, profileID)
	if err != nil {
		return nil, err
	}

	if patch.DisplayName != nil {
		if *patch.DisplayName == "" {
			return nil, models.NewValidationError("display_name cannot be empty")
		}

		profile.DisplayName = *patch.DisplayName
	}

	if patch.SyncFrequencyMinutes != nil {
		if *patch.SyncFrequencyMinutes <= 0 {
			return nil, models.NewValidationError("sync_frequency_minutes must be positive")
		}

		profile.SyncFrequencyMinutes = *patch.SyncFrequencyMinutes
	}

	if patch.GrantedCapabilities != nil {
		profile.GrantedCapabilities = *patch.GrantedCapabilities
	}

	if patch.Status != nil {
		if !patch.Status.Valid() {
			return nil, models.NewValidationError("unknown profile status %q", *patch.Status)
		}

		profile.Status = *patch.Status
	}

	if patch.IsPrimary != nil {
		profile.IsPrimary = *patch.IsPrimary
	}

	profile.UpdatedAt = s.now()

	if err := s.store.UpdateProfile(ctx, profile); err != nil {
		return nil, err
	}

	return profile, nil
}

// TriggerSync marks the owner's profile as SYNCING and stamps lastSyncAt.
// The actual data transfer is performed by external sync workers.
// Disconnected profiles are soft-retired and cannot sync.
func (s *Service) TriggerSync(ctx context.Context, owner, profileID string) (*models.DeviceProfile, error) {
	profile, err := s.GetProfile(ctx, owner, profileID)
	if err != nil {
		return nil, err
	}

	if profile.Status == models.ProfileDisconnected {
		return nil, models.NewValidationError("profile %s is disconnected and cannot sync", profile.ID)
	}

	now := s.now()
	profile.Status = models.ProfileSyncing
	profile.LastSyncAt = &now
	profile.UpdatedAt = now

	if err := s.store.UpdateProfile(ctx, profile); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("profile_id", profile.ID).
		Str("owner", owner).
		Msg("sync triggered")

	return profile, nil
}

// OwnerStats summarizes the owner's profile set.
func (s *Service) OwnerStats(ctx context.Context, owner string) (*models.OwnerProfileStats, error) {
	profiles, err := s.store.ListProfiles(ctx, owner, "")
	if err != nil {
		return nil, err
	}

	stats := &models.OwnerProfileStats{
		ByStatus:    make(map[string]int),
		RecentSyncs: []models.ProfileSyncTime{},
	}

	for _, profile := range profiles {
		stats.TotalProfiles++
		stats.ByStatus[string(profile.Status)]++

		if profile.IsPrimary {
			stats.PrimaryProfileID = profile.ID
		}

		if profile.LastSyncAt != nil {
			stats.RecentSyncs = append(stats.RecentSyncs, models.ProfileSyncTime{
				ProfileID:   profile.ID,
				DisplayName: profile.DisplayName,
				LastSyncAt:  *profile.LastSyncAt,
			})
		}
	}

	return stats, nil
}
