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

import "time"

// ProfileStatus tracks a durable device profile through its sync lifecycle.
type ProfileStatus string

const (
	ProfileDiscovered   ProfileStatus = "DISCOVERED"
	ProfilePaired       ProfileStatus = "PAIRED"
	ProfileConnected    ProfileStatus = "CONNECTED"
	ProfileSyncing      ProfileStatus = "SYNCING"
	ProfileDisconnected ProfileStatus = "DISCONNECTED"
	ProfileError        ProfileStatus = "ERROR"
)

// Valid reports whether the status is a known profile status.
func (s ProfileStatus) Valid() bool {
	switch s {
	case ProfileDiscovered, ProfilePaired, ProfileConnected,
		ProfileSyncing, ProfileDisconnected, ProfileError:
		return true
	default:
		return false
	}
}

// DataCapability is a data-type flag a profile has been granted access to.
type DataCapability string

const (
	CapabilityHeartRate   DataCapability = "heart_rate"
	CapabilitySteps       DataCapability = "steps"
	CapabilitySleep       DataCapability = "sleep"
	CapabilityActivity    DataCapability = "activity"
	CapabilityBloodOxygen DataCapability = "blood_oxygen"
)

// DeviceProfile is a durable, user-managed device used for ongoing data sync.
type DeviceProfile struct {
	ID                     string           `json:"id"`
	Owner                  string           `json:"owner"`
	SourceDetectedDeviceID string           `json:"source_detected_device_id,omitempty"`
	DisplayName            string           `json:"display_name"`
	StableIdentifier       string           `json:"stable_identifier"`
	MACAddress             string           `json:"mac_address,omitempty"`
	BluetoothAddress       string           `json:"bluetooth_address,omitempty"`
	Status                 ProfileStatus    `json:"status"`
	SyncFrequencyMinutes   int              `json:"sync_frequency_minutes"`
	LastSyncAt             *time.Time       `json:"last_sync_at,omitempty"`
	GrantedCapabilities    []DataCapability `json:"granted_capabilities"`
	IsPrimary              bool             `json:"is_primary"`
	CreatedAt              time.Time        `json:"created_at"`
	UpdatedAt              time.Time        `json:"updated_at"`
}

// ProfilePatch is a partial update to an owner's profile; nil fields are
// left untouched.
type ProfilePatch struct {
	DisplayName          *string           `json:"display_name,omitempty"`
	SyncFrequencyMinutes *int              `json:"sync_frequency_minutes,omitempty"`
	GrantedCapabilities  *[]DataCapability `json:"granted_capabilities,omitempty"`
	Status               *ProfileStatus    `json:"status,omitempty"`
	IsPrimary            *bool             `json:"is_primary,omitempty"`
}

// ProfileSyncTime pairs a profile with its most recent sync for stats views.
type ProfileSyncTime struct {
	ProfileID   string    `json:"profile_id"`
	DisplayName string    `json:"display_name"`
	LastSyncAt  time.Time `json:"last_sync_at"`
}

// OwnerProfileStats summarizes one owner's device profiles.
type OwnerProfileStats struct {
	TotalProfiles    int               `json:"total_profiles"`
	ByStatus         map[string]int    `json:"by_status"`
	PrimaryProfileID string            `json:"primary_profile_id,omitempty"`
	RecentSyncs      []ProfileSyncTime `json:"recent_syncs"`
}
