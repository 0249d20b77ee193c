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

package onboarding

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeghealth/devicescan/pkg/db"
	"github.com/jeghealth/devicescan/pkg/events"
	"github.com/jeghealth/devicescan/pkg/logger"
	"github.com/jeghealth/devicescan/pkg/models"
)

func newTestOnboarding(t *testing.T) (*Service, *db.MemoryStore) {
	t.Helper()

	store := db.NewMemoryStore()

	return New(store, events.Noop{}, logger.NewTestLogger()), store
}

func seedDetectedDevice(t *testing.T, store *db.MemoryStore, targetVendor bool) *models.DetectedDevice {
	t.Helper()

	now := time.Now()
	device := &models.DetectedDevice{
		ID:               uuid.NewString(),
		SessionID:        uuid.NewString(),
		Name:             "John's iPhone",
		MACAddress:       "04:81:D4:12:34:56",
		BluetoothAddress: "04:81:D4:12:34:56",
		ConnectionKind:   models.ConnectionBluetooth,
		IsTargetVendor:   targetVendor,
		Confidence:       1.0,
		FirstSeen:        now,
		LastSeen:         now,
	}
	require.NoError(t, store.UpsertDetectedDevice(context.Background(), device))

	return device
}

func TestStableIdentifier(t *testing.T) {
	assert.Equal(t, "dev_0481d4123456",
		StableIdentifier("04:81:D4:12:34:56", ""))
	assert.Equal(t, "dev_0481d4123456",
		StableIdentifier("", "04-81-d4-12-34-56"))
	assert.Equal(t, "dev_0481d4123456",
		StableIdentifier("04:81:d4:12:34:56", "04:81:d4:12:34:56"),
		"matching addresses collapse to one component")
	assert.Equal(t, "dev_0481d4123456_0481d4123457",
		StableIdentifier("04:81:d4:12:34:56", "04:81:d4:12:34:57"))
	assert.Empty(t, StableIdentifier("", ""))
}

func TestCreateProfileFromDetectedDevice(t *testing.T) {
	svc, store := newTestOnboarding(t)
	device := seedDetectedDevice(t, store, true)

	profile, err := svc.CreateProfile(context.Background(), "user-1", CreateProfileRequest{
		DetectedDeviceID: device.ID,
	})
	require.NoError(t, err)

	assert.Equal(t, "user-1", profile.Owner)
	assert.Equal(t, device.ID, profile.SourceDetectedDeviceID)
	assert.Equal(t, "John's iPhone", profile.DisplayName, "display name defaults to the device name")
	assert.Equal(t, "dev_0481d4123456", profile.StableIdentifier)
	assert.Equal(t, models.ProfileDiscovered, profile.Status)
	assert.Equal(t, 60, profile.SyncFrequencyMinutes)
	assert.Empty(t, profile.GrantedCapabilities)
	assert.False(t, profile.IsPrimary)
}

func TestCreateProfileRejectsNonVendorDevice(t *testing.T) {
	svc, store := newTestOnboarding(t)
	device := seedDetectedDevice(t, store, false)

	_, err := svc.CreateProfile(context.Background(), "user-1", CreateProfileRequest{
		DetectedDeviceID: device.ID,
	})

	var validation *models.ValidationError
	require.ErrorAs(t, err, &validation)

	profiles, err := svc.ListProfiles(context.Background(), "user-1", "")
	require.NoError(t, err)
	assert.Empty(t, profiles, "no profile may be created on a rejected onboarding")
}

func TestCreateProfileRejectsMissingDevice(t *testing.T) {
	svc, _ := newTestOnboarding(t)

	var validation *models.ValidationError

	_, err := svc.CreateProfile(context.Background(), "user-1", CreateProfileRequest{
		DetectedDeviceID: uuid.NewString(),
	})
	require.ErrorAs(t, err, &validation)

	_, err = svc.CreateProfile(context.Background(), "user-1", CreateProfileRequest{})
	require.ErrorAs(t, err, &validation)
}

func TestCreateProfileIsIdempotencyGuarded(t *testing.T) {
	svc, store := newTestOnboarding(t)
	device := seedDetectedDevice(t, store, true)

	first, err := svc.CreateProfile(context.Background(), "user-1", CreateProfileRequest{
		DetectedDeviceID: device.ID,
	})
	require.NoError(t, err)

	_, err = svc.CreateProfile(context.Background(), "user-1", CreateProfileRequest{
		DetectedDeviceID: device.ID,
	})

	var conflict *models.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, first.ID, conflict.ExistingProfileID)
}

func TestCreateProfilePrimaryHandoff(t *testing.T) {
	svc, store := newTestOnboarding(t)
	device := seedDetectedDevice(t, store, true)

	first, err := svc.CreateProfile(context.Background(), "user-1", CreateProfileRequest{
		DetectedDeviceID: device.ID,
		IsPrimary:        true,
	})
	require.NoError(t, err)

	second, err := svc.RegisterProfile(context.Background(), "user-1", RegisterProfileRequest{
		DisplayName: "Apple Watch",
		MACAddress:  "08:74:02:11:22:33",
		IsPrimary:   true,
	})
	require.NoError(t, err)

	got, err := svc.GetProfile(context.Background(), "user-1", first.ID)
	require.NoError(t, err)
	assert.False(t, got.IsPrimary)

	got, err = svc.GetProfile(context.Background(), "user-1", second.ID)
	require.NoError(t, err)
	assert.True(t, got.IsPrimary)
}

func TestRegisterProfileValidation(t *testing.T) {
	svc, _ := newTestOnboarding(t)

	var validation *models.ValidationError

	_, err := svc.RegisterProfile(context.Background(), "user-1", RegisterProfileRequest{
		MACAddress: "04:81:d4:12:34:56",
	})
	require.ErrorAs(t, err, &validation, "display name is required")

	_, err = svc.RegisterProfile(context.Background(), "user-1", RegisterProfileRequest{
		DisplayName: "Apple Watch",
	})
	require.ErrorAs(t, err, &validation, "an address is required")
}

func TestGetProfileIsOwnerScoped(t *testing.T) {
	svc, store := newTestOnboarding(t)
	device := seedDetectedDevice(t, store, true)

	profile, err := svc.CreateProfile(context.Background(), "user-1", CreateProfileRequest{
		DetectedDeviceID: device.ID,
	})
	require.NoError(t, err)

	_, err = svc.GetProfile(context.Background(), "user-2", profile.ID)
	require.ErrorIs(t, err, db.ErrProfileNotFound,
		"another owner's profile must look like a missing one")
}

func TestUpdateProfile(t *testing.T) {
	svc, store := newTestOnboarding(t)
	device := seedDetectedDevice(t, store, true)

	profile, err := svc.CreateProfile(context.Background(), "user-1", CreateProfileRequest{
		DetectedDeviceID: device.ID,
	})
	require.NoError(t, err)

	name := "Dad's iPhone"
	freq := 15
	status := models.ProfilePaired
	capabilities := []models.DataCapability{models.CapabilityHeartRate, models.CapabilitySteps}

	updated, err := svc.UpdateProfile(context.Background(), "user-1", profile.ID, models.ProfilePatch{
		DisplayName:          &name,
		SyncFrequencyMinutes: &freq,
		Status:               &status,
		GrantedCapabilities:  &capabilities,
	})
	require.NoError(t, err)

	assert.Equal(t, "Dad's iPhone", updated.DisplayName)
	assert.Equal(t, 15, updated.SyncFrequencyMinutes)
	assert.Equal(t, models.ProfilePaired, updated.Status)
	assert.Len(t, updated.GrantedCapabilities, 2)

	var validation *models.ValidationError

	empty := ""
	_, err = svc.UpdateProfile(context.Background(), "user-1", profile.ID, models.ProfilePatch{
		DisplayName: &empty,
	})
	require.ErrorAs(t, err, &validation)

	bad := models.ProfileStatus("SLEEPING")
	_, err = svc.UpdateProfile(context.Background(), "user-1", profile.ID, models.ProfilePatch{
		Status: &bad,
	})
	require.ErrorAs(t, err, &validation)
}

func TestTriggerSync(t *testing.T) {
	svc, store := newTestOnboarding(t)
	device := seedDetectedDevice(t, store, true)

	profile, err := svc.CreateProfile(context.Background(), "user-1", CreateProfileRequest{
		DetectedDeviceID: device.ID,
	})
	require.NoError(t, err)
	require.Nil(t, profile.LastSyncAt)

	synced, err := svc.TriggerSync(context.Background(), "user-1", profile.ID)
	require.NoError(t, err)

	assert.Equal(t, models.ProfileSyncing, synced.Status)
	require.NotNil(t, synced.LastSyncAt)
	assert.WithinDuration(t, time.Now(), *synced.LastSyncAt, time.Second)
}

func TestTriggerSyncRejectsDisconnectedProfile(t *testing.T) {
	svc, store := newTestOnboarding(t)
	device := seedDetectedDevice(t, store, true)

	profile, err := svc.CreateProfile(context.Background(), "user-1", CreateProfileRequest{
		DetectedDeviceID: device.ID,
	})
	require.NoError(t, err)

	disconnected := models.ProfileDisconnected
	_, err = svc.UpdateProfile(context.Background(), "user-1", profile.ID, models.ProfilePatch{
		Status: &disconnected,
	})
	require.NoError(t, err)

	_, err = svc.TriggerSync(context.Background(), "user-1", profile.ID)

	var validation *models.ValidationError
	require.ErrorAs(t, err, &validation)

	got, err := svc.GetProfile(context.Background(), "user-1", profile.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProfileDisconnected, got.Status, "rejected sync must not touch the profile")
	assert.Nil(t, got.LastSyncAt)
}

func TestOwnerStats(t *testing.T) {
	svc, store := newTestOnboarding(t)
	device := seedDetectedDevice(t, store, true)

	primary, err := svc.CreateProfile(context.Background(), "user-1", CreateProfileRequest{
		DetectedDeviceID: device.ID,
		IsPrimary:        true,
	})
	require.NoError(t, err)

	watch, err := svc.RegisterProfile(context.Background(), "user-1", RegisterProfileRequest{
		DisplayName: "Apple Watch",
		MACAddress:  "08:74:02:11:22:33",
	})
	require.NoError(t, err)

	_, err = svc.TriggerSync(context.Background(), "user-1", watch.ID)
	require.NoError(t, err)

	stats, err := svc.OwnerStats(context.Background(), "user-1")
	require.NoError(t, err)

	assert.Equal(t, 2, stats.TotalProfiles)
	assert.Equal(t, primary.ID, stats.PrimaryProfileID)
	assert.Equal(t, 1, stats.ByStatus[string(models.ProfileDiscovered)])
	assert.Equal(t, 1, stats.ByStatus[string(models.ProfileSyncing)])
	require.Len(t, stats.RecentSyncs, 1)
	assert.Equal(t, watch.ID, stats.RecentSyncs[0].ProfileID)
}
