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

package registry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeghealth/devicescan/pkg/db"
	"github.com/jeghealth/devicescan/pkg/logger"
	"github.com/jeghealth/devicescan/pkg/models"
)

func newTestRegistry(t *testing.T) (*Registry, *db.MemoryStore) {
	t.Helper()

	store := db.NewMemoryStore()

	return New(store, logger.NewTestLogger()), store
}

func appleSighting(name, mac string) models.Sighting {
	return models.Sighting{
		Name:           name,
		MACAddress:     mac,
		Manufacturer:   "Apple Inc.",
		ConnectionKind: models.ConnectionBluetooth,
	}
}

func TestUpsertInsertsFirstSighting(t *testing.T) {
	ctx := context.Background()
	reg, _ := newTestRegistry(t)

	device, err := reg.Upsert(ctx, "session-1",
		appleSighting("John's iPhone", "04:81:d4:12:34:56"),
		models.Classification{IsTargetVendor: true, DeviceType: models.DeviceTypePhone, Confidence: 1.0})
	require.NoError(t, err)

	assert.NotEmpty(t, device.ID)
	assert.Equal(t, "session-1", device.SessionID)
	assert.True(t, device.IsTargetVendor)
	assert.Equal(t, device.FirstSeen, device.LastSeen)
	assert.Equal(t, string(models.DeviceTypePhone), device.Extra["device_type"])
}

func TestUpsertRequiresAnAddress(t *testing.T) {
	reg, _ := newTestRegistry(t)

	_, err := reg.Upsert(context.Background(), "session-1",
		models.Sighting{Name: "ghost"}, models.Classification{})
	require.ErrorIs(t, err, ErrAddressRequired)
}

func TestUpsertIsIdempotentAndKeepsHighestConfidence(t *testing.T) {
	ctx := context.Background()
	reg, store := newTestRegistry(t)

	sighting := appleSighting("John's iPhone", "04:81:d4:12:34:56")

	first, err := reg.Upsert(ctx, "session-1", sighting,
		models.Classification{IsTargetVendor: true, DeviceType: models.DeviceTypePhone, Confidence: 1.0})
	require.NoError(t, err)

	// A weaker later read must not lower the stored confidence or flip the
	// vendor verdict.
	second, err := reg.Upsert(ctx, "session-1", sighting,
		models.Classification{IsTargetVendor: true, DeviceType: models.DeviceTypeUnknownVendor, Confidence: 0.6})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.InDelta(t, 1.0, second.Confidence, 0.001)
	assert.True(t, second.IsTargetVendor)
	assert.Equal(t, string(models.DeviceTypePhone), second.Extra["device_type"])

	total, _, err := store.CountDetectedDevices(ctx, "session-1")
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestUpsertMergesExtraNewKeysWin(t *testing.T) {
	ctx := context.Background()
	reg, _ := newTestRegistry(t)

	first := appleSighting("John's iPhone", "04:81:d4:12:34:56")
	first.Extra = map[string]string{"rssi_source": "adv", "channel": "37"}

	_, err := reg.Upsert(ctx, "session-1", first,
		models.Classification{IsTargetVendor: true, DeviceType: models.DeviceTypePhone, Confidence: 1.0})
	require.NoError(t, err)

	repeat := appleSighting("John's iPhone", "04:81:d4:12:34:56")
	repeat.Extra = map[string]string{"channel": "38", "tx_power": "4"}

	device, err := reg.Upsert(ctx, "session-1", repeat,
		models.Classification{IsTargetVendor: true, DeviceType: models.DeviceTypePhone, Confidence: 1.0})
	require.NoError(t, err)

	assert.Equal(t, "adv", device.Extra["rssi_source"])
	assert.Equal(t, "38", device.Extra["channel"], "new key wins on conflict")
	assert.Equal(t, "4", device.Extra["tx_power"])
}

func TestUpsertLastSeenMonotonic(t *testing.T) {
	ctx := context.Background()
	reg, _ := newTestRegistry(t)

	clock := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	reg.now = func() time.Time { return clock }

	sighting := appleSighting("Apple Watch", "04:81:d4:ab:cd:ef")

	first, err := reg.Upsert(ctx, "session-1", sighting,
		models.Classification{IsTargetVendor: true, DeviceType: models.DeviceTypeWatch, Confidence: 0.8})
	require.NoError(t, err)

	clock = clock.Add(5 * time.Second)

	second, err := reg.Upsert(ctx, "session-1", sighting,
		models.Classification{IsTargetVendor: true, DeviceType: models.DeviceTypeWatch, Confidence: 0.8})
	require.NoError(t, err)

	assert.Equal(t, first.FirstSeen, second.FirstSeen)
	assert.True(t, second.LastSeen.After(first.LastSeen))
}

func TestUpsertMergesConnectionKindToBoth(t *testing.T) {
	ctx := context.Background()
	reg, _ := newTestRegistry(t)

	bt := models.Sighting{
		Name:             "Mike's iPad",
		MACAddress:       "04:f7:e4:11:22:33",
		BluetoothAddress: "04:f7:e4:11:22:34",
		ConnectionKind:   models.ConnectionBluetooth,
	}

	_, err := reg.Upsert(ctx, "session-1", bt,
		models.Classification{IsTargetVendor: true, DeviceType: models.DeviceTypeTablet, Confidence: 0.8})
	require.NoError(t, err)

	wifi := bt
	wifi.ConnectionKind = models.ConnectionWiFi

	device, err := reg.Upsert(ctx, "session-1", wifi,
		models.Classification{IsTargetVendor: true, DeviceType: models.DeviceTypeTablet, Confidence: 0.8})
	require.NoError(t, err)

	assert.Equal(t, models.ConnectionBoth, device.ConnectionKind)
}

func TestUpsertSerializesConcurrentWritesPerSession(t *testing.T) {
	ctx := context.Background()
	reg, store := newTestRegistry(t)

	const writers = 16

	var wg sync.WaitGroup

	for i := 0; i < writers; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, err := reg.Upsert(ctx, "session-1",
				appleSighting("John's iPhone", "04:81:d4:12:34:56"),
				models.Classification{IsTargetVendor: true, DeviceType: models.DeviceTypePhone, Confidence: 1.0})
			assert.NoError(t, err)
		}()
	}

	wg.Wait()

	total, vendor, err := store.CountDetectedDevices(ctx, "session-1")
	require.NoError(t, err)
	assert.Equal(t, 1, total, "concurrent upserts of one address pair must not double-insert")
	assert.Equal(t, 1, vendor)
}

func TestSummarize(t *testing.T) {
	ctx := context.Background()
	reg, _ := newTestRegistry(t)

	_, err := reg.Upsert(ctx, "session-1",
		appleSighting("John's iPhone", "04:81:d4:00:00:01"),
		models.Classification{IsTargetVendor: true, DeviceType: models.DeviceTypePhone, Confidence: 1.0})
	require.NoError(t, err)

	_, err = reg.Upsert(ctx, "session-1",
		models.Sighting{Name: "SomeRouter", MACAddress: "aa:bb:cc:00:00:02", ConnectionKind: models.ConnectionWiFi},
		models.Classification{IsTargetVendor: false, DeviceType: models.DeviceTypeNonVendor, Confidence: 0})
	require.NoError(t, err)

	summary, err := reg.Summarize(ctx, "session-1")
	require.NoError(t, err)

	assert.Equal(t, 2, summary.TotalDevices)
	assert.Equal(t, 1, summary.TargetVendorDevices)
	assert.Equal(t, 1, summary.ByConnectionKind[string(models.ConnectionBluetooth)])
	assert.Equal(t, 1, summary.ByConnectionKind[string(models.ConnectionWiFi)])
	assert.Equal(t, 1, summary.ByDeviceType[string(models.DeviceTypePhone)])
	assert.Equal(t, 1, summary.ByDeviceType[string(models.DeviceTypeNonVendor)])
}

func TestCounts(t *testing.T) {
	ctx := context.Background()
	reg, _ := newTestRegistry(t)

	_, err := reg.Upsert(ctx, "session-1",
		appleSighting("John's iPhone", "04:81:d4:00:00:01"),
		models.Classification{IsTargetVendor: true, DeviceType: models.DeviceTypePhone, Confidence: 1.0})
	require.NoError(t, err)

	_, err = reg.Upsert(ctx, "session-1",
		models.Sighting{MACAddress: "aa:bb:cc:00:00:02", ConnectionKind: models.ConnectionWiFi},
		models.Classification{DeviceType: models.DeviceTypeNonVendor})
	require.NoError(t, err)

	all, err := reg.CountAll(ctx, "session-1")
	require.NoError(t, err)
	assert.Equal(t, 2, all)

	vendor, err := reg.CountTargetVendor(ctx, "session-1")
	require.NoError(t, err)
	assert.Equal(t, 1, vendor)
}
