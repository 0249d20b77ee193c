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

// Package registry deduplicates raw radio sightings into stable detected
// device records, one row per (session, mac, bluetooth) address pair.
package registry

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jeghealth/devicescan/pkg/db"
	"github.com/jeghealth/devicescan/pkg/logger"
	"github.com/jeghealth/devicescan/pkg/models"
)

// ErrAddressRequired is returned when a sighting carries neither a MAC nor a
// Bluetooth address and therefore has no dedup key.
var ErrAddressRequired = errors.New("sighting needs a mac or bluetooth address")

const extraDeviceTypeKey = "device_type"

// lock striping width for per-session write serialization.
const lockStripes = 64

// Registry merges repeat sightings of the same hardware into one record per
// session. Writes for a given session are serialized through a striped lock
// so concurrent Bluetooth and Wi-Fi scans of a COMBINED session cannot race
// the read-merge-write cycle.
type Registry struct {
	store  db.Service
	logger logger.Logger
	now    func() time.Time

	locks [lockStripes]sync.Mutex
}

// New returns a registry backed by the given store.
func New(store db.Service, log logger.Logger) *Registry {
	return &Registry{
		store:  store,
		logger: log.WithComponent("registry"),
		now:    time.Now,
	}
}

// Upsert records one classified sighting. The first sighting of an address
// pair inserts a record with firstSeen = lastSeen = now; repeat sightings
// update lastSeen, merge extra (new keys win), and keep the highest
// confidence classification seen so far.
func (r *Registry) Upsert(ctx context.Context, sessionID string, sighting models.Sighting, verdict models.Classification) (*models.DetectedDevice, error) {
	if sighting.MACAddress == "" && sighting.BluetoothAddress == "" {
		return nil, ErrAddressRequired
	}

	lock := r.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	now := r.now()

	existing, err := r.store.GetDetectedDeviceByKey(ctx, sessionID, sighting.MACAddress, sighting.BluetoothAddress)

	switch {
	case err == nil:
		device := mergeSighting(existing, sighting, verdict, now)
		if err := r.store.UpsertDetectedDevice(ctx, device); err != nil {
			return nil, err
		}

		return device, nil

	case errors.Is(err, db.ErrDeviceNotFound):
		device := newDetectedDevice(sessionID, sighting, verdict, now)
		if err := r.store.UpsertDetectedDevice(ctx, device); err != nil {
			return nil, err
		}

		r.logger.Debug().
			Str("session_id", sessionID).
			Str("name", device.Name).
			Bool("target_vendor", device.IsTargetVendor).
			Msg("registered detected device")

		return device, nil

	default:
		return nil, err
	}
}

// CountAll returns the number of distinct devices recorded for the session.
func (r *Registry) CountAll(ctx context.Context, sessionID string) (int, error) {
	total, _, err := r.store.CountDetectedDevices(ctx, sessionID)
	return total, err
}

// CountTargetVendor returns the number of devices classified as the target
// vendor's.
func (r *Registry) CountTargetVendor(ctx context.Context, sessionID string) (int, error) {
	_, targetVendor, err := r.store.CountDetectedDevices(ctx, sessionID)
	return targetVendor, err
}

// Summarize builds the terminal-session result summary from the registry's
// stored devices.
func (r *Registry) Summarize(ctx context.Context, sessionID string) (*models.SessionSummary, error) {
	devices, err := r.store.ListDetectedDevices(ctx, sessionID, nil)
	if err != nil {
		return nil, err
	}

	summary := &models.SessionSummary{
		ByConnectionKind: make(map[string]int),
		ByDeviceType:     make(map[string]int),
	}

	for _, device := range devices {
		summary.TotalDevices++

		if device.IsTargetVendor {
			summary.TargetVendorDevices++
		}

		summary.ByConnectionKind[string(device.ConnectionKind)]++

		if deviceType := device.Extra[extraDeviceTypeKey]; deviceType != "" {
			summary.ByDeviceType[deviceType]++
		}
	}

	return summary, nil
}

func (r *Registry) sessionLock(sessionID string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(sessionID))

	return &r.locks[h.Sum32()%lockStripes]
}

func newDetectedDevice(sessionID string, sighting models.Sighting, verdict models.Classification, now time.Time) *models.DetectedDevice {
	device := &models.DetectedDevice{
		ID:                uuid.NewString(),
		SessionID:         sessionID,
		Name:              sighting.Name,
		MACAddress:        sighting.MACAddress,
		BluetoothAddress:  sighting.BluetoothAddress,
		SignalStrengthDBm: sighting.SignalStrengthDBm,
		ConnectionKind:    sighting.ConnectionKind,
		Manufacturer:      sighting.Manufacturer,
		IsTargetVendor:    verdict.IsTargetVendor,
		Confidence:        verdict.Confidence,
		IsPaired:          sighting.IsPaired,
		FirstSeen:         now,
		LastSeen:          now,
		Extra:             make(map[string]string, len(sighting.Extra)+1),
	}

	for k, v := range sighting.Extra {
		device.Extra[k] = v
	}

	device.Extra[extraDeviceTypeKey] = string(verdict.DeviceType)

	return device
}

// mergeSighting folds a repeat observation into the stored record. The
// classification only replaces the stored one when its confidence is at
// least as high, so a weaker later read never flips the vendor verdict.
func mergeSighting(existing *models.DetectedDevice, sighting models.Sighting, verdict models.Classification, now time.Time) *models.DetectedDevice {
	device := *existing
	device.LastSeen = now

	if sighting.Name != "" {
		device.Name = sighting.Name
	}

	if sighting.SignalStrengthDBm != nil {
		device.SignalStrengthDBm = sighting.SignalStrengthDBm
	}

	if sighting.Manufacturer != "" {
		device.Manufacturer = sighting.Manufacturer
	}

	device.IsPaired = device.IsPaired || sighting.IsPaired
	device.ConnectionKind = mergeConnectionKind(device.ConnectionKind, sighting.ConnectionKind)

	device.Extra = make(map[string]string, len(existing.Extra)+len(sighting.Extra))
	for k, v := range existing.Extra {
		device.Extra[k] = v
	}

	for k, v := range sighting.Extra {
		device.Extra[k] = v
	}

	if verdict.Confidence >= device.Confidence {
		device.IsTargetVendor = verdict.IsTargetVendor
		device.Confidence = verdict.Confidence
		device.Extra[extraDeviceTypeKey] = string(verdict.DeviceType)
	} else {
		device.Extra[extraDeviceTypeKey] = existing.Extra[extraDeviceTypeKey]
	}

	return &device
}

func mergeConnectionKind(a, b models.ConnectionKind) models.ConnectionKind {
	switch {
	case a == b:
		return a
	case a == models.ConnectionUnknown || a == "":
		return b
	case b == models.ConnectionUnknown || b == "":
		return a
	default:
		return models.ConnectionBoth
	}
}
