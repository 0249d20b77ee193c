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
	"fmt"
	"sort"
	"sync"

	"github.com/jeghealth/devicescan/pkg/models"
)

// MemoryStore is an in-process Service used by tests and by deployments that
// run without PostgreSQL. All invariants the SQL schema enforces with unique
// indexes are enforced here under a single mutex.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*models.ScanSession
	devices  map[string]*models.DetectedDevice
	profiles map[string]*models.DeviceProfile
}

var _ Service = (*MemoryStore)(nil)

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*models.ScanSession),
		devices:  make(map[string]*models.DetectedDevice),
		profiles: make(map[string]*models.DeviceProfile),
	}
}

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) CreateSession(_ context.Context, session *models.ScanSession) error {
	if session == nil {
		return ErrSessionNil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.sessions {
		if existing.Owner == session.Owner && !existing.Status.Terminal() {
			return &models.ConflictError{
				Message:           fmt.Sprintf("owner %s already has an active scan session", session.Owner),
				ExistingSessionID: existing.ID,
			}
		}
	}

	m.sessions[session.ID] = cloneSession(session)

	return nil
}

func (m *MemoryStore) GetSession(_ context.Context, id string) (*models.ScanSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	return cloneSession(session), nil
}

func (m *MemoryStore) UpdateSession(_ context.Context, session *models.ScanSession) error {
	if session == nil {
		return ErrSessionNil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[session.ID]; !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, session.ID)
	}

	m.sessions[session.ID] = cloneSession(session)

	return nil
}

func (m *MemoryStore) ListUnfinishedSessions(_ context.Context) ([]*models.ScanSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var sessions []*models.ScanSession

	for _, session := range m.sessions {
		if !session.Status.Terminal() {
			sessions = append(sessions, cloneSession(session))
		}
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].StartedAt.Before(sessions[j].StartedAt)
	})

	return sessions, nil
}

func (m *MemoryStore) UpsertDetectedDevice(_ context.Context, device *models.DetectedDevice) error {
	if device == nil {
		return ErrDeviceNil
	}

	if device.MACAddress == "" && device.BluetoothAddress == "" {
		return ErrDeviceAddressRequired
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for id, existing := range m.devices {
		if existing.SessionID == device.SessionID &&
			existing.MACAddress == device.MACAddress &&
			existing.BluetoothAddress == device.BluetoothAddress &&
			id != device.ID {
			// Same dedup key under a different id: replace in place,
			// mirroring ON CONFLICT DO UPDATE.
			replacement := cloneDevice(device)
			replacement.ID = id
			replacement.FirstSeen = existing.FirstSeen
			m.devices[id] = replacement

			return nil
		}
	}

	m.devices[device.ID] = cloneDevice(device)

	return nil
}

func (m *MemoryStore) GetDetectedDevice(_ context.Context, id string) (*models.DetectedDevice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	device, ok := m.devices[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}

	return cloneDevice(device), nil
}

func (m *MemoryStore) GetDetectedDeviceByKey(_ context.Context, sessionID, macAddress, bluetoothAddress string) (*models.DetectedDevice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, device := range m.devices {
		if device.SessionID == sessionID &&
			device.MACAddress == macAddress &&
			device.BluetoothAddress == bluetoothAddress {
			return cloneDevice(device), nil
		}
	}

	return nil, ErrDeviceNotFound
}

func (m *MemoryStore) ListDetectedDevices(_ context.Context, sessionID string, filter *models.DetectedDeviceFilter) ([]*models.DetectedDevice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var devices []*models.DetectedDevice

	for _, device := range m.devices {
		if device.SessionID != sessionID {
			continue
		}

		if filter != nil {
			if filter.TargetVendorOnly && !device.IsTargetVendor {
				continue
			}

			if filter.DeviceType != "" && device.Extra["device_type"] != string(filter.DeviceType) {
				continue
			}

			if filter.ConnectionKind != "" && device.ConnectionKind != filter.ConnectionKind {
				continue
			}
		}

		devices = append(devices, cloneDevice(device))
	}

	sort.Slice(devices, func(i, j int) bool {
		return devices[i].FirstSeen.Before(devices[j].FirstSeen)
	})

	return devices, nil
}

func (m *MemoryStore) CountDetectedDevices(_ context.Context, sessionID string) (total, targetVendor int, err error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, device := range m.devices {
		if device.SessionID != sessionID {
			continue
		}

		total++

		if device.IsTargetVendor {
			targetVendor++
		}
	}

	return total, targetVendor, nil
}

func (m *MemoryStore) CreateProfile(_ context.Context, profile *models.DeviceProfile) error {
	if profile == nil {
		return ErrProfileNil
	}

	if profile.StableIdentifier == "" {
		return ErrStableIdentifierNeeded
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.profiles {
		if existing.StableIdentifier == profile.StableIdentifier {
			return &models.ConflictError{
				Message:           fmt.Sprintf("a profile with identifier %s already exists", profile.StableIdentifier),
				ExistingProfileID: existing.ID,
			}
		}

		if profile.SourceDetectedDeviceID != "" &&
			existing.SourceDetectedDeviceID == profile.SourceDetectedDeviceID {
			return &models.ConflictError{
				Message:           fmt.Sprintf("detected device %s is already onboarded", profile.SourceDetectedDeviceID),
				ExistingProfileID: existing.ID,
			}
		}
	}

	if profile.IsPrimary {
		m.demoteOtherPrimariesLocked(profile.Owner, profile.ID)
	}

	m.profiles[profile.ID] = cloneProfile(profile)

	return nil
}

func (m *MemoryStore) GetProfile(_ context.Context, id string) (*models.DeviceProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	profile, ok := m.profiles[id]
	if !ok {
		return nil, ErrProfileNotFound
	}

	return cloneProfile(profile), nil
}

func (m *MemoryStore) GetProfileBySourceDevice(_ context.Context, detectedDeviceID string) (*models.DeviceProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, profile := range m.profiles {
		if profile.SourceDetectedDeviceID != "" &&
			profile.SourceDetectedDeviceID == detectedDeviceID {
			return cloneProfile(profile), nil
		}
	}

	return nil, ErrProfileNotFound
}

func (m *MemoryStore) GetProfileByStableIdentifier(_ context.Context, stableIdentifier string) (*models.DeviceProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, profile := range m.profiles {
		if profile.StableIdentifier == stableIdentifier {
			return cloneProfile(profile), nil
		}
	}

	return nil, ErrProfileNotFound
}

func (m *MemoryStore) UpdateProfile(_ context.Context, profile *models.DeviceProfile) error {
	if profile == nil {
		return ErrProfileNil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.profiles[profile.ID]; !ok {
		return fmt.Errorf("%w: %s", ErrProfileNotFound, profile.ID)
	}

	if profile.IsPrimary {
		m.demoteOtherPrimariesLocked(profile.Owner, profile.ID)
	}

	m.profiles[profile.ID] = cloneProfile(profile)

	return nil
}

func (m *MemoryStore) ListProfiles(_ context.Context, owner string, status models.ProfileStatus) ([]*models.DeviceProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var profiles []*models.DeviceProfile

	for _, profile := range m.profiles {
		if profile.Owner != owner {
			continue
		}

		if status != "" && profile.Status != status {
			continue
		}

		profiles = append(profiles, cloneProfile(profile))
	}

	sort.Slice(profiles, func(i, j int) bool {
		return profiles[i].CreatedAt.Before(profiles[j].CreatedAt)
	})

	return profiles, nil
}

func (m *MemoryStore) demoteOtherPrimariesLocked(owner, keepID string) {
	for _, profile := range m.profiles {
		if profile.Owner == owner && profile.IsPrimary && profile.ID != keepID {
			profile.IsPrimary = false
		}
	}
}

func cloneSession(s *models.ScanSession) *models.ScanSession {
	out := *s

	if s.CompletedAt != nil {
		t := *s.CompletedAt
		out.CompletedAt = &t
	}

	if s.Summary != nil {
		summary := *s.Summary
		summary.ByConnectionKind = cloneCounts(s.Summary.ByConnectionKind)
		summary.ByDeviceType = cloneCounts(s.Summary.ByDeviceType)
		out.Summary = &summary
	}

	return &out
}

func cloneDevice(d *models.DetectedDevice) *models.DetectedDevice {
	out := *d

	if d.SignalStrengthDBm != nil {
		v := *d.SignalStrengthDBm
		out.SignalStrengthDBm = &v
	}

	if d.Extra != nil {
		out.Extra = make(map[string]string, len(d.Extra))
		for k, v := range d.Extra {
			out.Extra[k] = v
		}
	}

	return &out
}

func cloneProfile(p *models.DeviceProfile) *models.DeviceProfile {
	out := *p

	if p.LastSyncAt != nil {
		t := *p.LastSyncAt
		out.LastSyncAt = &t
	}

	if p.GrantedCapabilities != nil {
		out.GrantedCapabilities = append([]models.DataCapability(nil), p.GrantedCapabilities...)
	}

	return &out
}

func cloneCounts(in map[string]int) map[string]int {
	if in == nil {
		return nil
	}

	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = v
	}

	return out
}
