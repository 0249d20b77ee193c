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

package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeghealth/devicescan/pkg/classify"
	"github.com/jeghealth/devicescan/pkg/db"
	"github.com/jeghealth/devicescan/pkg/events"
	"github.com/jeghealth/devicescan/pkg/logger"
	"github.com/jeghealth/devicescan/pkg/models"
	"github.com/jeghealth/devicescan/pkg/registry"
	"github.com/jeghealth/devicescan/pkg/scan"
)

// fakeProvider emits canned sightings per radio kind immediately, or fails,
// or hangs until the context expires.
type fakeProvider struct {
	mu        sync.Mutex
	sightings map[models.ScanKind][]models.Sighting
	scanErr   error
	hang      bool
	stopped   bool
}

func (f *fakeProvider) Scan(ctx context.Context, kind models.ScanKind, _ time.Duration) (<-chan models.Sighting, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.scanErr != nil {
		return nil, f.scanErr
	}

	ch := make(chan models.Sighting, len(f.sightings[kind]))

	if f.hang {
		// Never emit, never close: the session deadline has to end it.
		go func() {
			<-ctx.Done()
			close(ch)
		}()

		return ch, nil
	}

	for _, s := range f.sightings[kind] {
		ch <- s
	}

	close(ch)

	return ch, nil
}

func (f *fakeProvider) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true

	return nil
}

// flakyStore fails selected bookkeeping reads so terminal-state handling
// can be exercised.
type flakyStore struct {
	db.Service

	failCounts bool
	failList   bool
}

func (f *flakyStore) CountDetectedDevices(ctx context.Context, sessionID string) (int, int, error) {
	if f.failCounts {
		return 0, 0, errors.New("store unavailable")
	}

	return f.Service.CountDetectedDevices(ctx, sessionID)
}

func (f *flakyStore) ListDetectedDevices(ctx context.Context, sessionID string, filter *models.DetectedDeviceFilter) ([]*models.DetectedDevice, error) {
	if f.failList {
		return nil, errors.New("store unavailable")
	}

	return f.Service.ListDetectedDevices(ctx, sessionID, filter)
}

func newTestService(t *testing.T, provider scan.Provider, cfg models.DiscoveryConfig) (*Service, *db.MemoryStore) {
	t.Helper()

	log := logger.NewTestLogger()
	store := db.NewMemoryStore()
	reg := registry.New(store, log)

	return New(store, reg, classify.New(nil), provider, events.Noop{}, cfg, log), store
}

func waitTerminal(t *testing.T, svc *Service, sessionID string) *models.SessionSnapshot {
	t.Helper()

	var snapshot *models.SessionSnapshot

	require.Eventually(t, func() bool {
		snap, err := svc.GetSessionStatus(context.Background(), sessionID)
		if err != nil {
			return false
		}

		snapshot = snap

		return snap.Status.Terminal()
	}, 10*time.Second, 20*time.Millisecond, "session never reached a terminal state")

	return snapshot
}

func TestStartScanValidation(t *testing.T) {
	svc, _ := newTestService(t, &fakeProvider{}, models.DiscoveryConfig{})

	var validation *models.ValidationError

	_, err := svc.StartScan(context.Background(), "", models.ScanKindBluetooth, 30)
	require.ErrorAs(t, err, &validation)

	_, err = svc.StartScan(context.Background(), "user-1", "SONAR", 30)
	require.ErrorAs(t, err, &validation)

	_, err = svc.StartScan(context.Background(), "user-1", models.ScanKindBluetooth, 5)
	require.ErrorAs(t, err, &validation)

	_, err = svc.StartScan(context.Background(), "user-1", models.ScanKindBluetooth, 301)
	require.ErrorAs(t, err, &validation)
}

func TestCombinedScanCompletesWithMergedCounts(t *testing.T) {
	provider := &fakeProvider{sightings: map[models.ScanKind][]models.Sighting{
		models.ScanKindBluetooth: {
			{Name: "John's iPhone", MACAddress: "04:81:d4:00:00:01",
				Manufacturer: "Apple Inc.", ConnectionKind: models.ConnectionBluetooth},
			{Name: "Apple Watch", MACAddress: "08:74:02:00:00:02",
				Manufacturer: "Apple Inc.", ConnectionKind: models.ConnectionBluetooth},
			{Name: "SomeSpeaker", MACAddress: "aa:bb:cc:00:00:03",
				ConnectionKind: models.ConnectionBluetooth},
		},
		models.ScanKindWiFi: {
			{Name: "HomeRouter", MACAddress: "11:22:33:00:00:04",
				ConnectionKind: models.ConnectionWiFi},
			{Name: "SmartTV", MACAddress: "44:55:66:00:00:05",
				ConnectionKind: models.ConnectionWiFi},
		},
	}}

	svc, _ := newTestService(t, provider, models.DiscoveryConfig{})

	session, err := svc.StartScan(context.Background(), "user-1", models.ScanKindCombined, 30)
	require.NoError(t, err)
	assert.Equal(t, models.SessionInitiated, session.Status)

	snapshot := waitTerminal(t, svc, session.ID)

	assert.Equal(t, models.SessionCompleted, snapshot.Status)
	assert.Equal(t, 5, snapshot.DevicesFound)
	assert.Equal(t, 2, snapshot.TargetDevicesFound)
	require.NotNil(t, snapshot.CompletedAt)
	require.NotNil(t, snapshot.Summary)
	assert.Equal(t, 5, snapshot.Summary.TotalDevices)
	assert.Equal(t, 2, snapshot.Summary.TargetVendorDevices)
	assert.Equal(t, models.ScanKindCombined, snapshot.Summary.Kind)
}

func TestConcurrentStartScanSameOwnerExactlyOneWins(t *testing.T) {
	provider := &fakeProvider{hang: true}
	svc, _ := newTestService(t, provider, models.DiscoveryConfig{
		MaxConcurrentSessions: 16,
		GraceSeconds:          1,
	})

	const attempts = 8

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		accepted  int
		conflicts int
	)

	for i := 0; i < attempts; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, err := svc.StartScan(context.Background(), "user-1", models.ScanKindBluetooth, 10)

			mu.Lock()
			defer mu.Unlock()

			var conflict *models.ConflictError

			switch {
			case err == nil:
				accepted++
			case errors.As(err, &conflict):
				assert.NotEmpty(t, conflict.ExistingSessionID)
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, 1, accepted, "exactly one concurrent StartScan must win")
	assert.Equal(t, attempts-1, conflicts)
}

func TestStartScanConflictCarriesExistingSessionID(t *testing.T) {
	provider := &fakeProvider{hang: true}
	svc, _ := newTestService(t, provider, models.DiscoveryConfig{GraceSeconds: 1})

	first, err := svc.StartScan(context.Background(), "user-1", models.ScanKindBluetooth, 10)
	require.NoError(t, err)

	_, err = svc.StartScan(context.Background(), "user-1", models.ScanKindWiFi, 10)

	var conflict *models.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, first.ID, conflict.ExistingSessionID)
}

func TestStartScanCapacity(t *testing.T) {
	provider := &fakeProvider{hang: true}
	svc, _ := newTestService(t, provider, models.DiscoveryConfig{
		MaxConcurrentSessions: 2,
		GraceSeconds:          1,
	})

	_, err := svc.StartScan(context.Background(), "user-1", models.ScanKindBluetooth, 10)
	require.NoError(t, err)
	_, err = svc.StartScan(context.Background(), "user-2", models.ScanKindBluetooth, 10)
	require.NoError(t, err)

	_, err = svc.StartScan(context.Background(), "user-3", models.ScanKindBluetooth, 10)

	var capacity *models.CapacityError
	require.ErrorAs(t, err, &capacity)
	assert.Equal(t, 2, capacity.Limit)
}

func TestProviderErrorFailsSession(t *testing.T) {
	provider := &fakeProvider{scanErr: scan.ErrProviderUnavailable}
	svc, _ := newTestService(t, provider, models.DiscoveryConfig{})

	session, err := svc.StartScan(context.Background(), "user-1", models.ScanKindBluetooth, 10)
	require.NoError(t, err, "provider errors surface on the session, not the caller")

	snapshot := waitTerminal(t, svc, session.ID)

	assert.Equal(t, models.SessionFailed, snapshot.Status)
	assert.NotEmpty(t, snapshot.ErrorMessage)
	require.NotNil(t, snapshot.CompletedAt)
}

func TestHangingProviderTimesOutSession(t *testing.T) {
	provider := &fakeProvider{hang: true}
	svc, _ := newTestService(t, provider, models.DiscoveryConfig{
		MinDurationSeconds: 1,
		GraceSeconds:       1,
	})

	session, err := svc.StartScan(context.Background(), "user-1", models.ScanKindBluetooth, 1)
	require.NoError(t, err)

	snapshot := waitTerminal(t, svc, session.ID)

	assert.Equal(t, models.SessionTimedOut, snapshot.Status)
	require.NotNil(t, snapshot.CompletedAt)
}

func TestStartScanReturnsStableSnapshot(t *testing.T) {
	provider := &fakeProvider{sightings: map[models.ScanKind][]models.Sighting{
		models.ScanKindBluetooth: {
			{Name: "John's iPhone", MACAddress: "04:81:d4:00:00:01",
				Manufacturer: "Apple Inc.", ConnectionKind: models.ConnectionBluetooth},
		},
	}}

	svc, _ := newTestService(t, provider, models.DiscoveryConfig{})

	session, err := svc.StartScan(context.Background(), "user-1", models.ScanKindBluetooth, 10)
	require.NoError(t, err)

	// Callers encode the returned session while the scan task runs; the
	// struct handed back must never be written to again.
	stopReads := make(chan struct{})
	readsDone := make(chan struct{})

	go func() {
		defer close(readsDone)

		for {
			select {
			case <-stopReads:
				return
			default:
				_, err := json.Marshal(session)
				assert.NoError(t, err)
			}
		}
	}()

	waitTerminal(t, svc, session.ID)
	close(stopReads)
	<-readsDone

	assert.Equal(t, models.SessionInitiated, session.Status,
		"the caller's session is a snapshot of the accepted request")
	assert.Nil(t, session.CompletedAt)
	assert.Zero(t, session.DevicesFound)
}

func TestCompletionDowngradedWhenCountsUnavailable(t *testing.T) {
	provider := &fakeProvider{sightings: map[models.ScanKind][]models.Sighting{
		models.ScanKindBluetooth: {
			{Name: "John's iPhone", MACAddress: "04:81:d4:00:00:01",
				Manufacturer: "Apple Inc.", ConnectionKind: models.ConnectionBluetooth},
		},
	}}

	log := logger.NewTestLogger()
	store := &flakyStore{Service: db.NewMemoryStore(), failCounts: true}
	reg := registry.New(store, log)
	svc := New(store, reg, classify.New(nil), provider, events.Noop{}, models.DiscoveryConfig{}, log)

	session, err := svc.StartScan(context.Background(), "user-1", models.ScanKindBluetooth, 10)
	require.NoError(t, err)

	snapshot := waitTerminal(t, svc, session.ID)

	assert.Equal(t, models.SessionFailed, snapshot.Status,
		"a session without trustworthy counts cannot claim completion")
	assert.Contains(t, snapshot.ErrorMessage, "count detected devices")
	assert.Nil(t, snapshot.Summary)
}

func TestCompletionDowngradedWhenSummaryUnavailable(t *testing.T) {
	provider := &fakeProvider{sightings: map[models.ScanKind][]models.Sighting{
		models.ScanKindBluetooth: {
			{Name: "John's iPhone", MACAddress: "04:81:d4:00:00:01",
				Manufacturer: "Apple Inc.", ConnectionKind: models.ConnectionBluetooth},
		},
	}}

	log := logger.NewTestLogger()
	store := &flakyStore{Service: db.NewMemoryStore(), failList: true}
	reg := registry.New(store, log)
	svc := New(store, reg, classify.New(nil), provider, events.Noop{}, models.DiscoveryConfig{}, log)

	session, err := svc.StartScan(context.Background(), "user-1", models.ScanKindBluetooth, 10)
	require.NoError(t, err)

	snapshot := waitTerminal(t, svc, session.ID)

	assert.Equal(t, models.SessionFailed, snapshot.Status)
	assert.Contains(t, snapshot.ErrorMessage, "session summary")
	assert.Equal(t, 1, snapshot.DevicesFound, "counts gathered before the failure are kept")
	assert.Nil(t, snapshot.Summary)
}

func TestGetSessionResults(t *testing.T) {
	provider := &fakeProvider{sightings: map[models.ScanKind][]models.Sighting{
		models.ScanKindBluetooth: {
			{Name: "John's iPhone", MACAddress: "04:81:d4:00:00:01",
				Manufacturer: "Apple Inc.", ConnectionKind: models.ConnectionBluetooth},
			{Name: "SomeSpeaker", MACAddress: "aa:bb:cc:00:00:02",
				ConnectionKind: models.ConnectionBluetooth},
		},
	}}

	svc, _ := newTestService(t, provider, models.DiscoveryConfig{})

	session, err := svc.StartScan(context.Background(), "user-1", models.ScanKindBluetooth, 10)
	require.NoError(t, err)

	// Results are refused while the session is not COMPLETED.
	_, err = svc.GetSessionResults(context.Background(), session.ID)
	require.Error(t, err)

	waitTerminal(t, svc, session.ID)

	results, err := svc.GetSessionResults(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Len(t, results.Devices, 2)
	require.Len(t, results.TargetDevices, 1)
	assert.Equal(t, "John's iPhone", results.TargetDevices[0].Name)
	require.NotNil(t, results.Session.Summary)
}

func TestGetSessionStatusElapsed(t *testing.T) {
	svc, store := newTestService(t, &fakeProvider{}, models.DiscoveryConfig{})

	started := time.Now().Add(-30 * time.Second)
	completed := started.Add(12 * time.Second)

	require.NoError(t, store.CreateSession(context.Background(), &models.ScanSession{
		ID:          "terminal",
		Owner:       "user-1",
		Kind:        models.ScanKindBluetooth,
		Status:      models.SessionCompleted,
		StartedAt:   started,
		CompletedAt: &completed,
	}))

	snapshot, err := svc.GetSessionStatus(context.Background(), "terminal")
	require.NoError(t, err)
	assert.InDelta(t, 12.0, snapshot.ElapsedSeconds, 0.001,
		"terminal sessions use completedAt, not now")

	require.NoError(t, store.CreateSession(context.Background(), &models.ScanSession{
		ID:        "running",
		Owner:     "user-2",
		Kind:      models.ScanKindBluetooth,
		Status:    models.SessionScanning,
		StartedAt: started,
	}))

	snapshot, err = svc.GetSessionStatus(context.Background(), "running")
	require.NoError(t, err)
	assert.Greater(t, snapshot.ElapsedSeconds, 29.0)
}

func TestRecoverStaleSessions(t *testing.T) {
	svc, store := newTestService(t, &fakeProvider{}, models.DiscoveryConfig{})

	require.NoError(t, store.CreateSession(context.Background(), &models.ScanSession{
		ID:        "stale",
		Owner:     "user-1",
		Kind:      models.ScanKindBluetooth,
		Status:    models.SessionScanning,
		StartedAt: time.Now().Add(-time.Hour),
	}))

	recovered, err := svc.RecoverStaleSessions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, recovered)

	session, err := store.GetSession(context.Background(), "stale")
	require.NoError(t, err)
	assert.Equal(t, models.SessionTimedOut, session.Status)
	require.NotNil(t, session.CompletedAt)
}

func TestStopWaitsAndStopsProvider(t *testing.T) {
	provider := &fakeProvider{sightings: map[models.ScanKind][]models.Sighting{
		models.ScanKindBluetooth: {
			{Name: "John's iPhone", MACAddress: "04:81:d4:00:00:01",
				Manufacturer: "Apple Inc.", ConnectionKind: models.ConnectionBluetooth},
		},
	}}

	svc, _ := newTestService(t, provider, models.DiscoveryConfig{})

	session, err := svc.StartScan(context.Background(), "user-1", models.ScanKindBluetooth, 10)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	require.NoError(t, svc.Stop(ctx))

	provider.mu.Lock()
	stopped := provider.stopped
	provider.mu.Unlock()
	assert.True(t, stopped)

	snapshot, err := svc.GetSessionStatus(context.Background(), session.ID)
	require.NoError(t, err)
	assert.True(t, snapshot.Status.Terminal())
}
