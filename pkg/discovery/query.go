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
	"errors"

	"github.com/jeghealth/devicescan/pkg/models"
)

// ErrSessionNotCompleted is returned by GetSessionResults for sessions that
// have not reached COMPLETED.
var ErrSessionNotCompleted = errors.New("scan session is not completed")

// SessionResults is the full outcome of a completed session.
type SessionResults struct {
	Session       *models.ScanSession      `json:"session"`
	Devices       []*models.DetectedDevice `json:"devices"`
	TargetDevices []*models.DetectedDevice `json:"target_devices"`
}

// GetSessionStatus returns a point-in-time snapshot of the session with a
// computed elapsed time: now minus start while running, completion minus
// start once terminal.
func (s *Service) GetSessionStatus(ctx context.Context, sessionID string) (*models.SessionSnapshot, error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	snapshot := &models.SessionSnapshot{ScanSession: *session}

	if session.CompletedAt != nil {
		snapshot.ElapsedSeconds = session.CompletedAt.Sub(session.StartedAt).Seconds()
	} else {
		snapshot.ElapsedSeconds = s.now().Sub(session.StartedAt).Seconds()
	}

	return snapshot, nil
}

// GetSessionResults returns the detected devices of a COMPLETED session,
// partitioned into all devices and target-vendor devices.
func (s *Service) GetSessionResults(ctx context.Context, sessionID string) (*SessionResults, error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if session.Status != models.SessionCompleted {
		return nil, ErrSessionNotCompleted
	}

	devices, err := s.store.ListDetectedDevices(ctx, sessionID, nil)
	if err != nil {
		return nil, err
	}

	results := &SessionResults{
		Session: session,
		Devices: devices,
	}

	for _, device := range devices {
		if device.IsTargetVendor {
			results.TargetDevices = append(results.TargetDevices, device)
		}
	}

	return results, nil
}

// ListDetectedDevices lists a session's devices with an optional filter,
// regardless of session state. Partial results of failed or timed out
// sessions stay visible here.
func (s *Service) ListDetectedDevices(ctx context.Context, sessionID string, filter *models.DetectedDeviceFilter) ([]*models.DetectedDevice, error) {
	if _, err := s.store.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}

	return s.store.ListDetectedDevices(ctx, sessionID, filter)
}
