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

// Package discovery runs timed radio scan sessions: it owns the session
// state machine, drives one or two concurrent radio scans per session, and
// writes the terminal session state.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jeghealth/devicescan/pkg/classify"
	"github.com/jeghealth/devicescan/pkg/db"
	"github.com/jeghealth/devicescan/pkg/events"
	"github.com/jeghealth/devicescan/pkg/logger"
	"github.com/jeghealth/devicescan/pkg/models"
	"github.com/jeghealth/devicescan/pkg/registry"
	"github.com/jeghealth/devicescan/pkg/scan"
)

const (
	defaultMinDurationSeconds    = 10
	defaultMaxDurationSeconds    = 300
	defaultMaxConcurrentSessions = 5
	defaultGraceSeconds          = 5
)

// Service orchestrates scan sessions from request to terminal state.
type Service struct {
	store      db.Service
	registry   *registry.Registry
	classifier *classify.Classifier
	provider   scan.Provider
	publisher  events.Publisher
	logger     logger.Logger

	minDuration time.Duration
	maxDuration time.Duration
	grace       time.Duration
	capacity    int

	// sem bounds the number of concurrently executing sessions.
	sem chan struct{}
	wg  sync.WaitGroup
	now func() time.Time
}

// New wires an orchestrator. A nil publisher disables event emission.
func New(store db.Service, reg *registry.Registry, classifier *classify.Classifier,
	provider scan.Provider, publisher events.Publisher, cfg models.DiscoveryConfig, log logger.Logger) *Service {
	if cfg.MinDurationSeconds <= 0 {
		cfg.MinDurationSeconds = defaultMinDurationSeconds
	}

	if cfg.MaxDurationSeconds <= 0 {
		cfg.MaxDurationSeconds = defaultMaxDurationSeconds
	}

	if cfg.MaxConcurrentSessions <= 0 {
		cfg.MaxConcurrentSessions = defaultMaxConcurrentSessions
	}

	if cfg.GraceSeconds <= 0 {
		cfg.GraceSeconds = defaultGraceSeconds
	}

	if publisher == nil {
		publisher = events.Noop{}
	}

	return &Service{
		store:       store,
		registry:    reg,
		classifier:  classifier,
		provider:    provider,
		publisher:   publisher,
		logger:      log.WithComponent("discovery"),
		minDuration: time.Duration(cfg.MinDurationSeconds) * time.Second,
		maxDuration: time.Duration(cfg.MaxDurationSeconds) * time.Second,
		grace:       time.Duration(cfg.GraceSeconds) * time.Second,
		capacity:    cfg.MaxConcurrentSessions,
		sem:         make(chan struct{}, cfg.MaxConcurrentSessions),
		now:         time.Now,
	}
}

// StartScan validates the request, claims a concurrency slot, creates the
// session in INITIATED, and schedules the scan without blocking the caller.
// The single-active-session invariant is enforced atomically by the store.
func (s *Service) StartScan(ctx context.Context, owner string, kind models.ScanKind, durationSeconds int) (*models.ScanSession, error) {
	if owner == "" {
		return nil, models.NewValidationError("owner is required")
	}

	if !kind.Valid() {
		return nil, models.NewValidationError("unknown scan kind %q", kind)
	}

	duration := time.Duration(durationSeconds) * time.Second
	if duration < s.minDuration || duration > s.maxDuration {
		return nil, models.NewValidationError("duration must be between %d and %d seconds",
			int(s.minDuration.Seconds()), int(s.maxDuration.Seconds()))
	}

	select {
	case s.sem <- struct{}{}:
	default:
		return nil, &models.CapacityError{Limit: s.capacity}
	}

	session := &models.ScanSession{
		ID:              uuid.NewString(),
		Owner:           owner,
		Kind:            kind,
		DurationSeconds: durationSeconds,
		Status:          models.SessionInitiated,
		StartedAt:       s.now(),
	}

	if err := s.store.CreateSession(ctx, session); err != nil {
		<-s.sem
		return nil, err
	}

	s.logger.Info().
		Str("session_id", session.ID).
		Str("owner", owner).
		Str("kind", string(kind)).
		Int("duration_seconds", durationSeconds).
		Msg("scan session accepted")

	s.wg.Add(1)

	// The scan task mutates the session through its transitions, so it
	// gets a private copy; the caller keeps the INITIATED snapshot.
	task := *session

	go s.execute(&task)

	return session, nil
}

// execute runs the scan to a terminal state. It never reports errors to the
// original caller; failures are recorded on the session row.
func (s *Service) execute(session *models.ScanSession) {
	defer s.wg.Done()
	defer func() { <-s.sem }()

	duration := time.Duration(session.DurationSeconds) * time.Second

	// The deadline covers the scan plus a grace margin; a provider that
	// hangs past it ends the session in TIMEOUT rather than FAILED.
	ctx, cancel := context.WithTimeout(context.Background(), duration+s.grace)
	defer cancel()

	session.Status = models.SessionScanning
	if err := s.store.UpdateSession(ctx, session); err != nil {
		s.finish(session, models.SessionFailed, err)
		return
	}

	group, groupCtx := errgroup.WithContext(ctx)

	for _, radio := range session.Kind.Radios() {
		radio := radio
		group.Go(func() error {
			return s.runRadio(groupCtx, session.ID, radio, duration)
		})
	}

	err := group.Wait()

	switch {
	case err == nil:
		s.finish(session, models.SessionCompleted, nil)
	case errors.Is(err, context.DeadlineExceeded) && ctx.Err() != nil:
		s.finish(session, models.SessionTimedOut, err)
	default:
		s.finish(session, models.SessionFailed, err)
	}
}

// runRadio drives one radio scan and feeds every sighting through the
// classifier into the registry. An upsert failure aborts the scan rather
// than completing with a device count mismatch.
func (s *Service) runRadio(ctx context.Context, sessionID string, radio models.ScanKind, duration time.Duration) error {
	sightings, err := s.provider.Scan(ctx, radio, duration)
	if err != nil {
		return fmt.Errorf("%s scan: %w", radio, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sighting, ok := <-sightings:
			if !ok {
				return nil
			}

			verdict := s.classifier.Classify(sighting)

			if _, err := s.registry.Upsert(ctx, sessionID, sighting, verdict); err != nil {
				if errors.Is(err, registry.ErrAddressRequired) {
					s.logger.Warn().
						Str("session_id", sessionID).
						Str("name", sighting.Name).
						Msg("dropping sighting without addresses")

					continue
				}

				return fmt.Errorf("registry upsert: %w", err)
			}
		}
	}
}

// finish writes the terminal state in a single update. Partial results from
// a failed or timed out scan are kept and counted. A count or summary
// failure at completion time downgrades the session to FAILED so that a
// COMPLETED session always carries accurate results.
func (s *Service) finish(session *models.ScanSession, status models.SessionStatus, cause error) {
	// Terminal writes use a fresh context so a scan deadline cannot also
	// starve the bookkeeping.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	completedAt := s.now()

	total, targetVendor, err := s.store.CountDetectedDevices(ctx, session.ID)
	if err != nil {
		s.logger.Error().Err(err).Str("session_id", session.ID).Msg("failed to count detected devices")

		// A COMPLETED session must report the registry's counts; without
		// them the session cannot claim a successful outcome.
		if status == models.SessionCompleted {
			status = models.SessionFailed
			cause = fmt.Errorf("count detected devices: %w", err)
		}
	} else {
		session.DevicesFound = total
		session.TargetDevicesFound = targetVendor
	}

	if status == models.SessionCompleted {
		summary, err := s.registry.Summarize(ctx, session.ID)
		if err != nil {
			s.logger.Error().Err(err).Str("session_id", session.ID).Msg("failed to build session summary")

			status = models.SessionFailed
			cause = fmt.Errorf("session summary: %w", err)
		} else {
			summary.Kind = session.Kind
			summary.DurationSeconds = session.DurationSeconds
			session.Summary = summary
		}
	}

	session.Status = status
	session.CompletedAt = &completedAt

	if cause != nil {
		session.ErrorMessage = cause.Error()
	}

	if err := s.store.UpdateSession(ctx, session); err != nil {
		s.logger.Error().Err(err).Str("session_id", session.ID).Msg("failed to finalize session")
		return
	}

	s.logger.Info().
		Str("session_id", session.ID).
		Str("status", string(status)).
		Int("devices_found", session.DevicesFound).
		Int("target_devices_found", session.TargetDevicesFound).
		Msg("scan session finished")

	if err := s.publisher.PublishSessionCompleted(ctx, models.SessionCompletedEventData{
		SessionID:          session.ID,
		Owner:              session.Owner,
		Kind:               session.Kind,
		Status:             status,
		DevicesFound:       session.DevicesFound,
		TargetDevicesFound: session.TargetDevicesFound,
		Timestamp:          completedAt,
	}); err != nil {
		s.logger.Warn().Err(err).Str("session_id", session.ID).Msg("failed to publish session event")
	}
}

// RecoverStaleSessions marks sessions left non-terminal by a previous
// process run as TIMEOUT. Called once at startup before serving requests.
func (s *Service) RecoverStaleSessions(ctx context.Context) (int, error) {
	sessions, err := s.store.ListUnfinishedSessions(ctx)
	if err != nil {
		return 0, err
	}

	recovered := 0

	for _, session := range sessions {
		completedAt := s.now()
		session.Status = models.SessionTimedOut
		session.CompletedAt = &completedAt
		session.ErrorMessage = "session abandoned by process restart"

		if err := s.store.UpdateSession(ctx, session); err != nil {
			return recovered, err
		}

		s.logger.Warn().
			Str("session_id", session.ID).
			Str("owner", session.Owner).
			Msg("recovered stale scan session")

		recovered++
	}

	return recovered, nil
}

// Stop waits for in-flight sessions to reach a terminal state, bounded by
// the context deadline, then stops the scan provider.
func (s *Service) Stop(ctx context.Context) error {
	done := make(chan struct{})

	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	return s.provider.Stop()
}
