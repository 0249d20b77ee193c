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

// Package events publishes discovery lifecycle CloudEvents to NATS JetStream.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/jeghealth/devicescan/pkg/logger"
	"github.com/jeghealth/devicescan/pkg/models"
)

const (
	eventSource = "jeghealth/devicescan"

	TypeSessionCompleted = "com.jeghealth.devicescan.session.completed"
	TypeProfileOnboarded = "com.jeghealth.devicescan.profile.onboarded"

	defaultStream        = "devicescan-events"
	defaultSubjectPrefix = "events.devicescan"
)

// Publisher emits discovery lifecycle events. Implementations must be safe
// for concurrent use.
type Publisher interface {
	PublishSessionCompleted(ctx context.Context, data models.SessionCompletedEventData) error
	PublishProfileOnboarded(ctx context.Context, data models.ProfileOnboardedEventData) error
	Close()
}

// NATSPublisher publishes CloudEvents to a JetStream stream.
type NATSPublisher struct {
	nc      *nats.Conn
	js      jetstream.JetStream
	subject string
	logger  logger.Logger
}

var _ Publisher = (*NATSPublisher)(nil)

// Connect dials NATS, ensures the event stream exists, and returns a
// publisher bound to it.
func Connect(ctx context.Context, cfg *models.NATSConfig, log logger.Logger, opts ...nats.Option) (*NATSPublisher, error) {
	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("events: failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("events: failed to create JetStream context: %w", err)
	}

	stream := cfg.Stream
	if stream == "" {
		stream = defaultStream
	}

	subject := cfg.Subject
	if subject == "" {
		subject = defaultSubjectPrefix
	}

	if _, err = js.Stream(ctx, stream); err != nil {
		_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
			Name:     stream,
			Subjects: []string{subject + ".*"},
		})
		if err != nil {
			nc.Close()
			return nil, fmt.Errorf("events: failed to create stream %s: %w", stream, err)
		}
	}

	return &NATSPublisher{
		nc:      nc,
		js:      js,
		subject: subject,
		logger:  log.WithComponent("events"),
	}, nil
}

func (p *NATSPublisher) PublishSessionCompleted(ctx context.Context, data models.SessionCompletedEventData) error {
	return p.publish(ctx, TypeSessionCompleted, p.subject+".session", data.Timestamp, data)
}

func (p *NATSPublisher) PublishProfileOnboarded(ctx context.Context, data models.ProfileOnboardedEventData) error {
	return p.publish(ctx, TypeProfileOnboarded, p.subject+".profile", data.Timestamp, data)
}

func (p *NATSPublisher) Close() {
	p.nc.Close()
}

func (p *NATSPublisher) publish(ctx context.Context, eventType, subject string, at time.Time, data interface{}) error {
	event := models.CloudEvent{
		SpecVersion:     "1.0",
		ID:              uuid.NewString(),
		Source:          eventSource,
		Type:            eventType,
		DataContentType: "application/json",
		Subject:         subject,
		Time:            &at,
		Data:            data,
	}

	eventBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("events: failed to marshal %s: %w", eventType, err)
	}

	ack, err := p.js.Publish(ctx, subject, eventBytes)
	if err != nil {
		return fmt.Errorf("events: failed to publish %s: %w", eventType, err)
	}

	p.logger.Debug().
		Str("event_id", event.ID).
		Str("subject", subject).
		Uint64("seq", ack.Sequence).
		Msg("published event")

	return nil
}

// Noop discards all events. Used when NATS is not configured.
type Noop struct{}

var _ Publisher = Noop{}

func (Noop) PublishSessionCompleted(context.Context, models.SessionCompletedEventData) error {
	return nil
}

func (Noop) PublishProfileOnboarded(context.Context, models.ProfileOnboardedEventData) error {
	return nil
}

func (Noop) Close() {}
