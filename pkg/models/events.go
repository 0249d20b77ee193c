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

// CloudEvent follows the CloudEvents 1.0 envelope for published events.
type CloudEvent struct {
	SpecVersion     string      `json:"specversion"`
	ID              string      `json:"id"`
	Source          string      `json:"source"`
	Type            string      `json:"type"`
	DataContentType string      `json:"datacontenttype"`
	Subject         string      `json:"subject"`
	Time            *time.Time  `json:"time,omitempty"`
	Data            interface{} `json:"data,omitempty"`
}

// SessionCompletedEventData is the payload for a terminal scan session event.
type SessionCompletedEventData struct {
	SessionID          string        `json:"session_id"`
	Owner              string        `json:"owner"`
	Kind               ScanKind      `json:"scan_kind"`
	Status             SessionStatus `json:"status"`
	DevicesFound       int           `json:"devices_found"`
	TargetDevicesFound int           `json:"target_devices_found"`
	Timestamp          time.Time     `json:"timestamp"`
}

// ProfileOnboardedEventData is the payload emitted when a detected device is
// promoted to a device profile.
type ProfileOnboardedEventData struct {
	ProfileID              string    `json:"profile_id"`
	Owner                  string    `json:"owner"`
	StableIdentifier       string    `json:"stable_identifier"`
	SourceDetectedDeviceID string    `json:"source_detected_device_id,omitempty"`
	IsPrimary              bool      `json:"is_primary"`
	Timestamp              time.Time `json:"timestamp"`
}
