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

// Package models provides data models for the device discovery service.
package models

import "time"

// ScanKind selects which radio interfaces a scan session drives.
type ScanKind string

const (
	ScanKindBluetooth ScanKind = "BLUETOOTH"
	ScanKindWiFi      ScanKind = "WIFI"
	ScanKindCombined  ScanKind = "COMBINED"
)

// Valid reports whether the kind is a known scan kind.
func (k ScanKind) Valid() bool {
	switch k {
	case ScanKindBluetooth, ScanKindWiFi, ScanKindCombined:
		return true
	default:
		return false
	}
}

// Radios expands the kind into the concrete radio interfaces to drive.
func (k ScanKind) Radios() []ScanKind {
	if k == ScanKindCombined {
		return []ScanKind{ScanKindBluetooth, ScanKindWiFi}
	}

	return []ScanKind{k}
}

// SessionStatus is the scan session state machine:
// INITIATED -> SCANNING -> {COMPLETED, FAILED, TIMEOUT};
// INITIATED may also go straight to FAILED.
type SessionStatus string

const (
	SessionInitiated SessionStatus = "INITIATED"
	SessionScanning  SessionStatus = "SCANNING"
	SessionCompleted SessionStatus = "COMPLETED"
	SessionFailed    SessionStatus = "FAILED"
	SessionTimedOut  SessionStatus = "TIMEOUT"
)

// Terminal reports whether no further transition may leave this status.
func (s SessionStatus) Terminal() bool {
	switch s {
	case SessionCompleted, SessionFailed, SessionTimedOut:
		return true
	default:
		return false
	}
}

// ConnectionKind is the radio a device was (or devices were) observed on.
type ConnectionKind string

const (
	ConnectionBluetooth ConnectionKind = "BLUETOOTH"
	ConnectionWiFi      ConnectionKind = "WIFI"
	ConnectionBoth      ConnectionKind = "BOTH"
	ConnectionUnknown   ConnectionKind = "UNKNOWN"
)

// DeviceType is the classified product category of a sighting.
type DeviceType string

const (
	DeviceTypePhone         DeviceType = "PHONE"
	DeviceTypeTablet        DeviceType = "TABLET"
	DeviceTypeWatch         DeviceType = "WATCH"
	DeviceTypeAudio         DeviceType = "AUDIO_ACCESSORY"
	DeviceTypeUnknownVendor DeviceType = "UNKNOWN_VENDOR_DEVICE"
	DeviceTypeNonVendor     DeviceType = "NON_VENDOR"
)

// Sighting is one raw observation returned by a radio scan provider,
// before classification.
type Sighting struct {
	Name              string            `json:"name"`
	MACAddress        string            `json:"mac_address"`
	BluetoothAddress  string            `json:"bluetooth_address"`
	SignalStrengthDBm *int              `json:"signal_strength_dbm,omitempty"`
	Manufacturer      string            `json:"manufacturer"`
	ConnectionKind    ConnectionKind    `json:"connection_kind"`
	DeviceTypeHint    string            `json:"device_type_hint,omitempty"`
	IsPaired          bool              `json:"is_paired"`
	Extra             map[string]string `json:"extra,omitempty"`
}

// Classification is the classifier's verdict for one sighting.
type Classification struct {
	IsTargetVendor bool       `json:"is_target_vendor"`
	DeviceType     DeviceType `json:"device_type"`
	Confidence     float64    `json:"confidence"`
	MatchedSignal  string     `json:"matched_signal,omitempty"`
}

// ScanSession is one bounded-duration discovery attempt and its outcome.
type ScanSession struct {
	ID                 string          `json:"id"`
	Owner              string          `json:"owner"`
	Kind               ScanKind        `json:"scan_kind"`
	DurationSeconds    int             `json:"duration_seconds"`
	Status             SessionStatus   `json:"status"`
	DevicesFound       int             `json:"devices_found"`
	TargetDevicesFound int             `json:"target_devices_found"`
	StartedAt          time.Time       `json:"started_at"`
	CompletedAt        *time.Time      `json:"completed_at,omitempty"`
	ErrorMessage       string          `json:"error_message,omitempty"`
	Summary            *SessionSummary `json:"summary,omitempty"`
}

// SessionSummary is the structured result of a completed session.
type SessionSummary struct {
	TotalDevices        int            `json:"total_devices"`
	TargetVendorDevices int            `json:"target_vendor_devices"`
	ByConnectionKind    map[string]int `json:"by_connection_kind"`
	ByDeviceType        map[string]int `json:"by_device_type"`
	Kind                ScanKind       `json:"scan_kind"`
	DurationSeconds     int            `json:"duration_seconds"`
}

// SessionSnapshot is a point-in-time read of a session for status queries.
type SessionSnapshot struct {
	ScanSession

	ElapsedSeconds float64 `json:"elapsed_seconds"`
}

// DetectedDevice is one distinct hardware sighting within a session,
// deduplicated by (session, mac, bluetooth) address pair.
type DetectedDevice struct {
	ID                string            `json:"id"`
	SessionID         string            `json:"session_id"`
	Name              string            `json:"name"`
	MACAddress        string            `json:"mac_address"`
	BluetoothAddress  string            `json:"bluetooth_address"`
	SignalStrengthDBm *int              `json:"signal_strength_dbm,omitempty"`
	ConnectionKind    ConnectionKind    `json:"connection_kind"`
	Manufacturer      string            `json:"manufacturer,omitempty"`
	IsTargetVendor    bool              `json:"is_target_vendor"`
	Confidence        float64           `json:"confidence"`
	IsPaired          bool              `json:"is_paired"`
	FirstSeen         time.Time         `json:"first_seen"`
	LastSeen          time.Time         `json:"last_seen"`
	Extra             map[string]string `json:"extra,omitempty"`
}

// DetectedDeviceFilter narrows detected-device listings.
type DetectedDeviceFilter struct {
	TargetVendorOnly bool
	DeviceType       DeviceType
	ConnectionKind   ConnectionKind
}
