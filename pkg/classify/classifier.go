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

// Package classify maps raw sightings to target-vendor verdicts. Evaluation
// is deterministic and side-effect-free: signals are checked in a fixed
// order and the first positive match wins.
package classify

import (
	"strings"

	"github.com/jeghealth/devicescan/pkg/models"
)

// Confidence levels per signal, strongest evidence first.
const (
	ConfidenceManufacturer = 1.0
	ConfidenceNamePattern  = 0.8
	ConfidenceOUIPrefix    = 0.6
	ConfidenceTypeHint     = 0.5
)

// Signal names recorded on classifications for observability.
const (
	SignalManufacturer = "manufacturer"
	SignalNamePattern  = "name_pattern"
	SignalOUIPrefix    = "address_prefix"
	SignalTypeHint     = "type_hint"
)

// Classifier evaluates sightings against a prepared ruleset.
type Classifier struct {
	version        string
	manufacturers  []string
	namePatterns   []string
	ouiPrefixes    map[string]struct{}
	typeHintMarker string
}

// New prepares a classifier from a ruleset. A nil ruleset uses the default.
func New(rs *Ruleset) *Classifier {
	if rs == nil {
		rs = DefaultRuleset()
	}

	c := &Classifier{
		version:        rs.Version,
		manufacturers:  make([]string, 0, len(rs.Manufacturers)),
		namePatterns:   make([]string, 0, len(rs.NamePatterns)),
		ouiPrefixes:    make(map[string]struct{}, len(rs.AddressPrefixes)),
		typeHintMarker: rs.TypeHintMarker,
	}

	for _, m := range rs.Manufacturers {
		c.manufacturers = append(c.manufacturers, strings.ToLower(m))
	}

	for _, p := range rs.NamePatterns {
		c.namePatterns = append(c.namePatterns, strings.ToLower(p))
	}

	for _, prefix := range rs.AddressPrefixes {
		c.ouiPrefixes[strings.ToLower(prefix)] = struct{}{}
	}

	return c
}

// Version returns the ruleset version the classifier was built from.
func (c *Classifier) Version() string {
	return c.version
}

// Classify evaluates one sighting. Signals are ordered strongest-first;
// ties on device type resolve in the same order.
func (c *Classifier) Classify(s models.Sighting) models.Classification {
	if c.matchManufacturer(s.Manufacturer) {
		return models.Classification{
			IsTargetVendor: true,
			DeviceType:     c.deviceTypeFor(s),
			Confidence:     ConfidenceManufacturer,
			MatchedSignal:  SignalManufacturer,
		}
	}

	if c.matchNamePattern(s.Name) {
		return models.Classification{
			IsTargetVendor: true,
			DeviceType:     c.deviceTypeFor(s),
			Confidence:     ConfidenceNamePattern,
			MatchedSignal:  SignalNamePattern,
		}
	}

	if c.matchAddressPrefix(s.MACAddress) || c.matchAddressPrefix(s.BluetoothAddress) {
		return models.Classification{
			IsTargetVendor: true,
			DeviceType:     c.deviceTypeFor(s),
			Confidence:     ConfidenceOUIPrefix,
			MatchedSignal:  SignalOUIPrefix,
		}
	}

	if c.matchTypeHint(s.DeviceTypeHint) {
		return models.Classification{
			IsTargetVendor: true,
			DeviceType:     c.deviceTypeFor(s),
			Confidence:     ConfidenceTypeHint,
			MatchedSignal:  SignalTypeHint,
		}
	}

	return models.Classification{
		IsTargetVendor: false,
		DeviceType:     models.DeviceTypeNonVendor,
		Confidence:     0,
	}
}

func (c *Classifier) matchManufacturer(manufacturer string) bool {
	if manufacturer == "" {
		return false
	}

	lower := strings.ToLower(manufacturer)

	for _, m := range c.manufacturers {
		if strings.Contains(lower, m) {
			return true
		}
	}

	return false
}

func (c *Classifier) matchNamePattern(name string) bool {
	if name == "" {
		return false
	}

	lower := strings.ToLower(name)

	for _, p := range c.namePatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}

	return false
}

func (c *Classifier) matchAddressPrefix(addr string) bool {
	prefix := ouiPrefix(addr)
	if prefix == "" {
		return false
	}

	_, ok := c.ouiPrefixes[prefix]

	return ok
}

func (c *Classifier) matchTypeHint(hint string) bool {
	if hint == "" || c.typeHintMarker == "" {
		return false
	}

	return strings.HasPrefix(strings.ToUpper(hint), c.typeHintMarker)
}

// deviceTypeFor assigns a product category from the same evidence, name
// first, then the provider hint.
func (c *Classifier) deviceTypeFor(s models.Sighting) models.DeviceType {
	name := strings.ToLower(s.Name)

	switch {
	case strings.Contains(name, "iphone") || strings.Contains(name, "ipod"):
		return models.DeviceTypePhone
	case strings.Contains(name, "ipad"):
		return models.DeviceTypeTablet
	case strings.Contains(name, "watch"):
		return models.DeviceTypeWatch
	case strings.Contains(name, "airpods"):
		return models.DeviceTypeAudio
	}

	switch strings.ToUpper(s.DeviceTypeHint) {
	case "IOS_PHONE":
		return models.DeviceTypePhone
	case "IOS_TABLET":
		return models.DeviceTypeTablet
	case "IOS_WATCH":
		return models.DeviceTypeWatch
	case "IOS_AIRPODS":
		return models.DeviceTypeAudio
	}

	return models.DeviceTypeUnknownVendor
}

// ouiPrefix extracts the vendor-identifying portion of a hardware address.
func ouiPrefix(addr string) string {
	if addr == "" {
		return ""
	}

	parts := strings.Split(strings.ToLower(addr), ":")
	if len(parts) < 3 {
		return ""
	}

	return strings.Join(parts[:3], ":")
}
