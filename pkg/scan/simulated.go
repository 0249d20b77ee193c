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

package scan

import (
	"context"
	"sync"
	"time"

	"github.com/jeghealth/devicescan/pkg/logger"
	"github.com/jeghealth/devicescan/pkg/models"
)

const defaultEmitInterval = 250 * time.Millisecond

// SimulatedProvider emits canned sightings for one radio kind, spaced over
// the scan window. It stands in for platform drivers in development and tests.
type SimulatedProvider struct {
	kind         models.ScanKind
	sightings    []models.Sighting
	emitInterval time.Duration

	// stop ends every scan in flight, not just the latest one.
	stop     chan struct{}
	stopOnce sync.Once

	logger logger.Logger
}

var _ Provider = (*SimulatedProvider)(nil)

// NewSimulatedProvider returns a provider for the given radio kind. A nil
// sightings slice uses the built-in fixtures for that kind.
func NewSimulatedProvider(kind models.ScanKind, sightings []models.Sighting, log logger.Logger) *SimulatedProvider {
	if sightings == nil {
		switch kind {
		case models.ScanKindBluetooth:
			sightings = DefaultBluetoothSightings()
		case models.ScanKindWiFi:
			sightings = DefaultWiFiSightings()
		}
	}

	return &SimulatedProvider{
		kind:         kind,
		sightings:    sightings,
		emitInterval: defaultEmitInterval,
		stop:         make(chan struct{}),
		logger:       log,
	}
}

func (p *SimulatedProvider) Scan(ctx context.Context, kind models.ScanKind, duration time.Duration) (<-chan models.Sighting, error) {
	if kind != p.kind {
		return nil, ErrUnsupportedKind
	}

	scanCtx, cancel := context.WithTimeout(ctx, duration)

	ch := make(chan models.Sighting, len(p.sightings))

	go func() {
		defer close(ch)
		defer cancel()

		p.logger.Debug().
			Str("kind", string(kind)).
			Dur("duration", duration).
			Int("fixtures", len(p.sightings)).
			Msg("simulated scan started")

		ticker := time.NewTicker(p.emitInterval)
		defer ticker.Stop()

		for _, s := range p.sightings {
			select {
			case <-scanCtx.Done():
				return
			case <-p.stop:
				return
			case <-ticker.C:
			}

			select {
			case <-scanCtx.Done():
				return
			case <-p.stop:
				return
			case ch <- s:
			}
		}
	}()

	return ch, nil
}

func (p *SimulatedProvider) Stop() error {
	p.stopOnce.Do(func() { close(p.stop) })

	return nil
}

func intPtr(v int) *int { return &v }

// DefaultBluetoothSightings mirrors typical nearby-device observations on
// the Bluetooth interface.
func DefaultBluetoothSightings() []models.Sighting {
	return []models.Sighting{
		{
			Name:              "John's iPhone",
			MACAddress:        "04:81:d4:12:34:56",
			BluetoothAddress:  "04:81:d4:12:34:56",
			SignalStrengthDBm: intPtr(-45),
			Manufacturer:      "Apple Inc.",
			ConnectionKind:    models.ConnectionBluetooth,
			DeviceTypeHint:    "IOS_PHONE",
			Extra: map[string]string{
				"bluetooth_class": "0x020420",
				"services":        "audio,input",
			},
		},
		{
			Name:              "Sarah's AirPods Pro",
			MACAddress:        "04:52:c7:ab:cd:ef",
			BluetoothAddress:  "04:52:c7:ab:cd:ef",
			SignalStrengthDBm: intPtr(-35),
			Manufacturer:      "Apple Inc.",
			ConnectionKind:    models.ConnectionBluetooth,
			DeviceTypeHint:    "IOS_AIRPODS",
			IsPaired:          true,
			Extra: map[string]string{
				"bluetooth_class": "0x240418",
				"services":        "audio",
			},
		},
		{
			Name:              "Apple Watch",
			MACAddress:        "08:74:02:11:22:33",
			BluetoothAddress:  "08:74:02:11:22:33",
			SignalStrengthDBm: intPtr(-50),
			Manufacturer:      "Apple Inc.",
			ConnectionKind:    models.ConnectionBluetooth,
			DeviceTypeHint:    "IOS_WATCH",
			Extra: map[string]string{
				"bluetooth_class": "0x020420",
				"services":        "health,fitness",
			},
		},
	}
}

// DefaultWiFiSightings mirrors typical nearby-device observations on the
// Wi-Fi interface, including a hidden/unnamed device.
func DefaultWiFiSightings() []models.Sighting {
	return []models.Sighting{
		{
			Name:              "Mike's iPad",
			MACAddress:        "0c:74:c2:44:55:66",
			SignalStrengthDBm: intPtr(-40),
			Manufacturer:      "Apple Inc.",
			ConnectionKind:    models.ConnectionWiFi,
			DeviceTypeHint:    "IOS_TABLET",
			Extra: map[string]string{
				"ssid":       "Home_Network",
				"frequency":  "2.4GHz",
				"encryption": "WPA2",
			},
		},
		{
			// Hidden device: no name, classified by address prefix only.
			MACAddress:        "04:f7:e4:77:88:99",
			SignalStrengthDBm: intPtr(-60),
			Manufacturer:      "Apple Inc.",
			ConnectionKind:    models.ConnectionWiFi,
			Extra: map[string]string{
				"frequency":  "5GHz",
				"encryption": "WPA3",
			},
		},
	}
}
