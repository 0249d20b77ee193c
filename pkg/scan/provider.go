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

// Package scan defines the radio scan provider SPI. Real Bluetooth/Wi-Fi
// drivers are supplied by the host platform; this package only fixes the
// contract and ships a simulated provider.
package scan

import (
	"context"
	"time"

	"github.com/jeghealth/devicescan/pkg/models"
)

// Provider runs one timed radio scan and streams raw sightings. The channel
// is closed when the scan window ends or the context is canceled. A Provider
// must support concurrent Scan calls for different sessions.
type Provider interface {
	Scan(ctx context.Context, kind models.ScanKind, duration time.Duration) (<-chan models.Sighting, error)
	Stop() error
}
