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
	"errors"
	"time"

	"github.com/jeghealth/devicescan/pkg/models"
)

// MultiProvider routes scan requests to per-radio providers. It is the
// Provider handed to the orchestrator when more than one radio is available.
type MultiProvider struct {
	providers map[models.ScanKind]Provider
}

var _ Provider = (*MultiProvider)(nil)

// NewMultiProvider builds a router over per-kind providers.
func NewMultiProvider(providers map[models.ScanKind]Provider) *MultiProvider {
	return &MultiProvider{providers: providers}
}

func (m *MultiProvider) Scan(ctx context.Context, kind models.ScanKind, duration time.Duration) (<-chan models.Sighting, error) {
	provider, ok := m.providers[kind]
	if !ok {
		return nil, ErrUnsupportedKind
	}

	return provider.Scan(ctx, kind, duration)
}

func (m *MultiProvider) Stop() error {
	var errs []error

	for _, provider := range m.providers {
		if err := provider.Stop(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
