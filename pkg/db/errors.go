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

package db

import "errors"

var (

	// Operation errors.

	ErrFailedToQuery  = errors.New("failed to query")
	ErrFailedToScan   = errors.New("failed to scan")
	ErrFailedToInsert = errors.New("failed to insert")
	ErrFailedToUpdate = errors.New("failed to update")
	ErrFailedToInit   = errors.New("failed to initialize schema")

	// Not-found errors.

	ErrSessionNotFound = errors.New("scan session not found")
	ErrDeviceNotFound  = errors.New("detected device not found")
	ErrProfileNotFound = errors.New("device profile not found")

	// Validation errors.

	ErrSessionNil             = errors.New("scan session is nil")
	ErrDeviceNil              = errors.New("detected device is nil")
	ErrProfileNil             = errors.New("device profile is nil")
	ErrDeviceAddressRequired  = errors.New("detected device needs a mac or bluetooth address")
	ErrStableIdentifierNeeded = errors.New("device profile stable identifier is required")
)
