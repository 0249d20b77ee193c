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

package api

import "github.com/jeghealth/devicescan/pkg/models"

// startScanRequest is the POST /api/devices/scan body.
type startScanRequest struct {
	ScanKind        models.ScanKind `json:"scan_kind"`
	DurationSeconds int             `json:"duration_seconds"`
}

// conflictResponse extends the error body with the id of the state that
// already exists, so clients can resume instead of retrying.
type conflictResponse struct {
	Message           string `json:"message"`
	ExistingSessionID string `json:"existing_session_id,omitempty"`
	ExistingProfileID string `json:"existing_profile_id,omitempty"`
	Status            int    `json:"status"`
}
