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

import "fmt"

// ValidationError reports bad caller input. It is always returned
// synchronously, before any state is created.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError formats a ValidationError.
func NewValidationError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ConflictError reports that the requested state already exists. Exactly one
// of the Existing* fields is set depending on the operation.
type ConflictError struct {
	Message           string
	ExistingSessionID string
	ExistingProfileID string
}

func (e *ConflictError) Error() string {
	return e.Message
}

// ErrorResponse is the JSON error body returned by the API server.
type ErrorResponse struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// CapacityError reports that the process-wide concurrent-scan cap is reached.
type CapacityError struct {
	Limit int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("concurrent scan capacity reached (limit %d)", e.Limit)
}
