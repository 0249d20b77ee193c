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

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/jeghealth/devicescan/pkg/models"
)

func (s *APIServer) startScan(w http.ResponseWriter, r *http.Request) {
	owner := ownerFrom(r)
	if owner == "" {
		writeError(w, "X-User-ID header is required", http.StatusBadRequest)
		return
	}

	var req startScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	session, err := s.discovery.StartScan(r.Context(), owner, req.ScanKind, req.DurationSeconds)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	s.encodeJSONResponse(w, http.StatusAccepted, session)
}

func (s *APIServer) getSessionStatus(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.discovery.GetSessionStatus(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	s.encodeJSONResponse(w, http.StatusOK, snapshot)
}

func (s *APIServer) getSessionResults(w http.ResponseWriter, r *http.Request) {
	results, err := s.discovery.GetSessionResults(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	s.encodeJSONResponse(w, http.StatusOK, results)
}

func (s *APIServer) listDetectedDevices(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := &models.DetectedDeviceFilter{
		TargetVendorOnly: query.Get("target_vendor_only") == "true",
		DeviceType:       models.DeviceType(query.Get("device_type")),
		ConnectionKind:   models.ConnectionKind(query.Get("connection_kind")),
	}

	devices, err := s.discovery.ListDetectedDevices(r.Context(), mux.Vars(r)["id"], filter)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	if devices == nil {
		devices = []*models.DetectedDevice{}
	}

	s.encodeJSONResponse(w, http.StatusOK, devices)
}
