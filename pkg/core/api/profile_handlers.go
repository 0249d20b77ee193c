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
	"github.com/jeghealth/devicescan/pkg/onboarding"
)

func (s *APIServer) createProfile(w http.ResponseWriter, r *http.Request) {
	owner := ownerFrom(r)
	if owner == "" {
		writeError(w, "X-User-ID header is required", http.StatusBadRequest)
		return
	}

	var req onboarding.CreateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	profile, err := s.onboarding.CreateProfile(r.Context(), owner, req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	s.encodeJSONResponse(w, http.StatusCreated, profile)
}

func (s *APIServer) registerProfile(w http.ResponseWriter, r *http.Request) {
	owner := ownerFrom(r)
	if owner == "" {
		writeError(w, "X-User-ID header is required", http.StatusBadRequest)
		return
	}

	var req onboarding.RegisterProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	profile, err := s.onboarding.RegisterProfile(r.Context(), owner, req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	s.encodeJSONResponse(w, http.StatusCreated, profile)
}

func (s *APIServer) listProfiles(w http.ResponseWriter, r *http.Request) {
	owner := ownerFrom(r)
	if owner == "" {
		writeError(w, "X-User-ID header is required", http.StatusBadRequest)
		return
	}

	status := models.ProfileStatus(r.URL.Query().Get("status"))

	profiles, err := s.onboarding.ListProfiles(r.Context(), owner, status)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	if profiles == nil {
		profiles = []*models.DeviceProfile{}
	}

	s.encodeJSONResponse(w, http.StatusOK, profiles)
}

func (s *APIServer) getProfile(w http.ResponseWriter, r *http.Request) {
	owner := ownerFrom(r)
	if owner == "" {
		writeError(w, "X-User-ID header is required", http.StatusBadRequest)
		return
	}

	profile, err := s.onboarding.GetProfile(r.Context(), owner, mux.Vars(r)["id"])
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	s.encodeJSONResponse(w, http.StatusOK, profile)
}

func (s *APIServer) updateProfile(w http.ResponseWriter, r *http.Request) {
	owner := ownerFrom(r)
	if owner == "" {
		writeError(w, "X-User-ID header is required", http.StatusBadRequest)
		return
	}

	var patch models.ProfilePatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	profile, err := s.onboarding.UpdateProfile(r.Context(), owner, mux.Vars(r)["id"], patch)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	s.encodeJSONResponse(w, http.StatusOK, profile)
}

func (s *APIServer) triggerSync(w http.ResponseWriter, r *http.Request) {
	owner := ownerFrom(r)
	if owner == "" {
		writeError(w, "X-User-ID header is required", http.StatusBadRequest)
		return
	}

	profile, err := s.onboarding.TriggerSync(r.Context(), owner, mux.Vars(r)["id"])
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	s.encodeJSONResponse(w, http.StatusOK, profile)
}

func (s *APIServer) ownerStats(w http.ResponseWriter, r *http.Request) {
	owner := ownerFrom(r)
	if owner == "" {
		writeError(w, "X-User-ID header is required", http.StatusBadRequest)
		return
	}

	stats, err := s.onboarding.OwnerStats(r.Context(), owner)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	s.encodeJSONResponse(w, http.StatusOK, stats)
}
