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

// Package api exposes the device discovery and onboarding pipeline over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/jeghealth/devicescan/pkg/db"
	"github.com/jeghealth/devicescan/pkg/discovery"
	"github.com/jeghealth/devicescan/pkg/httpmw"
	"github.com/jeghealth/devicescan/pkg/logger"
	"github.com/jeghealth/devicescan/pkg/models"
	"github.com/jeghealth/devicescan/pkg/onboarding"
)

const (
	defaultReadTimeout  = 10 * time.Second
	defaultWriteTimeout = 10 * time.Second
	defaultIdleTimeout  = 60 * time.Second

	userHeader = "X-User-ID"
)

// APIServer routes HTTP requests to the discovery and onboarding services.
type APIServer struct {
	router     *mux.Router
	discovery  *discovery.Service
	onboarding *onboarding.Service
	logger     logger.Logger
	httpServer *http.Server
}

// NewAPIServer wires the router. An empty apiKey disables authentication.
func NewAPIServer(disc *discovery.Service, onboard *onboarding.Service, apiKey string, log logger.Logger) *APIServer {
	s := &APIServer{
		router:     mux.NewRouter(),
		discovery:  disc,
		onboarding: onboard,
		logger:     log.WithComponent("api"),
	}

	s.setupRoutes(apiKey)

	return s
}

func (s *APIServer) setupRoutes(apiKey string) {
	s.router.Use(httpmw.Common)
	s.router.Use(httpmw.RequestLogging(s.logger))

	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(httpmw.APIKey(apiKey))

	api.HandleFunc("/devices/scan", s.startScan).Methods(http.MethodPost)
	api.HandleFunc("/devices/scan/{id}", s.getSessionStatus).Methods(http.MethodGet)
	api.HandleFunc("/devices/scan/{id}/results", s.getSessionResults).Methods(http.MethodGet)
	api.HandleFunc("/devices/scan/{id}/devices", s.listDetectedDevices).Methods(http.MethodGet)

	api.HandleFunc("/devices/profiles", s.createProfile).Methods(http.MethodPost)
	api.HandleFunc("/devices/profiles", s.listProfiles).Methods(http.MethodGet)
	api.HandleFunc("/devices/profiles/register", s.registerProfile).Methods(http.MethodPost)
	api.HandleFunc("/devices/profiles/stats", s.ownerStats).Methods(http.MethodGet)
	api.HandleFunc("/devices/profiles/{id}", s.getProfile).Methods(http.MethodGet)
	api.HandleFunc("/devices/profiles/{id}", s.updateProfile).Methods(http.MethodPatch)
	api.HandleFunc("/devices/profiles/{id}/sync", s.triggerSync).Methods(http.MethodPost)
}

// Router exposes the configured handler, mainly for tests.
func (s *APIServer) Router() http.Handler {
	return s.router
}

// Start serves HTTP on addr until Shutdown is called.
func (s *APIServer) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
		IdleTimeout:  defaultIdleTimeout,
	}

	s.logger.Info().Str("addr", addr).Msg("API server listening")

	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *APIServer) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}

	return s.httpServer.Shutdown(ctx)
}

// ownerFrom extracts the calling user's identity. Authentication itself is an
// external collaborator; the gateway forwards the verified identity here.
func ownerFrom(r *http.Request) string {
	return r.Header.Get(userHeader)
}

func (s *APIServer) encodeJSONResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	errResponse := models.ErrorResponse{
		Message: message,
		Status:  statusCode,
	}

	if err := json.NewEncoder(w).Encode(errResponse); err != nil {
		http.Error(w, "Failed to encode error response", http.StatusInternalServerError)
	}
}

// writeServiceError maps service-layer errors onto HTTP statuses.
func (s *APIServer) writeServiceError(w http.ResponseWriter, err error) {
	var (
		validation *models.ValidationError
		conflict   *models.ConflictError
		capacity   *models.CapacityError
	)

	switch {
	case errors.As(err, &validation):
		writeError(w, validation.Message, http.StatusBadRequest)
	case errors.As(err, &conflict):
		s.encodeJSONResponse(w, http.StatusConflict, conflictResponse{
			Message:           conflict.Message,
			ExistingSessionID: conflict.ExistingSessionID,
			ExistingProfileID: conflict.ExistingProfileID,
			Status:            http.StatusConflict,
		})
	case errors.As(err, &capacity):
		writeError(w, capacity.Error(), http.StatusTooManyRequests)
	case errors.Is(err, db.ErrSessionNotFound),
		errors.Is(err, db.ErrDeviceNotFound),
		errors.Is(err, db.ErrProfileNotFound):
		writeError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, discovery.ErrSessionNotCompleted):
		writeError(w, err.Error(), http.StatusConflict)
	default:
		s.logger.Error().Err(err).Msg("internal error")
		writeError(w, "internal server error", http.StatusInternalServerError)
	}
}
