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

// devicescan runs the device discovery and onboarding service: timed
// Bluetooth/Wi-Fi scans, sighting classification, and device profile
// management over an HTTP API.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jeghealth/devicescan/pkg/classify"
	"github.com/jeghealth/devicescan/pkg/config"
	"github.com/jeghealth/devicescan/pkg/core/api"
	"github.com/jeghealth/devicescan/pkg/db"
	"github.com/jeghealth/devicescan/pkg/discovery"
	"github.com/jeghealth/devicescan/pkg/events"
	"github.com/jeghealth/devicescan/pkg/logger"
	"github.com/jeghealth/devicescan/pkg/models"
	"github.com/jeghealth/devicescan/pkg/onboarding"
	"github.com/jeghealth/devicescan/pkg/registry"
	"github.com/jeghealth/devicescan/pkg/scan"
)

const shutdownTimeout = 30 * time.Second

func main() {
	configPath := flag.String("config", "", "path to the service configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		os.Stderr.WriteString("devicescan: " + err.Error() + "\n")
		os.Exit(1)
	}

	log, err := logger.New(&logger.Config{Level: cfg.LogLevel, Debug: cfg.Debug})
	if err != nil {
		os.Stderr.WriteString("devicescan: invalid log config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("devicescan failed")
	}
}

func run(cfg *models.ServiceConfig, log logger.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	publisher, err := openPublisher(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer publisher.Close()

	classifier, err := buildClassifier(cfg, log)
	if err != nil {
		return err
	}

	provider := scan.NewMultiProvider(map[models.ScanKind]scan.Provider{
		models.ScanKindBluetooth: scan.NewSimulatedProvider(models.ScanKindBluetooth, nil, log),
		models.ScanKindWiFi:      scan.NewSimulatedProvider(models.ScanKindWiFi, nil, log),
	})

	reg := registry.New(store, log)
	disc := discovery.New(store, reg, classifier, provider, publisher, cfg.Discovery, log)
	onboard := onboarding.New(store, publisher, log)

	recovered, err := disc.RecoverStaleSessions(ctx)
	if err != nil {
		return err
	}

	if recovered > 0 {
		log.Warn().Int("sessions", recovered).Msg("recovered stale scan sessions from previous run")
	}

	server := api.NewAPIServer(disc, onboard, cfg.APIKey, log)

	serveErr := make(chan error, 1)

	go func() {
		serveErr <- server.Start(cfg.ListenAddr)
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("HTTP shutdown incomplete")
	}

	if err := disc.Stop(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("scan shutdown incomplete")
	}

	return nil
}

// openStore connects to PostgreSQL when configured, otherwise falls back to
// the in-process store.
func openStore(ctx context.Context, cfg *models.ServiceConfig, log logger.Logger) (db.Service, error) {
	if cfg.Database == nil {
		log.Warn().Msg("no database configured, using in-memory store")
		return db.NewMemoryStore(), nil
	}

	return db.New(ctx, cfg.Database, log)
}

func openPublisher(ctx context.Context, cfg *models.ServiceConfig, log logger.Logger) (events.Publisher, error) {
	if cfg.NATS == nil {
		return events.Noop{}, nil
	}

	return events.Connect(ctx, cfg.NATS, log)
}

func buildClassifier(cfg *models.ServiceConfig, log logger.Logger) (*classify.Classifier, error) {
	if cfg.RulesetFile == "" {
		return classify.New(nil), nil
	}

	rs, err := classify.LoadRuleset(cfg.RulesetFile)
	if err != nil {
		return nil, err
	}

	log.Info().Str("version", rs.Version).Msg("loaded classification ruleset")

	return classify.New(rs), nil
}
