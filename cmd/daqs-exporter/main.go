// Copyright 2025 UMH Systems GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/united-manufacturing-hub/daqs-exporter/pkg/collector"
	"github.com/united-manufacturing-hub/daqs-exporter/pkg/config"
	"github.com/united-manufacturing-hub/daqs-exporter/pkg/constants"
	"github.com/united-manufacturing-hub/daqs-exporter/pkg/health"
	"github.com/united-manufacturing-hub/daqs-exporter/pkg/logger"
	"github.com/united-manufacturing-hub/daqs-exporter/pkg/metrics"
	"github.com/united-manufacturing-hub/daqs-exporter/pkg/mqtt"
	"github.com/united-manufacturing-hub/daqs-exporter/pkg/responder"
	"github.com/united-manufacturing-hub/daqs-exporter/pkg/sentry"
	"github.com/united-manufacturing-hub/daqs-exporter/pkg/service/filesystem"
	"github.com/united-manufacturing-hub/daqs-exporter/pkg/starvationchecker"
	"github.com/united-manufacturing-hub/daqs-exporter/pkg/version"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Initialize the global logger first thing
	logger.Initialize()
	defer logger.Sync() //nolint:errcheck // nothing left to report to

	log := logger.For(logger.ComponentCore)

	cfg, err := config.Load(os.Args[1:], os.Stderr)
	if err != nil {
		if config.IsHelp(err) {
			return 0
		}

		log.Errorf("Failed to load configuration: %v", err)

		return 2
	}

	if cfg.Verbose {
		logger.SetLevel(logger.DebugLevel)
	}

	sentry.InitSentry(cfg.Sentry.DSN, version.GetAppVersion(), true)

	if sentry.Enabled() {
		logger.WrapCore(func(core zapcore.Core) zapcore.Core {
			return sentry.NewSentryHook(core)
		})

		log = logger.For(logger.ComponentCore)
	}

	log.Infof("Starting daqs-exporter %s", version.GetAppVersion())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	state := metrics.NewModuleState(cfg.Metrics.Namespace)

	checker := starvationchecker.NewStarvationChecker(cfg.StalenessThreshold(), constants.StarvationCheckInterval)
	defer checker.Stop()

	opts := []collector.Option{
		collector.WithInterval(cfg.PollInterval),
		collector.WithPollObserver(checker),
	}

	var healthServer *health.Server
	if cfg.HealthPort != 0 {
		healthServer = health.Setup(cfg.HealthAddr())
		healthServer.AddReadinessChecker("poll-freshness", checker)
	}

	group, groupCtx := errgroup.WithContext(ctx)

	if cfg.MQTT.Enabled() {
		publisher := mqtt.NewPublisher(mqtt.Config{
			Broker:         cfg.MQTT.Broker,
			ClientID:       cfg.MQTT.ClientID,
			Username:       cfg.MQTT.Username,
			Password:       cfg.MQTT.Password,
			TopicPrefix:    cfg.MQTT.TopicPrefix,
			QoS:            byte(cfg.MQTT.QoS),
			Retain:         cfg.MQTT.Retain,
			ConnectTimeout: cfg.MQTT.ConnectTimeout,
			PublishTimeout: min(cfg.PollInterval, mqtt.DefaultPublishTimeout),
		})
		defer publisher.Close()

		opts = append(opts, collector.WithMirror(publisher))

		if healthServer != nil {
			healthServer.AddReadinessCheck("mqtt-connected", publisher.Check())
		}

		// A failed connect only disables mirroring.
		group.Go(func() error {
			if err := publisher.Connect(groupCtx); err != nil && groupCtx.Err() == nil {
				sentry.ReportIssuefWithContext(sentry.IssueTypeError, log,
					map[string]interface{}{"component": metrics.ComponentMQTTMirror, "operation": "connect"},
					"MQTT mirror could not connect to %s: %v", cfg.MQTT.Broker, err)
			}

			return nil
		})
	}

	coll := collector.NewCollector(filesystem.NewDefaultService(), cfg.DataDir, state, opts...)
	group.Go(func() error {
		return coll.Run(groupCtx)
	})

	resp := responder.NewResponder(cfg.ListenAddr(), state.Gatherer(), metrics.Registry)
	group.Go(func() error {
		return resp.Start(groupCtx)
	})

	if healthServer != nil {
		group.Go(func() error {
			return healthServer.Start(groupCtx)
		})
	}

	if err := group.Wait(); err != nil {
		sentry.ReportIssue(err, sentry.IssueTypeFatal, log)

		return 1
	}

	log.Info("daqs-exporter stopped")

	return 0
}
