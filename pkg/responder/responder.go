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

// Package responder serves the module gauges to scrape clients.
package responder

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/united-manufacturing-hub/daqs-exporter/pkg/constants"
	"github.com/united-manufacturing-hub/daqs-exporter/pkg/logger"
	"github.com/united-manufacturing-hub/daqs-exporter/pkg/metrics"
	"go.uber.org/zap"
)

// Handler answers every request, whatever its path or method, with the
// text exposition of all gatherers. Responses are never compressed.
func Handler(gatherers ...prometheus.Gatherer) http.Handler {
	return promhttp.InstrumentMetricHandler(
		metrics.Registry,
		promhttp.HandlerFor(prometheus.Gatherers(gatherers), promhttp.HandlerOpts{
			DisableCompression: true,
			ErrorHandling:      promhttp.ContinueOnError,
			ErrorLog:           zap.NewStdLog(logger.GetLogger().Named(logger.ComponentResponder)),
		}),
	)
}

type Responder struct {
	server *http.Server
	logger *zap.SugaredLogger

	mu       sync.Mutex
	listener net.Listener
}

// NewResponder creates a responder for addr ("ip:port") exposing the gatherers.
func NewResponder(addr string, gatherers ...prometheus.Gatherer) *Responder {
	return &Responder{
		server: &http.Server{
			Addr:              addr,
			Handler:           Handler(gatherers...),
			ReadHeaderTimeout: constants.ServerReadHeaderTimeout,
		},
		logger: logger.For(logger.ComponentResponder),
	}
}

// Start listens and serves until ctx is cancelled, then shuts down gracefully.
// A failing listener is returned to the caller.
func (r *Responder) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", r.server.Addr)
	if err != nil {
		metrics.IncErrorCount(metrics.ComponentResponder, r.server.Addr)

		return fmt.Errorf("failed to listen on %s: %w", r.server.Addr, err)
	}

	r.mu.Lock()
	r.listener = listener
	r.mu.Unlock()

	r.logger.Infof("Serving metrics on %s", listener.Addr())

	serveErr := make(chan error, 1)

	go func() {
		serveErr <- r.server.Serve(listener)
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		metrics.IncErrorCount(metrics.ComponentResponder, r.server.Addr)

		return fmt.Errorf("metrics server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ServerShutdownTimeout)
	defer cancel()

	if err := r.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown metrics server: %w", err)
	}

	r.logger.Info("Metrics server stopped")

	return nil
}

// Addr returns the address the responder listens on, or nil before Start.
func (r *Responder) Addr() net.Addr {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.listener == nil {
		return nil
	}

	return r.listener.Addr()
}
