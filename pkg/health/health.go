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

// Package health serves liveness and readiness probes on their own port.
package health

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/heptiolabs/healthcheck"
	"github.com/united-manufacturing-hub/daqs-exporter/pkg/constants"
	"github.com/united-manufacturing-hub/daqs-exporter/pkg/logger"
	"go.uber.org/zap"
)

// Checker is implemented by components that can report their readiness.
type Checker interface {
	Check() error
}

type Server struct {
	handler healthcheck.Handler
	server  *http.Server
	logger  *zap.SugaredLogger
}

// Setup creates the probe handler for addr with the goroutine liveness check.
// The endpoints are /live and /ready.
func Setup(addr string) *Server {
	handler := healthcheck.NewHandler()
	handler.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(constants.HealthGoroutineThreshold))

	return &Server{
		handler: handler,
		server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: constants.ServerReadHeaderTimeout,
		},
		logger: logger.For(logger.ComponentHealth),
	}
}

// AddReadinessCheck adds a named readiness check.
func (s *Server) AddReadinessCheck(name string, check healthcheck.Check) {
	s.handler.AddReadinessCheck(name, check)
}

// AddReadinessChecker adds a component implementing Checker.
func (s *Server) AddReadinessChecker(name string, checker Checker) {
	s.handler.AddReadinessCheck(name, checker.Check)
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start serves the probes until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.server.Addr, err)
	}

	s.logger.Infof("Serving health checks on %s", listener.Addr())

	serveErr := make(chan error, 1)

	go func() {
		serveErr <- s.server.Serve(listener)
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return fmt.Errorf("health server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ServerShutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown health server: %w", err)
	}

	return nil
}
