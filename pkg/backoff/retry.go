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

package backoff

import (
	"context"
	"fmt"
	"time"

	cbackoff "github.com/cenkalti/backoff"
	"go.uber.org/zap"
)

// Config configures an exponential retry.
type Config struct {
	// Name is used in log lines.
	Name string
	// InitialInterval is the first delay between two attempts.
	InitialInterval time.Duration
	// MaxInterval caps the delay between two attempts.
	MaxInterval time.Duration
	// MaxElapsedTime stops retrying once exceeded. Zero retries until the context ends.
	MaxElapsedTime time.Duration
}

// DefaultConfig returns the retry settings used for network connects.
func DefaultConfig(name string, maxElapsed time.Duration) Config {
	return Config{
		Name:            name,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
		MaxElapsedTime:  maxElapsed,
	}
}

// Retry runs op with exponential backoff until it succeeds, returns a
// permanent error, the context is done or MaxElapsedTime is exceeded.
// Errors from op are logged at debug level. When the context ends first the
// returned error wraps ctx.Err(), even if its deadline falls inside a backoff
// interval.
func Retry(ctx context.Context, cfg Config, log *zap.SugaredLogger, op func() error) error {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	expBackoff := cbackoff.NewExponentialBackOff()
	expBackoff.InitialInterval = cfg.InitialInterval
	expBackoff.MaxInterval = cfg.MaxInterval
	expBackoff.MaxElapsedTime = cfg.MaxElapsedTime
	expBackoff.Reset()

	var lastErr error

	for attempt := 1; ; attempt++ {
		if ctx.Err() != nil {
			return cancelled(ctx, cfg.Name, lastErr)
		}

		err := op()
		if err == nil {
			return nil
		}

		if IsPermanentError(err) {
			return err
		}

		lastErr = err
		log.Debugf("%s attempt %d failed: %v", cfg.Name, attempt, err)

		next := expBackoff.NextBackOff()
		if next == cbackoff.Stop {
			return NewPermanentError(fmt.Errorf("%s gave up after %d attempts: %w", cfg.Name, attempt, err))
		}

		timer := time.NewTimer(next)
		select {
		case <-ctx.Done():
			timer.Stop()

			return cancelled(ctx, cfg.Name, lastErr)
		case <-timer.C:
		}
	}
}

func cancelled(ctx context.Context, name string, lastErr error) error {
	if lastErr == nil {
		return fmt.Errorf("%s: %w", name, ctx.Err())
	}

	return fmt.Errorf("%s: %w (last error: %v)", name, ctx.Err(), lastErr)
}
