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

package starvationchecker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/united-manufacturing-hub/daqs-exporter/pkg/logger"
	"github.com/united-manufacturing-hub/daqs-exporter/pkg/metrics"
	"github.com/united-manufacturing-hub/daqs-exporter/pkg/sentry"
	"go.uber.org/zap"
)

// StarvationChecker watches the collector and warns when no record has been
// applied for longer than the threshold.
type StarvationChecker struct {
	lastPollTime        time.Time
	ctx                 context.Context //nolint:containedctx // lifecycle of the background goroutine
	logger              *zap.SugaredLogger
	cancel              context.CancelFunc
	wg                  sync.WaitGroup
	stopOnce            sync.Once
	starvationThreshold time.Duration
	checkInterval       time.Duration
	mutex               sync.RWMutex
}

// NewStarvationChecker starts the background check loop. The clock starts now,
// so a fresh process gets one threshold of grace before its first poll.
func NewStarvationChecker(threshold, checkInterval time.Duration) *StarvationChecker {
	ctx, cancel := context.WithCancel(context.Background())
	checker := &StarvationChecker{
		starvationThreshold: threshold,
		checkInterval:       checkInterval,
		lastPollTime:        time.Now(),
		logger:              logger.For(logger.ComponentStarvationChecker),
		ctx:                 ctx,
		cancel:              cancel,
	}

	checker.wg.Add(1)

	go checker.checkStarvationLoop()

	checker.logger.Infof("Starvation checker created with threshold %s", threshold)

	return checker
}

func (s *StarvationChecker) checkStarvationLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			since := time.Since(s.LastPollTime())

			if since > s.starvationThreshold {
				metrics.AddStarvationTime(s.checkInterval.Seconds())
				sentry.ReportIssuef(sentry.IssueTypeWarning, s.logger,
					"[StarvationChecker.checkStarvationLoop] No record applied for %.2f seconds", since.Seconds())
			} else {
				s.logger.Debugf("Collector is healthy, last record applied %.2f seconds ago", since.Seconds())
			}
		}
	}
}

// Stop terminates the background goroutine. It is safe to call more than once.
func (s *StarvationChecker) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Info("Stopping starvation checker")
		s.cancel()
		s.wg.Wait()
		s.logger.Info("Starvation checker stopped")
	})
}

// MarkPoll records that a record was just applied.
func (s *StarvationChecker) MarkPoll() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.lastPollTime = time.Now()
}

func (s *StarvationChecker) LastPollTime() time.Time {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.lastPollTime
}

// Check returns an error while the collector is starved. It backs the readiness probe.
func (s *StarvationChecker) Check() error {
	since := time.Since(s.LastPollTime())
	if since > s.starvationThreshold {
		return fmt.Errorf("no record applied for %s (threshold %s)", since.Truncate(time.Millisecond), s.starvationThreshold)
	}

	return nil
}
