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

// Package collector periodically reads the newest record of the data directory
// into the module gauges.
package collector

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/united-manufacturing-hub/daqs-exporter/pkg/backoff"
	"github.com/united-manufacturing-hub/daqs-exporter/pkg/constants"
	"github.com/united-manufacturing-hub/daqs-exporter/pkg/daqs"
	"github.com/united-manufacturing-hub/daqs-exporter/pkg/datafile"
	"github.com/united-manufacturing-hub/daqs-exporter/pkg/logger"
	"github.com/united-manufacturing-hub/daqs-exporter/pkg/metrics"
	"github.com/united-manufacturing-hub/daqs-exporter/pkg/sentry"
	"github.com/united-manufacturing-hub/daqs-exporter/pkg/service/filesystem"
	"go.uber.org/zap"
)

// Poll stages, used as error context.
const (
	StageResolve = "resolve"
	StageRead    = "read"
	StageParse   = "parse"
)

// Mirror receives every applied snapshot.
type Mirror interface {
	Publish(ctx context.Context, snapshot *daqs.Snapshot) error
}

// PollObserver is notified after every applied snapshot.
type PollObserver interface {
	MarkPoll()
}

// PollError carries the stage and file of a failed iteration.
type PollError struct {
	Err   error
	Stage string
	File  string
}

func (e *PollError) Error() string {
	if e.File == "" {
		return fmt.Sprintf("%s: %v", e.Stage, e.Err)
	}

	return fmt.Sprintf("%s %s: %v", e.Stage, e.File, e.Err)
}

func (e *PollError) Unwrap() error {
	return e.Err
}

type Collector struct {
	fs       filesystem.Service
	state    *metrics.ModuleState
	mirror   Mirror
	observer PollObserver
	logger   *zap.SugaredLogger

	dataDir  string
	interval time.Duration

	// currentFile is only touched by the polling goroutine.
	currentFile string
}

type Option func(*Collector)

// WithInterval sets the delay between two iterations.
func WithInterval(interval time.Duration) Option {
	return func(c *Collector) {
		c.interval = interval
	}
}

func WithMirror(mirror Mirror) Option {
	return func(c *Collector) {
		c.mirror = mirror
	}
}

func WithPollObserver(observer PollObserver) Option {
	return func(c *Collector) {
		c.observer = observer
	}
}

func NewCollector(fs filesystem.Service, dataDir string, state *metrics.ModuleState, opts ...Option) *Collector {
	c := &Collector{
		fs:       fs,
		state:    state,
		dataDir:  dataDir,
		interval: constants.DefaultPollInterval,
		logger:   logger.For(logger.ComponentCollector),
	}

	for _, opt := range opts {
		opt(c)
	}

	for _, stage := range []string{StageResolve, StageRead, StageParse} {
		metrics.InitErrorCounter(stageComponent(stage), dataDir)
	}

	return c
}

// Run polls until the context is cancelled or a poll fails permanently. The
// interval is a fixed delay after each iteration, without backoff or jitter.
// A cancelled context ends Run with a nil error.
func (c *Collector) Run(ctx context.Context) error {
	c.logger.Infof("Collecting from %s every %s", c.dataDir, c.interval)

	for {
		err := c.Poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("Collector cancelled")

				return nil
			}

			if backoff.IsPermanentError(err) {
				return err
			}

			c.handleRecoverable(err)
		}

		select {
		case <-ctx.Done():
			c.logger.Info("Collector cancelled")

			return nil
		case <-time.After(c.interval):
		}
	}
}

// Poll runs one iteration: resolve the newest file, parse its last record and
// apply it. Failures leave the gauges untouched. The returned error is
// categorized: permanent when the directory has no usable data file, ignored
// when the file has no data rows yet, transient otherwise.
func (c *Collector) Poll(ctx context.Context) error {
	start := time.Now()

	timeout := c.interval
	if timeout < constants.MinPollTimeout {
		timeout = constants.MinPollTimeout
	}

	pollCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	file, err := datafile.Newest(pollCtx, c.fs, c.dataDir)
	if err != nil {
		pollErr := &PollError{Stage: StageResolve, Err: err}

		if backoff.IsPermanentError(err) {
			metrics.RecordPoll(metrics.PollResultFatal, time.Since(start))

			return backoff.NewPermanentError(pollErr)
		}

		metrics.RecordPoll(metrics.PollResultError, time.Since(start))

		return backoff.NewTransientError(pollErr)
	}

	c.trackRotation(file)

	data, err := c.fs.ReadFile(pollCtx, file.Path)
	if err != nil {
		metrics.RecordPoll(metrics.PollResultError, time.Since(start))

		return backoff.NewTransientError(&PollError{Stage: StageRead, File: file.Path, Err: err})
	}

	snapshot, err := daqs.ParseLastRecord(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, daqs.ErrNoDataRows) {
			c.logger.Debugf("No data rows in %s yet, keeping current values", file.Path)
			metrics.RecordPoll(metrics.PollResultNoData, time.Since(start))

			return backoff.NewIgnoredError(&PollError{Stage: StageParse, File: file.Path, Err: err})
		}

		metrics.RecordPoll(metrics.PollResultError, time.Since(start))

		return backoff.NewTransientError(&PollError{Stage: StageParse, File: file.Path, Err: err})
	}

	snapshot.Source = file.Path
	c.state.Apply(snapshot)

	metrics.SetLastSuccess(time.Now())
	metrics.RecordPoll(metrics.PollResultSuccess, time.Since(start))

	if c.observer != nil {
		c.observer.MarkPoll()
	}

	c.logger.Debugf("Applied record %.0f with %d modules from %s", snapshot.Timestamp, snapshot.ModuleCount(), file.Path)

	if c.mirror != nil {
		if err := c.mirror.Publish(ctx, snapshot); err != nil {
			metrics.IncErrorCountAndLog(metrics.ComponentMQTTMirror, "publish", err, c.logger)
		}
	}

	return nil
}

func (c *Collector) trackRotation(file datafile.File) {
	if file.Path == c.currentFile {
		return
	}

	if c.currentFile == "" {
		c.logger.Infof("Reading data file %s", file.Path)
	} else {
		c.logger.Infof("Data file rotated from %s to %s", c.currentFile, file.Path)
	}

	c.currentFile = file.Path
}

// handleRecoverable counts and reports a transient failure. Ignored errors are
// already logged by Poll.
func (c *Collector) handleRecoverable(err error) {
	if backoff.IsIgnoredError(err) {
		return
	}

	var pollErr *PollError
	if !errors.As(err, &pollErr) {
		metrics.IncErrorCountAndLog(metrics.ComponentCollector, c.dataDir, err, c.logger)

		return
	}

	metrics.IncErrorCount(stageComponent(pollErr.Stage), c.dataDir)
	sentry.ReportPollError(c.logger, sentry.IssueTypeWarning, pollErr.File, pollErr.Stage, pollErr)
}

// stageComponent names the component whose error counter a failed stage increments.
func stageComponent(stage string) string {
	switch stage {
	case StageResolve:
		return metrics.ComponentResolver
	case StageRead:
		return metrics.ComponentFilesystem
	case StageParse:
		return metrics.ComponentParser
	default:
		return metrics.ComponentCollector
	}
}
