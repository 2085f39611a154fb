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

package sentry

import (
	"runtime/debug"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"
)

// debounceWindow is the minimum time between two upstream events of the same level.
const debounceWindow = 2 * time.Hour

type debouncer struct {
	mu       sync.Mutex
	lastSent time.Time
}

// allow reports whether an event may be sent now and records the send.
func (d *debouncer) allow() bool {
	if !shouldDebounceErrors.Load() {
		return true
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.lastSent.IsZero() && time.Since(d.lastSent) < debounceWindow {
		return false
	}

	d.lastSent = time.Now()

	return true
}

var (
	errorDebouncer   debouncer
	warningDebouncer debouncer
)

// reportFatal logs the error with a stack trace and sends it to sentry, waiting for the flush.
func reportFatal(err error, log *zap.SugaredLogger, context map[string]interface{}) {
	log.Error("The exporter has encountered a fatal error and will now terminate.")
	log.Errorf("Error: %s", err)
	log.Debugf("Stack trace: %s", string(debug.Stack()))

	if !Enabled() {
		return
	}

	sendSentryEvent(createSentryEventWithContext(sentry.LevelFatal, err, context))
	sentry.Flush(5 * time.Second)
}

// reportError logs the error and sends it to sentry at most once per debounce window.
func reportError(err error, log *zap.SugaredLogger, context map[string]interface{}) {
	log.Error(err)

	if Enabled() && errorDebouncer.allow() {
		sendSentryEvent(createSentryEventWithContext(sentry.LevelError, err, context))
	}
}

// reportWarning logs the warning and sends it to sentry at most once per debounce window.
func reportWarning(err error, log *zap.SugaredLogger, context map[string]interface{}) {
	log.Warn(err)

	if Enabled() && warningDebouncer.allow() {
		sendSentryEvent(createSentryEventWithContext(sentry.LevelWarning, err, context))
	}
}
