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
	"fmt"
	"math"
	"strconv"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap/zapcore"
)

// FingerprintKeys are the field keys that affect Sentry grouping.
var FingerprintKeys = []string{"operation", "component", "data_file"}

// SentryHook wraps a zapcore.Core and forwards Warn and Error entries to sentry.
type SentryHook struct {
	zapcore.Core

	// fields were added with With and are merged into every captured entry.
	fields []zapcore.Field
}

func NewSentryHook(core zapcore.Core) *SentryHook {
	return &SentryHook{Core: core}
}

func (h *SentryHook) With(fields []zapcore.Field) zapcore.Core {
	merged := make([]zapcore.Field, 0, len(h.fields)+len(fields))
	merged = append(merged, h.fields...)
	merged = append(merged, fields...)

	return &SentryHook{Core: h.Core.With(fields), fields: merged}
}

func (h *SentryHook) Check(entry zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if h.Enabled(entry.Level) {
		return ce.AddCore(entry, h)
	}

	return ce
}

// Write delegates to the wrapped core and captures Warn and above asynchronously.
func (h *SentryHook) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	if entry.Level >= zapcore.WarnLevel && Enabled() {
		all := make([]zapcore.Field, 0, len(h.fields)+len(fields))
		all = append(all, h.fields...)
		all = append(all, fields...)

		go captureEntry(entry, all)
	}

	return h.Core.Write(entry, fields)
}

func captureEntry(entry zapcore.Entry, fields []zapcore.Field) {
	tags := fieldsToTags(fields)
	level := zapLevelToSentry(entry.Level)

	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(level)

		fingerprint := []string{"{{ default }}", "level: " + getLevelString(level)}
		for _, key := range FingerprintKeys {
			if v, ok := tags[key]; ok {
				fingerprint = append(fingerprint, key+": "+v)
			}
		}

		scope.SetFingerprint(fingerprint)

		for k, v := range tags {
			scope.SetTag(k, v)
		}

		if entry.LoggerName != "" {
			scope.SetTag("logger", entry.LoggerName)
		}

		sentry.CaptureMessage(entry.Message)
	})
}

// fieldsToTags renders zap fields as strings usable as sentry tags.
func fieldsToTags(fields []zapcore.Field) map[string]string {
	tags := make(map[string]string, len(fields))

	for _, field := range fields {
		switch field.Type {
		case zapcore.StringType:
			tags[field.Key] = field.String
		case zapcore.Int64Type, zapcore.Int32Type, zapcore.Int16Type, zapcore.Int8Type, zapcore.DurationType:
			tags[field.Key] = strconv.FormatInt(field.Integer, 10)
		case zapcore.Uint64Type, zapcore.Uint32Type, zapcore.Uint16Type, zapcore.Uint8Type:
			tags[field.Key] = strconv.FormatUint(uint64(field.Integer), 10)
		case zapcore.BoolType:
			tags[field.Key] = strconv.FormatBool(field.Integer == 1)
		case zapcore.Float64Type:
			tags[field.Key] = strconv.FormatFloat(math.Float64frombits(uint64(field.Integer)), 'g', -1, 64)
		case zapcore.Float32Type:
			tags[field.Key] = strconv.FormatFloat(float64(math.Float32frombits(uint32(field.Integer))), 'g', -1, 32)
		case zapcore.ErrorType:
			if err, ok := field.Interface.(error); ok {
				tags[field.Key] = err.Error()
			}
		default:
			if field.Interface != nil {
				tags[field.Key] = fmt.Sprintf("%v", field.Interface)
			}
		}
	}

	return tags
}

func zapLevelToSentry(level zapcore.Level) sentry.Level {
	switch level {
	case zapcore.DebugLevel:
		return sentry.LevelDebug
	case zapcore.InfoLevel:
		return sentry.LevelInfo
	case zapcore.WarnLevel:
		return sentry.LevelWarning
	case zapcore.ErrorLevel:
		return sentry.LevelError
	default:
		return sentry.LevelFatal
	}
}
