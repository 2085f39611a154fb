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

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

const (
	// Component labels.
	ComponentCollector  = "collector"
	ComponentResolver   = "resolver"
	ComponentParser     = "parser"
	ComponentResponder  = "responder"
	ComponentMQTTMirror = "mqtt_mirror"
	ComponentFilesystem = "filesystem"
)

// Poll results.
const (
	PollResultSuccess = "success"
	PollResultNoData  = "no_data"
	PollResultError   = "error"
	PollResultFatal   = "fatal"
)

var (
	// Namespace and subsystem for all self metrics.
	namespace = "daqs"
	subsystem = "exporter"

	// Registry holds the exporter's own metrics. It is kept apart from the module
	// gauges so those can be exposed under their bare names.
	Registry = prometheus.NewRegistry()

	factory = promauto.With(Registry)

	errorCounter = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "errors_total",
			Help:      "Total number of errors encountered by component",
		},
		[]string{"component", "instance"},
	)

	pollsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "polls_total",
			Help:      "Total number of collector iterations by result",
		},
		[]string{"result"},
	)

	pollDuration = factory.NewSummary(
		prometheus.SummaryOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "poll_duration_seconds",
			Help:      "Time taken to resolve, parse and apply the newest record",
			Objectives: map[float64]float64{
				0.5:  0.05,
				0.9:  0.01,
				0.99: 0.001,
			},
		},
	)

	lastSuccess = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last record applied to the module gauges",
		},
	)

	starvationSeconds = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "poll_starved_seconds_total",
			Help:      "Total seconds no record was applied beyond the staleness threshold",
		},
	)

	filesystemOpsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "filesystem_ops_total",
			Help:      "Total number of filesystem operations by operation and status",
		},
		[]string{"operation", "status"},
	)

	filesystemOpsDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "filesystem_op_duration_seconds",
			Help:      "Duration of filesystem operations",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		},
		[]string{"operation"},
	)

	mqttPublishes = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "mqtt_publishes_total",
			Help:      "Total number of module messages published to the MQTT broker by status",
		},
		[]string{"status"},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// IncErrorCountAndLog increments the error counter and logs the error at warn level.
func IncErrorCountAndLog(component, instance string, err error, logger *zap.SugaredLogger) {
	IncErrorCount(component, instance)

	if logger != nil {
		logger.Warnw("operation failed", "component", component, "instance", instance, "error", err)
	}
}

// IncErrorCount increments the error counter for a component.
func IncErrorCount(component, instance string) {
	errorCounter.WithLabelValues(component, instance).Inc()
}

// InitErrorCounter makes the counter visible with a zero value before the first error.
func InitErrorCounter(component, instance string) {
	errorCounter.WithLabelValues(component, instance)
}

// RecordPoll counts a finished collector iteration and observes its duration.
func RecordPoll(result string, duration time.Duration) {
	pollsTotal.WithLabelValues(result).Inc()
	pollDuration.Observe(duration.Seconds())
}

// SetLastSuccess records the time a record was applied.
func SetLastSuccess(t time.Time) {
	lastSuccess.Set(float64(t.UnixNano()) / float64(time.Second))
}

// AddStarvationTime adds starvation time.
func AddStarvationTime(seconds float64) {
	starvationSeconds.Add(seconds)
}

// RecordFilesystemOp records a filesystem operation metric.
func RecordFilesystemOp(operation string, err error, duration time.Duration) {
	status := "success"
	if err != nil {
		status = "error"
	}

	filesystemOpsTotal.WithLabelValues(operation, status).Inc()
	filesystemOpsDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordMQTTPublish counts a publish attempt of the MQTT mirror.
func RecordMQTTPublish(err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	mqttPublishes.WithLabelValues(status).Inc()
}
