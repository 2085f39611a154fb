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
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/united-manufacturing-hub/daqs-exporter/pkg/daqs"
)

const (
	ModuleLabel    = "name"
	TimestampLabel = "local"
	// TimestampSource is the value of the timestamp label.
	TimestampSource = "cca"
)

var moduleHelp = map[daqs.Quantity]string{
	daqs.QuantityVoltage:     "Module voltage value in V",
	daqs.QuantityRSSI:        "Module signal strength value",
	daqs.QuantityPower:       "Module power value in W",
	daqs.QuantityTemperature: "Module temperature value in celsius",
}

// ModuleState holds the current-value gauges of every module on its own registry.
// Each set or delete is atomic per series; there is no transaction across series.
type ModuleState struct {
	registry  *prometheus.Registry
	families  map[daqs.Quantity]*prometheus.GaugeVec
	timestamp *prometheus.GaugeVec

	// mu guards modules, the module count of the last applied snapshot.
	mu      sync.Mutex
	modules int
}

// NewModuleState registers the module gauge families. An empty namespace keeps
// the bare names module_power, module_volts, module_rssi, module_temp and timestamp.
func NewModuleState(namespace string) *ModuleState {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	state := &ModuleState{
		registry: registry,
		families: make(map[daqs.Quantity]*prometheus.GaugeVec, len(daqs.Quantities)),
		timestamp: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "timestamp",
			Help:      "Timestamp of the dataset",
		}, []string{TimestampLabel}),
	}

	for _, q := range daqs.Quantities {
		state.families[q] = factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "module_" + q.String(),
			Help:      moduleHelp[q],
		}, []string{ModuleLabel})
	}

	return state
}

// Apply writes a snapshot: present values are set, absent ones removed, and
// modules beyond the snapshot's module count are dropped. Applying the same
// snapshot twice leaves the same state.
func (s *ModuleState) Apply(snapshot *daqs.Snapshot) {
	for _, module := range snapshot.Modules {
		for _, q := range daqs.Quantities {
			s.SetModuleValue(q, module.Index, module.Get(q))
		}
	}

	s.mu.Lock()
	previous := s.modules
	s.modules = snapshot.ModuleCount()
	s.mu.Unlock()

	for i := snapshot.ModuleCount(); i < previous; i++ {
		s.RemoveModule(i)
	}

	s.timestamp.WithLabelValues(TimestampSource).Set(snapshot.Timestamp)
}

// SetModuleValue sets the gauge of one module quantity, or removes it when the measurement is absent.
func (s *ModuleState) SetModuleValue(q daqs.Quantity, module int, m daqs.Measurement) {
	family := s.families[q]
	label := daqs.Label(module)

	if !m.Present {
		family.DeleteLabelValues(label)

		return
	}

	family.WithLabelValues(label).Set(m.Value)
}

// RemoveModule removes every gauge of one module.
func (s *ModuleState) RemoveModule(module int) {
	label := daqs.Label(module)

	for _, family := range s.families {
		family.DeleteLabelValues(label)
	}
}

// Gatherer returns the registry holding the module gauges.
func (s *ModuleState) Gatherer() prometheus.Gatherer {
	return s.registry
}
