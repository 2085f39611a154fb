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

package mqtt

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/united-manufacturing-hub/daqs-exporter/pkg/daqs"
)

// ModulePayload is the JSON body published for one module. Absent quantities are omitted.
type ModulePayload struct {
	Volts       *float64 `json:"volts,omitempty"`
	RSSI        *float64 `json:"rssi,omitempty"`
	Power       *float64 `json:"power,omitempty"`
	Temperature *float64 `json:"temp,omitempty"`
	Module      string   `json:"module"`
	Source      string   `json:"source,omitempty"`
	Timestamp   float64  `json:"timestamp"`
}

// Message is one payload ready to be published.
type Message struct {
	Topic   string
	Payload []byte
}

// NewModulePayload builds the payload of one module reading.
func NewModulePayload(snapshot *daqs.Snapshot, module daqs.ModuleReading) ModulePayload {
	payload := ModulePayload{
		Module:    module.Label(),
		Source:    snapshot.Source,
		Timestamp: snapshot.Timestamp,
	}

	for _, q := range daqs.Quantities {
		m := module.Get(q)
		if !m.Present {
			continue
		}

		value := m.Value

		switch q {
		case daqs.QuantityVoltage:
			payload.Volts = &value
		case daqs.QuantityRSSI:
			payload.RSSI = &value
		case daqs.QuantityPower:
			payload.Power = &value
		case daqs.QuantityTemperature:
			payload.Temperature = &value
		}
	}

	return payload
}

// Topic returns "<prefix>/<label>".
func Topic(prefix string, module daqs.ModuleReading) string {
	return strings.TrimSuffix(prefix, "/") + "/" + module.Label()
}

// BuildMessages encodes one message per module of the snapshot.
func BuildMessages(prefix string, snapshot *daqs.Snapshot) ([]Message, error) {
	messages := make([]Message, 0, snapshot.ModuleCount())

	for _, module := range snapshot.Modules {
		body, err := json.Marshal(NewModulePayload(snapshot, module))
		if err != nil {
			return nil, fmt.Errorf("failed to encode payload of module %s: %w", module.Label(), err)
		}

		messages = append(messages, Message{Topic: Topic(prefix, module), Payload: body})
	}

	return messages, nil
}
