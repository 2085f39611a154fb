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

// Package daqs knows the column layout of the DAQS data files and turns their
// most recent record into a Snapshot of per-module readings.
package daqs

import (
	"fmt"
	"strconv"
)

// Fixed columns in front of the module groups.
const (
	TimestampColumn = 1
	PrefixWidth     = 3
	ModuleStride    = 12
)

// Column offsets inside one module group. Only voltage-in, temperature, RSSI
// and power are exported.
const (
	OffsetVoltageIn   = 0
	OffsetCurrentIn   = 1
	OffsetTemperature = 2
	OffsetPWM         = 3
	OffsetStatus      = 4
	OffsetFlags       = 5
	OffsetRSSI        = 6
	OffsetBaseRSSI    = 7
	OffsetID          = 8
	OffsetVoltageOut  = 9
	OffsetDetails     = 10
	OffsetPower       = 11
)

// Quantity is one exported per-module measurement.
type Quantity int

const (
	QuantityVoltage Quantity = iota
	QuantityRSSI
	QuantityPower
	QuantityTemperature

	quantityCount
)

// Quantities lists every exported quantity in a stable order.
var Quantities = [quantityCount]Quantity{QuantityVoltage, QuantityRSSI, QuantityPower, QuantityTemperature}

var quantityOffsets = [quantityCount]int{
	QuantityVoltage:     OffsetVoltageIn,
	QuantityRSSI:        OffsetRSSI,
	QuantityPower:       OffsetPower,
	QuantityTemperature: OffsetTemperature,
}

var quantityNames = [quantityCount]string{
	QuantityVoltage:     "volts",
	QuantityRSSI:        "rssi",
	QuantityPower:       "power",
	QuantityTemperature: "temp",
}

// Offset returns the column offset of q relative to the start of a module group.
func (q Quantity) Offset() int {
	return quantityOffsets[q]
}

// String returns the short name used in metric names and MQTT payloads.
func (q Quantity) String() string {
	if q < 0 || q >= quantityCount {
		return "unknown"
	}

	return quantityNames[q]
}

// ModuleCount returns how many complete module groups fit into a header of the given width.
// Trailing columns that do not fill a whole group are ignored.
func ModuleCount(headerWidth int) (int, error) {
	if headerWidth < PrefixWidth {
		return 0, fmt.Errorf("%w: %d columns, need at least %d", ErrHeaderTooNarrow, headerWidth, PrefixWidth)
	}

	return (headerWidth - PrefixWidth) / ModuleStride, nil
}

// Column returns the absolute column of quantity q for the zero-based module index.
func Column(module int, q Quantity) int {
	return PrefixWidth + ModuleStride*module + q.Offset()
}

// Label returns the gauge label of the zero-based module index, e.g. "A1" for 0.
func Label(module int) string {
	return "A" + strconv.Itoa(module+1)
}
