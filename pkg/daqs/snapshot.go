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

package daqs

// Measurement is one optional numeric field. An empty field is absent, never zero.
type Measurement struct {
	Value   float64
	Present bool
}

// ModuleReading holds the exported quantities of one module.
type ModuleReading struct {
	Index  int
	Values [quantityCount]Measurement
}

func (m ModuleReading) Label() string {
	return Label(m.Index)
}

func (m ModuleReading) Get(q Quantity) Measurement {
	return m.Values[q]
}

// Snapshot is the parsed last record of a data file.
type Snapshot struct {
	// Timestamp is column 1 of the record as written by the producer.
	Timestamp   float64
	Modules     []ModuleReading
	Source      string
	HeaderWidth int
}

// ModuleCount returns the number of modules in the snapshot.
func (s *Snapshot) ModuleCount() int {
	return len(s.Modules)
}
