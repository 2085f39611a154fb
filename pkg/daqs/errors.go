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

import (
	"errors"
	"fmt"
)

var (
	ErrNoHeader         = errors.New("data file has no readable header")
	ErrHeaderTooNarrow  = errors.New("header is narrower than the fixed prefix")
	ErrNoDataRows       = errors.New("data file has no well-formed data rows")
	ErrMissingTimestamp = errors.New("record has no timestamp")
	// ErrUnterminatedQuote means a quoted field ran over several lines up to the end of
	// the file, so the rows after its start cannot be told apart.
	ErrUnterminatedQuote = errors.New("quoted field is not terminated before the end of the file")
)

// FieldError reports a field that is present but not a number.
type FieldError struct {
	Column int
	// Module is the zero-based module index, -1 for the timestamp column.
	Module int
	Value  string
	Err    error
}

func (e *FieldError) Error() string {
	if e.Module < 0 {
		return fmt.Sprintf("column %d (timestamp): invalid number %q: %v", e.Column, e.Value, e.Err)
	}

	return fmt.Sprintf("column %d (module %s): invalid number %q: %v", e.Column, Label(e.Module), e.Value, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}
