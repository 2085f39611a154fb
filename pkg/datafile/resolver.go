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

// Package datafile finds the data file the producer is currently appending to.
package datafile

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/united-manufacturing-hub/daqs-exporter/pkg/backoff"
	"github.com/united-manufacturing-hub/daqs-exporter/pkg/constants"
	"github.com/united-manufacturing-hub/daqs-exporter/pkg/service/filesystem"
)

var ErrNoDataFile = errors.New("no data file found")

// File is a resolved data file.
type File struct {
	Path    string
	ModTime time.Time
}

// Newest returns the regular ".csv" file in dir with the latest modification time.
// Entries that vanish or cannot be inspected between listing and stat are skipped.
// On equal times the entry listed first wins. An unreadable directory or a
// directory without data files yields a permanent error.
func Newest(ctx context.Context, fs filesystem.Service, dir string) (File, error) {
	entries, err := fs.ReadDir(ctx, dir)
	if err != nil {
		if ctx.Err() != nil {
			return File{}, err
		}

		return File{}, backoff.NewPermanentError(fmt.Errorf("failed to list data directory: %w", err))
	}

	var newest File

	found := false

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), constants.DataFileExtension) {
			continue
		}

		path := filepath.Join(dir, entry.Name())

		info, err := fs.Stat(ctx, path)
		if err != nil {
			if ctx.Err() != nil {
				return File{}, ctx.Err()
			}

			continue
		}

		if !info.Mode().IsRegular() {
			continue
		}

		if !found || info.ModTime().After(newest.ModTime) {
			newest = File{Path: path, ModTime: info.ModTime()}
			found = true
		}
	}

	if !found {
		return File{}, backoff.NewPermanentError(fmt.Errorf("%w in %s", ErrNoDataFile, dir))
	}

	return newest, nil
}
