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

package constants

import "time"

const (
	// DefaultPollInterval is the fixed delay between two collector iterations.
	// There is no backoff and no jitter on top of it.
	DefaultPollInterval = 10 * time.Second

	// StalenessIntervals is the number of poll intervals without an applied
	// record after which the exporter is considered stale.
	StalenessIntervals = 6

	// MinPollTimeout is the lower bound for the deadline of one iteration.
	// The deadline is otherwise the poll interval.
	MinPollTimeout = time.Second

	// StarvationCheckInterval is how often the staleness watchdog wakes up.
	StarvationCheckInterval = time.Second

	// ServerShutdownTimeout bounds the graceful shutdown of the HTTP servers.
	ServerShutdownTimeout = 3 * time.Second

	// ServerReadHeaderTimeout bounds how long a scrape client may take to send its headers.
	ServerReadHeaderTimeout = 5 * time.Second

	// HealthGoroutineThreshold fails the liveness probe when exceeded.
	HealthGoroutineThreshold = 10000
)
