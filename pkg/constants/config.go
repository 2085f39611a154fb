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

const (
	// DefaultDataDir is where the DAQS logger writes its rotating csv files.
	DefaultDataDir = "/mnt/ffs/data/daqs"

	// DefaultBindIP binds the metrics endpoint on all interfaces.
	DefaultBindIP = "0.0.0.0"

	// DefaultBindPort is the port of the metrics endpoint.
	DefaultBindPort = 9980

	// DefaultHealthPort is the port of the liveness/readiness endpoints, 0 disables them.
	DefaultHealthPort = 8086

	// DefaultMQTTTopicPrefix is the topic prefix used by the MQTT mirror.
	DefaultMQTTTopicPrefix = "daqs/modules"

	// DefaultMQTTConnectTimeoutSeconds bounds the initial MQTT connect retries.
	DefaultMQTTConnectTimeoutSeconds = 30

	// DefaultAppVersion is reported when the binary was built without a version.
	DefaultAppVersion = "0.0.0-dev"

	// DefaultDevelopmentEnvironment is the sentry environment for prerelease builds.
	DefaultDevelopmentEnvironment = "development"

	// DefaultProductionEnvironment is the sentry environment for release builds.
	DefaultProductionEnvironment = "production"
)
