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

package config

import (
	"fmt"
	"time"

	"github.com/united-manufacturing-hub/umh-utils/env"
)

// Environment variables overriding the file configuration.
const (
	EnvConfigFile       = "CONFIG_FILE"
	EnvDataDir          = "DAQS_DATA_DIR"
	EnvBindIP           = "BIND_IP"
	EnvBindPort         = "BIND_PORT"
	EnvPollInterval     = "POLL_INTERVAL"
	EnvHealthPort       = "HEALTH_PORT"
	EnvMetricsNamespace = "METRICS_NAMESPACE"
	EnvSentryDSN        = "SENTRY_DSN"
	EnvMQTTBroker       = "MQTT_BROKER"
	EnvMQTTTopicPrefix  = "MQTT_TOPIC_PREFIX"
	EnvMQTTUsername     = "MQTT_USERNAME"
	EnvMQTTPassword     = "MQTT_PASSWORD"
	EnvMQTTClientID     = "MQTT_CLIENT_ID"
	EnvMQTTQoS          = "MQTT_QOS"
	EnvMQTTRetain       = "MQTT_RETAIN"
)

// ApplyEnv overrides cfg with every environment variable that is set.
func ApplyEnv(cfg *Config) error {
	var err error

	stringVars := []struct {
		target *string
		key    string
	}{
		{&cfg.DataDir, EnvDataDir},
		{&cfg.BindIP, EnvBindIP},
		{&cfg.Metrics.Namespace, EnvMetricsNamespace},
		{&cfg.Sentry.DSN, EnvSentryDSN},
		{&cfg.MQTT.Broker, EnvMQTTBroker},
		{&cfg.MQTT.TopicPrefix, EnvMQTTTopicPrefix},
		{&cfg.MQTT.Username, EnvMQTTUsername},
		{&cfg.MQTT.Password, EnvMQTTPassword},
		{&cfg.MQTT.ClientID, EnvMQTTClientID},
	}

	for _, s := range stringVars {
		if *s.target, err = env.GetAsString(s.key, false, *s.target); err != nil {
			return err
		}
	}

	intVars := []struct {
		target *int
		key    string
	}{
		{&cfg.BindPort, EnvBindPort},
		{&cfg.HealthPort, EnvHealthPort},
		{&cfg.MQTT.QoS, EnvMQTTQoS},
	}

	for _, i := range intVars {
		if *i.target, err = env.GetAsInt(i.key, false, *i.target); err != nil {
			return err
		}
	}

	if cfg.MQTT.Retain, err = env.GetAsBool(EnvMQTTRetain, false, cfg.MQTT.Retain); err != nil {
		return err
	}

	interval, err := env.GetAsString(EnvPollInterval, false, "")
	if err != nil {
		return err
	}

	if interval != "" {
		if cfg.PollInterval, err = time.ParseDuration(interval); err != nil {
			return fmt.Errorf("environment variable %s is not a duration: %w", EnvPollInterval, err)
		}
	}

	return nil
}

// ConfigFileFromEnv returns the config file path from the environment, if any.
func ConfigFileFromEnv() string {
	path, _ := env.GetAsString(EnvConfigFile, false, "") //nolint:errcheck // not required, cannot fail

	return path
}
