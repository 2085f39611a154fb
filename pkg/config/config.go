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

// Package config assembles the exporter configuration from defaults, an
// optional YAML file, environment variables and the command line, in that order.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/united-manufacturing-hub/daqs-exporter/pkg/constants"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DataDir      string        `yaml:"data_dir"`
	BindIP       string        `yaml:"bind_ip"`
	PollInterval time.Duration `yaml:"poll_interval"`
	BindPort     int           `yaml:"bind_port"`
	HealthPort   int           `yaml:"health_port"`
	Verbose      bool          `yaml:"verbose"`

	Metrics MetricsConfig `yaml:"metrics"`
	Sentry  SentryConfig  `yaml:"sentry"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
}

type MetricsConfig struct {
	// Namespace prefixes the module gauge names. Empty keeps the bare names.
	Namespace string `yaml:"namespace"`
}

type SentryConfig struct {
	DSN string `yaml:"dsn"`
}

type MQTTConfig struct {
	// Broker enables the mirror, e.g. "tcp://localhost:1883".
	Broker         string        `yaml:"broker"`
	ClientID       string        `yaml:"client_id"`
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	TopicPrefix    string        `yaml:"topic_prefix"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	QoS            int           `yaml:"qos"`
	Retain         bool          `yaml:"retain"`
}

// Enabled reports whether the MQTT mirror is configured.
func (c MQTTConfig) Enabled() bool {
	return c.Broker != ""
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		DataDir:      constants.DefaultDataDir,
		BindIP:       constants.DefaultBindIP,
		BindPort:     constants.DefaultBindPort,
		PollInterval: constants.DefaultPollInterval,
		HealthPort:   constants.DefaultHealthPort,
		MQTT: MQTTConfig{
			TopicPrefix:    constants.DefaultMQTTTopicPrefix,
			ConnectTimeout: constants.DefaultMQTTConnectTimeoutSeconds * time.Second,
		},
	}
}

// LoadFile overlays the YAML file at path onto cfg. Keys missing in the file keep their value.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return nil
}

var namespacePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Validate rejects configurations the exporter cannot run with.
func (c Config) Validate() error {
	var errs []error

	if c.DataDir == "" {
		errs = append(errs, errors.New("data directory must not be empty"))
	}

	if net.ParseIP(c.BindIP) == nil {
		errs = append(errs, fmt.Errorf("invalid bind ip %q", c.BindIP))
	}

	if c.BindPort < 1 || c.BindPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid bind port %d", c.BindPort))
	}

	if c.HealthPort < 0 || c.HealthPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid health port %d", c.HealthPort))
	}

	if c.HealthPort != 0 && c.HealthPort == c.BindPort {
		errs = append(errs, fmt.Errorf("health port %d collides with the bind port", c.HealthPort))
	}

	if c.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("poll interval must be positive, got %s", c.PollInterval))
	}

	if c.Metrics.Namespace != "" && !namespacePattern.MatchString(c.Metrics.Namespace) {
		errs = append(errs, fmt.Errorf("invalid metrics namespace %q", c.Metrics.Namespace))
	}

	if c.MQTT.Enabled() {
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			errs = append(errs, fmt.Errorf("invalid mqtt qos %d", c.MQTT.QoS))
		}

		if c.MQTT.ConnectTimeout < 0 {
			errs = append(errs, fmt.Errorf("mqtt connect timeout must not be negative, got %s", c.MQTT.ConnectTimeout))
		}
	}

	return errors.Join(errs...)
}

// ListenAddr returns the address of the metrics endpoint.
func (c Config) ListenAddr() string {
	return net.JoinHostPort(c.BindIP, strconv.Itoa(c.BindPort))
}

// HealthAddr returns the address of the health endpoints.
func (c Config) HealthAddr() string {
	return net.JoinHostPort(c.BindIP, strconv.Itoa(c.HealthPort))
}

// StalenessThreshold is the time without an applied record after which the exporter is not ready.
func (c Config) StalenessThreshold() time.Duration {
	return constants.StalenessIntervals * c.PollInterval
}
