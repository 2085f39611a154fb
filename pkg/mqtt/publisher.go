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

// Package mqtt mirrors applied snapshots to an MQTT broker.
package mqtt

import (
	"context"
	"errors"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/heptiolabs/healthcheck"
	"github.com/united-manufacturing-hub/daqs-exporter/pkg/backoff"
	"github.com/united-manufacturing-hub/daqs-exporter/pkg/constants"
	"github.com/united-manufacturing-hub/daqs-exporter/pkg/daqs"
	"github.com/united-manufacturing-hub/daqs-exporter/pkg/logger"
	"github.com/united-manufacturing-hub/daqs-exporter/pkg/metrics"
	"go.uber.org/zap"
)

var ErrNotConnected = errors.New("not connected to MQTT broker")

// DefaultPublishTimeout bounds the wait for the acknowledgements of one snapshot.
const DefaultPublishTimeout = 5 * time.Second

// disconnectQuiesce is the time in milliseconds given to in-flight messages on Close.
const disconnectQuiesce = 250

type Config struct {
	Broker         string
	ClientID       string
	Username       string
	Password       string
	TopicPrefix    string
	QoS            byte
	Retain         bool
	ConnectTimeout time.Duration
	// PublishTimeout is shared by all messages of one snapshot.
	PublishTimeout time.Duration
}

type Publisher struct {
	client paho.Client
	cfg    Config
	logger *zap.SugaredLogger
}

// NewPublisher creates an auto-reconnecting client. Connect must be called before publishing.
func NewPublisher(cfg Config) *Publisher {
	if cfg.ClientID == "" {
		cfg.ClientID = "daqs-exporter-" + uuid.NewString()
	}

	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = constants.DefaultMQTTTopicPrefix
	}

	log := logger.For(logger.ComponentMQTT)

	opts := paho.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetOnConnectHandler(func(paho.Client) {
		log.Infof("Connected to MQTT broker %s", cfg.Broker)
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		log.Warnf("Connection to MQTT broker lost: %v", err)
	})

	return NewPublisherWithClient(cfg, paho.NewClient(opts))
}

// NewPublisherWithClient wraps an existing client.
func NewPublisherWithClient(cfg Config, client paho.Client) *Publisher {
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = constants.DefaultMQTTTopicPrefix
	}

	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = DefaultPublishTimeout
	}

	return &Publisher{
		client: client,
		cfg:    cfg,
		logger: logger.For(logger.ComponentMQTT),
	}
}

// Connect retries the initial connection with exponential backoff until it
// succeeds, the context ends or the configured connect timeout passes.
func (p *Publisher) Connect(ctx context.Context) error {
	retry := backoff.DefaultConfig("mqtt connect", p.cfg.ConnectTimeout)

	return backoff.Retry(ctx, retry, p.logger, func() error {
		token := p.client.Connect()
		if !token.WaitTimeout(retry.MaxInterval) {
			return fmt.Errorf("connecting to %s timed out", p.cfg.Broker)
		}

		return token.Error()
	})
}

// Publish sends one message per module of the snapshot. All messages are
// handed to the client first, then their acknowledgements are awaited under a
// single PublishTimeout deadline.
func (p *Publisher) Publish(ctx context.Context, snapshot *daqs.Snapshot) error {
	if !p.client.IsConnected() {
		metrics.RecordMQTTPublish(ErrNotConnected)

		return ErrNotConnected
	}

	messages, err := BuildMessages(p.cfg.TopicPrefix, snapshot)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.PublishTimeout)
	defer cancel()

	tokens := make([]paho.Token, len(messages))
	for i, msg := range messages {
		tokens[i] = p.client.Publish(msg.Topic, p.cfg.QoS, p.cfg.Retain, msg.Payload)
	}

	var errs []error

	for i, token := range tokens {
		err := awaitToken(ctx, messages[i].Topic, token)
		metrics.RecordMQTTPublish(err)

		if err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func awaitToken(ctx context.Context, topic string, token paho.Token) error {
	select {
	case <-token.Done():
	default:
		select {
		case <-token.Done():
		case <-ctx.Done():
			return fmt.Errorf("publishing to %s: %w", topic, ctx.Err())
		}
	}

	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}

	return nil
}

// Check is a readiness check reporting the broker connection.
func (p *Publisher) Check() healthcheck.Check {
	return func() error {
		if p.client.IsConnected() {
			return nil
		}

		return ErrNotConnected
	}
}

// Close disconnects from the broker.
func (p *Publisher) Close() {
	p.client.Disconnect(disconnectQuiesce)
	p.logger.Info("Disconnected from MQTT broker")
}
