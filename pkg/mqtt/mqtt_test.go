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

package mqtt_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/goccy/go-json"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/united-manufacturing-hub/daqs-exporter/pkg/daqs"
	"github.com/united-manufacturing-hub/daqs-exporter/pkg/mqtt"
)

type doneToken struct {
	err error
}

func (t *doneToken) Wait() bool                     { return true }
func (t *doneToken) WaitTimeout(time.Duration) bool { return true }
func (t *doneToken) Error() error                   { return t.err }
func (t *doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)

	return ch
}

// pendingToken is never acknowledged, like a QoS 1 publish while the client reconnects.
type pendingToken struct {
	done chan struct{}
}

func (t *pendingToken) Wait() bool                     { <-t.done; return true }
func (t *pendingToken) WaitTimeout(time.Duration) bool { return false }
func (t *pendingToken) Error() error                   { return nil }
func (t *pendingToken) Done() <-chan struct{}          { return t.done }

type published struct {
	topic   string
	qos     byte
	retain  bool
	payload []byte
}

// fakeClient implements the parts of paho.Client the publisher uses.
type fakeClient struct {
	paho.Client

	mu           sync.Mutex
	connected    atomic.Bool
	connectFails atomic.Int32
	connects     atomic.Int32
	publishErr   error
	unacked      bool
	messages     []published
	disconnected bool
}

func (c *fakeClient) IsConnected() bool {
	return c.connected.Load()
}

func (c *fakeClient) Connect() paho.Token {
	c.connects.Add(1)

	if c.connectFails.Load() > 0 {
		c.connectFails.Add(-1)

		return &doneToken{err: errors.New("connection refused")}
	}

	c.connected.Store(true)

	return &doneToken{}
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.messages = append(c.messages, published{topic: topic, qos: qos, retain: retained, payload: payload.([]byte)})

	if c.unacked {
		return &pendingToken{done: make(chan struct{})}
	}

	return &doneToken{err: c.publishErr}
}

func (c *fakeClient) Disconnect(uint) {
	c.connected.Store(false)
	c.disconnected = true
}

func exampleSnapshot() *daqs.Snapshot {
	return &daqs.Snapshot{
		Timestamp: 1700000000,
		Source:    "/mnt/ffs/data/daqs/today.csv",
		Modules: []daqs.ModuleReading{
			{Index: 0, Values: [4]daqs.Measurement{
				daqs.QuantityVoltage:     {Value: 12.1, Present: true},
				daqs.QuantityRSSI:        {Value: -60, Present: true},
				daqs.QuantityPower:       {Value: 150, Present: true},
				daqs.QuantityTemperature: {Value: 35.2, Present: true},
			}},
			{Index: 1, Values: [4]daqs.Measurement{
				daqs.QuantityVoltage: {Value: 11.9, Present: true},
			}},
		},
	}
}

var _ = Describe("Payload", func() {
	It("builds one message per module with only present quantities", func() {
		messages, err := mqtt.BuildMessages("daqs/modules/", exampleSnapshot())
		Expect(err).NotTo(HaveOccurred())
		Expect(messages).To(HaveLen(2))

		Expect(messages[0].Topic).To(Equal("daqs/modules/A1"))
		Expect(messages[1].Topic).To(Equal("daqs/modules/A2"))

		var first map[string]interface{}
		Expect(json.Unmarshal(messages[0].Payload, &first)).To(Succeed())
		Expect(first).To(HaveKeyWithValue("module", "A1"))
		Expect(first).To(HaveKeyWithValue("volts", 12.1))
		Expect(first).To(HaveKeyWithValue("rssi", -60.0))
		Expect(first).To(HaveKeyWithValue("power", 150.0))
		Expect(first).To(HaveKeyWithValue("temp", 35.2))
		Expect(first).To(HaveKeyWithValue("timestamp", 1700000000.0))

		var second map[string]interface{}
		Expect(json.Unmarshal(messages[1].Payload, &second)).To(Succeed())
		Expect(second).To(HaveKeyWithValue("volts", 11.9))
		Expect(second).NotTo(HaveKey("rssi"))
		Expect(second).NotTo(HaveKey("power"))
		Expect(second).NotTo(HaveKey("temp"))
	})

	It("keeps a zero reading distinct from an absent one", func() {
		snapshot := &daqs.Snapshot{Modules: []daqs.ModuleReading{{Values: [4]daqs.Measurement{
			daqs.QuantityPower: {Value: 0, Present: true},
		}}}}

		payload := mqtt.NewModulePayload(snapshot, snapshot.Modules[0])
		Expect(payload.Power).NotTo(BeNil())
		Expect(*payload.Power).To(BeZero())
		Expect(payload.Volts).To(BeNil())
	})
})

var _ = Describe("Publisher", func() {
	var (
		client    *fakeClient
		publisher *mqtt.Publisher
		ctx       context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		client = &fakeClient{}
		publisher = mqtt.NewPublisherWithClient(mqtt.Config{
			Broker:         "tcp://localhost:1883",
			QoS:            1,
			Retain:         true,
			ConnectTimeout: 5 * time.Second,
		}, client)
	})

	It("retries the initial connect", func() {
		client.connectFails.Store(2)

		Expect(publisher.Connect(ctx)).To(Succeed())
		Expect(client.connects.Load()).To(BeEquivalentTo(3))
		Expect(publisher.Check()()).To(Succeed())
	})

	It("gives up when the context ends", func() {
		client.connectFails.Store(1000)
		short, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
		defer cancel()

		Expect(publisher.Connect(short)).To(MatchError(context.DeadlineExceeded))
	})

	It("refuses to publish while disconnected", func() {
		Expect(publisher.Publish(ctx, exampleSnapshot())).To(MatchError(mqtt.ErrNotConnected))
		Expect(publisher.Check()()).To(MatchError(mqtt.ErrNotConnected))
	})

	It("publishes every module with the configured qos and retain flag", func() {
		Expect(publisher.Connect(ctx)).To(Succeed())
		Expect(publisher.Publish(ctx, exampleSnapshot())).To(Succeed())

		Expect(client.messages).To(HaveLen(2))
		Expect(client.messages[0].topic).To(Equal("daqs/modules/A1"))
		Expect(client.messages[0].qos).To(BeEquivalentTo(1))
		Expect(client.messages[0].retain).To(BeTrue())
	})

	It("reports publish failures", func() {
		Expect(publisher.Connect(ctx)).To(Succeed())
		client.publishErr = errors.New("queue full")

		Expect(publisher.Publish(ctx, exampleSnapshot())).To(MatchError(ContainSubstring("queue full")))
	})

	It("bounds the wait for a whole snapshot by one deadline", func() {
		publisher = mqtt.NewPublisherWithClient(mqtt.Config{
			Broker:         "tcp://localhost:1883",
			QoS:            1,
			PublishTimeout: 100 * time.Millisecond,
		}, client)
		Expect(publisher.Connect(ctx)).To(Succeed())
		client.unacked = true

		snapshot := exampleSnapshot()
		snapshot.Modules = append(snapshot.Modules, daqs.ModuleReading{Index: 2, Values: [4]daqs.Measurement{
			daqs.QuantityPower: {Value: 90, Present: true},
		}})

		start := time.Now()
		err := publisher.Publish(ctx, snapshot)

		Expect(time.Since(start)).To(BeNumerically("<", 500*time.Millisecond))
		Expect(errors.Is(err, context.DeadlineExceeded)).To(BeTrue())
		Expect(err.Error()).To(ContainSubstring("daqs/modules/A3"))
		Expect(client.messages).To(HaveLen(3))
	})

	It("disconnects on close", func() {
		Expect(publisher.Connect(ctx)).To(Succeed())
		publisher.Close()

		Expect(client.disconnected).To(BeTrue())
		Expect(client.IsConnected()).To(BeFalse())
	})
})
