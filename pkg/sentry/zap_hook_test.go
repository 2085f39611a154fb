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

package sentry

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
)

var _ = Describe("SentryHook", func() {
	var (
		store  *eventStore
		logger *zap.Logger
	)

	BeforeEach(func() {
		store = &eventStore{}

		err := sentry.Init(sentry.ClientOptions{
			Dsn:       "https://test@sentry.io/123",
			Transport: &mockTransport{store: store},
		})
		Expect(err).NotTo(HaveOccurred())
		enabled.Store(true)
		EnableTestMode()

		core := zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(&discardWriter{}),
			zapcore.DebugLevel,
		)
		logger = zap.New(NewSentryHook(core))
	})

	AfterEach(func() {
		sentry.Flush(time.Second)
		enabled.Store(false)
		DisableTestMode()
	})

	It("captures error logs", func() {
		logger.Error("data file vanished")

		Eventually(store.Len).Should(Equal(1))
		Expect(store.GetAll()[0].Level).To(Equal(sentry.LevelError))
		Expect(store.GetAll()[0].Message).To(Equal("data file vanished"))
	})

	It("captures warnings", func() {
		logger.Warn("poll skipped")

		Eventually(store.Len).Should(Equal(1))
		Expect(store.GetAll()[0].Level).To(Equal(sentry.LevelWarning))
	})

	It("does not capture info or debug logs", func() {
		logger.Info("rotated")
		logger.Debug("polling")

		Consistently(store.Len, 200*time.Millisecond).Should(BeZero())
	})

	It("adds fields as tags and fingerprint keys", func() {
		logger.Error("poll failed",
			zap.String("operation", "parse"),
			zap.Int("modules", 2),
			zap.Bool("stale", true),
		)

		Eventually(store.Len).Should(Equal(1))
		event := store.GetAll()[0]
		Expect(event.Tags).To(HaveKeyWithValue("operation", "parse"))
		Expect(event.Tags).To(HaveKeyWithValue("modules", "2"))
		Expect(event.Tags).To(HaveKeyWithValue("stale", "true"))
		Expect(event.Fingerprint).To(ContainElement("operation: parse"))
	})

	It("keeps fields added with With", func() {
		logger.With(zap.String("component", "Collector")).Error("boom")

		Eventually(store.Len).Should(Equal(1))
		Expect(store.GetAll()[0].Tags).To(HaveKeyWithValue("component", "Collector"))
	})

	It("groups by fields added with With and lets call fields override them", func() {
		logger.With(zap.String("operation", "resolve"), zap.String("data_file", "old.csv")).
			Warn("stale", zap.String("data_file", "new.csv"))

		Eventually(store.Len).Should(Equal(1))
		event := store.GetAll()[0]
		Expect(event.Tags).To(HaveKeyWithValue("data_file", "new.csv"))
		Expect(event.Fingerprint).To(ContainElement("operation: resolve"))
		Expect(event.Fingerprint).To(ContainElement("data_file: new.csv"))
	})

	It("sends nothing while reporting is disabled", func() {
		enabled.Store(false)
		logger.Error("ignored")

		Consistently(store.Len, 200*time.Millisecond).Should(BeZero())
	})
})

var _ = Describe("ReportIssue", func() {
	var store *eventStore

	BeforeEach(func() {
		store = &eventStore{}

		err := sentry.Init(sentry.ClientOptions{
			Dsn:       "https://test@sentry.io/123",
			Transport: &mockTransport{store: store},
		})
		Expect(err).NotTo(HaveOccurred())
		enabled.Store(true)
	})

	AfterEach(func() {
		enabled.Store(false)
		DisableTestMode()
		errorDebouncer = debouncer{}
		warningDebouncer = debouncer{}
	})

	It("ignores nil errors", func() {
		ReportIssue(nil, IssueTypeError, zaptest.NewLogger(GinkgoT()).Sugar())

		Expect(store.Len()).To(BeZero())
	})

	It("attaches context as tags and extra data", func() {
		EnableTestMode()
		ReportIssueWithContext(errors.New("parse failed: row 3"), IssueTypeWarning, zaptest.NewLogger(GinkgoT()).Sugar(),
			map[string]interface{}{
				"operation": "parse",
				"modules":   []int{1, 2},
			})

		Expect(store.Len()).To(Equal(1))
		event := store.GetAll()[0]
		Expect(event.Tags).To(HaveKeyWithValue("operation", "parse"))
		Expect(event.Extra).To(HaveKey("modules"))
		Expect(event.Exception[0].Type).To(Equal("parse failed"))
		Expect(event.Fingerprint).To(ContainElement("operation: parse"))
	})

	It("formats the message and groups by component and operation", func() {
		EnableTestMode()
		ReportIssuefWithContext(IssueTypeError, zaptest.NewLogger(GinkgoT()).Sugar(),
			map[string]interface{}{"component": "mqtt_mirror", "operation": "connect"},
			"MQTT mirror could not connect to %s: %v", "tcp://broker:1883", errors.New("refused"))

		Expect(store.Len()).To(Equal(1))
		event := store.GetAll()[0]
		Expect(event.Level).To(Equal(sentry.LevelError))
		Expect(event.Exception[0].Value).To(ContainSubstring("tcp://broker:1883"))
		Expect(event.Tags).To(HaveKeyWithValue("component", "mqtt_mirror"))
		Expect(event.Fingerprint).To(ContainElements("component: mqtt_mirror", "operation: connect"))
	})

	It("debounces repeated errors", func() {
		log := zaptest.NewLogger(GinkgoT()).Sugar()
		ReportIssuef(IssueTypeError, log, "failure %d", 1)
		ReportIssuef(IssueTypeError, log, "failure %d", 2)

		Expect(store.Len()).To(Equal(1))
	})

	It("sends fatal issues with goroutine threads", func() {
		ReportPollError(zaptest.NewLogger(GinkgoT()).Sugar(), IssueTypeFatal, "/data/x.csv", "resolve", errors.New("no data file"))

		Expect(store.Len()).To(Equal(1))
		event := store.GetAll()[0]
		Expect(event.Level).To(Equal(sentry.LevelFatal))
		Expect(event.Threads).NotTo(BeEmpty())
		Expect(event.Tags).To(HaveKeyWithValue("data_file", "/data/x.csv"))
	})
})

var _ = Describe("getMeaningfulErrorTitle", func() {
	It("cuts at the first separator", func() {
		Expect(getMeaningfulErrorTitle(errors.New("open file: permission denied"))).To(Equal("open file"))
	})

	It("truncates long messages", func() {
		long := make([]byte, 150)
		for i := range long {
			long[i] = 'x'
		}

		title := getMeaningfulErrorTitle(errors.New(string(long)))
		Expect(title).To(HaveLen(100))
		Expect(title).To(HaveSuffix("..."))
	})
})

type eventStore struct {
	mu     sync.Mutex
	events []*sentry.Event
}

func (s *eventStore) Add(event *sentry.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, event)
}

func (s *eventStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.events)
}

func (s *eventStore) GetAll() []*sentry.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*sentry.Event, len(s.events))
	copy(out, s.events)

	return out
}

type mockTransport struct {
	store *eventStore
}

func (t *mockTransport) Configure(options sentry.ClientOptions)    {}
func (t *mockTransport) Flush(timeout time.Duration) bool          { return true }
func (t *mockTransport) FlushWithContext(ctx context.Context) bool { return true }
func (t *mockTransport) Close()                                    {}
func (t *mockTransport) SendEvent(event *sentry.Event) {
	t.store.Add(event)
}

type discardWriter struct{}

func (d *discardWriter) Write(p []byte) (int, error) { return len(p), nil }
func (d *discardWriter) Sync() error                 { return nil }
