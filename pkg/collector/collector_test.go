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

package collector_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/united-manufacturing-hub/daqs-exporter/pkg/backoff"
	"github.com/united-manufacturing-hub/daqs-exporter/pkg/collector"
	"github.com/united-manufacturing-hub/daqs-exporter/pkg/daqs"
	"github.com/united-manufacturing-hub/daqs-exporter/pkg/datafile"
	"github.com/united-manufacturing-hub/daqs-exporter/pkg/metrics"
	"github.com/united-manufacturing-hub/daqs-exporter/pkg/service/filesystem"
)

const header27 = "time,ts,src," +
	"a1_vin,a1_iin,a1_temp,a1_pwm,a1_status,a1_flags,a1_rssi,a1_brssi,a1_id,a1_vout,a1_details,a1_pin," +
	"a2_vin,a2_iin,a2_temp,a2_pwm,a2_status,a2_flags,a2_rssi,a2_brssi,a2_id,a2_vout,a2_details,a2_pin"

// exampleFile has modules A1 (all quantities) and A2 (voltage only).
const exampleFile = header27 + "\n" +
	",1699999990,,12.0,,35.0,,,,-61,,,,,149.0,11.8,,,,,,,,,,,\n" +
	",1700000000,,12.1,,35.2,,,,-60,,,,,150.0,11.9,,,,,,,,,,,\n"

type recordingMirror struct {
	mu        sync.Mutex
	snapshots []*daqs.Snapshot
	err       error
}

func (m *recordingMirror) Publish(_ context.Context, snapshot *daqs.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.snapshots = append(m.snapshots, snapshot)

	return m.err
}

func (m *recordingMirror) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.snapshots)
}

type countingObserver struct {
	polls atomic.Int32
}

func (o *countingObserver) MarkPoll() {
	o.polls.Add(1)
}

func errorCount(component, instance string) float64 {
	families, err := metrics.Registry.Gather()
	Expect(err).NotTo(HaveOccurred())

	for _, family := range families {
		if family.GetName() != "daqs_exporter_errors_total" {
			continue
		}

		for _, m := range family.GetMetric() {
			labels := map[string]string{}
			for _, l := range m.GetLabel() {
				labels[l.GetName()] = l.GetValue()
			}

			if labels["component"] == component && labels["instance"] == instance {
				return m.GetCounter().GetValue()
			}
		}
	}

	return -1
}

func series(g prometheus.Gatherer) map[string]float64 {
	families, err := g.Gather()
	Expect(err).NotTo(HaveOccurred())

	out := make(map[string]float64)

	for _, family := range families {
		for _, m := range family.GetMetric() {
			labels := make([]string, 0, len(m.GetLabel()))
			for _, l := range m.GetLabel() {
				labels = append(labels, l.GetName()+"=\""+l.GetValue()+"\"")
			}

			out[family.GetName()+"{"+strings.Join(labels, ",")+"}"] = m.GetGauge().GetValue()
		}
	}

	return out
}

var _ = Describe("Collector", func() {
	var (
		ctx      context.Context
		fs       *filesystem.MockFileSystem
		state    *metrics.ModuleState
		mirror   *recordingMirror
		observer *countingObserver
		coll     *collector.Collector
		now      time.Time
	)

	BeforeEach(func() {
		ctx = context.Background()
		now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
		fs = filesystem.NewMockFileSystem().WithDir("/daqs", now)
		state = metrics.NewModuleState("")
		mirror = &recordingMirror{}
		observer = &countingObserver{}
		coll = collector.NewCollector(fs, "/daqs", state,
			collector.WithInterval(10*time.Millisecond),
			collector.WithMirror(mirror),
			collector.WithPollObserver(observer),
		)
	})

	Describe("Poll", func() {
		It("applies the last record of the newest file", func() {
			fs.WithFile("/daqs/today.csv", []byte(exampleFile), now)

			Expect(coll.Poll(ctx)).To(Succeed())

			Expect(series(state.Gatherer())).To(Equal(map[string]float64{
				`module_volts{name="A1"}`: 12.1,
				`module_temp{name="A1"}`:  35.2,
				`module_rssi{name="A1"}`:  -60,
				`module_power{name="A1"}`: 150,
				`module_volts{name="A2"}`: 11.9,
				`timestamp{local="cca"}`:  1700000000,
			}))
			Expect(observer.polls.Load()).To(BeEquivalentTo(1))
			Expect(mirror.Count()).To(Equal(1))
			Expect(mirror.snapshots[0].Source).To(Equal("/daqs/today.csv"))
		})

		It("follows the producer to a newer file", func() {
			fs.WithFile("/daqs/yesterday.csv", []byte(exampleFile), now.Add(-time.Hour))
			Expect(coll.Poll(ctx)).To(Succeed())

			fs.WithFile("/daqs/today.csv", []byte(header27+"\n,1700000600,,13.0,,,,,,,,,,,,,,,,,,,,,,,\n"), now)
			Expect(coll.Poll(ctx)).To(Succeed())

			result := series(state.Gatherer())
			Expect(result).To(HaveKeyWithValue(`module_volts{name="A1"}`, 13.0))
			Expect(result).To(HaveKeyWithValue(`timestamp{local="cca"}`, 1700000600.0))
			Expect(result).NotTo(HaveKey(`module_power{name="A1"}`))
			Expect(result).NotTo(HaveKey(`module_volts{name="A2"}`))
		})

		It("fails permanently when the directory has no data file", func() {
			err := coll.Poll(ctx)

			Expect(backoff.IsPermanentError(err)).To(BeTrue())
			Expect(errors.Is(err, datafile.ErrNoDataFile)).To(BeTrue())

			var pollErr *collector.PollError
			Expect(errors.As(err, &pollErr)).To(BeTrue())
			Expect(pollErr.Stage).To(Equal(collector.StageResolve))
		})

		It("keeps the previous values when the record is malformed", func() {
			fs.WithFile("/daqs/today.csv", []byte(exampleFile), now)
			Expect(coll.Poll(ctx)).To(Succeed())
			before := series(state.Gatherer())

			fs.WithFile("/daqs/today.csv", []byte(header27+"\n,1700000600,,oops,,,,,,,,,,,,,,,,,,,,,,,\n"), now.Add(time.Second))
			err := coll.Poll(ctx)

			Expect(backoff.IsTransientError(err)).To(BeTrue())
			var fieldErr *daqs.FieldError
			Expect(errors.As(err, &fieldErr)).To(BeTrue())
			Expect(series(state.Gatherer())).To(Equal(before))
			Expect(observer.polls.Load()).To(BeEquivalentTo(1))
		})

		It("keeps the previous values when the file cannot be read", func() {
			fs.WithFile("/daqs/today.csv", []byte(exampleFile), now)
			Expect(coll.Poll(ctx)).To(Succeed())
			before := series(state.Gatherer())

			fs.WithReadFileFunc(func(context.Context, string) ([]byte, error) {
				return nil, os.ErrPermission
			})
			err := coll.Poll(ctx)

			Expect(backoff.IsTransientError(err)).To(BeTrue())
			Expect(errors.Is(err, os.ErrPermission)).To(BeTrue())
			Expect(series(state.Gatherer())).To(Equal(before))
		})

		It("keeps the previous values when the new file has only a header", func() {
			fs.WithFile("/daqs/yesterday.csv", []byte(exampleFile), now.Add(-time.Hour))
			Expect(coll.Poll(ctx)).To(Succeed())
			before := series(state.Gatherer())

			fs.WithFile("/daqs/today.csv", []byte(header27+"\n"), now)
			err := coll.Poll(ctx)

			Expect(backoff.IsIgnoredError(err)).To(BeTrue())
			Expect(errors.Is(err, daqs.ErrNoDataRows)).To(BeTrue())
			Expect(series(state.Gatherer())).To(Equal(before))
		})

		It("treats a narrow header as recoverable", func() {
			fs.WithFile("/daqs/today.csv", []byte("a,b\n1,2\n"), now)

			err := coll.Poll(ctx)
			Expect(backoff.IsTransientError(err)).To(BeTrue())
			Expect(errors.Is(err, daqs.ErrHeaderTooNarrow)).To(BeTrue())
		})

		It("does not let mirror failures affect the gauges", func() {
			mirror.err = errors.New("broker gone")
			fs.WithFile("/daqs/today.csv", []byte(exampleFile), now)

			Expect(coll.Poll(ctx)).To(Succeed())
			Expect(series(state.Gatherer())).To(HaveKeyWithValue(`module_volts{name="A1"}`, 12.1))
		})
	})

	Describe("Run", func() {
		It("stops with a permanent error when no data file exists", func() {
			done := make(chan error, 1)
			go func() {
				done <- coll.Run(ctx)
			}()

			var err error
			Eventually(done, time.Second).Should(Receive(&err))
			Expect(backoff.IsPermanentError(err)).To(BeTrue())
		})

		It("keeps polling across recoverable errors", func() {
			fs.WithFile("/daqs/today.csv", []byte(exampleFile), now)

			var failures atomic.Int32
			fs.WithReadFileFunc(func(context.Context, string) ([]byte, error) {
				if failures.Add(1) <= 3 {
					return nil, errors.New("busy")
				}

				return []byte(exampleFile), nil
			})

			runCtx, cancel := context.WithCancel(ctx)
			defer cancel()

			done := make(chan error, 1)
			go func() {
				done <- coll.Run(runCtx)
			}()

			Eventually(func() map[string]float64 {
				return series(state.Gatherer())
			}, 2*time.Second, 10*time.Millisecond).Should(HaveKeyWithValue(`timestamp{local="cca"}`, 1700000000.0))

			cancel()
			Eventually(done, time.Second).Should(Receive(BeNil()))
		})

		It("counts recoverable errors against the failing stage", func() {
			fs.WithDir("/stages", now).WithFile("/stages/today.csv", []byte(header27+"\n,abc,,,,,,,,,,,,,,,,,,,,,,,,,\n"), now)
			staged := collector.NewCollector(fs, "/stages", state, collector.WithInterval(10*time.Millisecond))
			Expect(errorCount(metrics.ComponentParser, "/stages")).To(BeZero())
			Expect(errorCount(metrics.ComponentFilesystem, "/stages")).To(BeZero())

			runCtx, cancel := context.WithCancel(ctx)
			defer cancel()

			done := make(chan error, 1)
			go func() {
				done <- staged.Run(runCtx)
			}()

			Eventually(func() float64 {
				return errorCount(metrics.ComponentParser, "/stages")
			}, time.Second, 10*time.Millisecond).Should(BeNumerically(">=", 2))
			Expect(errorCount(metrics.ComponentFilesystem, "/stages")).To(BeZero())

			cancel()
			Eventually(done, time.Second).Should(Receive(BeNil()))
		})

		It("returns nil when cancelled", func() {
			fs.WithFile("/daqs/today.csv", []byte(exampleFile), now)

			runCtx, cancel := context.WithCancel(ctx)
			done := make(chan error, 1)
			go func() {
				done <- coll.Run(runCtx)
			}()

			Eventually(observer.polls.Load, time.Second).Should(BeNumerically(">=", 2))
			cancel()
			Eventually(done, time.Second).Should(Receive(BeNil()))
		})
	})

	Context("on a real directory", func() {
		It("exports the newest file written by the producer", func() {
			dir := GinkgoT().TempDir()
			path := filepath.Join(dir, "2024-06-01.csv")
			Expect(os.WriteFile(path, []byte(exampleFile), 0o600)).To(Succeed())
			Expect(os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600)).To(Succeed())

			onDisk := collector.NewCollector(filesystem.NewDefaultService(), dir, state)
			Expect(onDisk.Poll(ctx)).To(Succeed())
			Expect(series(state.Gatherer())).To(HaveKeyWithValue(`module_power{name="A1"}`, 150.0))
		})
	})
})
