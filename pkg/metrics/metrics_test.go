package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsOptions(t *testing.T) {
	Convey("Given metrics options", t, func() {
		Convey("When creating options", func() {
			namespaceOpt := WithNamespace("test-namespace")
			subsystemOpt := WithSubsystem("test-subsystem")
			histogramBucketsOpt := WithHistogramBuckets([]float64{0.1, 0.5, 1.0})
			refreshIntervalOpt := WithRefreshInterval(5 * time.Second)

			Convey("Then they should be valid functions", func() {
				So(namespaceOpt, ShouldNotBeNil)
				So(subsystemOpt, ShouldNotBeNil)
				So(histogramBucketsOpt, ShouldNotBeNil)
				So(refreshIntervalOpt, ShouldNotBeNil)
			})
		})
	})
}

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then it should be created successfully", func() {
				So(manager, ShouldNotBeNil)
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test-namespace"),
				WithSubsystem("test-subsystem"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithMetricsEnabled(true),
				WithRefreshInterval(10*time.Second),
				WithCustomLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then it should be created successfully", func() {
				So(manager, ShouldNotBeNil)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given metrics recording", t, func() {
		Convey("When recording enforcement metrics", func() {
			Convey("Then it should record without panicking", func() {
				So(func() {
					RecordViolationRecorded("tab_switch", "medium")
					RecordViolationDuplicate()
					RecordStrike()
					RecordDisqualification()
					RecordSessionEnded()
					RecordLedgerAppendLatency(1.5)
				}, ShouldNotPanic)
			})
		})

		Convey("When recording activity pipeline metrics", func() {
			Convey("Then it should record without panicking", func() {
				So(func() {
					RecordActivityEvent("code_change")
					RecordAggregatorLatency(0.4)
					RecordStaleFeedServe()
					RecordFeedComputeLatency(12.0)
				}, ShouldNotPanic)
			})
		})

		Convey("When updating gauges", func() {
			Convey("Then it should update without panicking", func() {
				So(func() {
					UpdateQueueSize(10)
					UpdateQueueCapacity(100)
					UpdateQueueUtilization(0.1)
					UpdateWorkerCount(4)
					UpdateActiveSessions(3)
					UpdateTrackedTeams(2)
				}, ShouldNotPanic)
			})
		})

		Convey("When recording HTTP and error metrics", func() {
			Convey("Then it should record without panicking", func() {
				So(func() {
					RecordHTTPRequest("violations", "POST", "202")
					RecordHTTPRequestDuration("violations", "POST", "202", 3.2)
					RecordErrorByComponent("ledger", "duplicate")
					RecordErrorByType("client_error", "medium")
					RecordErrorByEndpoint("violations", "POST", "client_error")
					RecordErrorLatency("http", "client_error", 2.0)
				}, ShouldNotPanic)
			})
		})

		Convey("When recording system metrics", func() {
			Convey("Then it should record without panicking", func() {
				So(func() {
					UpdateSystemMemoryUsage(1024)
					UpdateSystemGoroutineCount(42)
					RecordSystemGCPauseTime(0.25)
				}, ShouldNotPanic)
			})
		})
	})
}

func TestGetRegistry(t *testing.T) {
	Convey("Given the metrics package", t, func() {
		Convey("When getting the registry", func() {
			registry := GetRegistry()

			Convey("Then it should not be nil", func() {
				So(registry, ShouldNotBeNil)
			})

			Convey("And it should be gatherable", func() {
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				So(families, ShouldNotBeNil)
			})
		})
	})
}
