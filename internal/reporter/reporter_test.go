package reporter_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/hackfest/proctor/internal/domain/model"
	"github.com/hackfest/proctor/internal/reporter"
	"github.com/hackfest/proctor/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

// scriptedTransport fails a fixed number of deliveries before
// succeeding, or always returns a fixed error.
type scriptedTransport struct {
	mu        sync.Mutex
	failures  int
	fixedErr  error
	delivered []model.ViolationEvent
	attempts  int
}

func (t *scriptedTransport) Deliver(ctx context.Context, event model.ViolationEvent) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.attempts++
	if t.fixedErr != nil {
		return t.fixedErr
	}
	if t.failures > 0 {
		t.failures--
		return reporter.ErrDeliveryFailed
	}
	t.delivered = append(t.delivered, event)
	return nil
}

func (t *scriptedTransport) deliveredCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.delivered)
}

func (t *scriptedTransport) attemptCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.attempts
}

func waitFor(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return cond()
}

func testViolation(id string) model.ViolationEvent {
	return model.ViolationEvent{
		EventID:   id,
		SessionID: "session-1",
		Type:      model.ViolationTabSwitch,
		Severity:  model.SeverityMedium,
		TS:        time.Now(),
	}
}

func TestReporter(t *testing.T) {
	if err := logger.Init(); err != nil {
		t.Fatalf("init logger: %v", err)
	}
	ctx := context.Background()

	Convey("Given a reporter with fast backoff", t, func() {
		newReporter := func(transport reporter.Transport) *reporter.Reporter {
			return reporter.New(transport,
				reporter.WithMaxAttempts(3),
				reporter.WithBackoff(time.Millisecond, 4*time.Millisecond),
			)
		}

		Convey("When delivery succeeds first try", func() {
			transport := &scriptedTransport{}
			r := newReporter(transport)

			r.Report(ctx, testViolation("e1"))
			r.Stop()

			Convey("Then the event is delivered once", func() {
				So(transport.deliveredCount(), ShouldEqual, 1)
				So(transport.attemptCount(), ShouldEqual, 1)
				So(r.PendingCount(), ShouldEqual, 0)
			})
		})

		Convey("When delivery fails transiently then recovers", func() {
			transport := &scriptedTransport{failures: 2}
			r := newReporter(transport)

			r.Report(ctx, testViolation("e1"))
			So(waitFor(time.Second, func() bool { return transport.deliveredCount() == 1 }), ShouldBeTrue)
			r.Stop()

			Convey("Then retries deliver the event", func() {
				So(transport.deliveredCount(), ShouldEqual, 1)
				So(transport.attemptCount(), ShouldEqual, 3)
				So(r.PendingCount(), ShouldEqual, 0)
			})
		})

		Convey("When the server rejects the event permanently", func() {
			transport := &scriptedTransport{fixedErr: reporter.ErrPermanent}
			r := newReporter(transport)

			r.Report(ctx, testViolation("e1"))
			r.Stop()

			Convey("Then it is dropped without retries or pending state", func() {
				So(transport.attemptCount(), ShouldEqual, 1)
				So(r.PendingCount(), ShouldEqual, 0)
			})
		})

		Convey("When every retry is exhausted", func() {
			transport := &scriptedTransport{fixedErr: reporter.ErrDeliveryFailed}
			r := newReporter(transport)

			r.Report(ctx, testViolation("e1"))
			So(waitFor(time.Second, func() bool { return r.PendingCount() == 1 }), ShouldBeTrue)
			r.Stop()

			Convey("Then the event is held for reconciliation", func() {
				So(transport.attemptCount(), ShouldEqual, 3)
				So(r.PendingCount(), ShouldEqual, 1)
			})

			Convey("And a later resubmission flushes it", func() {
				transport.mu.Lock()
				transport.fixedErr = nil
				transport.mu.Unlock()

				r.ResubmitPending(ctx)
				So(r.PendingCount(), ShouldEqual, 0)
				So(transport.deliveredCount(), ShouldEqual, 1)

				delivered := transport.delivered[0]
				So(delivered.PendingSync, ShouldBeTrue)
			})

			Convey("And a failing resubmission keeps it pending", func() {
				r.ResubmitPending(ctx)
				So(r.PendingCount(), ShouldEqual, 1)
			})
		})

		Convey("When the reporter is stopped mid-backoff", func() {
			transport := &scriptedTransport{fixedErr: reporter.ErrDeliveryFailed}
			r := reporter.New(transport,
				reporter.WithMaxAttempts(5),
				reporter.WithBackoff(time.Hour, time.Hour),
			)

			r.Report(ctx, testViolation("e1"))
			time.Sleep(10 * time.Millisecond)
			done := make(chan struct{})
			go func() {
				r.Stop()
				close(done)
			}()

			Convey("Then Stop returns promptly instead of waiting out the backoff", func() {
				select {
				case <-done:
				case <-time.After(time.Second):
					t.Fatal("Stop did not abandon the backoff loop")
				}
			})
		})

		Convey("When reporting after Stop", func() {
			transport := &scriptedTransport{}
			r := newReporter(transport)
			r.Stop()
			r.Report(ctx, testViolation("e1"))

			Convey("Then the event is ignored", func() {
				So(transport.attemptCount(), ShouldEqual, 0)
			})
		})
	})
}
