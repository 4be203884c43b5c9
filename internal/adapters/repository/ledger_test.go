package repository_test

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	repository "github.com/hackfest/proctor/internal/adapters/repository"
	"github.com/hackfest/proctor/internal/domain/model"
	"github.com/hackfest/proctor/internal/domain/policy"
	. "github.com/smartystreets/goconvey/convey"
)

func violationAt(sessionID string, violType model.ViolationType, severity model.Severity, ts time.Time) model.ViolationEvent {
	return model.ViolationEvent{
		EventID:   "event-" + sessionID + "-" + string(violType) + "-" + strconv.FormatInt(ts.UnixNano(), 10),
		SessionID: sessionID,
		Type:      violType,
		Severity:  severity,
		TS:        ts,
	}
}

func TestMemoryLedgerAppend(t *testing.T) {
	Convey("Given an empty ledger", t, func() {
		l := repository.NewMemoryLedger()
		ctx := context.Background()
		base := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

		Convey("When a violation is appended", func() {
			result, err := l.Append(ctx, violationAt("s1", model.ViolationTabSwitch, model.SeverityMedium, base))

			Convey("Then it is accepted and counted", func() {
				So(err, ShouldBeNil)
				So(result, ShouldEqual, repository.Accepted)
				So(l.CountForSession(ctx, "s1"), ShouldEqual, 1)
				So(l.CountQualifying(ctx, "s1"), ShouldEqual, 1)
			})
		})

		Convey("When the same content is appended twice", func() {
			first, _ := l.Append(ctx, violationAt("s1", model.ViolationTabSwitch, model.SeverityMedium, base))
			second, err := l.Append(ctx, violationAt("s1", model.ViolationTabSwitch, model.SeverityMedium, base))

			Convey("Then the retry collapses into the original", func() {
				So(err, ShouldBeNil)
				So(first, ShouldEqual, repository.Accepted)
				So(second, ShouldEqual, repository.Duplicate)
				So(l.CountForSession(ctx, "s1"), ShouldEqual, 1)
			})
		})

		Convey("When the same type repeats at a different second", func() {
			l.Append(ctx, violationAt("s1", model.ViolationTabSwitch, model.SeverityMedium, base))
			result, _ := l.Append(ctx, violationAt("s1", model.ViolationTabSwitch, model.SeverityMedium, base.Add(2*time.Second)))

			Convey("Then it is a distinct violation", func() {
				So(result, ShouldEqual, repository.Accepted)
				So(l.CountForSession(ctx, "s1"), ShouldEqual, 2)
			})
		})

		Convey("When the same content arrives from different sessions", func() {
			l.Append(ctx, violationAt("s1", model.ViolationFocusLoss, model.SeverityMedium, base))
			result, _ := l.Append(ctx, violationAt("s2", model.ViolationFocusLoss, model.SeverityMedium, base))

			Convey("Then sessions are independent", func() {
				So(result, ShouldEqual, repository.Accepted)
				So(l.Sessions(ctx), ShouldResemble, []string{"s1", "s2"})
			})
		})

		Convey("When the session id is missing", func() {
			_, err := l.Append(ctx, model.ViolationEvent{EventID: "e1", Type: model.ViolationTabSwitch, TS: base})

			Convey("Then the append is rejected", func() {
				So(errors.Is(err, repository.ErrMissingSession), ShouldBeTrue)
			})
		})

		Convey("When low-severity violations are appended", func() {
			l.Append(ctx, violationAt("s1", model.ViolationForbiddenShortcut, model.SeverityLow, base))
			l.Append(ctx, violationAt("s1", model.ViolationTabSwitch, model.SeverityMedium, base.Add(time.Second)))

			Convey("Then they are recorded but never qualify", func() {
				So(l.CountForSession(ctx, "s1"), ShouldEqual, 2)
				So(l.CountQualifying(ctx, "s1"), ShouldEqual, 1)
			})
		})
	})
}

func TestMemoryLedgerReads(t *testing.T) {
	Convey("Given a ledger with several events for one session", t, func() {
		l := repository.NewMemoryLedger()
		ctx := context.Background()
		base := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

		events := []model.ViolationEvent{
			violationAt("s1", model.ViolationTabSwitch, model.SeverityMedium, base),
			violationAt("s1", model.ViolationFocusLoss, model.SeverityMedium, base.Add(time.Minute)),
			violationAt("s1", model.ViolationNavigation, model.SeverityHigh, base.Add(2*time.Minute)),
		}
		for _, e := range events {
			_, err := l.Append(ctx, e)
			So(err, ShouldBeNil)
		}

		Convey("When the full history is listed", func() {
			listed, err := l.ListForSession(ctx, "s1", time.Time{})

			Convey("Then events come back in append order", func() {
				So(err, ShouldBeNil)
				So(len(listed), ShouldEqual, 3)
				So(listed[0].Type, ShouldEqual, model.ViolationTabSwitch)
				So(listed[2].Type, ShouldEqual, model.ViolationNavigation)
			})
		})

		Convey("When listing since a midpoint", func() {
			listed, err := l.ListForSession(ctx, "s1", base.Add(time.Minute))

			Convey("Then earlier events are excluded", func() {
				So(err, ShouldBeNil)
				So(len(listed), ShouldEqual, 2)
			})
		})

		Convey("When listing an unknown session", func() {
			_, err := l.ListForSession(ctx, "nope", time.Time{})

			Convey("Then it returns ErrSessionNotFound", func() {
				So(errors.Is(err, repository.ErrSessionNotFound), ShouldBeTrue)
			})
		})

		Convey("When an event is acknowledged", func() {
			err := l.Acknowledge(ctx, "s1", events[1].EventID)
			So(err, ShouldBeNil)

			Convey("Then only the acknowledged flag changes", func() {
				listed, _ := l.ListForSession(ctx, "s1", time.Time{})
				So(listed[1].Acknowledged, ShouldBeTrue)
				So(listed[0].Acknowledged, ShouldBeFalse)
				So(len(listed), ShouldEqual, 3)
			})
		})

		Convey("When acknowledging an unknown event", func() {
			err := l.Acknowledge(ctx, "s1", "missing")

			Convey("Then it returns ErrEventNotFound", func() {
				So(errors.Is(err, repository.ErrEventNotFound), ShouldBeTrue)
			})
		})
	})
}

func TestMemoryLedgerConcurrency(t *testing.T) {
	Convey("Given concurrent retried appends of the same violation", t, func() {
		l := repository.NewMemoryLedger(repository.WithPolicy(policy.New()))
		ctx := context.Background()
		event := violationAt("s1", model.ViolationTabSwitch, model.SeverityMedium, time.Now())

		const goroutines = 32
		var wg sync.WaitGroup
		results := make(chan repository.AppendResult, goroutines)

		for i := 0; i < goroutines; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				result, err := l.Append(ctx, event)
				if err == nil {
					results <- result
				}
			}()
		}
		wg.Wait()
		close(results)

		Convey("Then exactly one copy is counted", func() {
			accepted := 0
			for result := range results {
				if result == repository.Accepted {
					accepted++
				}
			}
			So(accepted, ShouldEqual, 1)
			So(l.CountForSession(ctx, "s1"), ShouldEqual, 1)
			So(l.CountQualifying(ctx, "s1"), ShouldEqual, 1)
		})
	})
}
