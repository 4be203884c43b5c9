package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	service "github.com/hackfest/proctor/internal/app"
	"github.com/hackfest/proctor/internal/domain/lockdown"
	"github.com/hackfest/proctor/internal/domain/model"
	"github.com/hackfest/proctor/internal/domain/policy"
	"github.com/hackfest/proctor/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

func testSession(id, teamID string) model.Session {
	return model.Session{
		SessionID:     id,
		ParticipantID: "participant-" + id,
		TeamID:        teamID,
		HackathonID:   "hack-1",
		StartTime:     time.Now(),
		EndTime:       time.Now().Add(time.Hour),
	}
}

func TestService_New(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc := service.New()

		Convey("Then it should have sensible defaults", func() {
			So(svc, ShouldNotBeNil)
		})
	})

	Convey("Given a new service with custom options", t, func() {
		svc := service.New(
			service.WithWorkerCount(4),
			service.WithQueueSize(10_000),
			service.WithDedupeSize(5_000),
			service.WithRingSize(64),
			service.WithPolicy(policy.New(policy.WithStrikeThreshold(5))),
			service.WithFeedBudget(100*time.Millisecond),
			service.WithDebounceWindow(time.Millisecond),
			service.WithHeartbeatTimeout(30*time.Second),
			service.WithAIOveruseCutoff(0.5),
		)

		Convey("Then it should be created successfully", func() {
			So(svc, ShouldNotBeNil)
		})
	})
}

func TestService_StartStop(t *testing.T) {
	Convey("Given a new service", t, func() {
		svc := service.New(service.WithWorkerCount(2))
		defer svc.Stop()

		Convey("When starting the service", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			err := svc.Start(ctx)

			Convey("Then it should start and be marked as started", func() {
				So(err, ShouldBeNil)
				stats := svc.GetStats()
				So(stats["started"], ShouldEqual, true)
			})

			Convey("And a second start is a no-op", func() {
				So(svc.Start(ctx), ShouldBeNil)
			})

			Convey("And stopping marks it stopped", func() {
				svc.Stop()
				stats := svc.GetStats()
				So(stats["started"], ShouldEqual, false)
			})
		})
	})
}

func TestService_RegisterSession(t *testing.T) {
	Convey("Given a started service", t, func() {
		svc := service.New(service.WithWorkerCount(2))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("When registering a valid session", func() {
			err := svc.RegisterSession(ctx, testSession("session-1", "team-1"))

			Convey("Then it succeeds and can be read back", func() {
				So(err, ShouldBeNil)
				meta, state, strikes, err := svc.SessionInfo(ctx, "session-1")
				So(err, ShouldBeNil)
				So(meta.TeamID, ShouldEqual, "team-1")
				So(state, ShouldEqual, lockdown.StateActive)
				So(strikes, ShouldEqual, 0)
			})

			Convey("And registering it again is idempotent", func() {
				So(svc.RegisterSession(ctx, testSession("session-1", "team-1")), ShouldBeNil)
			})
		})

		Convey("When the session id is empty", func() {
			err := svc.RegisterSession(ctx, model.Session{EndTime: time.Now().Add(time.Hour)})

			Convey("Then it is rejected", func() {
				So(errors.Is(err, service.ErrInvalidSession), ShouldBeTrue)
			})
		})

		Convey("When the end time does not follow the start time", func() {
			session := testSession("session-2", "team-1")
			session.EndTime = session.StartTime.Add(-time.Minute)
			err := svc.RegisterSession(ctx, session)

			Convey("Then it is rejected", func() {
				So(errors.Is(err, service.ErrInvalidSession), ShouldBeTrue)
			})
		})

		Convey("When asking about an unknown session", func() {
			_, _, _, err := svc.SessionInfo(ctx, "ghost")

			Convey("Then the lookup fails", func() {
				So(errors.Is(err, lockdown.ErrSessionNotFound), ShouldBeTrue)
			})
		})
	})
}

func TestService_Heartbeat(t *testing.T) {
	Convey("Given a started service with a session", t, func() {
		svc := service.New(service.WithWorkerCount(2))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()
		So(svc.RegisterSession(ctx, testSession("session-1", "team-1")), ShouldBeNil)

		Convey("When the session heartbeats", func() {
			err := svc.Heartbeat(ctx, "session-1", time.Now())

			Convey("Then it is accepted", func() {
				So(err, ShouldBeNil)
			})
		})

		Convey("When an unknown session heartbeats", func() {
			err := svc.Heartbeat(ctx, "ghost", time.Now())

			Convey("Then it is rejected", func() {
				So(errors.Is(err, lockdown.ErrSessionNotFound), ShouldBeTrue)
			})
		})
	})
}

func TestService_IdleWatchdog(t *testing.T) {
	Convey("Given a service with a short heartbeat timeout", t, func() {
		svc := service.New(
			service.WithWorkerCount(1),
			service.WithHeartbeatTimeout(20*time.Millisecond),
		)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()
		So(svc.RegisterSession(ctx, testSession("session-1", "team-1")), ShouldBeNil)

		Convey("When the session stays silent past the timeout", func() {
			flagged := waitFor(2*time.Second, func() bool {
				return svc.GetStats()["idleSessions"] == 1
			})

			Convey("Then stats count it as idle", func() {
				So(flagged, ShouldBeTrue)
			})

			Convey("And a heartbeat clears the idle count", func() {
				So(svc.Heartbeat(ctx, "session-1", time.Now()), ShouldBeNil)
				So(svc.GetStats()["idleSessions"], ShouldEqual, 0)
			})
		})
	})
}

func TestService_SeenAndRecord(t *testing.T) {
	Convey("Given a started service", t, func() {
		svc := service.New(service.WithWorkerCount(2))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("When checking a new event ID", func() {
			seen := svc.SeenAndRecord(ctx, "event-123")

			Convey("Then it should not have been seen before", func() {
				So(seen, ShouldBeFalse)
			})
		})

		Convey("When checking the same event ID again", func() {
			svc.SeenAndRecord(ctx, "event-456")
			seen := svc.SeenAndRecord(ctx, "event-456")

			Convey("Then it should have been seen before", func() {
				So(seen, ShouldBeTrue)
			})
		})

		Convey("When an event ID is unrecorded", func() {
			svc.SeenAndRecord(ctx, "event-789")
			svc.Unrecord(ctx, "event-789")
			seen := svc.SeenAndRecord(ctx, "event-789")

			Convey("Then it can be recorded again", func() {
				So(seen, ShouldBeFalse)
			})
		})
	})
}
