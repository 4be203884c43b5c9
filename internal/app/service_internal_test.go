package service

import (
	"context"
	"testing"
	"time"

	"github.com/hackfest/proctor/internal/domain/model"
	"github.com/hackfest/proctor/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func TestTeamStatusesStaleFallback(t *testing.T) {
	Convey("Given a started service with a warm feed snapshot", t, func() {
		svc := New(
			WithWorkerCount(1),
			WithFeedBudget(30*time.Millisecond),
		)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		So(svc.RegisterSession(ctx, model.Session{
			SessionID:     "session-1",
			ParticipantID: "participant-1",
			TeamID:        "team-1",
			HackathonID:   "hack-1",
			StartTime:     time.Now(),
			EndTime:       time.Now().Add(time.Hour),
		}), ShouldBeNil)

		rows, stale, err := svc.TeamStatuses(ctx, "hack-1")
		So(err, ShouldBeNil)
		So(stale, ShouldBeFalse)
		So(len(rows), ShouldEqual, 1)

		Convey("When recomputation outlives the budget", func() {
			// Holding the registry write lock stalls computeTeamStatuses
			// until well past the budget.
			svc.sessionsMu.Lock()
			cached, nowStale, err := svc.TeamStatuses(ctx, "hack-1")
			svc.sessionsMu.Unlock()

			Convey("Then the previous snapshot is served flagged stale", func() {
				So(err, ShouldBeNil)
				So(nowStale, ShouldBeTrue)
				So(len(cached), ShouldEqual, 1)
				So(cached[0].TeamID, ShouldEqual, "team-1")
			})
		})
	})
}
