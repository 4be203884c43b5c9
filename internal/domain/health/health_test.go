package health_test

import (
	"testing"

	"github.com/hackfest/proctor/internal/domain/health"
	"github.com/hackfest/proctor/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestScore(t *testing.T) {
	Convey("Given the default health calculator", t, func() {
		c := health.NewCalculator()

		Convey("When a team has no activity and no strikes", func() {
			score := c.Score(model.ActivitySnapshot{}, 0)

			Convey("Then the score is the full 100", func() {
				So(score, ShouldEqual, 100)
			})
		})

		Convey("When strikes accumulate", func() {
			Convey("Then each strike costs 15 points", func() {
				So(c.Score(model.ActivitySnapshot{}, 1), ShouldEqual, 85)
				So(c.Score(model.ActivitySnapshot{}, 2), ShouldEqual, 70)
			})

			Convey("And the violation penalty caps at 40", func() {
				So(c.Score(model.ActivitySnapshot{}, 3), ShouldEqual, 60)
				So(c.Score(model.ActivitySnapshot{}, 50), ShouldEqual, 60)
			})
		})

		Convey("When AI usage stays at or below the cutoff", func() {
			snapshot := model.ActivitySnapshot{
				TotalEventCount: 100,
				AIQueryCount:    30,
			}

			Convey("Then there is no overuse penalty", func() {
				So(c.Score(snapshot, 0), ShouldEqual, 100)
			})
		})

		Convey("When AI usage exceeds the cutoff", func() {
			snapshot := model.ActivitySnapshot{
				TotalEventCount: 100,
				AIQueryCount:    50,
			}

			Convey("Then the overuse ratio is penalized linearly", func() {
				// ratio 0.50, cutoff 0.30 -> 20 point penalty
				So(c.Score(snapshot, 0), ShouldEqual, 80)
			})
		})

		Convey("When commits accrue", func() {
			snapshot := model.ActivitySnapshot{
				TotalEventCount: 10,
				Commits:         4,
			}

			Convey("Then each commit adds a point up to 10", func() {
				So(c.Score(snapshot, 1), ShouldEqual, 89)

				snapshot.Commits = 25
				So(c.Score(snapshot, 1), ShouldEqual, 95)
			})

			Convey("And the bonus never pushes the score above 100", func() {
				snapshot.Commits = 25
				So(c.Score(snapshot, 0), ShouldEqual, 100)
			})
		})

		Convey("When every penalty stacks at once", func() {
			snapshot := model.ActivitySnapshot{
				TotalEventCount: 10,
				AIQueryCount:    10,
			}

			Convey("Then the score clamps at zero", func() {
				// 100 - 40 (strikes) - 70 (ai ratio 1.0) = well below zero
				So(c.Score(snapshot, 10), ShouldEqual, 0)
			})
		})
	})

	Convey("Given a calculator with a custom AI cutoff", t, func() {
		c := health.NewCalculator(health.WithAIOveruseCutoff(0.50))

		Convey("When usage sits between the default and custom cutoffs", func() {
			snapshot := model.ActivitySnapshot{
				TotalEventCount: 100,
				AIQueryCount:    40,
			}

			Convey("Then no penalty applies", func() {
				So(c.Score(snapshot, 0), ShouldEqual, 100)
			})
		})
	})
}
