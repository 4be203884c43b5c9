package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	dedupe "github.com/hackfest/proctor/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	Convey("Given a new InMemoryDeduper", t, func() {
		Convey("When creating a deduper with default options", func() {
			d := dedupe.NewInMemoryDeduper()

			Convey("Then it should start empty", func() {
				So(d, ShouldNotBeNil)
				So(d.Size(), ShouldEqual, 0)
			})
		})

		Convey("When recording events", func() {
			d := dedupe.NewInMemoryDeduper()

			Convey("And the event is new", func() {
				seen := d.SeenAndRecord(context.Background(), "event-1")

				Convey("Then it should return false and record the event", func() {
					So(seen, ShouldBeFalse)
					So(d.Size(), ShouldEqual, 1)
				})
			})

			Convey("And the event was already seen", func() {
				d.SeenAndRecord(context.Background(), "event-1")
				seen := d.SeenAndRecord(context.Background(), "event-1")

				Convey("Then it should return true without growing", func() {
					So(seen, ShouldBeTrue)
					So(d.Size(), ShouldEqual, 1)
				})
			})
		})

		Convey("When unrecording an event", func() {
			d := dedupe.NewInMemoryDeduper()
			d.SeenAndRecord(context.Background(), "event-1")
			d.Unrecord(context.Background(), "event-1")

			Convey("Then the event can be recorded again", func() {
				So(d.Size(), ShouldEqual, 0)
				So(d.SeenAndRecord(context.Background(), "event-1"), ShouldBeFalse)
			})

			Convey("And unrecording an unknown id is a no-op", func() {
				d.Unrecord(context.Background(), "never-seen")
				So(d.Size(), ShouldEqual, 0)
			})
		})

		Convey("When the deduper reaches its bound", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(3))

			d.SeenAndRecord(context.Background(), "event-1")
			d.SeenAndRecord(context.Background(), "event-2")
			d.SeenAndRecord(context.Background(), "event-3")
			d.SeenAndRecord(context.Background(), "event-4")

			Convey("Then the oldest id is evicted FIFO", func() {
				So(d.Size(), ShouldEqual, 3)
				So(d.SeenAndRecord(context.Background(), "event-1"), ShouldBeFalse)
				So(d.SeenAndRecord(context.Background(), "event-4"), ShouldBeTrue)
			})
		})

		Convey("When many goroutines race on the same ids", func() {
			d := dedupe.NewInMemoryDeduper()

			const goroutines = 16
			const ids = 100

			var wg sync.WaitGroup
			var firstSeen sync.Map
			for g := 0; g < goroutines; g++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for i := 0; i < ids; i++ {
						id := fmt.Sprintf("event-%d", i)
						if !d.SeenAndRecord(context.Background(), id) {
							if _, loaded := firstSeen.LoadOrStore(id, true); loaded {
								t.Errorf("id %s recorded as new twice", id)
							}
						}
					}
				}()
			}
			wg.Wait()

			Convey("Then each id is recorded exactly once", func() {
				So(d.Size(), ShouldEqual, int64(ids))
			})
		})
	})
}
