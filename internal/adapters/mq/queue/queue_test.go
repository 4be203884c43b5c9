package queue_test

import (
	"context"
	"strconv"
	"testing"
	"time"

	eventqueue "github.com/hackfest/proctor/internal/adapters/mq/queue"
	"github.com/hackfest/proctor/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func event(id string) eventqueue.Event {
	return eventqueue.Event{
		EventID: id,
		TeamID:  "team-1",
		Type:    model.ActivityCodeChange,
		TS:      time.Now(),
	}
}

func TestInMemoryQueue(t *testing.T) {
	Convey("Given a bounded in-memory queue", t, func() {
		ctx := context.Background()

		Convey("When events are enqueued and dequeued", func() {
			q := eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(10))

			So(q.Enqueue(ctx, event("e1")), ShouldBeTrue)
			So(q.Enqueue(ctx, event("e2")), ShouldBeTrue)
			So(q.Len(ctx), ShouldEqual, 2)

			ch := q.Dequeue(ctx)
			first := <-ch
			second := <-ch

			Convey("Then order is preserved", func() {
				So(first.EventID, ShouldEqual, "e1")
				So(second.EventID, ShouldEqual, "e2")
			})
		})

		Convey("When the queue is full", func() {
			q := eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(2))

			So(q.Enqueue(ctx, event("e1")), ShouldBeTrue)
			So(q.Enqueue(ctx, event("e2")), ShouldBeTrue)

			Convey("Then the next enqueue reports backpressure without blocking", func() {
				So(q.Enqueue(ctx, event("e3")), ShouldBeFalse)
				So(q.Len(ctx), ShouldEqual, 2)
			})
		})

		Convey("When the queue is closed", func() {
			q := eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(4))
			for i := 0; i < 3; i++ {
				q.Enqueue(ctx, event("e"+strconv.Itoa(i)))
			}
			So(q.Close(), ShouldBeNil)

			Convey("Then enqueue is rejected", func() {
				So(q.IsClosed(), ShouldBeTrue)
				So(q.Enqueue(ctx, event("late")), ShouldBeFalse)
			})

			Convey("Then buffered events still drain before the channel closes", func() {
				ch := q.Dequeue(ctx)
				count := 0
				for range ch {
					count++
				}
				So(count, ShouldEqual, 3)
			})

			Convey("Then closing again is a no-op", func() {
				So(q.Close(), ShouldBeNil)
			})
		})
	})
}
