package lockdown_test

import (
	"testing"
	"time"

	"github.com/hackfest/proctor/internal/domain/lockdown"
	"github.com/hackfest/proctor/internal/domain/model"
	"github.com/hackfest/proctor/internal/domain/policy"
	. "github.com/smartystreets/goconvey/convey"
)

// fakeClock is a settable time source for deterministic tests.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func newTestMachine(endIn time.Duration) (*lockdown.Machine, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
	m := lockdown.NewMachine("session-1", clock.now.Add(endIn), lockdown.WithClock(clock.Now))
	return m, clock
}

func TestMachineEscalation(t *testing.T) {
	Convey("Given an active session", t, func() {
		m, _ := newTestMachine(2 * time.Hour)

		Convey("When a high-severity violation is recorded", func() {
			counted := m.RecordViolation(model.SeverityHigh)

			Convey("Then it counts a strike and shows the warning", func() {
				So(counted, ShouldBeTrue)
				So(m.Strikes(), ShouldEqual, 1)
				So(m.State(), ShouldEqual, lockdown.StateWarned)
			})

			Convey("And acknowledging below the threshold resumes monitoring", func() {
				So(m.Acknowledge(), ShouldEqual, lockdown.StateActive)
				So(m.Strikes(), ShouldEqual, 1)
			})
		})

		Convey("When a low-severity violation is recorded", func() {
			counted := m.RecordViolation(model.SeverityLow)

			Convey("Then it warns without counting a strike", func() {
				So(counted, ShouldBeFalse)
				So(m.Strikes(), ShouldEqual, 0)
				So(m.State(), ShouldEqual, lockdown.StateWarned)
				So(m.Acknowledge(), ShouldEqual, lockdown.StateActive)
			})
		})

		Convey("When two pre-empted shortcut attempts arrive", func() {
			m.RecordViolation(model.SeverityLow)
			m.Acknowledge()
			m.RecordViolation(model.SeverityLow)
			m.Acknowledge()

			Convey("Then the session holds zero strikes and stays active", func() {
				So(m.Strikes(), ShouldEqual, 0)
				So(m.State(), ShouldEqual, lockdown.StateActive)
			})
		})

		Convey("When the third qualifying strike is acknowledged", func() {
			for i := 0; i < 3; i++ {
				m.RecordViolation(model.SeverityMedium)
				state := m.Acknowledge()
				if i < 2 {
					So(state, ShouldEqual, lockdown.StateActive)
				} else {
					So(state, ShouldEqual, lockdown.StateDisqualified)
				}
			}

			Convey("Then the session is terminally disqualified", func() {
				So(m.State(), ShouldEqual, lockdown.StateDisqualified)
				So(m.RecordViolation(model.SeverityHigh), ShouldBeFalse)
				So(m.Strikes(), ShouldEqual, 3)
				So(m.Heartbeat(time.Now()), ShouldBeFalse)
			})
		})

		Convey("When more qualifying violations arrive than the threshold", func() {
			for i := 0; i < 10; i++ {
				m.RecordViolation(model.SeverityHigh)
			}

			Convey("Then the strike count is capped at the threshold", func() {
				So(m.Strikes(), ShouldEqual, policy.DefaultStrikeThreshold)
			})
		})
	})
}

func TestMachineClock(t *testing.T) {
	Convey("Given a session nearing its deadline", t, func() {
		m, clock := newTestMachine(10 * time.Minute)

		Convey("When the remaining time is sampled while violations land", func() {
			first := m.Remaining()
			m.RecordViolation(model.SeverityHigh)
			clock.Advance(time.Minute)
			second := m.Remaining()
			m.Acknowledge()
			clock.Advance(time.Minute)
			third := m.Remaining()

			Convey("Then the countdown is strictly decreasing and never paused", func() {
				So(second, ShouldBeLessThan, first)
				So(third, ShouldBeLessThan, second)
			})
		})

		Convey("When the deadline passes with two strikes on the board", func() {
			m.RecordViolation(model.SeverityHigh)
			m.Acknowledge()
			m.RecordViolation(model.SeverityHigh)
			m.Acknowledge()
			clock.Advance(11 * time.Minute)

			Convey("Then the session ends normally, not disqualified", func() {
				So(m.Tick(), ShouldEqual, lockdown.StateEnded)
				So(m.Strikes(), ShouldEqual, 2)
			})
		})

		Convey("When a violation races the deadline", func() {
			clock.Advance(11 * time.Minute)
			counted := m.RecordViolation(model.SeverityHigh)

			Convey("Then the clock wins and the violation is not counted", func() {
				So(counted, ShouldBeFalse)
				So(m.State(), ShouldEqual, lockdown.StateEnded)
				So(m.Strikes(), ShouldEqual, 0)
			})
		})

		Convey("When the deadline passes", func() {
			clock.Advance(11 * time.Minute)

			Convey("Then remaining time clamps at zero", func() {
				So(m.Remaining(), ShouldEqual, time.Duration(0))
			})

			Convey("And heartbeats are rejected", func() {
				So(m.Heartbeat(clock.Now()), ShouldBeFalse)
			})
		})
	})
}

func TestMachineHeartbeat(t *testing.T) {
	Convey("Given an active session", t, func() {
		m, clock := newTestMachine(time.Hour)

		Convey("When heartbeats arrive", func() {
			clock.Advance(30 * time.Second)
			ok := m.Heartbeat(clock.Now())

			Convey("Then the idle watchdog resets", func() {
				So(ok, ShouldBeTrue)
				So(m.IdleSince(), ShouldEqual, time.Duration(0))
			})
		})

		Convey("When no heartbeat arrives for a while", func() {
			clock.Advance(90 * time.Second)

			Convey("Then the idle time grows", func() {
				So(m.IdleSince(), ShouldEqual, 90*time.Second)
			})
		})

		Convey("When a stale heartbeat arrives out of order", func() {
			clock.Advance(time.Minute)
			So(m.Heartbeat(clock.Now()), ShouldBeTrue)
			So(m.Heartbeat(clock.Now().Add(-30*time.Second)), ShouldBeTrue)

			Convey("Then the newest timestamp is kept", func() {
				So(m.IdleSince(), ShouldEqual, time.Duration(0))
			})
		})
	})
}

func TestMachineCustomPolicy(t *testing.T) {
	Convey("Given a machine with a stricter policy", t, func() {
		clock := &fakeClock{now: time.Now()}
		m := lockdown.NewMachine("session-2", clock.now.Add(time.Hour),
			lockdown.WithClock(clock.Now),
			lockdown.WithPolicy(policy.New(policy.WithStrikeThreshold(1))),
		)

		Convey("When one qualifying violation is acknowledged", func() {
			m.RecordViolation(model.SeverityMedium)
			state := m.Acknowledge()

			Convey("Then the session is disqualified immediately", func() {
				So(state, ShouldEqual, lockdown.StateDisqualified)
			})
		})
	})
}
