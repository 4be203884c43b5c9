package auth_test

import (
	"errors"
	"testing"
	"time"

	"github.com/hackfest/proctor/internal/auth"
	. "github.com/smartystreets/goconvey/convey"
)

func TestTokenService(t *testing.T) {
	Convey("Given a token service", t, func() {
		svc := auth.NewTokenService("test-secret")

		Convey("When a session token is generated and validated", func() {
			token, err := svc.Generate("session-1", "participant-1", "hack-1")
			So(err, ShouldBeNil)
			So(token, ShouldNotBeEmpty)

			claims, err := svc.Validate(token)

			Convey("Then the claims round-trip", func() {
				So(err, ShouldBeNil)
				So(claims.SessionID, ShouldEqual, "session-1")
				So(claims.ParticipantID, ShouldEqual, "participant-1")
				So(claims.HackathonID, ShouldEqual, "hack-1")
			})
		})

		Convey("When the token was signed with a different secret", func() {
			other := auth.NewTokenService("other-secret")
			token, _ := other.Generate("session-1", "participant-1", "hack-1")

			_, err := svc.Validate(token)

			Convey("Then validation fails", func() {
				So(err, ShouldNotBeNil)
				So(errors.Is(err, auth.ErrInvalidToken), ShouldBeTrue)
			})
		})

		Convey("When the token is garbage", func() {
			_, err := svc.Validate("not.a.token")

			Convey("Then validation fails", func() {
				So(errors.Is(err, auth.ErrInvalidToken), ShouldBeTrue)
			})
		})

		Convey("When the token has expired", func() {
			short := auth.NewTokenService("test-secret", auth.WithTTL(time.Millisecond))
			token, _ := short.Generate("session-1", "participant-1", "hack-1")
			time.Sleep(5 * time.Millisecond)

			_, err := short.Validate(token)

			Convey("Then validation fails", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})
}
