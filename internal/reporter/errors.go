package reporter

import "errors"

// Sentinel kinds for delivery errors.
var (
	// ErrPermanent marks a rejection that retrying cannot fix, e.g. a
	// malformed payload. The event is dropped from the retry loop.
	ErrPermanent = errors.New("permanent delivery failure")

	// ErrDeliveryFailed marks a transient failure (network, 5xx).
	ErrDeliveryFailed = errors.New("delivery failed")
)
