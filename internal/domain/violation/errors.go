package violation

import "errors"

// Sentinel kinds for classification errors.
var (
	ErrUnknownSignal = errors.New("unknown violation signal")
)
