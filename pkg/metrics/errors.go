package metrics

import (
	"errors"
)

// ErrObserveFailed marks a recording that could not be applied, e.g. an
// observation against a family the registry rejected at startup.
var ErrObserveFailed = errors.New("metrics observe failed")
