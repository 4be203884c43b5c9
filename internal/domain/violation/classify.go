// Package violation maps raw client-observed signals to classified
// violations. Classification is a pure lookup so it is independently
// testable; the debouncer is the only stateful piece and lives at this
// level so the lockdown machine never sees OS focus churn.
package violation

import (
	"strings"

	"github.com/hackfest/proctor/internal/domain/model"
)

// classification pairs the outputs of the mapping table.
type classification struct {
	violationType model.ViolationType
	severity      model.Severity
}

// signalTable is the deterministic signal -> (type, severity) mapping.
// back_button and navigation carry explicit exit intent and rank high;
// forbidden_shortcut is blocked before taking effect and ranks low.
// suspicious_activity is a heuristic catch-all: it is ledgered and
// surfaced to organizers but ranks low so it never earns a strike.
var signalTable = map[string]classification{
	"tab_switch":          {model.ViolationTabSwitch, model.SeverityMedium},
	"focus_loss":          {model.ViolationFocusLoss, model.SeverityMedium},
	"navigation":          {model.ViolationNavigation, model.SeverityHigh},
	"back_button":         {model.ViolationBackButton, model.SeverityHigh},
	"forbidden_shortcut":  {model.ViolationForbiddenShortcut, model.SeverityLow},
	"suspicious_activity": {model.ViolationSuspiciousActivity, model.SeverityLow},
}

// Metadata carries optional signal context, e.g. which key combination
// triggered a forbidden_shortcut.
type Metadata struct {
	KeyCombination string
	Detail         string
}

// Classify maps a raw signal name to its violation type and default
// severity. Unknown signals return ErrUnknownSignal; callers treat that
// as a malformed event, never as a strike.
func Classify(signal string, _ Metadata) (model.ViolationType, model.Severity, error) {
	c, ok := signalTable[strings.ToLower(strings.TrimSpace(signal))]
	if !ok {
		return "", "", ErrUnknownSignal
	}
	return c.violationType, c.severity, nil
}

// KnownSignals returns the set of signal names the classifier accepts.
func KnownSignals() []string {
	signals := make([]string, 0, len(signalTable))
	for s := range signalTable {
		signals = append(signals, s)
	}
	return signals
}
