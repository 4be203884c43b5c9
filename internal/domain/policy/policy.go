// Package policy encodes the escalation rules as an explicit table so
// threshold changes never touch state-transition code.
package policy

import "github.com/hackfest/proctor/internal/domain/model"

// Default escalation constants.
const (
	DefaultStrikeThreshold = 3
)

// Policy decides which violations count toward disqualification and how
// many strikes end a session.
type Policy struct {
	// StrikeThreshold is the number of qualifying strikes that makes the
	// next acknowledgment terminal.
	StrikeThreshold int

	// countsToward marks severities eligible to increment the strike
	// counter. Low-severity violations represent pre-empted attempts and
	// are logged without counting.
	countsToward map[model.Severity]bool
}

// Option applies a configuration option to the Policy.
type Option func(*Policy)

// WithStrikeThreshold overrides the default strike threshold.
func WithStrikeThreshold(threshold int) Option {
	return func(p *Policy) {
		if threshold > 0 {
			p.StrikeThreshold = threshold
		}
	}
}

// WithCountedSeverities replaces the set of severities that qualify.
func WithCountedSeverities(severities ...model.Severity) Option {
	return func(p *Policy) {
		if len(severities) == 0 {
			return
		}
		p.countsToward = make(map[model.Severity]bool, len(severities))
		for _, s := range severities {
			p.countsToward[s] = true
		}
	}
}

// New creates the escalation policy with configuration options.
func New(opts ...Option) Policy {
	p := Policy{
		StrikeThreshold: DefaultStrikeThreshold,
		countsToward: map[model.Severity]bool{
			model.SeverityMedium: true,
			model.SeverityHigh:   true,
		},
	}

	for _, opt := range opts {
		opt(&p)
	}

	return p
}

// Qualifies reports whether a violation of the given severity counts
// toward escalation.
func (p Policy) Qualifies(severity model.Severity) bool {
	return p.countsToward[severity]
}
