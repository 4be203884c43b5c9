// Package health derives the advisory 0-100 team score from aggregate
// activity and violation density.
//
// The score is informational for organizers and deliberately decoupled
// from the enforcement state machine: it never feeds back into
// disqualification.
package health

import (
	"math"

	"github.com/hackfest/proctor/internal/domain/model"
)

// Fixed weighting policy constants.
const (
	maxScore              = 100
	minScore              = 0
	strikePenaltyWeight   = 15
	maxViolationPenalty   = 40
	maxCodeVelocityBonus  = 10
	defaultOveruseCutoff  = 0.30
	overusePenaltyScaling = 100
)

// Calculator computes health scores under a fixed weighting policy.
type Calculator struct {
	aiOveruseCutoff float64
}

// Option applies a configuration option to the Calculator.
type Option func(*Calculator)

// WithAIOveruseCutoff overrides the AI-usage ratio above which the
// overuse penalty starts accruing.
func WithAIOveruseCutoff(cutoff float64) Option {
	return func(c *Calculator) {
		if cutoff > 0 && cutoff < 1 {
			c.aiOveruseCutoff = cutoff
		}
	}
}

// NewCalculator creates a calculator with configuration options.
func NewCalculator(opts ...Option) *Calculator {
	c := &Calculator{
		aiOveruseCutoff: defaultOveruseCutoff,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Score computes the team health score from a snapshot and the team's
// qualifying strike count. The result is always within [0, 100].
func (c *Calculator) Score(snapshot model.ActivitySnapshot, qualifyingStrikes int) int {
	violationPenalty := math.Min(maxViolationPenalty, float64(qualifyingStrikes)*strikePenaltyWeight)

	var aiRatio float64
	if snapshot.TotalEventCount > 0 {
		aiRatio = float64(snapshot.AIQueryCount) / float64(snapshot.TotalEventCount)
	}
	aiOverusePenalty := math.Max(0, (aiRatio-c.aiOveruseCutoff)*overusePenaltyScaling)

	codeVelocityBonus := math.Min(maxCodeVelocityBonus, float64(snapshot.Commits))

	score := maxScore - violationPenalty - aiOverusePenalty + codeVelocityBonus
	score = math.Max(minScore, math.Min(maxScore, score))
	return int(math.Round(score))
}
