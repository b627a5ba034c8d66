// Package flex derives the Learning Flexibility Index from the eight
// context scores and the basic scale scores.
//
// The weighting coefficient W is the population standard deviation of the
// context scores normalized by the maximum attainable deviation for the
// instrument's score range, so W sits in [0, 1] with higher values meaning
// more variation in mode usage across contexts. The LFI raw score blends W
// with a balance term derived from the combination scores; both are fixed
// formulas applied uniformly to every session.
package flex

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/Farid-Ze/kolb-sub001/internal/domain/model"
	"github.com/Farid-Ze/kolb-sub001/internal/domain/norms"
	"github.com/Farid-Ze/kolb-sub001/internal/domain/types"
)

// Bucket maps a percentile upper bound (inclusive) to a flexibility level.
// A nil bound is open-ended.
type Bucket struct {
	UpTo  *float64
	Level string
}

// Option applies a configuration option to the calculator.
type Option func(*Calculator)

// WithContextScoreRange sets the instrument's covered context score range,
// used to normalize the dispersion statistic.
func WithContextScoreRange(minScore, maxScore float64) Option {
	return func(c *Calculator) {
		if maxScore > minScore {
			c.minScore = minScore
			c.maxScore = maxScore
		}
	}
}

// WithCombinedSpan sets the maximum attainable |ACCE| + |AERO| sum, used to
// normalize the balance term.
func WithCombinedSpan(span float64) Option {
	return func(c *Calculator) {
		if span > 0 {
			c.combinedSpan = span
		}
	}
}

// WithLevelBuckets sets the percentile buckets for the categorical
// flexibility level.
func WithLevelBuckets(buckets []Bucket) Option {
	return func(c *Calculator) {
		if len(buckets) > 0 {
			c.buckets = buckets
		}
	}
}

// WithNormCandidates sets the tier chain used for the LFI percentile lookup.
func WithNormCandidates(version string, candidates []norms.Candidate) Option {
	return func(c *Calculator) {
		c.version = version
		c.candidates = candidates
	}
}

// Calculator computes the per-session flexibility index row.
type Calculator struct {
	resolver     norms.Resolver
	minScore     float64
	maxScore     float64
	combinedSpan float64
	buckets      []Bucket
	version      string
	candidates   []norms.Candidate
}

// Default normalization constants for KLSI 4.0 context and combination
// score ranges.
const (
	defaultMinScore     = 0
	defaultMaxScore     = 48
	defaultCombinedSpan = 72
)

// NewCalculator creates a Calculator with configuration options.
func NewCalculator(resolver norms.Resolver, opts ...Option) *Calculator {
	c := &Calculator{
		resolver:     resolver,
		minScore:     defaultMinScore,
		maxScore:     defaultMaxScore,
		combinedSpan: defaultCombinedSpan,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compute derives W and the LFI score, then resolves the LFI percentile
// and level. An exhausted normative lookup leaves percentile, level, and
// norm group nil rather than failing the session. The returned resolution
// feeds the provenance audit trail.
func (c *Calculator) Compute(ctx context.Context, sessionID string, contextScores []model.ContextScore, comb model.CombinationScore) (model.FlexibilityIndex, norms.Resolution, error) {
	if err := ctx.Err(); err != nil {
		return model.FlexibilityIndex{}, norms.Resolution{}, fmt.Errorf("flexibility computation cancelled: %w", err)
	}
	if len(contextScores) != len(types.Contexts()) {
		return model.FlexibilityIndex{}, norms.Resolution{}, fmt.Errorf("have %d of %d context scores: %w", len(contextScores), len(types.Contexts()), ErrIncompleteContextSet)
	}

	w := c.weightingCoefficient(contextScores)
	score := c.lfiScore(w, comb)

	out := model.FlexibilityIndex{
		SessionID: sessionID,
		W:         w,
		Score:     score,
	}

	res, err := c.resolver.Resolve(ctx, norms.Request{
		SessionID:  sessionID,
		Scale:      types.ScaleLFI,
		Raw:        score,
		Version:    c.version,
		Candidates: c.candidates,
	})
	if err != nil {
		if errors.Is(err, norms.ErrNormativeLookupExhausted) {
			// Persist the row with a null percentile/level.
			return out, res, nil
		}
		return model.FlexibilityIndex{}, norms.Resolution{}, err
	}

	out.Percentile = res.Percentile
	group := res.NormGroup
	out.NormGroup = &group
	if res.Percentile != nil {
		if level, ok := c.level(*res.Percentile); ok {
			out.Level = &level
		}
	}
	return out, res, nil
}

// weightingCoefficient is the normalized population standard deviation of
// the eight context scores.
func (c *Calculator) weightingCoefficient(scores []model.ContextScore) float64 {
	n := float64(len(scores))
	var mean float64
	for _, s := range scores {
		mean += s.Raw
	}
	mean /= n

	var variance float64
	for _, s := range scores {
		d := s.Raw - mean
		variance += d * d
	}
	variance /= n

	maxSD := (c.maxScore - c.minScore) / 2
	if maxSD <= 0 {
		return 0
	}
	return clamp01(math.Sqrt(variance) / maxSD)
}

// lfiScore blends dispersion with how balanced the four basic modes are:
// respondents pinned to one grid corner score lower than balanced ones at
// equal dispersion.
func (c *Calculator) lfiScore(w float64, comb model.CombinationScore) float64 {
	balance := 1 - (math.Abs(comb.ACCERaw)+math.Abs(comb.AERORaw))/c.combinedSpan
	balance = clamp01(balance)
	return clamp01((w + balance) / 2)
}

func (c *Calculator) level(percentile float64) (string, bool) {
	for _, b := range c.buckets {
		if b.UpTo == nil || percentile <= *b.UpTo {
			return b.Level, true
		}
	}
	return "", false
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
