// Package validate runs structural, psychometric, and provenance checks
// over a scored session, collecting findings without halting unless a hard
// precondition fails.
package validate

import (
	"context"
	"fmt"

	"github.com/Farid-Ze/kolb-sub001/internal/domain/contexts"
	"github.com/Farid-Ze/kolb-sub001/internal/domain/model"
	"github.com/Farid-Ze/kolb-sub001/internal/domain/types"
)

// Finding is one soft anomaly discovered by a check group.
type Finding struct {
	Code   string
	Detail string
}

// Result aggregates the three check groups plus a flat anomaly list for
// downstream review. Soft findings never escalate to failures.
type Result struct {
	Structural   []Finding
	Psychometric []Finding
	Provenance   []Finding
	Anomalies    []string
}

// ScaleRange is the plausible instrument range for one scale's raw score.
type ScaleRange struct {
	Min float64
	Max float64
}

// Option applies a configuration option to the pipeline.
type Option func(*Pipeline)

// WithScaleRanges sets the plausible raw-score range per scale used by the
// psychometric checks.
func WithScaleRanges(ranges map[types.ScaleCode]ScaleRange) Option {
	return func(p *Pipeline) {
		if len(ranges) > 0 {
			p.ranges = ranges
		}
	}
}

// Pipeline validates a scored session snapshot.
type Pipeline struct {
	ranges map[types.ScaleCode]ScaleRange
}

// NewPipeline creates a validation pipeline with configuration options.
func NewPipeline(opts ...Option) *Pipeline {
	p := &Pipeline{}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes all three check groups. The only hard failure is a snapshot
// with no scored data at all (ErrNothingToValidate); everything else is
// collected into the result.
func (p *Pipeline) Run(ctx context.Context, snap *model.Snapshot) (Result, error) {
	var res Result
	if err := ctx.Err(); err != nil {
		return res, fmt.Errorf("validation cancelled: %w", err)
	}
	if snap == nil || (len(snap.Scales) == 0 && snap.Combination == nil && len(snap.Contexts) == 0) {
		return res, ErrNothingToValidate
	}

	p.structural(snap, &res)
	p.psychometric(snap, &res)
	p.provenance(snap, &res)
	return res, nil
}

func (p *Pipeline) structural(snap *model.Snapshot, res *Result) {
	present := make(map[types.ScaleCode]struct{}, len(snap.Scales))
	for _, s := range snap.Scales {
		present[s.Scale] = struct{}{}
	}
	for _, mode := range types.BasicModes() {
		if _, ok := present[mode]; !ok {
			res.add(&res.Structural, "missing_scale_score", fmt.Sprintf("no raw score for scale %s", mode))
		}
	}
	if snap.Combination == nil {
		res.add(&res.Structural, "missing_combination_score", "combination scores not computed")
	}
	if snap.Style == nil {
		res.add(&res.Structural, "missing_style_assignment", "learning style not resolved")
	} else if !snap.Style.Style.Valid() {
		res.add(&res.Structural, "non_canonical_style", fmt.Sprintf("style %q is not in the canonical catalog", snap.Style.Style))
	}
	if !contexts.Complete(snap.Contexts) {
		res.add(&res.Structural, "incomplete_context_set",
			fmt.Sprintf("context scores cover %d of %d canonical contexts", len(snap.Contexts), len(types.Contexts())))
	}
}

func (p *Pipeline) psychometric(snap *model.Snapshot, res *Result) {
	for _, s := range snap.Scales {
		r, ok := p.ranges[s.Scale]
		if !ok {
			continue
		}
		if s.Raw < r.Min || s.Raw > r.Max {
			res.add(&res.Psychometric, "scale_out_of_range",
				fmt.Sprintf("scale %s raw %v outside plausible range [%v, %v]", s.Scale, s.Raw, r.Min, r.Max))
		}
	}
	if snap.Combination != nil {
		for _, pair := range []struct {
			scale types.ScaleCode
			value float64
		}{
			{types.ScaleACCE, snap.Combination.ACCERaw},
			{types.ScaleAERO, snap.Combination.AERORaw},
		} {
			r, ok := p.ranges[pair.scale]
			if !ok {
				continue
			}
			if pair.value < r.Min || pair.value > r.Max {
				res.add(&res.Psychometric, "scale_out_of_range",
					fmt.Sprintf("scale %s raw %v outside plausible range [%v, %v]", pair.scale, pair.value, r.Min, r.Max))
			}
		}
	}
}

func (p *Pipeline) provenance(snap *model.Snapshot, res *Result) {
	for _, rec := range snap.Percentiles {
		if rec.SourceKind == types.SourceFallbackAppendix {
			res.add(&res.Provenance, "fallback_tier_used",
				fmt.Sprintf("scale %s resolved against fallback tier %q", rec.Scale, rec.NormGroup))
		}
		if rec.Truncated {
			res.add(&res.Provenance, "percentile_truncated",
				fmt.Sprintf("scale %s raw score clamped to tier %q coverage", rec.Scale, rec.NormGroup))
		}
		if rec.Percentile == nil {
			res.add(&res.Provenance, "percentile_unavailable",
				fmt.Sprintf("scale %s has no percentile from any tier", rec.Scale))
		}
	}
}

func (r *Result) add(group *[]Finding, code, detail string) {
	*group = append(*group, Finding{Code: code, Detail: detail})
	r.Anomalies = append(r.Anomalies, code+": "+detail)
}
