package runtime

import (
	"context"
	"fmt"
	"time"

	"github.com/Farid-Ze/kolb-sub001/internal/adapters/refdata"
	"github.com/Farid-Ze/kolb-sub001/internal/domain/contexts"
	"github.com/Farid-Ze/kolb-sub001/internal/domain/flex"
	"github.com/Farid-Ze/kolb-sub001/internal/domain/model"
	"github.com/Farid-Ze/kolb-sub001/internal/domain/norms"
	"github.com/Farid-Ze/kolb-sub001/internal/domain/scale"
	"github.com/Farid-Ze/kolb-sub001/internal/domain/style"
	"github.com/Farid-Ze/kolb-sub001/internal/domain/types"
	"github.com/Farid-Ze/kolb-sub001/internal/domain/validate"
	"github.com/Farid-Ze/kolb-sub001/pkg/metrics"
)

// KLSIOption applies a configuration option to the KLSI strategy.
type KLSIOption func(*klsiConfig)

type klsiConfig struct {
	concurrentScales bool
}

// WithConcurrentScales enables parallel computation of the four basic-mode
// sums. Results stay deterministic either way.
func WithConcurrentScales(enabled bool) KLSIOption {
	return func(c *klsiConfig) {
		c.concurrentScales = enabled
	}
}

// KLSIStrategy implements the KLSI 4.0 phase sequence: scoring,
// classification, normalization, context aggregation, validation.
type KLSIStrategy struct {
	calculator scale.Calculator
	classifier *style.Classifier
	resolver   norms.Resolver
	aggregator contexts.Aggregator
	flexCalc   *flex.Calculator
	pipeline   *validate.Pipeline
	candidates []norms.Candidate
	version    string
}

// NewKLSIStrategy wires the phase components from the reference snapshot.
func NewKLSIStrategy(ref *refdata.Snapshot, opts ...KLSIOption) (*KLSIStrategy, error) {
	cfg := &klsiConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	classifier, err := style.NewClassifier(ref.Thresholds(), ref.Grid())
	if err != nil {
		return nil, fmt.Errorf("build classifier: %w", err)
	}

	resolver := norms.NewResolver(ref)
	minScore, maxScore := ref.ContextScoreRange()

	return &KLSIStrategy{
		calculator: scale.NewCalculator(scale.WithConcurrentModes(cfg.concurrentScales)),
		classifier: classifier,
		resolver:   resolver,
		aggregator: contexts.NewAggregator(),
		flexCalc: flex.NewCalculator(resolver,
			flex.WithContextScoreRange(minScore, maxScore),
			flex.WithCombinedSpan(ref.CombinedSpan()),
			flex.WithLevelBuckets(ref.FlexibilityBuckets()),
			flex.WithNormCandidates(ref.Version(), ref.Candidates()),
		),
		pipeline:   validate.NewPipeline(validate.WithScaleRanges(ref.ScaleRanges())),
		candidates: ref.Candidates(),
		version:    ref.Version(),
	}, nil
}

// Score runs the full phase sequence for one session. The context is
// checked between phases so callers can cancel cheaply.
func (s *KLSIStrategy) Score(ctx context.Context, sess model.SessionRecord, record PhaseRecorder) (model.Snapshot, validate.Result, error) {
	snap := model.Snapshot{SessionID: sess.ID}
	var result validate.Result

	// Scoring
	start := time.Now()
	scores, err := s.calculator.Score(ctx, sess.ID, sess.Items)
	record(types.PhaseScoring, time.Since(start))
	if err != nil {
		return snap, result, fmt.Errorf("scoring phase: %w", err)
	}
	snap.Scales = scores.Scales
	comb := scores.Combination
	snap.Combination = &comb

	// Classifying
	start = time.Now()
	assignment, err := s.classifier.Classify(comb)
	record(types.PhaseClassifying, time.Since(start))
	if err != nil {
		return snap, result, fmt.Errorf("classifying phase: %w", err)
	}
	snap.Style = &assignment

	// Normalizing
	start = time.Now()
	err = s.normalize(ctx, &snap)
	record(types.PhaseNormalizing, time.Since(start))
	if err != nil {
		return snap, result, fmt.Errorf("normalizing phase: %w", err)
	}

	// ContextAggregating
	start = time.Now()
	err = s.aggregateContexts(ctx, sess, &snap)
	record(types.PhaseContextAggregating, time.Since(start))
	if err != nil {
		return snap, result, fmt.Errorf("context aggregation phase: %w", err)
	}

	// Validating
	start = time.Now()
	result, err = s.pipeline.Run(ctx, &snap)
	record(types.PhaseValidating, time.Since(start))
	if err != nil {
		return snap, result, fmt.Errorf("validation phase: %w", err)
	}

	return snap, result, nil
}

// normalize resolves percentiles for the four basic modes and the two
// combination axes. Exhaustion on any of them is a hard failure, but the
// provenance rows are recorded first so the scale is never silently
// dropped from output.
func (s *KLSIStrategy) normalize(ctx context.Context, snap *model.Snapshot) error {
	resolve := func(code types.ScaleCode, raw float64) error {
		res, err := s.resolver.Resolve(ctx, norms.Request{
			SessionID:  snap.SessionID,
			Scale:      code,
			Raw:        raw,
			Version:    s.version,
			Candidates: s.candidates,
		})
		if res.Scale != "" {
			snap.Percentiles = append(snap.Percentiles, norms.PercentileRecordOf(snap.SessionID, res))
			snap.Provenance = append(snap.Provenance, norms.ProvenanceOf(snap.SessionID, res))
			if res.SourceKind == types.SourceFallbackAppendix {
				metrics.RecordFallbackResolution()
			}
			if res.Truncated {
				metrics.RecordTruncatedResolution()
			}
		}
		return err
	}

	for _, sc := range snap.Scales {
		if err := resolve(sc.Scale, sc.Raw); err != nil {
			return err
		}
	}
	if err := resolve(types.ScaleACCE, snap.Combination.ACCERaw); err != nil {
		return err
	}
	if err := resolve(types.ScaleAERO, snap.Combination.AERORaw); err != nil {
		return err
	}

	snap.UsedFallbackAny = norms.UsedFallbackAny(snap.Percentiles)
	return nil
}

// aggregateContexts aggregates the eight context scores and, when the set
// is complete, derives the flexibility index. An incomplete context set is
// left for the validation phase to flag; it does not fail the session.
func (s *KLSIStrategy) aggregateContexts(ctx context.Context, sess model.SessionRecord, snap *model.Snapshot) error {
	ctxScores, err := s.aggregator.Aggregate(ctx, sess.ID, sess.ContextResp)
	if err != nil {
		return err
	}
	snap.Contexts = ctxScores

	if !contexts.Complete(ctxScores) {
		return nil
	}

	lfi, res, err := s.flexCalc.Compute(ctx, sess.ID, ctxScores, *snap.Combination)
	if err != nil {
		return err
	}
	snap.Flexibility = &lfi
	if res.Scale != "" {
		snap.Percentiles = append(snap.Percentiles, norms.PercentileRecordOf(snap.SessionID, res))
		snap.Provenance = append(snap.Provenance, norms.ProvenanceOf(snap.SessionID, res))
	}
	return nil
}
