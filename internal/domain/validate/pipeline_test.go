package validate_test

import (
	"context"
	"errors"
	"testing"

	"github.com/Farid-Ze/kolb-sub001/internal/domain/model"
	"github.com/Farid-Ze/kolb-sub001/internal/domain/types"
	validate "github.com/Farid-Ze/kolb-sub001/internal/domain/validate"
	. "github.com/smartystreets/goconvey/convey"
)

func ptr(v float64) *float64 { return &v }

func klsiRanges() map[types.ScaleCode]validate.ScaleRange {
	return map[types.ScaleCode]validate.ScaleRange{
		types.ScaleCE:   {Min: 12, Max: 48},
		types.ScaleRO:   {Min: 12, Max: 48},
		types.ScaleAC:   {Min: 12, Max: 48},
		types.ScaleAE:   {Min: 12, Max: 48},
		types.ScaleACCE: {Min: -36, Max: 36},
		types.ScaleAERO: {Min: -36, Max: 36},
	}
}

func cleanSnapshot() *model.Snapshot {
	snap := &model.Snapshot{
		SessionID: "s1",
		Scales: []model.ScaleScore{
			{SessionID: "s1", Scale: types.ScaleCE, Raw: 26},
			{SessionID: "s1", Scale: types.ScaleRO, Raw: 27},
			{SessionID: "s1", Scale: types.ScaleAC, Raw: 31},
			{SessionID: "s1", Scale: types.ScaleAE, Raw: 31},
		},
		Combination: &model.CombinationScore{SessionID: "s1", ACCERaw: 5, AERORaw: 4},
		Style:       &model.StyleAssignment{SessionID: "s1", Style: types.StyleBalancing},
	}
	for _, scale := range types.PercentileScales() {
		snap.Percentiles = append(snap.Percentiles, model.PercentileRecord{
			SessionID: "s1", Scale: scale, Percentile: ptr(50),
			SourceKind: types.SourceExactNormGroup, NormGroup: "klsi4-normative",
		})
	}
	for i, name := range types.Contexts() {
		snap.Contexts = append(snap.Contexts, model.ContextScore{
			SessionID: "s1", Context: name, Raw: float64(20 + i),
		})
	}
	return snap
}

func TestPipeline(t *testing.T) {
	Convey("Given a fully scored, in-range snapshot", t, func() {
		p := validate.NewPipeline(validate.WithScaleRanges(klsiRanges()))

		Convey("Then validation passes with no findings", func() {
			res, err := p.Run(context.Background(), cleanSnapshot())
			So(err, ShouldBeNil)
			So(res.Structural, ShouldBeEmpty)
			So(res.Psychometric, ShouldBeEmpty)
			So(res.Provenance, ShouldBeEmpty)
			So(res.Anomalies, ShouldBeEmpty)
		})
	})

	Convey("Given a snapshot with several independent defects", t, func() {
		p := validate.NewPipeline(validate.WithScaleRanges(klsiRanges()))
		snap := cleanSnapshot()
		snap.Scales = snap.Scales[:3]                                  // AE missing
		snap.Scales[0].Raw = 60                                        // CE out of range
		snap.Style = &model.StyleAssignment{Style: "Procrastinating"}  // free text
		snap.Contexts = snap.Contexts[:6]                              // two contexts short
		snap.Percentiles[1].SourceKind = types.SourceFallbackAppendix  // RO on fallback
		snap.Percentiles[2].Truncated = true                           // AC clamped
		snap.Percentiles[3].Percentile = nil                           // AE unavailable

		Convey("When running validation", func() {
			res, err := p.Run(context.Background(), snap)
			So(err, ShouldBeNil)

			codes := func(findings []validate.Finding) []string {
				out := make([]string, 0, len(findings))
				for _, f := range findings {
					out = append(out, f.Code)
				}
				return out
			}

			Convey("Then every defect is collected instead of halting at the first", func() {
				So(codes(res.Structural), ShouldContain, "missing_scale_score")
				So(codes(res.Structural), ShouldContain, "non_canonical_style")
				So(codes(res.Structural), ShouldContain, "incomplete_context_set")
				So(codes(res.Psychometric), ShouldContain, "scale_out_of_range")
				So(codes(res.Provenance), ShouldContain, "fallback_tier_used")
				So(codes(res.Provenance), ShouldContain, "percentile_truncated")
				So(codes(res.Provenance), ShouldContain, "percentile_unavailable")
			})

			Convey("Then the flat anomaly list mirrors the grouped findings", func() {
				total := len(res.Structural) + len(res.Psychometric) + len(res.Provenance)
				So(res.Anomalies, ShouldHaveLength, total)
			})
		})
	})

	Convey("Given an out-of-range combination score", t, func() {
		p := validate.NewPipeline(validate.WithScaleRanges(klsiRanges()))
		snap := cleanSnapshot()
		snap.Combination.ACCERaw = 40

		Convey("Then the combination axes are range-checked too", func() {
			res, err := p.Run(context.Background(), snap)
			So(err, ShouldBeNil)
			So(res.Psychometric, ShouldHaveLength, 1)
			So(res.Psychometric[0].Code, ShouldEqual, "scale_out_of_range")
		})
	})

	Convey("Given a snapshot with no scored data at all", t, func() {
		p := validate.NewPipeline()

		Convey("Then validation fails hard with ErrNothingToValidate", func() {
			_, err := p.Run(context.Background(), &model.Snapshot{SessionID: "s1"})
			So(errors.Is(err, validate.ErrNothingToValidate), ShouldBeTrue)
			_, err = p.Run(context.Background(), nil)
			So(errors.Is(err, validate.ErrNothingToValidate), ShouldBeTrue)
		})
	})
}
