// Package norms resolves raw scale scores to population percentiles
// against tiered normative reference tables, recording provenance for
// every resolution.
package norms

import (
	"context"
	"fmt"
	"sort"

	"github.com/Farid-Ze/kolb-sub001/internal/domain/model"
	"github.com/Farid-Ze/kolb-sub001/internal/domain/types"
)

// Candidate is one normative tier. Candidates are tried in slice order,
// most specific first; the last entry is the generic fallback.
type Candidate struct {
	Group    string
	Fallback bool
}

// Request asks for one percentile resolution.
type Request struct {
	SessionID  string
	Scale      types.ScaleCode
	Raw        float64
	Version    string
	Candidates []Candidate
}

// Resolution is the outcome of a lookup. Percentile is nil only when every
// tier was exhausted; Truncated is true only when the final tier clamped
// an out-of-range raw score.
type Resolution struct {
	Scale      types.ScaleCode
	Raw        float64
	Percentile *float64
	NormGroup  string
	SourceKind types.SourceKind
	Tag        string
	Truncated  bool
}

// TableProvider gives read-only access to normative conversion rows for
// one (group, version, scale) key. Implemented by the reference data
// snapshot; the engine never mutates the tables.
type TableProvider interface {
	Rows(group, version string, scale types.ScaleCode) []model.NormEntry
}

// Resolver converts raw scores to percentiles with a fallback chain.
type Resolver interface {
	// Resolve tries each candidate tier in order. It returns
	// ErrNormativeLookupExhausted together with a provenance-bearing
	// Resolution (nil percentile, fallback source kind) when no tier has
	// data; it never drops the scale from output silently.
	Resolve(ctx context.Context, req Request) (Resolution, error)
}

type tableResolver struct {
	tables TableProvider
}

// NewResolver creates a Resolver backed by the given tables.
func NewResolver(tables TableProvider) Resolver {
	return &tableResolver{tables: tables}
}

func (r *tableResolver) Resolve(ctx context.Context, req Request) (Resolution, error) {
	if err := ctx.Err(); err != nil {
		return Resolution{}, fmt.Errorf("normative lookup cancelled: %w", err)
	}
	if len(req.Candidates) == 0 {
		return Resolution{}, fmt.Errorf("scale %s: no norm group candidates: %w", req.Scale, ErrNormativeLookupExhausted)
	}

	for i, cand := range req.Candidates {
		final := i == len(req.Candidates)-1

		rows := r.tables.Rows(cand.Group, req.Version, req.Scale)
		if len(rows) == 0 {
			if final {
				return exhausted(req, cand), fmt.Errorf("scale %s raw %v: no tier has data: %w", req.Scale, req.Raw, ErrNormativeLookupExhausted)
			}
			continue
		}

		sorted := make([]model.NormEntry, len(rows))
		copy(sorted, rows)
		sort.Slice(sorted, func(a, b int) bool { return sorted[a].Raw < sorted[b].Raw })

		minRaw, maxRaw := sorted[0].Raw, sorted[len(sorted)-1].Raw
		covered := req.Raw >= minRaw && req.Raw <= maxRaw
		if !covered && !final {
			// Intermediate tiers that cannot cover the score are skipped
			// entirely, never truncated.
			continue
		}

		lookup := req.Raw
		truncated := false
		if !covered {
			truncated = true
			if req.Raw < minRaw {
				lookup = minRaw
			} else {
				lookup = maxRaw
			}
		}

		pct := percentileAt(sorted, lookup)
		return Resolution{
			Scale:      req.Scale,
			Raw:        req.Raw,
			Percentile: &pct,
			NormGroup:  cand.Group,
			SourceKind: sourceKind(cand),
			Tag:        tag(cand),
			Truncated:  truncated,
		}, nil
	}

	// Unreachable: the loop always returns on the final candidate.
	last := req.Candidates[len(req.Candidates)-1]
	return exhausted(req, last), fmt.Errorf("scale %s: %w", req.Scale, ErrNormativeLookupExhausted)
}

// percentileAt reads the percentile for a covered raw value, stepping down
// to the nearest tabled raw when the exact value is absent.
func percentileAt(sorted []model.NormEntry, raw float64) float64 {
	idx := sort.Search(len(sorted), func(i int) bool { return sorted[i].Raw > raw })
	if idx == 0 {
		return sorted[0].Percentile
	}
	return sorted[idx-1].Percentile
}

func exhausted(req Request, cand Candidate) Resolution {
	return Resolution{
		Scale:      req.Scale,
		Raw:        req.Raw,
		Percentile: nil,
		NormGroup:  cand.Group,
		SourceKind: types.SourceFallbackAppendix,
		Tag:        tag(cand),
		Truncated:  false,
	}
}

func sourceKind(cand Candidate) types.SourceKind {
	if cand.Fallback {
		return types.SourceFallbackAppendix
	}
	return types.SourceExactNormGroup
}

func tag(cand Candidate) string {
	if cand.Fallback {
		return cand.Group + " (fallback)"
	}
	return cand.Group
}
