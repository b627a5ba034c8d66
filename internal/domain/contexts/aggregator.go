// Package contexts aggregates per-context responses across the eight
// canonical decision contexts, enforcing one score per (session, context).
package contexts

import (
	"context"
	"fmt"

	"github.com/Farid-Ze/kolb-sub001/internal/domain/model"
	"github.com/Farid-Ze/kolb-sub001/internal/domain/types"
)

// Aggregator produces exactly one ContextScore per submitted context.
type Aggregator interface {
	// Aggregate validates every response against the canonical context
	// catalog and keeps the first value submitted for each context;
	// later duplicates are no-ops, not errors. Output follows the
	// canonical context ordering.
	Aggregate(ctx context.Context, sessionID string, responses []model.ContextResponse) ([]model.ContextScore, error)
}

type aggregator struct{}

// NewAggregator creates a context score aggregator.
func NewAggregator() Aggregator {
	return &aggregator{}
}

func (a *aggregator) Aggregate(ctx context.Context, sessionID string, responses []model.ContextResponse) ([]model.ContextScore, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context aggregation cancelled: %w", err)
	}

	// First submission wins; reprocessing must not overwrite the earliest
	// computed value.
	seen := make(map[types.Context]float64, len(types.Contexts()))
	for _, resp := range responses {
		name, err := types.ParseContext(resp.Context)
		if err != nil {
			return nil, fmt.Errorf("%v: %w", err, ErrUnknownContext)
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = resp.Value
	}

	scores := make([]model.ContextScore, 0, len(seen))
	for _, name := range types.Contexts() {
		value, ok := seen[name]
		if !ok {
			continue
		}
		scores = append(scores, model.ContextScore{
			SessionID: sessionID,
			Context:   name,
			Raw:       value,
		})
	}
	return scores, nil
}

// Complete reports whether scores cover every canonical context exactly once.
func Complete(scores []model.ContextScore) bool {
	if len(scores) != len(types.Contexts()) {
		return false
	}
	seen := make(map[types.Context]struct{}, len(scores))
	for _, s := range scores {
		if _, dup := seen[s.Context]; dup {
			return false
		}
		seen[s.Context] = struct{}{}
	}
	return true
}
