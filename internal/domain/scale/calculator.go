// Package scale computes the four basic-mode raw scores and the two
// combination scores from a session's item responses.
package scale

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Farid-Ze/kolb-sub001/internal/domain/model"
	"github.com/Farid-Ze/kolb-sub001/internal/domain/types"
)

// Result carries the computed scores for one session. Scales are always in
// canonical order (CE, RO, AC, AE) regardless of how they were computed.
type Result struct {
	Scales      []model.ScaleScore
	Combination model.CombinationScore
}

// Calculator aggregates item responses into scale scores.
type Calculator interface {
	// Score computes the basic-mode and combination scores, honoring ctx
	// for cancellation. Missing responses for any basic mode fail with
	// ErrIncompleteResponseSet; no imputation is performed.
	Score(ctx context.Context, sessionID string, items []model.ItemResponse) (Result, error)
}

// Option applies a configuration option to the calculator.
type Option func(*calculator)

// WithConcurrentModes enables computing the four mode sums in parallel.
// Output ordering stays canonical either way.
func WithConcurrentModes(enabled bool) Option {
	return func(c *calculator) {
		c.concurrent = enabled
	}
}

type calculator struct {
	concurrent bool
}

// NewCalculator creates a Calculator with configuration options.
func NewCalculator(opts ...Option) Calculator {
	c := &calculator{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *calculator) Score(ctx context.Context, sessionID string, items []model.ItemResponse) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("scale scoring cancelled: %w", err)
	}

	grouped := make(map[types.ScaleCode][]float64, len(types.BasicModes()))
	for _, item := range items {
		switch item.Scale {
		case types.ScaleCE, types.ScaleRO, types.ScaleAC, types.ScaleAE:
			grouped[item.Scale] = append(grouped[item.Scale], item.Value)
		default:
			return Result{}, fmt.Errorf("item %s: unexpected scale %q: %w", item.ItemID, item.Scale, ErrIncompleteResponseSet)
		}
	}

	var missing []string
	for _, mode := range types.BasicModes() {
		if len(grouped[mode]) == 0 {
			missing = append(missing, string(mode))
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return Result{}, fmt.Errorf("missing responses for scales %v: %w", missing, ErrIncompleteResponseSet)
	}

	raw := make(map[types.ScaleCode]float64, len(types.BasicModes()))
	if c.concurrent {
		var (
			mu sync.Mutex
			wg sync.WaitGroup
		)
		for _, mode := range types.BasicModes() {
			wg.Add(1)
			go func(mode types.ScaleCode) {
				defer wg.Done()
				total := sum(grouped[mode])
				mu.Lock()
				raw[mode] = total
				mu.Unlock()
			}(mode)
		}
		wg.Wait()
	} else {
		for _, mode := range types.BasicModes() {
			raw[mode] = sum(grouped[mode])
		}
	}

	res := Result{
		Combination: model.CombinationScore{
			SessionID: sessionID,
			ACCERaw:   raw[types.ScaleAC] - raw[types.ScaleCE],
			AERORaw:   raw[types.ScaleAE] - raw[types.ScaleRO],
		},
	}
	for _, mode := range types.BasicModes() {
		res.Scales = append(res.Scales, model.ScaleScore{
			SessionID: sessionID,
			Scale:     mode,
			Raw:       raw[mode],
		})
	}
	return res, nil
}

func sum(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total
}
