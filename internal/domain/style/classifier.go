// Package style maps combination scores onto the nine-style grid.
//
// Band cutoffs are psychometric constants supplied by the reference
// catalog, not tunable parameters. A nil upper bound on a band means +Inf;
// the lowest band is always open below (-Inf).
package style

import (
	"fmt"

	"github.com/Farid-Ze/kolb-sub001/internal/domain/model"
	"github.com/Farid-Ze/kolb-sub001/internal/domain/types"
)

// AxisThresholds holds the two inclusive upper cutoffs for one axis:
// values <= LowMax band Low, values <= MidMax band Mid, everything else
// High. A nil cutoff stands for +Inf, making that band open-ended.
type AxisThresholds struct {
	LowMax *float64
	MidMax *float64
}

// Thresholds holds the cutoffs for both classification axes.
type Thresholds struct {
	ACCE AxisThresholds
	AERO AxisThresholds
}

// Grid maps (ACCE band, AERO band) to a canonical style label.
type Grid map[types.Band]map[types.Band]types.Style

// Classifier resolves combination scores to a learning style.
type Classifier struct {
	thresholds Thresholds
	grid       Grid
}

// NewClassifier validates that the grid is a total function from the nine
// band pairs onto canonical style labels and returns a Classifier.
func NewClassifier(thresholds Thresholds, grid Grid) (*Classifier, error) {
	for _, acce := range types.Bands() {
		row, ok := grid[acce]
		if !ok {
			return nil, fmt.Errorf("style grid missing ACCE band %q: %w", acce, ErrIncompleteGrid)
		}
		for _, aero := range types.Bands() {
			label, ok := row[aero]
			if !ok {
				return nil, fmt.Errorf("style grid missing cell (%s, %s): %w", acce, aero, ErrIncompleteGrid)
			}
			if !label.Valid() {
				return nil, fmt.Errorf("style grid cell (%s, %s) has non-canonical label %q: %w", acce, aero, label, ErrUnknownStyle)
			}
		}
	}
	return &Classifier{thresholds: thresholds, grid: grid}, nil
}

// Band places a value into a band using the axis cutoffs. Cutoffs are
// inclusive at the lower break.
func Band(t AxisThresholds, value float64) types.Band {
	if t.LowMax != nil && value <= *t.LowMax {
		return types.BandLow
	}
	if t.LowMax == nil {
		// Open-ended Low band swallows everything.
		return types.BandLow
	}
	if t.MidMax == nil || value <= *t.MidMax {
		return types.BandMid
	}
	return types.BandHigh
}

// Classify resolves the style assignment for a combination score. The
// mapping is deterministic: identical inputs always yield the same label.
func (c *Classifier) Classify(comb model.CombinationScore) (model.StyleAssignment, error) {
	acceBand := Band(c.thresholds.ACCE, comb.ACCERaw)
	aeroBand := Band(c.thresholds.AERO, comb.AERORaw)
	label := c.grid[acceBand][aeroBand]
	if !label.Valid() {
		return model.StyleAssignment{}, fmt.Errorf("cell (%s, %s): %w", acceBand, aeroBand, ErrUnknownStyle)
	}
	return model.StyleAssignment{SessionID: comb.SessionID, Style: label}, nil
}

// Bands exposes the banding of both axes for observability and validation.
func (c *Classifier) Bands(comb model.CombinationScore) (acce, aero types.Band) {
	return Band(c.thresholds.ACCE, comb.ACCERaw), Band(c.thresholds.AERO, comb.AERORaw)
}
