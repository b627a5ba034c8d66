// Package refdata loads the KLSI reference catalog (normative conversion
// tables, band cutoffs, the style grid, score ranges, flexibility buckets)
// into an immutable snapshot shared by every scoring component.
//
// The catalog is parsed once at startup; accessors hand out copies so no
// caller can mutate the shared state.
package refdata

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Farid-Ze/kolb-sub001/internal/domain/flex"
	"github.com/Farid-Ze/kolb-sub001/internal/domain/model"
	"github.com/Farid-Ze/kolb-sub001/internal/domain/norms"
	"github.com/Farid-Ze/kolb-sub001/internal/domain/style"
	"github.com/Farid-Ze/kolb-sub001/internal/domain/types"
	"github.com/Farid-Ze/kolb-sub001/internal/domain/validate"
)

//go:embed catalog.yaml
var defaultCatalog []byte

type catalogFile struct {
	Version    string `yaml:"version"`
	Candidates []struct {
		Group    string `yaml:"group"`
		Fallback bool   `yaml:"fallback"`
	} `yaml:"candidates"`
	BandThresholds struct {
		ACCE axisFile `yaml:"acce"`
		AERO axisFile `yaml:"aero"`
	} `yaml:"band_thresholds"`
	StyleGrid         map[string]map[string]string `yaml:"style_grid"`
	ScaleRanges       map[string]rangeFile         `yaml:"scale_ranges"`
	ContextScoreRange rangeFile                    `yaml:"context_score_range"`
	CombinedSpan      float64                      `yaml:"combined_span"`
	FlexibilityLevels []struct {
		UpTo  *float64 `yaml:"up_to"`
		Level string   `yaml:"level"`
	} `yaml:"flexibility_levels"`
	Tables []struct {
		Group   string `yaml:"group"`
		Version string `yaml:"version"`
		Scale   string `yaml:"scale"`
		Rows    []struct {
			Raw        float64 `yaml:"raw"`
			Percentile float64 `yaml:"percentile"`
		} `yaml:"rows"`
	} `yaml:"tables"`
}

type axisFile struct {
	LowMax *float64 `yaml:"low_max"`
	MidMax *float64 `yaml:"mid_max"`
}

type rangeFile struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

type tableKey struct {
	group   string
	version string
	scale   types.ScaleCode
}

// Snapshot is the immutable, process-wide view of the reference catalog.
// It implements norms.TableProvider.
type Snapshot struct {
	version      string
	candidates   []norms.Candidate
	thresholds   style.Thresholds
	grid         style.Grid
	scaleRanges  map[types.ScaleCode]validate.ScaleRange
	contextRange rangeFile
	combinedSpan float64
	buckets      []flex.Bucket
	tables       map[tableKey][]model.NormEntry
}

// Load parses the catalog at path, or the embedded default catalog when
// path is empty.
func Load(path string) (*Snapshot, error) {
	raw := defaultCatalog
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCatalogUnreadable, err)
		}
		raw = b
	}
	return parse(raw)
}

func parse(raw []byte) (*Snapshot, error) {
	var f catalogFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalogInvalid, err)
	}
	if f.Version == "" {
		return nil, fmt.Errorf("%w: missing version", ErrCatalogInvalid)
	}
	if len(f.Candidates) == 0 {
		return nil, fmt.Errorf("%w: no norm group candidates", ErrCatalogInvalid)
	}
	if !f.Candidates[len(f.Candidates)-1].Fallback {
		return nil, fmt.Errorf("%w: final candidate must be the fallback tier", ErrCatalogInvalid)
	}

	s := &Snapshot{
		version:      f.Version,
		contextRange: f.ContextScoreRange,
		combinedSpan: f.CombinedSpan,
		scaleRanges:  make(map[types.ScaleCode]validate.ScaleRange, len(f.ScaleRanges)),
		tables:       make(map[tableKey][]model.NormEntry),
	}

	for _, c := range f.Candidates {
		s.candidates = append(s.candidates, norms.Candidate{Group: c.Group, Fallback: c.Fallback})
	}

	s.thresholds = style.Thresholds{
		ACCE: style.AxisThresholds{LowMax: f.BandThresholds.ACCE.LowMax, MidMax: f.BandThresholds.ACCE.MidMax},
		AERO: style.AxisThresholds{LowMax: f.BandThresholds.AERO.LowMax, MidMax: f.BandThresholds.AERO.MidMax},
	}

	s.grid = make(style.Grid, len(f.StyleGrid))
	for acce, row := range f.StyleGrid {
		band := types.Band(acce)
		if !band.Valid() {
			return nil, fmt.Errorf("%w: style grid band %q", ErrCatalogInvalid, acce)
		}
		s.grid[band] = make(map[types.Band]types.Style, len(row))
		for aero, label := range row {
			aeroBand := types.Band(aero)
			if !aeroBand.Valid() {
				return nil, fmt.Errorf("%w: style grid band %q", ErrCatalogInvalid, aero)
			}
			s.grid[band][aeroBand] = types.Style(label)
		}
	}

	for name, r := range f.ScaleRanges {
		code, err := types.ParseScaleCode(name)
		if err != nil {
			return nil, fmt.Errorf("%w: scale range %v", ErrCatalogInvalid, err)
		}
		s.scaleRanges[code] = validate.ScaleRange{Min: r.Min, Max: r.Max}
	}

	for _, b := range f.FlexibilityLevels {
		s.buckets = append(s.buckets, flex.Bucket{UpTo: b.UpTo, Level: b.Level})
	}

	for _, t := range f.Tables {
		code, err := types.ParseScaleCode(t.Scale)
		if err != nil {
			return nil, fmt.Errorf("%w: table %v", ErrCatalogInvalid, err)
		}
		key := tableKey{group: t.Group, version: t.Version, scale: code}
		for _, row := range t.Rows {
			s.tables[key] = append(s.tables[key], model.NormEntry{
				Group:      t.Group,
				Version:    t.Version,
				Scale:      code,
				Raw:        row.Raw,
				Percentile: row.Percentile,
			})
		}
	}
	return s, nil
}

// Version returns the catalog's norm version.
func (s *Snapshot) Version() string { return s.version }

// Candidates returns the ordered norm group chain, most specific first.
func (s *Snapshot) Candidates() []norms.Candidate {
	out := make([]norms.Candidate, len(s.candidates))
	copy(out, s.candidates)
	return out
}

// Thresholds returns the band cutoffs for both classification axes.
func (s *Snapshot) Thresholds() style.Thresholds { return s.thresholds }

// Grid returns a copy of the nine-style grid.
func (s *Snapshot) Grid() style.Grid {
	out := make(style.Grid, len(s.grid))
	for acce, row := range s.grid {
		out[acce] = make(map[types.Band]types.Style, len(row))
		for aero, label := range row {
			out[acce][aero] = label
		}
	}
	return out
}

// ScaleRanges returns a copy of the plausible instrument ranges per scale.
func (s *Snapshot) ScaleRanges() map[types.ScaleCode]validate.ScaleRange {
	out := make(map[types.ScaleCode]validate.ScaleRange, len(s.scaleRanges))
	for k, v := range s.scaleRanges {
		out[k] = v
	}
	return out
}

// ContextScoreRange returns the covered context score range.
func (s *Snapshot) ContextScoreRange() (minScore, maxScore float64) {
	return s.contextRange.Min, s.contextRange.Max
}

// CombinedSpan returns the maximum attainable |ACCE| + |AERO| sum.
func (s *Snapshot) CombinedSpan() float64 { return s.combinedSpan }

// FlexibilityBuckets returns the percentile buckets for flexibility levels.
func (s *Snapshot) FlexibilityBuckets() []flex.Bucket {
	out := make([]flex.Bucket, len(s.buckets))
	copy(out, s.buckets)
	return out
}

// Rows implements norms.TableProvider.
func (s *Snapshot) Rows(group, version string, scale types.ScaleCode) []model.NormEntry {
	rows := s.tables[tableKey{group: group, version: version, scale: scale}]
	out := make([]model.NormEntry, len(rows))
	copy(out, rows)
	return out
}
