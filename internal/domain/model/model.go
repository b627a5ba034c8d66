// Package model contains the engine data model passed between layers.
package model

import (
	"time"

	"github.com/Farid-Ze/kolb-sub001/internal/domain/types"
)

// ItemResponse is a single inventory item response, tagged with the basic
// mode scale it contributes to.
type ItemResponse struct {
	ItemID string
	Scale  types.ScaleCode // one of CE, RO, AC, AE
	Value  float64         // rank value assigned by the respondent
}

// ContextResponse is a raw per-context submission. The context name is
// validated against the canonical catalog during aggregation.
type ContextResponse struct {
	Context string
	Value   float64
}

// SessionRecord is the engine's view of a completed assessment session, as
// returned by the session repository.
type SessionRecord struct {
	ID          string
	UserID      string
	Instrument  string // strategy key, e.g. "klsi.v4"
	Completed   bool
	Excluded    bool // explicitly excluded from scoring per policy
	Items       []ItemResponse
	ContextResp []ContextResponse
	SubmittedAt time.Time
}

// ScaleScore is one raw basic-mode score. Unique per (session, scale);
// recomputation overwrites by that key.
type ScaleScore struct {
	SessionID string
	Scale     types.ScaleCode
	Raw       float64
}

// CombinationScore holds the two derived classification axes. One row per
// session, never independently mutated.
type CombinationScore struct {
	SessionID string
	ACCERaw   float64 // AC - CE
	AERORaw   float64 // AE - RO
}

// StyleAssignment is the resolved primary learning style. One per session.
type StyleAssignment struct {
	SessionID string
	Style     types.Style
}

// PercentileRecord is the user-facing percentile for one scale, with the
// normative tier that produced it. Unique per (session, scale). Percentile
// is nil when every tier was exhausted.
type PercentileRecord struct {
	SessionID  string
	Scale      types.ScaleCode
	Percentile *float64
	SourceTag  string
	SourceKind types.SourceKind
	NormGroup  string
	Truncated  bool
}

// ScaleProvenance is the audit mirror of PercentileRecord, carrying the raw
// score and the verbatim provenance tag. Unique per (session, scale).
type ScaleProvenance struct {
	SessionID  string
	Scale      types.ScaleCode
	Raw        float64
	Percentile *float64
	Tag        string
	SourceKind types.SourceKind
	NormGroup  string
	Truncated  bool
}

// ContextScore is the aggregated score for one canonical context. Unique
// per (session, context); the earliest computed value wins.
type ContextScore struct {
	SessionID string
	Context   types.Context
	Raw       float64
}

// FlexibilityIndex is the per-session LFI row. Percentile, Level, and
// NormGroup are nil when the LFI normative lookup was unavailable.
type FlexibilityIndex struct {
	SessionID  string
	W          float64
	Score      float64
	Percentile *float64
	Level      *string
	NormGroup  *string
}

// NormEntry is one row of the read-only normative conversion table.
type NormEntry struct {
	Group      string
	Version    string
	Scale      types.ScaleCode
	Raw        float64
	Percentile float64
}

// Snapshot aggregates everything the engine persists for one session. A
// partial snapshot (some fields nil or short) is attached to controlled
// aborts; a complete one backs a Finalized outcome.
type Snapshot struct {
	SessionID       string
	Scales          []ScaleScore
	Combination     *CombinationScore
	Style           *StyleAssignment
	Percentiles     []PercentileRecord
	Provenance      []ScaleProvenance
	UsedFallbackAny bool
	Contexts        []ContextScore
	Flexibility     *FlexibilityIndex
}

// ScaleByCode returns the raw score for one basic mode, if present.
func (s *Snapshot) ScaleByCode(code types.ScaleCode) (ScaleScore, bool) {
	for _, sc := range s.Scales {
		if sc.Scale == code {
			return sc, true
		}
	}
	return ScaleScore{}, false
}

// Clone returns a deep copy so abort payloads cannot alias live state.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	out := &Snapshot{
		SessionID:       s.SessionID,
		UsedFallbackAny: s.UsedFallbackAny,
	}
	out.Scales = append(out.Scales, s.Scales...)
	out.Percentiles = append(out.Percentiles, s.Percentiles...)
	out.Provenance = append(out.Provenance, s.Provenance...)
	out.Contexts = append(out.Contexts, s.Contexts...)
	if s.Combination != nil {
		c := *s.Combination
		out.Combination = &c
	}
	if s.Style != nil {
		st := *s.Style
		out.Style = &st
	}
	if s.Flexibility != nil {
		f := *s.Flexibility
		out.Flexibility = &f
	}
	return out
}
