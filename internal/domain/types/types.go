// Package types contains the closed catalogs shared across the scoring engine:
// scale codes, bands, the nine learning styles, the eight decision contexts,
// provenance source kinds, and runtime phases. Membership in every catalog is
// closed; free-text values are rejected at the boundary.
package types

import "fmt"

// ScaleCode identifies a scored scale.
type ScaleCode string

// Basic learning-mode scales, combination scales, and the reserved LFI scale.
const (
	ScaleCE   ScaleCode = "CE"
	ScaleRO   ScaleCode = "RO"
	ScaleAC   ScaleCode = "AC"
	ScaleAE   ScaleCode = "AE"
	ScaleACCE ScaleCode = "ACCE"
	ScaleAERO ScaleCode = "AERO"
	ScaleLFI  ScaleCode = "LFI"
)

// BasicModes returns the four basic-mode scales in canonical order.
func BasicModes() []ScaleCode {
	return []ScaleCode{ScaleCE, ScaleRO, ScaleAC, ScaleAE}
}

// CombinationScales returns the two combination scales in canonical order.
func CombinationScales() []ScaleCode {
	return []ScaleCode{ScaleACCE, ScaleAERO}
}

// PercentileScales returns every scale whose percentile participates in the
// session-level fallback aggregate. LFI is excluded on purpose; its lookup
// may legitimately be unavailable.
func PercentileScales() []ScaleCode {
	return []ScaleCode{ScaleCE, ScaleRO, ScaleAC, ScaleAE, ScaleACCE, ScaleAERO}
}

// ParseScaleCode validates s against the scale catalog.
func ParseScaleCode(s string) (ScaleCode, error) {
	switch ScaleCode(s) {
	case ScaleCE, ScaleRO, ScaleAC, ScaleAE, ScaleACCE, ScaleAERO, ScaleLFI:
		return ScaleCode(s), nil
	}
	return "", fmt.Errorf("unknown scale code: %q", s)
}

// Band is a classification band on one combination-score axis.
type Band string

const (
	BandLow  Band = "low"
	BandMid  Band = "mid"
	BandHigh Band = "high"
)

// Bands returns all bands in ascending order.
func Bands() []Band {
	return []Band{BandLow, BandMid, BandHigh}
}

// Valid reports whether b belongs to the band catalog.
func (b Band) Valid() bool {
	return b == BandLow || b == BandMid || b == BandHigh
}

// Style is one of the nine canonical learning styles.
type Style string

const (
	StyleInitiating   Style = "Initiating"
	StyleExperiencing Style = "Experiencing"
	StyleImagining    Style = "Imagining"
	StyleReflecting   Style = "Reflecting"
	StyleAnalyzing    Style = "Analyzing"
	StyleThinking     Style = "Thinking"
	StyleDeciding     Style = "Deciding"
	StyleActing       Style = "Acting"
	StyleBalancing    Style = "Balancing"
)

// Styles returns the nine canonical style labels.
func Styles() []Style {
	return []Style{
		StyleInitiating, StyleExperiencing, StyleImagining,
		StyleReflecting, StyleAnalyzing, StyleThinking,
		StyleDeciding, StyleActing, StyleBalancing,
	}
}

// Valid reports whether s belongs to the style catalog.
func (s Style) Valid() bool {
	for _, known := range Styles() {
		if s == known {
			return true
		}
	}
	return false
}

// Context is one of the eight canonical decision contexts used for
// flexibility scoring.
type Context string

const (
	ContextStartingNewUndertaking Context = "starting_a_new_undertaking"
	ContextInfluencingSomeone     Context = "influencing_someone"
	ContextGettingToKnowSomeone   Context = "getting_to_know_someone"
	ContextLearningInGroup        Context = "learning_in_a_group"
	ContextPlanningSomething      Context = "planning_something"
	ContextAnalyzingSomething     Context = "analyzing_something"
	ContextEvaluatingOpportunity  Context = "evaluating_an_opportunity"
	ContextChoosingBetweenOptions Context = "choosing_between_alternatives"
)

// Contexts returns the eight canonical contexts in canonical order. The
// ordering is part of the output contract; aggregated context scores are
// always emitted in this order.
func Contexts() []Context {
	return []Context{
		ContextStartingNewUndertaking,
		ContextInfluencingSomeone,
		ContextGettingToKnowSomeone,
		ContextLearningInGroup,
		ContextPlanningSomething,
		ContextAnalyzingSomething,
		ContextEvaluatingOpportunity,
		ContextChoosingBetweenOptions,
	}
}

// ParseContext validates s against the context catalog.
func ParseContext(s string) (Context, error) {
	for _, known := range Contexts() {
		if Context(s) == known {
			return known, nil
		}
	}
	return "", fmt.Errorf("unknown context: %q", s)
}

// SourceKind tags which normative tier produced a percentile.
type SourceKind string

const (
	SourceExactNormGroup   SourceKind = "exact_norm_group"
	SourceFallbackAppendix SourceKind = "fallback_appendix"
)

// Phase identifies a runtime phase or terminal state.
type Phase string

const (
	PhaseResolving          Phase = "resolving"
	PhaseScoring            Phase = "scoring"
	PhaseClassifying        Phase = "classifying"
	PhaseNormalizing        Phase = "normalizing"
	PhaseContextAggregating Phase = "context_aggregating"
	PhaseValidating         Phase = "validating"
	PhaseFinalized          Phase = "finalized"
	PhaseAborted            Phase = "aborted"
	PhaseFailed             Phase = "failed"
)
