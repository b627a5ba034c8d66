package norms

import (
	"github.com/Farid-Ze/kolb-sub001/internal/domain/model"
	"github.com/Farid-Ze/kolb-sub001/internal/domain/types"
)

// PercentileRecordOf converts a resolution into the user-facing percentile
// row for its scale.
func PercentileRecordOf(sessionID string, res Resolution) model.PercentileRecord {
	return model.PercentileRecord{
		SessionID:  sessionID,
		Scale:      res.Scale,
		Percentile: res.Percentile,
		SourceTag:  res.Tag,
		SourceKind: res.SourceKind,
		NormGroup:  res.NormGroup,
		Truncated:  res.Truncated,
	}
}

// ProvenanceOf converts a resolution into the audit record mirroring the
// percentile row, carrying the raw score and the verbatim tier tag.
func ProvenanceOf(sessionID string, res Resolution) model.ScaleProvenance {
	return model.ScaleProvenance{
		SessionID:  sessionID,
		Scale:      res.Scale,
		Raw:        res.Raw,
		Percentile: res.Percentile,
		Tag:        res.Tag,
		SourceKind: res.SourceKind,
		NormGroup:  res.NormGroup,
		Truncated:  res.Truncated,
	}
}

// UsedFallbackAny aggregates the session-level low-confidence flag: true
// if any of the CE/RO/AC/AE/ACCE/AERO resolutions used a non-exact tier.
func UsedFallbackAny(records []model.PercentileRecord) bool {
	flagged := make(map[types.ScaleCode]struct{}, len(types.PercentileScales()))
	for _, scale := range types.PercentileScales() {
		flagged[scale] = struct{}{}
	}
	for _, rec := range records {
		if _, ok := flagged[rec.Scale]; !ok {
			continue
		}
		if rec.SourceKind == types.SourceFallbackAppendix {
			return true
		}
	}
	return false
}
