package runtime

import (
	"time"

	"github.com/Farid-Ze/kolb-sub001/internal/domain/model"
	"github.com/Farid-Ze/kolb-sub001/internal/domain/types"
	"github.com/Farid-Ze/kolb-sub001/internal/domain/validate"
)

// Status is the terminal state of a scoring run.
type Status string

const (
	StatusFinalized Status = "finalized"
	StatusAborted   Status = "aborted"
	StatusFailed    Status = "failed"
)

// Outcome is the result of scoring one session. Exactly one of the three
// terminal states applies: Finalized carries a complete snapshot plus the
// validation result, Aborted carries the reason and whatever partial
// snapshot existed at the abort point, Failed carries the error.
type Outcome struct {
	Status        Status
	SessionID     string
	CorrelationID string
	Snapshot      *model.Snapshot
	Validation    *validate.Result
	AbortReason   string
	AbortPayload  map[string]any
	Err           error
	Timings       map[types.Phase]time.Duration
}

// Abort is the controlled, non-fatal termination signal: scoring should
// stop per policy, not because something broke. Callers treat it as a
// normal termination path and may persist the partial snapshot.
type Abort struct {
	Reason  string
	Payload map[string]any
	Partial *model.Snapshot
}

func (a *Abort) Error() string {
	return "scoring aborted: " + a.Reason
}
