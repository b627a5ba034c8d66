package runtime

import (
	"context"
	"sync"
	"time"

	"github.com/Farid-Ze/kolb-sub001/internal/domain/model"
	"github.com/Farid-Ze/kolb-sub001/internal/domain/types"
	"github.com/Farid-Ze/kolb-sub001/internal/domain/validate"
)

// InstrumentKLSIv4 is the strategy key for the Kolb Learning Style
// Inventory 4.0, the only instrument currently implemented.
const InstrumentKLSIv4 = "klsi.v4"

// PhaseRecorder receives the duration of each completed phase.
type PhaseRecorder func(phase types.Phase, d time.Duration)

// Strategy scores one session for a specific instrument. Implementations
// signal policy stops by returning *Abort as the error; anything else is a
// hard failure.
type Strategy interface {
	Score(ctx context.Context, sess model.SessionRecord, record PhaseRecorder) (model.Snapshot, validate.Result, error)
}

// Registry maps instrument keys to strategy implementations. Adding an
// instrument means adding a registry entry, not modifying dispatch logic.
type Registry struct {
	mu         sync.RWMutex
	strategies map[string]Strategy
}

// NewRegistry creates an empty strategy registry.
func NewRegistry() *Registry {
	return &Registry{strategies: make(map[string]Strategy)}
}

// Register binds a strategy to an instrument key.
func (r *Registry) Register(key string, s Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies[key] = s
}

// Lookup returns the strategy for an instrument key.
func (r *Registry) Lookup(key string) (Strategy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.strategies[key]
	return s, ok
}
