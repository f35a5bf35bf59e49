package orchestrator

import (
	"github.com/google/uuid"

	"github.com/bdobrica/Kensa/internal/kensa/memory"
)

// Session is the transient per-conversation state threaded by the caller
// across turns. Handle treats it as an immutable value: every call returns
// a new Session and never mutates its input, so there is no hidden shared
// state between turns.
type Session struct {
	// ID correlates log lines from one interactive run. Inert otherwise.
	ID string

	// UserID scopes long-term memory. Zero means anonymous: the turn runs
	// without long-term retrieval and commits nothing to the ledger.
	UserID int64

	// Memory is the short-term sliding window plus the caller-managed
	// summary slot.
	Memory memory.ShortTermMemory

	// Metrics is the running map of extracted numeric metrics. Later
	// extractions overwrite earlier values under the same key.
	Metrics map[string]float64
}

// NewSession creates an empty session for the given user. Pass 0 for an
// anonymous, ephemeral session.
func NewSession(userID int64) Session {
	return Session{
		ID:      uuid.New().String(),
		UserID:  userID,
		Metrics: make(map[string]float64),
	}
}

// cloneMetrics copies a metrics map so returned sessions never alias the
// caller's map.
func cloneMetrics(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
