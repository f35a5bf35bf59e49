// Package memory implements Kensa's two conversation-memory subsystems:
// a durable per-user long-term ledger retrieved by lexical+recency ranking,
// and a bounded in-session sliding window of recent turns.
package memory

// Turn roles. Only the human/assistant pair appears in the short-term
// window; system-role context is assembled separately.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is a single message in the short-term window.
type Turn struct {
	Role    string
	Content string
}

// ShortTermMemory is the in-session sliding window: a bounded list of recent
// turns plus an opaque summary of whatever was evicted. The summary is a
// pass-through field — this package never populates it. Compressing dropped
// turns into OlderSummary is an explicit policy decision left to the caller.
type ShortTermMemory struct {
	OlderSummary string
	RecentTurns  []Turn
}

// DefaultRecentTurnCap is the default bound on RecentTurns.
const DefaultRecentTurnCap = 6

// AppendTurn returns a copy of mem with the user/assistant pair appended and
// the window truncated to the last max turns (oldest dropped first). The
// pair is always appended together, preserving strict alternation.
//
// Pure function over the memory value: the input is never mutated, so
// callers can safely retain old snapshots.
func AppendTurn(mem ShortTermMemory, userText, assistantText string, max int) ShortTermMemory {
	if max <= 0 {
		max = DefaultRecentTurnCap
	}

	turns := make([]Turn, 0, len(mem.RecentTurns)+2)
	turns = append(turns, mem.RecentTurns...)
	turns = append(turns,
		Turn{Role: RoleUser, Content: userText},
		Turn{Role: RoleAssistant, Content: assistantText},
	)

	if len(turns) > max {
		turns = turns[len(turns)-max:]
	}

	return ShortTermMemory{
		OlderSummary: mem.OlderSummary,
		RecentTurns:  turns,
	}
}
