package memory

import (
	"fmt"
	"strings"

	"github.com/bdobrica/Kensa/internal/kensa/llm"
)

// BuildContext assembles the ordered context block injected between the
// system prompt and the current question on every LLM call:
//
//  1. Long-term hits first (background knowledge, scored for transparency).
//  2. The earlier-conversation summary, when the caller populated it.
//  3. Recent turns in chronological order, carrying their real roles so the
//     model sees the dialogue structurally rather than as prefixed text.
//
// All-empty inputs produce a nil block.
func BuildContext(hits []ScoredMemory, mem ShortTermMemory) []llm.Message {
	var msgs []llm.Message

	if len(hits) > 0 {
		var b strings.Builder
		b.WriteString("Relevant long-term memories:\n")
		for _, h := range hits {
			fmt.Fprintf(&b, "- (score=%.3f) %s\n", h.Score, h.Text)
		}
		msgs = append(msgs, llm.User(strings.TrimRight(b.String(), "\n")))
	}

	if mem.OlderSummary != "" {
		msgs = append(msgs, llm.User("Earlier summary:\n"+mem.OlderSummary))
	}

	for _, turn := range mem.RecentTurns {
		role := llm.RoleUser
		if turn.Role == RoleAssistant {
			role = llm.RoleAssistant
		}
		msgs = append(msgs, llm.Message{Role: role, Content: turn.Content})
	}

	return msgs
}
