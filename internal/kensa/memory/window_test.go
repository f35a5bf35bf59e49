package memory

import "testing"

func TestAppendTurn_AppendsPair(t *testing.T) {
	mem := AppendTurn(ShortTermMemory{}, "hello", "hi there", DefaultRecentTurnCap)

	if len(mem.RecentTurns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(mem.RecentTurns))
	}
	if mem.RecentTurns[0].Role != RoleUser || mem.RecentTurns[0].Content != "hello" {
		t.Errorf("first turn = %+v, want user/hello", mem.RecentTurns[0])
	}
	if mem.RecentTurns[1].Role != RoleAssistant || mem.RecentTurns[1].Content != "hi there" {
		t.Errorf("second turn = %+v, want assistant/hi there", mem.RecentTurns[1])
	}
}

func TestAppendTurn_EvictsOldestPairs(t *testing.T) {
	var mem ShortTermMemory
	mem = AppendTurn(mem, "u1", "a1", 6)
	mem = AppendTurn(mem, "u2", "a2", 6)
	mem = AppendTurn(mem, "u3", "a3", 6)
	mem = AppendTurn(mem, "u4", "a4", 6)

	if len(mem.RecentTurns) != 6 {
		t.Fatalf("expected window of 6, got %d", len(mem.RecentTurns))
	}
	want := []Turn{
		{RoleUser, "u2"}, {RoleAssistant, "a2"},
		{RoleUser, "u3"}, {RoleAssistant, "a3"},
		{RoleUser, "u4"}, {RoleAssistant, "a4"},
	}
	for i, turn := range mem.RecentTurns {
		if turn != want[i] {
			t.Errorf("turn[%d] = %+v, want %+v", i, turn, want[i])
		}
	}
}

func TestAppendTurn_PreservesSummaryAndInput(t *testing.T) {
	orig := ShortTermMemory{
		OlderSummary: "we talked about pass rates",
		RecentTurns:  []Turn{{RoleUser, "u1"}, {RoleAssistant, "a1"}},
	}

	next := AppendTurn(orig, "u2", "a2", 6)

	if next.OlderSummary != orig.OlderSummary {
		t.Errorf("summary changed: %q", next.OlderSummary)
	}
	if len(orig.RecentTurns) != 2 {
		t.Errorf("input mutated: %d turns", len(orig.RecentTurns))
	}
	if len(next.RecentTurns) != 4 {
		t.Errorf("expected 4 turns in result, got %d", len(next.RecentTurns))
	}
}

func TestAppendTurn_ZeroMaxUsesDefault(t *testing.T) {
	var mem ShortTermMemory
	for i := 0; i < 5; i++ {
		mem = AppendTurn(mem, "u", "a", 0)
	}
	if len(mem.RecentTurns) != DefaultRecentTurnCap {
		t.Errorf("expected default cap %d, got %d", DefaultRecentTurnCap, len(mem.RecentTurns))
	}
}
