package state

import "testing"

func TestReduceMessages_AppendsInOrder(t *testing.T) {
	t.Parallel()
	a := NewHumanMessage("hi")
	b := NewAssistantMessage("hello", nil, "")

	got := ReduceMessages(nil, []Delta{a, b})
	if len(got) != 2 || got[0].ID != a.ID || got[1].ID != b.ID {
		t.Fatalf("unexpected log: %+v", got)
	}
}

func TestReduceMessages_TombstoneRemovesExisting(t *testing.T) {
	t.Parallel()
	a := NewHumanMessage("hi")
	current := []Message{a}

	got := ReduceMessages(current, []Delta{RemoveMessage{ID: a.ID}})
	if len(got) != 0 {
		t.Fatalf("expected tombstoned message removed, got %+v", got)
	}
}

func TestReduceMessages_TombstoneThenAppendEquivalentToAppendAlone(t *testing.T) {
	t.Parallel()
	a := NewHumanMessage("hi")
	b := NewHumanMessage("bye")
	current := []Message{a}

	gotTombstoned := ReduceMessages(current, []Delta{RemoveMessage{ID: a.ID}, b})
	gotDirect := ReduceMessages(nil, []Delta{b})

	if len(gotTombstoned) != 1 || len(gotDirect) != 1 {
		t.Fatalf("expected single-message logs, got %+v / %+v", gotTombstoned, gotDirect)
	}
	if gotTombstoned[0].ID != gotDirect[0].ID {
		t.Fatalf("tombstone+append diverged from direct append: %+v vs %+v", gotTombstoned, gotDirect)
	}
}

func TestReduceMessages_DeduplicatesOnID(t *testing.T) {
	t.Parallel()
	a := NewHumanMessage("hi")
	current := []Message{a}

	// Re-appending the same id (e.g. a replayed node) must not duplicate it.
	got := ReduceMessages(current, []Delta{a})
	if len(got) != 1 {
		t.Fatalf("expected dedup, got %d messages", len(got))
	}
}

func TestReduceMessages_TombstoneIsIdempotent(t *testing.T) {
	t.Parallel()
	a := NewHumanMessage("hi")
	current := []Message{a}

	first := ReduceMessages(current, []Delta{RemoveMessage{ID: a.ID}})
	second := ReduceMessages(first, []Delta{RemoveMessage{ID: a.ID}})
	if len(first) != 0 || len(second) != 0 {
		t.Fatalf("expected tombstone idempotent, got %+v then %+v", first, second)
	}
}

func TestRecentToolResult(t *testing.T) {
	t.Parallel()
	msgs := []Message{
		NewHumanMessage("go"),
		NewToolResultMessage("tc1", "bash", "ok", ToolResultOK),
		NewAssistantMessage("done", nil, ""),
	}
	if !RecentToolResult(msgs, 2) {
		t.Fatal("expected tool result within last 2 messages")
	}
	if RecentToolResult(msgs, 1) {
		t.Fatal("did not expect tool result within last 1 message")
	}
}
