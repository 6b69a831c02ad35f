package checkpoint

import (
	"context"
	"testing"

	"github.com/devagent/agentcore/pkg/agentcore/state"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(SQLiteConfig{Path: ":memory:"}, nil)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore_PutThenGetTuple(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()
	cfg := Config{ThreadID: "thread-1"}

	st := state.CreateState(nil)
	st.Todos = []string{"write hello.txt"}

	id, err := s.Put(ctx, cfg, Checkpoint{Step: 0, State: st}, Metadata{"node": "planner"})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if id == "" {
		t.Fatal("expected non-empty checkpoint id")
	}

	tuple, ok, err := s.GetTuple(ctx, cfg)
	if err != nil {
		t.Fatalf("GetTuple: %v", err)
	}
	if !ok {
		t.Fatal("expected a checkpoint to exist")
	}
	if tuple.Checkpoint.ID != id {
		t.Errorf("expected checkpoint id %q, got %q", id, tuple.Checkpoint.ID)
	}
	if len(tuple.Checkpoint.State.Todos) != 1 || tuple.Checkpoint.State.Todos[0] != "write hello.txt" {
		t.Errorf("unexpected rehydrated todos: %+v", tuple.Checkpoint.State.Todos)
	}
	if tuple.Metadata["node"] != "planner" {
		t.Errorf("expected metadata preserved, got %+v", tuple.Metadata)
	}
}

func TestSQLiteStore_ListNewestFirst(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()
	cfg := Config{ThreadID: "thread-2"}

	for step := 0; step < 3; step++ {
		st := state.CreateState(nil)
		st.IterationCount = step
		if _, err := s.Put(ctx, cfg, Checkpoint{Step: step, State: st}, nil); err != nil {
			t.Fatalf("Put step %d: %v", step, err)
		}
	}

	tuples, err := s.List(ctx, cfg, ListOptions{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(tuples) != 3 {
		t.Fatalf("expected 3 checkpoints, got %d", len(tuples))
	}
	for i := 0; i < len(tuples)-1; i++ {
		if tuples[i].Checkpoint.Step < tuples[i+1].Checkpoint.Step {
			t.Fatalf("expected newest-first ordering, got steps %+v", tuples)
		}
	}
}

func TestSQLiteStore_DeleteThreadRemovesEverything(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()
	cfg := Config{ThreadID: "thread-3"}

	if _, err := s.Put(ctx, cfg, Checkpoint{Step: 0, State: state.CreateState(nil)}, nil); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.DeleteThread(ctx, cfg.ThreadID); err != nil {
		t.Fatalf("DeleteThread: %v", err)
	}
	_, ok, err := s.GetTuple(ctx, cfg)
	if err != nil {
		t.Fatalf("GetTuple: %v", err)
	}
	if ok {
		t.Fatal("expected no checkpoint after thread deletion")
	}
}

func TestSQLiteStore_GetTuple_UnknownThread(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	_, ok, err := s.GetTuple(context.Background(), Config{ThreadID: "does-not-exist"})
	if err != nil {
		t.Fatalf("GetTuple: %v", err)
	}
	if ok {
		t.Fatal("expected no checkpoint for unknown thread")
	}
}
