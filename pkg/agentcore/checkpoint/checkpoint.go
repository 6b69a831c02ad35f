// Package checkpoint implements the Checkpointer (C4): durable
// (state, step, parentId) tuples keyed by thread id, supporting
// list/get/put/putWrites and resume (§3 lifecycle, §5 "Checkpointing",
// §6 "Checkpoint store interface").
package checkpoint

import (
	"context"
	"time"

	"github.com/devagent/agentcore/pkg/agentcore/state"
)

// Config keys a checkpoint operation to a thread (§6: "config.configurable.thread_id
// keys the store").
type Config struct {
	ThreadID string
}

// Checkpoint is a durable snapshot of AgentState plus its step number and
// parent checkpoint id, enabling exact resumption.
type Checkpoint struct {
	ID        string
	ThreadID  string
	Step      int
	ParentID  string // empty for the thread's first checkpoint
	State     state.AgentState
	CreatedAt time.Time
}

// Metadata is caller-supplied annotation stored alongside a checkpoint
// (e.g. which node produced it); opaque to the store itself.
type Metadata map[string]string

// PendingWrite is a single field-level write staged before the owning
// checkpoint commits, mirroring putWrites' "writes associated with a task".
type PendingWrite struct {
	TaskID string
	Channel string
	Value   any
}

// Tuple bundles a checkpoint with its metadata, returned by GetTuple/List.
type Tuple struct {
	Checkpoint Checkpoint
	Metadata   Metadata
}

// ListOptions bounds a List call; zero value lists everything for the
// thread, newest first.
type ListOptions struct {
	Limit  int
	Before *time.Time
}

// ThreadRecord is the persisted per-thread metadata record (§6 "Persisted
// state layout").
type ThreadRecord struct {
	ThreadID     string
	Title        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	MessageCount int
	Status       ThreadStatus
}

type ThreadStatus string

const (
	ThreadActive   ThreadStatus = "active"
	ThreadArchived ThreadStatus = "archived"
)

// Store is the checkpoint store interface (§6). Implementations must make
// writes durable before returning from Put/PutWrites, and reads
// (GetTuple, List) must be point-in-time consistent.
type Store interface {
	// Put persists a new checkpoint for the thread and returns its
	// assigned checkpoint id.
	Put(ctx context.Context, cfg Config, cp Checkpoint, meta Metadata) (string, error)

	// PutWrites stages field-level writes associated with an in-flight
	// task, ahead of the checkpoint that will supersede them.
	PutWrites(ctx context.Context, cfg Config, writes []PendingWrite, taskID string) error

	// GetTuple returns the latest checkpoint for the thread, or
	// (Tuple{}, false, nil) if the thread has no checkpoints.
	GetTuple(ctx context.Context, cfg Config) (Tuple, bool, error)

	// List returns checkpoints for the thread newest first.
	List(ctx context.Context, cfg Config, opts ListOptions) ([]Tuple, error)

	// DeleteThread removes every checkpoint and the thread record for
	// threadID. This is the only way AgentState is destroyed (§3
	// lifecycle).
	DeleteThread(ctx context.Context, threadID string) error

	// Threads lists thread metadata records, most recently updated first.
	Threads(ctx context.Context) ([]ThreadRecord, error)

	Close() error
}
