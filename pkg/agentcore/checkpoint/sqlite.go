package checkpoint

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteConfig configures the default Checkpointer backend.
type SQLiteConfig struct {
	Path        string
	JournalMode string
	BusyTimeout int
}

// SQLiteStore is the default Checkpointer backend: a single SQLite file
// holding the checkpoints and thread_metadata tables, opened in WAL mode.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// OpenSQLite opens or creates a SQLite checkpoint store at config.Path,
// following the same DSN-building convention as the rest of the pack's
// SQLite backends: journal mode and busy timeout are wire options, not
// PRAGMA statements run after connect.
func OpenSQLite(config SQLiteConfig, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Path == "" {
		config.Path = "./data/agentcore.db"
	}
	if config.JournalMode == "" {
		config.JournalMode = "WAL"
	}
	if config.BusyTimeout == 0 {
		config.BusyTimeout = 5000
	}

	if config.Path != ":memory:" {
		dir := filepath.Dir(config.Path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create checkpoint directory %q: %w", dir, err)
		}
	}

	dsn := fmt.Sprintf("%s?_journal_mode=%s&_busy_timeout=%d&_foreign_keys=ON", config.Path, config.JournalMode, config.BusyTimeout)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint database %q: %w", config.Path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping checkpoint database: %w", err)
	}
	// SQLite allows one writer at a time; a single connection avoids
	// SQLITE_BUSY from the checkpointer's own concurrent threads.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, logger: logger.With("component", "checkpoint.sqlite")}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate checkpoint schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS thread_metadata (
	thread_id     TEXT PRIMARY KEY,
	title         TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMP NOT NULL,
	updated_at    TIMESTAMP NOT NULL,
	message_count INTEGER NOT NULL DEFAULT 0,
	status        TEXT NOT NULL DEFAULT 'active'
);

CREATE TABLE IF NOT EXISTS checkpoints (
	id         TEXT PRIMARY KEY,
	thread_id  TEXT NOT NULL,
	step       INTEGER NOT NULL,
	parent_id  TEXT NOT NULL DEFAULT '',
	state_json TEXT NOT NULL,
	meta_json  TEXT NOT NULL DEFAULT '{}',
	created_at TIMESTAMP NOT NULL,
	FOREIGN KEY (thread_id) REFERENCES thread_metadata(thread_id)
);

CREATE INDEX IF NOT EXISTS idx_checkpoints_thread_step
	ON checkpoints (thread_id, step DESC);

CREATE TABLE IF NOT EXISTS pending_writes (
	thread_id TEXT NOT NULL,
	task_id   TEXT NOT NULL,
	channel   TEXT NOT NULL,
	value_json TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);
`)
	return err
}

func (s *SQLiteStore) Put(ctx context.Context, cfg Config, cp Checkpoint, meta Metadata) (string, error) {
	if cfg.ThreadID == "" {
		return "", fmt.Errorf("checkpoint: empty thread id")
	}
	if cp.ID == "" {
		cp.ID = uuid.New().String()
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	stateJSON, err := json.Marshal(cp.State)
	if err != nil {
		return "", fmt.Errorf("encode state: %w", err)
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("encode metadata: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := cp.CreatedAt
	_, err = tx.ExecContext(ctx, `
INSERT INTO thread_metadata (thread_id, title, created_at, updated_at, message_count, status)
VALUES (?, '', ?, ?, ?, 'active')
ON CONFLICT(thread_id) DO UPDATE SET
	updated_at = excluded.updated_at,
	message_count = excluded.message_count
`, cfg.ThreadID, now, now, len(cp.State.Messages))
	if err != nil {
		return "", fmt.Errorf("upsert thread metadata: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
INSERT INTO checkpoints (id, thread_id, step, parent_id, state_json, meta_json, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
`, cp.ID, cfg.ThreadID, cp.Step, cp.ParentID, string(stateJSON), string(metaJSON), now)
	if err != nil {
		return "", fmt.Errorf("insert checkpoint: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit checkpoint: %w", err)
	}
	s.logger.Debug("checkpoint written", "thread_id", cfg.ThreadID, "step", cp.Step, "id", cp.ID)
	return cp.ID, nil
}

func (s *SQLiteStore) PutWrites(ctx context.Context, cfg Config, writes []PendingWrite, taskID string) error {
	if len(writes) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO pending_writes (thread_id, task_id, channel, value_json, created_at)
VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare pending write insert: %w", err)
	}
	defer stmt.Close()

	for _, w := range writes {
		valueJSON, err := json.Marshal(w.Value)
		if err != nil {
			return fmt.Errorf("encode pending write value: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, cfg.ThreadID, taskID, w.Channel, string(valueJSON), now); err != nil {
			return fmt.Errorf("insert pending write: %w", err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) GetTuple(ctx context.Context, cfg Config) (Tuple, bool, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, thread_id, step, parent_id, state_json, meta_json, created_at
FROM checkpoints WHERE thread_id = ? ORDER BY step DESC LIMIT 1`, cfg.ThreadID)

	tuple, err := scanTuple(row)
	if err == sql.ErrNoRows {
		return Tuple{}, false, nil
	}
	if err != nil {
		return Tuple{}, false, fmt.Errorf("get latest checkpoint: %w", err)
	}
	return tuple, true, nil
}

func (s *SQLiteStore) List(ctx context.Context, cfg Config, opts ListOptions) ([]Tuple, error) {
	query := `SELECT id, thread_id, step, parent_id, state_json, meta_json, created_at
FROM checkpoints WHERE thread_id = ?`
	args := []any{cfg.ThreadID}
	if opts.Before != nil {
		query += " AND created_at < ?"
		args = append(args, *opts.Before)
	}
	query += " ORDER BY step DESC"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer rows.Close()

	var out []Tuple
	for rows.Next() {
		t, err := scanTuple(rows)
		if err != nil {
			return nil, fmt.Errorf("scan checkpoint row: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTuple(row rowScanner) (Tuple, error) {
	var (
		cp          Checkpoint
		stateJSON   string
		metaJSON    string
	)
	if err := row.Scan(&cp.ID, &cp.ThreadID, &cp.Step, &cp.ParentID, &stateJSON, &metaJSON, &cp.CreatedAt); err != nil {
		return Tuple{}, err
	}
	if err := json.Unmarshal([]byte(stateJSON), &cp.State); err != nil {
		return Tuple{}, fmt.Errorf("decode state: %w", err)
	}
	var meta Metadata
	if err := json.Unmarshal([]byte(metaJSON), &meta); err != nil {
		meta = Metadata{}
	}
	return Tuple{Checkpoint: cp, Metadata: meta}, nil
}

func (s *SQLiteStore) DeleteThread(ctx context.Context, threadID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM checkpoints WHERE thread_id = ?`, threadID); err != nil {
		return fmt.Errorf("delete checkpoints: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM pending_writes WHERE thread_id = ?`, threadID); err != nil {
		return fmt.Errorf("delete pending writes: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM thread_metadata WHERE thread_id = ?`, threadID); err != nil {
		return fmt.Errorf("delete thread metadata: %w", err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) Threads(ctx context.Context) ([]ThreadRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT thread_id, title, created_at, updated_at, message_count, status
FROM thread_metadata ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}
	defer rows.Close()

	var out []ThreadRecord
	for rows.Next() {
		var r ThreadRecord
		var status string
		if err := rows.Scan(&r.ThreadID, &r.Title, &r.CreatedAt, &r.UpdatedAt, &r.MessageCount, &status); err != nil {
			return nil, fmt.Errorf("scan thread record: %w", err)
		}
		r.Status = ThreadStatus(status)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
