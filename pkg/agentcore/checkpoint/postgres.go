package checkpoint

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/devagent/agentcore/pkg/agentcore/state"
)

// PostgreSQLConfig configures the alternate Checkpointer backend, for
// deployments running more than one agent instance against shared storage.
type PostgreSQLConfig struct {
	Host            string
	Port            int
	Database        string
	User            string
	Password        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// PostgreSQLStore is the multi-instance Checkpointer backend, opened via
// database/sql with the pgx/v5 stdlib driver blank-imported.
type PostgreSQLStore struct {
	db     *sql.DB
	logger *slog.Logger
}

func buildPostgreSQLDSN(c PostgreSQLConfig) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// OpenPostgreSQL opens the checkpoint store's connection pool and applies
// its schema migration, following the teacher's database/sql + blank-import
// driver convention used for its PostgreSQL backend.
func OpenPostgreSQL(config PostgreSQLConfig, logger *slog.Logger) (*PostgreSQLStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Host == "" {
		config.Host = "localhost"
	}
	if config.Port == 0 {
		config.Port = 5432
	}
	if config.SSLMode == "" {
		config.SSLMode = "disable"
	}
	if config.MaxOpenConns == 0 {
		config.MaxOpenConns = 25
	}
	if config.MaxIdleConns == 0 {
		config.MaxIdleConns = 10
	}
	if config.ConnMaxLifetime == 0 {
		config.ConnMaxLifetime = 30 * time.Minute
	}

	db, err := sql.Open("pgx", buildPostgreSQLDSN(config))
	if err != nil {
		return nil, fmt.Errorf("open checkpoint database: %w", err)
	}
	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping checkpoint database: %w", err)
	}

	s := &PostgreSQLStore{db: db, logger: logger.With("component", "checkpoint.postgres")}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate checkpoint schema: %w", err)
	}
	return s, nil
}

func (s *PostgreSQLStore) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS thread_metadata (
	thread_id     TEXT PRIMARY KEY,
	title         TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL,
	message_count INTEGER NOT NULL DEFAULT 0,
	status        TEXT NOT NULL DEFAULT 'active'
);

CREATE TABLE IF NOT EXISTS checkpoints (
	id         TEXT PRIMARY KEY,
	thread_id  TEXT NOT NULL REFERENCES thread_metadata(thread_id),
	step       INTEGER NOT NULL,
	parent_id  TEXT NOT NULL DEFAULT '',
	state_json JSONB NOT NULL,
	meta_json  JSONB NOT NULL DEFAULT '{}',
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_checkpoints_thread_step
	ON checkpoints (thread_id, step DESC);

CREATE TABLE IF NOT EXISTS pending_writes (
	thread_id  TEXT NOT NULL,
	task_id    TEXT NOT NULL,
	channel    TEXT NOT NULL,
	value_json JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
`)
	return err
}

func (s *PostgreSQLStore) Put(ctx context.Context, cfg Config, cp Checkpoint, meta Metadata) (string, error) {
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

	if _, err := tx.ExecContext(ctx, `
INSERT INTO thread_metadata (thread_id, title, created_at, updated_at, message_count, status)
VALUES ($1, '', $2, $2, $3, 'active')
ON CONFLICT (thread_id) DO UPDATE SET updated_at = $2, message_count = $3
`, cfg.ThreadID, cp.CreatedAt, len(cp.State.Messages)); err != nil {
		return "", fmt.Errorf("upsert thread metadata: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO checkpoints (id, thread_id, step, parent_id, state_json, meta_json, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
`, cp.ID, cfg.ThreadID, cp.Step, cp.ParentID, string(stateJSON), string(metaJSON), cp.CreatedAt); err != nil {
		return "", fmt.Errorf("insert checkpoint: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit checkpoint: %w", err)
	}
	s.logger.Debug("checkpoint written", "thread_id", cfg.ThreadID, "step", cp.Step, "id", cp.ID)
	return cp.ID, nil
}

func (s *PostgreSQLStore) PutWrites(ctx context.Context, cfg Config, writes []PendingWrite, taskID string) error {
	if len(writes) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, w := range writes {
		valueJSON, err := json.Marshal(w.Value)
		if err != nil {
			return fmt.Errorf("encode pending write value: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO pending_writes (thread_id, task_id, channel, value_json, created_at)
VALUES ($1, $2, $3, $4, $5)`, cfg.ThreadID, taskID, w.Channel, string(valueJSON), now); err != nil {
			return fmt.Errorf("insert pending write: %w", err)
		}
	}
	return tx.Commit()
}

func (s *PostgreSQLStore) GetTuple(ctx context.Context, cfg Config) (Tuple, bool, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, thread_id, step, parent_id, state_json, meta_json, created_at
FROM checkpoints WHERE thread_id = $1 ORDER BY step DESC LIMIT 1`, cfg.ThreadID)

	t, err := scanPgTuple(row)
	if err == sql.ErrNoRows {
		return Tuple{}, false, nil
	}
	if err != nil {
		return Tuple{}, false, fmt.Errorf("get latest checkpoint: %w", err)
	}
	return t, true, nil
}

func (s *PostgreSQLStore) List(ctx context.Context, cfg Config, opts ListOptions) ([]Tuple, error) {
	query := `SELECT id, thread_id, step, parent_id, state_json, meta_json, created_at
FROM checkpoints WHERE thread_id = $1`
	args := []any{cfg.ThreadID}
	if opts.Before != nil {
		args = append(args, *opts.Before)
		query += fmt.Sprintf(" AND created_at < $%d", len(args))
	}
	query += " ORDER BY step DESC"
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer rows.Close()

	var out []Tuple
	for rows.Next() {
		t, err := scanPgTuple(rows)
		if err != nil {
			return nil, fmt.Errorf("scan checkpoint row: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanPgTuple(row rowScanner) (Tuple, error) {
	var (
		cp        Checkpoint
		stateJSON []byte
		metaJSON  []byte
	)
	if err := row.Scan(&cp.ID, &cp.ThreadID, &cp.Step, &cp.ParentID, &stateJSON, &metaJSON, &cp.CreatedAt); err != nil {
		return Tuple{}, err
	}
	var s state.AgentState
	if err := json.Unmarshal(stateJSON, &s); err != nil {
		return Tuple{}, fmt.Errorf("decode state: %w", err)
	}
	cp.State = s
	var meta Metadata
	if err := json.Unmarshal(metaJSON, &meta); err != nil {
		meta = Metadata{}
	}
	return Tuple{Checkpoint: cp, Metadata: meta}, nil
}

func (s *PostgreSQLStore) DeleteThread(ctx context.Context, threadID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM checkpoints WHERE thread_id = $1`, threadID); err != nil {
		return fmt.Errorf("delete checkpoints: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM pending_writes WHERE thread_id = $1`, threadID); err != nil {
		return fmt.Errorf("delete pending writes: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM thread_metadata WHERE thread_id = $1`, threadID); err != nil {
		return fmt.Errorf("delete thread metadata: %w", err)
	}
	return tx.Commit()
}

func (s *PostgreSQLStore) Threads(ctx context.Context) ([]ThreadRecord, error) {
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

func (s *PostgreSQLStore) Close() error {
	return s.db.Close()
}
