// Package audit persists a durable record of every terminal task
// transition, independent of the broker's task:<id> mirror (SPEC_FULL.md
// §4.H). Grounded on the teacher's internal/store/postgres.go AppendAudit
// and its audit_logs table, generalized from job ids to task ids and from
// the teacher's job-lifecycle vocabulary to the task status state machine.
package audit

import (
	"context"
	"embed"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Log wraps a pooled Postgres connection for recording terminal task
// transitions.
type Log struct {
	pool *pgxpool.Pool
	log  *logrus.Entry
}

// New opens a pooled connection to dsn.
func New(ctx context.Context, dsn string) (*Log, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("audit: parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("audit: connect: %w", err)
	}
	return &Log{pool: pool, log: logrus.WithField("component", "audit")}, nil
}

// Close releases the pool.
func (l *Log) Close() {
	if l.pool != nil {
		l.pool.Close()
	}
}

// Migrate runs the embedded SQL migrations in lexical order, mirroring the
// teacher's internal/store/migrations.go RunMigrations.
func (l *Log) Migrate(ctx context.Context) error {
	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("audit: read migrations dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		content, err := migrationFiles.ReadFile("migrations/" + e.Name())
		if err != nil {
			return fmt.Errorf("audit: read migration %s: %w", e.Name(), err)
		}
		sql := strings.TrimSpace(string(content))
		if sql == "" {
			continue
		}
		if _, err := l.pool.Exec(ctx, sql); err != nil {
			return fmt.Errorf("audit: exec migration %s: %w", e.Name(), err)
		}
	}
	return nil
}

// Entry is one row of the task_audit_log table.
type Entry struct {
	TaskID    string
	QueueName string
	Event     string
	Detail    string
	Timestamp time.Time
}

// Record inserts one audit row. Callers invoke this after a terminal
// status transition has already been written to the broker mirror; a
// failure here is logged by the caller, never fatal to the transition.
func (l *Log) Record(ctx context.Context, taskID, queueName, event, detail string) error {
	_, err := l.pool.Exec(ctx, `
		INSERT INTO task_audit_log (task_id, queue_name, event, detail, ts)
		VALUES ($1, $2, $3, $4, NOW())
	`, taskID, queueName, event, detail)
	if err != nil {
		return fmt.Errorf("audit: insert: %w", err)
	}
	return nil
}

// History returns the most recent audit rows for taskID, newest first.
func (l *Log) History(ctx context.Context, taskID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.pool.Query(ctx, `
		SELECT task_id, queue_name, event, detail, ts
		FROM task_audit_log
		WHERE task_id = $1
		ORDER BY ts DESC
		LIMIT $2
	`, taskID, limit)
	if err != nil {
		return nil, fmt.Errorf("audit: query history: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.TaskID, &e.QueueName, &e.Event, &e.Detail, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("audit: scan history row: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit: history rows: %w", err)
	}
	return out, nil
}
