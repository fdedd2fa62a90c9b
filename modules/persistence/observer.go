// Package persistence provides the durable repository observer: every
// change to a watched repository is appended to a SQLite change log. It
// attaches through the runtime's change-listener hook and shares the
// failure-isolation rule of language-level observers.
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/arolang/aro/internal/ctxlog"
	"github.com/arolang/aro/internal/repository"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS repository_changes (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    repository  TEXT NOT NULL,
    scope       TEXT NOT NULL,
    change_type TEXT NOT NULL,
    entity_id   TEXT,
    old_value   TEXT,
    new_value   TEXT,
    occurred_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_changes_repository
    ON repository_changes (repository, entity_id);
`

// Observer writes repository changes to a SQLite database. An empty watch
// list means every repository is persisted.
type Observer struct {
	db      *sql.DB
	watched map[string]bool
}

// Open creates or opens the change-log database. WAL mode keeps reads
// concurrent with the single writer; the connection pool is limited to one
// connection to avoid SQLITE_BUSY under write contention.
func Open(path string, repositories []string) (*Observer, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open change log: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to change log: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply change-log schema: %w", err)
	}

	o := &Observer{db: db, watched: make(map[string]bool, len(repositories))}
	for _, repo := range repositories {
		o.watched[repo] = true
	}
	return o, nil
}

// Close closes the database connection.
func (o *Observer) Close() error {
	if o.db == nil {
		return nil
	}
	return o.db.Close()
}

// OnChange appends one change row. It satisfies repository.Notifier; a
// write failure is logged and swallowed, never surfaced to the mutating
// execution.
func (o *Observer) OnChange(ctx context.Context, change repository.Change) {
	if len(o.watched) > 0 && !o.watched[change.Repository] {
		return
	}

	oldJSON := marshal(change.OldValue)
	newJSON := marshal(change.NewValue)
	_, err := o.db.ExecContext(ctx,
		`INSERT INTO repository_changes
		    (repository, scope, change_type, entity_id, old_value, new_value, occurred_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		change.Repository, change.Scope, string(change.Type), change.EntityID,
		oldJSON, newJSON, change.Timestamp.UTC().Format("2006-01-02T15:04:05.999999999Z07:00"))
	if err != nil {
		ctxlog.FromContext(ctx).Error("Failed to persist repository change.",
			"repository", change.Repository, "entityId", change.EntityID, "error", err)
	}
}

// StoredChange is one replayed row of the change log.
type StoredChange struct {
	Repository string
	Scope      string
	Type       string
	EntityID   string
	OldValue   any
	NewValue   any
	OccurredAt string
}

// History returns a repository's persisted changes in insertion order.
func (o *Observer) History(ctx context.Context, repo string) ([]StoredChange, error) {
	rows, err := o.db.QueryContext(ctx,
		`SELECT repository, scope, change_type, entity_id, old_value, new_value, occurred_at
		   FROM repository_changes
		  WHERE repository = ?
		  ORDER BY id`, repo)
	if err != nil {
		return nil, fmt.Errorf("failed to read change history: %w", err)
	}
	defer rows.Close()

	var out []StoredChange
	for rows.Next() {
		var c StoredChange
		var oldJSON, newJSON sql.NullString
		if err := rows.Scan(&c.Repository, &c.Scope, &c.Type, &c.EntityID, &oldJSON, &newJSON, &c.OccurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan change row: %w", err)
		}
		c.OldValue = unmarshal(oldJSON)
		c.NewValue = unmarshal(newJSON)
		out = append(out, c)
	}
	return out, rows.Err()
}

func marshal(v any) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(raw), Valid: true}
}

func unmarshal(raw sql.NullString) any {
	if !raw.Valid {
		return nil
	}
	var v any
	if err := json.Unmarshal([]byte(raw.String), &v); err != nil {
		return raw.String
	}
	return v
}
