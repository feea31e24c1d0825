// Package audit keeps a local ledger of runtime-relevant events: policy
// decisions, approval requests, and readiness transitions. The ledger is a
// plain SQLite file next to the workspace; it mirrors, unsigned, what the
// CLI records in its tamper-evident log, so `sgide audit` can answer "what
// happened" without the sidecar running.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/skillgate/ide-core/internal/readiness"
	"github.com/skillgate/ide-core/internal/sidecar"
	"github.com/skillgate/ide-core/internal/skillcli"
)

// Kind labels one class of ledger entry.
type Kind string

const (
	KindDecision  Kind = "decision"
	KindApproval  Kind = "approval"
	KindReadiness Kind = "readiness"
)

// Entry is one recorded event.
type Entry struct {
	ID         int64           `json:"id"`
	Kind       Kind            `json:"kind"`
	RecordedAt time.Time       `json:"recorded_at"`
	Summary    string          `json:"summary"`
	Detail     json.RawMessage `json:"detail"`
}

// Ledger is an append-only audit store. Safe for concurrent use; writes
// serialize on a single connection.
type Ledger struct {
	db    *sql.DB
	nowFn func() time.Time
}

const schema = `
CREATE TABLE IF NOT EXISTS audit_entries (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	kind        TEXT NOT NULL,
	recorded_at TEXT NOT NULL,
	summary     TEXT NOT NULL,
	detail      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_entries_kind ON audit_entries(kind, id);
`

// Open creates or opens the ledger at path, creating parent directories as
// needed. ":memory:" yields an ephemeral ledger for tests.
func Open(path string) (*Ledger, error) {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create audit ledger directory: %w", err)
		}
		dsn = "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open audit ledger %q: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize audit schema for %q: %w", path, err)
	}
	return &Ledger{db: db, nowFn: time.Now}, nil
}

// Close releases the underlying database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Record appends one entry. detail must be marshalable; it is stored as the
// entry's JSON payload.
func (l *Ledger) Record(ctx context.Context, kind Kind, summary string, detail any) error {
	payload, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("marshal audit detail: %w", err)
	}
	_, err = l.db.ExecContext(ctx,
		`INSERT INTO audit_entries (kind, recorded_at, summary, detail) VALUES (?, ?, ?, ?)`,
		string(kind), l.nowFn().UTC().Format(time.RFC3339Nano), summary, string(payload))
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

// RecordDecision appends a policy decision returned by the sidecar.
func (l *Ledger) RecordDecision(ctx context.Context, record sidecar.DecisionRecord) error {
	summary := fmt.Sprintf("%s %s", record.Decision, record.DecisionCode)
	if record.InvocationID != "" {
		summary += " " + record.InvocationID
	}
	if record.Degraded {
		summary += " (degraded)"
	}
	return l.Record(ctx, KindDecision, summary, record)
}

// RecordApproval appends an approval-request ticket filed through the CLI.
func (l *Ledger) RecordApproval(ctx context.Context, ticket skillcli.ApprovalTicket, decisionCode string) error {
	summary := fmt.Sprintf("approval %s %s", ticket.ApprovalID, ticket.Status)
	if decisionCode != "" {
		summary += " (" + decisionCode + ")"
	}
	detail := struct {
		skillcli.ApprovalTicket
		DecisionCode string `json:"decision_code,omitempty"`
	}{ticket, decisionCode}
	return l.Record(ctx, KindApproval, summary, detail)
}

// RecordReadiness appends a readiness transition.
func (l *Ledger) RecordReadiness(ctx context.Context, state readiness.State) error {
	return l.Record(ctx, KindReadiness, "next step: "+string(state.NextStep), state)
}

// Prune deletes entries older than the retention period and reports how
// many were removed. Comparison runs on the stored UTC timestamps, so
// retentions below a second are not meaningful.
func (l *Ledger) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := l.nowFn().UTC().Add(-retention).Format(time.RFC3339Nano)
	res, err := l.db.ExecContext(ctx, `DELETE FROM audit_entries WHERE recorded_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune audit entries: %w", err)
	}
	return res.RowsAffected()
}

// Recent lists entries newest-first. kind narrows to one class when
// non-empty; limit <= 0 means 50.
func (l *Ledger) Recent(ctx context.Context, kind Kind, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, kind, recorded_at, summary, detail FROM audit_entries`
	args := []any{}
	if kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, string(kind))
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e      Entry
			kindS  string
			atS    string
			detail string
		)
		if err := rows.Scan(&e.ID, &kindS, &atS, &e.Summary, &detail); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.Kind = Kind(kindS)
		if t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(atS)); err == nil {
			e.RecordedAt = t
		}
		e.Detail = json.RawMessage(detail)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
