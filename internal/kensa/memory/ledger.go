package memory

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// DefaultCandidateLimit bounds the recent-entry scan handed to the ranker.
// Scanning the full history would improve recall on very old entries at the
// cost of unbounded latency; 300 covers months of interactive use.
const DefaultCandidateLimit = 300

// Entry is one persisted long-term memory record.
type Entry struct {
	ID        int64
	OwnerID   int64
	CreatedAt time.Time
	Text      string
}

// Ledger is the append-only long-term memory store, scoped per user.
// Entries are never updated or deleted; duplicates are permitted.
type Ledger struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewLedger creates a Ledger over the given database connection. The
// memories table must exist (created by migration 0002_memories.sql).
// If logger is nil, the default slog logger is used.
func NewLedger(db *sql.DB, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{db: db, logger: logger, now: time.Now}
}

// Append inserts a new entry for ownerID with the current timestamp.
// Blank text (after trimming) is silently dropped, never stored.
func (l *Ledger) Append(ctx context.Context, ownerID int64, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	_, err := l.db.ExecContext(ctx,
		"INSERT INTO memories (user_id, created_ts, text) VALUES (?, ?, ?)",
		ownerID, toUnixSeconds(l.now()), text,
	)
	if err != nil {
		return fmt.Errorf("memory: insert entry: %w", err)
	}

	l.logger.Debug("memory: appended entry", "user_id", ownerID, "text_len", len(text))
	return nil
}

// RecentCandidates returns up to limit entries for ownerID, newest first.
// This is the bounded scan window the ranker scores against.
func (l *Ledger) RecentCandidates(ctx context.Context, ownerID int64, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultCandidateLimit
	}

	rows, err := l.db.QueryContext(ctx, `
		SELECT id, user_id, created_ts, text
		FROM memories
		WHERE user_id = ?
		ORDER BY created_ts DESC
		LIMIT ?`,
		ownerID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("memory: query entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e  Entry
			ts float64
		)
		if err := rows.Scan(&e.ID, &e.OwnerID, &ts, &e.Text); err != nil {
			return nil, fmt.Errorf("memory: scan entry: %w", err)
		}
		e.CreatedAt = fromUnixSeconds(ts)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("memory: iterate entries: %w", err)
	}

	return entries, nil
}

// Timestamps are stored as fractional Unix seconds (REAL), which keeps the
// schema readable with plain sqlite tooling and sorts correctly.

func toUnixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func fromUnixSeconds(ts float64) time.Time {
	return time.Unix(0, int64(ts*1e9))
}
