// Package sqlrunner executes read-only SQL against the analytics database
// and renders results as markdown-style tables.
//
// The contract is deliberately textual and never-throwing: unsafe
// statements and execution failures both come back as SQL_ERROR-prefixed
// strings, so the orchestrator can route failures into the explanation
// step as data instead of handling control-flow exceptions.
package sqlrunner

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

// DefaultRowLimit caps fetched rows when the caller passes a non-positive
// limit.
const DefaultRowLimit = 200

// errorPrefix marks every failure payload. The orchestrator and prompts
// treat it as an opaque marker; keep it stable.
const errorPrefix = "SQL_ERROR: "

// bannedKeywords are rejected as whole words anywhere in the statement,
// which also catches multi-statement smuggling ("SELECT ...; DROP TABLE t").
var bannedKeywords = []string{
	"insert", "update", "delete", "drop", "alter",
	"truncate", "create", "merge", "grant", "revoke",
}

var bannedPatterns = compileBannedPatterns()

func compileBannedPatterns() []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, 0, len(bannedKeywords))
	for _, kw := range bannedKeywords {
		patterns = append(patterns, regexp.MustCompile(`\b`+kw+`\b`))
	}
	return patterns
}

// Runner executes SELECT-only statements over a database handle.
type Runner struct {
	db     *sql.DB
	logger *slog.Logger
}

// New creates a Runner over db. If logger is nil, the default slog logger
// is used.
func New(db *sql.DB, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{db: db, logger: logger}
}

// isSafeSelect reports whether the statement is a single SELECT free of
// banned keywords.
func isSafeSelect(sqlText string) bool {
	s := strings.ToLower(strings.TrimSpace(sqlText))
	if !strings.HasPrefix(s, "select") {
		return false
	}
	for _, p := range bannedPatterns {
		if p.MatchString(s) {
			return false
		}
	}
	return true
}

// Run executes sqlText and returns a markdown-style preview of up to
// rowLimit rows. Failures are returned as SQL_ERROR-prefixed strings;
// Run never returns an error value.
func (r *Runner) Run(ctx context.Context, sqlText string, rowLimit int) string {
	if rowLimit <= 0 {
		rowLimit = DefaultRowLimit
	}

	if !isSafeSelect(sqlText) {
		r.logger.Warn("sqlrunner: rejected unsafe statement", "sql", sqlText)
		return errorPrefix + "Unsafe or invalid SQL detected: " + sqlText
	}

	rows, err := r.db.QueryContext(ctx, sqlText)
	if err != nil {
		return errorPrefix + err.Error()
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return errorPrefix + err.Error()
	}
	if len(cols) == 0 {
		return "(no columns)"
	}

	var body []string
	for len(body) < rowLimit && rows.Next() {
		values := make([]sql.NullString, len(cols))
		scanTargets := make([]any, len(cols))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return errorPrefix + err.Error()
		}

		cells := make([]string, len(cols))
		for i, v := range values {
			if v.Valid {
				cells[i] = v.String
			}
		}
		body = append(body, renderRow(cells))
	}
	if err := rows.Err(); err != nil {
		return errorPrefix + err.Error()
	}

	if len(body) == 0 {
		placeholder := make([]string, len(cols))
		placeholder[0] = "(no rows)"
		body = append(body, renderRow(placeholder))
	}

	sep := make([]string, len(cols))
	for i := range sep {
		sep[i] = "---"
	}

	lines := make([]string, 0, len(body)+2)
	lines = append(lines, renderRow(cols), renderRow(sep))
	lines = append(lines, body...)
	return strings.Join(lines, "\n")
}

func renderRow(cells []string) string {
	return fmt.Sprintf("| %s |", strings.Join(cells, " | "))
}
