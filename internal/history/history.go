// Package history persists one record per invocation so `st log` can
// answer "what did I last set, and did it stick".
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"statline/internal/domain"
)

type Store struct {
	DB  *sql.DB
	Now func() time.Time
}

func (s Store) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Append records one dispatched report.
func (s Store) Append(ctx context.Context, report domain.Report) (domain.HistoryEntry, error) {
	entry := domain.HistoryEntry{
		ID:      uuid.NewString(),
		TS:      s.now().UTC().Format(time.RFC3339),
		Keyword: report.Keyword,
		Report:  report,
	}
	if report.Deadline != nil {
		d := report.Deadline.Format(time.RFC3339)
		entry.Deadline = &d
	}
	data, err := json.Marshal(report)
	if err != nil {
		return domain.HistoryEntry{}, fmt.Errorf("marshal report: %w", err)
	}
	_, err = s.DB.ExecContext(ctx, `INSERT INTO history(id,ts,keyword,deadline,report_json) VALUES (?,?,?,?,?)`,
		entry.ID, entry.TS, entry.Keyword, nullable(entry.Deadline), string(data))
	if err != nil {
		return domain.HistoryEntry{}, err
	}
	return entry, nil
}

// Latest returns the most recent entries, newest first, optionally
// filtered by keyword.
func (s Store) Latest(ctx context.Context, n int, keyword string) ([]domain.HistoryEntry, error) {
	if n <= 0 {
		n = 20
	}
	query := `SELECT id,ts,keyword,deadline,report_json FROM history`
	args := []any{}
	if keyword != "" {
		query += ` WHERE keyword=?`
		args = append(args, keyword)
	}
	query += ` ORDER BY ts DESC, id DESC LIMIT ?`
	args = append(args, n)

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.HistoryEntry
	for rows.Next() {
		var e domain.HistoryEntry
		var deadline sql.NullString
		var reportJSON string
		if err := rows.Scan(&e.ID, &e.TS, &e.Keyword, &deadline, &reportJSON); err != nil {
			return nil, err
		}
		if deadline.Valid {
			e.Deadline = &deadline.String
		}
		if err := json.Unmarshal([]byte(reportJSON), &e.Report); err != nil {
			return nil, fmt.Errorf("unmarshal report for %s: %w", e.ID, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func nullable(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}
