package store

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/lib/pq"
)

// ImportCSV bulk loads a TCPD-style CSV export into the table through COPY. The header row
// selects which known columns are present; unknown columns are skipped and empty cells
// become NULL, except Is_Winner which becomes 0. The load runs in a single transaction.
func (s *Store) ImportCSV(ctx context.Context, r io.Reader) (int64, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return 0, fmt.Errorf("read csv header: %w", err)
	}
	known := make(map[string]bool, len(Columns))
	for _, c := range Columns {
		known[c] = true
	}
	var (
		cols []string
		idx  []int
	)
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if known[h] {
			cols = append(cols, h)
			idx = append(idx, i)
		}
	}
	if len(cols) == 0 {
		return 0, errors.New("csv header has no known columns")
	}
	// an explicit NULL would skip the column default
	winner := -1
	for j, c := range cols {
		if c == "Is_Winner" {
			winner = j
		}
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin import: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn(s.table(), cols...))
	if err != nil {
		return 0, fmt.Errorf("prepare copy: %w", err)
	}

	var n int64
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			_ = stmt.Close()
			return 0, fmt.Errorf("read csv line %d: %w", n+2, err)
		}
		vals := make([]any, len(idx))
		for j, i := range idx {
			if i >= len(rec) {
				continue
			}
			if v := strings.TrimSpace(rec[i]); v != "" {
				vals[j] = v
			}
		}
		if winner >= 0 && vals[winner] == nil {
			vals[winner] = "0"
		}
		if _, err := stmt.ExecContext(ctx, vals...); err != nil {
			_ = stmt.Close()
			return 0, fmt.Errorf("copy row %d: %w", n+1, err)
		}
		n++
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		_ = stmt.Close()
		return 0, fmt.Errorf("flush copy: %w", err)
	}
	if err := stmt.Close(); err != nil {
		return 0, fmt.Errorf("close copy: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit import: %w", err)
	}
	return n, nil
}
