package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/mohammad-safakhou/loksabha/internal/nlsql"
	"github.com/mohammad-safakhou/loksabha/internal/sqlguard"
)

func init() { color.NoColor = true }

func TestPrintAttemptSuccess(t *testing.T) {
	var buf bytes.Buffer
	printAttempt(&buf, &nlsql.Attempt{
		SQL:       `SELECT "Party", COUNT(*) AS seats FROM election_loksabha_data GROUP BY "Party" LIMIT 2;`,
		Columns:   []string{"Party", "seats"},
		Rows:      []map[string]any{{"Party": "BJP", "seats": int64(303)}, {"Party": "INC", "seats": nil}},
		TotalRows: 40,
		Answer:    "BJP led.",
	}, nil)

	out := buf.String()
	for _, want := range []string{"SQL:", "PARTY", "303", "40 rows (showing 2)", "Answer:", "BJP led."} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintAttemptRejected(t *testing.T) {
	var buf bytes.Buffer
	err := &nlsql.StageError{
		Stage: nlsql.StageValidate,
		Kind:  nlsql.KindUnsafeOperation,
		Err:   &sqlguard.Error{Kind: sqlguard.KindUnsafeOperation, Reason: "Query contains forbidden operation: DROP", Keyword: "DROP"},
	}
	printAttempt(&buf, &nlsql.Attempt{SQL: "DROP TABLE x"}, err)

	out := buf.String()
	if !strings.Contains(out, "validate rejected (UnsafeOperation): Query contains forbidden operation: DROP") {
		t.Fatalf("unexpected output:\n%s", out)
	}
	if strings.Contains(out, "Answer:") {
		t.Fatalf("answer printed for a failed attempt")
	}
}

func TestReport(t *testing.T) {
	g := sqlguard.New("")

	var buf bytes.Buffer
	if err := report(&buf, g.Validate("SELECT COUNT(*) FROM election_loksabha_data;")); err != nil {
		t.Fatalf("report: %v", err)
	}
	if strings.TrimSpace(buf.String()) != "valid" {
		t.Fatalf("unexpected output %q", buf.String())
	}

	buf.Reset()
	err := report(&buf, g.Validate("-- comment\nDELETE FROM election_loksabha_data"))
	if err == nil || !strings.Contains(buf.String(), "UnsafeOperation: Query contains forbidden operation: DELETE") {
		t.Fatalf("unexpected report %q (%v)", buf.String(), err)
	}

	other := errors.New("boom")
	if got := report(&buf, other); got != other {
		t.Fatalf("expected passthrough error, got %v", got)
	}
}

func TestValidateCommandNeedsNoDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"validator":{"table":"lok_sabha_results"}}`), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cmd := validateCMD(&path)
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs([]string{"SELECT", "COUNT(*)", "FROM", "lok_sabha_results;"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("validate: %v (%s)", err, buf.String())
	}
	if strings.TrimSpace(buf.String()) != "valid" {
		t.Fatalf("unexpected output %q", buf.String())
	}
}
