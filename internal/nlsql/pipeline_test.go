package nlsql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/mohammad-safakhou/loksabha/internal/sqlguard"
	"github.com/mohammad-safakhou/loksabha/internal/store"
	"github.com/mohammad-safakhou/loksabha/internal/valueindex"
)

// scripted replays one reply per call and records the prompts it saw.
type scripted struct {
	mu      sync.Mutex
	replies []reply
	prompts []string
}

type reply struct {
	text string
	err  error
}

func (s *scripted) Generate(_ context.Context, prompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, prompt)
	if len(s.replies) == 0 {
		return "", errors.New("no scripted reply")
	}
	r := s.replies[0]
	s.replies = s.replies[1:]
	return r.text, r.err
}

type countingExecutor struct {
	next  Executor
	calls int
}

func (c *countingExecutor) Query(ctx context.Context, stmt string) (*store.Result, error) {
	c.calls++
	return c.next.Query(ctx, stmt)
}

type staticHints []valueindex.Hit

func (h staticHints) Lookup(string) ([]valueindex.Hit, error) { return h, nil }

func openElections(t *testing.T, rows int) *store.Store {
	return openTable(t, sqlguard.DefaultTable, rows)
}

func openTable(t *testing.T, table string, rows int) *store.Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`CREATE TABLE ` + table + ` ("Year" INTEGER, "State_Name" TEXT, "Constituency_Name" TEXT, "Party" TEXT, "Votes" INTEGER, "Is_Winner" INTEGER)`)
	require.NoError(t, err)
	for i := 0; i < rows; i++ {
		party := "INC"
		if i%3 != 0 {
			party = "BJP"
		}
		_, err = db.Exec(`INSERT INTO `+table+` VALUES (2019, 'Uttar_Pradesh', ?, ?, ?, 1)`,
			fmt.Sprintf("SEAT %d", i), party, 1000+i)
		require.NoError(t, err)
	}
	return &store.Store{DB: db, Table: table}
}

func newPipeline(gen *scripted, exec Executor) *Pipeline {
	return &Pipeline{
		Generator: gen,
		Validator: sqlguard.New(sqlguard.DefaultTable),
		Executor:  exec,
	}
}

func TestAskSuccess(t *testing.T) {
	gen := &scripted{replies: []reply{
		{text: "Here is your query:\n```sql\nSELECT \"Party\", COUNT(*) AS seats FROM election_loksabha_data WHERE \"Is_Winner\" = 1 GROUP BY \"Party\" ORDER BY seats DESC LIMIT 10;\n```"},
		{text: "  The BJP won the most seats.  \n"},
	}}
	exec := &countingExecutor{next: openElections(t, 6)}
	p := newPipeline(gen, exec)
	p.Hints = staticHints{{Field: "State_Name", Value: "Uttar_Pradesh"}}

	a, err := p.Ask(context.Background(), "Which party won the most seats in uttar pradesh?")
	require.NoError(t, err)

	assert.NotEmpty(t, a.ID)
	assert.Equal(t, `SELECT "Party", COUNT(*) AS seats FROM election_loksabha_data WHERE "Is_Winner" = 1 GROUP BY "Party" ORDER BY seats DESC LIMIT 10;`, a.SQL)
	assert.Equal(t, "valid", a.Verdict)
	assert.Equal(t, 2, a.TotalRows)
	require.Len(t, a.Rows, 2)
	assert.Equal(t, "BJP", a.Rows[0]["Party"])
	assert.EqualValues(t, 4, a.Rows[0]["seats"])
	assert.Equal(t, []string{"Party", "seats"}, a.Columns)
	assert.Equal(t, "The BJP won the most seats.", a.Answer)
	assert.Equal(t, 1, exec.calls)

	require.Len(t, gen.prompts, 2)
	assert.Contains(t, gen.prompts[0], `"State_Name" = 'Uttar_Pradesh'`)
	assert.Contains(t, gen.prompts[1], "Total rows returned: 2")
	assert.Contains(t, gen.prompts[1], `"Party": "BJP"`)
}

func TestAskTruncatesRows(t *testing.T) {
	gen := &scripted{replies: []reply{
		{text: `SELECT "Constituency_Name" FROM election_loksabha_data;`},
		{text: "Lots of seats."},
	}}
	p := newPipeline(gen, openElections(t, 150))

	a, err := p.Ask(context.Background(), "list every seat")
	require.NoError(t, err)
	assert.Equal(t, 150, a.TotalRows)
	assert.Len(t, a.Rows, ResultRows)
	assert.Contains(t, gen.prompts[1], fmt.Sprintf("showing first %d rows", PreviewRows))
	assert.Contains(t, gen.prompts[1], "Total rows returned: 150")
	assert.NotContains(t, gen.prompts[1], `"SEAT 10"`)
}

func TestAskFailures(t *testing.T) {
	tests := []struct {
		name      string
		question  string
		replies   []reply
		kind      Kind
		executed  int
		keepSQL   bool
		wantCalls int
	}{
		{
			name:     "empty question",
			question: "   ",
			kind:     KindEmptyInput,
		},
		{
			name:      "generation error",
			question:  "seats?",
			replies:   []reply{{err: errors.New("quota exceeded")}},
			kind:      KindGenerationFailed,
			wantCalls: 1,
		},
		{
			name:      "chained statement",
			question:  "drop it",
			replies:   []reply{{text: "SELECT * FROM election_loksabha_data; DROP TABLE election_loksabha_data;"}},
			kind:      KindStatementChaining,
			keepSQL:   true,
			wantCalls: 1,
		},
		{
			name:      "delete after comment",
			question:  "clean up",
			replies:   []reply{{text: "-- comment\nDELETE FROM election_loksabha_data"}},
			kind:      KindUnsafeOperation,
			keepSQL:   true,
			wantCalls: 1,
		},
		{
			name:      "cte without alias",
			question:  "compare",
			replies:   []reply{{text: "WITH x (SELECT 1) SELECT * FROM election_loksabha_data;"}},
			kind:      KindSyntaxInvalid,
			keepSQL:   true,
			wantCalls: 1,
		},
		{
			name:      "no statement in reply",
			question:  "weather?",
			replies:   []reply{{text: "```sql\n```"}},
			kind:      KindExtractionEmpty,
			wantCalls: 1,
		},
		{
			name:      "unknown column",
			question:  "margin?",
			replies:   []reply{{text: `SELECT margin_pct FROM election_loksabha_data LIMIT 1;`}},
			kind:      KindExecutionFailed,
			executed:  1,
			keepSQL:   true,
			wantCalls: 1,
		},
		{
			name:     "summary error",
			question: "seats?",
			replies: []reply{
				{text: `SELECT COUNT(*) FROM election_loksabha_data;`},
				{err: errors.New("timeout")},
			},
			kind:      KindSummarizationFailed,
			executed:  1,
			keepSQL:   true,
			wantCalls: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &scripted{replies: tt.replies}
			exec := &countingExecutor{next: openElections(t, 3)}
			a, err := newPipeline(gen, exec).Ask(context.Background(), tt.question)

			require.Error(t, err)
			require.NotNil(t, a)
			var se *StageError
			require.True(t, errors.As(err, &se), "expected StageError, got %T", err)
			assert.Equal(t, tt.kind, se.Kind)
			assert.Equal(t, tt.kind, KindOf(err))
			assert.Equal(t, string(tt.kind), a.Verdict)
			assert.Equal(t, tt.executed, exec.calls)
			assert.Len(t, gen.prompts, tt.wantCalls)
			assert.Empty(t, a.Answer)
			if tt.keepSQL {
				assert.NotEmpty(t, a.SQL)
			}
		})
	}
}

func TestStageErrorReason(t *testing.T) {
	gen := &scripted{replies: []reply{{text: "-- x\nDELETE FROM election_loksabha_data"}}}
	_, err := newPipeline(gen, openElections(t, 0)).Ask(context.Background(), "delete")

	var se *StageError
	require.True(t, errors.As(err, &se))
	assert.True(t, se.Unsafe())
	assert.Equal(t, "Query contains forbidden operation: DELETE", se.Reason())
	assert.True(t, strings.HasPrefix(se.Error(), "validate: UnsafeOperation"))
}

func TestAskOnConfiguredTable(t *testing.T) {
	const table = "lok_sabha_results"
	stmt := ExamplesFor(table)[0].SQL
	gen := &scripted{replies: []reply{{text: stmt}, {text: "BJP won."}}}
	p := &Pipeline{
		Generator: gen,
		Validator: sqlguard.New(table),
		Executor:  openTable(t, table, 6),
		Prompts:   NewPromptBuilder(table),
	}

	a, err := p.Ask(context.Background(), "Which party won the most seats in 2019?")
	require.NoError(t, err)
	assert.Equal(t, stmt, a.SQL)
	assert.Equal(t, 2, a.TotalRows)
	assert.Equal(t, "BJP", a.Rows[0]["Party"])
	assert.Contains(t, gen.prompts[0], `"lok_sabha_results"`)
	assert.NotContains(t, gen.prompts[0], sqlguard.DefaultTable)
}
