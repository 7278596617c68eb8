package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/mohammad-safakhou/loksabha/internal/cache"
	"github.com/mohammad-safakhou/loksabha/internal/llm"
	"github.com/mohammad-safakhou/loksabha/internal/nlsql"
	"github.com/mohammad-safakhou/loksabha/internal/sqlguard"
	"github.com/mohammad-safakhou/loksabha/internal/store"
)

// replies returns a generator answering each call with the next reply and counting calls.
func replies(calls *int, out ...string) llm.Generator {
	return llm.GeneratorFunc(func(context.Context, string) (string, error) {
		*calls++
		if *calls > len(out) {
			return "", errors.New("unexpected call")
		}
		return out[*calls-1], nil
	})
}

func newAIHandler(t *testing.T, gen llm.Generator) (*AIHandler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	p := &nlsql.Pipeline{
		Generator: gen,
		Validator: sqlguard.New(sqlguard.DefaultTable),
		Executor:  &store.Store{DB: db},
	}
	return &AIHandler{Asker: p}, mock
}

func postQuery(t *testing.T, h *AIHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/ai/query", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	if err := h.query(e.NewContext(req, rec)); err != nil {
		t.Fatalf("query: %v", err)
	}
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v (%s)", err, rec.Body.String())
	}
	return out
}

const seatsSQL = `SELECT "Party", COUNT(*) AS seats FROM election_loksabha_data WHERE "Is_Winner" = 1 AND "Year" = 2019 GROUP BY "Party" ORDER BY seats DESC LIMIT 5;`

func TestAIQuerySuccess(t *testing.T) {
	calls := 0
	h, mock := newAIHandler(t, replies(&calls, "```sql\n"+seatsSQL+"\n```", "BJP won 303 seats."))

	mock.ExpectQuery(regexp.QuoteMeta(seatsSQL)).
		WillReturnRows(sqlmock.NewRows([]string{"Party", "seats"}).AddRow([]byte("BJP"), 303).AddRow([]byte("INC"), 52))

	rec := postQuery(t, h, `{"query":"Which party won the most seats in 2019?"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d: %s", rec.Code, rec.Body.String())
	}
	var resp aiResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Success || resp.SQL != seatsSQL || resp.TotalRows != 2 || resp.Answer != "BJP won 303 seats." {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Question != "Which party won the most seats in 2019?" {
		t.Fatalf("question not echoed: %q", resp.Question)
	}
	if len(resp.Result) != 2 || resp.Result[0]["Party"] != "BJP" {
		t.Fatalf("unexpected rows: %+v", resp.Result)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestAIQueryEmptyQuestion(t *testing.T) {
	calls := 0
	h, _ := newAIHandler(t, replies(&calls))

	rec := postQuery(t, h, `{"query":"   "}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 got %d", rec.Code)
	}
	body := decode(t, rec)
	if body["error"] != "Question is required" || body["success"] != false {
		t.Fatalf("unexpected body: %v", body)
	}
	if calls != 0 {
		t.Fatalf("generator called %d times", calls)
	}
}

func TestAIQueryChainingIsForbidden(t *testing.T) {
	calls := 0
	chained := "SELECT * FROM election_loksabha_data; DROP TABLE election_loksabha_data;"
	h, mock := newAIHandler(t, replies(&calls, chained))

	rec := postQuery(t, h, `{"query":"show everything then drop it"}`)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected status 403 got %d", rec.Code)
	}
	body := decode(t, rec)
	if body["error"] != "Unsafe query detected" || body["sql"] != chained {
		t.Fatalf("unexpected body: %v", body)
	}
	if body["reason"] != "Multiple queries or query chaining not allowed" {
		t.Fatalf("unexpected reason: %v", body["reason"])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("statement reached the database: %v", err)
	}
}

func TestAIQueryDeleteIsForbidden(t *testing.T) {
	calls := 0
	h, _ := newAIHandler(t, replies(&calls, "-- comment\nDELETE FROM election_loksabha_data"))

	rec := postQuery(t, h, `{"query":"remove rows"}`)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected status 403 got %d", rec.Code)
	}
	if body := decode(t, rec); body["reason"] != "Query contains forbidden operation: DELETE" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestAIQueryInvalidSyntax(t *testing.T) {
	calls := 0
	h, _ := newAIHandler(t, replies(&calls, "SELECT COUNT(*) FROM candidates;"))

	rec := postQuery(t, h, `{"query":"how many candidates?"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 got %d", rec.Code)
	}
	body := decode(t, rec)
	if body["error"] != "Invalid SQL syntax" || body["sql"] != "SELECT COUNT(*) FROM candidates;" {
		t.Fatalf("unexpected body: %v", body)
	}
	if !strings.Contains(body["reason"].(string), "election_loksabha_data") {
		t.Fatalf("unexpected reason: %v", body["reason"])
	}
}

func TestAIQueryExecutionFailure(t *testing.T) {
	calls := 0
	stmt := `SELECT "Margin_Pct" FROM election_loksabha_data LIMIT 1;`
	h, mock := newAIHandler(t, replies(&calls, stmt))

	mock.ExpectQuery(regexp.QuoteMeta(stmt)).WillReturnError(errors.New(`pq: column "Margin_Pct" does not exist`))

	rec := postQuery(t, h, `{"query":"margin?"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500 got %d", rec.Code)
	}
	body := decode(t, rec)
	if body["error"] != "Failed to process query" || body["success"] != false {
		t.Fatalf("unexpected body: %v", body)
	}
	if !strings.Contains(body["message"].(string), "does not exist") {
		t.Fatalf("engine message lost: %v", body["message"])
	}
	if calls != 1 {
		t.Fatalf("summarizer should not run, generator called %d times", calls)
	}
}

func TestAIQueryServesRepeatsFromCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	calls := 0
	h, mock := newAIHandler(t, replies(&calls, seatsSQL, "BJP won."))
	h.Cache = cache.NewRedis(client, "test:", time.Minute)

	mock.ExpectQuery(regexp.QuoteMeta(seatsSQL)).
		WillReturnRows(sqlmock.NewRows([]string{"Party", "seats"}).AddRow("BJP", 303))

	if rec := postQuery(t, h, `{"query":"Who won in 2019?"}`); rec.Code != http.StatusOK {
		t.Fatalf("first call: status %d", rec.Code)
	}
	rec := postQuery(t, h, `{"query":"  who   WON in 2019? "}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("second call: status %d", rec.Code)
	}
	if calls != 2 {
		t.Fatalf("expected the cached answer, generator called %d times", calls)
	}
	body := decode(t, rec)
	if body["answer"] != "BJP won." {
		t.Fatalf("unexpected cached body: %v", body)
	}
	if body["question"] != "who   WON in 2019?" {
		t.Fatalf("cached answer should echo the current question, got %v", body["question"])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestAnswerKeyNormalizes(t *testing.T) {
	if answerKey("Who won?") != answerKey("  who   WON? ") {
		t.Fatalf("keys differ for equivalent questions")
	}
	if answerKey("Who won?") == answerKey("Who lost?") {
		t.Fatalf("keys collide for different questions")
	}
	if !strings.HasPrefix(answerKey("x"), "ai:") {
		t.Fatalf("missing prefix")
	}
}

func TestAIQueryMalformedBody(t *testing.T) {
	calls := 0
	h, _ := newAIHandler(t, replies(&calls))

	rec := postQuery(t, h, `{"query":`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 got %d", rec.Code)
	}
	body := decode(t, rec)
	if body["success"] != false || body["error"] != "Invalid request body" {
		t.Fatalf("unexpected body: %v", body)
	}
	if calls != 0 {
		t.Fatalf("generator called %d times", calls)
	}
}

func TestAIQueryModelFailures(t *testing.T) {
	stmt := `SELECT COUNT(*) AS n FROM election_loksabha_data LIMIT 1;`
	tests := []struct {
		name    string
		gen     func(calls *int) llm.Generator
		rows    bool
		message string
	}{
		{
			name: "generation",
			gen: func(calls *int) llm.Generator {
				return llm.GeneratorFunc(func(context.Context, string) (string, error) {
					*calls++
					return "", errors.New("quota exceeded")
				})
			},
			message: "quota exceeded",
		},
		{
			name: "summarization",
			gen: func(calls *int) llm.Generator {
				return llm.GeneratorFunc(func(context.Context, string) (string, error) {
					*calls++
					if *calls == 1 {
						return stmt, nil
					}
					return "", errors.New("deadline exceeded")
				})
			},
			rows:    true,
			message: "deadline exceeded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			h, mock := newAIHandler(t, tt.gen(&calls))
			if tt.rows {
				mock.ExpectQuery(regexp.QuoteMeta(stmt)).WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(int64(12)))
			}

			rec := postQuery(t, h, `{"query":"how many rows?"}`)
			if rec.Code != http.StatusInternalServerError {
				t.Fatalf("expected status 500 got %d", rec.Code)
			}
			body := decode(t, rec)
			if body["success"] != false || body["error"] != "Failed to process query" {
				t.Fatalf("unexpected body: %v", body)
			}
			if msg, _ := body["message"].(string); !strings.Contains(msg, tt.message) {
				t.Fatalf("message %q missing %q", msg, tt.message)
			}
			if _, ok := body["answer"]; ok {
				t.Fatalf("failed request returned an answer: %v", body)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Fatalf("expectations: %v", err)
			}
		})
	}
}
