// Package nlsql answers natural language questions about the election table. Each
// question runs through prompt construction, statement generation, extraction,
// validation, execution and summarization, in that order, and stops at the first failure.
package nlsql

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/loksabha/internal/llm"
	"github.com/mohammad-safakhou/loksabha/internal/metrics"
	"github.com/mohammad-safakhou/loksabha/internal/sqlguard"
	"github.com/mohammad-safakhou/loksabha/internal/store"
	"github.com/mohammad-safakhou/loksabha/internal/valueindex"
)

const (
	// PreviewRows is how many rows the summarizer sees.
	PreviewRows = 10
	// ResultRows is how many rows are returned to the caller.
	ResultRows = 100
)

// Executor runs a validated statement.
type Executor interface {
	Query(ctx context.Context, stmt string) (*store.Result, error)
}

// Validator accepts or rejects a generated statement.
type Validator interface {
	Validate(stmt string) error
}

// HintSource finds canonical dataset values mentioned in a question.
type HintSource interface {
	Lookup(question string) ([]valueindex.Hit, error)
}

// Attempt is the transient record of one question. It is never persisted.
type Attempt struct {
	ID        string           `json:"id"`
	Question  string           `json:"question"`
	SQL       string           `json:"sql,omitempty"`
	Verdict   string           `json:"verdict,omitempty"`
	Columns   []string         `json:"columns,omitempty"`
	Rows      []map[string]any `json:"rows,omitempty"`
	TotalRows int              `json:"totalRows"`
	Answer    string           `json:"answer,omitempty"`
	Hints     []valueindex.Hit `json:"hints,omitempty"`
	Duration  time.Duration    `json:"duration"`
}

// Pipeline wires the stages together. Generator, Validator and Executor are required.
type Pipeline struct {
	Generator llm.Generator
	Validator Validator
	Executor  Executor
	Hints     HintSource
	Prompts   *PromptBuilder
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
}

func (p *Pipeline) logger() *zap.Logger {
	if p.Logger == nil {
		return zap.NewNop()
	}
	return p.Logger
}

func (p *Pipeline) prompts() *PromptBuilder {
	if p.Prompts == nil {
		return NewPromptBuilder("")
	}
	return p.Prompts
}

// Ask runs the full pipeline. The returned Attempt is never nil and carries whatever was
// produced before a failure (notably the generated SQL). Errors are *StageError.
func (p *Pipeline) Ask(ctx context.Context, question string) (*Attempt, error) {
	start := time.Now()
	a := &Attempt{ID: uuid.NewString(), Question: question}
	log := p.logger().With(zap.String("attempt_id", a.ID))

	err := p.run(ctx, a, log)
	a.Duration = time.Since(start)

	outcome := "success"
	if err != nil {
		outcome = string(KindOf(err))
		a.Verdict = outcome
	}
	p.Metrics.QueryOutcome(outcome)

	fields := []zap.Field{
		zap.String("question", question),
		zap.String("sql", a.SQL),
		zap.String("verdict", a.Verdict),
		zap.Int("rows", a.TotalRows),
		zap.Duration("duration", a.Duration),
	}
	if err != nil {
		log.Warn("ask failed", append(fields, zap.Error(err))...)
	} else {
		log.Info("ask completed", fields...)
	}
	return a, err
}

func (p *Pipeline) run(ctx context.Context, a *Attempt, log *zap.Logger) error {
	question := strings.TrimSpace(a.Question)
	if question == "" {
		return &StageError{Stage: StageInput, Kind: KindEmptyInput, Err: errors.New("question is required")}
	}

	if p.Hints != nil {
		hints, err := p.Hints.Lookup(question)
		if err != nil {
			log.Warn("value hint lookup failed", zap.Error(err))
		}
		a.Hints = hints
	}

	t := time.Now()
	raw, err := p.generate(ctx, "sql", p.prompts().BuildQueryPrompt(question, a.Hints))
	p.Metrics.ObserveStage(string(StageGenerate), t)
	if err != nil {
		return &StageError{Stage: StageGenerate, Kind: KindGenerationFailed, Err: err}
	}
	a.SQL = Extract(raw)
	log.Debug("generated sql", zap.String("raw", raw), zap.String("sql", a.SQL))

	t = time.Now()
	err = p.Validator.Validate(a.SQL)
	p.Metrics.ObserveStage(string(StageValidate), t)
	if err != nil {
		var gerr *sqlguard.Error
		if errors.As(err, &gerr) {
			return &StageError{Stage: StageValidate, Kind: Kind(gerr.Kind), Err: gerr}
		}
		return &StageError{Stage: StageValidate, Kind: KindSyntaxInvalid, Err: err}
	}
	a.Verdict = "valid"

	t = time.Now()
	res, err := p.Executor.Query(ctx, a.SQL)
	p.Metrics.ObserveStage(string(StageExecute), t)
	if err != nil {
		return &StageError{Stage: StageExecute, Kind: KindExecutionFailed, Err: err}
	}
	a.Columns = res.Columns
	a.TotalRows = len(res.Rows)
	a.Rows = head(res.Rows, ResultRows)

	t = time.Now()
	answer, err := p.generate(ctx, "summary", p.prompts().BuildSummaryPrompt(question, head(res.Rows, PreviewRows), a.TotalRows))
	p.Metrics.ObserveStage(string(StageSummarize), t)
	if err != nil {
		return &StageError{Stage: StageSummarize, Kind: KindSummarizationFailed, Err: err}
	}
	a.Answer = strings.TrimSpace(answer)
	return nil
}

func (p *Pipeline) generate(ctx context.Context, purpose, prompt string) (string, error) {
	out, err := p.Generator.Generate(ctx, prompt)
	p.Metrics.LLMCall(purpose, err)
	if err != nil {
		return "", fmt.Errorf("%s generation: %w", purpose, err)
	}
	return out, nil
}

func head(rows []map[string]any, n int) []map[string]any {
	if len(rows) > n {
		return rows[:n]
	}
	return rows
}
