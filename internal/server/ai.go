package server

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/loksabha/internal/cache"
	"github.com/mohammad-safakhou/loksabha/internal/nlsql"
)

// Asker answers a natural language question. *nlsql.Pipeline implements it.
type Asker interface {
	Ask(ctx context.Context, question string) (*nlsql.Attempt, error)
}

type AIHandler struct {
	Asker  Asker
	Cache  cache.Cache
	Logger *zap.Logger
}

type aiRequest struct {
	Query string `json:"query"`
}

type aiResponse struct {
	Success   bool             `json:"success"`
	Question  string           `json:"question"`
	SQL       string           `json:"sql"`
	Result    []map[string]any `json:"result"`
	TotalRows int              `json:"totalRows"`
	Answer    string           `json:"answer"`
}

func (h *AIHandler) Register(g *echo.Group) {
	g.POST("/ai/query", h.query)
}

func (h *AIHandler) logger() *zap.Logger {
	if h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger
}

func (h *AIHandler) cache() cache.Cache {
	if h.Cache == nil {
		return cache.Noop{}
	}
	return h.Cache
}

func (h *AIHandler) query(c echo.Context) error {
	var req aiRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error":   "Invalid request body",
			"success": false,
		})
	}
	question := strings.TrimSpace(req.Query)
	if question == "" {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error":   "Question is required",
			"success": false,
		})
	}

	ctx := c.Request().Context()
	key := answerKey(question)
	var cached aiResponse
	ok, err := h.cache().Get(ctx, key, &cached)
	if err != nil {
		h.logger().Warn("answer cache read failed", zap.Error(err))
	}
	if ok {
		cached.Question = question
		return c.JSON(http.StatusOK, cached)
	}

	a, err := h.Asker.Ask(ctx, question)
	if err != nil {
		return h.fail(c, a, err)
	}

	resp := aiResponse{
		Success:   true,
		Question:  question,
		SQL:       a.SQL,
		Result:    a.Rows,
		TotalRows: a.TotalRows,
		Answer:    a.Answer,
	}
	if resp.Result == nil {
		resp.Result = []map[string]any{}
	}
	if err := h.cache().Set(ctx, key, resp); err != nil {
		h.logger().Warn("answer cache write failed", zap.Error(err))
	}
	return c.JSON(http.StatusOK, resp)
}

// fail maps a pipeline failure to its status code and body.
func (h *AIHandler) fail(c echo.Context, a *nlsql.Attempt, err error) error {
	stmt := ""
	if a != nil {
		stmt = a.SQL
	}
	var se *nlsql.StageError
	if !errors.As(err, &se) {
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"success": false,
			"error":   "Failed to process query",
			"message": err.Error(),
		})
	}

	switch se.Kind {
	case nlsql.KindEmptyInput:
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error":   "Question is required",
			"success": false,
		})
	case nlsql.KindUnsafeOperation, nlsql.KindStatementChaining:
		return c.JSON(http.StatusForbidden, map[string]interface{}{
			"error":   "Unsafe query detected",
			"reason":  se.Reason(),
			"success": false,
			"sql":     stmt,
		})
	case nlsql.KindExtractionEmpty, nlsql.KindSyntaxInvalid:
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error":   "Invalid SQL syntax",
			"reason":  se.Reason(),
			"success": false,
			"sql":     stmt,
		})
	default:
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"success": false,
			"error":   "Failed to process query",
			"message": se.Reason(),
		})
	}
}

// answerKey ignores case and whitespace differences between questions.
func answerKey(question string) string {
	norm := strings.Join(strings.Fields(strings.ToLower(question)), " ")
	sum := sha256.Sum256([]byte(norm))
	return "ai:" + hex.EncodeToString(sum[:])
}
