package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/loksabha/internal/cache"
	"github.com/mohammad-safakhou/loksabha/internal/store"
)

const filtersKey = "filters:all"

type ElectionsHandler struct {
	Store  *store.Store
	Cache  cache.Cache
	Logger *zap.Logger
}

func (h *ElectionsHandler) Register(g *echo.Group) {
	g.GET("/elections", h.list)
	g.GET("/unique/:field", h.unique)
	g.GET("/filters/all", h.filters)
}

func (h *ElectionsHandler) logger() *zap.Logger {
	if h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger
}

func serverError(c echo.Context, err error) error {
	return c.JSON(http.StatusInternalServerError, map[string]interface{}{
		"success": false,
		"error":   "Server error",
		"message": err.Error(),
	})
}

func (h *ElectionsHandler) list(c echo.Context) error {
	f, err := parseFilter(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	f = f.Normalize()
	ctx := c.Request().Context()

	total, err := h.Store.CountElections(ctx, f)
	if err != nil {
		return serverError(c, err)
	}
	items, err := h.Store.ListElections(ctx, f)
	if err != nil {
		return serverError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    items,
		"pagination": map[string]interface{}{
			"total":    total,
			"limit":    f.Limit,
			"offset":   f.Offset,
			"returned": len(items),
		},
	})
}

// parseFilter reads the query string. Lists are comma separated.
func parseFilter(c echo.Context) (store.ElectionFilter, error) {
	var (
		f   store.ElectionFilter
		err error
	)
	ints := []struct {
		name string
		dst  *int
	}{
		{"year", &f.Year},
		{"yearStart", &f.YearStart},
		{"yearEnd", &f.YearEnd},
		{"limit", &f.Limit},
		{"offset", &f.Offset},
	}
	for _, p := range ints {
		raw := strings.TrimSpace(c.QueryParam(p.name))
		if raw == "" {
			continue
		}
		if *p.dst, err = strconv.Atoi(raw); err != nil {
			return f, fmt.Errorf("invalid %s: %q", p.name, raw)
		}
	}
	f.States = splitList(c.QueryParam("states"))
	f.Parties = splitList(c.QueryParam("parties"))
	f.Genders = splitList(c.QueryParam("genders"))
	f.Constituencies = splitList(c.QueryParam("constituencies"))
	return f, nil
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	return strings.Split(raw, ",")
}

func (h *ElectionsHandler) unique(c echo.Context) error {
	field := c.Param("field")
	if !store.ValidField(field) {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"success":     false,
			"error":       "Invalid field name",
			"validFields": store.FilterFields,
		})
	}
	values, err := h.Store.UniqueValues(c.Request().Context(), field)
	if err != nil {
		return serverError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"field":   field,
		"values":  values,
		"count":   len(values),
	})
}

func (h *ElectionsHandler) filters(c echo.Context) error {
	ctx := c.Request().Context()
	var opts map[string][]any
	ok, err := h.Cache.Get(ctx, filtersKey, &opts)
	if err != nil {
		h.logger().Warn("filter cache read failed", zap.Error(err))
	}
	if !ok {
		if opts, err = WarmFilters(ctx, h.Store, h.Cache, h.logger()); err != nil {
			return serverError(c, err)
		}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"filters": opts,
	})
}

// WarmFilters loads every filter field's distinct values and stores them in c.
// A cache write failure is logged and does not fail the call.
func WarmFilters(ctx context.Context, st *store.Store, c cache.Cache, logger *zap.Logger) (map[string][]any, error) {
	opts, err := st.FilterOptions(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.Set(ctx, filtersKey, opts); err != nil {
		logger.Warn("filter cache write failed", zap.Error(err))
	}
	return opts, nil
}
