package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/loksabha/internal/store"
)

type HealthHandler struct {
	Store *store.Store
}

func (h *HealthHandler) Register(g *echo.Group) {
	g.GET("/health", h.health)
	g.GET("/ping", h.ping)
	g.GET("/debug/tables", h.tables)
}

func (h *HealthHandler) health(c echo.Context) error {
	if err := h.Store.Ping(c.Request().Context()); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"status": "error",
			"db":     "disconnected",
			"error":  err.Error(),
		})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok", "db": "connected"})
}

func (h *HealthHandler) ping(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"message": "true"})
}

func (h *HealthHandler) tables(c echo.Context) error {
	tables, err := h.Store.ListTables(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Server error")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"tables": tables, "count": len(tables)})
}
