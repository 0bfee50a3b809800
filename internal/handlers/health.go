package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

// HealthHandler reports process liveness and database readiness
type HealthHandler struct {
	db *gorm.DB
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(db *gorm.DB) *HealthHandler {
	return &HealthHandler{db: db}
}

// RegisterHealthRoutes registers the probe endpoints on the root router
func (h *HealthHandler) RegisterHealthRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Liveness)
	e.GET("/readyz", h.Readiness)
}

// Liveness reports that the process is up
func (h *HealthHandler) Liveness(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}

// Readiness reports whether the database is reachable
func (h *HealthHandler) Readiness(c echo.Context) error {
	sqlDB, err := h.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request().Context())
	}
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "unavailable"})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}
