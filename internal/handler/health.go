package handler

import (
	"net/http"

	"payment-relay/internal/config"

	"github.com/labstack/echo/v4"
)

const (
	serviceName    = "payment-relay"
	serviceVersion = "1.0.0"
)

type HealthHandler struct {
	cfg *config.Config
}

func NewHealthHandler(cfg *config.Config) *HealthHandler {
	return &HealthHandler{cfg: cfg}
}

func (h *HealthHandler) Describe(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"name":        serviceName,
		"version":     serviceVersion,
		"status":      "ok",
		"environment": h.cfg.Environment.Name,
		"gateway":     map[string]bool{"configured": h.cfg.MyFatoorah.Configured()},
		"backend":     map[string]bool{"configured": h.cfg.Shopify.Configured()},
	})
}

func (h *HealthHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
