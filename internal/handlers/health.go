package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"stockpulse-api/internal/storage"
)

type HealthHandler struct {
	startTime time.Time
	store     *storage.Store
}

func NewHealthHandler(store *storage.Store) *HealthHandler {
	return &HealthHandler{
		startTime: time.Now(),
		store:     store,
	}
}

// Health handles GET /health
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "healthy",
		"service": "stockpulse-api",
		"version": "1.0.0",
		"uptime":  time.Since(h.startTime).String(),
		"time":    time.Now(),
	})
}

// Ready handles GET /health/ready
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	state := "ready"
	dbStatus := "ok"
	status := fiber.StatusOK
	if err := h.store.Ping(c.Context()); err != nil {
		state = "not ready"
		dbStatus = err.Error()
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(fiber.Map{
		"status": state,
		"checks": fiber.Map{
			"api":      "ok",
			"database": dbStatus,
		},
	})
}
