package handlers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"stockpulse-api/internal/charts"
	"stockpulse-api/internal/models"
	"stockpulse-api/internal/quant"
	"stockpulse-api/internal/services"
)

const maxBatchTickers = 50

type StockHandler struct {
	analysis *services.AnalysisService
	market   services.MarketData
}

func NewStockHandler(analysis *services.AnalysisService, market services.MarketData) *StockHandler {
	return &StockHandler{
		analysis: analysis,
		market:   market,
	}
}

func symbolParam(c *fiber.Ctx) (string, error) {
	symbol := strings.ToUpper(strings.TrimSpace(c.Params("symbol")))
	if symbol == "" {
		return "", errors.New("symbol is required")
	}
	return symbol, nil
}

// statusFor maps engine errors to HTTP status codes: bad parameters
// are 400, data that fails validation is 422.
func statusFor(err error) int {
	switch {
	case errors.Is(err, quant.ErrInvalidSimulationConfig):
		return fiber.StatusBadRequest
	case errors.Is(err, quant.ErrInsufficientData),
		errors.Is(err, quant.ErrNonChronological),
		errors.Is(err, quant.ErrNonPositivePrice):
		return fiber.StatusUnprocessableEntity
	default:
		return fiber.StatusInternalServerError
	}
}

func errorJSON(c *fiber.Ctx, status int, msg string, err error) error {
	resp := models.ErrorResponse{Error: msg, Code: status}
	if err != nil {
		resp.Message = err.Error()
	}
	return c.Status(status).JSON(resp)
}

// GetQuote handles GET /v1/stocks/:symbol/quote
func (h *StockHandler) GetQuote(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 10*time.Second)
	defer cancel()

	symbol, err := symbolParam(c)
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "Invalid symbol", err)
	}

	quote, err := h.market.GetQuote(ctx, symbol)
	if err != nil {
		return errorJSON(c, fiber.StatusNotFound, "Ticker not found", err)
	}
	return c.JSON(quote)
}

// GetHistory handles GET /v1/stocks/:symbol/history
func (h *StockHandler) GetHistory(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 15*time.Second)
	defer cancel()

	symbol, err := symbolParam(c)
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "Invalid symbol", err)
	}

	resp, err := h.analysis.History(ctx, symbol, c.QueryInt("days"))
	if err != nil {
		return errorJSON(c, fiber.StatusNotFound, "History unavailable", err)
	}
	return c.JSON(resp)
}

// GetMetrics handles GET /v1/stocks/:symbol/metrics
func (h *StockHandler) GetMetrics(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 15*time.Second)
	defer cancel()

	symbol, err := symbolParam(c)
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "Invalid symbol", err)
	}

	resp, err := h.analysis.Metrics(ctx, symbol, c.QueryInt("days"))
	if err != nil {
		return errorJSON(c, statusFor(err), "Failed to compute metrics", err)
	}
	return c.JSON(resp)
}

// GetMonteCarlo handles GET /v1/stocks/:symbol/monte-carlo
func (h *StockHandler) GetMonteCarlo(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 30*time.Second)
	defer cancel()

	symbol, err := symbolParam(c)
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "Invalid symbol", err)
	}

	cfg := quant.DefaultSimulationConfig()
	if v := c.QueryInt("simulations"); v != 0 {
		cfg.Paths = v
	}
	if v := c.QueryInt("horizon"); v != 0 {
		cfg.Horizon = v
	}
	if v := c.QueryFloat("confidence"); v != 0 {
		cfg.Confidence = v
	}
	if v := c.QueryInt("seed"); v != 0 {
		cfg.Seed = int64(v)
	}

	resp, err := h.analysis.MonteCarlo(ctx, symbol, c.QueryInt("days"), cfg)
	if err != nil {
		return errorJSON(c, statusFor(err), "Failed to run simulation", err)
	}
	return c.JSON(resp)
}

// GetIndicators handles GET /v1/stocks/:symbol/indicators
func (h *StockHandler) GetIndicators(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 15*time.Second)
	defer cancel()

	symbol, err := symbolParam(c)
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "Invalid symbol", err)
	}

	resp, err := h.analysis.Indicators(ctx, symbol, c.QueryInt("days"))
	if err != nil {
		return errorJSON(c, statusFor(err), "Failed to compute indicators", err)
	}
	return c.JSON(resp)
}

// GetChart handles GET /v1/stocks/:symbol/chart.png
func (h *StockHandler) GetChart(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 30*time.Second)
	defer cancel()

	symbol, err := symbolParam(c)
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "Invalid symbol", err)
	}

	var png []byte
	switch kind := c.Query("kind", "history"); kind {
	case "history":
		resp, err := h.analysis.History(ctx, symbol, c.QueryInt("days"))
		if err != nil {
			return errorJSON(c, fiber.StatusNotFound, "History unavailable", err)
		}
		png, err = charts.HistoryPNG(symbol, resp.Points)
		if err != nil {
			return errorJSON(c, fiber.StatusInternalServerError, "Failed to render chart", err)
		}
	case "simulation":
		cfg := quant.DefaultSimulationConfig()
		if v := c.QueryInt("seed"); v != 0 {
			cfg.Seed = int64(v)
		}
		resp, err := h.analysis.MonteCarlo(ctx, symbol, c.QueryInt("days"), cfg)
		if err != nil {
			return errorJSON(c, statusFor(err), "Failed to run simulation", err)
		}
		png, err = charts.SimulationPNG(symbol, resp.Result)
		if err != nil {
			return errorJSON(c, fiber.StatusInternalServerError, "Failed to render chart", err)
		}
	default:
		return errorJSON(c, fiber.StatusBadRequest, "Unknown chart kind "+kind, nil)
	}

	c.Set(fiber.HeaderContentType, "image/png")
	return c.Send(png)
}

// GetSimulations handles GET /v1/stocks/:symbol/simulations
func (h *StockHandler) GetSimulations(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 10*time.Second)
	defer cancel()

	symbol, err := symbolParam(c)
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "Invalid symbol", err)
	}

	records, err := h.analysis.Snapshots(ctx, symbol, c.QueryInt("limit"))
	if err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, "Failed to load simulations", err)
	}
	return c.JSON(fiber.Map{"symbol": symbol, "simulations": records})
}

// PostAnalysis handles POST /v1/analysis
func (h *StockHandler) PostAnalysis(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 30*time.Second)
	defer cancel()

	var req models.AnalysisRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if len(req.Tickers) == 0 {
		return errorJSON(c, fiber.StatusBadRequest, "Tickers are required", nil)
	}
	if len(req.Tickers) > maxBatchTickers {
		return errorJSON(c, fiber.StatusBadRequest, "Too many tickers", nil)
	}

	resp, err := h.analysis.BatchAnalysis(ctx, req)
	if err != nil {
		return errorJSON(c, fiber.StatusBadGateway, "Failed to analyze tickers", err)
	}
	return c.JSON(resp)
}

// RefreshCache handles POST /v1/admin/refresh
func (h *StockHandler) RefreshCache(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 30*time.Second)
	defer cancel()

	if err := h.analysis.Refresh(ctx); err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, "Failed to refresh cache", err)
	}
	return c.JSON(fiber.Map{
		"message": "Cache refreshed successfully",
		"time":    time.Now(),
	})
}

// CustomErrorHandler handles Fiber errors
func CustomErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}
	return c.Status(code).JSON(models.ErrorResponse{
		Error:   "Request failed",
		Message: err.Error(),
		Code:    code,
	})
}
