package models

import (
	"time"

	"stockpulse-api/internal/quant"
)

// Quote is the latest market snapshot for a symbol.
type Quote struct {
	Symbol        string    `json:"symbol"`
	Price         float64   `json:"price"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"changePercent"`
	Volume        int64     `json:"volume"`
	LastUpdated   time.Time `json:"lastUpdated"`
	Source        string    `json:"source"` // "alphavantage" or "yahoo"
}

// HistoryResponse is a dated closing-price series.
type HistoryResponse struct {
	Symbol string             `json:"symbol"`
	Points []quant.PricePoint `json:"points"`
}

// MetricsResponse wraps the risk/performance bundle for one symbol.
type MetricsResponse struct {
	Symbol       string               `json:"symbol"`
	Days         int                  `json:"days"`
	CurrentPrice float64              `json:"currentPrice"`
	Metrics      *quant.MetricsBundle `json:"metrics"`
	GeneratedAt  time.Time            `json:"generatedAt"`
	CacheHit     bool                 `json:"cacheHit"`
}

// SimulationResponse is a Monte Carlo run summary.
type SimulationResponse struct {
	Symbol      string                  `json:"symbol"`
	Days        int                     `json:"days"`
	Result      *quant.SimulationResult `json:"result"`
	GeneratedAt time.Time               `json:"generatedAt"`
	CacheHit    bool                    `json:"cacheHit"`
}

// IndicatorsResponse bundles the standard technical indicators.
type IndicatorsResponse struct {
	Symbol      string                 `json:"symbol"`
	Days        int                    `json:"days"`
	RSI         []quant.IndicatorPoint `json:"rsi"`
	MACD        *quant.MACDSeries      `json:"macd"`
	Bollinger   *quant.BollingerBands  `json:"bollingerBands"`
	GeneratedAt time.Time              `json:"generatedAt"`
}

// AnalysisRequest asks for metrics across multiple tickers.
type AnalysisRequest struct {
	Tickers []string `json:"tickers"`
	Days    int      `json:"days,omitempty"`
}

// TickerAnalysis is one ticker's slice of a batch analysis.
type TickerAnalysis struct {
	Symbol       string               `json:"symbol"`
	CurrentPrice float64              `json:"currentPrice"`
	Metrics      *quant.MetricsBundle `json:"metrics"`
}

// AnalysisResponse is the batch analysis result. Tickers that failed
// to fetch are listed by symbol with the reason.
type AnalysisResponse struct {
	Tickers     []TickerAnalysis  `json:"tickers"`
	Failed      map[string]string `json:"failed,omitempty"`
	GeneratedAt time.Time         `json:"generatedAt"`
	CacheHit    bool              `json:"cacheHit"`
}

// ErrorResponse represents API error responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code"`
}
