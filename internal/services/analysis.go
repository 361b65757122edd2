package services

import (
	"context"
	"crypto/md5"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"stockpulse-api/internal/config"
	"stockpulse-api/internal/models"
	"stockpulse-api/internal/quant"
	"stockpulse-api/internal/storage"
)

// MarketData is the slice of the market-data service the analysis
// pipeline needs; tests substitute a stub.
type MarketData interface {
	GetQuote(ctx context.Context, symbol string) (*models.Quote, error)
	GetHistory(ctx context.Context, symbol string, days int) ([]quant.PricePoint, error)
	GetHistoryBatch(ctx context.Context, tickers []string, days int) map[string]BatchResult
}

// AnalysisService coordinates the analysis pipeline: fetch history,
// run the engine, cache and persist the outputs.
type AnalysisService struct {
	config *config.Config
	market MarketData
	store  *storage.Store
	cache  *CacheService
	log    *zap.SugaredLogger
}

func NewAnalysisService(cfg *config.Config, market MarketData, store *storage.Store, cache *CacheService, log *zap.SugaredLogger) *AnalysisService {
	return &AnalysisService{
		config: cfg,
		market: market,
		store:  store,
		cache:  cache,
		log:    log,
	}
}

func (s *AnalysisService) historyDays(days int) int {
	if days <= 0 {
		return s.config.DefaultHistoryDays
	}
	return days
}

// History returns the dated closing-price series for symbol.
func (s *AnalysisService) History(ctx context.Context, symbol string, days int) (*models.HistoryResponse, error) {
	days = s.historyDays(days)
	series, err := s.market.GetHistory(ctx, symbol, days)
	if err != nil {
		return nil, err
	}
	return &models.HistoryResponse{Symbol: symbol, Points: series}, nil
}

// Metrics computes the risk/performance bundle over symbol's history.
func (s *AnalysisService) Metrics(ctx context.Context, symbol string, days int) (*models.MetricsResponse, error) {
	days = s.historyDays(days)
	key := cacheKey("metrics", symbol, fmt.Sprint(days))
	if cached, found := s.cache.metrics.Get(key); found {
		hit := *cached
		hit.CacheHit = true
		return &hit, nil
	}

	series, err := s.market.GetHistory(ctx, symbol, days)
	if err != nil {
		return nil, err
	}
	bundle, err := quant.ComputeMetrics(series, s.config.RiskFreeRate)
	if err != nil {
		return nil, err
	}

	resp := &models.MetricsResponse{
		Symbol:       symbol,
		Days:         days,
		CurrentPrice: series[len(series)-1].Close,
		Metrics:      bundle,
		GeneratedAt:  time.Now(),
	}
	s.cache.metrics.Set(key, resp)
	return resp, nil
}

// MonteCarlo runs a simulation over symbol's history and records a
// snapshot of the run.
func (s *AnalysisService) MonteCarlo(ctx context.Context, symbol string, days int, cfg quant.SimulationConfig) (*models.SimulationResponse, error) {
	days = s.historyDays(days)
	key := cacheKey("montecarlo", symbol, fmt.Sprint(days), fmt.Sprint(cfg.Paths),
		fmt.Sprint(cfg.Horizon), fmt.Sprint(cfg.Confidence), fmt.Sprint(cfg.Seed))
	if cached, found := s.cache.simulations.Get(key); found {
		hit := *cached
		hit.CacheHit = true
		return &hit, nil
	}

	series, err := s.market.GetHistory(ctx, symbol, days)
	if err != nil {
		return nil, err
	}
	result, err := quant.Simulate(series, cfg)
	if err != nil {
		return nil, err
	}

	if err := s.store.SaveSimulation(ctx, symbol, result); err != nil {
		// The run itself succeeded; losing the audit row is not fatal.
		s.log.Warnw("failed to record simulation", "symbol", symbol, "error", err)
	}

	resp := &models.SimulationResponse{
		Symbol:      symbol,
		Days:        days,
		Result:      result,
		GeneratedAt: time.Now(),
	}
	s.cache.simulations.Set(key, resp)
	return resp, nil
}

// Indicators computes RSI, MACD and Bollinger bands over symbol's
// history with the standard parameters.
func (s *AnalysisService) Indicators(ctx context.Context, symbol string, days int) (*models.IndicatorsResponse, error) {
	days = s.historyDays(days)
	series, err := s.market.GetHistory(ctx, symbol, days)
	if err != nil {
		return nil, err
	}

	rsi, err := quant.RSI(series, quant.DefaultRSIPeriod)
	if err != nil {
		return nil, err
	}
	macd, err := quant.MACD(series, quant.DefaultMACDFast, quant.DefaultMACDSlow, quant.DefaultMACDSignal)
	if err != nil {
		return nil, err
	}
	bands, err := quant.Bollinger(series, quant.DefaultBollingerPeriod, quant.DefaultBollingerStdDev)
	if err != nil {
		return nil, err
	}

	return &models.IndicatorsResponse{
		Symbol:      symbol,
		Days:        days,
		RSI:         rsi,
		MACD:        macd,
		Bollinger:   bands,
		GeneratedAt: time.Now(),
	}, nil
}

// BatchAnalysis computes metrics for multiple tickers concurrently.
// Tickers that fail to fetch or validate are reported per symbol
// instead of failing the batch, unless nothing succeeds.
func (s *AnalysisService) BatchAnalysis(ctx context.Context, req models.AnalysisRequest) (*models.AnalysisResponse, error) {
	days := s.historyDays(req.Days)
	tickers := sortedTickers(req.Tickers)
	key := cacheKey(append([]string{"analysis", fmt.Sprint(days)}, tickers...)...)
	if cached, found := s.cache.analyses.Get(key); found {
		hit := *cached
		hit.CacheHit = true
		return &hit, nil
	}

	fetched := s.market.GetHistoryBatch(ctx, tickers, days)

	resp := &models.AnalysisResponse{
		GeneratedAt: time.Now(),
		Failed:      make(map[string]string),
	}
	for _, symbol := range tickers {
		res, ok := fetched[symbol]
		if !ok || res.Err != nil {
			reason := "not fetched"
			if ok {
				reason = res.Err.Error()
			}
			resp.Failed[symbol] = reason
			continue
		}
		bundle, err := quant.ComputeMetrics(res.Series, s.config.RiskFreeRate)
		if err != nil {
			resp.Failed[symbol] = err.Error()
			continue
		}
		resp.Tickers = append(resp.Tickers, models.TickerAnalysis{
			Symbol:       symbol,
			CurrentPrice: res.Series[len(res.Series)-1].Close,
			Metrics:      bundle,
		})
	}
	if len(resp.Tickers) == 0 {
		return nil, fmt.Errorf("all tickers failed: %v", resp.Failed)
	}
	if len(resp.Failed) == 0 {
		resp.Failed = nil
	}

	s.cache.analyses.Set(key, resp)
	return resp, nil
}

// Snapshots lists recent persisted simulation runs for symbol.
func (s *AnalysisService) Snapshots(ctx context.Context, symbol string, limit int) ([]storage.SimulationRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.store.RecentSimulations(ctx, symbol, limit)
}

// Refresh drops the in-memory caches and the cached price history.
func (s *AnalysisService) Refresh(ctx context.Context) error {
	s.cache.PurgeAll()
	if err := s.store.PurgePrices(ctx); err != nil {
		return err
	}
	s.log.Infow("caches refreshed")
	return nil
}

func cacheKey(parts ...string) string {
	return fmt.Sprintf("%x", md5.Sum([]byte(strings.Join(parts, "|"))))
}

// sortedTickers normalizes, dedupes and sorts the requested symbols.
func sortedTickers(tickers []string) []string {
	seen := make(map[string]bool, len(tickers))
	sorted := make([]string, 0, len(tickers))
	for _, t := range tickers {
		if t = strings.ToUpper(strings.TrimSpace(t)); t != "" && !seen[t] {
			seen[t] = true
			sorted = append(sorted, t)
		}
	}
	sort.Strings(sorted)
	return sorted
}
