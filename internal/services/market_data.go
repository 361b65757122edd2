package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"stockpulse-api/internal/config"
	"stockpulse-api/internal/models"
	"stockpulse-api/internal/quant"
	"stockpulse-api/internal/storage"
	"stockpulse-api/pkg/alphavantage"
	"stockpulse-api/pkg/yahoo"
)

// MarketDataService handles concurrent market data fetching with a
// SQLite-backed history cache. Yahoo is the primary source, Alpha
// Vantage the fallback when a key is configured.
type MarketDataService struct {
	config       *config.Config
	cache        *CacheService
	store        *storage.Store
	alphaVantage *alphavantage.Client
	yahoo        *yahoo.Client
	workerPool   chan struct{} // semaphore for bounded concurrency
	log          *zap.SugaredLogger
}

func NewMarketDataService(cfg *config.Config, cache *CacheService, store *storage.Store, log *zap.SugaredLogger) *MarketDataService {
	return &MarketDataService{
		config:       cfg,
		cache:        cache,
		store:        store,
		alphaVantage: alphavantage.NewClient(cfg.AlphaVantageKey),
		yahoo:        yahoo.NewClient(),
		workerPool:   make(chan struct{}, cfg.MaxConcurrentFetches),
		log:          log,
	}
}

// GetQuote fetches the latest quote with a source fan-out: both
// providers race and the first success wins.
func (s *MarketDataService) GetQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	if cached, found := s.cache.quotes.Get(symbol); found {
		return cached, nil
	}

	type result struct {
		quote *models.Quote
		err   error
	}

	yahooCh := make(chan result, 1)
	alphaCh := make(chan result, 1)

	go func() {
		quote, err := s.yahoo.GetQuote(ctx, symbol)
		yahooCh <- result{quote, err}
	}()
	go func() {
		if s.config.AlphaVantageKey != "" {
			quote, err := s.alphaVantage.GetQuote(ctx, symbol)
			alphaCh <- result{quote, err}
		} else {
			alphaCh <- result{nil, fmt.Errorf("alpha vantage not configured")}
		}
	}()

	select {
	case res := <-yahooCh:
		if res.err == nil {
			s.cache.quotes.Set(symbol, res.quote)
			return res.quote, nil
		}
		s.log.Warnw("yahoo quote failed, trying fallback", "symbol", symbol, "error", res.err)
		res = <-alphaCh
		if res.err == nil {
			s.cache.quotes.Set(symbol, res.quote)
			return res.quote, nil
		}
		return nil, fmt.Errorf("all sources failed for %s", symbol)

	case res := <-alphaCh:
		if res.err == nil {
			s.cache.quotes.Set(symbol, res.quote)
			return res.quote, nil
		}
		res = <-yahooCh
		if res.err == nil {
			s.cache.quotes.Set(symbol, res.quote)
			return res.quote, nil
		}
		return nil, fmt.Errorf("all sources failed for %s", symbol)

	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// GetHistory returns up to days of daily closes for symbol,
// chronologically ascending. Fresh data in the SQLite cache is served
// directly; otherwise the providers are queried and the cache updated.
func (s *MarketDataService) GetHistory(ctx context.Context, symbol string, days int) ([]quant.PricePoint, error) {
	ttl := time.Duration(s.config.CacheTTLMinutes) * time.Minute
	if fetched, err := s.store.LastFetched(ctx, symbol); err == nil && time.Since(fetched) < ttl {
		series, err := s.store.LoadPrices(ctx, symbol, days)
		if err == nil && len(series) >= 2 {
			return series, nil
		}
	}

	series, err := s.yahoo.GetDailyHistory(ctx, symbol, days)
	if err != nil {
		s.log.Warnw("yahoo history failed, trying fallback", "symbol", symbol, "error", err)
		if s.config.AlphaVantageKey == "" {
			return nil, err
		}
		series, err = s.alphaVantage.GetDailyHistory(ctx, symbol, days)
		if err != nil {
			return nil, fmt.Errorf("all sources failed for %s: %w", symbol, err)
		}
	}

	if err := s.store.SavePrices(ctx, symbol, series); err != nil {
		// Cache write failure is not fatal for the request.
		s.log.Warnw("failed to cache prices", "symbol", symbol, "error", err)
	}
	return series, nil
}

// BatchResult carries one ticker's history out of a batch fetch.
type BatchResult struct {
	Symbol string
	Series []quant.PricePoint
	Err    error
}

// GetHistoryBatch fetches histories for multiple tickers concurrently
// over the bounded worker pool.
func (s *MarketDataService) GetHistoryBatch(ctx context.Context, tickers []string, days int) map[string]BatchResult {
	results := make(map[string]BatchResult, len(tickers))
	resultCh := make(chan BatchResult, len(tickers))

	var wg sync.WaitGroup
	for _, ticker := range tickers {
		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()

			s.workerPool <- struct{}{}
			defer func() { <-s.workerPool }()

			fetchCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			defer cancel()

			series, err := s.GetHistory(fetchCtx, symbol, days)
			resultCh <- BatchResult{Symbol: symbol, Series: series, Err: err}
		}(ticker)
	}

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	for res := range resultCh {
		results[res.Symbol] = res
	}
	return results
}
