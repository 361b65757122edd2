package services

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"stockpulse-api/internal/config"
	"stockpulse-api/internal/models"
	"stockpulse-api/internal/quant"
	"stockpulse-api/internal/storage"
)

// stubMarket serves canned histories without touching the network.
type stubMarket struct {
	histories map[string][]quant.PricePoint
	calls     int
}

func (m *stubMarket) GetQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	series, ok := m.histories[symbol]
	if !ok {
		return nil, fmt.Errorf("unknown symbol %s", symbol)
	}
	return &models.Quote{Symbol: symbol, Price: series[len(series)-1].Close}, nil
}

func (m *stubMarket) GetHistory(ctx context.Context, symbol string, days int) ([]quant.PricePoint, error) {
	m.calls++
	series, ok := m.histories[symbol]
	if !ok {
		return nil, fmt.Errorf("unknown symbol %s", symbol)
	}
	return series, nil
}

func (m *stubMarket) GetHistoryBatch(ctx context.Context, tickers []string, days int) map[string]BatchResult {
	out := make(map[string]BatchResult, len(tickers))
	for _, t := range tickers {
		series, err := m.GetHistory(ctx, t, days)
		out[t] = BatchResult{Symbol: t, Series: series, Err: err}
	}
	return out
}

func testHistory(n int) []quant.PricePoint {
	base := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	series := make([]quant.PricePoint, n)
	price := 100.0
	for i := range series {
		if i%2 == 0 {
			price *= 1.01
		} else {
			price *= 0.995
		}
		series[i] = quant.PricePoint{Date: base.AddDate(0, 0, i), Close: price}
	}
	return series
}

func newTestAnalysis(t *testing.T, market MarketData) *AnalysisService {
	t.Helper()
	store, err := storage.NewStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cfg := &config.Config{DefaultHistoryDays: 365, CacheTTLMinutes: 60}
	cache := NewCacheService(time.Minute)
	return NewAnalysisService(cfg, market, store, cache, zap.NewNop().Sugar())
}

func TestMetrics_CacheHit(t *testing.T) {
	market := &stubMarket{histories: map[string][]quant.PricePoint{"TSLA": testHistory(50)}}
	svc := newTestAnalysis(t, market)
	ctx := context.Background()

	first, err := svc.Metrics(ctx, "TSLA", 0)
	require.NoError(t, err)
	assert.False(t, first.CacheHit)
	assert.Equal(t, 365, first.Days, "zero days falls back to the configured default")
	assert.NotNil(t, first.Metrics)
	assert.Greater(t, first.Metrics.Volatility, 0.0)

	second, err := svc.Metrics(ctx, "TSLA", 0)
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, 1, market.calls, "second call must come from cache")
}

func TestMonteCarlo_PersistsSnapshot(t *testing.T) {
	market := &stubMarket{histories: map[string][]quant.PricePoint{"TSLA": testHistory(50)}}
	svc := newTestAnalysis(t, market)
	ctx := context.Background()

	cfg := quant.SimulationConfig{Paths: 120, Horizon: 10, Confidence: 0.95, Seed: 5}
	resp, err := svc.MonteCarlo(ctx, "TSLA", 0, cfg)
	require.NoError(t, err)
	require.Len(t, resp.Result.MeanPath, 10)

	records, err := svc.Snapshots(ctx, "TSLA", 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, resp.Result.MeanPath, records[0].MeanPath)
	assert.Equal(t, int64(5), records[0].Seed)

	// Same parameters hit the cache and do not add a second snapshot.
	again, err := svc.MonteCarlo(ctx, "TSLA", 0, cfg)
	require.NoError(t, err)
	assert.True(t, again.CacheHit)
	records, err = svc.Snapshots(ctx, "TSLA", 10)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestMonteCarlo_InvalidConfigRejected(t *testing.T) {
	market := &stubMarket{histories: map[string][]quant.PricePoint{"TSLA": testHistory(50)}}
	svc := newTestAnalysis(t, market)

	_, err := svc.MonteCarlo(context.Background(), "TSLA", 0,
		quant.SimulationConfig{Paths: -1, Horizon: 10, Confidence: 0.95})
	assert.ErrorIs(t, err, quant.ErrInvalidSimulationConfig)
}

func TestBatchAnalysis_PartialFailure(t *testing.T) {
	market := &stubMarket{histories: map[string][]quant.PricePoint{
		"TSLA": testHistory(50),
		"AAPL": testHistory(40),
	}}
	svc := newTestAnalysis(t, market)

	resp, err := svc.BatchAnalysis(context.Background(), models.AnalysisRequest{
		Tickers: []string{"tsla", "AAPL", "NOPE"},
	})
	require.NoError(t, err)
	require.Len(t, resp.Tickers, 2)
	assert.Equal(t, "AAPL", resp.Tickers[0].Symbol)
	assert.Equal(t, "TSLA", resp.Tickers[1].Symbol)
	assert.Contains(t, resp.Failed, "NOPE")
}

func TestBatchAnalysis_AllFailed(t *testing.T) {
	svc := newTestAnalysis(t, &stubMarket{histories: map[string][]quant.PricePoint{}})
	_, err := svc.BatchAnalysis(context.Background(), models.AnalysisRequest{Tickers: []string{"NOPE"}})
	assert.Error(t, err)
}

func TestIndicators(t *testing.T) {
	market := &stubMarket{histories: map[string][]quant.PricePoint{"TSLA": testHistory(60)}}
	svc := newTestAnalysis(t, market)

	resp, err := svc.Indicators(context.Background(), "TSLA", 0)
	require.NoError(t, err)
	assert.NotEmpty(t, resp.RSI)
	assert.Len(t, resp.MACD.Line, 60)
	assert.NotEmpty(t, resp.Bollinger.Middle)
}

func TestIndicators_ShortSeries(t *testing.T) {
	market := &stubMarket{histories: map[string][]quant.PricePoint{"TSLA": testHistory(5)}}
	svc := newTestAnalysis(t, market)

	_, err := svc.Indicators(context.Background(), "TSLA", 0)
	assert.ErrorIs(t, err, quant.ErrInsufficientData)
}

func TestRefresh_ClearsCaches(t *testing.T) {
	market := &stubMarket{histories: map[string][]quant.PricePoint{"TSLA": testHistory(50)}}
	svc := newTestAnalysis(t, market)
	ctx := context.Background()

	_, err := svc.Metrics(ctx, "TSLA", 0)
	require.NoError(t, err)
	require.NoError(t, svc.Refresh(ctx))

	resp, err := svc.Metrics(ctx, "TSLA", 0)
	require.NoError(t, err)
	assert.False(t, resp.CacheHit, "refresh must drop cached responses")
}
