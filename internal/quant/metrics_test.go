package quant

import (
	"encoding/json"
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaxDrawdown(t *testing.T) {
	tests := []struct {
		name   string
		closes []float64
		want   float64
	}{
		{"peak to trough", []float64{100, 120, 90, 110}, 0.25},
		{"monotonic rise", []float64{100, 110, 120}, 0},
		{"constant", []float64{100, 100, 100}, 0},
		{"full history low", []float64{100, 80, 120, 60}, 0.5},
		{"empty", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, MaxDrawdown(tt.closes), 1e-12)
		})
	}
}

func TestComputeMetrics_ConstantSeriesUndefinedRatios(t *testing.T) {
	bundle, err := ComputeMetrics(seriesOf(100, 100, 100, 100), 0)
	require.NoError(t, err)

	assert.Equal(t, 0.0, bundle.Volatility)
	assert.False(t, bundle.Sharpe.Defined, "zero variance leaves Sharpe undefined")
	assert.False(t, bundle.Sortino.Defined, "no downside leaves Sortino undefined")
	assert.False(t, bundle.Calmar.Defined, "zero drawdown leaves Calmar undefined")

	// The wire format must expose null, never NaN.
	data, err := json.Marshal(bundle)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Nil(t, decoded["sharpeRatio"])
	assert.Nil(t, decoded["sortinoRatio"])
	assert.Nil(t, decoded["calmarRatio"])
}

func TestComputeMetrics_RejectsShortSeries(t *testing.T) {
	_, err := ComputeMetrics(seriesOf(100), 0)
	assert.ErrorIs(t, err, ErrInsufficientData)

	_, err = ComputeMetrics(nil, 0)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestComputeMetrics_VaRMatchesSortedReturns(t *testing.T) {
	// Large pseudo-random walk; the empirical VaR must equal the 5th
	// percentile computed directly from the sorted return sample.
	rng := rand.New(rand.NewSource(3))
	series := make([]PricePoint, 0, 1001)
	price := 100.0
	for i := 0; i <= 1000; i++ {
		series = append(series, PricePoint{Date: day(i), Close: price})
		price *= math.Exp(0.0002 + 0.01*rng.NormFloat64())
	}

	bundle, err := ComputeMetrics(series, 0)
	require.NoError(t, err)

	returns, err := LogReturns(series)
	require.NoError(t, err)
	sort.Float64s(returns)
	want := percentile(returns, 5)

	assert.InDelta(t, want, bundle.VaR95, 1e-12)
	assert.Less(t, bundle.VaR95, 0.0, "a volatile sample has a loss-side 5th percentile")

	// CVaR is the mean of the tail at or below VaR, so it cannot sit
	// above the threshold.
	assert.LessOrEqual(t, bundle.CVaR95, bundle.VaR95)

	assert.True(t, bundle.Sharpe.Defined)
	assert.True(t, bundle.Sortino.Defined)
	assert.True(t, bundle.Calmar.Defined)
	assert.True(t, bundle.Skewness.Defined)
	assert.True(t, bundle.Kurtosis.Defined)
}

func TestComputeMetrics_Annualization(t *testing.T) {
	// Alternating +1%/-1% (log) returns have a known per-day mean and
	// deviation to scale up.
	series := make([]PricePoint, 0, 9)
	price := 100.0
	series = append(series, PricePoint{Date: day(0), Close: price})
	for i := 1; i < 9; i++ {
		if i%2 == 1 {
			price *= math.Exp(0.01)
		} else {
			price *= math.Exp(-0.01)
		}
		series = append(series, PricePoint{Date: day(i), Close: price})
	}

	bundle, err := ComputeMetrics(series, 0)
	require.NoError(t, err)

	returns, _ := LogReturns(series)
	mean, sd := 0.0, 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))
	for _, r := range returns {
		sd += (r - mean) * (r - mean)
	}
	sd = math.Sqrt(sd / float64(len(returns)-1))

	assert.InDelta(t, mean*TradingDays, bundle.MeanReturn, 1e-12)
	assert.InDelta(t, sd*math.Sqrt(TradingDays), bundle.Volatility, 1e-12)
	require.True(t, bundle.Sharpe.Defined)
	assert.InDelta(t, bundle.MeanReturn/bundle.Volatility, bundle.Sharpe.Value, 1e-12)
}

func TestMetricJSONRoundTrip(t *testing.T) {
	data, err := json.Marshal(Defined(1.5))
	require.NoError(t, err)
	assert.Equal(t, "1.5", string(data))

	var m Metric
	require.NoError(t, json.Unmarshal([]byte("null"), &m))
	assert.False(t, m.Defined)
	require.NoError(t, json.Unmarshal([]byte("2.25"), &m))
	assert.True(t, m.Defined)
	assert.Equal(t, 2.25, m.Value)
}
