package quant

import (
	"encoding/json"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// TradingDays is the annualization base for daily return statistics.
const TradingDays = 252

// Metric is a statistic that may be undefined when its computation
// degenerates (zero variance, no downside returns, zero drawdown).
// Undefined metrics marshal as JSON null instead of surfacing NaN.
type Metric struct {
	Value   float64
	Defined bool
}

func Defined(v float64) Metric { return Metric{Value: v, Defined: true} }

var Undefined = Metric{}

func (m Metric) MarshalJSON() ([]byte, error) {
	if !m.Defined || math.IsNaN(m.Value) || math.IsInf(m.Value, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(m.Value)
}

func (m *Metric) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*m = Undefined
		return nil
	}
	if err := json.Unmarshal(data, &m.Value); err != nil {
		return err
	}
	m.Defined = true
	return nil
}

// MetricsBundle is the flat set of risk/performance statistics derived
// from a historical price series. Volatility and MeanReturn are
// annualized; VaR and CVaR are per-day return quantities at 95%
// confidence; MaxDrawdown is a positive fraction of the peak.
type MetricsBundle struct {
	MeanReturn  float64 `json:"meanReturn"`
	Volatility  float64 `json:"volatility"`
	Sharpe      Metric  `json:"sharpeRatio"`
	Sortino     Metric  `json:"sortinoRatio"`
	VaR95       float64 `json:"var95"`
	CVaR95      float64 `json:"cvar95"`
	MaxDrawdown float64 `json:"maxDrawdown"`
	Calmar      Metric  `json:"calmarRatio"`
	Skewness    Metric  `json:"skewness"`
	Kurtosis    Metric  `json:"kurtosis"`
}

// ComputeMetrics evaluates the bundle over the series' log returns.
// riskFree is an annualized rate subtracted in the Sharpe numerator.
func ComputeMetrics(series []PricePoint, riskFree float64) (*MetricsBundle, error) {
	returns, err := LogReturns(series)
	if err != nil {
		return nil, err
	}

	mean := stat.Mean(returns, nil)
	sd := 0.0
	if len(returns) > 1 {
		sd = stat.StdDev(returns, nil)
	}

	bundle := &MetricsBundle{
		MeanReturn: mean * TradingDays,
		Volatility: sd * math.Sqrt(TradingDays),
	}

	if sd > 0 {
		bundle.Sharpe = Defined((bundle.MeanReturn - riskFree) / bundle.Volatility)
	}

	if dsd := downsideDeviation(returns); dsd > 0 {
		bundle.Sortino = Defined(bundle.MeanReturn / (dsd * math.Sqrt(TradingDays)))
	}

	sorted := append([]float64(nil), returns...)
	sort.Float64s(sorted)
	bundle.VaR95 = percentile(sorted, 5)
	bundle.CVaR95 = tailMean(sorted, bundle.VaR95)

	bundle.MaxDrawdown = MaxDrawdown(Closes(series))
	if bundle.MaxDrawdown > 0 {
		bundle.Calmar = Defined(bundle.MeanReturn / bundle.MaxDrawdown)
	}

	// Higher moments need variance and a few samples to mean anything.
	if len(returns) >= 3 && sd > 0 {
		bundle.Skewness = Defined(stat.Skew(returns, nil))
		bundle.Kurtosis = Defined(stat.ExKurtosis(returns, nil))
	}
	return bundle, nil
}

// MaxDrawdown returns the largest peak-to-trough decline of the price
// curve as a positive fraction of the peak. [100,120,90,110] -> 0.25.
func MaxDrawdown(closes []float64) float64 {
	if len(closes) == 0 {
		return 0
	}
	peak := closes[0]
	maxDD := 0.0
	for _, c := range closes {
		if c > peak {
			peak = c
		}
		if dd := (peak - c) / peak; dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

// downsideDeviation is the sample standard deviation of the negative
// returns only. Fewer than two negative returns leave it at 0, which
// the caller reports as an undefined Sortino.
func downsideDeviation(returns []float64) float64 {
	var negatives []float64
	for _, r := range returns {
		if r < 0 {
			negatives = append(negatives, r)
		}
	}
	if len(negatives) < 2 {
		return 0
	}
	return stat.StdDev(negatives, nil)
}

// tailMean averages the returns at or below the VaR threshold.
func tailMean(sorted []float64, threshold float64) float64 {
	sum, n := 0.0, 0
	for _, r := range sorted {
		if r > threshold {
			break
		}
		sum += r
		n++
	}
	if n == 0 {
		return threshold
	}
	return sum / float64(n)
}
