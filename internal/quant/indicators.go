package quant

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Default indicator parameters, matching common charting conventions.
const (
	DefaultRSIPeriod       = 14
	DefaultMACDFast        = 12
	DefaultMACDSlow        = 26
	DefaultMACDSignal      = 9
	DefaultBollingerPeriod = 20
	DefaultBollingerStdDev = 2.0
)

// IndicatorPoint is a dated indicator value aligned to the input series.
type IndicatorPoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// RSI computes the Relative Strength Index with Wilder smoothing. The
// result starts at the first date with a full lookback, so its length
// is len(series) - period.
func RSI(series []PricePoint, period int) ([]IndicatorPoint, error) {
	if err := ValidateSeries(series); err != nil {
		return nil, err
	}
	if period <= 0 {
		return nil, fmt.Errorf("rsi period must be positive, got %d", period)
	}
	if len(series) <= period {
		return nil, fmt.Errorf("%w: rsi needs %d points, got %d", ErrInsufficientData, period+1, len(series))
	}

	gains := make([]float64, len(series)-1)
	losses := make([]float64, len(series)-1)
	for i := 1; i < len(series); i++ {
		change := series[i].Close - series[i-1].Close
		if change > 0 {
			gains[i-1] = change
		} else {
			losses[i-1] = -change
		}
	}

	avgGain, avgLoss := 0.0, 0.0
	for i := 0; i < period; i++ {
		avgGain += gains[i]
		avgLoss += losses[i]
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	out := make([]IndicatorPoint, 0, len(series)-period)
	for i := period; i < len(series); i++ {
		if i > period {
			avgGain = (avgGain*float64(period-1) + gains[i-1]) / float64(period)
			avgLoss = (avgLoss*float64(period-1) + losses[i-1]) / float64(period)
		}
		rsi := 100.0
		if avgLoss != 0 {
			rs := avgGain / avgLoss
			rsi = 100 - 100/(1+rs)
		}
		out = append(out, IndicatorPoint{Date: series[i].Date, Value: rsi})
	}
	return out, nil
}

// MACDSeries holds the full MACD line, signal line and histogram,
// aligned to the input dates.
type MACDSeries struct {
	Line      []IndicatorPoint `json:"line"`
	Signal    []IndicatorPoint `json:"signal"`
	Histogram []IndicatorPoint `json:"histogram"`
}

// MACD computes the moving average convergence/divergence as
// fastEMA - slowEMA with an EMA signal line. EMAs are recursive and
// seeded with the first value, so all three series span every date.
func MACD(series []PricePoint, fast, slow, signal int) (*MACDSeries, error) {
	if err := ValidateSeries(series); err != nil {
		return nil, err
	}
	if fast <= 0 || slow <= 0 || signal <= 0 || fast >= slow {
		return nil, fmt.Errorf("macd periods must satisfy 0 < fast < slow and signal > 0, got %d/%d/%d", fast, slow, signal)
	}

	closes := Closes(series)
	fastEMA := ema(closes, fast)
	slowEMA := ema(closes, slow)

	line := make([]float64, len(closes))
	for i := range closes {
		line[i] = fastEMA[i] - slowEMA[i]
	}
	signalLine := ema(line, signal)

	out := &MACDSeries{
		Line:      make([]IndicatorPoint, len(series)),
		Signal:    make([]IndicatorPoint, len(series)),
		Histogram: make([]IndicatorPoint, len(series)),
	}
	for i, p := range series {
		out.Line[i] = IndicatorPoint{Date: p.Date, Value: line[i]}
		out.Signal[i] = IndicatorPoint{Date: p.Date, Value: signalLine[i]}
		out.Histogram[i] = IndicatorPoint{Date: p.Date, Value: line[i] - signalLine[i]}
	}
	return out, nil
}

// BollingerBands holds the rolling bands, starting at the first date
// with a full window (length len(series) - period + 1 each).
type BollingerBands struct {
	Upper  []IndicatorPoint `json:"upper"`
	Middle []IndicatorPoint `json:"middle"`
	Lower  []IndicatorPoint `json:"lower"`
}

// Bollinger computes rolling mean ± k sample standard deviations over
// the given window.
func Bollinger(series []PricePoint, period int, k float64) (*BollingerBands, error) {
	if err := ValidateSeries(series); err != nil {
		return nil, err
	}
	if period < 2 || k <= 0 {
		return nil, fmt.Errorf("bollinger needs period >= 2 and positive k, got %d/%v", period, k)
	}
	if len(series) < period {
		return nil, fmt.Errorf("%w: bollinger needs %d points, got %d", ErrInsufficientData, period, len(series))
	}

	closes := Closes(series)
	n := len(series) - period + 1
	bands := &BollingerBands{
		Upper:  make([]IndicatorPoint, n),
		Middle: make([]IndicatorPoint, n),
		Lower:  make([]IndicatorPoint, n),
	}
	for i := 0; i < n; i++ {
		window := closes[i : i+period]
		mean := stat.Mean(window, nil)
		sd := stat.StdDev(window, nil)
		date := series[i+period-1].Date
		bands.Middle[i] = IndicatorPoint{Date: date, Value: mean}
		bands.Upper[i] = IndicatorPoint{Date: date, Value: mean + k*sd}
		bands.Lower[i] = IndicatorPoint{Date: date, Value: mean - k*sd}
	}
	return bands, nil
}

// ema is a recursive exponential moving average seeded with the first
// value, multiplier 2/(period+1).
func ema(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	mult := 2.0 / (float64(period) + 1.0)
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = (values[i]-out[i-1])*mult + out[i-1]
	}
	return out
}
