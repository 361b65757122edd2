package quant

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

const (
	DefaultPaths      = 1000
	DefaultHorizon    = 252
	DefaultConfidence = 0.95

	// MinStablePaths is the path count below which percentile bands
	// become noisy; results from smaller runs are flagged, not refused.
	MinStablePaths = 100
)

var ErrInvalidSimulationConfig = errors.New("invalid simulation config")

// SimulationConfig controls a Monte Carlo run. Seed fixes the random
// source, so identical inputs reproduce identical paths.
type SimulationConfig struct {
	Paths      int     `json:"paths"`
	Horizon    int     `json:"horizon"`
	Confidence float64 `json:"confidence"`
	Seed       int64   `json:"seed"`
}

func DefaultSimulationConfig() SimulationConfig {
	return SimulationConfig{
		Paths:      DefaultPaths,
		Horizon:    DefaultHorizon,
		Confidence: DefaultConfidence,
		Seed:       time.Now().UnixNano(),
	}
}

func (c SimulationConfig) validate() error {
	if c.Paths <= 0 {
		return fmt.Errorf("%w: paths must be positive, got %d", ErrInvalidSimulationConfig, c.Paths)
	}
	if c.Horizon <= 0 {
		return fmt.Errorf("%w: horizon must be positive, got %d", ErrInvalidSimulationConfig, c.Horizon)
	}
	if c.Confidence <= 0 || c.Confidence >= 1 {
		return fmt.Errorf("%w: confidence must be in (0,1), got %v", ErrInvalidSimulationConfig, c.Confidence)
	}
	return nil
}

// GBMParams are the per-day geometric Brownian motion parameters
// estimated from a historical price series.
type GBMParams struct {
	Drift      float64 `json:"drift"`
	Volatility float64 `json:"volatility"`
	LastPrice  float64 `json:"lastPrice"`
}

// EstimateParameters derives drift (mean log return) and volatility
// (sample standard deviation of log returns) from the series. A
// two-point series produces a single return, whose volatility is 0 by
// convention rather than an error.
func EstimateParameters(series []PricePoint) (GBMParams, error) {
	returns, err := LogReturns(series)
	if err != nil {
		return GBMParams{}, err
	}
	params := GBMParams{
		Drift:     stat.Mean(returns, nil),
		LastPrice: series[len(series)-1].Close,
	}
	if len(returns) > 1 {
		params.Volatility = stat.StdDev(returns, nil)
	}
	return params, nil
}

// SimulationResult summarizes the cross-path distribution per step.
// MeanPath, Lower and Upper all have length Horizon.
type SimulationResult struct {
	Params     GBMParams `json:"params"`
	Paths      int       `json:"paths"`
	Horizon    int       `json:"horizon"`
	Confidence float64   `json:"confidence"`
	Seed       int64     `json:"seed"`
	MeanPath   []float64 `json:"meanPath"`
	Lower      []float64 `json:"lower"`
	Upper      []float64 `json:"upper"`
	Unstable   bool      `json:"unstable"`
}

// Simulate runs cfg.Paths independent GBM price paths over cfg.Horizon
// steps, starting from the last observed close:
//
//	P_t = P_{t-1} * exp((drift - 0.5*vol^2) + vol*Z_t)
//
// The -0.5*vol^2 term corrects the log-normal mean bias and must not
// be dropped. Bands are the (1±confidence)/2 percentiles per step.
func Simulate(series []PricePoint, cfg SimulationConfig) (*SimulationResult, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	params, err := EstimateParameters(series)
	if err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	step := params.Drift - 0.5*params.Volatility*params.Volatility

	paths := make([][]float64, cfg.Paths)
	for i := range paths {
		path := make([]float64, cfg.Horizon)
		price := params.LastPrice
		for t := 0; t < cfg.Horizon; t++ {
			price *= math.Exp(step + params.Volatility*rng.NormFloat64())
			path[t] = price
		}
		paths[i] = path
	}

	lowerQ := (1 - cfg.Confidence) / 2 * 100
	upperQ := (1 + cfg.Confidence) / 2 * 100

	result := &SimulationResult{
		Params:     params,
		Paths:      cfg.Paths,
		Horizon:    cfg.Horizon,
		Confidence: cfg.Confidence,
		Seed:       cfg.Seed,
		MeanPath:   make([]float64, cfg.Horizon),
		Lower:      make([]float64, cfg.Horizon),
		Upper:      make([]float64, cfg.Horizon),
		Unstable:   cfg.Paths < MinStablePaths,
	}

	column := make([]float64, cfg.Paths)
	for t := 0; t < cfg.Horizon; t++ {
		for i := range paths {
			column[i] = paths[i][t]
		}
		result.MeanPath[t] = stat.Mean(column, nil)
		sort.Float64s(column)
		result.Lower[t] = percentile(column, lowerQ)
		result.Upper[t] = percentile(column, upperQ)
	}
	return result, nil
}
