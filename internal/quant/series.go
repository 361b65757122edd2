package quant

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	ErrInsufficientData = errors.New("price series needs at least 2 points")
	ErrNonChronological = errors.New("price series must be chronologically ascending without duplicate dates")
	ErrNonPositivePrice = errors.New("price series contains a non-positive or non-finite close")
)

// PricePoint is a single dated closing price.
type PricePoint struct {
	Date  time.Time `json:"date"`
	Close float64   `json:"close"`
}

// ValidateSeries checks the invariants every computation in this
// package relies on: at least two points, strictly ascending dates,
// finite positive closes.
func ValidateSeries(series []PricePoint) error {
	if len(series) < 2 {
		return fmt.Errorf("%w: got %d", ErrInsufficientData, len(series))
	}
	for i, p := range series {
		if p.Close <= 0 || math.IsNaN(p.Close) || math.IsInf(p.Close, 0) {
			return fmt.Errorf("%w: %v at %s", ErrNonPositivePrice, p.Close, p.Date.Format("2006-01-02"))
		}
		if i > 0 && !series[i-1].Date.Before(p.Date) {
			return fmt.Errorf("%w: %s followed by %s",
				ErrNonChronological,
				series[i-1].Date.Format("2006-01-02"),
				p.Date.Format("2006-01-02"))
		}
	}
	return nil
}

// LogReturns computes per-period log returns r_t = ln(P_t / P_{t-1}).
// The result has length len(series)-1.
func LogReturns(series []PricePoint) ([]float64, error) {
	if err := ValidateSeries(series); err != nil {
		return nil, err
	}
	returns := make([]float64, len(series)-1)
	for i := 1; i < len(series); i++ {
		returns[i-1] = math.Log(series[i].Close / series[i-1].Close)
	}
	return returns, nil
}

// Closes extracts the closing prices in series order.
func Closes(series []PricePoint) []float64 {
	closes := make([]float64, len(series))
	for i, p := range series {
		closes[i] = p.Close
	}
	return closes
}

// percentile returns the p-th percentile (0..100) of an ascending
// sorted slice using linear interpolation between closest ranks, the
// same convention numpy uses. VaR and the simulation bands both go
// through here.
func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if n == 1 {
		return sorted[0]
	}
	rank := p / 100 * float64(n-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}
