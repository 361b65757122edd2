package quant

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(n int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func seriesOf(closes ...float64) []PricePoint {
	out := make([]PricePoint, len(closes))
	for i, c := range closes {
		out[i] = PricePoint{Date: day(i), Close: c}
	}
	return out
}

func TestValidateSeries(t *testing.T) {
	tests := []struct {
		name    string
		series  []PricePoint
		wantErr error
	}{
		{"empty", nil, ErrInsufficientData},
		{"single point", seriesOf(100), ErrInsufficientData},
		{"valid", seriesOf(100, 105, 103), nil},
		{"negative close", seriesOf(100, -5, 103), ErrNonPositivePrice},
		{"zero close", seriesOf(100, 0), ErrNonPositivePrice},
		{"nan close", seriesOf(100, math.NaN()), ErrNonPositivePrice},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSeries(tt.series)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestValidateSeries_NonChronological(t *testing.T) {
	series := []PricePoint{
		{Date: day(1), Close: 100},
		{Date: day(0), Close: 101},
	}
	assert.ErrorIs(t, ValidateSeries(series), ErrNonChronological)

	duplicate := []PricePoint{
		{Date: day(0), Close: 100},
		{Date: day(0), Close: 101},
	}
	assert.ErrorIs(t, ValidateSeries(duplicate), ErrNonChronological)
}

func TestLogReturns(t *testing.T) {
	returns, err := LogReturns(seriesOf(100, 105, 105))
	require.NoError(t, err)
	require.Len(t, returns, 2)
	assert.InDelta(t, math.Log(1.05), returns[0], 1e-12)
	assert.InDelta(t, 0, returns[1], 1e-12)
}

func TestPercentile(t *testing.T) {
	sorted := []float64{1, 2, 3, 4, 5}
	assert.InDelta(t, 1, percentile(sorted, 0), 1e-12)
	assert.InDelta(t, 3, percentile(sorted, 50), 1e-12)
	assert.InDelta(t, 5, percentile(sorted, 100), 1e-12)
	// Linear interpolation between ranks, numpy convention.
	assert.InDelta(t, 1.2, percentile(sorted, 5), 1e-12)
	assert.InDelta(t, 4.8, percentile(sorted, 95), 1e-12)
	assert.InDelta(t, 7, percentile([]float64{7}, 50), 1e-12)
}
