package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"stockpulse-api/internal/models"
	"stockpulse-api/internal/quant"
)

const baseURL = "https://query1.finance.yahoo.com/v8/finance/chart"

type Client struct {
	httpClient *http.Client
}

func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				RegularMarketPrice  float64 `json:"regularMarketPrice"`
				PreviousClose       float64 `json:"previousClose"`
				RegularMarketVolume int64   `json:"regularMarketVolume"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
	} `json:"chart"`
}

func (c *Client) get(ctx context.Context, url string) (*chartResponse, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "curl/8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("yahoo finance returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var chart chartResponse
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, err
	}
	if len(chart.Chart.Result) == 0 {
		return nil, fmt.Errorf("no data returned")
	}
	return &chart, nil
}

func (c *Client) GetQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	chart, err := c.get(ctx, fmt.Sprintf("%s/%s?interval=1d&range=1d", baseURL, symbol))
	if err != nil {
		return nil, fmt.Errorf("quote %s: %w", symbol, err)
	}

	meta := chart.Chart.Result[0].Meta
	change := meta.RegularMarketPrice - meta.PreviousClose
	changePercent := 0.0
	if meta.PreviousClose > 0 {
		changePercent = (change / meta.PreviousClose) * 100
	}

	return &models.Quote{
		Symbol:        symbol,
		Price:         meta.RegularMarketPrice,
		Change:        change,
		ChangePercent: changePercent,
		Volume:        meta.RegularMarketVolume,
		LastUpdated:   time.Now(),
		Source:        "yahoo",
	}, nil
}

// GetDailyHistory returns up to days of dated daily closes in
// chronological order, skipping null bars.
func (c *Client) GetDailyHistory(ctx context.Context, symbol string, days int) ([]quant.PricePoint, error) {
	chart, err := c.get(ctx, fmt.Sprintf("%s/%s?interval=1d&range=%dd", baseURL, symbol, days))
	if err != nil {
		return nil, fmt.Errorf("history %s: %w", symbol, err)
	}

	result := chart.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, fmt.Errorf("no historical data for %s", symbol)
	}

	timestamps := result.Timestamp
	closes := result.Indicators.Quote[0].Close

	var series []quant.PricePoint
	for i := range timestamps {
		if i >= len(closes) || closes[i] <= 0 {
			continue
		}
		series = append(series, quant.PricePoint{
			Date:  time.Unix(timestamps[i], 0).UTC().Truncate(24 * time.Hour),
			Close: closes[i],
		})
	}
	if len(series) == 0 {
		return nil, fmt.Errorf("no valid bars for %s", symbol)
	}
	return series, nil
}
