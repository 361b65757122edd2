package alphavantage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"time"

	"stockpulse-api/internal/models"
	"stockpulse-api/internal/quant"
)

const baseURL = "https://www.alphavantage.co/query"

type Client struct {
	apiKey     string
	httpClient *http.Client
}

func NewClient(apiKey string) *Client {
	return &Client{
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *Client) get(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("alpha vantage returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}

type globalQuoteResponse struct {
	GlobalQuote struct {
		Symbol           string `json:"01. symbol"`
		Price            string `json:"05. price"`
		Volume           string `json:"06. volume"`
		LatestTradingDay string `json:"07. latest trading day"`
		Change           string `json:"09. change"`
		ChangePercent    string `json:"10. change percent"`
	} `json:"Global Quote"`
}

func (c *Client) GetQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	url := fmt.Sprintf("%s?function=GLOBAL_QUOTE&symbol=%s&apikey=%s", baseURL, symbol, c.apiKey)

	var quote globalQuoteResponse
	if err := c.get(ctx, url, &quote); err != nil {
		return nil, fmt.Errorf("quote %s: %w", symbol, err)
	}
	if quote.GlobalQuote.Price == "" {
		return nil, fmt.Errorf("no quote returned for %s", symbol)
	}

	price, err := strconv.ParseFloat(quote.GlobalQuote.Price, 64)
	if err != nil {
		return nil, fmt.Errorf("parse price for %s: %w", symbol, err)
	}
	change, _ := strconv.ParseFloat(quote.GlobalQuote.Change, 64)
	volume, _ := strconv.ParseInt(quote.GlobalQuote.Volume, 10, 64)

	changePercent := 0.0
	if cp := quote.GlobalQuote.ChangePercent; len(cp) > 1 {
		changePercent, _ = strconv.ParseFloat(cp[:len(cp)-1], 64) // trailing '%'
	}

	return &models.Quote{
		Symbol:        symbol,
		Price:         price,
		Change:        change,
		ChangePercent: changePercent,
		Volume:        volume,
		LastUpdated:   time.Now(),
		Source:        "alphavantage",
	}, nil
}

type dailySeriesResponse struct {
	Series map[string]struct {
		Close string `json:"4. close"`
	} `json:"Time Series (Daily)"`
}

// GetDailyHistory returns up to days of dated daily closes in
// chronological order.
func (c *Client) GetDailyHistory(ctx context.Context, symbol string, days int) ([]quant.PricePoint, error) {
	size := "compact"
	if days > 100 {
		size = "full"
	}
	url := fmt.Sprintf("%s?function=TIME_SERIES_DAILY&symbol=%s&outputsize=%s&apikey=%s",
		baseURL, symbol, size, c.apiKey)

	var daily dailySeriesResponse
	if err := c.get(ctx, url, &daily); err != nil {
		return nil, fmt.Errorf("history %s: %w", symbol, err)
	}
	if len(daily.Series) == 0 {
		return nil, fmt.Errorf("no historical data for %s", symbol)
	}

	series := make([]quant.PricePoint, 0, len(daily.Series))
	for date, bar := range daily.Series {
		d, err := time.Parse("2006-01-02", date)
		if err != nil {
			continue
		}
		close, err := strconv.ParseFloat(bar.Close, 64)
		if err != nil || close <= 0 {
			continue
		}
		series = append(series, quant.PricePoint{Date: d, Close: close})
	}
	sort.Slice(series, func(i, j int) bool { return series[i].Date.Before(series[j].Date) })

	if len(series) > days {
		series = series[len(series)-days:]
	}
	if len(series) == 0 {
		return nil, fmt.Errorf("no valid bars for %s", symbol)
	}
	return series, nil
}
