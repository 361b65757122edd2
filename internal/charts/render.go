package charts

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/vicanso/go-charts/v2"

	"stockpulse-api/internal/quant"
)

// HistoryPNG renders the closing-price series as a PNG line chart.
func HistoryPNG(symbol string, series []quant.PricePoint) ([]byte, error) {
	if len(series) == 0 {
		return nil, errors.New("empty series")
	}

	xAxis := make([]string, len(series))
	closes := make([]float64, len(series))
	for i, p := range series {
		xAxis[i] = p.Date.Format("01-02")
		closes[i] = p.Close
	}

	painter, err := charts.LineRender([][]float64{closes},
		charts.TitleTextOptionFunc(strings.ToUpper(symbol)+" • daily close"),
		charts.XAxisOptionFunc(charts.XAxisOption{Data: xAxis, BoundaryGap: charts.FalseFlag(), SplitNumber: 10}),
		charts.ThemeOptionFunc(charts.ThemeLight),
		charts.WidthOptionFunc(1000),
		charts.HeightOptionFunc(500),
	)
	if err != nil {
		return nil, err
	}
	return painter.Bytes()
}

// SimulationPNG renders the simulation fan: lower band, mean path and
// upper band over the forecast horizon.
func SimulationPNG(symbol string, result *quant.SimulationResult) ([]byte, error) {
	if result == nil || len(result.MeanPath) == 0 {
		return nil, errors.New("empty simulation result")
	}

	xAxis := make([]string, result.Horizon)
	for t := 0; t < result.Horizon; t++ {
		xAxis[t] = strconv.Itoa(t + 1)
	}

	lowerQ := (1 - result.Confidence) / 2 * 100
	upperQ := (1 + result.Confidence) / 2 * 100
	names := []string{
		fmt.Sprintf("p%.1f", lowerQ),
		"mean",
		fmt.Sprintf("p%.1f", upperQ),
	}

	painter, err := charts.LineRender(
		[][]float64{result.Lower, result.MeanPath, result.Upper},
		charts.TitleTextOptionFunc(fmt.Sprintf("%s • %d-day Monte Carlo (%d paths)",
			strings.ToUpper(symbol), result.Horizon, result.Paths)),
		charts.XAxisOptionFunc(charts.XAxisOption{Data: xAxis, BoundaryGap: charts.FalseFlag(), SplitNumber: 10}),
		charts.LegendOptionFunc(charts.LegendOption{Data: names, Top: charts.PositionTop}),
		charts.ThemeOptionFunc(charts.ThemeLight),
		charts.WidthOptionFunc(1000),
		charts.HeightOptionFunc(500),
	)
	if err != nil {
		return nil, err
	}
	return painter.Bytes()
}
