// Package chart derives the plotted series for an asset from its price
// observations, executed transactions and an optional forecast.
package chart

import (
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/kjannette/trahn-papertrade/internal/models"
)

const (
	BuyColor     = "#28a745"
	SellColor    = "#dc3545"
	MarkerRadius = 6

	ForecastLabel = "Next forecast"
)

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Marker struct {
	Point
	Kind   models.TransactionKind `json:"kind"`
	Color  string                 `json:"color"`
	Radius int                    `json:"radius"`
}

type Series struct {
	Price    []Point  `json:"price"`
	Forecast []Point  `json:"forecast"`
	Trend    []Point  `json:"trend"`
	Markers  []Marker `json:"markers"`
	Labels   []string `json:"labels"`
}

type Input struct {
	Observations []models.PriceObservation
	Transactions []models.Transaction
	// Forecast is nil when no forecast is available.
	Forecast *decimal.Decimal
	Interval Interval
}

// Windowed returns the trailing observations covered by the interval.
// The result is a copy in the original order.
func Windowed(observations []models.PriceObservation, interval Interval) []models.PriceObservation {
	n := interval.Lookback()
	if n <= 0 || n > len(observations) {
		n = len(observations)
	}
	out := make([]models.PriceObservation, n)
	copy(out, observations[len(observations)-n:])
	return out
}

// Build derives the series. It has no side effects and never fails: missing
// data yields empty series.
func Build(in Input) Series {
	s := Series{
		Price:    []Point{},
		Forecast: []Point{},
		Trend:    []Point{},
		Markers:  []Marker{},
		Labels:   []string{},
	}
	if len(in.Observations) == 0 {
		return s
	}

	window := Windowed(in.Observations, in.Interval)
	for i, o := range window {
		s.Price = append(s.Price, Point{X: float64(i), Y: o.Price.InexactFloat64()})
		s.Labels = append(s.Labels, "Point "+strconv.Itoa(i+1))
	}

	last := s.Price[len(s.Price)-1]
	if in.Forecast != nil {
		s.Forecast = append(s.Forecast, last, Point{X: float64(len(window)), Y: in.Forecast.InexactFloat64()})
		s.Labels = append(s.Labels, ForecastLabel)
	}

	if len(s.Price) >= 2 {
		s.Trend = append(s.Trend, s.Price[0], last)
	}

	// Markers index the full transaction list, not the window.
	for i, tx := range in.Transactions {
		s.Markers = append(s.Markers, Marker{
			Point:  Point{X: float64(i), Y: tx.UnitPrice.InexactFloat64()},
			Kind:   tx.Kind,
			Color:  markerColor(tx.Kind),
			Radius: MarkerRadius,
		})
	}

	return s
}

func markerColor(k models.TransactionKind) string {
	if k == models.Sell {
		return SellColor
	}
	return BuyColor
}

// ObservationsFromPrices maps a price list to ordinal observations.
func ObservationsFromPrices(prices []decimal.Decimal) []models.PriceObservation {
	out := make([]models.PriceObservation, len(prices))
	for i, p := range prices {
		out[i] = models.PriceObservation{Index: i, Price: p}
	}
	return out
}
