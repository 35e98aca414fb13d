// Package analytics converts raw price history into return series and
// computes the point-in-time risk picture of a portfolio. Everything here is
// a pure function of its inputs.
package analytics

import (
	"math"

	apperrors "github.com/aistm7/riskstream/pkg/errors"
	"github.com/aistm7/riskstream/pkg/models"
)

// CalculateReturns converts an ordered price series into periodic simple
// returns: r[t] = (p[t] - p[t-1]) / p[t-1]. A series shorter than two points
// yields an empty slice. Any non-positive, NaN or infinite price is rejected.
func CalculateReturns(prices []float64) ([]float64, error) {
	for i, p := range prices {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return nil, apperrors.InvalidInput("price at index %d is not a finite number", i)
		}
		if p <= 0 {
			return nil, apperrors.InvalidInput("price at index %d is %v, must be positive", i, p)
		}
	}
	if len(prices) < 2 {
		return []float64{}, nil
	}
	returns := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		returns = append(returns, (prices[i]-prices[i-1])/prices[i-1])
	}
	return returns, nil
}

// CalculateReturnSeries derives per-symbol return series from price history.
func CalculateReturnSeries(prices models.PriceSeries) (models.ReturnSeries, error) {
	series := make(models.ReturnSeries, len(prices))
	for symbol, p := range prices {
		r, err := CalculateReturns(p)
		if err != nil {
			return nil, apperrors.InvalidInput("symbol %s: %s", symbol, apperrors.MessageOf(err))
		}
		series[symbol] = r
	}
	return series, nil
}
