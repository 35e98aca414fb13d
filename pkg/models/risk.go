// Package models holds the shared data model for the risk analytics and
// streaming services. Every type here is a value snapshot: results are pure
// functions of the inputs that produced them and carry no identity.
package models

import (
	"github.com/shopspring/decimal"
)

// Position is an immutable snapshot of a single holding, supplied by the
// external position data source.
type Position struct {
	Symbol       string          `json:"symbol"`
	Quantity     decimal.Decimal `json:"quantity"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	MarketValue  decimal.Decimal `json:"market_value"`
	AssetClass   string          `json:"asset_class,omitempty"`
}

// PriceSeries maps a symbol to its chronologically ordered closing prices.
type PriceSeries map[string][]float64

// ReturnSeries maps a symbol to its periodic simple returns. Derived from a
// PriceSeries, one element shorter per symbol, and never persisted.
type ReturnSeries map[string][]float64

// RiskLevel classifies the overall portfolio risk picture.
type RiskLevel string

const (
	RiskLevelLow      RiskLevel = "low"
	RiskLevelModerate RiskLevel = "moderate"
	RiskLevelHigh     RiskLevel = "high"
)

// CorrelationStrength labels the magnitude of a pairwise correlation.
type CorrelationStrength string

const (
	CorrelationStrong   CorrelationStrength = "strong"
	CorrelationModerate CorrelationStrength = "moderate"
	CorrelationWeak     CorrelationStrength = "weak"
)

// RiskMetrics is the point-in-time risk picture for a portfolio snapshot.
// It is a pure function of the snapshot that produced it: identical inputs
// yield identical values, so it carries no timestamp or identity.
type RiskMetrics struct {
	ValueAtRisk       float64                       `json:"value_at_risk"`
	SharpeRatio       float64                       `json:"sharpe_ratio"`
	SortinoRatio      float64                       `json:"sortino_ratio"`
	Volatility        float64                       `json:"volatility"`
	Beta              float64                       `json:"beta"`
	Alpha             float64                       `json:"alpha"`
	MaxDrawdown       float64                       `json:"max_drawdown"`
	Skewness          float64                       `json:"skewness"`
	Kurtosis          float64                       `json:"kurtosis"`
	CorrelationMatrix map[string]map[string]float64 `json:"correlation_matrix"`
	RiskLevel         RiskLevel                     `json:"risk_level"`
	PortfolioValue    float64                       `json:"portfolio_value"`
}

// VaRResult is a parametric value-at-risk estimate over a horizon.
type VaRResult struct {
	Amount          float64 `json:"var_amount"`
	Percentage      float64 `json:"var_percentage"`
	ConfidenceLevel float64 `json:"confidence_level"`
	HorizonDays     int     `json:"time_horizon"`
}

// SimulationResult is the outcome distribution of a Monte Carlo run.
type SimulationResult struct {
	ExpectedValue   float64     `json:"expected_value"`
	WorstCase       float64     `json:"worst_case"`
	BestCase        float64     `json:"best_case"`
	ValueAtRisk     float64     `json:"var_amount"`
	Percentiles     Percentiles `json:"percentiles"`
	SimulationPaths [][]float64 `json:"simulation_paths,omitempty"`
}

// Percentiles holds the terminal-value distribution cut points. They are
// non-decreasing by rank for any valid simulation.
type Percentiles struct {
	P5  float64 `json:"5th"`
	P25 float64 `json:"25th"`
	P50 float64 `json:"50th"`
	P75 float64 `json:"75th"`
	P95 float64 `json:"95th"`
}

// StressScenario names a set of percentage shocks keyed by symbol. A shock of
// -30 means the price drops 30%. Symbols not listed keep their current price.
type StressScenario struct {
	Name   string             `json:"name,omitempty"`
	Shocks map[string]float64 `json:"shocks"`
}

// StressResult is the portfolio impact of one scenario.
type StressResult struct {
	PortfolioValue   decimal.Decimal `json:"portfolio_value"`
	ChangePercentage float64         `json:"change_percentage"`
}

// PortfolioValue sums the market values of the given positions.
func PortfolioValue(positions []Position) decimal.Decimal {
	total := decimal.Zero
	for _, p := range positions {
		total = total.Add(p.MarketValue)
	}
	return total
}
