// Package stress applies deterministic what-if price shocks to a position
// snapshot and reports the portfolio impact per scenario.
package stress

import (
	"fmt"

	"github.com/shopspring/decimal"

	apperrors "github.com/aistm7/riskstream/pkg/errors"
	"github.com/aistm7/riskstream/pkg/models"
)

var oneHundred = decimal.NewFromInt(100)

// Run evaluates every scenario against the current positions. For each
// scenario the shocked price is price*(1+pct/100), clamped at zero; symbols
// the scenario does not mention keep their current price, and shocks for
// symbols not held are ignored. Results are keyed by scenario name, or
// scenario_N (1-based) for anonymous scenarios.
func Run(positions []models.Position, scenarios []models.StressScenario) (map[string]models.StressResult, error) {
	if len(scenarios) == 0 {
		return nil, apperrors.InvalidParameter("at least one scenario is required")
	}

	currentValue := models.PortfolioValue(positions)

	results := make(map[string]models.StressResult, len(scenarios))
	for i, sc := range scenarios {
		key := sc.Name
		if key == "" {
			key = fmt.Sprintf("scenario_%d", i+1)
		}
		results[key] = evaluate(positions, currentValue, sc)
	}
	return results, nil
}

func evaluate(positions []models.Position, currentValue decimal.Decimal, sc models.StressScenario) models.StressResult {
	shockedValue := decimal.Zero
	for _, p := range positions {
		price := p.CurrentPrice
		if pct, ok := sc.Shocks[p.Symbol]; ok {
			factor := decimal.NewFromFloat(pct).Div(oneHundred).Add(decimal.NewFromInt(1))
			price = p.CurrentPrice.Mul(factor)
			if price.IsNegative() {
				// A shock past -100% means total loss, never a negative price.
				price = decimal.Zero
			}
		}
		shockedValue = shockedValue.Add(price.Mul(p.Quantity))
	}

	result := models.StressResult{PortfolioValue: shockedValue}
	if !currentValue.IsZero() {
		change := shockedValue.Sub(currentValue).Div(currentValue).Mul(oneHundred)
		result.ChangePercentage, _ = change.Float64()
	}
	return result
}
