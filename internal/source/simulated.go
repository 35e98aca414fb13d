package source

import (
	"context"
	"math"

	"github.com/shopspring/decimal"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/aistm7/riskstream/pkg/models"
)

// simulated holding universe: symbol, quantity, spot price, daily drift and
// volatility of the generated random walk.
var simulatedUniverse = []struct {
	symbol     string
	assetClass string
	quantity   float64
	spot       float64
	drift      float64
	vol        float64
}{
	{"AAPL", "STK", 100, 150, 0.0004, 0.018},
	{"MSFT", "STK", 50, 320, 0.0005, 0.016},
	{"SPY", "STK", 80, 430, 0.0003, 0.011},
	{"TLT", "STK", 120, 95, 0.0001, 0.008},
}

// Simulated is a deterministic PositionDataSource backed by a seeded random
// walk. It stands in for the broker integration in local runs and tests.
type Simulated struct {
	seed uint64
	days int
}

// NewSimulated creates a simulated source. The same seed always produces the
// same positions and price history.
func NewSimulated(seed uint64) *Simulated {
	return &Simulated{seed: seed, days: 252}
}

// GetPositions returns the fixed simulated holdings valued at their spots.
func (s *Simulated) GetPositions(_ context.Context, _ string) ([]models.Position, error) {
	positions := make([]models.Position, 0, len(simulatedUniverse))
	for _, u := range simulatedUniverse {
		qty := decimal.NewFromFloat(u.quantity)
		price := decimal.NewFromFloat(u.spot)
		positions = append(positions, models.Position{
			Symbol:       u.symbol,
			Quantity:     qty,
			CurrentPrice: price,
			MarketValue:  qty.Mul(price),
			AssetClass:   u.assetClass,
		})
	}
	return positions, nil
}

// GetHistoricalData generates a seeded geometric random walk ending at each
// symbol's spot price.
func (s *Simulated) GetHistoricalData(_ context.Context, accountID, _, _ string) (models.PriceSeries, error) {
	series := make(models.PriceSeries, len(simulatedUniverse))
	for i, u := range simulatedUniverse {
		normal := distuv.Normal{Mu: 0, Sigma: 1, Src: rand.NewSource(s.seed + uint64(i))}
		prices := make([]float64, s.days)
		// Walk backwards from the spot so the series ends at today's price.
		p := u.spot
		for d := s.days - 1; d >= 0; d-- {
			prices[d] = p
			p /= math.Exp(u.drift + u.vol*normal.Rand())
		}
		series[u.symbol] = prices
	}
	return series, nil
}
