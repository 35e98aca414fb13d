package simulation

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/aistm7/riskstream/pkg/errors"
)

func TestRunValidation(t *testing.T) {
	sim := New(DefaultConfig(), 1)
	base := Params{CurrentValue: 100000, Mean: 0.0004, StdDev: 0.01, Simulations: 100, Days: 20}

	tests := []struct {
		name   string
		mutate func(*Params)
		code   apperrors.Code
	}{
		{"ZeroSimulations", func(p *Params) { p.Simulations = 0 }, apperrors.CodeInvalidParameter},
		{"NegativeDays", func(p *Params) { p.Days = -1 }, apperrors.CodeInvalidParameter},
		{"NegativeStdDev", func(p *Params) { p.StdDev = -0.1 }, apperrors.CodeInvalidParameter},
		{"PathCellCap", func(p *Params) { p.Simulations = 100000; p.Days = 252 }, apperrors.CodeInvalidParameter},
		{"NaNMean", func(p *Params) { p.Mean = math.NaN() }, apperrors.CodeCalculation},
		{"InfValue", func(p *Params) { p.CurrentValue = math.Inf(1) }, apperrors.CodeCalculation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := base
			tt.mutate(&p)
			_, err := sim.Run(context.Background(), p)
			require.Error(t, err)
			assert.Equal(t, tt.code, apperrors.CodeOf(err))
		})
	}
}

func TestRunEmptyPortfolio(t *testing.T) {
	sim := New(DefaultConfig(), 1)

	result, err := sim.Run(context.Background(), Params{
		CurrentValue: 0, Mean: 0.001, StdDev: 0.02, Simulations: 1000, Days: 252,
	})
	require.NoError(t, err)

	assert.Zero(t, result.ExpectedValue)
	assert.Zero(t, result.ValueAtRisk)
	assert.Zero(t, result.Percentiles.P5)
	assert.Zero(t, result.Percentiles.P95)
	assert.Nil(t, result.SimulationPaths)
}

func TestRunDistributionShape(t *testing.T) {
	sim := New(DefaultConfig(), 7)

	result, err := sim.Run(context.Background(), Params{
		CurrentValue: 100000, Mean: 0.0004, StdDev: 0.012, Simulations: 2000, Days: 60,
	})
	require.NoError(t, err)

	pct := result.Percentiles
	assert.LessOrEqual(t, pct.P5, pct.P25)
	assert.LessOrEqual(t, pct.P25, pct.P50)
	assert.LessOrEqual(t, pct.P50, pct.P75)
	assert.LessOrEqual(t, pct.P75, pct.P95)

	assert.LessOrEqual(t, result.WorstCase, pct.P5)
	assert.GreaterOrEqual(t, result.BestCase, pct.P95)
	assert.Greater(t, result.WorstCase, 0.0, "geometric paths never cross zero")
	assert.GreaterOrEqual(t, result.ValueAtRisk, 0.0)
}

func TestRunSeedReproducibility(t *testing.T) {
	params := Params{CurrentValue: 50000, Mean: 0.0002, StdDev: 0.015, Simulations: 500, Days: 30}

	a, err := New(DefaultConfig(), 99).Run(context.Background(), params)
	require.NoError(t, err)
	b, err := New(DefaultConfig(), 99).Run(context.Background(), params)
	require.NoError(t, err)
	c, err := New(DefaultConfig(), 100).Run(context.Background(), params)
	require.NoError(t, err)

	assert.Equal(t, a, b, "same seed and parameters must reproduce exactly")
	assert.NotEqual(t, a.ExpectedValue, c.ExpectedValue, "different seed should move the estimate")
}

func TestRunIncludePaths(t *testing.T) {
	sim := New(DefaultConfig(), 3)

	result, err := sim.Run(context.Background(), Params{
		CurrentValue: 10000, Mean: 0, StdDev: 0.01, Simulations: 25, Days: 10, IncludePaths: true,
	})
	require.NoError(t, err)

	require.Len(t, result.SimulationPaths, 25)
	for _, path := range result.SimulationPaths {
		require.Len(t, path, 11, "path holds the starting value plus one point per day")
		assert.Equal(t, 10000.0, path[0])
	}
}

func TestRunZeroVolatilityIsDeterministicGrowth(t *testing.T) {
	sim := New(DefaultConfig(), 5)

	result, err := sim.Run(context.Background(), Params{
		CurrentValue: 10000, Mean: 0, StdDev: 0, Simulations: 50, Days: 252,
	})
	require.NoError(t, err)

	assert.InDelta(t, 10000.0, result.ExpectedValue, 1e-6)
	assert.InDelta(t, result.WorstCase, result.BestCase, 1e-9)
	assert.Zero(t, result.ValueAtRisk)
}

func TestRunCancelledContext(t *testing.T) {
	sim := New(DefaultConfig(), 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := sim.Run(ctx, Params{
		CurrentValue: 100000, Mean: 0.0004, StdDev: 0.01, Simulations: 1000, Days: 252,
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeTimeout, apperrors.CodeOf(err))
}
