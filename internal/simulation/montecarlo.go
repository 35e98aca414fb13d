// Package simulation generates forward-looking portfolio value distributions
// with a geometric Brownian motion Monte Carlo simulator.
package simulation

import (
	"context"
	"math"
	"sort"
	"time"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	apperrors "github.com/aistm7/riskstream/pkg/errors"
	"github.com/aistm7/riskstream/pkg/models"
)

// ctxCheckStride is how many paths are generated between context checks.
const ctxCheckStride = 64

// Config bounds the simulator.
type Config struct {
	DefaultSimulations int
	DefaultDays        int
	MaxPathCells       int64 // cap on simulations*days
	TradingDaysPerYear int
}

// DefaultConfig returns the standard simulator bounds.
func DefaultConfig() Config {
	return Config{
		DefaultSimulations: 1000,
		DefaultDays:        252,
		MaxPathCells:       10000 * 252,
		TradingDaysPerYear: 252,
	}
}

// Params describes one simulation request. Mean and StdDev are per-period
// (daily) portfolio return distribution parameters.
type Params struct {
	CurrentValue float64
	Mean         float64
	StdDev       float64
	Simulations  int
	Days         int
	IncludePaths bool
}

// Simulator runs seeded Monte Carlo simulations. The random source is
// injectable so runs are reproducible under test.
type Simulator struct {
	cfg  Config
	seed uint64
}

// New creates a simulator. A zero seed derives one from the wall clock; any
// other value makes every run with identical parameters bit-reproducible.
func New(cfg Config, seed uint64) *Simulator {
	if cfg.DefaultSimulations <= 0 {
		cfg.DefaultSimulations = 1000
	}
	if cfg.DefaultDays <= 0 {
		cfg.DefaultDays = 252
	}
	if cfg.MaxPathCells <= 0 {
		cfg.MaxPathCells = 10000 * 252
	}
	if cfg.TradingDaysPerYear <= 0 {
		cfg.TradingDaysPerYear = 252
	}
	return &Simulator{cfg: cfg, seed: seed}
}

// DefaultSimulations exposes the configured default path count.
func (s *Simulator) DefaultSimulations() int { return s.cfg.DefaultSimulations }

// DefaultDays exposes the configured default horizon.
func (s *Simulator) DefaultDays() int { return s.cfg.DefaultDays }

// Run simulates Params.Simulations forward paths of Params.Days steps each
// and aggregates the terminal values into an outcome distribution.
//
// Each path follows V[t] = V[t-1] * exp((mu - sigma^2/2)*dt + sigma*sqrt(dt)*Z)
// with Z ~ N(0,1) and dt = one trading day.
func (s *Simulator) Run(ctx context.Context, p Params) (*models.SimulationResult, error) {
	if p.Simulations <= 0 {
		return nil, apperrors.InvalidParameter("simulations must be positive, got %d", p.Simulations)
	}
	if p.Days <= 0 {
		return nil, apperrors.InvalidParameter("days must be positive, got %d", p.Days)
	}
	if cells := int64(p.Simulations) * int64(p.Days); cells > s.cfg.MaxPathCells {
		return nil, apperrors.InvalidParameter(
			"simulations*days = %d exceeds the maximum of %d", cells, s.cfg.MaxPathCells)
	}
	if math.IsNaN(p.CurrentValue) || math.IsInf(p.CurrentValue, 0) ||
		math.IsNaN(p.Mean) || math.IsInf(p.Mean, 0) ||
		math.IsNaN(p.StdDev) || math.IsInf(p.StdDev, 0) {
		return nil, apperrors.Calculation("simulation parameters contain a non-finite value")
	}
	if p.StdDev < 0 {
		return nil, apperrors.InvalidParameter("standard deviation must not be negative, got %v", p.StdDev)
	}

	result := &models.SimulationResult{}
	if p.CurrentValue == 0 {
		return result, nil
	}

	seed := s.seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	normal := distuv.Normal{Mu: 0, Sigma: 1, Src: rand.NewSource(seed)}

	dt := 1.0 / float64(s.cfg.TradingDaysPerYear)
	drift := (p.Mean - 0.5*p.StdDev*p.StdDev) * dt
	diffusion := p.StdDev * math.Sqrt(dt)

	terminal := make([]float64, p.Simulations)
	var paths [][]float64
	if p.IncludePaths {
		paths = make([][]float64, p.Simulations)
	}

	for i := 0; i < p.Simulations; i++ {
		if i%ctxCheckStride == 0 {
			if err := ctx.Err(); err != nil {
				return nil, apperrors.Timeout("simulation aborted after %d of %d paths", i, p.Simulations)
			}
		}
		value := p.CurrentValue
		var path []float64
		if p.IncludePaths {
			path = make([]float64, 0, p.Days+1)
			path = append(path, value)
		}
		for t := 0; t < p.Days; t++ {
			value *= math.Exp(drift + diffusion*normal.Rand())
			if p.IncludePaths {
				path = append(path, value)
			}
		}
		terminal[i] = value
		if p.IncludePaths {
			paths[i] = path
		}
	}

	result.ExpectedValue = stat.Mean(terminal, nil)
	result.WorstCase = floats.Min(terminal)
	result.BestCase = floats.Max(terminal)

	sorted := append([]float64(nil), terminal...)
	sort.Float64s(sorted)
	result.Percentiles = models.Percentiles{
		P5:  stat.Quantile(0.05, stat.Empirical, sorted, nil),
		P25: stat.Quantile(0.25, stat.Empirical, sorted, nil),
		P50: stat.Quantile(0.50, stat.Empirical, sorted, nil),
		P75: stat.Quantile(0.75, stat.Empirical, sorted, nil),
		P95: stat.Quantile(0.95, stat.Empirical, sorted, nil),
	}
	if v := p.CurrentValue - result.Percentiles.P5; v > 0 {
		result.ValueAtRisk = v
	}
	result.SimulationPaths = paths
	return result, nil
}
