// Package risk is the façade over the analytics, simulation and stress
// engines. It fetches snapshots from the position data source, runs the
// CPU-bound computations on the bounded worker pool, and instruments every
// computation. Both the HTTP handlers and the streaming service go through
// it, so the two surfaces can never drift apart.
package risk

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/aistm7/riskstream/internal/analytics"
	"github.com/aistm7/riskstream/internal/simulation"
	"github.com/aistm7/riskstream/internal/source"
	"github.com/aistm7/riskstream/internal/stress"
	"github.com/aistm7/riskstream/internal/workerpool"
	apperrors "github.com/aistm7/riskstream/pkg/errors"
	"github.com/aistm7/riskstream/pkg/metrics"
	"github.com/aistm7/riskstream/pkg/models"
)

// Historical data request shape passed to the position data source.
const (
	historyPeriod  = "1 Y"
	historyBarSize = "1 day"
)

// DefaultBenchmarkSymbol is the market proxy used for beta/alpha when the
// account holds it.
const DefaultBenchmarkSymbol = "SPY"

// Config holds the façade parameters.
type Config struct {
	BenchmarkSymbol string
}

// Service computes risk analytics for accounts.
type Service struct {
	cfg       Config
	logger    *zap.Logger
	source    source.PositionDataSource
	engine    *analytics.Engine
	simulator *simulation.Simulator
	pool      *workerpool.Pool
}

// NewService creates the risk façade.
func NewService(cfg Config, logger *zap.Logger, src source.PositionDataSource, engine *analytics.Engine, sim *simulation.Simulator, pool *workerpool.Pool) *Service {
	if cfg.BenchmarkSymbol == "" {
		cfg.BenchmarkSymbol = DefaultBenchmarkSymbol
	}
	return &Service{
		cfg:       cfg,
		logger:    logger,
		source:    src,
		engine:    engine,
		simulator: sim,
		pool:      pool,
	}
}

// snapshot is one account's freshly fetched inputs.
type snapshot struct {
	positions []models.Position
	returns   models.ReturnSeries
	market    []float64
}

// fetch pulls positions and price history and derives return series.
func (s *Service) fetch(ctx context.Context, accountID string) (*snapshot, error) {
	positions, err := s.source.GetPositions(ctx, accountID)
	if err != nil {
		return nil, apperrors.UpstreamData(err, "failed to fetch positions for account %s", accountID)
	}
	prices, err := s.source.GetHistoricalData(ctx, accountID, historyPeriod, historyBarSize)
	if err != nil {
		return nil, apperrors.UpstreamData(err, "failed to fetch price history for account %s", accountID)
	}
	returns, err := analytics.CalculateReturnSeries(prices)
	if err != nil {
		return nil, err
	}
	return &snapshot{
		positions: positions,
		returns:   returns,
		market:    returns[s.cfg.BenchmarkSymbol],
	}, nil
}

// RiskMetrics computes the full point-in-time risk picture for an account.
func (s *Service) RiskMetrics(ctx context.Context, accountID string) (*models.RiskMetrics, error) {
	var result *models.RiskMetrics
	err := s.instrumented(ctx, "metrics", func(ctx context.Context) error {
		snap, err := s.fetch(ctx, accountID)
		if err != nil {
			return err
		}
		result, err = s.engine.Compute(snap.positions, snap.returns, snap.market)
		return err
	})
	return result, err
}

// ParametricVaR computes variance-covariance VaR over a horizon.
func (s *Service) ParametricVaR(ctx context.Context, accountID string, confidence float64, horizonDays int) (*models.VaRResult, error) {
	var result *models.VaRResult
	err := s.instrumented(ctx, "var", func(ctx context.Context) error {
		snap, err := s.fetch(ctx, accountID)
		if err != nil {
			return err
		}
		result, err = s.engine.ParametricVaR(snap.positions, snap.returns, confidence, horizonDays)
		return err
	})
	return result, err
}

// MonteCarlo simulates forward portfolio paths. Zero simulations/days select
// the configured defaults; the distribution parameters come from the
// account's value-weighted historical returns.
func (s *Service) MonteCarlo(ctx context.Context, accountID string, simulations, days int, includePaths bool) (*models.SimulationResult, error) {
	if simulations == 0 {
		simulations = s.simulator.DefaultSimulations()
	}
	if days == 0 {
		days = s.simulator.DefaultDays()
	}

	var result *models.SimulationResult
	err := s.instrumented(ctx, "montecarlo", func(ctx context.Context) error {
		snap, err := s.fetch(ctx, accountID)
		if err != nil {
			return err
		}
		portReturns, err := s.engine.PortfolioReturns(snap.positions, snap.returns)
		if err != nil {
			return err
		}

		params := simulation.Params{
			CurrentValue: models.PortfolioValue(snap.positions).InexactFloat64(),
			Simulations:  simulations,
			Days:         days,
			IncludePaths: includePaths,
		}
		if len(portReturns) > 1 {
			params.Mean = stat.Mean(portReturns, nil)
			params.StdDev = stat.StdDev(portReturns, nil)
		}
		result, err = s.simulator.Run(ctx, params)
		return err
	})
	return result, err
}

// StressTest evaluates the named shock scenarios against current positions.
func (s *Service) StressTest(ctx context.Context, accountID string, scenarios []models.StressScenario) (map[string]models.StressResult, error) {
	var result map[string]models.StressResult
	err := s.instrumented(ctx, "stress", func(ctx context.Context) error {
		positions, err := s.source.GetPositions(ctx, accountID)
		if err != nil {
			return apperrors.UpstreamData(err, "failed to fetch positions for account %s", accountID)
		}
		result, err = stress.Run(positions, scenarios)
		return err
	})
	return result, err
}

// CorrelationView is the correlation matrix with strength labels.
type CorrelationView struct {
	Matrix    map[string]map[string]float64                    `json:"correlation_matrix"`
	Strengths map[string]map[string]models.CorrelationStrength `json:"strengths"`
}

// Correlations computes the pairwise correlation view for an account.
func (s *Service) Correlations(ctx context.Context, accountID string) (*CorrelationView, error) {
	m, err := s.RiskMetrics(ctx, accountID)
	if err != nil {
		return nil, err
	}
	view := &CorrelationView{
		Matrix:    m.CorrelationMatrix,
		Strengths: make(map[string]map[string]models.CorrelationStrength, len(m.CorrelationMatrix)),
	}
	for sym, row := range m.CorrelationMatrix {
		view.Strengths[sym] = make(map[string]models.CorrelationStrength, len(row))
		for other, corr := range row {
			view.Strengths[sym][other] = analytics.ClassifyCorrelation(corr)
		}
	}
	return view, nil
}

// BetaView is the partial CAPM view of the portfolio.
type BetaView struct {
	Beta  float64 `json:"beta"`
	Alpha float64 `json:"alpha"`
}

// Beta computes the partial beta/alpha view for an account.
func (s *Service) Beta(ctx context.Context, accountID string) (*BetaView, error) {
	m, err := s.RiskMetrics(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return &BetaView{Beta: m.Beta, Alpha: m.Alpha}, nil
}

// instrumented runs fn on the bounded pool and records outcome and latency.
func (s *Service) instrumented(ctx context.Context, kind string, fn func(ctx context.Context) error) error {
	start := time.Now()
	err := s.pool.Execute(ctx, fn)
	metrics.ComputeLatency.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	metrics.RiskComputations.WithLabelValues(kind, outcome(err)).Inc()
	if err != nil {
		s.logger.Warn("risk computation failed",
			zap.String("kind", kind),
			zap.String("code", string(apperrors.CodeOf(err))),
			zap.Error(err))
	}
	return err
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	switch apperrors.CodeOf(err) {
	case apperrors.CodeBusy:
		return "busy"
	case apperrors.CodeTimeout:
		return "timeout"
	default:
		return "error"
	}
}
