package analytics

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	apperrors "github.com/aistm7/riskstream/pkg/errors"
	"github.com/aistm7/riskstream/pkg/models"
)

// Default policy constants. Each is a deliberate fallback, not a magic
// number: degenerate inputs collapse to these values instead of NaN.
const (
	// DefaultBeta is reported when the market series is missing or has zero
	// variance.
	DefaultBeta = 1.0

	// DefaultSharpe is reported when portfolio volatility is zero.
	DefaultSharpe = 0.0

	// DefaultSortino is reported when there are no downside returns.
	DefaultSortino = 0.0
)

// Correlation strength cutoffs (absolute Pearson correlation).
const (
	CorrelationStrongCutoff   = 0.7
	CorrelationModerateCutoff = 0.4
)

// Risk level cutoffs. Each factor scores 0 (low), 1 (moderate) or 2 (high);
// the summed score classifies the portfolio: >= RiskScoreHigh is high,
// >= RiskScoreModerate is moderate, anything below is low.
const (
	VaRModerateCutoff = 0.02 // daily VaR as a share of portfolio value
	VaRHighCutoff     = 0.05

	VolatilityModerateCutoff = 0.15 // annualized
	VolatilityHighCutoff     = 0.30

	BetaModerateCutoff = 1.2
	BetaHighCutoff     = 1.5

	RiskScoreModerate = 2
	RiskScoreHigh     = 4
)

// Config holds the engine parameters.
type Config struct {
	ConfidenceLevel    float64
	RiskFreeRate       float64 // annual
	TradingDaysPerYear int
}

// DefaultConfig returns the standard engine parameters.
func DefaultConfig() Config {
	return Config{
		ConfidenceLevel:    0.95,
		RiskFreeRate:       0.02,
		TradingDaysPerYear: 252,
	}
}

// Engine computes risk metrics from position snapshots and return series.
// It holds configuration only; Compute is a pure function of its inputs.
type Engine struct {
	cfg Config
}

// NewEngine creates a risk metrics engine.
func NewEngine(cfg Config) *Engine {
	if cfg.ConfidenceLevel <= 0 || cfg.ConfidenceLevel >= 1 {
		cfg.ConfidenceLevel = 0.95
	}
	if cfg.TradingDaysPerYear <= 0 {
		cfg.TradingDaysPerYear = 252
	}
	return &Engine{cfg: cfg}
}

// Compute derives the full risk picture from a position snapshot, per-symbol
// return series, and an optional market benchmark return series.
func (e *Engine) Compute(positions []models.Position, returns models.ReturnSeries, market []float64) (*models.RiskMetrics, error) {
	value := models.PortfolioValue(positions).InexactFloat64()

	metrics := &models.RiskMetrics{
		Beta:              DefaultBeta,
		CorrelationMatrix: map[string]map[string]float64{},
		RiskLevel:         models.RiskLevelLow,
		PortfolioValue:    value,
	}
	if len(positions) == 0 {
		return metrics, nil
	}

	portReturns, err := e.PortfolioReturns(positions, returns)
	if err != nil {
		return nil, err
	}

	metrics.CorrelationMatrix = correlationMatrix(positions, returns)

	if len(portReturns) > 0 {
		annualize := math.Sqrt(float64(e.cfg.TradingDaysPerYear))
		dailyRiskFree := e.cfg.RiskFreeRate / float64(e.cfg.TradingDaysPerYear)

		mean := stat.Mean(portReturns, nil)
		sd := sampleStdDev(portReturns)

		metrics.ValueAtRisk = e.historicalVaR(portReturns, value)
		metrics.Volatility = sd * annualize
		metrics.SharpeRatio = ratioOrDefault(mean-dailyRiskFree, sd, DefaultSharpe) * annualize
		metrics.SortinoRatio = ratioOrDefault(mean-dailyRiskFree, downsideDeviation(portReturns), DefaultSortino) * annualize
		metrics.MaxDrawdown = maxDrawdown(portReturns)
		metrics.Skewness = zeroIfNaN(stat.Skew(portReturns, nil))
		metrics.Kurtosis = zeroIfNaN(stat.ExKurtosis(portReturns, nil))

		beta, marketMean := betaAgainst(portReturns, market)
		metrics.Beta = beta
		metrics.Alpha = mean - beta*marketMean
	}

	metrics.RiskLevel = classifyRiskLevel(metrics.ValueAtRisk, value, metrics.Volatility, metrics.Beta)

	if err := validateFinite(metrics); err != nil {
		return nil, err
	}
	return metrics, nil
}

// PortfolioReturns collapses per-symbol return series into a single
// value-weighted portfolio return series. Series of different lengths are
// aligned on their most recent observations.
func (e *Engine) PortfolioReturns(positions []models.Position, returns models.ReturnSeries) ([]float64, error) {
	total := models.PortfolioValue(positions)
	if total.IsZero() {
		return []float64{}, nil
	}

	type weighted struct {
		series []float64
		weight float64
	}
	var held []weighted
	minLen := math.MaxInt
	for _, p := range positions {
		r, ok := returns[p.Symbol]
		if !ok || len(r) == 0 {
			continue
		}
		for _, v := range r {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, apperrors.Calculation("return series for %s contains a non-finite value", p.Symbol)
			}
		}
		w, _ := p.MarketValue.Div(total).Float64()
		held = append(held, weighted{series: r, weight: w})
		if len(r) < minLen {
			minLen = len(r)
		}
	}
	if len(held) == 0 {
		return []float64{}, nil
	}

	out := make([]float64, minLen)
	for _, h := range held {
		tail := h.series[len(h.series)-minLen:]
		for i, v := range tail {
			out[i] += h.weight * v
		}
	}
	return out, nil
}

// ParametricVaR estimates value at risk with the variance-covariance method,
// scaled to the given horizon by the square root of time.
func (e *Engine) ParametricVaR(positions []models.Position, returns models.ReturnSeries, confidence float64, horizonDays int) (*models.VaRResult, error) {
	if confidence <= 0 || confidence >= 1 {
		return nil, apperrors.InvalidParameter("confidence level must be in (0, 1), got %v", confidence)
	}
	if horizonDays <= 0 {
		return nil, apperrors.InvalidParameter("time horizon must be positive, got %d", horizonDays)
	}

	value := models.PortfolioValue(positions).InexactFloat64()
	result := &models.VaRResult{ConfidenceLevel: confidence, HorizonDays: horizonDays}
	if value == 0 {
		return result, nil
	}

	portReturns, err := e.PortfolioReturns(positions, returns)
	if err != nil {
		return nil, err
	}
	if len(portReturns) == 0 {
		return result, nil
	}

	mean := stat.Mean(portReturns, nil)
	sd := sampleStdDev(portReturns)
	z := distuv.UnitNormal.Quantile(1 - confidence)

	daily := -(mean + z*sd) * value
	amount := daily * math.Sqrt(float64(horizonDays))
	if amount < 0 || math.IsNaN(amount) {
		amount = 0
	}
	result.Amount = amount
	result.Percentage = amount / value * 100
	return result, nil
}

// ClassifyCorrelation labels the strength of a pairwise correlation.
func ClassifyCorrelation(corr float64) models.CorrelationStrength {
	switch abs := math.Abs(corr); {
	case abs >= CorrelationStrongCutoff:
		return models.CorrelationStrong
	case abs >= CorrelationModerateCutoff:
		return models.CorrelationModerate
	default:
		return models.CorrelationWeak
	}
}

// historicalVaR is the loss at the configured confidence level, read off the
// empirical distribution of portfolio returns. Never negative.
func (e *Engine) historicalVaR(portReturns []float64, value float64) float64 {
	if len(portReturns) == 0 || value == 0 {
		return 0
	}
	sorted := append([]float64(nil), portReturns...)
	sort.Float64s(sorted)
	q := stat.Quantile(1-e.cfg.ConfidenceLevel, stat.Empirical, sorted, nil)
	v := -q * value
	if v < 0 {
		return 0
	}
	return v
}

// betaAgainst computes CAPM beta of the portfolio against a market series,
// aligning on the most recent overlapping observations. A missing or
// degenerate market collapses to DefaultBeta and a zero market mean.
func betaAgainst(portReturns, market []float64) (beta, marketMean float64) {
	n := len(portReturns)
	if len(market) < n {
		n = len(market)
	}
	if n < 2 {
		return DefaultBeta, 0
	}
	p := portReturns[len(portReturns)-n:]
	m := market[len(market)-n:]

	marketVar := stat.Variance(m, nil)
	if marketVar == 0 || math.IsNaN(marketVar) {
		return DefaultBeta, 0
	}
	return stat.Covariance(p, m, nil) / marketVar, stat.Mean(m, nil)
}

// maxDrawdown is the largest peak-to-trough decline of the cumulative growth
// path implied by the return series, as a positive fraction. A monotonically
// ascending path yields 0.
func maxDrawdown(returns []float64) float64 {
	value := 1.0
	peak := 1.0
	worst := 0.0
	for _, r := range returns {
		value *= 1 + r
		if value > peak {
			peak = value
		}
		if peak > 0 {
			if dd := (peak - value) / peak; dd > worst {
				worst = dd
			}
		}
	}
	return worst
}

// correlationMatrix computes pairwise Pearson correlations between the return
// series of every held symbol. Symmetric with 1.0 on the diagonal.
func correlationMatrix(positions []models.Position, returns models.ReturnSeries) map[string]map[string]float64 {
	symbols := make([]string, 0, len(positions))
	seen := make(map[string]bool, len(positions))
	for _, p := range positions {
		if !seen[p.Symbol] {
			seen[p.Symbol] = true
			symbols = append(symbols, p.Symbol)
		}
	}
	sort.Strings(symbols)

	matrix := make(map[string]map[string]float64, len(symbols))
	for _, s := range symbols {
		matrix[s] = make(map[string]float64, len(symbols))
		matrix[s][s] = 1.0
	}
	for i := 0; i < len(symbols); i++ {
		for j := i + 1; j < len(symbols); j++ {
			corr := pairwiseCorrelation(returns[symbols[i]], returns[symbols[j]])
			matrix[symbols[i]][symbols[j]] = corr
			matrix[symbols[j]][symbols[i]] = corr
		}
	}
	return matrix
}

func pairwiseCorrelation(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n < 2 {
		return 0
	}
	corr := stat.Correlation(a[len(a)-n:], b[len(b)-n:], nil)
	return zeroIfNaN(corr)
}

// classifyRiskLevel scores VaR share, volatility and beta against the
// documented cutoffs and maps the summed score to a level.
func classifyRiskLevel(valueAtRisk, portfolioValue, volatility, beta float64) models.RiskLevel {
	varShare := 0.0
	if portfolioValue > 0 {
		varShare = valueAtRisk / portfolioValue
	}

	score := factorScore(varShare, VaRModerateCutoff, VaRHighCutoff) +
		factorScore(volatility, VolatilityModerateCutoff, VolatilityHighCutoff) +
		factorScore(math.Abs(beta), BetaModerateCutoff, BetaHighCutoff)

	switch {
	case score >= RiskScoreHigh:
		return models.RiskLevelHigh
	case score >= RiskScoreModerate:
		return models.RiskLevelModerate
	default:
		return models.RiskLevelLow
	}
}

func factorScore(v, moderate, high float64) int {
	switch {
	case v >= high:
		return 2
	case v >= moderate:
		return 1
	default:
		return 0
	}
}

// downsideDeviation is the standard deviation of returns below zero.
func downsideDeviation(returns []float64) float64 {
	var downside []float64
	for _, r := range returns {
		if r < 0 {
			downside = append(downside, r)
		}
	}
	return sampleStdDev(downside)
}

// sampleStdDev is stat.StdDev hardened against short series.
func sampleStdDev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	return zeroIfNaN(stat.StdDev(xs, nil))
}

// ratioOrDefault divides, substituting the default when the denominator is
// zero or the quotient is not finite.
func ratioOrDefault(num, den, def float64) float64 {
	if den == 0 {
		return def
	}
	q := num / den
	if math.IsNaN(q) || math.IsInf(q, 0) {
		return def
	}
	return q
}

func zeroIfNaN(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func validateFinite(m *models.RiskMetrics) error {
	for name, v := range map[string]float64{
		"value_at_risk": m.ValueAtRisk,
		"sharpe_ratio":  m.SharpeRatio,
		"sortino_ratio": m.SortinoRatio,
		"volatility":    m.Volatility,
		"beta":          m.Beta,
		"alpha":         m.Alpha,
		"max_drawdown":  m.MaxDrawdown,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return apperrors.Calculation("metric %s is not a finite number", name)
		}
	}
	return nil
}
