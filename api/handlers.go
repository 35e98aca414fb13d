package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/aistm7/riskstream/pkg/errors"
	"github.com/aistm7/riskstream/pkg/models"
)

// Version is stamped at build time.
var Version = "dev"

// Default parameters for the parametric VaR view.
const (
	defaultVaRConfidence = 0.95
	defaultVaRHorizon    = 1
)

type monteCarloRequest struct {
	AccountID    string `json:"account_id" binding:"required"`
	Simulations  int    `json:"simulations"`
	Days         int    `json:"days"`
	IncludePaths bool   `json:"include_paths"`
}

type stressScenarioRequest struct {
	Name   string             `json:"name"`
	Shocks map[string]float64 `json:"shocks" binding:"required,min=1"`
}

type stressTestRequest struct {
	AccountID string                  `json:"account_id" binding:"required"`
	Scenarios []stressScenarioRequest `json:"scenarios" binding:"required,min=1,dive"`
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "riskstream",
		"version": Version,
	})
}

func (s *Server) serveRiskFeed(c *gin.Context) {
	accountID := c.Query("account_id")
	if accountID == "" {
		c.JSON(http.StatusBadRequest, errorBody(apperrors.InvalidParameter("account_id is required")))
		return
	}
	s.ws.ServeWS(c.Writer, c.Request, accountID)
}

func (s *Server) getRiskMetrics(c *gin.Context) {
	accountID, ok := requireAccountID(c)
	if !ok {
		return
	}
	metrics, err := s.risk.RiskMetrics(c.Request.Context(), accountID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, metrics)
}

func (s *Server) runMonteCarlo(c *gin.Context) {
	var req monteCarloRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.InvalidParameter("invalid request body: %v", err))
		return
	}
	if req.Simulations < 0 || req.Days < 0 {
		respondError(c, apperrors.InvalidParameter("simulations and days must not be negative"))
		return
	}
	result, err := s.risk.MonteCarlo(c.Request.Context(), req.AccountID, req.Simulations, req.Days, req.IncludePaths)
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, result)
}

func (s *Server) runStressTest(c *gin.Context) {
	var req stressTestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.InvalidParameter("invalid request body: %v", err))
		return
	}
	scenarios := make([]models.StressScenario, 0, len(req.Scenarios))
	for _, sc := range req.Scenarios {
		scenarios = append(scenarios, models.StressScenario{Name: sc.Name, Shocks: sc.Shocks})
	}
	result, err := s.risk.StressTest(c.Request.Context(), req.AccountID, scenarios)
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, result)
}

func (s *Server) getParametricVaR(c *gin.Context) {
	accountID, ok := requireAccountID(c)
	if !ok {
		return
	}

	confidence := defaultVaRConfidence
	if raw := c.Query("confidence"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			respondError(c, apperrors.InvalidParameter("confidence must be a number"))
			return
		}
		confidence = v
	}
	horizon := defaultVaRHorizon
	if raw := c.Query("horizon"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			respondError(c, apperrors.InvalidParameter("horizon must be an integer number of days"))
			return
		}
		horizon = v
	}

	result, err := s.risk.ParametricVaR(c.Request.Context(), accountID, confidence, horizon)
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, result)
}

func (s *Server) getCorrelations(c *gin.Context) {
	accountID, ok := requireAccountID(c)
	if !ok {
		return
	}
	view, err := s.risk.Correlations(c.Request.Context(), accountID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, view)
}

func (s *Server) getBeta(c *gin.Context) {
	accountID, ok := requireAccountID(c)
	if !ok {
		return
	}
	view, err := s.risk.Beta(c.Request.Context(), accountID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, view)
}

func requireAccountID(c *gin.Context) (string, bool) {
	accountID := c.Query("account_id")
	if accountID == "" {
		respondError(c, apperrors.InvalidParameter("account_id is required"))
		return "", false
	}
	return accountID, true
}

func respondSuccess(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "success",
		"data":      data,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func respondError(c *gin.Context, err error) {
	c.JSON(apperrors.HTTPStatus(err), errorBody(err))
}

func errorBody(err error) gin.H {
	return gin.H{
		"status":  "error",
		"code":    apperrors.CodeOf(err),
		"message": apperrors.MessageOf(err),
	}
}
