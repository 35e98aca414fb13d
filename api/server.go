// Package api exposes the risk analytics engines over HTTP and upgrades the
// live risk feed websocket.
package api

import (
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	limiter "github.com/ulule/limiter/v3"
	ginlimiter "github.com/ulule/limiter/v3/drivers/middleware/gin"
	memory "github.com/ulule/limiter/v3/drivers/store/memory"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/aistm7/riskstream/internal/config"
	"github.com/aistm7/riskstream/internal/risk"
	"github.com/aistm7/riskstream/internal/ws"
)

// Server represents the API server.
type Server struct {
	router      *gin.Engine
	logger      *zap.Logger
	risk        *risk.Service
	ws          *ws.Handler
	validator   *validator.Validate
	rateLimiter gin.HandlerFunc
}

// NewServer creates the API server over the risk façade and the websocket
// handler.
func NewServer(cfg *config.Config, logger *zap.Logger, riskSvc *risk.Service, wsHandler *ws.Handler) *Server {
	server := &Server{
		logger:    logger,
		risk:      riskSvc,
		ws:        wsHandler,
		validator: validator.New(),
	}

	router := gin.New()
	router.Use(ginzap.Ginzap(logger, time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(logger, true))
	router.Use(otelgin.Middleware("riskstream-api"))

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	store := memory.NewStore()
	rate, err := limiter.NewRateFromFormatted(cfg.Server.RateLimit)
	if err != nil {
		rate, _ = limiter.NewRateFromFormatted("100-M")
	}
	server.rateLimiter = ginlimiter.NewMiddleware(limiter.New(store, rate))

	server.router = router
	server.registerRoutes()
	return server
}

// Start starts the API server.
func (s *Server) Start(addr string) error {
	s.logger.Info("Starting API server", zap.String("addr", addr))
	return s.router.Run(addr)
}

// Router returns the internal Gin engine for testing purposes.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// registerRoutes registers all API routes.
func (s *Server) registerRoutes() {
	public := s.router.Group("/api/v1")
	{
		public.GET("/metrics", gin.WrapH(promhttp.Handler()))
		public.GET("/health", s.healthCheck)

		// Live risk feed
		public.GET("/ws/risk", s.serveRiskFeed)
	}

	portfolio := s.router.Group("/api/v1/portfolio")
	portfolio.Use(s.rateLimiter)
	{
		portfolio.GET("/risk-metrics", s.getRiskMetrics)
		portfolio.POST("/monte-carlo", s.runMonteCarlo)
		portfolio.POST("/stress-test", s.runStressTest)
		portfolio.GET("/var", s.getParametricVaR)
		portfolio.GET("/correlations", s.getCorrelations)
		portfolio.GET("/beta", s.getBeta)
	}
}
