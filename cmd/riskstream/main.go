package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/aistm7/riskstream/api"
	"github.com/aistm7/riskstream/internal/analytics"
	"github.com/aistm7/riskstream/internal/config"
	"github.com/aistm7/riskstream/internal/risk"
	"github.com/aistm7/riskstream/internal/simulation"
	"github.com/aistm7/riskstream/internal/source"
	"github.com/aistm7/riskstream/internal/stream"
	"github.com/aistm7/riskstream/internal/workerpool"
	"github.com/aistm7/riskstream/internal/ws"
	"github.com/aistm7/riskstream/pkg/logger"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	// Create logger
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	zapLogger, err := logger.NewLogger(logLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zapLogger.Sync()

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		zapLogger.Fatal("Failed to load configuration", zap.Error(err))
	}

	// Bounded compute pool shared by every surface
	pool := workerpool.New(workerpool.Config{
		Workers:        cfg.Pool.Workers,
		QueueDepth:     cfg.Pool.QueueDepth,
		ComputeTimeout: cfg.Pool.ComputeTimeout,
	}, zapLogger)

	// Engines
	engine := analytics.NewEngine(analytics.Config{
		ConfidenceLevel:    cfg.Risk.ConfidenceLevel,
		RiskFreeRate:       cfg.Risk.RiskFreeRate,
		TradingDaysPerYear: cfg.Risk.TradingDaysPerYear,
	})
	simulator := simulation.New(simulation.Config{
		DefaultSimulations: cfg.Simulation.DefaultSimulations,
		DefaultDays:        cfg.Simulation.DefaultDays,
		MaxPathCells:       cfg.Simulation.MaxPathCells,
		TradingDaysPerYear: cfg.Risk.TradingDaysPerYear,
	}, uint64(cfg.Simulation.Seed))

	// Position data source. The broker integration is an external
	// collaborator; the simulated source backs local runs.
	dataSource := source.NewSimulated(42)

	riskSvc := risk.NewService(risk.Config{}, zapLogger, dataSource, engine, simulator, pool)

	// Streaming service + websocket transport
	streamSvc := stream.NewService(stream.Config{
		DefaultInterval: cfg.Stream.DefaultInterval,
		MinInterval:     cfg.Stream.MinInterval,
	}, zapLogger, riskSvc, stream.RealClock())

	wsHandler := ws.NewHandler(cfg.WS, zapLogger, streamSvc)

	// Create API server
	apiServer := api.NewServer(cfg, zapLogger, riskSvc, wsHandler)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)

	// Start server in a goroutine
	go func() {
		if err := apiServer.Start(addr); err != nil {
			zapLogger.Fatal("Failed to start API server", zap.Error(err))
		}
	}()

	// Wait for interrupt to shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zapLogger.Info("Shutting down server...")

	streamSvc.Close()
	pool.Close()

	zapLogger.Info("Server exited properly")
}
