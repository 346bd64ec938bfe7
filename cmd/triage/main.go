package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/fixora/triage/internal/adapter/export"
	"github.com/fixora/triage/internal/adapter/fetcher"
	httpadapter "github.com/fixora/triage/internal/adapter/http"
	"github.com/fixora/triage/internal/adapter/persistence"
	"github.com/fixora/triage/internal/adapter/ratelimit"
	"github.com/fixora/triage/internal/config"
	"github.com/fixora/triage/internal/infra/logger"
	"github.com/fixora/triage/internal/normalize"
	"github.com/fixora/triage/internal/ports"
	"github.com/fixora/triage/internal/usecase"
)

func main() {
	ctx := context.Background()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logCfg := logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		ServiceName: "triage-dashboard",
	}
	structuredLogger := logger.New(logCfg)
	structuredLogger.Info(ctx, "Application starting", map[string]interface{}{
		"env":         cfg.Server.Environment,
		"daily_feed":  cfg.HasDailySource(),
		"rate_limit":  cfg.RateLimit.Enabled,
		"run_history": cfg.Database.URL != "",
	})

	loc, err := cfg.Location()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	earliest, err := cfg.EarliestDate()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Optional run history
	var runs ports.RunLogRepository
	if cfg.Database.URL != "" {
		db, err := openDatabase(ctx, cfg.Database)
		if err != nil {
			structuredLogger.Error(ctx, "Failed to connect to database", err, nil)
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()
		runs = persistence.NewPostgresRunLogRepository(db)
		structuredLogger.Info(ctx, "Database connection established", nil)
	}

	limiter, err := ratelimit.New(ratelimit.Config{
		Enabled:  cfg.RateLimit.Enabled,
		RedisURL: cfg.RateLimit.RedisURL,
	}, logger.NewLogrus(logCfg))
	if err != nil {
		structuredLogger.Error(ctx, "Failed to initialize rate limiter, continuing without it", err, nil)
		limiter = ratelimit.Noop{}
	}

	dashboard := usecase.NewDashboardUseCase(
		fetcher.NewHTTPFetcher(fetcher.Config{Timeout: cfg.Fetch.Timeout, MaxBytes: cfg.Fetch.MaxBytes}),
		normalize.New(loc),
		export.NewSpreadsheetExporter(cfg.Dashboard.SpreadsheetPath),
		runs,
		structuredLogger,
		usecase.DashboardSettings{
			TicketsURL:   cfg.Sources.Tickets.URL,
			TicketSchema: cfg.TicketSchema(),
			DailyURL:     cfg.Sources.Daily.URL,
			DailySchema:  cfg.DailySchema(),
			AllowedUsers: cfg.Sources.AllowedUsers,
			Location:     loc,
			EarliestDate: earliest,
		},
	)

	options := httpadapter.DefaultRenderOptions()
	options.MaxColWidth = cfg.Dashboard.MaxColWidth

	handler := httpadapter.NewDashboardHandler(dashboard, options, structuredLogger, cfg.Dashboard.RunHistoryLimit)
	clients, err := httpadapter.NewClientIPResolver(cfg.RateLimit.TrustedProxies)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	rateLimit := httpadapter.NewRateLimitMiddleware(limiter, cfg.RateLimit.Requests, cfg.RateLimit.Window, clients, structuredLogger)
	router := httpadapter.NewRouter(handler, rateLimit, cfg.CORS.Origins, structuredLogger)

	server := httpadapter.NewServer(httpadapter.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}, router, structuredLogger)

	// Start server in goroutine
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			structuredLogger.Error(ctx, "Server failed to start", err, nil)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		structuredLogger.Error(ctx, "Server forced to shutdown", err, nil)
	}
	structuredLogger.Info(ctx, "Server exited", nil)
}

func openDatabase(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetConnMaxIdleTime(cfg.MaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, err
	}

	if err := persistence.EnsureSchema(pingCtx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
