/*
main.go - HTTP server entry point

PURPOSE:
  Starts the attendance reconciliation API. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration from the environment (flags override)
  2. Configure logging and tracing
  3. Open the store (SQLite or PostgreSQL)
  4. Wire optional SES notifier and SQS publisher
  5. Start the dry-run scheduler when an interval is configured
  6. Serve HTTP until SIGINT/SIGTERM

COMMAND-LINE FLAGS:
  -port    HTTP server port (default: SERVER_PORT)
  -db      Database DSN (default: DB_DSN). ":memory:" for an in-memory SQLite

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (5s timeout)
  4. Flush traces, close the database

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Environment keys
*/
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/warp/attendance-engine/api"
	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/config"
	"github.com/warp/attendance-engine/logger"
	"github.com/warp/attendance-engine/notify"
	"github.com/warp/attendance-engine/store/sqlstore"
	"github.com/warp/attendance-engine/telemetry"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("cannot load config")
	}

	port := flag.String("port", cfg.ServerPort, "HTTP server port")
	dsn := flag.String("db", cfg.DBDSN, "database DSN")
	flag.Parse()

	logger.Setup(cfg.IsLocalDev, cfg.LogLevel)
	ctx := context.Background()

	shutdownTracer, err := telemetry.InitTracer(ctx, "attendance-engine-api", cfg.OTelExporter, cfg.OTelEndpoint)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize tracer")
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			log.Error().Err(err).Msg("failed to shutdown tracer provider")
		}
	}()

	store, err := sqlstore.Open(ctx, cfg.DBDriver, *dsn)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DBDriver).Msg("failed to open database")
	}
	defer store.Close()

	since, _ := cfg.Since()
	handler := api.NewHandler(store, since)
	handler.DefaultRulesetID = attendance.RulesetID(cfg.DefaultRulesetID)
	notifier, publisher, err := notify.FromConfig(ctx, cfg)
	if err != nil {
		log.Error().Err(err).Msg("AWS config unavailable, run results stay local")
	}
	handler.Notifier, handler.Publisher = notifier, publisher

	scheduler := api.NewReconciliationScheduler(handler, cfg.SchedulerInterval)
	scheduler.Start()

	router := api.NewRouter(handler)
	server := &http.Server{
		Addr:         ":" + *port,
		Handler:      otelhttp.NewHandler(router, "api"),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")
	scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
