/*
main.go - Batch reconciliation entry point

PURPOSE:
  Runs one reconciliation pass against the configured database and exits.
  Meant for cron jobs and one-off operator runs.

COMMAND-LINE FLAGS:
  -commit  Persist corrections (default: RECONCILE_COMMIT, else dry run)
  -since   Earliest check-in day, YYYY-MM-DD (default: RECONCILE_SINCE)
  -driver  sqlite or postgres (default: DB_DRIVER)
  -db      Database DSN (default: DB_DSN)
  -seed    Load an embedded demo scenario first. Resets the database.

OUTPUT:
  The report is written to stdout.

EXIT CODES:
  0  Commit run succeeded
  1  Failure (configuration, collaborator read, or persistence)
  2  Dry run: corrections are pending, rerun with -commit to apply them

EXAMPLES:
  # Preview against a demo scenario
  ./reconcile -db=":memory:" -seed=standard-week

  # Apply
  ./reconcile -commit
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/config"
	"github.com/warp/attendance-engine/generic"
	"github.com/warp/attendance-engine/logger"
	"github.com/warp/attendance-engine/notify"
	"github.com/warp/attendance-engine/scenario"
	"github.com/warp/attendance-engine/store/sqlstore"
	"github.com/warp/attendance-engine/telemetry"
)

const exitDryRun = 2

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "cannot load config:", err)
		return 1
	}

	commit := flag.Bool("commit", cfg.ReconcileCommit, "persist corrections")
	sinceFlag := flag.String("since", cfg.ReconcileSince, "earliest check-in day (YYYY-MM-DD)")
	driver := flag.String("driver", cfg.DBDriver, "database driver (sqlite|postgres)")
	dsn := flag.String("db", cfg.DBDSN, "database DSN")
	seed := flag.String("seed", "", "load an embedded scenario first (resets the database)")
	flag.Parse()

	logger.Setup(cfg.IsLocalDev, cfg.LogLevel)
	ctx := context.Background()

	shutdownTracer, err := telemetry.InitTracer(ctx, "attendance-engine-reconcile", cfg.OTelExporter, cfg.OTelEndpoint)
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize tracer")
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("failed to shutdown tracer provider")
		}
	}()

	since, err := generic.ParseTimePoint(*sinceFlag)
	if err != nil {
		log.Error().Err(err).Str("since", *sinceFlag).Msg("invalid -since")
		return 1
	}

	store, err := sqlstore.Open(ctx, *driver, *dsn)
	if err != nil {
		log.Error().Err(err).Str("driver", *driver).Msg("failed to open database")
		return 1
	}
	defer store.Close()

	if *seed != "" {
		fx, err := scenario.Load(ctx, store, *seed)
		if err != nil {
			log.Error().Err(err).Str("scenario", *seed).Msg("failed to load scenario")
			return 1
		}
		log.Info().Str("scenario", fx.ID).Msg("scenario loaded")
	}

	runner := attendance.NewReconciliationRunner(store, attendance.RulesetID(cfg.DefaultRulesetID))
	notifier, publisher, err := notify.FromConfig(ctx, cfg)
	if err != nil {
		log.Error().Err(err).Msg("AWS config unavailable, run results stay local")
	}
	runner.Notifier, runner.Publisher = notifier, publisher

	result, err := runner.Run(ctx, attendance.RunOptions{Since: since.Time, Commit: *commit})

	var notice *attendance.DryRunNotice
	switch {
	case errors.As(err, &notice):
		fmt.Println(notice.Report)
		fmt.Fprintf(os.Stderr, "dry run %s: %d corrections pending, rerun with -commit to apply\n", notice.RunID, notice.Pending)
		return exitDryRun
	case err != nil:
		log.Error().Err(err).Msg("reconciliation failed")
		return 1
	}

	fmt.Println(result.Report.String())
	return 0
}
