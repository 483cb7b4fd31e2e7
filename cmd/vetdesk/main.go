package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/vetdesk/vetdesk/cmd/vetdesk/cli"
	"github.com/vetdesk/vetdesk/internal/app"
	"github.com/vetdesk/vetdesk/internal/audit"
	audithttp "github.com/vetdesk/vetdesk/internal/audit/http"
	"github.com/vetdesk/vetdesk/internal/clients"
	"github.com/vetdesk/vetdesk/internal/inventory"
	"github.com/vetdesk/vetdesk/internal/numbering"
	"github.com/vetdesk/vetdesk/internal/observability"
	"github.com/vetdesk/vetdesk/internal/platform/cache"
	"github.com/vetdesk/vetdesk/internal/platform/db"
	"github.com/vetdesk/vetdesk/internal/reports"
	"github.com/vetdesk/vetdesk/internal/sales"
	"github.com/vetdesk/vetdesk/internal/shared"
	"github.com/vetdesk/vetdesk/internal/tenancy"
	"github.com/vetdesk/vetdesk/jobs"
)

var (
	migrateOnly = flag.Bool("migrate-only", false, "Run database migrations and exit")
	triggerJob  = flag.String("trigger-job", "", "Enqueue a background job by task name and exit")
	queueStats  = flag.Bool("queue-stats", false, "Print default queue statistics and exit")
)

func main() {
	flag.Parse()
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	switch {
	case *migrateOnly:
		if err := db.Migrate(cfg.PGDSN, logger); err != nil {
			logger.Error("migrate", slog.Any("error", err))
			os.Exit(1)
		}
		return
	case *triggerJob != "" || *queueStats:
		if err := runJobsCommand(ctx, cfg, *triggerJob); err != nil {
			logger.Error("jobs command", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	if err := run(ctx, stop, cfg, logger); err != nil {
		logger.Error("vetdesk", slog.Any("error", err))
		os.Exit(1)
	}
}

func runJobsCommand(ctx context.Context, cfg *app.Config, name string) error {
	opts, err := jobs.RedisOpt(cfg.RedisAddr)
	if err != nil {
		return err
	}
	jobsCLI := cli.NewJobsCLI(opts)
	defer func() { _ = jobsCLI.Close() }()
	if name != "" {
		info, err := jobsCLI.Trigger(ctx, name)
		if err != nil {
			return err
		}
		fmt.Printf("enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
		return nil
	}
	stats, err := jobsCLI.InspectQueue(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("queue=%s pending=%d active=%d scheduled=%d retry=%d archived=%d\n",
		stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry, stats.Archived)
	return nil
}

func run(ctx context.Context, stop context.CancelFunc, cfg *app.Config, logger *slog.Logger) error {
	if cfg.DBAutoMigrate {
		if err := db.Migrate(cfg.PGDSN, logger); err != nil {
			return err
		}
	}
	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		return err
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, report cache disabled", slog.Any("error", err))
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(dbpool)
	asynqOpts, err := jobs.RedisOpt(cfg.RedisAddr)
	if err != nil {
		return err
	}
	jobClient := jobs.NewClient(asynqOpts)
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	settingsService := tenancy.NewService(tenancy.NewRepository(dbpool), auditLogger)
	numberingService := numbering.NewService(numbering.NewStore(dbpool), auditLogger)
	inventoryService := inventory.NewService(inventory.NewRepository(dbpool), auditLogger, jobClient, logger)
	clientsService := clients.NewService(clients.NewRepository(dbpool), logger)

	reportCache := reports.NewCache(redisClient, cfg.ReportCacheTTL)
	if err := reportCache.ListenForInvalidation(ctx, ""); err != nil {
		logger.Warn("report cache listener", slog.Any("error", err))
	}
	reportsService := reports.NewService(reports.NewRepository(dbpool), reportCache)

	salesService := sales.NewService(sales.NewRepository(dbpool), settingsService, jobClient, metrics, reportsService, logger)

	auditService := audit.NewService(audit.NewRepository(dbpool))

	inspector := asynq.NewInspector(asynqOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		Authenticator:    tenancy.NewAuthenticator(cfg.JWTSecret, cfg.JWTIssuer, logger),
		SalesHandler:     sales.NewHandler(logger, salesService),
		InventoryHandler: inventory.NewHandler(logger, inventoryService),
		NumberingHandler: numbering.NewHandler(logger, numberingService),
		ClientsHandler:   clients.NewHandler(logger, clientsService),
		SettingsHandler:  tenancy.NewHandler(logger, settingsService),
		ReportsHandler:   reports.NewHandler(logger, reportsService),
		AuditHandler:     audithttp.NewHandler(logger, auditService, audit.NewExporter(time.UTC)),
		JobHandler:       jobs.NewHandler(inspector, logger),
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
