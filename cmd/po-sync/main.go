package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/posync/api/controllers"
	"github.com/angelmondragon/posync/api/routes"
	"github.com/angelmondragon/posync/internal/cron"
	"github.com/angelmondragon/posync/internal/ledger"
	"github.com/angelmondragon/posync/internal/pipeline"
	"github.com/angelmondragon/posync/internal/purchaseorders"
	"github.com/angelmondragon/posync/internal/rowsource"
	"github.com/angelmondragon/posync/internal/submission"
	"github.com/angelmondragon/posync/pkg/config"
	"github.com/angelmondragon/posync/pkg/db"
	"github.com/angelmondragon/posync/pkg/enums"
	"github.com/angelmondragon/posync/pkg/instance"
	"github.com/angelmondragon/posync/pkg/logger"
	"github.com/angelmondragon/posync/pkg/metrics"
	"github.com/angelmondragon/posync/pkg/migrate"
	"github.com/angelmondragon/posync/pkg/portal"
	"github.com/angelmondragon/posync/pkg/redis"
)

const serviceName = "po-sync"

func main() {
	once := flag.Bool("once", false, "run a single sync cycle for every tenant and exit")
	report := flag.Bool("report", false, "print recent ERROR and DUPLICATE control records as JSON and exit")
	reportLimit := flag.Int("report-limit", 50, "records per tenant and status for -report")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: serviceName})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = serviceName

	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.GetID(),
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	ledgerSvc, err := ledger.NewService(ledger.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(ctx, "failed to create ledger service", err)
		os.Exit(1)
	}

	if *report {
		if err := writeReport(ctx, ledgerSvc, cfg.Sync.TenantIDs(), *reportLimit); err != nil {
			logg.Error(ctx, "failed to build control report", err)
			os.Exit(1)
		}
		return
	}

	tenants, err := config.LoadTenants(cfg)
	if err != nil {
		logg.Error(ctx, "failed to load tenant settings", err)
		os.Exit(1)
	}
	if len(tenants) == 0 {
		logg.Warn(ctx, "every configured tenant is disabled; nothing to sync")
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	portalClient, err := portal.NewClient(cfg.Portal.BaseURL,
		portal.WithDuplicateCodes(cfg.Portal.DuplicateCodes...),
		portal.WithHTTPClient(&http.Client{}),
	)
	if err != nil {
		logg.Error(ctx, "failed to create portal client", err)
		os.Exit(1)
	}

	engine, err := submission.NewEngine(ledgerSvc, portalClient, submission.Config{
		BatchSize:     cfg.Portal.BatchSize,
		SubmitTimeout: cfg.Portal.SubmitTimeout,
		BatchDelay:    cfg.Portal.BatchDelay,
	},
		submission.WithLogger(logg),
		submission.WithMetrics(metrics.NewSyncMetrics(prometheus.DefaultRegisterer)),
	)
	if err != nil {
		logg.Error(ctx, "failed to create submission engine", err)
		os.Exit(1)
	}

	source, err := rowsource.New(rowsource.Options{
		QueryFile:    cfg.Sync.OrdersQueryFile,
		LookbackDays: cfg.Sync.LookbackDays,
	})
	if err != nil {
		logg.Error(ctx, "failed to load orders query", err)
		os.Exit(1)
	}

	pipe, err := pipeline.New(pipeline.Params{
		Logger:     logg,
		Connect:    pipeline.DBConnector(logg),
		Source:     source,
		Translator: purchaseorders.NewTranslator(cfg.Sync.MetadataMaxIndex),
		Submitter:  engine,
	})
	if err != nil {
		logg.Error(ctx, "failed to create sync pipeline", err)
		os.Exit(1)
	}

	markLastRun := pipeline.WithCompletionHook(func(ctx context.Context, databaseID string, at time.Time) error {
		return redisClient.MarkLastRun(ctx, cfg.App.Env, databaseID, at)
	})
	registry := cron.NewRegistry()
	for _, job := range pipeline.Jobs(pipe, tenants, markLastRun) {
		registry.Register(job)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:      logg,
		Registry:    registry,
		Locks:       cron.RedisLocks(redisClient, cfg.App.Env, cfg.Sync.LockTTL),
		Metrics:     metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval:    cfg.Sync.Interval,
		Parallelism: cfg.Sync.MaxParallelTenants,
	})
	if err != nil {
		logg.Error(ctx, "failed to create cron service", err)
		os.Exit(1)
	}

	if *once {
		if err := service.RunOnce(ctx); err != nil {
			logg.Error(ctx, "sync cycle finished with failures", err)
			os.Exit(1)
		}
		return
	}

	opsServer := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Ops.Port),
		Handler: routes.NewRouter(routes.Params{
			Config:   cfg,
			Logger:   logg,
			DB:       dbClient,
			Redis:    redisClient,
			Ledger:   ledgerSvc,
			LastRuns: redisClient,
			Tenants:  cfg.Sync.TenantIDs(),
			Gatherer: prometheus.DefaultGatherer,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logg.Info(logg.WithField(ctx, "addr", opsServer.Addr), "ops listener starting")
		if err := opsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "ops listener stopped", err)
			stop()
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := opsServer.Shutdown(shutdownCtx); err != nil {
			logg.Error(context.Background(), "error shutting down ops listener", err)
		}
	}()

	logg.Info(logg.WithField(ctx, "tenants", len(tenants)), "starting po-sync worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "po-sync worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "po-sync worker shutting down gracefully")
}

type tenantReport struct {
	DatabaseID string                    `json:"database_id"`
	Errors     []controllers.ControlView `json:"errors"`
	Duplicates []controllers.ControlView `json:"duplicates"`
}

func writeReport(ctx context.Context, ledgerSvc ledger.Service, databaseIDs []string, limit int) error {
	reports := make([]tenantReport, 0, len(databaseIDs))
	for _, id := range databaseIDs {
		report := tenantReport{DatabaseID: id}
		for status, dest := range map[enums.ControlStatus]*[]controllers.ControlView{
			enums.ControlStatusError:     &report.Errors,
			enums.ControlStatusDuplicate: &report.Duplicates,
		} {
			records, err := ledgerSvc.ListByStatus(ctx, id, status, limit)
			if err != nil {
				return fmt.Errorf("list %s records of %s: %w", status, id, err)
			}
			views := make([]controllers.ControlView, 0, len(records))
			for _, record := range records {
				views = append(views, controllers.NewControlView(record))
			}
			*dest = views
		}
		reports = append(reports, report)
	}
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(reports)
}
