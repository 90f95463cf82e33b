package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mbrown1837/Website-Monitoring-System-sub000/internal/api"
	"github.com/mbrown1837/Website-Monitoring-System-sub000/internal/artifact"
	"github.com/mbrown1837/Website-Monitoring-System-sub000/internal/baseline"
	"github.com/mbrown1837/Website-Monitoring-System-sub000/internal/checker"
	"github.com/mbrown1837/Website-Monitoring-System-sub000/internal/comparison"
	"github.com/mbrown1837/Website-Monitoring-System-sub000/internal/config"
	"github.com/mbrown1837/Website-Monitoring-System-sub000/internal/crawler"
	"github.com/mbrown1837/Website-Monitoring-System-sub000/internal/fetch"
	"github.com/mbrown1837/Website-Monitoring-System-sub000/internal/monitoring"
	"github.com/mbrown1837/Website-Monitoring-System-sub000/internal/notify"
	"github.com/mbrown1837/Website-Monitoring-System-sub000/internal/scheduler"
	"github.com/mbrown1837/Website-Monitoring-System-sub000/internal/screenshot"
	"github.com/mbrown1837/Website-Monitoring-System-sub000/internal/significance"
	"github.com/mbrown1837/Website-Monitoring-System-sub000/internal/storage"
	"github.com/mbrown1837/Website-Monitoring-System-sub000/pkg/logger"
)

func main() {
	// Initialize structured logger
	bootLog, _ := zap.NewProduction()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		bootLog.Fatal("could not load config", zap.Error(err))
	}
	log := logger.New(cfg.LogLevel)
	defer log.Sync()

	ctx := context.Background()

	// Initialize Storage Layer
	pgStore, err := storage.NewPostgresStore(cfg.PostgresURL)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pgStore.Close()
	if err := pgStore.InitSchema(ctx); err != nil {
		log.Fatal("failed to initialize database schema", zap.Error(err))
	}

	redisStore := storage.NewRedisStore(cfg.RedisAddr, cfg.ProbeCacheTTL())
	if err := redisStore.Ping(ctx); err != nil {
		log.Warn("redis unreachable, external-link probes will not be cached", zap.Error(err))
	}

	artifacts, err := artifact.NewStore(cfg.SnapshotDir)
	if err != nil {
		log.Fatal("failed to prepare snapshot directory", zap.Error(err))
	}

	// Initialize Monitoring
	metrics := monitoring.New()

	// Initialize Check Pipeline
	fetcher := fetch.New(cfg.FetchTimeout(), cfg.CrawlRatePerSecond, cfg.CrawlMaxRetries, log)
	fetcher.CountRetries(redisStore)
	siteCrawler := crawler.New(fetcher, redisStore, metrics, log)
	capturer := screenshot.New(artifacts, time.Duration(cfg.ScreenshotTimeout)*time.Second, cfg.ViewportWidth, cfg.ViewportHeight, log)
	engine := comparison.NewEngine(artifacts, cfg.PixelDiffTolerance, true, log)

	checks := checker.New(checker.Deps{
		Crawler:   siteCrawler,
		Capturer:  capturer,
		Engine:    engine,
		Baselines: baseline.NewStore(log),
		Artifacts: artifacts,
		History:   pgStore,
		Websites:  pgStore,
		Reporter:  notify.NewLogReporter(log),
		Metrics:   metrics,
		Logger:    log,
	}, checker.Options{
		Thresholds: significance.Thresholds{
			ContentSimilarity:    cfg.ContentThreshold,
			StructureSimilarity:  cfg.StructureThreshold,
			VisualDiffPercent:    cfg.VisualThreshold,
			PerceptualSimilarity: cfg.PerceptualThreshold,
		},
		DefaultMaxDepth: cfg.CrawlMaxDepth,
		RespectRobots:   cfg.RespectRobots,
		CheckExternal:   cfg.CheckExternalLinks,
	})

	// Initialize Scheduler
	sched := scheduler.New(scheduler.Config{
		Tick:            cfg.SchedulerTick(),
		DefaultInterval: time.Duration(cfg.DefaultIntervalMinutes) * time.Minute,
	}, pgStore, checks, scheduler.NewSlot(metrics, log), log)
	sched.MirrorHolder(redisStore)

	if err := sched.Start(ctx); err != nil {
		log.Fatal("failed to start scheduler", zap.Error(err))
	}

	// Initialize API Server
	server := api.NewServer(cfg, pgStore, redisStore, sched, metrics, log)

	// Graceful Shutdown
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal("could not start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sched.Stop()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal("server forced to shutdown", zap.Error(err))
	}

	log.Info("monitor exiting")
}
