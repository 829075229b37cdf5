package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/user/adarchive-ingest/internal/adapter/archive"
	"github.com/user/adarchive-ingest/internal/adapter/chromedp_extractor"
	"github.com/user/adarchive-ingest/internal/adapter/postgres"
	redisadapter "github.com/user/adarchive-ingest/internal/adapter/redis"
	"github.com/user/adarchive-ingest/internal/delivery/http/handler"
	"github.com/user/adarchive-ingest/internal/delivery/http/router"
	"github.com/user/adarchive-ingest/internal/repository"
	"github.com/user/adarchive-ingest/internal/usecase"
	"github.com/user/adarchive-ingest/pkg/config"
	"github.com/user/adarchive-ingest/pkg/logger"
	"github.com/user/adarchive-ingest/pkg/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	metrics.Init()

	ctx := context.Background()

	dbpool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		log.Fatal("unable to connect to postgres", zap.Error(err))
	}
	defer dbpool.Close()
	if err := dbpool.Ping(ctx); err != nil {
		log.Fatal("postgres unreachable", zap.Error(err))
	}
	log.Info("postgres connection pool established")

	// Redis only backs the best-effort media cache; run without it if the
	// server is unreachable.
	var mediaCache repository.MediaCache
	rdb := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn("redis unreachable, media cache disabled", zap.Error(err))
	} else {
		mediaCache = redisadapter.NewMediaCache(rdb)
		log.Info("redis connection established")
	}

	tokenRepo := postgres.NewTokenRepo(dbpool)
	termRepo := postgres.NewTermRepo(dbpool)
	pageRepo := postgres.NewPageRepo(dbpool)
	adRepo := postgres.NewAdRepo(dbpool)
	creativeRepo := postgres.NewCreativeRepo(dbpool)

	if n, err := tokenRepo.CountLeasable(ctx); err != nil {
		log.Warn("could not count leasable tokens", zap.Error(err))
	} else if n == 0 {
		log.Fatal("no leasable archive tokens, refusing to start")
	} else {
		log.Info("archive token pool ready", zap.Int("leasable", n))
	}

	client := archive.NewClient(cfg.ArchiveBaseURL, tokenRepo, cfg.HTTPTimeout(), log)
	extractor := chromedp_extractor.NewChromedpExtractor(cfg.MediaWorkers, cfg.NavTimeout(), log)

	var minCreation *time.Time
	if cfg.MinAdCreationTime != "" {
		t, err := time.Parse("2006-01-02", cfg.MinAdCreationTime)
		if err != nil {
			log.Fatal("invalid MIN_AD_CREATION_TIME", zap.String("value", cfg.MinAdCreationTime), zap.Error(err))
		}
		minCreation = &t
	}

	resolver := usecase.NewTermResolver(termRepo, pageRepo, client, cfg.TermWorkers, log)
	enricher := usecase.NewPageEnricher(pageRepo, adRepo, client, cfg.PageWorkers, cfg.PollInterval(), minCreation, log)
	media := usecase.NewMediaFetcher(pageRepo, adRepo, creativeRepo, extractor, mediaCache,
		cfg.MediaCacheTTL(), cfg.MediaWorkers, cfg.PollInterval(), log)

	pipeline := usecase.NewPipeline(resolver, enricher, media, termRepo, pageRepo, log)

	// Operational API (health, progress, metrics) for the duration of the run.
	h := handler.NewHandler(postgres.NewStatsRepo(dbpool), dbpool, log)
	server := &http.Server{Addr: ":" + cfg.ServerPort, Handler: router.New(h, log)}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server failed", zap.Error(err))
		}
	}()

	runErr := pipeline.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)

	if runErr != nil {
		log.Error("pipeline run failed", zap.Error(runErr))
		log.Sync()
		os.Exit(1)
	}
}
