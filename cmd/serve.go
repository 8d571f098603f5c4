package cmd

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/suyash-mankar/PMIP-BE-sub000/internal/logger"
	"github.com/suyash-mankar/PMIP-BE-sub000/internal/pipeline"
	"github.com/suyash-mankar/PMIP-BE-sub000/internal/scheduler"
	"github.com/suyash-mankar/PMIP-BE-sub000/internal/server"
	"github.com/suyash-mankar/PMIP-BE-sub000/internal/store"
)

const (
	defaultListenAddr = ":8080"
	defaultUploadDir  = "uploads"
	shutdownGrace     = 10 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the jobmatch service: HTTP API, pipeline worker and requeue scheduler",
	Run: func(_ *cobra.Command, _ []string) {
		serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}
	if config == nil {
		logger.Fatal("config is required")
	}

	logger.Info("starting the jobmatch service", zap.String("version", version))

	pool, err := store.NewPostgresPool(ctx, config.DatabaseURL)
	if err != nil {
		logger.Fatal("connecting to postgres", zap.Error(err))
	}
	defer pool.Close()

	if err := store.EnsureSchema(ctx, pool); err != nil {
		logger.Fatal("applying schema", zap.Error(err))
	}

	rdb, err := store.NewRedisClient(ctx, config.RedisURL)
	if err != nil {
		logger.Fatal("connecting to redis", zap.Error(err))
	}
	defer rdb.Close()

	runs := store.NewRunStore(pool)
	queue := store.NewRunQueue(rdb)

	providers, scraper, err := buildProviders(config, logger)
	if err != nil {
		logger.Fatal("building providers", zap.Error(err))
	}

	coordinator, err := buildCoordinator(ctx, config, logger, runs, providers)
	if err != nil {
		logger.Fatal("building pipeline", zap.Error(err))
	}

	requeue := scheduler.New(runs, queue, logger, config.RequeueIntervalMinutes)
	if err := requeue.Start(ctx); err != nil {
		logger.Fatal("starting scheduler", zap.Error(err))
	}
	defer requeue.Stop()

	worker := pipeline.NewWorker(queue, coordinator, logger)
	go func() {
		if err := worker.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("worker stopped", zap.Error(err))
		}
	}()

	uploadDir := config.UploadDir
	if uploadDir == "" {
		uploadDir = defaultUploadDir
	}

	mux := http.NewServeMux()
	handler := server.NewHandler(runs, queue, uploadDir, logger)
	handler.SetProviders(providers, scraper)
	handler.RegisterRoutes(mux)

	addr := config.ListenAddr
	if addr == "" {
		addr = defaultListenAddr
	}

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("http server listening", zap.String("addr", addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown", zap.Error(err))
	}
}
