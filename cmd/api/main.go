package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Real-Bird/upload-server/internal/config"
	"github.com/Real-Bird/upload-server/internal/logger"
	"github.com/Real-Bird/upload-server/internal/metrics"
	"github.com/Real-Bird/upload-server/internal/server"
	"github.com/Real-Bird/upload-server/internal/storage"
	"github.com/Real-Bird/upload-server/internal/upload"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logg, err := logger.Init(cfg.Log)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logg.Sync()

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}
	metrics.InitMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, objectStore, err := newUploadStore(ctx, cfg, logg)
	if err != nil {
		logg.Fatal("init upload store", zap.Error(err))
	}
	uploads := upload.NewService(store, upload.Limits{
		Field:       cfg.Upload.Field,
		MaxFiles:    cfg.Upload.MaxFiles,
		MaxFileSize: cfg.Upload.MaxFileSize,
	})

	db := storage.NewManager(cfg.Mongo, logg)

	deps := server.Dependencies{
		Config:  cfg,
		Logger:  logg,
		DB:      db,
		Uploads: uploads,
	}
	if objectStore != nil {
		deps.ObjectStore = objectStore
	}
	router := server.NewRouter(deps)

	httpServer := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	// connection problems are logged by the manager and never stop the server
	g.Go(func() error {
		return db.Run(gctx)
	})

	g.Go(func() error {
		logg.Info("upload server listening",
			zap.String("address", cfg.Server.Address()),
			zap.String("env", cfg.Env))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		logg.Info("shutting down gracefully")
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logg.Error("server stopped with error", zap.Error(err))
	}
}

func newUploadStore(ctx context.Context, cfg config.Config, logg *zap.Logger) (upload.Store, *upload.MinIOStore, error) {
	switch cfg.Upload.Backend {
	case config.BackendMinIO:
		client, err := storage.NewMinIOClient(cfg.MinIO)
		if err != nil {
			return nil, nil, err
		}
		if err := storage.EnsureBucket(ctx, client, cfg.MinIO, logg); err != nil {
			return nil, nil, err
		}
		store := upload.NewMinIOStore(client, cfg.MinIO.Bucket)
		return store, store, nil
	default:
		if err := upload.EnsureDir(cfg.Upload.Dir, logg); err != nil {
			return nil, nil, err
		}
		return upload.NewDiskStore(cfg.Upload.Dir), nil, nil
	}
}
