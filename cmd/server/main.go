package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Brownie44l1/photo-classifier/config"
	"github.com/Brownie44l1/photo-classifier/internal/handlers"
	"github.com/Brownie44l1/photo-classifier/internal/logging"
	"github.com/Brownie44l1/photo-classifier/internal/model"
	"github.com/Brownie44l1/photo-classifier/internal/photo"
	"github.com/Brownie44l1/photo-classifier/internal/pipeline"
	"github.com/Brownie44l1/photo-classifier/internal/staging"
)

func main() {
	if err := config.Init(config.ParseConfigFlag()); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	cfg := config.Config

	logger, err := logging.NewLogger(cfg.Server.Debug)
	if err != nil {
		panic(err)
	}
	defer logger.Sync() //nolint:errcheck

	store, closeStore := initStaging(cfg.Staging, logger)
	defer closeStore()

	logger.Info("loading model", zap.String("path", cfg.Model.Path), zap.String("metadata", cfg.Model.Metadata))

	engine := model.NewEngine(cfg.Model.Metadata, model.DefaultCatalog(),
		model.ONNXLoader(cfg.Model.Path, cfg.Model.SharedLibrary), logger)
	handle, err := engine.LoadOnce()
	if err != nil {
		logger.Fatal("failed to initialize model", zap.Error(err))
	}
	defer engine.Close() //nolint:errcheck

	p := pipeline.New(photo.NewSource(cfg.Exemplars.Dir), store, engine, logger)

	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.MaxMultipartMemory = int64(cfg.Server.MaxUploadSize)
	handlers.RegisterRoutes(router, handlers.NewHandler(p, logger, int64(cfg.Server.MaxUploadSize)))

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("server starting",
		zap.String("addr", addr),
		zap.Strings("classes", handle.Catalog.Labels()),
		zap.String("staging", cfg.Staging.Backend),
		zap.String("exemplars", cfg.Exemplars.Dir))

	if err := serveHTTPServer(server, 15*time.Second, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func initStaging(cfg config.StagingConfig, logger *zap.Logger) (staging.Store, func()) {
	switch cfg.Backend {
	case config.StagingMemory:
		return staging.NewMemoryStore(), func() {}
	case config.StagingRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Fatal("redis connection failed", zap.Error(err), zap.String("addr", cfg.Redis.Addr))
		}
		return staging.NewRedisStore(client, cfg.Redis.Key), func() { client.Close() }
	default:
		return staging.NewFileStore(cfg.Path), func() {}
	}
}

func serveHTTPServer(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		err := server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return <-errCh
	}
}
