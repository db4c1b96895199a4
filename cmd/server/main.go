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

	"filestorage-service/internal/assetgw"
	"filestorage-service/internal/blobstore"
	"filestorage-service/internal/config"
	"filestorage-service/internal/handler/fileHandler"
	"filestorage-service/internal/handler/shareHandler"
	"filestorage-service/internal/migrations"
	"filestorage-service/internal/repository/attemptRepo"
	"filestorage-service/internal/repository/fileRepo"
	"filestorage-service/internal/repository/shareRepo"
	"filestorage-service/internal/service/convertService"
	"filestorage-service/internal/service/fileService"
	"filestorage-service/internal/service/shareService"
	"filestorage-service/pkg/database/postgres"
	"filestorage-service/pkg/database/redis"
	"filestorage-service/pkg/logger"
	"filestorage-service/pkg/middleware"
	"filestorage-service/pkg/poll"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	log, err := logger.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config", zap.Error(err))
	}

	if err := migrations.Run(ctx, cfg.Postgres.DSN()); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	pool, err := postgres.New(ctx, cfg.Postgres)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	redisClient := redis.New(cfg.Redis)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("cannot connect to redis", zap.Error(err))
	}

	blob, err := blobstore.New(ctx, cfg.MinIO)
	if err != nil {
		log.Fatal("failed to initialize blob storage", zap.Error(err))
	}

	gateway := assetgw.NewClient(cfg.Asset)

	fileRep := fileRepo.New(pool)
	shareRep := shareRepo.New(pool)
	attempts := attemptRepo.New(redisClient)

	converter := convertService.New(gateway, poll.System, cfg.Convert, log)
	fileSvc := fileService.New(fileRep, blob, gateway, converter, log)
	shareSvc := shareService.New(shareRep, fileRep, blob, attempts, log)

	fileH := fileHandler.New(fileSvc, log)
	shareH := shareHandler.New(shareSvc, cfg.ShareBaseURL, log)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.ShareBaseURL},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	auth := middleware.Auth(cfg.JWTSecret)
	fileH.Register(router.Group("/api", auth))
	shareH.RegisterOwner(router.Group("/", auth))
	shareH.RegisterPublic(router.Group("/"))

	srv := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: router,
	}

	go func() {
		log.Info("server started", zap.String("port", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("failed to serve", zap.Error(err))
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
	log.Info("server stopped")
}
