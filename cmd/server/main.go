package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Hibritu/Secure-National-Exam-Result-Verification-Certificate-Issuance--System/internal/cache"
	"github.com/Hibritu/Secure-National-Exam-Result-Verification-Certificate-Issuance--System/internal/config"
	"github.com/Hibritu/Secure-National-Exam-Result-Verification-Certificate-Issuance--System/internal/db"
	internalhttp "github.com/Hibritu/Secure-National-Exam-Result-Verification-Certificate-Issuance--System/internal/http"
	"github.com/Hibritu/Secure-National-Exam-Result-Verification-Certificate-Issuance--System/internal/metrics"
	"github.com/Hibritu/Secure-National-Exam-Result-Verification-Certificate-Issuance--System/internal/repository"
)

func main() {
	cfg := config.Load()
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connection failed: %v", err)
	}
	defer pool.Close()

	if err := db.EnsureSchema(ctx, pool); err != nil {
		log.Fatalf("schema bootstrap failed: %v", err)
	}

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			cancel()
			log.Fatalf("redis ping failed: %v", err)
		}
		cancel()
		defer func() {
			if err := redisClient.Close(); err != nil {
				log.Printf("redis close error: %v", err)
			}
		}()
	}

	store := repository.NewStore(pool)
	verifyCache := cache.New(redisClient, cfg.VerifyCacheTTL)
	server := internalhttp.NewServer(cfg, store, verifyCache, metrics.New())

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("examcert listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
