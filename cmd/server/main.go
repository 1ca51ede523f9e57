package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/redis/go-redis/v9"

	"github.com/pkom79/email-metrics-cloud-sub006/internal/api"
	"github.com/pkom79/email-metrics-cloud-sub006/internal/cache"
	"github.com/pkom79/email-metrics-cloud-sub006/internal/config"
	"github.com/pkom79/email-metrics-cloud-sub006/internal/engine"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		log.Fatalf("[Main] loading config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[Main] invalid config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	rdb := connectRedis(ctx, cfg.Redis)
	blob := connectBlob(ctx, cfg.Storage)
	cancel()

	sessions := api.NewSessions(func(identity string) *engine.Engine {
		var store *cache.Store
		if rdb != nil || blob != nil {
			store = cache.NewStore(identity, rdb, blob, cache.Options{
				TTL:             cfg.Redis.TTL(),
				MaxPayloadBytes: cfg.Redis.MaxPayloadBytes,
			})
		}
		return engine.New(identity, cfg.Engine, store)
	})

	server := api.NewServer(cfg.Server, api.NewHandlers(sessions))

	janitorDone := make(chan struct{})
	go sessionJanitor(sessions, janitorDone)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("[Main] received %v, shutting down", sig)
	case err := <-errCh:
		if err != nil {
			log.Fatalf("[Main] server error: %v", err)
		}
		return
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("[Main] shutdown: %v", err)
	}
	close(janitorDone)
	sessions.CloseAll()
}

const (
	sessionIdleTTL     = 2 * time.Hour
	sessionSweepPeriod = 15 * time.Minute
)

// sessionJanitor periodically evicts idle sessions so their cache
// stores and write-behind goroutines are released.
func sessionJanitor(sessions *api.Sessions, done <-chan struct{}) {
	ticker := time.NewTicker(sessionSweepPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			sessions.EvictIdle(sessionIdleTTL)
		}
	}
}

// connectRedis dials the fast cache tier. Connectivity failure degrades
// to in-memory-plus-durable operation instead of refusing to start.
func connectRedis(ctx context.Context, cfg config.RedisConfig) *redis.Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Printf("[Main] redis unavailable at %s, fast cache tier disabled: %v", cfg.Addr, err)
		return nil
	}
	log.Printf("[Main] redis connected at %s", cfg.Addr)
	return rdb
}

// connectBlob builds the durable cache tier. With no bucket configured
// the durable tier is disabled.
func connectBlob(ctx context.Context, cfg config.StorageConfig) cache.BlobStore {
	if cfg.S3Bucket == "" {
		log.Println("[Main] no S3 bucket configured, durable cache tier disabled")
		return nil
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.S3Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		log.Printf("[Main] loading AWS config, durable cache tier disabled: %v", err)
		return nil
	}

	log.Printf("[Main] durable cache tier: s3://%s/%s", cfg.S3Bucket, cfg.S3Prefix)
	return cache.NewS3Store(s3.NewFromConfig(awsCfg), cfg.S3Bucket, cfg.S3Prefix)
}
