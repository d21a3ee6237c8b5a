package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/tubescribe/backend/internal/api"
	"github.com/tubescribe/backend/internal/cache"
	"github.com/tubescribe/backend/internal/config"
	"github.com/tubescribe/backend/internal/metrics"
	"github.com/tubescribe/backend/internal/pipeline"
	"github.com/tubescribe/backend/internal/ratelimit"
	"github.com/tubescribe/backend/internal/whisper"
	"github.com/tubescribe/backend/internal/ytdlp"
)

func main() {
	cfg := config.Load()

	// Cache store and rate limiter share the redis connection when one is
	// configured; otherwise both fall back to single-node backends.
	var store cache.Store
	var limiter ratelimit.Limiter
	if cfg.RedisAddr != "" {
		redisStore, err := cache.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Fatalf("Failed to connect to redis at %s: %v", cfg.RedisAddr, err)
		}
		store = redisStore
		limiter = ratelimit.NewRedisLimiter(redisStore.Client(), cfg.CacheNamespace, cfg.RateLimit, cfg.RateWindow)
		log.Printf("Cache: redis at %s", cfg.RedisAddr)
	} else {
		sqliteStore, err := cache.NewSQLiteStore(cfg.CacheDBPath)
		if err != nil {
			log.Fatalf("Failed to open cache database at %s: %v", cfg.CacheDBPath, err)
		}
		store = sqliteStore
		limiter = ratelimit.NewMemoryLimiter(cfg.RateLimit, cfg.RateWindow)
		log.Printf("Cache: sqlite at %s", cfg.CacheDBPath)
	}
	defer store.Close()

	extractor := ytdlp.NewExtractor(ytdlp.Options{
		BinPath: cfg.YTDLPPath,
		Format:  cfg.AudioFormat,
		Quality: cfg.AudioQuality,
		Timeout: cfg.ExtractTimeout,
		TempDir: cfg.TempDir,
	})

	transcriber := whisper.NewClient(whisper.ClientOptions{
		Endpoint:    cfg.WhisperURL,
		APIKey:      cfg.WhisperAPIKey,
		Model:       cfg.WhisperModel,
		Language:    cfg.WhisperLanguage,
		MaxAttempts: cfg.TranscribeAttempts,
		BaseDelay:   cfg.TranscribeBaseDelay,
		MaxDelay:    cfg.TranscribeMaxDelay,
	})

	appMetrics := metrics.NewMetrics()

	pipe := pipeline.New(limiter, store, extractor, transcriber, pipeline.Config{
		Namespace: cfg.CacheNamespace,
		TTL:       cfg.CacheTTL,
	}, appMetrics)

	router := api.NewRouter(pipe, cfg)

	addr := fmt.Sprintf(":%d", cfg.Port)
	log.Printf("Starting server on %s", addr)
	log.Printf("Rate limit: %d requests per %s", cfg.RateLimit, cfg.RateWindow)
	log.Printf("Extraction: %s -> %s (timeout %s)", cfg.YTDLPPath, cfg.AudioFormat, cfg.ExtractTimeout)

	// Graceful shutdown: sweep any temp files still pending cleanup.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Println("Shutting down...")
		extractor.Sweep()
		store.Close()
		os.Exit(0)
	}()

	if err := http.ListenAndServe(addr, router); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
