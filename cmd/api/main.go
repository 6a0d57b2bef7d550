package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"redline/api/internal/app"
	"redline/api/internal/chunk"
	"redline/api/internal/config"
	"redline/api/internal/correct"
	"redline/api/internal/jobcache"
	"redline/api/internal/search"
	"redline/api/internal/storage"
	"redline/api/internal/store"
	"redline/api/internal/worker"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	dataStore := store.NewPostgresStore(db)

	objectStorage, err := storage.NewMinio(cfg.StorageEndpoint, cfg.StorageAccessKey, cfg.StorageSecretKey, cfg.StorageBucket, cfg.StorageUseSSL)
	if err != nil {
		log.Fatalf("object storage failed: %v", err)
	}
	if err := objectStorage.EnsureBucket(ctx); err != nil {
		log.Fatalf("object storage bucket failed: %v", err)
	}

	pgfts := search.NewPgFTS(db)
	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
	}
	searchService := search.NewService(meiliClient, pgfts)
	if meiliClient != nil {
		defer meiliClient.Close()
	}

	service := app.NewService(dataStore, objectStorage, searchService)

	var statusCache *jobcache.RedisStore
	if strings.TrimSpace(cfg.RedisURL) != "" {
		log.Printf("Using Redis for job status caching")
		statusCache, err = jobcache.NewRedisStore(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer statusCache.Close()
		service.SetStatusCache(statusCache)
	}

	service.Bootstrap(ctx)

	workerCtx, stopWorker := context.WithCancel(ctx)
	defer stopWorker()
	if strings.TrimSpace(cfg.CorrectionAPIKey) == "" {
		log.Printf("WARNING: CORRECTION_API_KEY not set, correction worker disabled")
	} else {
		chunker, err := chunk.NewTokenChunker(cfg.MaxChunkTokens)
		if err != nil {
			log.Fatalf("chunker failed: %v", err)
		}
		completer := correct.NewOpenAICompleter(cfg.CorrectionAPIKey, cfg.CorrectionBaseURL, cfg.CorrectionModel)
		orchestrator := correct.NewOrchestrator(chunker, correct.NewClient(completer))

		w := worker.New(dataStore, objectStorage, orchestrator, cfg.WorkerPollInterval)
		if statusCache != nil {
			w.Cache = statusCache
		}
		w.Search = searchService
		go w.Run(workerCtx)
	}

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Redline API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	stopWorker()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
