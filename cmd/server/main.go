package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/bioeq-design-server/internal/api"
	"github.com/bioeq-design-server/internal/cache"
	"github.com/bioeq-design-server/internal/config"
	"github.com/bioeq-design-server/internal/domain"
	"github.com/bioeq-design-server/internal/logging"
	"github.com/bioeq-design-server/internal/report"
	"github.com/bioeq-design-server/internal/repository"
	"github.com/bioeq-design-server/internal/service"
	"github.com/bioeq-design-server/pkg/external"
)

func main() {
	// Optional local overrides; a missing file is fine
	_ = godotenv.Load(".env")

	configManager, err := config.NewManager()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	if err := configManager.Validate(); err != nil {
		logrus.Fatalf("Configuration validation failed: %v", err)
	}
	cfg := configManager.GetConfig()

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		logrus.Fatalf("Failed to configure logging: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	opened, err := repository.Open(ctx, cfg.Database, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open project store")
	}
	defer opened.Store.Close()

	checks := map[string]api.HealthCheck{"database": opened.Health}

	responseCache, closeCache := newCache(cfg.Cache, logger)
	defer closeCache()
	if pinger, ok := responseCache.(interface{ Ping(context.Context) error }); ok {
		checks["cache"] = pinger.Ping
	}

	resilience := external.ResilienceConfig{
		RetryAttempts:       cfg.Resilience.RetryAttempts,
		InitialInterval:     cfg.Resilience.InitialInterval,
		MaxInterval:         cfg.Resilience.MaxInterval,
		BreakerMaxRequests:  cfg.Resilience.BreakerMaxRequests,
		BreakerInterval:     cfg.Resilience.BreakerInterval,
		BreakerTimeout:      cfg.Resilience.BreakerTimeout,
		BreakerMinRequests:  cfg.Resilience.BreakerMinRequests,
		BreakerFailureRatio: cfg.Resilience.BreakerFailureRatio,
		CacheTTL:            cfg.Cache.DefaultTTL,
	}

	literature := external.NewResilientLiteratureSource(
		external.NewPubMedClient(external.PubMedConfig{
			BaseURL:   cfg.Literature.BaseURL,
			APIKey:    cfg.Literature.APIKey,
			Email:     cfg.Literature.Email,
			Tool:      cfg.Literature.Tool,
			Timeout:   cfg.Literature.Timeout,
			RateLimit: cfg.Literature.RateLimit,
		}),
		resilience, responseCache, logger,
	)

	var extractionCache external.Cache
	if cfg.Resilience.ExtractionCacheEnabled {
		extractionCache = responseCache
	}
	extractor := external.NewResilientExtractor(
		external.NewExtractionClient(external.ExtractionConfig{
			BaseURL:     cfg.Extraction.BaseURL,
			APIKey:      cfg.Extraction.APIKey,
			FolderID:    cfg.Extraction.FolderID,
			Model:       cfg.Extraction.Model,
			Temperature: cfg.Extraction.Temperature,
			MaxTokens:   cfg.Extraction.MaxTokens,
			Timeout:     cfg.Extraction.Timeout,
			RateLimit:   cfg.Extraction.RateLimit,
		}, logger),
		resilience, extractionCache, logger,
	)

	reportStore, err := newReportStore(ctx, cfg.Storage, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize report storage")
	}

	store := opened.Store
	aggregator := service.NewEvidenceAggregator(literature, extractor, service.AggregatorConfig{
		MaxArticles:       cfg.Pipeline.MaxArticles,
		EnrichmentMinimum: cfg.Pipeline.EnrichmentMinimum,
		EnrichmentTopN:    cfg.Pipeline.EnrichmentTopN,
		MaxConcurrency:    cfg.Pipeline.MaxConcurrency,
		FocusTerms:        cfg.Pipeline.FocusTerms,
	}, logger)
	designs := service.NewDesignService(store, logger)
	compliance := service.NewComplianceService(store, logger)
	reports := report.NewService(store, reportStore, logger)
	pipeline := service.NewPipelineRunner(store, aggregator, designs, compliance, reports, logger)

	server := api.NewServer(configManager, api.Dependencies{
		Projects:   store,
		Pipeline:   pipeline,
		Designs:    designs,
		Compliance: compliance,
		Reports:    reports,
		Checks:     checks,
	}, logger)

	logger.WithFields(logrus.Fields{
		"host":    cfg.Server.Host,
		"port":    cfg.Server.Port,
		"driver":  cfg.Database.Driver,
		"storage": cfg.Storage.Backend,
		"version": api.Version,
	}).Info("Starting bioequivalence design server")

	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}

	// let in-flight pipeline runs record their final status
	pipeline.Wait()
	logger.Info("Server stopped")
}

// newCache returns the Redis cache when configured, otherwise the in-process cache.
func newCache(config domain.CacheConfig, logger *logrus.Logger) (external.Cache, func()) {
	if config.RedisURL != "" {
		redisCache, err := external.NewRedisCache(external.RedisCacheConfig{
			RedisURL:    config.RedisURL,
			DefaultTTL:  config.DefaultTTL,
			MaxRetries:  config.MaxRetries,
			PoolSize:    config.PoolSize,
			PoolTimeout: config.PoolTimeout,
		})
		if err == nil {
			return redisCache, func() { redisCache.Close() }
		}
		logger.WithError(err).Warn("Redis unavailable, falling back to in-memory cache")
	}

	memoryCache := cache.NewMemoryCache(config.MemoryMaxKeys, config.DefaultTTL)
	return memoryCache, func() { memoryCache.Close() }
}

func newReportStore(ctx context.Context, config domain.StorageConfig, logger *logrus.Logger) (report.Store, error) {
	if config.Backend == "minio" {
		return report.NewMinioStore(ctx, report.MinioConfig{
			Endpoint:  config.MinioEndpoint,
			AccessKey: config.MinioAccessKey,
			SecretKey: config.MinioSecretKey,
			Bucket:    config.MinioBucket,
			Secure:    config.MinioSecure,
		}, logger)
	}
	return report.NewFileStore(config.Directory)
}
