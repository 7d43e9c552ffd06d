package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/bioeq-design-server/internal/database"
	"github.com/bioeq-design-server/internal/domain"
)

// EnvPrefix prefixes every environment override, e.g. BIOEQ_DATABASE_DRIVER
const EnvPrefix = "BIOEQ"

// Manager implements the ConfigManager interface using Viper
type Manager struct {
	v      *viper.Viper
	paths  []string
	config *domain.Config
}

// NewManager creates a new configuration manager. Extra paths are searched for
// config.yaml before the standard locations.
func NewManager(paths ...string) (*Manager, error) {
	m := &Manager{paths: paths}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from defaults, the optional config file and the environment
func (m *Manager) loadConfig() error {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range m.paths {
		v.AddConfigPath(p)
	}
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/bioeq-design-server/")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Config file is optional; defaults and environment variables still apply
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &domain.Config{}
	if err := v.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.v = v
	m.config = config
	return nil
}

// setDefaults sets default configuration values. Every key needs a default so
// that environment overrides are picked up by Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.request_timeout", "60s")

	// Database defaults
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.database", "bioeq")
	v.SetDefault("database.username", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "5m")
	v.SetDefault("database.sqlite_path", "./data/bioeq.db")
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.migrations_path", "")

	// Literature source defaults
	v.SetDefault("literature.base_url", "https://eutils.ncbi.nlm.nih.gov/entrez/eutils")
	v.SetDefault("literature.api_key", "")
	v.SetDefault("literature.email", "")
	v.SetDefault("literature.tool", "bioeq-design-server")
	v.SetDefault("literature.timeout", "30s")
	v.SetDefault("literature.rate_limit", 3)

	// Extraction model defaults
	v.SetDefault("extraction.base_url", "https://llm.api.cloud.yandex.net/foundationModels/v1/completion")
	v.SetDefault("extraction.api_key", "")
	v.SetDefault("extraction.folder_id", "")
	v.SetDefault("extraction.model", "yandexgpt-lite")
	v.SetDefault("extraction.temperature", 0.1)
	v.SetDefault("extraction.max_tokens", 1000)
	v.SetDefault("extraction.timeout", "60s")
	v.SetDefault("extraction.rate_limit", 5)

	// Resilience defaults
	v.SetDefault("resilience.retry_attempts", 3)
	v.SetDefault("resilience.initial_interval", "500ms")
	v.SetDefault("resilience.max_interval", "5s")
	v.SetDefault("resilience.breaker_max_requests", 3)
	v.SetDefault("resilience.breaker_interval", "30s")
	v.SetDefault("resilience.breaker_timeout", "60s")
	v.SetDefault("resilience.breaker_min_requests", 3)
	v.SetDefault("resilience.breaker_failure_ratio", 0.6)
	v.SetDefault("resilience.extraction_cache_enabled", true)

	// Cache defaults; an empty Redis URL selects the in-process cache
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.default_ttl", "24h")
	v.SetDefault("cache.max_retries", 3)
	v.SetDefault("cache.pool_size", 10)
	v.SetDefault("cache.pool_timeout", "4s")
	v.SetDefault("cache.memory_max_keys", 1000)

	// Evidence aggregation defaults
	v.SetDefault("pipeline.max_articles", 10)
	v.SetDefault("pipeline.enrichment_minimum", 15)
	v.SetDefault("pipeline.enrichment_top_n", 10)
	v.SetDefault("pipeline.max_concurrency", 4)
	v.SetDefault("pipeline.focus_terms", []string{
		"intra-subject variability", "within-subject CV", "bioequivalence crossover",
	})

	// Report storage defaults
	v.SetDefault("storage.backend", "filesystem")
	v.SetDefault("storage.directory", "./data")
	v.SetDefault("storage.minio_endpoint", "")
	v.SetDefault("storage.minio_access_key", "")
	v.SetDefault("storage.minio_secret_key", "")
	v.SetDefault("storage.minio_bucket", "bioeq-reports")
	v.SetDefault("storage.minio_secure", false)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.filename", "")

	// MCP defaults
	v.SetDefault("mcp.server_name", "bioeq-design-server")
	v.SetDefault("mcp.server_version", "v0.1.0")
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetDatabaseConfig returns database configuration
func (m *Manager) GetDatabaseConfig() *domain.DatabaseConfig {
	return &m.config.Database
}

// GetServerConfig returns server configuration
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// Reload reloads the configuration
func (m *Manager) Reload() error {
	return m.loadConfig()
}

// Validate validates the configuration
func (m *Manager) Validate() error {
	config := m.config

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	switch config.Database.Driver {
	case "postgres":
		if config.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if config.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
		if config.Database.Username == "" {
			return fmt.Errorf("database username is required")
		}
	case "sqlite":
		if config.Database.SQLitePath == "" {
			return fmt.Errorf("sqlite path is required")
		}
	default:
		return fmt.Errorf("invalid database driver: %q (expected postgres or sqlite)", config.Database.Driver)
	}

	if config.Literature.BaseURL == "" {
		return fmt.Errorf("literature base URL is required")
	}
	if config.Extraction.BaseURL == "" {
		return fmt.Errorf("extraction base URL is required")
	}

	if config.Resilience.RetryAttempts < 1 {
		return fmt.Errorf("resilience retry attempts must be at least 1")
	}
	if config.Resilience.BreakerFailureRatio <= 0 || config.Resilience.BreakerFailureRatio > 1 {
		return fmt.Errorf("breaker failure ratio must be in (0, 1]: %v", config.Resilience.BreakerFailureRatio)
	}

	if config.Pipeline.MaxArticles <= 0 || config.Pipeline.MaxConcurrency <= 0 {
		return fmt.Errorf("pipeline max articles and max concurrency must be positive")
	}

	switch config.Storage.Backend {
	case "filesystem":
		if config.Storage.Directory == "" {
			return fmt.Errorf("storage directory is required")
		}
	case "minio":
		if config.Storage.MinioEndpoint == "" || config.Storage.MinioBucket == "" {
			return fmt.Errorf("minio endpoint and bucket are required")
		}
	default:
		return fmt.Errorf("invalid storage backend: %q (expected filesystem or minio)", config.Storage.Backend)
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	return nil
}

// GetDatabaseConnectionString returns a formatted database connection string
func (m *Manager) GetDatabaseConnectionString() string {
	return database.ConfigFrom(m.config.Database).DSN()
}

// GetDatabaseURL returns the database URL used by migrations
func (m *Manager) GetDatabaseURL() string {
	return database.ConfigFrom(m.config.Database).URL()
}

// GetRedisConnectionString returns the Redis connection string
func (m *Manager) GetRedisConnectionString() string {
	return m.config.Cache.RedisURL
}

// IsProduction returns true if running in production mode
func (m *Manager) IsProduction() bool {
	return strings.ToLower(m.config.Environment) == "production"
}

// IsDevelopment returns true if running in development mode
func (m *Manager) IsDevelopment() bool {
	env := strings.ToLower(m.config.Environment)
	return env == "development" || env == "dev" || env == ""
}
