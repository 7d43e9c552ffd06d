package domain

import (
	"time"
)

// Config represents the main application configuration
type Config struct {
	Environment string           `mapstructure:"environment"`
	Server      ServerConfig     `mapstructure:"server"`
	Database    DatabaseConfig   `mapstructure:"database"`
	Literature  LiteratureConfig `mapstructure:"literature"`
	Extraction  ExtractionConfig `mapstructure:"extraction"`
	Resilience  ResilienceConfig `mapstructure:"resilience"`
	Cache       CacheConfig      `mapstructure:"cache"`
	Pipeline    PipelineConfig   `mapstructure:"pipeline"`
	Storage     StorageConfig    `mapstructure:"storage"`
	Logging     LoggingConfig    `mapstructure:"logging"`
	MCP         MCPConfig        `mapstructure:"mcp"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// DatabaseConfig represents database connection configuration
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // "postgres" or "sqlite"
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	SQLitePath      string        `mapstructure:"sqlite_path"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// LiteratureConfig represents PubMed E-utilities configuration
type LiteratureConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	APIKey    string        `mapstructure:"api_key"`
	Email     string        `mapstructure:"email"` // Required by NCBI
	Tool      string        `mapstructure:"tool"`
	Timeout   time.Duration `mapstructure:"timeout"`
	RateLimit int           `mapstructure:"rate_limit"`
}

// ExtractionConfig represents the text extraction model endpoint configuration
type ExtractionConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	FolderID    string        `mapstructure:"folder_id"`
	Model       string        `mapstructure:"model"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
	RateLimit   int           `mapstructure:"rate_limit"`
}

// ResilienceConfig controls retries and circuit breaking around network adapters
type ResilienceConfig struct {
	RetryAttempts          int           `mapstructure:"retry_attempts"`
	InitialInterval        time.Duration `mapstructure:"initial_interval"`
	MaxInterval            time.Duration `mapstructure:"max_interval"`
	BreakerMaxRequests     uint32        `mapstructure:"breaker_max_requests"`
	BreakerInterval        time.Duration `mapstructure:"breaker_interval"`
	BreakerTimeout         time.Duration `mapstructure:"breaker_timeout"`
	BreakerMinRequests     uint32        `mapstructure:"breaker_min_requests"`
	BreakerFailureRatio    float64       `mapstructure:"breaker_failure_ratio"`
	ExtractionCacheEnabled bool          `mapstructure:"extraction_cache_enabled"`
}

// CacheConfig represents cache configuration. An empty RedisURL selects the in-process cache.
type CacheConfig struct {
	RedisURL      string        `mapstructure:"redis_url"`
	DefaultTTL    time.Duration `mapstructure:"default_ttl"`
	MaxRetries    int           `mapstructure:"max_retries"`
	PoolSize      int           `mapstructure:"pool_size"`
	PoolTimeout   time.Duration `mapstructure:"pool_timeout"`
	MemoryMaxKeys int           `mapstructure:"memory_max_keys"`
}

// PipelineConfig represents evidence aggregation settings
type PipelineConfig struct {
	MaxArticles       int      `mapstructure:"max_articles"`
	EnrichmentMinimum int      `mapstructure:"enrichment_minimum"`
	EnrichmentTopN    int      `mapstructure:"enrichment_top_n"`
	MaxConcurrency    int      `mapstructure:"max_concurrency"`
	FocusTerms        []string `mapstructure:"focus_terms"`
}

// StorageConfig represents report storage configuration
type StorageConfig struct {
	Backend        string `mapstructure:"backend"` // "filesystem" or "minio"
	Directory      string `mapstructure:"directory"`
	MinioEndpoint  string `mapstructure:"minio_endpoint"`
	MinioAccessKey string `mapstructure:"minio_access_key"`
	MinioSecretKey string `mapstructure:"minio_secret_key"`
	MinioBucket    string `mapstructure:"minio_bucket"`
	MinioSecure    bool   `mapstructure:"minio_secure"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	Filename string `mapstructure:"filename"`
}

// MCPConfig represents MCP server configuration
type MCPConfig struct {
	ServerName    string `mapstructure:"server_name"`
	ServerVersion string `mapstructure:"server_version"`
}
