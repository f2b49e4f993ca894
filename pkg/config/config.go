package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig
	Upstream    UpstreamConfig
	VectorStore VectorStoreConfig
	SQLite      SQLiteConfig
	Redis       RedisConfig
	Breaker     BreakerConfig
	RateLimit   RateLimitConfig
	Logging     LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	BodyLimit    int
}

type UpstreamConfig struct {
	AskURL           string
	IngestURL        string
	AskTimeoutSec    int
	IngestTimeoutSec int
	APIKey           string
	APIKeyHeader     string
	// APIKeyMode controls when the key header is attached: "always",
	// or "host-suffix" restricted to hosts ending in APIKeyHostSuffix.
	APIKeyMode       string
	APIKeyHostSuffix string
}

type VectorStoreConfig struct {
	BaseURL        string
	Collection     string
	PageLimit      int
	MaxPages       int
	PageTimeoutSec int
	PageRetries    int
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Enabled       bool
	Host          string
	Port          int
	Password      string
	DB            int
	CatalogTTLSec int
}

type BreakerConfig struct {
	Enabled          bool
	FailureThreshold int
	CooldownSec      int
}

type RateLimitConfig struct {
	Enabled              bool
	MaxRequestsPerMinute int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/counseldesk")

	viper.SetEnvPrefix("COUNSELDESK")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", 330)
	viper.SetDefault("server.writeTimeout", 330)
	viper.SetDefault("server.bodyLimit", 10485760)

	viper.SetDefault("upstream.askURL", "http://localhost:9000/ask")
	viper.SetDefault("upstream.ingestURL", "http://localhost:9001/ingest")
	viper.SetDefault("upstream.askTimeoutSec", 300)
	viper.SetDefault("upstream.ingestTimeoutSec", 180)
	viper.SetDefault("upstream.apiKeyHeader", "X-API-Key")
	viper.SetDefault("upstream.apiKeyMode", "always")
	viper.SetDefault("upstream.apiKeyHostSuffix", "")

	viper.SetDefault("vectorstore.baseURL", "http://localhost:6333")
	viper.SetDefault("vectorstore.collection", "legal_documents")
	viper.SetDefault("vectorstore.pageLimit", 100)
	viper.SetDefault("vectorstore.maxPages", 50)
	viper.SetDefault("vectorstore.pageTimeoutSec", 15)
	viper.SetDefault("vectorstore.pageRetries", 2)

	viper.SetDefault("sqlite.path", "./data/querylog.db")

	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.catalogTTLSec", 300)

	viper.SetDefault("breaker.enabled", true)
	viper.SetDefault("breaker.failureThreshold", 5)
	viper.SetDefault("breaker.cooldownSec", 30)

	viper.SetDefault("ratelimit.enabled", true)
	viper.SetDefault("ratelimit.maxRequestsPerMinute", 120)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
