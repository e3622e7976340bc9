package config

import (
	"fmt"
	"os"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string          `yaml:"environment" default:"development" validate:"required"`
	Server      ServerConfig    `yaml:"server"`
	Metrics     MetricsConfig   `yaml:"metrics"`
	Log         LogConfig       `yaml:"log"`
	Scanner     ScannerConfig   `yaml:"scanner"`
	Redis       RedisConfig     `yaml:"redis"`
	Providers   ProvidersConfig `yaml:"providers"`
	Kafka       KafkaConfig     `yaml:"kafka"`
	ClickHouse  CHConfig        `yaml:"clickhouse"`
}

type ServerConfig struct {
	Port            int           `yaml:"port" default:"8080" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout"` // 0 keeps streams open
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"20s"`
	AllowOrigins    []string      `yaml:"allow_origins"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" default:"true"`
	Path    string `yaml:"path" default:"/metrics"`
}

type LogConfig struct {
	Level      string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
	Format     string `yaml:"format" default:"console" validate:"oneof=console json"`
	Output     string `yaml:"output" default:"stdout"`
	TimeFormat string `yaml:"time_format"`
	// Aggregated error logs are shipped to kafka.topics.logs when set.
	Collect         bool          `yaml:"collect"`
	CollectInterval time.Duration `yaml:"collect_interval" default:"30s"`
	CollectMax      int           `yaml:"collect_max" default:"100"`
}

type ScannerConfig struct {
	BatchSize         int           `yaml:"batch_size" default:"25" validate:"min=1,max=100"`
	BatchDelay        time.Duration `yaml:"batch_delay" default:"50ms"`
	CacheLookupChunk  int           `yaml:"cache_lookup_chunk" default:"100" validate:"min=1"`
	EmitChunk         int           `yaml:"emit_chunk" default:"50" validate:"min=1"`
	RevalidateBatch   int           `yaml:"revalidate_batch" default:"10" validate:"min=1"`
	RevalidateDelay   time.Duration `yaml:"revalidate_delay" default:"100ms"`
	RevalidateWorkers int           `yaml:"revalidate_workers" default:"1" validate:"min=1"`
	RevalidateQueue   int           `yaml:"revalidate_queue" default:"10000" validate:"min=1"`
	RevalidateAfter   time.Duration `yaml:"revalidate_after" default:"4h" validate:"required"`
	SymbolTTL         time.Duration `yaml:"symbol_ttl" default:"24h" validate:"required"`
	UniverseTTL       time.Duration `yaml:"universe_ttl" default:"24h" validate:"required"`
	Benchmark         string        `yaml:"benchmark" default:"SPY" validate:"required"`
	HistoryLookback   time.Duration `yaml:"history_lookback" default:"8760h"`
	MinBars           int           `yaml:"min_bars" default:"50" validate:"min=1"`
	ChartBars         int           `yaml:"chart_bars" default:"100"`
	ProxyMinRS        int           `yaml:"proxy_min_rs" default:"70"`
	WarmInterval      time.Duration `yaml:"warm_interval"` // 0 disables scheduled warm-up
	ArchiveSnapshots  bool          `yaml:"archive_snapshots"`
}

type RedisConfig struct {
	Enabled       bool          `yaml:"enabled" default:"true"`
	Host          string        `yaml:"host" default:"localhost"`
	Port          int           `yaml:"port" default:"6379"`
	Password      string        `yaml:"password"`
	DB            int           `yaml:"db"`
	PoolSize      int           `yaml:"pool_size" default:"20"`
	MinIdleConns  int           `yaml:"min_idle_conns" default:"2"`
	DialTimeout   time.Duration `yaml:"dial_timeout" default:"2s"`
	Prefix        string        `yaml:"prefix" default:"scanner"`
	PingInterval  time.Duration `yaml:"ping_interval" default:"30s"`
	MemoryMaxSize int           `yaml:"memory_max_size" default:"20000"`
	MemoryCleanup time.Duration `yaml:"memory_cleanup" default:"60s"`
}

type ProvidersConfig struct {
	MarketData MarketDataConfig `yaml:"market_data"`
	Enrichment EnrichmentConfig `yaml:"enrichment"`
	Universe   UniverseConfig   `yaml:"universe"`
}

type MarketDataConfig struct {
	BaseURL     string        `yaml:"base_url" default:"https://query1.finance.yahoo.com" validate:"required,url"`
	UserAgent   string        `yaml:"user_agent" default:"Mozilla/5.0 (compatible; qullascan/1.0)"`
	Timeout     time.Duration `yaml:"timeout" default:"10s"`
	Retries     int           `yaml:"retries"`
	Concurrency int           `yaml:"concurrency" default:"8" validate:"min=1"`
	RatePerSec  float64       `yaml:"rate_per_sec"` // 0 means unlimited
}

type EnrichmentConfig struct {
	Enabled     bool          `yaml:"enabled" default:"true"`
	BaseURL     string        `yaml:"base_url" validate:"omitempty,url"`
	Timeout     time.Duration `yaml:"timeout" default:"8s"`
	Retries     int           `yaml:"retries"`
	Concurrency int           `yaml:"concurrency" default:"5" validate:"min=1"`
	BatchDelay  time.Duration `yaml:"batch_delay" default:"500ms"`
	CacheTTL    time.Duration `yaml:"cache_ttl" default:"15m"`
}

type UniverseConfig struct {
	Symbols      []string      `yaml:"symbols"`
	File         string        `yaml:"file"`
	ScreenerURL  string        `yaml:"screener_url" validate:"omitempty,url"`
	APIKey       string        `yaml:"api_key"`
	MinMarketCap int64         `yaml:"min_market_cap" default:"300000000"`
	MinVolume    int64         `yaml:"min_volume" default:"100000"`
	MinPrice     float64       `yaml:"min_price" default:"5"`
	Limit        int           `yaml:"limit" default:"2000"`
	MinAccepted  int           `yaml:"min_accepted" default:"100"`
	Timeout      time.Duration `yaml:"timeout" default:"15s"`
}

type KafkaConfig struct {
	Enabled      bool     `yaml:"enabled"`
	Brokers      []string `yaml:"brokers" validate:"required_if=Enabled true"`
	RequiredAcks int      `yaml:"required_acks" default:"1"`
	Compression  string   `yaml:"compression" default:"snappy"`
	Topics       struct {
		SymbolUpdated string `yaml:"symbol_updated" default:"scanner.symbol.updated"`
		ScanCompleted string `yaml:"scan_completed" default:"scanner.scan.completed"`
		Revalidate    string `yaml:"revalidate" default:"scanner.revalidate"`
		Logs          string `yaml:"logs" default:"scanner.logs"`
	} `yaml:"topics"`
	Producer struct {
		MaxAttempts  int           `yaml:"max_attempts" default:"3"`
		Linger       time.Duration `yaml:"linger" default:"10ms"`
		BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
		BatchSize    int           `yaml:"batch_size" default:"100"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
		ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
		Async        bool          `yaml:"async"`
	} `yaml:"producer"`
	Consumer struct {
		GroupID    string        `yaml:"group_id" default:"qullascan"`
		Workers    int           `yaml:"workers" default:"2"`
		BufferSize int           `yaml:"buffer_size" default:"100"`
		RetryMax   int           `yaml:"retry_max" default:"3"`
		BackoffMin time.Duration `yaml:"backoff_min" default:"200ms"`
		BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
		DLQTopic   string        `yaml:"dlq_topic" default:"scanner.revalidate.dlq"`
		MinBytes   int           `yaml:"min_bytes" default:"1"`
		MaxBytes   int           `yaml:"max_bytes" default:"10485760"`
	} `yaml:"consumer"`
}

type CHConfig struct {
	Enabled          bool          `yaml:"enabled"`
	Host             string        `yaml:"host" default:"localhost"`
	Port             int           `yaml:"port" default:"9000"`
	Database         string        `yaml:"database" default:"qullascan"`
	User             string        `yaml:"user" default:"default"`
	Password         string        `yaml:"password"`
	UseHTTP          bool          `yaml:"use_http"`
	AsyncInsert      bool          `yaml:"async_insert" default:"true"`
	WaitForAsync     bool          `yaml:"wait_for_async_insert"`
	DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
	ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
	WriteTimeout     time.Duration `yaml:"write_timeout" default:"30s"`
	MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
}

// envOverrides are read from QSCAN_* variables after the YAML file.
type envOverrides struct {
	Environment   string   `envconfig:"ENVIRONMENT"`
	Port          int      `envconfig:"PORT"`
	LogLevel      string   `envconfig:"LOG_LEVEL"`
	RedisHost     string   `envconfig:"REDIS_HOST"`
	RedisPort     int      `envconfig:"REDIS_PORT"`
	RedisPassword string   `envconfig:"REDIS_PASSWORD"`
	KafkaBrokers  []string `envconfig:"KAFKA_BROKERS"`
	Symbols       []string `envconfig:"SYMBOLS"`
	ScreenerKey   string   `envconfig:"SCREENER_API_KEY"`
	EnrichmentURL string   `envconfig:"ENRICHMENT_URL"`
	CHHost        string   `envconfig:"CLICKHOUSE_HOST"`
	CHPassword    string   `envconfig:"CLICKHOUSE_PASSWORD"`
}

// Default returns a Config populated only from struct defaults.
func Default() *Config {
	var c Config
	_ = defaults.Set(&c)
	return &c
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML bytes, fills defaults and validates the result.
func Parse(b []byte) (*Config, error) {
	// Defaults first so explicit false/zero values in the file survive.
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := c.applyEnv(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv() error {
	var ov envOverrides
	if err := envconfig.Process("QSCAN", &ov); err != nil {
		return fmt.Errorf("env overrides: %w", err)
	}

	if ov.Environment != "" {
		c.Environment = ov.Environment
	}
	if ov.Port != 0 {
		c.Server.Port = ov.Port
	}
	if ov.LogLevel != "" {
		c.Log.Level = ov.LogLevel
	}
	if ov.RedisHost != "" {
		c.Redis.Host = ov.RedisHost
	}
	if ov.RedisPort != 0 {
		c.Redis.Port = ov.RedisPort
	}
	if ov.RedisPassword != "" {
		c.Redis.Password = ov.RedisPassword
	}
	if len(ov.KafkaBrokers) > 0 {
		c.Kafka.Brokers = ov.KafkaBrokers
	}
	if len(ov.Symbols) > 0 {
		c.Providers.Universe.Symbols = ov.Symbols
	}
	if ov.ScreenerKey != "" {
		c.Providers.Universe.APIKey = ov.ScreenerKey
	}
	if ov.EnrichmentURL != "" {
		c.Providers.Enrichment.BaseURL = ov.EnrichmentURL
	}
	if ov.CHHost != "" {
		c.ClickHouse.Host = ov.CHHost
	}
	if ov.CHPassword != "" {
		c.ClickHouse.Password = ov.CHPassword
	}
	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	if c.Scanner.RevalidateAfter >= c.Scanner.SymbolTTL {
		return fmt.Errorf("scanner.revalidate_after (%s) must be shorter than scanner.symbol_ttl (%s)",
			c.Scanner.RevalidateAfter, c.Scanner.SymbolTTL)
	}
	if c.ClickHouse.Enabled && c.ClickHouse.Database == "" {
		return fmt.Errorf("clickhouse.database is required when clickhouse is enabled")
	}
	return nil
}
