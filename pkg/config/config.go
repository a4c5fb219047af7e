package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"Agora/internal/domain/models"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string            `yaml:"environment" default:"development" validate:"required,oneof=development test staging production"`
	Server      ServerConfig      `yaml:"server"`
	Logging     LoggingConfig     `yaml:"logging"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	RateLimit   RateLimitConfig   `yaml:"rate_limit"`
	Council     CouncilConfig     `yaml:"council"`
	Performance PerformanceConfig `yaml:"performance"`
	Risk        models.RiskConfig `yaml:"risk"`
	State       StateConfig       `yaml:"state"`
	Redis       RedisConfig       `yaml:"redis"`
	Kafka       KafkaConfig       `yaml:"kafka"`
	ClickHouse  ClickHouseConfig  `yaml:"clickhouse"`
}

type ServerConfig struct {
	Host            string        `yaml:"host" default:"0.0.0.0"`
	Port            int           `yaml:"port" default:"8080" validate:"gt=0,lte=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
	SlowRequest     time.Duration `yaml:"slow_request" default:"1s"`
	CORS            bool          `yaml:"cors" default:"true"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" default:"json" validate:"oneof=json console"`
	Output string `yaml:"output" default:"stdout"`
	// CollectorTopic enables publishing aggregated error logs to Kafka.
	CollectorTopic    string        `yaml:"collector_topic"`
	CollectorInterval time.Duration `yaml:"collector_interval" default:"30s"`
	CollectorMax      int           `yaml:"collector_max" default:"100"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled" default:"true"`
}

type RateLimitConfig struct {
	Enabled      bool    `yaml:"enabled" default:"true"`
	Burst        float64 `yaml:"burst" default:"50" validate:"gt=0"`
	RefillPerSec float64 `yaml:"refill_per_sec" default:"20" validate:"gt=0"`
}

type CouncilConfig struct {
	// Modules maps module id to category name, e.g. atlas: FUNDAMENTAL.
	Modules map[string]string `yaml:"modules"`
	// Profiles maps a profile name to category weights.
	Profiles map[string]map[string]float64 `yaml:"profiles"`
	// PerformanceWeighting scales votes by tracked module accuracy.
	PerformanceWeighting bool `yaml:"performance_weighting" default:"true"`
	// RecordPredictions records every evaluated opinion with the tracker.
	RecordPredictions bool `yaml:"record_predictions" default:"true"`
	Conflict          struct {
		Low      int `yaml:"low" default:"25"`
		Medium   int `yaml:"medium" default:"40"`
		High     int `yaml:"high" default:"55"`
		Critical int `yaml:"critical" default:"70"`
	} `yaml:"conflict"`
}

type PerformanceConfig struct {
	Window     int `yaml:"window" default:"30" validate:"gt=0"`
	MinSamples int `yaml:"min_samples" default:"5" validate:"gt=0"`
}

type StateConfig struct {
	// Backend is where snapshots are checkpointed: memory, redis or none.
	Backend  string        `yaml:"backend" default:"memory" validate:"oneof=memory redis none"`
	Key      string        `yaml:"key" default:"state:snapshot"`
	Interval time.Duration `yaml:"interval" default:"1m"`
	LockTTL  time.Duration `yaml:"lock_ttl" default:"30s"`
	// MaxEquityPoints bounds the gate's equity curve.
	MaxEquityPoints int `yaml:"max_equity_points" default:"1000" validate:"gt=1"`
	// MaxHistory bounds the approvals the gate keeps inside its pending window.
	MaxHistory int `yaml:"max_history" default:"1000" validate:"gt=0"`
}

type RedisConfig struct {
	Host     string `yaml:"host" default:"localhost"`
	Port     int    `yaml:"port" default:"6379"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size" default:"10"`
	Prefix   string `yaml:"prefix" default:"agora"`
}

type KafkaConfig struct {
	Enabled      bool     `yaml:"enabled"`
	Brokers      []string `yaml:"brokers"`
	RequiredAcks int      `yaml:"required_acks" default:"-1"`
	Compression  string   `yaml:"compression" default:"gzip" validate:"oneof=gzip snappy lz4 zstd"`
	Topics       struct {
		Opinions  string `yaml:"opinions" default:"agora.opinions"`
		Outcomes  string `yaml:"outcomes" default:"agora.outcomes"`
		Decisions string `yaml:"decisions" default:"agora.decisions"`
	} `yaml:"topics"`
	Producer struct {
		MaxAttempts  int           `yaml:"max_attempts" default:"3"`
		Linger       time.Duration `yaml:"linger" default:"50ms"`
		BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
		BatchSize    int           `yaml:"batch_size" default:"100"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
		ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
		Async        bool          `yaml:"async"`
	} `yaml:"producer"`
	Consumer struct {
		Enabled     bool          `yaml:"enabled" default:"true"`
		GroupID     string        `yaml:"group_id" default:"agora-decision"`
		StartOffset string        `yaml:"start_offset" default:"earliest" validate:"oneof=earliest latest"`
		Workers     int           `yaml:"workers" default:"4"`
		BufferSize  int           `yaml:"buffer_size" default:"64"`
		RetryMax    int           `yaml:"retry_max" default:"3"`
		BackoffMin  time.Duration `yaml:"backoff_min" default:"50ms"`
		BackoffMax  time.Duration `yaml:"backoff_max" default:"2s"`
		DLQTopic    string        `yaml:"dlq_topic" default:"agora.dlq"`
		MinBytes    int           `yaml:"min_bytes" default:"1"`
		MaxBytes    int           `yaml:"max_bytes" default:"10000000"`
	} `yaml:"consumer"`
}

type ClickHouseConfig struct {
	Enabled          bool          `yaml:"enabled"`
	Host             string        `yaml:"host" default:"localhost"`
	Port             int           `yaml:"port" default:"9000"`
	Database         string        `yaml:"database" default:"agora"`
	User             string        `yaml:"user" default:"default"`
	Password         string        `yaml:"password"`
	UseHTTP          bool          `yaml:"use_http"`
	AsyncInsert      bool          `yaml:"async_insert" default:"true"`
	WaitForAsync     bool          `yaml:"wait_for_async_insert"`
	DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
	ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
	WriteTimeout     time.Duration `yaml:"write_timeout" default:"10s"`
	MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
	MaxOpenConns     int           `yaml:"max_open_conns" default:"10"`
	MaxIdleConns     int           `yaml:"max_idle_conns" default:"5"`
}

var validate = validator.New()

// Default returns a configuration with every default applied.
func Default() *Config {
	var c Config
	if err := defaults.Set(&c); err != nil {
		panic(fmt.Sprintf("config: default tags: %v", err))
	}
	return &c
}

// Load reads and parses a YAML configuration file. Missing keys keep their
// defaults.
func Load(path string) (*Config, error) {
	c, err := decode(path)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads config from YAML and overrides it with AGORA_*
// environment variables before validating.
func LoadWithEnv(path string) (*Config, error) {
	c, err := decode(path)
	if err != nil {
		return nil, err
	}
	if err := c.applyEnv(os.LookupEnv); err != nil {
		return nil, fmt.Errorf("env overrides: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func decode(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	list := func(key string, dst *[]string) {
		if v, ok := lookup(key); ok && v != "" {
			parts := strings.Split(v, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			*dst = parts
		}
	}
	var errs []string
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", key, err))
				return
			}
			*dst = n
		}
	}
	flag := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", key, err))
				return
			}
			*dst = b
		}
	}

	str("AGORA_ENV", &c.Environment)
	num("AGORA_SERVER_PORT", &c.Server.Port)
	str("AGORA_LOG_LEVEL", &c.Logging.Level)
	str("AGORA_LOG_FORMAT", &c.Logging.Format)
	str("AGORA_STATE_BACKEND", &c.State.Backend)
	str("AGORA_REDIS_HOST", &c.Redis.Host)
	num("AGORA_REDIS_PORT", &c.Redis.Port)
	str("AGORA_REDIS_PASSWORD", &c.Redis.Password)
	flag("AGORA_KAFKA_ENABLED", &c.Kafka.Enabled)
	list("AGORA_KAFKA_BROKERS", &c.Kafka.Brokers)
	flag("AGORA_CLICKHOUSE_ENABLED", &c.ClickHouse.Enabled)
	str("AGORA_CLICKHOUSE_HOST", &c.ClickHouse.Host)
	str("AGORA_CLICKHOUSE_PASSWORD", &c.ClickHouse.Password)

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// Validate checks struct tags and the cross-field rules tags cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if err := validRiskMethods(c.Risk); err != nil {
		return err
	}
	if _, err := c.ModuleRegistry(); err != nil {
		return err
	}
	if _, err := c.ProfileWeights(); err != nil {
		return err
	}
	t := c.Council.Conflict
	if !(0 < t.Low && t.Low < t.Medium && t.Medium < t.High && t.High < t.Critical && t.Critical <= 100) {
		return fmt.Errorf("council.conflict thresholds must increase within (0,100], got %d/%d/%d/%d", t.Low, t.Medium, t.High, t.Critical)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required when kafka is enabled")
	}
	if c.Logging.CollectorTopic != "" && !c.Kafka.Enabled {
		return fmt.Errorf("logging.collector_topic requires kafka")
	}
	if c.ClickHouse.Enabled && c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required when clickhouse is enabled")
	}
	return nil
}

func validRiskMethods(r models.RiskConfig) error {
	if !r.SizingMethod.Valid() {
		return fmt.Errorf("risk.sizing_method is unknown")
	}
	if !r.StopMethod.Valid() {
		return fmt.Errorf("risk.stop_method is unknown")
	}
	return nil
}

// ModuleRegistry parses council.modules, falling back to the stock roster.
func (c *Config) ModuleRegistry() (models.ModuleRegistry, error) {
	if len(c.Council.Modules) == 0 {
		return models.DefaultModuleRegistry(), nil
	}
	reg := make(models.ModuleRegistry, len(c.Council.Modules))
	for module, name := range c.Council.Modules {
		cat, err := models.ParseCategory(name)
		if err != nil {
			return nil, fmt.Errorf("council.modules.%s: %w", module, err)
		}
		reg[strings.ToLower(module)] = cat
	}
	return reg, nil
}

// ProfileWeights parses council.profiles. Nil means the stock profiles.
func (c *Config) ProfileWeights() (map[string]map[models.Category]float64, error) {
	if len(c.Council.Profiles) == 0 {
		return nil, nil
	}
	out := make(map[string]map[models.Category]float64, len(c.Council.Profiles))
	for name, weights := range c.Council.Profiles {
		p := make(map[models.Category]float64, len(weights))
		for catName, w := range weights {
			cat, err := models.ParseCategory(catName)
			if err != nil {
				return nil, fmt.Errorf("council.profiles.%s: %w", name, err)
			}
			if w < 0 {
				return nil, fmt.Errorf("council.profiles.%s.%s: negative weight", name, catName)
			}
			p[cat] = w
		}
		out[name] = p
	}
	return out, nil
}
