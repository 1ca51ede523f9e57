package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Redis   RedisConfig   `yaml:"redis"`
	Storage StorageConfig `yaml:"storage"`
	Engine  EngineConfig  `yaml:"engine"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// RedisConfig holds the fast cache tier settings
type RedisConfig struct {
	Addr            string `yaml:"addr"`
	Password        string `yaml:"password"`
	DB              int    `yaml:"db"`
	TTLHours        int    `yaml:"ttl_hours"`
	MaxPayloadBytes int    `yaml:"max_payload_bytes"` // payloads above this skip the fast tier
}

// TTL returns the fast-tier expiry as a duration.
func (r RedisConfig) TTL() time.Duration {
	return time.Duration(r.TTLHours) * time.Hour
}

// StorageConfig holds the durable cache tier (S3) settings
type StorageConfig struct {
	S3Bucket        string `yaml:"s3_bucket"`
	S3Region        string `yaml:"s3_region"`
	S3Prefix        string `yaml:"s3_prefix"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// EngineConfig holds aggregation safety limits
type EngineConfig struct {
	DailyEscalationBuckets  int `yaml:"daily_escalation_buckets"`  // daily -> weekly past this many buckets
	WeeklyEscalationBuckets int `yaml:"weekly_escalation_buckets"` // weekly -> monthly past this many buckets
	TruncateBuckets         int `yaml:"truncate_buckets"`          // window truncated to this many most recent buckets
	MaxBuckets              int `yaml:"max_buckets"`               // structural cap on bucket-map construction
	MaxRecords              int `yaml:"max_records"`               // record-count ceiling per query
	BudgetSeconds           int `yaml:"budget_seconds"`            // soft wall-clock budget per query
}

// Budget returns the soft execution budget as a duration.
func (e EngineConfig) Budget() time.Duration {
	return time.Duration(e.BudgetSeconds) * time.Second
}

// Load reads configuration from a YAML file and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// LoadFromEnv loads configuration from a file (when present) and then
// applies environment variable overrides. A .env file is honored when
// one exists in the working directory.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg *Config
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			loaded, err := Load(path)
			if err != nil {
				return nil, err
			}
			cfg = loaded
		}
	}
	if cfg == nil {
		cfg = &Config{}
		cfg.applyDefaults()
	}

	if host := os.Getenv("SERVER_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
	}
	if pass := os.Getenv("REDIS_PASSWORD"); pass != "" {
		cfg.Redis.Password = pass
	}
	if bucket := os.Getenv("S3_BUCKET"); bucket != "" {
		cfg.Storage.S3Bucket = bucket
	}
	if region := os.Getenv("AWS_REGION"); region != "" {
		cfg.Storage.S3Region = region
	}
	if key := os.Getenv("AWS_ACCESS_KEY_ID"); key != "" {
		cfg.Storage.AccessKeyID = key
	}
	if secret := os.Getenv("AWS_SECRET_ACCESS_KEY"); secret != "" {
		cfg.Storage.SecretAccessKey = secret
	}

	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Host == "" {
		c.Server.Host = "localhost"
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
	if c.Redis.TTLHours == 0 {
		c.Redis.TTLHours = 24
	}
	if c.Redis.MaxPayloadBytes == 0 {
		c.Redis.MaxPayloadBytes = 4 << 20 // 4MB
	}
	if c.Storage.S3Region == "" {
		c.Storage.S3Region = "us-east-1"
	}
	if c.Storage.S3Prefix == "" {
		c.Storage.S3Prefix = "snapshots"
	}
	if c.Engine.DailyEscalationBuckets == 0 {
		c.Engine.DailyEscalationBuckets = 365
	}
	if c.Engine.WeeklyEscalationBuckets == 0 {
		c.Engine.WeeklyEscalationBuckets = 104
	}
	if c.Engine.TruncateBuckets == 0 {
		c.Engine.TruncateBuckets = 200
	}
	if c.Engine.MaxBuckets == 0 {
		c.Engine.MaxBuckets = 250
	}
	if c.Engine.MaxRecords == 0 {
		c.Engine.MaxRecords = 50000
	}
	if c.Engine.BudgetSeconds == 0 {
		c.Engine.BudgetSeconds = 10
	}
}

// Validate checks configuration sanity.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Engine.MaxBuckets < c.Engine.TruncateBuckets {
		return fmt.Errorf("max_buckets (%d) must be >= truncate_buckets (%d)", c.Engine.MaxBuckets, c.Engine.TruncateBuckets)
	}
	if c.Engine.MaxRecords < 1 {
		return fmt.Errorf("max_records must be positive")
	}
	if c.Engine.BudgetSeconds < 1 {
		return fmt.Errorf("budget_seconds must be positive")
	}
	return nil
}
