// Copyright 2025 James Ross
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Redis struct {
	Addr               string        `mapstructure:"addr"`
	Username           string        `mapstructure:"username"`
	Password           string        `mapstructure:"password"`
	DB                 int           `mapstructure:"db"`
	PoolSizeMultiplier int           `mapstructure:"pool_size_multiplier"`
	MinIdleConns       int           `mapstructure:"min_idle_conns"`
	DialTimeout        time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout        time.Duration `mapstructure:"read_timeout"`
	WriteTimeout       time.Duration `mapstructure:"write_timeout"`
	MaxRetries         int           `mapstructure:"max_retries"`
	NotifyChannel      string        `mapstructure:"notify_channel"`
}

type Postgres struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type S3 struct {
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	ForcePathStyle  bool   `mapstructure:"force_path_style"`
}

// Runner holds the knobs named explicitly by the engine's admission and
// scheduling contract: how many jobs may run concurrently, how many
// threaded node runs a single job may have in flight, how large a single
// blob fragment read may be, how deep a Stream's buffered channel is, and
// how often the admission loop polls when no notification arrives.
type Runner struct {
	ParallelJobs          int           `mapstructure:"parallel_jobs"`
	ThreadsPerJob         int           `mapstructure:"threads_per_job"`
	BlobFragmentSize      int           `mapstructure:"blob_fragment_size"`
	StreamChannelCapacity int           `mapstructure:"stream_channel_capacity"`
	PollInterval          time.Duration `mapstructure:"poll_interval"`
	StaleJobTimeout       time.Duration `mapstructure:"stale_job_timeout"`
	ReaperCron            string        `mapstructure:"reaper_cron"`
}

type CircuitBreaker struct {
	FailureThreshold float64       `mapstructure:"failure_threshold"`
	Window           time.Duration `mapstructure:"window"`
	CooldownPeriod   time.Duration `mapstructure:"cooldown_period"`
	MinSamples       int           `mapstructure:"min_samples"`
}

type TracingConfig struct {
	Enabled          bool    `mapstructure:"enabled"`
	Endpoint         string  `mapstructure:"endpoint"`
	Environment      string  `mapstructure:"environment"`
	SamplingStrategy string  `mapstructure:"sampling_strategy"`
	SamplingRate     float64 `mapstructure:"sampling_rate"`
}

// Tracing is a backwards-compatible alias.
type Tracing = TracingConfig

type ObservabilityConfig struct {
	MetricsPort         int           `mapstructure:"metrics_port"`
	LogLevel            string        `mapstructure:"log_level"`
	Tracing             TracingConfig `mapstructure:"tracing"`
	QueueSampleInterval time.Duration `mapstructure:"queue_sample_interval"`
}

// Observability is a backwards-compatible alias.
type Observability = ObservabilityConfig

type Config struct {
	Redis          Redis          `mapstructure:"redis"`
	Postgres       Postgres       `mapstructure:"postgres"`
	S3             S3             `mapstructure:"s3"`
	Runner         Runner         `mapstructure:"runner"`
	CircuitBreaker CircuitBreaker `mapstructure:"circuit_breaker"`
	Observability  Observability  `mapstructure:"observability"`
}

func defaultConfig() *Config {
	return &Config{
		Redis: Redis{
			Addr:               "localhost:6379",
			PoolSizeMultiplier: 10,
			MinIdleConns:       5,
			DialTimeout:        5 * time.Second,
			ReadTimeout:        3 * time.Second,
			WriteTimeout:       3 * time.Second,
			MaxRetries:         3,
			NotifyChannel:      "pipeline:jobs:queued",
		},
		Postgres: Postgres{
			DSN:             "postgres://localhost:5432/pipelined?sslmode=disable",
			MaxOpenConns:    20,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		S3: S3{
			Region:         "us-east-1",
			ForcePathStyle: false,
		},
		Runner: Runner{
			ParallelJobs:          8,
			ThreadsPerJob:         4,
			BlobFragmentSize:      1_000_000,
			StreamChannelCapacity: 16,
			PollInterval:          200 * time.Millisecond,
			StaleJobTimeout:       10 * time.Minute,
			ReaperCron:            "@every 1m",
		},
		CircuitBreaker: CircuitBreaker{
			FailureThreshold: 0.5,
			Window:           1 * time.Minute,
			CooldownPeriod:   30 * time.Second,
			MinSamples:       20,
		},
		Observability: Observability{
			MetricsPort:         9090,
			LogLevel:            "info",
			Tracing:             Tracing{Enabled: false},
			QueueSampleInterval: 2 * time.Second,
		},
	}
}

// Load reads configuration from a YAML file and env overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	def := defaultConfig()
	v.SetDefault("redis.addr", def.Redis.Addr)
	v.SetDefault("redis.pool_size_multiplier", def.Redis.PoolSizeMultiplier)
	v.SetDefault("redis.min_idle_conns", def.Redis.MinIdleConns)
	v.SetDefault("redis.dial_timeout", def.Redis.DialTimeout)
	v.SetDefault("redis.read_timeout", def.Redis.ReadTimeout)
	v.SetDefault("redis.write_timeout", def.Redis.WriteTimeout)
	v.SetDefault("redis.max_retries", def.Redis.MaxRetries)
	v.SetDefault("redis.notify_channel", def.Redis.NotifyChannel)

	v.SetDefault("postgres.dsn", def.Postgres.DSN)
	v.SetDefault("postgres.max_open_conns", def.Postgres.MaxOpenConns)
	v.SetDefault("postgres.max_idle_conns", def.Postgres.MaxIdleConns)
	v.SetDefault("postgres.conn_max_lifetime", def.Postgres.ConnMaxLifetime)

	v.SetDefault("s3.region", def.S3.Region)
	v.SetDefault("s3.endpoint", def.S3.Endpoint)
	v.SetDefault("s3.force_path_style", def.S3.ForcePathStyle)

	v.SetDefault("runner.parallel_jobs", def.Runner.ParallelJobs)
	v.SetDefault("runner.threads_per_job", def.Runner.ThreadsPerJob)
	v.SetDefault("runner.blob_fragment_size", def.Runner.BlobFragmentSize)
	v.SetDefault("runner.stream_channel_capacity", def.Runner.StreamChannelCapacity)
	v.SetDefault("runner.poll_interval", def.Runner.PollInterval)
	v.SetDefault("runner.stale_job_timeout", def.Runner.StaleJobTimeout)
	v.SetDefault("runner.reaper_cron", def.Runner.ReaperCron)

	v.SetDefault("circuit_breaker.failure_threshold", def.CircuitBreaker.FailureThreshold)
	v.SetDefault("circuit_breaker.window", def.CircuitBreaker.Window)
	v.SetDefault("circuit_breaker.cooldown_period", def.CircuitBreaker.CooldownPeriod)
	v.SetDefault("circuit_breaker.min_samples", def.CircuitBreaker.MinSamples)

	v.SetDefault("observability.metrics_port", def.Observability.MetricsPort)
	v.SetDefault("observability.log_level", def.Observability.LogLevel)
	v.SetDefault("observability.tracing.enabled", def.Observability.Tracing.Enabled)
	v.SetDefault("observability.tracing.endpoint", def.Observability.Tracing.Endpoint)
	v.SetDefault("observability.queue_sample_interval", def.Observability.QueueSampleInterval)

	if _, err := os.Stat(path); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks config constraints and returns an error on invalid settings.
func Validate(cfg *Config) error {
	if cfg.Runner.ParallelJobs < 1 {
		return fmt.Errorf("runner.parallel_jobs must be >= 1")
	}
	if cfg.Runner.ThreadsPerJob < 1 {
		return fmt.Errorf("runner.threads_per_job must be >= 1")
	}
	if cfg.Runner.BlobFragmentSize < 1 {
		return fmt.Errorf("runner.blob_fragment_size must be >= 1")
	}
	if cfg.Runner.StreamChannelCapacity < 1 {
		return fmt.Errorf("runner.stream_channel_capacity must be >= 1")
	}
	if cfg.Runner.PollInterval <= 0 {
		return fmt.Errorf("runner.poll_interval must be > 0")
	}
	if cfg.Postgres.DSN == "" {
		return fmt.Errorf("postgres.dsn must be set")
	}
	if cfg.Observability.MetricsPort <= 0 || cfg.Observability.MetricsPort > 65535 {
		return fmt.Errorf("observability.metrics_port must be 1..65535")
	}
	return nil
}
