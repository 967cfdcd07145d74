// Package config loads pipeline configuration from a YAML file with
// environment variable overrides for deployment-specific values.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

type RedisConfig struct {
	Addr string `yaml:"addr"`
	// Channel is the pub/sub channel for job status notifications.
	// Notifications are disabled when Addr is empty.
	Channel string `yaml:"channel"`
}

type QueueConfig struct {
	URL      string `yaml:"url"`
	Name     string `yaml:"name"`
	Prefetch int    `yaml:"prefetch"`
}

type S3Config struct {
	Endpoint string `yaml:"endpoint"`
	// PublicEndpoint is used for presigned URLs handed to clients; it may
	// differ from Endpoint when the service reaches MinIO over an internal
	// network.
	PublicEndpoint    string `yaml:"publicEndpoint"`
	Region            string `yaml:"region"`
	Bucket            string `yaml:"bucket"`
	AccessKey         string `yaml:"accessKey"`
	SecretKey         string `yaml:"secretKey"`
	PresignPutExpiry  int    `yaml:"presignPutExpirySeconds"`
	PresignGetExpiry  int    `yaml:"presignGetExpirySeconds"`
	UsePathStyle      bool   `yaml:"usePathStyle"`
}

type WorkerConfig struct {
	Concurrency    int `yaml:"concurrency"`
	LeaseTTLMs     int `yaml:"leaseTtlMs"`
	StepTimeoutMs  int `yaml:"stepTimeoutMs"`
	MaxAttempts    int `yaml:"maxAttempts"`
	BackoffBaseMs  int `yaml:"backoffBaseMs"`
}

type StepsConfig struct {
	FfmpegPath    string `yaml:"ffmpegPath"`
	WatermarkText string `yaml:"watermarkText"`
}

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Queue    QueueConfig    `yaml:"queue"`
	S3       S3Config       `yaml:"s3"`
	Worker   WorkerConfig   `yaml:"worker"`
	Steps    StepsConfig    `yaml:"steps"`
}

// Load reads the config file at path (optional, pass "" to skip), applies
// environment overrides, then defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.Server.Host, "HTTP_HOST")
	setInt(&c.Server.Port, "HTTP_PORT")
	setString(&c.Database.DSN, "DATABASE_URL")
	setString(&c.Redis.Addr, "REDIS_ADDR")
	setString(&c.Redis.Channel, "REDIS_CHANNEL")
	setString(&c.Queue.URL, "RABBITMQ_URL")
	setString(&c.Queue.Name, "JOB_QUEUE_NAME")
	setString(&c.S3.Endpoint, "S3_ENDPOINT")
	setString(&c.S3.PublicEndpoint, "S3_PUBLIC_ENDPOINT")
	setString(&c.S3.Region, "S3_REGION")
	setString(&c.S3.Bucket, "S3_BUCKET")
	setString(&c.S3.AccessKey, "S3_ACCESS_KEY")
	setString(&c.S3.SecretKey, "S3_SECRET_KEY")
	setInt(&c.Worker.Concurrency, "WORKER_CONCURRENCY")
	setString(&c.Steps.FfmpegPath, "FFMPEG_PATH")
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Queue.Name == "" {
		c.Queue.Name = "media:jobs"
	}
	if c.Queue.Prefetch <= 0 {
		c.Queue.Prefetch = 1
	}
	if c.Redis.Channel == "" {
		c.Redis.Channel = "media:job-events"
	}
	if c.S3.Region == "" {
		c.S3.Region = "us-east-1"
	}
	if c.S3.PublicEndpoint == "" {
		c.S3.PublicEndpoint = c.S3.Endpoint
	}
	if c.S3.PresignPutExpiry <= 0 {
		c.S3.PresignPutExpiry = 3600
	}
	if c.S3.PresignGetExpiry <= 0 {
		c.S3.PresignGetExpiry = 600
	}
	if c.Worker.Concurrency <= 0 {
		c.Worker.Concurrency = 4
	}
	if c.Worker.LeaseTTLMs <= 0 {
		c.Worker.LeaseTTLMs = 60_000
	}
	if c.Worker.StepTimeoutMs <= 0 {
		c.Worker.StepTimeoutMs = 600_000
	}
	if c.Worker.MaxAttempts <= 0 {
		c.Worker.MaxAttempts = 3
	}
	if c.Worker.BackoffBaseMs <= 0 {
		c.Worker.BackoffBaseMs = 500
	}
	if c.Steps.FfmpegPath == "" {
		c.Steps.FfmpegPath = "ffmpeg"
	}
	if c.Steps.WatermarkText == "" {
		c.Steps.WatermarkText = "WATERMARK"
	}
}

// LeaseTTL returns the worker lease TTL as a duration.
func (c *Config) LeaseTTL() time.Duration {
	return time.Duration(c.Worker.LeaseTTLMs) * time.Millisecond
}

// StepTimeout returns the per-step execution timeout as a duration.
func (c *Config) StepTimeout() time.Duration {
	return time.Duration(c.Worker.StepTimeoutMs) * time.Millisecond
}

// BackoffBase returns the initial retry backoff as a duration.
func (c *Config) BackoffBase() time.Duration {
	return time.Duration(c.Worker.BackoffBaseMs) * time.Millisecond
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
