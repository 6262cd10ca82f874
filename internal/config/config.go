package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	filePath := os.Getenv(envKey + "_FILE")
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	os.Setenv(envKey, strings.TrimSpace(string(data)))
}

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	JWT       JWTConfig
	RateLimit RateLimitConfig
	Storage   StorageConfig
	Worker    WorkerConfig
	Queues    QueuesConfig
	Retention RetentionConfig
	Gateway   GatewayConfig
}

type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration int // hours
}

type RateLimitConfig struct {
	RenderPerHour  int
	ProcessPerHour int
	UploadPerHour  int
}

// StorageConfig points the upload executor at an S3 compatible bucket (Cloudflare R2 by default).
type StorageConfig struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	Endpoint        string
	PublicURL       string
}

// WorkerConfig tunes the simulated executors.
type WorkerConfig struct {
	StepDelay time.Duration
	CDNURL    string
}

// QueueConfig is one queue profile.
type QueueConfig struct {
	Concurrency int
	Capacity    int // 0 means unbounded
	Timeout     time.Duration
	Retention   time.Duration // 0 falls back to retention.ttl
}

type QueuesConfig struct {
	Render     QueueConfig
	Processing QueueConfig
	Upload     QueueConfig
}

type RetentionConfig struct {
	TTL      time.Duration
	Schedule string
}

// GatewayConfig switches auth to X-User-* headers set by a ForwardAuth gateway.
type GatewayConfig struct {
	Enabled bool
	// Secret, when set, must arrive in X-Gateway-Secret on every request
	Secret string
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

func Load() (*Config, error) {
	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("JWT_SECRET")
	readSecret("STORAGE_ACCOUNT_ID")
	readSecret("STORAGE_ACCESS_KEY_ID")
	readSecret("STORAGE_SECRET_ACCESS_KEY")
	readSecret("GATEWAY_SECRET")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variables
	viper.AutomaticEnv()

	// Bind environment variables with underscores to nested config keys
	_ = viper.BindEnv("server.port", "SERVER_PORT")
	_ = viper.BindEnv("server.env", "SERVER_ENV")
	_ = viper.BindEnv("server.log_level", "LOG_LEVEL")
	_ = viper.BindEnv("redis.addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = viper.BindEnv("redis.db", "REDIS_DB")
	_ = viper.BindEnv("jwt.secret", "JWT_SECRET")
	_ = viper.BindEnv("jwt.expiration", "JWT_EXPIRATION")
	_ = viper.BindEnv("storage.account_id", "STORAGE_ACCOUNT_ID")
	_ = viper.BindEnv("storage.access_key_id", "STORAGE_ACCESS_KEY_ID")
	_ = viper.BindEnv("storage.secret_access_key", "STORAGE_SECRET_ACCESS_KEY")
	_ = viper.BindEnv("storage.bucket_name", "STORAGE_BUCKET_NAME")
	_ = viper.BindEnv("storage.endpoint", "STORAGE_ENDPOINT")
	_ = viper.BindEnv("storage.public_url", "STORAGE_PUBLIC_URL")
	_ = viper.BindEnv("worker.step_delay", "WORKER_STEP_DELAY")
	_ = viper.BindEnv("worker.cdn_url", "WORKER_CDN_URL")
	_ = viper.BindEnv("queues.render.concurrency", "RENDER_CONCURRENCY")
	_ = viper.BindEnv("queues.render.capacity", "RENDER_CAPACITY")
	_ = viper.BindEnv("queues.render.timeout", "RENDER_TIMEOUT")
	_ = viper.BindEnv("queues.processing.concurrency", "PROCESSING_CONCURRENCY")
	_ = viper.BindEnv("queues.processing.capacity", "PROCESSING_CAPACITY")
	_ = viper.BindEnv("queues.processing.timeout", "PROCESSING_TIMEOUT")
	_ = viper.BindEnv("queues.upload.concurrency", "UPLOAD_CONCURRENCY")
	_ = viper.BindEnv("queues.upload.capacity", "UPLOAD_CAPACITY")
	_ = viper.BindEnv("queues.upload.timeout", "UPLOAD_TIMEOUT")
	_ = viper.BindEnv("queues.upload.retention", "UPLOAD_RETENTION")
	_ = viper.BindEnv("retention.ttl", "RETENTION_TTL")
	_ = viper.BindEnv("retention.schedule", "RETENTION_SCHEDULE")
	_ = viper.BindEnv("gateway.enabled", "GATEWAY_ENABLED")
	_ = viper.BindEnv("gateway.secret", "GATEWAY_SECRET")

	// Defaults
	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("jwt.secret", "change-me-in-production")
	viper.SetDefault("jwt.expiration", 24)
	viper.SetDefault("ratelimit.render_per_hour", 30)
	viper.SetDefault("ratelimit.process_per_hour", 120)
	viper.SetDefault("ratelimit.upload_per_hour", 50)

	// Storage defaults
	viper.SetDefault("storage.bucket_name", "assets")

	// Worker defaults
	viper.SetDefault("worker.step_delay", "1s")
	viper.SetDefault("worker.cdn_url", "https://cdn.makeasinger.com")

	// Queue profiles
	viper.SetDefault("queues.render.concurrency", 3)
	viper.SetDefault("queues.render.capacity", 100)
	viper.SetDefault("queues.render.timeout", "10m")
	viper.SetDefault("queues.processing.concurrency", 3)
	viper.SetDefault("queues.processing.capacity", 0)
	viper.SetDefault("queues.processing.timeout", "5m")
	viper.SetDefault("queues.upload.concurrency", 1)
	viper.SetDefault("queues.upload.capacity", 0)
	viper.SetDefault("queues.upload.timeout", 0)
	// Terminal uploads keep their file bytes until pruned
	viper.SetDefault("queues.upload.retention", "10m")

	// Retention defaults
	viper.SetDefault("retention.ttl", "1h")
	viper.SetDefault("retention.schedule", "@every 1m")

	// Gateway defaults
	viper.SetDefault("gateway.enabled", false)
	viper.SetDefault("gateway.secret", "")

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:     viper.GetString("server.port"),
			Env:      viper.GetString("server.env"),
			LogLevel: viper.GetString("server.log_level"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret:     viper.GetString("jwt.secret"),
			Expiration: viper.GetInt("jwt.expiration"),
		},
		RateLimit: RateLimitConfig{
			RenderPerHour:  viper.GetInt("ratelimit.render_per_hour"),
			ProcessPerHour: viper.GetInt("ratelimit.process_per_hour"),
			UploadPerHour:  viper.GetInt("ratelimit.upload_per_hour"),
		},
		Storage: StorageConfig{
			AccountID:       viper.GetString("storage.account_id"),
			AccessKeyID:     viper.GetString("storage.access_key_id"),
			SecretAccessKey: viper.GetString("storage.secret_access_key"),
			BucketName:      viper.GetString("storage.bucket_name"),
			Endpoint:        viper.GetString("storage.endpoint"),
			PublicURL:       viper.GetString("storage.public_url"),
		},
		Worker: WorkerConfig{
			StepDelay: viper.GetDuration("worker.step_delay"),
			CDNURL:    viper.GetString("worker.cdn_url"),
		},
		Queues: QueuesConfig{
			Render:     loadQueue("render"),
			Processing: loadQueue("processing"),
			Upload:     loadQueue("upload"),
		},
		Retention: RetentionConfig{
			TTL:      viper.GetDuration("retention.ttl"),
			Schedule: viper.GetString("retention.schedule"),
		},
		Gateway: GatewayConfig{
			Enabled: viper.GetBool("gateway.enabled"),
			Secret:  viper.GetString("gateway.secret"),
		},
	}

	return cfg, nil
}

func loadQueue(name string) QueueConfig {
	prefix := "queues." + name + "."
	return QueueConfig{
		Concurrency: viper.GetInt(prefix + "concurrency"),
		Capacity:    viper.GetInt(prefix + "capacity"),
		Timeout:     viper.GetDuration(prefix + "timeout"),
		Retention:   viper.GetDuration(prefix + "retention"),
	}
}
