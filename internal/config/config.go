package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
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
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	OIDC      OIDCConfig
	Worker    WorkerConfig
	R2        R2Config
	RateLimit RateLimitConfig
	Gateway   GatewayConfig
}

type ServerConfig struct {
	Port      string
	Env       string
	LogLevel  string
	ApiDomain string
}

// DatabaseConfig carries two connection strings: URL uses the low-privilege
// application role whose reads and writes are constrained to the caller's
// own rows, AdminURL uses the privileged role reserved for the worker
// callback path.
type DatabaseConfig struct {
	URL      string
	AdminURL string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
}

type OIDCConfig struct {
	Issuer   string
	ClientID string
}

// WorkerConfig points at the external image-generation workflow.
type WorkerConfig struct {
	WebhookURL    string
	WebhookSecret string
	Timeout       int // seconds
}

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string
}

type RateLimitConfig struct {
	JobsPerHour int
}

type GatewayConfig struct {
	Enabled bool
}

func Load() (*Config, error) {
	readSecret("REDIS_PASSWORD")
	readSecret("DATABASE_URL")
	readSecret("DATABASE_ADMIN_URL")
	readSecret("WORKER_WEBHOOK_SECRET")
	readSecret("JWT_SECRET")
	readSecret("R2_ACCESS_KEY_ID")
	readSecret("R2_SECRET_ACCESS_KEY")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.AutomaticEnv()

	_ = viper.BindEnv("server.port", "SERVER_PORT")
	_ = viper.BindEnv("server.env", "SERVER_ENV")
	_ = viper.BindEnv("server.log_level", "LOG_LEVEL")
	_ = viper.BindEnv("server.api_domain", "API_DOMAIN")
	_ = viper.BindEnv("database.url", "DATABASE_URL")
	_ = viper.BindEnv("database.admin_url", "DATABASE_ADMIN_URL")
	_ = viper.BindEnv("redis.addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = viper.BindEnv("redis.db", "REDIS_DB")
	_ = viper.BindEnv("jwt.secret", "JWT_SECRET")
	_ = viper.BindEnv("oidc.issuer", "OIDC_ISSUER")
	_ = viper.BindEnv("oidc.client_id", "OIDC_CLIENT_ID")
	_ = viper.BindEnv("worker.webhook_url", "WORKER_WEBHOOK_URL")
	_ = viper.BindEnv("worker.webhook_secret", "WORKER_WEBHOOK_SECRET")
	_ = viper.BindEnv("worker.timeout", "WORKER_TIMEOUT")
	_ = viper.BindEnv("r2.account_id", "R2_ACCOUNT_ID")
	_ = viper.BindEnv("r2.access_key_id", "R2_ACCESS_KEY_ID")
	_ = viper.BindEnv("r2.secret_access_key", "R2_SECRET_ACCESS_KEY")
	_ = viper.BindEnv("r2.bucket_name", "R2_BUCKET_NAME")
	_ = viper.BindEnv("r2.public_url", "R2_PUBLIC_URL")
	_ = viper.BindEnv("ratelimit.jobs_per_hour", "RATELIMIT_JOBS_PER_HOUR")
	_ = viper.BindEnv("gateway.enabled", "GATEWAY_ENABLED")

	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("worker.timeout", 120)
	viper.SetDefault("ratelimit.jobs_per_hour", 30)
	viper.SetDefault("gateway.enabled", false)

	// Optional config file
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:      viper.GetString("server.port"),
			Env:       viper.GetString("server.env"),
			LogLevel:  viper.GetString("server.log_level"),
			ApiDomain: viper.GetString("server.api_domain"),
		},
		Database: DatabaseConfig{
			URL:      viper.GetString("database.url"),
			AdminURL: viper.GetString("database.admin_url"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret: viper.GetString("jwt.secret"),
		},
		OIDC: OIDCConfig{
			Issuer:   viper.GetString("oidc.issuer"),
			ClientID: viper.GetString("oidc.client_id"),
		},
		Worker: WorkerConfig{
			WebhookURL:    viper.GetString("worker.webhook_url"),
			WebhookSecret: viper.GetString("worker.webhook_secret"),
			Timeout:       viper.GetInt("worker.timeout"),
		},
		R2: R2Config{
			AccountID:       viper.GetString("r2.account_id"),
			AccessKeyID:     viper.GetString("r2.access_key_id"),
			SecretAccessKey: viper.GetString("r2.secret_access_key"),
			BucketName:      viper.GetString("r2.bucket_name"),
			PublicURL:       viper.GetString("r2.public_url"),
		},
		RateLimit: RateLimitConfig{
			JobsPerHour: viper.GetInt("ratelimit.jobs_per_hour"),
		},
		Gateway: GatewayConfig{
			Enabled: viper.GetBool("gateway.enabled"),
		},
	}

	return cfg, nil
}
