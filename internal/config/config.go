package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/linkup/linkup/backend/go-services/pkg/logger"
)

// Config holds application configuration shared by all four services.
type Config struct {
	Server    ServerConfig
	Postgres  PostgresConfig
	MongoDB   MongoDBConfig
	Redis     RedisConfig
	JWT       JWTConfig
	RateLimit RateLimitConfig
	Services  ServicesConfig
	MinIO     MinIOConfig
	Pictures  PicturesConfig
}

type ServerConfig struct {
	Port        string
	Host        string
	Environment string
	// AllowedOrigins may send credentialed cross-origin requests.
	AllowedOrigins []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
}

type PostgresConfig struct {
	DSN     string
	Timeout time.Duration
}

type MongoDBConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// Addr returns host:port, or "" when Redis is not configured.
func (r RedisConfig) Addr() string {
	if r.Host == "" {
		return ""
	}
	return r.Host + ":" + r.Port
}

// JWTConfig carries the RS256 key pair. Keys may be given inline (PEM) or as
// file paths; the inline value wins.
type JWTConfig struct {
	PrivateKeyPEM   string
	PublicKeyPEM    string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

type RateLimitConfig struct {
	Enabled       bool
	UseRedis      bool
	RPS           float64
	Burst         int
	WindowSeconds int
}

// ServicesConfig describes the internal user-service RPC endpoint.
type ServicesConfig struct {
	UserServiceURL string
	Secret         string
	Timeout        time.Duration
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
}

type PicturesConfig struct {
	BaseURL    string
	DefaultURL string
}

// Production reports whether the service runs with production hardening
// (secure cookies, no error details in responses).
func (c *Config) Production() bool {
	return strings.EqualFold(c.Server.Environment, "production")
}

// LoadConfig loads configuration from environment variables and .env file.
// defaultPort is used when SERVER_PORT is unset so each binary keeps its own port.
func LoadConfig(defaultPort string) (*Config, error) {
	_ = godotenv.Load(".env")

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("SERVER_PORT", defaultPort)
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_ENVIRONMENT", "development")
	v.SetDefault("CORS_ORIGINS", "http://localhost:5173")
	v.SetDefault("POSTGRES_TIMEOUT", 10)
	v.SetDefault("MONGODB_DATABASE", "linkup")
	v.SetDefault("MONGODB_TIMEOUT", 10)
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("JWT_ACCESS_TOKEN_TTL", 20)
	v.SetDefault("JWT_REFRESH_TOKEN_TTL", 10080)
	v.SetDefault("RATE_LIMIT_ENABLED", false)
	v.SetDefault("RATE_LIMIT_USE_REDIS", false)
	v.SetDefault("RATE_LIMIT_RPS", 10.0)
	v.SetDefault("RATE_LIMIT_BURST", 20)
	v.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 1)
	v.SetDefault("USER_SERVICE_URL", "http://localhost:5002")
	v.SetDefault("SERVICE_RPC_TIMEOUT", 5)
	v.SetDefault("MINIO_BUCKET", "linkup")
	v.SetDefault("PICTURE_BASE_URL", "/api/v1/pictures")
	v.SetDefault("PICTURE_DEFAULT_URL", "/static/default-avatar.png")

	privPEM, err := keyMaterial(v.GetString("JWT_PRIVATE_KEY"), v.GetString("JWT_PRIVATE_KEY_FILE"))
	if err != nil {
		return nil, fmt.Errorf("jwt private key: %w", err)
	}
	pubPEM, err := keyMaterial(v.GetString("JWT_PUBLIC_KEY"), v.GetString("JWT_PUBLIC_KEY_FILE"))
	if err != nil {
		return nil, fmt.Errorf("jwt public key: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:           v.GetString("SERVER_PORT"),
			Host:           v.GetString("SERVER_HOST"),
			Environment:    v.GetString("SERVER_ENVIRONMENT"),
			AllowedOrigins: splitList(v.GetString("CORS_ORIGINS")),
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   30 * time.Second,
		},
		Postgres: PostgresConfig{
			DSN:     v.GetString("POSTGRES_DSN"),
			Timeout: time.Duration(v.GetInt("POSTGRES_TIMEOUT")) * time.Second,
		},
		MongoDB: MongoDBConfig{
			URI:      v.GetString("MONGODB_URI"),
			Database: v.GetString("MONGODB_DATABASE"),
			Timeout:  time.Duration(v.GetInt("MONGODB_TIMEOUT")) * time.Second,
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetString("REDIS_PORT"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		JWT: JWTConfig{
			PrivateKeyPEM:   privPEM,
			PublicKeyPEM:    pubPEM,
			AccessTokenTTL:  time.Duration(v.GetInt("JWT_ACCESS_TOKEN_TTL")) * time.Minute,
			RefreshTokenTTL: time.Duration(v.GetInt("JWT_REFRESH_TOKEN_TTL")) * time.Minute,
		},
		RateLimit: RateLimitConfig{
			Enabled:       v.GetBool("RATE_LIMIT_ENABLED"),
			UseRedis:      v.GetBool("RATE_LIMIT_USE_REDIS"),
			RPS:           v.GetFloat64("RATE_LIMIT_RPS"),
			Burst:         v.GetInt("RATE_LIMIT_BURST"),
			WindowSeconds: v.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
		},
		Services: ServicesConfig{
			UserServiceURL: strings.TrimRight(v.GetString("USER_SERVICE_URL"), "/"),
			Secret:         os.Getenv("SERVICE_SECRET"),
			Timeout:        time.Duration(v.GetInt("SERVICE_RPC_TIMEOUT")) * time.Second,
		},
		MinIO: MinIOConfig{
			Endpoint:  v.GetString("MINIO_ENDPOINT"),
			AccessKey: v.GetString("MINIO_ACCESS_KEY"),
			SecretKey: os.Getenv("MINIO_SECRET_KEY"),
			UseSSL:    v.GetBool("MINIO_USE_SSL"),
			Bucket:    v.GetString("MINIO_BUCKET"),
		},
		Pictures: PicturesConfig{
			BaseURL:    strings.TrimRight(v.GetString("PICTURE_BASE_URL"), "/"),
			DefaultURL: v.GetString("PICTURE_DEFAULT_URL"),
		},
	}

	// Basic validation
	if cfg.Services.Secret == "" {
		logger.Warn("SERVICE_SECRET is not set; internal RPC calls will be rejected")
	}
	if cfg.JWT.PublicKeyPEM == "" {
		logger.Warn("JWT_PUBLIC_KEY is not set; protected routes will reject every request")
	}

	return cfg, nil
}

func keyMaterial(inline, path string) (string, error) {
	if inline != "" {
		// env files commonly carry PEM blocks with literal \n
		return strings.ReplaceAll(inline, `\n`, "\n"), nil
	}
	if path == "" {
		return "", nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
