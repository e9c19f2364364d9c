package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default YAML config location.
const ConfigPath = "config.yaml"

// FileConfig represents configuration loaded from YAML. Secrets and
// deployment-specific values can be overridden with environment variables.
type FileConfig struct {
	Port     string `yaml:"port"`
	LogLevel string `yaml:"logLevel"`

	DatabaseURL string `yaml:"databaseURL"`

	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`

	AuthJWKSURL string `yaml:"authJwksURL"`
	JWTIssuer   string `yaml:"jwtIssuer"`
	JWTAudience string `yaml:"jwtAudience"`
	JWTLeeway   string `yaml:"jwtLeeway"`

	AgentBaseURL             string `yaml:"agentBaseURL"`
	AgentAudience            string `yaml:"agentAudience"`
	AgentSignerKeyPath       string `yaml:"agentSignerKeyPath"`
	AgentSignerKeyID         string `yaml:"agentSignerKeyID"`
	AgentSignerIssuer        string `yaml:"agentSignerIssuer"`
	CallbackAudience         string `yaml:"callbackAudience"`
	CallbackPublicKeyPath    string `yaml:"callbackPublicKeyPath"`
	CallbackVerifyPublicKeys string `yaml:"callbackVerifyPublicKeys"`
	CallbackAllowedIssuers   []string `yaml:"callbackAllowedIssuers"`

	YouTubeAPIKey string `yaml:"youtubeApiKey"`

	PaymentBaseURL   string `yaml:"paymentBaseURL"`
	PaymentSecretKey string `yaml:"paymentSecretKey"`

	MinioEndpoint  string `yaml:"minioEndpoint"`
	MinioAccessKey string `yaml:"minioAccessKey"`
	MinioSecretKey string `yaml:"minioSecretKey"`
	MinioBucket    string `yaml:"minioBucket"`
	MinioUseSSL    bool   `yaml:"minioUseSSL"`

	SignupCredits int `yaml:"signupCredits"`

	TrustedProxyCIDRs  []string `yaml:"trustedProxyCidrs"`
	RateLimitPerMinute int      `yaml:"rateLimitPerMinute"`
}

// Load reads config from path (defaults to config.yaml) and applies
// environment overrides.
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if v := os.Getenv("PORT"); v != "" {
		cfg.Port = strings.TrimSpace(v)
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("CREATORHUB_AUTH_JWKS_URL"); v != "" {
		cfg.AuthJWKSURL = v
	}
	if v := os.Getenv("JWT_ISSUER"); v != "" {
		cfg.JWTIssuer = v
	}
	if v := os.Getenv("JWT_AUDIENCE"); v != "" {
		cfg.JWTAudience = v
	}
	if v := os.Getenv("JWT_LEEWAY"); v != "" {
		cfg.JWTLeeway = v
	}
	if v := os.Getenv("CREATORHUB_AGENT_BASE_URL"); v != "" {
		cfg.AgentBaseURL = v
	}
	if v := os.Getenv("CREATORHUB_AGENT_SIGNER_KEY_PATH"); v != "" {
		cfg.AgentSignerKeyPath = v
	}
	if v := os.Getenv("CREATORHUB_CALLBACK_PUBLIC_KEY_PATH"); v != "" {
		cfg.CallbackPublicKeyPath = v
	}
	if v := os.Getenv("CREATORHUB_CALLBACK_VERIFY_PUBLIC_KEYS"); v != "" {
		cfg.CallbackVerifyPublicKeys = v
	}
	if v := os.Getenv("CREATORHUB_CALLBACK_ALLOWED_ISSUERS"); v != "" {
		cfg.CallbackAllowedIssuers = splitCSV(v)
	}
	if v := os.Getenv("YOUTUBE_API_KEY"); v != "" {
		cfg.YouTubeAPIKey = v
	}
	if v := os.Getenv("PAYMENT_SECRET_KEY"); v != "" {
		cfg.PaymentSecretKey = v
	}
	if v := os.Getenv("MINIO_ENDPOINT"); v != "" {
		cfg.MinioEndpoint = v
	}
	if v := os.Getenv("MINIO_ACCESS_KEY"); v != "" {
		cfg.MinioAccessKey = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		cfg.MinioSecretKey = v
	}
	if v := os.Getenv("MINIO_BUCKET"); v != "" {
		cfg.MinioBucket = v
	}
	if v := os.Getenv("MINIO_USE_SSL"); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			cfg.MinioUseSSL = b
		}
	}
	if v := os.Getenv("CREATORHUB_SIGNUP_CREDITS"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			cfg.SignupCredits = n
		}
	}
	if v := os.Getenv("CREATORHUB_TRUSTED_PROXY_CIDRS"); v != "" {
		cfg.TrustedProxyCIDRs = splitCSV(v)
	}
	if v := os.Getenv("CREATORHUB_RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimitPerMinute = n
		}
	}
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml)")
	}
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return errors.New("config: databaseURL is required (set in config.yaml or DATABASE_URL)")
	}
	if strings.TrimSpace(cfg.RedisAddr) == "" {
		return errors.New("config: redisAddr is required for rate limiting and job tracking")
	}
	if strings.TrimSpace(cfg.AuthJWKSURL) == "" {
		return errors.New("config: authJwksURL is required (set in config.yaml or CREATORHUB_AUTH_JWKS_URL)")
	}
	if strings.TrimSpace(cfg.AgentBaseURL) == "" {
		return errors.New("config: agentBaseURL is required")
	}
	if strings.TrimSpace(cfg.YouTubeAPIKey) == "" {
		return errors.New("config: youtubeApiKey is required (set in config.yaml or YOUTUBE_API_KEY)")
	}
	if cfg.RateLimitPerMinute < 0 {
		return errors.New("config: rateLimitPerMinute must be >= 0")
	}
	if cfg.SignupCredits < 0 {
		return errors.New("config: signupCredits must be >= 0")
	}
	return nil
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

// ParseJWTLeeway parses optional JWT leeway duration string.
func ParseJWTLeeway(leewayStr string) (time.Duration, error) {
	if leewayStr == "" {
		return 0, nil
	}
	dur, err := time.ParseDuration(leewayStr)
	if err != nil {
		return 0, fmt.Errorf("invalid jwtLeeway duration: %w", err)
	}
	return dur, nil
}
