package config

import (
	"os"
	"strconv"
	"time"
)

type R2 struct {
	AccountID  string
	AccessKey  string
	SecretKey  string
	BucketName string
	PublicURL  string
}

// RateLimit bounds outbound platform calls to Limit per Window.
type RateLimit struct {
	Limit  int
	Window time.Duration
}

type RateLimits struct {
	Instagram RateLimit
	Facebook  RateLimit
	Youtube   RateLimit
	Default   RateLimit
}

type Config struct {
	PostgresURI       string
	RedisURI          string
	FrontendURL       string
	R2                R2
	RateLimits        RateLimits
	WorkerConcurrency int
	MaxPublishRetries int
	SecretKey         string
	CookieName        string
}

func LoadConfig() *Config {
	return &Config{
		PostgresURI: getEnv("POSTGRES_URI", ""),
		RedisURI:    getEnv("REDIS_URI", "127.0.0.1:6379"),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:5173"),
		R2: R2{
			AccountID:  getEnv("R2_ACCOUNT_ID", ""),
			AccessKey:  getEnv("R2_ACCESS_KEY", ""),
			SecretKey:  getEnv("R2_SECRET_KEY", ""),
			BucketName: getEnv("R2_BUCKET_NAME", ""),
			PublicURL:  getEnv("R2_PUBLIC_URL", ""),
		},
		RateLimits: RateLimits{
			Instagram: RateLimit{Limit: getEnvInt("RATE_LIMIT_INSTAGRAM", 25), Window: time.Hour},
			Facebook:  RateLimit{Limit: getEnvInt("RATE_LIMIT_FACEBOOK", 50), Window: time.Hour},
			Youtube:   RateLimit{Limit: getEnvInt("RATE_LIMIT_YOUTUBE", 10), Window: time.Hour},
			Default:   RateLimit{Limit: getEnvInt("RATE_LIMIT_DEFAULT", 10), Window: time.Hour},
		},
		WorkerConcurrency: getEnvInt("WORKER_CONCURRENCY", 5),
		MaxPublishRetries: getEnvInt("MAX_PUBLISH_RETRIES", 3),
		SecretKey:         getEnv("SECRET_KEY", ""),
		CookieName:        getEnv("COOKIE_NAME", "crosspost_session"),
	}
}

// ForPlatform resolves the configured limit for a platform, falling back
// to the default bucket for anything unknown.
func (r RateLimits) ForPlatform(platform string) RateLimit {
	switch platform {
	case "instagram":
		return r.Instagram
	case "facebook":
		return r.Facebook
	case "youtube":
		return r.Youtube
	default:
		return r.Default
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
