package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type Twitter struct {
	APIBaseURL   string
	ClientID     string
	ClientSecret string
	TokenURL     string
}

type Engine struct {
	MaxConcurrentPublishes int
	QueueBatchSize         int
	RetryDelays            []time.Duration
	DefaultMaxRetries      int
	PublishTimeout         time.Duration
	StaleClaimAfter        time.Duration
	QueueInterval          string
	RateLimitSafetyMargin  int
	MaxBatchSchedule       int
}

type Config struct {
	PostgresURI    string
	RedisURI       string
	FrontendURL    string
	SecretKey      string
	CookieName     string
	Port           string
	KafkaBrokers   []string
	AnalyticsTopic string
	Twitter        Twitter
	Engine         Engine
}

func LoadConfig() *Config {
	return &Config{
		PostgresURI:    getEnv("POSTGRES_URI", ""),
		RedisURI:       getEnv("REDIS_URI", "localhost:6379"),
		FrontendURL:    getEnv("FRONTEND_URL", "http://localhost:5173"),
		SecretKey:      getEnv("SECRET_KEY", ""),
		CookieName:     getEnv("COOKIE_NAME", "session"),
		Port:           getEnv("PORT", "3000"),
		KafkaBrokers:   getEnvList("KAFKA_BROKERS", nil),
		AnalyticsTopic: getEnv("ANALYTICS_TOPIC", "publishing-events"),
		Twitter: Twitter{
			APIBaseURL:   getEnv("TWITTER_API_BASE_URL", "https://api.twitter.com"),
			ClientID:     getEnv("TWITTER_CLIENT_ID", ""),
			ClientSecret: getEnv("TWITTER_CLIENT_SECRET", ""),
			TokenURL:     getEnv("TWITTER_TOKEN_URL", "https://api.twitter.com/2/oauth2/token"),
		},
		Engine: Engine{
			MaxConcurrentPublishes: getEnvInt("MAX_CONCURRENT_PUBLISHES", 5),
			QueueBatchSize:         getEnvInt("QUEUE_BATCH_SIZE", 50),
			RetryDelays:            getEnvMinutes("RETRY_DELAYS_MINUTES", []time.Duration{5 * time.Minute, 15 * time.Minute, 60 * time.Minute}),
			DefaultMaxRetries:      getEnvInt("DEFAULT_MAX_RETRIES", 3),
			PublishTimeout:         getEnvDuration("PUBLISH_TIMEOUT", 30*time.Second),
			StaleClaimAfter:        getEnvDuration("STALE_CLAIM_AFTER", 30*time.Minute),
			QueueInterval:          getEnv("QUEUE_INTERVAL", "@every 1m"),
			RateLimitSafetyMargin:  getEnvInt("RATE_LIMIT_SAFETY_MARGIN", 1),
			MaxBatchSchedule:       getEnvInt("MAX_BATCH_SCHEDULE", 50),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		slog.Info("invalid integer in environment, using default", "key", key, "value", value)
		return defaultValue
	}
	return n
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		slog.Info("invalid duration in environment, using default", "key", key, "value", value)
		return defaultValue
	}
	return d
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnvMinutes parses a comma separated list of minute counts, e.g. "5,15,60".
func getEnvMinutes(key string, defaultValue []time.Duration) []time.Duration {
	parts := getEnvList(key, nil)
	if len(parts) == 0 {
		return defaultValue
	}
	out := make([]time.Duration, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			slog.Info("invalid minute list in environment, using default", "key", key, "value", p)
			return defaultValue
		}
		out = append(out, time.Duration(n)*time.Minute)
	}
	return out
}
