// Package config reads process configuration from the environment, optionally
// seeded from a .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/satriahrh/cocoa-fruit/haggle/utils/log"
)

type Config struct {
	GoogleAPIKey string
	GeminiModel  string

	HTTPAddr      string
	JWTSecret     string
	APIKey        string
	APISecret     string
	MaxConcurrent int
	RateLimit     float64

	Product   string
	ListPrice float64
	CostFloor float64

	SentimentBackend string
	GeneratorTimeout time.Duration
	GeneratorRetries int
	SessionIdleTTL   time.Duration

	VoiceEnabled  bool
	VoiceLanguage string
}

const (
	SentimentLexicon = "lexicon"
	SentimentGemini  = "gemini"
)

// Load reads .env (if present) and the environment. Malformed values fall back to
// their defaults.
func Load() (Config, error) {
	_ = gotenv.Load()

	cfg := Config{
		GoogleAPIKey:     os.Getenv("GOOGLE_API_KEY"),
		GeminiModel:      getString("GEMINI_MODEL", "gemini-2.0-flash-001"),
		HTTPAddr:         getString("HTTP_ADDR", ":8080"),
		JWTSecret:        getString("JWT_SECRET", "change-me-in-production"),
		APIKey:           getString("API_KEY", "buyer"),
		APISecret:        getString("API_SECRET", "haggle"),
		MaxConcurrent:    getInt("MAX_CONCURRENT", 10),
		RateLimit:        getFloat("RATE_LIMIT", 20),
		Product:          getString("PRODUCT_NAME", "smartphone"),
		ListPrice:        getFloat("LIST_PRICE", 100),
		CostFloor:        getFloat("COST_FLOOR", 80),
		SentimentBackend: getString("SENTIMENT_BACKEND", SentimentLexicon),
		GeneratorTimeout: getDuration("GENERATOR_TIMEOUT", 20*time.Second),
		GeneratorRetries: getInt("GENERATOR_RETRIES", 2),
		SessionIdleTTL:   getDuration("SESSION_IDLE_TTL", 30*time.Minute),
		VoiceEnabled:     getBool("VOICE_ENABLED", false),
		VoiceLanguage:    getString("VOICE_LANGUAGE", "en-US"),
	}

	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.CostFloor < 0 {
		return fmt.Errorf("COST_FLOOR must not be negative, got %v", c.CostFloor)
	}
	if c.ListPrice <= c.CostFloor {
		return fmt.Errorf("LIST_PRICE (%v) must be greater than COST_FLOOR (%v)", c.ListPrice, c.CostFloor)
	}
	switch c.SentimentBackend {
	case SentimentLexicon, SentimentGemini:
	default:
		return fmt.Errorf("unknown SENTIMENT_BACKEND %q", c.SentimentBackend)
	}
	if c.GeneratorRetries < 0 {
		return fmt.Errorf("GENERATOR_RETRIES must not be negative, got %d", c.GeneratorRetries)
	}
	if c.MaxConcurrent < 1 {
		return fmt.Errorf("MAX_CONCURRENT must be at least 1, got %d", c.MaxConcurrent)
	}
	return nil
}

func getString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		warnDefault(key, v, err)
		return def
	}
	return n
}

func getFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		warnDefault(key, v, err)
		return def
	}
	return f
}

func getBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		warnDefault(key, v, err)
		return def
	}
	return b
}

func getDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		warnDefault(key, v, err)
		return def
	}
	return d
}

func warnDefault(key, value string, err error) {
	log.With(zap.String("key", key), zap.String("value", value)).
		Warn("invalid config value, using default", zap.Error(err))
}
