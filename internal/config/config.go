package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServiceName string
	Env         string
	HTTPAddr    string

	MongoURI       string
	MongoDB        string
	RedisAddr      string
	JWTSecret      string
	Razorpay       RazorpayConfig
	GatewayTimeout time.Duration
}

// RazorpayConfig carries the environment-level gateway credentials.
// Empty values fall through to the persisted site settings document.
type RazorpayConfig struct {
	KeyID     string
	KeySecret string
	BaseURL   string
}

// Load reads configuration from the environment, consulting an optional
// .env file first so local runs do not need exported variables.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		ServiceName: getenv("SERVICE_NAME", "storefront"),
		Env:         getenv("ENV", "dev"),
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),
		MongoURI:    getenv("MONGO_URI", "mongodb://127.0.0.1:27017"),
		MongoDB:     getenv("MONGO_DB", "storefront"),
		RedisAddr:   getenv("REDIS_ADDR", "127.0.0.1:6379"),
		JWTSecret:   getenv("JWT_SECRET", "storefront-secret"),
		Razorpay: RazorpayConfig{
			KeyID:     os.Getenv("RAZORPAY_KEY_ID"),
			KeySecret: os.Getenv("RAZORPAY_KEY_SECRET"),
			BaseURL:   getenv("RAZORPAY_BASE_URL", "https://api.razorpay.com/v1"),
		},
		GatewayTimeout: getenvSeconds("GATEWAY_TIMEOUT_SECONDS", 10),
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// getenvSeconds reads an integer second count and returns it as a duration.
func getenvSeconds(k string, def int) time.Duration {
	n := def
	if v := os.Getenv(k); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			n = parsed
		}
	}
	return time.Duration(n) * time.Second
}
