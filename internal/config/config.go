package config

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Backend  BackendConfig
	Redis    RedisConfig
	Checkout CheckoutConfig
	Gateways GatewaysConfig
}

type ServerConfig struct {
	Port int
	Env  string // "development", "production"
}

// BackendConfig points at the storefront backend API that owns orders,
// gateway configuration and payment verification.
type BackendConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

type RedisConfig struct {
	Addr string
	Pass string
	DB   int
}

// CheckoutConfig bounds a purchase attempt and anchors redirect returns.
type CheckoutConfig struct {
	// ReturnURL is the static return target handed to gateway confirm calls
	// and hosted checkout pages.
	ReturnURL string
	// AttemptTTL is how long an attempt may sit in processing before the
	// sweeper cancels it.
	AttemptTTL time.Duration
	// MarkerTTL bounds the redirect-return correlation markers.
	MarkerTTL time.Duration
}

// GatewaysConfig carries the fixed SDK script URLs and API bases of the
// supported gateway families.
type GatewaysConfig struct {
	ElementSDKURL  string
	ElementAPIBase string
	DropInSDKURL   string
	DropInAPIBase  string
	DropInMode     string // "prod" or "demo"
}

// Load reads configuration from .env file and environment variables.
func Load() (*Config, error) {
	// Load .env file (ignore error if missing)
	_ = godotenv.Load()

	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("APP_PORT", 8080)
	viper.SetDefault("APP_ENV", "production")
	viper.SetDefault("BACKEND_TIMEOUT", "30s")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("CHECKOUT_ATTEMPT_TTL", "30m")
	viper.SetDefault("CHECKOUT_MARKER_TTL", "1h")
	viper.SetDefault("ELEMENT_SDK_URL", "https://js.payelement.example/v3/element.js")
	viper.SetDefault("ELEMENT_API_BASE", "https://api.payelement.example")
	viper.SetDefault("DROPIN_SDK_URL", "https://checkout.dropin.example/sdk.js")
	viper.SetDefault("DROPIN_API_BASE", "https://api.dropin.example")
	viper.SetDefault("DROPIN_MODE", "prod")

	cfg := &Config{
		Server: ServerConfig{
			Port: viper.GetInt("APP_PORT"),
			Env:  viper.GetString("APP_ENV"),
		},
		Backend: BackendConfig{
			BaseURL: viper.GetString("BACKEND_BASE_URL"),
			APIKey:  viper.GetString("BACKEND_API_KEY"),
			Timeout: durationOr("BACKEND_TIMEOUT", 30*time.Second),
		},
		Redis: RedisConfig{
			Addr: viper.GetString("REDIS_ADDR"),
			Pass: viper.GetString("REDIS_PASS"),
			DB:   viper.GetInt("REDIS_DB"),
		},
		Checkout: CheckoutConfig{
			ReturnURL:  viper.GetString("CHECKOUT_RETURN_URL"),
			AttemptTTL: durationOr("CHECKOUT_ATTEMPT_TTL", 30*time.Minute),
			MarkerTTL:  durationOr("CHECKOUT_MARKER_TTL", time.Hour),
		},
		Gateways: GatewaysConfig{
			ElementSDKURL:  viper.GetString("ELEMENT_SDK_URL"),
			ElementAPIBase: viper.GetString("ELEMENT_API_BASE"),
			DropInSDKURL:   viper.GetString("DROPIN_SDK_URL"),
			DropInAPIBase:  viper.GetString("DROPIN_API_BASE"),
			DropInMode:     viper.GetString("DROPIN_MODE"),
		},
	}

	if cfg.Backend.BaseURL == "" {
		log.Println("WARNING: BACKEND_BASE_URL is not set")
	}
	if cfg.Checkout.ReturnURL == "" {
		log.Println("WARNING: CHECKOUT_RETURN_URL is not set")
	}

	return cfg, nil
}

func durationOr(key string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(viper.GetString(key))
	if err != nil {
		return def
	}
	return d
}
