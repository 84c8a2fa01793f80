// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const defaultJWTSecret = "your-secret-key-change-in-production"

type Config struct {
	Environment string
	Server      ServerConfig
	Database    DatabaseConfig
	JWT         JWTConfig
	Redis       RedisConfig
	Storage     StorageConfig
	API         APIConfig
	Cart        CartConfig
	Pricing     PricingConfig
	Log         LogConfig
	I18n        I18nConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	ReadTimeout  int
	WriteTimeout int
	IdleTimeout  int
	RateLimit    float64 // requests per second per client IP
	RateBurst    int
	CORSOrigins  []string
}

type DatabaseConfig struct {
	Driver       string // postgres or sqlite
	Host         string
	Port         string
	User         string
	Password     string
	Database     string
	SSLMode      string
	Path         string // sqlite file
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  int
	LogLevel     string
	SeedCatalog  bool
}

type JWTConfig struct {
	SecretKey      string
	AccessTokenTTL int // in hours
	Issuer         string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// StorageConfig selects where the guest cart slot lives.
type StorageConfig struct {
	Driver    string // sqlite, redis or memory
	Path      string
	Namespace string
	RedisTTL  time.Duration
}

// APIConfig points the engine at the remote cart API.
type APIConfig struct {
	BaseURL   string
	Timeout   time.Duration
	RateLimit float64 // outbound requests per second, 0 disables throttling
	RateBurst int
}

type CartConfig struct {
	MaxQuantity     int
	StorageKey      string
	TokenKey        string
	GuestTTL        time.Duration
	CacheTTL        time.Duration
	CouponMaxLength int
}

type PricingConfig struct {
	FreeShippingThreshold float64 `yaml:"free_shipping_threshold"`
	BaseShippingCost      float64 `yaml:"base_shipping_cost"`
	TaxRate               float64 `yaml:"tax_rate"`
}

type LogConfig struct {
	Level  string
	Format string // text or json
}

type I18nConfig struct {
	DefaultLocale string
}

func Load() (*Config, error) {
	// Load .env file if it exists
	godotenv.Load()

	config := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			Host:         getEnv("SERVER_HOST", "localhost"),
			ReadTimeout:  getEnvAsInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout: getEnvAsInt("SERVER_WRITE_TIMEOUT", 15),
			IdleTimeout:  getEnvAsInt("SERVER_IDLE_TIMEOUT", 60),
			RateLimit:    getEnvAsFloat("SERVER_RATE_LIMIT", 10),
			RateBurst:    getEnvAsInt("SERVER_RATE_BURST", 20),
			CORSOrigins:  getEnvAsList("CORS_ORIGINS", []string{"http://localhost:3000"}),
		},
		Database: DatabaseConfig{
			Driver:       getEnv("DB_DRIVER", "postgres"),
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", ""),
			Database:     getEnv("DB_NAME", "storefront_cart"),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
			Path:         getEnv("DB_PATH", "./data/backend.db"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  getEnvAsInt("DB_MAX_LIFETIME", 300),
			LogLevel:     getEnv("DB_LOG_LEVEL", "silent"),
			SeedCatalog:  getEnvAsBool("DB_SEED_CATALOG", true),
		},
		JWT: JWTConfig{
			SecretKey:      getEnv("JWT_SECRET", defaultJWTSecret),
			AccessTokenTTL: getEnvAsInt("JWT_ACCESS_TTL", 24), // 24 hours
			Issuer:         getEnv("JWT_ISSUER", "storefront"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Storage: StorageConfig{
			Driver:    getEnv("STORAGE_DRIVER", "sqlite"),
			Path:      getEnv("STORAGE_PATH", "./data/cart.db"),
			Namespace: getEnv("STORAGE_NAMESPACE", ""),
			RedisTTL:  getEnvAsDuration("STORAGE_REDIS_TTL", 7*24*time.Hour),
		},
		API: APIConfig{
			BaseURL:   strings.TrimRight(getEnv("CART_API_URL", "http://localhost:8080/v1"), "/"),
			Timeout:   getEnvAsDuration("CART_API_TIMEOUT", 10*time.Second),
			RateLimit: getEnvAsFloat("CART_API_RATE_LIMIT", 5),
			RateBurst: getEnvAsInt("CART_API_RATE_BURST", 10),
		},
		Cart: CartConfig{
			MaxQuantity:     getEnvAsInt("CART_MAX_QUANTITY", 99),
			StorageKey:      getEnv("CART_STORAGE_KEY", "cart:guest"),
			TokenKey:        getEnv("CART_TOKEN_KEY", "auth:token"),
			GuestTTL:        getEnvAsDuration("CART_GUEST_TTL", 7*24*time.Hour),
			CacheTTL:        getEnvAsDuration("CART_CACHE_TTL", 5*time.Minute),
			CouponMaxLength: getEnvAsInt("CART_COUPON_MAX_LENGTH", 20),
		},
		Pricing: PricingConfig{
			FreeShippingThreshold: getEnvAsFloat("PRICING_FREE_SHIPPING_THRESHOLD", 150000),
			BaseShippingCost:      getEnvAsFloat("PRICING_BASE_SHIPPING_COST", 15000),
			TaxRate:               getEnvAsFloat("PRICING_TAX_RATE", 19),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
		I18n: I18nConfig{
			DefaultLocale: getEnv("DEFAULT_LOCALE", "en"),
		},
	}

	if path := os.Getenv("PRICING_FILE"); path != "" {
		pricing, err := LoadPricingFile(path, config.Pricing)
		if err != nil {
			return nil, err
		}
		config.Pricing = pricing
	}

	return config, config.Validate()
}

func (c *Config) Validate() error {
	if c.JWT.SecretKey == defaultJWTSecret && c.Environment == "production" {
		return fmt.Errorf("JWT secret key must be changed in production")
	}

	if c.Database.Driver == "postgres" && c.Database.Password == "" && c.Environment == "production" {
		return fmt.Errorf("database password is required in production")
	}

	if c.Cart.MaxQuantity < 1 {
		return fmt.Errorf("cart max quantity must be positive, got %d", c.Cart.MaxQuantity)
	}

	if c.Cart.StorageKey == "" || c.Cart.StorageKey == c.Cart.TokenKey {
		return fmt.Errorf("cart storage key must be set and differ from the token key")
	}

	if c.Pricing.TaxRate < 0 || c.Pricing.TaxRate > 100 {
		return fmt.Errorf("tax rate must be within 0-100, got %v", c.Pricing.TaxRate)
	}

	if c.Pricing.BaseShippingCost < 0 || c.Pricing.FreeShippingThreshold < 0 {
		return fmt.Errorf("shipping amounts cannot be negative")
	}

	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(strings.ToLower(value)); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
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
