package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

const (
	EnvPrefix = "STOREFRONT"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv             = "STOREFRONT_APP_ENV"
	EnvPort               = "STOREFRONT_APP_PORT"
	EnvLogLevel           = "STOREFRONT_LOG_LEVEL"
	EnvBackendURL         = "STOREFRONT_BACKEND_BASE_URL"
	EnvBackendTimeout     = "STOREFRONT_BACKEND_TIMEOUT"
	EnvStorageDriver      = "STOREFRONT_STORAGE_DRIVER"
	EnvRedisURL           = "STOREFRONT_REDIS_URL"
	EnvFreeShipping       = "STOREFRONT_PRICING_FREE_SHIPPING_THRESHOLD"
	EnvFlatShipping       = "STOREFRONT_PRICING_FLAT_SHIPPING"
	EnvCoupons            = "STOREFRONT_COUPONS"
	EnvSyncEnabled        = "STOREFRONT_SYNC_ENABLED"
	EnvEventsBrokers      = "STOREFRONT_EVENTS_BROKERS"
	EnvEventsTopic        = "STOREFRONT_EVENTS_TOPIC"
	EnvCouponAttemptLimit = "STOREFRONT_COUPON_ATTEMPT_LIMIT"

	StorageDriverRedis  = "redis"
	StorageDriverMemory = "memory"
)

type Config struct {
	App     AppConfig
	Backend BackendConfig
	Storage StorageConfig
	Redis   RedisConfig
	Pricing PricingConfig
	Coupons CouponConfig
	Sync    SyncConfig
	Events  EventsConfig
	HTTP    HTTPConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if _, err := url.ParseRequestURI(c.Backend.BaseURL); err != nil {
		return fmt.Errorf("invalid %s: %w", EnvBackendURL, err)
	}
	switch strings.ToLower(c.Storage.Driver) {
	case StorageDriverRedis:
		if c.Redis.URL == "" && c.Redis.Address == "" {
			return fmt.Errorf("%s is required when storage driver is redis", EnvRedisURL)
		}
	case StorageDriverMemory:
	default:
		return fmt.Errorf("invalid %s %q", EnvStorageDriver, c.Storage.Driver)
	}
	if _, err := c.Pricing.FreeShippingThreshold(); err != nil {
		return err
	}
	if _, err := c.Pricing.FlatShipping(); err != nil {
		return err
	}
	if c.Events.Enabled() && strings.TrimSpace(c.Events.Topic) == "" {
		return fmt.Errorf("%s is required when brokers are configured", EnvEventsTopic)
	}
	return nil
}

type AppConfig struct {
	Env          string `envconfig:"STOREFRONT_APP_ENV" default:"dev"`
	Port         string `envconfig:"STOREFRONT_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"STOREFRONT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"STOREFRONT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// BackendConfig points at the external storefront REST API.
type BackendConfig struct {
	BaseURL string        `envconfig:"STOREFRONT_BACKEND_BASE_URL" default:"http://localhost:3001/api"`
	Timeout time.Duration `envconfig:"STOREFRONT_BACKEND_TIMEOUT" default:"10s"`

	BreakerMaxRequests      uint32        `envconfig:"STOREFRONT_BACKEND_BREAKER_MAX_REQUESTS" default:"1"`
	BreakerInterval         time.Duration `envconfig:"STOREFRONT_BACKEND_BREAKER_INTERVAL" default:"60s"`
	BreakerTimeout          time.Duration `envconfig:"STOREFRONT_BACKEND_BREAKER_TIMEOUT" default:"30s"`
	BreakerFailureThreshold uint32        `envconfig:"STOREFRONT_BACKEND_BREAKER_FAILURES" default:"5"`
}

type StorageConfig struct {
	Driver     string        `envconfig:"STOREFRONT_STORAGE_DRIVER" default:"memory"`
	SessionTTL time.Duration `envconfig:"STOREFRONT_STORAGE_SESSION_TTL" default:"720h"`
}

type RedisConfig struct {
	URL          string        `envconfig:"STOREFRONT_REDIS_URL"`
	Address      string        `envconfig:"STOREFRONT_REDIS_ADDR"`
	Password     string        `envconfig:"STOREFRONT_REDIS_PASSWORD"`
	DB           int           `envconfig:"STOREFRONT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STOREFRONT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STOREFRONT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STOREFRONT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type PricingConfig struct {
	FreeShippingThresholdRaw string `envconfig:"STOREFRONT_PRICING_FREE_SHIPPING_THRESHOLD" default:"500.00"`
	FlatShippingRaw          string `envconfig:"STOREFRONT_PRICING_FLAT_SHIPPING" default:"29.90"`
	Locale                   string `envconfig:"STOREFRONT_PRICING_LOCALE" default:"pt-BR"`
	CurrencySymbol           string `envconfig:"STOREFRONT_PRICING_CURRENCY_SYMBOL" default:"R$"`
}

// FreeShippingThreshold returns the subtotal above which shipping is waived.
func (p PricingConfig) FreeShippingThreshold() (decimal.Decimal, error) {
	return parseMoney(EnvFreeShipping, p.FreeShippingThresholdRaw)
}

// FlatShipping returns the shipping fee charged below the threshold.
func (p PricingConfig) FlatShipping() (decimal.Decimal, error) {
	return parseMoney(EnvFlatShipping, p.FlatShippingRaw)
}

func parseMoney(name, raw string) (decimal.Decimal, error) {
	value, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s: %w", name, err)
	}
	if value.IsNegative() {
		return decimal.Zero, fmt.Errorf("%s must not be negative", name)
	}
	return value, nil
}

// CouponConfig holds the coupon table as CODE:kind:value entries.
type CouponConfig struct {
	Table        []string      `envconfig:"STOREFRONT_COUPONS" default:"GOLD10:percentage:0.10,SAVE50:fixed:50"`
	AttemptLimit int           `envconfig:"STOREFRONT_COUPON_ATTEMPT_LIMIT" default:"10"`
	AttemptWin   time.Duration `envconfig:"STOREFRONT_COUPON_ATTEMPT_WINDOW" default:"10m"`
}

type SyncConfig struct {
	Enabled bool `envconfig:"STOREFRONT_SYNC_ENABLED" default:"false"`
}

type EventsConfig struct {
	Brokers      []string      `envconfig:"STOREFRONT_EVENTS_BROKERS"`
	Topic        string        `envconfig:"STOREFRONT_EVENTS_TOPIC" default:"storefront.checkout"`
	BatchTimeout time.Duration `envconfig:"STOREFRONT_EVENTS_BATCH_TIMEOUT" default:"10ms"`
}

// Enabled reports whether a broker list was supplied.
func (e EventsConfig) Enabled() bool {
	for _, broker := range e.Brokers {
		if strings.TrimSpace(broker) != "" {
			return true
		}
	}
	return false
}

// HTTPConfig covers the browser-facing surface: allowed origins, the session
// cookie and the throttles on the auth endpoints.
type HTTPConfig struct {
	CORSOrigins     []string      `envconfig:"STOREFRONT_HTTP_CORS_ORIGINS" default:"http://localhost:5173,http://localhost:3000"`
	SecureCookies   bool          `envconfig:"STOREFRONT_HTTP_SECURE_COOKIES" default:"false"`
	AuthLimitWindow time.Duration `envconfig:"STOREFRONT_HTTP_AUTH_LIMIT_WINDOW" default:"1m"`
	AuthLimitIP     int           `envconfig:"STOREFRONT_HTTP_AUTH_LIMIT_IP" default:"20"`
	AuthLimitEmail  int           `envconfig:"STOREFRONT_HTTP_AUTH_LIMIT_EMAIL" default:"5"`
	ShutdownTimeout time.Duration `envconfig:"STOREFRONT_HTTP_SHUTDOWN_TIMEOUT" default:"15s"`
}
