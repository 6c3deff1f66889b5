// File: internal/config/config.go
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"pawplan/internal/domain/delivery"
	"pawplan/internal/domain/pricing"
)

type RuntimeConfig struct {
	Dev bool
}

type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	PublicBaseURL   string        `yaml:"public_base_url"` // checkout success/cancel URLs are built from it
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL            string        `yaml:"url"`
	MaxConns       int32         `yaml:"max_conns"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"` // webhook event dedupe window
}

type StripeConfig struct {
	SecretKey     string `yaml:"secret_key"`
	WebhookSecret string `yaml:"webhook_secret"`
	Currency      string `yaml:"currency"`

	Breaker BreakerConfig `yaml:"breaker"`
}

type BreakerConfig struct {
	MaxRequests      uint32        `yaml:"max_requests"`
	Interval         time.Duration `yaml:"interval"`
	Timeout          time.Duration `yaml:"timeout"`
	FailureThreshold uint32        `yaml:"failure_threshold"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	Issuer    string `yaml:"issuer"`
}

type PricingConfig struct {
	Tiers                []pricing.Tier `yaml:"tiers"`
	TherapeuticSurcharge float64        `yaml:"therapeutic_surcharge"`
	QuoteRateLimit       int            `yaml:"quote_rate_limit"` // per client per minute
}

type DeliveryConfig struct {
	Areas []delivery.Area `yaml:"areas"`
}

type MaintenanceConfig struct {
	EmptyPlanAfter       time.Duration `yaml:"empty_plan_after"`
	CheckoutTimeout      time.Duration `yaml:"checkout_timeout"`
	CleanupInterval      time.Duration `yaml:"cleanup_interval"`
	CleanupBatch         int           `yaml:"cleanup_batch"`
	SyncInterval         time.Duration `yaml:"sync_interval"`
	SyncStaleAfter       time.Duration `yaml:"sync_stale_after"`
	SyncBatch            int           `yaml:"sync_batch"`
	NotificationWorkers  int           `yaml:"notification_workers"`
	NotificationQueueLen int           `yaml:"notification_queue"`
}

type NotifyConfig struct {
	AMQP struct {
		URL        string `yaml:"url"`
		Exchange   string `yaml:"exchange"`
		RoutingKey string `yaml:"routing_key"`
	} `yaml:"amqp"`
	Telegram struct {
		Token  string `yaml:"token"`
		ChatID int64  `yaml:"chat_id"`
	} `yaml:"telegram"`
}

type SecurityConfig struct {
	EncryptionKey string `yaml:"encryption_key"`
}

type Config struct {
	HTTP        HTTPConfig        `yaml:"http"`
	Log         LogConfig         `yaml:"log"`
	Database    DatabaseConfig    `yaml:"database"`
	Redis       RedisConfig       `yaml:"redis"`
	Stripe      StripeConfig      `yaml:"stripe"`
	Auth        AuthConfig        `yaml:"auth"`
	Pricing     PricingConfig     `yaml:"pricing"`
	Delivery    DeliveryConfig    `yaml:"delivery"`
	Maintenance MaintenanceConfig `yaml:"maintenance"`
	Notify      NotifyConfig      `yaml:"notify"`
	Security    SecurityConfig    `yaml:"security"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads -config and -dev from the command line.
func LoadConfig() (*Config, error) {
	var configPath string
	var dev bool
	flag.StringVar(&configPath, "config", "config.yaml", "path to config yaml")
	flag.BoolVar(&dev, "dev", false, "development mode")
	flag.Parse()
	return Load(configPath, dev)
}

// Load loads .env (if present), expands ${VAR} references in the YAML file and applies defaults.
func Load(path string, dev bool) (*Config, error) {
	_ = godotenv.Load()

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(b)
	if err != nil {
		return nil, err
	}
	cfg.Runtime.Dev = dev
	return cfg, nil
}

// Parse decodes YAML after environment expansion, then applies defaults and validation.
func Parse(b []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(b))), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(&cfg)

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Stripe.SecretKey == "" {
		return nil, errors.New("stripe.secret_key is required")
	}
	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("auth.jwt_secret is required")
	}
	if err := cfg.Pricing.TierTable().Validate(); err != nil {
		return nil, fmt.Errorf("pricing.tiers: %w", err)
	}
	if _, err := delivery.NewValidator(cfg.Delivery.Areas); err != nil {
		return nil, fmt.Errorf("delivery.areas: %w", err)
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.Database.ConnectTimeout <= 0 {
		cfg.Database.ConnectTimeout = 5 * time.Second
	}
	cfg.HTTP.ReadTimeout = orDefault(cfg.HTTP.ReadTimeout, 10*time.Second)
	cfg.HTTP.WriteTimeout = orDefault(cfg.HTTP.WriteTimeout, 15*time.Second)
	cfg.HTTP.RequestTimeout = orDefault(cfg.HTTP.RequestTimeout, 10*time.Second)
	cfg.HTTP.ShutdownTimeout = orDefault(cfg.HTTP.ShutdownTimeout, 10*time.Second)
	if cfg.HTTP.PublicBaseURL == "" {
		cfg.HTTP.PublicBaseURL = "http://localhost:8080"
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	cfg.Redis.TTL = orDefault(cfg.Redis.TTL, 24*time.Hour)

	if cfg.Stripe.Currency == "" {
		cfg.Stripe.Currency = "usd"
	}
	b := &cfg.Stripe.Breaker
	if b.MaxRequests == 0 {
		b.MaxRequests = 1
	}
	b.Interval = orDefault(b.Interval, time.Minute)
	b.Timeout = orDefault(b.Timeout, 30*time.Second)
	if b.FailureThreshold == 0 {
		b.FailureThreshold = 5
	}

	if len(cfg.Pricing.Tiers) == 0 {
		cfg.Pricing.Tiers = pricing.DefaultTiers()
	}
	if cfg.Pricing.TherapeuticSurcharge == 0 {
		cfg.Pricing.TherapeuticSurcharge = pricing.DefaultTherapeuticSurcharge
	}
	if cfg.Pricing.QuoteRateLimit <= 0 {
		cfg.Pricing.QuoteRateLimit = 60
	}
	if len(cfg.Delivery.Areas) == 0 {
		cfg.Delivery.Areas = delivery.DefaultAreas()
	}

	m := &cfg.Maintenance
	m.EmptyPlanAfter = orDefault(m.EmptyPlanAfter, 72*time.Hour)
	m.CheckoutTimeout = orDefault(m.CheckoutTimeout, 24*time.Hour)
	m.CleanupInterval = orDefault(m.CleanupInterval, time.Hour)
	m.SyncInterval = orDefault(m.SyncInterval, 15*time.Minute)
	m.SyncStaleAfter = orDefault(m.SyncStaleAfter, 6*time.Hour)
	if m.CleanupBatch <= 0 {
		m.CleanupBatch = 200
	}
	if m.SyncBatch <= 0 {
		m.SyncBatch = 100
	}
	if m.NotificationWorkers <= 0 {
		m.NotificationWorkers = 4
	}
	if m.NotificationQueueLen <= 0 {
		m.NotificationQueueLen = 256
	}
	if cfg.Notify.AMQP.Exchange == "" {
		cfg.Notify.AMQP.Exchange = "pawplan.notifications"
	}
	if cfg.Notify.AMQP.RoutingKey == "" {
		cfg.Notify.AMQP.RoutingKey = "customer.message"
	}
}

func (p PricingConfig) TierTable() pricing.TierTable { return pricing.TierTable(p.Tiers) }

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
