package common

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
	"strings"
)

type Config struct {
	ListenAddr  string `json:"listen_addr"`
	DatabaseURL string `json:"database_url"`

	RedisAddr     string `json:"redis_addr"`
	RedisPassword string `json:"redis_password"`
	RedisPrefix   string `json:"redis_prefix"`

	StripeSecretKey     string `json:"stripe_secret_key"`
	StripeWebhookSecret string `json:"stripe_webhook_secret"`

	JWTPrivateKey  string `json:"jwt_private_key"`
	JWTIssuer      string `json:"jwt_issuer"`
	JWTExpiryHours int    `json:"jwt_expiry_hours"`

	AdminAPIKey    string `json:"admin_api_key"`
	AdminAPISecret string `json:"admin_api_secret"`

	DefaultCurrency string `json:"default_currency"`
	SyncPageSize    int    `json:"sync_page_size"`
}

func LoadConfig(dir string) (*Config, error) {
	cfg := DefaultConfig()

	// Load config (JSON + env overrides)
	configPath := os.Getenv("CONFIG_FILE")
	if configPath == "" {
		configPath = DEFAULT_CONFIG_FILE
	}

	if !strings.HasPrefix(configPath, "/") && dir != "" {
		configPath = path.Join(dir, configPath)
	}

	if _, err := os.Stat(configPath); err == nil {
		fileCfg, err := LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
		cfg.applyConfigOverrides(fileCfg)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

func LoadConfigFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		f, err := os.Open(path)
		if err == nil {
			defer f.Close()
			dec := json.NewDecoder(f)
			_ = dec.Decode(&cfg) // ignore error, fallback to env/defaults
		}
	}
	return cfg, nil
}

func DefaultConfig() *Config {
	return &Config{
		ListenAddr:      DEFAULT_LISTEN_ADDR,
		RedisAddr:       DEFAULT_REDIS_ADDR,
		RedisPassword:   DEFAULT_REDIS_PASSWORD,
		RedisPrefix:     DEFAULT_REDIS_PREFIX,
		JWTIssuer:       DEFAULT_JWT_ISSUER,
		JWTExpiryHours:  DEFAULT_JWT_EXPIRY_HOURS,
		DefaultCurrency: DEFAULT_CURRENCY,
		SyncPageSize:    DEFAULT_SYNC_PAGE_SIZE,
	}
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		c.ListenAddr = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.RedisPassword = v
	}
	if v := os.Getenv("REDIS_PREFIX"); v != "" {
		c.RedisPrefix = v
	}
	if v := os.Getenv("STRIPE_SECRET_KEY"); v != "" {
		c.StripeSecretKey = v
	}
	if v := os.Getenv("STRIPE_WEBHOOK_SECRET"); v != "" {
		c.StripeWebhookSecret = v
	}
	if v := os.Getenv("JWT_PRIVATE_KEY"); v != "" {
		c.JWTPrivateKey = v
	}
	if v := os.Getenv("JWT_ISSUER"); v != "" {
		c.JWTIssuer = v
	}
	if v := os.Getenv("JWT_EXPIRY_HOURS"); v != "" {
		c.JWTExpiryHours = atoiOrDefault(v, c.JWTExpiryHours)
	}
	if v := os.Getenv("ADMIN_API_KEY"); v != "" {
		c.AdminAPIKey = v
	}
	if v := os.Getenv("ADMIN_API_SECRET"); v != "" {
		c.AdminAPISecret = v
	}
	if v := os.Getenv("DEFAULT_CURRENCY"); v != "" {
		c.DefaultCurrency = v
	}
	if v := os.Getenv("SYNC_PAGE_SIZE"); v != "" {
		c.SyncPageSize = atoiOrDefault(v, c.SyncPageSize)
	}
}

func (c *Config) applyConfigOverrides(cfg *Config) {
	if cfg.ListenAddr != "" {
		c.ListenAddr = cfg.ListenAddr
	}
	if cfg.DatabaseURL != "" {
		c.DatabaseURL = cfg.DatabaseURL
	}
	if cfg.RedisAddr != "" {
		c.RedisAddr = cfg.RedisAddr
	}
	if cfg.RedisPassword != "" {
		c.RedisPassword = cfg.RedisPassword
	}
	if cfg.RedisPrefix != "" {
		c.RedisPrefix = cfg.RedisPrefix
	}
	if cfg.StripeSecretKey != "" {
		c.StripeSecretKey = cfg.StripeSecretKey
	}
	if cfg.StripeWebhookSecret != "" {
		c.StripeWebhookSecret = cfg.StripeWebhookSecret
	}
	if cfg.JWTPrivateKey != "" {
		c.JWTPrivateKey = cfg.JWTPrivateKey
	}
	if cfg.JWTIssuer != "" {
		c.JWTIssuer = cfg.JWTIssuer
	}
	if cfg.JWTExpiryHours != 0 {
		c.JWTExpiryHours = cfg.JWTExpiryHours
	}
	if cfg.AdminAPIKey != "" {
		c.AdminAPIKey = cfg.AdminAPIKey
	}
	if cfg.AdminAPISecret != "" {
		c.AdminAPISecret = cfg.AdminAPISecret
	}
	if cfg.DefaultCurrency != "" {
		c.DefaultCurrency = cfg.DefaultCurrency
	}
	if cfg.SyncPageSize != 0 {
		c.SyncPageSize = cfg.SyncPageSize
	}
}

func atoiOrDefault(s string, def int) int {
	var n int
	_, err := fmt.Sscanf(s, "%d", &n)
	if err != nil {
		return def
	}
	return n
}
