package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	API        APIConfig        `yaml:"api"`
	Web        WebConfig        `yaml:"web"`
	Database   DatabaseConfig   `yaml:"database"`
	NATS       NATSConfig       `yaml:"nats"`
	JWT        JWTConfig        `yaml:"jwt"`
	Log        LogConfig        `yaml:"log"`
	Payment    PaymentConfig    `yaml:"payment"`
	Router     RouterConfig     `yaml:"router"`
	Plans      []PlanConfig     `yaml:"plans"`
	Encryption EncryptionConfig `yaml:"encryption"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// APIConfig represents API configuration
type APIConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// WebConfig represents dashboard/portal static file configuration
type WebConfig struct {
	StaticDir string `yaml:"static_dir"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// NATSConfig represents NATS configuration
type NATSConfig struct {
	URL               string        `yaml:"url"`
	Username          string        `yaml:"username"`
	Password          string        `yaml:"password"`
	MaxReconnects     int           `yaml:"max_reconnects"`
	ReconnectInterval time.Duration `yaml:"reconnect_interval"`
}

// JWTConfig represents JWT configuration
type JWTConfig struct {
	Secret          string        `yaml:"secret"`
	AccessTokenTTL  time.Duration `yaml:"access_token_ttl"`
	RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// PaymentConfig represents payment provider and sweep configuration
type PaymentConfig struct {
	// PendingTimeout is how long a payment may stay PENDING before the
	// background sweep marks it FAILED.
	PendingTimeout time.Duration `yaml:"pending_timeout"`
	SweepInterval  time.Duration `yaml:"sweep_interval"`

	MTN    MTNConfig    `yaml:"mtn"`
	Airtel AirtelConfig `yaml:"airtel"`
}

// MTNConfig represents MTN MoMo collection API credentials
type MTNConfig struct {
	APIURL          string `yaml:"api_url"`
	SubscriptionKey string `yaml:"subscription_key"`
	APIUserID       string `yaml:"api_user_id"`
	APIKey          string `yaml:"api_key"`
	TargetEnv       string `yaml:"target_env"`
	CallbackURL     string `yaml:"callback_url"`
}

// AirtelConfig represents Airtel Money API credentials
type AirtelConfig struct {
	APIURL       string `yaml:"api_url"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	Country      string `yaml:"country"`
}

// RouterConfig represents router provisioning configuration
type RouterConfig struct {
	// Mode selects the provisioner variant at startup: "live" or "simulator".
	// The variant is never switched at call time.
	Mode string `yaml:"mode"`

	DefaultPort    int           `yaml:"default_port"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`

	RetryAttempts int           `yaml:"retry_attempts"`
	RetryBackoff  time.Duration `yaml:"retry_backoff"`

	// EnforceCapacity rejects provisioning when a zone is at max_users.
	// Off by default: max_users is a soft limit unless enabled.
	EnforceCapacity bool `yaml:"enforce_capacity"`
}

// PlanConfig represents one purchasable access tier
type PlanConfig struct {
	ID              string `yaml:"id"`
	Name            string `yaml:"name"`
	Description     string `yaml:"description"`
	DurationMinutes int    `yaml:"duration_minutes"`
	Price           int64  `yaml:"price"`
	Currency        string `yaml:"currency"`
	Popular         bool   `yaml:"popular"`
}

// EncryptionConfig holds the key used to encrypt router credentials at rest
type EncryptionConfig struct {
	// Key is a hex-encoded 32-byte AES key
	Key string `yaml:"key"`
}

// Load loads configuration from file
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.applyEnvOverrides()
	cfg.setDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyEnvOverrides applies environment variable overrides
func (c *Config) applyEnvOverrides() {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		c.Database.DSN = dsn
	}

	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		c.NATS.URL = natsURL
	}

	if jwtSecret := os.Getenv("JWT_SECRET"); jwtSecret != "" {
		c.JWT.Secret = jwtSecret
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		c.Log.Level = logLevel
	}

	if mode := os.Getenv("ROUTER_MODE"); mode != "" {
		c.Router.Mode = mode
	}

	if key := os.Getenv("MTN_SUBSCRIPTION_KEY"); key != "" {
		c.Payment.MTN.SubscriptionKey = key
	}
	if id := os.Getenv("MTN_API_USER_ID"); id != "" {
		c.Payment.MTN.APIUserID = id
	}
	if key := os.Getenv("MTN_API_KEY"); key != "" {
		c.Payment.MTN.APIKey = key
	}

	if id := os.Getenv("AIRTEL_CLIENT_ID"); id != "" {
		c.Payment.Airtel.ClientID = id
	}
	if secret := os.Getenv("AIRTEL_CLIENT_SECRET"); secret != "" {
		c.Payment.Airtel.ClientSecret = secret
	}

	if key := os.Getenv("ENCRYPTION_KEY"); key != "" {
		c.Encryption.Key = key
	}
}

// setDefaults fills in defaults for unset values
func (c *Config) setDefaults() {
	if c.API.Port == 0 {
		c.API.Port = 8080
	}

	if c.Payment.PendingTimeout == 0 {
		c.Payment.PendingTimeout = 10 * time.Minute
	}
	if c.Payment.SweepInterval == 0 {
		c.Payment.SweepInterval = time.Minute
	}
	if c.Payment.MTN.TargetEnv == "" {
		c.Payment.MTN.TargetEnv = "sandbox"
	}
	if c.Payment.Airtel.Country == "" {
		c.Payment.Airtel.Country = "UG"
	}

	if c.Router.Mode == "" {
		c.Router.Mode = "simulator"
	}
	if c.Router.DefaultPort == 0 {
		c.Router.DefaultPort = 8728
	}
	if c.Router.ConnectTimeout == 0 {
		c.Router.ConnectTimeout = 5 * time.Second
	}
	if c.Router.RetryAttempts == 0 {
		c.Router.RetryAttempts = 3
	}
	if c.Router.RetryBackoff == 0 {
		c.Router.RetryBackoff = 500 * time.Millisecond
	}
}

// validate checks configuration consistency
func (c *Config) validate() error {
	switch c.Router.Mode {
	case "live", "simulator":
	default:
		return fmt.Errorf("invalid router mode: %s", c.Router.Mode)
	}

	if c.Encryption.Key != "" {
		key, err := hex.DecodeString(c.Encryption.Key)
		if err != nil {
			return fmt.Errorf("encryption key is not valid hex: %w", err)
		}
		if len(key) != 32 {
			return fmt.Errorf("encryption key must be 32 bytes, got %d", len(key))
		}
	}

	seen := make(map[string]bool, len(c.Plans))
	for _, p := range c.Plans {
		if p.ID == "" {
			return fmt.Errorf("plan with empty id")
		}
		if seen[p.ID] {
			return fmt.Errorf("duplicate plan id: %s", p.ID)
		}
		seen[p.ID] = true
		if p.DurationMinutes <= 0 {
			return fmt.Errorf("plan %s: duration must be positive", p.ID)
		}
		if p.Price < 0 {
			return fmt.Errorf("plan %s: negative price", p.ID)
		}
	}

	return nil
}

// EncryptionKey returns the decoded AES key, or nil if unset
func (c *Config) EncryptionKey() []byte {
	if c.Encryption.Key == "" {
		return nil
	}
	key, err := hex.DecodeString(c.Encryption.Key)
	if err != nil {
		return nil
	}
	return key
}
