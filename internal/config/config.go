package config

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"surge/pkg/secrets"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Coinbase CoinbaseConfig `mapstructure:"coinbase"`
	Trading  TradingConfig  `mapstructure:"trading"`
	Journal  JournalConfig  `mapstructure:"journal"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	GCP      GCPConfig      `mapstructure:"gcp"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type CoinbaseConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	APIKey     string `mapstructure:"api_key"`
	APISecret  string `mapstructure:"api_secret"`
	Passphrase string `mapstructure:"passphrase"`

	// JWT authentication (newer API keys)
	AuthType      string `mapstructure:"auth_type"` // "legacy" or "jwt"
	APIKeyName    string `mapstructure:"api_key_name"`
	PrivateKeyPEM string `mapstructure:"private_key_pem"`

	Sandbox   bool            `mapstructure:"sandbox"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
}

type WebSocketConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	URL            string   `mapstructure:"url"`
	ReconnectDelay int      `mapstructure:"reconnect_delay"`
	MaxReconnects  int      `mapstructure:"max_reconnects"`
	Products       []string `mapstructure:"products"`
}

type TradingConfig struct {
	SpendAmount       float64 `mapstructure:"spend_amount"`
	PollInterval      int     `mapstructure:"poll_interval"`
	ScanInterval      int     `mapstructure:"scan_interval"`
	RateLimitInterval int     `mapstructure:"rate_limit_interval"`
	CandleGranularity int     `mapstructure:"candle_granularity"`
}

type JournalConfig struct {
	Dir string `mapstructure:"dir"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

type GCPConfig struct {
	ProjectID   string              `mapstructure:"project_id"`
	UseSecrets  bool                `mapstructure:"use_secrets"`
	SecretNames secrets.SecretNames `mapstructure:"secret_names"`
}

func Load(configPath string) (*Config, error) {
	// Pick up a local .env before viper reads the environment; missing file
	// is fine.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/surge")
	}

	v.SetEnvPrefix("SURGE")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; use defaults and environment
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	overrideFromEnv(&config)

	if config.GCP.UseSecrets && config.GCP.ProjectID != "" {
		ctx := context.Background()
		logger := logrus.New()
		if err := loadSecretsFromGCP(ctx, &config, logger); err != nil {
			return nil, fmt.Errorf("error loading secrets from GCP: %w", err)
		}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate rejects configurations the trader cannot start with. Credential
// problems are the one class of error that is fatal at startup.
func (c *Config) Validate() error {
	switch c.Coinbase.AuthType {
	case "legacy":
		if c.Coinbase.APIKey == "" || c.Coinbase.APISecret == "" || c.Coinbase.Passphrase == "" {
			return fmt.Errorf("legacy auth requires api_key, api_secret and passphrase")
		}
	case "jwt":
		if c.Coinbase.APIKeyName == "" || c.Coinbase.PrivateKeyPEM == "" {
			return fmt.Errorf("jwt auth requires api_key_name and private_key_pem")
		}
	default:
		return fmt.Errorf("unknown auth_type %q", c.Coinbase.AuthType)
	}

	if c.Trading.SpendAmount <= 0 {
		return fmt.Errorf("trading.spend_amount must be positive")
	}
	return nil
}

// SpendAmount returns the per-buy quote-currency spend as a decimal.
func (c *Config) SpendAmount() decimal.Decimal {
	return decimal.NewFromFloat(c.Trading.SpendAmount)
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Trading.PollInterval) * time.Second
}

func (c *Config) ScanInterval() time.Duration {
	return time.Duration(c.Trading.ScanInterval) * time.Second
}

func (c *Config) RateLimitInterval() time.Duration {
	return time.Duration(c.Trading.RateLimitInterval) * time.Second
}

func (c *Config) CandleGranularity() time.Duration {
	return time.Duration(c.Trading.CandleGranularity) * time.Second
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8080)

	// Coinbase defaults
	v.SetDefault("coinbase.base_url", "https://api.pro.coinbase.com")
	v.SetDefault("coinbase.auth_type", "legacy")
	v.SetDefault("coinbase.sandbox", false)
	v.SetDefault("coinbase.websocket.enabled", false)
	v.SetDefault("coinbase.websocket.url", "wss://ws-feed.exchange.coinbase.com")
	v.SetDefault("coinbase.websocket.reconnect_delay", 5)
	v.SetDefault("coinbase.websocket.max_reconnects", 10)

	// Trading defaults. The rate-limit interval is deliberately
	// conservative at 1s; 30s is the documented upper bound.
	v.SetDefault("trading.spend_amount", 100.0)
	v.SetDefault("trading.poll_interval", 1)
	v.SetDefault("trading.scan_interval", 60)
	v.SetDefault("trading.rate_limit_interval", 1)
	v.SetDefault("trading.candle_granularity", 300)

	// Journal defaults
	v.SetDefault("journal.dir", "./data")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.file", "")

	// GCP defaults
	v.SetDefault("gcp.use_secrets", false)
	v.SetDefault("gcp.project_id", "")

	secretNames := secrets.DefaultSecretNames()
	v.SetDefault("gcp.secret_names.api_key", secretNames.APIKey)
	v.SetDefault("gcp.secret_names.api_secret", secretNames.APISecret)
	v.SetDefault("gcp.secret_names.passphrase", secretNames.Passphrase)
	v.SetDefault("gcp.secret_names.api_key_name", secretNames.APIKeyName)
	v.SetDefault("gcp.secret_names.private_key", secretNames.PrivateKey)
}

func overrideFromEnv(config *Config) {
	if apiKey := os.Getenv("COINBASE_API_KEY"); apiKey != "" {
		config.Coinbase.APIKey = apiKey
	}
	if apiSecret := os.Getenv("COINBASE_API_SECRET"); apiSecret != "" {
		config.Coinbase.APISecret = apiSecret
	}
	if passphrase := os.Getenv("COINBASE_PASSPHRASE"); passphrase != "" {
		config.Coinbase.Passphrase = passphrase
	}

	if authType := os.Getenv("COINBASE_AUTH_TYPE"); authType != "" {
		config.Coinbase.AuthType = authType
	}
	if apiKeyName := os.Getenv("COINBASE_API_KEY_NAME"); apiKeyName != "" {
		config.Coinbase.APIKeyName = apiKeyName
	}
	if privateKey := os.Getenv("COINBASE_PRIVATE_KEY"); privateKey != "" {
		config.Coinbase.PrivateKeyPEM = privateKey
	}

	if projectID := os.Getenv("GCP_PROJECT_ID"); projectID != "" {
		config.GCP.ProjectID = projectID
	}
	if useSecrets := os.Getenv("GCP_USE_SECRETS"); useSecrets == "true" {
		config.GCP.UseSecrets = true
	}
}

func loadSecretsFromGCP(ctx context.Context, config *Config, logger *logrus.Logger) error {
	secretManager, err := secrets.NewGCPSecretManager(ctx, config.GCP.ProjectID, logger)
	if err != nil {
		return fmt.Errorf("failed to create secret manager: %w", err)
	}
	defer secretManager.Close()

	// Only load secrets that are not already set
	if config.Coinbase.APIKey == "" {
		config.Coinbase.APIKey = secretManager.GetSecretWithDefault(ctx,
			config.GCP.SecretNames.APIKey, "")
	}
	if config.Coinbase.APISecret == "" {
		config.Coinbase.APISecret = secretManager.GetSecretWithDefault(ctx,
			config.GCP.SecretNames.APISecret, "")
	}
	if config.Coinbase.Passphrase == "" {
		config.Coinbase.Passphrase = secretManager.GetSecretWithDefault(ctx,
			config.GCP.SecretNames.Passphrase, "")
	}
	if config.Coinbase.APIKeyName == "" {
		config.Coinbase.APIKeyName = secretManager.GetSecretWithDefault(ctx,
			config.GCP.SecretNames.APIKeyName, "")
	}
	if config.Coinbase.PrivateKeyPEM == "" {
		config.Coinbase.PrivateKeyPEM = secretManager.GetSecretWithDefault(ctx,
			config.GCP.SecretNames.PrivateKey, "")
	}

	logger.Info("Successfully loaded secrets from GCP Secret Manager")
	return nil
}
