package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// FileEnv names an optional YAML file loaded before the environment.
const FileEnv = "PAPERTRADE_CONFIG"

type Config struct {
	// Trading backend
	APIBaseURL        string  `yaml:"api_base_url"`
	APITimeoutSeconds int     `yaml:"api_timeout_seconds"`
	APIRateLimitRPS   float64 `yaml:"api_rate_limit_rps"`
	APIRetryAttempts  int     `yaml:"api_retry_attempts"`

	// Local API
	ListenPort      int    `yaml:"listen_port"`
	LocalAPIKey     string `yaml:"local_api_key"`
	CORSAllowOrigin string `yaml:"cors_allow_origin"`

	// Orders
	ConfirmationWindowSeconds int     `yaml:"confirmation_window_seconds"`
	MaxOrderValue             float64 `yaml:"max_order_value"`
	MaxDailyOrders            int     `yaml:"max_daily_orders"`

	// Dashboard
	RefreshIntervalSeconds int `yaml:"refresh_interval_seconds"`

	// Credential store
	CredentialStore   string `yaml:"credential_store"`
	RedisAddr         string `yaml:"redis_addr"`
	RedisPassword     string `yaml:"redis_password"`
	RedisDB           int    `yaml:"redis_db"`
	SessionTTLMinutes int    `yaml:"session_ttl_minutes"`

	// Journal
	JournalEnabled bool   `yaml:"journal_enabled"`
	DBHost         string `yaml:"db_host"`
	DBPort         int    `yaml:"db_port"`
	DBName         string `yaml:"db_name"`
	DBUser         string `yaml:"db_user"`
	DBPassword     string `yaml:"db_password"`

	// Notifications
	WebhookURL string `yaml:"webhook_url"`
	BotName    string `yaml:"bot_name"`

	// Logging
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Source is the YAML file that was loaded, if any.
	Source string `yaml:"-"`
}

func defaults() *Config {
	return &Config{
		APIBaseURL:                "http://localhost:8080/api",
		APITimeoutSeconds:         10,
		APIRateLimitRPS:           10,
		APIRetryAttempts:          1,
		ListenPort:                3001,
		CORSAllowOrigin:           "*",
		ConfirmationWindowSeconds: 60,
		RefreshIntervalSeconds:    30,
		CredentialStore:           "memory",
		RedisAddr:                 "localhost:6379",
		SessionTTLMinutes:         60,
		DBHost:                    "localhost",
		DBPort:                    5432,
		DBName:                    "trahn_papertrade",
		BotName:                   "TrahnPaperTrade",
		LogLevel:                  "info",
		LogFormat:                 "console",
	}
}

// Load reads .env, then the optional YAML file named by PAPERTRADE_CONFIG,
// then applies environment variable overrides.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return LoadFile(os.Getenv(FileEnv))
}

// LoadFile is Load without the .env step; path may be empty.
func LoadFile(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
		cfg.Source = path
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.APIBaseURL = envStr("API_BASE_URL", c.APIBaseURL)
	c.APITimeoutSeconds = envInt("API_TIMEOUT_SECONDS", c.APITimeoutSeconds)
	c.APIRateLimitRPS = envFloat("API_RATE_LIMIT_RPS", c.APIRateLimitRPS)
	c.APIRetryAttempts = envInt("API_RETRY_ATTEMPTS", c.APIRetryAttempts)

	c.ListenPort = envInt("LISTEN_PORT", c.ListenPort)
	c.LocalAPIKey = envStr("LOCAL_API_KEY", c.LocalAPIKey)
	c.CORSAllowOrigin = envStr("CORS_ALLOW_ORIGIN", c.CORSAllowOrigin)

	c.ConfirmationWindowSeconds = envInt("CONFIRMATION_WINDOW_SECONDS", c.ConfirmationWindowSeconds)
	c.MaxOrderValue = envFloat("MAX_ORDER_VALUE", c.MaxOrderValue)
	c.MaxDailyOrders = envInt("MAX_DAILY_ORDERS", c.MaxDailyOrders)

	c.RefreshIntervalSeconds = envInt("REFRESH_INTERVAL_SECONDS", c.RefreshIntervalSeconds)

	c.CredentialStore = strings.ToLower(envStr("CREDENTIAL_STORE", c.CredentialStore))
	c.RedisAddr = envStr("REDIS_ADDR", c.RedisAddr)
	c.RedisPassword = envStr("REDIS_PASSWORD", c.RedisPassword)
	c.RedisDB = envInt("REDIS_DB", c.RedisDB)
	c.SessionTTLMinutes = envInt("SESSION_TTL_MINUTES", c.SessionTTLMinutes)

	c.JournalEnabled = envBool("JOURNAL_ENABLED", c.JournalEnabled)
	c.DBHost = envStr("DB_HOST", c.DBHost)
	c.DBPort = envInt("DB_PORT", c.DBPort)
	c.DBName = envStr("DB_NAME", c.DBName)
	c.DBUser = envStr("DB_USER", c.DBUser)
	c.DBPassword = envStr("DB_PASSWORD", c.DBPassword)

	c.WebhookURL = envStr("WEBHOOK_URL", c.WebhookURL)
	c.BotName = envStr("BOT_NAME", c.BotName)

	c.LogLevel = envStr("LOG_LEVEL", c.LogLevel)
	c.LogFormat = envStr("LOG_FORMAT", c.LogFormat)
}

func (c *Config) Validate() error {
	var errs []error

	if u, err := url.Parse(c.APIBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("API_BASE_URL %q is not an absolute URL", c.APIBaseURL))
	}
	if c.APITimeoutSeconds <= 0 {
		errs = append(errs, errors.New("API_TIMEOUT_SECONDS must be positive"))
	}
	if c.APIRetryAttempts < 1 {
		errs = append(errs, errors.New("API_RETRY_ATTEMPTS must be at least 1"))
	}
	if c.ListenPort <= 0 || c.ListenPort > 65535 {
		errs = append(errs, fmt.Errorf("LISTEN_PORT %d out of range", c.ListenPort))
	}
	if c.ConfirmationWindowSeconds <= 0 {
		errs = append(errs, errors.New("CONFIRMATION_WINDOW_SECONDS must be positive"))
	}
	if c.MaxOrderValue < 0 {
		errs = append(errs, errors.New("MAX_ORDER_VALUE must not be negative"))
	}
	if c.RefreshIntervalSeconds <= 0 {
		errs = append(errs, errors.New("REFRESH_INTERVAL_SECONDS must be positive"))
	}
	switch c.CredentialStore {
	case "memory":
	case "redis":
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("REDIS_ADDR is required when CREDENTIAL_STORE=redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("CREDENTIAL_STORE %q must be memory or redis", c.CredentialStore))
	}
	if c.JournalEnabled && c.DBUser == "" {
		errs = append(errs, errors.New("DB_USER is required when JOURNAL_ENABLED=true"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed: %w", errors.Join(errs...))
	}
	return nil
}

// Warnings lists settings that are allowed but probably unintended.
func (c *Config) Warnings() []string {
	var w []string
	if c.LocalAPIKey == "" {
		w = append(w, "LOCAL_API_KEY not set, local API has no authentication")
	}
	if c.APIRetryAttempts > 1 {
		w = append(w, "API_RETRY_ATTEMPTS > 1, GET requests to the trading service will be retried")
	}
	if c.MaxOrderValue == 0 && c.MaxDailyOrders == 0 {
		w = append(w, "MAX_ORDER_VALUE and MAX_DAILY_ORDERS are both 0, only balance checks apply")
	}
	if c.MaxDailyOrders > 0 && !c.JournalEnabled {
		w = append(w, "MAX_DAILY_ORDERS needs JOURNAL_ENABLED=true to count orders, limit inactive")
	}
	return w
}

func (c *Config) Print() {
	fmt.Println("=== Paper Trading Client Configuration ===")
	if c.Source != "" {
		fmt.Printf("Config file: %s\n", c.Source)
	}
	fmt.Printf("Trading API: %s\n", c.APIBaseURL)
	fmt.Printf("  Timeout: %ds | Rate limit: %.1f req/s | GET attempts: %d\n",
		c.APITimeoutSeconds, c.APIRateLimitRPS, c.APIRetryAttempts)
	fmt.Println("--------------------------------------")
	fmt.Printf("Local API: :%d (auth %s)\n", c.ListenPort, boolLabel(c.LocalAPIKey != "", "enabled", "disabled"))
	fmt.Printf("Confirmation window: %ds\n", c.ConfirmationWindowSeconds)
	fmt.Printf("Max order value: %s\n", boolLabel(c.MaxOrderValue > 0, fmt.Sprintf("€%.2f", c.MaxOrderValue), "off"))
	fmt.Printf("Max daily orders: %s\n", boolLabel(c.MaxDailyOrders > 0, strconv.Itoa(c.MaxDailyOrders), "off"))
	fmt.Printf("Dashboard refresh: every %ds\n", c.RefreshIntervalSeconds)
	fmt.Println("--------------------------------------")
	fmt.Printf("Credential store: %s\n", c.CredentialStore)
	if c.CredentialStore == "redis" {
		fmt.Printf("  Redis: %s db=%d ttl=%dm\n", c.RedisAddr, c.RedisDB, c.SessionTTLMinutes)
	}
	fmt.Printf("Order journal: %s\n", boolLabel(c.JournalEnabled, fmt.Sprintf("%s:%d/%s", c.DBHost, c.DBPort, c.DBName), "disabled"))
	fmt.Printf("Webhook: %s\n", boolLabel(c.WebhookURL != "", "configured", "not set"))
	fmt.Println("======================================")
}

func (c *Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

func (c *Config) APITimeout() time.Duration {
	return time.Duration(c.APITimeoutSeconds) * time.Second
}

func (c *Config) ConfirmationWindow() time.Duration {
	return time.Duration(c.ConfirmationWindowSeconds) * time.Second
}

func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalSeconds) * time.Second
}

func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMinutes) * time.Minute
}

// --- helpers ---

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		v = strings.ToLower(v)
		return v == "true" || v == "1" || v == "yes"
	}
	return fallback
}

func boolLabel(cond bool, ifTrue, ifFalse string) string {
	if cond {
		return ifTrue
	}
	return ifFalse
}
