package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAppName          = "OfflinePay"
	defaultAppEnv           = "development"
	defaultPort             = "8080"
	defaultLogLevel         = "info"
	defaultShutdownDelay    = 10 * time.Second
	defaultIdempotencyTTL   = 24 * time.Hour
	defaultOpeningBalance   = 1000
	defaultLoginAttempts    = 5
	defaultAPIBaseURL       = "http://localhost:8080"
	defaultCountryPrefix    = "+91"
	defaultRequestTimeout   = 10 * time.Second
	defaultProbeInterval    = 5 * time.Second
	defaultInboxPoll        = 3 * time.Second
	idemTTLSecondsEnvVar    = "IDEMPOTENCY_TTL_SECONDS"
	idemTTLDurEnvVar        = "IDEMPOTENCY_TTL"
	shutdownSecondsEnvVar   = "SHUTDOWN_TIMEOUT_SECONDS"
	shutdownDurationEnvVar  = "SHUTDOWN_TIMEOUT"
	requestTimeoutEnvVar    = "REQUEST_TIMEOUT"
	probeIntervalEnvVar     = "PROBE_INTERVAL"
	inboxPollEnvVar         = "INBOX_POLL_INTERVAL"
	openingBalanceEnvVar    = "OPENING_BALANCE"
	loginAttemptsEnvVar     = "LOGIN_ATTEMPTS_PER_MINUTE"
	deviceStoreURLEnvVar    = "DEVICE_STORE_URL"
	deviceStoreFallbackVar  = "REDIS_URL"
)

// Config captures application runtime configuration loaded from environment variables.
// The sandbox API and the offlinepay client read the same set of variables; each
// binary only looks at the fields it needs.
type Config struct {
	AppName        string
	AppEnv         string
	Port           string
	LogLevel       string
	LogFile        string
	DatabaseURL    string
	RedisURL       string
	ShutdownPeriod time.Duration
	IdempotencyTTL time.Duration
	JWTSecret      string
	OpeningBalance int64
	LoginAttempts  int

	APIBaseURL        string
	DeviceStoreURL    string
	CountryPrefix     string
	RequestTimeout    time.Duration
	ProbeInterval     time.Duration
	InboxPollInterval time.Duration
	SMSReceiptKey     string
	MetricsAddr       string
}

// Load reads the sandbox API configuration. Outside development it requires
// Postgres, Redis and a signing secret.
func Load() (Config, error) {
	cfg, err := load()
	if err != nil {
		return Config{}, err
	}
	if !cfg.IsDev() {
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL must be set when APP_ENV=%s", cfg.AppEnv)
		}
		if cfg.RedisURL == "" {
			return Config{}, fmt.Errorf("REDIS_URL must be set when APP_ENV=%s", cfg.AppEnv)
		}
		if cfg.JWTSecret == "" {
			return Config{}, fmt.Errorf("JWT_SECRET must be set when APP_ENV=%s", cfg.AppEnv)
		}
	}
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "dev-secret"
	}
	return cfg, nil
}

// LoadClient reads the device side configuration, which never needs the
// backend's stores or secret.
func LoadClient() (Config, error) {
	return load()
}

func load() (Config, error) {
	cfg := Config{
		AppName:        getEnv("APP_NAME", defaultAppName),
		AppEnv:         getEnv("APP_ENV", defaultAppEnv),
		Port:           getEnv("PORT", defaultPort),
		LogLevel:       strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		LogFile:        os.Getenv("LOG_FILE"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisURL:       os.Getenv("REDIS_URL"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		OpeningBalance: defaultOpeningBalance,
		LoginAttempts:  defaultLoginAttempts,

		APIBaseURL:     strings.TrimRight(getEnv("API_BASE_URL", defaultAPIBaseURL), "/"),
		DeviceStoreURL: getEnv(deviceStoreURLEnvVar, os.Getenv(deviceStoreFallbackVar)),
		CountryPrefix:  getEnv("COUNTRY_PREFIX", defaultCountryPrefix),
		SMSReceiptKey:  os.Getenv("SMS_RECEIPT_KEY"),
		MetricsAddr:    os.Getenv("METRICS_ADDR"),
	}

	var err error
	if cfg.ShutdownPeriod, err = durationFromEnv(shutdownSecondsEnvVar, shutdownDurationEnvVar, defaultShutdownDelay); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = durationFromEnv(idemTTLSecondsEnvVar, idemTTLDurEnvVar, defaultIdempotencyTTL); err != nil {
		return Config{}, err
	}
	if cfg.RequestTimeout, err = durationFromEnv("", requestTimeoutEnvVar, defaultRequestTimeout); err != nil {
		return Config{}, err
	}
	if cfg.ProbeInterval, err = durationFromEnv("", probeIntervalEnvVar, defaultProbeInterval); err != nil {
		return Config{}, err
	}
	if cfg.InboxPollInterval, err = durationFromEnv("", inboxPollEnvVar, defaultInboxPoll); err != nil {
		return Config{}, err
	}

	if v := os.Getenv(openingBalanceEnvVar); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			return Config{}, fmt.Errorf("invalid %s: %q", openingBalanceEnvVar, v)
		}
		cfg.OpeningBalance = n
	}

	if v := os.Getenv(loginAttemptsEnvVar); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", loginAttemptsEnvVar, err)
		}
		cfg.LoginAttempts = n
	}

	return cfg, nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// IsDev reports whether the environment allows in-memory fallbacks.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

func durationFromEnv(secondsKey, durationKey string, fallback time.Duration) (time.Duration, error) {
	if secondsKey != "" {
		if v := os.Getenv(secondsKey); v != "" {
			seconds, err := strconv.Atoi(v)
			if err != nil {
				return 0, fmt.Errorf("invalid %s: %w", secondsKey, err)
			}
			return time.Duration(seconds) * time.Second, nil
		}
	}
	if v := os.Getenv(durationKey); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", durationKey, err)
		}
		return d, nil
	}
	return fallback, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
