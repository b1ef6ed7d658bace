package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
// It is the single source of truth for runtime parameters.
type Config struct {
	Port      string
	Env       string
	JWTSecret string

	DB       DatabaseConfig
	Redis    RedisConfig
	Gateway  GatewayConfig
	Webhook  WebhookConfig
	Notifier NotifierConfig
	Worker   WorkerConfig
	Policy   PolicyConfig
}

// DatabaseConfig contains PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// RedisConfig contains Redis connection parameters.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// GatewayConfig contains credentials for the payment gateway.
type GatewayConfig struct {
	BaseURL   string
	KeyID     string
	KeySecret string
}

// WebhookConfig contains shared secrets for inbound webhook verification.
type WebhookConfig struct {
	PaymentSecret string
	PayoutSecret  string
	ProbeAgent    string
}

// NotifierConfig contains the notification collaborator endpoint.
type NotifierConfig struct {
	URL    string
	Secret string
}

// WorkerConfig contains interval and batch configuration for background workers.
type WorkerConfig struct {
	ReleaseInterval       time.Duration
	ReleaseBatchSize      int
	PayoutInterval        time.Duration
	PayoutBatchSize       int
	PayoutMaxRetry        int
	TransferCheckInterval time.Duration
	TransferStaleAfter    time.Duration
}

// FeeTier maps a gross-amount bracket to a minimum platform fee in paise.
type FeeTier struct {
	UpTo int64 // inclusive upper bound of the bracket; 0 means open-ended
	Min  int64
}

// CommissionTier maps a partner's prior eligible-booking count to a
// commission rate applied to the platform fee.
type CommissionTier struct {
	MinBookings int
	Rate        float64
}

// PolicyConfig is the versioned tax/fee/release policy injected into the
// settlement services. Nothing in the engine reads these values from the
// environment directly, so tests can run against a fixed policy.
type PolicyConfig struct {
	Version string

	FeeRate  float64
	FeeTiers []FeeTier
	GSTRate  float64
	TCSRate  float64
	TDSRate  float64
	// TCSPayer is "platform" or "supplier". Platform-borne ECO-TCS leaves
	// the supplier net untouched.
	TCSPayer string

	RequirePAN         bool
	NameMatchThreshold float64

	Stage1Fraction float64
	Stage1Delay    time.Duration
	Stage2Delay    time.Duration

	DisputeWindow   time.Duration
	CommissionTiers []CommissionTier
}

// PaymentSecretCandidates returns the ordered secrets accepted for payment
// webhook signatures: the webhook-specific secret first, then the gateway
// key secret as fallback.
func (w *WebhookConfig) PaymentSecretCandidates(gateway *GatewayConfig) []string {
	return secretCandidates(w.PaymentSecret, gateway)
}

// PayoutSecretCandidates returns the ordered secrets accepted for payout and
// dispute webhook signatures.
func (w *WebhookConfig) PayoutSecretCandidates(gateway *GatewayConfig) []string {
	return secretCandidates(w.PayoutSecret, gateway)
}

func secretCandidates(primary string, gateway *GatewayConfig) []string {
	out := make([]string, 0, 2)
	if primary != "" {
		out = append(out, primary)
	}
	if gateway != nil && gateway.KeySecret != "" {
		out = append(out, gateway.KeySecret)
	}
	return out
}

// Load reads configuration from environment variables. If a .env file exists
// in the working directory, it will be loaded first. It returns a populated
// Config or an error with a human-friendly message.
func Load() (*Config, error) {
	// Load .env if present; ignore error if file is missing so that production
	// environments relying solely on real environment variables keep working.
	_ = godotenv.Load()

	cfg := &Config{}

	// Server
	cfg.Port = getEnv("PORT", "8080")
	cfg.Env = getEnv("ENV", "development")
	cfg.JWTSecret = getEnv("JWT_SECRET", "")

	// Database
	cfg.DB = DatabaseConfig{
		Host:     getEnv("DB_HOST", ""),
		Port:     getEnv("DB_PORT", "5432"),
		User:     getEnv("DB_USER", ""),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", ""),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),
	}

	// Redis
	cfg.Redis = RedisConfig{
		Host:     getEnv("REDIS_HOST", "redis"),
		Port:     getEnv("REDIS_PORT", "6379"),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       getEnvInt("REDIS_DB", 0),
	}

	// Payment gateway
	cfg.Gateway = GatewayConfig{
		BaseURL:   getEnv("GATEWAY_BASE_URL", "https://api.paygate.in/v1"),
		KeyID:     getEnv("GATEWAY_KEY_ID", ""),
		KeySecret: getEnv("GATEWAY_KEY_SECRET", ""),
	}

	// Webhooks
	cfg.Webhook = WebhookConfig{
		PaymentSecret: getEnv("PAYMENT_WEBHOOK_SECRET", ""),
		PayoutSecret:  getEnv("PAYOUT_WEBHOOK_SECRET", ""),
		ProbeAgent:    getEnv("WEBHOOK_PROBE_AGENT", "paygate-dashboard"),
	}

	// Notifier
	cfg.Notifier = NotifierConfig{
		URL:    getEnv("NOTIFIER_URL", ""),
		Secret: getEnv("NOTIFIER_SECRET", ""),
	}

	// Workers (durations and batch sizes)
	var err error
	if cfg.Worker.ReleaseInterval, err = parseDurationEnv("RELEASE_TICK_INTERVAL", "5m"); err != nil {
		return nil, fmt.Errorf("invalid RELEASE_TICK_INTERVAL: %w", err)
	}
	cfg.Worker.ReleaseBatchSize = getEnvInt("RELEASE_BATCH_SIZE", 25)
	if cfg.Worker.PayoutInterval, err = parseDurationEnv("PAYOUT_POLL_INTERVAL", "10s"); err != nil {
		return nil, fmt.Errorf("invalid PAYOUT_POLL_INTERVAL: %w", err)
	}
	cfg.Worker.PayoutBatchSize = getEnvInt("PAYOUT_BATCH_SIZE", 25)
	cfg.Worker.PayoutMaxRetry = getEnvInt("PAYOUT_MAX_RETRY", 5)
	if cfg.Worker.TransferCheckInterval, err = parseDurationEnv("TRANSFER_CHECK_INTERVAL", "1m"); err != nil {
		return nil, fmt.Errorf("invalid TRANSFER_CHECK_INTERVAL: %w", err)
	}
	if cfg.Worker.TransferStaleAfter, err = parseDurationEnv("TRANSFER_STALE_AFTER", "10m"); err != nil {
		return nil, fmt.Errorf("invalid TRANSFER_STALE_AFTER: %w", err)
	}

	// Settlement policy
	if cfg.Policy, err = loadPolicy(); err != nil {
		return nil, err
	}

	// Basic validation for DB parameters.
	if cfg.DB.Host == "" || cfg.DB.User == "" || cfg.DB.Name == "" {
		return nil, errors.New("database configuration incomplete: ensure DB_HOST, DB_USER, and DB_NAME are set")
	}

	// Validate JWT_SECRET
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET must be set for authentication")
	}

	return cfg, nil
}

// loadPolicy reads the settlement policy from the environment with defaults
// matching the current production policy version.
func loadPolicy() (PolicyConfig, error) {
	p := PolicyConfig{
		Version: getEnv("POLICY_VERSION", "2025-04"),

		FeeRate: getEnvFloat("PLATFORM_FEE_RATE", 0.10),
		FeeTiers: []FeeTier{
			{UpTo: 100_000, Min: 5_000},    // up to Rs 1,000: min fee Rs 50
			{UpTo: 1_000_000, Min: 10_000}, // up to Rs 10,000: min fee Rs 100
			{UpTo: 0, Min: 20_000},         // above: min fee Rs 200
		},
		GSTRate:  getEnvFloat("GST_RATE", 0.18),
		TCSRate:  getEnvFloat("ECO_TCS_RATE", 0.005),
		TDSRate:  getEnvFloat("TDS_RATE", 0.01),
		TCSPayer: getEnv("ECO_TCS_PAYER", "platform"),

		RequirePAN:         getEnvBool("PAYOUT_REQUIRE_PAN", true),
		NameMatchThreshold: getEnvFloat("NAME_MATCH_THRESHOLD", 0.70),

		Stage1Fraction: getEnvFloat("STAGE1_FRACTION", 0.5),

		CommissionTiers: []CommissionTier{
			{MinBookings: 50, Rate: 0.10},
			{MinBookings: 10, Rate: 0.07},
			{MinBookings: 0, Rate: 0.05},
		},
	}

	var err error
	if p.Stage1Delay, err = parseDurationEnv("STAGE1_DELAY", "0s"); err != nil {
		return p, fmt.Errorf("invalid STAGE1_DELAY: %w", err)
	}
	if p.Stage2Delay, err = parseDurationEnv("STAGE2_DELAY", "12h"); err != nil {
		return p, fmt.Errorf("invalid STAGE2_DELAY: %w", err)
	}
	if p.DisputeWindow, err = parseDurationEnv("DISPUTE_WINDOW", "12h"); err != nil {
		return p, fmt.Errorf("invalid DISPUTE_WINDOW: %w", err)
	}

	if p.Stage1Fraction <= 0 || p.Stage1Fraction >= 1 {
		return p, fmt.Errorf("STAGE1_FRACTION must be in (0,1), got %v", p.Stage1Fraction)
	}
	if payer := strings.ToLower(p.TCSPayer); payer != "platform" && payer != "supplier" {
		return p, fmt.Errorf("ECO_TCS_PAYER must be platform or supplier, got %q", p.TCSPayer)
	}
	return p, nil
}

// getEnv returns the value of an environment variable or a default if empty.
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getEnvInt returns the value of an environment variable as an integer or a default if empty/invalid.
func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

// getEnvFloat returns the value of an environment variable as a float or a default if empty/invalid.
func getEnvFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

// getEnvBool returns the value of an environment variable as a bool or a default if empty/invalid.
func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// parseDurationEnv reads an environment variable and parses it as time.Duration.
// If the variable is empty, it falls back to the provided default value.
func parseDurationEnv(key, def string) (time.Duration, error) {
	raw := getEnv(key, def)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("duration must be >= 0")
	}
	return d, nil
}
