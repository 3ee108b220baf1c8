package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	// Environment
	RunMode string // Set via flag, not env

	// Ledger (MySQL)
	LedgerDSN      string
	LedgerLogLevel string
	StoreTimeout   time.Duration

	// MongoDB (car catalog, runtime settings, templates)
	MongoURI    string
	MongoDbName string

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// JWT
	JwtSecret       string
	JwtTTL          time.Duration
	CaptchaTokenTTL time.Duration

	// Admin
	AdminUsername     string
	AdminPasswordHash string
	AdminEmail        string

	// Server
	ApiPort        string
	ServiceApiPort string
	CorsOrigins    []string

	// Cloudflare
	CloudflareTurnstileSecretKey string
	CloudflareSiteVerifyURL      string

	// Booking
	PollInterval           time.Duration
	CurrencySymbol         string
	FreeGift               string
	PaymentBankName        string
	PaymentAccountNumber   string
	PaymentAccountName     string
	InspectionReminderLead time.Duration
	BusinessLocation       *time.Location
	CarCacheTTL            time.Duration
	SubmissionLimit        int
	SubmissionWindow       time.Duration
	PublicBaseURL          string

	// Email
	SmtpHost        string
	SmtpPort        int
	SmtpUsername    string
	SmtpPassword    string
	SmtpFromAddress string
	EmailLogFile    string
	MockEmail       bool

	// AWS S3
	AwsAccessKeyID         string
	AwsSecretAccessKey     string
	AwsRegion              string
	AwsS3Bucket            string
	AttachmentBaseURL      string
	AttachmentMaxDimension int
	AttachmentMaxSizeMB    int

	// App Defaults
	AppName string

	// Rate Limiting Defaults
	RateLimitSoftBucketSize int
	RateLimitSoftRefillRate int // tokens per second
	RateLimitHardBucketSize int
	RateLimitHardRefillRate int // tokens per second
}

// Load configuration from environment variables.
// RunMode needs to be passed in as it comes from command-line flags.
func Load(runMode string) (*Config, error) {
	// Load .env file, ignoring errors if it doesn't exist
	godotenv.Load()

	cfg := &Config{
		RunMode: runMode,
	}

	var err error

	getEnv := func(key, defaultValue string) string {
		if value, exists := os.LookupEnv(key); exists {
			return value
		}
		return defaultValue
	}

	getRequiredEnv := func(key string) (string, error) {
		value, exists := os.LookupEnv(key)
		if !exists {
			return "", fmt.Errorf("missing required environment variable: %s", key)
		}
		return value, nil
	}

	getSeconds := func(key, defaultValue string) (time.Duration, error) {
		n, err := strconv.ParseInt(getEnv(key, defaultValue), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", key, err)
		}
		return time.Duration(n) * time.Second, nil
	}

	cfg.LedgerDSN, err = getRequiredEnv("LEDGER_DSN")
	if err != nil {
		return nil, err
	}
	cfg.MongoURI, err = getRequiredEnv("MONGO_URI")
	if err != nil {
		return nil, err
	}
	cfg.JwtSecret, err = getRequiredEnv("JWT_SECRET")
	if err != nil {
		return nil, err
	}

	cfg.LedgerLogLevel = getEnv("LEDGER_LOG_LEVEL", "warn")
	cfg.MongoDbName = getEnv("MONGO_DB_NAME", "autos")
	cfg.RedisAddr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", "")
	cfg.AdminUsername = getEnv("ADMIN_USERNAME", "admin")
	cfg.AdminPasswordHash = getEnv("ADMIN_PASSWORD_HASH", "")
	cfg.AdminEmail = getEnv("ADMIN_EMAIL", "")
	cfg.ApiPort = getEnv("API_PORT", "8080")
	cfg.ServiceApiPort = getEnv("SERVICE_API_PORT", "12345")
	for _, origin := range strings.Split(getEnv("CORS_ALLOWED_ORIGINS", "*"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.CorsOrigins = append(cfg.CorsOrigins, origin)
		}
	}
	cfg.CloudflareTurnstileSecretKey = getEnv("CLOUDFLARE_TURNSTILE_SECRET_KEY", "")
	cfg.CloudflareSiteVerifyURL = getEnv("CLOUDFLARE_SITEVERIFY_URL", "https://challenges.cloudflare.com/turnstile/v0/siteverify")
	cfg.CurrencySymbol = getEnv("CURRENCY_SYMBOL", "₦")
	cfg.FreeGift = getEnv("FREE_GIFT", "5L Engine Oil")
	cfg.PaymentBankName = getEnv("PAYMENT_BANK_NAME", "GTBank")
	cfg.PaymentAccountNumber = getEnv("PAYMENT_ACCOUNT_NUMBER", "0123456789")
	cfg.PaymentAccountName = getEnv("PAYMENT_ACCOUNT_NAME", "Enoriel Growth Ltd")
	cfg.PublicBaseURL = getEnv("PUBLIC_BASE_URL", "http://localhost:8080")
	cfg.SmtpHost = getEnv("SMTP_HOST", "")
	cfg.SmtpUsername = getEnv("SMTP_USERNAME", "")
	cfg.SmtpPassword = getEnv("SMTP_PASSWORD", "")
	cfg.SmtpFromAddress = getEnv("SMTP_FROM_ADDRESS", "noreply@autos.example.com")
	cfg.EmailLogFile = getEnv("EMAIL_LOG_FILE", "")
	cfg.MockEmail = getEnv("MOCK_EMAIL", "") == "true"
	cfg.AwsAccessKeyID = getEnv("AWS_ACCESS_KEY_ID", "")
	cfg.AwsSecretAccessKey = getEnv("AWS_SECRET_ACCESS_KEY", "")
	cfg.AwsRegion = getEnv("AWS_REGION", "")
	cfg.AwsS3Bucket = getEnv("AWS_S3_BUCKET", "")
	cfg.AttachmentBaseURL = getEnv("ATTACHMENT_BASE_URL", "")
	cfg.AppName = getEnv("APP_NAME", "Autos")

	cfg.RedisDB, err = strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	storeTimeoutMs, err := strconv.ParseInt(getEnv("STORE_TIMEOUT_MS", "3000"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid STORE_TIMEOUT_MS: %w", err)
	}
	cfg.StoreTimeout = time.Duration(storeTimeoutMs) * time.Millisecond

	if cfg.JwtTTL, err = getSeconds("JWT_TTL_SECONDS", "3600"); err != nil {
		return nil, err
	}
	if cfg.CaptchaTokenTTL, err = getSeconds("CAPTCHA_TOKEN_TTL", "1200"); err != nil {
		return nil, err
	}
	if cfg.PollInterval, err = getSeconds("POLL_INTERVAL_SECONDS", "10"); err != nil {
		return nil, err
	}
	if cfg.CarCacheTTL, err = getSeconds("CAR_CACHE_TTL_SECONDS", "1800"); err != nil {
		return nil, err
	}
	if cfg.SubmissionWindow, err = getSeconds("SUBMISSION_WINDOW_SECONDS", "300"); err != nil {
		return nil, err
	}

	leadHours, err := strconv.ParseInt(getEnv("INSPECTION_REMINDER_LEAD_HOURS", "24"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid INSPECTION_REMINDER_LEAD_HOURS: %w", err)
	}
	cfg.InspectionReminderLead = time.Duration(leadHours) * time.Hour

	// Inspection slots are wall-clock times at the dealership.
	tz := getEnv("BUSINESS_TIMEZONE", "Africa/Lagos")
	if cfg.BusinessLocation, err = time.LoadLocation(tz); err != nil {
		return nil, fmt.Errorf("invalid BUSINESS_TIMEZONE: %w", err)
	}

	cfg.SubmissionLimit, err = strconv.Atoi(getEnv("SUBMISSION_LIMIT", "3"))
	if err != nil {
		return nil, fmt.Errorf("invalid SUBMISSION_LIMIT: %w", err)
	}

	cfg.SmtpPort, err = strconv.Atoi(getEnv("SMTP_PORT", "587"))
	if err != nil {
		return nil, fmt.Errorf("invalid SMTP_PORT: %w", err)
	}

	cfg.AttachmentMaxDimension, err = strconv.Atoi(getEnv("ATTACHMENT_MAX_DIMENSION", "1200"))
	if err != nil {
		return nil, fmt.Errorf("invalid ATTACHMENT_MAX_DIMENSION: %w", err)
	}

	cfg.AttachmentMaxSizeMB, err = strconv.Atoi(getEnv("ATTACHMENT_MAX_SIZE_MB", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid ATTACHMENT_MAX_SIZE_MB: %w", err)
	}

	// Rate Limiting
	cfg.RateLimitSoftBucketSize, err = strconv.Atoi(getEnv("RATE_LIMIT_SOFT_BUCKET_SIZE", "4"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_SOFT_BUCKET_SIZE: %w", err)
	}
	cfg.RateLimitSoftRefillRate, err = strconv.Atoi(getEnv("RATE_LIMIT_SOFT_REFILL_RATE", "1"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_SOFT_REFILL_RATE: %w", err)
	}
	cfg.RateLimitHardBucketSize, err = strconv.Atoi(getEnv("RATE_LIMIT_HARD_BUCKET_SIZE", "16"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_HARD_BUCKET_SIZE: %w", err)
	}
	cfg.RateLimitHardRefillRate, err = strconv.Atoi(getEnv("RATE_LIMIT_HARD_REFILL_RATE", "4"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_HARD_REFILL_RATE: %w", err)
	}

	return cfg, nil
}
