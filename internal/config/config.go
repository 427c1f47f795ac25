package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	// Environment
	RunMode string // Set via flag, not env

	// MongoDB
	MongoURI    string
	MongoDbName string

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// JWT
	JwtSecret     string
	JwtTTL        time.Duration
	JwtRefreshTTL time.Duration

	// Server
	ApiPort        string
	ServiceApiPort string

	// Cloudflare
	CloudflareTurnstileSecretKey string
	CloudflareSiteVerifyURL      string

	// Email
	SmtpHost        string
	SmtpPort        int
	SmtpUsername    string
	SmtpPassword    string
	SmtpFromAddress string

	// AWS S3
	AwsAccessKeyID     string
	AwsSecretAccessKey string
	AwsRegion          string
	AwsS3Bucket        string
	AwsS3Endpoint      string
	ImageBaseS3URL     string
	ImageMaxDimension  int
	ImageMaxSizeMB     int

	// App Defaults
	AppName        string
	AppBaseURL     string
	DefaultLocale  string
	CurrencyCode   string
	PasswordRegexp string
	GetCacheTTL    time.Duration

	// Sale validation
	ValidationLockTTL      time.Duration
	ValidationReminderLead time.Duration
	ValidationReminderCron string

	// Rate Limiting Defaults
	RateLimitSoftBucketSize int
	RateLimitSoftRefillRate int // tokens per second
	RateLimitHardBucketSize int
	RateLimitHardRefillRate int // tokens per second
}

var defaults = map[string]string{
	"MONGO_DB_NAME":                   "soom",
	"REDIS_ADDR":                      "localhost:6379",
	"REDIS_DB":                        "0",
	"JWT_TTL_SECONDS":                 "3600",
	"JWT_REFRESH_TTL_SECONDS":         "1209600",
	"API_PORT":                        "8080",
	"SERVICE_API_PORT":                "12345",
	"CLOUDFLARE_SITEVERIFY_URL":       "https://challenges.cloudflare.com/turnstile/v0/siteverify",
	"SMTP_PORT":                       "587",
	"SMTP_FROM_ADDRESS":               "noreply@soomhub.example.com",
	"IMAGE_MAX_DIMENSION":             "2048",
	"IMAGE_MAX_SIZE_MB":               "10",
	"APP_NAME":                        "Soom",
	"APP_BASE_URL":                    "http://localhost:8080",
	"DEFAULT_LOCALE":                  "en",
	"CURRENCY_CODE":                   "AED",
	"PASSWORD_REGEXP":                 "^.{8,}$",
	"GET_CACHE_TTL_SECONDS":           "60",
	"VALIDATION_LOCK_TTL_SECONDS":     "8",
	"VALIDATION_REMINDER_LEAD_HOURS":  "24",
	"VALIDATION_REMINDER_CRON":        "@hourly",
	"RATE_LIMIT_SOFT_BUCKET_SIZE":     "2",
	"RATE_LIMIT_SOFT_REFILL_RATE":     "1",
	"RATE_LIMIT_HARD_BUCKET_SIZE":     "8",
	"RATE_LIMIT_HARD_REFILL_RATE":     "4",
}

// Load configuration from the environment. envFile, when present, is loaded into the
// environment first; values already set in the environment win.
// RunMode needs to be passed in as it comes from command-line flags.
func Load(runMode, envFile string) (*Config, error) {
	if envFile != "" {
		// A missing file is fine, the environment may be fully populated.
		_ = godotenv.Load(envFile)
	}

	v := viper.New()
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	return fromViper(v, runMode)
}

func fromViper(v *viper.Viper, runMode string) (*Config, error) {
	cfg := &Config{
		RunMode: runMode,
	}

	var err error

	getEnv := func(key string) string {
		return strings.TrimSpace(v.GetString(key))
	}
	getRequiredEnv := func(key string) (string, error) {
		value := getEnv(key)
		if value == "" {
			return "", fmt.Errorf("missing required environment variable: %s", key)
		}
		return value, nil
	}
	getInt := func(key string) (int, error) {
		n, err := strconv.Atoi(getEnv(key))
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", key, err)
		}
		return n, nil
	}
	getDuration := func(key string, unit time.Duration) (time.Duration, error) {
		n, err := strconv.ParseInt(getEnv(key), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", key, err)
		}
		return time.Duration(n) * unit, nil
	}

	cfg.MongoURI, err = getRequiredEnv("MONGO_URI")
	if err != nil {
		return nil, err
	}
	cfg.JwtSecret, err = getRequiredEnv("JWT_SECRET")
	if err != nil {
		return nil, err
	}

	cfg.MongoDbName = getEnv("MONGO_DB_NAME")
	cfg.RedisAddr = getEnv("REDIS_ADDR")
	cfg.RedisPassword = getEnv("REDIS_PASSWORD")
	cfg.ApiPort = getEnv("API_PORT")
	cfg.ServiceApiPort = getEnv("SERVICE_API_PORT")
	cfg.CloudflareTurnstileSecretKey = getEnv("CLOUDFLARE_TURNSTILE_SECRET_KEY")
	cfg.CloudflareSiteVerifyURL = getEnv("CLOUDFLARE_SITEVERIFY_URL")
	cfg.SmtpHost = getEnv("SMTP_HOST")
	cfg.SmtpUsername = getEnv("SMTP_USERNAME")
	cfg.SmtpPassword = getEnv("SMTP_PASSWORD")
	cfg.SmtpFromAddress = getEnv("SMTP_FROM_ADDRESS")
	cfg.AwsAccessKeyID = getEnv("AWS_ACCESS_KEY_ID")
	cfg.AwsSecretAccessKey = getEnv("AWS_SECRET_ACCESS_KEY")
	cfg.AwsRegion = getEnv("AWS_REGION")
	cfg.AwsS3Bucket = getEnv("AWS_S3_BUCKET")
	cfg.AwsS3Endpoint = getEnv("AWS_S3_ENDPOINT")
	cfg.ImageBaseS3URL = getEnv("IMAGE_BASE_S3_URL")
	cfg.AppName = getEnv("APP_NAME")
	cfg.AppBaseURL = strings.TrimRight(getEnv("APP_BASE_URL"), "/")
	cfg.DefaultLocale = getEnv("DEFAULT_LOCALE")
	cfg.CurrencyCode = strings.ToUpper(getEnv("CURRENCY_CODE"))
	cfg.PasswordRegexp = getEnv("PASSWORD_REGEXP")
	cfg.ValidationReminderCron = getEnv("VALIDATION_REMINDER_CRON")

	if cfg.RedisDB, err = getInt("REDIS_DB"); err != nil {
		return nil, err
	}
	if cfg.SmtpPort, err = getInt("SMTP_PORT"); err != nil {
		return nil, err
	}
	if cfg.ImageMaxDimension, err = getInt("IMAGE_MAX_DIMENSION"); err != nil {
		return nil, err
	}
	if cfg.ImageMaxSizeMB, err = getInt("IMAGE_MAX_SIZE_MB"); err != nil {
		return nil, err
	}

	if cfg.JwtTTL, err = getDuration("JWT_TTL_SECONDS", time.Second); err != nil {
		return nil, err
	}
	if cfg.JwtRefreshTTL, err = getDuration("JWT_REFRESH_TTL_SECONDS", time.Second); err != nil {
		return nil, err
	}
	if cfg.GetCacheTTL, err = getDuration("GET_CACHE_TTL_SECONDS", time.Second); err != nil {
		return nil, err
	}
	if cfg.ValidationLockTTL, err = getDuration("VALIDATION_LOCK_TTL_SECONDS", time.Second); err != nil {
		return nil, err
	}
	if cfg.ValidationReminderLead, err = getDuration("VALIDATION_REMINDER_LEAD_HOURS", time.Hour); err != nil {
		return nil, err
	}

	// Rate Limiting
	if cfg.RateLimitSoftBucketSize, err = getInt("RATE_LIMIT_SOFT_BUCKET_SIZE"); err != nil {
		return nil, err
	}
	if cfg.RateLimitSoftRefillRate, err = getInt("RATE_LIMIT_SOFT_REFILL_RATE"); err != nil {
		return nil, err
	}
	if cfg.RateLimitHardBucketSize, err = getInt("RATE_LIMIT_HARD_BUCKET_SIZE"); err != nil {
		return nil, err
	}
	if cfg.RateLimitHardRefillRate, err = getInt("RATE_LIMIT_HARD_REFILL_RATE"); err != nil {
		return nil, err
	}

	if cfg.DefaultLocale != "en" && cfg.DefaultLocale != "ar" {
		return nil, fmt.Errorf("invalid DEFAULT_LOCALE %q: must be en or ar", cfg.DefaultLocale)
	}

	return cfg, nil
}
