package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	Port                  string
	AllowedOrigin         string
	DatabaseURL           string
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	CommissionRate        decimal.Decimal
	SalesCacheTTLSeconds  int
	DefaultPageSize       int
	AuthSecret            string
	AccessTokenTTLMinutes int

	MailDriver        string
	MailFromAddress   string
	MailFromName      string
	SMTPHost          string
	SMTPPort          int
	SMTPUser          string
	SMTPPassword      string
	SendGridAPIKey    string
	MailRatePerSecond float64

	ReportTimezone   string
	AdminReportAt    string
	SellerReportAt   string
	SchedulerEnabled bool
	QueueName        string

	LogLevel       string
	LogFormat      string
	MetricsEnabled bool
}

// Load reads an optional .env file and then the process environment.
// Values already present in the environment win over the file.
func Load() Config {
	_ = godotenv.Load()

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	cacheTTL, err := strconv.Atoi(getEnv("SALES_CACHE_TTL_SECONDS", "600"))
	if err != nil || cacheTTL < 1 {
		cacheTTL = 600
	}
	pageSize, err := strconv.Atoi(getEnv("DEFAULT_PAGE_SIZE", "10"))
	if err != nil || pageSize < 1 {
		pageSize = 10
	}
	tokenTTL, err := strconv.Atoi(getEnv("ACCESS_TOKEN_TTL_MINUTES", "60"))
	if err != nil || tokenTTL < 1 {
		tokenTTL = 60
	}
	smtpPort, err := strconv.Atoi(getEnv("SMTP_PORT", "2525"))
	if err != nil || smtpPort < 1 {
		smtpPort = 2525
	}
	mailRate, err := strconv.ParseFloat(getEnv("MAIL_RATE_PER_SECOND", "5"), 64)
	if err != nil || mailRate <= 0 {
		mailRate = 5
	}
	// An out-of-range rate is kept as-is; the calculator rejects it when used.
	rate, err := decimal.NewFromString(getEnv("COMMISSION_RATE", "8.5"))
	if err != nil {
		rate = decimal.RequireFromString("8.5")
	}

	return Config{
		Port:                  getEnv("PORT", "8080"),
		AllowedOrigin:         getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		RedisAddr:             os.Getenv("REDIS_ADDR"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		RedisDB:               redisDB,
		CommissionRate:        rate,
		SalesCacheTTLSeconds:  cacheTTL,
		DefaultPageSize:       pageSize,
		AuthSecret:            strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessTokenTTLMinutes: tokenTTL,

		MailDriver:        strings.ToLower(getEnv("MAIL_DRIVER", "log")),
		MailFromAddress:   getEnv("MAIL_FROM_ADDRESS", "reports@sales-control.local"),
		MailFromName:      getEnv("MAIL_FROM_NAME", "Sales Control"),
		SMTPHost:          os.Getenv("SMTP_HOST"),
		SMTPPort:          smtpPort,
		SMTPUser:          os.Getenv("SMTP_USER"),
		SMTPPassword:      os.Getenv("SMTP_PASS"),
		SendGridAPIKey:    strings.TrimSpace(os.Getenv("SENDGRID_API_KEY")),
		MailRatePerSecond: mailRate,

		ReportTimezone:   getEnv("REPORT_TIMEZONE", "America/Sao_Paulo"),
		AdminReportAt:    getEnv("ADMIN_REPORT_AT", "23:00"),
		SellerReportAt:   getEnv("SELLER_REPORT_AT", "23:59"),
		SchedulerEnabled: getBool("SCHEDULER_ENABLED", true),
		QueueName:        getEnv("QUEUE_NAME", "default"),

		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      strings.ToLower(getEnv("LOG_FORMAT", "json")),
		MetricsEnabled: getBool("METRICS_ENABLED", false),
	}
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func (c Config) SalesCacheTTL() time.Duration {
	return time.Duration(c.SalesCacheTTLSeconds) * time.Second
}

func (c Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenTTLMinutes) * time.Minute
}

// Location resolves ReportTimezone, falling back to UTC when the zone is unknown.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.ReportTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func getBool(key string, fallback bool) bool {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
