package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"hospital-app-server/internal/scheduling"
)

// Config holds all configuration for our application
type Config struct {
	Port                      string
	Origin                    string
	Environment               string
	LogLevel                  string
	JWTSecret                 string
	JWTRefreshSecret          string
	JWTExpirationMinutes      int
	JWTRefreshExpirationHours int
	Database                  DatabaseConfig
	Redis                     RedisConfig
	RateLimit                 RateLimitConfig
	Mailer                    MailerConfig
	Storage                   StorageConfig
	Scheduling                SchedulingConfig
	Admin                     AdminConfig
}

// DatabaseConfig holds database connection details
type DatabaseConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Name     string
	DSN      string
}

// RedisConfig holds the counter store connection.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RateLimitConfig is a fixed window per client IP.
type RateLimitConfig struct {
	MaxRequests int
	Window      time.Duration
}

// MailerConfig holds email service configuration
type MailerConfig struct {
	SendGridAPIKey string
	FromEmail      string
	FromName       string
}

// StorageConfig points at the MinIO bucket used for attachments.
type StorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// SchedulingConfig is the booking policy.
type SchedulingConfig struct {
	Location     *time.Location
	Slots        scheduling.SlotPolicy
	Cancellation scheduling.CancellationPolicy
}

// AdminConfig is the account created by the seed-admin command.
type AdminConfig struct {
	Email    string
	Password string
}

// IsDevelopment reports whether the server runs with development defaults.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	dbConfig := DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnv("DB_PORT", "3306"),
		Username: getEnv("DB_USERNAME", "root"),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", "hospital"),
	}

	// loc=UTC keeps DATETIME round trips stable; calendar days are computed
	// in the configured clinic time zone instead.
	dbConfig.DSN = fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		dbConfig.Username, dbConfig.Password, dbConfig.Host, dbConfig.Port, dbConfig.Name)

	jwtExpMinutes, err := getEnvInt("JWT_EXPIRATION_MINUTES", 15)
	if err != nil {
		return nil, err
	}
	jwtRefreshExpHours, err := getEnvInt("JWT_REFRESH_EXPIRATION_HOURS", 168) // 7 days
	if err != nil {
		return nil, err
	}
	redisDB, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return nil, err
	}
	maxRequests, err := getEnvInt("RATE_LIMIT_MAX_REQUESTS", 100)
	if err != nil {
		return nil, err
	}
	windowSeconds, err := getEnvInt("RATE_LIMIT_WINDOW_SECONDS", 15*60)
	if err != nil {
		return nil, err
	}
	useSSL, err := getEnvBool("MINIO_USE_SSL", false)
	if err != nil {
		return nil, err
	}
	sched, err := loadScheduling()
	if err != nil {
		return nil, err
	}

	return &Config{
		Port:                      getEnv("PORT", "5000"),
		Origin:                    getEnv("ORIGIN", "http://localhost:3000"),
		Environment:               getEnv("APP_ENV", getEnv("NODE_ENV", "development")),
		LogLevel:                  getEnv("LOG_LEVEL", "info"),
		JWTSecret:                 getEnv("JWT_SECRET", "default_jwt_secret"),
		JWTRefreshSecret:          getEnv("JWT_REFRESH_SECRET", "default_refresh_secret"),
		JWTExpirationMinutes:      jwtExpMinutes,
		JWTRefreshExpirationHours: jwtRefreshExpHours,
		Database:                  dbConfig,
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		RateLimit: RateLimitConfig{
			MaxRequests: maxRequests,
			Window:      time.Duration(windowSeconds) * time.Second,
		},
		Mailer: MailerConfig{
			SendGridAPIKey: getEnv("SENDGRID_API_KEY", ""),
			FromEmail:      getEnv("MAIL_FROM_EMAIL", "no-reply@hospital.local"),
			FromName:       getEnv("MAIL_FROM_NAME", "Hospital Appointments"),
		},
		Storage: StorageConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", "medical-records"),
			UseSSL:    useSSL,
		},
		Scheduling: sched,
		Admin: AdminConfig{
			Email:    getEnv("ADMIN_EMAIL", "admin@hospital.local"),
			Password: getEnv("ADMIN_PASSWORD", ""),
		},
	}, nil
}

func loadScheduling() (SchedulingConfig, error) {
	loc, err := time.LoadLocation(getEnv("TIMEZONE", "Local"))
	if err != nil {
		return SchedulingConfig{}, fmt.Errorf("invalid TIMEZONE: %w", err)
	}
	startHour, err := getEnvInt("WORKING_HOURS_START", 9)
	if err != nil {
		return SchedulingConfig{}, err
	}
	endHour, err := getEnvInt("WORKING_HOURS_END", 17)
	if err != nil {
		return SchedulingConfig{}, err
	}
	slotMinutes, err := getEnvInt("SLOT_DURATION_MINUTES", 30)
	if err != nil {
		return SchedulingConfig{}, err
	}
	breaks, err := scheduling.ParseBreaks(getEnv("SLOT_BREAKS", ""))
	if err != nil {
		return SchedulingConfig{}, fmt.Errorf("invalid SLOT_BREAKS: %w", err)
	}
	noticeHours, err := getEnvInt("CANCELLATION_NOTICE_HOURS", 24)
	if err != nil {
		return SchedulingConfig{}, err
	}
	if noticeHours < 0 {
		return SchedulingConfig{}, fmt.Errorf("CANCELLATION_NOTICE_HOURS must be 0 or more, got %d", noticeHours)
	}

	policy := scheduling.SlotPolicy{
		StartHour:   startHour,
		EndHour:     endHour,
		SlotMinutes: slotMinutes,
		Breaks:      breaks,
	}
	if err := policy.Validate(); err != nil {
		return SchedulingConfig{}, fmt.Errorf("invalid working hours: %w", err)
	}
	return SchedulingConfig{
		Location:     loc,
		Slots:        policy,
		Cancellation: scheduling.CancellationPolicy{Notice: time.Duration(noticeHours) * time.Hour},
	}, nil
}

// Helper function to get environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}
