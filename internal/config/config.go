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

// DataMode selects the persistence and gateway strategy at startup.
type DataMode string

const (
	DataModePostgres DataMode = "postgres"
	DataModeFixture  DataMode = "fixture"
)

const (
	ChatStorePostgres = "postgres"
	ChatStoreMongo    = "mongo"
)

type Config struct {
	Port     string
	Env      string
	LogLevel string
	DataMode DataMode
	BaseURL  string

	DB       DBConfig
	Redis    RedisConfig
	Mongo    MongoConfig
	JWT      JWTConfig
	Payment  PaymentConfig
	Storage  StorageConfig
	Firebase FirebaseConfig
	Email    EmailConfig
	Limits   RateLimitConfig

	CORSOrigins []string
}

type DBConfig struct {
	Host     string
	User     string
	Password string
	Name     string
	Port     string
	SSLMode  string

	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

// DSN builds the postgres connection string.
func (c DBConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		c.Host, c.User, c.Password, c.Name, c.Port, c.SSLMode,
	)
}

type RedisConfig struct {
	URL string
}

type MongoConfig struct {
	URI       string
	Database  string
	ChatStore string
}

type JWTConfig struct {
	Secret string
	TTL    time.Duration
}

type PaymentConfig struct {
	KeyID      string
	KeySecret  string
	BaseURL    string
	Currency   string
	Timeout    time.Duration
	MaxRetries int
}

type StorageConfig struct {
	AWSRegion    string
	AWSAccessKey string
	AWSSecretKey string
	S3Bucket     string
	UploadDir    string
}

func (c StorageConfig) UseS3() bool {
	return c.AWSRegion != "" && c.AWSAccessKey != "" && c.AWSSecretKey != ""
}

type FirebaseConfig struct {
	ServiceAccountPath string
}

type EmailConfig struct {
	From        string
	Password    string
	SMTPHost    string
	SMTPPort    string
	CompanyName string
}

type RateLimitConfig struct {
	AuthPerMinute int
	AuthBurst     int
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	envFileErr := godotenv.Load()

	cfg := &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		DataMode: DataMode(strings.ToLower(getEnv("DATA_MODE", string(DataModePostgres)))),
		BaseURL:  getEnv("BASE_URL", "http://localhost:8080"),
		DB: DBConfig{
			Host:            os.Getenv("DB_HOST"),
			User:            os.Getenv("DB_USER"),
			Password:        os.Getenv("DB_PASSWORD"),
			Name:            os.Getenv("DB_NAME"),
			Port:            getEnv("DB_PORT", "5432"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxIdleConns:    getInt("DB_MAX_IDLE_CONNS", 10),
			MaxOpenConns:    getInt("DB_MAX_OPEN_CONNS", 100),
			ConnMaxLifetime: getDuration("DB_CONN_MAX_LIFETIME", time.Hour),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Mongo: MongoConfig{
			URI:       os.Getenv("MONGO_URI"),
			Database:  getEnv("MONGO_DATABASE", "propnest"),
			ChatStore: strings.ToLower(getEnv("CHAT_STORE", ChatStorePostgres)),
		},
		JWT: JWTConfig{
			Secret: os.Getenv("JWT_SECRET"),
			TTL:    getDuration("JWT_TTL", 7*24*time.Hour),
		},
		Payment: PaymentConfig{
			KeyID:      os.Getenv("RAZORPAY_KEY_ID"),
			KeySecret:  os.Getenv("RAZORPAY_KEY_SECRET"),
			BaseURL:    getEnv("RAZORPAY_BASE_URL", "https://api.razorpay.com"),
			Currency:   getEnv("PAYMENT_CURRENCY", "INR"),
			Timeout:    getDuration("PAYMENT_TIMEOUT", 10*time.Second),
			MaxRetries: getInt("PAYMENT_MAX_RETRIES", 2),
		},
		Storage: StorageConfig{
			AWSRegion:    os.Getenv("AWS_REGION"),
			AWSAccessKey: os.Getenv("AWS_ACCESS_KEY_ID"),
			AWSSecretKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
			S3Bucket:     os.Getenv("AWS_S3_BUCKET"),
			UploadDir:    getEnv("UPLOAD_DIR", "./uploads"),
		},
		Firebase: FirebaseConfig{
			ServiceAccountPath: os.Getenv("FIREBASE_SERVICE_ACCOUNT_PATH"),
		},
		Email: EmailConfig{
			From:        os.Getenv("EMAIL_FROM"),
			Password:    os.Getenv("EMAIL_PASSWORD"),
			SMTPHost:    os.Getenv("SMTP_HOST"),
			SMTPPort:    os.Getenv("SMTP_PORT"),
			CompanyName: getEnv("COMPANY_NAME", "PropNest"),
		},
		Limits: RateLimitConfig{
			AuthPerMinute: getInt("AUTH_RATE_PER_MINUTE", 20),
			AuthBurst:     getInt("AUTH_RATE_BURST", 5),
		},
		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "*")),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if envFileErr != nil && !errors.Is(envFileErr, os.ErrNotExist) {
		return cfg, fmt.Errorf("failed to read .env file: %w", envFileErr)
	}
	return cfg, nil
}

// Validate checks the settings each data mode needs.
func (c *Config) Validate() error {
	var problems []string

	if c.JWT.Secret == "" {
		problems = append(problems, "JWT_SECRET is required")
	}
	if c.JWT.TTL <= 0 {
		problems = append(problems, "JWT_TTL must be positive")
	}

	switch c.DataMode {
	case DataModeFixture:
	case DataModePostgres:
		if c.DB.Host == "" || c.DB.User == "" || c.DB.Name == "" {
			problems = append(problems, "DB_HOST, DB_USER and DB_NAME are required in postgres mode")
		}
		if c.Payment.KeyID == "" || c.Payment.KeySecret == "" {
			problems = append(problems, "RAZORPAY_KEY_ID and RAZORPAY_KEY_SECRET are required in postgres mode")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown DATA_MODE %q", c.DataMode))
	}

	switch c.Mongo.ChatStore {
	case ChatStorePostgres:
	case ChatStoreMongo:
		if c.Mongo.URI == "" {
			problems = append(problems, "MONGO_URI is required when CHAT_STORE=mongo")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown CHAT_STORE %q", c.Mongo.ChatStore))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
