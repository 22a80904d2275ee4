// Package config reads service settings from the environment (optionally a .env file).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/yeremiapane/cloud-kitchen/models"
	"github.com/yeremiapane/cloud-kitchen/utils"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Operator is a configured staff credential for the simulated login.
type Operator struct {
	Username     string
	PasswordHash []byte
	Role         string
}

// CheckPassword compares password against the stored bcrypt hash.
func (o Operator) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword(o.PasswordHash, []byte(password)) == nil
}

type Config struct {
	Port     string
	GinMode  string
	LogLevel string

	DBDriver string
	DBDSN    string
	SeedMenu bool

	CheckoutAtomic      bool
	DisplayIDScheme     string
	RequestTimeout      time.Duration
	BoardPollInterval   time.Duration
	OrphanGrace         time.Duration
	OrphanCheckInterval time.Duration

	JWTSecret string
	TokenTTL  time.Duration
	Operators []Operator

	AMQPURL      string
	AMQPExchange string

	CORSOrigins    []string
	RateLimitRPS   float64
	RateLimitBurst int
}

// Load reads .env when present, then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		utils.InfoLogger.Println("No .env file loaded, using process environment")
	}

	cfg := &Config{
		Port:     getEnv("PORT", "8080"),
		GinMode:  getEnv("GIN_MODE", "debug"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DBDriver: strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
		DBDSN:    getEnv("DB_DSN", "cloudkitchen.db"),

		DisplayIDScheme: getEnv("DISPLAY_ID_SCHEME", "sequence"),
		JWTSecret:       os.Getenv("JWT_SECRET"),
		AMQPURL:         os.Getenv("AMQP_URL"),
		AMQPExchange:    getEnv("AMQP_EXCHANGE", "order_status_fanout"),
		CORSOrigins:     splitList(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:5173")),
	}

	var err error
	if cfg.SeedMenu, err = getBool("SEED_MENU", true); err != nil {
		return nil, err
	}
	if cfg.CheckoutAtomic, err = getBool("CHECKOUT_ATOMIC", true); err != nil {
		return nil, err
	}
	if cfg.RequestTimeout, err = getDuration("REQUEST_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.BoardPollInterval, err = getDuration("BOARD_POLL_INTERVAL", 15*time.Second); err != nil {
		return nil, err
	}
	if cfg.OrphanGrace, err = getDuration("ORPHAN_GRACE", 2*time.Minute); err != nil {
		return nil, err
	}
	if cfg.OrphanCheckInterval, err = getDuration("ORPHAN_CHECK_INTERVAL", time.Minute); err != nil {
		return nil, err
	}
	if cfg.TokenTTL, err = getDuration("TOKEN_TTL", 12*time.Hour); err != nil {
		return nil, err
	}
	if cfg.RateLimitRPS, err = getFloat("RATE_LIMIT_RPS", 20); err != nil {
		return nil, err
	}
	if cfg.RateLimitBurst, err = getInt("RATE_LIMIT_BURST", 40); err != nil {
		return nil, err
	}

	if cfg.JWTSecret == "" {
		if cfg.GinMode == "release" {
			return nil, fmt.Errorf("JWT_SECRET is required in release mode")
		}
		utils.ErrorLogger.Println("Warning: JWT_SECRET not set, using development secret")
		cfg.JWTSecret = "cloud-kitchen-dev-secret"
	}

	cfg.Operators, err = loadOperators()
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadOperators() ([]Operator, error) {
	admin, err := operatorFromEnv("OPERATOR", "admin", "admin1234", models.RoleAdmin)
	if err != nil {
		return nil, err
	}
	rider, err := operatorFromEnv("DELIVERY", "rider", "rider1234", models.RoleDelivery)
	if err != nil {
		return nil, err
	}
	kitchen, err := operatorFromEnv("KITCHEN", "kitchen", "kitchen1234", models.RoleStaff)
	if err != nil {
		return nil, err
	}
	return []Operator{admin, rider, kitchen}, nil
}

// operatorFromEnv reads <PREFIX>_USERNAME and either <PREFIX>_PASSWORD_HASH or <PREFIX>_PASSWORD.
func operatorFromEnv(prefix, defaultUser, defaultPassword, role string) (Operator, error) {
	op := Operator{
		Username: getEnv(prefix+"_USERNAME", defaultUser),
		Role:     getEnv(prefix+"_ROLE", role),
	}

	if hash := os.Getenv(prefix + "_PASSWORD_HASH"); hash != "" {
		if _, err := bcrypt.Cost([]byte(hash)); err != nil {
			return Operator{}, fmt.Errorf("%s_PASSWORD_HASH is not a bcrypt hash: %w", prefix, err)
		}
		op.PasswordHash = []byte(hash)
		return op, nil
	}

	password := os.Getenv(prefix + "_PASSWORD")
	if password == "" {
		utils.ErrorLogger.Printf("Warning: %s_PASSWORD not set, using default credential for %s", prefix, op.Username)
		password = defaultPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Operator{}, fmt.Errorf("hash %s password: %w", prefix, err)
	}
	op.PasswordHash = hash
	return op, nil
}

// InitDB opens the configured database. Supported drivers: sqlite, mysql, postgres.
func InitDB(cfg *Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DBDSN)
	case "mysql":
		dialector = mysql.Open(cfg.DBDSN)
	case "postgres":
		dialector = postgres.Open(cfg.DBDSN)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}

	logLevel := logger.Warn
	if cfg.GinMode == "release" {
		logLevel = logger.Error
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.DBDriver, err)
	}

	if cfg.DBDriver == "sqlite" {
		// sqlite allows a single writer
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	utils.InfoLogger.Printf("Connected to %s database", cfg.DBDriver)
	return db, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return d, nil
}

func getFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
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
