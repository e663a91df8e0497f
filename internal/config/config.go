package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds application level configuration. Values come from an optional
// YAML file (CONFIG_FILE) and are overridden by environment variables.
type Config struct {
	ServerPort  string `yaml:"server_port"`
	SwaggerHost string `yaml:"swagger_host"`
	JWTSecret   string `yaml:"jwt_secret"`
	LogLevel    string `yaml:"log_level"`
	// SeedFile is applied at startup when set; used with the memory driver.
	SeedFile    string `yaml:"seed_file"`

	Database Database `yaml:"database"`
	Redis    Redis    `yaml:"redis"`
	Ledger   Ledger   `yaml:"ledger"`
}

// Database configures the ledger store.
type Database struct {
	// Driver is one of mysql, postgres or memory.
	Driver          string        `yaml:"driver"`
	MySQLDSN        string        `yaml:"mysql_dsn"`
	PostgresDSN     string        `yaml:"postgres_dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	LogLevel        string        `yaml:"log_level"`
	Reset           bool          `yaml:"reset"`
}

// Redis configures the card snapshot cache.
type Redis struct {
	Addr     string `yaml:"addr"`
	DB       int    `yaml:"db"`
	Password string `yaml:"password"`
}

// Ledger configures the transaction engine and approval workflow.
type Ledger struct {
	AutoApproveTopUps bool          `yaml:"auto_approve_top_ups"`
	UnitTimeout       time.Duration `yaml:"unit_timeout"`
	UnitMaxRetries    int           `yaml:"unit_max_retries"`
	RetryBaseDelay    time.Duration `yaml:"retry_base_delay"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		ServerPort: "8080",
		JWTSecret:  "change-me",
		LogLevel:   "info",
		Database: Database{
			Driver:          "mysql",
			MySQLDSN:        "user:password@tcp(localhost:3306)/mealcard?charset=utf8mb4&parseTime=True&loc=Local",
			PostgresDSN:     "host=localhost user=postgres password=postgres dbname=mealcard port=5432 sslmode=disable",
			MaxOpenConns:    25,
			MaxIdleConns:    10,
			ConnMaxLifetime: 5 * time.Minute,
			LogLevel:        "warn",
		},
		Redis: Redis{
			Addr: "localhost:6379",
		},
		Ledger: Ledger{
			UnitTimeout:    5 * time.Second,
			UnitMaxRetries: 3,
			RetryBaseDelay: 20 * time.Millisecond,
		},
	}
}

// Load builds Config from CONFIG_FILE (if set) and the environment.
func Load() (*Config, error) {
	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.ServerPort = getEnv("SERVER_PORT", c.ServerPort)
	c.SwaggerHost = getEnv("SWAGGER_HOST", c.SwaggerHost)
	c.JWTSecret = getEnv("JWT_SECRET", c.JWTSecret)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.SeedFile = getEnv("SEED_FILE", c.SeedFile)

	c.Database.Driver = getEnv("DB_DRIVER", c.Database.Driver)
	c.Database.MySQLDSN = getEnv("MYSQL_DSN", c.Database.MySQLDSN)
	c.Database.PostgresDSN = getEnv("POSTGRES_DSN", c.Database.PostgresDSN)
	c.Database.MaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", c.Database.MaxOpenConns)
	c.Database.MaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", c.Database.MaxIdleConns)
	c.Database.ConnMaxLifetime = getEnvDuration("DB_CONN_MAX_LIFETIME", c.Database.ConnMaxLifetime)
	c.Database.LogLevel = getEnv("DB_LOG_LEVEL", c.Database.LogLevel)
	c.Database.Reset = getEnvBool("RESET_DB", c.Database.Reset)

	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.DB = getEnvInt("REDIS_DB", c.Redis.DB)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)

	c.Ledger.AutoApproveTopUps = getEnvBool("AUTO_APPROVE_TOP_UPS", c.Ledger.AutoApproveTopUps)
	c.Ledger.UnitTimeout = getEnvDuration("UNIT_TIMEOUT", c.Ledger.UnitTimeout)
	c.Ledger.UnitMaxRetries = getEnvInt("UNIT_MAX_RETRIES", c.Ledger.UnitMaxRetries)
	c.Ledger.RetryBaseDelay = getEnvDuration("UNIT_RETRY_BASE_DELAY", c.Ledger.RetryBaseDelay)
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "mysql", "postgres", "memory":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}
	if c.Ledger.UnitTimeout <= 0 {
		return fmt.Errorf("UNIT_TIMEOUT must be positive")
	}
	if c.Ledger.UnitMaxRetries < 0 {
		return fmt.Errorf("UNIT_MAX_RETRIES must not be negative")
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			return parsed
		}
	}
	return def
}
