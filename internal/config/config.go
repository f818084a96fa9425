// Package config loads settings for the client and the server from a YAML
// file, then applies environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rayaadinda/kp-inventory/internal/classify"
)

type Config struct {
	APIURL      string      `yaml:"api_url"`
	StoragePath string      `yaml:"storage_path"`
	Log         LogConfig   `yaml:"log"`
	Stock       StockConfig `yaml:"stock"`
	// StrictMerge re-validates the running total when an item is added to
	// the cart again. Turning it off restores the older behaviour.
	StrictMerge *bool        `yaml:"strict_merge"`
	Server      ServerConfig `yaml:"server"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	Dev   bool   `yaml:"dev"`
}

type StockConfig struct {
	Policy    string  `yaml:"policy"`
	Threshold int     `yaml:"threshold"`
	Percent   float64 `yaml:"percent"`
}

type ServerConfig struct {
	Addr         string          `yaml:"addr"`
	DBPath       string          `yaml:"db_path"`
	JWTSecret    string          `yaml:"jwt_secret"`
	TokenTTL     time.Duration   `yaml:"token_ttl"`
	AllowOrigins []string        `yaml:"allow_origins"`
	RateLimit    RateLimitConfig `yaml:"rate_limit"`
	Kafka        KafkaConfig     `yaml:"kafka"`
	OTLPEndpoint string          `yaml:"otlp_endpoint"`
	AdminEmail   string          `yaml:"admin_email"`
	AdminPass    string          `yaml:"admin_password"`

	// AuditRetentionDays prunes older audit rows at start-up; 0 keeps all.
	AuditRetentionDays int `yaml:"audit_retention_days"`
}

type RateLimitConfig struct {
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

func Default() Config {
	home, _ := os.UserHomeDir()
	return Config{
		APIURL:      "http://localhost:5000",
		StoragePath: filepath.Join(home, ".kpinv", "session.json"),
		Log:         LogConfig{Level: "info"},
		Stock: StockConfig{
			Policy:    string(classify.PolicyFixed),
			Threshold: classify.DefaultThreshold,
			Percent:   classify.DefaultPercent,
		},
		Server: ServerConfig{
			Addr:         ":5000",
			DBPath:       "kpinv.db",
			TokenTTL:     24 * time.Hour,
			AllowOrigins: []string{"http://localhost:3000"},
			RateLimit:    RateLimitConfig{Requests: 100, Window: time.Minute},
			Kafka:        KafkaConfig{Topic: "inventory-checkouts"},
			AdminEmail:   "admin@example.com",
			AdminPass:    "changeme",

			AuditRetentionDays: 365,
		},
	}
}

// Load reads path (a missing file is not an error when path is empty or
// does not exist) and applies KPINV_* environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	cfg.APIURL = getEnv("KPINV_API_URL", cfg.APIURL)
	cfg.StoragePath = getEnv("KPINV_STORAGE_PATH", cfg.StoragePath)
	cfg.Log.Level = getEnv("KPINV_LOG_LEVEL", cfg.Log.Level)
	cfg.Stock.Policy = getEnv("KPINV_STOCK_POLICY", cfg.Stock.Policy)
	cfg.Server.Addr = getEnv("KPINV_ADDR", cfg.Server.Addr)
	cfg.Server.DBPath = getEnv("KPINV_DB_PATH", cfg.Server.DBPath)
	cfg.Server.JWTSecret = getEnv("KPINV_JWT_SECRET", cfg.Server.JWTSecret)
	cfg.Server.OTLPEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Server.OTLPEndpoint)
	cfg.Server.Kafka.Topic = getEnv("KPINV_KAFKA_TOPIC", cfg.Server.Kafka.Topic)
	if v := os.Getenv("KPINV_KAFKA_BROKERS"); v != "" {
		cfg.Server.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KPINV_STOCK_THRESHOLD"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("KPINV_STOCK_THRESHOLD: %w", err)
		}
		cfg.Stock.Threshold = n
	}
	if v := os.Getenv("KPINV_STOCK_PERCENT"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("KPINV_STOCK_PERCENT: %w", err)
		}
		cfg.Stock.Percent = f
	}
	return nil
}

// StockPolicy builds the configured minimum-level policy.
func (c Config) StockPolicy() (classify.StockPolicy, error) {
	return classify.NewStockPolicy(c.Stock.Policy, c.Stock.Threshold, c.Stock.Percent)
}

// StrictCartMerge defaults to true.
func (c Config) StrictCartMerge() bool {
	return c.StrictMerge == nil || *c.StrictMerge
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
