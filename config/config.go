package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"watch-market/models"
	"watch-market/services"
	"watch-market/storage"
)

var (
	ErrInvalidDriver    = errors.New("config: invalid store driver")
	ErrInvalidThreshold = errors.New("config: threshold must be in [0, 1]")
	ErrInvalidDataYear  = errors.New("config: data year out of range")
	ErrInvalidShipping  = errors.New("config: shipping cap must not be negative")
	ErrInvalidIQR       = errors.New("config: IQR multiplier must be positive")
	ErrInvalidColumn    = errors.New("config: column cannot be encoded")
	ErrInvalidTrend     = errors.New("config: invalid trend settings")
)

// Config holds all application configuration loaded from environment variables
// and the optional pipeline tunables file.
type Config struct {
	RawCSVPath       string
	CleanedCSVPath   string
	ProcessedCSVPath string

	StoreDriver      string
	SQLitePath       string
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	StoreConnectRetries int
	StoreRetryDelay     time.Duration

	LogLevel string

	// Tunables, overridable from the PIPELINE_CONFIG file.
	DataYear          int
	MaterialThreshold float64
	LocationThreshold float64
	MaxShipping       float64
	IQRMultiplier     float64
	EncodeColumns     []string
	TrendMinListings  int
	TrendMaxPValue    float64
	TrendMinRSquared  float64
}

// tunables mirrors the YAML file; nil fields keep the env value.
type tunables struct {
	DataYear          *int     `yaml:"data_year"`
	MaterialThreshold *float64 `yaml:"material_threshold"`
	LocationThreshold *float64 `yaml:"location_threshold"`
	MaxShipping       *float64 `yaml:"max_shipping"`
	IQRMultiplier     *float64 `yaml:"iqr_multiplier"`
	EncodeColumns     []string `yaml:"encode_columns"`
	TrendMinListings  *int     `yaml:"trend_min_listings"`
	TrendMaxPValue    *float64 `yaml:"trend_max_p_value"`
	TrendMinRSquared  *float64 `yaml:"trend_min_r_squared"`
}

// Load reads the .env file, the environment and the PIPELINE_CONFIG file,
// then validates the result.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	cleaner := services.DefaultCleanerOptions()
	pre := services.DefaultPreprocessorOptions()
	dep := services.DefaultDepreciationOptions()

	cfg := &Config{
		RawCSVPath:       getEnv("RAW_CSV_PATH", "./data/watches_raw.csv"),
		CleanedCSVPath:   getEnv("CLEANED_CSV_PATH", "./output/watches_cleaned.csv"),
		ProcessedCSVPath: getEnv("PROCESSED_CSV_PATH", "./output/watches_processed.csv"),

		StoreDriver:      strings.ToLower(getEnv("STORE_DRIVER", storage.DriverSQLite)),
		SQLitePath:       getEnv("SQLITE_PATH", "./output/watches.db"),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "watches"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "watches"),
		PostgresDB:       getEnv("POSTGRES_DB", "watch_market"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		StoreConnectRetries: getEnvInt("STORE_CONNECT_RETRIES", 3),
		StoreRetryDelay:     time.Duration(getEnvInt("STORE_RETRY_DELAY_MS", 500)) * time.Millisecond,

		LogLevel: getEnv("LOG_LEVEL", "info"),

		DataYear:          getEnvInt("DATA_YEAR", cleaner.DataYear),
		MaterialThreshold: getEnvFloat("MATERIAL_THRESHOLD", cleaner.MaterialThreshold),
		LocationThreshold: getEnvFloat("LOCATION_THRESHOLD", cleaner.LocationThreshold),
		MaxShipping:       getEnvFloat("MAX_SHIPPING", cleaner.MaxShipping),
		IQRMultiplier:     getEnvFloat("IQR_MULTIPLIER", pre.IQRMultiplier),
		EncodeColumns:     getEnvList("ENCODE_COLUMNS", pre.EncodeColumns),
		TrendMinListings:  getEnvInt("TREND_MIN_LISTINGS", dep.MinListings),
		TrendMaxPValue:    getEnvFloat("TREND_MAX_P_VALUE", dep.MaxPValue),
		TrendMinRSquared:  getEnvFloat("TREND_MIN_R_SQUARED", dep.MinRSquared),
	}

	if path := os.Getenv("PIPELINE_CONFIG"); path != "" {
		if err := cfg.ApplyFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyFile overrides the tunables with the values present in a YAML file.
func (c *Config) ApplyFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %q: %w", path, err)
	}
	return c.ApplyYAML(b)
}

// ApplyYAML overrides the tunables with the keys present in b.
func (c *Config) ApplyYAML(b []byte) error {
	var t tunables
	if err := yaml.Unmarshal(b, &t); err != nil {
		return fmt.Errorf("config: parse tunables: %w", err)
	}

	if t.DataYear != nil {
		c.DataYear = *t.DataYear
	}
	if t.MaterialThreshold != nil {
		c.MaterialThreshold = *t.MaterialThreshold
	}
	if t.LocationThreshold != nil {
		c.LocationThreshold = *t.LocationThreshold
	}
	if t.MaxShipping != nil {
		c.MaxShipping = *t.MaxShipping
	}
	if t.IQRMultiplier != nil {
		c.IQRMultiplier = *t.IQRMultiplier
	}
	if t.EncodeColumns != nil {
		c.EncodeColumns = t.EncodeColumns
	}
	if t.TrendMinListings != nil {
		c.TrendMinListings = *t.TrendMinListings
	}
	if t.TrendMaxPValue != nil {
		c.TrendMaxPValue = *t.TrendMaxPValue
	}
	if t.TrendMinRSquared != nil {
		c.TrendMinRSquared = *t.TrendMinRSquared
	}
	return nil
}

// Validate reports the first out-of-range setting.
func (c *Config) Validate() error {
	if c.StoreDriver != storage.DriverSQLite && c.StoreDriver != storage.DriverPostgres {
		return fmt.Errorf("%w: %q", ErrInvalidDriver, c.StoreDriver)
	}
	if c.DataYear < 1905 || c.DataYear > 2100 {
		return fmt.Errorf("%w: %d", ErrInvalidDataYear, c.DataYear)
	}
	for name, v := range map[string]float64{
		"material": c.MaterialThreshold,
		"location": c.LocationThreshold,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%w: %s %v", ErrInvalidThreshold, name, v)
		}
	}
	if c.MaxShipping < 0 {
		return fmt.Errorf("%w: %v", ErrInvalidShipping, c.MaxShipping)
	}
	if c.IQRMultiplier <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidIQR, c.IQRMultiplier)
	}
	for _, col := range c.EncodeColumns {
		if !models.IsCategorical(col) {
			return fmt.Errorf("%w: %q", ErrInvalidColumn, col)
		}
	}
	if c.TrendMinListings < 3 {
		return fmt.Errorf("%w: min listings %d, need at least 3", ErrInvalidTrend, c.TrendMinListings)
	}
	if c.TrendMaxPValue <= 0 || c.TrendMaxPValue > 1 || c.TrendMinRSquared < 0 || c.TrendMinRSquared > 1 {
		return fmt.Errorf("%w: p < %v, R² > %v", ErrInvalidTrend, c.TrendMaxPValue, c.TrendMinRSquared)
	}
	return nil
}

// DSN returns the connection string for the configured store driver.
func (c *Config) DSN() string {
	if c.StoreDriver == storage.DriverSQLite {
		return c.SQLitePath
	}
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

// CleanerOptions returns the Stage A settings.
func (c *Config) CleanerOptions() services.CleanerOptions {
	return services.CleanerOptions{
		DataYear:          c.DataYear,
		MaterialThreshold: c.MaterialThreshold,
		MaxShipping:       c.MaxShipping,
		LocationThreshold: c.LocationThreshold,
	}
}

// PreprocessorOptions returns the Stage B settings.
func (c *Config) PreprocessorOptions() services.PreprocessorOptions {
	return services.PreprocessorOptions{
		IQRMultiplier: c.IQRMultiplier,
		EncodeColumns: append([]string(nil), c.EncodeColumns...),
	}
}

// DepreciationOptions returns the trend fitting settings.
func (c *Config) DepreciationOptions() services.DepreciationOptions {
	return services.DepreciationOptions{
		MinListings: c.TrendMinListings,
		MaxPValue:   c.TrendMaxPValue,
		MinRSquared: c.TrendMinRSquared,
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err == nil {
			return f
		}
	}
	return fallback
}

// getEnvList reads a comma-separated list, skipping empty items.
func getEnvList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(val, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
