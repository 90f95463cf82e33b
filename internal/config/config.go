package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config stores all configuration for the application. Every key has a
// documented default so a missing key is never an error.
type Config struct {
	ServerPort  string `mapstructure:"SERVER_PORT"`
	LogLevel    string `mapstructure:"LOG_LEVEL"`
	PostgresURL string `mapstructure:"POSTGRES_URL"`
	RedisAddr   string `mapstructure:"REDIS_ADDR"`
	SnapshotDir string `mapstructure:"SNAPSHOT_DIR"`

	// Scheduling.
	DefaultIntervalMinutes int `mapstructure:"CHECK_INTERVAL_MINUTES"`
	SchedulerTickSeconds   int `mapstructure:"SCHEDULER_TICK_SECONDS"`

	// Crawling and fetching.
	CrawlMaxDepth      int  `mapstructure:"CRAWL_MAX_DEPTH"`
	CrawlTimeout       int  `mapstructure:"CRAWL_TIMEOUT_SECONDS"`
	CrawlRatePerSecond int  `mapstructure:"CRAWL_RATE_PER_SECOND"`
	CrawlMaxRetries    int  `mapstructure:"CRAWL_MAX_RETRIES"`
	CheckExternalLinks bool `mapstructure:"CHECK_EXTERNAL_LINKS"`
	RespectRobots      bool `mapstructure:"RESPECT_ROBOTS"`
	ProbeCacheTTLHours int  `mapstructure:"PROBE_CACHE_TTL_HOURS"`

	// Comparison thresholds. Per-website overrides take precedence when
	// set; these are the global fallbacks.
	ContentThreshold    float64 `mapstructure:"CONTENT_SIMILARITY_THRESHOLD"`
	StructureThreshold  float64 `mapstructure:"STRUCTURE_SIMILARITY_THRESHOLD"`
	VisualThreshold     float64 `mapstructure:"VISUAL_DIFF_THRESHOLD_PERCENT"`
	PerceptualThreshold float64 `mapstructure:"PERCEPTUAL_SIMILARITY_THRESHOLD"`
	PixelDiffTolerance  int     `mapstructure:"PIXEL_DIFF_TOLERANCE"`

	// Screenshot capture.
	ScreenshotTimeout int `mapstructure:"SCREENSHOT_TIMEOUT_SECONDS"`
	ViewportWidth     int `mapstructure:"SCREENSHOT_VIEWPORT_WIDTH"`
	ViewportHeight    int `mapstructure:"SCREENSHOT_VIEWPORT_HEIGHT"`
}

// Load reads configuration from a .env file or environment variables.
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.SetConfigType("env")
	viper.AutomaticEnv()

	// Attempt to read the .env file, but don't fail if it's not present.
	// This allows configuration purely through environment variables.
	_ = viper.ReadInConfig()

	viper.SetDefault("SERVER_PORT", "8085")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("POSTGRES_URL", "postgres://localhost:5432/monitor")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("SNAPSHOT_DIR", "./data/snapshots")

	viper.SetDefault("CHECK_INTERVAL_MINUTES", 1440) // daily
	viper.SetDefault("SCHEDULER_TICK_SECONDS", 20)

	viper.SetDefault("CRAWL_MAX_DEPTH", 2)
	viper.SetDefault("CRAWL_TIMEOUT_SECONDS", 30)
	viper.SetDefault("CRAWL_RATE_PER_SECOND", 8)
	viper.SetDefault("CRAWL_MAX_RETRIES", 3)
	viper.SetDefault("CHECK_EXTERNAL_LINKS", true)
	viper.SetDefault("RESPECT_ROBOTS", false)
	viper.SetDefault("PROBE_CACHE_TTL_HOURS", 6)

	viper.SetDefault("CONTENT_SIMILARITY_THRESHOLD", 0.95)
	viper.SetDefault("STRUCTURE_SIMILARITY_THRESHOLD", 0.98)
	viper.SetDefault("VISUAL_DIFF_THRESHOLD_PERCENT", 5.0)
	viper.SetDefault("PERCEPTUAL_SIMILARITY_THRESHOLD", 0.95)
	viper.SetDefault("PIXEL_DIFF_TOLERANCE", 10)

	viper.SetDefault("SCREENSHOT_TIMEOUT_SECONDS", 45)
	viper.SetDefault("SCREENSHOT_VIEWPORT_WIDTH", 1366)
	viper.SetDefault("SCREENSHOT_VIEWPORT_HEIGHT", 900)

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FetchTimeout returns the per-request crawl timeout as a duration.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.CrawlTimeout) * time.Second
}

// SchedulerTick returns the poll cadence of the scheduling loop.
func (c *Config) SchedulerTick() time.Duration {
	return time.Duration(c.SchedulerTickSeconds) * time.Second
}

// ProbeCacheTTL returns how long external-link probe results stay cached.
func (c *Config) ProbeCacheTTL() time.Duration {
	return time.Duration(c.ProbeCacheTTLHours) * time.Hour
}
