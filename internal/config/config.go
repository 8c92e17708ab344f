package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Apify   ApifyConfig   `yaml:"apify" mapstructure:"apify"`
	Graph   GraphConfig   `yaml:"graph" mapstructure:"graph"`
	Storage StorageConfig `yaml:"storage" mapstructure:"storage"`
	Image   ImageConfig   `yaml:"image" mapstructure:"image"`
	Sync    SyncConfig    `yaml:"sync" mapstructure:"sync"`
	Queue   QueueConfig   `yaml:"queue" mapstructure:"queue"`
	Pricing PricingConfig `yaml:"pricing" mapstructure:"pricing"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ApifyConfig holds paid scraper platform settings.
type ApifyConfig struct {
	Token          string `yaml:"token" mapstructure:"token"`
	BaseURL        string `yaml:"base_url" mapstructure:"base_url"`
	InstagramActor string `yaml:"instagram_actor" mapstructure:"instagram_actor"`
	TikTokActor    string `yaml:"tiktok_actor" mapstructure:"tiktok_actor"`
	YouTubeActor   string `yaml:"youtube_actor" mapstructure:"youtube_actor"`
	WaitSecs       int    `yaml:"wait_secs" mapstructure:"wait_secs"`
}

// GraphConfig holds business-discovery API settings. The acting account
// must itself be a connected, authenticated subject.
type GraphConfig struct {
	BaseURL         string `yaml:"base_url" mapstructure:"base_url"`
	ActingAccountID string `yaml:"acting_account_id" mapstructure:"acting_account_id"`
	ActingUsername  string `yaml:"acting_username" mapstructure:"acting_username"`
	AccessToken     string `yaml:"access_token" mapstructure:"access_token"`
}

// StorageConfig holds blob store settings for persisted profile images.
type StorageConfig struct {
	BaseURL       string `yaml:"base_url" mapstructure:"base_url"`
	PublicBaseURL string `yaml:"public_base_url" mapstructure:"public_base_url"`
	Bucket        string `yaml:"bucket" mapstructure:"bucket"`
	Token         string `yaml:"token" mapstructure:"token"`
}

// ImageConfig configures profile picture downloads.
type ImageConfig struct {
	Collection   string `yaml:"collection" mapstructure:"collection"`
	TimeoutSecs  int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MinSizeBytes int    `yaml:"min_size_bytes" mapstructure:"min_size_bytes"`
}

// SyncConfig configures the scheduled sync job. Staleness windows are
// per-subject-kind policy, not a universal constant.
type SyncConfig struct {
	CreatorMaxAgeDays int    `yaml:"creator_max_age_days" mapstructure:"creator_max_age_days"`
	CompanyMaxAgeDays int    `yaml:"company_max_age_days" mapstructure:"company_max_age_days"`
	ChunkSize         int    `yaml:"chunk_size" mapstructure:"chunk_size"`
	ChunkDelaySecs    int    `yaml:"chunk_delay_secs" mapstructure:"chunk_delay_secs"`
	FreeConcurrency   int    `yaml:"free_concurrency" mapstructure:"free_concurrency"`
	Hour              int    `yaml:"hour" mapstructure:"hour"`
	Timezone          string `yaml:"timezone" mapstructure:"timezone"`
}

// QueueConfig configures the in-process enrichment queue.
type QueueConfig struct {
	ItemDelayMillis int `yaml:"item_delay_millis" mapstructure:"item_delay_millis"`
}

// PricingConfig holds per-source scraper pricing.
type PricingConfig struct {
	RatesFile string `yaml:"rates_file" mapstructure:"rates_file"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ENRICH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("apify.base_url", "https://api.apify.com/v2")
	v.SetDefault("apify.instagram_actor", "apify~instagram-profile-scraper")
	v.SetDefault("apify.tiktok_actor", "clockworks~tiktok-profile-scraper")
	v.SetDefault("apify.youtube_actor", "streamers~youtube-channel-scraper")
	v.SetDefault("apify.wait_secs", 120)
	v.SetDefault("graph.base_url", "https://graph.facebook.com/v21.0")
	v.SetDefault("storage.bucket", "public-assets")
	v.SetDefault("image.collection", "profile-pics")
	v.SetDefault("image.timeout_secs", 15)
	v.SetDefault("image.min_size_bytes", 1024)
	v.SetDefault("sync.creator_max_age_days", 7)
	v.SetDefault("sync.company_max_age_days", 30)
	v.SetDefault("sync.chunk_size", 50)
	v.SetDefault("sync.chunk_delay_secs", 3)
	v.SetDefault("sync.free_concurrency", 10)
	v.SetDefault("sync.hour", 4)
	v.SetDefault("sync.timezone", "America/Sao_Paulo")
	v.SetDefault("queue.item_delay_millis", 1500)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
