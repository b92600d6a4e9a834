package config

import (
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/timmy/randmeme/internal/domain"
)

// Source types accepted by source.type.
const (
	SourceReddit  = "reddit"
	SourceStaging = "staging"
)

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Source      SourceConfig      `mapstructure:"source"`
	Reddit      RedditConfig      `mapstructure:"reddit"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Validator   ValidatorConfig   `mapstructure:"validator"`
	Fetcher     FetcherConfig     `mapstructure:"fetcher"`
	Compression CompressionConfig `mapstructure:"compression"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORS            CORSConfig    `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

type SourceConfig struct {
	Type    string        `mapstructure:"type"`
	Staging StagingConfig `mapstructure:"staging"`
}

type StagingConfig struct {
	Path string `mapstructure:"path"`
}

// RedditConfig holds the script-app credentials and listing settings.
type RedditConfig struct {
	ClientID          string        `mapstructure:"client_id"`
	ClientSecret      string        `mapstructure:"client_secret"`
	Username          string        `mapstructure:"username"`
	Password          string        `mapstructure:"password"`
	Subreddit         string        `mapstructure:"subreddit"`
	UserAgent         string        `mapstructure:"user_agent"`
	AuthURL           string        `mapstructure:"auth_url"`
	APIURL            string        `mapstructure:"api_url"`
	TopPeriod         string        `mapstructure:"top_period"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
	Timeout           time.Duration `mapstructure:"timeout"`
}

type CacheConfig struct {
	CandidateLimit  int           `mapstructure:"candidate_limit"`
	MaxEntries      int           `mapstructure:"max_entries"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	Retry           RetryConfig   `mapstructure:"retry"`
}

type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	JitterUnit  time.Duration `mapstructure:"jitter_unit"`
}

type ValidatorConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
	Workers int           `mapstructure:"workers"`
}

type FetcherConfig struct {
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes"`
	MaxPixels    int64         `mapstructure:"max_pixels"`
}

type CompressionConfig struct {
	MaxBytes     int `mapstructure:"max_bytes"`
	QualityFloor int `mapstructure:"quality_floor"`
	QualityStart int `mapstructure:"quality_start"`
	QualityStep  int `mapstructure:"quality_step"`
	Workers      int `mapstructure:"workers"`
}

// Budget returns the size budget applied to every served image.
func (c CompressionConfig) Budget() domain.SizeBudget {
	return domain.SizeBudget{MaxBytes: c.MaxBytes, QualityFloor: c.QualityFloor}
}

// Load reads configuration from file, .env and environment, then validates it.
// Parameters:
//   - configPath: explicit config file; empty searches ./configs and the working directory.
// Returns:
//   - *Config: loaded configuration.
//   - error: non-nil if reading fails or a required value is missing.
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Secrets come from the environment
	v.BindEnv("reddit.client_id", "REDDIT_CLIENT_ID")
	v.BindEnv("reddit.client_secret", "REDDIT_CLIENT_SECRET")
	v.BindEnv("reddit.username", "REDDIT_USERNAME")
	v.BindEnv("reddit.password", "REDDIT_PASSWORD")
	v.BindEnv("reddit.subreddit", "REDDIT_SUBREDDIT")
	v.BindEnv("source.type", "SOURCE_TYPE")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.shutdown_timeout", 5*time.Second)
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})

	v.SetDefault("source.type", SourceReddit)
	v.SetDefault("source.staging.path", "./data/staging")

	v.SetDefault("reddit.subreddit", "ProgrammerHumor")
	v.SetDefault("reddit.user_agent", "linux:randmeme:v1.0 (by /u/randmeme)")
	v.SetDefault("reddit.auth_url", "https://www.reddit.com/api/v1/access_token")
	v.SetDefault("reddit.api_url", "https://oauth.reddit.com")
	v.SetDefault("reddit.top_period", "day")
	v.SetDefault("reddit.requests_per_minute", 60)
	v.SetDefault("reddit.timeout", 15*time.Second)

	v.SetDefault("cache.candidate_limit", 70)
	v.SetDefault("cache.max_entries", 50)
	v.SetDefault("cache.refresh_interval", 2*time.Hour)
	v.SetDefault("cache.retry.max_attempts", 5)
	v.SetDefault("cache.retry.jitter_unit", time.Second)

	v.SetDefault("validator.timeout", 5*time.Second)
	v.SetDefault("validator.workers", 8)

	v.SetDefault("fetcher.timeout", 30*time.Second)
	v.SetDefault("fetcher.max_body_bytes", 32<<20)
	v.SetDefault("fetcher.max_pixels", 89_478_485)

	v.SetDefault("compression.max_bytes", 2<<20)
	v.SetDefault("compression.quality_floor", 10)
	v.SetDefault("compression.quality_start", 85)
	v.SetDefault("compression.quality_step", 10)
	v.SetDefault("compression.workers", runtime.NumCPU())
}

// Validate checks required credentials and numeric ranges.
func (c *Config) Validate() error {
	var errs []error

	switch c.Source.Type {
	case SourceReddit:
		missing := []string{}
		for name, val := range map[string]string{
			"REDDIT_CLIENT_ID":     c.Reddit.ClientID,
			"REDDIT_CLIENT_SECRET": c.Reddit.ClientSecret,
			"REDDIT_USERNAME":      c.Reddit.Username,
			"REDDIT_PASSWORD":      c.Reddit.Password,
		} {
			if strings.TrimSpace(val) == "" {
				missing = append(missing, name)
			}
		}
		if len(missing) > 0 {
			sort.Strings(missing)
			errs = append(errs, fmt.Errorf("missing reddit credentials: %s", strings.Join(missing, ", ")))
		}
		if c.Reddit.Subreddit == "" {
			errs = append(errs, errors.New("reddit.subreddit must not be empty"))
		}
	case SourceStaging:
		if c.Source.Staging.Path == "" {
			errs = append(errs, errors.New("source.staging.path must not be empty"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown source.type %q", c.Source.Type))
	}

	if c.Cache.MaxEntries <= 0 {
		errs = append(errs, errors.New("cache.max_entries must be positive"))
	}
	if c.Cache.CandidateLimit <= 0 {
		errs = append(errs, errors.New("cache.candidate_limit must be positive"))
	}
	if c.Cache.RefreshInterval <= 0 {
		errs = append(errs, errors.New("cache.refresh_interval must be positive"))
	}
	if c.Cache.Retry.MaxAttempts <= 0 {
		errs = append(errs, errors.New("cache.retry.max_attempts must be positive"))
	}
	if c.Compression.MaxBytes <= 0 {
		errs = append(errs, errors.New("compression.max_bytes must be positive"))
	}
	if c.Compression.QualityStep <= 0 {
		errs = append(errs, errors.New("compression.quality_step must be positive"))
	}
	if c.Compression.QualityStart < 1 || c.Compression.QualityStart > 100 {
		errs = append(errs, errors.New("compression.quality_start must be within 1..100"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
