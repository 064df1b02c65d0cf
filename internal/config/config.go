package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the orchestrator.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Redis       RedisConfig       `yaml:"redis"`
	Providers   ProvidersConfig   `yaml:"providers"`
	OrphanQueue OrphanQueueConfig `yaml:"orphan_queue"`
	Workflow    WorkflowConfig    `yaml:"workflow"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// GetHost returns the server host, with container detection.
func (c ServerConfig) GetHost() string {
	// On ECS/container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// ProvidersConfig selects the active provider per channel and carries the
// per-provider settings. The Email/LinkedIn/Video selectors are overridable
// via EMAIL_PROVIDER, LINKEDIN_PROVIDER and VIDEO_PROVIDER.
type ProvidersConfig struct {
	Email    string `yaml:"email"`
	LinkedIn string `yaml:"linkedin"`
	Video    string `yaml:"video"`

	Lemlist       ProviderConfig `yaml:"lemlist"`
	Postmark      ProviderConfig `yaml:"postmark"`
	PhantomBuster ProviderConfig `yaml:"phantombuster"`
	HeyGen        VideoConfig    `yaml:"heygen"`
}

// ByName returns the settings block for a provider tag, and whether the tag
// is known.
func (p ProvidersConfig) ByName(name string) (ProviderConfig, bool) {
	switch name {
	case "lemlist":
		return p.Lemlist, true
	case "postmark":
		return p.Postmark, true
	case "phantombuster":
		return p.PhantomBuster, true
	case "heygen":
		return p.HeyGen.ProviderConfig, true
	}
	return ProviderConfig{}, false
}

// ProviderConfig holds credentials and webhook settings for one provider.
type ProviderConfig struct {
	APIKey         string `yaml:"api_key"`
	BaseURL        string `yaml:"base_url"`
	WebhookSecret  string `yaml:"webhook_secret"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the configured timeout as a duration.
func (c ProviderConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// VideoConfig extends ProviderConfig with video download constraints.
type VideoConfig struct {
	ProviderConfig `yaml:",inline"`

	// DownloadDir is the only directory DownloadVideo may write into.
	DownloadDir string `yaml:"download_dir"`
	// AllowedDomains are the hosts video URLs may point at.
	AllowedDomains []string `yaml:"allowed_domains"`
}

// OrphanQueueConfig tunes the orphaned-event queue processor.
type OrphanQueueConfig struct {
	PollIntervalSeconds int `yaml:"poll_interval_seconds"`
	DrainTimeoutSeconds int `yaml:"drain_timeout_seconds"`
}

// PollInterval returns the processor tick interval.
func (c OrphanQueueConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// DrainTimeout returns the graceful-drain wall-clock budget.
func (c OrphanQueueConfig) DrainTimeout() time.Duration {
	return time.Duration(c.DrainTimeoutSeconds) * time.Second
}

// WorkflowConfig holds workflow engine settings.
type WorkflowConfig struct {
	DefinitionsDir string `yaml:"definitions_dir"`
	RetentionDays  int    `yaml:"retention_days"`
}

// Load reads and parses the configuration file, applying defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Redis.URL == "" {
		cfg.Redis.URL = "redis://localhost:6379/0"
	}
	if cfg.Providers.Email == "" {
		cfg.Providers.Email = "lemlist"
	}
	if cfg.Providers.LinkedIn == "" {
		cfg.Providers.LinkedIn = "phantombuster"
	}
	if cfg.Providers.Video == "" {
		cfg.Providers.Video = "heygen"
	}
	if cfg.Providers.Lemlist.BaseURL == "" {
		cfg.Providers.Lemlist.BaseURL = "https://api.lemlist.com/api"
	}
	if cfg.Providers.Lemlist.TimeoutSeconds == 0 {
		cfg.Providers.Lemlist.TimeoutSeconds = 30
	}
	if cfg.Providers.Postmark.BaseURL == "" {
		cfg.Providers.Postmark.BaseURL = "https://api.postmarkapp.com"
	}
	if cfg.Providers.Postmark.TimeoutSeconds == 0 {
		cfg.Providers.Postmark.TimeoutSeconds = 30
	}
	if cfg.Providers.PhantomBuster.BaseURL == "" {
		cfg.Providers.PhantomBuster.BaseURL = "https://api.phantombuster.com/api/v2"
	}
	if cfg.Providers.PhantomBuster.TimeoutSeconds == 0 {
		cfg.Providers.PhantomBuster.TimeoutSeconds = 60
	}
	if cfg.Providers.HeyGen.BaseURL == "" {
		cfg.Providers.HeyGen.BaseURL = "https://api.heygen.com/v2"
	}
	if cfg.Providers.HeyGen.TimeoutSeconds == 0 {
		cfg.Providers.HeyGen.TimeoutSeconds = 120
	}
	if cfg.Providers.HeyGen.DownloadDir == "" {
		cfg.Providers.HeyGen.DownloadDir = "data/videos"
	}
	if len(cfg.Providers.HeyGen.AllowedDomains) == 0 {
		cfg.Providers.HeyGen.AllowedDomains = []string{"resource.heygen.com", "files.heygen.ai"}
	}
	if cfg.OrphanQueue.PollIntervalSeconds == 0 {
		cfg.OrphanQueue.PollIntervalSeconds = 10
	}
	if cfg.OrphanQueue.DrainTimeoutSeconds == 0 {
		cfg.OrphanQueue.DrainTimeoutSeconds = 30
	}
	if cfg.Workflow.DefinitionsDir == "" {
		cfg.Workflow.DefinitionsDir = "workflows"
	}
	if cfg.Workflow.RetentionDays == 0 {
		cfg.Workflow.RetentionDays = 90
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars on ECS.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}

	// Provider selection
	if v := os.Getenv("EMAIL_PROVIDER"); v != "" {
		cfg.Providers.Email = v
	}
	if v := os.Getenv("LINKEDIN_PROVIDER"); v != "" {
		cfg.Providers.LinkedIn = v
	}
	if v := os.Getenv("VIDEO_PROVIDER"); v != "" {
		cfg.Providers.Video = v
	}

	// Provider credentials and webhook secrets
	if v := os.Getenv("LEMLIST_API_KEY"); v != "" {
		cfg.Providers.Lemlist.APIKey = v
	}
	if v := os.Getenv("LEMLIST_WEBHOOK_SECRET"); v != "" {
		cfg.Providers.Lemlist.WebhookSecret = v
	}
	if v := os.Getenv("POSTMARK_SERVER_TOKEN"); v != "" {
		cfg.Providers.Postmark.APIKey = v
	}
	if v := os.Getenv("POSTMARK_WEBHOOK_SECRET"); v != "" {
		cfg.Providers.Postmark.WebhookSecret = v
	}
	if v := os.Getenv("PHANTOMBUSTER_API_KEY"); v != "" {
		cfg.Providers.PhantomBuster.APIKey = v
	}
	if v := os.Getenv("PHANTOMBUSTER_WEBHOOK_SECRET"); v != "" {
		cfg.Providers.PhantomBuster.WebhookSecret = v
	}
	if v := os.Getenv("HEYGEN_API_KEY"); v != "" {
		cfg.Providers.HeyGen.APIKey = v
	}
	if v := os.Getenv("HEYGEN_WEBHOOK_SECRET"); v != "" {
		cfg.Providers.HeyGen.WebhookSecret = v
	}
	if v := os.Getenv("HEYGEN_DOWNLOAD_DIR"); v != "" {
		cfg.Providers.HeyGen.DownloadDir = v
	}

	return cfg, nil
}
