// Package config provides configuration loading and validation for the resume screener.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides (RS_SERVER_PORT, RS_LLM_MODEL, ...).
const EnvPrefix = "RS"

// AppConfig is the process-wide configuration, read once at start and passed explicitly
// to the components that need it.
type AppConfig struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Auth      AuthConfig      `mapstructure:"auth"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Resumes   ResumesConfig   `mapstructure:"resumes"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
	Events    EventsConfig    `mapstructure:"events"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Log       LogConfig       `mapstructure:"log"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port        int      `mapstructure:"port"`
	CORSOrigins []string `mapstructure:"cors-origins"`
}

// DatabaseConfig holds the PostgreSQL connection settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

// AuthConfig holds token and password hashing settings.
type AuthConfig struct {
	JWTSecret  string        `mapstructure:"jwt-secret"`
	TokenTTL   time.Duration `mapstructure:"token-ttl"`
	BcryptCost int           `mapstructure:"bcrypt-cost"`
	Pepper     string        `mapstructure:"pepper"`
}

// LLMConfig selects the text-completion provider used for skill extraction.
// APIKey applies to whichever provider is selected; the provider-specific keys are
// used only when it is empty.
type LLMConfig struct {
	Provider     string        `mapstructure:"provider"`
	Model        string        `mapstructure:"model"`
	APIKey       string        `mapstructure:"api-key"`
	OpenAIAPIKey string        `mapstructure:"openai-api-key"`
	GeminiAPIKey string        `mapstructure:"gemini-api-key"`
	BaseURL      string        `mapstructure:"base-url"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// ProviderAPIKey returns the credential for the selected provider.
func (c LLMConfig) ProviderAPIKey() string {
	if key := strings.TrimSpace(c.APIKey); key != "" {
		return key
	}
	switch c.Provider {
	case "gemini":
		return strings.TrimSpace(c.GeminiAPIKey)
	case "openai", "":
		return strings.TrimSpace(c.OpenAIAPIKey)
	}
	return ""
}

// ResumesConfig controls the resume ingestion flow.
type ResumesConfig struct {
	// ExtractOnUpload makes the single-file upload run skill extraction like the batch path.
	ExtractOnUpload bool  `mapstructure:"extract-on-upload"`
	BulkConcurrency int   `mapstructure:"bulk-concurrency"`
	MaxUploadMB     int64 `mapstructure:"max-upload-mb"`
}

// ArchiveConfig configures the optional S3-compatible archive of uploaded files.
// An empty bucket disables archiving.
type ArchiveConfig struct {
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access-key"`
	SecretKey string `mapstructure:"secret-key"`
}

// Enabled reports whether uploads should be archived.
func (c ArchiveConfig) Enabled() bool {
	return strings.TrimSpace(c.Bucket) != ""
}

// EventsConfig configures the optional AMQP event publisher. An empty URL disables it.
type EventsConfig struct {
	AMQPURL  string `mapstructure:"amqp-url"`
	Exchange string `mapstructure:"exchange"`
}

// Enabled reports whether domain events should be published.
func (c EventsConfig) Enabled() bool {
	return strings.TrimSpace(c.AMQPURL) != ""
}

// RateLimitConfig configures per-client request limits. LLMLimit applies to routes that
// call the model.
type RateLimitConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	DefaultLimit    int           `mapstructure:"default-limit"`
	LLMLimit        int           `mapstructure:"llm-limit"`
	Window          time.Duration `mapstructure:"window"`
	CleanupInterval time.Duration `mapstructure:"cleanup-interval"`
	Whitelist       []string      `mapstructure:"whitelist"`
	Blacklist       []string      `mapstructure:"blacklist"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	JSON  bool `mapstructure:"json"`
	Debug bool `mapstructure:"debug"`
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.cors-origins", []string{"*"})

	v.SetDefault("auth.token-ttl", 2*time.Hour)
	v.SetDefault("auth.bcrypt-cost", 12)

	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.timeout", 60*time.Second)

	v.SetDefault("resumes.extract-on-upload", false)
	v.SetDefault("resumes.bulk-concurrency", 4)
	v.SetDefault("resumes.max-upload-mb", 20)

	v.SetDefault("archive.region", "auto")
	v.SetDefault("events.exchange", "resume_screener")

	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.default-limit", 300)
	v.SetDefault("ratelimit.llm-limit", 30)
	v.SetDefault("ratelimit.window", time.Minute)
	v.SetDefault("ratelimit.cleanup-interval", 5*time.Minute)
}

// bindLegacyEnv maps the unprefixed variable names used by earlier deployments. Keys
// without a default are bound too so that Unmarshal sees them.
func bindLegacyEnv(v *viper.Viper) error {
	bindings := map[string][]string{
		"database.url":       {"DATABASE_URL"},
		"auth.jwt-secret":    {"JWT_SECRET"},
		"auth.bcrypt-cost":   {"BCRYPT_COST"},
		"auth.pepper":        {"PASSWORD_PEPPER"},
		"llm.api-key":        nil,
		"llm.openai-api-key": {"OPENAI_API_KEY"},
		"llm.gemini-api-key": {"GEMINI_API_KEY"},
		"llm.base-url":       nil,
		"archive.bucket":     {"R2_BUCKET"},
		"events.amqp-url":    {"RABBITMQ_URL"},
	}
	for key, envs := range bindings {
		args := append([]string{key, EnvPrefix + "_" + envKey(key)}, envs...)
		if err := v.BindEnv(args...); err != nil {
			return fmt.Errorf("binding %s: %w", key, err)
		}
	}
	return nil
}

func envKey(key string) string {
	return strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(key))
}

// Load reads configuration from defaults, the optional YAML file at path and the
// environment, in increasing order of precedence.
func Load(v *viper.Viper, path string) (*AppConfig, error) {
	if v == nil {
		v = viper.New()
	}
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	if err := bindLegacyEnv(v); err != nil {
		return nil, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var cfg AppConfig
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.LLM.Provider = strings.ToLower(strings.TrimSpace(cfg.LLM.Provider))
	cfg.LLM.APIKey = cfg.LLM.ProviderAPIKey()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the configuration has usable values. Secrets that are only
// needed by specific commands (database URL, JWT secret) are checked where they are used.
func (c *AppConfig) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config error: 'server.port' out of range: %d", c.Server.Port)
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("config error: 'auth.token-ttl' must be positive")
	}
	switch c.LLM.Provider {
	case "openai", "gemini":
	default:
		return fmt.Errorf("config error: unknown 'llm.provider' %q", c.LLM.Provider)
	}
	if c.LLM.Timeout <= 0 {
		return fmt.Errorf("config error: 'llm.timeout' must be positive")
	}
	if c.Resumes.BulkConcurrency < 1 {
		return fmt.Errorf("config error: 'resumes.bulk-concurrency' must be at least 1")
	}
	if c.Resumes.MaxUploadMB < 1 {
		return fmt.Errorf("config error: 'resumes.max-upload-mb' must be at least 1")
	}
	if c.RateLimit.Enabled && c.RateLimit.Window <= 0 {
		return fmt.Errorf("config error: 'ratelimit.window' must be positive")
	}
	return nil
}
