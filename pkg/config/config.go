package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	// EnvPrefix is the prefix for environment variable overrides.
	EnvPrefix = "LLMSENTINEL"

	// DefaultLogLevel is the default logging level.
	DefaultLogLevel = "info"

	// DefaultSQLitePath is the default location of the evaluations database.
	DefaultSQLitePath = "evaluation/eval_results.db"

	// DefaultJudgeModel is the default judge model name.
	DefaultJudgeModel = "llama3"

	// DefaultTargetModel is the default model under test in local-model mode.
	DefaultTargetModel = "llama3"

	// DefaultTargetTemperature is the default sampling temperature of the target model.
	DefaultTargetTemperature = 0.7

	// DefaultOllamaBaseURL is the OpenAI-compatible endpoint of a local Ollama daemon.
	DefaultOllamaBaseURL = "http://localhost:11434/v1"

	// DefaultModelName labels the model under test when none is given.
	DefaultModelName = "model_default"

	// DefaultSampleID labels the input sample when none is given.
	DefaultSampleID = "sample_default"

	// DefaultProject is the tracing project used when building trace URLs.
	DefaultProject = "default"

	// DefaultRemoteTimeout bounds the remote-endpoint acquisition call.
	DefaultRemoteTimeout = "30s"

	// DefaultReportTimeout bounds the trace metadata POST.
	DefaultReportTimeout = "10s"

	// DefaultOTLPTimeout bounds a single OTLP export.
	DefaultOTLPTimeout = "20s"

	// DefaultDashboardListen is the default dashboard listen address.
	DefaultDashboardListen = ":8501"

	// DefaultExportDir is the default output directory of the export command.
	DefaultExportDir = "./exports"

	// DefaultMetricsJob is the Pushgateway job name of run metrics.
	DefaultMetricsJob = "llmsentinel"

	// DefaultPushTimeout bounds the metrics push at the end of a run.
	DefaultPushTimeout = "10s"

	// ProviderOpenAI selects an OpenAI-compatible chat completions API (Ollama included).
	ProviderOpenAI = "openai"

	// ProviderAnthropic selects the Anthropic messages API.
	ProviderAnthropic = "anthropic"
)

// Config is the root configuration for llmsentinel.
type Config struct {
	Global    GlobalConfig    `yaml:"global" mapstructure:"global"`
	Database  DatabaseConfig  `yaml:"database" mapstructure:"database"`
	Judge     LLMConfig       `yaml:"judge" mapstructure:"judge"`
	Target    LLMConfig       `yaml:"target" mapstructure:"target"`
	Runner    RunnerConfig    `yaml:"runner" mapstructure:"runner"`
	Tracing   TracingConfig   `yaml:"tracing" mapstructure:"tracing"`
	Dashboard DashboardConfig `yaml:"dashboard" mapstructure:"dashboard"`
	Export    ExportConfig    `yaml:"export" mapstructure:"export"`
	Metrics   MetricsConfig   `yaml:"metrics" mapstructure:"metrics"`
}

// GlobalConfig contains global application settings.
type GlobalConfig struct {
	LogLevel string `yaml:"log_level" mapstructure:"log_level"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Driver   string               `yaml:"driver" mapstructure:"driver"`
	SQLite   SQLiteDatabaseConfig `yaml:"sqlite,omitempty" mapstructure:"sqlite"`
	Postgres PostgresConfig       `yaml:"postgres,omitempty" mapstructure:"postgres"`
}

// SQLiteDatabaseConfig contains SQLite-specific settings.
type SQLiteDatabaseConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// PostgresConfig contains PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password"`
	Database string `yaml:"database" mapstructure:"database"`
	SSLMode  string `yaml:"ssl_mode,omitempty" mapstructure:"ssl_mode"`
}

// LLMConfig describes how to reach a chat model. It is used for both the
// judge and the local target model.
type LLMConfig struct {
	Provider    string  `yaml:"provider" mapstructure:"provider"`
	BaseURL     string  `yaml:"base_url,omitempty" mapstructure:"base_url"`
	APIKey      string  `yaml:"api_key,omitempty" mapstructure:"api_key"`
	Model       string  `yaml:"model" mapstructure:"model"`
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
	MaxTokens   int     `yaml:"max_tokens,omitempty" mapstructure:"max_tokens"`
	Timeout     string  `yaml:"timeout,omitempty" mapstructure:"timeout"`
}

// RunnerConfig contains defaults for a single evaluation run.
type RunnerConfig struct {
	DefaultModelName string `yaml:"default_model_name" mapstructure:"default_model_name"`
	DefaultSampleID  string `yaml:"default_sample_id" mapstructure:"default_sample_id"`
	RemoteTimeout    string `yaml:"remote_timeout" mapstructure:"remote_timeout"`
}

// TracingConfig contains the remote tracing service settings.
type TracingConfig struct {
	Host      string     `yaml:"host,omitempty" mapstructure:"host"`
	PublicKey string     `yaml:"public_key,omitempty" mapstructure:"public_key"`
	SecretKey string     `yaml:"secret_key,omitempty" mapstructure:"secret_key"`
	Project   string     `yaml:"project" mapstructure:"project"`
	Timeout   string     `yaml:"timeout" mapstructure:"timeout"`
	OTLP      OTLPConfig `yaml:"otlp" mapstructure:"otlp"`
}

// OTLPConfig configures OpenTelemetry span export to the tracing host.
type OTLPConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Timeout string `yaml:"timeout" mapstructure:"timeout"`
}

// HasCredentials reports whether host and both keys are configured.
func (c *TracingConfig) HasCredentials() bool {
	return c.Host != "" && c.PublicKey != "" && c.SecretKey != ""
}

// DashboardConfig contains the dashboard HTTP server settings.
type DashboardConfig struct {
	Listen      string              `yaml:"listen" mapstructure:"listen"`
	CORSOrigins []string            `yaml:"cors_origins,omitempty" mapstructure:"cors_origins"`
	CacheTTL    string              `yaml:"cache_ttl,omitempty" mapstructure:"cache_ttl"`
	RateLimit   RateLimitConfig     `yaml:"rate_limit,omitempty" mapstructure:"rate_limit"`
	Auth        DashboardAuthConfig `yaml:"auth,omitempty" mapstructure:"auth"`
}

// RateLimitConfig limits how often a client may force a table reload with
// ?refresh=true.
type RateLimitConfig struct {
	Enabled            bool `yaml:"enabled" mapstructure:"enabled"`
	RefreshesPerMinute int  `yaml:"refreshes_per_minute" mapstructure:"refreshes_per_minute"`
}

// DashboardAuthConfig contains dashboard authentication settings.
type DashboardAuthConfig struct {
	Basic BasicAuthConfig `yaml:"basic,omitempty" mapstructure:"basic"`
}

// BasicAuthConfig configures username/password authentication.
type BasicAuthConfig struct {
	Enabled bool            `yaml:"enabled" mapstructure:"enabled"`
	Users   []BasicAuthUser `yaml:"users,omitempty" mapstructure:"users"`
}

// BasicAuthUser defines a basic auth user from config.
type BasicAuthUser struct {
	Username string `yaml:"username" mapstructure:"username"`
	Password string `yaml:"password" mapstructure:"password"`
}

// ExportConfig contains settings of the export command.
type ExportConfig struct {
	OutputDir string         `yaml:"output_dir" mapstructure:"output_dir"`
	S3        S3UploadConfig `yaml:"s3,omitempty" mapstructure:"s3"`
}

// S3UploadConfig contains S3-compatible storage settings for exported files.
type S3UploadConfig struct {
	Enabled         bool   `yaml:"enabled" mapstructure:"enabled"`
	EndpointURL     string `yaml:"endpoint_url,omitempty" mapstructure:"endpoint_url"`
	Region          string `yaml:"region,omitempty" mapstructure:"region"`
	Bucket          string `yaml:"bucket" mapstructure:"bucket"`
	AccessKeyID     string `yaml:"access_key_id,omitempty" mapstructure:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty" mapstructure:"secret_access_key"`
	ForcePathStyle  bool   `yaml:"force_path_style" mapstructure:"force_path_style"`
	Prefix          string `yaml:"prefix,omitempty" mapstructure:"prefix"`
	StorageClass    string `yaml:"storage_class,omitempty" mapstructure:"storage_class"`
	ACL             string `yaml:"acl,omitempty" mapstructure:"acl"`
}

// MetricsConfig contains the Prometheus Pushgateway settings of the run
// command. Metrics are pushed only when PushgatewayURL is set.
type MetricsConfig struct {
	PushgatewayURL string `yaml:"pushgateway_url,omitempty" mapstructure:"pushgateway_url"`
	Job            string `yaml:"job" mapstructure:"job"`
	PushTimeout    string `yaml:"push_timeout" mapstructure:"push_timeout"`
}

// legacyEnv maps config keys to the unprefixed environment variables the
// harness has always honoured. The prefixed variable wins when both are set.
var legacyEnv = map[string]string{
	"tracing.host":                "LANGFUSE_HOST",
	"tracing.public_key":          "LANGFUSE_PUBLIC_KEY",
	"tracing.secret_key":          "LANGFUSE_SECRET_KEY",
	"tracing.project":             "LANGCHAIN_PROJECT",
	"tracing.otlp.timeout":        "OTEL_EXPORTER_OTLP_TIMEOUT",
	"target.model":                "TARGET_MODEL_NAME",
	"target.temperature":          "TARGET_MODEL_TEMP",
	"runner.default_model_name":   "DEFAULT_MODEL_NAME",
	"judge.api_key":               "JUDGE_API_KEY",
	"database.sqlite.path":        "EVAL_DB_PATH",
	"dashboard.listen":            "DASHBOARD_LISTEN",
	"export.s3.access_key_id":     "AWS_ACCESS_KEY_ID",
	"export.s3.secret_access_key": "AWS_SECRET_ACCESS_KEY",
}

// Load reads and merges the given configuration files in order, applies
// environment overrides and defaults. With no paths, only defaults and the
// environment are used.
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, legacy := range legacyEnv {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return nil, fmt.Errorf("binding env for %s: %w", key, err)
		}
	}

	for i, path := range paths {
		v.SetConfigFile(path)

		var err error
		if i == 0 {
			err = v.ReadInConfig()
		} else {
			err = v.MergeInConfig()
		}

		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

// setDefaults registers every known key so that AutomaticEnv can override
// keys that are absent from the config files.
func setDefaults(v *viper.Viper) {
	v.SetDefault("global.log_level", DefaultLogLevel)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.sqlite.path", DefaultSQLitePath)
	v.SetDefault("database.postgres.host", "localhost")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.user", "")
	v.SetDefault("database.postgres.password", "")
	v.SetDefault("database.postgres.database", "llmsentinel")
	v.SetDefault("database.postgres.ssl_mode", "disable")

	v.SetDefault("judge.provider", ProviderOpenAI)
	v.SetDefault("judge.base_url", DefaultOllamaBaseURL)
	v.SetDefault("judge.api_key", "")
	v.SetDefault("judge.model", DefaultJudgeModel)
	v.SetDefault("judge.temperature", 0.0)
	v.SetDefault("judge.max_tokens", 64)
	v.SetDefault("judge.timeout", "60s")

	v.SetDefault("target.provider", ProviderOpenAI)
	v.SetDefault("target.base_url", DefaultOllamaBaseURL)
	v.SetDefault("target.api_key", "")
	v.SetDefault("target.model", DefaultTargetModel)
	v.SetDefault("target.temperature", DefaultTargetTemperature)
	v.SetDefault("target.max_tokens", 1024)
	v.SetDefault("target.timeout", "120s")

	v.SetDefault("runner.default_model_name", DefaultModelName)
	v.SetDefault("runner.default_sample_id", DefaultSampleID)
	v.SetDefault("runner.remote_timeout", DefaultRemoteTimeout)

	v.SetDefault("tracing.host", "")
	v.SetDefault("tracing.public_key", "")
	v.SetDefault("tracing.secret_key", "")
	v.SetDefault("tracing.project", DefaultProject)
	v.SetDefault("tracing.timeout", DefaultReportTimeout)
	v.SetDefault("tracing.otlp.enabled", false)
	v.SetDefault("tracing.otlp.timeout", DefaultOTLPTimeout)

	v.SetDefault("dashboard.listen", DefaultDashboardListen)
	v.SetDefault("dashboard.cache_ttl", "")
	v.SetDefault("dashboard.rate_limit.enabled", false)
	v.SetDefault("dashboard.rate_limit.refreshes_per_minute", 6)
	v.SetDefault("dashboard.auth.basic.enabled", false)

	v.SetDefault("export.output_dir", DefaultExportDir)
	v.SetDefault("export.s3.enabled", false)
	v.SetDefault("export.s3.region", "")
	v.SetDefault("export.s3.bucket", "")
	v.SetDefault("export.s3.endpoint_url", "")
	v.SetDefault("export.s3.access_key_id", "")
	v.SetDefault("export.s3.secret_access_key", "")
	v.SetDefault("export.s3.force_path_style", false)
	v.SetDefault("export.s3.prefix", "")

	v.SetDefault("metrics.pushgateway_url", "")
	v.SetDefault("metrics.job", DefaultMetricsJob)
	v.SetDefault("metrics.push_timeout", DefaultPushTimeout)
}

// applyDefaults fills values that may have been blanked out explicitly.
func (c *Config) applyDefaults() {
	if c.Global.LogLevel == "" {
		c.Global.LogLevel = DefaultLogLevel
	}

	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}

	if c.Database.Driver == "sqlite" && c.Database.SQLite.Path == "" {
		c.Database.SQLite.Path = DefaultSQLitePath
	}

	if c.Runner.DefaultModelName == "" {
		c.Runner.DefaultModelName = DefaultModelName
	}

	if c.Runner.DefaultSampleID == "" {
		c.Runner.DefaultSampleID = DefaultSampleID
	}

	if c.Tracing.Project == "" {
		c.Tracing.Project = DefaultProject
	}

	c.Tracing.Host = strings.TrimRight(c.Tracing.Host, "/")

	if c.Export.OutputDir == "" {
		c.Export.OutputDir = DefaultExportDir
	}

	if c.Metrics.Job == "" {
		c.Metrics.Job = DefaultMetricsJob
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.SQLite.Path == "" {
			return fmt.Errorf("database.sqlite.path is required")
		}
	case "postgres":
		if c.Database.Postgres.Host == "" {
			return fmt.Errorf("database.postgres.host is required")
		}
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	if err := c.Judge.validate("judge"); err != nil {
		return err
	}

	if err := c.Target.validate("target"); err != nil {
		return err
	}

	durations := map[string]string{
		"runner.remote_timeout": c.Runner.RemoteTimeout,
		"tracing.timeout":       c.Tracing.Timeout,
		"tracing.otlp.timeout":  c.Tracing.OTLP.Timeout,
		"dashboard.cache_ttl":   c.Dashboard.CacheTTL,
		"metrics.push_timeout":  c.Metrics.PushTimeout,
	}

	for key, value := range durations {
		if _, err := ParseDuration(value, 0); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}

	if c.Dashboard.RateLimit.Enabled && c.Dashboard.RateLimit.RefreshesPerMinute <= 0 {
		return fmt.Errorf("dashboard.rate_limit.refreshes_per_minute must be positive")
	}

	if c.Dashboard.Auth.Basic.Enabled {
		if len(c.Dashboard.Auth.Basic.Users) == 0 {
			return fmt.Errorf("dashboard.auth.basic requires at least one user")
		}

		for i, u := range c.Dashboard.Auth.Basic.Users {
			if u.Username == "" || u.Password == "" {
				return fmt.Errorf("dashboard.auth.basic.users[%d]: username and password are required", i)
			}
		}
	}

	if c.Export.S3.Enabled && c.Export.S3.Bucket == "" {
		return fmt.Errorf("export.s3.bucket is required when s3 upload is enabled")
	}

	if c.Metrics.PushgatewayURL != "" {
		u, err := url.Parse(c.Metrics.PushgatewayURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("metrics.pushgateway_url must be an absolute http(s) url, got %q", c.Metrics.PushgatewayURL)
		}
	}

	return nil
}

func (c *LLMConfig) validate(section string) error {
	switch c.Provider {
	case ProviderOpenAI, ProviderAnthropic:
	default:
		return fmt.Errorf("%s.provider: unknown provider %q", section, c.Provider)
	}

	if c.Model == "" {
		return fmt.Errorf("%s.model is required", section)
	}

	if c.Temperature < 0 {
		return fmt.Errorf("%s.temperature must not be negative", section)
	}

	if _, err := ParseDuration(c.Timeout, 0); err != nil {
		return fmt.Errorf("%s.timeout: %w", section, err)
	}

	return nil
}

// ParseDuration parses a Go duration string. A bare number is read as
// seconds, matching how timeouts were historically set in the environment.
// An empty value yields def.
func ParseDuration(value string, def time.Duration) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return def, nil
	}

	if secs, err := strconv.ParseFloat(value, 64); err == nil {
		if secs < 0 {
			return 0, fmt.Errorf("negative duration %q", value)
		}

		return time.Duration(secs * float64(time.Second)), nil
	}

	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", value, err)
	}

	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", value)
	}

	return d, nil
}

// MustDuration is ParseDuration for values already checked by Validate.
func MustDuration(value string, def time.Duration) time.Duration {
	d, err := ParseDuration(value, def)
	if err != nil {
		return def
	}

	return d
}

// Redacted returns a copy of the configuration with secrets masked.
func (c *Config) Redacted() *Config {
	out := *c

	mask := func(s string) string {
		if s == "" {
			return ""
		}

		return "********"
	}

	out.Database.Postgres.Password = mask(c.Database.Postgres.Password)
	out.Judge.APIKey = mask(c.Judge.APIKey)
	out.Target.APIKey = mask(c.Target.APIKey)
	out.Tracing.SecretKey = mask(c.Tracing.SecretKey)
	out.Export.S3.SecretAccessKey = mask(c.Export.S3.SecretAccessKey)

	users := make([]BasicAuthUser, 0, len(c.Dashboard.Auth.Basic.Users))
	for _, u := range c.Dashboard.Auth.Basic.Users {
		users = append(users, BasicAuthUser{Username: u.Username, Password: mask(u.Password)})
	}

	out.Dashboard.Auth.Basic.Users = users

	return &out
}
