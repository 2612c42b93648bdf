package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func TestLoad_EnvVarOverrides(t *testing.T) {
	configPath := writeConfig(t, `
global:
  log_level: info
database:
  driver: sqlite
  sqlite:
    path: /tmp/original.db
judge:
  model: original-judge
target:
  model: original-target
  temperature: 0.3
tracing:
  host: https://original.example.com
  project: original-project
`)

	tests := []struct {
		name     string
		envVars  map[string]string
		validate func(t *testing.T, cfg *Config)
	}{
		{
			name:    "no env vars uses yaml values",
			envVars: map[string]string{},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "info", cfg.Global.LogLevel)
				assert.Equal(t, "/tmp/original.db", cfg.Database.SQLite.Path)
				assert.Equal(t, "original-judge", cfg.Judge.Model)
				assert.InDelta(t, 0.3, cfg.Target.Temperature, 1e-9)
				assert.Equal(t, "original-project", cfg.Tracing.Project)
			},
		},
		{
			name: "prefixed string override",
			envVars: map[string]string{
				"LLMSENTINEL_GLOBAL_LOG_LEVEL": "debug",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "debug", cfg.Global.LogLevel)
			},
		},
		{
			name: "prefixed nested override",
			envVars: map[string]string{
				"LLMSENTINEL_DATABASE_SQLITE_PATH": "/tmp/env.db",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "/tmp/env.db", cfg.Database.SQLite.Path)
			},
		},
		{
			name: "legacy tracing variables",
			envVars: map[string]string{
				"LANGFUSE_HOST":       "https://cloud.langfuse.com/",
				"LANGFUSE_PUBLIC_KEY": "pk-lf-1",
				"LANGFUSE_SECRET_KEY": "sk-lf-1",
				"LANGCHAIN_PROJECT":   "sentinel",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "https://cloud.langfuse.com", cfg.Tracing.Host)
				assert.Equal(t, "pk-lf-1", cfg.Tracing.PublicKey)
				assert.Equal(t, "sk-lf-1", cfg.Tracing.SecretKey)
				assert.Equal(t, "sentinel", cfg.Tracing.Project)
				assert.True(t, cfg.Tracing.HasCredentials())
			},
		},
		{
			name: "legacy target variables",
			envVars: map[string]string{
				"TARGET_MODEL_NAME": "mistral",
				"TARGET_MODEL_TEMP": "0.9",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "mistral", cfg.Target.Model)
				assert.InDelta(t, 0.9, cfg.Target.Temperature, 1e-9)
			},
		},
		{
			name: "prefixed wins over legacy",
			envVars: map[string]string{
				"LANGFUSE_HOST":            "https://legacy.example.com",
				"LLMSENTINEL_TRACING_HOST": "https://prefixed.example.com",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "https://prefixed.example.com", cfg.Tracing.Host)
			},
		},
		{
			name: "default model name from environment",
			envVars: map[string]string{
				"DEFAULT_MODEL_NAME": "my_local_v1",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "my_local_v1", cfg.Runner.DefaultModelName)
			},
		},
		{
			name: "pushgateway from environment",
			envVars: map[string]string{
				"LLMSENTINEL_METRICS_PUSHGATEWAY_URL": "http://pushgateway:9091",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "http://pushgateway:9091", cfg.Metrics.PushgatewayURL)
			},
		},
		{
			name: "boolean override",
			envVars: map[string]string{
				"LLMSENTINEL_TRACING_OTLP_ENABLED": "true",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.True(t, cfg.Tracing.OTLP.Enabled)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for key, value := range tt.envVars {
				t.Setenv(key, value)
			}

			cfg, err := Load(configPath)
			require.NoError(t, err)

			tt.validate(t, cfg)
		})
	}
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultLogLevel, cfg.Global.LogLevel)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, DefaultSQLitePath, cfg.Database.SQLite.Path)
	assert.Equal(t, ProviderOpenAI, cfg.Judge.Provider)
	assert.Equal(t, DefaultJudgeModel, cfg.Judge.Model)
	assert.Zero(t, cfg.Judge.Temperature)
	assert.InDelta(t, DefaultTargetTemperature, cfg.Target.Temperature, 1e-9)
	assert.Equal(t, DefaultModelName, cfg.Runner.DefaultModelName)
	assert.Equal(t, DefaultSampleID, cfg.Runner.DefaultSampleID)
	assert.Equal(t, DefaultRemoteTimeout, cfg.Runner.RemoteTimeout)
	assert.Equal(t, DefaultReportTimeout, cfg.Tracing.Timeout)
	assert.Equal(t, DefaultProject, cfg.Tracing.Project)
	assert.Equal(t, DefaultDashboardListen, cfg.Dashboard.Listen)
	assert.False(t, cfg.Tracing.HasCredentials())
	assert.Empty(t, cfg.Metrics.PushgatewayURL)
	assert.Equal(t, DefaultMetricsJob, cfg.Metrics.Job)
	assert.Equal(t, DefaultPushTimeout, cfg.Metrics.PushTimeout)

	require.NoError(t, cfg.Validate())
}

func TestLoad_MergesFilesInOrder(t *testing.T) {
	base := writeConfig(t, `
judge:
  model: base-judge
runner:
  default_sample_id: base-sample
`)
	override := writeConfig(t, `
judge:
  model: override-judge
`)

	cfg, err := Load(base, override)
	require.NoError(t, err)

	assert.Equal(t, "override-judge", cfg.Judge.Model)
	assert.Equal(t, "base-sample", cfg.Runner.DefaultSampleID)
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config file")
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "invalid: yaml: content:")

	_, err := Load(path)
	require.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg, err := Load()
		require.NoError(t, err)

		return cfg
	}

	tests := []struct {
		name      string
		mutate    func(cfg *Config)
		errSubstr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(*Config) {},
		},
		{
			name:      "unknown driver",
			mutate:    func(cfg *Config) { cfg.Database.Driver = "mysql" },
			errSubstr: "unsupported database driver",
		},
		{
			name: "postgres without host",
			mutate: func(cfg *Config) {
				cfg.Database.Driver = "postgres"
				cfg.Database.Postgres.Host = ""
			},
			errSubstr: "database.postgres.host is required",
		},
		{
			name:      "unknown judge provider",
			mutate:    func(cfg *Config) { cfg.Judge.Provider = "cohere" },
			errSubstr: "judge.provider",
		},
		{
			name:      "empty target model",
			mutate:    func(cfg *Config) { cfg.Target.Model = "" },
			errSubstr: "target.model is required",
		},
		{
			name:      "bad remote timeout",
			mutate:    func(cfg *Config) { cfg.Runner.RemoteTimeout = "soon" },
			errSubstr: "runner.remote_timeout",
		},
		{
			name: "rate limit without budget",
			mutate: func(cfg *Config) {
				cfg.Dashboard.RateLimit.Enabled = true
				cfg.Dashboard.RateLimit.RefreshesPerMinute = 0
			},
			errSubstr: "refreshes_per_minute",
		},
		{
			name:      "relative pushgateway url",
			mutate:    func(cfg *Config) { cfg.Metrics.PushgatewayURL = "pushgateway:9091" },
			errSubstr: "metrics.pushgateway_url",
		},
		{
			name:   "pushgateway url",
			mutate: func(cfg *Config) { cfg.Metrics.PushgatewayURL = "http://pushgateway:9091" },
		},
		{
			name:      "bad push timeout",
			mutate:    func(cfg *Config) { cfg.Metrics.PushTimeout = "whenever" },
			errSubstr: "metrics.push_timeout",
		},
		{
			name: "basic auth without users",
			mutate: func(cfg *Config) {
				cfg.Dashboard.Auth.Basic.Enabled = true
			},
			errSubstr: "at least one user",
		},
		{
			name: "s3 without bucket",
			mutate: func(cfg *Config) {
				cfg.Export.S3.Enabled = true
			},
			errSubstr: "export.s3.bucket",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.errSubstr == "" {
				require.NoError(t, err)

				return
			}

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSubstr)
		})
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		def     time.Duration
		want    time.Duration
		wantErr bool
	}{
		{name: "empty uses default", value: "", def: 5 * time.Second, want: 5 * time.Second},
		{name: "go duration", value: "1m30s", want: 90 * time.Second},
		{name: "bare seconds", value: "20", want: 20 * time.Second},
		{name: "fractional seconds", value: "0.5", want: 500 * time.Millisecond},
		{name: "negative", value: "-3s", wantErr: true},
		{name: "garbage", value: "later", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDuration(tt.value, tt.def)
			if tt.wantErr {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConfig_Redacted(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	cfg.Tracing.SecretKey = "sk-lf-secret"
	cfg.Judge.APIKey = "judge-key"
	cfg.Dashboard.Auth.Basic.Users = []BasicAuthUser{{Username: "admin", Password: "hunter2"}}

	red := cfg.Redacted()

	assert.Equal(t, "********", red.Tracing.SecretKey)
	assert.Equal(t, "********", red.Judge.APIKey)
	assert.Empty(t, red.Target.APIKey)
	assert.Equal(t, "admin", red.Dashboard.Auth.Basic.Users[0].Username)
	assert.Equal(t, "********", red.Dashboard.Auth.Basic.Users[0].Password)

	// The original is untouched.
	assert.Equal(t, "sk-lf-secret", cfg.Tracing.SecretKey)
	assert.Equal(t, "hunter2", cfg.Dashboard.Auth.Basic.Users[0].Password)
}
