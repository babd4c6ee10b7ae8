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
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
  host: "0.0.0.0"
  allowed_origins: ["https://app.example.com"]

database:
  driver: postgres
  url: "postgres://localhost/segments"
  max_open_conns: 25

redis:
  url: "redis://localhost:6379/0"
  count_ttl_seconds: 60
  ai_rate_per_minute: 5

ai:
  provider: bedrock
  bedrock_model_id: "anthropic.claude-3-haiku-20240307-v1:0"
  region: eu-west-1
  timeout_seconds: 20
  max_attempts: 2
  retry_delay_ms: 250

export:
  bucket: segment-exports
  prefix: "exports/"

log:
  level: debug
  redact_pii: false
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"https://app.example.com"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	assert.Equal(t, time.Minute, cfg.Redis.CountTTL())
	assert.Equal(t, 5, cfg.Redis.AIRatePerMinute)

	assert.Equal(t, ProviderBedrock, cfg.AI.Provider)
	assert.True(t, cfg.AI.Enabled())
	assert.Equal(t, 20*time.Second, cfg.AI.Timeout())
	assert.Equal(t, 2, cfg.AI.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.AI.RetryDelay())

	assert.Equal(t, "segment-exports", cfg.Export.Bucket)
	assert.Equal(t, "eu-west-1", cfg.Export.Region, "export region follows the AI region")
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.False(t, cfg.Log.Redact())
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "{}\n"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, DriverMemory, cfg.Database.Driver)
	assert.Equal(t, 5*time.Minute, cfg.Redis.CountTTL())
	assert.Equal(t, ProviderOpenAI, cfg.AI.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.AI.Model)
	assert.Equal(t, 10*time.Second, cfg.AI.Timeout())
	assert.Equal(t, 3, cfg.AI.MaxAttempts)
	assert.Equal(t, time.Second, cfg.AI.RetryDelay())
	assert.False(t, cfg.AI.Enabled(), "openai needs an API key")
	assert.True(t, cfg.Log.Redact())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadInvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "server: [not a map"))
	assert.Error(t, err)
}

func TestLoadFromEnvOverrides(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9090\n")

	t.Setenv("DATABASE_URL", "postgres://env/segments")
	t.Setenv("REDIS_URL", "redis://env:6379/1")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("AWS_REGION", "ap-south-1")
	t.Setenv("EXPORT_S3_BUCKET", "env-bucket")
	t.Setenv("SERVER_PORT", "7070")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := LoadFromEnv(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres://env/segments", cfg.Database.URL)
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, "redis://env:6379/1", cfg.Redis.URL)
	assert.Equal(t, "sk-test", cfg.AI.OpenAIAPIKey)
	assert.True(t, cfg.AI.Enabled())
	assert.Equal(t, "ap-south-1", cfg.AI.Region)
	assert.Equal(t, "ap-south-1", cfg.Export.Region)
	assert.Equal(t, "env-bucket", cfg.Export.Bucket)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestGetHost(t *testing.T) {
	t.Setenv("ECS_CONTAINER_METADATA_URI", "")
	t.Setenv("AWS_EXECUTION_ENV", "")
	t.Setenv("SERVER_HOST", "")
	assert.Equal(t, "localhost", ServerConfig{Host: "localhost"}.GetHost())

	t.Setenv("SERVER_HOST", "10.0.0.1")
	assert.Equal(t, "10.0.0.1", ServerConfig{Host: "localhost"}.GetHost())

	t.Setenv("AWS_EXECUTION_ENV", "AWS_ECS_FARGATE")
	assert.Equal(t, "0.0.0.0", ServerConfig{Host: "localhost"}.GetHost())
}
