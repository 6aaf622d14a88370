package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
camunda:
  broker_address: localhost:26500
database:
  postgres:
    host: localhost
    database: motocredito
    user: credito
  redis:
    address: localhost:6379
workers:
  apply-transition:
    enabled: true
  notify-solicitud:
    enabled: false
    max_jobs_active: 20
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromFile_AppliesDefaults(t *testing.T) {
	cfg, err := LoadFromFile(writeConfig(t, minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, "localhost:26500", cfg.Camunda.BrokerAddress)
	assert.Equal(t, 5432, cfg.Database.Postgres.Port)
	assert.Equal(t, "disable", cfg.Database.Postgres.SSLMode)
	assert.Equal(t, 10*time.Second, cfg.Engine.LockTTLDuration())
	assert.Equal(t, 30*time.Second, cfg.Engine.FollowUpTimeoutDuration())
	assert.Equal(t, 15*time.Minute, cfg.Engine.PresignTTLDuration())
	assert.Equal(t, "expedientes", cfg.Database.Elasticsearch.Index)
	assert.Equal(t, "json", cfg.Logging.Format)

	w := cfg.Workers["apply-transition"]
	assert.Equal(t, 5, w.MaxJobsActive)
	assert.Equal(t, 30000, w.Timeout)
	assert.Equal(t, 3, w.MaxRetries)
}

func TestLoadFromFile_ExpandsEnvPlaceholders(t *testing.T) {
	t.Setenv("TEST_PG_HOST", "pg.internal")
	body := `
camunda:
  broker_address: localhost:26500
database:
  postgres:
    host: ${TEST_PG_HOST}
    database: motocredito
  redis:
    address: localhost:6379
`
	cfg, err := LoadFromFile(writeConfig(t, body))
	require.NoError(t, err)
	assert.Equal(t, "pg.internal", cfg.Database.Postgres.Host)
}

func TestLoadFromFile_Validation(t *testing.T) {
	_, err := LoadFromFile(writeConfig(t, "database:\n  postgres:\n    host: x\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "camunda.broker_address")

	_, err = LoadFromFile(writeConfig(t, minimalYAML+"engine:\n  lock_ttl: -1\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "engine.lock_ttl")
}

func TestWorkerHelpers(t *testing.T) {
	cfg, err := LoadFromFile(writeConfig(t, minimalYAML))
	require.NoError(t, err)

	assert.True(t, IsWorkerEnabled(cfg, "apply-transition"))
	assert.False(t, IsWorkerEnabled(cfg, "notify-solicitud"))
	assert.True(t, IsWorkerEnabled(cfg, "unknown-worker"))

	assert.Equal(t, 20, GetWorkerConfig(cfg, "notify-solicitud").MaxJobsActive)
	assert.Equal(t, 5, GetWorkerConfig(cfg, "unknown-worker").MaxJobsActive)
}
