package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flightweather/pkg/batch/util/exception"
)

const embedded = `
batch:
  years: [2019, 2020]
  batch_size: 500
output:
  format: arrow
`

func TestLoad_Defaults(t *testing.T) {
	cfg, err := NewBytesConfigLoader(nil, "").Load()
	require.NoError(t, err)

	assert.Equal(t, 1000, cfg.Batch.BatchSize)
	assert.Equal(t, 16, cfg.Batch.Workers)
	assert.Equal(t, "memory", cfg.Database.Type)
	assert.Equal(t, "2_flight_merge/2018.csv", cfg.Input.FlightsPath(2018))
	assert.Equal(t, "climate/2018_data", cfg.Input.WeatherDir(2018))
	assert.Equal(t, "2018_airport_weather", cfg.Output.FileName(2018))
}

func TestLoad_EmbeddedThenFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "override.yaml")
	require.NoError(t, os.WriteFile(path, []byte("batch:\n  workers: 4\n"), 0o644))
	t.Setenv("FLIGHTWX_BATCH_BATCH_SIZE", "250")
	t.Setenv("FLIGHTWX_OUTPUT_DIR", "/tmp/out")

	cfg, err := NewBytesConfigLoader([]byte(embedded), path).Load()
	require.NoError(t, err)

	assert.Equal(t, []int{2019, 2020}, cfg.Batch.Years)
	assert.Equal(t, 4, cfg.Batch.Workers)
	assert.Equal(t, 250, cfg.Batch.BatchSize)
	assert.Equal(t, "arrow", cfg.Output.Format)
	assert.Equal(t, "/tmp/out", cfg.Output.Dir)
	assert.Equal(t, []byte(embedded), []byte(cfg.EmbeddedConfig))
}

func TestLoad_IgnoresUnprefixedEnv(t *testing.T) {
	const yml = `
database:
  type: postgres
  host: db.internal
  port: 5432
  user: batch
output:
  dir: Air_weather
`
	// ログインシェルに普通に存在する変数は設定に影響しない
	t.Setenv("USER", "root")
	t.Setenv("HOST", "devbox")
	t.Setenv("PORT", "8080")
	t.Setenv("DIR", "/home/someone")
	t.Setenv("ENABLED", "true")

	cfg, err := NewBytesConfigLoader([]byte(yml), "").Load()
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "batch", cfg.Database.User)
	assert.Equal(t, "Air_weather", cfg.Output.Dir)
	assert.False(t, cfg.ObjectStore.Enabled)
	assert.False(t, cfg.Tracing.Enabled)
}

func TestLoad_PrefixedEnvKeysFollowFieldNames(t *testing.T) {
	t.Setenv("FLIGHTWX_DATABASE_CONNECTION_POOL_MAX_OPEN_CONNS", "7")
	t.Setenv("FLIGHTWX_OBJECT_STORE_ACCESS_KEY_ID", "minio")
	t.Setenv("FLIGHTWX_SYSTEM_LOGGING_LEVEL", "DEBUG")

	cfg, err := NewBytesConfigLoader(nil, "").Load()
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Database.ConnectionPool.MaxOpenConns)
	assert.Equal(t, "minio", cfg.ObjectStore.AccessKeyID)
	assert.Equal(t, "DEBUG", cfg.System.Logging.Level)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{name: "zero batch size", yaml: "batch:\n  batch_size: 0\n"},
		{name: "zero workers", yaml: "batch:\n  workers: 0\n"},
		{name: "unknown format", yaml: "output:\n  format: parquet\n"},
		{name: "unknown database", yaml: "database:\n  type: oracle\n"},
		{name: "object store without bucket", yaml: "object_store:\n  enabled: true\n  endpoint: localhost:9000\n"},
		{name: "bad timezone", yaml: "system:\n  timezone: Mars/Olympus\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBytesConfigLoader([]byte(tt.yaml), "").Load()
			require.Error(t, err)
			assert.ErrorIs(t, err, exception.ErrInvalidConfig)
		})
	}
}

func TestLoad_MissingOverrideFile(t *testing.T) {
	_, err := NewBytesConfigLoader(nil, filepath.Join(t.TempDir(), "nope.yaml")).Load()
	assert.Error(t, err)
}

func TestConnectionString(t *testing.T) {
	pg := DatabaseConfig{Type: "postgres", Host: "db", Port: 5432, Database: "batch", User: "u", Password: "p", Sslmode: "disable"}
	assert.Equal(t, "postgres://u:p@db:5432/batch?sslmode=disable", pg.ConnectionString())

	my := DatabaseConfig{Type: "mysql", Host: "db", Port: 3306, Database: "batch", User: "u", Password: "p"}
	assert.Equal(t, "u:p@tcp(db:3306)/batch?parseTime=true", my.ConnectionString())

	assert.Equal(t, ":memory:", DatabaseConfig{Type: "sqlite"}.ConnectionString())
}
