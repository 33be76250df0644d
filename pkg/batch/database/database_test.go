package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flightweather/pkg/batch/config"
)

func TestRebind(t *testing.T) {
	q := "UPDATE job_executions SET status = ? WHERE id = ?"

	assert.Equal(t, "UPDATE job_executions SET status = $1 WHERE id = $2", Rebind("postgres", q))
	assert.Equal(t, "UPDATE job_executions SET status = $1 WHERE id = $2", Rebind("redshift", q))
	assert.Equal(t, q, Rebind("mysql", q))
	assert.Equal(t, q, Rebind("sqlite", q))
}

func TestRunMigrations_SQLite(t *testing.T) {
	ctx := context.Background()
	conn, err := NewDBConnectionFromConfig(ctx, config.DatabaseConfig{Type: "sqlite", Database: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.NoError(t, RunMigrations(conn))
	// 二回目は変更なし
	require.NoError(t, RunMigrations(conn))

	for _, table := range []string{"job_instances", "job_executions", "step_executions"} {
		var name string
		err := conn.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&name)
		require.NoError(t, err, table)
		assert.Equal(t, table, name)
	}
}

func TestNewDBConnectionFromConfig_UnknownType(t *testing.T) {
	_, err := NewDBConnectionFromConfig(context.Background(), config.DatabaseConfig{Type: "oracle"})
	assert.Error(t, err)
}
