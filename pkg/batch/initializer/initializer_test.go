package initializer

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flightweather/pkg/batch/repository/memory"
	"flightweather/pkg/batch/util/exception"
	logger "flightweather/pkg/batch/util/logger"
)

func TestInitialize_MemoryRepository(t *testing.T) {
	logger.SetOutput(io.Discard)
	yaml := []byte(`
database:
  type: memory
batch:
  years: [2019]
system:
  logging:
    level: WARN
`)
	bi := NewBatchInitializer(yaml, "")
	bi.TraceWriter = io.Discard
	op, f, err := bi.Initialize(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, bi.Close()) })

	assert.NotNil(t, op)
	assert.NotNil(t, f)
	assert.NotNil(t, bi.Metrics)
	assert.IsType(t, &memory.JobRepository{}, bi.JobRepository)
	assert.Equal(t, []int{2019}, bi.Config.Batch.Years)
	assert.Equal(t, logger.LevelWarn, logger.GetLogLevel())
	logger.SetLogLevel("INFO")
}

func TestInitialize_InvalidConfig(t *testing.T) {
	logger.SetOutput(io.Discard)
	bi := NewBatchInitializer([]byte("batch:\n  workers: 0\n"), "")
	_, _, err := bi.Initialize(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, exception.ErrInvalidConfig)
}

func TestInitialize_UnreachableDatabaseIsRetried(t *testing.T) {
	logger.SetOutput(io.Discard)
	connectMaxRetries, connectRetryDelay = 2, time.Millisecond
	t.Cleanup(func() { connectMaxRetries, connectRetryDelay = 10, 5*time.Second })

	yaml := []byte(`
database:
  type: postgres
  host: 127.0.0.1
  port: 1
  database: batch
  user: batch
  password: batch
  sslmode: disable
`)
	bi := NewBatchInitializer(yaml, "")
	_, _, err := bi.Initialize(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "最大試行回数 (2)")
}
