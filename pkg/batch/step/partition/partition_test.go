package partition

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	exception "flightweather/pkg/batch/util/exception"
	logger "flightweather/pkg/batch/util/logger"
)

func init() {
	logger.SetOutput(io.Discard)
}

func seq(n int) []int {
	s := make([]int, n)
	for i := range s {
		s[i] = i
	}
	return s
}

func double(ctx context.Context, r Range, batch []int) ([]int, error) {
	out := make([]int, len(batch))
	for i, v := range batch {
		out[i] = v * 2
	}
	return out, nil
}

func TestPartition(t *testing.T) {
	tests := []struct {
		name  string
		n     int
		size  int
		count int
		last  int
	}{
		{name: "exact", n: 3000, size: 1000, count: 3, last: 1000},
		{name: "remainder", n: 2500, size: 1000, count: 3, last: 500},
		{name: "smaller than size", n: 10, size: 1000, count: 1, last: 10},
		{name: "size one", n: 4, size: 1, count: 4, last: 1},
		{name: "empty", n: 0, size: 1000, count: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ranges, err := Partition(tt.n, tt.size)
			require.NoError(t, err)
			require.Len(t, ranges, tt.count)
			if tt.count == 0 {
				return
			}
			covered := 0
			for i, r := range ranges {
				assert.Equal(t, i, r.Index)
				assert.Equal(t, covered, r.Start)
				covered = r.End
			}
			assert.Equal(t, tt.n, covered)
			assert.Equal(t, tt.last, ranges[len(ranges)-1].Len())
		})
	}

	_, err := Partition(10, 0)
	assert.ErrorIs(t, err, exception.ErrInvalidConfig)
}

func TestRunner_PreservesOrderForAnyBatchSize(t *testing.T) {
	items := seq(1037)
	var want []int
	for _, v := range items {
		want = append(want, v*2)
	}

	for _, size := range []int{1, 7, 100, 1000, 5000} {
		for _, workers := range []int{1, 4, 16} {
			r, err := NewRunner[int, int]("test", size, workers)
			require.NoError(t, err)
			got, err := r.Run(context.Background(), items, func(ctx context.Context, rng Range, batch []int) ([]int, error) {
				// 後ろのバッチほど早く終わるようにして完了順を入れ替える
				time.Sleep(time.Duration(1000-min(rng.Index, 1000)) * time.Microsecond)
				return double(ctx, rng, batch)
			})
			require.NoError(t, err)
			assert.Equal(t, want, got, "size=%d workers=%d", size, workers)
		}
	}
}

func TestRunner_FailureNamesBatch(t *testing.T) {
	r, err := NewRunner[int, int]("enrich", 10, 4)
	require.NoError(t, err)

	cause := errors.New("broken row")
	_, err = r.Run(context.Background(), seq(100), func(ctx context.Context, rng Range, batch []int) ([]int, error) {
		if rng.Index == 3 {
			return nil, cause
		}
		return double(ctx, rng, batch)
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, exception.ErrBatchFailed)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "バッチ 3")
}

func TestRunner_ShortResultFailsBatch(t *testing.T) {
	r, err := NewRunner[int, int]("enrich", 10, 4)
	require.NoError(t, err)

	_, err = r.Run(context.Background(), seq(50), func(ctx context.Context, rng Range, batch []int) ([]int, error) {
		out, _ := double(ctx, rng, batch)
		if rng.Index == 2 {
			return out[:len(out)-1], nil
		}
		return out, nil
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, exception.ErrBatchFailed)
	assert.Contains(t, err.Error(), "バッチ 2")
}

func TestRunner_PanicBecomesBatchError(t *testing.T) {
	r, err := NewRunner[int, int]("enrich", 10, 2)
	require.NoError(t, err)

	_, err = r.Run(context.Background(), seq(30), func(ctx context.Context, rng Range, batch []int) ([]int, error) {
		if rng.Index == 1 {
			panic("index out of range")
		}
		return double(ctx, rng, batch)
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, exception.ErrBatchFailed)
	assert.Contains(t, err.Error(), "バッチ 1")
	assert.Contains(t, err.Error(), "index out of range")
}

func TestRunner_ProgressIsMonotonic(t *testing.T) {
	var mu sync.Mutex
	var seen []int
	listener := ProgressListenerFunc(func(name string, completed, total int) {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, 25, total)
		seen = append(seen, completed)
	})

	r, err := NewRunner[int, int]("test", 4, 8, listener)
	require.NoError(t, err)
	_, err = r.Run(context.Background(), seq(100), double)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 25)
	for i, c := range seen {
		assert.Equal(t, i+1, c)
	}
}

func TestRunner_CancellationStopsDispatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var started atomic.Int32
	r, err := NewRunner[int, int]("test", 1, 1)
	require.NoError(t, err)
	_, err = r.Run(ctx, seq(50), func(ctx context.Context, rng Range, batch []int) ([]int, error) {
		if started.Add(1) == 3 {
			cancel()
		}
		return double(ctx, rng, batch)
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Less(t, int(started.Load()), 50)
}

func TestRunner_Empty(t *testing.T) {
	r, err := NewRunner[int, int]("test", 10, 2)
	require.NoError(t, err)
	got, err := r.Run(context.Background(), nil, double)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = NewRunner[int, int]("test", 10, 0)
	assert.ErrorIs(t, err, exception.ErrInvalidConfig)
}

func TestProgressBar(t *testing.T) {
	assert.Equal(t, "[                                        ] 0/4 processed", ProgressBar(0, 4))
	assert.Equal(t, "[====================                    ] 2/4 processed", ProgressBar(2, 4))
	assert.Equal(t, "[========================================] 4/4 processed", ProgressBar(4, 4))
}
