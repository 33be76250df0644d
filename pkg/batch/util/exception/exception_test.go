package exception

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBatchError_WrapsOriginal(t *testing.T) {
	err := NewBatchError("partition", "バッチ 3 の処理に失敗しました", ErrBatchFailed, false, false)

	assert.Equal(t, "[partition] バッチ 3 の処理に失敗しました: バッチの処理に失敗しました", err.Error())
	assert.True(t, errors.Is(err, ErrBatchFailed))
	assert.False(t, err.IsRetryable())
	assert.False(t, err.IsSkippable())
	assert.NotEmpty(t, err.StackTrace)
}

func TestNewBatchErrorf(t *testing.T) {
	tests := []struct {
		name        string
		format      string
		args        []interface{}
		wantMessage string
		wantWrapped error
	}{
		{
			name:        "Trailing error is wrapped",
			format:      "カラム '%s' がありません",
			args:        []interface{}{"Origin", ErrMissingColumn},
			wantMessage: "カラム 'Origin' がありません",
			wantWrapped: ErrMissingColumn,
		},
		{
			name:        "Error consumed by verb stays in message",
			format:      "失敗: %v",
			args:        []interface{}{fmt.Errorf("disk full")},
			wantMessage: "失敗: disk full",
		},
		{
			name:        "No args",
			format:      "100%% 完了していません",
			wantMessage: "100% 完了していません",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewBatchErrorf("config", tt.format, tt.args...)
			assert.Equal(t, tt.wantMessage, err.Message)
			if tt.wantWrapped != nil {
				assert.ErrorIs(t, err, tt.wantWrapped)
			} else {
				assert.Nil(t, err.OriginalErr)
			}
		})
	}
}

func TestIsTemporaryAndIsFatal(t *testing.T) {
	retryable := NewBatchError("object_store", "アップロードに失敗しました", nil, true, false)
	skippable := NewBatchError("station_index", "ファイルを読み込めません", nil, false, true)
	wrapped := fmt.Errorf("outer: %w", retryable)

	assert.True(t, IsTemporary(retryable))
	assert.True(t, IsTemporary(wrapped))
	assert.False(t, IsTemporary(skippable))
	assert.True(t, IsTemporary(errors.New("dial tcp: connection refused")))
	assert.False(t, IsTemporary(nil))

	assert.True(t, IsFatal(retryable))
	assert.False(t, IsFatal(skippable))
	assert.True(t, IsFatal(errors.New("plain")))
	assert.False(t, IsFatal(nil))

	var be *BatchError
	require.True(t, errors.As(wrapped, &be))
	assert.Equal(t, "object_store", be.Module)
}
