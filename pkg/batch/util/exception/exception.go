package exception

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// 呼び出し側が errors.Is で判定するための代表的なエラー。
var (
	// ErrMissingColumn は入力テーブルに必須カラムが存在しないことを表します。
	ErrMissingColumn = errors.New("必須カラムが見つかりません")
	// ErrBatchFailed はパーティション (バッチ) の処理が失敗したことを表します。
	ErrBatchFailed = errors.New("バッチの処理に失敗しました")
	// ErrInvalidConfig は設定値が不正であることを表します。
	ErrInvalidConfig = errors.New("設定が不正です")
)

// BatchError はバッチ処理中に発生するカスタムエラー型です。
// エラーの発生元モジュール、メッセージ、ラップされた元のエラー、
// そしてリトライ可能か、スキップ可能かのフラグを保持します。
type BatchError struct {
	Module      string // エラーが発生したモジュール (例: "station_index", "partition", "config")
	Message     string
	OriginalErr error
	isRetryable bool
	isSkippable bool
	StackTrace  string // スタックトレース (デバッグ用)
}

// NewBatchError は新しい BatchError のインスタンスを作成します。
func NewBatchError(module, message string, originalErr error, isRetryable, isSkippable bool) *BatchError {
	return &BatchError{
		Module:      module,
		Message:     message,
		OriginalErr: originalErr,
		isRetryable: isRetryable,
		isSkippable: isSkippable,
		StackTrace:  captureStack(),
	}
}

// NewBatchErrorf はフォーマット文字列から BatchError を作成します。
// 最後の引数が error の場合はフォーマットには使わず、元のエラーとしてラップします。
// リトライ不可・スキップ不可として作成されます。
func NewBatchErrorf(module, format string, a ...interface{}) *BatchError {
	var originalErr error
	if n := len(a); n > 0 {
		if err, ok := a[n-1].(error); ok && strings.Count(format, "%")-2*strings.Count(format, "%%") < n {
			originalErr = err
			a = a[:n-1]
		}
	}
	return &BatchError{
		Module:      module,
		Message:     fmt.Sprintf(format, a...),
		OriginalErr: originalErr,
		StackTrace:  captureStack(),
	}
}

func captureStack() string {
	buf := make([]byte, 2048)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}

// Error は error インターフェースの実装です。
func (e *BatchError) Error() string {
	if e.OriginalErr != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Module, e.Message, e.OriginalErr)
	}
	return fmt.Sprintf("[%s] %s", e.Module, e.Message)
}

// Unwrap は errors.Unwrap のために元のエラーを返します。
func (e *BatchError) Unwrap() error {
	return e.OriginalErr
}

// IsRetryable はこのエラーがリトライ可能かどうかを返します。
func (e *BatchError) IsRetryable() bool {
	return e.isRetryable
}

// IsSkippable はこのエラーがスキップ可能かどうかを返します。
func (e *BatchError) IsSkippable() bool {
	return e.isSkippable
}

// IsTemporary は一時的なエラーかどうかを判定します。
// ラップされた BatchError のいずれかがリトライ可能であれば true を返します。
func IsTemporary(err error) bool {
	if err == nil {
		return false
	}
	var be *BatchError
	for e := err; errors.As(e, &be); e = be.OriginalErr {
		if be.IsRetryable() {
			return true
		}
	}
	errStr := err.Error()
	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset")
}

// IsFatal は致命的なエラーかどうかを判定します。
// BatchError の場合はスキップ不可であれば致命的とみなします。
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var be *BatchError
	if errors.As(err, &be) {
		return !be.IsSkippable()
	}
	return true
}
