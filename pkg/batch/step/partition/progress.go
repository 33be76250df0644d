package partition

import (
	"strconv"
	"strings"

	logger "flightweather/pkg/batch/util/logger"
)

const progressBarLength = 40

// ProgressListener はバッチの完了を受け取ります。
// 呼び出しはコーディネーターの単一 goroutine から行われ、completed は 1 ずつ単調に増加します。
type ProgressListener interface {
	OnBatchCompleted(name string, completed, total int)
}

// ProgressListenerFunc は関数を ProgressListener として扱うためのアダプタです。
type ProgressListenerFunc func(name string, completed, total int)

func (f ProgressListenerFunc) OnBatchCompleted(name string, completed, total int) {
	f(name, completed, total)
}

// LoggingProgressListener は進捗バーをログに出力します。
type LoggingProgressListener struct{}

func NewLoggingProgressListener() *LoggingProgressListener {
	return &LoggingProgressListener{}
}

func (l *LoggingProgressListener) OnBatchCompleted(name string, completed, total int) {
	logger.Infof("%s: %s", name, ProgressBar(completed, total))
}

// ProgressBar は "[====    ] 3/10 processed" 形式の進捗表示を返します。
func ProgressBar(completed, total int) string {
	filled := 0
	if total > 0 {
		filled = completed * progressBarLength / total
	}
	filled = max(0, min(filled, progressBarLength))

	var b strings.Builder
	b.WriteByte('[')
	b.WriteString(strings.Repeat("=", filled))
	b.WriteString(strings.Repeat(" ", progressBarLength-filled))
	b.WriteString("] ")
	b.WriteString(strconv.Itoa(completed))
	b.WriteByte('/')
	b.WriteString(strconv.Itoa(total))
	b.WriteString(" processed")
	return b.String()
}
