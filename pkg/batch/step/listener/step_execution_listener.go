package listener

import (
	"context"

	core "flightweather/pkg/batch/job/core"
	logger "flightweather/pkg/batch/util/logger"
)

// LoggingStepListener はステップの開始と終了をログに出力する StepExecutionListener です。
type LoggingStepListener struct{}

var _ core.StepExecutionListener = (*LoggingStepListener)(nil)

// NewLoggingStepListener は新しい LoggingStepListener を作成します。
func NewLoggingStepListener() *LoggingStepListener {
	return &LoggingStepListener{}
}

func (l *LoggingStepListener) BeforeStep(ctx context.Context, stepExecution *core.StepExecution) {
	logger.Debugf("Step '%s' の実行を開始します。", stepExecution.StepName)
}

func (l *LoggingStepListener) AfterStep(ctx context.Context, stepExecution *core.StepExecution) {
	elapsed := stepExecution.EndTime.Sub(stepExecution.StartTime)
	if stepExecution.Status == core.BatchStatusFailed {
		logger.Errorf("Step '%s' が失敗しました (%s): %v", stepExecution.StepName, elapsed, stepExecution.Failures)
		return
	}
	logger.Infof("Step '%s' が完了しました (%s)。Read: %d, Write: %d, Filter: %d, Skip: %d",
		stepExecution.StepName, elapsed, stepExecution.ReadCount, stepExecution.WriteCount,
		stepExecution.FilterCount, stepExecution.SkipReadCount)
}
