package listener

import (
	"context"

	config "flightweather/pkg/batch/config"
	core "flightweather/pkg/batch/job/core"
	logger "flightweather/pkg/batch/util/logger"
)

// LoggingJobListener はジョブの開始と終了をログに出力する JobExecutionListener です。
type LoggingJobListener struct {
	config *config.LoggingConfig
}

var _ core.JobExecutionListener = (*LoggingJobListener)(nil)

func NewLoggingJobListener(cfg *config.LoggingConfig) *LoggingJobListener {
	return &LoggingJobListener{config: cfg}
}

func (l *LoggingJobListener) BeforeJob(ctx context.Context, jobExecution *core.JobExecution) {
	logger.Infof("Job '%s' の実行を開始します。パラメータ: %v", jobExecution.JobName, jobExecution.Parameters.Params)
}

func (l *LoggingJobListener) AfterJob(ctx context.Context, jobExecution *core.JobExecution) {
	elapsed := jobExecution.EndTime.Sub(jobExecution.StartTime)
	if jobExecution.Status != core.BatchStatusCompleted {
		logger.Errorf("Job '%s' が %s で終了しました (%s): %v",
			jobExecution.JobName, jobExecution.Status, elapsed, jobExecution.Failures)
		return
	}
	logger.Infof("Job '%s' の実行が正常に完了しました (%s)。", jobExecution.JobName, elapsed)
}
