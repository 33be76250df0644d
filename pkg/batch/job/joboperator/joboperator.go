package joboperator

import (
	"context"

	core "flightweather/pkg/batch/job/core"
)

// JobOperator はバッチ実行の管理操作を行うためのインターフェースです。
// JSR352 の JobOperator に相当します。
type JobOperator interface {
	// Start は jobName のジョブを params で起動し、終了まで待ちます。
	Start(ctx context.Context, jobName string, params core.JobParameters) (*core.JobExecution, error)

	// Restart は FAILED または STOPPED の JobExecution と同じパラメータでジョブを再実行します。
	Restart(ctx context.Context, executionID string) (*core.JobExecution, error)

	// Stop は実行中の JobExecution に停止を要求します。
	Stop(ctx context.Context, executionID string) error

	// Abandon は終了していない JobExecution を ABANDONED にします。
	Abandon(ctx context.Context, executionID string) error

	GetJobExecution(ctx context.Context, executionID string) (*core.JobExecution, error)

	// GetJobExecutions は jobName の JobExecution を新しい順に最大 limit 件取得します。
	GetJobExecutions(ctx context.Context, jobName string, limit int) ([]*core.JobExecution, error)

	GetLastJobExecution(ctx context.Context, instanceID string) (*core.JobExecution, error)

	GetJobInstance(ctx context.Context, instanceID string) (*core.JobInstance, error)

	GetJobNames(ctx context.Context) ([]string, error)
}
