// Package job はジョブ実行メタデータの永続化インターフェースを定義します。
//
// 1 つの JobInstance は (ジョブ名, 対象年) の組に対応し、同じ年を再実行すると
// 同じ JobInstance の下に新しい JobExecution が追加されます。
package job

import (
	"context"

	core "flightweather/pkg/batch/job/core"
)

// JobRepository はバッチ実行のメタデータを永続化します。
// memory と sql の 2 つの実装があります。
type JobRepository interface {
	JobInstance
	JobExecution
	StepExecution

	// Close はデータベース接続などを解放します。
	Close() error
}

// JobInstance は (ジョブ名, パラメータ) で一意になる実行単位の保存先です。
type JobInstance interface {
	SaveJobInstance(ctx context.Context, jobInstance *core.JobInstance) error

	// FindJobInstanceByJobNameAndParameters は同じ年の既存インスタンスを探します。
	// 見つからない場合は (nil, nil) を返します。
	FindJobInstanceByJobNameAndParameters(ctx context.Context, jobName string, params core.JobParameters) (*core.JobInstance, error)

	FindJobInstanceByID(ctx context.Context, instanceID string) (*core.JobInstance, error)

	// GetJobNames は 1 度でも登録されたジョブ名を返します。
	GetJobNames(ctx context.Context) ([]string, error)
}

// JobExecution は 1 回の実行 (試行) の保存先です。
type JobExecution interface {
	SaveJobExecution(ctx context.Context, jobExecution *core.JobExecution) error
	UpdateJobExecution(ctx context.Context, jobExecution *core.JobExecution) error

	// FindJobExecutionByID はステップの実行結果も含めて返します。
	FindJobExecutionByID(ctx context.Context, executionID string) (*core.JobExecution, error)

	// FindLatestJobExecution はインスタンスの最後の試行を返します。
	// 1 度も実行されていなければ (nil, nil) です。
	FindLatestJobExecution(ctx context.Context, jobInstanceID string) (*core.JobExecution, error)

	// FindJobExecutions は jobName の実行を新しい順に最大 limit 件返します。
	FindJobExecutions(ctx context.Context, jobName string, limit int) ([]*core.JobExecution, error)
}

// StepExecution はステップ単位の実行結果の保存先です。
// 読み込み件数や出力先のパスなどの ExecutionContext もここに残ります。
type StepExecution interface {
	SaveStepExecution(ctx context.Context, stepExecution *core.StepExecution) error
	UpdateStepExecution(ctx context.Context, stepExecution *core.StepExecution) error

	// FindStepExecutionsByJobExecutionID は開始順に並べて返します。
	FindStepExecutionsByJobExecutionID(ctx context.Context, jobExecutionID string) ([]*core.StepExecution, error)
}
