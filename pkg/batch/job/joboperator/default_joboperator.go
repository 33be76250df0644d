package joboperator

import (
	"context"
	"fmt"
	"time"

	core "flightweather/pkg/batch/job/core"
	"flightweather/pkg/batch/job/joblauncher"
	"flightweather/pkg/batch/repository/job"
	exception "flightweather/pkg/batch/util/exception"
	logger "flightweather/pkg/batch/util/logger"
)

// DefaultJobOperator は JobOperator インターフェースのデフォルト実装です。
// 起動は JobLauncher に、メタデータの参照と更新は JobRepository に委譲します。
type DefaultJobOperator struct {
	jobRepository job.JobRepository
	jobLauncher   joblauncher.JobLauncher
}

var _ JobOperator = (*DefaultJobOperator)(nil)

// NewDefaultJobOperator は新しい DefaultJobOperator のインスタンスを作成します。
func NewDefaultJobOperator(jobRepository job.JobRepository, jobLauncher joblauncher.JobLauncher) *DefaultJobOperator {
	return &DefaultJobOperator{
		jobRepository: jobRepository,
		jobLauncher:   jobLauncher,
	}
}

func (o *DefaultJobOperator) Start(ctx context.Context, jobName string, params core.JobParameters) (*core.JobExecution, error) {
	logger.Debugf("JobOperator: Start が呼び出されました。Job: %s, Parameters: %+v", jobName, params.Params)
	return o.jobLauncher.Launch(ctx, jobName, params)
}

// Restart は前回の JobExecution と同じ JobInstance に新しい JobExecution を作成して最初のステップから実行します。
// 年次ジョブのステップは前回の途中状態を必要としないため、ExecutionContext は引き継ぎません。
func (o *DefaultJobOperator) Restart(ctx context.Context, executionID string) (*core.JobExecution, error) {
	logger.Infof("JobOperator: Restart メソッドが呼び出されました。Execution ID: %s", executionID)

	prev, err := o.jobRepository.FindJobExecutionByID(ctx, executionID)
	if err != nil {
		return nil, exception.NewBatchError("job_operator", fmt.Sprintf("再起動処理エラー: JobExecution (ID: %s) のロードに失敗しました", executionID), err, false, false)
	}
	if prev.Status != core.BatchStatusFailed && prev.Status != core.BatchStatusStopped {
		return nil, exception.NewBatchErrorf("job_operator", "再起動処理エラー: JobExecution (ID: %s) は再起動可能な状態ではありません (現在の状態: %s)", executionID, prev.Status)
	}
	logger.Infof("JobExecution (ID: %s) は再起動可能な状態 (%s) です。", executionID, prev.Status)

	return o.jobLauncher.Launch(ctx, prev.JobName, prev.Parameters)
}

func (o *DefaultJobOperator) Stop(ctx context.Context, executionID string) error {
	logger.Infof("JobOperator: Stop メソッドが呼び出されました。Execution ID: %s", executionID)
	if !o.jobLauncher.Stop(executionID) {
		return exception.NewBatchErrorf("job_operator", "JobExecution (ID: %s) はこのプロセスで実行中ではありません", executionID)
	}
	return nil
}

// Abandon は終了していない JobExecution を ABANDONED に更新します。
// プロセスが異常終了して STARTED のまま残った実行を片付けるために使います。
func (o *DefaultJobOperator) Abandon(ctx context.Context, executionID string) error {
	logger.Infof("JobOperator: Abandon メソッドが呼び出されました。Execution ID: %s", executionID)

	jobExecution, err := o.jobRepository.FindJobExecutionByID(ctx, executionID)
	if err != nil {
		return exception.NewBatchError("job_operator", fmt.Sprintf("放棄処理エラー: JobExecution (ID: %s) のロードに失敗しました", executionID), err, false, false)
	}
	if jobExecution.Status.IsFinished() {
		logger.Warnf("JobExecution (ID: %s) は既に終了状態 (%s) なので放棄できません。", executionID, jobExecution.Status)
		return exception.NewBatchErrorf("job_operator", "放棄処理エラー: JobExecution (ID: %s) は既に終了状態です (%s)", executionID, jobExecution.Status)
	}

	now := time.Now()
	jobExecution.Status = core.BatchStatusAbandoned
	jobExecution.ExitStatus = core.ExitStatusAbandoned
	jobExecution.EndTime = now
	jobExecution.LastUpdated = now

	if err := o.jobRepository.UpdateJobExecution(ctx, jobExecution); err != nil {
		return exception.NewBatchError("job_operator", fmt.Sprintf("放棄処理エラー: JobExecution (ID: %s) の状態更新に失敗しました", executionID), err, false, false)
	}
	logger.Infof("JobExecution (ID: %s) を正常に放棄しました。", executionID)
	return nil
}

func (o *DefaultJobOperator) GetJobExecution(ctx context.Context, executionID string) (*core.JobExecution, error) {
	jobExecution, err := o.jobRepository.FindJobExecutionByID(ctx, executionID)
	if err != nil {
		return nil, exception.NewBatchError("job_operator", fmt.Sprintf("JobExecution (ID: %s) の取得に失敗しました", executionID), err, false, false)
	}
	return jobExecution, nil
}

func (o *DefaultJobOperator) GetJobExecutions(ctx context.Context, jobName string, limit int) ([]*core.JobExecution, error) {
	jobExecutions, err := o.jobRepository.FindJobExecutions(ctx, jobName, limit)
	if err != nil {
		return nil, exception.NewBatchError("job_operator", fmt.Sprintf("Job '%s' の JobExecution の取得に失敗しました", jobName), err, false, false)
	}
	logger.Debugf("Job '%s' の JobExecution を %d 件取得しました。", jobName, len(jobExecutions))
	return jobExecutions, nil
}

// GetLastJobExecution は最新の JobExecution を返します。存在しない場合は nil を返します。
func (o *DefaultJobOperator) GetLastJobExecution(ctx context.Context, instanceID string) (*core.JobExecution, error) {
	jobExecution, err := o.jobRepository.FindLatestJobExecution(ctx, instanceID)
	if err != nil {
		return nil, exception.NewBatchError("job_operator", fmt.Sprintf("JobInstance (ID: %s) の最新 JobExecution の取得に失敗しました", instanceID), err, false, false)
	}
	return jobExecution, nil
}

func (o *DefaultJobOperator) GetJobInstance(ctx context.Context, instanceID string) (*core.JobInstance, error) {
	jobInstance, err := o.jobRepository.FindJobInstanceByID(ctx, instanceID)
	if err != nil {
		return nil, exception.NewBatchError("job_operator", fmt.Sprintf("JobInstance (ID: %s) の取得に失敗しました", instanceID), err, false, false)
	}
	return jobInstance, nil
}

func (o *DefaultJobOperator) GetJobNames(ctx context.Context) ([]string, error) {
	jobNames, err := o.jobRepository.GetJobNames(ctx)
	if err != nil {
		return nil, exception.NewBatchError("job_operator", "登録されているジョブ名の取得に失敗しました", err, false, false)
	}
	return jobNames, nil
}
