package joblauncher

import (
	"context"
	"fmt"
	"sync"

	core "flightweather/pkg/batch/job/core"
	factory "flightweather/pkg/batch/job/factory"
	"flightweather/pkg/batch/repository/job"
	exception "flightweather/pkg/batch/util/exception"
	logger "flightweather/pkg/batch/util/logger"
)

// SimpleJobLauncher は JobLauncher インターフェースのシンプルな実装です。
// JobExecution のライフサイクル管理と JobRepository を使用した永続化を行います。
type SimpleJobLauncher struct {
	jobRepository job.JobRepository
	jobFactory    *factory.JobFactory
	// 実行中のジョブのキャンセル関数 (JobExecution ID -> CancelFunc)
	activeJobCancellations map[string]context.CancelFunc
	mu                     sync.Mutex
}

var _ JobLauncher = (*SimpleJobLauncher)(nil)

// NewSimpleJobLauncher は新しい SimpleJobLauncher のインスタンスを作成します。
func NewSimpleJobLauncher(jobRepository job.JobRepository, jobFactory *factory.JobFactory) *SimpleJobLauncher {
	return &SimpleJobLauncher{
		jobRepository:          jobRepository,
		jobFactory:             jobFactory,
		activeJobCancellations: make(map[string]context.CancelFunc),
	}
}

func (l *SimpleJobLauncher) registerCancelFunc(executionID string, cancelFunc context.CancelFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.activeJobCancellations[executionID] = cancelFunc
	logger.Debugf("JobExecution (ID: %s) の CancelFunc を登録しました。", executionID)
}

func (l *SimpleJobLauncher) unregisterCancelFunc(executionID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if cancelFunc, ok := l.activeJobCancellations[executionID]; ok {
		cancelFunc()
		delete(l.activeJobCancellations, executionID)
		logger.Debugf("JobExecution (ID: %s) の CancelFunc を登録解除しました。", executionID)
	}
}

// Stop は実行中の JobExecution の Context をキャンセルします。
func (l *SimpleJobLauncher) Stop(executionID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	cancelFunc, ok := l.activeJobCancellations[executionID]
	if !ok {
		return false
	}
	cancelFunc()
	logger.Infof("JobExecution (ID: %s) に停止を要求しました。", executionID)
	return true
}

// Launch は指定された Job を JobParameters とともに起動し、JobExecution を管理します。
// 同じパラメータの JobInstance が既に存在する場合はそのインスタンスに新しい JobExecution を追加します。
// 同じインスタンスの JobExecution が実行中の場合は起動しません。
func (l *SimpleJobLauncher) Launch(ctx context.Context, jobName string, params core.JobParameters) (*core.JobExecution, error) {
	logger.Infof("JobLauncher を使用して Job '%s' を起動します。", jobName)

	batchJob, err := l.jobFactory.CreateJob(jobName)
	if err != nil {
		logger.Errorf("Job '%s' の作成に失敗しました: %v", jobName, err)
		return nil, exception.NewBatchError("job_launcher", fmt.Sprintf("Job '%s' の作成に失敗しました", jobName), err, false, false)
	}

	if err := batchJob.ValidateParameters(params); err != nil {
		logger.Errorf("Job '%s': JobParameters のバリデーションに失敗しました: %v", jobName, err)
		return nil, exception.NewBatchError("job_launcher", "JobParameters のバリデーションエラー", err, false, false)
	}

	jobInstance, err := l.jobRepository.FindJobInstanceByJobNameAndParameters(ctx, jobName, params)
	if err != nil {
		logger.Errorf("JobInstance (JobName: %s, Parameters: %+v) の検索に失敗しました: %v", jobName, params.Params, err)
		return nil, exception.NewBatchError("job_launcher", "起動処理エラー: JobInstance の検索に失敗しました", err, false, false)
	}

	if jobInstance == nil {
		jobInstance, err = core.NewJobInstance(jobName, params)
		if err != nil {
			return nil, exception.NewBatchError("job_launcher", "起動処理エラー: JobInstance の作成に失敗しました", err, false, false)
		}
		if err := l.jobRepository.SaveJobInstance(ctx, jobInstance); err != nil {
			logger.Errorf("新しい JobInstance (ID: %s) の保存に失敗しました: %v", jobInstance.ID, err)
			return nil, exception.NewBatchError("job_launcher", "起動処理エラー: 新しい JobInstance の保存に失敗しました", err, false, false)
		}
		logger.Infof("新しい JobInstance (ID: %s, JobName: %s) を作成し保存しました。", jobInstance.ID, jobInstance.JobName)
	} else {
		latest, err := l.jobRepository.FindLatestJobExecution(ctx, jobInstance.ID)
		if err != nil {
			return nil, exception.NewBatchError("job_launcher", "起動処理エラー: 最新の JobExecution の検索に失敗しました", err, false, false)
		}
		if latest != nil && !latest.Status.IsFinished() {
			return nil, exception.NewBatchErrorf("job_launcher",
				"JobInstance (ID: %s) の JobExecution (ID: %s) は実行中です (状態: %s)", jobInstance.ID, latest.ID, latest.Status)
		}
		logger.Infof("既存の JobInstance (ID: %s, JobName: %s) を使用します。", jobInstance.ID, jobInstance.JobName)
	}

	jobExecution := core.NewJobExecution(jobInstance.ID, jobName, params)

	jobCtx, cancel := context.WithCancel(ctx)
	l.registerCancelFunc(jobExecution.ID, cancel)
	defer l.unregisterCancelFunc(jobExecution.ID)

	// 最終状態の永続化はキャンセル後も行う
	persistCtx := context.WithoutCancel(ctx)

	if err := l.jobRepository.SaveJobExecution(persistCtx, jobExecution); err != nil {
		logger.Errorf("JobExecution (ID: %s) の初期永続化に失敗しました: %v", jobExecution.ID, err)
		return jobExecution, exception.NewBatchError("job_launcher", "起動処理エラー: JobExecution の初期保存に失敗しました", err, false, false)
	}

	jobExecution.MarkAsStarted()
	if err := l.jobRepository.UpdateJobExecution(persistCtx, jobExecution); err != nil {
		logger.Errorf("JobExecution (ID: %s) の Started 状態への更新に失敗しました: %v", jobExecution.ID, err)
		jobExecution.AddFailure(exception.NewBatchError("job_launcher", "JobExecution 状態更新エラー (Started)", err, false, false))
	}

	logger.Infof("Job '%s' (Execution ID: %s, Job Instance ID: %s) を実行します。", jobName, jobExecution.ID, jobInstance.ID)
	runErr := batchJob.Run(jobCtx, jobExecution, params)

	if updateErr := l.jobRepository.UpdateJobExecution(persistCtx, jobExecution); updateErr != nil {
		logger.Errorf("JobExecution (ID: %s) の最終状態の更新に失敗しました: %v", jobExecution.ID, updateErr)
		jobExecution.AddFailure(exception.NewBatchError("job_launcher", "JobExecution 最終状態更新エラー", updateErr, false, false))
		if runErr == nil {
			runErr = exception.NewBatchError("job_launcher", "JobExecution 最終状態の永続化に失敗しました", updateErr, false, false)
		}
	} else {
		logger.Debugf("JobExecution (ID: %s) を JobRepository で最終状態 (%s) に更新しました。", jobExecution.ID, jobExecution.Status)
	}

	return jobExecution, runErr
}
