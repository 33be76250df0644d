package runner

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	core "flightweather/pkg/batch/job/core"
	"flightweather/pkg/batch/repository/job"
	exception "flightweather/pkg/batch/util/exception"
	logger "flightweather/pkg/batch/util/logger"
)

const tracerName = "flightweather/pkg/batch/job/runner"

// ParametersValidator は JobParameters を検証する関数の型です。
type ParametersValidator func(params core.JobParameters) error

// FlowJob は登録されたステップを順番に実行する Job の実装です。
// いずれかのステップが失敗した時点でジョブは FAILED となり、後続のステップは実行されません。
type FlowJob struct {
	name          string
	steps         []core.Step
	jobRepository job.JobRepository
	jobListeners  []core.JobExecutionListener
	validator     ParametersValidator
}

var _ core.Job = (*FlowJob)(nil)

// NewFlowJob は新しい FlowJob のインスタンスを作成します。validator は nil でも構いません。
func NewFlowJob(
	name string,
	steps []core.Step,
	jobRepository job.JobRepository,
	jobListeners []core.JobExecutionListener,
	validator ParametersValidator,
) *FlowJob {
	return &FlowJob{
		name:          name,
		steps:         steps,
		jobRepository: jobRepository,
		jobListeners:  jobListeners,
		validator:     validator,
	}
}

func (j *FlowJob) JobName() string {
	return j.name
}

// StepNames は実行順のステップ名を返します。
func (j *FlowJob) StepNames() []string {
	names := make([]string, len(j.steps))
	for i, s := range j.steps {
		names[i] = s.StepName()
	}
	return names
}

// ValidateParameters は JobParameters を検証します。
func (j *FlowJob) ValidateParameters(params core.JobParameters) error {
	if j.validator == nil {
		return nil
	}
	return j.validator(params)
}

func (j *FlowJob) notifyBeforeJob(ctx context.Context, jobExecution *core.JobExecution) {
	for _, l := range j.jobListeners {
		l.BeforeJob(ctx, jobExecution)
	}
}

func (j *FlowJob) notifyAfterJob(ctx context.Context, jobExecution *core.JobExecution) {
	for _, l := range j.jobListeners {
		l.AfterJob(ctx, jobExecution)
	}
}

// Run はステップを順番に実行し、JobExecution の最終状態を設定します。
func (j *FlowJob) Run(ctx context.Context, jobExecution *core.JobExecution, jobParameters core.JobParameters) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "job "+j.name)
	span.SetAttributes(attribute.String("batch.job_execution_id", jobExecution.ID))
	defer span.End()

	logger.Infof("ジョブ '%s' (Execution ID: %s) を開始します。", j.name, jobExecution.ID)
	j.notifyBeforeJob(ctx, jobExecution)
	defer func() {
		j.notifyAfterJob(ctx, jobExecution)
		logger.Infof("ジョブ '%s' (Execution ID: %s) が終了しました。最終ステータス: %s, 終了ステータス: %s",
			j.name, jobExecution.ID, jobExecution.Status, jobExecution.ExitStatus)
	}()

	for _, step := range j.steps {
		if err := ctx.Err(); err != nil {
			logger.Warnf("Context がキャンセルされたため、ジョブ '%s' の実行を中断します: %v", j.name, err)
			jobExecution.AddFailure(err)
			jobExecution.MarkAsStopped()
			span.SetStatus(codes.Error, err.Error())
			return err
		}

		stepExecution := core.NewStepExecution(step.StepName(), jobExecution)
		if err := j.jobRepository.SaveStepExecution(ctx, stepExecution); err != nil {
			wrapped := exception.NewBatchError(j.name, "StepExecution の保存エラー", err, false, false)
			jobExecution.MarkAsFailed(wrapped)
			span.SetStatus(codes.Error, wrapped.Error())
			return wrapped
		}

		if err := step.Execute(ctx, jobExecution, stepExecution); err != nil {
			logger.Errorf("ジョブ '%s': ステップ '%s' が失敗しました: %v", j.name, step.StepName(), err)
			if errors.Is(err, context.Canceled) {
				jobExecution.AddFailure(err)
				jobExecution.MarkAsStopped()
			} else {
				jobExecution.MarkAsFailed(err)
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
	}

	jobExecution.MarkAsCompleted()
	logger.Infof("ジョブ '%s' のフローが正常に完了しました。", j.name)
	return nil
}
