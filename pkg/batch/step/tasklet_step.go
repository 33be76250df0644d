package step

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	core "flightweather/pkg/batch/job/core"
	"flightweather/pkg/batch/repository/job"
	exception "flightweather/pkg/batch/util/exception"
	logger "flightweather/pkg/batch/util/logger"
)

const tracerName = "flightweather/pkg/batch/step"

// TaskletStep は Tasklet インターフェースをラップし、core.Step インターフェースを実装します。
// JSR352のTaskletステップに相当します。
type TaskletStep struct {
	name          string
	tasklet       core.Tasklet
	stepListeners []core.StepExecutionListener
	jobRepository job.JobRepository
	promotionKeys []string // JobExecution の ExecutionContext に昇格させるキー
}

var _ core.Step = (*TaskletStep)(nil)

// NewTaskletStep は新しい TaskletStep のインスタンスを作成します。
func NewTaskletStep(
	name string,
	tasklet core.Tasklet,
	jobRepository job.JobRepository,
	stepListeners []core.StepExecutionListener,
	promotionKeys ...string,
) *TaskletStep {
	return &TaskletStep{
		name:          name,
		tasklet:       tasklet,
		jobRepository: jobRepository,
		stepListeners: stepListeners,
		promotionKeys: promotionKeys,
	}
}

// StepName はステップ名を返します。
func (s *TaskletStep) StepName() string {
	return s.name
}

func (s *TaskletStep) notifyBeforeStep(ctx context.Context, stepExecution *core.StepExecution) {
	for _, l := range s.stepListeners {
		l.BeforeStep(ctx, stepExecution)
	}
}

func (s *TaskletStep) notifyAfterStep(ctx context.Context, stepExecution *core.StepExecution) {
	for _, l := range s.stepListeners {
		l.AfterStep(ctx, stepExecution)
	}
}

// promoteExecutionContext は StepExecution の ExecutionContext の指定キーを JobExecution にコピーします。
func (s *TaskletStep) promoteExecutionContext(jobExecution *core.JobExecution, stepExecution *core.StepExecution) {
	for _, key := range s.promotionKeys {
		if val, ok := stepExecution.ExecutionContext.Get(key); ok {
			jobExecution.ExecutionContext.Put(key, val)
			logger.Debugf("Taskletステップ '%s': キー '%s' を JobExecutionContext にプロモートしました。", s.name, key)
		} else {
			logger.Warnf("Taskletステップ '%s': StepExecutionContext にプロモート対象のキー '%s' が見つかりませんでした。", s.name, key)
		}
	}
}

// Execute は Tasklet を実行し、StepExecution の状態を更新して永続化します。
func (s *TaskletStep) Execute(ctx context.Context, jobExecution *core.JobExecution, stepExecution *core.StepExecution) (err error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "step "+s.name)
	span.SetAttributes(attribute.String("batch.step_execution_id", stepExecution.ID))
	defer span.End()

	logger.Infof("Taskletステップ '%s' (Execution ID: %s) を開始します。", s.name, stepExecution.ID)
	stepExecution.MarkAsStarted()
	s.notifyBeforeStep(ctx, stepExecution)

	defer func() {
		if closeErr := s.tasklet.Close(ctx); closeErr != nil {
			logger.Errorf("Taskletステップ '%s': Tasklet のクローズに失敗しました: %v", s.name, closeErr)
			stepExecution.Failures = append(stepExecution.Failures, closeErr)
		}
		s.notifyAfterStep(ctx, stepExecution)
		if err == nil {
			s.promoteExecutionContext(jobExecution, stepExecution)
		}

		// 最終状態はキャンセル後も永続化する
		if updateErr := s.jobRepository.UpdateStepExecution(context.WithoutCancel(ctx), stepExecution); updateErr != nil {
			logger.Errorf("Taskletステップ '%s': StepExecution の更新に失敗しました: %v", s.name, updateErr)
			if err == nil {
				err = exception.NewBatchError(s.name, "StepExecution の更新エラー", updateErr, false, false)
			}
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	exitStatus, execErr := s.tasklet.Execute(ctx, stepExecution)
	if execErr != nil {
		logger.Errorf("Taskletステップ '%s' の実行中にエラーが発生しました: %v", s.name, execErr)
		stepExecution.MarkAsFailed(execErr)
		return execErr
	}

	switch exitStatus {
	case core.ExitStatusCompleted, core.ExitStatusNoOp, "":
		stepExecution.MarkAsCompleted(exitStatus)
	default:
		failure := exception.NewBatchError(s.name, fmt.Sprintf("Tasklet が完了以外の ExitStatus を返しました: %s", exitStatus), nil, false, false)
		stepExecution.MarkAsFailed(failure)
		return failure
	}

	logger.Infof("Taskletステップ '%s' が正常に完了しました。ExitStatus: %s, Read: %d, Write: %d",
		s.name, stepExecution.ExitStatus, stepExecution.ReadCount, stepExecution.WriteCount)
	return nil
}
