package joboperator

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	config "flightweather/pkg/batch/config"
	core "flightweather/pkg/batch/job/core"
	factory "flightweather/pkg/batch/job/factory"
	"flightweather/pkg/batch/job/joblauncher"
	"flightweather/pkg/batch/job/runner"
	"flightweather/pkg/batch/repository/job"
	"flightweather/pkg/batch/repository/memory"
	"flightweather/pkg/batch/step"
	logger "flightweather/pkg/batch/util/logger"
)

type flakyTasklet struct {
	failures int
	calls    int
}

func (t *flakyTasklet) Execute(ctx context.Context, se *core.StepExecution) (core.ExitStatus, error) {
	t.calls++
	if t.calls <= t.failures {
		return core.ExitStatusFailed, errors.New("weather directory not mounted yet")
	}
	se.ReadCount = 10
	return core.ExitStatusCompleted, nil
}

func (t *flakyTasklet) Close(ctx context.Context) error { return nil }

func newOperator(t *testing.T, tasklet core.Tasklet) (*DefaultJobOperator, job.JobRepository) {
	t.Helper()
	logger.SetOutput(io.Discard)

	repo := memory.NewJobRepository()
	f := factory.NewJobFactory(config.NewConfig(), repo)
	f.RegisterJobBuilder("yearJob", func(repo job.JobRepository, cfg *config.Config, listeners []core.JobExecutionListener) (core.Job, error) {
		steps := []core.Step{step.NewTaskletStep("load", tasklet, repo, nil)}
		return runner.NewFlowJob("yearJob", steps, repo, listeners, nil), nil
	})
	return NewDefaultJobOperator(repo, joblauncher.NewSimpleJobLauncher(repo, f)), repo
}

func year(y int) core.JobParameters {
	p := core.NewJobParameters()
	p.Put("year", y)
	return p
}

func TestDefaultJobOperator_RestartFailedYear(t *testing.T) {
	ctx := context.Background()
	op, _ := newOperator(t, &flakyTasklet{failures: 1})

	first, err := op.Start(ctx, "yearJob", year(2020))
	require.Error(t, err)
	require.NotNil(t, first)
	assert.Equal(t, core.BatchStatusFailed, first.Status)

	second, err := op.Restart(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, core.BatchStatusCompleted, second.Status)
	assert.Equal(t, first.JobInstanceID, second.JobInstanceID)
	assert.NotEqual(t, first.ID, second.ID)

	last, err := op.GetLastJobExecution(ctx, first.JobInstanceID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, last.ID)

	instance, err := op.GetJobInstance(ctx, first.JobInstanceID)
	require.NoError(t, err)
	assert.Equal(t, "yearJob", instance.JobName)

	// 完了済みの実行は再起動できない
	_, err = op.Restart(ctx, second.ID)
	assert.Error(t, err)

	executions, err := op.GetJobExecutions(ctx, "yearJob", 10)
	require.NoError(t, err)
	assert.Len(t, executions, 2)

	names, err := op.GetJobNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"yearJob"}, names)
}

func TestDefaultJobOperator_Abandon(t *testing.T) {
	ctx := context.Background()
	op, repo := newOperator(t, &flakyTasklet{})

	instance, err := core.NewJobInstance("yearJob", year(2019))
	require.NoError(t, err)
	require.NoError(t, repo.SaveJobInstance(ctx, instance))
	orphan := core.NewJobExecution(instance.ID, "yearJob", year(2019))
	orphan.MarkAsStarted()
	require.NoError(t, repo.SaveJobExecution(ctx, orphan))

	require.NoError(t, op.Abandon(ctx, orphan.ID))
	stored, err := op.GetJobExecution(ctx, orphan.ID)
	require.NoError(t, err)
	assert.Equal(t, core.BatchStatusAbandoned, stored.Status)
	assert.Equal(t, core.ExitStatusAbandoned, stored.ExitStatus)

	// 終了済みの実行は放棄できない
	assert.Error(t, op.Abandon(ctx, orphan.ID))
}

func TestDefaultJobOperator_StopUnknownExecution(t *testing.T) {
	op, _ := newOperator(t, &flakyTasklet{})
	assert.Error(t, op.Stop(context.Background(), "no-such-execution"))

	_, err := op.GetJobExecution(context.Background(), "no-such-execution")
	assert.Error(t, err)
}
