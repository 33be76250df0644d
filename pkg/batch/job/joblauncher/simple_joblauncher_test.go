package joblauncher

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
	"flightweather/pkg/batch/job/listener"
	"flightweather/pkg/batch/job/runner"
	"flightweather/pkg/batch/repository/job"
	"flightweather/pkg/batch/repository/memory"
	"flightweather/pkg/batch/step"
	logger "flightweather/pkg/batch/util/logger"
)

type funcTasklet struct {
	fn     func(ctx context.Context, se *core.StepExecution) (core.ExitStatus, error)
	closed bool
}

func (t *funcTasklet) Execute(ctx context.Context, se *core.StepExecution) (core.ExitStatus, error) {
	return t.fn(ctx, se)
}

func (t *funcTasklet) Close(ctx context.Context) error {
	t.closed = true
	return nil
}

func newLauncher(t *testing.T, tasklets map[string]*funcTasklet, order []string) (*SimpleJobLauncher, job.JobRepository) {
	t.Helper()
	logger.SetOutput(io.Discard)

	cfg := config.NewConfig()
	repo := memory.NewJobRepository()
	f := factory.NewJobFactory(cfg, repo)
	f.RegisterJobListenerBuilder("logging", func(cfg *config.Config) (core.JobExecutionListener, error) {
		return listener.NewLoggingJobListener(&cfg.System.Logging), nil
	})
	f.RegisterJobBuilder("testJob", func(repo job.JobRepository, cfg *config.Config, listeners []core.JobExecutionListener) (core.Job, error) {
		steps := make([]core.Step, 0, len(order))
		for _, name := range order {
			steps = append(steps, step.NewTaskletStep(name, tasklets[name], repo, nil, "rows"))
		}
		return runner.NewFlowJob("testJob", steps, repo, listeners, func(p core.JobParameters) error {
			if _, ok := p.GetInt("year"); !ok {
				return errors.New("year is required")
			}
			return nil
		}), nil
	})
	return NewSimpleJobLauncher(repo, f), repo
}

func yearParams(year int) core.JobParameters {
	p := core.NewJobParameters()
	p.Put("year", year)
	return p
}

func TestSimpleJobLauncher_Completed(t *testing.T) {
	ctx := context.Background()
	tasklets := map[string]*funcTasklet{
		"read": {fn: func(ctx context.Context, se *core.StepExecution) (core.ExitStatus, error) {
			se.ReadCount = 3
			se.ExecutionContext.Put("rows", 3)
			return core.ExitStatusCompleted, nil
		}},
		"write": {fn: func(ctx context.Context, se *core.StepExecution) (core.ExitStatus, error) {
			se.WriteCount = 3
			return core.ExitStatusCompleted, nil
		}},
	}
	launcher, repo := newLauncher(t, tasklets, []string{"read", "write"})

	je, err := launcher.Launch(ctx, "testJob", yearParams(2019))
	require.NoError(t, err)
	assert.Equal(t, core.BatchStatusCompleted, je.Status)
	assert.Equal(t, 0, je.ExitCode)
	rows, ok := je.ExecutionContext.GetInt("rows")
	assert.True(t, ok)
	assert.Equal(t, 3, rows)
	assert.True(t, tasklets["read"].closed)

	stored, err := repo.FindJobExecutionByID(ctx, je.ID)
	require.NoError(t, err)
	assert.Equal(t, core.BatchStatusCompleted, stored.Status)
	require.Len(t, stored.StepExecutions, 2)
	assert.Equal(t, "read", stored.StepExecutions[0].StepName)
	assert.Equal(t, core.BatchStatusCompleted, stored.StepExecutions[1].Status)
	assert.Equal(t, 3, stored.StepExecutions[1].WriteCount)

	// 同じ年の再実行は同じ JobInstance に新しい JobExecution を追加する
	again, err := launcher.Launch(ctx, "testJob", yearParams(2019))
	require.NoError(t, err)
	assert.Equal(t, je.JobInstanceID, again.JobInstanceID)
	assert.NotEqual(t, je.ID, again.ID)
}

func TestSimpleJobLauncher_FailedStepStopsFlow(t *testing.T) {
	ctx := context.Background()
	writeCalled := false
	tasklets := map[string]*funcTasklet{
		"read": {fn: func(ctx context.Context, se *core.StepExecution) (core.ExitStatus, error) {
			return core.ExitStatusFailed, errors.New("broken input")
		}},
		"write": {fn: func(ctx context.Context, se *core.StepExecution) (core.ExitStatus, error) {
			writeCalled = true
			return core.ExitStatusCompleted, nil
		}},
	}
	launcher, repo := newLauncher(t, tasklets, []string{"read", "write"})

	je, err := launcher.Launch(ctx, "testJob", yearParams(2020))
	require.Error(t, err)
	require.NotNil(t, je)
	assert.Equal(t, core.BatchStatusFailed, je.Status)
	assert.Equal(t, 1, je.ExitCode)
	assert.False(t, writeCalled)

	stored, err := repo.FindJobExecutionByID(ctx, je.ID)
	require.NoError(t, err)
	assert.Equal(t, core.BatchStatusFailed, stored.Status)
	require.Len(t, stored.StepExecutions, 1)
	assert.Equal(t, core.BatchStatusFailed, stored.StepExecutions[0].Status)
}

func TestSimpleJobLauncher_InvalidParameters(t *testing.T) {
	launcher, _ := newLauncher(t, map[string]*funcTasklet{}, nil)
	je, err := launcher.Launch(context.Background(), "testJob", core.NewJobParameters())
	assert.Error(t, err)
	assert.Nil(t, je)

	_, err = launcher.Launch(context.Background(), "unknownJob", yearParams(2019))
	assert.Error(t, err)
}

func TestSimpleJobLauncher_CancelledContextStopsJob(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	tasklets := map[string]*funcTasklet{
		"read": {fn: func(ctx context.Context, se *core.StepExecution) (core.ExitStatus, error) {
			cancel()
			return core.ExitStatusCompleted, nil
		}},
		"write": {fn: func(ctx context.Context, se *core.StepExecution) (core.ExitStatus, error) {
			t.Fatal("write must not run after cancellation")
			return core.ExitStatusCompleted, nil
		}},
	}
	launcher, repo := newLauncher(t, tasklets, []string{"read", "write"})

	je, err := launcher.Launch(ctx, "testJob", yearParams(2021))
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, core.BatchStatusStopped, je.Status)

	stored, err := repo.FindJobExecutionByID(context.Background(), je.ID)
	require.NoError(t, err)
	assert.Equal(t, core.BatchStatusStopped, stored.Status)
	assert.False(t, launcher.Stop(je.ID))
}
