// Package job は 1 年分のフライトに気象観測を付与するジョブを組み立てます。
package job

import (
	"flightweather/flightweather/step/tasklet"
	"flightweather/flightweather/step/writer"
	config "flightweather/pkg/batch/config"
	core "flightweather/pkg/batch/job/core"
	factory "flightweather/pkg/batch/job/factory"
	"flightweather/pkg/batch/job/runner"
	jobrepo "flightweather/pkg/batch/repository/job"
	"flightweather/pkg/batch/step"
	steplistener "flightweather/pkg/batch/step/listener"
)

// ステップ名
const (
	StepLoadFlights     = "loadFlights"
	StepLoadWeather     = "loadWeather"
	StepEnrich          = "enrich"
	StepWriteArtifact   = "writeArtifact"
	StepPublishArtifact = "publishArtifact"
	StepCoverageReport  = "coverageReport"
	StepCommitArtifacts = "commitArtifacts"
)

// NewFlightWeatherJob は 1 年分を処理する Job を作成します。年はジョブパラメータ year で指定します。
//
// ステップは loadFlights, loadWeather, enrich, writeArtifact の順に実行し、
// 設定に応じて coverageReport と publishArtifact を続け、最後の commitArtifacts で成果物を確定します。
// 途中のステップが失敗した場合、成果物は出力ディレクトリに現れません。
// 返す Job は 1 回の実行にだけ使います。
func NewFlightWeatherJob(
	jobRepository jobrepo.JobRepository,
	cfg *config.Config,
	listeners []core.JobExecutionListener,
	rec tasklet.Recorder,
) (*runner.FlowJob, error) {
	var publisher tasklet.ArtifactPublisher
	if cfg.ObjectStore.Enabled {
		p, err := writer.NewPublisher(cfg.ObjectStore)
		if err != nil {
			return nil, err
		}
		publisher = p
	}
	return newFlightWeatherJob(jobRepository, cfg, listeners, rec, publisher, tasklet.DefaultEnricher)
}

// newFlightWeatherJob は publisher が nil でなければ publishArtifact ステップを加えます。
func newFlightWeatherJob(
	jobRepository jobrepo.JobRepository,
	cfg *config.Config,
	listeners []core.JobExecutionListener,
	rec tasklet.Recorder,
	publisher tasklet.ArtifactPublisher,
	newEnricher tasklet.EnricherFactory,
) (*runner.FlowJob, error) {
	state, err := tasklet.NewYearState(cfg, rec)
	if err != nil {
		return nil, err
	}
	stepListeners := []core.StepExecutionListener{steplistener.NewLoggingStepListener()}
	newStep := func(name string, t core.Tasklet, promotionKeys ...string) core.Step {
		return step.NewTaskletStep(name, t, jobRepository, stepListeners, promotionKeys...)
	}

	steps := []core.Step{
		newStep(StepLoadFlights, tasklet.NewLoadFlightsTasklet(state), tasklet.KeyFlightRows),
		newStep(StepLoadWeather, tasklet.NewLoadWeatherTasklet(state), tasklet.KeyStations),
		newStep(StepEnrich, tasklet.NewEnrichTasklet(state, newEnricher), tasklet.KeyDepartureMatched, tasklet.KeyArrivalMatched),
		newStep(StepWriteArtifact, tasklet.NewWriteArtifactTasklet(state), tasklet.KeyArtifactChecksum),
	}
	commitKeys := []string{tasklet.KeyArtifactPath}
	if cfg.Output.CoverageReport {
		steps = append(steps, newStep(StepCoverageReport, tasklet.NewCoverageReportTasklet(state)))
		commitKeys = append(commitKeys, tasklet.KeyCoverageReport)
	}
	if publisher != nil {
		steps = append(steps, newStep(StepPublishArtifact, tasklet.NewPublishArtifactTasklet(state, publisher), tasklet.KeyObjectKey))
	}
	steps = append(steps, newStep(StepCommitArtifacts, tasklet.NewCommitArtifactsTasklet(state), commitKeys...))

	jobListeners := append([]core.JobExecutionListener{tasklet.NewStagedFilesListener(state)}, listeners...)
	return runner.NewFlowJob(cfg.Batch.JobName, steps, jobRepository, jobListeners, validateParameters), nil
}

func validateParameters(params core.JobParameters) error {
	_, err := tasklet.YearParam(params)
	return err
}

// JobBuilder は JobFactory に登録するビルダーを返します。rec は nil でも構いません。
func JobBuilder(rec tasklet.Recorder) factory.JobBuilder {
	return func(jobRepository jobrepo.JobRepository, cfg *config.Config, listeners []core.JobExecutionListener) (core.Job, error) {
		return NewFlightWeatherJob(jobRepository, cfg, listeners, rec)
	}
}

// Parameters は year のジョブパラメータを返します。
func Parameters(year int) core.JobParameters {
	p := core.NewJobParameters()
	p.Put("year", year)
	return p
}
