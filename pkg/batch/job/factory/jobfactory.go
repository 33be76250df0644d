package factory

import (
	"sort"

	config "flightweather/pkg/batch/config"
	core "flightweather/pkg/batch/job/core"
	"flightweather/pkg/batch/repository/job"
	exception "flightweather/pkg/batch/util/exception"
	logger "flightweather/pkg/batch/util/logger"
)

// JobListenerBuilder は設定から JobExecutionListener を生成する関数の型です。
type JobListenerBuilder func(cfg *config.Config) (core.JobExecutionListener, error)

// JobBuilder は Job を生成する関数の型です。
// 登録済みの JobExecutionListener がすべて渡されます。
type JobBuilder func(
	jobRepository job.JobRepository,
	cfg *config.Config,
	listeners []core.JobExecutionListener,
) (core.Job, error)

// JobFactory はジョブ名から Job を生成します。
type JobFactory struct {
	config              *config.Config
	jobRepository       job.JobRepository
	jobBuilders         map[string]JobBuilder
	jobListenerBuilders map[string]JobListenerBuilder
}

// NewJobFactory は新しい JobFactory のインスタンスを作成します。
func NewJobFactory(cfg *config.Config, repo job.JobRepository) *JobFactory {
	return &JobFactory{
		config:              cfg,
		jobRepository:       repo,
		jobBuilders:         make(map[string]JobBuilder),
		jobListenerBuilders: make(map[string]JobListenerBuilder),
	}
}

// RegisterJobBuilder はジョブビルダーを登録します。
func (f *JobFactory) RegisterJobBuilder(name string, builder JobBuilder) {
	f.jobBuilders[name] = builder
	logger.Debugf("JobFactory: ジョブビルダー '%s' を登録しました。", name)
}

// RegisterJobListenerBuilder は JobExecutionListener のビルダーを登録します。
func (f *JobFactory) RegisterJobListenerBuilder(name string, builder JobListenerBuilder) {
	f.jobListenerBuilders[name] = builder
	logger.Debugf("JobFactory: ジョブリスナービルダー '%s' を登録しました。", name)
}

// CreateJob は指定された名前の Job を生成します。
func (f *JobFactory) CreateJob(jobName string) (core.Job, error) {
	builder, ok := f.jobBuilders[jobName]
	if !ok {
		return nil, exception.NewBatchErrorf("job_factory", "ジョブ '%s' のビルダーが登録されていません", jobName)
	}

	// リスナーの生成順を安定させる
	names := make([]string, 0, len(f.jobListenerBuilders))
	for name := range f.jobListenerBuilders {
		names = append(names, name)
	}
	sort.Strings(names)

	listeners := make([]core.JobExecutionListener, 0, len(names))
	for _, name := range names {
		l, err := f.jobListenerBuilders[name](f.config)
		if err != nil {
			return nil, exception.NewBatchErrorf("job_factory", "ジョブリスナー '%s' の生成に失敗しました", name, err)
		}
		listeners = append(listeners, l)
	}

	j, err := builder(f.jobRepository, f.config, listeners)
	if err != nil {
		return nil, exception.NewBatchErrorf("job_factory", "ジョブ '%s' の生成に失敗しました", jobName, err)
	}
	logger.Debugf("JobFactory: ジョブ '%s' を生成しました。リスナー数: %d", jobName, len(listeners))
	return j, nil
}
