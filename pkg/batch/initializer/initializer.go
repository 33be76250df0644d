package initializer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	config "flightweather/pkg/batch/config"
	core "flightweather/pkg/batch/job/core"
	factory "flightweather/pkg/batch/job/factory"
	"flightweather/pkg/batch/job/joblauncher"
	"flightweather/pkg/batch/job/joboperator"
	"flightweather/pkg/batch/job/listener"
	"flightweather/pkg/batch/metrics"
	"flightweather/pkg/batch/repository"
	"flightweather/pkg/batch/repository/job"
	"flightweather/pkg/batch/tracing"
	exception "flightweather/pkg/batch/util/exception"
	logger "flightweather/pkg/batch/util/logger"
)

// 接続のリトライ設定。テストから短くできるように変数にしています。
var (
	connectMaxRetries = 10
	connectRetryDelay = 5 * time.Second
)

// BatchInitializer はバッチアプリケーションの初期化処理を担当します。
type BatchInitializer struct {
	EmbeddedConfig []byte
	ConfigPath     string
	TraceWriter    io.Writer

	Config        *config.Config
	JobRepository job.JobRepository
	JobFactory    *factory.JobFactory
	JobLauncher   *joblauncher.SimpleJobLauncher
	JobOperator   joboperator.JobOperator
	Metrics       *metrics.Metrics

	shutdownTracing tracing.ShutdownFunc
}

// NewBatchInitializer は新しい BatchInitializer のインスタンスを作成します。
// configPath が空でなければ埋め込み設定の上にそのファイルを重ねます。
func NewBatchInitializer(embeddedConfig []byte, configPath string) *BatchInitializer {
	return &BatchInitializer{
		EmbeddedConfig: embeddedConfig,
		ConfigPath:     configPath,
		TraceWriter:    os.Stdout,
	}
}

// newJobRepositoryWithRetry はリトライ可能なエラーの間、JobRepository の生成を繰り返します。
func newJobRepositoryWithRetry(ctx context.Context, cfg config.DatabaseConfig) (job.JobRepository, error) {
	var lastErr error
	for i := 0; i < connectMaxRetries; i++ {
		logger.Debugf("JobRepository の生成を試行中 (試行 %d/%d)...", i+1, connectMaxRetries)
		repo, err := repository.NewJobRepository(ctx, cfg)
		if err == nil {
			return repo, nil
		}
		lastErr = err
		if !exception.IsTemporary(err) {
			return nil, err
		}
		logger.Warnf("データベースへの接続に失敗しました。%s 後にリトライします: %v", connectRetryDelay, err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(connectRetryDelay):
		}
	}
	return nil, fmt.Errorf("データベースへの接続に最大試行回数 (%d) 失敗しました: %w", connectMaxRetries, lastErr)
}

// Initialize は設定のロード、ログレベル、トレース、JobRepository、JobFactory、JobOperator を順に初期化します。
// ジョブビルダーの登録は呼び出し元が返された JobFactory に対して行います。
func (bi *BatchInitializer) Initialize(ctx context.Context) (joboperator.JobOperator, *factory.JobFactory, error) {
	logger.Debugf("BatchInitializer.Initialize が呼び出されました。")

	cfg, err := config.NewBytesConfigLoader(bi.EmbeddedConfig, bi.ConfigPath).Load()
	if err != nil {
		return nil, nil, exception.NewBatchError("initializer", "設定のロードに失敗しました", err, false, false)
	}
	bi.Config = cfg

	logger.SetLogLevel(cfg.System.Logging.Level)
	logger.Infof("ロギングレベルを '%s' に設定しました。", cfg.System.Logging.Level)

	shutdown, err := tracing.Setup(cfg.Tracing, bi.TraceWriter)
	if err != nil {
		return nil, nil, exception.NewBatchError("initializer", "トレースの初期化に失敗しました", err, false, false)
	}
	bi.shutdownTracing = shutdown

	jobRepository, err := newJobRepositoryWithRetry(ctx, cfg.Database)
	if err != nil {
		return nil, nil, exception.NewBatchError("initializer", "Job Repository の生成に失敗しました", err, false, false)
	}
	bi.JobRepository = jobRepository
	logger.Infof("Job Repository を生成しました (Type: %s)。", cfg.Database.Type)

	bi.Metrics = metrics.New()

	jobFactory := factory.NewJobFactory(cfg, jobRepository)
	jobFactory.RegisterJobListenerBuilder("logging", func(cfg *config.Config) (core.JobExecutionListener, error) {
		return listener.NewLoggingJobListener(&cfg.System.Logging), nil
	})
	jobFactory.RegisterJobListenerBuilder("metrics", func(cfg *config.Config) (core.JobExecutionListener, error) {
		return bi.Metrics, nil
	})
	bi.JobFactory = jobFactory

	bi.JobLauncher = joblauncher.NewSimpleJobLauncher(jobRepository, jobFactory)
	bi.JobOperator = joboperator.NewDefaultJobOperator(jobRepository, bi.JobLauncher)
	logger.Debugf("DefaultJobOperator を生成しました。")

	return bi.JobOperator, bi.JobFactory, nil
}

// Close は BatchInitializer が保持するリソースを解放します。
func (bi *BatchInitializer) Close() error {
	var errs []error
	if bi.JobRepository != nil {
		if err := bi.JobRepository.Close(); err != nil {
			logger.Errorf("Job Repository のクローズに失敗しました: %v", err)
			errs = append(errs, fmt.Errorf("Job Repository クローズエラー: %w", err))
		} else {
			logger.Debugf("Job Repository を正常にクローズしました。")
		}
	}
	if bi.shutdownTracing != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := bi.shutdownTracing(ctx); err != nil {
			errs = append(errs, fmt.Errorf("トレースのシャットダウンエラー: %w", err))
		}
	}
	return errors.Join(errs...)
}
