// Package app は設定の読み込みからジョブの登録、年ごとの実行までのアプリケーション全体を組み立てます。
package app

import (
	"context"
	"errors"

	godotenv "github.com/joho/godotenv"

	appJob "flightweather/flightweather/job"
	config "flightweather/pkg/batch/config"
	initializer "flightweather/pkg/batch/initializer"
	core "flightweather/pkg/batch/job/core"
	"flightweather/pkg/batch/job/joboperator"
	"flightweather/pkg/batch/server"
	exception "flightweather/pkg/batch/util/exception"
	logger "flightweather/pkg/batch/util/logger"
)

// loadEnv は .env ファイルを環境変数に読み込みます。ファイルが無くても処理は続けます。
func loadEnv(envFilePath string) {
	if envFilePath == "" {
		logger.Debugf(".env ファイルのパスが指定されていないため、ロードをスキップします。")
		return
	}
	if err := godotenv.Load(envFilePath); err != nil {
		logger.Warnf(".env ファイル '%s' のロードに失敗しました (本番環境では環境変数を使用): %v", envFilePath, err)
		return
	}
	logger.Infof(".env ファイル '%s' をロードしました。", envFilePath)
}

// RunApplication はアプリケーションのメインロジックを実行し、終了コードを返します。
// 設定された年を順番に処理し、失敗した年があっても残りの年は処理します。1 年でも失敗すれば 1 を返します。
func RunApplication(ctx context.Context, envFilePath string, embeddedConfig []byte, configPath string) int {
	loadEnv(envFilePath)

	batchInitializer := initializer.NewBatchInitializer(embeddedConfig, configPath)
	operator, jobFactory, err := batchInitializer.Initialize(ctx)
	if err != nil {
		logger.Errorf("バッチアプリケーションの初期化に失敗しました: %v", err)
		return 1
	}
	defer func() {
		if closeErr := batchInitializer.Close(); closeErr != nil {
			logger.Errorf("バッチアプリケーションのリソースクローズ中にエラーが発生しました: %v", closeErr)
		} else {
			logger.Infof("バッチアプリケーションのリソースを正常にクローズしました。")
		}
	}()

	cfg := batchInitializer.Config
	jobFactory.RegisterJobBuilder(cfg.Batch.JobName, appJob.JobBuilder(batchInitializer.Metrics))
	logger.Debugf("ジョブビルダー '%s' を登録しました。", cfg.Batch.JobName)

	if addr := cfg.Metrics.ListenAddr; addr != "" {
		srvCtx, stopServer := context.WithCancel(ctx)
		done := make(chan struct{})
		go func() {
			defer close(done)
			srv := server.New(operator, cfg.Batch.JobName, batchInitializer.Metrics.Handler())
			if err := srv.ListenAndServe(srvCtx, addr); err != nil {
				logger.Errorf("運用エンドポイントでエラーが発生しました: %v", err)
			}
		}()
		defer func() {
			stopServer()
			<-done
		}()
	}

	return runYears(ctx, operator, cfg)
}

// runYears は cfg.Batch.Years の各年についてジョブを起動します。
func runYears(ctx context.Context, operator joboperator.JobOperator, cfg *config.Config) int {
	jobName := cfg.Batch.JobName
	var failed []int
	for _, year := range cfg.Batch.Years {
		if err := ctx.Err(); err != nil {
			logger.Warnf("Context がキャンセルされたため、%d 年以降の処理を中止します: %v", year, err)
			failed = append(failed, year)
			break
		}

		logger.Infof("%d 年の処理を開始します。", year)
		jobExecution, err := operator.Start(ctx, jobName, appJob.Parameters(year))
		if handleApplicationError(err, jobExecution, jobName) != 0 {
			failed = append(failed, year)
		}
	}

	if len(failed) > 0 {
		logger.Errorf("%d 年分のうち失敗した年: %v", len(cfg.Batch.Years), failed)
		return 1
	}
	logger.Infof("すべての年 (%v) の処理が完了しました。", cfg.Batch.Years)
	return 0
}

// handleApplicationError はジョブの結果をログに出力し、終了コードを返します。
func handleApplicationError(err error, jobExecution *core.JobExecution, jobName string) int {
	hasError := false

	if err != nil {
		hasError = true
		if jobExecution != nil {
			logger.Errorf("Job '%s' (Execution ID: %s) の実行中にエラーが発生しました: %v", jobName, jobExecution.ID, err)
		} else {
			logger.Errorf("Job '%s' の起動処理中にエラーが発生しました: %v", jobName, err)
		}

		var be *exception.BatchError
		if errors.As(err, &be) && be.StackTrace != "" {
			logger.Debugf("BatchError StackTrace:\n%s", be.StackTrace)
		}
	}

	if jobExecution == nil {
		return boolToExitCode(hasError)
	}
	if jobExecution.Status != core.BatchStatusCompleted {
		hasError = true
		logger.Errorf("Job '%s' (Execution ID: %s) の最終状態: %s, ExitStatus: %s",
			jobName, jobExecution.ID, jobExecution.Status, jobExecution.ExitStatus)
		for i, f := range jobExecution.Failures {
			logger.Errorf("  - 失敗 %d: %v", i+1, f)
		}
	}
	return boolToExitCode(hasError)
}

func boolToExitCode(failed bool) int {
	if failed {
		return 1
	}
	return 0
}
