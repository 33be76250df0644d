package repository

import (
	"context"
	"fmt"

	"flightweather/pkg/batch/config"
	"flightweather/pkg/batch/database"
	"flightweather/pkg/batch/repository/job"
	"flightweather/pkg/batch/repository/memory"
	sqlrepo "flightweather/pkg/batch/repository/sql"
	"flightweather/pkg/batch/util/exception"
	logger "flightweather/pkg/batch/util/logger"
)

// NewJobRepository は設定に基づいて JobRepository のインスタンスを作成します。
// database.type が memory の場合はプロセス内リポジトリを返し、それ以外はデータベースに接続します。
// database.migrate が true、または SQLite の場合はバッチメタデータのスキーマを適用します。
func NewJobRepository(ctx context.Context, cfg config.DatabaseConfig) (job.JobRepository, error) {
	const module = "repository_factory"
	logger.Debugf("JobRepository の生成を開始します (Type: %s).", cfg.Type)

	if cfg.Type == "" || cfg.Type == "memory" {
		logger.Infof("インメモリの JobRepository を使用します。実行履歴はプロセス終了時に失われます。")
		return memory.NewJobRepository(), nil
	}

	dbConn, err := database.NewDBConnectionFromConfig(ctx, cfg)
	if err != nil {
		return nil, exception.NewBatchError(module, fmt.Sprintf("JobRepository 用のデータベース接続確立に失敗しました (Type: %s)", cfg.Type), err, false, false)
	}

	if cfg.Migrate || dbConn.Type() == "sqlite" {
		if err := database.RunMigrations(dbConn); err != nil {
			dbConn.Close()
			return nil, err
		}
	}

	logger.Debugf("SQLJobRepository を生成しました。")
	return sqlrepo.NewSQLJobRepository(dbConn), nil
}
