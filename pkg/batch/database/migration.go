package database

import (
	"embed"
	"errors"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"flightweather/pkg/batch/util/exception"
	"flightweather/pkg/batch/util/logger"
)

// MigrationsTable はバッチメタデータのマイグレーション履歴を記録するテーブル名です。
const MigrationsTable = "batch_schema_migrations"

//go:embed migrations
var migrationFS embed.FS

// RunMigrations は接続先の方言に合わせた埋め込みマイグレーションを適用します。
// Snowflake は golang-migrate のドライバを使わず、スキーマは事前に用意されている前提でスキップします。
func RunMigrations(conn DBConnection) error {
	var (
		dir    string
		driver migratedb.Driver
		err    error
	)

	switch conn.Type() {
	case "postgres", "redshift":
		dir = "migrations/postgres"
		driver, err = postgres.WithInstance(conn.SQLDB(), &postgres.Config{MigrationsTable: MigrationsTable})
	case "mysql":
		dir = "migrations/mysql"
		driver, err = mysql.WithInstance(conn.SQLDB(), &mysql.Config{MigrationsTable: MigrationsTable})
	case "sqlite":
		dir = "migrations/sqlite3"
		driver, err = sqlite3.WithInstance(conn.SQLDB(), &sqlite3.Config{MigrationsTable: MigrationsTable})
	case "snowflake":
		logger.Warnf("Snowflake ではマイグレーションをスキップします。バッチメタデータのテーブルは事前に作成してください。")
		return nil
	default:
		return exception.NewBatchErrorf("migration", "サポートされていないデータベースタイプ: %s", conn.Type())
	}
	if err != nil {
		return exception.NewBatchError("migration", "マイグレーションドライバの作成に失敗しました", err, false, false)
	}

	src, err := iofs.New(migrationFS, dir)
	if err != nil {
		return exception.NewBatchError("migration", "マイグレーションソースの読み込みに失敗しました", err, false, false)
	}

	logger.Infof("データベースマイグレーションを開始します。DBタイプ: %s, マイグレーション: %s", conn.Type(), dir)
	m, err := migrate.NewWithInstance("iofs", src, conn.Type(), driver)
	if err != nil {
		return exception.NewBatchError("migration", "マイグレーションインスタンスの作成に失敗しました", err, false, false)
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Infof("マイグレーションは不要です。データベースは最新の状態です。")
			return nil
		}
		return exception.NewBatchError("migration", "マイグレーションの実行に失敗しました", err, false, false)
	}

	logger.Infof("データベースマイグレーションが正常に完了しました。")
	return nil
}
