package connector

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3" // SQLite ドライバ

	"flightweather/pkg/batch/config"
)

// sqliteConnector はローカル実行向けの SQLite 接続を確立する DBConnector の実装です。
type sqliteConnector struct{}

// Connect は SQLite データベースを開きます。
// SQLite は書き込みが直列化されるため、接続は 1 本に制限します。
func (c *sqliteConnector) Connect(cfg config.DatabaseConfig) (*sql.DB, error) {
	pool := cfg.ConnectionPool
	pool.MaxOpenConns = 1
	pool.MaxIdleConns = 1
	return open("sqlite3", cfg.ConnectionString(), "SQLite", pool)
}

func init() {
	RegisterConnector("sqlite", &sqliteConnector{})
}
