package connector

import (
	"database/sql"

	_ "github.com/go-sql-driver/mysql" // MySQL ドライバ

	"flightweather/pkg/batch/config"
)

// mysqlConnector は MySQL データベースへの接続を確立する DBConnector の実装です。
type mysqlConnector struct{}

// Connect は MySQL データベースへの接続を確立し、*sql.DB を返します。
func (c *mysqlConnector) Connect(cfg config.DatabaseConfig) (*sql.DB, error) {
	return open("mysql", cfg.ConnectionString(), "MySQL", cfg.ConnectionPool)
}

func init() {
	RegisterConnector("mysql", &mysqlConnector{})
}
