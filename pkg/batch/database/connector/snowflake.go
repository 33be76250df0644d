package connector

import (
	"database/sql"

	"github.com/snowflakedb/gosnowflake"

	"flightweather/pkg/batch/config"
	"flightweather/pkg/batch/util/exception"
)

// snowflakeConnector は Snowflake への接続を確立する DBConnector の実装です。
type snowflakeConnector struct{}

// Connect は Snowflake への接続を確立し、*sql.DB を返します。
func (c *snowflakeConnector) Connect(cfg config.DatabaseConfig) (*sql.DB, error) {
	dsn, err := SnowflakeDSN(cfg)
	if err != nil {
		return nil, err
	}
	return open("snowflake", dsn, "Snowflake", cfg.ConnectionPool)
}

// SnowflakeDSN は設定から gosnowflake の DSN を組み立てます。
func SnowflakeDSN(cfg config.DatabaseConfig) (string, error) {
	dsn, err := gosnowflake.DSN(&gosnowflake.Config{
		Account:   cfg.Account,
		User:      cfg.User,
		Password:  cfg.Password,
		Database:  cfg.Database,
		Schema:    cfg.Schema,
		Warehouse: cfg.Warehouse,
	})
	if err != nil {
		return "", exception.NewBatchError("database", "Snowflake の DSN 作成に失敗しました", err, false, false)
	}
	return dsn, nil
}

func init() {
	RegisterConnector("snowflake", &snowflakeConnector{})
}
