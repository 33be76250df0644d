package connector

import (
	"database/sql"

	_ "github.com/lib/pq" // PostgreSQL ドライバ (Redshift も互換)

	"flightweather/pkg/batch/config"
)

// postgresConnector は PostgreSQL / Redshift への接続を確立する DBConnector の実装です。
type postgresConnector struct {
	label string
}

// Connect は PostgreSQL 互換データベースへの接続を確立し、*sql.DB を返します。
func (c *postgresConnector) Connect(cfg config.DatabaseConfig) (*sql.DB, error) {
	return open("postgres", cfg.ConnectionString(), c.label, cfg.ConnectionPool)
}

func init() {
	RegisterConnector("postgres", &postgresConnector{label: "PostgreSQL"})
	RegisterConnector("redshift", &postgresConnector{label: "Redshift"})
}
