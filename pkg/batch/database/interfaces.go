package database

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	"flightweather/pkg/batch/config"
	"flightweather/pkg/batch/database/connector"
	"flightweather/pkg/batch/util/exception"
)

// DBConnection はデータベース接続のインターフェースです。
// sql.DB の必要なメソッドを抽象化します。
type DBConnection interface {
	Close() error
	PingContext(ctx context.Context) error
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	// Type は接続先のデータベースタイプ (config.DatabaseConfig.Type) を返します。
	Type() string
	// Rebind は '?' プレースホルダのクエリを接続先の方言に変換します。
	Rebind(query string) string
	// SQLDB はマイグレーション用に元の *sql.DB を返します。
	SQLDB() *sql.DB
}

// sqlDBAdapter は sql.DB を DBConnection インターフェースに適合させるアダプターです。
type sqlDBAdapter struct {
	*sql.DB
	dbType string
}

// NewSQLDBAdapter は新しい sqlDBAdapter のインスタンスを作成します。
func NewSQLDBAdapter(db *sql.DB, dbType string) DBConnection {
	return &sqlDBAdapter{DB: db, dbType: strings.ToLower(dbType)}
}

func (a *sqlDBAdapter) Type() string { return a.dbType }

func (a *sqlDBAdapter) SQLDB() *sql.DB { return a.DB }

func (a *sqlDBAdapter) Rebind(query string) string {
	return Rebind(a.dbType, query)
}

// Rebind は '?' プレースホルダを PostgreSQL 系の '$n' 形式に置き換えます。
// それ以外のデータベースタイプではクエリをそのまま返します。
func Rebind(dbType, query string) string {
	switch dbType {
	case "postgres", "redshift":
	default:
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// NewDBConnectionFromConfig は設定に基づいて適切なデータベース接続を確立します。
// 登録されたコネクタの中から適切なものを選択して接続します。
func NewDBConnectionFromConfig(ctx context.Context, cfg config.DatabaseConfig) (DBConnection, error) {
	rawDB, err := connector.GetSQLDB(cfg)
	if err != nil {
		return nil, err
	}
	if err := rawDB.PingContext(ctx); err != nil {
		rawDB.Close()
		return nil, exception.NewBatchError("database", "データベースへのPingに失敗しました", err, true, false)
	}
	return NewSQLDBAdapter(rawDB, cfg.Type), nil
}
