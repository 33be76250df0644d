package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// EmbeddedConfig は main.go から渡される埋め込み設定 (application.yaml) を保持します。
type EmbeddedConfig []byte

// ConnectionPoolConfig はデータベースコネクションプールの設定を保持します。
type ConnectionPoolConfig struct {
	MaxOpenConns           int `yaml:"max_open_conns" split_words:"true" validate:"min=0"`
	MaxIdleConns           int `yaml:"max_idle_conns" split_words:"true" validate:"min=0"`
	ConnMaxLifetimeSeconds int `yaml:"conn_max_lifetime_seconds" split_words:"true" validate:"min=0"`
}

// DatabaseConfig は JobRepository が使用するデータベースの設定です。
type DatabaseConfig struct {
	Type      string `yaml:"type" split_words:"true" validate:"oneof=memory sqlite postgres redshift mysql snowflake"`
	Host      string `yaml:"host" split_words:"true"`
	Port      int    `yaml:"port" split_words:"true"`
	Database  string `yaml:"database" split_words:"true"`
	User      string `yaml:"user" split_words:"true"`
	Password  string `yaml:"password" split_words:"true"`
	Sslmode   string `yaml:"sslmode" split_words:"true"`
	Account   string `yaml:"account" split_words:"true"`   // snowflake のみ
	Warehouse string `yaml:"warehouse" split_words:"true"` // snowflake のみ
	Schema    string `yaml:"schema" split_words:"true"`
	// Migrate が true の場合、起動時にバッチメタデータのスキーマを適用します。
	Migrate        bool                 `yaml:"migrate" split_words:"true"`
	ConnectionPool ConnectionPoolConfig `yaml:"connection_pool" split_words:"true"`
}

// ConnectionString は database/sql に渡す接続文字列を返します。
// snowflake の DSN はドライバ側のヘルパーで組み立てるため、ここでは扱いません。
func (c DatabaseConfig) ConnectionString() string {
	switch strings.ToLower(c.Type) {
	case "postgres", "redshift":
		return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
			c.User, c.Password, c.Host, c.Port, c.Database, c.Sslmode)
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
			c.User, c.Password, c.Host, c.Port, c.Database)
	case "sqlite":
		if c.Database == "" {
			return ":memory:"
		}
		return c.Database
	default:
		return ""
	}
}

// BatchConfig はジョブ実行単位 (年) とパーティション実行の設定です。
type BatchConfig struct {
	JobName   string `yaml:"job_name" split_words:"true" validate:"required"`
	Years     []int  `yaml:"years" split_words:"true" validate:"required,min=1,dive,min=1900,max=2100"`
	BatchSize int    `yaml:"batch_size" split_words:"true" validate:"min=1"`
	Workers   int    `yaml:"workers" split_words:"true" validate:"min=1"`
}

// InputConfig は入力ファイルの配置です。パス中の {year} は処理対象の年に置換されます。
type InputConfig struct {
	FlightsPattern    string `yaml:"flights_pattern" split_words:"true" validate:"required"`
	WeatherDirPattern string `yaml:"weather_dir_pattern" split_words:"true" validate:"required"`
	AirportStationMap string `yaml:"airport_station_map" split_words:"true"`
	AirportTable      string `yaml:"airport_table" split_words:"true"`
	StationTable      string `yaml:"station_table" split_words:"true"`
}

// FlightsPath は指定年のフライトファイルのパスを返します。
func (c InputConfig) FlightsPath(year int) string {
	return expandYear(c.FlightsPattern, year)
}

// WeatherDir は指定年の観測ファイルが置かれたディレクトリを返します。
func (c InputConfig) WeatherDir(year int) string {
	return expandYear(c.WeatherDirPattern, year)
}

// OutputConfig は年別成果物の出力設定です。
type OutputConfig struct {
	Dir             string `yaml:"dir" split_words:"true" validate:"required"`
	FileNamePattern string `yaml:"file_name_pattern" split_words:"true" validate:"required"`
	Format          string `yaml:"format" split_words:"true" validate:"oneof=csv arrow"`
	CoverageReport  bool   `yaml:"coverage_report" split_words:"true"`
}

// FileName は拡張子を含まない年別成果物のファイル名を返します。
func (c OutputConfig) FileName(year int) string {
	return expandYear(c.FileNamePattern, year)
}

// ObjectStoreConfig は成果物を S3 互換ストレージへ公開するための設定です。
type ObjectStoreConfig struct {
	Enabled            bool          `yaml:"enabled" split_words:"true"`
	Endpoint           string        `yaml:"endpoint" split_words:"true" validate:"required_if=Enabled true"`
	AccessKeyID        string        `yaml:"access_key_id" split_words:"true"`
	SecretAccessKey    string        `yaml:"secret_access_key" split_words:"true"`
	UseSSL             bool          `yaml:"use_ssl" split_words:"true"`
	Bucket             string        `yaml:"bucket" split_words:"true" validate:"required_if=Enabled true"`
	Prefix             string        `yaml:"prefix" split_words:"true"`
	BreakerMaxFailures uint32        `yaml:"breaker_max_failures" split_words:"true"`
	BreakerTimeout     time.Duration `yaml:"breaker_timeout" split_words:"true"`
}

// MetricsConfig は運用向け HTTP エンドポイントの設定です。ListenAddr が空なら起動しません。
type MetricsConfig struct {
	ListenAddr string `yaml:"listen_addr" split_words:"true"`
}

// TracingConfig はトレース出力の設定です。
type TracingConfig struct {
	Enabled     bool   `yaml:"enabled" split_words:"true"`
	ServiceName string `yaml:"service_name" split_words:"true"`
}

// LoggingConfig はログ出力の設定です。
type LoggingConfig struct {
	Level string `yaml:"level" split_words:"true"`
}

// SystemConfig はシステム全体の設定です。
type SystemConfig struct {
	// Timezone はタイムゾーン情報を持たないタイムスタンプを解釈するロケーションです。
	Timezone string        `yaml:"timezone" split_words:"true"`
	Logging  LoggingConfig `yaml:"logging" split_words:"true"`
}

// Location は Timezone を time.Location として返します。
func (c SystemConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Timezone)
}

// Config はアプリケーション全体の設定です。
// 環境変数はフィールド名から導いたキー (例: FLIGHTWX_OBJECT_STORE_BUCKET) だけを参照します。
type Config struct {
	Database       DatabaseConfig    `yaml:"database" split_words:"true"`
	Batch          BatchConfig       `yaml:"batch" split_words:"true"`
	Input          InputConfig       `yaml:"input" split_words:"true"`
	Output         OutputConfig      `yaml:"output" split_words:"true"`
	ObjectStore    ObjectStoreConfig `yaml:"object_store" split_words:"true"`
	Metrics        MetricsConfig     `yaml:"metrics" split_words:"true"`
	Tracing        TracingConfig     `yaml:"tracing" split_words:"true"`
	System         SystemConfig      `yaml:"system" split_words:"true"`
	EmbeddedConfig EmbeddedConfig    `yaml:"-" ignored:"true"` // YAML からは読み込まない
}

// NewConfig はデフォルト値を設定した Config を返します。
func NewConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Type: "memory",
		},
		Batch: BatchConfig{
			JobName:   "flightWeatherJob",
			Years:     []int{2018, 2019, 2020, 2021, 2022, 2023},
			BatchSize: 1000,
			Workers:   16,
		},
		Input: InputConfig{
			FlightsPattern:    "2_flight_merge/{year}.csv",
			WeatherDirPattern: "climate/{year}_data",
			AirportStationMap: "closest.csv",
		},
		Output: OutputConfig{
			Dir:             "Air_weather",
			FileNamePattern: "{year}_airport_weather",
			Format:          "csv",
		},
		ObjectStore: ObjectStoreConfig{
			BreakerMaxFailures: 3,
			BreakerTimeout:     30 * time.Second,
		},
		Tracing: TracingConfig{
			ServiceName: "flightweather",
		},
		System: SystemConfig{
			Timezone: "UTC",
			Logging:  LoggingConfig{Level: "INFO"},
		},
	}
}

func expandYear(pattern string, year int) string {
	return strings.ReplaceAll(pattern, "{year}", strconv.Itoa(year))
}
