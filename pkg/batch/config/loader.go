package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"flightweather/pkg/batch/util/exception"
)

// EnvPrefix は設定を上書きする環境変数の接頭辞です (例: FLIGHTWX_BATCH_WORKERS)。
const EnvPrefix = "FLIGHTWX"

// ConfigLoader は設定をロードするインターフェースです。
type ConfigLoader interface {
	Load() (*Config, error)
}

// BytesConfigLoader は埋め込み YAML と任意の外部 YAML ファイルから設定をロードします。
type BytesConfigLoader struct {
	data         []byte
	overridePath string
}

// NewBytesConfigLoader は新しい BytesConfigLoader のインスタンスを作成します。
// overridePath が空でなければ、埋め込み設定の上にそのファイルの内容を重ねます。
func NewBytesConfigLoader(data []byte, overridePath string) *BytesConfigLoader {
	return &BytesConfigLoader{data: data, overridePath: overridePath}
}

// Load はデフォルト値、埋め込み YAML、外部 YAML、環境変数の順に設定を重ね、検証して返します。
func (l *BytesConfigLoader) Load() (*Config, error) {
	cfg := NewConfig()

	if len(l.data) > 0 {
		if err := yaml.Unmarshal(l.data, cfg); err != nil {
			return nil, exception.NewBatchError("config", "埋め込み YAML 設定のパースに失敗しました", err, false, false)
		}
	}

	if l.overridePath != "" {
		data, err := os.ReadFile(l.overridePath)
		if err != nil {
			return nil, exception.NewBatchError("config", fmt.Sprintf("設定ファイル '%s' の読み込みに失敗しました", l.overridePath), err, false, false)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, exception.NewBatchError("config", fmt.Sprintf("設定ファイル '%s' のパースに失敗しました", l.overridePath), err, false, false)
		}
	}

	// 環境変数で個別の設定値を上書き
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, exception.NewBatchError("config", "環境変数による設定の上書きに失敗しました", errors.Join(exception.ErrInvalidConfig, err), false, false)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	cfg.EmbeddedConfig = l.data
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate は設定値を検証します。
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			first := verrs[0]
			return exception.NewBatchError("config",
				fmt.Sprintf("設定値 '%s' が不正です (制約: %s)", first.Namespace(), first.Tag()),
				errors.Join(exception.ErrInvalidConfig, err), false, false)
		}
		return exception.NewBatchError("config", "設定の検証に失敗しました", errors.Join(exception.ErrInvalidConfig, err), false, false)
	}
	if _, err := cfg.System.Location(); err != nil {
		return exception.NewBatchError("config", fmt.Sprintf("タイムゾーン '%s' を解釈できません", cfg.System.Timezone), errors.Join(exception.ErrInvalidConfig, err), false, false)
	}
	return nil
}
