// Command flightweather は年ごとのフライト実績に出発地と到着地の気象観測を付与します。
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	_ "embed"

	"flightweather/flightweather/app"
	logger "flightweather/pkg/batch/util/logger"
)

//go:embed resources/application.yaml
var embeddedConfig []byte

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "埋め込み設定に重ねる YAML ファイル")
	envFile := flag.String("env-file", envOr("ENV_FILE_PATH", ".env"), "読み込む .env ファイル")
	flag.Parse()

	// SIGINT/SIGTERM で新しいバッチの投入を止め、処理中の年を STOPPED で終える
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	code := app.RunApplication(ctx, *envFile, embeddedConfig, *configPath)
	if ctx.Err() != nil {
		logger.Warnf("シグナルにより停止しました (exit code: %d)。", code)
	}
	return code
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
