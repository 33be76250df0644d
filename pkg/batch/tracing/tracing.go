// Package tracing は OpenTelemetry の TracerProvider を設定します。
// ジョブ、ステップ、バッチの各層は otel.Tracer からスパンを作成するため、無効時はグローバルの no-op プロバイダーが使われます。
package tracing

import (
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	config "flightweather/pkg/batch/config"
	logger "flightweather/pkg/batch/util/logger"
)

// ShutdownFunc は未送信のスパンを書き出してプロバイダーを停止します。
type ShutdownFunc func(ctx context.Context) error

// Setup は cfg に従ってグローバルの TracerProvider を設定します。
// 無効な場合は何もせず、何もしない ShutdownFunc を返します。
func Setup(cfg config.TracingConfig, w io.Writer) (ShutdownFunc, error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, fmt.Errorf("トレースエクスポーターの作成に失敗しました: %w", err)
	}
	return Install(cfg.ServiceName, exporter), nil
}

// Install は exporter を使う TracerProvider をグローバルに設定します。
func Install(serviceName string, exporter sdktrace.SpanExporter) ShutdownFunc {
	res := resource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceName(serviceName))
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	logger.Infof("トレースを有効にしました (service: %s)。", serviceName)
	return tp.Shutdown
}
