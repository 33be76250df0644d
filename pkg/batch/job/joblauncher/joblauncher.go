package joblauncher

import (
	"context"

	core "flightweather/pkg/batch/job/core"
)

// JobLauncher は Job を JobParameters とともに起動するためのインターフェースです。
type JobLauncher interface {
	// Launch は指定された Job を JobParameters とともに起動し、終了した JobExecution を返します。
	// ジョブが失敗した場合も JobExecution は返され、エラーは実行時のエラーを表します。
	Launch(ctx context.Context, jobName string, params core.JobParameters) (*core.JobExecution, error)

	// Stop は実行中の JobExecution をキャンセルします。実行中でなければ false を返します。
	Stop(executionID string) bool
}
