package serialization

import (
	"encoding/json"
	"errors"

	core "flightweather/pkg/batch/job/core"
	"flightweather/pkg/batch/util/exception"
)

const module = "serialization"

// MarshalExecutionContext は ExecutionContext を JSON バイトスライスにシリアライズします。
func MarshalExecutionContext(ec core.ExecutionContext) ([]byte, error) {
	if ec == nil {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(ec)
	if err != nil {
		return nil, exception.NewBatchError(module, "ExecutionContext のシリアライズに失敗しました", err, false, false)
	}
	return data, nil
}

// UnmarshalExecutionContext は JSON バイトスライスから ExecutionContext を復元します。
// 空データや "null" の場合は空の ExecutionContext を返します。
func UnmarshalExecutionContext(data []byte) (core.ExecutionContext, error) {
	ec := core.NewExecutionContext()
	if len(data) == 0 || string(data) == "null" {
		return ec, nil
	}
	if err := json.Unmarshal(data, &ec); err != nil {
		return nil, exception.NewBatchError(module, "ExecutionContext のデシリアライズに失敗しました", err, false, false)
	}
	return ec, nil
}

// MarshalJobParameters は JobParameters を JSON バイトスライスにシリアライズします。
func MarshalJobParameters(params core.JobParameters) ([]byte, error) {
	if params.Params == nil {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(params.Params)
	if err != nil {
		return nil, exception.NewBatchError(module, "JobParameters のシリアライズに失敗しました", err, false, false)
	}
	return data, nil
}

// UnmarshalJobParameters は JSON バイトスライスから JobParameters を復元します。
func UnmarshalJobParameters(data []byte) (core.JobParameters, error) {
	params := core.NewJobParameters()
	if len(data) == 0 || string(data) == "null" {
		return params, nil
	}
	if err := json.Unmarshal(data, &params.Params); err != nil {
		return core.JobParameters{}, exception.NewBatchError(module, "JobParameters のデシリアライズに失敗しました", err, false, false)
	}
	return params, nil
}

// MarshalFailures は []error を JSON バイトスライスにシリアライズします。
// error は直接 JSON 化できないため、エラーメッセージの文字列スライスに変換します。
func MarshalFailures(failures []error) ([]byte, error) {
	msgs := make([]string, 0, len(failures))
	for _, err := range failures {
		msgs = append(msgs, err.Error())
	}
	data, err := json.Marshal(msgs)
	if err != nil {
		return nil, exception.NewBatchError(module, "Failures のシリアライズに失敗しました", err, false, false)
	}
	return data, nil
}

// UnmarshalFailures は JSON バイトスライスを []error にデシリアライズします。
func UnmarshalFailures(data []byte) ([]error, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var msgs []string
	if err := json.Unmarshal(data, &msgs); err != nil {
		return nil, exception.NewBatchError(module, "Failures のデシリアライズに失敗しました", err, false, false)
	}
	failures := make([]error, len(msgs))
	for i, msg := range msgs {
		failures[i] = errors.New(msg)
	}
	return failures, nil
}
