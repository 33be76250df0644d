package core

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobStatus はジョブ/ステップ実行の状態を表します。
type JobStatus string

const (
	BatchStatusStarting  JobStatus = "STARTING"
	BatchStatusStarted   JobStatus = "STARTED"
	BatchStatusCompleted JobStatus = "COMPLETED"
	BatchStatusFailed    JobStatus = "FAILED"
	BatchStatusStopped   JobStatus = "STOPPED"
	BatchStatusAbandoned JobStatus = "ABANDONED"
	BatchStatusUnknown   JobStatus = "UNKNOWN"
)

// IsFinished は JobStatus が終了状態かどうかを判定します。
func (s JobStatus) IsFinished() bool {
	switch s {
	case BatchStatusCompleted, BatchStatusFailed, BatchStatusStopped, BatchStatusAbandoned:
		return true
	default:
		return false
	}
}

// ToExitStatus は JobStatus を対応する ExitStatus に変換します。
func (s JobStatus) ToExitStatus() ExitStatus {
	switch s {
	case BatchStatusCompleted:
		return ExitStatusCompleted
	case BatchStatusFailed:
		return ExitStatusFailed
	case BatchStatusStopped:
		return ExitStatusStopped
	case BatchStatusAbandoned:
		return ExitStatusAbandoned
	default:
		return ExitStatusUnknown
	}
}

// ExitStatus はジョブ/ステップの終了時の詳細なステータスを表します。
type ExitStatus string

const (
	ExitStatusUnknown   ExitStatus = "UNKNOWN"
	ExitStatusCompleted ExitStatus = "COMPLETED"
	ExitStatusFailed    ExitStatus = "FAILED"
	ExitStatusStopped   ExitStatus = "STOPPED"
	ExitStatusAbandoned ExitStatus = "ABANDONED"
	ExitStatusNoOp      ExitStatus = "NO_OP" // 条件を満たさずスキップされたステップ
)

// ExecutionContext はジョブやステップの状態を共有するためのキー-値ストアです。
// JobRepository に JSON として保存されるため、値は JSON 化できるものに限ります。
type ExecutionContext map[string]interface{}

// NewExecutionContext は空の ExecutionContext を作成します。
func NewExecutionContext() ExecutionContext {
	return make(ExecutionContext)
}

// Put は値を設定します。
func (ec ExecutionContext) Put(key string, value interface{}) {
	ec[key] = value
}

// Get は値を取得します。
func (ec ExecutionContext) Get(key string) (interface{}, bool) {
	v, ok := ec[key]
	return v, ok
}

// GetInt は数値の値を int として取得します。
// JSON から復元した値は float64 になっているため、両方を扱います。
func (ec ExecutionContext) GetInt(key string) (int, bool) {
	switch v := ec[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

// GetString は文字列の値を取得します。
func (ec ExecutionContext) GetString(key string) (string, bool) {
	v, ok := ec[key].(string)
	return v, ok
}

// Copy は浅いコピーを返します。
func (ec ExecutionContext) Copy() ExecutionContext {
	c := make(ExecutionContext, len(ec))
	for k, v := range ec {
		c[k] = v
	}
	return c
}

// JobParameters はジョブ実行時のパラメータを保持する構造体です。
type JobParameters struct {
	Params map[string]interface{}
}

// NewJobParameters は空の JobParameters を作成します。
func NewJobParameters() JobParameters {
	return JobParameters{Params: make(map[string]interface{})}
}

// Put はパラメータを設定します。
func (p JobParameters) Put(key string, value interface{}) {
	p.Params[key] = value
}

// GetInt は数値パラメータを int として取得します。
func (p JobParameters) GetInt(key string) (int, bool) {
	return ExecutionContext(p.Params).GetInt(key)
}

// Hash は JobInstance を識別するためのパラメータのハッシュ値を返します。
// encoding/json はマップのキーをソートして出力するため、同じ内容なら同じ値になります。
func (p JobParameters) Hash() (string, error) {
	params := p.Params
	if params == nil {
		params = map[string]interface{}{}
	}
	data, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("JobParameters のハッシュ計算に失敗しました: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// JobInstance はジョブの論理的な実行単位です。flightWeatherJob では (ジョブ名, 年) ごとに 1 つ作成されます。
type JobInstance struct {
	ID             string
	JobName        string
	Parameters     JobParameters
	ParametersHash string
	CreateTime     time.Time
	Version        int
}

// NewJobInstance は新しい JobInstance を作成します。
func NewJobInstance(jobName string, params JobParameters) (*JobInstance, error) {
	hash, err := params.Hash()
	if err != nil {
		return nil, err
	}
	return &JobInstance{
		ID:             uuid.NewString(),
		JobName:        jobName,
		Parameters:     params,
		ParametersHash: hash,
		CreateTime:     time.Now(),
	}, nil
}

// JobExecution はジョブの単一の実行を表す構造体です。
type JobExecution struct {
	ID               string
	JobInstanceID    string
	JobName          string
	Parameters       JobParameters
	StartTime        time.Time
	EndTime          time.Time
	Status           JobStatus
	ExitStatus       ExitStatus
	ExitCode         int
	Failures         []error
	Version          int
	CreateTime       time.Time
	LastUpdated      time.Time
	StepExecutions   []*StepExecution
	ExecutionContext ExecutionContext
	CurrentStepName  string
}

// NewJobExecution は新しい JobExecution を STARTING 状態で作成します。
func NewJobExecution(instanceID, jobName string, params JobParameters) *JobExecution {
	now := time.Now()
	return &JobExecution{
		ID:               uuid.NewString(),
		JobInstanceID:    instanceID,
		JobName:          jobName,
		Parameters:       params,
		Status:           BatchStatusStarting,
		ExitStatus:       ExitStatusUnknown,
		CreateTime:       now,
		LastUpdated:      now,
		ExecutionContext: NewExecutionContext(),
	}
}

// MarkAsStarted は JobExecution を STARTED 状態にします。
func (e *JobExecution) MarkAsStarted() {
	e.StartTime = time.Now()
	e.Status = BatchStatusStarted
	e.LastUpdated = e.StartTime
}

// MarkAsCompleted は JobExecution を COMPLETED 状態にします。
func (e *JobExecution) MarkAsCompleted() {
	e.finish(BatchStatusCompleted, 0)
}

// MarkAsFailed は JobExecution を FAILED 状態にし、エラーを記録します。
func (e *JobExecution) MarkAsFailed(err error) {
	if err != nil {
		e.AddFailure(err)
	}
	e.finish(BatchStatusFailed, 1)
}

// MarkAsStopped は JobExecution を STOPPED 状態にします。
func (e *JobExecution) MarkAsStopped() {
	e.finish(BatchStatusStopped, 1)
}

func (e *JobExecution) finish(status JobStatus, exitCode int) {
	e.EndTime = time.Now()
	e.Status = status
	e.ExitStatus = status.ToExitStatus()
	e.ExitCode = exitCode
	e.LastUpdated = e.EndTime
}

// AddFailure はエラーを記録します。
func (e *JobExecution) AddFailure(err error) {
	e.Failures = append(e.Failures, err)
}

// AddStepExecution は StepExecution を追加します。
func (e *JobExecution) AddStepExecution(se *StepExecution) {
	e.StepExecutions = append(e.StepExecutions, se)
	e.CurrentStepName = se.StepName
}

// StepExecution はステップの単一の実行を表す構造体です。
type StepExecution struct {
	ID               string
	StepName         string
	JobExecution     *JobExecution // 所属するジョブ実行への参照
	StartTime        time.Time
	EndTime          time.Time
	Status           JobStatus
	ExitStatus       ExitStatus
	Failures         []error
	ReadCount        int
	WriteCount       int
	FilterCount      int
	SkipReadCount    int
	ExecutionContext ExecutionContext
	LastUpdated      time.Time
	Version          int
}

// NewStepExecution は新しい StepExecution を作成し、JobExecution に追加します。
func NewStepExecution(stepName string, jobExecution *JobExecution) *StepExecution {
	se := &StepExecution{
		ID:               uuid.NewString(),
		StepName:         stepName,
		JobExecution:     jobExecution,
		Status:           BatchStatusStarting,
		ExitStatus:       ExitStatusUnknown,
		ExecutionContext: NewExecutionContext(),
		LastUpdated:      time.Now(),
	}
	if jobExecution != nil {
		jobExecution.AddStepExecution(se)
	}
	return se
}

// MarkAsStarted は StepExecution を STARTED 状態にします。
func (s *StepExecution) MarkAsStarted() {
	s.StartTime = time.Now()
	s.Status = BatchStatusStarted
	s.LastUpdated = s.StartTime
}

// MarkAsCompleted は StepExecution を COMPLETED 状態にします。
// exitStatus が空の場合は COMPLETED を設定します。
func (s *StepExecution) MarkAsCompleted(exitStatus ExitStatus) {
	if exitStatus == "" {
		exitStatus = ExitStatusCompleted
	}
	s.EndTime = time.Now()
	s.Status = BatchStatusCompleted
	s.ExitStatus = exitStatus
	s.LastUpdated = s.EndTime
}

// MarkAsFailed は StepExecution を FAILED 状態にし、エラーを記録します。
func (s *StepExecution) MarkAsFailed(err error) {
	if err != nil {
		s.Failures = append(s.Failures, err)
	}
	s.EndTime = time.Now()
	s.Status = BatchStatusFailed
	s.ExitStatus = ExitStatusFailed
	s.LastUpdated = s.EndTime
}
