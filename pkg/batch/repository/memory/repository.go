package memory

import (
	"context"
	"sort"
	"sync"

	core "flightweather/pkg/batch/job/core"
	"flightweather/pkg/batch/repository/job"
	exception "flightweather/pkg/batch/util/exception"
)

// JobRepository はプロセス内でメタデータを保持する JobRepository の実装です。
// データベースを用意しないローカル実行やテストで使用します。
// 保存時にスナップショットを取るため、呼び出し側が保持するポインタとは共有しません。
type JobRepository struct {
	mu         sync.RWMutex
	instances  map[string]*core.JobInstance
	executions map[string]*core.JobExecution
	steps      map[string]*core.StepExecution
	stepOrder  map[string][]string // JobExecution ID -> StepExecution ID (保存順)
}

// NewJobRepository は空の JobRepository を作成します。
func NewJobRepository() *JobRepository {
	return &JobRepository{
		instances:  make(map[string]*core.JobInstance),
		executions: make(map[string]*core.JobExecution),
		steps:      make(map[string]*core.StepExecution),
		stepOrder:  make(map[string][]string),
	}
}

func (r *JobRepository) SaveJobInstance(ctx context.Context, jobInstance *core.JobInstance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.instances[jobInstance.ID]; exists {
		return exception.NewBatchErrorf("job_repository", "JobInstance (ID: %s) は既に存在します", jobInstance.ID)
	}
	c := *jobInstance
	r.instances[c.ID] = &c
	return nil
}

func (r *JobRepository) FindJobInstanceByJobNameAndParameters(ctx context.Context, jobName string, params core.JobParameters) (*core.JobInstance, error) {
	hash, err := params.Hash()
	if err != nil {
		return nil, exception.NewBatchError("job_repository", "検索用 JobParameters のハッシュ計算に失敗しました", err, false, false)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, ji := range r.instances {
		if ji.JobName == jobName && ji.ParametersHash == hash {
			c := *ji
			return &c, nil
		}
	}
	return nil, nil
}

func (r *JobRepository) FindJobInstanceByID(ctx context.Context, instanceID string) (*core.JobInstance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ji, ok := r.instances[instanceID]
	if !ok {
		return nil, exception.NewBatchErrorf("job_repository", "JobInstance (ID: %s) が見つかりませんでした", instanceID)
	}
	c := *ji
	return &c, nil
}

func (r *JobRepository) GetJobNames(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]struct{})
	var names []string
	for _, ji := range r.instances {
		if _, ok := seen[ji.JobName]; !ok {
			seen[ji.JobName] = struct{}{}
			names = append(names, ji.JobName)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (r *JobRepository) SaveJobExecution(ctx context.Context, jobExecution *core.JobExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.executions[jobExecution.ID]; exists {
		return exception.NewBatchErrorf("job_repository", "JobExecution (ID: %s) は既に存在します", jobExecution.ID)
	}
	r.executions[jobExecution.ID] = snapshotJob(jobExecution)
	return nil
}

func (r *JobRepository) UpdateJobExecution(ctx context.Context, jobExecution *core.JobExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.executions[jobExecution.ID]; !exists {
		return exception.NewBatchErrorf("job_repository", "JobExecution (ID: %s) の更新対象が見つかりませんでした", jobExecution.ID)
	}
	jobExecution.Version++
	r.executions[jobExecution.ID] = snapshotJob(jobExecution)
	return nil
}

func (r *JobRepository) FindJobExecutionByID(ctx context.Context, executionID string) (*core.JobExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	je, ok := r.executions[executionID]
	if !ok {
		return nil, exception.NewBatchErrorf("job_repository", "JobExecution (ID: %s) が見つかりませんでした", executionID)
	}
	return r.withSteps(je), nil
}

func (r *JobRepository) FindLatestJobExecution(ctx context.Context, jobInstanceID string) (*core.JobExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var latest *core.JobExecution
	for _, je := range r.executions {
		if je.JobInstanceID != jobInstanceID {
			continue
		}
		if latest == nil || je.CreateTime.After(latest.CreateTime) {
			latest = je
		}
	}
	if latest == nil {
		return nil, nil
	}
	return r.withSteps(latest), nil
}

func (r *JobRepository) FindJobExecutions(ctx context.Context, jobName string, limit int) ([]*core.JobExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []*core.JobExecution
	for _, je := range r.executions {
		if je.JobName == jobName {
			result = append(result, snapshotJob(je))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreateTime.After(result[j].CreateTime) })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *JobRepository) SaveStepExecution(ctx context.Context, stepExecution *core.StepExecution) error {
	if stepExecution.JobExecution == nil {
		return exception.NewBatchError("job_repository", "StepExecution が JobExecution に紐づいていません", nil, false, false)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.steps[stepExecution.ID]; exists {
		return exception.NewBatchErrorf("job_repository", "StepExecution (ID: %s) は既に存在します", stepExecution.ID)
	}
	r.steps[stepExecution.ID] = snapshotStep(stepExecution)
	jobID := stepExecution.JobExecution.ID
	r.stepOrder[jobID] = append(r.stepOrder[jobID], stepExecution.ID)
	return nil
}

func (r *JobRepository) UpdateStepExecution(ctx context.Context, stepExecution *core.StepExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.steps[stepExecution.ID]; !exists {
		return exception.NewBatchErrorf("job_repository", "StepExecution (ID: %s) の更新対象が見つかりませんでした", stepExecution.ID)
	}
	stepExecution.Version++
	r.steps[stepExecution.ID] = snapshotStep(stepExecution)
	return nil
}

func (r *JobRepository) FindStepExecutionsByJobExecutionID(ctx context.Context, jobExecutionID string) ([]*core.StepExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stepsOf(jobExecutionID, nil), nil
}

// Close は何もしません。
func (r *JobRepository) Close() error {
	return nil
}

func (r *JobRepository) withSteps(je *core.JobExecution) *core.JobExecution {
	c := snapshotJob(je)
	c.StepExecutions = r.stepsOf(je.ID, c)
	return c
}

func (r *JobRepository) stepsOf(jobExecutionID string, owner *core.JobExecution) []*core.StepExecution {
	ids := r.stepOrder[jobExecutionID]
	steps := make([]*core.StepExecution, 0, len(ids))
	for _, id := range ids {
		se := snapshotStep(r.steps[id])
		se.JobExecution = owner
		steps = append(steps, se)
	}
	return steps
}

// snapshotJob は StepExecution を含まない JobExecution のコピーを返します。
func snapshotJob(je *core.JobExecution) *core.JobExecution {
	c := *je
	c.StepExecutions = nil
	c.ExecutionContext = je.ExecutionContext.Copy()
	c.Failures = append([]error(nil), je.Failures...)
	return &c
}

func snapshotStep(se *core.StepExecution) *core.StepExecution {
	c := *se
	c.JobExecution = nil
	c.ExecutionContext = se.ExecutionContext.Copy()
	c.Failures = append([]error(nil), se.Failures...)
	return &c
}

var _ job.JobRepository = (*JobRepository)(nil)
