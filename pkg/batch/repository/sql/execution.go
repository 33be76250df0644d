package sql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"flightweather/pkg/batch/database"
	core "flightweather/pkg/batch/job/core"
	"flightweather/pkg/batch/repository/job"
	exception "flightweather/pkg/batch/util/exception"
	logger "flightweather/pkg/batch/util/logger"
	serialization "flightweather/pkg/batch/util/serialization"
)

const executionColumns = "id, job_instance_id, job_name, job_parameters, start_time, end_time, status, exit_status, exit_code, failures, execution_context, current_step_name, version, create_time, last_updated"

// SQLJobExecutionRepository は JobExecution インターフェースの SQL データベース実装です。
type SQLJobExecutionRepository struct {
	dbConnection database.DBConnection
	// FindJobExecutionByID で StepExecution を一緒にロードするために使用します。
	stepExecutionRepo job.StepExecution
}

// NewSQLJobExecutionRepository は新しい SQLJobExecutionRepository のインスタンスを作成します。
func NewSQLJobExecutionRepository(dbConn database.DBConnection, stepRepo job.StepExecution) *SQLJobExecutionRepository {
	return &SQLJobExecutionRepository{dbConnection: dbConn, stepExecutionRepo: stepRepo}
}

// SaveJobExecution は新しい JobExecution をデータベースに保存します。
func (r *SQLJobExecutionRepository) SaveJobExecution(ctx context.Context, jobExecution *core.JobExecution) error {
	paramsJSON, failuresJSON, contextJSON, err := encodeJobState(jobExecution)
	if err != nil {
		return err
	}

	query := r.dbConnection.Rebind(`INSERT INTO job_executions (` + executionColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err = r.dbConnection.ExecContext(ctx, query,
		jobExecution.ID,
		jobExecution.JobInstanceID,
		jobExecution.JobName,
		paramsJSON,
		nullTime(jobExecution.StartTime),
		nullTime(jobExecution.EndTime),
		string(jobExecution.Status),
		string(jobExecution.ExitStatus),
		jobExecution.ExitCode,
		failuresJSON,
		contextJSON,
		jobExecution.CurrentStepName,
		jobExecution.Version,
		jobExecution.CreateTime,
		jobExecution.LastUpdated,
	)
	if err != nil {
		return exception.NewBatchError("job_repository", fmt.Sprintf("JobExecution (ID: %s) の保存に失敗しました", jobExecution.ID), err, false, false)
	}

	logger.Debugf("JobExecution (ID: %s, JobName: %s) を保存しました。", jobExecution.ID, jobExecution.JobName)
	return nil
}

// UpdateJobExecution は既存の JobExecution の状態をデータベースで更新します。
func (r *SQLJobExecutionRepository) UpdateJobExecution(ctx context.Context, jobExecution *core.JobExecution) error {
	_, failuresJSON, contextJSON, err := encodeJobState(jobExecution)
	if err != nil {
		return err
	}

	jobExecution.LastUpdated = time.Now()
	query := r.dbConnection.Rebind(`UPDATE job_executions
    SET start_time = ?, end_time = ?, status = ?, exit_status = ?, exit_code = ?, failures = ?, execution_context = ?, current_step_name = ?, last_updated = ?, version = version + 1
    WHERE id = ?`)
	res, err := r.dbConnection.ExecContext(ctx, query,
		nullTime(jobExecution.StartTime),
		nullTime(jobExecution.EndTime),
		string(jobExecution.Status),
		string(jobExecution.ExitStatus),
		jobExecution.ExitCode,
		failuresJSON,
		contextJSON,
		jobExecution.CurrentStepName,
		jobExecution.LastUpdated,
		jobExecution.ID,
	)
	if err != nil {
		return exception.NewBatchError("job_repository", fmt.Sprintf("JobExecution (ID: %s) の更新に失敗しました", jobExecution.ID), err, false, false)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return exception.NewBatchErrorf("job_repository", "JobExecution (ID: %s) の更新対象が見つかりませんでした", jobExecution.ID)
	}
	jobExecution.Version++

	logger.Debugf("JobExecution (ID: %s) を更新しました。Status: %s", jobExecution.ID, jobExecution.Status)
	return nil
}

// FindJobExecutionByID は指定された ID の JobExecution を StepExecution とともに取得します。
func (r *SQLJobExecutionRepository) FindJobExecutionByID(ctx context.Context, executionID string) (*core.JobExecution, error) {
	query := r.dbConnection.Rebind(`SELECT ` + executionColumns + ` FROM job_executions WHERE id = ?`)
	rows, err := r.dbConnection.QueryContext(ctx, query, executionID)
	if err != nil {
		return nil, exception.NewBatchError("job_repository", fmt.Sprintf("JobExecution (ID: %s) の取得に失敗しました", executionID), err, false, false)
	}
	executions, err := scanJobExecutions(rows)
	if err != nil {
		return nil, err
	}
	if len(executions) == 0 {
		return nil, exception.NewBatchErrorf("job_repository", "JobExecution (ID: %s) が見つかりませんでした", executionID)
	}
	jobExecution := executions[0]
	if err := r.loadSteps(ctx, jobExecution); err != nil {
		return nil, err
	}
	return jobExecution, nil
}

// FindLatestJobExecution は指定された JobInstance の最新の JobExecution を取得します。
func (r *SQLJobExecutionRepository) FindLatestJobExecution(ctx context.Context, jobInstanceID string) (*core.JobExecution, error) {
	query := r.dbConnection.Rebind(`SELECT ` + executionColumns + ` FROM job_executions WHERE job_instance_id = ? ORDER BY create_time DESC`)
	rows, err := r.dbConnection.QueryContext(ctx, query, jobInstanceID)
	if err != nil {
		return nil, exception.NewBatchError("job_repository", fmt.Sprintf("JobInstance (ID: %s) の最新 JobExecution の取得に失敗しました", jobInstanceID), err, false, false)
	}
	executions, err := scanJobExecutions(rows)
	if err != nil {
		return nil, err
	}
	if len(executions) == 0 {
		return nil, nil
	}
	if err := r.loadSteps(ctx, executions[0]); err != nil {
		return nil, err
	}
	return executions[0], nil
}

// FindJobExecutions は指定されたジョブ名の JobExecution を新しい順に返します。
func (r *SQLJobExecutionRepository) FindJobExecutions(ctx context.Context, jobName string, limit int) ([]*core.JobExecution, error) {
	query := r.dbConnection.Rebind(`SELECT ` + executionColumns + ` FROM job_executions WHERE job_name = ? ORDER BY create_time DESC`)
	rows, err := r.dbConnection.QueryContext(ctx, query, jobName)
	if err != nil {
		return nil, exception.NewBatchError("job_repository", fmt.Sprintf("ジョブ '%s' の JobExecution 一覧の取得に失敗しました", jobName), err, false, false)
	}
	executions, err := scanJobExecutions(rows)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(executions) > limit {
		executions = executions[:limit]
	}
	return executions, nil
}

func (r *SQLJobExecutionRepository) loadSteps(ctx context.Context, jobExecution *core.JobExecution) error {
	if r.stepExecutionRepo == nil {
		return nil
	}
	steps, err := r.stepExecutionRepo.FindStepExecutionsByJobExecutionID(ctx, jobExecution.ID)
	if err != nil {
		return err
	}
	for _, se := range steps {
		se.JobExecution = jobExecution
	}
	jobExecution.StepExecutions = steps
	return nil
}

func scanJobExecutions(rows *sql.Rows) ([]*core.JobExecution, error) {
	defer rows.Close()

	var executions []*core.JobExecution
	for rows.Next() {
		je := &core.JobExecution{}
		var (
			params, failures, ecJSON sql.NullString
			start, end               sql.NullTime
			status, exit             string
			currentStep              sql.NullString
		)
		if err := rows.Scan(&je.ID, &je.JobInstanceID, &je.JobName, &params, &start, &end, &status, &exit,
			&je.ExitCode, &failures, &ecJSON, &currentStep, &je.Version, &je.CreateTime, &je.LastUpdated); err != nil {
			return nil, exception.NewBatchError("job_repository", "JobExecution のスキャンに失敗しました", err, false, false)
		}
		je.StartTime = start.Time
		je.EndTime = end.Time
		je.Status = core.JobStatus(status)
		je.ExitStatus = core.ExitStatus(exit)
		je.CurrentStepName = currentStep.String

		var err error
		if je.Parameters, err = serialization.UnmarshalJobParameters([]byte(params.String)); err != nil {
			return nil, err
		}
		if je.Failures, err = serialization.UnmarshalFailures([]byte(failures.String)); err != nil {
			return nil, err
		}
		if je.ExecutionContext, err = serialization.UnmarshalExecutionContext([]byte(ecJSON.String)); err != nil {
			return nil, err
		}
		executions = append(executions, je)
	}
	if err := rows.Err(); err != nil {
		return nil, exception.NewBatchError("job_repository", "JobExecution 取得後の行処理中にエラーが発生しました", err, false, false)
	}
	return executions, nil
}

func encodeJobState(je *core.JobExecution) (string, string, string, error) {
	paramsJSON, err := serialization.MarshalJobParameters(je.Parameters)
	if err != nil {
		return "", "", "", err
	}
	failuresJSON, err := serialization.MarshalFailures(je.Failures)
	if err != nil {
		return "", "", "", err
	}
	contextJSON, err := serialization.MarshalExecutionContext(je.ExecutionContext)
	if err != nil {
		return "", "", "", err
	}
	return string(paramsJSON), string(failuresJSON), string(contextJSON), nil
}

var _ job.JobExecution = (*SQLJobExecutionRepository)(nil)
