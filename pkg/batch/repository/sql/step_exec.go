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

const stepColumns = "id, job_execution_id, step_name, start_time, end_time, status, exit_status, read_count, write_count, filter_count, skip_read_count, failures, execution_context, last_updated, version"

// SQLStepExecutionRepository は StepExecution インターフェースの SQL データベース実装です。
type SQLStepExecutionRepository struct {
	dbConnection database.DBConnection
}

// NewSQLStepExecutionRepository は新しい SQLStepExecutionRepository のインスタンスを作成します。
func NewSQLStepExecutionRepository(dbConn database.DBConnection) *SQLStepExecutionRepository {
	return &SQLStepExecutionRepository{dbConnection: dbConn}
}

// SaveStepExecution は新しい StepExecution をデータベースに保存します。
func (r *SQLStepExecutionRepository) SaveStepExecution(ctx context.Context, stepExecution *core.StepExecution) error {
	if stepExecution.JobExecution == nil {
		return exception.NewBatchError("job_repository", "StepExecution が JobExecution に紐づいていません", nil, false, false)
	}
	failuresJSON, contextJSON, err := encodeStepState(stepExecution)
	if err != nil {
		return err
	}

	query := r.dbConnection.Rebind(`INSERT INTO step_executions (` + stepColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err = r.dbConnection.ExecContext(ctx, query,
		stepExecution.ID,
		stepExecution.JobExecution.ID,
		stepExecution.StepName,
		nullTime(stepExecution.StartTime),
		nullTime(stepExecution.EndTime),
		string(stepExecution.Status),
		string(stepExecution.ExitStatus),
		stepExecution.ReadCount,
		stepExecution.WriteCount,
		stepExecution.FilterCount,
		stepExecution.SkipReadCount,
		failuresJSON,
		contextJSON,
		stepExecution.LastUpdated,
		stepExecution.Version,
	)
	if err != nil {
		return exception.NewBatchError("job_repository", fmt.Sprintf("StepExecution (ID: %s) の保存に失敗しました", stepExecution.ID), err, false, false)
	}

	logger.Debugf("StepExecution (ID: %s, StepName: %s) を保存しました。", stepExecution.ID, stepExecution.StepName)
	return nil
}

// UpdateStepExecution は既存の StepExecution の状態をデータベースで更新します。
func (r *SQLStepExecutionRepository) UpdateStepExecution(ctx context.Context, stepExecution *core.StepExecution) error {
	failuresJSON, contextJSON, err := encodeStepState(stepExecution)
	if err != nil {
		return err
	}

	stepExecution.LastUpdated = time.Now()
	query := r.dbConnection.Rebind(`UPDATE step_executions
    SET start_time = ?, end_time = ?, status = ?, exit_status = ?, read_count = ?, write_count = ?, filter_count = ?, skip_read_count = ?, failures = ?, execution_context = ?, last_updated = ?, version = version + 1
    WHERE id = ?`)
	res, err := r.dbConnection.ExecContext(ctx, query,
		nullTime(stepExecution.StartTime),
		nullTime(stepExecution.EndTime),
		string(stepExecution.Status),
		string(stepExecution.ExitStatus),
		stepExecution.ReadCount,
		stepExecution.WriteCount,
		stepExecution.FilterCount,
		stepExecution.SkipReadCount,
		failuresJSON,
		contextJSON,
		stepExecution.LastUpdated,
		stepExecution.ID,
	)
	if err != nil {
		return exception.NewBatchError("job_repository", fmt.Sprintf("StepExecution (ID: %s) の更新に失敗しました", stepExecution.ID), err, false, false)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return exception.NewBatchErrorf("job_repository", "StepExecution (ID: %s) の更新対象が見つかりませんでした", stepExecution.ID)
	}
	stepExecution.Version++

	logger.Debugf("StepExecution (ID: %s) を更新しました。Status: %s", stepExecution.ID, stepExecution.Status)
	return nil
}

// FindStepExecutionsByJobExecutionID は JobExecution に属する StepExecution を開始順に返します。
func (r *SQLStepExecutionRepository) FindStepExecutionsByJobExecutionID(ctx context.Context, jobExecutionID string) ([]*core.StepExecution, error) {
	query := r.dbConnection.Rebind(`SELECT ` + stepColumns + ` FROM step_executions WHERE job_execution_id = ? ORDER BY start_time, last_updated`)
	rows, err := r.dbConnection.QueryContext(ctx, query, jobExecutionID)
	if err != nil {
		return nil, exception.NewBatchError("job_repository", fmt.Sprintf("JobExecution (ID: %s) の StepExecution 取得に失敗しました", jobExecutionID), err, false, false)
	}
	defer rows.Close()

	var steps []*core.StepExecution
	for rows.Next() {
		se := &core.StepExecution{}
		var (
			jobExecID        string
			start, end       sql.NullTime
			status, exit     string
			failures, ecJSON sql.NullString
		)
		if err := rows.Scan(&se.ID, &jobExecID, &se.StepName, &start, &end, &status, &exit,
			&se.ReadCount, &se.WriteCount, &se.FilterCount, &se.SkipReadCount,
			&failures, &ecJSON, &se.LastUpdated, &se.Version); err != nil {
			return nil, exception.NewBatchError("job_repository", "StepExecution のスキャンに失敗しました", err, false, false)
		}
		se.StartTime = start.Time
		se.EndTime = end.Time
		se.Status = core.JobStatus(status)
		se.ExitStatus = core.ExitStatus(exit)
		if se.Failures, err = serialization.UnmarshalFailures([]byte(failures.String)); err != nil {
			return nil, err
		}
		if se.ExecutionContext, err = serialization.UnmarshalExecutionContext([]byte(ecJSON.String)); err != nil {
			return nil, err
		}
		steps = append(steps, se)
	}
	if err := rows.Err(); err != nil {
		return nil, exception.NewBatchError("job_repository", "StepExecution 取得後の行処理中にエラーが発生しました", err, false, false)
	}
	return steps, nil
}

func encodeStepState(se *core.StepExecution) (string, string, error) {
	failuresJSON, err := serialization.MarshalFailures(se.Failures)
	if err != nil {
		return "", "", exception.NewBatchError("job_repository", "StepExecution Failures のエンコードに失敗しました", err, false, false)
	}
	contextJSON, err := serialization.MarshalExecutionContext(se.ExecutionContext)
	if err != nil {
		return "", "", exception.NewBatchError("job_repository", "StepExecution ExecutionContext のシリアライズに失敗しました", err, false, false)
	}
	return string(failuresJSON), string(contextJSON), nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

var _ job.StepExecution = (*SQLStepExecutionRepository)(nil)
