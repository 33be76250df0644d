package sql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"flightweather/pkg/batch/database"
	core "flightweather/pkg/batch/job/core"
	"flightweather/pkg/batch/repository/job"
	exception "flightweather/pkg/batch/util/exception"
	logger "flightweather/pkg/batch/util/logger"
	serialization "flightweather/pkg/batch/util/serialization"
)

const instanceColumns = "id, job_name, job_parameters, parameters_hash, create_time, version"

// SQLJobInstanceRepository は JobInstance インターフェースの SQL データベース実装です。
type SQLJobInstanceRepository struct {
	dbConnection database.DBConnection
}

// NewSQLJobInstanceRepository は新しい SQLJobInstanceRepository のインスタンスを作成します。
func NewSQLJobInstanceRepository(dbConn database.DBConnection) *SQLJobInstanceRepository {
	return &SQLJobInstanceRepository{dbConnection: dbConn}
}

// SaveJobInstance は新しい JobInstance をデータベースに保存します。
func (r *SQLJobInstanceRepository) SaveJobInstance(ctx context.Context, jobInstance *core.JobInstance) error {
	paramsJSON, err := serialization.MarshalJobParameters(jobInstance.Parameters)
	if err != nil {
		return exception.NewBatchError("job_repository", "JobInstance JobParameters のシリアライズに失敗しました", err, false, false)
	}

	query := r.dbConnection.Rebind(`INSERT INTO job_instances (` + instanceColumns + `) VALUES (?, ?, ?, ?, ?, ?)`)
	_, err = r.dbConnection.ExecContext(ctx, query,
		jobInstance.ID,
		jobInstance.JobName,
		string(paramsJSON),
		jobInstance.ParametersHash,
		jobInstance.CreateTime,
		jobInstance.Version,
	)
	if err != nil {
		return exception.NewBatchError("job_repository", fmt.Sprintf("JobInstance (ID: %s) の保存に失敗しました", jobInstance.ID), err, false, false)
	}

	logger.Debugf("JobInstance (ID: %s, JobName: %s) を保存しました。", jobInstance.ID, jobInstance.JobName)
	return nil
}

// FindJobInstanceByJobNameAndParameters はジョブ名とパラメータのハッシュで JobInstance を検索します。
func (r *SQLJobInstanceRepository) FindJobInstanceByJobNameAndParameters(ctx context.Context, jobName string, params core.JobParameters) (*core.JobInstance, error) {
	paramsHash, err := params.Hash()
	if err != nil {
		return nil, exception.NewBatchError("job_repository", "検索用 JobParameters のハッシュ計算に失敗しました", err, false, false)
	}

	query := r.dbConnection.Rebind(`SELECT ` + instanceColumns + ` FROM job_instances WHERE job_name = ? AND parameters_hash = ?`)
	instance, err := scanJobInstance(r.dbConnection.QueryRowContext(ctx, query, jobName, paramsHash))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, exception.NewBatchError("job_repository", fmt.Sprintf("JobInstance (JobName: %s) の検索に失敗しました", jobName), err, false, false)
	}
	return instance, nil
}

// FindJobInstanceByID は指定された ID の JobInstance をデータベースから取得します。
func (r *SQLJobInstanceRepository) FindJobInstanceByID(ctx context.Context, instanceID string) (*core.JobInstance, error) {
	query := r.dbConnection.Rebind(`SELECT ` + instanceColumns + ` FROM job_instances WHERE id = ?`)
	instance, err := scanJobInstance(r.dbConnection.QueryRowContext(ctx, query, instanceID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, exception.NewBatchErrorf("job_repository", "JobInstance (ID: %s) が見つかりませんでした", instanceID)
		}
		return nil, exception.NewBatchError("job_repository", fmt.Sprintf("JobInstance (ID: %s) の取得に失敗しました", instanceID), err, false, false)
	}
	return instance, nil
}

// GetJobNames はリポジトリに存在する全てのジョブ名を返します。
func (r *SQLJobInstanceRepository) GetJobNames(ctx context.Context) ([]string, error) {
	rows, err := r.dbConnection.QueryContext(ctx, `SELECT DISTINCT job_name FROM job_instances ORDER BY job_name`)
	if err != nil {
		return nil, exception.NewBatchError("job_repository", "ジョブ名の取得に失敗しました", err, false, false)
	}
	defer rows.Close()

	var jobNames []string
	for rows.Next() {
		var jobName string
		if err := rows.Scan(&jobName); err != nil {
			return nil, exception.NewBatchError("job_repository", "ジョブ名のスキャンに失敗しました", err, false, false)
		}
		jobNames = append(jobNames, jobName)
	}
	if err := rows.Err(); err != nil {
		return jobNames, exception.NewBatchError("job_repository", "ジョブ名取得後の行処理中にエラーが発生しました", err, false, false)
	}
	return jobNames, nil
}

func scanJobInstance(row *sql.Row) (*core.JobInstance, error) {
	instance := &core.JobInstance{}
	var paramsJSON sql.NullString
	if err := row.Scan(
		&instance.ID,
		&instance.JobName,
		&paramsJSON,
		&instance.ParametersHash,
		&instance.CreateTime,
		&instance.Version,
	); err != nil {
		return nil, err
	}

	params, err := serialization.UnmarshalJobParameters([]byte(paramsJSON.String))
	if err != nil {
		logger.Errorf("JobInstance (ID: %s) の JobParameters のデコードに失敗しました: %v", instance.ID, err)
		params = core.NewJobParameters()
	}
	instance.Parameters = params
	return instance, nil
}

var _ job.JobInstance = (*SQLJobInstanceRepository)(nil)
