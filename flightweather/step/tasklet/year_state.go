// Package tasklet は年別ジョブの各ステップを Tasklet として実装します。
//
// 1 つのジョブ実行の Tasklet は YearState を共有し、前のステップの結果を次のステップに渡します。
// YearState はジョブ実行ごとに作成されるため、年をまたいで状態が残ることはありません。
package tasklet

import (
	"context"
	"time"

	"flightweather/flightweather/domain/entity"
	"flightweather/flightweather/station"
	"flightweather/flightweather/step/enricher"
	"flightweather/flightweather/step/writer"
	config "flightweather/pkg/batch/config"
	core "flightweather/pkg/batch/job/core"
	"flightweather/pkg/batch/step/partition"
	exception "flightweather/pkg/batch/util/exception"
)

// ExecutionContext のキー
const (
	KeyFlightRows       = "flights.rows"
	KeyStations         = "weather.stations"
	KeyObservations     = "weather.observations"
	KeyAirports         = "airports.mapped"
	KeyDepartureMatched = "enrich.departure_matched"
	KeyArrivalMatched   = "enrich.arrival_matched"
	KeyArtifactPath     = "artifact.path"
	KeyArtifactChecksum = "artifact.sha256"
	KeyObjectKey        = "artifact.object_key"
	KeyCoverageReport   = "coverage.report"
)

// Recorder は処理件数と進捗の記録先です。
type Recorder interface {
	partition.ProgressListener
	AddRows(year int, stage string, n int)
	AddLegs(leg, outcome string, n int)
}

type nopRecorder struct{}

func (nopRecorder) OnBatchCompleted(string, int, int) {}
func (nopRecorder) AddRows(int, string, int)          {}
func (nopRecorder) AddLegs(string, string, int)       {}

// YearState は 1 回のジョブ実行 (1 年分) の中間結果です。
type YearState struct {
	Config   *config.Config
	Location *time.Location
	Recorder Recorder

	Year     int
	Flights  []entity.FlightLeg
	Airports *station.AirportStationMap
	Index    *station.Index
	Records  []entity.EnrichedFlightRecord
	Coverage enricher.Coverage

	// Artifact と Report は CommitArtifactsTasklet が改名するまで一時ファイルのままです。
	Artifact *writer.StagedFile
	Report   *writer.StagedFile
}

// NewYearState は新しい YearState を作成します。rec が nil の場合は何も記録しません。
func NewYearState(cfg *config.Config, rec Recorder) (*YearState, error) {
	loc, err := cfg.System.Location()
	if err != nil {
		return nil, exception.NewBatchErrorf("tasklet", "タイムゾーン '%s' を読み込めません", cfg.System.Timezone, err)
	}
	if rec == nil {
		rec = nopRecorder{}
	}
	return &YearState{Config: cfg, Location: loc, Recorder: rec}, nil
}

// YearParam は JobParameters の year を返します。
func YearParam(params core.JobParameters) (int, error) {
	year, ok := params.GetInt("year")
	if !ok {
		return 0, exception.NewBatchErrorf("tasklet", "ジョブパラメータ 'year' がありません")
	}
	if year < 1900 || year > 2100 {
		return 0, exception.NewBatchErrorf("tasklet", "ジョブパラメータ 'year' が範囲外です: %d", year)
	}
	return year, nil
}

// noClose は Close で何もしない Tasklet の埋め込み用です。
type noClose struct{}

func (noClose) Close(ctx context.Context) error { return nil }
