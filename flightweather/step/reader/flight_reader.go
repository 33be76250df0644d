// Package reader は年別のフライトテーブルを読み込みます。
package reader

import (
	"context"
	"time"

	"flightweather/flightweather/domain/entity"
	exception "flightweather/pkg/batch/util/exception"
	logger "flightweather/pkg/batch/util/logger"
	"flightweather/pkg/batch/util/table"
	"flightweather/pkg/batch/util/timeutil"
)

// FlightReader はフライトテーブルを FlightLeg のスライスとして読み込みます。
type FlightReader struct {
	loc *time.Location
}

// NewFlightReader は新しい FlightReader を作成します。タイムゾーンを持たない時刻は loc で解釈します。
func NewFlightReader(loc *time.Location) *FlightReader {
	if loc == nil {
		loc = time.UTC
	}
	return &FlightReader{loc: loc}
}

// Read は path のフライトテーブルを読み込みます。
//
// 出力に必要な列が無い場合は ErrMissingColumn をラップしたエラーを返します。
// CRSDepTime と CRSDepTime_Dest は正規化され、解析できない値は nil (出力では空) になります。
func (r *FlightReader) Read(ctx context.Context, path string) ([]entity.FlightLeg, error) {
	df, err := table.ReadCSVFile(path, table.UTF8)
	if err != nil {
		return nil, exception.NewBatchErrorf("flight_reader", "フライトテーブル '%s' を読めません", path, err)
	}
	if err := table.RequireColumns(df, "flight_reader", path, entity.RequiredFlightColumns...); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cols := make([][]string, len(entity.FlightColumns))
	for i, name := range entity.FlightColumns {
		cols[i] = table.Column(df, name)
	}
	pos := func(name string) int {
		for i, c := range entity.FlightColumns {
			if c == name {
				return i
			}
		}
		return -1
	}
	originCol, destCol := pos(entity.ColumnOrigin), pos(entity.ColumnDest)
	depCol, arrCol := pos(entity.ColumnCRSDepTime), pos(entity.ColumnCRSDepTimeDest)
	cancelledCol := pos(entity.ColumnCancelled)

	n := df.Nrow()
	legs := make([]entity.FlightLeg, n)
	badDep, badArr := 0, 0
	for row := 0; row < n; row++ {
		values := make([]string, len(cols))
		for i, c := range cols {
			values[i] = c[row]
		}
		dep := timeutil.Parse(values[depCol], r.loc)
		arr := timeutil.Parse(values[arrCol], r.loc)
		if dep == nil {
			badDep++
		}
		if arr == nil {
			badArr++
		}
		values[depCol] = timeutil.Format(dep)
		values[arrCol] = timeutil.Format(arr)

		legs[row] = entity.FlightLeg{
			Row:           row,
			Origin:        values[originCol],
			Dest:          values[destCol],
			DepartureTime: dep,
			ArrivalTime:   arr,
			Cancelled:     values[cancelledCol],
			Columns:       values,
		}
	}

	logger.Infof("フライトテーブル '%s' を読み込みました。行: %d, 解析できない %s: %d, %s: %d",
		path, n, entity.ColumnCRSDepTime, badDep, entity.ColumnCRSDepTimeDest, badArr)
	return legs, nil
}
