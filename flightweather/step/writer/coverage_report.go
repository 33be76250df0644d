package writer

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"flightweather/flightweather/domain/entity"
	"flightweather/flightweather/step/enricher"
	exception "flightweather/pkg/batch/util/exception"
)

const (
	summarySheet    = "Summary"
	unresolvedSheet = "UnresolvedAirports"
)

// CoverageReport は 1 年分の結合結果を Excel ブックとして書き出します。
type CoverageReport struct {
	Year     int
	Coverage enricher.Coverage
}

// Extension はファイルの拡張子を返します。
func (CoverageReport) Extension() string { return ".xlsx" }

// Write は集計シートと未解決空港のシートを持つブックを w に書き出します。
func (r CoverageReport) Write(w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return exception.NewBatchError("coverage_report", "シート名を設定できません", err, false, false)
	}
	if err := r.writeSummary(f); err != nil {
		return exception.NewBatchError("coverage_report", "集計シートの書き込みに失敗しました", err, false, false)
	}
	if _, err := f.NewSheet(unresolvedSheet); err != nil {
		return exception.NewBatchError("coverage_report", "シートを作成できません", err, false, false)
	}
	if err := r.writeUnresolved(f); err != nil {
		return exception.NewBatchError("coverage_report", "未解決空港シートの書き込みに失敗しました", err, false, false)
	}
	if err := f.Write(w); err != nil {
		return exception.NewBatchError("coverage_report", "ブックの書き出しに失敗しました", err, false, false)
	}
	return nil
}

func (r CoverageReport) writeSummary(f *excelize.File) error {
	rows := [][]interface{}{
		{"year", r.Year},
		{"rows", r.Coverage.Rows},
		{},
		{"outcome", "departure", "arrival"},
	}
	dep, arr := r.Coverage.Departure.ByOutcome(), r.Coverage.Arrival.ByOutcome()
	for _, o := range []entity.LegOutcome{
		entity.LegMatched, entity.LegUnresolvedStation, entity.LegNoTimestamp, entity.LegNoObservation,
	} {
		rows = append(rows, []interface{}{o.String(), dep[o], arr[o]})
	}
	rows = append(rows, []interface{}{"missing", r.Coverage.Departure.Missing(), r.Coverage.Arrival.Missing()})
	return setRows(f, summarySheet, rows)
}

func (r CoverageReport) writeUnresolved(f *excelize.File) error {
	rows := [][]interface{}{{"airport_code", "legs"}}
	for _, ac := range r.Coverage.TopUnresolved(-1) {
		rows = append(rows, []interface{}{ac.Code, ac.Count})
	}
	return setRows(f, unresolvedSheet, rows)
}

func setRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("%s!%s: %w", sheet, cell, err)
		}
	}
	return nil
}
