// Package station は観測所ごとの気象観測系列の読み込みと、空港コードから観測所への対応付けを扱います。
package station

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"flightweather/flightweather/domain/entity"
	exception "flightweather/pkg/batch/util/exception"
	logger "flightweather/pkg/batch/util/logger"
	"flightweather/pkg/batch/util/table"
	"flightweather/pkg/batch/util/timeutil"
)

// Series は 1 観測所の観測系列です。Observations は時刻の昇順に並んでいます。
type Series struct {
	StationID    string
	Observations []entity.Observation
}

// Index は 1 年分の観測所 ID から観測系列への対応です。
// 構築後は変更されないため、複数のワーカーから参照で共有できます。
type Index struct {
	year   int
	series map[string]*Series
	rows   int
}

// NewIndex は観測の集合から Index を作成します。
// 各系列は時刻で安定ソートされるため、同じ時刻の観測は元の順序を保ちます。
func NewIndex(year int, observations map[string][]entity.Observation) *Index {
	ix := &Index{year: year, series: make(map[string]*Series, len(observations))}
	for id, obs := range observations {
		sorted := make([]entity.Observation, len(obs))
		copy(sorted, obs)
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].Time.Before(sorted[j].Time)
		})
		ix.series[id] = &Series{StationID: id, Observations: sorted}
		ix.rows += len(sorted)
	}
	return ix
}

// Year は対象の年を返します。
func (ix *Index) Year() int { return ix.year }

// Len は観測所の数を返します。
func (ix *Index) Len() int { return len(ix.series) }

// Rows は全観測所の観測数の合計を返します。
func (ix *Index) Rows() int { return ix.rows }

// Series は観測所の系列を返します。
func (ix *Index) Series(stationID string) (*Series, bool) {
	s, ok := ix.series[stationID]
	return s, ok
}

// StationIDs は観測所 ID を昇順で返します。
func (ix *Index) StationIDs() []string {
	ids := make([]string, 0, len(ix.series))
	for id := range ix.series {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// LoadIndex は dir 以下の <観測所ID>_<year>.csv を読み込み、Index を作成します。
//
// 空のファイル、読み込めないファイル、DATE 列の無いファイルはスキップします。
// タイムスタンプを解析できない行は捨てます。タイムゾーンを持たない時刻は loc で解釈します。
func LoadIndex(ctx context.Context, dir string, year int, loc *time.Location) (*Index, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, exception.NewBatchErrorf("station", "観測データのディレクトリ '%s' を読めません", dir, err)
	}

	suffix := "_" + strconv.Itoa(year) + ".csv"
	observations := make(map[string][]entity.Observation)
	skipped := 0
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if e.IsDir() || !strings.HasSuffix(e.Name(), suffix) {
			continue
		}
		stationID := strings.TrimSuffix(e.Name(), suffix)
		if stationID == "" {
			continue
		}

		obs, err := loadStationFile(filepath.Join(dir, e.Name()), loc)
		if err != nil {
			logger.Warnf("観測ファイル '%s' をスキップします: %v", e.Name(), err)
			skipped++
			continue
		}
		observations[stationID] = obs
	}

	ix := NewIndex(year, observations)
	logger.Infof("%d 年の観測データを読み込みました。観測所: %d, 観測: %d, スキップ: %d", year, ix.Len(), ix.Rows(), skipped)
	return ix, nil
}

func loadStationFile(path string, loc *time.Location) ([]entity.Observation, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() == 0 {
		return nil, fmt.Errorf("空のファイルです")
	}

	df, err := table.ReadCSVFile(path, table.Latin1)
	if err != nil {
		return nil, err
	}
	if err := table.RequireColumns(df, "station", path, entity.ColumnObservationTime); err != nil {
		return nil, err
	}

	times := table.Column(df, entity.ColumnObservationTime)
	fields := make([][]string, len(entity.WeatherFields))
	for i, f := range entity.WeatherFields {
		fields[i] = table.Column(df, f)
	}

	obs := make([]entity.Observation, 0, len(times))
	for row, raw := range times {
		ts := timeutil.Parse(raw, loc)
		if ts == nil {
			continue
		}
		values := make([]string, len(fields))
		for i, col := range fields {
			if col != nil {
				values[i] = strings.TrimSpace(col[row])
			}
		}
		obs = append(obs, entity.Observation{Time: *ts, Values: values})
	}
	return obs, nil
}
