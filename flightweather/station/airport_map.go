package station

import (
	"os"
	"strings"

	exception "flightweather/pkg/batch/util/exception"
	logger "flightweather/pkg/batch/util/logger"
	"flightweather/pkg/batch/util/table"
)

// 対応表のカラム名
const (
	ColumnAirportCode = "airport_local_code"
	ColumnStationID   = "station_id"
)

// Mapping は空港コードと観測所 ID の組です。
type Mapping struct {
	AirportCode string
	StationID   string
}

// AirportStationMap は空港コードから代表観測所への多対一の対応です。
type AirportStationMap struct {
	stations map[string]string
}

// NewAirportStationMap は mappings から AirportStationMap を作成します。
// 両側の値は前後の空白を除去してから比較します。同じ空港コードが複数ある場合は最初の組が優先され、
// 空港コードか観測所 ID が空の組は無視します。
func NewAirportStationMap(mappings []Mapping) *AirportStationMap {
	m := &AirportStationMap{stations: make(map[string]string, len(mappings))}
	for _, mp := range mappings {
		code := strings.TrimSpace(mp.AirportCode)
		id := strings.TrimSpace(mp.StationID)
		if code == "" || id == "" {
			continue
		}
		if _, exists := m.stations[code]; exists {
			continue
		}
		m.stations[code] = id
	}
	return m
}

// LoadAirportMap は対応表 (airport_local_code, station_id) を読み込みます。
func LoadAirportMap(path string) (*AirportStationMap, error) {
	df, err := table.ReadCSVFile(path, table.UTF8)
	if err != nil {
		return nil, exception.NewBatchErrorf("station", "空港と観測所の対応表 '%s' を読めません", path, err)
	}
	if err := table.RequireColumns(df, "station", path, ColumnAirportCode, ColumnStationID); err != nil {
		return nil, err
	}

	codes := table.Column(df, ColumnAirportCode)
	ids := table.Column(df, ColumnStationID)
	mappings := make([]Mapping, len(codes))
	for i := range codes {
		mappings[i] = Mapping{AirportCode: codes[i], StationID: ids[i]}
	}
	m := NewAirportStationMap(mappings)
	logger.Infof("空港と観測所の対応表 '%s' を読み込みました。空港: %d", path, m.Len())
	return m, nil
}

// Resolve は空港コードに対応する観測所 ID を返します。対応が無い場合は false を返します。
func (m *AirportStationMap) Resolve(airportCode string) (string, bool) {
	id, ok := m.stations[strings.TrimSpace(airportCode)]
	return id, ok
}

// Len は対応付けられた空港の数を返します。
func (m *AirportStationMap) Len() int {
	return len(m.stations)
}

// OpenAirportMap は対応表があればそれを読み込み、無ければ空港と観測所の参照テーブルから
// 最寄りの観測所による対応を作成します。どちらも使えない場合はエラーを返します。
func OpenAirportMap(mapPath, airportTable, stationTable string) (*AirportStationMap, error) {
	if mapPath != "" {
		if _, err := os.Stat(mapPath); err == nil {
			return LoadAirportMap(mapPath)
		}
		logger.Warnf("空港と観測所の対応表 '%s' が見つかりません。", mapPath)
	}
	if airportTable == "" || stationTable == "" {
		return nil, exception.NewBatchErrorf("station", "空港と観測所の対応表も参照テーブルも指定されていません", exception.ErrInvalidConfig)
	}

	airports, err := LoadAirportLocations(airportTable)
	if err != nil {
		return nil, err
	}
	stations, err := LoadStationLocations(stationTable)
	if err != nil {
		return nil, err
	}
	m := BuildNearestMap(airports, stations)
	logger.Infof("参照テーブルから最寄りの観測所を対応付けました。空港: %d, 観測所: %d", m.Len(), len(stations))
	return m, nil
}
