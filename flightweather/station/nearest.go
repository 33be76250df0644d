package station

import (
	"math"
	"strconv"
	"strings"

	exception "flightweather/pkg/batch/util/exception"
	logger "flightweather/pkg/batch/util/logger"
	"flightweather/pkg/batch/util/table"
)

// Location は地点コードと緯度経度です。
type Location struct {
	Code string
	Lat  float64
	Lon  float64
}

// BuildNearestMap は各空港に大圏距離で最も近い観測所を対応付けます。
// 距離が同じ場合は stations で先に現れた観測所を選びます。
func BuildNearestMap(airports, stations []Location) *AirportStationMap {
	mappings := make([]Mapping, 0, len(airports))
	if len(stations) == 0 {
		return NewAirportStationMap(nil)
	}
	for _, apt := range airports {
		best := ""
		bestDist := math.Inf(1)
		for _, st := range stations {
			d := haversineKm(apt.Lat, apt.Lon, st.Lat, st.Lon)
			if d < bestDist {
				bestDist = d
				best = st.Code
			}
		}
		mappings = append(mappings, Mapping{AirportCode: apt.Code, StationID: best})
	}
	return NewAirportStationMap(mappings)
}

// haversineKm は 2 点間の距離を km で返します。
func haversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadiusKm = 6371.0
	dLat := (lat2 - lat1) * math.Pi / 180.0
	dLon := (lon2 - lon1) * math.Pi / 180.0
	lat1r := lat1 * math.Pi / 180.0
	lat2r := lat2 * math.Pi / 180.0

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1r)*math.Cos(lat2r)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

// LoadAirportLocations は空港の参照テーブル (local_code, latitude_deg, longitude_deg) を読み込みます。
func LoadAirportLocations(path string) ([]Location, error) {
	return loadLocations(path, "local_code", "latitude_deg", []string{"longitude_deg"})
}

// LoadStationLocations は観測所の参照テーブル (station, latitude, longtitude) を読み込みます。
// 経度の列名は longitude も受け付けます。
func LoadStationLocations(path string) ([]Location, error) {
	return loadLocations(path, "station", "latitude", []string{"longtitude", "longitude"})
}

// loadLocations は座標を解析できない行とコードが空の行を捨てます。
func loadLocations(path, codeCol, latCol string, lonCols []string) ([]Location, error) {
	df, err := table.ReadCSVFile(path, table.UTF8)
	if err != nil {
		return nil, exception.NewBatchErrorf("station", "参照テーブル '%s' を読めません", path, err)
	}
	lonCol := lonCols[0]
	for _, c := range lonCols {
		if table.HasColumn(df, c) {
			lonCol = c
			break
		}
	}
	if err := table.RequireColumns(df, "station", path, codeCol, latCol, lonCol); err != nil {
		return nil, err
	}

	codes := table.Column(df, codeCol)
	lats := table.Column(df, latCol)
	lons := table.Column(df, lonCol)
	locs := make([]Location, 0, len(codes))
	dropped := 0
	for i := range codes {
		code := strings.TrimSpace(codes[i])
		lat, latErr := strconv.ParseFloat(strings.TrimSpace(lats[i]), 64)
		lon, lonErr := strconv.ParseFloat(strings.TrimSpace(lons[i]), 64)
		if code == "" || latErr != nil || lonErr != nil || math.IsNaN(lat) || math.IsNaN(lon) {
			dropped++
			continue
		}
		locs = append(locs, Location{Code: code, Lat: lat, Lon: lon})
	}
	if dropped > 0 {
		logger.Debugf("参照テーブル '%s': 座標の無い %d 行を捨てました。", path, dropped)
	}
	return locs, nil
}
