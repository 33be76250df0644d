package entity

import "time"

// WeatherFields は出力に含める観測項目です。順序は出力カラムの順序と一致します。
var WeatherFields = []string{
	"REPORT_TYPE",
	"SOURCE",
	"HourlyDewPointTemperature",
	"HourlyDryBulbTemperature",
	"HourlyPrecipitation",
	"HourlyPresentWeatherType",
	"HourlyPressureChange",
	"HourlyPressureTendency",
	"HourlyRelativeHumidity",
	"HourlySeaLevelPressure",
	"HourlySkyConditions",
	"HourlyStationPressure",
	"HourlyVisibility",
	"HourlyWetBulbTemperature",
	"HourlyWindDirection",
	"HourlyWindGustSpeed",
	"HourlyWindSpeed",
}

// フライトテーブルのカラム名
const (
	ColumnOrigin          = "Origin"
	ColumnDest            = "Dest"
	ColumnCRSDepTime      = "CRSDepTime"
	ColumnCRSDepTimeDest  = "CRSDepTime_Dest"
	ColumnCancelled       = "Cancelled"
	ColumnObservationTime = "DATE" // 観測ファイルのタイムスタンプ列

	DeparturePrefix = "Departure_"
	ArrivalPrefix   = "Arrival_"
)

// FlightColumns は出力に含めるフライト側のカラムです。
var FlightColumns = []string{
	"DayOfWeek",
	ColumnOrigin,
	ColumnDest,
	"DepTime",
	"CRSArrTime",
	"ArrTime",
	ColumnCRSDepTime,
	ColumnCRSDepTimeDest,
	ColumnCancelled,
	"Marketing_Airline_Network",
}

// RequiredFlightColumns は読み込み時に存在しなければならないカラムです。
// FlightColumns はすべて出力に必要なため必須として扱います。
var RequiredFlightColumns = FlightColumns

// OutputColumns は成果物のカラムを出力順に返します。
func OutputColumns() []string {
	cols := make([]string, 0, len(FlightColumns)+2*len(WeatherFields))
	cols = append(cols, FlightColumns...)
	for _, f := range WeatherFields {
		cols = append(cols, DeparturePrefix+f)
	}
	for _, f := range WeatherFields {
		cols = append(cols, ArrivalPrefix+f)
	}
	return cols
}

// Observation は観測所の 1 時点の観測です。
// Values は WeatherFields と同じ順序で、空文字列は欠損を表します。
type Observation struct {
	Time   time.Time
	Values []string
}

// Value は i 番目の観測項目の値を返します。
func (o *Observation) Value(i int) (string, bool) {
	if o == nil || i < 0 || i >= len(o.Values) || o.Values[i] == "" {
		return "", false
	}
	return o.Values[i], true
}

// FlightLeg はフライトテーブルの 1 行です。同一性は元ファイル内の行位置 (Row) で表します。
type FlightLeg struct {
	Row           int
	Origin        string
	Dest          string
	DepartureTime *time.Time // CRSDepTime。解析できない場合は nil
	ArrivalTime   *time.Time // CRSDepTime_Dest。解析できない場合は nil
	Cancelled     string
	// Columns は FlightColumns の順に並んだ出力用の値です。タイムスタンプ列は正規化済みです。
	Columns []string
}

// LegOutcome は片側の結合結果を表します。
type LegOutcome int

const (
	LegMatched           LegOutcome = iota
	LegUnresolvedStation            // 空港コードに対応する観測所がない、または観測所のデータがない
	LegNoTimestamp                  // タイムスタンプが欠損している
	LegNoObservation                // 時刻以前の観測がない
)

func (o LegOutcome) String() string {
	switch o {
	case LegMatched:
		return "matched"
	case LegUnresolvedStation:
		return "unresolved_station"
	case LegNoTimestamp:
		return "no_timestamp"
	case LegNoObservation:
		return "no_observation"
	default:
		return "unknown"
	}
}

// EnrichedFlightRecord は FlightLeg に出発側と到着側の観測を付与したレコードです。
// Departure / Arrival が nil の場合、その側の観測項目はすべて欠損です。
type EnrichedFlightRecord struct {
	Flight           FlightLeg
	Departure        *Observation
	Arrival          *Observation
	DepartureOutcome LegOutcome
	ArrivalOutcome   LegOutcome
}

// Values は OutputColumns の順に並んだ値を返します。欠損は空文字列です。
func (r *EnrichedFlightRecord) Values() []string {
	out := make([]string, 0, len(FlightColumns)+2*len(WeatherFields))
	out = append(out, r.Flight.Columns...)
	for i := range WeatherFields {
		v, _ := r.Departure.Value(i)
		out = append(out, v)
	}
	for i := range WeatherFields {
		v, _ := r.Arrival.Value(i)
		out = append(out, v)
	}
	return out
}
