package tasklet

import (
	"context"

	"flightweather/flightweather/station"
	"flightweather/flightweather/step/reader"
	core "flightweather/pkg/batch/job/core"
	logger "flightweather/pkg/batch/util/logger"
)

// LoadFlightsTasklet は対象年のフライトテーブルを読み込みます。
type LoadFlightsTasklet struct {
	noClose
	state *YearState
}

var _ core.Tasklet = (*LoadFlightsTasklet)(nil)

func NewLoadFlightsTasklet(state *YearState) *LoadFlightsTasklet {
	return &LoadFlightsTasklet{state: state}
}

func (t *LoadFlightsTasklet) Execute(ctx context.Context, stepExecution *core.StepExecution) (core.ExitStatus, error) {
	year, err := YearParam(stepExecution.JobExecution.Parameters)
	if err != nil {
		return core.ExitStatusFailed, err
	}
	t.state.Year = year

	path := t.state.Config.Input.FlightsPath(year)
	legs, err := reader.NewFlightReader(t.state.Location).Read(ctx, path)
	if err != nil {
		return core.ExitStatusFailed, err
	}
	t.state.Flights = legs

	stepExecution.ReadCount = len(legs)
	stepExecution.ExecutionContext.Put(KeyFlightRows, len(legs))
	t.state.Recorder.AddRows(year, "read", len(legs))
	return core.ExitStatusCompleted, nil
}

// LoadWeatherTasklet は空港と観測所の対応表と、対象年の観測データを読み込みます。
// 観測データのインデックスは、このステップが終わった後は変更されません。
type LoadWeatherTasklet struct {
	noClose
	state *YearState
}

var _ core.Tasklet = (*LoadWeatherTasklet)(nil)

func NewLoadWeatherTasklet(state *YearState) *LoadWeatherTasklet {
	return &LoadWeatherTasklet{state: state}
}

func (t *LoadWeatherTasklet) Execute(ctx context.Context, stepExecution *core.StepExecution) (core.ExitStatus, error) {
	in := t.state.Config.Input
	airports, err := station.OpenAirportMap(in.AirportStationMap, in.AirportTable, in.StationTable)
	if err != nil {
		return core.ExitStatusFailed, err
	}

	index, err := station.LoadIndex(ctx, in.WeatherDir(t.state.Year), t.state.Year, t.state.Location)
	if err != nil {
		return core.ExitStatusFailed, err
	}
	if index.Len() == 0 {
		logger.Warnf("%d 年の観測データが 1 件もありません。すべての区間が欠損になります。", t.state.Year)
	}
	t.state.Airports = airports
	t.state.Index = index

	stepExecution.ReadCount = index.Rows()
	stepExecution.ExecutionContext.Put(KeyStations, index.Len())
	stepExecution.ExecutionContext.Put(KeyObservations, index.Rows())
	stepExecution.ExecutionContext.Put(KeyAirports, airports.Len())
	return core.ExitStatusCompleted, nil
}
