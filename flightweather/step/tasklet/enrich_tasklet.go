package tasklet

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"flightweather/flightweather/asof"
	"flightweather/flightweather/domain/entity"
	"flightweather/flightweather/step/enricher"
	core "flightweather/pkg/batch/job/core"
	"flightweather/pkg/batch/step/partition"
	logger "flightweather/pkg/batch/util/logger"
)

// BatchEnricher は 1 バッチ分のフライトに観測を付与します。
type BatchEnricher interface {
	Enrich(ctx context.Context, batch []entity.FlightLeg) ([]entity.EnrichedFlightRecord, error)
}

// EnricherFactory は読み込み済みの YearState から BatchEnricher を作成します。
type EnricherFactory func(state *YearState) BatchEnricher

// DefaultEnricher は空港と観測所の対応表、観測インデックスを使う BatchEnricher を作成します。
func DefaultEnricher(state *YearState) BatchEnricher {
	return enricher.NewEnricher(state.Airports, asof.NewJoiner(state.Index))
}

// EnrichTasklet はフライトを固定サイズのバッチに分割し、ワーカーで並列に観測を付与します。
// 結果は入力の行順に並びます。1 つでもバッチが失敗した場合、ステップは失敗します。
type EnrichTasklet struct {
	noClose
	state       *YearState
	newEnricher EnricherFactory
}

var _ core.Tasklet = (*EnrichTasklet)(nil)

// NewEnrichTasklet は EnrichTasklet を作成します。newEnricher が nil の場合は DefaultEnricher を使います。
func NewEnrichTasklet(state *YearState, newEnricher EnricherFactory) *EnrichTasklet {
	if newEnricher == nil {
		newEnricher = DefaultEnricher
	}
	return &EnrichTasklet{state: state, newEnricher: newEnricher}
}

func (t *EnrichTasklet) Execute(ctx context.Context, stepExecution *core.StepExecution) (core.ExitStatus, error) {
	batchCfg := t.state.Config.Batch
	runner, err := partition.NewRunner[entity.FlightLeg, entity.EnrichedFlightRecord](
		stepExecution.StepName, batchCfg.BatchSize, batchCfg.Workers,
		partition.NewLoggingProgressListener(), t.state.Recorder,
	)
	if err != nil {
		return core.ExitStatusFailed, err
	}

	e := t.newEnricher(t.state)
	records, err := runner.Run(ctx, t.state.Flights,
		func(ctx context.Context, r partition.Range, batch []entity.FlightLeg) ([]entity.EnrichedFlightRecord, error) {
			return e.Enrich(ctx, batch)
		})
	if err != nil {
		return core.ExitStatusFailed, err
	}

	cov := enricher.Summarize(records)
	t.state.Records = records
	t.state.Coverage = cov
	t.state.Flights = nil

	year := t.state.Year
	stepExecution.ReadCount = cov.Rows
	stepExecution.WriteCount = len(records)
	stepExecution.ExecutionContext.Put(KeyDepartureMatched, cov.Departure.Matched)
	stepExecution.ExecutionContext.Put(KeyArrivalMatched, cov.Arrival.Matched)
	t.state.Recorder.AddRows(year, "enriched", len(records))
	for o, n := range cov.Departure.ByOutcome() {
		t.state.Recorder.AddLegs("departure", o.String(), n)
	}
	for o, n := range cov.Arrival.ByOutcome() {
		t.state.Recorder.AddLegs("arrival", o.String(), n)
	}

	trace.SpanFromContext(ctx).AddEvent("coverage", trace.WithAttributes(
		attribute.Int("flight.rows", cov.Rows),
		attribute.Int("departure.matched", cov.Departure.Matched),
		attribute.Int("arrival.matched", cov.Arrival.Matched),
		attribute.Int("airports.unresolved", len(cov.UnresolvedAirports)),
	))

	logger.Infof("%d 年: %d 行に観測を付与しました。出発側 %d/%d, 到着側 %d/%d が一致。",
		year, cov.Rows, cov.Departure.Matched, cov.Rows, cov.Arrival.Matched, cov.Rows)
	return core.ExitStatusCompleted, nil
}
