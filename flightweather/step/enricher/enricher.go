// Package enricher はフライトの各行に出発地と到着地の観測を付与します。
package enricher

import (
	"context"
	"sort"
	"time"

	"flightweather/flightweather/asof"
	"flightweather/flightweather/domain/entity"
	"flightweather/flightweather/station"
)

// Enricher は 1 バッチ分のフライトに観測を付与します。
// 読み取り専用の対応表と Joiner だけを参照するため、複数のワーカーから同時に使えます。
type Enricher struct {
	airports *station.AirportStationMap
	joiner   *asof.Joiner
}

// NewEnricher は新しい Enricher を作成します。
func NewEnricher(airports *station.AirportStationMap, joiner *asof.Joiner) *Enricher {
	return &Enricher{airports: airports, joiner: joiner}
}

// EnrichRow は 1 行に観測を付与します。出発側は CRSDepTime、到着側は CRSDepTime_Dest で結合し、
// 片側が解決できなくてももう片側には影響しません。
func (e *Enricher) EnrichRow(leg entity.FlightLeg) entity.EnrichedFlightRecord {
	rec := entity.EnrichedFlightRecord{Flight: leg}
	rec.Departure, rec.DepartureOutcome = e.matchLeg(leg.Origin, leg.DepartureTime)
	rec.Arrival, rec.ArrivalOutcome = e.matchLeg(leg.Dest, leg.ArrivalTime)
	return rec
}

func (e *Enricher) matchLeg(airport string, ts *time.Time) (*entity.Observation, entity.LegOutcome) {
	id, ok := e.resolve(airport)
	if !ok {
		return nil, entity.LegUnresolvedStation
	}
	if ts == nil {
		return nil, entity.LegNoTimestamp
	}
	if o, ok := e.joiner.Match(id, ts); ok {
		return o, entity.LegMatched
	}
	return nil, entity.LegNoObservation
}

// resolve は観測データの無い観測所も未解決として扱います。
func (e *Enricher) resolve(airport string) (string, bool) {
	id, ok := e.airports.Resolve(airport)
	if !ok || !e.joiner.HasStation(id) {
		return "", false
	}
	return id, true
}

// Enrich は batch の各行に観測を付与します。出力の i 番目は入力の i 番目に対応します。
//
// 結果は各行に EnrichRow を適用したものと同じです。内部では行を観測所ごとにまとめ、
// 系列を 1 回ずつ走査して結合します。バッチは処理の途中では中断しません。
func (e *Enricher) Enrich(ctx context.Context, batch []entity.FlightLeg) ([]entity.EnrichedFlightRecord, error) {
	out := make([]entity.EnrichedFlightRecord, len(batch))
	for i := range batch {
		out[i].Flight = batch[i]
	}

	e.enrichSide(batch,
		func(l *entity.FlightLeg) (string, *time.Time) { return l.Origin, l.DepartureTime },
		func(i int, o *entity.Observation, oc entity.LegOutcome) {
			out[i].Departure, out[i].DepartureOutcome = o, oc
		})
	e.enrichSide(batch,
		func(l *entity.FlightLeg) (string, *time.Time) { return l.Dest, l.ArrivalTime },
		func(i int, o *entity.Observation, oc entity.LegOutcome) {
			out[i].Arrival, out[i].ArrivalOutcome = o, oc
		})
	return out, nil
}

func (e *Enricher) enrichSide(
	batch []entity.FlightLeg,
	key func(*entity.FlightLeg) (string, *time.Time),
	set func(i int, o *entity.Observation, oc entity.LegOutcome),
) {
	rows := make(map[string][]int)
	for i := range batch {
		airport, ts := key(&batch[i])
		id, ok := e.resolve(airport)
		switch {
		case !ok:
			set(i, nil, entity.LegUnresolvedStation)
		case ts == nil:
			set(i, nil, entity.LegNoTimestamp)
		default:
			rows[id] = append(rows[id], i)
		}
	}

	ids := make([]string, 0, len(rows))
	for id := range rows {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		idx := rows[id]
		ts := make([]*time.Time, len(idx))
		for k, i := range idx {
			_, ts[k] = key(&batch[i])
		}
		for k, o := range e.joiner.MatchAll(id, ts) {
			if o == nil {
				set(idx[k], nil, entity.LegNoObservation)
			} else {
				set(idx[k], o, entity.LegMatched)
			}
		}
	}
}
