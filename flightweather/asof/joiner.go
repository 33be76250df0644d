// Package asof は観測所の観測系列に対する後方 as-of 結合を提供します。
package asof

import (
	"sort"
	"time"

	"flightweather/flightweather/domain/entity"
	"flightweather/flightweather/station"
)

// Joiner は指定時刻以前で最も新しい観測を返します。
// 補間や前方の観測の参照は行いません。
type Joiner struct {
	index *station.Index
}

// NewJoiner は index を参照する Joiner を作成します。
func NewJoiner(index *station.Index) *Joiner {
	return &Joiner{index: index}
}

// Match は stationID の観測のうち、時刻が ts 以下で最大のものを返します。
// 同じ時刻の観測が複数ある場合は系列で最後のものを返します。
// 観測所が無い場合、ts が nil の場合、ts 以前の観測が無い場合は false を返します。
func (j *Joiner) Match(stationID string, ts *time.Time) (*entity.Observation, bool) {
	if ts == nil {
		return nil, false
	}
	s, ok := j.index.Series(stationID)
	if !ok {
		return nil, false
	}
	obs := s.Observations
	// ts より後の最初の観測の位置
	i := sort.Search(len(obs), func(i int) bool {
		return obs[i].Time.After(*ts)
	})
	if i == 0 {
		return nil, false
	}
	return &obs[i-1], true
}

// MatchAll は ts の各要素に Match を適用した結果を返します。結果の i 番目は ts[i] に対応し、一致が無ければ nil です。
// 時刻順に並べた問い合わせと系列を 1 回ずつ走査するため、同じ観測所への問い合わせがまとまっている場合に使います。
func (j *Joiner) MatchAll(stationID string, ts []*time.Time) []*entity.Observation {
	out := make([]*entity.Observation, len(ts))
	s, ok := j.index.Series(stationID)
	if !ok {
		return out
	}

	order := make([]int, 0, len(ts))
	for i, t := range ts {
		if t != nil {
			order = append(order, i)
		}
	}
	sort.SliceStable(order, func(a, b int) bool {
		return ts[order[a]].Before(*ts[order[b]])
	})

	obs := s.Observations
	next := 0 // 問い合わせ時刻より後の最初の観測の位置
	for _, qi := range order {
		q := *ts[qi]
		for next < len(obs) && !obs[next].Time.After(q) {
			next++
		}
		if next > 0 {
			out[qi] = &obs[next-1]
		}
	}
	return out
}

// HasStation は index に stationID の系列があるかどうかを返します。
func (j *Joiner) HasStation(stationID string) bool {
	_, ok := j.index.Series(stationID)
	return ok
}
