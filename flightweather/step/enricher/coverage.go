package enricher

import (
	"sort"

	"flightweather/flightweather/domain/entity"
)

// LegCounts は片側の結合結果の件数です。
type LegCounts struct {
	Matched           int `json:"matched"`
	UnresolvedStation int `json:"unresolved_station"`
	NoTimestamp       int `json:"no_timestamp"`
	NoObservation     int `json:"no_observation"`
}

func (c *LegCounts) add(o entity.LegOutcome) {
	switch o {
	case entity.LegMatched:
		c.Matched++
	case entity.LegUnresolvedStation:
		c.UnresolvedStation++
	case entity.LegNoTimestamp:
		c.NoTimestamp++
	case entity.LegNoObservation:
		c.NoObservation++
	}
}

// Missing は観測が付与されなかった件数を返します。
func (c LegCounts) Missing() int {
	return c.UnresolvedStation + c.NoTimestamp + c.NoObservation
}

// ByOutcome は結果ごとの件数を返します。
func (c LegCounts) ByOutcome() map[entity.LegOutcome]int {
	return map[entity.LegOutcome]int{
		entity.LegMatched:           c.Matched,
		entity.LegUnresolvedStation: c.UnresolvedStation,
		entity.LegNoTimestamp:       c.NoTimestamp,
		entity.LegNoObservation:     c.NoObservation,
	}
}

// Coverage は 1 年分の結合結果の集計です。
type Coverage struct {
	Rows      int       `json:"rows"`
	Departure LegCounts `json:"departure"`
	Arrival   LegCounts `json:"arrival"`
	// UnresolvedAirports は観測所に解決できなかった空港コードと出現回数です。
	UnresolvedAirports map[string]int `json:"unresolved_airports"`
}

// Summarize は records の結合結果を集計します。
func Summarize(records []entity.EnrichedFlightRecord) Coverage {
	c := Coverage{Rows: len(records), UnresolvedAirports: make(map[string]int)}
	for i := range records {
		r := &records[i]
		c.Departure.add(r.DepartureOutcome)
		c.Arrival.add(r.ArrivalOutcome)
		if r.DepartureOutcome == entity.LegUnresolvedStation {
			c.UnresolvedAirports[r.Flight.Origin]++
		}
		if r.ArrivalOutcome == entity.LegUnresolvedStation {
			c.UnresolvedAirports[r.Flight.Dest]++
		}
	}
	return c
}

// AirportCount は空港コードと件数の組です。
type AirportCount struct {
	Code  string
	Count int
}

// TopUnresolved は未解決の空港コードを件数の多い順に最大 n 件返します。同数の場合はコード順です。
func (c Coverage) TopUnresolved(n int) []AirportCount {
	out := make([]AirportCount, 0, len(c.UnresolvedAirports))
	for code, count := range c.UnresolvedAirports {
		out = append(out, AirportCount{Code: code, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Code < out[j].Code
	})
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
