// Package raptorindex builds the dense relational indexes the query-time
// RAPTOR algorithm needs: stops_by_line, lines_by_stops, arrivals,
// departures, and trips_by_line_and_stop, plus the opaque geographic
// transfer provider. Everything here is built once, single-threaded, and
// becomes read-only once construction returns.
package raptorindex

import (
	"sort"

	"github.com/antigravity/raptorprep/directconn"
	"github.com/antigravity/raptorprep/geo"
	"github.com/antigravity/raptorprep/input"
	"github.com/antigravity/raptorprep/types"
)

// LineSeq is a (LineId, SeqNum) pair recording a line's membership at a
// stop and the stop's position within that line.
type LineSeq struct {
	Line types.LineId
	Seq  types.SeqNum
}

// TripStop identifies a single trip-at-stop event.
type TripStop struct {
	Trip types.TripId
	Stop types.StopId
}

// LineStop identifies a (line, stop) pair.
type LineStop struct {
	Line types.LineId
	Stop types.StopId
}

// DepartureEntry is one row of a trips_by_line_and_stop bucket.
type DepartureEntry struct {
	Departure types.Instant
	Trip      types.TripId
}

// RaptorIndex is the complete, read-only set of indexes the query-time
// algorithm consumes.
type RaptorIndex struct {
	Stops               []types.StopId
	StopsByLine         map[types.LineId][]types.StopId
	LinesByStops        map[types.StopId]map[LineSeq]struct{}
	Arrivals            map[TripStop]types.Instant
	Departures          map[TripStop]types.Instant
	TripsByLineAndStop  map[LineStop][]DepartureEntry
	TransferProvider    geo.TransferProvider
}

// Build consumes the stops table and the two DirectConnections tables and
// constructs every index, including the crow-fly transfer provider.
// strict, when true, runs CheckInvariants before returning.
func Build(stops input.StopsTable, dc *directconn.DirectConnections, maxSpeedKmh float64, strict bool) (*RaptorIndex, error) {
	if len(stops.Lat) != stops.Len() || len(stops.Lon) != stops.Len() {
		return nil, &SchemaError{Table: "stops", Reason: "column length mismatch"}
	}

	idx := &RaptorIndex{
		StopsByLine:        make(map[types.LineId][]types.StopId),
		LinesByStops:       make(map[types.StopId]map[LineSeq]struct{}),
		Arrivals:           make(map[TripStop]types.Instant),
		Departures:         make(map[TripStop]types.Instant),
		TripsByLineAndStop: make(map[LineStop][]DepartureEntry),
	}

	// 1. Materialize stops as a deduplicated vector, and build the full
	// []types.Stop slice the transfer provider needs.
	seen := make(map[types.StopId]struct{}, stops.Len())
	stopValues := make([]types.Stop, 0, stops.Len())
	for i, id := range stops.StopId {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		idx.Stops = append(idx.Stops, id)
		stopValues = append(stopValues, types.Stop{ID: id, Lat: stops.Lat[i], Lon: stops.Lon[i]})
	}
	// Every known stop must be indexed, even those unserved by any line.
	for _, id := range idx.Stops {
		if _, ok := idx.LinesByStops[id]; !ok {
			idx.LinesByStops[id] = make(map[LineSeq]struct{})
		}
	}

	// 2. stops_by_line / lines_by_stops from line_progressions, sorted by
	// (line_id, sequence_number).
	lp := dc.LineProgressions
	if lp.Len() > 0 {
		order := make([]int, lp.Len())
		for i := range order {
			order[i] = i
		}
		sort.Slice(order, func(a, b int) bool {
			ia, ib := order[a], order[b]
			if lp.LineId[ia] != lp.LineId[ib] {
				return lp.LineId[ia] < lp.LineId[ib]
			}
			return lp.SequenceNumber[ia] < lp.SequenceNumber[ib]
		})
		for _, i := range order {
			line, stop, seq := lp.LineId[i], lp.StopId[i], lp.SequenceNumber[i]
			idx.StopsByLine[line] = append(idx.StopsByLine[line], stop)
			if _, ok := idx.LinesByStops[stop]; !ok {
				idx.LinesByStops[stop] = make(map[LineSeq]struct{})
			}
			idx.LinesByStops[stop][LineSeq{Line: line, Seq: seq}] = struct{}{}
		}
	}

	// 3. arrivals / departures from expanded_lines, sorted by
	// (line_id, trip_id, stop_sequence) — the sort only matters for
	// determinism; map insertion order doesn't affect the result.
	el := dc.ExpandedLines
	elOrder := make([]int, el.Len())
	for i := range elOrder {
		elOrder[i] = i
	}
	sort.Slice(elOrder, func(a, b int) bool {
		ia, ib := elOrder[a], elOrder[b]
		if el.LineId[ia] != el.LineId[ib] {
			return el.LineId[ia] < el.LineId[ib]
		}
		if el.TripId[ia] != el.TripId[ib] {
			return el.TripId[ia] < el.TripId[ib]
		}
		return el.StopSequence[ia] < el.StopSequence[ib]
	})
	for _, i := range elOrder {
		key := TripStop{Trip: el.TripId[i], Stop: el.StopId[i]}
		idx.Arrivals[key] = types.Instant(el.ArrivalTime[i])
		idx.Departures[key] = types.Instant(el.DepartureTime[i])
	}

	// 4. Group expanded_lines by (line_id, stop_id); within each group sort
	// by departure_time ascending, TripId ascending as a deterministic
	// tie-break.
	grouped := make(map[LineStop][]int)
	for _, i := range elOrder {
		key := LineStop{Line: el.LineId[i], Stop: el.StopId[i]}
		grouped[key] = append(grouped[key], i)
	}
	for key, rows := range grouped {
		sort.Slice(rows, func(a, b int) bool {
			ia, ib := rows[a], rows[b]
			if el.DepartureTime[ia] != el.DepartureTime[ib] {
				return el.DepartureTime[ia] < el.DepartureTime[ib]
			}
			return el.TripId[ia] < el.TripId[ib]
		})
		entries := make([]DepartureEntry, len(rows))
		for j, i := range rows {
			entries[j] = DepartureEntry{Departure: types.Instant(el.DepartureTime[i]), Trip: el.TripId[i]}
		}
		idx.TripsByLineAndStop[key] = entries
	}

	if strict {
		if err := CheckInvariants(idx); err != nil {
			return nil, err
		}
	}

	provider, err := geo.NewCrowFlyProvider(stopValues, maxSpeedKmh)
	if err != nil {
		return nil, err
	}
	idx.TransferProvider = provider

	return idx, nil
}

// CheckInvariants verifies the monotonicity property from the spec: for
// every (L, s), trips_by_line_and_stop is sorted by departure time
// ascending with TripId as a deterministic tie-break. It is the exported
// form of the "debug build assertion" the original preprocessing
// implementation ran under cfg!(debug_assertions); Go has no equivalent
// compile-time switch, so callers opt in via Build's strict parameter.
func CheckInvariants(idx *RaptorIndex) error {
	for key, entries := range idx.TripsByLineAndStop {
		for i := 1; i < len(entries); i++ {
			prev, cur := entries[i-1], entries[i]
			if cur.Departure < prev.Departure {
				return &MonotonicityError{Line: key.Line, Stop: key.Stop, Trip: cur.Trip, PreviousTrip: prev.Trip}
			}
			if cur.Departure == prev.Departure && cur.Trip < prev.Trip {
				return &MonotonicityError{Line: key.Line, Stop: key.Stop, Trip: cur.Trip, PreviousTrip: prev.Trip}
			}
		}
	}
	return nil
}
