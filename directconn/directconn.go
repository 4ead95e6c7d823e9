// Package directconn groups trips into lines — equivalence classes of trips
// sharing an identical ordered stop sequence — and emits the two relational
// tables the RAPTOR index builder consumes.
package directconn

import (
	"fmt"
	"sort"
	"strings"

	"github.com/antigravity/raptorprep/input"
	"github.com/antigravity/raptorprep/types"
)

// ExpandedLines is the stop_times rows annotated with the LineId of their
// trip: (line_id, trip_id, stop_id, stop_sequence, arrival_time,
// departure_time).
type ExpandedLines struct {
	LineId        []types.LineId
	TripId        []types.TripId
	StopId        []types.StopId
	StopSequence  []uint32
	ArrivalTime   []types.Duration
	DepartureTime []types.Duration
}

func (e *ExpandedLines) append(line types.LineId, trip types.TripId, stop types.StopId, seq uint32, arr, dep types.Duration) {
	e.LineId = append(e.LineId, line)
	e.TripId = append(e.TripId, trip)
	e.StopId = append(e.StopId, stop)
	e.StopSequence = append(e.StopSequence, seq)
	e.ArrivalTime = append(e.ArrivalTime, arr)
	e.DepartureTime = append(e.DepartureTime, dep)
}

func (e *ExpandedLines) Len() int { return len(e.LineId) }

// LineProgressions is one row per distinct (line_id, position) pair, where
// position is the normalized rank 0..len-1 of a stop within the line's
// canonical signature.
type LineProgressions struct {
	LineId         []types.LineId
	StopId         []types.StopId
	SequenceNumber []types.SeqNum
}

func (p *LineProgressions) Len() int { return len(p.LineId) }

// DirectConnections is the output of the builder.
type DirectConnections struct {
	ExpandedLines    ExpandedLines
	LineProgressions LineProgressions
}

type tripRow struct {
	rowIndex int
	seq      uint32
}

// Build runs the DirectConnections algorithm described in the spec:
//  1. sort each trip's stop-time rows by stop_sequence ascending and extract
//     the ordered stop_id tuple as the trip's signature;
//  2. group trips by signature, assigning a fresh LineId per distinct
//     signature in first-appearance order;
//  3. emit ExpandedLines (annotated stop_times rows) and LineProgressions
//     (one row per distinct (line_id, position)).
func Build(in input.PreprocessingInput) (*DirectConnections, error) {
	st := in.StopTimes
	n := st.Len()
	if len(st.StopId) != n || len(st.ArrivalTime) != n || len(st.DepartureTime) != n || len(st.StopSequence) != n {
		return nil, &SchemaError{Table: "stop_times", Reason: "column length mismatch"}
	}

	rowsByTrip := make(map[types.TripId][]tripRow, in.Trips.Len())
	for i := 0; i < n; i++ {
		trip := st.TripId[i]
		rowsByTrip[trip] = append(rowsByTrip[trip], tripRow{rowIndex: i, seq: st.StopSequence[i]})
	}

	result := &DirectConnections{}
	lineIdBySignature := make(map[string]types.LineId)
	var nextLineId types.LineId

	// Process trips in the order they appear in the trips table so LineId
	// assignment is deterministic by first appearance, per the spec.
	for _, trip := range in.Trips.TripId {
		rows, ok := rowsByTrip[trip]
		if !ok || len(rows) == 0 {
			continue
		}

		sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })

		for i := 1; i < len(rows); i++ {
			if rows[i].seq == rows[i-1].seq {
				return nil, &DataIntegrityError{TripID: trip, Reason: fmt.Sprintf("duplicate stop_sequence %d", rows[i].seq)}
			}
		}
		for _, r := range rows {
			if st.ArrivalTime[r.rowIndex] > st.DepartureTime[r.rowIndex] {
				return nil, &DataIntegrityError{TripID: trip, Reason: fmt.Sprintf("arrival after departure at stop_sequence %d", r.seq)}
			}
		}
		for i := 1; i < len(rows); i++ {
			if st.DepartureTime[rows[i-1].rowIndex] > st.ArrivalTime[rows[i].rowIndex] {
				return nil, &DataIntegrityError{TripID: trip, Reason: fmt.Sprintf("arrival at stop_sequence %d before departure from stop_sequence %d", rows[i].seq, rows[i-1].seq)}
			}
		}

		signature := make([]types.StopId, len(rows))
		var sigKey strings.Builder
		for i, r := range rows {
			stopId := st.StopId[r.rowIndex]
			signature[i] = stopId
			fmt.Fprintf(&sigKey, "%d|", uint32(stopId))
		}

		lineId, seen := lineIdBySignature[sigKey.String()]
		if !seen {
			lineId = nextLineId
			nextLineId++
			lineIdBySignature[sigKey.String()] = lineId
			for pos, stopId := range signature {
				result.LineProgressions.LineId = append(result.LineProgressions.LineId, lineId)
				result.LineProgressions.StopId = append(result.LineProgressions.StopId, stopId)
				result.LineProgressions.SequenceNumber = append(result.LineProgressions.SequenceNumber, types.SeqNum(pos))
			}
		}

		for _, r := range rows {
			result.ExpandedLines.append(
				lineId, trip, st.StopId[r.rowIndex], r.seq,
				st.ArrivalTime[r.rowIndex], st.DepartureTime[r.rowIndex],
			)
		}
	}

	return result, nil
}
