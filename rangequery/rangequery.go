// Package rangequery implements the range-RAPTOR procedure: for a single
// origin stop and a departure window, it returns every Pareto-optimal
// journey to every reachable stop. This is the standard round-based
// routing computation; the core's contract is only that its output feeds
// the transfer patterns aggregator — query-time serving of these results to
// an end user is explicitly out of scope.
package rangequery

import (
	"fmt"
	"sort"
	"strings"

	"github.com/antigravity/raptorprep/raptorindex"
	"github.com/antigravity/raptorprep/types"
)

// DefaultMaxRounds bounds the number of rounds, and so the number of rides,
// a journey may use. RAPTOR
// terminates naturally once a round produces no newly-marked stops; this is
// only a safety ceiling against pathological inputs.
const DefaultMaxRounds = 8

// defaultMaxTransferDuration bounds how far WithinDuration will search for
// a walking transfer after alighting. Not a spec knob — a practical bound
// so a single stop update can't fan out to the entire stop set.
const defaultMaxTransferDuration = types.Duration(30 * 60 * types.MillisPerSecond)

// QueryError reports a failure scanning a single origin's range query. Per
// the spec this is locally recoverable: the orchestrator logs it and the
// origin simply contributes no patterns.
type QueryError struct {
	Origin types.StopId
	Reason string
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("rangequery: query for stop %v failed: %s", e.Origin, e.Reason)
}

// ViaTrip identifies the trip (and the line it belongs to) ridden for a leg.
type ViaTrip struct {
	Trip types.TripId
	Line types.LineId
}

// Leg is one ride or one walking transfer within a journey. ViaTrip is nil
// for a transfer leg.
type Leg struct {
	From, To types.StopId
	Depart   types.Instant
	Arrive   types.Instant
	ViaTrip  *ViaTrip
}

// Journey is a complete origin-to-destination path made of one or more legs.
type Journey struct {
	From, To types.StopId
	Depart   types.Instant
	Arrive   types.Instant
	Legs     []Leg
}

func (j Journey) fingerprint() string {
	var b strings.Builder
	for _, leg := range j.Legs {
		if leg.ViaTrip != nil {
			fmt.Fprintf(&b, "%d-%d>%d|", leg.From, leg.ViaTrip.Trip, leg.To)
		} else {
			fmt.Fprintf(&b, "%d~%d|", leg.From, leg.To)
		}
	}
	return b.String()
}

// Result is the batch of journeys found for one origin, the unit the
// orchestrator funnels into the transfer patterns aggregator.
type Result struct {
	Origin   types.StopId
	Journeys []Journey
}

type segment struct {
	arrival types.Instant
	legs    []Leg
}

// QueryRangeAll returns every Pareto-optimal journey from origin departing
// in [earliestDeparture, earliestDeparture+rangeDuration). A journey is
// Pareto-optimal if no other journey to the same destination both departs
// no earlier, arrives no later, and uses no more rides.
func QueryRangeAll(
	idx *raptorindex.RaptorIndex,
	origin types.StopId,
	earliestDeparture types.Instant,
	rangeDuration types.Duration,
	maxRounds int,
) (Result, error) {
	if maxRounds <= 0 {
		maxRounds = DefaultMaxRounds
	}
	if _, known := idx.LinesByStops[origin]; !known {
		return Result{}, &QueryError{Origin: origin, Reason: "unknown stop"}
	}

	departures := candidateDepartures(idx, origin, earliestDeparture, earliestDeparture.Add(rangeDuration))

	seen := make(map[string]struct{})
	result := Result{Origin: origin}
	for _, depart := range departures {
		tau := runRounds(idx, origin, depart, maxRounds)
		for _, j := range paretoFrontier(origin, tau) {
			fp := j.fingerprint()
			if _, dup := seen[fp]; dup {
				continue
			}
			seen[fp] = struct{}{}
			result.Journeys = append(result.Journeys, j)
		}
	}
	return result, nil
}

// candidateDepartures finds every distinct departure time of a trip from
// origin within [from, to) across every line serving it.
func candidateDepartures(idx *raptorindex.RaptorIndex, origin types.StopId, from, to types.Instant) []types.Instant {
	set := make(map[types.Instant]struct{})
	for ls := range idx.LinesByStops[origin] {
		entries := idx.TripsByLineAndStop[raptorindex.LineStop{Line: ls.Line, Stop: origin}]
		i := sort.Search(len(entries), func(i int) bool { return entries[i].Departure >= from })
		for ; i < len(entries) && entries[i].Departure < to; i++ {
			set[entries[i].Departure] = struct{}{}
		}
	}
	out := make([]types.Instant, 0, len(set))
	for d := range set {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// runRounds executes the standard RAPTOR round loop starting at origin at
// departAt. It returns tau, the per-round arrival-time array: tau[k][stop]
// is the best segment reaching stop using at most k rides from origin
// (carried forward unchanged from tau[k-1] wherever round k found no
// improvement). tau[0] only contains origin itself. Keeping one map per
// round, rather than overwriting a single shared map, is what lets the
// caller recover every (rounds, arrival) Pareto point instead of just the
// fastest journey found across all rounds combined.
func runRounds(idx *raptorindex.RaptorIndex, origin types.StopId, departAt types.Instant, maxRounds int) []map[types.StopId]segment {
	tau := make([]map[types.StopId]segment, maxRounds+1)
	tau[0] = map[types.StopId]segment{origin: {arrival: departAt}}
	marked := map[types.StopId]struct{}{origin: {}}

	for round := 1; round <= maxRounds && len(marked) > 0; round++ {
		prev := tau[round-1]
		curr := make(map[types.StopId]segment, len(prev))
		for stop, seg := range prev {
			curr[stop] = seg
		}

		lineMinSeq := make(map[types.LineId]types.SeqNum)
		for stop := range marked {
			for ls := range idx.LinesByStops[stop] {
				if cur, ok := lineMinSeq[ls.Line]; !ok || ls.Seq < cur {
					lineMinSeq[ls.Line] = ls.Seq
				}
			}
		}

		newMarked := make(map[types.StopId]struct{})
		for line, minSeq := range lineMinSeq {
			scanLine(idx, line, minSeq, marked, prev, curr, newMarked)
		}
		applyTransfers(idx, newMarked, curr)

		tau[round] = curr
		marked = newMarked
	}

	return tau
}

// paretoFrontier walks tau in increasing round order and, for every stop,
// keeps only the rounds whose arrival strictly improves on every smaller
// round already kept for that stop — the Pareto-optimal set over (arrival
// time, number of rides), per destination.
func paretoFrontier(origin types.StopId, tau []map[types.StopId]segment) []Journey {
	bestArrival := make(map[types.StopId]types.Instant)
	var out []Journey
	for round := 1; round < len(tau); round++ {
		for stop, seg := range tau[round] {
			if stop == origin || len(seg.legs) == 0 {
				continue
			}
			if best, ok := bestArrival[stop]; ok && seg.arrival >= best {
				continue
			}
			bestArrival[stop] = seg.arrival
			out = append(out, Journey{From: origin, To: stop, Depart: seg.legs[0].Depart, Arrive: seg.arrival, Legs: seg.legs})
		}
	}
	return out
}

// scanLine walks a line forward from minSeq, boarding the earliest
// catchable trip (per prev, the previous round's arrivals) at each marked
// stop, and writes any improvement over curr's carried-forward arrival at
// every later stop on the line.
func scanLine(
	idx *raptorindex.RaptorIndex,
	line types.LineId,
	minSeq types.SeqNum,
	marked map[types.StopId]struct{},
	prev map[types.StopId]segment,
	curr map[types.StopId]segment,
	newMarked map[types.StopId]struct{},
) {
	stops := idx.StopsByLine[line]
	var boardedTrip *types.TripId
	var boardedAtStop types.StopId
	var boardDeparture types.Instant

	for pos := int(minSeq); pos < len(stops); pos++ {
		stop := stops[pos]

		if _, isMarked := marked[stop]; isMarked {
			if seg, ok := prev[stop]; ok {
				if entry, found := earliestCatchable(idx, line, stop, seg.arrival); found {
					if boardedTrip == nil || entry.Departure < idx.Departures[raptorindex.TripStop{Trip: *boardedTrip, Stop: stop}] {
						trip := entry.Trip
						boardedTrip = &trip
						boardedAtStop = stop
						boardDeparture = entry.Departure
					}
				}
			}
		}

		if boardedTrip == nil {
			continue
		}
		arrival, ok := idx.Arrivals[raptorindex.TripStop{Trip: *boardedTrip, Stop: stop}]
		if !ok {
			continue
		}
		existing, has := curr[stop]
		if has && existing.arrival <= arrival {
			continue
		}
		legs := append(append([]Leg{}, prev[boardedAtStop].legs...), Leg{
			From: boardedAtStop, To: stop,
			Depart: boardDeparture, Arrive: arrival,
			ViaTrip: &ViaTrip{Trip: *boardedTrip, Line: line},
		})
		curr[stop] = segment{arrival: arrival, legs: legs}
		newMarked[stop] = struct{}{}
	}
}

// applyTransfers extends every newly-marked stop with a walking transfer to
// nearby stops, per the geographic transfer provider, writing into curr and
// marking reached stops for the next round's line scan.
func applyTransfers(idx *raptorindex.RaptorIndex, newMarked map[types.StopId]struct{}, curr map[types.StopId]segment) {
	origins := make([]types.StopId, 0, len(newMarked))
	for stop := range newMarked {
		origins = append(origins, stop)
	}
	for _, stop := range origins {
		neighbors, err := idx.TransferProvider.WithinDuration(stop, defaultMaxTransferDuration)
		if err != nil {
			continue
		}
		from := curr[stop]
		for _, n := range neighbors {
			arrival := from.arrival.Add(n.Duration)
			existing, has := curr[n.Stop]
			if has && existing.arrival <= arrival {
				continue
			}
			legs := append(append([]Leg{}, from.legs...), Leg{From: stop, To: n.Stop, Depart: from.arrival, Arrive: arrival})
			curr[n.Stop] = segment{arrival: arrival, legs: legs}
			newMarked[n.Stop] = struct{}{}
		}
	}
}

// earliestCatchable returns the earliest trip on line departing stop at or
// after notBefore.
func earliestCatchable(idx *raptorindex.RaptorIndex, line types.LineId, stop types.StopId, notBefore types.Instant) (raptorindex.DepartureEntry, bool) {
	entries := idx.TripsByLineAndStop[raptorindex.LineStop{Line: line, Stop: stop}]
	i := sort.Search(len(entries), func(i int) bool { return entries[i].Departure >= notBefore })
	if i == len(entries) {
		return raptorindex.DepartureEntry{}, false
	}
	return entries[i], true
}
