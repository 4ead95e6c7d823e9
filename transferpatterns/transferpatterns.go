// Package transferpatterns collects the set of transfer patterns —
// sequences of boarded lines plus the intermediate transfer stops — that at
// least one Pareto-optimal journey uses, keyed by origin stop. It is the
// only mutable shared structure in the pipeline: every insertion is
// serialized behind a single mutex, and the aggregator transitions to
// read-only once orchestration completes.
package transferpatterns

import (
	"fmt"
	"strings"
	"sync"

	"github.com/antigravity/raptorprep/rangequery"
	"github.com/antigravity/raptorprep/types"
)

// TransferPattern is an ordered list of boarded lines connecting an origin
// to a destination, abstracting away the specific trips ridden.
type TransferPattern struct {
	Destination   types.StopId
	Lines         []types.LineId
	TransferStops []types.StopId
}

func (p TransferPattern) fingerprint() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d:", p.Destination)
	for _, l := range p.Lines {
		fmt.Fprintf(&b, "%d,", l)
	}
	b.WriteByte('|')
	for _, s := range p.TransferStops {
		fmt.Fprintf(&b, "%d,", s)
	}
	return b.String()
}

// FromJourney projects a journey down to the transfer pattern it exercises:
// the ordered list of lines ridden (consecutive legs on the same line count
// once; a line ridden again after another line or a walk is listed again),
// and the stops where a ride starts after a line change or a walk.
func FromJourney(j rangequery.Journey) TransferPattern {
	pattern := TransferPattern{Destination: j.To}
	var lastLine *types.LineId
	for _, leg := range j.Legs {
		if leg.ViaTrip == nil {
			lastLine = nil
			continue
		}
		if lastLine == nil || *lastLine != leg.ViaTrip.Line {
			if len(pattern.Lines) > 0 {
				pattern.TransferStops = append(pattern.TransferStops, leg.From)
			}
			pattern.Lines = append(pattern.Lines, leg.ViaTrip.Line)
			line := leg.ViaTrip.Line
			lastLine = &line
		}
	}
	return pattern
}

// Aggregator is the StopId -> set-of-TransferPattern mapping, guarded by a
// mutex and insertable only in batches.
type Aggregator struct {
	mu       sync.Mutex
	byOrigin map[types.StopId]map[string]TransferPattern
	frozen   bool
}

// New returns an empty, writable aggregator.
func New() *Aggregator {
	return &Aggregator{byOrigin: make(map[types.StopId]map[string]TransferPattern)}
}

// AddMultiple inserts the patterns derived from a batch of range-query
// results. Insertion is idempotent: inserting an already-present pattern is
// a no-op. Batching amortizes the mutex acquisition cost across an entire
// orchestrator chunk rather than paying it per stop.
func (a *Aggregator) AddMultiple(batch []rangequery.Result) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.frozen {
		return &SynchronizationError{Reason: "AddMultiple called after Freeze"}
	}

	for _, result := range batch {
		if len(result.Journeys) == 0 {
			continue
		}
		set, ok := a.byOrigin[result.Origin]
		if !ok {
			set = make(map[string]TransferPattern)
			a.byOrigin[result.Origin] = set
		}
		for _, journey := range result.Journeys {
			pattern := FromJourney(journey)
			set[pattern.fingerprint()] = pattern
		}
	}
	return nil
}

// Freeze transitions the aggregator to read-only and returns the final
// StopId -> []TransferPattern snapshot. Calling AddMultiple after Freeze
// returns SynchronizationError.
func (a *Aggregator) Freeze() (map[types.StopId][]TransferPattern, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.frozen {
		return nil, &SynchronizationError{Reason: "Freeze called more than once"}
	}
	a.frozen = true

	snapshot := make(map[types.StopId][]TransferPattern, len(a.byOrigin))
	for origin, set := range a.byOrigin {
		patterns := make([]TransferPattern, 0, len(set))
		for _, p := range set {
			patterns = append(patterns, p)
		}
		snapshot[origin] = patterns
	}
	return snapshot, nil
}
