// Package input defines the PreprocessingInput contract consumed by the
// core. The tables are struct-of-slices (columnar) shapes: the Go analogue
// of the polars LazyFrame columns the upstream import pipeline produces.
// The core never mutates them; it streams columns in sorted order and
// builds its own hash maps in a single pass per table.
package input

import "github.com/antigravity/raptorprep/types"

// StopsTable is the stops(stop_id, lat, lon) table.
type StopsTable struct {
	StopId []types.StopId
	Lat    []float32
	Lon    []float32
}

func (t StopsTable) Len() int { return len(t.StopId) }

// TripsTable is the trips(trip_id, ...) table. The core only needs the id
// column; any other GTFS trip attributes are collaborator-owned.
type TripsTable struct {
	TripId []types.TripId
}

func (t TripsTable) Len() int { return len(t.TripId) }

// StopTimesTable is the stop_times(trip_id, stop_id, arrival_time,
// departure_time, stop_sequence) table. All five slices must have equal
// length; row i describes a single stop-time event.
type StopTimesTable struct {
	TripId        []types.TripId
	StopId        []types.StopId
	ArrivalTime   []types.Duration
	DepartureTime []types.Duration
	StopSequence  []uint32
}

func (t StopTimesTable) Len() int { return len(t.TripId) }

// ServicesTable is reserved for calendar filtering. It is currently unused
// by the core; preprocessing treats the input as already service-filtered.
type ServicesTable struct{}

// PreprocessingInput is the import pipeline's output and the core's only
// input.
type PreprocessingInput struct {
	Stops     StopsTable
	Trips     TripsTable
	StopTimes StopTimesTable
	Services  ServicesTable
}
