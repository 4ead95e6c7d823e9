package raptorindex

import (
	"fmt"

	"github.com/antigravity/raptorprep/types"
)

// SchemaError reports a missing or malformed input column.
type SchemaError struct {
	Table  string
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("raptorindex: schema error in %s: %s", e.Table, e.Reason)
}

// MonotonicityError reports a trips_by_line_and_stop bucket whose departure
// times are not sorted ascending — a sign of upstream data corruption.
type MonotonicityError struct {
	Line               types.LineId
	Stop               types.StopId
	Trip, PreviousTrip types.TripId
}

func (e *MonotonicityError) Error() string {
	return fmt.Sprintf(
		"raptorindex: trips_by_line_and_stop[%v,%v] is not sorted by departure time: trip %v follows trip %v out of order",
		e.Line, e.Stop, e.Trip, e.PreviousTrip,
	)
}
