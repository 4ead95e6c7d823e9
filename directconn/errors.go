package directconn

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
	return fmt.Sprintf("directconn: schema error in %s: %s", e.Table, e.Reason)
}

// DataIntegrityError reports duplicate keys or non-monotonic timing within
// a single trip's stop-time rows.
type DataIntegrityError struct {
	TripID types.TripId
	Reason string
}

func (e *DataIntegrityError) Error() string {
	return fmt.Sprintf("directconn: data integrity error on trip %v: %s", e.TripID, e.Reason)
}
