package geo

import "fmt"

// ConstructionError reports a failure to build the spatial transfer
// provider, e.g. non-finite stop coordinates.
type ConstructionError struct {
	Reason string
}

func (e *ConstructionError) Error() string {
	return fmt.Sprintf("geo: failed to construct transfer provider: %s", e.Reason)
}
