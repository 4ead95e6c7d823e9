// Package geo builds the crow-fly geographic transfer provider: a spatial
// index over stop coordinates answering "which stops are reachable within a
// crow-fly travel time bound, assuming a constant maximum vehicle speed".
//
// Distance uses the Haversine formula on WGS-84 coordinates, the same
// formula used for ride-pooling distance estimates elsewhere in this
// family of services — only the speed assumption differs (a route planning
// ceiling here, not an average driving speed).
package geo

import (
	"math"

	"github.com/dhconnelly/rtreego"

	"github.com/antigravity/raptorprep/types"
)

const (
	// EarthRadiusKm is the mean radius of Earth in kilometers.
	EarthRadiusKm = 6371.0

	rtreeMinChildren = 2
	rtreeMaxChildren = 8
)

// Neighbor is a stop reachable within a queried duration, together with the
// crow-fly travel time it would take at the provider's configured speed.
type Neighbor struct {
	Stop     types.StopId
	Duration types.Duration
}

// TransferProvider answers nearest-within-duration queries. The core is
// agnostic to the underlying spatial representation; CrowFlyProvider is the
// one implementation visible to it.
type TransferProvider interface {
	WithinDuration(from types.StopId, maxDuration types.Duration) ([]Neighbor, error)
}

type stopEntry struct {
	stop types.Stop
}

func (e stopEntry) Bounds() *rtreego.Rect {
	const eps = 1e-9
	point := rtreego.Point{float64(e.stop.Lat), float64(e.stop.Lon)}
	rect, err := rtreego.NewRect(point, []float64{eps, eps})
	if err != nil {
		// NewRect only fails for non-positive lengths, which eps never is.
		panic(err)
	}
	return rect
}

// CrowFlyProvider is an R-tree bulk-loaded once over every stop's
// coordinates at construction time, then queried read-only.
type CrowFlyProvider struct {
	tree        *rtreego.Rtree
	byID        map[types.StopId]types.Stop
	maxSpeedKmh float64
}

// NewCrowFlyProvider builds the spatial index over stops. maxSpeedKmh is the
// vehicle speed ceiling (spec default 500 km/h) used to convert a travel
// time bound into a search radius.
func NewCrowFlyProvider(stops []types.Stop, maxSpeedKmh float64) (*CrowFlyProvider, error) {
	if maxSpeedKmh <= 0 {
		return nil, &ConstructionError{Reason: "max speed must be positive"}
	}

	tree := rtreego.NewTree(2, rtreeMinChildren, rtreeMaxChildren)
	byID := make(map[types.StopId]types.Stop, len(stops))
	for _, s := range stops {
		if !isFinite(float64(s.Lat)) || !isFinite(float64(s.Lon)) {
			return nil, &ConstructionError{Reason: "non-finite stop coordinates"}
		}
		tree.Insert(stopEntry{stop: s})
		byID[s.ID] = s
	}

	return &CrowFlyProvider{tree: tree, byID: byID, maxSpeedKmh: maxSpeedKmh}, nil
}

// WithinDuration returns every stop (excluding the origin itself) reachable
// within maxDuration at the provider's configured max speed.
func (p *CrowFlyProvider) WithinDuration(from types.StopId, maxDuration types.Duration) ([]Neighbor, error) {
	origin, ok := p.byID[from]
	if !ok {
		return nil, &ConstructionError{Reason: "unknown origin stop"}
	}
	if maxDuration <= 0 {
		return nil, nil
	}

	hours := float64(maxDuration) / float64(types.MillisPerSecond) / 3600.0
	maxDistanceKm := hours * p.maxSpeedKmh

	latDelta := maxDistanceKm / 111.0
	lonDelta := latDelta
	if cosLat := math.Cos(degToRad(float64(origin.Lat))); math.Abs(cosLat) > 1e-6 {
		lonDelta = maxDistanceKm / (111.0 * math.Abs(cosLat))
	}

	searchRect, err := rtreego.NewRect(
		rtreego.Point{float64(origin.Lat) - latDelta, float64(origin.Lon) - lonDelta},
		[]float64{2 * latDelta, 2 * lonDelta},
	)
	if err != nil {
		return nil, &ConstructionError{Reason: "degenerate search radius"}
	}

	var neighbors []Neighbor
	for _, candidate := range p.tree.SearchIntersect(searchRect) {
		entry := candidate.(stopEntry)
		if entry.stop.ID == from {
			continue
		}
		distKm := HaversineKm(origin, entry.stop)
		travelHours := distKm / p.maxSpeedKmh
		travelDuration := types.Duration(travelHours * 3600.0 * float64(types.MillisPerSecond))
		if travelDuration <= maxDuration {
			neighbors = append(neighbors, Neighbor{Stop: entry.stop.ID, Duration: travelDuration})
		}
	}
	return neighbors, nil
}

// HaversineKm returns the great-circle distance between two stops in
// kilometers.
func HaversineKm(a, b types.Stop) float64 {
	dLat := degToRad(float64(b.Lat) - float64(a.Lat))
	dLon := degToRad(float64(b.Lon) - float64(a.Lon))

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)

	h := sinLat*sinLat +
		math.Cos(degToRad(float64(a.Lat)))*math.Cos(degToRad(float64(b.Lat)))*sinLon*sinLon

	return 2 * EarthRadiusKm * math.Asin(math.Sqrt(h))
}

func degToRad(deg float64) float64 {
	return deg * (math.Pi / 180.0)
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
