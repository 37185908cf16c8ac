package realtime

import (
	"log/slog"
	"math"

	"wawtransit/internal/domain"
)

// ScheduleLookup is the slice of the schedule query engine the enricher
// needs. Not-found is (nil, nil) / empty, never an error.
type ScheduleLookup interface {
	RouteInfoByTrip(tripID string) (*domain.RouteInfo, error)
	ShapePoints(tripID string, reversed bool) ([][2]float64, error)
}

// Options selects which enrichments to run, per request.
type Options struct {
	RoutesInfo bool
	Bearings   bool
}

// Enricher attaches schedule-derived route metadata and a computed
// heading to decoded vehicle positions.
type Enricher struct {
	lookup ScheduleLookup
	logger *slog.Logger
}

func NewEnricher(lookup ScheduleLookup, logger *slog.Logger) *Enricher {
	return &Enricher{
		lookup: lookup,
		logger: logger.With("component", "position_enricher"),
	}
}

// Enrich mutates positions in place. Unresolvable trips get null route
// fields and a null bearing; only genuine lookup failures return an
// error.
func (e *Enricher) Enrich(positions []*domain.VehiclePosition, opts Options) error {
	if !opts.RoutesInfo && !opts.Bearings {
		return nil
	}

	for _, pos := range positions {
		if opts.RoutesInfo {
			if err := e.attachRouteInfo(pos); err != nil {
				return err
			}
		}
		if opts.Bearings {
			if err := e.attachBearing(pos); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Enricher) attachRouteInfo(pos *domain.VehiclePosition) error {
	info, err := e.lookup.RouteInfoByTrip(pos.TripID)
	if err != nil {
		return err
	}
	if info == nil {
		e.logger.Debug("no route resolves for trip", "trip_id", pos.TripID)
		pos.RouteID = nil
		pos.RouteType = nil
		return nil
	}

	routeType := info.Type.String()
	pos.RouteID = &info.RouteID
	pos.RouteType = &routeType
	return nil
}

func (e *Enricher) attachBearing(pos *domain.VehiclePosition) error {
	points, err := e.lookup.ShapePoints(pos.TripID, false)
	if err != nil {
		return err
	}
	pos.Bearing = ComputeBearing(pos.Latitude, pos.Longitude, points)
	return nil
}

// ComputeBearing derives a heading from the two shape points nearest
// the vehicle. Nearness is straight Euclidean distance in lat/lon
// degree space; at street scale the flat-plane approximation is enough
// and geodesic distance would be wasted work. The selected pair is then
// re-ordered ascending by raw (lat, lon) comparison, not by which point
// was nearer, so the result does not depend on scan order. Fewer than
// two shape points yield nil.
func ComputeBearing(lat, lon float64, points [][2]float64) *float64 {
	if len(points) < 2 {
		return nil
	}

	first, second := -1, -1
	firstDist, secondDist := math.Inf(1), math.Inf(1)
	for i, p := range points {
		d := euclidean(lat, lon, p[0], p[1])
		switch {
		case d < firstDist:
			second, secondDist = first, firstDist
			first, firstDist = i, d
		case d < secondDist:
			second, secondDist = i, d
		}
	}

	a, b := points[first], points[second]
	if b[0] < a[0] || (b[0] == a[0] && b[1] < a[1]) {
		a, b = b, a
	}

	bearing := initialBearing(a[0], a[1], b[0], b[1])
	return &bearing
}

func euclidean(lat1, lon1, lat2, lon2 float64) float64 {
	return math.Hypot(lat1-lat2, lon1-lon2)
}

// initialBearing is the standard atan2-based forward azimuth between
// two coordinates, normalized to [0, 360) degrees.
func initialBearing(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	deltaLambda := (lon2 - lon1) * math.Pi / 180

	y := math.Sin(deltaLambda) * math.Cos(phi2)
	x := math.Cos(phi1)*math.Sin(phi2) - math.Sin(phi1)*math.Cos(phi2)*math.Cos(deltaLambda)

	degrees := math.Atan2(y, x) * 180 / math.Pi
	return math.Mod(degrees+360, 360)
}
