package domain

// VehiclePosition is one vehicle entity decoded from the realtime feed.
// It lives only for the duration of a request: decoded, optionally
// enriched, serialized, discarded.
//
// RouteID starts as the id broadcast by the feed (which may be empty).
// When route-info enrichment runs it is replaced by the id resolved from
// the schedule, or set to null when the trip resolves to no route.
type VehiclePosition struct {
	RouteID             *string  `json:"route_id"`
	TripID              string   `json:"trip_id"`
	VehicleID           string   `json:"vehicle_id"`
	VehicleLabel        string   `json:"vehicle_label"`
	Latitude            float64  `json:"latitude"`
	Longitude           float64  `json:"longitude"`
	CurrentStopSequence uint32   `json:"current_stop_sequence"`
	RouteType           *string  `json:"route_type,omitempty"`
	Bearing             *float64 `json:"bearing,omitempty"`
}
