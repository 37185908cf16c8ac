package domain

// RouteType distinguishes transport types in GTFS
type RouteType int

const (
	RouteTypeTram RouteType = 0
	RouteTypeBus  RouteType = 3
)

// String maps the GTFS route_type integer onto the labels served by the
// API. Warsaw publishes trams and buses; everything else degrades to
// "unknown".
func (t RouteType) String() string {
	switch t {
	case RouteTypeTram:
		return "tram"
	case RouteTypeBus:
		return "bus"
	default:
		return "unknown"
	}
}

// Stop represents a transit stop from GTFS
type Stop struct {
	ID   string  `json:"stop_id"`
	Code string  `json:"stop_code"`
	Name string  `json:"stop_name"`
	Lat  float64 `json:"stop_lat"`
	Lon  float64 `json:"stop_lon"`
	Zone string  `json:"zone_id"`
}

// RouteInfo is the projection returned when resolving a trip to its route.
type RouteInfo struct {
	TripID  string    `json:"trip_id"`
	RouteID string    `json:"route_id"`
	Type    RouteType `json:"route_type"`
}

// StopVisit is one scheduled stop along a trip, ordered by StopSequence.
type StopVisit struct {
	StopID        string  `json:"stop_id"`
	DepartureTime string  `json:"departure_time"`
	Name          string  `json:"stop_name"`
	Code          string  `json:"stop_code"`
	Lat           float64 `json:"stop_lat"`
	Lon           float64 `json:"stop_lon"`
	Zone          string  `json:"zone_id"`
	StopSequence  int     `json:"stop_sequence"`
	PickupType    int     `json:"pickup_type"`
	DropOffType   int     `json:"drop_off_type"`
}

// Agency represents the operator metadata carried in agency.txt.
type Agency struct {
	ID       string `json:"agency_id"`
	Name     string `json:"agency_name"`
	URL      string `json:"agency_url"`
	Timezone string `json:"agency_timezone"`
	Lang     string `json:"agency_lang"`
	Phone    string `json:"agency_phone"`
}

// RouteDetail is the route sub-object of a TripDetail. Agency is nil
// when the route's agency_id does not resolve.
type RouteDetail struct {
	ID        string    `json:"route_id"`
	ShortName string    `json:"route_short_name"`
	LongName  string    `json:"route_long_name"`
	Desc      string    `json:"route_desc"`
	Type      RouteType `json:"route_type"`
	Color     string    `json:"route_color"`
	TextColor string    `json:"route_text_color"`
	Agency    *Agency   `json:"agency"`
}

// TripDetail resolves a trip together with its route and agency.
// Route is nil when the trip's route_id does not resolve; the trip
// itself is still returned.
type TripDetail struct {
	ID                   string       `json:"trip_id"`
	ServiceID            string       `json:"service_id"`
	Headsign             string       `json:"trip_headsign"`
	DirectionID          int          `json:"direction_id"`
	ShapeID              string       `json:"shape_id"`
	WheelchairAccessible int          `json:"wheelchair_accessible"`
	Brigade              string       `json:"brigade"`
	Route                *RouteDetail `json:"route"`
}
