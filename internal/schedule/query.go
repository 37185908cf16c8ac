package schedule

import (
	"database/sql"
	"fmt"

	"wawtransit/internal/domain"
)

// ShapePoints returns the ordered polyline for the trip's shape as
// (lat, lon) pairs, or (lon, lat) pairs when reversed is set (GeoJSON
// coordinate order). A trip without a shape yields an empty slice.
func (s *Store) ShapePoints(tripID string, reversed bool) ([][2]float64, error) {
	columns := "shapes.shape_pt_lat, shapes.shape_pt_lon"
	if reversed {
		columns = "shapes.shape_pt_lon, shapes.shape_pt_lat"
	}

	rows, err := s.db.Query(fmt.Sprintf(`
		SELECT %s
		FROM shapes
		JOIN trips ON shapes.shape_id = trips.shape_id
		WHERE trips.trip_id = ?
		ORDER BY shapes.shape_pt_sequence ASC;
	`, columns), tripID)
	if err != nil {
		return nil, fmt.Errorf("query shape points: %w", err)
	}
	defer rows.Close()

	var points [][2]float64
	for rows.Next() {
		var a, b float64
		if err := rows.Scan(&a, &b); err != nil {
			return nil, fmt.Errorf("scan shape point: %w", err)
		}
		points = append(points, [2]float64{a, b})
	}
	return points, rows.Err()
}

// RouteInfoByTrip resolves a trip to its route id and type. A trip with
// no matching route returns (nil, nil), not an error.
func (s *Store) RouteInfoByTrip(tripID string) (*domain.RouteInfo, error) {
	row := s.db.QueryRow(`
		SELECT trips.trip_id, routes.route_id, routes.route_type
		FROM routes
		JOIN trips ON routes.route_id = trips.route_id
		WHERE trips.trip_id = ?
		LIMIT 1;
	`, tripID)

	var info domain.RouteInfo
	var routeType sql.NullInt64
	err := row.Scan(&info.TripID, &info.RouteID, &routeType)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query route info: %w", err)
	}
	info.Type = domain.RouteType(routeType.Int64)
	return &info, nil
}

// StopsOnTrip returns the trip's stops joined with their stop_times
// rows, ordered by stop sequence. An unknown trip yields an empty slice.
func (s *Store) StopsOnTrip(tripID string) ([]domain.StopVisit, error) {
	rows, err := s.db.Query(`
		SELECT stops.stop_id, stop_times.departure_time, stops.stop_name,
			stops.stop_code, stops.stop_lat, stops.stop_lon, stops.zone_id,
			stop_times.stop_sequence, stop_times.pickup_type, stop_times.drop_off_type
		FROM stop_times
		JOIN stops ON stops.stop_id = stop_times.stop_id
		WHERE stop_times.trip_id = ?
		ORDER BY stop_times.stop_sequence ASC;
	`, tripID)
	if err != nil {
		return nil, fmt.Errorf("query stops on trip: %w", err)
	}
	defer rows.Close()

	var visits []domain.StopVisit
	for rows.Next() {
		var v domain.StopVisit
		var zone, departure sql.NullString
		var pickup, dropOff sql.NullInt64
		if err := rows.Scan(&v.StopID, &departure, &v.Name, &v.Code,
			&v.Lat, &v.Lon, &zone, &v.StopSequence, &pickup, &dropOff); err != nil {
			return nil, fmt.Errorf("scan stop visit: %w", err)
		}
		v.DepartureTime = departure.String
		v.Zone = zone.String
		v.PickupType = int(pickup.Int64)
		v.DropOffType = int(dropOff.Int64)
		visits = append(visits, v)
	}
	return visits, rows.Err()
}

// AllStops returns the full stop table projection.
func (s *Store) AllStops() ([]domain.Stop, error) {
	rows, err := s.db.Query(`
		SELECT stop_id, stop_code, stop_name, stop_lat, stop_lon, zone_id FROM stops;
	`)
	if err != nil {
		return nil, fmt.Errorf("query stops: %w", err)
	}
	defer rows.Close()

	var stops []domain.Stop
	for rows.Next() {
		var stop domain.Stop
		var code, zone sql.NullString
		if err := rows.Scan(&stop.ID, &code, &stop.Name, &stop.Lat, &stop.Lon, &zone); err != nil {
			return nil, fmt.Errorf("scan stop: %w", err)
		}
		stop.Code = code.String
		stop.Zone = zone.String
		stops = append(stops, stop)
	}
	return stops, rows.Err()
}

// TripDetails resolves Trip -> Route -> Agency as a nested structure.
// An unknown trip returns (nil, nil). Dangling route or agency
// references leave the corresponding sub-object nil.
func (s *Store) TripDetails(tripID string) (*domain.TripDetail, error) {
	row := s.db.QueryRow(`
		SELECT trip_id, route_id, service_id, trip_headsign, direction_id,
			shape_id, wheelchair_accessible, brigade
		FROM trips
		WHERE trip_id = ?
		LIMIT 1;
	`, tripID)

	var detail domain.TripDetail
	var routeID, serviceID, headsign, shapeID, brigade sql.NullString
	var direction, wheelchair sql.NullInt64
	err := row.Scan(&detail.ID, &routeID, &serviceID, &headsign,
		&direction, &shapeID, &wheelchair, &brigade)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query trip: %w", err)
	}

	detail.ServiceID = serviceID.String
	detail.Headsign = headsign.String
	detail.DirectionID = int(direction.Int64)
	detail.ShapeID = shapeID.String
	detail.WheelchairAccessible = int(wheelchair.Int64)
	detail.Brigade = brigade.String

	if routeID.Valid && routeID.String != "" {
		route, err := s.routeDetail(routeID.String)
		if err != nil {
			return nil, err
		}
		detail.Route = route
	}

	return &detail, nil
}

func (s *Store) routeDetail(routeID string) (*domain.RouteDetail, error) {
	row := s.db.QueryRow(`
		SELECT route_id, agency_id, route_short_name, route_long_name,
			route_desc, route_type, route_color, route_text_color
		FROM routes
		WHERE route_id = ?
		LIMIT 1;
	`, routeID)

	var route domain.RouteDetail
	var agencyID, shortName, longName, desc, color, textColor sql.NullString
	var routeType sql.NullInt64
	err := row.Scan(&route.ID, &agencyID, &shortName, &longName,
		&desc, &routeType, &color, &textColor)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query route: %w", err)
	}

	route.ShortName = shortName.String
	route.LongName = longName.String
	route.Desc = desc.String
	route.Type = domain.RouteType(routeType.Int64)
	route.Color = color.String
	route.TextColor = textColor.String

	if agencyID.Valid && agencyID.String != "" {
		agency, err := s.agencyDetail(agencyID.String)
		if err != nil {
			return nil, err
		}
		route.Agency = agency
	}

	return &route, nil
}

func (s *Store) agencyDetail(agencyID string) (*domain.Agency, error) {
	row := s.db.QueryRow(`
		SELECT agency_id, agency_name, agency_url, agency_timezone,
			agency_lang, agency_phone
		FROM agency
		WHERE agency_id = ?
		LIMIT 1;
	`, agencyID)

	var agency domain.Agency
	var name, url, tz, lang, phone sql.NullString
	err := row.Scan(&agency.ID, &name, &url, &tz, &lang, &phone)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query agency: %w", err)
	}

	agency.Name = name.String
	agency.URL = url.String
	agency.Timezone = tz.String
	agency.Lang = lang.String
	agency.Phone = phone.String
	return &agency, nil
}

// FeedValidity returns the archive's validity date range from feed_info,
// or ok=false when the table is empty.
func (s *Store) FeedValidity() (start, end string, ok bool, err error) {
	row := s.db.QueryRow(`
		SELECT feed_start_date, feed_end_date FROM feed_info LIMIT 1;
	`)
	var startDate, endDate sql.NullString
	scanErr := row.Scan(&startDate, &endDate)
	if scanErr == sql.ErrNoRows {
		return "", "", false, nil
	}
	if scanErr != nil {
		return "", "", false, fmt.Errorf("query feed info: %w", scanErr)
	}
	return startDate.String, endDate.String, true, nil
}

// StopCount reports how many stops the store holds. Readiness checks
// use it to distinguish an empty cache from a loaded one.
func (s *Store) StopCount() (int, error) {
	row := s.db.QueryRow(`SELECT COUNT(*) FROM stops;`)
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("count stops: %w", err)
	}
	return n, nil
}
