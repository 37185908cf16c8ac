package realtime

import (
	"fmt"

	"github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"

	"wawtransit/internal/domain"
)

// Decode parses a GTFS-Realtime FeedMessage into per-vehicle position
// records. Malformed bytes fail the whole batch; there is no
// partial-decode recovery. Entities without a vehicle payload are
// ignored.
func Decode(data []byte) ([]*domain.VehiclePosition, error) {
	feed := &gtfs.FeedMessage{}
	if err := proto.Unmarshal(data, feed); err != nil {
		return nil, fmt.Errorf("decode realtime feed: %w", err)
	}

	positions := make([]*domain.VehiclePosition, 0, len(feed.GetEntity()))
	for _, entity := range feed.GetEntity() {
		vehicle := entity.GetVehicle()
		if vehicle == nil {
			continue
		}

		routeID := vehicle.GetTrip().GetRouteId()
		positions = append(positions, &domain.VehiclePosition{
			RouteID:             &routeID,
			TripID:              vehicle.GetTrip().GetTripId(),
			VehicleID:           vehicle.GetVehicle().GetId(),
			VehicleLabel:        vehicle.GetVehicle().GetLabel(),
			Latitude:            float64(vehicle.GetPosition().GetLatitude()),
			Longitude:           float64(vehicle.GetPosition().GetLongitude()),
			CurrentStopSequence: vehicle.GetCurrentStopSequence(),
		})
	}

	return positions, nil
}
