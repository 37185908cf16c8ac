package realtime

import (
	"testing"

	"github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
)

func buildFeed(t *testing.T, entities []*gtfs.FeedEntity) []byte {
	t.Helper()

	feed := &gtfs.FeedMessage{
		Header: &gtfs.FeedHeader{
			GtfsRealtimeVersion: proto.String("2.0"),
		},
		Entity: entities,
	}
	data, err := proto.Marshal(feed)
	require.NoError(t, err)
	return data
}

func vehicleEntity(id, tripID, routeID, vehicleID, label string, lat, lon float32, seq uint32) *gtfs.FeedEntity {
	return &gtfs.FeedEntity{
		Id: proto.String(id),
		Vehicle: &gtfs.VehiclePosition{
			Trip: &gtfs.TripDescriptor{
				TripId:  proto.String(tripID),
				RouteId: proto.String(routeID),
			},
			Vehicle: &gtfs.VehicleDescriptor{
				Id:    proto.String(vehicleID),
				Label: proto.String(label),
			},
			Position: &gtfs.Position{
				Latitude:  proto.Float32(lat),
				Longitude: proto.Float32(lon),
			},
			CurrentStopSequence: proto.Uint32(seq),
		},
	}
}

func TestDecode(t *testing.T) {
	data := buildFeed(t, []*gtfs.FeedEntity{
		vehicleEntity("e1", "trip-175-1", "175", "bus-4401", "175/5", 52.2297, 21.0122, 7),
		vehicleEntity("e2", "trip-17-1", "17", "tram-3001", "17/2", 52.2190, 21.0170, 3),
	})

	positions, err := Decode(data)
	require.NoError(t, err)
	require.Len(t, positions, 2)

	p := positions[0]
	require.NotNil(t, p.RouteID)
	assert.Equal(t, "175", *p.RouteID)
	assert.Equal(t, "trip-175-1", p.TripID)
	assert.Equal(t, "bus-4401", p.VehicleID)
	assert.Equal(t, "175/5", p.VehicleLabel)
	assert.InDelta(t, 52.2297, p.Latitude, 1e-4)
	assert.InDelta(t, 21.0122, p.Longitude, 1e-4)
	assert.Equal(t, uint32(7), p.CurrentStopSequence)
	assert.Nil(t, p.RouteType)
	assert.Nil(t, p.Bearing)
}

func TestDecodeSkipsNonVehicleEntities(t *testing.T) {
	data := buildFeed(t, []*gtfs.FeedEntity{
		{Id: proto.String("alert-only")},
		vehicleEntity("e1", "trip-175-1", "175", "bus-4401", "", 52.23, 21.01, 1),
	})

	positions, err := Decode(data)
	require.NoError(t, err)
	assert.Len(t, positions, 1)
}

func TestDecodeEmptyFeed(t *testing.T) {
	positions, err := Decode(buildFeed(t, nil))
	require.NoError(t, err)
	assert.Empty(t, positions)
}

func TestDecodeMalformedBytesFailsWholeBatch(t *testing.T) {
	_, err := Decode([]byte{0xff, 0xff, 0xff, 0x01, 0x02})
	require.Error(t, err)
}
