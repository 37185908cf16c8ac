package service

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"

	"wawtransit/internal/domain"
	"wawtransit/internal/realtime"
	"wawtransit/internal/schedule"
)

var testArchiveFiles = map[string]string{
	"agency.txt": "agency_id,agency_name,agency_url,agency_timezone,agency_lang,agency_phone\n" +
		"0,Warszawski Transport Publiczny,https://wtp.waw.pl,Europe/Warsaw,pl,19115\n",
	"stops.txt": "stop_id,stop_code,stop_name,stop_lat,stop_lon,zone_id\n" +
		"1001,01,Centrum,52.2297,21.0122,1\n" +
		"1002,02,Politechnika,52.2190,21.0170,1\n",
	"routes.txt": "route_id,agency_id,route_short_name,route_long_name,route_desc,route_type,route_color,route_text_color\n" +
		"175,0,175,Lotnisko Chopina,,3,FFD500,000000\n",
	"trips.txt": "route_id,service_id,trip_id,trip_headsign,direction_id,shape_id,wheelchair_accessible,brigade\n" +
		"175,D1,trip-175-1,Lotnisko Chopina,0,shape-175,1,5\n",
	"stop_times.txt": "trip_id,arrival_time,departure_time,stop_id,stop_sequence,stop_headsign,pickup_type,drop_off_type\n" +
		"trip-175-1,08:00:00,08:00:30,1001,1,,0,0\n" +
		"trip-175-1,08:05:00,08:05:30,1002,2,,0,0\n",
	"shapes.txt": "shape_id,shape_pt_lat,shape_pt_lon,shape_pt_sequence\n" +
		"shape-175,52.2297,21.0122,1\n" +
		"shape-175,52.2190,21.0170,2\n",
}

func writeTestCache(t *testing.T) string {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range testArchiveFiles {
		f, err := zw.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())

	reader, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)

	store, err := schedule.NewMemory()
	require.NoError(t, err)
	defer store.Close()

	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	require.NoError(t, schedule.NewLoader(logger).Load(store, reader))

	cachePath := filepath.Join(t.TempDir(), "gtfs_cache.db")
	require.NoError(t, store.Persist(cachePath))
	return cachePath
}

// stubFeed serves a canned realtime payload and counts fetches.
type stubFeed struct {
	mu      sync.Mutex
	data    []byte
	err     error
	fetches int
}

func (f *stubFeed) Fetch(ctx context.Context) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	return f.data, f.err
}

func (f *stubFeed) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

func realtimePayload(t *testing.T) []byte {
	t.Helper()

	feed := &gtfs.FeedMessage{
		Header: &gtfs.FeedHeader{GtfsRealtimeVersion: proto.String("2.0")},
		Entity: []*gtfs.FeedEntity{
			{
				Id: proto.String("e1"),
				Vehicle: &gtfs.VehiclePosition{
					Trip: &gtfs.TripDescriptor{
						TripId:  proto.String("trip-175-1"),
						RouteId: proto.String("175"),
					},
					Vehicle: &gtfs.VehicleDescriptor{
						Id:    proto.String("bus-4401"),
						Label: proto.String("175/5"),
					},
					Position: &gtfs.Position{
						Latitude:  proto.Float32(52.2297),
						Longitude: proto.Float32(21.0122),
					},
				},
			},
		},
	}
	data, err := proto.Marshal(feed)
	require.NoError(t, err)
	return data
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestService(t *testing.T, feed Feed) (*Service, *testClock) {
	t.Helper()
	clock := &testClock{now: time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC)}
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	return New(writeTestCache(t), feed, clock.Now, logger), clock
}

func TestCurrentPositionsMemoizedPerSecond(t *testing.T) {
	feed := &stubFeed{data: realtimePayload(t)}
	svc, clock := newTestService(t, feed)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		positions, err := svc.CurrentPositions(ctx, realtime.Options{})
		require.NoError(t, err)
		require.Len(t, positions, 1)
	}
	assert.Equal(t, 1, feed.fetchCount())

	clock.Advance(1100 * time.Millisecond)
	_, err := svc.CurrentPositions(ctx, realtime.Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, feed.fetchCount())
}

func TestCurrentPositionsEnrichment(t *testing.T) {
	feed := &stubFeed{data: realtimePayload(t)}
	svc, _ := newTestService(t, feed)
	ctx := context.Background()

	positions, err := svc.CurrentPositions(ctx, realtime.Options{RoutesInfo: true, Bearings: true})
	require.NoError(t, err)
	require.Len(t, positions, 1)

	p := positions[0]
	require.NotNil(t, p.RouteID)
	assert.Equal(t, "175", *p.RouteID)
	require.NotNil(t, p.RouteType)
	assert.Equal(t, "bus", *p.RouteType)
	require.NotNil(t, p.Bearing)
}

func TestCurrentPositionsEnrichmentDoesNotBleedIntoSnapshot(t *testing.T) {
	feed := &stubFeed{data: realtimePayload(t)}
	svc, _ := newTestService(t, feed)
	ctx := context.Background()

	enriched, err := svc.CurrentPositions(ctx, realtime.Options{RoutesInfo: true})
	require.NoError(t, err)
	require.NotNil(t, enriched[0].RouteType)

	// Same cached snapshot, enrichment off: the broadcast fields must
	// come back untouched.
	plain, err := svc.CurrentPositions(ctx, realtime.Options{})
	require.NoError(t, err)
	assert.Nil(t, plain[0].RouteType)
	assert.Equal(t, 1, feed.fetchCount())
}

func TestCurrentPositionsFeedErrorPropagates(t *testing.T) {
	feed := &stubFeed{err: errors.New("connection refused")}
	svc, _ := newTestService(t, feed)

	_, err := svc.CurrentPositions(context.Background(), realtime.Options{})
	require.Error(t, err)
}

func TestScheduleQueries(t *testing.T) {
	svc, _ := newTestService(t, &stubFeed{})

	points, err := svc.ShapePoints("trip-175-1", false)
	require.NoError(t, err)
	assert.Len(t, points, 2)

	info, err := svc.RouteInfoByTrip("trip-175-1")
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, "175", info.RouteID)
	assert.Equal(t, domain.RouteTypeBus, info.Type)

	info, err = svc.RouteInfoByTrip("no-such-trip")
	require.NoError(t, err)
	assert.Nil(t, info)

	stops, err := svc.AllStops()
	require.NoError(t, err)
	assert.Len(t, stops, 2)

	visits, err := svc.StopsOnTrip("trip-175-1")
	require.NoError(t, err)
	assert.Len(t, visits, 2)

	detail, err := svc.TripDetails("trip-175-1")
	require.NoError(t, err)
	require.NotNil(t, detail)
	require.NotNil(t, detail.Route)
	assert.Equal(t, "175", detail.Route.ID)
}

func TestScheduleQueriesMemoizedAcrossCacheRemoval(t *testing.T) {
	feed := &stubFeed{}
	clock := &testClock{now: time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC)}
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	cachePath := writeTestCache(t)
	svc := New(cachePath, feed, clock.Now, logger)

	_, err := svc.AllStops()
	require.NoError(t, err)

	// The cache file is opened per query; inside the TTL window the
	// memoized value is served without touching the file at all.
	require.NoError(t, os.Remove(cachePath))
	stops, err := svc.AllStops()
	require.NoError(t, err)
	assert.Len(t, stops, 2)

	clock.Advance(61 * time.Second)
	_, err = svc.AllStops()
	require.Error(t, err)
}

func TestReady(t *testing.T) {
	svc, _ := newTestService(t, &stubFeed{})

	ready, stops := svc.Ready()
	assert.True(t, ready)
	assert.Equal(t, 2, stops)
}

func TestReadyMissingCache(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	svc := New(filepath.Join(t.TempDir(), "missing.db"), &stubFeed{}, time.Now, logger)

	ready, _ := svc.Ready()
	assert.False(t, ready)
}
