package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"wawtransit/internal/domain"
	"wawtransit/internal/memo"
	"wawtransit/internal/realtime"
	"wawtransit/internal/schedule"
)

const (
	positionsTTL = 1 * time.Second
	scheduleTTL  = 60 * time.Second
)

// Feed abstracts the realtime feed fetch so tests can stub it.
type Feed interface {
	Fetch(ctx context.Context) ([]byte, error)
}

type shapeKey struct {
	tripID   string
	reversed bool
}

// Service is the query surface over the schedule cache and the realtime
// feed. Every schedule lookup opens the cache file, queries and closes
// it again, so an atomic cache replacement between requests is always
// picked up; the memoizers in front keep that from happening more than
// once per freshness window.
type Service struct {
	cachePath string
	feed      Feed
	enricher  *realtime.Enricher
	logger    *slog.Logger

	positions *memo.Cache[struct{}, []*domain.VehiclePosition]
	shapes    *memo.Cache[shapeKey, [][2]float64]
	routeInfo *memo.Cache[string, *domain.RouteInfo]
	tripStops *memo.Cache[string, []domain.StopVisit]
	stops     *memo.Cache[struct{}, []domain.Stop]
	trips     *memo.Cache[string, *domain.TripDetail]
}

func New(cachePath string, feed Feed, clock memo.Clock, logger *slog.Logger) *Service {
	s := &Service{
		cachePath: cachePath,
		feed:      feed,
		logger:    logger.With("component", "transit_service"),

		positions: memo.New[struct{}, []*domain.VehiclePosition](positionsTTL, clock),
		shapes:    memo.New[shapeKey, [][2]float64](scheduleTTL, clock),
		routeInfo: memo.New[string, *domain.RouteInfo](scheduleTTL, clock),
		tripStops: memo.New[string, []domain.StopVisit](scheduleTTL, clock),
		stops:     memo.New[struct{}, []domain.Stop](scheduleTTL, clock),
		trips:     memo.New[string, *domain.TripDetail](scheduleTTL, clock),
	}
	s.enricher = realtime.NewEnricher(s, logger)
	return s
}

func (s *Service) withStore(fn func(*schedule.Store) error) error {
	store, err := schedule.Open(s.cachePath)
	if err != nil {
		return fmt.Errorf("open schedule cache: %w", err)
	}
	defer store.Close()
	return fn(store)
}

// CurrentPositions fetches and decodes the realtime feed (memoized for
// one second) and applies the requested enrichments. The cached decode
// result is copied before enrichment so per-request flags never bleed
// into the shared snapshot.
func (s *Service) CurrentPositions(ctx context.Context, opts realtime.Options) ([]*domain.VehiclePosition, error) {
	cached, err := s.positions.Get(struct{}{}, func() ([]*domain.VehiclePosition, error) {
		start := time.Now()
		data, err := s.feed.Fetch(ctx)
		if err != nil {
			return nil, fmt.Errorf("fetch realtime feed: %w", err)
		}
		positions, err := realtime.Decode(data)
		if err != nil {
			return nil, err
		}
		s.logger.Debug("refreshed realtime positions",
			"vehicles", len(positions),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return positions, nil
	})
	if err != nil {
		return nil, err
	}

	positions := make([]*domain.VehiclePosition, len(cached))
	for i, p := range cached {
		cp := *p
		positions[i] = &cp
	}

	if err := s.enricher.Enrich(positions, opts); err != nil {
		return nil, err
	}
	return positions, nil
}

// ShapePoints implements realtime.ScheduleLookup and serves the shape
// endpoint. Reversed pairs are (lon, lat) for GeoJSON output.
func (s *Service) ShapePoints(tripID string, reversed bool) ([][2]float64, error) {
	return s.shapes.Get(shapeKey{tripID: tripID, reversed: reversed}, func() ([][2]float64, error) {
		var points [][2]float64
		err := s.withStore(func(store *schedule.Store) error {
			var err error
			points, err = store.ShapePoints(tripID, reversed)
			return err
		})
		return points, err
	})
}

// RouteInfoByTrip implements realtime.ScheduleLookup. Unknown trips
// return (nil, nil).
func (s *Service) RouteInfoByTrip(tripID string) (*domain.RouteInfo, error) {
	return s.routeInfo.Get(tripID, func() (*domain.RouteInfo, error) {
		var info *domain.RouteInfo
		err := s.withStore(func(store *schedule.Store) error {
			var err error
			info, err = store.RouteInfoByTrip(tripID)
			return err
		})
		return info, err
	})
}

// StopsOnTrip returns the ordered stops for a trip, empty when unknown.
func (s *Service) StopsOnTrip(tripID string) ([]domain.StopVisit, error) {
	return s.tripStops.Get(tripID, func() ([]domain.StopVisit, error) {
		var visits []domain.StopVisit
		err := s.withStore(func(store *schedule.Store) error {
			var err error
			visits, err = store.StopsOnTrip(tripID)
			return err
		})
		return visits, err
	})
}

// AllStops returns the full stop table.
func (s *Service) AllStops() ([]domain.Stop, error) {
	return s.stops.Get(struct{}{}, func() ([]domain.Stop, error) {
		var stops []domain.Stop
		err := s.withStore(func(store *schedule.Store) error {
			var err error
			stops, err = store.AllStops()
			return err
		})
		return stops, err
	})
}

// TripDetails returns the nested trip/route/agency detail, nil when the
// trip is unknown.
func (s *Service) TripDetails(tripID string) (*domain.TripDetail, error) {
	return s.trips.Get(tripID, func() (*domain.TripDetail, error) {
		var detail *domain.TripDetail
		err := s.withStore(func(store *schedule.Store) error {
			var err error
			detail, err = store.TripDetails(tripID)
			return err
		})
		return detail, err
	})
}

// FeedValidity returns the loaded archive's validity range from
// feed_info, ok=false when the archive shipped without one.
func (s *Service) FeedValidity() (start, end string, ok bool, err error) {
	err = s.withStore(func(store *schedule.Store) error {
		var inner error
		start, end, ok, inner = store.FeedValidity()
		return inner
	})
	return start, end, ok, err
}

// Ready reports whether the schedule cache file opens and holds data.
func (s *Service) Ready() (bool, int) {
	var count int
	err := s.withStore(func(store *schedule.Store) error {
		var err error
		count, err = store.StopCount()
		return err
	})
	if err != nil {
		s.logger.Debug("readiness probe failed", "error", err)
		return false, 0
	}
	return count > 0, count
}
