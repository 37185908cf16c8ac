package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"wawtransit/internal/cache"
	"wawtransit/internal/domain"
	"wawtransit/internal/realtime"
	"wawtransit/internal/service"
	"wawtransit/internal/version"
)

// TransitHandler exposes the query surface over HTTP. Absent entities
// serialize as null/empty payloads with a 200; decode and upstream
// fetch failures map to 502, cache failures to 500.
type TransitHandler struct {
	service *service.Service
	cache   *cache.RedisCache
	logger  *slog.Logger
}

func NewTransitHandler(svc *service.Service, redisCache *cache.RedisCache, logger *slog.Logger) *TransitHandler {
	return &TransitHandler{
		service: svc,
		cache:   redisCache,
		logger:  logger.With("handler", "transit"),
	}
}

type PositionsResponse struct {
	Positions  []*domain.VehiclePosition `json:"positions"`
	Count      int                       `json:"count"`
	ServerTime time.Time                 `json:"server_time"`
}

func (h *TransitHandler) CurrentPositions(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	opts := realtime.Options{
		RoutesInfo: boolParam(r, "routes_info"),
		Bearings:   boolParam(r, "bearings"),
	}

	positions, err := h.service.CurrentPositions(r.Context(), opts)
	if err != nil {
		h.logger.Error("CurrentPositions failed", "error", err)
		respondError(w, http.StatusBadGateway, "realtime feed unavailable")
		return
	}

	h.logger.Debug("CurrentPositions response",
		"count", len(positions),
		"routes_info", opts.RoutesInfo,
		"bearings", opts.Bearings,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	respondJSON(w, http.StatusOK, PositionsResponse{
		Positions:  positions,
		Count:      len(positions),
		ServerTime: time.Now(),
	})
}

// GeoJSON output for the shape endpoint.
type Geometry struct {
	Type        string       `json:"type"`
	Coordinates [][2]float64 `json:"coordinates"`
}

type Feature struct {
	Type     string   `json:"type"`
	Geometry Geometry `json:"geometry"`
}

type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

func (h *TransitHandler) GetShape(w http.ResponseWriter, r *http.Request) {
	tripID := r.PathValue("tripId")
	if tripID == "" {
		respondError(w, http.StatusBadRequest, "missing tripId parameter")
		return
	}

	geojson := boolParam(r, "geojson")
	points, err := h.service.ShapePoints(tripID, geojson)
	if err != nil {
		h.logger.Error("GetShape failed", "trip_id", tripID, "error", err)
		respondError(w, http.StatusInternalServerError, "schedule cache unavailable")
		return
	}

	if geojson {
		coords := points
		if coords == nil {
			coords = [][2]float64{}
		}
		respondJSON(w, http.StatusOK, FeatureCollection{
			Type: "FeatureCollection",
			Features: []Feature{{
				Type:     "Feature",
				Geometry: Geometry{Type: "LineString", Coordinates: coords},
			}},
		})
		return
	}

	if points == nil {
		points = [][2]float64{}
	}
	respondJSON(w, http.StatusOK, points)
}

func (h *TransitHandler) GetRouteInfo(w http.ResponseWriter, r *http.Request) {
	tripID := r.PathValue("tripId")
	if tripID == "" {
		respondError(w, http.StatusBadRequest, "missing tripId parameter")
		return
	}

	info, err := h.service.RouteInfoByTrip(tripID)
	if err != nil {
		h.logger.Error("GetRouteInfo failed", "trip_id", tripID, "error", err)
		respondError(w, http.StatusInternalServerError, "schedule cache unavailable")
		return
	}

	// Unknown trips serialize as null, not 404.
	respondJSON(w, http.StatusOK, info)
}

type StopsResponse struct {
	Stops []domain.Stop `json:"stops"`
	Count int           `json:"count"`
}

func (h *TransitHandler) ListStops(w http.ResponseWriter, r *http.Request) {
	if h.cache != nil {
		var cached []domain.Stop
		if ok, _ := h.cache.GetJSONCompressed(r.Context(), cache.KeyAllStops, &cached); ok {
			respondJSON(w, http.StatusOK, StopsResponse{Stops: cached, Count: len(cached)})
			return
		}
	}

	stops, err := h.service.AllStops()
	if err != nil {
		h.logger.Error("ListStops failed", "error", err)
		respondError(w, http.StatusInternalServerError, "schedule cache unavailable")
		return
	}
	if stops == nil {
		stops = []domain.Stop{}
	}

	respondJSON(w, http.StatusOK, StopsResponse{Stops: stops, Count: len(stops)})
}

type StopsOnTripResponse struct {
	TripID string             `json:"trip_id"`
	Stops  []domain.StopVisit `json:"stops"`
	Count  int                `json:"count"`
}

// Per-trip payloads only change on schedule ingestion, so an hour in
// the response cache is conservative.
const tripCacheTTL = time.Hour

func (h *TransitHandler) GetStopsOnTrip(w http.ResponseWriter, r *http.Request) {
	tripID := r.PathValue("tripId")
	if tripID == "" {
		respondError(w, http.StatusBadRequest, "missing tripId parameter")
		return
	}

	var resp StopsOnTripResponse
	if h.tryGetFromCache(r.Context(), cache.KeyStopsOnTrip(tripID), &resp) {
		respondJSON(w, http.StatusOK, resp)
		return
	}

	visits, err := h.service.StopsOnTrip(tripID)
	if err != nil {
		h.logger.Error("GetStopsOnTrip failed", "trip_id", tripID, "error", err)
		respondError(w, http.StatusInternalServerError, "schedule cache unavailable")
		return
	}
	if visits == nil {
		visits = []domain.StopVisit{}
	}

	resp = StopsOnTripResponse{
		TripID: tripID,
		Stops:  visits,
		Count:  len(visits),
	}
	h.storeInCache(r.Context(), cache.KeyStopsOnTrip(tripID), resp)
	respondJSON(w, http.StatusOK, resp)
}

func (h *TransitHandler) GetTripDetails(w http.ResponseWriter, r *http.Request) {
	tripID := r.PathValue("tripId")
	if tripID == "" {
		respondError(w, http.StatusBadRequest, "missing tripId parameter")
		return
	}

	var cached domain.TripDetail
	if h.tryGetFromCache(r.Context(), cache.KeyTripDetail(tripID), &cached) {
		respondJSON(w, http.StatusOK, &cached)
		return
	}

	detail, err := h.service.TripDetails(tripID)
	if err != nil {
		h.logger.Error("GetTripDetails failed", "trip_id", tripID, "error", err)
		respondError(w, http.StatusInternalServerError, "schedule cache unavailable")
		return
	}

	// Unknown trips are served as null and deliberately not cached.
	if detail != nil {
		h.storeInCache(r.Context(), cache.KeyTripDetail(tripID), detail)
	}
	respondJSON(w, http.StatusOK, detail)
}

func (h *TransitHandler) tryGetFromCache(ctx context.Context, key string, dest any) bool {
	if h.cache == nil {
		return false
	}
	found, err := h.cache.GetJSON(ctx, key, dest)
	return err == nil && found
}

func (h *TransitHandler) storeInCache(ctx context.Context, key string, value any) {
	if h.cache == nil {
		return
	}
	if err := h.cache.SetJSON(ctx, key, value, tripCacheTTL); err != nil {
		h.logger.Debug("response cache write failed", "key", key, "error", err)
	}
}

func (h *TransitHandler) GetVersion(w http.ResponseWriter, r *http.Request) {
	if h.cache != nil {
		var cached version.Info
		if ok, _ := h.cache.GetJSON(r.Context(), cache.KeyVersion, &cached); ok {
			respondJSON(w, http.StatusOK, cached)
			return
		}
	}
	respondJSON(w, http.StatusOK, version.Get())
}

func boolParam(r *http.Request, name string) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(name))
	return err == nil && v
}

type errorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Error: message})
}
