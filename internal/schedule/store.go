package schedule

import (
	"database/sql"
	"fmt"
	"os"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// Store wraps the SQLite database holding an ingested schedule. During
// ingestion it lives in memory; during serving it is opened read-only
// from the cache file and closed again after each logical query, so a
// concurrent Persist can atomically replace the file between requests.
type Store struct {
	db *sql.DB
}

// NewMemory creates a fresh in-memory store with the full schema, ready
// for ingestion.
func NewMemory() (*Store, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open memory store: %w", err)
	}

	// Every pooled connection to :memory: would get its own empty
	// database, so the pool must stay at exactly one connection.
	db.SetMaxOpenConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Open opens an existing cache file read-only. It fails when the file
// does not exist rather than letting SQLite create an empty one.
func Open(path string) (*Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("stat cache file: %w", err)
	}

	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open cache file: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Persist copies the store's full contents into a temporary file next
// to path and atomically renames it over path. Readers opening path see
// either the old complete cache or the new complete cache, never a mix.
// On any failure the temporary file is removed and the previous cache
// file is left untouched.
func (s *Store) Persist(path string) error {
	tmpPath := path + ".tmp"
	_ = os.Remove(tmpPath)

	quoted := strings.ReplaceAll(tmpPath, "'", "''")
	if _, err := s.db.Exec(fmt.Sprintf("VACUUM INTO '%s';", quoted)); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("copy store to %s: %w", tmpPath, err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replace cache file: %w", err)
	}

	return nil
}

// Schema matches the Warsaw GTFS tables. Numeric columns are declared
// but every value arrives as CSV text; SQLite's loose typing does the
// coercion on read.
func createSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE agency(
			agency_id TEXT PRIMARY KEY,
			agency_name TEXT,
			agency_url TEXT,
			agency_timezone TEXT,
			agency_lang TEXT,
			agency_phone TEXT
		);`,
		`CREATE TABLE stops(
			stop_id TEXT PRIMARY KEY,
			stop_code TEXT,
			stop_name TEXT,
			stop_lat REAL,
			stop_lon REAL,
			zone_id TEXT
		);`,
		`CREATE TABLE routes(
			route_id TEXT PRIMARY KEY,
			agency_id TEXT,
			route_short_name TEXT,
			route_long_name TEXT,
			route_desc TEXT,
			route_type INTEGER,
			route_color TEXT,
			route_text_color TEXT,
			FOREIGN KEY (agency_id) REFERENCES agency(agency_id)
		);`,
		`CREATE TABLE trips(
			route_id TEXT,
			service_id TEXT,
			trip_id TEXT PRIMARY KEY,
			trip_headsign TEXT,
			direction_id INTEGER,
			shape_id TEXT,
			wheelchair_accessible INTEGER,
			brigade TEXT,
			FOREIGN KEY (route_id) REFERENCES routes(route_id),
			FOREIGN KEY (service_id) REFERENCES calendar(service_id)
		);`,
		`CREATE TABLE stop_times(
			trip_id TEXT,
			arrival_time TEXT,
			departure_time TEXT,
			stop_id TEXT,
			stop_sequence INTEGER,
			stop_headsign TEXT,
			pickup_type INTEGER,
			drop_off_type INTEGER,
			FOREIGN KEY (trip_id) REFERENCES trips(trip_id),
			FOREIGN KEY (stop_id) REFERENCES stops(stop_id)
		);`,
		`CREATE TABLE calendar(
			service_id TEXT PRIMARY KEY,
			monday INTEGER,
			tuesday INTEGER,
			wednesday INTEGER,
			thursday INTEGER,
			friday INTEGER,
			saturday INTEGER,
			sunday INTEGER,
			start_date TEXT,
			end_date TEXT
		);`,
		`CREATE TABLE calendar_dates(
			service_id TEXT,
			date TEXT,
			exception_type INTEGER,
			FOREIGN KEY (service_id) REFERENCES calendar(service_id)
		);`,
		`CREATE TABLE shapes(
			shape_id TEXT,
			shape_pt_lat REAL,
			shape_pt_lon REAL,
			shape_pt_sequence INTEGER
		);`,
		`CREATE TABLE feed_info(
			feed_publisher_name TEXT,
			feed_publisher_url TEXT,
			feed_lang TEXT,
			feed_start_date TEXT,
			feed_end_date TEXT
		);`,
		// Shape lookups are the hottest join, so shape_id gets the one
		// secondary index.
		`CREATE INDEX idx_shapes_shape_id ON shapes(shape_id);`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}
