package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/dan1elw/LARA/internal/geo"
	"github.com/dan1elw/LARA/internal/tracking"
	"github.com/dan1elw/LARA/pkg/logger"
)

// FlightRecord is the API-facing view of one persisted flight session.
type FlightRecord struct {
	ID            string    `json:"id"`
	ICAO24        string    `json:"icao24"`
	Callsign      string    `json:"callsign"`
	OriginCountry string    `json:"origin_country,omitempty"`
	FirstSeen     time.Time `json:"first_seen"`
	LastSeen      time.Time `json:"last_seen"`
	MinDistanceKM *float64  `json:"min_distance_km,omitempty"`
	MaxAltitudeM  *float64  `json:"max_altitude_m,omitempty"`
	MinAltitudeM  *float64  `json:"min_altitude_m,omitempty"`
	AvgVelocityMS *float64  `json:"avg_velocity_ms,omitempty"`
	PositionCount int       `json:"position_count"`
}

// PositionRecord is the API-facing view of one persisted position sample.
type PositionRecord struct {
	Timestamp          time.Time `json:"timestamp"`
	Lat                *float64  `json:"lat,omitempty"`
	Lon                *float64  `json:"lon,omitempty"`
	AltitudeM          *float64  `json:"altitude_m,omitempty"`
	GeoAltitudeM       *float64  `json:"geo_altitude_m,omitempty"`
	VelocityMS         *float64  `json:"velocity_ms,omitempty"`
	HeadingDeg         *float64  `json:"heading_deg,omitempty"`
	VerticalRateMS     *float64  `json:"vertical_rate_ms,omitempty"`
	DistanceFromHomeKM *float64  `json:"distance_from_home_km,omitempty"`
	OnGround           bool      `json:"on_ground"`
	Squawk             string    `json:"squawk,omitempty"`
}

// Storage is the SQLite persistence layer for sessions, positions and
// analysis results. SQLite allows a single writer, so the pool is capped at
// one connection.
type Storage struct {
	db                *sql.DB
	spheroid          geo.Spheroid
	home              geo.Point
	logger            *logger.Logger
	maxPositionsInAPI int
}

// New opens (or creates) the database at dbPath and initializes the schema.
func New(dbPath string, spheroid geo.Spheroid, home geo.Point, maxPositionsInAPI int, log *logger.Logger) (*Storage, error) {
	storageLogger := log.Named("sqlite")

	storageLogger.Info("Initializing SQLite storage",
		logger.String("path", dbPath))

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA cache_size=10000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if err := initSchema(db, storageLogger); err != nil {
		db.Close()
		return nil, err
	}

	return &Storage{
		db:                db,
		spheroid:          spheroid,
		home:              home,
		logger:            storageLogger,
		maxPositionsInAPI: maxPositionsInAPI,
	}, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func initSchema(db *sql.DB, log *logger.Logger) error {
	log.Info("Initializing database schema")

	statements := []string{
		`CREATE TABLE IF NOT EXISTS flights (
			id TEXT PRIMARY KEY,
			icao24 TEXT NOT NULL,
			callsign TEXT,
			origin_country TEXT,
			first_seen TIMESTAMP NOT NULL,
			last_seen TIMESTAMP NOT NULL,
			min_distance_km REAL,
			max_altitude_m REAL,
			min_altitude_m REAL,
			avg_velocity_ms REAL,
			position_count INTEGER DEFAULT 0,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS positions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			flight_id TEXT NOT NULL,
			timestamp TIMESTAMP NOT NULL,
			latitude REAL,
			longitude REAL,
			altitude_m REAL,
			geo_altitude_m REAL,
			velocity_ms REAL,
			heading REAL,
			vertical_rate_ms REAL,
			distance_from_home_km REAL,
			on_ground BOOLEAN,
			squawk TEXT,
			FOREIGN KEY (flight_id) REFERENCES flights(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS daily_stats (
			date DATE PRIMARY KEY,
			total_flights INTEGER,
			total_positions INTEGER,
			avg_altitude_m REAL,
			min_distance_km REAL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS analysis_runs (
			id TEXT PRIMARY KEY,
			generated_at TIMESTAMP NOT NULL,
			session_count INTEGER,
			corridor_count INTEGER,
			pattern_count INTEGER,
			elapsed_ms INTEGER,
			data TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_flights_icao24 ON flights(icao24)`,
		`CREATE INDEX IF NOT EXISTS idx_flights_callsign ON flights(callsign)`,
		`CREATE INDEX IF NOT EXISTS idx_flights_first_seen ON flights(first_seen)`,
		`CREATE INDEX IF NOT EXISTS idx_positions_flight_id ON positions(flight_id)`,
		`CREATE INDEX IF NOT EXISTS idx_positions_timestamp ON positions(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_analysis_runs_generated_at ON analysis_runs(generated_at)`,
	}
	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	return nil
}

// SaveSession persists one sealed session and its positions in a single
// transaction. Saving the same session ID again replaces the earlier row,
// which keeps replays idempotent.
func (s *Storage) SaveSession(sess *tracking.FlightSession) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	originCountry := ""
	if len(sess.Samples) > 0 {
		originCountry = sess.Samples[0].OriginCountry
	}

	if _, err := tx.Exec(`
		INSERT OR REPLACE INTO flights
			(id, icao24, callsign, origin_country, first_seen, last_seen,
			 min_distance_km, max_altitude_m, min_altitude_m, avg_velocity_ms, position_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.ICAO24, sess.Callsign, originCountry,
		sess.FirstSeen.UTC().Format(time.RFC3339), sess.LastSeen.UTC().Format(time.RFC3339),
		sess.Summary.MinDistanceKM, sess.Summary.MaxAltitudeM,
		sess.Summary.MinAltitudeM, sess.Summary.MeanVelocityMS,
		sess.Summary.SampleCount,
	); err != nil {
		return fmt.Errorf("failed to insert flight %s: %w", sess.ID, err)
	}

	if _, err := tx.Exec(`DELETE FROM positions WHERE flight_id = ?`, sess.ID); err != nil {
		return fmt.Errorf("failed to clear positions for %s: %w", sess.ID, err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO positions
			(flight_id, timestamp, latitude, longitude, altitude_m, geo_altitude_m,
			 velocity_ms, heading, vertical_rate_ms, distance_from_home_km, on_ground, squawk)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare position insert: %w", err)
	}
	defer stmt.Close()

	for _, sample := range sess.Samples {
		var distance *float64
		if p, ok := sample.Position(); ok {
			d := s.spheroid.DistanceKM(s.home, p)
			distance = &d
		}
		if _, err := stmt.Exec(
			sess.ID, sample.Timestamp.UTC().Format(time.RFC3339),
			sample.Lat, sample.Lon, sample.BaroAltitudeM, sample.GeoAltitudeM,
			sample.VelocityMS, sample.HeadingDeg, sample.VerticalRateMS,
			distance, sample.OnGround, nullableString(sample.Squawk),
		); err != nil {
			return fmt.Errorf("failed to insert position for %s: %w", sess.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit session %s: %w", sess.ID, err)
	}

	s.logger.Debug("Persisted flight session",
		logger.String("id", sess.ID),
		logger.Int("positions", sess.Summary.SampleCount))
	return nil
}

// ListFlights returns the most recent flights, newest first.
func (s *Storage) ListFlights(limit int) ([]FlightRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(`
		SELECT id, icao24, callsign, origin_country, first_seen, last_seen,
		       min_distance_km, max_altitude_m, min_altitude_m, avg_velocity_ms, position_count
		FROM flights
		ORDER BY first_seen DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query flights: %w", err)
	}
	defer rows.Close()

	flights := make([]FlightRecord, 0)
	for rows.Next() {
		rec, err := scanFlight(rows)
		if err != nil {
			return nil, err
		}
		flights = append(flights, rec)
	}
	return flights, rows.Err()
}

// GetFlight returns one flight by session ID, or sql.ErrNoRows.
func (s *Storage) GetFlight(id string) (FlightRecord, error) {
	row := s.db.QueryRow(`
		SELECT id, icao24, callsign, origin_country, first_seen, last_seen,
		       min_distance_km, max_altitude_m, min_altitude_m, avg_velocity_ms, position_count
		FROM flights WHERE id = ?`, id)
	return scanFlight(row)
}

// GetPositions returns the positions of one flight in time order, capped at
// the configured API maximum.
func (s *Storage) GetPositions(flightID string) ([]PositionRecord, error) {
	rows, err := s.db.Query(`
		SELECT timestamp, latitude, longitude, altitude_m, geo_altitude_m,
		       velocity_ms, heading, vertical_rate_ms, distance_from_home_km, on_ground, squawk
		FROM positions
		WHERE flight_id = ?
		ORDER BY timestamp ASC
		LIMIT ?`, flightID, s.maxPositionsInAPI)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	positions := make([]PositionRecord, 0)
	for rows.Next() {
		var rec PositionRecord
		var ts string
		var onGround sql.NullBool
		var squawk sql.NullString
		if err := rows.Scan(&ts, &rec.Lat, &rec.Lon, &rec.AltitudeM, &rec.GeoAltitudeM,
			&rec.VelocityMS, &rec.HeadingDeg, &rec.VerticalRateMS,
			&rec.DistanceFromHomeKM, &onGround, &squawk); err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		rec.Timestamp, err = time.Parse(time.RFC3339, ts)
		if err != nil {
			return nil, fmt.Errorf("invalid position timestamp %q: %w", ts, err)
		}
		rec.OnGround = onGround.Valid && onGround.Bool
		rec.Squawk = squawk.String
		positions = append(positions, rec)
	}
	return positions, rows.Err()
}

// LoadSessions rebuilds the session batch for analysis from the flights and
// positions persisted since the cutoff.
func (s *Storage) LoadSessions(since time.Time) ([]*tracking.FlightSession, error) {
	rows, err := s.db.Query(`
		SELECT id, icao24, callsign, origin_country, first_seen, last_seen,
		       min_distance_km, max_altitude_m, min_altitude_m, avg_velocity_ms, position_count
		FROM flights
		WHERE first_seen >= ?
		ORDER BY icao24, callsign, first_seen`, since.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("failed to query flights: %w", err)
	}
	defer rows.Close()

	sessions := make([]*tracking.FlightSession, 0)
	for rows.Next() {
		rec, err := scanFlight(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, &tracking.FlightSession{
			ID:        rec.ID,
			ICAO24:    rec.ICAO24,
			Callsign:  rec.Callsign,
			FirstSeen: rec.FirstSeen,
			LastSeen:  rec.LastSeen,
			Summary: tracking.SessionSummary{
				SampleCount:    rec.PositionCount,
				MinDistanceKM:  rec.MinDistanceKM,
				MaxAltitudeM:   rec.MaxAltitudeM,
				MinAltitudeM:   rec.MinAltitudeM,
				MeanVelocityMS: rec.AvgVelocityMS,
			},
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, sess := range sessions {
		if err := s.loadSamples(sess); err != nil {
			return nil, err
		}
	}
	return sessions, nil
}

func (s *Storage) loadSamples(sess *tracking.FlightSession) error {
	rows, err := s.db.Query(`
		SELECT timestamp, latitude, longitude, altitude_m, geo_altitude_m,
		       velocity_ms, heading, vertical_rate_ms, on_ground, squawk
		FROM positions
		WHERE flight_id = ?
		ORDER BY timestamp ASC`, sess.ID)
	if err != nil {
		return fmt.Errorf("failed to query positions for %s: %w", sess.ID, err)
	}
	defer rows.Close()

	for rows.Next() {
		sample := tracking.PositionSample{
			ICAO24:   sess.ICAO24,
			Callsign: sess.Callsign,
		}
		var ts string
		var onGround sql.NullBool
		var squawk sql.NullString
		if err := rows.Scan(&ts, &sample.Lat, &sample.Lon, &sample.BaroAltitudeM,
			&sample.GeoAltitudeM, &sample.VelocityMS, &sample.HeadingDeg,
			&sample.VerticalRateMS, &onGround, &squawk); err != nil {
			return fmt.Errorf("failed to scan sample: %w", err)
		}
		sample.Timestamp, err = time.Parse(time.RFC3339, ts)
		if err != nil {
			return fmt.Errorf("invalid sample timestamp %q: %w", ts, err)
		}
		sample.OnGround = onGround.Valid && onGround.Bool
		sample.Squawk = squawk.String
		sess.Samples = append(sess.Samples, sample)
	}
	return rows.Err()
}

// scanner covers both sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanFlight(row scanner) (FlightRecord, error) {
	var rec FlightRecord
	var callsign, originCountry sql.NullString
	var firstSeen, lastSeen string
	if err := row.Scan(&rec.ID, &rec.ICAO24, &callsign, &originCountry,
		&firstSeen, &lastSeen, &rec.MinDistanceKM, &rec.MaxAltitudeM,
		&rec.MinAltitudeM, &rec.AvgVelocityMS, &rec.PositionCount); err != nil {
		return rec, err
	}
	rec.Callsign = callsign.String
	rec.OriginCountry = originCountry.String

	var err error
	if rec.FirstSeen, err = time.Parse(time.RFC3339, firstSeen); err != nil {
		return rec, fmt.Errorf("invalid first_seen %q: %w", firstSeen, err)
	}
	if rec.LastSeen, err = time.Parse(time.RFC3339, lastSeen); err != nil {
		return rec, fmt.Errorf("invalid last_seen %q: %w", lastSeen, err)
	}
	return rec, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
