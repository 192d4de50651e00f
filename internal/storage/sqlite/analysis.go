package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dan1elw/LARA/internal/analysis"
	"github.com/dan1elw/LARA/pkg/logger"
)

// ErrNoAnalysisRun is returned when no analysis run has been persisted yet.
var ErrNoAnalysisRun = errors.New("no analysis run stored")

// SaveAnalysisRun persists one analysis result. The full result is stored as
// a JSON document; the summary columns exist for cheap listing queries.
func (s *Storage) SaveAnalysisRun(result *analysis.Result) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode analysis run %s: %w", result.RunID, err)
	}

	if _, err := s.db.Exec(`
		INSERT INTO analysis_runs
			(id, generated_at, session_count, corridor_count, pattern_count, elapsed_ms, data)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		result.RunID, result.GeneratedAt.UTC().Format(time.RFC3339),
		result.Sessions, len(result.Corridors), len(result.Patterns),
		result.Elapsed.Milliseconds(), string(data),
	); err != nil {
		return fmt.Errorf("failed to insert analysis run %s: %w", result.RunID, err)
	}

	s.logger.Info("Persisted analysis run",
		logger.String("run_id", result.RunID),
		logger.Int("corridors", len(result.Corridors)),
		logger.Int("patterns", len(result.Patterns)))
	return nil
}

// LatestAnalysisRun returns the most recently generated run, or
// ErrNoAnalysisRun when none exists.
func (s *Storage) LatestAnalysisRun() (*analysis.Result, error) {
	var data string
	err := s.db.QueryRow(`
		SELECT data FROM analysis_runs
		ORDER BY generated_at DESC
		LIMIT 1`).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoAnalysisRun
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest analysis run: %w", err)
	}

	var result analysis.Result
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		return nil, fmt.Errorf("failed to decode analysis run: %w", err)
	}
	return &result, nil
}

// UpsertDailyStats replaces the persisted daily aggregates with the given
// recomputed set. Daily stats are projections, so overwriting is safe.
func (s *Storage) UpsertDailyStats(days []analysis.DailyStatistics) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO daily_stats (date, total_flights, total_positions, avg_altitude_m, min_distance_km, updated_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(date) DO UPDATE SET
			total_flights = excluded.total_flights,
			total_positions = excluded.total_positions,
			avg_altitude_m = excluded.avg_altitude_m,
			min_distance_km = excluded.min_distance_km,
			updated_at = CURRENT_TIMESTAMP`)
	if err != nil {
		return fmt.Errorf("failed to prepare daily stats upsert: %w", err)
	}
	defer stmt.Close()

	for _, day := range days {
		if _, err := stmt.Exec(day.Date, day.SessionCount, day.PositionCount,
			day.MeanAltitudeM, day.MinDistanceKM); err != nil {
			return fmt.Errorf("failed to upsert daily stats for %s: %w", day.Date, err)
		}
	}
	return tx.Commit()
}

// DailyStats returns the persisted daily aggregates in ascending date order.
func (s *Storage) DailyStats() ([]analysis.DailyStatistics, error) {
	rows, err := s.db.Query(`
		SELECT date, total_flights, total_positions, avg_altitude_m, min_distance_km
		FROM daily_stats
		ORDER BY date ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily stats: %w", err)
	}
	defer rows.Close()

	days := make([]analysis.DailyStatistics, 0)
	for rows.Next() {
		var day analysis.DailyStatistics
		if err := rows.Scan(&day.Date, &day.SessionCount, &day.PositionCount,
			&day.MeanAltitudeM, &day.MinDistanceKM); err != nil {
			return nil, fmt.Errorf("failed to scan daily stats: %w", err)
		}
		days = append(days, day)
	}
	return days, rows.Err()
}
