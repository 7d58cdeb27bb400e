// README: Spots store backed by Postgres heat_map_cells and user_visits.
package spots

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tenkap/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// PopularCells returns cells for the weekday/hour slot inside b, busiest first.
func (s *Store) PopularCells(ctx context.Context, dayOfWeek, hour int, b Bounds) ([]Cell, error) {
	rows, err := s.db.Query(ctx, `
		SELECT place_name, lat, lng, day_of_week, hour, visit_count
		FROM heat_map_cells
		WHERE day_of_week = $1 AND hour = $2
		  AND lat BETWEEN $3 AND $4 AND lng BETWEEN $5 AND $6
		ORDER BY visit_count DESC`,
		dayOfWeek, hour, b.MinLat, b.MaxLat, b.MinLng, b.MaxLng,
	)
	if err != nil {
		return nil, err
	}
	return scanCells(rows)
}

// UnvisitedCells aggregates all slots per place inside b and drops places the
// user has a visit for. Busiest first.
func (s *Store) UnvisitedCells(ctx context.Context, userID types.ID, b Bounds) ([]Cell, error) {
	rows, err := s.db.Query(ctx, `
		SELECT c.place_name, AVG(c.lat), AVG(c.lng), -1, -1, SUM(c.visit_count)::int
		FROM heat_map_cells c
		WHERE c.lat BETWEEN $2 AND $3 AND c.lng BETWEEN $4 AND $5
		  AND NOT EXISTS (
		    SELECT 1 FROM user_visits v
		    WHERE v.user_id = $1 AND v.place_name = c.place_name
		  )
		GROUP BY c.place_name
		ORDER BY SUM(c.visit_count) DESC`,
		string(userID), b.MinLat, b.MaxLat, b.MinLng, b.MaxLng,
	)
	if err != nil {
		return nil, err
	}
	return scanCells(rows)
}

// VisitedPlaces returns the set of place names the user has checked in at.
func (s *Store) VisitedPlaces(ctx context.Context, userID types.ID) (map[string]struct{}, error) {
	rows, err := s.db.Query(ctx, `SELECT DISTINCT place_name FROM user_visits WHERE user_id = $1`, string(userID))
	if err != nil {
		return nil, err
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	out := make(map[string]struct{}, len(names))
	for _, n := range names {
		out[n] = struct{}{}
	}
	return out, nil
}

// RecordVisit stores a check-in and bumps the matching heat-map slot.
func (s *Store) RecordVisit(ctx context.Context, v Visit) error {
	day, hour := slot(v.VisitedAt)
	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO user_visits (user_id, place_name, lat, lng, visited_at)
			VALUES ($1, $2, $3, $4, $5)`,
			string(v.UserID), v.PlaceName, v.Position.Lat, v.Position.Lng, v.VisitedAt,
		); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO heat_map_cells (place_name, lat, lng, day_of_week, hour, visit_count)
			VALUES ($1, $2, $3, $4, $5, 1)
			ON CONFLICT (place_name, day_of_week, hour)
			DO UPDATE SET visit_count = heat_map_cells.visit_count + 1`,
			v.PlaceName, v.Position.Lat, v.Position.Lng, day, hour,
		)
		return err
	})
}

func scanCells(rows pgx.Rows) ([]Cell, error) {
	defer rows.Close()
	var out []Cell
	for rows.Next() {
		var c Cell
		if err := rows.Scan(&c.PlaceName, &c.Position.Lat, &c.Position.Lng, &c.DayOfWeek, &c.Hour, &c.VisitCount); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// slot returns the weekday (0 = Sunday) and hour of t in UTC.
func slot(t time.Time) (int, int) {
	u := t.UTC()
	return int(u.Weekday()), u.Hour()
}
