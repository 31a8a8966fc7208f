package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tischbuch/internal/apperr"
	"tischbuch/internal/model"
)

const reservationColumns = `id, date, time, duration_minutes, end_time, event_id, status, party_size, archived`

// CreateReservation inserts a new reservation. An existing id is a
// ConflictError; stored reservations change only through
// UpdateReservationStatus.
func (db *DB) CreateReservation(ctx context.Context, r *model.Reservation, now time.Time) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO reservations (`+reservationColumns+`, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Date, r.Time, r.DurationMinutes, r.EndTime, r.EventID, string(r.Status), r.PartySize, r.Archived,
		toMillis(now), toMillis(now),
	)
	if isUniqueViolation(err) || isPrimaryKeyViolation(err) {
		return apperr.Conflict("reservation %s already exists", r.ID)
	}
	if err != nil {
		return fmt.Errorf("insert reservation: %w", err)
	}
	return nil
}

// GetReservation returns a reservation by id.
func (db *DB) GetReservation(ctx context.Context, id string) (*model.Reservation, error) {
	row := db.QueryRowContext(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id)
	r, err := scanReservation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("reservation", id)
	}
	return r, err
}

// UpdateReservationStatus moves a reservation from one status to another.
// It returns false when the stored status no longer equals from.
func (db *DB) UpdateReservationStatus(ctx context.Context, id string, from, to model.ReservationStatus, now time.Time) (bool, error) {
	res, err := db.ExecContext(ctx,
		`UPDATE reservations SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(to), toMillis(now), id, string(from))
	if err != nil {
		return false, fmt.Errorf("update reservation status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

// ReservationsOn returns the non-archived reservations of a date.
func (db *DB) ReservationsOn(ctx context.Context, date string) ([]model.Reservation, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE date = ? AND archived = 0 ORDER BY time, id`, date)
	if err != nil {
		return nil, fmt.Errorf("query reservations: %w", err)
	}
	defer rows.Close()

	var out []model.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func scanReservation(s rowScanner) (*model.Reservation, error) {
	var (
		r      model.Reservation
		status string
	)
	if err := s.Scan(&r.ID, &r.Date, &r.Time, &r.DurationMinutes, &r.EndTime, &r.EventID,
		&status, &r.PartySize, &r.Archived); err != nil {
		return nil, err
	}
	r.Status = model.ReservationStatus(status)
	return &r, nil
}
