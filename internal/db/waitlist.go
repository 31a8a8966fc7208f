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

const waitlistColumns = `id, date, party_size, priority, status, offer_expires_at,
	offered_reservation_id, offered_time, closed_reason, created_at, updated_at`

// CreateWaitlistEntry inserts a waitlist entry.
func (db *DB) CreateWaitlistEntry(ctx context.Context, e *model.WaitlistEntry) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO waitlist_entries (`+waitlistColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Date, e.PartySize, e.Priority, string(e.Status), nullMillis(e.OfferExpiresAt),
		e.OfferedReservationID, e.OfferedTime, e.ClosedReason, toMillis(e.CreatedAt), toMillis(e.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert waitlist entry: %w", err)
	}
	return nil
}

// GetWaitlistEntry returns a waitlist entry by id.
func (db *DB) GetWaitlistEntry(ctx context.Context, id string) (*model.WaitlistEntry, error) {
	row := db.QueryRowContext(ctx, `SELECT `+waitlistColumns+` FROM waitlist_entries WHERE id = ?`, id)
	e, err := scanWaitlistEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("waitlist entry", id)
	}
	return e, err
}

// OpenWaitlistEntries returns the OPEN entries of a date.
func (db *DB) OpenWaitlistEntries(ctx context.Context, date string) ([]model.WaitlistEntry, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+waitlistColumns+` FROM waitlist_entries WHERE date = ? AND status = ?`,
		date, string(model.WaitlistOpen))
	if err != nil {
		return nil, fmt.Errorf("query waitlist: %w", err)
	}
	defer rows.Close()

	var out []model.WaitlistEntry
	for rows.Next() {
		e, err := scanWaitlistEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// OfferWaitlistEntry flips an OPEN entry to OFFERED. It returns false when
// the entry is no longer OPEN, e.g. because a concurrent cancellation
// already offered it.
func (db *DB) OfferWaitlistEntry(ctx context.Context, id, reservationID, offeredTime string, expiresAt, now time.Time) (bool, error) {
	res, err := db.ExecContext(ctx, `
		UPDATE waitlist_entries
		SET status = ?, offer_expires_at = ?, offered_reservation_id = ?, offered_time = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(model.WaitlistOffered), toMillis(expiresAt), reservationID, offeredTime, toMillis(now),
		id, string(model.WaitlistOpen))
	if err != nil {
		return false, fmt.Errorf("offer waitlist entry: %w", err)
	}
	return affectedOne(res)
}

// ExpireWaitlistOffers closes every OFFERED entry whose offer expired before
// now in a single statement and returns how many rows changed.
func (db *DB) ExpireWaitlistOffers(ctx context.Context, reason string, now time.Time) (int64, error) {
	res, err := db.ExecContext(ctx, `
		UPDATE waitlist_entries
		SET status = ?, closed_reason = ?, offer_expires_at = NULL, updated_at = ?
		WHERE status = ? AND offer_expires_at < ?`,
		string(model.WaitlistDone), reason, toMillis(now),
		string(model.WaitlistOffered), toMillis(now))
	if err != nil {
		return 0, fmt.Errorf("expire waitlist offers: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// CloseWaitlistEntry moves an OPEN or OFFERED entry to DONE.
func (db *DB) CloseWaitlistEntry(ctx context.Context, id, reason string, now time.Time) (bool, error) {
	res, err := db.ExecContext(ctx, `
		UPDATE waitlist_entries
		SET status = ?, closed_reason = ?, offer_expires_at = NULL, updated_at = ?
		WHERE id = ? AND status IN (?, ?)`,
		string(model.WaitlistDone), reason, toMillis(now),
		id, string(model.WaitlistOpen), string(model.WaitlistOffered))
	if err != nil {
		return false, fmt.Errorf("close waitlist entry: %w", err)
	}
	return affectedOne(res)
}

// RedeemWaitlistEntry moves an OFFERED entry whose offer is still valid at
// now to REDEEMED.
func (db *DB) RedeemWaitlistEntry(ctx context.Context, id string, now time.Time) (bool, error) {
	res, err := db.ExecContext(ctx, `
		UPDATE waitlist_entries
		SET status = ?, offer_expires_at = NULL, updated_at = ?
		WHERE id = ? AND status = ? AND offer_expires_at >= ?`,
		string(model.WaitlistRedeemed), toMillis(now),
		id, string(model.WaitlistOffered), toMillis(now))
	if err != nil {
		return false, fmt.Errorf("redeem waitlist entry: %w", err)
	}
	return affectedOne(res)
}

func affectedOne(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

func scanWaitlistEntry(s rowScanner) (*model.WaitlistEntry, error) {
	var (
		e                 model.WaitlistEntry
		status            string
		expires           sql.NullInt64
		created, modified int64
	)
	if err := s.Scan(&e.ID, &e.Date, &e.PartySize, &e.Priority, &status, &expires,
		&e.OfferedReservationID, &e.OfferedTime, &e.ClosedReason, &created, &modified); err != nil {
		return nil, err
	}
	e.Status = model.WaitlistStatus(status)
	if expires.Valid {
		t := fromMillis(expires.Int64)
		e.OfferExpiresAt = &t
	}
	e.CreatedAt = fromMillis(created)
	e.UpdatedAt = fromMillis(modified)
	return &e, nil
}
