package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"tischbuch/internal/apperr"
	"tischbuch/internal/model"
)

const ruleColumns = `id, name, valid_from, valid_to, applies_days, generate_between,
	blocked_windows, priority, state, created_at, updated_at`

// CreateRule inserts a slot rule.
func (db *DB) CreateRule(ctx context.Context, r *model.SlotRule) error {
	days, err := json.Marshal(r.AppliesDays)
	if err != nil {
		return fmt.Errorf("marshal applies_days: %w", err)
	}
	windows, err := json.Marshal(nonNilWindows(r.BlockedWindows))
	if err != nil {
		return fmt.Errorf("marshal blocked_windows: %w", err)
	}
	var gen sql.NullString
	if r.Generate != nil {
		b, err := json.Marshal(r.Generate)
		if err != nil {
			return fmt.Errorf("marshal generate_between: %w", err)
		}
		gen = sql.NullString{String: string(b), Valid: true}
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO slot_rules (`+ruleColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Name, r.ValidFrom, r.ValidTo, string(days), gen,
		string(windows), r.Priority, string(r.State), toMillis(r.CreatedAt), toMillis(r.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert slot rule: %w", err)
	}
	return nil
}

// GetRule returns a rule by id regardless of its state.
func (db *DB) GetRule(ctx context.Context, id string) (*model.SlotRule, error) {
	row := db.QueryRowContext(ctx, `SELECT `+ruleColumns+` FROM slot_rules WHERE id = ?`, id)
	r, err := scanRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("slot rule", id)
	}
	return r, err
}

// ActiveRules returns every rule in state active. Weekday and validity
// filtering is left to the resolver.
func (db *DB) ActiveRules(ctx context.Context) ([]model.SlotRule, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+ruleColumns+` FROM slot_rules WHERE state = ? ORDER BY id`, string(model.StateActive))
	if err != nil {
		return nil, fmt.Errorf("query slot rules: %w", err)
	}
	defer rows.Close()

	var out []model.SlotRule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// SetRuleState changes the lifecycle state of a rule.
func (db *DB) SetRuleState(ctx context.Context, id string, state model.RecordState, now time.Time) error {
	res, err := db.ExecContext(ctx,
		`UPDATE slot_rules SET state = ?, updated_at = ? WHERE id = ?`,
		string(state), toMillis(now), id)
	if err != nil {
		return fmt.Errorf("update slot rule state: %w", err)
	}
	return requireAffected(res, apperr.NotFound("slot rule", id))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(s rowScanner) (*model.SlotRule, error) {
	var (
		r                 model.SlotRule
		days, windows     string
		gen               sql.NullString
		state             string
		created, modified int64
	)
	if err := s.Scan(&r.ID, &r.Name, &r.ValidFrom, &r.ValidTo, &days, &gen,
		&windows, &r.Priority, &state, &created, &modified); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(days), &r.AppliesDays); err != nil {
		return nil, fmt.Errorf("decode applies_days of rule %s: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(windows), &r.BlockedWindows); err != nil {
		return nil, fmt.Errorf("decode blocked_windows of rule %s: %w", r.ID, err)
	}
	if gen.Valid && gen.String != "" {
		r.Generate = &model.GenerateSpec{}
		if err := json.Unmarshal([]byte(gen.String), r.Generate); err != nil {
			return nil, fmt.Errorf("decode generate_between of rule %s: %w", r.ID, err)
		}
	}
	r.State = model.RecordState(state)
	r.CreatedAt = fromMillis(created)
	r.UpdatedAt = fromMillis(modified)
	return &r, nil
}

const exceptionColumns = `id, date, reason, allowed_start_times, blocked_windows, state, created_at, updated_at`

// CreateException inserts a slot exception. It fails with a ConflictError
// when another active exception already exists for the same date.
func (db *DB) CreateException(ctx context.Context, e *model.SlotException) error {
	allowed, err := nullJSON(e.AllowedStartTimes, e.AllowedStartTimes == nil)
	if err != nil {
		return fmt.Errorf("marshal allowed_start_times: %w", err)
	}
	windows, err := nullJSON(e.BlockedWindows, e.BlockedWindows == nil)
	if err != nil {
		return fmt.Errorf("marshal blocked_windows: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if e.State == model.StateActive {
		var existing string
		err = tx.QueryRowContext(ctx,
			`SELECT id FROM slot_exceptions WHERE date = ? AND state = ? LIMIT 1`,
			e.Date, string(model.StateActive)).Scan(&existing)
		switch {
		case err == nil:
			return apperr.Conflict("active exception %s already exists for %s", existing, e.Date)
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("check exception conflict: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO slot_exceptions (`+exceptionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Date, e.Reason, allowed, windows, string(e.State),
		toMillis(e.CreatedAt), toMillis(e.UpdatedAt),
	)
	if isUniqueViolation(err) {
		return apperr.Conflict("active exception already exists for %s", e.Date)
	}
	if err != nil {
		return fmt.Errorf("insert slot exception: %w", err)
	}
	return tx.Commit()
}

// GetException returns an exception by id regardless of its state.
func (db *DB) GetException(ctx context.Context, id string) (*model.SlotException, error) {
	row := db.QueryRowContext(ctx, `SELECT `+exceptionColumns+` FROM slot_exceptions WHERE id = ?`, id)
	e, err := scanException(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("slot exception", id)
	}
	return e, err
}

// ActiveExceptionsOn returns the active exceptions for date, ordered by id.
func (db *DB) ActiveExceptionsOn(ctx context.Context, date string) ([]model.SlotException, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+exceptionColumns+` FROM slot_exceptions WHERE date = ? AND state = ? ORDER BY id`,
		date, string(model.StateActive))
	if err != nil {
		return nil, fmt.Errorf("query slot exceptions: %w", err)
	}
	defer rows.Close()

	var out []model.SlotException
	for rows.Next() {
		e, err := scanException(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// SetExceptionState changes the lifecycle state of an exception.
func (db *DB) SetExceptionState(ctx context.Context, id string, state model.RecordState, now time.Time) error {
	res, err := db.ExecContext(ctx,
		`UPDATE slot_exceptions SET state = ?, updated_at = ? WHERE id = ?`,
		string(state), toMillis(now), id)
	if isUniqueViolation(err) {
		return apperr.Conflict("another active exception exists for the date of %s", id)
	}
	if err != nil {
		return fmt.Errorf("update slot exception state: %w", err)
	}
	return requireAffected(res, apperr.NotFound("slot exception", id))
}

func scanException(s rowScanner) (*model.SlotException, error) {
	var (
		e                 model.SlotException
		allowed, windows  sql.NullString
		state             string
		created, modified int64
	)
	if err := s.Scan(&e.ID, &e.Date, &e.Reason, &allowed, &windows, &state, &created, &modified); err != nil {
		return nil, err
	}
	if allowed.Valid {
		e.AllowedStartTimes = []string{}
		if err := json.Unmarshal([]byte(allowed.String), &e.AllowedStartTimes); err != nil {
			return nil, fmt.Errorf("decode allowed_start_times of exception %s: %w", e.ID, err)
		}
	}
	if windows.Valid {
		e.BlockedWindows = []model.Window{}
		if err := json.Unmarshal([]byte(windows.String), &e.BlockedWindows); err != nil {
			return nil, fmt.Errorf("decode blocked_windows of exception %s: %w", e.ID, err)
		}
	}
	e.State = model.RecordState(state)
	e.CreatedAt = fromMillis(created)
	e.UpdatedAt = fromMillis(modified)
	return &e, nil
}

func nonNilWindows(w []model.Window) []model.Window {
	if w == nil {
		return []model.Window{}
	}
	return w
}

// nullJSON keeps the distinction between an absent list (NULL) and an
// explicit empty one ("[]").
func nullJSON(v any, absent bool) (sql.NullString, error) {
	if absent {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func requireAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
