package db

import (
	"context"
	"fmt"
	"time"
)

// SaveEventDocument stores a raw event document and indexes it under the
// given calendar dates. A document saved again replaces its previous dates.
func (db *DB) SaveEventDocument(ctx context.Context, id string, dates []string, payload []byte, now time.Time) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO event_documents (id, payload, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		id, string(payload), toMillis(now))
	if err != nil {
		return fmt.Errorf("upsert event document: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM event_days WHERE event_id = ?`, id); err != nil {
		return fmt.Errorf("clear event days: %w", err)
	}
	for _, d := range dates {
		if _, err = tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO event_days (event_id, date) VALUES (?, ?)`, id, d); err != nil {
			return fmt.Errorf("insert event day: %w", err)
		}
	}

	return tx.Commit()
}

// DeleteEventDocument removes an event and its date index.
func (db *DB) DeleteEventDocument(ctx context.Context, id string) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM event_documents WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete event document: %w", err)
	}
	return nil
}

// EventDocumentsOn returns the raw documents of every event indexed on date.
func (db *DB) EventDocumentsOn(ctx context.Context, date string) ([][]byte, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT d.payload
		FROM event_documents d
		JOIN event_days ed ON ed.event_id = d.id
		WHERE ed.date = ?
		ORDER BY d.id`, date)
	if err != nil {
		return nil, fmt.Errorf("query event documents: %w", err)
	}
	defer rows.Close()

	var out [][]byte
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		out = append(out, []byte(payload))
	}
	return out, rows.Err()
}
