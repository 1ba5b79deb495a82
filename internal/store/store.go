// Package store persists Decision records in a local SQLite table, keyed by
// id with secondary ordering on created_at. Records are written whole; the
// only partial mutation path is UpdateStep.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"afkari/internal/domain"
)

// TimeLayout is RFC 3339 UTC with fixed-width nanoseconds so stored
// timestamps order lexicographically.
const TimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

var ErrNotFound = errors.New("not found")

type Store struct {
	DB  *sql.DB
	Now func() time.Time
}

func (s Store) now() string {
	if s.Now != nil {
		return s.Now().UTC().Format(TimeLayout)
	}
	return time.Now().UTC().Format(TimeLayout)
}

// Put upserts the full record and unconditionally refreshes UpdatedAt, even
// on logical no-op writes. Returns the record id.
func (s Store) Put(ctx context.Context, d domain.Decision) (string, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()
	if _, err := s.PutTx(ctx, tx, d); err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	return d.ID, nil
}

// PutTx is Put inside a caller-owned transaction.
func (s Store) PutTx(ctx context.Context, tx *sql.Tx, d domain.Decision) (domain.Decision, error) {
	if d.ID == "" {
		return domain.Decision{}, fmt.Errorf("decision id is required")
	}
	d.UpdatedAt = s.now()
	if d.CreatedAt == "" {
		d.CreatedAt = d.UpdatedAt
	}
	record, err := json.Marshal(d)
	if err != nil {
		return domain.Decision{}, fmt.Errorf("marshal decision: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO decisions(id,created_at,updated_at,record) VALUES (?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET updated_at=excluded.updated_at, record=excluded.record`,
		d.ID, d.CreatedAt, d.UpdatedAt, string(record))
	if err != nil {
		return domain.Decision{}, fmt.Errorf("put decision: %w", err)
	}
	return d, nil
}

// Get is a point lookup by id. Returns ErrNotFound when absent.
func (s Store) Get(ctx context.Context, id string) (domain.Decision, error) {
	var record string
	err := s.DB.QueryRowContext(ctx, `SELECT record FROM decisions WHERE id=?`, id).Scan(&record)
	if err == sql.ErrNoRows {
		return domain.Decision{}, ErrNotFound
	}
	if err != nil {
		return domain.Decision{}, err
	}
	return decode(record)
}

// List returns all records, most recent first. Equal timestamps tie-break
// on id so the order is deterministic.
func (s Store) List(ctx context.Context) ([]domain.Decision, error) {
	return s.scan(ctx, `SELECT record FROM decisions ORDER BY created_at DESC, id DESC`)
}

// All returns every record without ordering guarantees, for export.
func (s Store) All(ctx context.Context) ([]domain.Decision, error) {
	return s.scan(ctx, `SELECT record FROM decisions`)
}

func (s Store) scan(ctx context.Context, query string) ([]domain.Decision, error) {
	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Decision
	for rows.Next() {
		var record string
		if err := rows.Scan(&record); err != nil {
			return nil, err
		}
		d, err := decode(record)
		if err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, rows.Err()
}

// UpdateStep flips the done flag of one action-plan step and refreshes
// UpdatedAt. A missing record, a record without an action plan and an
// unmatched step id are all silent no-ops.
func (s Store) UpdateStep(ctx context.Context, id, stepID string, done bool) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := s.UpdateStepTx(ctx, tx, id, stepID, done); err != nil {
		return err
	}
	return tx.Commit()
}

// UpdateStepTx is UpdateStep inside a caller-owned transaction. It reports
// whether a step was actually updated.
func (s Store) UpdateStepTx(ctx context.Context, tx *sql.Tx, id, stepID string, done bool) (bool, error) {
	var record string
	err := tx.QueryRowContext(ctx, `SELECT record FROM decisions WHERE id=?`, id).Scan(&record)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	d, err := decode(record)
	if err != nil {
		return false, err
	}
	if len(d.ActionPlan) == 0 {
		return false, nil
	}
	matched := false
	for i := range d.ActionPlan {
		if d.ActionPlan[i].ID == stepID {
			d.ActionPlan[i].Done = done
			matched = true
		}
	}
	if !matched {
		return false, nil
	}
	if _, err := s.PutTx(ctx, tx, d); err != nil {
		return false, err
	}
	return true, nil
}

// Delete removes the record. Deleting a non-existent id is not an error.
func (s Store) Delete(ctx context.Context, id string) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM decisions WHERE id=?`, id)
	return err
}

// DeleteTx is Delete inside a caller-owned transaction.
func (s Store) DeleteTx(ctx context.Context, tx *sql.Tx, id string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM decisions WHERE id=?`, id)
	return err
}

func decode(record string) (domain.Decision, error) {
	var d domain.Decision
	if err := json.Unmarshal([]byte(record), &d); err != nil {
		return domain.Decision{}, fmt.Errorf("decode decision record: %w", err)
	}
	return d, nil
}
