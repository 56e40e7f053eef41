package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"webinar-certs/internal/models"
)

// Webinars assigns stable ids to imported webinars and collapses records
// with identical content onto one id.
type Webinars struct {
	db  *sql.DB
	now func() time.Time
}

// Add stores rec unless an equal record exists and returns its id. Ids are
// sequential starting at 0. Adding the same content again is not an error.
func (w *Webinars) Add(ctx context.Context, rec models.WebinarRecord) (int64, error) {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var id int64
	err = tx.QueryRowContext(ctx, `
		SELECT id FROM webinars
		WHERE url = ? AND title = ? AND dates = ? AND year = ?
	`, rec.URL, rec.Title, rec.Dates, rec.Year).Scan(&id)
	switch {
	case err == nil:
		return id, nil
	case !errors.Is(err, sql.ErrNoRows):
		return 0, fmt.Errorf("failed to look up webinar: %w", err)
	}

	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(id) + 1, 0) FROM webinars`).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to allocate webinar id: %w", err)
	}

	importedAt := rec.ImportedAt
	if importedAt.IsZero() {
		importedAt = w.now()
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO webinars (id, url, title, dates, year, imported_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, id, rec.URL, rec.Title, rec.Dates, rec.Year, importedAt.UTC().Format(time.RFC3339Nano)); err != nil {
		return 0, fmt.Errorf("failed to insert webinar: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit webinar: %w", err)
	}
	return id, nil
}

// Get returns the record with the given id. found is false for ids that were
// never issued.
func (w *Webinars) Get(ctx context.Context, id int64) (rec models.WebinarRecord, found bool, err error) {
	row := w.db.QueryRowContext(ctx, `
		SELECT id, url, title, dates, year, imported_at
		FROM webinars WHERE id = ?
	`, id)
	rec, err = scanWebinar(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.WebinarRecord{}, false, nil
	}
	if err != nil {
		return models.WebinarRecord{}, false, fmt.Errorf("failed to get webinar %d: %w", id, err)
	}
	return rec, true, nil
}

// Require is Get for callers that treat an unknown id as an error
func (w *Webinars) Require(ctx context.Context, id int64) (models.WebinarRecord, error) {
	rec, found, err := w.Get(ctx, id)
	if err != nil {
		return models.WebinarRecord{}, err
	}
	if !found {
		return models.WebinarRecord{}, fmt.Errorf("webinar %d: %w", id, ErrNotFound)
	}
	return rec, nil
}

// List returns all webinars ordered by id
func (w *Webinars) List(ctx context.Context) ([]models.WebinarRecord, error) {
	rows, err := w.db.QueryContext(ctx, `
		SELECT id, url, title, dates, year, imported_at
		FROM webinars ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list webinars: %w", err)
	}
	defer rows.Close()

	var list []models.WebinarRecord
	for rows.Next() {
		rec, err := scanWebinar(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan webinar: %w", err)
		}
		list = append(list, rec)
	}
	return list, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanWebinar(s scanner) (models.WebinarRecord, error) {
	var rec models.WebinarRecord
	var importedAt string
	if err := s.Scan(&rec.ID, &rec.URL, &rec.Title, &rec.Dates, &rec.Year, &importedAt); err != nil {
		return models.WebinarRecord{}, err
	}
	if t, err := time.Parse(time.RFC3339Nano, importedAt); err == nil {
		rec.ImportedAt = t
	}
	return rec, nil
}
