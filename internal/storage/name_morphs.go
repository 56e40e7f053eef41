package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

// NameMorphs is the durable name -> dative form table. Entries are written
// once and never changed; a second Set for the same name is refused so that
// a mistaken double correction does not pass silently.
type NameMorphs struct {
	db *sql.DB
}

// Get returns the stored inflection for name. The lookup is exact: no
// trimming or case folding.
func (n *NameMorphs) Get(ctx context.Context, name string) (string, bool, error) {
	var inflected string
	err := n.db.QueryRowContext(ctx, `SELECT inflected_name FROM name_morphs WHERE name = ?`, name).Scan(&inflected)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get name morph: %w", err)
	}
	return inflected, true, nil
}

// Set stores the inflection for name. It returns ErrDuplicateKey when the
// name is already present, whatever the stored value.
func (n *NameMorphs) Set(ctx context.Context, name, inflected string) error {
	if name == "" {
		return errors.New("name is required")
	}
	_, err := n.db.ExecContext(ctx, `INSERT INTO name_morphs (name, inflected_name) VALUES (?, ?)`, name, inflected)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return fmt.Errorf("name %q: %w", name, ErrDuplicateKey)
		}
		return fmt.Errorf("failed to set name morph: %w", err)
	}
	return nil
}
