// Package settings stores per-owner correspondence preferences.
package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// DefaultClosing is used when an owner has not set a letter closing.
const DefaultClosing = "Very truly yours,"

// Settings holds one owner's correspondence preferences.
type Settings struct {
	ReturnAddressName         string `json:"return_address_name"`
	ReturnAddressLine1        string `json:"return_address_line1"`
	ReturnAddressLine2        string `json:"return_address_line2"`
	ReturnAddressCityStateZip string `json:"return_address_city_state_zip"`
	SignatureName             string `json:"signature_name"`
	Initials                  string `json:"initials"`
	Closing                   string `json:"closing"`
}

// Store persists owner settings in the metadata database.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS owner_settings (
	owner_id                      TEXT PRIMARY KEY,
	return_address_name           TEXT,
	return_address_line1          TEXT,
	return_address_line2          TEXT,
	return_address_city_state_zip TEXT,
	signature_name                TEXT,
	initials                      TEXT,
	closing                       TEXT,
	updated_at                    TEXT NOT NULL
);
`

// NewStore creates a settings store, creating the schema if needed.
func NewStore(ctx context.Context, db *sql.DB) (*Store, error) {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("creating settings schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Get returns the owner's settings, falling back to defaults when none
// were saved.
func (s *Store) Get(ctx context.Context, ownerID string) (Settings, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT return_address_name, return_address_line1, return_address_line2,
		       return_address_city_state_zip, signature_name, initials, closing
		FROM owner_settings WHERE owner_id = ?`, ownerID)

	var out Settings
	err := row.Scan(&out.ReturnAddressName, &out.ReturnAddressLine1, &out.ReturnAddressLine2,
		&out.ReturnAddressCityStateZip, &out.SignatureName, &out.Initials, &out.Closing)
	if errors.Is(err, sql.ErrNoRows) {
		return Settings{Closing: DefaultClosing}, nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("loading settings for %s: %w", ownerID, err)
	}
	if out.Closing == "" {
		out.Closing = DefaultClosing
	}
	return out, nil
}

// Save upserts the owner's settings and returns the stored value.
func (s *Store) Save(ctx context.Context, ownerID string, in Settings) (Settings, error) {
	if in.Closing == "" {
		in.Closing = DefaultClosing
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO owner_settings (
			owner_id, return_address_name, return_address_line1, return_address_line2,
			return_address_city_state_zip, signature_name, initials, closing, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ownerID, in.ReturnAddressName, in.ReturnAddressLine1, in.ReturnAddressLine2,
		in.ReturnAddressCityStateZip, in.SignatureName, in.Initials, in.Closing,
		time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return Settings{}, fmt.Errorf("saving settings for %s: %w", ownerID, err)
	}
	return in, nil
}
