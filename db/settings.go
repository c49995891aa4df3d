package db

import (
	"database/sql"
	"fmt"
	"time"
)

// GetSetting returns one raw setting value. Missing keys come back as
// ("", false) so callers can fall through to defaults.
func (db *DB) GetSetting(key string) (string, bool, error) {
	var value string
	err := db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get setting %q: %w", key, err)
	}
	return value, true, nil
}

// AllSettings returns every stored key/value pair.
func (db *DB) AllSettings() (map[string]string, error) {
	rows, err := db.Query(`SELECT key, value FROM settings`)
	if err != nil {
		return nil, fmt.Errorf("all settings: %w", err)
	}
	defer rows.Close()

	out := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

// SetSetting upserts one key.
func (db *DB) SetSetting(key, value string) error {
	_, err := db.Exec(`
	INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set setting %q: %w", key, err)
	}
	return nil
}

// SetSettings upserts a batch atomically so partial writes never leave
// related keys (host + api key pairs) half-updated.
func (db *DB) SetSettings(values map[string]string) error {
	return db.WithTx(func(tx *sql.Tx) error {
		now := time.Now().UTC()
		for k, v := range values {
			if _, err := tx.Exec(`
			INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
				k, v, now); err != nil {
				return fmt.Errorf("set setting %q: %w", k, err)
			}
		}
		return nil
	})
}

// SeedSettings inserts defaults for keys that do not exist yet, leaving
// operator-changed values alone.
func (db *DB) SeedSettings(defaults map[string]string) error {
	return db.WithTx(func(tx *sql.Tx) error {
		now := time.Now().UTC()
		for k, v := range defaults {
			if _, err := tx.Exec(`INSERT OR IGNORE INTO settings (key, value, updated_at) VALUES (?, ?, ?)`,
				k, v, now); err != nil {
				return fmt.Errorf("seed setting %q: %w", k, err)
			}
		}
		return nil
	})
}
