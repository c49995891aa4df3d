package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/vibarr/vibarr/errs"
	"github.com/vibarr/vibarr/models"
)

const qualityColumns = `id, name, preferred_formats, min_quality, max_size_mb, min_seeders,
	release_types, format_match_weight, seeder_weight, is_default, created_at, updated_at`

func scanQualityProfile(row interface{ Scan(...any) error }) (*models.QualityProfile, error) {
	q := &models.QualityProfile{}
	var (
		formats, minQuality, releaseTypes sql.NullString
		maxSize                           sql.NullInt64
	)
	err := row.Scan(&q.ID, &q.Name, &formats, &minQuality, &maxSize, &q.MinSeeders,
		&releaseTypes, &q.FormatMatchWeight, &q.SeederWeight, &q.IsDefault, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		return nil, err
	}
	jsonScan(formats, &q.PreferredFormats)
	q.MinQuality = nullStringValue(minQuality)
	q.MaxSizeMB = nullIntPtr(maxSize)
	jsonScan(releaseTypes, &q.ReleaseTypes)
	return q, nil
}

// CreateQualityProfile inserts a profile. Making it the default demotes the
// previous default in the same transaction; duplicate names are a conflict.
func (db *DB) CreateQualityProfile(q *models.QualityProfile) (int64, error) {
	var id int64
	err := db.WithTx(func(tx *sql.Tx) error {
		if q.IsDefault {
			if _, err := tx.Exec(`UPDATE quality_profiles SET is_default = 0 WHERE is_default = 1`); err != nil {
				return fmt.Errorf("demote default profile: %w", err)
			}
		}
		now := time.Now().UTC()
		res, err := tx.Exec(`
		INSERT INTO quality_profiles (name, preferred_formats, min_quality, max_size_mb, min_seeders,
			release_types, format_match_weight, seeder_weight, is_default, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			q.Name, jsonString(q.PreferredFormats), q.MinQuality, q.MaxSizeMB, q.MinSeeders,
			jsonString(q.ReleaseTypes), q.FormatMatchWeight, q.SeederWeight, q.IsDefault, now, now)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("quality profile %q exists: %w", q.Name, errs.ErrConflict)
			}
			return fmt.Errorf("insert quality profile: %w", err)
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// GetQualityProfile fetches one profile by id.
func (db *DB) GetQualityProfile(id int64) (*models.QualityProfile, error) {
	q, err := scanQualityProfile(db.QueryRow(`SELECT `+qualityColumns+` FROM quality_profiles WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("quality profile %d: %w", id, errs.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get quality profile %d: %w", id, err)
	}
	return q, nil
}

// GetQualityProfileByName looks a profile up by its unique name; nil when
// unknown. Rule actions reference profiles by name.
func (db *DB) GetQualityProfileByName(name string) (*models.QualityProfile, error) {
	q, err := scanQualityProfile(db.QueryRow(`SELECT `+qualityColumns+` FROM quality_profiles WHERE name = ? COLLATE NOCASE`, name))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get quality profile %q: %w", name, err)
	}
	return q, nil
}

// DefaultQualityProfile returns the profile used when a wish names no
// preferred format; nil when none is marked default.
func (db *DB) DefaultQualityProfile() (*models.QualityProfile, error) {
	q, err := scanQualityProfile(db.QueryRow(`SELECT ` + qualityColumns + ` FROM quality_profiles WHERE is_default = 1`))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("default quality profile: %w", err)
	}
	return q, nil
}

// ListQualityProfiles returns all profiles, default first then by name.
func (db *DB) ListQualityProfiles() ([]*models.QualityProfile, error) {
	rows, err := db.Query(`SELECT ` + qualityColumns + ` FROM quality_profiles ORDER BY is_default DESC, name`)
	if err != nil {
		return nil, fmt.Errorf("list quality profiles: %w", err)
	}
	defer rows.Close()

	var out []*models.QualityProfile
	for rows.Next() {
		q, err := scanQualityProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// UpdateQualityProfile overwrites a profile, keeping the single-default
// invariant when the update promotes it.
func (db *DB) UpdateQualityProfile(q *models.QualityProfile) error {
	return db.WithTx(func(tx *sql.Tx) error {
		if q.IsDefault {
			if _, err := tx.Exec(`UPDATE quality_profiles SET is_default = 0 WHERE is_default = 1 AND id != ?`, q.ID); err != nil {
				return fmt.Errorf("demote default profile: %w", err)
			}
		}
		res, err := tx.Exec(`
		UPDATE quality_profiles SET name = ?, preferred_formats = ?, min_quality = ?, max_size_mb = ?,
			min_seeders = ?, release_types = ?, format_match_weight = ?, seeder_weight = ?, is_default = ?,
			updated_at = ?
		WHERE id = ?`,
			q.Name, jsonString(q.PreferredFormats), q.MinQuality, q.MaxSizeMB,
			q.MinSeeders, jsonString(q.ReleaseTypes), q.FormatMatchWeight, q.SeederWeight, q.IsDefault,
			time.Now().UTC(), q.ID)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("quality profile %q exists: %w", q.Name, errs.ErrConflict)
			}
			return fmt.Errorf("update quality profile %d: %w", q.ID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("quality profile %d: %w", q.ID, errs.ErrNotFound)
		}
		return nil
	})
}

// DeleteQualityProfile removes a profile. The default profile cannot be
// deleted; promote another one first.
func (db *DB) DeleteQualityProfile(id int64) error {
	return db.WithTx(func(tx *sql.Tx) error {
		var isDefault bool
		err := tx.QueryRow(`SELECT is_default FROM quality_profiles WHERE id = ?`, id).Scan(&isDefault)
		if err == sql.ErrNoRows {
			return fmt.Errorf("quality profile %d: %w", id, errs.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("load quality profile %d: %w", id, err)
		}
		if isDefault {
			return fmt.Errorf("default profile cannot be deleted: %w", errs.ErrConflict)
		}
		if _, err := tx.Exec(`DELETE FROM quality_profiles WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete quality profile %d: %w", id, err)
		}
		return nil
	})
}
