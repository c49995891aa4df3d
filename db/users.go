package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/vibarr/vibarr/errs"
	"github.com/vibarr/vibarr/models"
)

const userColumns = `id, username, email, password_hash, is_admin, media_server_username,
	media_server_token, share_listening, share_taste, taste_cluster, taste_tags,
	compatibility_vector, last_login_at, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	u := &models.User{}
	var (
		email, msUsername, msToken sql.NullString
		tasteCluster               sql.NullString
		tasteTags, compatVector    sql.NullString
		lastLogin                  sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Username, &email, &u.PasswordHash, &u.IsAdmin, &msUsername,
		&msToken, &u.ShareListening, &u.ShareTaste, &tasteCluster, &tasteTags,
		&compatVector, &lastLogin, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.Email = nullStringPtr(email)
	u.MediaServerUsername = nullStringPtr(msUsername)
	u.MediaServerToken = nullStringPtr(msToken)
	u.TasteCluster = nullStringPtr(tasteCluster)
	jsonScan(tasteTags, &u.TasteTags)
	jsonScan(compatVector, &u.CompatibilityVector)
	u.LastLoginAt = nullTimePtr(lastLogin)
	return u, nil
}

// CreateUser inserts a user and returns its id. Duplicate usernames and
// emails surface as ErrConflict.
func (db *DB) CreateUser(u *models.User) (int64, error) {
	now := time.Now().UTC()
	res, err := db.Exec(`
	INSERT INTO users (username, email, password_hash, is_admin, media_server_username,
		media_server_token, share_listening, share_taste, taste_cluster, taste_tags,
		compatibility_vector, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.Username, u.Email, u.PasswordHash, u.IsAdmin, u.MediaServerUsername,
		u.MediaServerToken, u.ShareListening, u.ShareTaste, u.TasteCluster,
		jsonString(u.TasteTags), jsonString(u.CompatibilityVector), now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("username or email taken: %w", errs.ErrConflict)
		}
		return 0, fmt.Errorf("insert user: %w", err)
	}
	return res.LastInsertId()
}

// GetUser fetches one user by id.
func (db *DB) GetUser(id int64) (*models.User, error) {
	u, err := scanUser(db.QueryRow(`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user %d: %w", id, errs.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}
	return u, nil
}

// GetUserByUsername looks a user up for login; nil when unknown.
func (db *DB) GetUserByUsername(username string) (*models.User, error) {
	u, err := scanUser(db.QueryRow(`SELECT `+userColumns+` FROM users WHERE username = ? COLLATE NOCASE`, username))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user %q: %w", username, err)
	}
	return u, nil
}

// ListUsers returns every account, oldest first.
func (db *DB) ListUsers() ([]*models.User, error) {
	rows, err := db.Query(`SELECT ` + userColumns + ` FROM users ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var out []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// CountUsers reports how many accounts exist; zero means first-run setup.
func (db *DB) CountUsers() (int, error) {
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

// UpdateUser overwrites the mutable profile columns.
func (db *DB) UpdateUser(u *models.User) error {
	res, err := db.Exec(`
	UPDATE users SET email = ?, media_server_username = ?, media_server_token = ?,
		share_listening = ?, share_taste = ?, taste_cluster = ?, taste_tags = ?,
		compatibility_vector = ?, updated_at = ?
	WHERE id = ?`,
		u.Email, u.MediaServerUsername, u.MediaServerToken,
		u.ShareListening, u.ShareTaste, u.TasteCluster, jsonString(u.TasteTags),
		jsonString(u.CompatibilityVector), time.Now().UTC(), u.ID)
	if err != nil {
		return fmt.Errorf("update user %d: %w", u.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user %d: %w", u.ID, errs.ErrNotFound)
	}
	return nil
}

// SetUserPassword replaces the stored bcrypt hash.
func (db *DB) SetUserPassword(id int64, passwordHash string) error {
	res, err := db.Exec(`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		passwordHash, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("set user %d password: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user %d: %w", id, errs.ErrNotFound)
	}
	return nil
}

// TouchUserLogin stamps a successful login.
func (db *DB) TouchUserLogin(id int64) error {
	_, err := db.Exec(`UPDATE users SET last_login_at = ? WHERE id = ?`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("touch user %d login: %w", id, err)
	}
	return nil
}

// UsersSharingTaste returns users who opted in to taste matching,
// excluding the requester.
func (db *DB) UsersSharingTaste(excludeID int64) ([]*models.User, error) {
	rows, err := db.Query(`SELECT `+userColumns+` FROM users WHERE share_taste = 1 AND id != ?`, excludeID)
	if err != nil {
		return nil, fmt.Errorf("users sharing taste: %w", err)
	}
	defer rows.Close()

	var out []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
