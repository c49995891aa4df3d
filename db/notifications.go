package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/vibarr/vibarr/errs"
	"github.com/vibarr/vibarr/models"
)

// CreateNotification stores a notification and returns its id. A nil UserID
// makes it visible to everyone.
func (db *DB) CreateNotification(n *models.Notification) (int64, error) {
	res, err := db.Exec(`
	INSERT INTO notifications (user_id, title, message, read, created_at)
	VALUES (?, ?, ?, 0, ?)`,
		n.UserID, n.Title, n.Message, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("insert notification: %w", err)
	}
	return res.LastInsertId()
}

// ListNotifications returns a user's notifications newest first, global ones
// included, optionally only unread.
func (db *DB) ListNotifications(userID int64, unreadOnly bool, limit int) ([]*models.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT id, user_id, title, message, read, created_at FROM notifications
	WHERE (user_id IS NULL OR user_id = ?)`
	if unreadOnly {
		q += ` AND read = 0`
	}
	q += ` ORDER BY created_at DESC LIMIT ?`

	rows, err := db.Query(q, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []*models.Notification
	for rows.Next() {
		n := &models.Notification{}
		var uid sql.NullInt64
		if err := rows.Scan(&n.ID, &uid, &n.Title, &n.Message, &n.Read, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.UserID = nullInt64Ptr(uid)
		out = append(out, n)
	}
	return out, rows.Err()
}

// UnreadNotificationCount counts unread notifications visible to a user.
func (db *DB) UnreadNotificationCount(userID int64) (int, error) {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM notifications
	WHERE (user_id IS NULL OR user_id = ?) AND read = 0`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return n, nil
}

// MarkNotificationRead flags one notification as read.
func (db *DB) MarkNotificationRead(id int64) error {
	res, err := db.Exec(`UPDATE notifications SET read = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark notification %d read: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("notification %d: %w", id, errs.ErrNotFound)
	}
	return nil
}

// MarkAllNotificationsRead flags everything visible to the user as read.
func (db *DB) MarkAllNotificationsRead(userID int64) error {
	if _, err := db.Exec(`UPDATE notifications SET read = 1
	WHERE (user_id IS NULL OR user_id = ?) AND read = 0`, userID); err != nil {
		return fmt.Errorf("mark all notifications read: %w", err)
	}
	return nil
}

// PruneNotifications deletes read notifications older than the cutoff.
func (db *DB) PruneNotifications(olderThan time.Time) (int64, error) {
	res, err := db.Exec(`DELETE FROM notifications WHERE read = 1 AND created_at < ?`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("prune notifications: %w", err)
	}
	return res.RowsAffected()
}
