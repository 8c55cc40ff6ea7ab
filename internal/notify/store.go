package notify

import (
	"database/sql"
	"fmt"
	"time"
)

const timeFormat = "2006-01-02 15:04:05"

// Migrate creates the notification history table.
func Migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS notification_history (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			channel       TEXT    NOT NULL,
			event_type    TEXT    NOT NULL,
			entity        TEXT,
			message       TEXT    NOT NULL,
			status        TEXT    NOT NULL DEFAULT 'pending',
			error_message TEXT,
			sent_at       DATETIME,
			created_at    DATETIME DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_notif_history_created ON notification_history(created_at);
	`)
	if err != nil {
		return fmt.Errorf("notification migration failed: %w", err)
	}
	return nil
}

// RecordNotification inserts a history row and returns its id.
func RecordNotification(db *sql.DB, rec *Record) (int64, error) {
	var sentAt any
	if !rec.SentAt.IsZero() {
		sentAt = rec.SentAt.UTC().Format(timeFormat)
	}

	result, err := db.Exec(`
		INSERT INTO notification_history (channel, event_type, entity, message, status, error_message, sent_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, rec.Channel, rec.EventType, rec.Entity, rec.Message, rec.Status, rec.ErrorMessage, sentAt)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// History returns the newest limit notification records.
func History(db *sql.DB, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := db.Query(`
		SELECT id, channel, event_type, entity, message, status, error_message, sent_at, created_at
		FROM notification_history
		ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		var entity, errMsg, sentAt, createdAt sql.NullString
		if err := rows.Scan(&r.ID, &r.Channel, &r.EventType, &entity, &r.Message,
			&r.Status, &errMsg, &sentAt, &createdAt); err != nil {
			continue
		}
		r.Entity = entity.String
		r.ErrorMessage = errMsg.String
		if sentAt.Valid {
			r.SentAt, _ = time.Parse(timeFormat, sentAt.String)
		}
		if createdAt.Valid {
			r.CreatedAt, _ = time.Parse(timeFormat, createdAt.String)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
