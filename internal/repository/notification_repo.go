package repository

import (
	"fmt"

	"github.com/jmoiron/sqlx"
)

// NotificationRepository persists the once-per-(stage,reason) dedup keys for
// hold/block notifications, so retried ticks never re-notify a recipient for
// the same condition.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository creates a new NotificationRepository.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// DedupKey builds the stable key for one (booking, stage, recipient, reason).
func DedupKey(bookingID, stageKey, recipientID, reason string) string {
	return fmt.Sprintf("%s:%s:%s:%s", bookingID, stageKey, recipientID, reason)
}

// MarkOnce records the dedup key. Returns true the first time, false on any
// replay.
func (r *NotificationRepository) MarkOnce(bookingID, stageKey, recipientID, reason string) (bool, error) {
	const q = `
        INSERT INTO stage_notifications (dedup_key, booking_id, recipient_id, stage_key, reason)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (dedup_key) DO NOTHING`
	res, err := r.db.Exec(q, DedupKey(bookingID, stageKey, recipientID, reason), bookingID, recipientID, stageKey, reason)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
