package repository

import (
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/gigstage/settlement_api/internal/models"
)

// WebhookLogRepository is the durable idempotency log for inbound events.
type WebhookLogRepository struct {
	db *sqlx.DB
}

// NewWebhookLogRepository creates a new WebhookLogRepository.
func NewWebhookLogRepository(db *sqlx.DB) *WebhookLogRepository {
	return &WebhookLogRepository{db: db}
}

// BeginProcessing claims an event id for processing. The upsert takes the
// row unless a previous delivery already reached processed, in which case it
// returns duplicate=true and the caller must not mutate anything. A row left
// in processing or failed by a crashed handler is taken over, which is what
// makes redelivery after a crash safe.
func (r *WebhookLogRepository) BeginProcessing(eventID string, source models.WebhookSource, rawBody []byte) (duplicate bool, err error) {
	const q = `
        INSERT INTO webhook_logs (event_id, source, status, raw_body, received_at)
        VALUES ($1, $2, 'processing', $3, NOW())
        ON CONFLICT (event_id) DO UPDATE
            SET status = 'processing', received_at = NOW()
            WHERE webhook_logs.status <> 'processed'
        RETURNING event_id`
	var claimed string
	err = r.db.QueryRow(q, eventID, source, normalizeRaw(rawBody)).Scan(&claimed)
	if err == nil {
		return false, nil
	}
	// No row returned means the conflict target was already processed.
	if errors.Is(err, sql.ErrNoRows) {
		return true, nil
	}
	return false, err
}

// Finalize writes the terminal state of an event. This runs regardless of
// which processing branch was taken, so the log always reflects the true
// outcome for audit.
func (r *WebhookLogRepository) Finalize(eventID string, status models.WebhookStatus, note string) error {
	const q = `
        UPDATE webhook_logs SET status = $2, note = NULLIF($3, ''), processed_at = NOW()
        WHERE event_id = $1`
	_, err := r.db.Exec(q, eventID, status, note)
	return err
}

// Get returns a webhook log entry by event id.
func (r *WebhookLogRepository) Get(eventID string) (*models.WebhookLog, error) {
	const q = `SELECT * FROM webhook_logs WHERE event_id = $1 LIMIT 1`
	var l models.WebhookLog
	if err := r.db.Get(&l, q, eventID); err != nil {
		return nil, err
	}
	return &l, nil
}

// normalizeRaw makes sure the stored body is valid JSON so it fits the JSONB
// column; non-JSON bodies are stored as a JSON string.
func normalizeRaw(raw []byte) []byte {
	if json.Valid(raw) {
		return raw
	}
	quoted, _ := json.Marshal(string(raw))
	return quoted
}
