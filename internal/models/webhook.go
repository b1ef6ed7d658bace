package models

import (
	"encoding/json"
	"time"
)

type WebhookStatus string

const (
	WebhookProcessing WebhookStatus = "processing"
	WebhookProcessed  WebhookStatus = "processed"
	WebhookFailed     WebhookStatus = "failed"
)

type WebhookSource string

const (
	WebhookSourcePayment WebhookSource = "payment"
	WebhookSourcePayout  WebhookSource = "payout"
	WebhookSourceDispute WebhookSource = "dispute"
)

// WebhookLog is the durable idempotency record for inbound gateway events,
// keyed by the event's natural id. A row in status processed means the event
// already took full effect; replays are acknowledged without mutation.
// Rows are never deleted by the engine.
type WebhookLog struct {
	EventID     string          `db:"event_id" json:"eventId"`
	Source      WebhookSource   `db:"source" json:"source"`
	Status      WebhookStatus   `db:"status" json:"status"`
	RawBody     json.RawMessage `db:"raw_body" json:"-"`
	Note        *string         `db:"note" json:"note,omitempty"`
	ReceivedAt  time.Time       `db:"received_at" json:"receivedAt"`
	ProcessedAt *time.Time      `db:"processed_at" json:"processedAt,omitempty"`
}
