package models

import "time"

type PayoutJobStatus string

const (
	JobQueued     PayoutJobStatus = "queued"
	JobProcessing PayoutJobStatus = "processing"
	JobSent       PayoutJobStatus = "sent"
	JobDead       PayoutJobStatus = "dead"
)

// PayoutJob is one durable unit of work for the payout worker. Delivery is
// at-least-once: a crashed worker leaves the job claimable again after its
// retry delay, and downstream effects dedupe on transfer_id.
type PayoutJob struct {
	ID          int             `db:"id" json:"-"`
	TransferID  string          `db:"transfer_id" json:"transferId"`
	BookingID   string          `db:"booking_id" json:"bookingId"`
	PaymentID   int             `db:"payment_id" json:"-"`
	StageKey    string          `db:"stage_key" json:"stageKey"`
	PayoutType  SupplierType    `db:"payout_type" json:"payoutType"`
	RecipientID string          `db:"recipient_id" json:"recipientId"`
	Amount      int64           `db:"amount" json:"amount"`
	Status      PayoutJobStatus `db:"status" json:"status"`
	Attempt     int             `db:"attempt" json:"attempt"`
	MaxRetry    int             `db:"max_retry" json:"-"`
	NextRetryAt *time.Time      `db:"next_retry_at" json:"nextRetryAt,omitempty"`
	LastError   *string         `db:"last_error" json:"lastError,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time       `db:"updated_at" json:"-"`
}

type TransferStatus string

const (
	TransferRequested TransferStatus = "requested"
	TransferInitiated TransferStatus = "initiated"
	TransferSuccess   TransferStatus = "success"
	TransferFailed    TransferStatus = "failed"
	TransferReversed  TransferStatus = "reversed"
)

// PayoutTransfer is the reconciliation join between an asynchronous transfer
// request and its terminal status webhook. The row is written before any
// external call, so a crash between enqueue and the gateway call still
// leaves a traceable record.
type PayoutTransfer struct {
	TransferID    string         `db:"transfer_id" json:"transferId"`
	BookingID     string         `db:"booking_id" json:"bookingId"`
	PaymentID     int            `db:"payment_id" json:"-"`
	PayoutType    SupplierType   `db:"payout_type" json:"payoutType"`
	RecipientID   string         `db:"recipient_id" json:"recipientId"`
	StageKey      string         `db:"stage_key" json:"stageKey"`
	Amount        int64          `db:"amount" json:"amount"`
	Status        TransferStatus `db:"status" json:"status"`
	ReferenceID   *string        `db:"reference_id" json:"referenceId,omitempty"`
	FailureReason *string        `db:"failure_reason" json:"failureReason,omitempty"`
	CreatedAt     time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time      `db:"updated_at" json:"-"`
}

// PayoutAttempt is an append-only audit record. Redelivery of the same job
// appends another row; nothing here is ever updated in place.
type PayoutAttempt struct {
	ID         int       `db:"id" json:"-"`
	TransferID string    `db:"transfer_id" json:"transferId"`
	JobID      int       `db:"job_id" json:"-"`
	Attempt    int       `db:"attempt" json:"attempt"`
	Outcome    string    `db:"outcome" json:"outcome"`
	Detail     *string   `db:"detail" json:"detail,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}
