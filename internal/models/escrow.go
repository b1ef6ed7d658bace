package models

import (
	"encoding/json"
	"time"
)

type ReleaseStatus string

const (
	ReleaseHeldPending ReleaseStatus = "held_pending"
	ReleaseHeld        ReleaseStatus = "held"
	ReleaseProcessing  ReleaseStatus = "processing"
	ReleaseEnqueued    ReleaseStatus = "enqueued"
	ReleaseHold        ReleaseStatus = "hold"
	ReleaseFailed      ReleaseStatus = "failed"
)

type RefundStatus string

const (
	RefundNone      RefundStatus = ""
	RefundRequested RefundStatus = "requested"
	RefundDone      RefundStatus = "refunded"
)

// EscrowPayment tracks captured funds for one booking (1:1 with an active
// booking). escrow_held is monotonic: it is set exactly once by webhook
// ingest on payment success and never cleared. The row carries a version
// counter; every mutation goes through a compare-and-set on it.
type EscrowPayment struct {
	ID                 int           `db:"id" json:"-"`
	BookingID          string        `db:"booking_id" json:"bookingId"`
	GatewayOrderID     string        `db:"gateway_order_id" json:"gatewayOrderId"`
	GatewayPaymentID   *string       `db:"gateway_payment_id" json:"gatewayPaymentId,omitempty"`
	AmountExpected     int64         `db:"amount_expected" json:"amountExpected"`
	AmountPaid         int64         `db:"amount_paid" json:"amountPaid"`
	EscrowHeld         bool          `db:"escrow_held" json:"escrowHeld"`
	ReleaseStatus      ReleaseStatus `db:"release_status" json:"releaseStatus"`
	ReleasePlanVersion int           `db:"release_plan_version" json:"releasePlanVersion"`
	RefundStatus       RefundStatus  `db:"refund_status" json:"refundStatus,omitempty"`
	RefundID           *string       `db:"refund_id" json:"refundId,omitempty"`
	Version            int           `db:"version" json:"-"`
	CreatedAt          time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt          time.Time     `db:"updated_at" json:"-"`
}

type StageStatus string

const (
	StageScheduled  StageStatus = "scheduled"
	StageProcessing StageStatus = "processing"
	StageEnqueued   StageStatus = "enqueued"
	StageHold       StageStatus = "hold"
	StageFailed     StageStatus = "failed"
)

const (
	StageKey1 = "stage1"
	StageKey2 = "stage2"
)

// ReleaseStage is one tranche of a release plan. Stages are claimed
// scheduled->processing under a transactional precondition, which is what
// keeps concurrent scheduler ticks from double-releasing a tranche.
type ReleaseStage struct {
	ID          int             `db:"id" json:"-"`
	PaymentID   int             `db:"payment_id" json:"-"`
	BookingID   string          `db:"booking_id" json:"bookingId"`
	StageKey    string          `db:"stage_key" json:"stageKey"`
	Fraction    float64         `db:"fraction" json:"fraction"`
	EligibleAt  time.Time       `db:"eligible_at" json:"eligibleAt"`
	Status      StageStatus     `db:"status" json:"status"`
	BlockReason *string         `db:"block_reason" json:"blockReason,omitempty"`
	Error       *string         `db:"error" json:"error,omitempty"`
	Allocations json.RawMessage `db:"allocations" json:"allocations,omitempty"`
	EnqueuedJob json.RawMessage `db:"enqueued_jobs" json:"enqueuedJobs,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time       `db:"updated_at" json:"-"`
}

// StageAllocation is the per-recipient split stored on an enqueued stage.
// All amounts are paise; gross/tds/tcs/net across recipients and stages sum
// back to the booking-level distribution with no rounding leakage.
type StageAllocation struct {
	RecipientID string       `json:"recipientId"`
	Type        SupplierType `json:"type"`
	Gross       int64        `json:"gross"`
	TDS         int64        `json:"tds"`
	TCS         int64        `json:"tcs"`
	Net         int64        `json:"net"`
	TransferID  string       `json:"transferId"`
}
