package models

import "time"

type BookingStatus string

const (
	BookingPendingPayment BookingStatus = "pending_payment"
	BookingAccepted       BookingStatus = "accepted"
	BookingPaid           BookingStatus = "paid"
	BookingConfirmed      BookingStatus = "confirmed"
	BookingInProgress     BookingStatus = "in_progress"
	BookingCompleted      BookingStatus = "completed"
	BookingDisputed       BookingStatus = "disputed"
	BookingCancelled      BookingStatus = "cancelled"
	BookingRefunded       BookingStatus = "refunded"
)

type DisputeStatus string

const (
	DisputeNone     DisputeStatus = ""
	DisputeOpen     DisputeStatus = "open"
	DisputeResolved DisputeStatus = "resolved"
)

type SupplierType string

const (
	SupplierArtist SupplierType = "artist"
	SupplierVendor SupplierType = "vendor"
)

// Booking is the slice of the booking document this engine reads and writes.
// The booking subsystem owns the lifecycle; settlement only reads
// status/paidFull/payoutHold and writes payoutHold, dispute fields and
// status=completed during dispute resolution.
type Booking struct {
	ID          string        `db:"id" json:"bookingId"`
	Status      BookingStatus `db:"status" json:"status"`
	Amount      int64         `db:"amount" json:"amount"`
	PaidFull    bool          `db:"paid_full" json:"paidFull"`
	PayoutHold  bool          `db:"payout_hold" json:"payoutHold"`
	CompletedAt *time.Time    `db:"completed_at" json:"completedAt,omitempty"`

	DisputeStatus     DisputeStatus `db:"dispute_status" json:"disputeStatus,omitempty"`
	DisputeOpenedAt   *time.Time    `db:"dispute_opened_at" json:"disputeOpenedAt,omitempty"`
	DisputeResolution *string       `db:"dispute_resolution" json:"disputeResolution,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"-"`
}

// ServiceItem is one supplier line on a booking. Amounts are paise and the
// item amounts sum to the booking amount.
type ServiceItem struct {
	ID         int          `db:"id" json:"-"`
	BookingID  string       `db:"booking_id" json:"-"`
	Type       SupplierType `db:"type" json:"type"`
	SupplierID string       `db:"supplier_id" json:"supplierId"`
	Amount     int64        `db:"amount" json:"amount"`
}

// DisputeOpen reports whether the booking currently has an open dispute.
func (b *Booking) DisputeIsOpen() bool {
	return b.DisputeStatus == DisputeOpen
}
