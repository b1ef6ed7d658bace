package repository

import (
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/gigstage/settlement_api/internal/models"
)

// BookingRepository handles data access for the settlement-relevant slice of
// bookings. Status transitions use guarded UPDATEs so concurrent writers
// cannot clobber each other.
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository creates a new BookingRepository.
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// GetByID returns a booking by id.
func (r *BookingRepository) GetByID(bookingID string) (*models.Booking, error) {
	const q = `SELECT * FROM bookings WHERE id = $1 LIMIT 1`
	var b models.Booking
	if err := r.db.Get(&b, q, bookingID); err != nil {
		return nil, err
	}
	return &b, nil
}

// GetServiceItems returns the supplier lines for a booking.
func (r *BookingRepository) GetServiceItems(bookingID string) ([]models.ServiceItem, error) {
	const q = `SELECT * FROM service_items WHERE booking_id = $1 ORDER BY id`
	var items []models.ServiceItem
	if err := r.db.Select(&items, q, bookingID); err != nil {
		return nil, err
	}
	return items, nil
}

// AdvancePaymentProgress records a capture against the booking. When the
// remaining due amount after this capture is <= 0 the booking is marked
// paid_full and moved to paid; otherwise it stays on its current status.
func (r *BookingRepository) AdvancePaymentProgress(bookingID string, paidFull bool) error {
	if paidFull {
		const q = `
            UPDATE bookings SET paid_full = TRUE,
                status = CASE WHEN status IN ('pending_payment', 'accepted') THEN 'paid' ELSE status END,
                updated_at = NOW()
            WHERE id = $1`
		_, err := r.db.Exec(q, bookingID)
		return err
	}
	const q = `
        UPDATE bookings SET
            status = CASE WHEN status = 'pending_payment' THEN 'accepted' ELSE status END,
            updated_at = NOW()
        WHERE id = $1`
	_, err := r.db.Exec(q, bookingID)
	return err
}

// MarkPaymentFailed flags the booking when the gateway reports a failed
// capture. Only a booking still waiting on payment is touched.
func (r *BookingRepository) MarkPaymentFailed(bookingID string) error {
	const q = `
        UPDATE bookings SET status = 'pending_payment', updated_at = NOW()
        WHERE id = $1 AND status IN ('pending_payment', 'accepted')`
	_, err := r.db.Exec(q, bookingID)
	return err
}

// MarkCompleted transitions the booking to completed exactly once. Returns
// sql.ErrNoRows when the booking is not in a completable status, so callers
// can distinguish a replay from a precondition failure.
func (r *BookingRepository) MarkCompleted(bookingID string, at time.Time) error {
	const q = `
        UPDATE bookings SET status = 'completed', completed_at = $2, updated_at = NOW()
        WHERE id = $1 AND status IN ('paid', 'confirmed', 'in_progress')`
	res, err := r.db.Exec(q, bookingID, at)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetPayoutHold toggles the manual payout hold flag.
func (r *BookingRepository) SetPayoutHold(bookingID string, hold bool) error {
	const q = `UPDATE bookings SET payout_hold = $2, updated_at = NOW() WHERE id = $1`
	_, err := r.db.Exec(q, bookingID, hold)
	return err
}

// OpenDispute sets dispute fields and payout hold in one statement, guarded
// on the booking still being completed.
func (r *BookingRepository) OpenDispute(bookingID string, at time.Time) error {
	const q = `
        UPDATE bookings SET
            status = 'disputed',
            payout_hold = TRUE,
            dispute_status = 'open',
            dispute_opened_at = $2,
            updated_at = NOW()
        WHERE id = $1 AND status = 'completed'`
	res, err := r.db.Exec(q, bookingID, at)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ResolveDispute moves a disputed booking back to completed and records the
// resolution. payout_hold is kept when the resolution does not unblock payout.
func (r *BookingRepository) ResolveDispute(bookingID, resolution string, keepHold bool) error {
	const q = `
        UPDATE bookings SET
            status = 'completed',
            payout_hold = $3,
            dispute_status = 'resolved',
            dispute_resolution = $2,
            updated_at = NOW()
        WHERE id = $1 AND dispute_status = 'open'`
	res, err := r.db.Exec(q, bookingID, resolution, keepHold)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// MarkCancelled moves the booking to cancelled (or refunded when the escrow
// was already captured).
func (r *BookingRepository) MarkCancelled(bookingID string, refunded bool) error {
	status := "cancelled"
	if refunded {
		status = "refunded"
	}
	const q = `UPDATE bookings SET status = $2, updated_at = NOW() WHERE id = $1`
	_, err := r.db.Exec(q, bookingID, status)
	return err
}

// CountEligibleBookings returns how many completed bookings a partner's
// recipients have settled before, used for the commission tier.
func (r *BookingRepository) CountEligibleBookings(partnerID string) (int, error) {
	const q = `
        SELECT COUNT(DISTINCT b.id)
        FROM bookings b
        JOIN service_items si ON si.booking_id = b.id
        JOIN recipients rc ON rc.id = si.supplier_id
        WHERE rc.partner_id = $1 AND b.status IN ('completed', 'disputed')`
	var n int
	if err := r.db.Get(&n, q, partnerID); err != nil {
		return 0, err
	}
	return n, nil
}
