package repository

import (
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/gigstage/settlement_api/internal/models"
)

// EscrowRepository handles data access for escrow payments. Every mutation
// bumps the row version; guarded updates return sql.ErrNoRows when the
// precondition no longer holds.
type EscrowRepository struct {
	db *sqlx.DB
}

// NewEscrowRepository creates a new EscrowRepository.
func NewEscrowRepository(db *sqlx.DB) *EscrowRepository {
	return &EscrowRepository{db: db}
}

// Create inserts a new escrow payment row for a placed order.
func (r *EscrowRepository) Create(p *models.EscrowPayment) error {
	const q = `
        INSERT INTO escrow_payments (
            booking_id, gateway_order_id, amount_expected, amount_paid,
            escrow_held, release_status, release_plan_version, refund_status, version
        ) VALUES ($1, $2, $3, 0, FALSE, 'held_pending', 0, '', 0)
        RETURNING id, created_at, updated_at`
	return r.db.QueryRow(q, p.BookingID, p.GatewayOrderID, p.AmountExpected).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

// GetByBookingID returns the escrow payment for a booking.
func (r *EscrowRepository) GetByBookingID(bookingID string) (*models.EscrowPayment, error) {
	const q = `SELECT * FROM escrow_payments WHERE booking_id = $1 LIMIT 1`
	var p models.EscrowPayment
	if err := r.db.Get(&p, q, bookingID); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetByOrderID returns the escrow payment by gateway order id.
func (r *EscrowRepository) GetByOrderID(orderID string) (*models.EscrowPayment, error) {
	const q = `SELECT * FROM escrow_payments WHERE gateway_order_id = $1 LIMIT 1`
	var p models.EscrowPayment
	if err := r.db.Get(&p, q, orderID); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetByID returns the escrow payment by internal id.
func (r *EscrowRepository) GetByID(id int) (*models.EscrowPayment, error) {
	const q = `SELECT * FROM escrow_payments WHERE id = $1 LIMIT 1`
	var p models.EscrowPayment
	if err := r.db.Get(&p, q, id); err != nil {
		return nil, err
	}
	return &p, nil
}

// RecordCapture accumulates one successful capture. amount_paid grows with
// every capture (advance then balance), escrow_held is set on the first and
// never unset, and the gateway payment id of the first capture is kept.
// Returns the running amount_paid total.
func (r *EscrowRepository) RecordCapture(id int, gatewayPaymentID string, amount int64) (int64, error) {
	const q = `
        UPDATE escrow_payments SET
            gateway_payment_id = COALESCE(gateway_payment_id, NULLIF($2, '')),
            amount_paid = amount_paid + $3,
            escrow_held = TRUE,
            release_status = CASE WHEN escrow_held THEN release_status ELSE 'held' END,
            version = version + 1,
            updated_at = NOW()
        WHERE id = $1
        RETURNING amount_paid`
	var total int64
	if err := r.db.Get(&total, q, id, gatewayPaymentID, amount); err != nil {
		return 0, err
	}
	return total, nil
}

// SetReleaseStatus updates the aggregate release status.
func (r *EscrowRepository) SetReleaseStatus(id int, status models.ReleaseStatus) error {
	const q = `
        UPDATE escrow_payments SET release_status = $2, version = version + 1, updated_at = NOW()
        WHERE id = $1`
	_, err := r.db.Exec(q, id, status)
	return err
}

// ArmReleasePlan bumps release_plan_version from 0 to 1 exactly once and
// creates the stage rows in the same transaction. A replayed completion
// event sees version already at 1 and returns sql.ErrNoRows without writing
// any stages.
func (r *EscrowRepository) ArmReleasePlan(paymentID int, stages []models.ReleaseStage) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const claim = `
        UPDATE escrow_payments SET release_plan_version = 1, version = version + 1, updated_at = NOW()
        WHERE id = $1 AND release_plan_version = 0 AND escrow_held = TRUE`
	res, err := tx.Exec(claim, paymentID)
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

	const ins = `
        INSERT INTO release_stages (payment_id, booking_id, stage_key, fraction, eligible_at, status)
        VALUES ($1, $2, $3, $4, $5, 'scheduled')`
	for _, s := range stages {
		if _, err := tx.Exec(ins, paymentID, s.BookingID, s.StageKey, s.Fraction, s.EligibleAt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// SetRefund records refund progress on the payment.
func (r *EscrowRepository) SetRefund(id int, status models.RefundStatus, refundID string) error {
	const q = `
        UPDATE escrow_payments SET refund_status = $2, refund_id = $3, version = version + 1, updated_at = NOW()
        WHERE id = $1`
	_, err := r.db.Exec(q, id, status, refundID)
	return err
}
