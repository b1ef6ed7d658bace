package repository

import (
	"github.com/jmoiron/sqlx"

	"github.com/gigstage/settlement_api/internal/models"
)

// RecipientRepository handles data access for payout recipient profiles.
type RecipientRepository struct {
	db *sqlx.DB
}

// NewRecipientRepository creates a new RecipientRepository.
func NewRecipientRepository(db *sqlx.DB) *RecipientRepository {
	return &RecipientRepository{db: db}
}

// GetByID returns a recipient profile by id.
func (r *RecipientRepository) GetByID(recipientID string) (*models.Recipient, error) {
	const q = `SELECT * FROM recipients WHERE id = $1 LIMIT 1`
	var rec models.Recipient
	if err := r.db.Get(&rec, q, recipientID); err != nil {
		return nil, err
	}
	return &rec, nil
}

// DeductPromoSpend applies an auto-promo deduction, clamped at the current
// balance. Returns the amount actually deducted (0 when the balance is empty).
func (r *RecipientRepository) DeductPromoSpend(recipientID string, amount int64) (int64, error) {
	tx, err := r.db.Beginx()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var balance int64
	if err := tx.Get(&balance, `SELECT promo_balance FROM recipients WHERE id = $1 FOR UPDATE`, recipientID); err != nil {
		return 0, err
	}
	deduct := amount
	if deduct > balance {
		deduct = balance
	}
	if deduct <= 0 {
		return 0, tx.Commit()
	}
	const upd = `UPDATE recipients SET promo_balance = promo_balance - $2, updated_at = NOW() WHERE id = $1`
	if _, err := tx.Exec(upd, recipientID, deduct); err != nil {
		return 0, err
	}
	return deduct, tx.Commit()
}
