package repository

import (
	"encoding/json"

	"github.com/jmoiron/sqlx"

	"github.com/gigstage/settlement_api/internal/models"
)

// LedgerRepository persists the per-booking financial aggregate and partner
// commissions. Ledger writes are merges: totals accumulate and the stages
// document gains one key per stage, so a wholesale replace can never erase a
// sibling stage.
type LedgerRepository struct {
	db *sqlx.DB
}

// NewLedgerRepository creates a new LedgerRepository.
func NewLedgerRepository(db *sqlx.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// MergeStage upserts one stage's breakdown into the booking ledger. Totals
// are incremented and the stage entry is set under its key via jsonb_set,
// leaving other stage keys untouched.
func (r *LedgerRepository) MergeStage(bookingID, stageKey string, entry models.LedgerStageEntry) error {
	entryJSON, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	const q = `
        INSERT INTO platform_ledgers (
            booking_id, gross_collected, escrow_fee_estimated, platform_retained,
            gst_collected_total, tds_withheld_total, tcs_platform_cost, supplier_net_total,
            stages, updated_at
        ) VALUES (
            $1, $3, $4, $5, $6, $7, $8, $9,
            jsonb_build_object($2::text, $10::jsonb), NOW()
        )
        ON CONFLICT (booking_id) DO UPDATE SET
            gross_collected      = platform_ledgers.gross_collected + EXCLUDED.gross_collected,
            escrow_fee_estimated = platform_ledgers.escrow_fee_estimated + EXCLUDED.escrow_fee_estimated,
            platform_retained    = platform_ledgers.platform_retained + EXCLUDED.platform_retained,
            gst_collected_total  = platform_ledgers.gst_collected_total + EXCLUDED.gst_collected_total,
            tds_withheld_total   = platform_ledgers.tds_withheld_total + EXCLUDED.tds_withheld_total,
            tcs_platform_cost    = platform_ledgers.tcs_platform_cost + EXCLUDED.tcs_platform_cost,
            supplier_net_total   = platform_ledgers.supplier_net_total + EXCLUDED.supplier_net_total,
            stages               = jsonb_set(platform_ledgers.stages, ARRAY[$2::text], $10::jsonb),
            updated_at           = NOW()
        WHERE NOT platform_ledgers.stages ? $2::text`
	_, err = r.db.Exec(q,
		bookingID, stageKey,
		entry.StageGross, entry.EscrowFee, entry.PlatformRetained, entry.GSTCollected,
		entry.TDSWithheld, entry.TCSPlatformCost, entry.SupplierNetPayout,
		entryJSON,
	)
	return err
}

// Get returns the ledger for a booking.
func (r *LedgerRepository) Get(bookingID string) (*models.PlatformLedger, error) {
	const q = `SELECT * FROM platform_ledgers WHERE booking_id = $1 LIMIT 1`
	var l models.PlatformLedger
	if err := r.db.Get(&l, q, bookingID); err != nil {
		return nil, err
	}
	return &l, nil
}

// AccrueCommission inserts the partner commission once per (booking,
// partner). A replayed final-stage release conflicts on the key and is a
// no-op; the bool reports whether a row was actually written.
func (r *LedgerRepository) AccrueCommission(c *models.PartnerCommission) (bool, error) {
	const q = `
        INSERT INTO partner_commissions (booking_id, partner_id, rate, amount)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (booking_id, partner_id) DO NOTHING`
	res, err := r.db.Exec(q, c.BookingID, c.PartnerID, c.Rate, c.Amount)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
