package models

import (
	"encoding/json"
	"time"
)

// PlatformLedger is the merge-upserted financial aggregate per booking.
// Stage entries accumulate; summing all stages reproduces the gross
// collected amount exactly.
type PlatformLedger struct {
	BookingID          string          `db:"booking_id" json:"bookingId"`
	GrossCollected     int64           `db:"gross_collected" json:"grossCollected"`
	EscrowFeeEstimated int64           `db:"escrow_fee_estimated" json:"escrowFeeEstimated"`
	PlatformRetained   int64           `db:"platform_retained" json:"platformRetained"`
	GSTCollectedTotal  int64           `db:"gst_collected_total" json:"gstCollectedTotal"`
	TDSWithheldTotal   int64           `db:"tds_withheld_total" json:"tdsWithheldTotal"`
	TCSPlatformCost    int64           `db:"tcs_platform_cost" json:"tcsPlatformCost"`
	SupplierNetTotal   int64           `db:"supplier_net_total" json:"supplierNetTotal"`
	Stages             json.RawMessage `db:"stages" json:"stages,omitempty"`
	UpdatedAt          time.Time       `db:"updated_at" json:"updatedAt"`
}

// LedgerStageEntry is the per-stage breakdown stored inside the ledger's
// stages document.
type LedgerStageEntry struct {
	StageGross        int64     `json:"stageGross"`
	EscrowFee         int64     `json:"escrowFee"`
	PlatformRetained  int64     `json:"platformRetained"`
	GSTCollected      int64     `json:"gstCollected"`
	TDSWithheld       int64     `json:"tdsWithheld"`
	TCSPlatformCost   int64     `json:"tcsPlatformCost"`
	SupplierNetPayout int64     `json:"supplierNetPayout"`
	RecordedAt        time.Time `json:"recordedAt"`
}

// PartnerCommission accrues once per booking at final-stage release. The
// (booking, partner) key makes replayed accruals no-ops.
type PartnerCommission struct {
	BookingID string    `db:"booking_id" json:"bookingId"`
	PartnerID string    `db:"partner_id" json:"partnerId"`
	Rate      float64   `db:"rate" json:"rate"`
	Amount    int64     `db:"amount" json:"amount"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}
