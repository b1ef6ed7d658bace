package models

import "time"

type KYCStatus string

const (
	KYCUnverified KYCStatus = "unverified"
	KYCPending    KYCStatus = "pending"
	KYCVerified   KYCStatus = "verified"
)

// Recipient is the payout profile of an artist or vendor. Verification flags
// and names are written by the onboarding/KYC subsystem; settlement only
// reads them through the compliance gate.
type Recipient struct {
	ID            string       `db:"id" json:"recipientId"`
	Type          SupplierType `db:"type" json:"type"`
	DisplayName   string       `db:"display_name" json:"displayName"`
	KYCStatus     KYCStatus    `db:"kyc_status" json:"kycStatus"`
	PANVerified   bool         `db:"pan_verified" json:"panVerified"`
	PANName       *string      `db:"pan_name" json:"-"`
	UPIVerified   bool         `db:"upi_verified" json:"upiVerified"`
	UPIName       *string      `db:"upi_name" json:"-"`
	BankVerified  bool         `db:"bank_verified" json:"bankVerified"`
	BankHolder    *string      `db:"bank_holder_name" json:"-"`
	BankAccountNo *string      `db:"bank_account_no" json:"-"`
	BankIFSC      *string      `db:"bank_ifsc" json:"-"`
	PayoutsLocked bool         `db:"payouts_locked" json:"payoutsLocked"`

	// IdentityOverride short-circuits the name match when ops has manually
	// vetted the account. MatchScore, when present, is the upstream
	// verification provider's 0-100 score.
	IdentityOverride bool     `db:"identity_override" json:"-"`
	MatchScore       *float64 `db:"match_score" json:"-"`

	PartnerID    *string   `db:"partner_id" json:"partnerId,omitempty"`
	PromoBalance int64     `db:"promo_balance" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"-"`
}

// HasBankDetails reports whether a transfer destination is on file.
func (r *Recipient) HasBankDetails() bool {
	return r.BankAccountNo != nil && *r.BankAccountNo != "" && r.BankIFSC != nil && *r.BankIFSC != ""
}
