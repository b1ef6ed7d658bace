package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gigstage/settlement_api/internal/models"
)

func strPtr(s string) *string   { return &s }
func f64Ptr(f float64) *float64 { return &f }

func verifiedRecipient() *models.Recipient {
	return &models.Recipient{
		ID:            "art_1",
		Type:          models.SupplierArtist,
		DisplayName:   "Rahul Sharma",
		KYCStatus:     models.KYCVerified,
		PANVerified:   true,
		PANName:       strPtr("Rahul Sharma"),
		BankVerified:  true,
		BankHolder:    strPtr("Rahul Sharma"),
		BankAccountNo: strPtr("001234567890"),
		BankIFSC:      strPtr("HDFC0001234"),
	}
}

func TestCheckRecipient_Clear(t *testing.T) {
	svc := NewComplianceService(testPolicy())

	assert.Nil(t, svc.CheckRecipient(verifiedRecipient()))
}

func TestCheckRecipient_FirstReasonWins(t *testing.T) {
	svc := NewComplianceService(testPolicy())

	// Locked, unverified KYC and no bank details at once: the ops lock is
	// reported first so retries always see the same reason.
	rec := &models.Recipient{
		ID:            "art_2",
		DisplayName:   "Priya Verma",
		KYCStatus:     models.KYCPending,
		PayoutsLocked: true,
	}
	blk := svc.CheckRecipient(rec)
	require.NotNil(t, blk)
	assert.Equal(t, BlockPayoutsLocked, blk.Reason)

	rec.PayoutsLocked = false
	assert.Equal(t, BlockKYCNotVerified, svc.CheckRecipient(rec).Reason)

	rec.KYCStatus = models.KYCVerified
	assert.Equal(t, BlockPANRequired, svc.CheckRecipient(rec).Reason)

	// With PAN verified the identity gate runs next; no instrument carries a
	// matching name yet.
	rec.PANVerified = true
	rec.PANName = strPtr("Someone Else Entirely")
	assert.Equal(t, BlockIdentityMismatch, svc.CheckRecipient(rec).Reason)

	// Identity clear, bank details still missing.
	rec.PANName = strPtr("Priya Verma")
	assert.Equal(t, BlockMissingBank, svc.CheckRecipient(rec).Reason)

	rec.BankAccountNo = strPtr("001234567890")
	rec.BankIFSC = strPtr("HDFC0001234")
	assert.Nil(t, svc.CheckRecipient(rec))
}

func TestCheckRecipient_AlternateKYCAcceptance(t *testing.T) {
	svc := NewComplianceService(testPolicy())

	// KYC still pending, but PAN plus one verified instrument stands in.
	rec := verifiedRecipient()
	rec.KYCStatus = models.KYCPending
	rec.PANVerified = true
	rec.BankVerified = true

	assert.Nil(t, svc.CheckRecipient(rec))

	// UPI instead of bank works the same way.
	rec.BankVerified = false
	rec.UPIVerified = true
	assert.Nil(t, svc.CheckRecipient(rec))

	// PAN alone does not.
	rec.UPIVerified = false
	blk := svc.CheckRecipient(rec)
	require.NotNil(t, blk)
	assert.Equal(t, BlockKYCNotVerified, blk.Reason)
}

func TestCheckRecipient_IdentityBeforeBankDetails(t *testing.T) {
	svc := NewComplianceService(testPolicy())

	// Name mismatch and missing bank details together: the identity gate
	// reports first.
	rec := verifiedRecipient()
	rec.PANName = strPtr("Totally Unrelated")
	rec.BankHolder = strPtr("Also Unrelated")
	rec.BankAccountNo = nil
	rec.BankIFSC = nil

	blk := svc.CheckRecipient(rec)
	require.NotNil(t, blk)
	assert.Equal(t, BlockIdentityMismatch, blk.Reason)
}

func TestCheckRecipient_IdentityBlockRecordsBestScore(t *testing.T) {
	svc := NewComplianceService(testPolicy())

	// Bank holder shares one of two tokens (0.50), PAN shares none; the
	// block records the bank name as the closest candidate.
	rec := verifiedRecipient()
	rec.PANName = strPtr("Totally Unrelated")
	rec.UPIName = nil
	rec.BankHolder = strPtr("Rahul Gupta")

	blk := svc.CheckRecipient(rec)
	require.NotNil(t, blk)
	assert.Equal(t, BlockIdentityMismatch, blk.Reason)
	assert.Equal(t, "best 0.50 via bank", blk.Details)
}

func TestCheckRecipient_PANOptionalByPolicy(t *testing.T) {
	policy := testPolicy()
	policy.RequirePAN = false
	svc := NewComplianceService(policy)

	rec := verifiedRecipient()
	rec.PANVerified = false
	rec.PANName = nil

	assert.Nil(t, svc.CheckRecipient(rec))
}

func TestIdentityMatches_Override(t *testing.T) {
	svc := NewComplianceService(testPolicy())

	rec := verifiedRecipient()
	rec.PANName = nil
	rec.BankHolder = strPtr("Completely Different")
	rec.IdentityOverride = true

	assert.True(t, svc.IdentityMatches(rec))
}

func TestIdentityMatches_ProviderScore(t *testing.T) {
	svc := NewComplianceService(testPolicy())

	rec := verifiedRecipient()
	rec.PANName = nil
	rec.BankHolder = strPtr("Completely Different")

	rec.MatchScore = f64Ptr(70)
	assert.True(t, svc.IdentityMatches(rec), "score at threshold passes")

	rec.MatchScore = f64Ptr(69.9)
	assert.False(t, svc.IdentityMatches(rec), "score below threshold falls through to name match")
}

func TestIdentityMatches_AnyInstrumentName(t *testing.T) {
	svc := NewComplianceService(testPolicy())

	rec := verifiedRecipient()
	rec.PANName = strPtr("Totally Unrelated")
	rec.BankHolder = strPtr("Also Unrelated")
	rec.UPIName = strPtr("Sharma Rahul")

	assert.True(t, svc.IdentityMatches(rec), "one matching instrument is enough")
}

func TestNameSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"Rahul Sharma", "Rahul Sharma", 1.0},
		{"Rahul Sharma", "Sharma Rahul", 1.0},
		{"Rahul Sharma", "RAHUL SHARMA", 1.0},
		{"Rahul Sharma", "Rahul Kumar Sharma", 0.8},
		{"Rahul Sharma", "Rahul Sharma.", 1.0},
		{"Rahul Sharma", "Priya Verma", 0.0},
		{"", "Rahul Sharma", 0.0},
		{"", "", 0.0},
	}
	for _, tc := range tests {
		assert.InDelta(t, tc.want, NameSimilarity(tc.a, tc.b), 1e-9, "%q vs %q", tc.a, tc.b)
	}
}

func TestNameSimilarity_ThresholdBoundary(t *testing.T) {
	// Two of three tokens shared: 2*2/(2+3) = 0.8, above the 0.70 policy
	// threshold. One of three shared: 2*1/(2+3) = 0.4, below it.
	assert.InDelta(t, 0.8, NameSimilarity("Rahul Sharma", "Rahul Kumar Sharma"), 1e-9)
	assert.InDelta(t, 0.4, NameSimilarity("Rahul Verma", "Rahul Kumar Sharma"), 1e-9)
}
