package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gigstage/settlement_api/internal/models"
)

func releaseTestService() *ReleaseService {
	policy := testPolicy()
	return NewReleaseService(nil, nil, nil, nil, nil,
		NewComplianceService(policy), NewDistributionCalculator(policy),
		nil, nil, policy, 5)
}

func claimedStageFixture() (*models.EscrowPayment, *models.Booking, []models.ServiceItem, map[string]*models.Recipient) {
	payment := &models.EscrowPayment{
		ID:             1,
		BookingID:      "bk_1",
		AmountExpected: 500_000,
		AmountPaid:     500_000,
		EscrowHeld:     true,
	}
	booking := &models.Booking{ID: "bk_1", Status: models.BookingCompleted, PaidFull: true}
	items := []models.ServiceItem{
		{BookingID: "bk_1", Type: models.SupplierArtist, SupplierID: "art_1", Amount: 500_000},
	}
	recipients := map[string]*models.Recipient{"art_1": verifiedRecipient()}
	return payment, booking, items, recipients
}

func TestEvaluateStage_ProceedsWhenClear(t *testing.T) {
	svc := releaseTestService()
	payment, booking, items, recipients := claimedStageFixture()

	v := svc.evaluateStage(payment, booking, items, recipients)
	assert.Equal(t, stageProceed, v.action)
}

func TestEvaluateStage_PaidFullNotMetFails(t *testing.T) {
	svc := releaseTestService()
	payment, booking, items, recipients := claimedStageFixture()

	// Completed but only the advance was captured: the stage fails rather
	// than paying out against a partial balance.
	booking.PaidFull = false
	payment.AmountPaid = 250_000

	v := svc.evaluateStage(payment, booking, items, recipients)
	assert.Equal(t, stageFail, v.action)
	assert.Equal(t, "paid_full not met", v.reason)
}

func TestEvaluateStage_StatusDriftRetries(t *testing.T) {
	svc := releaseTestService()
	payment, booking, items, recipients := claimedStageFixture()

	// A booking knocked back to in_progress after the plan armed is not
	// terminal; the stage goes back to scheduled for the next tick.
	booking.Status = models.BookingInProgress

	v := svc.evaluateStage(payment, booking, items, recipients)
	assert.Equal(t, stageRetry, v.action)
	assert.Equal(t, "booking not completed", v.reason)
	assert.Empty(t, v.recipient)
}

func TestEvaluateStage_HardFailures(t *testing.T) {
	svc := releaseTestService()

	payment, booking, items, recipients := claimedStageFixture()
	payment.EscrowHeld = false
	v := svc.evaluateStage(payment, booking, items, recipients)
	assert.Equal(t, stageFail, v.action)
	assert.Equal(t, "escrow not held", v.reason)

	payment, booking, items, recipients = claimedStageFixture()
	booking.Status = models.BookingCancelled
	v = svc.evaluateStage(payment, booking, items, recipients)
	assert.Equal(t, stageFail, v.action)
	assert.Equal(t, "booking cancelled", v.reason)

	payment, booking, _, recipients = claimedStageFixture()
	v = svc.evaluateStage(payment, booking, nil, recipients)
	assert.Equal(t, stageFail, v.action)
}

func TestEvaluateStage_BookingHolds(t *testing.T) {
	svc := releaseTestService()

	payment, booking, items, recipients := claimedStageFixture()
	booking.PayoutHold = true
	v := svc.evaluateStage(payment, booking, items, recipients)
	assert.Equal(t, stageHold, v.action)
	assert.Equal(t, []string{BlockPayoutHold}, v.holds)

	payment, booking, items, recipients = claimedStageFixture()
	booking.Status = models.BookingDisputed
	booking.DisputeStatus = models.DisputeOpen
	v = svc.evaluateStage(payment, booking, items, recipients)
	assert.Equal(t, stageHold, v.action)
	assert.Equal(t, []string{BlockDisputeOpen}, v.holds)
}

func TestEvaluateStage_ComplianceBlockRetries(t *testing.T) {
	svc := releaseTestService()
	payment, booking, items, recipients := claimedStageFixture()

	recipients["art_1"].KYCStatus = models.KYCPending
	recipients["art_1"].PANVerified = false

	v := svc.evaluateStage(payment, booking, items, recipients)
	assert.Equal(t, stageRetry, v.action)
	assert.Equal(t, BlockKYCNotVerified, v.reason)
	assert.Equal(t, "art_1", v.recipient)
}

func TestEvaluateStage_MissingBankDetailsRetries(t *testing.T) {
	svc := releaseTestService()
	payment, booking, items, recipients := claimedStageFixture()

	// Missing bank details clear as soon as the recipient adds them; the
	// stage keeps retrying rather than dead-ending in failed.
	recipients["art_1"].BankAccountNo = nil
	recipients["art_1"].BankIFSC = nil

	v := svc.evaluateStage(payment, booking, items, recipients)
	assert.Equal(t, stageRetry, v.action)
	assert.Equal(t, BlockMissingBank, v.reason)
	assert.Equal(t, "art_1", v.recipient)
}

func TestEvaluateStage_MissingRecipientFails(t *testing.T) {
	svc := releaseTestService()
	payment, booking, items, recipients := claimedStageFixture()

	recipients["art_1"] = nil

	v := svc.evaluateStage(payment, booking, items, recipients)
	assert.Equal(t, stageFail, v.action)
	assert.Equal(t, "recipient art_1 not found", v.reason)
}
