package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gigstage/settlement_api/internal/config"
	"github.com/gigstage/settlement_api/internal/metrics"
	"github.com/gigstage/settlement_api/internal/models"
	"github.com/gigstage/settlement_api/internal/repository"
	"github.com/gigstage/settlement_api/internal/utils"
	"github.com/gigstage/settlement_api/pkg/paygate"
)

// PayoutService dispatches queued payout jobs to the gateway and finalizes
// transfers from webhook or reconcile input. Dispatch is at-least-once; the
// transfer id doubles as the gateway idempotency key, so a redelivered job
// can never move funds twice.
type PayoutService struct {
	payoutRepo    *repository.PayoutRepository
	recipientRepo *repository.RecipientRepository
	gateway       PaymentGateway
	notifier      *NotificationService
	workerCfg     config.WorkerConfig
}

// NewPayoutService constructs a PayoutService.
func NewPayoutService(
	payoutRepo *repository.PayoutRepository,
	recipientRepo *repository.RecipientRepository,
	gateway PaymentGateway,
	notifier *NotificationService,
	workerCfg config.WorkerConfig,
) *PayoutService {
	return &PayoutService{
		payoutRepo:    payoutRepo,
		recipientRepo: recipientRepo,
		gateway:       gateway,
		notifier:      notifier,
		workerCfg:     workerCfg,
	}
}

// ProcessQueue claims and dispatches up to limit runnable jobs. Returns the
// number of jobs that reached the gateway.
func (s *PayoutService) ProcessQueue(ctx context.Context, limit int) (int, error) {
	jobs, err := s.payoutRepo.ClaimJobs(limit)
	if err != nil {
		return 0, err
	}
	sent := 0
	for i := range jobs {
		if err := s.dispatch(ctx, &jobs[i]); err != nil {
			log.Error().Err(err).
				Str("transfer_id", jobs[i].TransferID).
				Msg("payout dispatch failed")
			continue
		}
		sent++
	}
	return sent, nil
}

// dispatch sends one job to the gateway. Any gateway error re-queues the job
// with backoff; the retry budget moves it to dead afterwards.
func (s *PayoutService) dispatch(ctx context.Context, job *models.PayoutJob) error {
	metrics.PayoutQueueLag.Observe(time.Since(job.CreatedAt).Seconds())

	transfer, err := s.payoutRepo.GetTransfer(job.TransferID)
	if err != nil {
		return err
	}
	// A redelivered job whose transfer already left requested has nothing
	// left to do; the first delivery reached the gateway.
	if transfer.Status != models.TransferRequested {
		s.audit(job, "skipped", "transfer already "+string(transfer.Status))
		return s.payoutRepo.MarkJobSent(job.ID)
	}

	rec, err := s.recipientRepo.GetByID(job.RecipientID)
	if err != nil {
		return err
	}
	if !rec.HasBankDetails() {
		return s.retry(job, "recipient has no bank details")
	}

	amount := job.Amount
	if job.PayoutType == models.SupplierArtist && rec.PromoBalance > 0 {
		deducted, err := s.recipientRepo.DeductPromoSpend(rec.ID, amount)
		if err != nil {
			// Promo recovery is best effort; the payout goes out in full.
			log.Warn().Err(err).Str("recipient_id", rec.ID).Msg("promo deduction failed")
		} else if deducted > 0 {
			amount -= deducted
			log.Info().
				Str("transfer_id", job.TransferID).
				Str("recipient_id", rec.ID).
				Int64("deducted", deducted).
				Msg("promo spend deducted from payout")
		}
	}
	if amount <= 0 {
		// Fully recovered by promo deduction; nothing to move.
		if err := s.payoutRepo.UpdateTransferStatus(job.TransferID, models.TransferSuccess, "", "settled against promo balance"); err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		s.audit(job, "sent", "settled against promo balance")
		metrics.PayoutAttemptsTotal.WithLabelValues("sent").Inc()
		return s.payoutRepo.MarkJobSent(job.ID)
	}

	holder := rec.DisplayName
	if rec.BankHolder != nil && *rec.BankHolder != "" {
		holder = *rec.BankHolder
	}
	if err := s.gateway.AddBeneficiary(ctx, &paygate.BeneficiaryRequest{
		BeneID: rec.ID,
		Name:   rec.DisplayName,
		Bank: paygate.BankDetails{
			AccountHolder: holder,
			AccountNumber: *rec.BankAccountNo,
			IFSC:          *rec.BankIFSC,
		},
	}); err != nil {
		return s.retry(job, fmt.Sprintf("add beneficiary: %v", err))
	}

	resp, err := s.gateway.RequestTransfer(ctx, &paygate.TransferRequest{
		TransferID: job.TransferID,
		BeneID:     rec.ID,
		Amount:     amount,
		Remarks:    fmt.Sprintf("booking %s %s", job.BookingID, job.StageKey),
	})
	if err != nil {
		return s.retry(job, fmt.Sprintf("request transfer: %v", err))
	}

	if err := s.payoutRepo.UpdateTransferStatus(job.TransferID, models.TransferInitiated, resp.ReferenceID, ""); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	if err := s.payoutRepo.MarkJobSent(job.ID); err != nil {
		return err
	}
	s.audit(job, "sent", resp.ReferenceID)
	metrics.PayoutAttemptsTotal.WithLabelValues("sent").Inc()

	// Some gateways settle small transfers synchronously.
	if status, terminal := mapGatewayStatus(resp.Status); terminal {
		return s.FinalizeTransfer(job.TransferID, status, resp.ReferenceID, resp.Reason)
	}
	return nil
}

// retry records the failed attempt and re-queues or dead-letters the job.
func (s *PayoutService) retry(job *models.PayoutJob, cause string) error {
	s.audit(job, "error", cause)
	outcome := "retry"
	if job.Attempt >= job.MaxRetry {
		outcome = "dead"
	}
	metrics.PayoutAttemptsTotal.WithLabelValues(outcome).Inc()
	if outcome == "dead" {
		log.Error().
			Str("transfer_id", job.TransferID).
			Int("attempt", job.Attempt).
			Str("cause", cause).
			Msg("payout job dead-lettered")
	}
	return s.payoutRepo.ScheduleRetry(job, cause)
}

// audit appends one attempt row; failures are logged only so the audit trail
// never blocks the payout path.
func (s *PayoutService) audit(job *models.PayoutJob, outcome, detail string) {
	a := &models.PayoutAttempt{
		TransferID: job.TransferID,
		JobID:      job.ID,
		Attempt:    job.Attempt,
		Outcome:    outcome,
	}
	if detail != "" {
		a.Detail = &detail
	}
	if err := s.payoutRepo.AppendAttempt(a); err != nil {
		log.Warn().Err(err).Str("transfer_id", job.TransferID).Msg("failed to append payout attempt")
	}
}

// FinalizeTransfer applies a terminal transfer status. Terminal states are
// sticky in the store, so replays and out-of-order events are no-ops.
func (s *PayoutService) FinalizeTransfer(transferID string, status models.TransferStatus, referenceID, reason string) error {
	if err := s.payoutRepo.UpdateTransferStatus(transferID, status, referenceID, reason); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return err
	}
	transfer, err := s.payoutRepo.GetTransfer(transferID)
	if err != nil {
		return err
	}
	s.notifier.NotifyTransferOutcome(transfer.BookingID, transferID, transfer.RecipientID, string(status), transfer.Amount)
	log.Info().
		Str("transfer_id", transferID).
		Str("booking_id", transfer.BookingID).
		Str("status", string(status)).
		Msg("transfer finalized")
	return nil
}

// ReconcileStale re-polls the gateway for transfers stuck in initiated and
// feeds any terminal answer through the same finalize path the webhook uses.
func (s *PayoutService) ReconcileStale(ctx context.Context, limit int) (int, error) {
	stale, err := s.payoutRepo.GetStaleInitiated(s.workerCfg.TransferStaleAfter, limit)
	if err != nil {
		return 0, err
	}
	finalized := 0
	for _, t := range stale {
		resp, err := s.gateway.GetTransferStatus(ctx, t.TransferID)
		if err != nil {
			log.Warn().Err(err).Str("transfer_id", t.TransferID).Msg("transfer status poll failed")
			continue
		}
		status, terminal := mapGatewayStatus(resp.Status)
		if !terminal {
			continue
		}
		if err := s.FinalizeTransfer(t.TransferID, status, resp.ReferenceID, resp.Reason); err != nil {
			log.Error().Err(err).Str("transfer_id", t.TransferID).Msg("failed to finalize reconciled transfer")
			continue
		}
		finalized++
	}
	return finalized, nil
}

// RequeueDead puts a dead-lettered job back in the queue after remediation.
func (s *PayoutService) RequeueDead(transferID string) error {
	if err := s.payoutRepo.RequeueDead(transferID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("no dead job for transfer %s: %w", transferID, utils.ErrNotFound)
		}
		return err
	}
	log.Info().Str("transfer_id", transferID).Msg("dead payout job requeued")
	return nil
}

// mapGatewayStatus maps a gateway transfer status to the local terminal
// status. The second return is false for non-terminal states.
func mapGatewayStatus(status string) (models.TransferStatus, bool) {
	switch status {
	case "SUCCESS":
		return models.TransferSuccess, true
	case "FAILED":
		return models.TransferFailed, true
	case "REVERSED":
		return models.TransferReversed, true
	default:
		return "", false
	}
}
