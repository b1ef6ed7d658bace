package service

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gigstage/settlement_api/internal/config"
	"github.com/gigstage/settlement_api/internal/metrics"
	"github.com/gigstage/settlement_api/internal/models"
	"github.com/gigstage/settlement_api/internal/repository"
	"github.com/gigstage/settlement_api/internal/utils"
)

// ReleaseService arms the two-stage release plan when a booking completes
// and drives due stages through the claim -> guard -> allocate -> enqueue
// pipeline. Everything here is replay-safe: plan arming is guarded by
// release_plan_version, stage claims by a compare-and-set, and enqueue by
// the transfer rows already written for the stage.
type ReleaseService struct {
	escrowRepo    *repository.EscrowRepository
	bookingRepo   *repository.BookingRepository
	stageRepo     *repository.StageRepository
	payoutRepo    *repository.PayoutRepository
	recipientRepo *repository.RecipientRepository
	compliance    *ComplianceService
	calc          *DistributionCalculator
	ledger        *LedgerService
	notifier      *NotificationService
	policy        config.PolicyConfig
	maxRetry      int
}

// NewReleaseService constructs a ReleaseService.
func NewReleaseService(
	escrowRepo *repository.EscrowRepository,
	bookingRepo *repository.BookingRepository,
	stageRepo *repository.StageRepository,
	payoutRepo *repository.PayoutRepository,
	recipientRepo *repository.RecipientRepository,
	compliance *ComplianceService,
	calc *DistributionCalculator,
	ledger *LedgerService,
	notifier *NotificationService,
	policy config.PolicyConfig,
	maxRetry int,
) *ReleaseService {
	return &ReleaseService{
		escrowRepo:    escrowRepo,
		bookingRepo:   bookingRepo,
		stageRepo:     stageRepo,
		payoutRepo:    payoutRepo,
		recipientRepo: recipientRepo,
		compliance:    compliance,
		calc:          calc,
		ledger:        ledger,
		notifier:      notifier,
		policy:        policy,
		maxRetry:      maxRetry,
	}
}

// CompleteBooking marks the booking completed and arms the release plan.
// Replays are no-ops: a booking already completed with an armed plan returns
// success without writing anything.
func (s *ReleaseService) CompleteBooking(bookingID string, at time.Time) error {
	if err := s.bookingRepo.MarkCompleted(bookingID, at); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		booking, gerr := s.bookingRepo.GetByID(bookingID)
		if gerr != nil {
			if errors.Is(gerr, sql.ErrNoRows) {
				return fmt.Errorf("booking %s: %w", bookingID, utils.ErrNotFound)
			}
			return gerr
		}
		// Already completed (or disputed after completion) is a replay; any
		// other status is a real precondition failure.
		if booking.Status != models.BookingCompleted && booking.Status != models.BookingDisputed {
			return fmt.Errorf("booking %s is %s: %w", bookingID, booking.Status, utils.ErrFailedPrecondition)
		}
		if booking.CompletedAt != nil {
			at = *booking.CompletedAt
		}
	}

	if err := s.ArmPlan(bookingID, at); err != nil {
		if errors.Is(err, utils.ErrPlanAlreadyArmed) {
			return nil
		}
		return err
	}
	return nil
}

// ArmPlan creates the stage rows for a held escrow payment exactly once.
func (s *ReleaseService) ArmPlan(bookingID string, completedAt time.Time) error {
	payment, err := s.escrowRepo.GetByBookingID(bookingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("escrow for booking %s: %w", bookingID, utils.ErrNotFound)
		}
		return err
	}
	if !payment.EscrowHeld {
		return fmt.Errorf("booking %s: %w", bookingID, utils.ErrEscrowNotHeld)
	}

	stages := []models.ReleaseStage{
		{
			BookingID:  bookingID,
			StageKey:   models.StageKey1,
			Fraction:   s.policy.Stage1Fraction,
			EligibleAt: completedAt.Add(s.policy.Stage1Delay),
		},
		{
			BookingID:  bookingID,
			StageKey:   models.StageKey2,
			Fraction:   1 - s.policy.Stage1Fraction,
			EligibleAt: completedAt.Add(s.policy.Stage2Delay),
		},
	}
	if err := s.escrowRepo.ArmReleasePlan(payment.ID, stages); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("booking %s: %w", bookingID, utils.ErrPlanAlreadyArmed)
		}
		return err
	}

	log.Info().
		Str("booking_id", bookingID).
		Time("stage1_at", stages[0].EligibleAt).
		Time("stage2_at", stages[1].EligibleAt).
		Msg("release plan armed")
	return nil
}

// ProcessDueStages runs one scheduler pass over up to limit due stages and
// returns how many were processed (in any direction, including holds).
func (s *ReleaseService) ProcessDueStages(limit int) (int, error) {
	stages, err := s.stageRepo.GetDueStages(limit)
	if err != nil {
		return 0, err
	}
	processed := 0
	for i := range stages {
		if err := s.processStage(&stages[i]); err != nil {
			log.Error().Err(err).
				Str("booking_id", stages[i].BookingID).
				Str("stage", stages[i].StageKey).
				Msg("stage processing failed")
			continue
		}
		processed++
	}
	return processed, nil
}

// processStage drives a single stage. The claim is the concurrency gate;
// after it this process is the only one working the stage.
func (s *ReleaseService) processStage(stage *models.ReleaseStage) error {
	if err := s.stageRepo.Claim(stage.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			metrics.StageClaimsTotal.WithLabelValues("lost_race").Inc()
			return nil
		}
		return err
	}

	payment, err := s.escrowRepo.GetByID(stage.PaymentID)
	if err != nil {
		return err
	}
	booking, err := s.bookingRepo.GetByID(stage.BookingID)
	if err != nil {
		return err
	}
	items, err := s.bookingRepo.GetServiceItems(stage.BookingID)
	if err != nil {
		return err
	}

	recipients := make(map[string]*models.Recipient, len(items))
	for _, item := range items {
		if _, ok := recipients[item.SupplierID]; ok {
			continue
		}
		rec, err := s.recipientRepo.GetByID(item.SupplierID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				recipients[item.SupplierID] = nil
				continue
			}
			return err
		}
		recipients[item.SupplierID] = rec
	}

	verdict := s.evaluateStage(payment, booking, items, recipients)
	switch verdict.action {
	case stageFail:
		metrics.StageClaimsTotal.WithLabelValues("failed").Inc()
		return s.stageRepo.Fail(stage.ID, verdict.reason)
	case stageRetry:
		if verdict.recipient != "" {
			s.notifier.NotifyStageBlocked(stage.BookingID, stage.StageKey, verdict.recipient, verdict.reason)
		}
		metrics.StageClaimsTotal.WithLabelValues("blocked").Inc()
		msg := verdict.reason
		if verdict.details != "" {
			msg += ": " + verdict.details
		}
		return s.stageRepo.Release(stage.ID, msg)
	case stageHold:
		if err := s.stageRepo.Hold(stage.ID, strings.Join(verdict.holds, ",")); err != nil {
			return err
		}
		if err := s.escrowRepo.SetReleaseStatus(payment.ID, models.ReleaseHold); err != nil {
			return err
		}
		for _, reason := range verdict.holds {
			for _, item := range items {
				s.notifier.NotifyStageBlocked(stage.BookingID, stage.StageKey, item.SupplierID, reason)
			}
		}
		metrics.StageClaimsTotal.WithLabelValues("held").Inc()
		return nil
	}

	dist := s.calc.Distribute(payment.AmountPaid)
	share := s.calc.StageShareFor(dist, stage.StageKey)
	allocations := s.calc.Allocate(share, items)

	transferIDs, err := s.enqueueAllocations(payment, stage, allocations)
	if err != nil {
		return err
	}

	if err := s.stageRepo.MarkEnqueued(stage.ID, allocations, transferIDs); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			metrics.StageClaimsTotal.WithLabelValues("lost_race").Inc()
			return nil
		}
		return err
	}

	if err := s.ledger.RecordStageRelease(stage.BookingID, stage.StageKey, share); err != nil {
		return err
	}

	final := stage.StageKey == models.StageKey2
	status := models.ReleaseProcessing
	if final {
		status = models.ReleaseEnqueued
	}
	if err := s.escrowRepo.SetReleaseStatus(payment.ID, status); err != nil {
		return err
	}
	if final {
		recList := make([]*models.Recipient, 0, len(recipients))
		for _, rec := range recipients {
			recList = append(recList, rec)
		}
		s.ledger.AccrueFinalCommission(stage.BookingID, recList, dist.PlatformFee)
	}

	s.notifier.NotifyStageEnqueued(stage.BookingID, stage.StageKey, len(transferIDs))
	metrics.StageClaimsTotal.WithLabelValues("enqueued").Inc()
	log.Info().
		Str("booking_id", stage.BookingID).
		Str("stage", stage.StageKey).
		Int("transfers", len(transferIDs)).
		Int64("stage_net", share.Net).
		Msg("stage enqueued for payout")
	return nil
}

// stageVerdict is the decision for one claimed stage.
type stageVerdict struct {
	action    stageAction
	reason    string
	details   string
	recipient string
	holds     []string
}

type stageAction int

const (
	stageProceed stageAction = iota
	stageFail
	stageRetry
	stageHold
)

// evaluateStage applies the post-claim guards in order. Hard failures come
// first (they never recover on their own), then the paid-in-full and booking
// status guards, then booking-level holds, then the per-recipient compliance
// gate. Compliance blocks are remediable upstream, so they send the stage
// back to scheduled for later ticks to re-check. A nil recipients entry means
// the profile row is missing.
func (s *ReleaseService) evaluateStage(payment *models.EscrowPayment, booking *models.Booking, items []models.ServiceItem, recipients map[string]*models.Recipient) stageVerdict {
	if !payment.EscrowHeld {
		return stageVerdict{action: stageFail, reason: "escrow not held"}
	}
	if booking.Status == models.BookingCancelled || booking.Status == models.BookingRefunded {
		return stageVerdict{action: stageFail, reason: "booking " + string(booking.Status)}
	}
	if len(items) == 0 {
		return stageVerdict{action: stageFail, reason: "booking has no supplier lines"}
	}
	if !booking.PaidFull {
		return stageVerdict{action: stageFail, reason: "paid_full not met"}
	}
	if booking.Status != models.BookingCompleted && booking.Status != models.BookingDisputed {
		return stageVerdict{action: stageRetry, reason: "booking not completed"}
	}

	var holds []string
	if booking.PayoutHold {
		holds = append(holds, BlockPayoutHold)
	}
	if booking.DisputeIsOpen() {
		holds = append(holds, BlockDisputeOpen)
	}
	if len(holds) > 0 {
		return stageVerdict{action: stageHold, holds: holds}
	}

	seen := make(map[string]bool, len(items))
	for _, item := range items {
		if seen[item.SupplierID] {
			continue
		}
		seen[item.SupplierID] = true
		rec := recipients[item.SupplierID]
		if rec == nil {
			return stageVerdict{action: stageFail, reason: "recipient " + item.SupplierID + " not found"}
		}
		if blk := s.compliance.CheckRecipient(rec); blk != nil {
			return stageVerdict{action: stageRetry, reason: blk.Reason, details: blk.Details, recipient: rec.ID}
		}
	}
	return stageVerdict{action: stageProceed}
}

// enqueueAllocations writes the payout jobs for a stage, stamping each
// allocation with its transfer id. When transfer rows for the stage already
// exist (a crash between enqueue and mark), their ids are reused and no new
// jobs are written.
func (s *ReleaseService) enqueueAllocations(payment *models.EscrowPayment, stage *models.ReleaseStage, allocations []models.StageAllocation) ([]string, error) {
	existing, err := s.payoutRepo.GetTransfersByStage(payment.ID, stage.StageKey)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		byRecipient := make(map[string]string, len(existing))
		ids := make([]string, 0, len(existing))
		for _, t := range existing {
			byRecipient[t.RecipientID] = t.TransferID
			ids = append(ids, t.TransferID)
		}
		for i := range allocations {
			allocations[i].TransferID = byRecipient[allocations[i].RecipientID]
		}
		log.Warn().
			Str("booking_id", stage.BookingID).
			Str("stage", stage.StageKey).
			Msg("reusing previously enqueued transfers for stage")
		return ids, nil
	}

	jobs := make([]models.PayoutJob, 0, len(allocations))
	ids := make([]string, 0, len(allocations))
	for i := range allocations {
		alloc := &allocations[i]
		if alloc.Net <= 0 {
			continue
		}
		alloc.TransferID = "tr_" + uuid.NewString()
		ids = append(ids, alloc.TransferID)
		jobs = append(jobs, models.PayoutJob{
			TransferID:  alloc.TransferID,
			BookingID:   stage.BookingID,
			PaymentID:   payment.ID,
			StageKey:    stage.StageKey,
			PayoutType:  alloc.Type,
			RecipientID: alloc.RecipientID,
			Amount:      alloc.Net,
			MaxRetry:    s.maxRetry,
		})
	}
	if len(jobs) == 0 {
		return ids, nil
	}
	if err := s.payoutRepo.EnqueueJobs(jobs); err != nil {
		return nil, fmt.Errorf("enqueue payout jobs: %w", err)
	}
	return ids, nil
}
