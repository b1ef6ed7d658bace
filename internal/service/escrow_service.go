package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gigstage/settlement_api/internal/models"
	"github.com/gigstage/settlement_api/internal/repository"
	"github.com/gigstage/settlement_api/internal/utils"
	"github.com/gigstage/settlement_api/pkg/paygate"
)

// EscrowService owns the order/escrow lifecycle up to the point where the
// release scheduler takes over: gateway order creation, escrow inspection,
// refunds and the manual payout hold.
type EscrowService struct {
	escrowRepo  *repository.EscrowRepository
	bookingRepo *repository.BookingRepository
	stageRepo   *repository.StageRepository
	payoutRepo  *repository.PayoutRepository
	gateway     PaymentGateway
	calc        *DistributionCalculator
}

// NewEscrowService constructs an EscrowService.
func NewEscrowService(
	escrowRepo *repository.EscrowRepository,
	bookingRepo *repository.BookingRepository,
	stageRepo *repository.StageRepository,
	payoutRepo *repository.PayoutRepository,
	gateway PaymentGateway,
	calc *DistributionCalculator,
) *EscrowService {
	return &EscrowService{
		escrowRepo:  escrowRepo,
		bookingRepo: bookingRepo,
		stageRepo:   stageRepo,
		payoutRepo:  payoutRepo,
		gateway:     gateway,
		calc:        calc,
	}
}

// EscrowState is the full inspection view of a booking's settlement.
type EscrowState struct {
	Payment   *models.EscrowPayment   `json:"payment"`
	Stages    []models.ReleaseStage   `json:"stages"`
	Transfers []models.PayoutTransfer `json:"transfers"`
}

// Estimate is the client-facing preview of a distribution. It is produced by
// the same calculator the ledger writes go through.
type Estimate struct {
	Distribution Distribution  `json:"distribution"`
	Stages       [2]StageShare `json:"stages"`
}

// CreateOrder registers a gateway order for a booking awaiting payment and
// creates the escrow row expecting the booking amount. Repeated calls for
// the same booking return the existing escrow without touching the gateway.
func (s *EscrowService) CreateOrder(ctx context.Context, bookingID string) (*models.EscrowPayment, string, error) {
	booking, err := s.bookingRepo.GetByID(bookingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", fmt.Errorf("booking %s: %w", bookingID, utils.ErrNotFound)
		}
		return nil, "", err
	}
	if booking.Status != models.BookingPendingPayment && booking.Status != models.BookingAccepted {
		return nil, "", fmt.Errorf("booking %s is %s: %w", bookingID, booking.Status, utils.ErrFailedPrecondition)
	}

	if existing, err := s.escrowRepo.GetByBookingID(bookingID); err == nil {
		return existing, "", nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, "", err
	}

	orderID := "ord_" + uuid.NewString()
	resp, err := s.gateway.CreateOrder(ctx, &paygate.CreateOrderRequest{
		OrderID:    orderID,
		Amount:     booking.Amount,
		Currency:   "INR",
		CustomerID: bookingID,
		Notes:      "escrow for booking " + bookingID,
	})
	if err != nil {
		return nil, "", fmt.Errorf("create gateway order: %w", err)
	}

	payment := &models.EscrowPayment{
		BookingID:      bookingID,
		GatewayOrderID: resp.OrderID,
		AmountExpected: booking.Amount,
	}
	if err := s.escrowRepo.Create(payment); err != nil {
		return nil, "", fmt.Errorf("create escrow payment: %w", err)
	}

	log.Info().
		Str("booking_id", bookingID).
		Str("order_id", resp.OrderID).
		Int64("amount", booking.Amount).
		Msg("escrow order created")
	return payment, resp.PaymentURL, nil
}

// GetState returns the escrow payment, its release stages and all transfers
// for a booking.
func (s *EscrowService) GetState(bookingID string) (*EscrowState, error) {
	payment, err := s.escrowRepo.GetByBookingID(bookingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("escrow for booking %s: %w", bookingID, utils.ErrNotFound)
		}
		return nil, err
	}
	stages, err := s.stageRepo.GetByPayment(payment.ID)
	if err != nil {
		return nil, err
	}
	state := &EscrowState{Payment: payment, Stages: stages}
	for _, stage := range stages {
		transfers, err := s.payoutRepo.GetTransfersByStage(payment.ID, stage.StageKey)
		if err != nil {
			return nil, err
		}
		state.Transfers = append(state.Transfers, transfers...)
	}
	return state, nil
}

// EstimateDistribution previews the fee/tax breakdown for a gross amount.
func (s *EscrowService) EstimateDistribution(gross int64) (*Estimate, error) {
	if gross <= 0 {
		return nil, fmt.Errorf("amount must be positive: %w", utils.ErrInvalidArgument)
	}
	d := s.calc.Distribute(gross)
	return &Estimate{
		Distribution: d,
		Stages:       [2]StageShare{s.calc.StageShareFor(d, models.StageKey1), s.calc.StageShareFor(d, models.StageKey2)},
	}, nil
}

// SetPayoutHold toggles the manual hold. Clearing the hold resumes stages
// parked on it, unless a dispute still blocks them.
func (s *EscrowService) SetPayoutHold(bookingID string, hold bool) error {
	booking, err := s.bookingRepo.GetByID(bookingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("booking %s: %w", bookingID, utils.ErrNotFound)
		}
		return err
	}
	if err := s.bookingRepo.SetPayoutHold(bookingID, hold); err != nil {
		return err
	}
	if hold || booking.DisputeIsOpen() {
		return nil
	}
	payment, err := s.escrowRepo.GetByBookingID(bookingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return err
	}
	resumed, err := s.stageRepo.ResumeHeld(payment.ID)
	if err != nil {
		return err
	}
	if resumed > 0 {
		log.Info().Str("booking_id", bookingID).Int("stages", resumed).Msg("held stages resumed after hold cleared")
	}
	return nil
}

// CancelAfterAdvance cancels a booking whose escrow was already captured and
// refunds the portion not yet released. The refund marker is written before
// the gateway call, so a crash in between still leaves a traceable intent.
func (s *EscrowService) CancelAfterAdvance(ctx context.Context, bookingID, note string) (int64, error) {
	payment, err := s.escrowRepo.GetByBookingID(bookingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("escrow for booking %s: %w", bookingID, utils.ErrNotFound)
		}
		return 0, err
	}
	if !payment.EscrowHeld || payment.GatewayPaymentID == nil {
		return 0, fmt.Errorf("booking %s: %w", bookingID, utils.ErrEscrowNotHeld)
	}
	if payment.RefundStatus != models.RefundNone {
		return 0, fmt.Errorf("refund already %s: %w", payment.RefundStatus, utils.ErrFailedPrecondition)
	}

	refundable, err := s.refundableAmount(payment)
	if err != nil {
		return 0, err
	}
	if refundable <= 0 {
		return 0, fmt.Errorf("nothing left to refund: %w", utils.ErrFailedPrecondition)
	}

	refundID := "rfnd_" + uuid.NewString()
	if err := s.escrowRepo.SetRefund(payment.ID, models.RefundRequested, refundID); err != nil {
		return 0, err
	}
	if err := s.stageRepo.FailPending(payment.ID, "booking cancelled"); err != nil {
		return 0, err
	}
	if err := s.bookingRepo.MarkCancelled(bookingID, false); err != nil {
		return 0, err
	}

	if _, err := s.gateway.Refund(ctx, *payment.GatewayPaymentID, &paygate.RefundRequest{
		RefundID: refundID,
		Amount:   refundable,
		Note:     note,
	}); err != nil {
		// Intent is already durable; the admin retries through the gateway
		// dashboard or the reconcile path picks it up.
		log.Error().Err(err).
			Str("booking_id", bookingID).
			Str("refund_id", refundID).
			Msg("gateway refund request failed")
		return 0, fmt.Errorf("request refund: %w", err)
	}

	log.Info().
		Str("booking_id", bookingID).
		Str("refund_id", refundID).
		Int64("amount", refundable).
		Msg("refund requested")
	return refundable, nil
}

// refundableAmount is the captured amount minus the gross of stages already
// enqueued for payout.
func (s *EscrowService) refundableAmount(payment *models.EscrowPayment) (int64, error) {
	stages, err := s.stageRepo.GetByPayment(payment.ID)
	if err != nil {
		return 0, err
	}
	dist := s.calc.Distribute(payment.AmountPaid)
	released := int64(0)
	for _, stage := range stages {
		if stage.Status == models.StageEnqueued {
			released += s.calc.StageShareFor(dist, stage.StageKey).Gross
		}
	}
	return payment.AmountPaid - released, nil
}
