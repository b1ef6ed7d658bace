package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/gigstage/settlement_api/internal/cache"
	"github.com/gigstage/settlement_api/internal/config"
	"github.com/gigstage/settlement_api/internal/models"
	"github.com/gigstage/settlement_api/internal/repository"
	"github.com/gigstage/settlement_api/internal/utils"
)

// Webhook processing outcomes, used for logging and metrics labels.
const (
	OutcomeProcessed = "processed"
	OutcomeDuplicate = "duplicate"
	OutcomeUnhandled = "unhandled"
	OutcomeProbe     = "probe"
)

// gatewayEvent is the envelope the gateway posts. EventID is the natural
// idempotency key; older gateway versions omit it, in which case the event
// name plus created timestamp stands in.
type gatewayEvent struct {
	EventID   string           `json:"event_id"`
	Event     string           `json:"event"`
	CreatedAt int64            `json:"created_at"`
	Payload   gatewayEventData `json:"payload"`
}

type gatewayEventData struct {
	OrderID     string `json:"order_id"`
	PaymentID   string `json:"payment_id"`
	RefundID    string `json:"refund_id"`
	TransferID  string `json:"transfer_id"`
	ReferenceID string `json:"reference_id"`
	Amount      int64  `json:"amount"`
	Status      string `json:"status"`
	Reason      string `json:"reason"`
}

func (e *gatewayEvent) id() string {
	if e.EventID != "" {
		return e.EventID
	}
	return fmt.Sprintf("%s:%d", e.Event, e.CreatedAt)
}

// webhookJournal is the durable idempotency log behind the Redis fast path.
type webhookJournal interface {
	BeginProcessing(eventID string, source models.WebhookSource, rawBody []byte) (bool, error)
	Finalize(eventID string, status models.WebhookStatus, note string) error
}

// WebhookService ingests gateway events. Each event passes signature
// verification, a Redis fast-path duplicate check, then the durable webhook
// log claim before any state changes; the handlers behind it are themselves
// guarded, so even a double-claimed event cannot take effect twice.
type WebhookService struct {
	webhookRepo webhookJournal
	eventCache  *cache.EventCache
	escrowRepo  *repository.EscrowRepository
	bookingRepo *repository.BookingRepository
	payout      *PayoutService
	notifier    *NotificationService
	webhookCfg  config.WebhookConfig
	gatewayCfg  config.GatewayConfig
}

// NewWebhookService constructs a WebhookService.
func NewWebhookService(
	webhookRepo *repository.WebhookLogRepository,
	eventCache *cache.EventCache,
	escrowRepo *repository.EscrowRepository,
	bookingRepo *repository.BookingRepository,
	payout *PayoutService,
	notifier *NotificationService,
	webhookCfg config.WebhookConfig,
	gatewayCfg config.GatewayConfig,
) *WebhookService {
	return &WebhookService{
		webhookRepo: webhookRepo,
		eventCache:  eventCache,
		escrowRepo:  escrowRepo,
		bookingRepo: bookingRepo,
		payout:      payout,
		notifier:    notifier,
		webhookCfg:  webhookCfg,
		gatewayCfg:  gatewayCfg,
	}
}

// IsDashboardProbe reports whether a request is the gateway dashboard's
// unsigned connectivity check, which is acknowledged without processing.
func (s *WebhookService) IsDashboardProbe(signature, userAgent string) bool {
	return signature == "" && s.webhookCfg.ProbeAgent != "" &&
		strings.Contains(strings.ToLower(userAgent), strings.ToLower(s.webhookCfg.ProbeAgent))
}

// HandlePaymentEvent processes one payment-source event. The returned
// outcome is one of the Outcome constants.
func (s *WebhookService) HandlePaymentEvent(ctx context.Context, raw []byte, signature, userAgent string) (string, error) {
	if s.IsDashboardProbe(signature, userAgent) {
		return OutcomeProbe, nil
	}
	if !utils.VerifySignature(raw, signature, s.webhookCfg.PaymentSecretCandidates(&s.gatewayCfg)) {
		return "", utils.ErrSignatureInvalid
	}
	return s.ingest(ctx, raw, models.WebhookSourcePayment, s.processPaymentEvent)
}

// HandlePayoutEvent processes one payout-source event, keyed by transfer id.
func (s *WebhookService) HandlePayoutEvent(ctx context.Context, raw []byte, signature, userAgent string) (string, error) {
	if s.IsDashboardProbe(signature, userAgent) {
		return OutcomeProbe, nil
	}
	if !utils.VerifySignature(raw, signature, s.webhookCfg.PayoutSecretCandidates(&s.gatewayCfg)) {
		return "", utils.ErrSignatureInvalid
	}
	return s.ingest(ctx, raw, models.WebhookSourcePayout, s.processPayoutEvent)
}

// HandleDisputeEvent processes a gateway chargeback notice. The booking goes
// on payout hold; the customer-facing dispute flow stays API-driven.
func (s *WebhookService) HandleDisputeEvent(ctx context.Context, raw []byte, signature, userAgent string) (string, error) {
	if s.IsDashboardProbe(signature, userAgent) {
		return OutcomeProbe, nil
	}
	if !utils.VerifySignature(raw, signature, s.webhookCfg.PayoutSecretCandidates(&s.gatewayCfg)) {
		return "", utils.ErrSignatureInvalid
	}
	return s.ingest(ctx, raw, models.WebhookSourceDispute, s.processDisputeEvent)
}

// ingest runs the shared idempotency pipeline around a source-specific
// processor. A terminal log state is always written for claimed events.
func (s *WebhookService) ingest(ctx context.Context, raw []byte, source models.WebhookSource, process func(*gatewayEvent) (string, error)) (string, error) {
	var evt gatewayEvent
	if err := json.Unmarshal(raw, &evt); err != nil {
		return "", fmt.Errorf("malformed event body: %w", utils.ErrInvalidArgument)
	}
	eventID := evt.id()

	if !s.eventCache.MarkSeen(ctx, eventID) {
		return OutcomeDuplicate, nil
	}
	duplicate, err := s.webhookRepo.BeginProcessing(eventID, source, raw)
	if err != nil {
		s.eventCache.Forget(ctx, eventID)
		return "", err
	}
	if duplicate {
		return OutcomeDuplicate, nil
	}

	note, err := process(&evt)
	if err != nil {
		if ferr := s.webhookRepo.Finalize(eventID, models.WebhookFailed, err.Error()); ferr != nil {
			log.Error().Err(ferr).Str("event_id", eventID).Msg("failed to finalize webhook log")
		}
		s.eventCache.Forget(ctx, eventID)
		return "", err
	}
	if err := s.webhookRepo.Finalize(eventID, models.WebhookProcessed, note); err != nil {
		log.Error().Err(err).Str("event_id", eventID).Msg("failed to finalize webhook log")
	}
	if note != "" {
		return OutcomeUnhandled, nil
	}
	return OutcomeProcessed, nil
}

// processPaymentEvent applies a payment event. The returned note is non-empty
// when the event was acknowledged without effect.
func (s *WebhookService) processPaymentEvent(evt *gatewayEvent) (string, error) {
	switch normalizePaymentStatus(evt) {
	case "success":
		return s.applyPaymentSuccess(evt)
	case "failed":
		return s.applyPaymentFailure(evt)
	case "refunded":
		return s.applyRefund(evt)
	default:
		log.Info().Str("event", evt.Event).Msg("unhandled payment event acknowledged")
		return "unhandled event " + evt.Event, nil
	}
}

func (s *WebhookService) applyPaymentSuccess(evt *gatewayEvent) (string, error) {
	payment, err := s.escrowRepo.GetByOrderID(evt.Payload.OrderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Warn().Str("order_id", evt.Payload.OrderID).Msg("payment event for unknown order")
			return "unknown order " + evt.Payload.OrderID, nil
		}
		return "", err
	}
	// Events without an amount stand for the full remaining due. Captures
	// accumulate, so an advance followed by the balance lands as two events.
	amount := evt.Payload.Amount
	if amount <= 0 {
		amount = payment.AmountExpected - payment.AmountPaid
	}
	if amount <= 0 {
		return "payment already captured in full", nil
	}
	total, err := s.escrowRepo.RecordCapture(payment.ID, evt.Payload.PaymentID, amount)
	if err != nil {
		return "", err
	}
	paidFull := capturePaidFull(payment.AmountExpected, total)
	if err := s.bookingRepo.AdvancePaymentProgress(payment.BookingID, paidFull); err != nil {
		return "", err
	}
	s.notifier.NotifyPaymentCaptured(payment.BookingID, amount, total, paidFull)
	log.Info().
		Str("booking_id", payment.BookingID).
		Str("order_id", evt.Payload.OrderID).
		Int64("amount", amount).
		Int64("total_paid", total).
		Bool("paid_full", paidFull).
		Msg("escrow capture recorded")
	return "", nil
}

// capturePaidFull reports whether the running captured total covers the
// amount the payer owes.
func capturePaidFull(expected, totalPaid int64) bool {
	return totalPaid >= expected
}

func (s *WebhookService) applyPaymentFailure(evt *gatewayEvent) (string, error) {
	payment, err := s.escrowRepo.GetByOrderID(evt.Payload.OrderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "unknown order " + evt.Payload.OrderID, nil
		}
		return "", err
	}
	if payment.EscrowHeld {
		// A late failure event after a successful capture is gateway noise.
		return "escrow already held, failure ignored", nil
	}
	if err := s.bookingRepo.MarkPaymentFailed(payment.BookingID); err != nil {
		return "", err
	}
	s.notifier.NotifyPaymentFailed(payment.BookingID, evt.Payload.Reason)
	log.Info().Str("booking_id", payment.BookingID).Str("reason", evt.Payload.Reason).Msg("payment failed")
	return "", nil
}

func (s *WebhookService) applyRefund(evt *gatewayEvent) (string, error) {
	payment, err := s.escrowRepo.GetByOrderID(evt.Payload.OrderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "unknown order " + evt.Payload.OrderID, nil
		}
		return "", err
	}
	if payment.RefundStatus == models.RefundDone {
		return "refund already recorded", nil
	}
	refundID := evt.Payload.RefundID
	if refundID == "" && payment.RefundID != nil {
		refundID = *payment.RefundID
	}
	if err := s.escrowRepo.SetRefund(payment.ID, models.RefundDone, refundID); err != nil {
		return "", err
	}
	if err := s.bookingRepo.MarkCancelled(payment.BookingID, true); err != nil {
		return "", err
	}
	s.notifier.NotifyRefund(payment.BookingID, refundID, evt.Payload.Amount)
	log.Info().
		Str("booking_id", payment.BookingID).
		Str("refund_id", refundID).
		Msg("refund settled")
	return "", nil
}

// processPayoutEvent finalizes a transfer from its terminal gateway event.
func (s *WebhookService) processPayoutEvent(evt *gatewayEvent) (string, error) {
	if evt.Payload.TransferID == "" {
		return "", fmt.Errorf("payout event without transfer id: %w", utils.ErrInvalidArgument)
	}
	status, terminal := mapGatewayStatus(strings.ToUpper(evt.Payload.Status))
	if !terminal {
		return "non-terminal transfer status " + evt.Payload.Status, nil
	}
	if _, err := s.payout.payoutRepo.GetTransfer(evt.Payload.TransferID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Warn().Str("transfer_id", evt.Payload.TransferID).Msg("payout event for unknown transfer")
			return "unknown transfer " + evt.Payload.TransferID, nil
		}
		return "", err
	}
	if err := s.payout.FinalizeTransfer(evt.Payload.TransferID, status, evt.Payload.ReferenceID, evt.Payload.Reason); err != nil {
		return "", err
	}
	return "", nil
}

// processDisputeEvent parks payouts for the booking behind the disputed
// payment.
func (s *WebhookService) processDisputeEvent(evt *gatewayEvent) (string, error) {
	payment, err := s.escrowRepo.GetByOrderID(evt.Payload.OrderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "unknown order " + evt.Payload.OrderID, nil
		}
		return "", err
	}
	if err := s.bookingRepo.SetPayoutHold(payment.BookingID, true); err != nil {
		return "", err
	}
	s.notifier.NotifyDispute(payment.BookingID, EventDisputeOpened, "")
	log.Warn().
		Str("booking_id", payment.BookingID).
		Str("reason", evt.Payload.Reason).
		Msg("gateway dispute received, payouts held")
	return "", nil
}

// normalizePaymentStatus folds the gateway's event name and payload status
// into one of success/failed/refunded.
func normalizePaymentStatus(evt *gatewayEvent) string {
	status := strings.ToLower(evt.Payload.Status)
	event := strings.ToLower(evt.Event)
	switch {
	case strings.HasPrefix(event, "refund") && (status == "processed" || status == "refunded" || status == "success"):
		return "refunded"
	case status == "captured" || status == "success" || status == "paid" || event == "payment.captured":
		return "success"
	case status == "failed" || event == "payment.failed":
		return "failed"
	default:
		return ""
	}
}
