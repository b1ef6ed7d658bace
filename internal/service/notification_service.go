package service

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gigstage/settlement_api/internal/config"
	"github.com/gigstage/settlement_api/internal/repository"
	"github.com/gigstage/settlement_api/internal/sse"
	"github.com/gigstage/settlement_api/internal/utils"
)

// Notification event names pushed to the notification collaborator.
const (
	EventPaymentCaptured = "settlement.payment.captured"
	EventPaymentFailed   = "settlement.payment.failed"
	EventStageBlocked    = "settlement.stage.blocked"
	EventStageEnqueued   = "settlement.stage.enqueued"
	EventTransferSettled = "settlement.transfer.settled"
	EventTransferFailed  = "settlement.transfer.failed"
	EventDisputeOpened   = "settlement.dispute.opened"
	EventDisputeResolved = "settlement.dispute.resolved"
	EventPaymentRefunded = "settlement.payment.refunded"
)

// NotificationService pushes settlement events to the notification
// collaborator. Delivery is best effort and never fails the caller; block
// notifications additionally dedupe through stage_notifications so a stage
// stuck on the same reason across many scheduler ticks notifies exactly once.
type NotificationService struct {
	cfg        config.NotifierConfig
	notifRepo  *repository.NotificationRepository
	stream     sse.EventBroadcaster
	httpClient *http.Client
}

// NewNotificationService constructs a NotificationService with a default
// HTTP client. Events are mirrored to the stream broadcaster for any
// connected admin dashboards.
func NewNotificationService(cfg config.NotifierConfig, notifRepo *repository.NotificationRepository, stream sse.EventBroadcaster) *NotificationService {
	if stream == nil {
		stream = sse.NopBroadcaster{}
	}
	return &NotificationService{
		cfg:       cfg,
		notifRepo: notifRepo,
		stream:    stream,
		httpClient: &http.Client{
			Timeout: 20 * time.Second,
		},
	}
}

// NotifyPaymentCaptured emits a capture event with the running paid total.
// Partial captures fire too, so the collaborator can track advance payments.
func (s *NotificationService) NotifyPaymentCaptured(bookingID string, amount, totalPaid int64, paidFull bool) {
	s.stream.BroadcastSettlement(&sse.SettlementEvent{
		Event:     EventPaymentCaptured,
		BookingID: bookingID,
		Amount:    amount,
		Timestamp: time.Now(),
	})
	s.post(EventPaymentCaptured, map[string]any{
		"bookingId": bookingID,
		"amount":    amount,
		"totalPaid": totalPaid,
		"paidFull":  paidFull,
	})
}

// NotifyPaymentFailed emits a payment failure event.
func (s *NotificationService) NotifyPaymentFailed(bookingID, reason string) {
	s.stream.BroadcastSettlement(&sse.SettlementEvent{
		Event:     EventPaymentFailed,
		BookingID: bookingID,
		Reason:    reason,
		Timestamp: time.Now(),
	})
	body := map[string]any{"bookingId": bookingID}
	if reason != "" {
		body["reason"] = reason
	}
	s.post(EventPaymentFailed, body)
}

// NotifyStageBlocked emits a blocked-stage event once per
// (booking, stage, recipient, reason). Replays are silent no-ops.
func (s *NotificationService) NotifyStageBlocked(bookingID, stageKey, recipientID, reason string) {
	first, err := s.notifRepo.MarkOnce(bookingID, stageKey, recipientID, reason)
	if err != nil {
		log.Error().Err(err).
			Str("booking_id", bookingID).
			Str("stage", stageKey).
			Msg("failed to record notification dedup key")
		return
	}
	if !first {
		return
	}
	s.stream.BroadcastSettlement(&sse.SettlementEvent{
		Event:       EventStageBlocked,
		BookingID:   bookingID,
		StageKey:    stageKey,
		RecipientID: recipientID,
		Reason:      reason,
		Timestamp:   time.Now(),
	})
	s.post(EventStageBlocked, map[string]any{
		"bookingId":   bookingID,
		"stageKey":    stageKey,
		"recipientId": recipientID,
		"reason":      reason,
	})
}

// NotifyStageEnqueued emits a stage-enqueued event with the transfer count.
func (s *NotificationService) NotifyStageEnqueued(bookingID, stageKey string, transfers int) {
	s.stream.BroadcastSettlement(&sse.SettlementEvent{
		Event:     EventStageEnqueued,
		BookingID: bookingID,
		StageKey:  stageKey,
		Timestamp: time.Now(),
	})
	s.post(EventStageEnqueued, map[string]any{
		"bookingId": bookingID,
		"stageKey":  stageKey,
		"transfers": transfers,
	})
}

// NotifyTransferOutcome emits a terminal transfer event.
func (s *NotificationService) NotifyTransferOutcome(bookingID, transferID, recipientID, status string, amount int64) {
	event := EventTransferSettled
	if status != "success" {
		event = EventTransferFailed
	}
	s.stream.BroadcastSettlement(&sse.SettlementEvent{
		Event:       event,
		BookingID:   bookingID,
		TransferID:  transferID,
		RecipientID: recipientID,
		Status:      status,
		Amount:      amount,
		Timestamp:   time.Now(),
	})
	s.post(event, map[string]any{
		"bookingId":   bookingID,
		"transferId":  transferID,
		"recipientId": recipientID,
		"status":      status,
		"amount":      amount,
	})
}

// NotifyDispute emits a dispute lifecycle event.
func (s *NotificationService) NotifyDispute(bookingID, event string, resolution string) {
	body := map[string]any{"bookingId": bookingID}
	if resolution != "" {
		body["resolution"] = resolution
	}
	s.stream.BroadcastSettlement(&sse.SettlementEvent{
		Event:     event,
		BookingID: bookingID,
		Status:    resolution,
		Timestamp: time.Now(),
	})
	s.post(event, body)
}

// NotifyRefund emits a refund event.
func (s *NotificationService) NotifyRefund(bookingID, refundID string, amount int64) {
	s.stream.BroadcastSettlement(&sse.SettlementEvent{
		Event:     EventPaymentRefunded,
		BookingID: bookingID,
		Amount:    amount,
		Timestamp: time.Now(),
	})
	s.post(EventPaymentRefunded, map[string]any{
		"bookingId": bookingID,
		"refundId":  refundID,
		"amount":    amount,
	})
}

// post signs and delivers one event envelope. Failures are logged only.
func (s *NotificationService) post(event string, data map[string]any) {
	if s.cfg.URL == "" {
		return
	}
	payload, err := json.Marshal(map[string]any{
		"event":     event,
		"data":      data,
		"timestamp": time.Now().Format(time.RFC3339),
	})
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("failed to marshal notification payload")
		return
	}

	req, err := http.NewRequest(http.MethodPost, s.cfg.URL, bytes.NewReader(payload))
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("failed to create notification request")
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Notify-Event", event)
	req.Header.Set("X-Notify-Signature", "sha256="+utils.GenerateSignature(payload, s.cfg.Secret))

	resp, err := s.httpClient.Do(req)
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("notification delivery failed")
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		log.Warn().Int("status", resp.StatusCode).Str("event", event).Msg("notifier returned non-2xx")
	}
}
