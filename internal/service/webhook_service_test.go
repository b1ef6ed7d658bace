package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gigstage/settlement_api/internal/config"
	"github.com/gigstage/settlement_api/internal/models"
)

func TestNormalizePaymentStatus(t *testing.T) {
	tests := []struct {
		name   string
		event  string
		status string
		want   string
	}{
		{"captured status", "payment.updated", "captured", "success"},
		{"captured event", "payment.captured", "", "success"},
		{"paid alias", "order.paid", "PAID", "success"},
		{"success alias", "payment.updated", "success", "success"},
		{"failed status", "payment.updated", "failed", "failed"},
		{"failed event", "payment.failed", "", "failed"},
		{"refund processed", "refund.processed", "processed", "refunded"},
		{"refund success alias", "refund.updated", "success", "refunded"},
		{"refund pending ignored", "refund.created", "pending", ""},
		{"unknown", "payment.updated", "authorized", ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			evt := &gatewayEvent{Event: tc.event}
			evt.Payload.Status = tc.status
			assert.Equal(t, tc.want, normalizePaymentStatus(evt))
		})
	}
}

func TestGatewayEventID_FallsBackToEventAndTimestamp(t *testing.T) {
	evt := &gatewayEvent{EventID: "evt_123", Event: "payment.captured", CreatedAt: 1700000000}
	assert.Equal(t, "evt_123", evt.id())

	evt.EventID = ""
	assert.Equal(t, "payment.captured:1700000000", evt.id())
}

func TestCapturePaidFull_AccumulatesAcrossCaptures(t *testing.T) {
	const expected = int64(500_000)

	// Advance capture covers half; paid-full only after the balance lands.
	assert.False(t, capturePaidFull(expected, 250_000))
	assert.True(t, capturePaidFull(expected, 500_000))
	assert.True(t, capturePaidFull(expected, 510_000), "overpayment still counts as full")
}

// memoryJournal is an in-memory webhook log for ingest tests.
type memoryJournal struct {
	claimed   map[string]bool
	finalized map[string]models.WebhookStatus
}

func newMemoryJournal() *memoryJournal {
	return &memoryJournal{
		claimed:   map[string]bool{},
		finalized: map[string]models.WebhookStatus{},
	}
}

func (j *memoryJournal) BeginProcessing(eventID string, _ models.WebhookSource, _ []byte) (bool, error) {
	if j.claimed[eventID] {
		return true, nil
	}
	j.claimed[eventID] = true
	return false, nil
}

func (j *memoryJournal) Finalize(eventID string, status models.WebhookStatus, _ string) error {
	j.finalized[eventID] = status
	return nil
}

func TestIngest_ReplayedEventIsDuplicateWithNoEffect(t *testing.T) {
	journal := newMemoryJournal()
	svc := &WebhookService{webhookRepo: journal}

	raw := []byte(`{"event_id":"evt_1","event":"payment.captured","payload":{"order_id":"ord_1","amount":500000}}`)
	applied := 0
	process := func(evt *gatewayEvent) (string, error) {
		applied++
		assert.Equal(t, "ord_1", evt.Payload.OrderID)
		return "", nil
	}

	outcome, err := svc.ingest(context.Background(), raw, models.WebhookSourcePayment, process)
	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, outcome)
	assert.Equal(t, 1, applied)

	// The gateway redelivers the same event: acknowledged as a duplicate,
	// the processor never runs again and the journal keeps its state.
	outcome, err = svc.ingest(context.Background(), raw, models.WebhookSourcePayment, process)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, outcome)
	assert.Equal(t, 1, applied)
	assert.Equal(t, models.WebhookProcessed, journal.finalized["evt_1"])
}

func TestIsDashboardProbe(t *testing.T) {
	svc := &WebhookService{webhookCfg: config.WebhookConfig{ProbeAgent: "paygate-dashboard"}}

	assert.True(t, svc.IsDashboardProbe("", "Paygate-Dashboard/2.1"))
	assert.False(t, svc.IsDashboardProbe("c2lnbmVk", "Paygate-Dashboard/2.1"), "signed requests are never probes")
	assert.False(t, svc.IsDashboardProbe("", "curl/8.0"))

	// No probe agent configured means no unsigned request is ever accepted.
	svc.webhookCfg.ProbeAgent = ""
	assert.False(t, svc.IsDashboardProbe("", "Paygate-Dashboard/2.1"))
}
