package service

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gigstage/settlement_api/internal/config"
	"github.com/gigstage/settlement_api/internal/utils"
)

func TestNotifyPaymentCaptured_PostsSignedEvent(t *testing.T) {
	var (
		gotEvent     string
		gotSignature string
		gotBody      []byte
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotEvent = r.Header.Get("X-Notify-Event")
		gotSignature = r.Header.Get("X-Notify-Signature")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	svc := NewNotificationService(config.NotifierConfig{URL: server.URL, Secret: "notify-secret"}, nil, nil)
	svc.NotifyPaymentCaptured("bk_1", 250_000, 250_000, false)

	assert.Equal(t, EventPaymentCaptured, gotEvent)
	assert.Equal(t, "sha256="+utils.GenerateSignature(gotBody, "notify-secret"), gotSignature)

	var envelope struct {
		Event string `json:"event"`
		Data  struct {
			BookingID string `json:"bookingId"`
			Amount    int64  `json:"amount"`
			TotalPaid int64  `json:"totalPaid"`
			PaidFull  bool   `json:"paidFull"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(gotBody, &envelope))
	assert.Equal(t, EventPaymentCaptured, envelope.Event)
	assert.Equal(t, "bk_1", envelope.Data.BookingID)
	assert.Equal(t, int64(250_000), envelope.Data.Amount)
	assert.Equal(t, int64(250_000), envelope.Data.TotalPaid)
	assert.False(t, envelope.Data.PaidFull)
}

func TestNotifyPaymentFailed_PostsReason(t *testing.T) {
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	svc := NewNotificationService(config.NotifierConfig{URL: server.URL, Secret: "notify-secret"}, nil, nil)
	svc.NotifyPaymentFailed("bk_2", "card_declined")

	var envelope struct {
		Event string `json:"event"`
		Data  struct {
			BookingID string `json:"bookingId"`
			Reason    string `json:"reason"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(gotBody, &envelope))
	assert.Equal(t, EventPaymentFailed, envelope.Event)
	assert.Equal(t, "bk_2", envelope.Data.BookingID)
	assert.Equal(t, "card_declined", envelope.Data.Reason)
}
