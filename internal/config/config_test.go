package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSecretCandidates_OrderAndFallback(t *testing.T) {
	gateway := &GatewayConfig{KeySecret: "gateway-secret"}
	webhook := &WebhookConfig{PaymentSecret: "payment-secret", PayoutSecret: "payout-secret"}

	assert.Equal(t, []string{"payment-secret", "gateway-secret"}, webhook.PaymentSecretCandidates(gateway))
	assert.Equal(t, []string{"payout-secret", "gateway-secret"}, webhook.PayoutSecretCandidates(gateway))
}

func TestSecretCandidates_MissingPieces(t *testing.T) {
	webhook := &WebhookConfig{}
	assert.Empty(t, webhook.PaymentSecretCandidates(&GatewayConfig{}))

	webhook.PaymentSecret = "only-webhook"
	assert.Equal(t, []string{"only-webhook"}, webhook.PaymentSecretCandidates(nil))

	webhook.PaymentSecret = ""
	assert.Equal(t, []string{"gw"}, webhook.PaymentSecretCandidates(&GatewayConfig{KeySecret: "gw"}))
}

func TestParseDurationEnv(t *testing.T) {
	t.Setenv("TEST_DURATION", "90s")
	d, err := parseDurationEnv("TEST_DURATION", "1m")
	assert.NoError(t, err)
	assert.Equal(t, "1m30s", d.String())

	t.Setenv("TEST_DURATION", "")
	d, err = parseDurationEnv("TEST_DURATION", "5m")
	assert.NoError(t, err)
	assert.Equal(t, "5m0s", d.String())

	t.Setenv("TEST_DURATION", "-1s")
	_, err = parseDurationEnv("TEST_DURATION", "5m")
	assert.Error(t, err)

	t.Setenv("TEST_DURATION", "soon")
	_, err = parseDurationEnv("TEST_DURATION", "5m")
	assert.Error(t, err)
}
