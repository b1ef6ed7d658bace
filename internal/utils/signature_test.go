package utils

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
)

func digest(payload []byte, secret string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return mac.Sum(nil)
}

func TestVerifySignature_Encodings(t *testing.T) {
	payload := []byte(`{"event":"payment.captured"}`)
	d := digest(payload, "secret-1")

	for name, sig := range map[string]string{
		"hex":        hex.EncodeToString(d),
		"base64":     base64.StdEncoding.EncodeToString(d),
		"base64-raw": base64.RawStdEncoding.EncodeToString(d),
	} {
		assert.True(t, VerifySignature(payload, sig, []string{"secret-1"}), name)
	}
}

func TestVerifySignature_CandidateSecrets(t *testing.T) {
	payload := []byte(`{"event":"payout.processed"}`)
	sig := hex.EncodeToString(digest(payload, "rotated-secret"))

	assert.True(t, VerifySignature(payload, sig, []string{"current-secret", "rotated-secret"}),
		"any candidate secret may verify")
	assert.False(t, VerifySignature(payload, sig, []string{"current-secret"}))
	assert.False(t, VerifySignature(payload, sig, []string{"", ""}), "empty secrets never match")
}

func TestVerifySignature_Rejections(t *testing.T) {
	payload := []byte(`{"event":"payment.captured"}`)
	sig := hex.EncodeToString(digest(payload, "secret-1"))

	assert.False(t, VerifySignature(payload, "", []string{"secret-1"}), "empty signature")
	assert.False(t, VerifySignature(payload, "not-a-digest", []string{"secret-1"}), "undecodable signature")
	assert.False(t, VerifySignature([]byte("tampered"), sig, []string{"secret-1"}), "payload mismatch")
}

func TestGenerateSignature_RoundTrip(t *testing.T) {
	payload := []byte(`{"event":"settlement.stage.enqueued"}`)
	sig := GenerateSignature(payload, "notify-secret")

	assert.True(t, VerifySignature(payload, sig, []string{"notify-secret"}))
}
