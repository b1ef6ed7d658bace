package utils

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
)

// GenerateSignature creates an HMAC-SHA256 signature, hex encoded.
func GenerateSignature(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature validates a webhook signature against a list of candidate
// shared secrets. The header value may be the digest encoded as base64 or
// hex (gateways differ); both decodings are tried and compared in constant
// time against the expected digest for each candidate.
func VerifySignature(payload []byte, signature string, secrets []string) bool {
	if signature == "" {
		return false
	}
	provided := decodeDigest(signature)
	if provided == nil {
		return false
	}
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		mac := hmac.New(sha256.New, []byte(secret))
		mac.Write(payload)
		if hmac.Equal(provided, mac.Sum(nil)) {
			return true
		}
	}
	return false
}

// decodeDigest decodes a signature header as base64 (std then raw) or hex.
func decodeDigest(s string) []byte {
	if b, err := base64.StdEncoding.DecodeString(s); err == nil && len(b) == sha256.Size {
		return b
	}
	if b, err := base64.RawStdEncoding.DecodeString(s); err == nil && len(b) == sha256.Size {
		return b
	}
	if b, err := hex.DecodeString(s); err == nil && len(b) == sha256.Size {
		return b
	}
	return nil
}
