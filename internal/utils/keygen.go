package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// GenerateAPIKey generates a random API key with the given prefix.
// Format: prefix_randomhex
func GenerateAPIKey(prefix string) (string, error) {
	b := make([]byte, 32) // 64 char hex
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s_%s", prefix, hex.EncodeToString(b)), nil
}

// GenerateClientKey generates a collaborator API key: stl_live_xxx
func GenerateClientKey() (string, error) {
	return GenerateAPIKey("stl_live")
}
