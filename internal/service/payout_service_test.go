package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gigstage/settlement_api/internal/models"
)

func TestMapGatewayStatus(t *testing.T) {
	tests := []struct {
		in       string
		want     models.TransferStatus
		terminal bool
	}{
		{"SUCCESS", models.TransferSuccess, true},
		{"FAILED", models.TransferFailed, true},
		{"REVERSED", models.TransferReversed, true},
		{"PENDING", "", false},
		{"PROCESSING", "", false},
		{"", "", false},
	}
	for _, tc := range tests {
		got, terminal := mapGatewayStatus(tc.in)
		assert.Equal(t, tc.terminal, terminal, "terminal for %q", tc.in)
		assert.Equal(t, tc.want, got, "status for %q", tc.in)
	}
}
