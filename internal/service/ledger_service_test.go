package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gigstage/settlement_api/internal/config"
)

func TestCommissionRate_TierSelection(t *testing.T) {
	policy := testPolicy()
	policy.CommissionTiers = []config.CommissionTier{
		{MinBookings: 50, Rate: 0.10},
		{MinBookings: 10, Rate: 0.07},
		{MinBookings: 0, Rate: 0.05},
	}
	svc := NewLedgerService(nil, nil, policy)

	assert.Equal(t, 0.05, svc.commissionRate(0))
	assert.Equal(t, 0.05, svc.commissionRate(9))
	assert.Equal(t, 0.07, svc.commissionRate(10))
	assert.Equal(t, 0.07, svc.commissionRate(49))
	assert.Equal(t, 0.10, svc.commissionRate(50))
	assert.Equal(t, 0.10, svc.commissionRate(500))
}

func TestCommissionRate_NoTiers(t *testing.T) {
	policy := testPolicy()
	policy.CommissionTiers = nil
	svc := NewLedgerService(nil, nil, policy)

	assert.Equal(t, 0.0, svc.commissionRate(100))
}
