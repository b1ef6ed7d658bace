package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gigstage/settlement_api/internal/utils"
)

func TestEstimateDistribution(t *testing.T) {
	svc := NewEscrowService(nil, nil, nil, nil, nil, NewDistributionCalculator(testPolicy()))

	est, err := svc.EstimateDistribution(500_000)
	require.NoError(t, err)

	assert.Equal(t, int64(500_000), est.Distribution.Gross)
	assert.Equal(t, est.Distribution.SupplierNet, est.Stages[0].Net+est.Stages[1].Net,
		"previewed stages must sum to the previewed net")

	_, err = svc.EstimateDistribution(0)
	assert.ErrorIs(t, err, utils.ErrInvalidArgument)

	_, err = svc.EstimateDistribution(-500)
	assert.ErrorIs(t, err, utils.ErrInvalidArgument)
}
