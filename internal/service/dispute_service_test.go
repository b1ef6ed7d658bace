package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/gigstage/settlement_api/internal/utils"
)

func TestResolve_RejectsUnknownResolution(t *testing.T) {
	svc := NewDisputeService(nil, nil, nil, nil, testPolicy())

	err := svc.Resolve("bk_1", "split-the-difference")
	assert.ErrorIs(t, err, utils.ErrInvalidArgument)

	err = svc.Resolve("bk_1", "")
	assert.ErrorIs(t, err, utils.ErrInvalidArgument)
}

func TestWithinWindow_Boundaries(t *testing.T) {
	policy := testPolicy()
	policy.DisputeWindow = 12 * time.Hour
	svc := NewDisputeService(nil, nil, nil, nil, policy)

	completed := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)

	assert.True(t, svc.WithinWindow(completed, completed.Add(11*time.Hour)),
		"11h after completion still opens")
	assert.True(t, svc.WithinWindow(completed, completed.Add(12*time.Hour)),
		"the boundary itself is inclusive")
	assert.False(t, svc.WithinWindow(completed, completed.Add(13*time.Hour)),
		"13h after completion is expired")
}
