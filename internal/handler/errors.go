package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/gigstage/settlement_api/internal/utils"
)

// respondError maps a service error to the HTTP envelope.
func respondError(c *gin.Context, err error) {
	status := 500
	switch {
	case errors.Is(err, utils.ErrInvalidArgument):
		status = 400
	case errors.Is(err, utils.ErrUnauthenticated), errors.Is(err, utils.ErrSignatureInvalid):
		status = 401
	case errors.Is(err, utils.ErrPermissionDenied):
		status = 403
	case errors.Is(err, utils.ErrNotFound):
		status = 404
	case errors.Is(err, utils.ErrFailedPrecondition),
		errors.Is(err, utils.ErrDisputeWindowExpired),
		errors.Is(err, utils.ErrDisputeNotOpen),
		errors.Is(err, utils.ErrEscrowNotHeld),
		errors.Is(err, utils.ErrPlanAlreadyArmed):
		status = 409
	}
	message := err.Error()
	if status == 500 {
		message = "Internal server error"
	}
	utils.Error(c, status, utils.ErrorCode(err), message)
}
