package utils

import "errors"

// Common application errors used across services. Handlers map these to HTTP
// status codes; services wrap them with context via fmt.Errorf("%w").
var (
	ErrInvalidArgument    = errors.New("INVALID_ARGUMENT")
	ErrFailedPrecondition = errors.New("FAILED_PRECONDITION")
	ErrNotFound           = errors.New("NOT_FOUND")
	ErrUnauthenticated    = errors.New("UNAUTHENTICATED")
	ErrPermissionDenied   = errors.New("PERMISSION_DENIED")
	ErrInternal           = errors.New("INTERNAL")

	ErrSignatureInvalid     = errors.New("SIGNATURE_INVALID")
	ErrDisputeWindowExpired = errors.New("DISPUTE_WINDOW_EXPIRED")
	ErrDisputeNotOpen       = errors.New("DISPUTE_NOT_OPEN")
	ErrEscrowNotHeld        = errors.New("ESCROW_NOT_HELD")
	ErrPlanAlreadyArmed     = errors.New("RELEASE_PLAN_ALREADY_ARMED")
)

// ErrorCode returns the API error code string for a known error, or INTERNAL.
func ErrorCode(err error) string {
	for _, known := range []error{
		ErrInvalidArgument, ErrFailedPrecondition, ErrNotFound,
		ErrUnauthenticated, ErrPermissionDenied,
		ErrSignatureInvalid,
		ErrDisputeWindowExpired, ErrDisputeNotOpen,
		ErrEscrowNotHeld, ErrPlanAlreadyArmed,
	} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return ErrInternal.Error()
}
