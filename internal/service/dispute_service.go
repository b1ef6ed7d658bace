package service

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gigstage/settlement_api/internal/config"
	"github.com/gigstage/settlement_api/internal/repository"
	"github.com/gigstage/settlement_api/internal/utils"
)

// Dispute resolutions accepted by Resolve.
const (
	ResolutionRelease  = "release"
	ResolutionWithhold = "withhold"
)

// DisputeService runs the customer dispute lifecycle. A dispute can only
// open while the booking is completed and inside the dispute window; opening
// parks payouts, resolution optionally releases them again.
type DisputeService struct {
	bookingRepo *repository.BookingRepository
	escrowRepo  *repository.EscrowRepository
	stageRepo   *repository.StageRepository
	notifier    *NotificationService
	policy      config.PolicyConfig
}

// NewDisputeService constructs a DisputeService.
func NewDisputeService(
	bookingRepo *repository.BookingRepository,
	escrowRepo *repository.EscrowRepository,
	stageRepo *repository.StageRepository,
	notifier *NotificationService,
	policy config.PolicyConfig,
) *DisputeService {
	return &DisputeService{
		bookingRepo: bookingRepo,
		escrowRepo:  escrowRepo,
		stageRepo:   stageRepo,
		notifier:    notifier,
		policy:      policy,
	}
}

// Open opens a dispute on a completed booking. Reopening an already-open
// dispute is a no-op; a booking outside the window gets
// ErrDisputeWindowExpired regardless of its other state.
func (s *DisputeService) Open(bookingID string, now time.Time) error {
	booking, err := s.bookingRepo.GetByID(bookingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("booking %s: %w", bookingID, utils.ErrNotFound)
		}
		return err
	}
	if booking.DisputeIsOpen() {
		return nil
	}
	if booking.CompletedAt == nil {
		return fmt.Errorf("booking %s not completed: %w", bookingID, utils.ErrFailedPrecondition)
	}
	if !s.WithinWindow(*booking.CompletedAt, now) {
		return fmt.Errorf("booking %s: %w", bookingID, utils.ErrDisputeWindowExpired)
	}

	if err := s.bookingRepo.OpenDispute(bookingID, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Lost a race or the booking drifted; re-read to tell which.
			current, gerr := s.bookingRepo.GetByID(bookingID)
			if gerr == nil && current.DisputeIsOpen() {
				return nil
			}
			return fmt.Errorf("booking %s is not completed: %w", bookingID, utils.ErrFailedPrecondition)
		}
		return err
	}

	s.notifier.NotifyDispute(bookingID, EventDisputeOpened, "")
	log.Info().Str("booking_id", bookingID).Msg("dispute opened, payouts held")
	return nil
}

// WithinWindow reports whether a dispute may still open at now for a booking
// completed at completedAt. The boundary is inclusive: exactly at window end
// still opens.
func (s *DisputeService) WithinWindow(completedAt, now time.Time) bool {
	return !now.After(completedAt.Add(s.policy.DisputeWindow))
}

// Resolve closes an open dispute. ResolutionRelease clears the payout hold
// and resumes held stages; any other resolution keeps the hold for manual
// follow-up. Stage eligibility times and allocations are never touched.
func (s *DisputeService) Resolve(bookingID, resolution string) error {
	if resolution != ResolutionRelease && resolution != ResolutionWithhold {
		return fmt.Errorf("unknown resolution %q: %w", resolution, utils.ErrInvalidArgument)
	}
	keepHold := resolution != ResolutionRelease

	if err := s.bookingRepo.ResolveDispute(bookingID, resolution, keepHold); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("booking %s: %w", bookingID, utils.ErrDisputeNotOpen)
		}
		return err
	}

	if !keepHold {
		payment, err := s.escrowRepo.GetByBookingID(bookingID)
		if err != nil {
			if !errors.Is(err, sql.ErrNoRows) {
				return err
			}
		} else {
			resumed, err := s.stageRepo.ResumeHeld(payment.ID)
			if err != nil {
				return err
			}
			if resumed > 0 {
				log.Info().Str("booking_id", bookingID).Int("stages", resumed).Msg("held stages resumed after dispute")
			}
		}
	}

	s.notifier.NotifyDispute(bookingID, EventDisputeResolved, resolution)
	log.Info().
		Str("booking_id", bookingID).
		Str("resolution", resolution).
		Msg("dispute resolved")
	return nil
}
