package service

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gigstage/settlement_api/internal/config"
	"github.com/gigstage/settlement_api/internal/models"
	"github.com/gigstage/settlement_api/internal/repository"
)

// LedgerService writes the per-booking financial aggregate and accrues
// partner commissions. Stage writes are merge-upserts keyed by stage, so a
// replayed release never double-counts.
type LedgerService struct {
	ledgerRepo  *repository.LedgerRepository
	bookingRepo *repository.BookingRepository
	policy      config.PolicyConfig
}

// NewLedgerService constructs a LedgerService.
func NewLedgerService(ledgerRepo *repository.LedgerRepository, bookingRepo *repository.BookingRepository, policy config.PolicyConfig) *LedgerService {
	return &LedgerService{ledgerRepo: ledgerRepo, bookingRepo: bookingRepo, policy: policy}
}

// RecordStageRelease merges one released stage into the booking ledger.
// TCS lands in tcs_platform_cost only when the platform bears it; a
// supplier-borne TCS already reduced the supplier net.
func (s *LedgerService) RecordStageRelease(bookingID, stageKey string, share StageShare) error {
	entry := models.LedgerStageEntry{
		StageGross:        share.Gross,
		EscrowFee:         share.PlatformFee,
		PlatformRetained:  share.PlatformFee + share.GST,
		GSTCollected:      share.GST,
		TDSWithheld:       share.TDS,
		SupplierNetPayout: share.Net,
		RecordedAt:        time.Now(),
	}
	if s.policy.TCSPayer != "supplier" {
		entry.TCSPlatformCost = share.TCS
	}
	if err := s.ledgerRepo.MergeStage(bookingID, stageKey, entry); err != nil {
		return fmt.Errorf("merge ledger stage %s/%s: %w", bookingID, stageKey, err)
	}
	return nil
}

// Get returns the ledger for a booking.
func (s *LedgerService) Get(bookingID string) (*models.PlatformLedger, error) {
	return s.ledgerRepo.Get(bookingID)
}

// AccrueFinalCommission accrues the partner commission for every distinct
// partner behind the booking's recipients. The (booking, partner) key makes
// this idempotent across replayed final-stage releases. Commission is a
// share of the full booking platform fee, tiered by the partner's prior
// eligible-booking count.
func (s *LedgerService) AccrueFinalCommission(bookingID string, recipients []*models.Recipient, platformFee int64) {
	seen := map[string]bool{}
	for _, rec := range recipients {
		if rec.PartnerID == nil || *rec.PartnerID == "" || seen[*rec.PartnerID] {
			continue
		}
		partnerID := *rec.PartnerID
		seen[partnerID] = true

		count, err := s.bookingRepo.CountEligibleBookings(partnerID)
		if err != nil {
			log.Error().Err(err).Str("partner_id", partnerID).Msg("failed to count partner bookings")
			continue
		}
		rate := s.commissionRate(count)
		commission := &models.PartnerCommission{
			BookingID: bookingID,
			PartnerID: partnerID,
			Rate:      rate,
			Amount:    int64(math.Round(float64(platformFee) * rate)),
		}
		written, err := s.ledgerRepo.AccrueCommission(commission)
		if err != nil {
			log.Error().Err(err).
				Str("booking_id", bookingID).
				Str("partner_id", partnerID).
				Msg("failed to accrue partner commission")
			continue
		}
		if written {
			log.Info().
				Str("booking_id", bookingID).
				Str("partner_id", partnerID).
				Float64("rate", rate).
				Int64("amount", commission.Amount).
				Msg("partner commission accrued")
		}
	}
}

// commissionRate picks the tier for a partner's prior booking count. Tiers
// are ordered highest MinBookings first.
func (s *LedgerService) commissionRate(bookings int) float64 {
	for _, t := range s.policy.CommissionTiers {
		if bookings >= t.MinBookings {
			return t.Rate
		}
	}
	return 0
}
