package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gigstage/settlement_api/internal/service"
)

// PayoutWorker drains the durable payout job queue. Jobs are claimed with
// SKIP LOCKED, so multiple instances drain the same queue without stepping
// on each other.
type PayoutWorker struct {
	payoutSvc *service.PayoutService
	interval  time.Duration
	batchSize int
}

// NewPayoutWorker constructs a PayoutWorker.
func NewPayoutWorker(payoutSvc *service.PayoutService, interval time.Duration, batchSize int) *PayoutWorker {
	return &PayoutWorker{
		payoutSvc: payoutSvc,
		interval:  interval,
		batchSize: batchSize,
	}
}

// Start begins the payout dispatch loop until the context is canceled.
func (w *PayoutWorker) Start(ctx context.Context) {
	log.Info().
		Dur("interval", w.interval).
		Int("batch_size", w.batchSize).
		Msg("Starting payout worker")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.run(ctx)
		case <-ctx.Done():
			log.Info().Msg("Payout worker stopped")
			return
		}
	}
}

func (w *PayoutWorker) run(ctx context.Context) {
	sent, err := w.payoutSvc.ProcessQueue(ctx, w.batchSize)
	if err != nil {
		log.Error().Err(err).Msg("Payout tick failed")
		return
	}
	if sent > 0 {
		log.Info().Int("jobs", sent).Msg("Payout tick dispatched jobs")
	}
}
