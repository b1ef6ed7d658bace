package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gigstage/settlement_api/internal/service"
)

// TransferCheckWorker re-polls the gateway for transfers stuck in initiated.
// It covers lost payout webhooks: the same terminal-update path runs whether
// the answer arrives by webhook or by poll.
type TransferCheckWorker struct {
	payoutSvc *service.PayoutService
	interval  time.Duration
	batchSize int
}

// NewTransferCheckWorker constructs a TransferCheckWorker.
func NewTransferCheckWorker(payoutSvc *service.PayoutService, interval time.Duration, batchSize int) *TransferCheckWorker {
	return &TransferCheckWorker{
		payoutSvc: payoutSvc,
		interval:  interval,
		batchSize: batchSize,
	}
}

// Start begins the reconcile loop until the context is canceled.
func (w *TransferCheckWorker) Start(ctx context.Context) {
	log.Info().
		Dur("interval", w.interval).
		Int("batch_size", w.batchSize).
		Msg("Starting transfer check worker")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.run(ctx)
		case <-ctx.Done():
			log.Info().Msg("Transfer check worker stopped")
			return
		}
	}
}

func (w *TransferCheckWorker) run(ctx context.Context) {
	finalized, err := w.payoutSvc.ReconcileStale(ctx, w.batchSize)
	if err != nil {
		log.Error().Err(err).Msg("Transfer check tick failed")
		return
	}
	if finalized > 0 {
		log.Info().Int("transfers", finalized).Msg("Reconciled stale transfers")
	}
}
