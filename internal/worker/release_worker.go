package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gigstage/settlement_api/internal/service"
)

// ReleaseWorker ticks the staged release scheduler. Each tick processes a
// bounded batch of due stages; overlapping instances are safe because the
// stage claim is a compare-and-set.
type ReleaseWorker struct {
	releaseSvc *service.ReleaseService
	interval   time.Duration
	batchSize  int
}

// NewReleaseWorker constructs a ReleaseWorker.
func NewReleaseWorker(releaseSvc *service.ReleaseService, interval time.Duration, batchSize int) *ReleaseWorker {
	return &ReleaseWorker{
		releaseSvc: releaseSvc,
		interval:   interval,
		batchSize:  batchSize,
	}
}

// Start begins the periodic release loop until the context is canceled.
func (w *ReleaseWorker) Start(ctx context.Context) {
	log.Info().
		Dur("interval", w.interval).
		Int("batch_size", w.batchSize).
		Msg("Starting release worker")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.run()
		case <-ctx.Done():
			log.Info().Msg("Release worker stopped")
			return
		}
	}
}

func (w *ReleaseWorker) run() {
	processed, err := w.releaseSvc.ProcessDueStages(w.batchSize)
	if err != nil {
		log.Error().Err(err).Msg("Release tick failed")
		return
	}
	if processed > 0 {
		log.Info().Int("stages", processed).Msg("Release tick processed stages")
	}
}
