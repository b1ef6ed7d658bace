package repository

import (
	"database/sql"
	"encoding/json"

	"github.com/jmoiron/sqlx"

	"github.com/gigstage/settlement_api/internal/models"
)

// StageRepository handles data access for release stages. The claim step is
// the only place a stage moves scheduled->processing, and it re-checks the
// precondition inside the UPDATE, which is what guarantees at most one
// winner per stage across overlapping scheduler ticks.
type StageRepository struct {
	db *sqlx.DB
}

// NewStageRepository creates a new StageRepository.
func NewStageRepository(db *sqlx.DB) *StageRepository {
	return &StageRepository{db: db}
}

// GetDueStages returns up to limit stages that are scheduled and eligible.
// SKIP LOCKED keeps overlapping ticks from queueing behind each other; the
// claim still re-verifies, so this is an optimization, not the guarantee.
func (r *StageRepository) GetDueStages(limit int) ([]models.ReleaseStage, error) {
	const q = `
        SELECT * FROM release_stages
        WHERE status = 'scheduled' AND eligible_at <= NOW()
        ORDER BY eligible_at ASC
        LIMIT $1
        FOR UPDATE SKIP LOCKED`
	var list []models.ReleaseStage
	if err := r.db.Select(&list, q, limit); err != nil {
		return nil, err
	}
	return list, nil
}

// Claim transitions one stage scheduled->processing under the transactional
// precondition that it is still scheduled and still due. Returns
// sql.ErrNoRows when another process already claimed it or it is no longer
// eligible.
func (r *StageRepository) Claim(stageID int) error {
	const q = `
        UPDATE release_stages SET status = 'processing', updated_at = NOW()
        WHERE id = $1 AND status = 'scheduled' AND eligible_at <= NOW()`
	res, err := r.db.Exec(q, stageID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// GetByID returns a stage by id.
func (r *StageRepository) GetByID(stageID int) (*models.ReleaseStage, error) {
	const q = `SELECT * FROM release_stages WHERE id = $1 LIMIT 1`
	var s models.ReleaseStage
	if err := r.db.Get(&s, q, stageID); err != nil {
		return nil, err
	}
	return &s, nil
}

// GetByPayment returns all stages of a payment ordered by stage key.
func (r *StageRepository) GetByPayment(paymentID int) ([]models.ReleaseStage, error) {
	const q = `SELECT * FROM release_stages WHERE payment_id = $1 ORDER BY stage_key`
	var list []models.ReleaseStage
	if err := r.db.Select(&list, q, paymentID); err != nil {
		return nil, err
	}
	return list, nil
}

// Release puts a processing stage back to scheduled, recording why. Used for
// compliance blocks and booking-status drift: the stage is retried on the
// next tick with no progression penalty.
func (r *StageRepository) Release(stageID int, reason string) error {
	const q = `
        UPDATE release_stages SET status = 'scheduled', block_reason = NULLIF($2, ''), updated_at = NOW()
        WHERE id = $1 AND status = 'processing'`
	_, err := r.db.Exec(q, stageID, reason)
	return err
}

// Hold pauses a processing stage until the blocking condition clears.
func (r *StageRepository) Hold(stageID int, reason string) error {
	const q = `
        UPDATE release_stages SET status = 'hold', block_reason = $2, updated_at = NOW()
        WHERE id = $1 AND status = 'processing'`
	_, err := r.db.Exec(q, stageID, reason)
	return err
}

// Fail marks a stage failed with a message. Failed stages are never
// auto-retried; they need manual remediation.
func (r *StageRepository) Fail(stageID int, message string) error {
	const q = `
        UPDATE release_stages SET status = 'failed', error = $2, updated_at = NOW()
        WHERE id = $1`
	_, err := r.db.Exec(q, stageID, message)
	return err
}

// MarkEnqueued records the final allocations and enqueued transfer ids and
// moves the stage to enqueued.
func (r *StageRepository) MarkEnqueued(stageID int, allocations []models.StageAllocation, transferIDs []string) error {
	allocJSON, err := json.Marshal(allocations)
	if err != nil {
		return err
	}
	jobsJSON, err := json.Marshal(transferIDs)
	if err != nil {
		return err
	}
	const q = `
        UPDATE release_stages SET
            status = 'enqueued',
            block_reason = NULL,
            error = NULL,
            allocations = $2,
            enqueued_jobs = $3,
            updated_at = NOW()
        WHERE id = $1 AND status = 'processing'`
	res, err := r.db.Exec(q, stageID, allocJSON, jobsJSON)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ResumeHeld resets held (and hold-reason-annotated scheduled) stages of a
// payment back to a clean scheduled state. Only status, block_reason and
// error are touched; eligible_at and any prior allocations on the same row
// are deliberately left alone.
func (r *StageRepository) ResumeHeld(paymentID int) (int, error) {
	const q = `
        UPDATE release_stages SET status = 'scheduled', block_reason = NULL, error = NULL, updated_at = NOW()
        WHERE payment_id = $1 AND status = 'hold'`
	res, err := r.db.Exec(q, paymentID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// FailPending marks all not-yet-enqueued stages of a payment failed, used
// when a booking is cancelled after the advance.
func (r *StageRepository) FailPending(paymentID int, message string) error {
	const q = `
        UPDATE release_stages SET status = 'failed', error = $2, updated_at = NOW()
        WHERE payment_id = $1 AND status IN ('scheduled', 'hold')`
	_, err := r.db.Exec(q, paymentID, message)
	return err
}
