package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/gigstage/settlement_api/internal/models"
)

// PayoutRepository is the durable payout job queue plus the transfer map and
// the append-only attempt audit trail.
type PayoutRepository struct {
	db *sqlx.DB
}

// NewPayoutRepository creates a new PayoutRepository.
func NewPayoutRepository(db *sqlx.DB) *PayoutRepository {
	return &PayoutRepository{db: db}
}

// EnqueueJobs writes the transfer-map rows and the queue jobs in one
// transaction. The transfer row (status requested) is committed together
// with the job, so a crash between enqueue and the external call always
// leaves a reconcilable record.
func (r *PayoutRepository) EnqueueJobs(jobs []models.PayoutJob) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const insTransfer = `
        INSERT INTO payout_transfers (
            transfer_id, booking_id, payment_id, payout_type, recipient_id, stage_key, amount, status
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, 'requested')`
	const insJob = `
        INSERT INTO payout_jobs (
            transfer_id, booking_id, payment_id, stage_key, payout_type, recipient_id, amount, status, max_retry
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, 'queued', $8)`

	for i := range jobs {
		j := &jobs[i]
		if _, err := tx.Exec(insTransfer,
			j.TransferID, j.BookingID, j.PaymentID, j.PayoutType, j.RecipientID, j.StageKey, j.Amount,
		); err != nil {
			return fmt.Errorf("insert transfer %s: %w", j.TransferID, err)
		}
		if _, err := tx.Exec(insJob,
			j.TransferID, j.BookingID, j.PaymentID, j.StageKey, j.PayoutType, j.RecipientID, j.Amount, j.MaxRetry,
		); err != nil {
			return fmt.Errorf("insert job %s: %w", j.TransferID, err)
		}
	}
	return tx.Commit()
}

// ClaimJobs picks up to limit runnable jobs and moves them to processing.
// SKIP LOCKED keeps concurrent workers from claiming the same rows.
func (r *PayoutRepository) ClaimJobs(limit int) ([]models.PayoutJob, error) {
	tx, err := r.db.Beginx()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	const sel = `
        SELECT * FROM payout_jobs
        WHERE status = 'queued' AND (next_retry_at IS NULL OR next_retry_at <= NOW())
        ORDER BY created_at ASC
        LIMIT $1
        FOR UPDATE SKIP LOCKED`
	var jobs []models.PayoutJob
	if err := tx.Select(&jobs, sel, limit); err != nil {
		return nil, err
	}

	const upd = `
        UPDATE payout_jobs SET status = 'processing', attempt = attempt + 1, updated_at = NOW()
        WHERE id = $1`
	for i := range jobs {
		if _, err := tx.Exec(upd, jobs[i].ID); err != nil {
			return nil, err
		}
		jobs[i].Status = models.JobProcessing
		jobs[i].Attempt++
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return jobs, nil
}

// MarkJobSent finishes a job after the transfer request was accepted.
func (r *PayoutRepository) MarkJobSent(jobID int) error {
	const q = `
        UPDATE payout_jobs SET status = 'sent', last_error = NULL, updated_at = NOW()
        WHERE id = $1`
	_, err := r.db.Exec(q, jobID)
	return err
}

// ScheduleRetry re-queues a failed job with backoff, or parks it dead once
// the retry budget is spent.
func (r *PayoutRepository) ScheduleRetry(job *models.PayoutJob, cause string) error {
	if job.Attempt >= job.MaxRetry {
		const dead = `
            UPDATE payout_jobs SET status = 'dead', last_error = $2, next_retry_at = NULL, updated_at = NOW()
            WHERE id = $1`
		_, err := r.db.Exec(dead, job.ID, cause)
		return err
	}
	next := time.Now().Add(retryDelay(job.Attempt))
	const q = `
        UPDATE payout_jobs SET status = 'queued', last_error = $2, next_retry_at = $3, updated_at = NOW()
        WHERE id = $1`
	_, err := r.db.Exec(q, job.ID, cause, next)
	return err
}

// retryDelay returns the backoff before the next attempt.
// Intervals: 30s, 1m, 5m, 30m, 2h.
func retryDelay(attempt int) time.Duration {
	intervals := []time.Duration{
		30 * time.Second,
		1 * time.Minute,
		5 * time.Minute,
		30 * time.Minute,
		2 * time.Hour,
	}
	if attempt < 1 {
		attempt = 1
	}
	if attempt > len(intervals) {
		attempt = len(intervals)
	}
	return intervals[attempt-1]
}

// RequeueDead puts a dead job back in the queue with a fresh retry budget.
// Used by the admin surface after remediation.
func (r *PayoutRepository) RequeueDead(transferID string) error {
	const q = `
        UPDATE payout_jobs SET status = 'queued', attempt = 0, next_retry_at = NULL, last_error = NULL, updated_at = NOW()
        WHERE transfer_id = $1 AND status = 'dead'`
	res, err := r.db.Exec(q, transferID)
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

// AppendAttempt adds one audit row. Attempts are never updated in place, so
// job redelivery shows up as extra rows rather than lost history.
func (r *PayoutRepository) AppendAttempt(a *models.PayoutAttempt) error {
	const q = `
        INSERT INTO payout_attempts (transfer_id, job_id, attempt, outcome, detail)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id, created_at`
	return r.db.QueryRow(q, a.TransferID, a.JobID, a.Attempt, a.Outcome, a.Detail).
		Scan(&a.ID, &a.CreatedAt)
}

// GetTransfer returns the transfer-map row for a transfer id.
func (r *PayoutRepository) GetTransfer(transferID string) (*models.PayoutTransfer, error) {
	const q = `SELECT * FROM payout_transfers WHERE transfer_id = $1 LIMIT 1`
	var t models.PayoutTransfer
	if err := r.db.Get(&t, q, transferID); err != nil {
		return nil, err
	}
	return &t, nil
}

// UpdateTransferStatus moves a transfer forward. Terminal states are sticky:
// a transfer already at success/failed/reversed is not overwritten by a
// replayed or out-of-order event. Returns sql.ErrNoRows when nothing changed.
func (r *PayoutRepository) UpdateTransferStatus(transferID string, status models.TransferStatus, referenceID, failureReason string) error {
	const q = `
        UPDATE payout_transfers SET
            status = $2,
            reference_id = COALESCE(NULLIF($3, ''), reference_id),
            failure_reason = NULLIF($4, ''),
            updated_at = NOW()
        WHERE transfer_id = $1 AND status IN ('requested', 'initiated')`
	res, err := r.db.Exec(q, transferID, status, referenceID, failureReason)
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

// GetStaleInitiated returns transfers stuck in initiated longer than
// staleAfter, for the reconcile worker to re-poll.
func (r *PayoutRepository) GetStaleInitiated(staleAfter time.Duration, limit int) ([]models.PayoutTransfer, error) {
	const q = `
        SELECT * FROM payout_transfers
        WHERE status = 'initiated' AND updated_at < NOW() - $1::interval
        ORDER BY updated_at ASC
        LIMIT $2`
	intervalStr := fmt.Sprintf("%d seconds", int(staleAfter.Seconds()))
	var list []models.PayoutTransfer
	if err := r.db.Select(&list, q, intervalStr, limit); err != nil {
		return nil, err
	}
	return list, nil
}

// GetTransfersByStage returns the transfers belonging to one stage.
func (r *PayoutRepository) GetTransfersByStage(paymentID int, stageKey string) ([]models.PayoutTransfer, error) {
	const q = `SELECT * FROM payout_transfers WHERE payment_id = $1 AND stage_key = $2 ORDER BY transfer_id`
	var list []models.PayoutTransfer
	if err := r.db.Select(&list, q, paymentID, stageKey); err != nil {
		return nil, err
	}
	return list, nil
}
