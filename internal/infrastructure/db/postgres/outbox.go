package postgres

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5"
	app "github.com/jd52dev/excursion/internal/application/excursion"
	"github.com/jd52dev/excursion/internal/audit"
	"github.com/jd52dev/excursion/internal/logger"
	"github.com/jd52dev/excursion/internal/metrics"
)

const (
	outboxBatchSize   = 20
	outboxMaxAttempts = 10
	outboxPoll        = 500 * time.Millisecond
	outboxReservation = 30 * time.Second
)

type outboxRow struct {
	ID         int64
	MessageID  string
	RoutingKey string
	Body       []byte
	Attempts   int
}

// Pending rows that are due. SKIP LOCKED lets several workers share the table.
const selectOutboxClaimsSQL = `
SELECT id, message_id, routing_key, body, attempts
FROM outbox
WHERE status = 'pending'
  AND (next_retry_at IS NULL OR next_retry_at <= NOW())
ORDER BY next_retry_at ASC, created_at ASC
LIMIT $1
FOR UPDATE SKIP LOCKED
`

// A claimed row stays 'processing' until its reservation runs out, then
// becomes claimable again in case the worker died mid-publish.
const claimOutboxSQL = `
UPDATE outbox
SET status = 'processing',
    next_retry_at = $2
WHERE id = $1
`

const releaseExpiredClaimsSQL = `
UPDATE outbox
SET status = 'pending'
WHERE status = 'processing' AND next_retry_at <= NOW()
`

const markOutboxSentSQL = `
UPDATE outbox
SET status = 'sent',
    sent_at = $2,
    last_error = NULL
WHERE id = $1
`

const markOutboxFailedSQL = `
UPDATE outbox
SET status = 'pending',
    attempts = attempts + 1,
    next_retry_at = $2,
    last_error = $3
WHERE id = $1
`

const markOutboxDeadSQL = `
UPDATE outbox
SET status = 'dead',
    attempts = attempts + 1,
    last_error = $2
WHERE id = $1
`

// computeNextRetry is exponential with jitter, bounded to 30 minutes.
func computeNextRetry(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	sec := math.Pow(2, float64(attempt))
	if sec > 1800 {
		sec = 1800
	}
	d := time.Duration(sec) * time.Second
	return d + time.Duration(rand.Intn(1000))*time.Millisecond
}

// StartOutboxWorker polls the outbox and publishes due rows until ctx is done.
//  1. claim rows in a short transaction
//  2. publish outside any transaction
//  3. record the outcome per row
func (r *Repo) StartOutboxWorker(ctx context.Context, pub app.EventPublisher, auditLog *audit.Logger) {
	if auditLog == nil {
		auditLog = audit.Nop()
	}
	go func() {
		log := logger.Component("outbox_worker")

		// Spread start-up so several instances do not poll in lockstep.
		time.Sleep(time.Duration(rand.Intn(1000)) * time.Millisecond)
		ticker := time.NewTicker(outboxPoll)
		defer ticker.Stop()

		var lastErr string
		var lastAt time.Time

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("stopped")
				return
			case <-ticker.C:
				if _, err := r.ProcessOutboxBatch(ctx, pub, auditLog, outboxBatchSize); err != nil {
					if err.Error() != lastErr || time.Since(lastAt) > 10*time.Second {
						log.Warn().Err(err).Msg("outbox batch failed")
						lastErr = err.Error()
						lastAt = time.Now()
					}
				} else {
					lastErr = ""
				}
			}
		}
	}()
}

// ProcessOutboxBatch runs one claim/publish/record round and returns how many
// rows it claimed.
func (r *Repo) ProcessOutboxBatch(ctx context.Context, pub app.EventPublisher, auditLog *audit.Logger, limit int) (int, error) {
	if limit <= 0 {
		limit = outboxBatchSize
	}

	batch, err := r.claimOutbox(ctx, limit)
	if err != nil || len(batch) == 0 {
		return 0, err
	}

	for _, item := range batch {
		r.publishOne(ctx, pub, auditLog, item)
	}
	return len(batch), nil
}

func (r *Repo) claimOutbox(ctx context.Context, limit int) ([]outboxRow, error) {
	claimCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := r.pool.Exec(claimCtx, releaseExpiredClaimsSQL); err != nil {
		return nil, err
	}

	tx, err := r.pool.BeginTx(claimCtx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(claimCtx) }()

	rows, err := tx.Query(claimCtx, selectOutboxClaimsSQL, limit)
	if err != nil {
		return nil, err
	}
	var batch []outboxRow
	for rows.Next() {
		var item outboxRow
		if err := rows.Scan(&item.ID, &item.MessageID, &item.RoutingKey, &item.Body, &item.Attempts); err != nil {
			rows.Close()
			return nil, err
		}
		batch = append(batch, item)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(batch) == 0 {
		return nil, tx.Commit(claimCtx)
	}

	reservation := time.Now().UTC().Add(outboxReservation)
	for _, item := range batch {
		if _, err := tx.Exec(claimCtx, claimOutboxSQL, item.ID, reservation); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(claimCtx); err != nil {
		return nil, err
	}
	return batch, nil
}

func (r *Repo) publishOne(ctx context.Context, pub app.EventPublisher, auditLog *audit.Logger, item outboxRow) {
	log := logger.Component("outbox_worker")

	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	pubErr := pub.PublishEvent(pubCtx, item.RoutingKey, item.MessageID, item.Body)

	resCtx, cancelRes := context.WithTimeout(ctx, 3*time.Second)
	defer cancelRes()

	if pubErr == nil {
		if _, err := r.pool.Exec(resCtx, markOutboxSentSQL, item.ID, time.Now().UTC()); err != nil {
			log.Warn().Err(err).Str("message_id", item.MessageID).Msg("mark sent failed")
		}
		metrics.RecordOutbox("sent")
		log.Debug().
			Str("message_id", item.MessageID).
			Str("routing_key", item.RoutingKey).
			Msg("published")
		return
	}

	next := item.Attempts + 1
	if next >= outboxMaxAttempts {
		_, _ = r.pool.Exec(resCtx, markOutboxDeadSQL, item.ID, pubErr.Error())
		metrics.RecordOutbox("dead")
		auditLog.OutboxMessageDead(item.MessageID, item.RoutingKey, next)
		log.Error().
			Err(pubErr).
			Str("message_id", item.MessageID).
			Str("routing_key", item.RoutingKey).
			Int("attempt", next).
			Msg("outbox moved to dead")
		return
	}

	delay := computeNextRetry(item.Attempts)
	_, _ = r.pool.Exec(resCtx, markOutboxFailedSQL, item.ID, time.Now().UTC().Add(delay), pubErr.Error())
	metrics.RecordOutbox("retry")
	log.Warn().
		Err(pubErr).
		Str("message_id", item.MessageID).
		Str("routing_key", item.RoutingKey).
		Int("attempt", next).
		Dur("retry_in", delay).
		Msg("outbox publish failed; scheduled retry")
}
