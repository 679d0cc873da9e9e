package postgres

import (
	"context"
	"strings"
)

// ProcessOnce runs fn behind a processed_messages fence keyed by
// (message_id, handler_name).
//   - duplicate delivery: fn is not called, processed=false, err=nil
//   - fn fails: the marker is rolled back so the message can be retried
//
// fn writes to the user directory, which lives outside this transaction; a
// commit failure after fn succeeded leads to a redelivery, so fn must be
// idempotent.
func (r *Repo) ProcessOnce(ctx context.Context, messageID, handlerName string, fn func(ctx context.Context) error) (processed bool, err error) {
	messageID = strings.TrimSpace(messageID)
	handlerName = strings.TrimSpace(handlerName)
	if handlerName == "" {
		handlerName = "unknown"
	}

	// Without a message id there is nothing to dedupe on; run it anyway.
	if messageID == "" {
		if err := fn(ctx); err != nil {
			return false, err
		}
		return true, nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, mapErr(err, "")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
INSERT INTO processed_messages (message_id, handler_name)
VALUES ($1, $2)
ON CONFLICT DO NOTHING`, messageID, handlerName)
	if err != nil {
		return false, mapErr(err, "")
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	if err := fn(ctx); err != nil {
		return false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return false, mapErr(err, "")
	}
	return true, nil
}
