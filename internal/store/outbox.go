package store

import (
	"context"
	"fmt"
	"time"

	"github.com/dukerupert/homewise/internal/database"
	"github.com/dukerupert/homewise/internal/model"
	"github.com/jmoiron/sqlx"
)

type OutboxStore struct {
	db database.Querier
}

func NewOutboxStore(db database.Querier) *OutboxStore {
	return &OutboxStore{db: db}
}

// WithTx returns a copy of the store bound to tx.
func (s *OutboxStore) WithTx(tx *sqlx.Tx) *OutboxStore {
	return &OutboxStore{db: tx}
}

const outboxCols = `id, kind, recipient, subject, html_body, text_body, status, attempts, last_error, next_attempt_at, sent_at, created_at`

// Insert queues a pending message that is due immediately.
func (s *OutboxStore) Insert(ctx context.Context, kind, recipient, subject, htmlBody, textBody string) (*model.OutboxMessage, error) {
	ts := now()
	m, err := get[model.OutboxMessage](ctx, s.db,
		`INSERT INTO outbox_messages (kind, recipient, subject, html_body, text_body, status, attempts, last_error, next_attempt_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, 0, '', ?, ?)
		 RETURNING `+outboxCols,
		kind, recipient, subject, htmlBody, textBody, model.OutboxPending, ts, ts,
	)
	if err != nil {
		return nil, fmt.Errorf("insert outbox message: %w", err)
	}
	return m, nil
}

func (s *OutboxStore) GetByID(ctx context.Context, id int64) (*model.OutboxMessage, error) {
	m, err := get[model.OutboxMessage](ctx, s.db, `SELECT `+outboxCols+` FROM outbox_messages WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("get outbox message: %w", err)
	}
	return m, nil
}

// ListDue returns up to limit pending messages whose next attempt is at or
// before at, oldest first.
func (s *OutboxStore) ListDue(ctx context.Context, at time.Time, limit int) ([]model.OutboxMessage, error) {
	msgs, err := list[model.OutboxMessage](ctx, s.db,
		`SELECT `+outboxCols+` FROM outbox_messages
		 WHERE status = ? AND next_attempt_at <= ?
		 ORDER BY next_attempt_at ASC, id ASC
		 LIMIT ?`,
		model.OutboxPending, at.UTC(), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list due outbox messages: %w", err)
	}
	return msgs, nil
}

func (s *OutboxStore) ListByRecipient(ctx context.Context, recipient string) ([]model.OutboxMessage, error) {
	msgs, err := list[model.OutboxMessage](ctx, s.db,
		`SELECT `+outboxCols+` FROM outbox_messages WHERE recipient = ? ORDER BY id ASC`,
		recipient,
	)
	if err != nil {
		return nil, fmt.Errorf("list outbox messages: %w", err)
	}
	return msgs, nil
}

func (s *OutboxStore) MarkSent(ctx context.Context, id int64, attempts int) error {
	ts := now()
	if _, err := exec(ctx, s.db,
		`UPDATE outbox_messages SET status = ?, attempts = ?, last_error = '', sent_at = ? WHERE id = ?`,
		model.OutboxSent, attempts, ts, id,
	); err != nil {
		return fmt.Errorf("mark outbox message sent: %w", err)
	}
	return nil
}

// MarkRetry records a failed attempt and schedules the next one.
func (s *OutboxStore) MarkRetry(ctx context.Context, id int64, attempts int, lastErr string, next time.Time) error {
	if _, err := exec(ctx, s.db,
		`UPDATE outbox_messages SET attempts = ?, last_error = ?, next_attempt_at = ? WHERE id = ?`,
		attempts, lastErr, next.UTC(), id,
	); err != nil {
		return fmt.Errorf("mark outbox message retry: %w", err)
	}
	return nil
}

// MarkFailed gives up on a message.
func (s *OutboxStore) MarkFailed(ctx context.Context, id int64, attempts int, lastErr string) error {
	if _, err := exec(ctx, s.db,
		`UPDATE outbox_messages SET status = ?, attempts = ?, last_error = ? WHERE id = ?`,
		model.OutboxFailed, attempts, lastErr, id,
	); err != nil {
		return fmt.Errorf("mark outbox message failed: %w", err)
	}
	return nil
}

// CountByStatus returns the number of messages in each status.
func (s *OutboxStore) CountByStatus(ctx context.Context) (map[string]int, error) {
	type row struct {
		Status string `db:"status"`
		N      int    `db:"n"`
	}
	rows, err := list[row](ctx, s.db, `SELECT status, COUNT(*) AS n FROM outbox_messages GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count outbox messages: %w", err)
	}
	counts := make(map[string]int, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.N
	}
	return counts, nil
}

// PruneSent deletes sent messages delivered before cutoff and returns how
// many were removed.
func (s *OutboxStore) PruneSent(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := exec(ctx, s.db,
		`DELETE FROM outbox_messages WHERE status = ? AND sent_at < ?`,
		model.OutboxSent, cutoff.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("prune outbox messages: %w", err)
	}
	return n, nil
}
