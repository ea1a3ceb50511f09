// Package outbox delivers e-mail recorded in the database alongside the
// change that caused it. Messages are written in the caller's transaction
// and sent later by a Dispatcher, so a rolled-back change never sends mail
// and a failed send never undoes a committed change.
package outbox

import (
	"context"
	"fmt"

	"github.com/dukerupert/homewise/internal/email"
	"github.com/dukerupert/homewise/internal/model"
	"github.com/dukerupert/homewise/internal/store"
	"github.com/jmoiron/sqlx"
)

// Enqueue records msg for delivery inside tx.
func Enqueue(ctx context.Context, tx *sqlx.Tx, kind string, msg email.Message) (*model.OutboxMessage, error) {
	m, err := store.NewOutboxStore(tx).Insert(ctx, kind, msg.To, msg.Subject, msg.HTML, msg.Text)
	if err != nil {
		return nil, fmt.Errorf("enqueue %s: %w", kind, err)
	}
	if m == nil {
		return nil, fmt.Errorf("enqueue %s: no row returned", kind)
	}
	return m, nil
}
