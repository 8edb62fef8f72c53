// internal/repository/postgres/stripe_event_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"

	"compatlab-service/internal/domain/billing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type StripeEventRepository struct {
	db *pgxpool.Pool
}

func NewStripeEventRepository(db *pgxpool.Pool) *StripeEventRepository {
	return &StripeEventRepository{db: db}
}

// BeginProcessing claims an event id for processing, keeping the raw
// payload alongside it. It returns proceed=false when the event is
// already recorded as processed. A concurrent insert of the same id
// loses the ON CONFLICT race and re-reads the winner's row, so at most
// one delivery proceeds past a processed event and retries of
// unfinished events still get through. A retry of an unfinished event
// refreshes the stored payload with the latest delivery.
func (r *StripeEventRepository) BeginProcessing(ctx context.Context, eventID, eventType string, payload []byte) (proceed bool, err error) {
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	insert := `
		INSERT INTO stripe_events (event_id, event_type, payload, processed)
		VALUES ($1, $2, $3, FALSE)
		ON CONFLICT (event_id) DO UPDATE
		SET payload = EXCLUDED.payload
		WHERE stripe_events.processed = FALSE
	`
	if _, err := r.db.Exec(ctx, insert, eventID, eventType, payload); err != nil {
		return false, fmt.Errorf("failed to record stripe event: %w", err)
	}

	var processed bool
	err = r.db.QueryRow(ctx,
		`SELECT processed FROM stripe_events WHERE event_id = $1`,
		eventID).Scan(&processed)
	if err != nil {
		return false, fmt.Errorf("failed to read stripe event state: %w", err)
	}
	return !processed, nil
}

// MarkProcessedWithTx flips processed inside the same transaction as
// the event's side effects, so either both commit or neither does.
func (r *StripeEventRepository) MarkProcessedWithTx(ctx context.Context, tx pgx.Tx, eventID string) error {
	_, err := tx.Exec(ctx,
		`UPDATE stripe_events SET processed = TRUE, processado_em = NOW() WHERE event_id = $1`,
		eventID)
	if err != nil {
		return fmt.Errorf("failed to mark stripe event processed: %w", err)
	}
	return nil
}

// MarkProcessed is the non-transactional form, used for event types we
// record but deliberately ignore.
func (r *StripeEventRepository) MarkProcessed(ctx context.Context, eventID string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE stripe_events SET processed = TRUE, processado_em = NOW() WHERE event_id = $1`,
		eventID)
	if err != nil {
		return fmt.Errorf("failed to mark stripe event processed: %w", err)
	}
	return nil
}

func (r *StripeEventRepository) FindByEventID(ctx context.Context, eventID string) (*billing.StripeEvent, error) {
	query := `
		SELECT id, event_id, event_type, payload, processed, recebido_em, processado_em
		FROM stripe_events
		WHERE event_id = $1
	`
	var e billing.StripeEvent
	err := r.db.QueryRow(ctx, query, eventID).Scan(
		&e.ID, &e.EventID, &e.EventType, &e.Payload, &e.Processed, &e.RecebidoEm, &e.ProcessadoEm,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find stripe event: %w", err)
	}
	return &e, nil
}
