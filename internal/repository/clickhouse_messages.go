package repository

import (
	"context"
	"fmt"

	"github.com/jmehdipour/saas-gateway/internal/model"
	"github.com/jmoiron/sqlx"
)

// CHMessagesRepository is the ClickHouse audit trail of WhatsApp sends.
type CHMessagesRepository interface {
	ListByOrganization(ctx context.Context, orgID, phone string, status model.MessageStatus, limit, offset int) ([]model.Message, error)
	InsertBatch(ctx context.Context, msgs []model.Message) error
}

type chMessagesRepository struct {
	ch *sqlx.DB // ClickHouse connection
}

func NewCHMessagesRepository(ch *sqlx.DB) CHMessagesRepository {
	return &chMessagesRepository{ch: ch}
}

func (r *chMessagesRepository) ListByOrganization(ctx context.Context, orgID, phone string, status model.MessageStatus, limit, offset int) ([]model.Message, error) {
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	q := `
		SELECT id, idempotency_key, org_id, user_id, client_id, phone_number,
		       message_content, provider_message_id, status, error_detail, created_at
		FROM saasgw.whatsapp_messages FINAL
		WHERE org_id = ?
	`
	args := []any{orgID}

	if status != "" {
		q += " AND status = ?"
		args = append(args, status.String())
	}
	if phone != "" {
		q += " AND phone_number = ?"
		args = append(args, phone)
	}

	q += " ORDER BY created_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows := []model.Message{}
	if err := r.ch.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, err
	}
	return rows, nil
}

// InsertBatch appends msgs in a single ClickHouse batch (prepare + exec per
// row + commit). Replays are collapsed by the ReplacingMergeTree engine.
func (r *chMessagesRepository) InsertBatch(ctx context.Context, msgs []model.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	tx, err := r.ch.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO saasgw.whatsapp_messages
		    (id, idempotency_key, org_id, user_id, client_id, phone_number,
		     message_content, provider_message_id, status, error_detail, created_at)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}
	defer stmt.Close()

	for _, m := range msgs {
		if _, err := stmt.ExecContext(ctx,
			m.ID, m.IdempotencyKey, m.OrgID, m.UserID, m.ClientID, m.PhoneNumber,
			m.Content, m.ProviderMessageID, m.Status.String(), m.ErrorDetail, m.CreatedAt,
		); err != nil {
			return fmt.Errorf("append %s: %w", m.ID, err)
		}
	}

	return tx.Commit()
}
